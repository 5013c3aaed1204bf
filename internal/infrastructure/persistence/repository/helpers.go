package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"

	domainwf "github.com/garyjia/approval-engine/internal/domain/workflow"
)

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// expectOneRow turns a zero-row write into a not-found error
func expectOneRow(result sql.Result, resource, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return &domainwf.NotFoundError{Resource: resource, ID: id}
	}
	return nil
}

// marshalJSON encodes v, writing fallback for nil values
func marshalJSON(v any, fallback string) (string, error) {
	if v == nil {
		return fallback, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	if string(raw) == "null" {
		return fallback, nil
	}
	return string(raw), nil
}
