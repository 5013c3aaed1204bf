package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/garyjia/approval-engine/internal/application/port"
	"github.com/garyjia/approval-engine/internal/domain/entity"
	"github.com/garyjia/approval-engine/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// MemberRepository implements port.MemberRepository on a local roster table
type MemberRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewMemberRepository creates a new member repository
func NewMemberRepository(db *sql.DB, logger *zap.Logger) port.MemberRepository {
	return &MemberRepository{
		db:     db,
		logger: logger,
	}
}

const memberColumns = `id, organization_id, display_name, roles, is_active, is_admin, lark_open_id, updated_at`

// GetMember retrieves a member by ID
func (r *MemberRepository) GetMember(ctx context.Context, memberID string) (*entity.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members WHERE id = ?`

	member, err := scanMember(r.getExecutor(ctx).QueryRowContext(ctx, query, memberID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get member", zap.String("member_id", memberID), zap.Error(err))
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	return member, nil
}

// ListActiveByRole returns the active members of an organization holding role, case-insensitively
func (r *MemberRepository) ListActiveByRole(ctx context.Context, organizationID, role string) ([]*entity.Member, error) {
	members, err := r.list(ctx, `WHERE organization_id = ? AND is_active = 1`, organizationID)
	if err != nil {
		return nil, err
	}

	role = strings.TrimSpace(role)
	var out []*entity.Member
	for _, m := range members {
		if m.HasRole(role) {
			out = append(out, m)
		}
	}
	return out, nil
}

// ListByOrganization returns every member of an organization
func (r *MemberRepository) ListByOrganization(ctx context.Context, organizationID string) ([]*entity.Member, error) {
	return r.list(ctx, `WHERE organization_id = ?`, organizationID)
}

// Upsert inserts or replaces a roster entry
func (r *MemberRepository) Upsert(ctx context.Context, member *entity.Member) error {
	roles, err := marshalJSON(member.Roles, "[]")
	if err != nil {
		return fmt.Errorf("failed to encode roles: %w", err)
	}

	query := `
		INSERT INTO members (` + memberColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			organization_id = excluded.organization_id,
			display_name = excluded.display_name,
			roles = excluded.roles,
			is_active = excluded.is_active,
			is_admin = excluded.is_admin,
			lark_open_id = excluded.lark_open_id,
			updated_at = excluded.updated_at
	`

	_, err = r.getExecutor(ctx).ExecContext(ctx, query,
		member.ID,
		member.OrganizationID,
		member.DisplayName,
		roles,
		member.IsActive,
		member.IsAdmin,
		member.LarkOpenID,
		member.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to upsert member", zap.String("member_id", member.ID), zap.Error(err))
		return fmt.Errorf("failed to upsert member: %w", err)
	}
	return nil
}

func (r *MemberRepository) list(ctx context.Context, where string, args ...interface{}) ([]*entity.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members ` + where + ` ORDER BY id`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list members", zap.Error(err))
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []*entity.Member
	for rows.Next() {
		member, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, member)
	}
	return members, rows.Err()
}

// getExecutor returns appropriate executor based on context
func (r *MemberRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFor(ctx, r.db)
}

func scanMember(row rowScanner) (*entity.Member, error) {
	var member entity.Member
	var roles string

	err := row.Scan(
		&member.ID,
		&member.OrganizationID,
		&member.DisplayName,
		&roles,
		&member.IsActive,
		&member.IsAdmin,
		&member.LarkOpenID,
		&member.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(roles), &member.Roles); err != nil {
		return nil, fmt.Errorf("failed to decode roles: %w", err)
	}
	return &member, nil
}

// Verify interface compliance
var _ port.MemberRepository = (*MemberRepository)(nil)
