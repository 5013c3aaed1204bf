package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/garyjia/approval-engine/internal/application/port"
	"github.com/garyjia/approval-engine/internal/domain/entity"
)

// SeedFile is the YAML document accepted by the seed loader and approvalctl
type SeedFile struct {
	Members     []*entity.Member    `yaml:"members,omitempty"`
	Definitions []DefinitionPayload `yaml:"definitions,omitempty"`
	Approvals   []ApprovalPayload   `yaml:"approvals,omitempty"`
}

// ParseSeedFile decodes one or more YAML documents into a single SeedFile
func ParseSeedFile(r io.Reader) (*SeedFile, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	merged := &SeedFile{}
	for {
		var doc SeedFile
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode seed file: %w", err)
		}
		merged.Members = append(merged.Members, doc.Members...)
		merged.Definitions = append(merged.Definitions, doc.Definitions...)
		merged.Approvals = append(merged.Approvals, doc.Approvals...)
	}
	return merged, nil
}

// LoadSeedFile reads and decodes a seed file from disk
func LoadSeedFile(path string) (*SeedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	seed, err := ParseSeedFile(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return seed, nil
}

// Convert turns every payload in the file into a validated definition.
// All conversion errors are returned together.
func (f *SeedFile) Convert() ([]*entity.WorkflowDefinition, error) {
	var defs []*entity.WorkflowDefinition
	var errs []error

	for i := range f.Definitions {
		def, err := f.Definitions[i].ToDefinition()
		if err != nil {
			errs = append(errs, fmt.Errorf("definition %q: %w", f.Definitions[i].Name, err))
			continue
		}
		defs = append(defs, def)
	}
	for i := range f.Approvals {
		def, err := f.Approvals[i].ToDefinition()
		if err != nil {
			errs = append(errs, fmt.Errorf("approval %q: %w", f.Approvals[i].Name, err))
			continue
		}
		defs = append(defs, def)
	}
	return defs, errors.Join(errs...)
}

// Seeder loads members and definitions from a directory of YAML files
type Seeder struct {
	definitions DefinitionService
	members     port.MemberRepository
	logger      Logger
}

// NewSeeder creates a new Seeder
func NewSeeder(definitions DefinitionService, members port.MemberRepository, logger Logger) *Seeder {
	return &Seeder{
		definitions: definitions,
		members:     members,
		logger:      logger,
	}
}

// SeedResult counts what a seeding run changed
type SeedResult struct {
	Members            int
	DefinitionsCreated int
	DefinitionsSkipped int
}

// SeedDir applies every *.yaml and *.yml file under dir in lexical order.
// Definitions whose name already exists in the organization are skipped.
func (s *Seeder) SeedDir(ctx context.Context, dir string) (*SeedResult, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		ext := strings.ToLower(filepath.Ext(path))
		if !d.IsDir() && (ext == ".yaml" || ext == ".yml") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk seed dir: %w", err)
	}
	sort.Strings(paths)

	result := &SeedResult{}
	for _, path := range paths {
		seed, err := LoadSeedFile(path)
		if err != nil {
			return result, err
		}
		if err := s.apply(ctx, path, seed, result); err != nil {
			return result, err
		}
	}

	s.logger.Info("Seed directory applied",
		"dir", dir,
		"files", len(paths),
		"members", result.Members,
		"definitions_created", result.DefinitionsCreated,
		"definitions_skipped", result.DefinitionsSkipped,
	)
	return result, nil
}

func (s *Seeder) apply(ctx context.Context, path string, seed *SeedFile, result *SeedResult) error {
	now := time.Now()
	for _, m := range seed.Members {
		if m.ID == "" || m.OrganizationID == "" {
			return fmt.Errorf("%s: member requires id and organizationId", path)
		}
		m.UpdatedAt = now
		if err := s.members.Upsert(ctx, m); err != nil {
			return fmt.Errorf("%s: upsert member %s: %w", path, m.ID, err)
		}
		result.Members++
	}

	existing := make(map[string]map[string]bool)
	exists := func(org, name string) (bool, error) {
		names, ok := existing[org]
		if !ok {
			defs, err := s.definitions.List(ctx, org, false)
			if err != nil {
				return false, err
			}
			names = make(map[string]bool, len(defs))
			for _, d := range defs {
				names[d.Name] = true
			}
			existing[org] = names
		}
		return names[name], nil
	}

	for i := range seed.Definitions {
		p := &seed.Definitions[i]
		skip, err := exists(strings.TrimSpace(p.OrganizationID), strings.TrimSpace(p.Name))
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if skip {
			result.DefinitionsSkipped++
			continue
		}
		if _, err := s.definitions.Create(ctx, p); err != nil {
			return fmt.Errorf("%s: definition %q: %w", path, p.Name, err)
		}
		existing[strings.TrimSpace(p.OrganizationID)][strings.TrimSpace(p.Name)] = true
		result.DefinitionsCreated++
	}

	for i := range seed.Approvals {
		p := &seed.Approvals[i]
		skip, err := exists(strings.TrimSpace(p.OrganizationID), strings.TrimSpace(p.Name))
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if skip {
			result.DefinitionsSkipped++
			continue
		}
		if _, err := s.definitions.CreateApproval(ctx, p); err != nil {
			return fmt.Errorf("%s: approval %q: %w", path, p.Name, err)
		}
		existing[strings.TrimSpace(p.OrganizationID)][strings.TrimSpace(p.Name)] = true
		result.DefinitionsCreated++
	}
	return nil
}
