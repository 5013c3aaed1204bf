package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/approval-engine/internal/application/port"
	"github.com/garyjia/approval-engine/internal/domain/entity"
	domainwf "github.com/garyjia/approval-engine/internal/domain/workflow"
)

// MemberService maintains the organization roster used for assignee resolution
type MemberService interface {
	Upsert(ctx context.Context, member *entity.Member) (*entity.Member, error)
	List(ctx context.Context, organizationID string) ([]*entity.Member, error)
}

type memberServiceImpl struct {
	memberRepo port.MemberRepository
	logger     Logger
}

// NewMemberService creates a new MemberService
func NewMemberService(memberRepo port.MemberRepository, logger Logger) MemberService {
	return &memberServiceImpl{memberRepo: memberRepo, logger: logger}
}

func (s *memberServiceImpl) Upsert(ctx context.Context, member *entity.Member) (*entity.Member, error) {
	member.ID = strings.TrimSpace(member.ID)
	member.OrganizationID = strings.TrimSpace(member.OrganizationID)

	v := &domainwf.ValidationError{}
	if member.ID == "" {
		v.Addf("id is required")
	}
	if member.OrganizationID == "" {
		v.Addf("organization_id is required")
	}
	if err := v.ErrOrNil(); err != nil {
		return nil, err
	}

	existing, err := s.memberRepo.GetMember(ctx, member.ID)
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}
	if existing != nil && existing.OrganizationID != member.OrganizationID {
		return nil, domainwf.NewValidationError("member %s belongs to organization %s", member.ID, existing.OrganizationID)
	}

	member.UpdatedAt = time.Now()
	if err := s.memberRepo.Upsert(ctx, member); err != nil {
		s.logger.Error("Failed to upsert member", "error", err, "member_id", member.ID)
		return nil, fmt.Errorf("upsert member: %w", err)
	}

	s.logger.Info("Member saved",
		"member_id", member.ID,
		"organization_id", member.OrganizationID,
		"roles", member.Roles,
		"active", member.IsActive,
	)
	return member, nil
}

func (s *memberServiceImpl) List(ctx context.Context, organizationID string) ([]*entity.Member, error) {
	if organizationID == "" {
		return nil, domainwf.NewValidationError("organization_id is required")
	}
	members, err := s.memberRepo.ListByOrganization(ctx, organizationID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	return members, nil
}
