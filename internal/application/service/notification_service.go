package service

import (
	"context"
	"fmt"

	"github.com/garyjia/approval-engine/internal/application/dispatcher"
	"github.com/garyjia/approval-engine/internal/application/port"
	"github.com/garyjia/approval-engine/internal/domain/entity"
	"github.com/garyjia/approval-engine/internal/domain/event"
)

// NotificationService turns workflow events into member notifications
type NotificationService interface {
	// Register subscribes the service to the events it handles
	Register(d dispatcher.Dispatcher)
	HandleStepEntered(ctx context.Context, evt *event.Event) error
	HandleStepStalled(ctx context.Context, evt *event.Event) error
	HandleInstanceClosed(ctx context.Context, evt *event.Event) error
}

type notificationServiceImpl struct {
	instanceRepo port.InstanceRepository
	memberRepo   port.MemberRepository
	notifier     port.Notifier
	logger       Logger
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(
	instanceRepo port.InstanceRepository,
	memberRepo port.MemberRepository,
	notifier port.Notifier,
	logger Logger,
) NotificationService {
	return &notificationServiceImpl{
		instanceRepo: instanceRepo,
		memberRepo:   memberRepo,
		notifier:     notifier,
		logger:       logger,
	}
}

func (s *notificationServiceImpl) Register(d dispatcher.Dispatcher) {
	d.SubscribeNamed(event.TypeStepEntered, "notify-approvers", s.HandleStepEntered)
	d.SubscribeNamed(event.TypeStepStalled, "notify-admins", s.HandleStepStalled)
	for _, t := range []event.Type{event.TypeInstanceApproved, event.TypeInstanceRejected, event.TypeInstanceCancelled} {
		d.SubscribeNamed(t, "notify-submitter", s.HandleInstanceClosed)
	}
}

// HandleStepEntered notifies the approvers resolved for the entered step
func (s *notificationServiceImpl) HandleStepEntered(ctx context.Context, evt *event.Event) error {
	ids := evt.GetPayloadStrings(event.PayloadApprovers)
	if len(ids) == 0 {
		return nil
	}

	approvers := make([]*entity.Member, 0, len(ids))
	for _, id := range ids {
		member, err := s.memberRepo.GetMember(ctx, id)
		if err != nil {
			s.logger.Error("Failed to load approver", "error", err, "member_id", id, "instance_id", evt.InstanceID)
			return fmt.Errorf("get member %s: %w", id, err)
		}
		if member == nil || !member.IsActive {
			continue
		}
		approvers = append(approvers, member)
	}
	if len(approvers) == 0 {
		return nil
	}

	n := port.StepNotification{
		InstanceID:     evt.InstanceID,
		OrganizationID: evt.GetPayloadString(event.PayloadOrganization),
		DefinitionName: evt.GetPayloadString(event.PayloadDefinition),
		StepName:       evt.GetPayloadString(event.PayloadStepName),
		SubmittedByID:  evt.GetPayloadString(event.PayloadSubmittedBy),
		Approvers:      approvers,
	}
	if err := s.notifier.NotifyStepEntered(ctx, n); err != nil {
		s.logger.Error("Failed to notify approvers", "error", err, "instance_id", evt.InstanceID, "step", n.StepName)
		return fmt.Errorf("notify step entered: %w", err)
	}

	s.logger.Info("Approvers notified",
		"instance_id", evt.InstanceID,
		"step", n.StepName,
		"approvers", len(approvers),
	)
	return nil
}

// HandleStepStalled warns the organization admins about a step nobody can act on
func (s *notificationServiceImpl) HandleStepStalled(ctx context.Context, evt *event.Event) error {
	orgID := evt.GetPayloadString(event.PayloadOrganization)
	stepName := evt.GetPayloadString(event.PayloadStepName)
	s.logger.Warn("Workflow step stalled", "instance_id", evt.InstanceID, "step", stepName, "organization_id", orgID)

	members, err := s.memberRepo.ListByOrganization(ctx, orgID)
	if err != nil {
		return fmt.Errorf("list organization members: %w", err)
	}
	var admins []*entity.Member
	for _, m := range members {
		if m.IsActive && m.IsAdmin {
			admins = append(admins, m)
		}
	}
	if len(admins) == 0 {
		return nil
	}

	err = s.notifier.NotifyStepStalled(ctx, port.StepNotification{
		InstanceID:     evt.InstanceID,
		OrganizationID: orgID,
		StepName:       stepName,
		Approvers:      admins,
	})
	if err != nil {
		return fmt.Errorf("notify step stalled: %w", err)
	}
	return nil
}

// HandleInstanceClosed tells the submitter the final status
func (s *notificationServiceImpl) HandleInstanceClosed(ctx context.Context, evt *event.Event) error {
	instance, err := s.instanceRepo.GetByID(ctx, evt.InstanceID)
	if err != nil {
		return fmt.Errorf("get instance: %w", err)
	}
	if instance == nil {
		s.logger.Warn("Closed instance not found", "instance_id", evt.InstanceID)
		return nil
	}

	submitter, err := s.memberRepo.GetMember(ctx, instance.SubmittedByID)
	if err != nil {
		return fmt.Errorf("get submitter: %w", err)
	}
	if submitter == nil {
		return nil
	}

	err = s.notifier.NotifyOutcome(ctx, port.OutcomeNotification{
		InstanceID:     instance.ID,
		OrganizationID: instance.OrganizationID,
		Status:         instance.Status,
		Reason:         evt.GetPayloadString(event.PayloadReason),
		Submitter:      submitter,
	})
	if err != nil {
		s.logger.Error("Failed to notify submitter", "error", err, "instance_id", instance.ID)
		return fmt.Errorf("notify outcome: %w", err)
	}
	return nil
}
