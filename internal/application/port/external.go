package port

import (
	"context"
	"io"

	"github.com/garyjia/approval-engine/internal/domain/entity"
)

// StepNotification tells approvers that an instance is waiting for them
type StepNotification struct {
	InstanceID     string
	OrganizationID string
	DefinitionName string
	StepName       string
	SubmittedByID  string
	Approvers      []*entity.Member
}

// OutcomeNotification tells the submitter how an instance ended
type OutcomeNotification struct {
	InstanceID     string
	OrganizationID string
	Status         string
	Reason         string
	Submitter      *entity.Member
}

// Notifier delivers workflow notifications to members
type Notifier interface {
	NotifyStepEntered(ctx context.Context, n StepNotification) error
	// NotifyStepStalled reaches the organization admins listed in n.Approvers
	NotifyStepStalled(ctx context.Context, n StepNotification) error
	NotifyOutcome(ctx context.Context, n OutcomeNotification) error
}

// MessageSender sends chat messages to a user of the messaging platform
type MessageSender interface {
	SendMessage(ctx context.Context, openID string, content string) error
	SendCardMessage(ctx context.Context, openID string, cardContent interface{}) error
}

// HistoryExporter renders an instance's execution trail as a document
type HistoryExporter interface {
	Export(ctx context.Context, instance *entity.WorkflowInstance, def *entity.WorkflowDefinition, records []*entity.StepExecutionRecord, w io.Writer) error
}
