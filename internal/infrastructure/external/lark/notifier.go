package lark

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/approval-engine/internal/application/port"
	"github.com/garyjia/approval-engine/internal/domain/entity"
)

// CardNotifier implements port.Notifier with interactive Lark cards
type CardNotifier struct {
	sender port.MessageSender
	logger *zap.Logger
}

// NewCardNotifier creates a new CardNotifier
func NewCardNotifier(sender port.MessageSender, logger *zap.Logger) *CardNotifier {
	return &CardNotifier{sender: sender, logger: logger}
}

// NotifyStepEntered sends a pending-approval card to every approver with a Lark identity
func (n *CardNotifier) NotifyStepEntered(ctx context.Context, sn port.StepNotification) error {
	card := buildCard("blue", "Approval required", []string{
		fmt.Sprintf("**Workflow**\n%s", sn.DefinitionName),
		fmt.Sprintf("**Step**\n%s", sn.StepName),
		fmt.Sprintf("**Submitted by**\n%s", sn.SubmittedByID),
	}, sn.InstanceID)
	return n.broadcast(ctx, sn.Approvers, card)
}

// NotifyStepStalled warns admins that no one can act on a step
func (n *CardNotifier) NotifyStepStalled(ctx context.Context, sn port.StepNotification) error {
	card := buildCard("orange", "Approval step stalled", []string{
		fmt.Sprintf("**Step**\n%s", sn.StepName),
		"**Reason**\nNo active member can act on this step",
	}, sn.InstanceID)
	return n.broadcast(ctx, sn.Approvers, card)
}

// NotifyOutcome sends the final status to the submitter
func (n *CardNotifier) NotifyOutcome(ctx context.Context, on port.OutcomeNotification) error {
	template := "grey"
	switch on.Status {
	case entity.StatusApproved:
		template = "green"
	case entity.StatusRejected:
		template = "red"
	}

	fields := []string{fmt.Sprintf("**Status**\n%s", on.Status)}
	if on.Reason != "" {
		fields = append(fields, fmt.Sprintf("**Reason**\n%s", on.Reason))
	}
	card := buildCard(template, "Request "+on.Status, fields, on.InstanceID)
	return n.broadcast(ctx, []*entity.Member{on.Submitter}, card)
}

func (n *CardNotifier) broadcast(ctx context.Context, members []*entity.Member, card map[string]interface{}) error {
	var errs []error
	for _, m := range members {
		if m == nil {
			continue
		}
		if m.LarkOpenID == "" {
			n.logger.Debug("Member has no Lark identity, skipping", zap.String("member_id", m.ID))
			continue
		}
		if err := n.sender.SendCardMessage(ctx, m.LarkOpenID, card); err != nil {
			errs = append(errs, fmt.Errorf("member %s: %w", m.ID, err))
		}
	}
	return errors.Join(errs...)
}

// buildCard lays out short lark_md fields followed by the instance reference
func buildCard(template, title string, fields []string, instanceID string) map[string]interface{} {
	divFields := make([]map[string]interface{}, 0, len(fields))
	for _, f := range fields {
		divFields = append(divFields, map[string]interface{}{
			"is_short": true,
			"text": map[string]interface{}{
				"tag":     "lark_md",
				"content": f,
			},
		})
	}

	return map[string]interface{}{
		"config": map[string]interface{}{
			"wide_screen_mode": true,
		},
		"header": map[string]interface{}{
			"template": template,
			"title": map[string]interface{}{
				"tag":     "plain_text",
				"content": title,
			},
		},
		"elements": []interface{}{
			map[string]interface{}{
				"tag":    "div",
				"fields": divFields,
			},
			map[string]interface{}{
				"tag": "hr",
			},
			map[string]interface{}{
				"tag": "note",
				"elements": []map[string]interface{}{
					{
						"tag":     "plain_text",
						"content": "Instance: " + instanceID,
					},
				},
			},
		},
	}
}
