package lark

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/approval-engine/internal/application/port"
	"github.com/garyjia/approval-engine/internal/domain/entity"
)

type sentCard struct {
	openID string
	card   map[string]interface{}
}

type mockMessageSender struct {
	cards   []sentCard
	failFor string
}

func (m *mockMessageSender) SendMessage(ctx context.Context, openID string, content string) error {
	return nil
}

func (m *mockMessageSender) SendCardMessage(ctx context.Context, openID string, cardContent interface{}) error {
	if openID == m.failFor {
		return errors.New("rate limited")
	}
	m.cards = append(m.cards, sentCard{openID: openID, card: cardContent.(map[string]interface{})})
	return nil
}

func headerOf(card map[string]interface{}) (string, string) {
	header := card["header"].(map[string]interface{})
	title := header["title"].(map[string]interface{})
	return header["template"].(string), title["content"].(string)
}

func TestCardNotifier_NotifyStepEntered(t *testing.T) {
	sender := &mockMessageSender{}
	n := NewCardNotifier(sender, zap.NewNop())

	err := n.NotifyStepEntered(context.Background(), port.StepNotification{
		InstanceID:     "inst-1",
		DefinitionName: "Expense approval",
		StepName:       "manager",
		SubmittedByID:  "alice",
		Approvers: []*entity.Member{
			{ID: "mgr-1", LarkOpenID: "ou_1"},
			{ID: "mgr-2"},
			nil,
		},
	})
	require.NoError(t, err)

	require.Len(t, sender.cards, 1)
	assert.Equal(t, "ou_1", sender.cards[0].openID)
	template, title := headerOf(sender.cards[0].card)
	assert.Equal(t, "blue", template)
	assert.Equal(t, "Approval required", title)
}

func TestCardNotifier_CollectsSendErrors(t *testing.T) {
	sender := &mockMessageSender{failFor: "ou_bad"}
	n := NewCardNotifier(sender, zap.NewNop())

	err := n.NotifyStepStalled(context.Background(), port.StepNotification{
		InstanceID: "inst-1",
		StepName:   "finance",
		Approvers: []*entity.Member{
			{ID: "bad", LarkOpenID: "ou_bad"},
			{ID: "good", LarkOpenID: "ou_good"},
		},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "member bad")
	require.Len(t, sender.cards, 1, "a failing recipient must not stop the others")
	assert.Equal(t, "ou_good", sender.cards[0].openID)
}

func TestCardNotifier_NotifyOutcome(t *testing.T) {
	tests := []struct {
		status   string
		template string
	}{
		{entity.StatusApproved, "green"},
		{entity.StatusRejected, "red"},
		{entity.StatusCancelled, "grey"},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			sender := &mockMessageSender{}
			n := NewCardNotifier(sender, zap.NewNop())

			err := n.NotifyOutcome(context.Background(), port.OutcomeNotification{
				InstanceID: "inst-1",
				Status:     tt.status,
				Submitter:  &entity.Member{ID: "alice", LarkOpenID: "ou_alice"},
			})
			require.NoError(t, err)
			require.Len(t, sender.cards, 1)
			template, title := headerOf(sender.cards[0].card)
			assert.Equal(t, tt.template, template)
			assert.Equal(t, "Request "+tt.status, title)
		})
	}
}

func TestMessenger_LogOnly(t *testing.T) {
	m := NewLogMessenger(zap.NewNop())
	ctx := context.Background()

	assert.NoError(t, m.SendMessage(ctx, "ou_1", `quote " and newline`+"\n"))
	assert.NoError(t, m.SendCardMessage(ctx, "ou_1", buildCard("blue", "t", nil, "inst-1")))
	assert.Error(t, m.SendMessage(ctx, "", "hi"))
	assert.Error(t, m.SendMessage(ctx, "ou_1", ""))
	assert.Error(t, m.SendCardMessage(ctx, "ou_1", nil))
}
