package lark

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"go.uber.org/zap"
)

const (
	msgTypeText        = "text"
	msgTypeInteractive = "interactive"
)

// Messenger implements port.MessageSender on the Lark IM API.
// A Messenger without a client only logs what it would send.
type Messenger struct {
	client *SDKClient
	logger *zap.Logger
}

// NewMessenger creates a Messenger that delivers through Lark
func NewMessenger(client *SDKClient, logger *zap.Logger) *Messenger {
	return &Messenger{client: client, logger: logger}
}

// NewLogMessenger creates a Messenger that only logs messages
func NewLogMessenger(logger *zap.Logger) *Messenger {
	return &Messenger{logger: logger}
}

// SendMessage sends a text message to a user
func (m *Messenger) SendMessage(ctx context.Context, openID string, content string) error {
	if openID == "" {
		return errors.New("openID cannot be empty")
	}
	if content == "" {
		return errors.New("content cannot be empty")
	}

	body, err := json.Marshal(map[string]string{"text": content})
	if err != nil {
		return fmt.Errorf("failed to marshal text content: %w", err)
	}
	return m.send(ctx, openID, msgTypeText, string(body))
}

// SendCardMessage sends an interactive card to a user
func (m *Messenger) SendCardMessage(ctx context.Context, openID string, cardContent interface{}) error {
	if openID == "" {
		return errors.New("openID cannot be empty")
	}
	if cardContent == nil {
		return errors.New("cardContent cannot be nil")
	}

	cardJSON, err := json.Marshal(cardContent)
	if err != nil {
		return fmt.Errorf("failed to marshal card content: %w", err)
	}
	return m.send(ctx, openID, msgTypeInteractive, string(cardJSON))
}

func (m *Messenger) send(ctx context.Context, openID, msgType, content string) error {
	if m.client == nil {
		m.logger.Info("Lark disabled, message not sent",
			zap.String("open_id", openID),
			zap.String("msg_type", msgType),
			zap.Int("size", len(content)))
		return nil
	}

	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType("open_id").
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(openID).
			MsgType(msgType).
			Content(content).
			Build()).
		Build()

	resp, err := m.client.GetClient().Im.Message.Create(ctx, req)
	if err != nil {
		m.logger.Error("Failed to send message",
			zap.String("open_id", openID),
			zap.Error(err))
		return fmt.Errorf("failed to send message: %w", err)
	}
	if !resp.Success() {
		m.logger.Error("API returned failure",
			zap.String("open_id", openID),
			zap.Int("code", resp.Code),
			zap.String("msg", resp.Msg))
		return fmt.Errorf("API error: code=%d, msg=%s", resp.Code, resp.Msg)
	}

	messageID := ""
	if resp.Data != nil && resp.Data.MessageId != nil {
		messageID = *resp.Data.MessageId
	}
	m.logger.Info("Message sent successfully",
		zap.String("message_id", messageID),
		zap.String("open_id", openID))
	return nil
}
