package lark

import (
	"context"
	"encoding/json"
	"fmt"

	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"go.uber.org/zap"

	"github.com/garyjia/access-portal/internal/application/port"
)

// Messenger implements port.StaffAlerter by posting text to a group chat
type Messenger struct {
	sdk    *SDKClient
	logger *zap.Logger
}

// NewMessenger creates a new Lark alert sender
func NewMessenger(sdk *SDKClient, logger *zap.Logger) *Messenger {
	return &Messenger{
		sdk:    sdk,
		logger: logger,
	}
}

// SendAlert posts text to the configured chat
func (m *Messenger) SendAlert(ctx context.Context, text string) error {
	if m.sdk.ChatID() == "" {
		return fmt.Errorf("lark chat id is not configured")
	}
	if text == "" {
		return fmt.Errorf("content cannot be empty")
	}

	content, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	_, err = m.send(ctx, "chat_id", m.sdk.ChatID(), "text", string(content))
	return err
}

func (m *Messenger) send(ctx context.Context, receiveIDType, receiveID, msgType, content string) (string, error) {
	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(receiveIDType).
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(receiveID).
			MsgType(msgType).
			Content(content).
			Build()).
		Build()

	resp, err := m.sdk.GetClient().Im.Message.Create(ctx, req)
	if err != nil {
		m.logger.Error("Failed to send message",
			zap.String("receive_id", receiveID),
			zap.Error(err))
		return "", fmt.Errorf("failed to send message: %w", err)
	}

	if !resp.Success() {
		m.logger.Error("API returned failure",
			zap.String("receive_id", receiveID),
			zap.Int("code", resp.Code),
			zap.String("msg", resp.Msg))
		return "", fmt.Errorf("API error: code=%d, msg=%s", resp.Code, resp.Msg)
	}

	messageID := ""
	if resp.Data != nil && resp.Data.MessageId != nil {
		messageID = *resp.Data.MessageId
	}

	m.logger.Info("Message sent successfully",
		zap.String("message_id", messageID),
		zap.String("receive_id", receiveID))

	return messageID, nil
}

var _ port.StaffAlerter = (*Messenger)(nil)
