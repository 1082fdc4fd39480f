package solapi

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/garyjia/access-portal/internal/application/port"
)

// DefaultBaseURL is the Solapi REST endpoint
const DefaultBaseURL = "https://api.solapi.com"

const sendPath = "/messages/v4/send"

// Config holds Solapi credentials
type Config struct {
	APIKey    string
	APISecret string
	// From is the registered sender number
	From    string
	Subject string
	BaseURL string
	Timeout time.Duration
}

type message struct {
	To      string `json:"to"`
	From    string `json:"from"`
	Text    string `json:"text"`
	Type    string `json:"type"`
	Subject string `json:"subject,omitempty"`
}

type sendRequest struct {
	Message message `json:"message"`
}

type sendResponse struct {
	MessageID     string `json:"messageId"`
	StatusCode    string `json:"statusCode"`
	StatusMessage string `json:"statusMessage"`
}

type errorResponse struct {
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

// Client implements port.SMSSender against the Solapi messages API
type Client struct {
	http   *resty.Client
	cfg    Config
	now    func() time.Time
	salt   func() string
	logger *zap.Logger
}

// NewClient creates a new Solapi client
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	return &Client{
		http: resty.New().
			SetBaseURL(cfg.BaseURL).
			SetTimeout(cfg.Timeout).
			SetHeader("Content-Type", "application/json"),
		cfg:    cfg,
		now:    time.Now,
		salt:   func() string { return strings.ReplaceAll(uuid.NewString(), "-", "") },
		logger: logger,
	}
}

// SendSMS sends text as an LMS
func (c *Client) SendSMS(ctx context.Context, to, text string) error {
	to = NormalizePhone(to)
	if to == "" {
		return fmt.Errorf("recipient phone is required")
	}
	if text == "" {
		return fmt.Errorf("content cannot be empty")
	}

	req := sendRequest{Message: message{
		To:      to,
		From:    NormalizePhone(c.cfg.From),
		Text:    text,
		Type:    "LMS",
		Subject: c.cfg.Subject,
	}}

	result := &sendResponse{}
	apiErr := &errorResponse{}

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Authorization", c.authorization()).
		SetBody(req).
		SetResult(result).
		SetError(apiErr).
		Post(sendPath)
	if err != nil {
		c.logger.Error("Failed to send SMS", zap.String("to", to), zap.Error(err))
		return fmt.Errorf("failed to send SMS: %w", err)
	}

	if resp.IsError() {
		c.logger.Error("SMS API returned failure",
			zap.String("to", to),
			zap.Int("status", resp.StatusCode()),
			zap.String("error_code", apiErr.ErrorCode),
			zap.String("error_message", apiErr.ErrorMessage))
		return fmt.Errorf("API error: status=%d, code=%s, msg=%s", resp.StatusCode(), apiErr.ErrorCode, apiErr.ErrorMessage)
	}

	c.logger.Info("SMS sent",
		zap.String("to", to),
		zap.String("message_id", result.MessageID),
		zap.String("status_code", result.StatusCode))
	return nil
}

// authorization builds the HMAC-SHA256 header: signature = hmac(secret, date+salt)
func (c *Client) authorization() string {
	date := c.now().UTC().Format(time.RFC3339)
	salt := c.salt()
	return fmt.Sprintf("HMAC-SHA256 apiKey=%s, date=%s, salt=%s, signature=%s",
		c.cfg.APIKey, date, salt, Sign(c.cfg.APISecret, date, salt))
}

// Sign returns the hex HMAC-SHA256 of date+salt keyed by secret
func Sign(secret, date, salt string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(date + salt))
	return hex.EncodeToString(mac.Sum(nil))
}

// NormalizePhone strips separators from a phone number
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

var _ port.SMSSender = (*Client)(nil)
