package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var severityPrefix = map[Severity]string{
	SeveritySuccess: "✅",
	SeverityWarning: "⚠️",
	SeverityInfo:    "ℹ️",
}

// TelegramSink pushes alerts through the Telegram Bot API.
type TelegramSink struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramSink constructs a Telegram-backed sink.
func NewTelegramSink(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramSink {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramSink{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_telegram").Logger(),
	}
}

func (s *TelegramSink) Success(ctx context.Context, title, description string) {
	s.deliver(ctx, SeveritySuccess, title, description)
}

func (s *TelegramSink) Warning(ctx context.Context, title, description string) {
	s.deliver(ctx, SeverityWarning, title, description)
}

func (s *TelegramSink) Info(ctx context.Context, title, description string) {
	s.deliver(ctx, SeverityInfo, title, description)
}

func (s *TelegramSink) deliver(ctx context.Context, severity Severity, title, description string) {
	if err := s.send(ctx, renderMessage(severity, title, description)); err != nil {
		s.logger.Warn().Err(err).Str("title", title).Msg("failed to dispatch telegram alert")
		return
	}
	s.logger.Info().Str("severity", string(severity)).Str("title", title).Msg("alert sent (Telegram)")
}

func (s *TelegramSink) send(ctx context.Context, text string) error {
	payload := map[string]string{
		"chat_id": s.chatID,
		"text":    text,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", s.baseURL, s.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram returned status %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("telegram returned ok=false")
		}
	}
	return nil
}

func renderMessage(severity Severity, title, description string) string {
	builder := strings.Builder{}
	if prefix, ok := severityPrefix[severity]; ok {
		builder.WriteString(prefix)
		builder.WriteString(" ")
	}
	builder.WriteString(title)
	if description != "" {
		builder.WriteString("\n")
		builder.WriteString(description)
	}
	return builder.String()
}

var _ Sink = (*TelegramSink)(nil)
