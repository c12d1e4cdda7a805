package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"
	"time"
)

// TelegramSender delivers alerts via the Telegram Bot API as HTML-formatted
// messages.
type TelegramSender struct {
	token  string
	chatID string
	client *http.Client
}

// NewTelegramSender creates a TelegramSender for the given bot token and
// chat ID.
func NewTelegramSender(token, chatID string) *TelegramSender {
	return &TelegramSender{
		token:  token,
		chatID: chatID,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Send posts the message to the configured chat via sendMessage. Field
// labels and untrusted values are HTML-escaped; tickers and errors routinely
// contain characters Telegram would otherwise reject as markup.
func (t *TelegramSender) Send(ctx context.Context, msg Message) error {
	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.token)

	payload := map[string]string{
		"chat_id":    t.chatID,
		"text":       renderTelegram(msg),
		"parse_mode": "HTML",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("telegram: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("telegram: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	return nil
}

func renderTelegram(msg Message) string {
	var b strings.Builder
	b.WriteString(severityGlyph(msg.Severity))
	fmt.Fprintf(&b, " <b>%s</b>", html.EscapeString(msg.Title))
	if msg.Body != "" {
		b.WriteByte('\n')
		b.WriteString(html.EscapeString(msg.Body))
	}
	for _, f := range msg.Fields {
		fmt.Fprintf(&b, "\n%s: <b>%s</b>",
			html.EscapeString(f.Label), html.EscapeString(f.Value))
	}
	return b.String()
}

func severityGlyph(s Severity) string {
	switch s {
	case SeverityTrade:
		return "\U0001F4B0" // money bag
	case SeverityWarn:
		return "⚠️" // warning sign
	default:
		return "ℹ️" // information
	}
}

// Name returns the sender identifier.
func (t *TelegramSender) Name() string {
	return "telegram"
}
