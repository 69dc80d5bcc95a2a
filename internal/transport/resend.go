package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const resendAPIURL = "https://api.resend.com/emails"

// ResendSender sends email through the Resend REST API. An empty API
// key leaves the sender in dry-run mode.
type ResendSender struct {
	apiKey string
	from   string
	client *http.Client
	log    *slog.Logger
}

// NewResendSender builds the email adapter.
func NewResendSender(apiKey, from string, log *slog.Logger) *ResendSender {
	return &ResendSender{
		apiKey: apiKey,
		from:   from,
		client: &http.Client{Timeout: 15 * time.Second},
		log:    log,
	}
}

type resendRequest struct {
	From    string            `json:"from"`
	To      []string          `json:"to"`
	Subject string            `json:"subject"`
	Text    string            `json:"text,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	Tags    []Tag             `json:"tags,omitempty"`
}

// buildHeaders returns compliance headers for the message. Marketing
// mail (anything carrying an unsubscribe URL) gets the RFC 8058
// one-click List-Unsubscribe pair; transactional mail gets a priority
// hint so ISPs route it correctly.
func buildHeaders(unsubscribeURL string) map[string]string {
	if unsubscribeURL != "" {
		return map[string]string{
			"List-Unsubscribe":      "<" + unsubscribeURL + ">",
			"List-Unsubscribe-Post": "List-Unsubscribe=One-Click",
		}
	}
	return map[string]string{"X-Priority": "1"}
}

// categoryTag ensures every message carries a category tag for
// provider-side filtering.
func categoryTag(tags []Tag, unsubscribeURL string) []Tag {
	for _, t := range tags {
		if t.Name == "category" {
			return tags
		}
	}
	category := "transactional"
	if unsubscribeURL != "" {
		category = "marketing"
	}
	return append(tags, Tag{Name: "category", Value: category})
}

// SendEmail delivers one email, returning the outcome as a value.
func (s *ResendSender) SendEmail(ctx context.Context, msg EmailMessage) SendResult {
	if s.apiKey == "" {
		s.log.InfoContext(ctx, "Email dry run",
			slog.String("to", msg.To),
			slog.String("subject", msg.Subject))
		return SendResult{Success: true, MessageID: "dry-run-" + uuid.NewString()}
	}

	payload := resendRequest{
		From:    s.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Text:    msg.Text,
		Headers: buildHeaders(msg.UnsubscribeURL),
		Tags:    categoryTag(msg.Tags, msg.UnsubscribeURL),
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return SendResult{Error: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, resendAPIURL, bytes.NewReader(data))
	if err != nil {
		return SendResult{Error: err.Error()}
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		s.log.ErrorContext(ctx, "Resend request failed", slog.String("to", msg.To), slog.Any("error", err))
		return SendResult{Error: err.Error()}
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode >= 300 {
		s.log.ErrorContext(ctx, "Resend send rejected",
			slog.String("to", msg.To),
			slog.Int("status", resp.StatusCode))
		return SendResult{Error: fmt.Sprintf("resend: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))}
	}

	var parsed struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return SendResult{Success: true}
	}
	return SendResult{Success: true, MessageID: parsed.ID}
}
