package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

const twilioAPIBase = "https://api.twilio.com/2010-04-01"

// Twilio hard limit is 1600 characters per message body.
const maxSMSLength = 1600

var appLinkPattern = regexp.MustCompile(`(?i)https?://app\.[a-z0-9.-]+/`)

// TwilioSender sends SMS through the Twilio Messages API. An empty
// account SID leaves the sender in dry-run mode: messages are logged
// and reported successful without touching the provider.
type TwilioSender struct {
	accountSID string
	authToken  string
	from       string

	businessName  string
	brandedDomain string

	client *http.Client
	log    *slog.Logger
}

// NewTwilioSender builds the SMS adapter.
func NewTwilioSender(accountSID, authToken, from, businessName, brandedDomain string, log *slog.Logger) *TwilioSender {
	return &TwilioSender{
		accountSID:    accountSID,
		authToken:     authToken,
		from:          from,
		businessName:  businessName,
		brandedDomain: brandedDomain,
		client:        &http.Client{Timeout: 15 * time.Second},
		log:           log,
	}
}

// complianceDisclosure is the CTIA / TCPA text required on a first
// message to a recipient.
func (s *TwilioSender) complianceDisclosure() string {
	return fmt.Sprintf("%s: Mailbox & package notifications. Msg frequency varies. Msg&data rates may apply. Reply HELP for help, STOP to opt out.",
		s.businessName)
}

// brandLinks rewrites app-subdomain links onto the branded short domain.
func (s *TwilioSender) brandLinks(body string) string {
	if s.brandedDomain == "" {
		return body
	}
	return appLinkPattern.ReplaceAllString(body, "https://"+s.brandedDomain+"/")
}

// Compose builds the final SMS body: branded links, business-name
// prefix, first-message compliance disclosure, and the provider
// length cap.
func (s *TwilioSender) Compose(msg SMSMessage) string {
	body := s.brandLinks(msg.Body)

	if s.businessName != "" && !strings.HasPrefix(body, s.businessName) {
		body = s.businessName + ": " + body
	}
	if msg.FirstMessage {
		body = s.complianceDisclosure() + "\n\n" + body
	}
	if len(body) > maxSMSLength {
		body = body[:maxSMSLength-3] + "..."
	}
	return body
}

// SendSMS delivers one message, returning the outcome as a value.
func (s *TwilioSender) SendSMS(ctx context.Context, msg SMSMessage) SendResult {
	body := s.Compose(msg)

	if s.accountSID == "" {
		s.log.InfoContext(ctx, "SMS dry run", slog.String("to", msg.To), slog.String("body", body))
		return SendResult{Success: true, MessageID: "dry-run-" + uuid.NewString()}
	}

	form := url.Values{}
	form.Set("To", msg.To)
	form.Set("From", s.from)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", twilioAPIBase, s.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return SendResult{Error: err.Error()}
	}
	req.SetBasicAuth(s.accountSID, s.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		s.log.ErrorContext(ctx, "Twilio request failed", slog.String("to", msg.To), slog.Any("error", err))
		return SendResult{Error: err.Error()}
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode >= 300 {
		s.log.ErrorContext(ctx, "Twilio send rejected",
			slog.String("to", msg.To),
			slog.Int("status", resp.StatusCode))
		return SendResult{Error: fmt.Sprintf("twilio: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))}
	}

	var parsed struct {
		SID string `json:"sid"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return SendResult{Success: true}
	}
	return SendResult{Success: true, MessageID: parsed.SID}
}
