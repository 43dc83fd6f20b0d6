package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/gomail.v2"

	"coachflow/config"
)

// ErrorKind is the structured failure taxonomy returned by delivery
// adapters. The retry policy keys off the kind; free-text matching is only
// a fallback for errors of unknown kind.
type ErrorKind string

const (
	ErrKindTimeout          ErrorKind = "timeout"
	ErrKindRateLimited      ErrorKind = "rate_limited"
	ErrKindServerError      ErrorKind = "server_error"
	ErrKindInvalidRecipient ErrorKind = "invalid_recipient"
	ErrKindUnauthorized     ErrorKind = "unauthorized"
	ErrKindHardBounce       ErrorKind = "hard_bounce"
	ErrKindUnsubscribed     ErrorKind = "unsubscribed"
	ErrKindUnknown          ErrorKind = "unknown"
)

// SendError is a delivery failure with a structured kind
type SendError struct {
	Kind    ErrorKind
	Message string
}

func (e *SendError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Retryable reports whether a failure of the given kind is worth retrying
func Retryable(kind ErrorKind) bool {
	switch kind {
	case ErrKindInvalidRecipient, ErrKindUnauthorized, ErrKindHardBounce, ErrKindUnsubscribed:
		return false
	default:
		// timeout, rate_limited, server_error and unknown all get retried
		return true
	}
}

var permanentErrorPatterns = []string{
	"invalid email",
	"invalid address",
	"invalid recipient",
	"address is invalid",
	"does not exist",
	"no such user",
	"unauthorized",
	"forbidden",
	"api key",
	"hard bounce",
	"blacklist",
	"blocked",
	"unsubscribed",
	"suppressed",
	"complained",
	"spam",
}

var transientErrorPatterns = []string{
	"rate limit",
	"too many requests",
	"timeout",
	"timed out",
	"connection refused",
	"connection reset",
	"temporarily",
	"try again",
	"service unavailable",
	"internal server error",
	"bad gateway",
	"502",
	"503",
	"504",
}

// ClassifyErrorMessage maps legacy free-text error messages onto the kind
// taxonomy. Permanent patterns win over transient ones; anything without a
// match comes back as unknown (treated retryable).
func ClassifyErrorMessage(message string) ErrorKind {
	lower := strings.ToLower(message)
	for _, p := range permanentErrorPatterns {
		if strings.Contains(lower, p) {
			switch p {
			case "unauthorized", "forbidden", "api key":
				return ErrKindUnauthorized
			case "hard bounce", "blacklist", "blocked":
				return ErrKindHardBounce
			case "unsubscribed", "suppressed", "complained", "spam":
				return ErrKindUnsubscribed
			default:
				return ErrKindInvalidRecipient
			}
		}
	}
	for _, p := range transientErrorPatterns {
		if strings.Contains(lower, p) {
			switch p {
			case "rate limit", "too many requests":
				return ErrKindRateLimited
			case "timeout", "timed out":
				return ErrKindTimeout
			default:
				return ErrKindServerError
			}
		}
	}
	return ErrKindUnknown
}

// RetryableError decides retryability for a stored send failure. The
// structured kind is authoritative when present; otherwise the free-text
// message is classified.
func RetryableError(kind, message string) bool {
	if kind != "" && kind != string(ErrKindUnknown) {
		return Retryable(ErrorKind(kind))
	}
	return Retryable(ClassifyErrorMessage(message))
}

// Mailer wraps a transactional email provider. Send returns the provider's
// opaque message id; failures are *SendError values.
type Mailer interface {
	Send(to, subject, html string) (string, error)
}

// NewMailer picks a provider from config: Mailgun when API credentials are
// set, SMTP as a fallback, and a simulated no-op sender when nothing is
// configured so the app never fails startup over missing keys.
func NewMailer(cfg *config.Config, logger *log.Logger) Mailer {
	if cfg.Mailgun.APIKey != "" && cfg.Mailgun.Domain != "" {
		logger.Println("Using Mailgun delivery adapter")
		return &MailgunMailer{
			BaseURL:   cfg.Mailgun.BaseURL,
			Domain:    cfg.Mailgun.Domain,
			APIKey:    cfg.Mailgun.APIKey,
			FromEmail: cfg.FromEmail,
			FromName:  cfg.FromName,
			Client:    &http.Client{Timeout: 15 * time.Second},
		}
	}
	if cfg.SMTP.Host != "" {
		logger.Println("Using SMTP delivery adapter")
		return &SMTPMailer{
			Host:      cfg.SMTP.Host,
			Port:      cfg.SMTP.Port,
			Username:  cfg.SMTP.Username,
			Password:  cfg.SMTP.Password,
			FromEmail: cfg.FromEmail,
			FromName:  cfg.FromName,
		}
	}
	logger.Println("⚠️ No email provider configured - sends will be simulated")
	return &NoopMailer{Logger: logger}
}

// MailgunMailer sends through the Mailgun HTTP API
type MailgunMailer struct {
	BaseURL   string
	Domain    string
	APIKey    string
	FromEmail string
	FromName  string
	Client    *http.Client
}

func (m *MailgunMailer) Send(to, subject, html string) (string, error) {
	form := url.Values{}
	form.Set("from", fmt.Sprintf("%s <%s>", m.FromName, m.FromEmail))
	form.Set("to", to)
	form.Set("subject", subject)
	form.Set("html", html)

	endpoint := fmt.Sprintf("%s/%s/messages", strings.TrimRight(m.BaseURL, "/"), m.Domain)
	req, err := http.NewRequest(http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", &SendError{Kind: ErrKindUnknown, Message: err.Error()}
	}
	req.SetBasicAuth("api", m.APIKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.Client.Do(req)
	if err != nil {
		kind := ErrKindUnknown
		if isTimeoutErr(err) {
			kind = ErrKindTimeout
		}
		return "", &SendError{Kind: kind, Message: err.Error()}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		var parsed struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(body, &parsed); err != nil || parsed.ID == "" {
			// Provider accepted the message but the id is unusable; make
			// one up so the send still has a stable reference.
			return uuid.New().String(), nil
		}
		return strings.Trim(parsed.ID, "<>"), nil
	}

	msg := fmt.Sprintf("mailgun returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	return "", &SendError{Kind: kindForStatus(resp.StatusCode, string(body)), Message: msg}
}

func kindForStatus(status int, body string) ErrorKind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrKindUnauthorized
	case status == http.StatusTooManyRequests:
		return ErrKindRateLimited
	case status >= 500:
		return ErrKindServerError
	case status == http.StatusBadRequest:
		if k := ClassifyErrorMessage(body); k != ErrKindUnknown {
			return k
		}
		return ErrKindInvalidRecipient
	default:
		return ErrKindUnknown
	}
}

func isTimeoutErr(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "timeout")
}

// SMTPMailer sends through a plain SMTP relay
type SMTPMailer struct {
	Host      string
	Port      int
	Username  string
	Password  string
	FromEmail string
	FromName  string
}

func (m *SMTPMailer) Send(to, subject, html string) (string, error) {
	msg := gomail.NewMessage()
	msg.SetHeader("From", fmt.Sprintf("%s <%s>", m.FromName, m.FromEmail))
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	messageID := fmt.Sprintf("<%s@%s>", uuid.New().String(), m.Host)
	msg.SetHeader("Message-ID", messageID)
	msg.SetBody("text/html", html)

	d := gomail.NewDialer(m.Host, m.Port, m.Username, m.Password)
	if err := d.DialAndSend(msg); err != nil {
		return "", &SendError{Kind: ClassifyErrorMessage(err.Error()), Message: err.Error()}
	}
	return messageID, nil
}

// NoopMailer simulates successful delivery when no provider is configured
type NoopMailer struct {
	Logger *log.Logger
}

func (m *NoopMailer) Send(to, subject, html string) (string, error) {
	id := "simulated-" + uuid.New().String()
	if m.Logger != nil {
		m.Logger.Printf("Simulated send to %s (%q)", to, subject)
	}
	return id, nil
}
