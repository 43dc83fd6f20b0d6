package utils

import (
	"errors"
	"testing"
)

func TestClassifyErrorMessage(t *testing.T) {
	tests := []struct {
		message string
		want    ErrorKind
	}{
		{"550 invalid email address", ErrKindInvalidRecipient},
		{"Recipient address is invalid", ErrKindInvalidRecipient},
		{"mailbox does not exist", ErrKindInvalidRecipient},
		{"401 Unauthorized", ErrKindUnauthorized},
		{"invalid API key provided", ErrKindUnauthorized},
		{"previous hard bounce on record", ErrKindHardBounce},
		{"address is blacklisted", ErrKindHardBounce},
		{"recipient unsubscribed from list", ErrKindUnsubscribed},
		{"address suppressed due to spam complaint", ErrKindUnsubscribed},
		{"rate limit exceeded", ErrKindRateLimited},
		{"429 too many requests", ErrKindRateLimited},
		{"i/o timeout", ErrKindTimeout},
		{"connection timed out", ErrKindTimeout},
		{"503 service unavailable", ErrKindServerError},
		{"internal server error", ErrKindServerError},
		{"something nobody has seen before", ErrKindUnknown},
		{"", ErrKindUnknown},
	}

	for _, tt := range tests {
		if got := ClassifyErrorMessage(tt.message); got != tt.want {
			t.Errorf("ClassifyErrorMessage(%q) = %s, want %s", tt.message, got, tt.want)
		}
	}
}

func TestRetryable(t *testing.T) {
	retryable := []ErrorKind{ErrKindTimeout, ErrKindRateLimited, ErrKindServerError, ErrKindUnknown}
	for _, kind := range retryable {
		if !Retryable(kind) {
			t.Errorf("Retryable(%s) = false, want true", kind)
		}
	}

	permanent := []ErrorKind{ErrKindInvalidRecipient, ErrKindUnauthorized, ErrKindHardBounce, ErrKindUnsubscribed}
	for _, kind := range permanent {
		if Retryable(kind) {
			t.Errorf("Retryable(%s) = true, want false", kind)
		}
	}
}

func TestRetryableError(t *testing.T) {
	// Structured kind wins over whatever the message says
	if RetryableError(string(ErrKindHardBounce), "timeout while sending") {
		t.Error("structured hard_bounce should not be retryable regardless of message text")
	}
	if !RetryableError(string(ErrKindTimeout), "invalid email") {
		t.Error("structured timeout should be retryable regardless of message text")
	}

	// Unknown or missing kind falls back to message classification
	if RetryableError("", "recipient address is invalid") {
		t.Error("invalid-recipient message should not be retryable")
	}
	if !RetryableError(string(ErrKindUnknown), "rate limit exceeded") {
		t.Error("rate-limited message should be retryable")
	}
	if !RetryableError("", "some novel failure") {
		t.Error("unclassifiable failures should default to retryable")
	}
}

func TestSendErrorUnwrapping(t *testing.T) {
	var err error = &SendError{Kind: ErrKindRateLimited, Message: "slow down"}

	var se *SendError
	if !errors.As(err, &se) {
		t.Fatal("errors.As failed to unwrap *SendError")
	}
	if se.Kind != ErrKindRateLimited {
		t.Errorf("unwrapped kind = %s, want %s", se.Kind, ErrKindRateLimited)
	}
}

func TestNoopMailerAlwaysSucceeds(t *testing.T) {
	m := &NoopMailer{}
	id, err := m.Send("someone@example.com", "Hello", "<p>Hi</p>")
	if err != nil {
		t.Fatalf("NoopMailer.Send returned error: %v", err)
	}
	if id == "" {
		t.Error("NoopMailer.Send returned empty message id")
	}
}
