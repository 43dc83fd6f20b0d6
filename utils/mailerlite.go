package utils

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"coachflow/models"
)

// MailerLiteClient mirrors new subscribers into MailerLite so the list
// stays usable from their dashboard. Sync is best-effort; a failure never
// blocks the funnel.
type MailerLiteClient struct {
	APIKey  string
	BaseURL string
	Client  *http.Client
	Logger  *log.Logger
}

func NewMailerLiteClient(apiKey string, logger *log.Logger) *MailerLiteClient {
	return &MailerLiteClient{
		APIKey:  apiKey,
		BaseURL: "https://connect.mailerlite.com/api",
		Client:  &http.Client{Timeout: 10 * time.Second},
		Logger:  logger,
	}
}

// Enabled reports whether an API key is configured
func (c *MailerLiteClient) Enabled() bool {
	return c != nil && c.APIKey != ""
}

// SyncSubscriber upserts the subscriber into MailerLite
func (c *MailerLiteClient) SyncSubscriber(sub *models.Subscriber) error {
	if !c.Enabled() {
		return nil
	}

	payload := map[string]interface{}{
		"email": sub.Email,
		"fields": map[string]string{
			"name":     sub.Name,
			"language": sub.Language,
			"source":   sub.Source,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, strings.TrimRight(c.BaseURL, "/")+"/subscribers", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("mailerlite returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return nil
}
