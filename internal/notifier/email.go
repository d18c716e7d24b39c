package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// EmailClient delivers customer notifications through an external mail API.
// With no credentials configured the client stays disabled and every send is
// logged and skipped, which keeps local development working without a mail
// provider.
type EmailClient struct {
	logger    *slog.Logger
	apiKey    string
	apiURL    string
	from      string
	client    *http.Client
	isEnabled bool
}

func NewEmailClient(logger *slog.Logger, apiKey, apiURL, from string) *EmailClient {
	isEnabled := apiKey != "" && apiURL != ""

	if !isEnabled {
		logger.Warn("Email client is disabled due to missing credentials")
	} else {
		logger.Info("Email client initialized", "api_url", apiURL)
	}

	return &EmailClient{
		logger:    logger,
		apiKey:    apiKey,
		apiURL:    apiURL,
		from:      from,
		client:    &http.Client{Timeout: 10 * time.Second},
		isEnabled: isEnabled,
	}
}

func (c *EmailClient) IsEnabled() bool {
	return c.isEnabled
}

type emailMessage struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

func (c *EmailClient) Send(ctx context.Context, to, subject, body string) error {
	if !c.isEnabled {
		c.logger.Warn("Email client is disabled, skipping send", "to", to, "subject", subject)
		return nil
	}

	payload, err := json.Marshal(emailMessage{
		From:    c.from,
		To:      to,
		Subject: subject,
		Body:    body,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal email payload: %w", err)
	}

	endpoint := fmt.Sprintf("%s/messages", c.apiURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create email request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send email request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("email API returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	c.logger.InfoContext(ctx, "Email sent", "to", to, "subject", subject)

	return nil
}
