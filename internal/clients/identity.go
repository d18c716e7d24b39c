package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// IdentityClient resolves bearer tokens to back-office operators through the
// identity provider API. Without credentials it falls back to a single
// static admin token, which keeps local development working offline.
type IdentityClient struct {
	logger     *slog.Logger
	apiKey     string
	apiURL     string
	adminToken string
	adminEmail string
	client     *http.Client
	isEnabled  bool
}

// Operator is the verified identity attached to every admin request.
type Operator struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

func NewIdentityClient(logger *slog.Logger, apiKey, apiURL, adminToken, adminEmail string) *IdentityClient {
	isEnabled := apiKey != "" && apiURL != ""

	if !isEnabled {
		logger.Warn("Identity client is disabled, using static admin token")
	} else {
		logger.Info("Identity client initialized", "api_url", apiURL)
	}

	return &IdentityClient{
		logger:     logger,
		apiKey:     apiKey,
		apiURL:     apiURL,
		adminToken: adminToken,
		adminEmail: adminEmail,
		client:     &http.Client{Timeout: 10 * time.Second},
		isEnabled:  isEnabled,
	}
}

func (c *IdentityClient) IsEnabled() bool {
	return c.isEnabled
}

// VerifyToken resolves the bearer token to an operator. A nil operator with
// a nil error means the token is not valid.
func (c *IdentityClient) VerifyToken(ctx context.Context, token string) (*Operator, error) {
	if token == "" {
		return nil, nil
	}

	if !c.isEnabled {
		if c.adminToken != "" && token == c.adminToken {
			return &Operator{Email: c.adminEmail, Role: "admin"}, nil
		}
		return nil, nil
	}

	endpoint := fmt.Sprintf("%s/tokens/verify", c.apiURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create identity request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call identity provider: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("identity provider returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var operator Operator
	if err = json.NewDecoder(resp.Body).Decode(&operator); err != nil {
		return nil, fmt.Errorf("failed to decode identity response: %w", err)
	}

	c.logger.DebugContext(ctx, "Token verified", "operator", operator.Email, "role", operator.Role)

	return &operator, nil
}
