// Package identity talks to the external authentication provider. The
// application never sees credentials; it exchanges the provider's federated
// tokens for a stable uid.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"tradepost/internal/domain/fault"
)

// Identity is the provider's view of an authenticated account.
type Identity struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

type Client struct {
	HTTPClient *http.Client
	Endpoint   string
	APIKey     string
	Logger     *slog.Logger
}

type verifyRequest struct {
	Token string `json:"token"`
}

// Verify exchanges a federated identity token for the account it belongs to.
func (c *Client) Verify(ctx context.Context, token string) (Identity, error) {
	var zero Identity
	if c == nil || c.HTTPClient == nil {
		return zero, errors.New("identity: http client not configured")
	}
	if c.Endpoint == "" {
		return zero, errors.New("identity: endpoint not configured")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return zero, fault.New(fault.Unauthenticated, "identity token is required")
	}

	body, err := json.Marshal(verifyRequest{Token: token})
	if err != nil {
		return zero, fmt.Errorf("identity: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(body))
	if err != nil {
		return zero, fmt.Errorf("identity: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return zero, fault.Wrap(fault.Unavailable, "identity provider unreachable", err)
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return zero, fault.New(fault.Unauthenticated, "identity token rejected")
	default:
		if c.Logger != nil {
			c.Logger.Warn("identity provider returned unexpected status", "status", resp.StatusCode)
		}
		return zero, fault.New(fault.Unavailable, fmt.Sprintf("identity provider status %d", resp.StatusCode))
	}

	var ident Identity
	if err := json.NewDecoder(resp.Body).Decode(&ident); err != nil {
		return zero, fmt.Errorf("identity: decode response: %w", err)
	}
	if ident.UID == "" {
		return zero, fault.New(fault.Unauthenticated, "identity response missing uid")
	}
	return ident, nil
}
