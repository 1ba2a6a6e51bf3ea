package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// TokenSource supplies short-lived platform credentials.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// HTTPTokenSource fetches capability tokens from the backend token endpoint.
// The endpoint is bearer-authenticated with a static client key.
type HTTPTokenSource struct {
	Endpoint string
	APIKey   string
	UserID   string

	// HTTPClient defaults to a client with a conservative timeout.
	HTTPClient *http.Client
}

type tokenRequest struct {
	UserID string `json:"userId"`
}

type tokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expiresIn"`
	Error     string `json:"error"`
}

func (s *HTTPTokenSource) Token(ctx context.Context) (string, error) {
	if s.Endpoint == "" {
		return "", errors.New("voice: token endpoint is required")
	}

	body, err := json.Marshal(tokenRequest{UserID: s.UserID})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.APIKey)

	resp, err := s.client().Do(req)
	if err != nil {
		return "", fmt.Errorf("voice: token fetch failed: %w", err)
	}
	defer resp.Body.Close()

	var out tokenResponse
	// Decode errors on non-2xx bodies are ignored; the status code wins.
	_ = json.NewDecoder(resp.Body).Decode(&out)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if out.Error != "" {
			return "", fmt.Errorf("voice: token fetch failed: %s", out.Error)
		}
		return "", fmt.Errorf("voice: token fetch failed: status %d", resp.StatusCode)
	}
	if out.Token == "" {
		return "", errors.New("voice: no token received from token endpoint")
	}
	return out.Token, nil
}

func (s *HTTPTokenSource) client() *http.Client {
	if s.HTTPClient != nil {
		return s.HTTPClient
	}
	return &http.Client{Timeout: 15 * time.Second}
}
