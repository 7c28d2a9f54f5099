// Package identity resumes or creates the user's session with the
// document service's auth endpoints.
package identity

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

	wserrors "github.com/alexjbarnes/wordswipe-sync/internal/errors"
	"github.com/alexjbarnes/wordswipe-sync/internal/models"
)

const (
	httpClientTimeout = 30 * time.Second
	maxResponseBytes  = 64 * 1024
)

// Provider establishes the authenticated identity for a run.
type Provider interface {
	// ResumeSession returns the cached session, or nil when there is
	// none or it has expired.
	ResumeSession(ctx context.Context) (*models.Session, error)

	// CreateAnonymous registers a new anonymous identity.
	CreateAnonymous(ctx context.Context) (*models.Session, error)
}

// TokenStore persists the session token between runs. *state.State
// implements it.
type TokenStore interface {
	Token() string
	SetToken(token string) error
}

// HTTPProvider talks to /v1/auth/* on the document service.
type HTTPProvider struct {
	httpClient *http.Client
	baseURL    string
	tokens     TokenStore
	deviceName string
	logger     *slog.Logger
}

var _ Provider = (*HTTPProvider)(nil)

// NewHTTPProvider creates a provider. A nil httpClient gets a 30 second
// timeout.
func NewHTTPProvider(baseURL string, tokens TokenStore, deviceName string, httpClient *http.Client, logger *slog.Logger) *HTTPProvider {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: httpClientTimeout}
	}

	return &HTTPProvider{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		tokens:     tokens,
		deviceName: deviceName,
		logger:     logger,
	}
}

// Token returns the persisted session token for outgoing requests.
func (p *HTTPProvider) Token() string {
	return p.tokens.Token()
}

type sessionResponse struct {
	UID       string `json:"uid"`
	Token     string `json:"token,omitempty"`
	Anonymous bool   `json:"anonymous"`
}

type anonymousRequest struct {
	Device string `json:"device"`
}

// ResumeSession implements Provider. A 401 clears the stale token.
func (p *HTTPProvider) ResumeSession(ctx context.Context) (*models.Session, error) {
	token := p.tokens.Token()
	if token == "" {
		return nil, nil
	}

	var resp sessionResponse

	status, err := p.do(ctx, http.MethodGet, "/v1/auth/session", token, nil, &resp)
	if err != nil {
		return nil, err
	}

	if status == http.StatusUnauthorized {
		p.logger.Info("cached session expired")

		if err := p.tokens.SetToken(""); err != nil {
			return nil, fmt.Errorf("clearing expired token: %w", err)
		}

		return nil, nil
	}

	if resp.UID == "" {
		return nil, fmt.Errorf("session response missing uid")
	}

	return &models.Session{
		UserID:    resp.UID,
		Token:     token,
		Anonymous: resp.Anonymous,
		StartedAt: time.Now(),
	}, nil
}

// CreateAnonymous implements Provider and persists the new token.
func (p *HTTPProvider) CreateAnonymous(ctx context.Context) (*models.Session, error) {
	var resp sessionResponse

	status, err := p.do(ctx, http.MethodPost, "/v1/auth/anonymous", "", anonymousRequest{Device: p.deviceName}, &resp)
	if err != nil {
		return nil, err
	}

	if status == http.StatusUnauthorized {
		return nil, fmt.Errorf("anonymous sign-in rejected: %w", wserrors.ErrAuthRequired)
	}

	if resp.UID == "" || resp.Token == "" {
		return nil, fmt.Errorf("anonymous sign-in response missing uid or token")
	}

	if err := p.tokens.SetToken(resp.Token); err != nil {
		return nil, fmt.Errorf("saving session token: %w", err)
	}

	p.logger.Info("created anonymous identity", slog.String("uid", resp.UID))

	return &models.Session{
		UserID:    resp.UID,
		Token:     resp.Token,
		Anonymous: true,
		StartedAt: time.Now(),
	}, nil
}

// do returns the status code for 2xx and 401 responses; every other
// outcome is an error.
func (p *HTTPProvider) do(ctx context.Context, method, endpoint, token string, body, result any) (int, error) {
	var reader io.Reader

	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("marshalling request body: %w", err)
		}

		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+endpoint, reader)
	if err != nil {
		return 0, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w: %w", method, endpoint, wserrors.ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return 0, fmt.Errorf("reading response from %s: %w: %w", endpoint, wserrors.ErrRemoteUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return resp.StatusCode, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
		return 0, fmt.Errorf("%s %s returned status %d: %w", method, endpoint, resp.StatusCode, wserrors.ErrRemoteUnavailable)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return 0, fmt.Errorf("%s %s returned status %d", method, endpoint, resp.StatusCode)
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return 0, fmt.Errorf("decoding response from %s: %w", endpoint, err)
		}
	}

	return resp.StatusCode, nil
}
