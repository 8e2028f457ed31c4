package jstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golden-vcr/keyticket/internal/metrics"
)

// Config describes how to reach the streaming provider's authorization APIs
type Config struct {
	TenantKey      string
	ClientKey      string
	ClientSecret   string
	AuthBase       string
	LiveApiBase    string
	SessionApiBase string
	Timeout        time.Duration
}

func (c Config) timeout() time.Duration {
	if c.Timeout <= 0 {
		return 10 * time.Second
	}
	return c.Timeout
}

// Client represents the streaming provider operations that act on behalf of a single
// user, authenticated with the broker's client token
type Client interface {
	RegisterUser(ctx context.Context, clientToken string, streamId string, email string) error
	CreateSession(ctx context.Context, clientToken string, streamId string, email string) (string, error)
}

func NewClient(cfg Config) Client {
	return &client{
		http:           &http.Client{Timeout: cfg.timeout()},
		timeout:        cfg.timeout(),
		liveApiBase:    fmt.Sprintf("%s/v2.0/%s", strings.TrimSuffix(cfg.LiveApiBase, "/"), cfg.TenantKey),
		sessionApiBase: fmt.Sprintf("%s/v2.0/%s", strings.TrimSuffix(cfg.SessionApiBase, "/"), cfg.TenantKey),
	}
}

type client struct {
	http           *http.Client
	timeout        time.Duration
	liveApiBase    string
	sessionApiBase string
}

// RegisterUser grants the user with the given email access to the given stream. The
// provider treats registration as an upsert, and a 409 means the user was already
// registered, so calling this repeatedly for the same user and stream is safe.
func (c *client) RegisterUser(ctx context.Context, clientToken string, streamId string, email string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/lives/%s/users", c.liveApiBase, url.PathEscape(streamId))
	start := time.Now()
	status, _, err := c.send(ctx, http.MethodPut, endpoint, clientToken, &registrationRequest{Email: email})
	if err == nil && status != http.StatusConflict && (status < 200 || status >= 300) {
		err = fmt.Errorf("got status %d", status)
	}
	metrics.ObserveUpstream(metrics.ProviderJstream, "register_user", start, err)
	if err != nil {
		message := err.Error()
		if status != 0 {
			message = "user registration was not accepted"
		}
		return &upstreamError{ErrUpstreamRegistration, endpoint, status, message}
	}
	return nil
}

// CreateSession asks the provider for a fresh playback session ID for the given user
// and stream
func (c *client) CreateSession(ctx context.Context, clientToken string, streamId string, email string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/lives/%s/sessions", c.sessionApiBase, url.PathEscape(streamId))
	start := time.Now()
	sessionId, err := c.createSession(ctx, endpoint, clientToken, email)
	metrics.ObserveUpstream(metrics.ProviderJstream, "create_session", start, err)
	return sessionId, err
}

func (c *client) createSession(ctx context.Context, endpoint string, clientToken string, email string) (string, error) {
	status, body, err := c.send(ctx, http.MethodPost, endpoint, clientToken, &sessionRequest{Email: email})
	if err != nil {
		return "", &upstreamError{ErrUpstreamSession, endpoint, 0, err.Error()}
	}
	if status < 200 || status >= 300 {
		return "", &upstreamError{ErrUpstreamSession, endpoint, status, summarize(body)}
	}

	var payload sessionResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", &upstreamError{ErrUpstreamSession, endpoint, 0, fmt.Sprintf("failed to decode session response: %v", err)}
	}
	if payload.SessionId == "" {
		return "", &upstreamError{ErrUpstreamSession, endpoint, 0, "response has no session_id"}
	}
	return payload.SessionId, nil
}

// send makes a JSON request authenticated with the client token, returning the status
// code and up to 4 KiB of the response body
func (c *client) send(ctx context.Context, method string, endpoint string, clientToken string, payload interface{}) (int, []byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(data))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("authorization", fmt.Sprintf("Bearer %s", clientToken))
	req.Header.Set("content-type", "application/json")
	req.Header.Set("accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, 4096))
	if err != nil {
		return res.StatusCode, nil, err
	}
	return res.StatusCode, body, nil
}

// summarize renders an upstream response body for inclusion in an error message
func summarize(body []byte) string {
	s := strings.TrimSpace(string(body))
	if s == "" {
		return "(empty response body)"
	}
	if len(s) > 256 {
		return s[:256] + "..."
	}
	return s
}

var _ Client = (*client)(nil)
