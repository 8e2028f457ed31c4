package jstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	mockTenant       = "tenant-1"
	mockClientKey    = "mock-jstream-client-key"
	mockClientSecret = "mock-jstream-client-secret"
	mockClientToken  = "mock-jstream-client-token"
)

// fakeJstream is an httptest-backed stand-in for the streaming provider's token,
// registration, and session endpoints
type fakeJstream struct {
	*httptest.Server

	mu                 sync.Mutex
	registrationStatus map[string]int
	registered         map[string]map[string]bool
	sessionStatus      int
	sessionId          string
	tokenRequests      int
}

func newFakeJstream(t *testing.T) *fakeJstream {
	f := &fakeJstream{
		registrationStatus: make(map[string]int),
		registered:         make(map[string]map[string]bool),
		sessionStatus:      http.StatusOK,
		sessionId:          "sess-001",
	}
	f.Server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.Close)
	return f
}

func (f *fakeJstream) handle(res http.ResponseWriter, req *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	prefix := fmt.Sprintf("/v2.0/%s/", mockTenant)
	if !strings.HasPrefix(req.URL.Path, prefix) {
		http.NotFound(res, req)
		return
	}
	parts := strings.Split(strings.TrimPrefix(req.URL.Path, prefix), "/")

	if len(parts) == 2 && parts[0] == "oauth2" && parts[1] == "token" {
		f.tokenRequests++
		req.ParseForm()
		if req.PostForm.Get("grant_type") != "client_credentials" ||
			req.PostForm.Get("client_key") != mockClientKey ||
			req.PostForm.Get("client_secret") != mockClientSecret ||
			req.PostForm.Get("resource") != f.URL+"/" {
			res.Header().Set("content-type", "application/json")
			res.WriteHeader(http.StatusUnauthorized)
			res.Write([]byte(`{"error":"invalid_client"}`))
			return
		}
		res.Header().Set("content-type", "application/json")
		res.Write([]byte(fmt.Sprintf(`{"access_token":%q,"token_type":"Bearer","expires_in":3600}`, mockClientToken)))
		return
	}

	if req.Header.Get("authorization") != "Bearer "+mockClientToken {
		http.Error(res, "unauthorized", http.StatusUnauthorized)
		return
	}
	if len(parts) != 3 || parts[0] != "lives" {
		http.NotFound(res, req)
		return
	}
	streamId := parts[1]
	var body struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil || body.Email == "" {
		http.Error(res, "email is required", http.StatusBadRequest)
		return
	}

	switch {
	case parts[2] == "users" && req.Method == http.MethodPut:
		if status, ok := f.registrationStatus[streamId]; ok && status != http.StatusOK {
			http.Error(res, "mock registration error", status)
			return
		}
		if f.registered[streamId] == nil {
			f.registered[streamId] = make(map[string]bool)
		}
		f.registered[streamId][body.Email] = true
		res.WriteHeader(http.StatusOK)
	case parts[2] == "sessions" && req.Method == http.MethodPost:
		if !f.registered[streamId][body.Email] {
			http.Error(res, "user not registered", http.StatusForbidden)
			return
		}
		if f.sessionStatus != http.StatusOK {
			http.Error(res, "mock session error", f.sessionStatus)
			return
		}
		res.Header().Set("content-type", "application/json")
		json.NewEncoder(res).Encode(map[string]string{"session_id": f.sessionId})
	default:
		http.Error(res, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (f *fakeJstream) config() Config {
	return Config{
		TenantKey:      mockTenant,
		ClientKey:      mockClientKey,
		ClientSecret:   mockClientSecret,
		AuthBase:       f.URL,
		LiveApiBase:    f.URL,
		SessionApiBase: f.URL,
		Timeout:        5 * time.Second,
	}
}

func Test_NewTokenFetcher(t *testing.T) {
	f := newFakeJstream(t)
	fetcher := NewTokenFetcher(f.config())

	token, err := fetcher.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, mockClientToken, token.AccessToken)
	assert.WithinDuration(t, time.Now().Add(time.Hour), token.Expiry, time.Minute)

	cfg := f.config()
	cfg.ClientSecret = "wrong-secret"
	_, err = NewTokenFetcher(cfg).Token(context.Background())
	assert.Error(t, err)
}

func Test_client_RegisterUser(t *testing.T) {
	tests := []struct {
		name         string
		streamStatus int
		clientToken  string
		wantErr      string
	}{
		{"successful registration", http.StatusOK, mockClientToken, ""},
		{"409 means already registered", http.StatusConflict, mockClientToken, ""},
		{"server error is a registration error", http.StatusInternalServerError, mockClientToken, "got 500"},
		{"bad client token is a registration error", http.StatusOK, "stale-token", "got 401"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeJstream(t)
			f.registrationStatus["s1"] = tt.streamStatus
			c := NewClient(f.config())

			err := c.RegisterUser(context.Background(), tt.clientToken, "s1", "alice@example.com")
			if tt.wantErr != "" {
				assert.ErrorIs(t, err, ErrUpstreamRegistration)
				assert.ErrorContains(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func Test_client_RegisterUser_idempotent(t *testing.T) {
	f := newFakeJstream(t)
	c := NewClient(f.config())

	for i := 0; i < 2; i++ {
		err := c.RegisterUser(context.Background(), mockClientToken, "s1", "alice@example.com")
		assert.NoError(t, err)
	}
	assert.True(t, f.registered["s1"]["alice@example.com"])
}

func Test_client_RegisterUser_timeout(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(res http.ResponseWriter, req *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-req.Context().Done():
		}
	}))
	defer slow.Close()

	c := NewClient(Config{TenantKey: mockTenant, LiveApiBase: slow.URL, Timeout: 50 * time.Millisecond})
	err := c.RegisterUser(context.Background(), mockClientToken, "s1", "alice@example.com")
	assert.ErrorIs(t, err, ErrUpstreamRegistration)
}

func Test_client_CreateSession(t *testing.T) {
	tests := []struct {
		name          string
		registered    bool
		sessionStatus int
		sessionId     string
		wantSessionId string
		wantErr       string
	}{
		{"registered user gets a session id", true, http.StatusOK, "sess-001", "sess-001", ""},
		{"unregistered user is a session error", false, http.StatusOK, "sess-001", "", "got 403"},
		{"server error is a session error", true, http.StatusBadGateway, "sess-001", "", "got 502"},
		{"missing session id is a session error", true, http.StatusOK, "", "", "no session_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeJstream(t)
			f.sessionStatus = tt.sessionStatus
			f.sessionId = tt.sessionId
			if tt.registered {
				f.registered["s1"] = map[string]bool{"alice@example.com": true}
			}
			c := NewClient(f.config())

			sessionId, err := c.CreateSession(context.Background(), mockClientToken, "s1", "alice@example.com")
			if tt.wantErr != "" {
				assert.ErrorIs(t, err, ErrUpstreamSession)
				assert.ErrorContains(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.wantSessionId, sessionId)
			}
		})
	}
}
