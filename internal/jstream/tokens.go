package jstream

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golden-vcr/keyticket/internal/metrics"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/sync/singleflight"
)

// DefaultRefreshMargin is how long before a token's advertised expiry we stop handing
// it out and fetch a new one
const DefaultRefreshMargin = 60 * time.Second

// defaultTokenLifetime applies when the provider doesn't advertise an expires_in
const defaultTokenLifetime = 5 * time.Minute

// TokenFetcher requests a brand-new client-credentials token from the provider
type TokenFetcher interface {
	Token(ctx context.Context) (*oauth2.Token, error)
}

// NewTokenFetcher returns a TokenFetcher that performs the OAuth2 client-credentials
// grant against the streaming provider's token endpoint
func NewTokenFetcher(cfg Config) TokenFetcher {
	authBase := strings.TrimSuffix(cfg.AuthBase, "/")
	return &credentialsFetcher{
		cfg: &clientcredentials.Config{
			ClientID:     cfg.ClientKey,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     fmt.Sprintf("%s/v2.0/%s/oauth2/token", authBase, cfg.TenantKey),
			EndpointParams: url.Values{
				"client_key": {cfg.ClientKey},
				"resource":   {authBase + "/"},
			},
			AuthStyle: oauth2.AuthStyleInParams,
		},
		http: &http.Client{Timeout: cfg.timeout()},
	}
}

type credentialsFetcher struct {
	cfg  *clientcredentials.Config
	http *http.Client
}

func (f *credentialsFetcher) Token(ctx context.Context) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, f.http)
	return f.cfg.Token(ctx)
}

// TokenCache holds the single process-wide client token. Concurrent callers that find
// the cache empty or stale share one refresh; a failed refresh leaves the cache empty.
type TokenCache struct {
	fetcher TokenFetcher
	margin  time.Duration
	timeout time.Duration
	now     func() time.Time
	log     *logrus.Entry

	mu    sync.RWMutex
	token *ClientToken
	group singleflight.Group
}

func NewTokenCache(fetcher TokenFetcher, timeout time.Duration, log *logrus.Entry) *TokenCache {
	return &TokenCache{
		fetcher: fetcher,
		margin:  DefaultRefreshMargin,
		timeout: timeout,
		now:     time.Now,
		log:     log.WithField("provider", metrics.ProviderJstream),
	}
}

// Get returns a client token that remains valid for at least the refresh margin
func (c *TokenCache) Get(ctx context.Context) (ClientToken, error) {
	if token, ok := c.current(); ok {
		return token, nil
	}

	ch := c.group.DoChan("refresh", func() (interface{}, error) {
		// Another flight may have stored a fresh token between our check and this one
		if token, ok := c.current(); ok {
			return token, nil
		}
		return c.refresh(ctx)
	})
	select {
	case result := <-ch:
		if result.Err != nil {
			return ClientToken{}, result.Err
		}
		return result.Val.(ClientToken), nil
	case <-ctx.Done():
		return ClientToken{}, fmt.Errorf("%w: %v", ErrClientToken, ctx.Err())
	}
}

func (c *TokenCache) current() (ClientToken, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.token == nil || !c.now().Add(c.margin).Before(c.token.ExpiresAt) {
		return ClientToken{}, false
	}
	return *c.token, true
}

func (c *TokenCache) refresh(ctx context.Context) (ClientToken, error) {
	// The refresh is shared by every waiter, so it mustn't be cut short just because
	// the caller who happened to start it has gone away
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	start := time.Now()
	fetched, err := c.fetcher.Token(ctx)
	if err == nil && fetched.AccessToken == "" {
		err = fmt.Errorf("token response has no access_token")
	}
	metrics.ObserveUpstream(metrics.ProviderJstream, "client_token", start, err)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.token = nil
		c.log.WithError(err).Error("client token refresh failed")
		return ClientToken{}, fmt.Errorf("%w: %v", ErrClientToken, err)
	}

	expiresAt := fetched.Expiry
	if expiresAt.IsZero() {
		expiresAt = c.now().Add(defaultTokenLifetime)
	}
	token := ClientToken{
		Value:     fetched.AccessToken,
		ExpiresAt: expiresAt,
	}
	c.token = &token
	c.log.WithField("expires_at", expiresAt).Info("client token refreshed")
	return token, nil
}
