package pretix

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golden-vcr/keyticket/internal/metrics"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

// maxOrderPages bounds how many pages of orders we'll follow for a single user
const maxOrderPages = 50

// Config describes how to reach the ticketing provider
type Config struct {
	ApiBase      string
	Organizer    string
	RedirectUri  string
	ClientId     string
	ClientSecret string
	ApiToken     string
	Timeout      time.Duration
}

// Client represents the subset of ticketing provider operations needed to resolve a
// user's entitlement from an OAuth2 authorization code
type Client interface {
	ExchangeCode(ctx context.Context, code string) (string, error)
	GetIdentity(ctx context.Context, accessToken string) (*Identity, error)
	ListOrders(ctx context.Context, email string) ([]Order, error)
}

func NewClient(cfg Config, log *logrus.Entry) Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	base := strings.TrimSuffix(cfg.ApiBase, "/")
	return &client{
		oauth:     oauthConfig(cfg),
		http:      &http.Client{Timeout: timeout},
		timeout:   timeout,
		apiToken:  cfg.ApiToken,
		userInfo:  fmt.Sprintf("%s/%s/oauth2/v1/userinfo", base, cfg.Organizer),
		ordersUrl: fmt.Sprintf("%s/api/v1/organizers/%s/orders/", base, cfg.Organizer),
		apiOrigin: originOf(base),
		log:       log.WithField("provider", metrics.ProviderPretix),
	}
}

// AuthorizeUrl returns the URL to which a user should be sent in order to grant us an
// authorization code, which the provider will deliver to the configured redirect URI
func AuthorizeUrl(cfg Config, state string) string {
	return oauthConfig(cfg).AuthCodeURL(state)
}

func oauthConfig(cfg Config) *oauth2.Config {
	base := strings.TrimSuffix(cfg.ApiBase, "/")
	return &oauth2.Config{
		ClientID:     cfg.ClientId,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectUri,
		Scopes:       []string{"profile"},
		Endpoint: oauth2.Endpoint{
			AuthURL:   fmt.Sprintf("%s/%s/oauth2/v1/authorize", base, cfg.Organizer),
			TokenURL:  fmt.Sprintf("%s/%s/oauth2/v1/token", base, cfg.Organizer),
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

type client struct {
	oauth     *oauth2.Config
	http      *http.Client
	timeout   time.Duration
	apiToken  string
	userInfo  string
	ordersUrl string
	apiOrigin string
	log       *logrus.Entry
}

func (c *client) ExchangeCode(ctx context.Context, code string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.http)

	start := time.Now()
	token, err := c.oauth.Exchange(ctx, code)
	metrics.ObserveUpstream(metrics.ProviderPretix, "exchange_code", start, err)
	if err != nil {
		// The oauth2 package reports non-2xx responses as a RetrieveError, and rejects
		// 2xx responses that don't include an access_token
		status := 0
		message := err.Error()
		retrieveErr := &oauth2.RetrieveError{}
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
			status = retrieveErr.Response.StatusCode
			message = summarize(retrieveErr.Body)
		}
		c.log.WithFields(logrus.Fields{
			"endpoint": c.oauth.Endpoint.TokenURL,
			"status":   status,
		}).WithError(err).Error("authorization code exchange failed")
		return "", &upstreamError{ErrUpstreamAuth, c.oauth.Endpoint.TokenURL, status, message}
	}
	return token.AccessToken, nil
}

func (c *client) GetIdentity(ctx context.Context, accessToken string) (*Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	info, err := c.getUserInfo(ctx, accessToken)
	metrics.ObserveUpstream(metrics.ProviderPretix, "userinfo", start, err)
	if err != nil {
		c.log.WithField("endpoint", c.userInfo).WithError(err).Error("userinfo request failed")
		return nil, err
	}

	// Without an email address we have no way of correlating the user with their
	// orders or registering them for any streams
	if info.Email == "" {
		c.log.WithFields(logrus.Fields{
			"endpoint": c.userInfo,
			"sub":      info.Sub,
		}).Error("userinfo response has no email")
		return nil, &upstreamError{ErrUpstreamAuth, c.userInfo, 0, "email not found in user info"}
	}
	return &Identity{Email: info.Email}, nil
}

func (c *client) getUserInfo(ctx context.Context, accessToken string) (*userInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.userInfo, nil)
	if err != nil {
		return nil, &upstreamError{ErrUpstreamAuth, c.userInfo, 0, err.Error()}
	}
	req.Header.Set("authorization", fmt.Sprintf("Bearer %s", accessToken))
	req.Header.Set("accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return nil, &upstreamError{ErrUpstreamAuth, c.userInfo, 0, err.Error()}
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
		return nil, &upstreamError{ErrUpstreamAuth, c.userInfo, res.StatusCode, summarize(body)}
	}

	var info userInfo
	if err := json.NewDecoder(res.Body).Decode(&info); err != nil {
		return nil, &upstreamError{ErrUpstreamAuth, c.userInfo, 0, fmt.Sprintf("failed to decode user info: %v", err)}
	}
	return &info, nil
}

func (c *client) ListOrders(ctx context.Context, email string) ([]Order, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	orders, err := c.listOrders(ctx, email)
	metrics.ObserveUpstream(metrics.ProviderPretix, "list_orders", start, err)
	if err != nil {
		c.log.WithFields(logrus.Fields{
			"endpoint": c.ordersUrl,
			"email":    email,
		}).WithError(err).Error("order query failed")
		return nil, err
	}
	return orders, nil
}

func (c *client) listOrders(ctx context.Context, email string) ([]Order, error) {
	pageUrl := fmt.Sprintf("%s?email=%s", c.ordersUrl, url.QueryEscape(email))
	orders := make([]Order, 0)
	for i := 0; i < maxOrderPages; i++ {
		page, err := c.getOrderPage(ctx, pageUrl)
		if err != nil {
			return nil, err
		}
		orders = append(orders, page.Results...)

		// Continue making requests until we've seen all orders
		if page.Next == nil || *page.Next == "" {
			return orders, nil
		}
		// The API token is only ever sent back to the configured API origin
		if origin := originOf(*page.Next); origin == "" || origin != c.apiOrigin {
			return nil, &upstreamError{ErrUpstreamQuery, c.ordersUrl, 0, fmt.Sprintf("refusing to follow next link to foreign origin %q", origin)}
		}
		pageUrl = *page.Next
	}
	return nil, &upstreamError{ErrUpstreamQuery, c.ordersUrl, 0, fmt.Sprintf("gave up after %d pages of orders", maxOrderPages)}
}

func (c *client) getOrderPage(ctx context.Context, pageUrl string) (*orderPage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageUrl, nil)
	if err != nil {
		return nil, &upstreamError{ErrUpstreamQuery, c.ordersUrl, 0, err.Error()}
	}
	req.Header.Set("authorization", fmt.Sprintf("Token %s", c.apiToken))
	req.Header.Set("accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return nil, &upstreamError{ErrUpstreamQuery, c.ordersUrl, 0, err.Error()}
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
		return nil, &upstreamError{ErrUpstreamQuery, c.ordersUrl, res.StatusCode, summarize(body)}
	}

	var page orderPage
	if err := json.NewDecoder(res.Body).Decode(&page); err != nil {
		return nil, &upstreamError{ErrUpstreamQuery, c.ordersUrl, 0, fmt.Sprintf("failed to decode orders: %v", err)}
	}
	return &page, nil
}

// originOf returns the lowercased scheme and host of an absolute URL, or "" if the
// URL can't be parsed or isn't absolute
func originOf(rawUrl string) string {
	u, err := url.Parse(rawUrl)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return strings.ToLower(u.Scheme + "://" + u.Host)
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
