package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/codingconcepts/env"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/golden-vcr/keyticket/internal/auth"
	"github.com/golden-vcr/keyticket/internal/credential"
	"github.com/golden-vcr/keyticket/internal/health"
	"github.com/golden-vcr/keyticket/internal/jstream"
	"github.com/golden-vcr/keyticket/internal/live"
	"github.com/golden-vcr/keyticket/internal/logging"
	"github.com/golden-vcr/keyticket/internal/pretix"
	"github.com/golden-vcr/keyticket/internal/server"
	"github.com/golden-vcr/keyticket/internal/session"
)

type Config struct {
	BindAddr               string `env:"BIND_ADDR"`
	ListenPort             uint16 `env:"LISTEN_PORT" default:"5003"`
	LogLevel               string `env:"LOG_LEVEL" default:"info"`
	StaticPageUrl          string `env:"STATIC_PAGE_URL" required:"true"`
	CorsAllowedOrigins     string `env:"CORS_ALLOWED_ORIGINS" required:"true"`
	UpstreamTimeoutSeconds int    `env:"UPSTREAM_TIMEOUT_SECONDS" default:"10"`

	PretixApiBase      string `env:"PRETIX_API_BASE" default:"https://pretix.eu"`
	PretixOrganizer    string `env:"PRETIX_ORGANIZER" required:"true"`
	PretixRedirectUri  string `env:"PRETIX_REDIRECT_URI" required:"true"`
	PretixClientId     string `env:"PRETIX_CLIENT_ID" required:"true"`
	PretixClientSecret string `env:"PRETIX_CLIENT_SECRET" required:"true"`
	PretixApiToken     string `env:"PRETIX_API_TOKEN" required:"true"`
	PretixLiveTicketId int    `env:"PRETIX_LIVE_TICKET_ID" required:"true"`

	JstreamTenantKey        string `env:"JSTREAM_TENANT_KEY" required:"true"`
	JstreamClientKey        string `env:"JSTREAM_CLIENT_KEY" required:"true"`
	JstreamClientSecret     string `env:"JSTREAM_CLIENT_SECRET" required:"true"`
	JstreamAuthBase         string `env:"JSTREAM_AUTH_BASE" required:"true"`
	JstreamLiveApiBase      string `env:"JSTREAM_LIVE_API_BASE" required:"true"`
	JstreamSessionApiBase   string `env:"JSTREAM_SESSION_API_BASE" required:"true"`
	JstreamAuthenticatedUrl string `env:"JSTREAM_AUTHENTICATED_URL" required:"true"`

	JwtSecret        string `env:"JWT_SECRET" required:"true"`
	JwtExp           int    `env:"JWT_EXP" default:"300"`
	JwtPublicExp     int    `env:"JWT_PUBLIC_EXP" default:"30"`
	DebugPlaybackUrl string `env:"DEBUG_PLAYBACK_URL" default:"https://devstreaming-cdn.apple.com/videos/streaming/examples/img_bipbop_adv_example_fmp4/master.m3u8"`
	LiveConfigPath   string `env:"LIVE_CONFIG_PATH" default:"lives.yml"`
}

func main() {
	err := godotenv.Load()
	if err != nil && !os.IsNotExist(err) {
		log.Fatalf("error loading .env file: %v", err)
	}
	config := Config{}
	if err := env.Set(&config); err != nil {
		log.Fatalf("error loading config: %v", err)
	}
	if !strings.Contains(config.JstreamAuthenticatedUrl, session.SessionIdPlaceholder) {
		log.Fatalf("JSTREAM_AUTHENTICATED_URL must contain %s", session.SessionIdPlaceholder)
	}
	if config.JwtExp <= 0 || config.JwtPublicExp <= 0 {
		log.Fatalf("JWT_EXP and JWT_PUBLIC_EXP must be positive")
	}
	allowedOrigins, err := server.ParseAllowedOrigins(config.CorsAllowedOrigins)
	if err != nil {
		log.Fatalf("invalid CORS_ALLOWED_ORIGINS: %v", err)
	}
	logger := logging.New("keyticket", config.LogLevel)
	timeout := time.Duration(config.UpstreamTimeoutSeconds) * time.Second

	ctx, close := signal.NotifyContext(context.Background(), os.Interrupt, os.Kill, syscall.SIGTERM)
	defer close()

	// Load the set of live tracks that ticket holders are registered for
	catalog, err := live.Load(config.LiveConfigPath)
	if err != nil {
		log.Fatalf("error loading live track config: %v", err)
	}
	logger.WithFields(logrus.Fields{
		"tracks":     len(catalog.Tracks),
		"stream_ids": catalog.StreamIds(),
	}).Info("loaded live track config")

	// Initialize a pretix client so we can resolve identities and tickets
	pretixClient := pretix.NewClient(pretix.Config{
		ApiBase:      config.PretixApiBase,
		Organizer:    config.PretixOrganizer,
		RedirectUri:  config.PretixRedirectUri,
		ClientId:     config.PretixClientId,
		ClientSecret: config.PretixClientSecret,
		ApiToken:     config.PretixApiToken,
		Timeout:      timeout,
	}, logger)

	// Initialize J-Stream clients, sharing a single cached client token
	jstreamConfig := jstream.Config{
		TenantKey:      config.JstreamTenantKey,
		ClientKey:      config.JstreamClientKey,
		ClientSecret:   config.JstreamClientSecret,
		AuthBase:       config.JstreamAuthBase,
		LiveApiBase:    config.JstreamLiveApiBase,
		SessionApiBase: config.JstreamSessionApiBase,
		Timeout:        timeout,
	}
	tokens := jstream.NewTokenCache(jstream.NewTokenFetcher(jstreamConfig), timeout, logger)
	jstreamClient := jstream.NewClient(jstreamConfig)
	registrar := jstream.NewRegistrar(jstreamClient, tokens, logger)

	issuer := credential.NewIssuer(
		config.JwtSecret,
		time.Duration(config.JwtExp)*time.Second,
		time.Duration(config.JwtPublicExp)*time.Second,
	)
	resolver := session.NewResolver(issuer, tokens, jstreamClient, config.JstreamAuthenticatedUrl, config.DebugPlaybackUrl, logger)

	authServer, err := auth.NewServer(pretixClient, config.PretixLiveTicketId, registrar, catalog, issuer, config.StaticPageUrl, logger)
	if err != nil {
		log.Fatalf("error initializing auth server: %v", err)
	}

	srv := server.New(
		health.NewServer(tokens, timeout),
		allowedOrigins,
		authServer,
		session.NewServer(resolver, logger),
		live.NewServer(catalog),
	)
	addr := fmt.Sprintf("%s:%d", config.BindAddr, config.ListenPort)
	if err := serve(ctx, &http.Server{Addr: addr, Handler: srv}, logger); err != nil {
		log.Fatalf("error running server: %v", err)
	}
	logger.Info("server closed")
}
