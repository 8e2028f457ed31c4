package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/codingconcepts/env"
	"github.com/joho/godotenv"

	"github.com/golden-vcr/keyticket/internal/logging"
	"github.com/golden-vcr/keyticket/internal/pretix"
)

type Config struct {
	LogLevel               string `env:"LOG_LEVEL" default:"warn"`
	CallbackPort           uint16 `env:"CHECKTICKET_CALLBACK_PORT" default:"3033"`
	UpstreamTimeoutSeconds int    `env:"UPSTREAM_TIMEOUT_SECONDS" default:"10"`

	PretixApiBase      string `env:"PRETIX_API_BASE" default:"https://pretix.eu"`
	PretixOrganizer    string `env:"PRETIX_ORGANIZER" required:"true"`
	PretixClientId     string `env:"PRETIX_CLIENT_ID" required:"true"`
	PretixClientSecret string `env:"PRETIX_CLIENT_SECRET" required:"true"`
	PretixApiToken     string `env:"PRETIX_API_TOKEN" required:"true"`
	PretixLiveTicketId int    `env:"PRETIX_LIVE_TICKET_ID" required:"true"`
}

func main() {
	// Initialize config from environment vars
	err := godotenv.Load()
	if err != nil && !os.IsNotExist(err) {
		log.Fatalf("error loading .env file: %v", err)
	}
	config := Config{}
	if err := env.Set(&config); err != nil {
		log.Fatalf("error parsing config: %v", err)
	}
	logger := logging.New("checkticket", config.LogLevel)
	fmt.Printf("Configured for pretix organizer: %s\n", config.PretixOrganizer)

	cfg := pretix.Config{
		ApiBase:      config.PretixApiBase,
		Organizer:    config.PretixOrganizer,
		ClientId:     config.PretixClientId,
		ClientSecret: config.PretixClientSecret,
		ApiToken:     config.PretixApiToken,
		Timeout:      time.Duration(config.UpstreamTimeoutSeconds) * time.Second,
	}

	// Send the operator through the same sign-in flow a viewer would use, capturing the
	// authorization code on a local server instead of the broker's /callback
	code, cfg, err := pretix.PromptForCodeGrant(context.Background(), cfg, config.CallbackPort)
	if err != nil {
		log.Fatalf("failed to get authorization code: %v", err)
	}

	identity, entitlement, err := pretix.ResolveEntitlement(context.Background(), pretix.NewClient(cfg, logger), code, config.PretixLiveTicketId)
	if err != nil {
		log.Fatalf("failed to resolve entitlement: %v", err)
	}
	fmt.Printf("\nSigned in as: %s\n", identity.Email)
	if entitlement.HasTicket {
		fmt.Printf("Holds a live ticket (item %d): viewer will be registered for playback.\n", config.PretixLiveTicketId)
	} else {
		fmt.Printf("No order contains the live ticket (item %d): viewer will be logged in without playback access.\n", config.PretixLiveTicketId)
	}
}
