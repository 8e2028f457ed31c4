package jstream

import (
	"context"
	"fmt"
	"sync"

	"github.com/golden-vcr/keyticket/internal/live"
	"github.com/golden-vcr/keyticket/internal/metrics"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// maxConcurrentRegistrations bounds how many registration calls a single login makes at
// once
const maxConcurrentRegistrations = 4

// ClientTokenProvider supplies a currently-valid client token; satisfied by *TokenCache
type ClientTokenProvider interface {
	Get(ctx context.Context) (ClientToken, error)
}

// Registrar registers a newly-logged-in ticket holder with the streaming provider for
// every configured live track
type Registrar struct {
	client Client
	tokens ClientTokenProvider
	log    *logrus.Entry
}

func NewRegistrar(client Client, tokens ClientTokenProvider, log *logrus.Entry) *Registrar {
	return &Registrar{
		client: client,
		tokens: tokens,
		log:    log.WithField("provider", metrics.ProviderJstream),
	}
}

// RegisterAll attempts to register the user for every track, returning a map that
// contains true for each stream where registration succeeded. A failure for one stream
// is logged and leaves that stream out of the map; it never affects other streams, and
// RegisterAll itself never fails.
func (r *Registrar) RegisterAll(ctx context.Context, email string, tracks []live.Track) RegistrationMap {
	registrations := make(RegistrationMap)
	var mu sync.Mutex

	var wg errgroup.Group
	wg.SetLimit(maxConcurrentRegistrations)
	for _, track := range tracks {
		if track.StreamId == "" {
			err := fmt.Errorf("%w: track '%s' has no stream_id", live.ErrConfigurationDefect, track.Track)
			r.log.WithField("track", track.Track).WithError(err).Warn("skipping registration for track")
			continue
		}
		track := track
		wg.Go(func() error {
			if err := r.register(ctx, email, track.StreamId); err != nil {
				metrics.ObserveRegistration(false)
				r.log.WithFields(logrus.Fields{
					"track":     track.Track,
					"stream_id": track.StreamId,
					"email":     email,
				}).WithError(err).Error("failed to register user for stream")
				return nil
			}
			metrics.ObserveRegistration(true)
			mu.Lock()
			registrations[track.StreamId] = true
			mu.Unlock()
			return nil
		})
	}
	wg.Wait()
	return registrations
}

func (r *Registrar) register(ctx context.Context, email string, streamId string) error {
	token, err := r.tokens.Get(ctx)
	if err != nil {
		return err
	}
	return r.client.RegisterUser(ctx, token.Value, streamId, email)
}
