package session

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/golden-vcr/keyticket/internal/credential"
	"github.com/golden-vcr/keyticket/internal/jstream"
	"github.com/sirupsen/logrus"
)

// ErrNotRegistered is returned when a valid credential doesn't grant access to the
// requested stream
var ErrNotRegistered = errors.New("user is not registered for this stream")

// SessionIdPlaceholder is replaced with the provider's session ID in the configured
// playback URL template
const SessionIdPlaceholder = "{session_id}"

// Verifier decodes private credentials; satisfied by *credential.Issuer
type Verifier interface {
	VerifyPrivate(token string) (*credential.PrivateClaims, error)
}

// Playback is a freshly-issued playback session for a single stream
type Playback struct {
	SessionId   string `json:"-"`
	PlaybackUrl string `json:"playback_url"`
}

// Resolver turns a private credential and a stream ID into a playback URL. Nothing is
// cached: every call verifies the credential and asks the provider for a new session.
type Resolver struct {
	verifier            Verifier
	tokens              jstream.ClientTokenProvider
	client              jstream.Client
	playbackUrlTemplate string
	debugPlaybackUrl    string
	log                 *logrus.Entry
}

func NewResolver(verifier Verifier, tokens jstream.ClientTokenProvider, client jstream.Client, playbackUrlTemplate string, debugPlaybackUrl string, log *logrus.Entry) *Resolver {
	return &Resolver{
		verifier:            verifier,
		tokens:              tokens,
		client:              client,
		playbackUrlTemplate: playbackUrlTemplate,
		debugPlaybackUrl:    debugPlaybackUrl,
		log:                 log,
	}
}

// ResolvePlayback verifies the credential, confirms that it grants access to the
// stream, and obtains a playback session from the provider. If debug is set and a
// debug playback URL is configured, that URL is returned instead of calling the
// provider; the credential and registration checks still apply.
func (r *Resolver) ResolvePlayback(ctx context.Context, token string, streamId string, debug bool) (*Playback, error) {
	claims, err := r.verifier.VerifyPrivate(token)
	if err != nil {
		return nil, err
	}
	if !claims.IsRegistered(streamId) {
		return nil, ErrNotRegistered
	}

	if debug && r.debugPlaybackUrl != "" {
		r.log.WithFields(logrus.Fields{
			"stream_id": streamId,
			"email":     claims.Email,
		}).Info("serving debug playback URL")
		return &Playback{PlaybackUrl: r.debugPlaybackUrl}, nil
	}

	clientToken, err := r.tokens.Get(ctx)
	if err != nil {
		return nil, err
	}
	sessionId, err := r.client.CreateSession(ctx, clientToken.Value, streamId, claims.Email)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"stream_id": streamId,
			"email":     claims.Email,
		}).WithError(err).Error("failed to obtain playback session")
		return nil, err
	}
	return &Playback{
		SessionId:   sessionId,
		PlaybackUrl: RenderPlaybackUrl(r.playbackUrlTemplate, sessionId),
	}, nil
}

// RenderPlaybackUrl substitutes a session ID into a playback URL template, escaping it
// as a path segment before the template's query string and as a query value after
func RenderPlaybackUrl(template string, sessionId string) string {
	path, query, hasQuery := strings.Cut(template, "?")
	path = strings.ReplaceAll(path, SessionIdPlaceholder, url.PathEscape(sessionId))
	if !hasQuery {
		return path
	}
	return path + "?" + strings.ReplaceAll(query, SessionIdPlaceholder, url.QueryEscape(sessionId))
}
