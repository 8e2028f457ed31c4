package credential

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mockSecret = "mock-signing-secret-with-enough-entropy"

var issuedAt = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestIssuer(now time.Time) *Issuer {
	i := NewIssuer(mockSecret, 300*time.Second, 30*time.Second)
	i.now = func() time.Time { return now }
	return i
}

func Test_Issuer_roundTrip(t *testing.T) {
	tests := []struct {
		name          string
		email         string
		hasTicket     bool
		registrations map[string]bool
		wantTracks    map[string]bool
	}{
		{
			"ticket holder registered for every stream",
			"alice@example.com",
			true,
			map[string]bool{"s1": true, "s2": true},
			map[string]bool{"s1": true, "s2": true},
		},
		{
			"ticket holder with partial registration",
			"alice@example.com",
			true,
			map[string]bool{"s2": true},
			map[string]bool{"s2": true},
		},
		{
			"false entries are never asserted",
			"alice@example.com",
			true,
			map[string]bool{"s1": false, "s2": true},
			map[string]bool{"s2": true},
		},
		{
			"user without a ticket",
			"bob@example.com",
			false,
			nil,
			map[string]bool{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			i := newTestIssuer(issuedAt)
			creds, err := i.Issue(tt.email, tt.hasTicket, tt.registrations)
			require.NoError(t, err)
			assert.Equal(t, issuedAt.Add(30*time.Second), creds.PublicExpiresAt)
			assert.Equal(t, issuedAt.Add(300*time.Second), creds.PrivateExpiresAt)
			assert.Equal(t, 300*time.Second, creds.PrivateTtl)

			private, err := i.VerifyPrivate(creds.Private)
			require.NoError(t, err)
			assert.Equal(t, KindPrivate, private.Kind)
			assert.Equal(t, tt.email, private.Email)
			assert.Equal(t, tt.hasTicket, private.HasTicket)
			assert.Equal(t, tt.wantTracks, private.Registrations)

			public, err := i.VerifyPublic(creds.Public)
			require.NoError(t, err)
			assert.Equal(t, KindPublic, public.Kind)
			assert.Equal(t, tt.hasTicket, public.HasTicket)

			// The public credential must never carry identity
			payload, err := jwt.NewParser().DecodeSegment(strings.Split(creds.Public, ".")[1])
			require.NoError(t, err)
			assert.NotContains(t, string(payload), tt.email)
			assert.NotContains(t, string(payload), "jstream_registered_tracks")
		})
	}
}

func Test_Issuer_Issue_copiesRegistrations(t *testing.T) {
	i := newTestIssuer(issuedAt)
	registrations := map[string]bool{"s1": true}
	creds, err := i.Issue("alice@example.com", true, registrations)
	require.NoError(t, err)
	registrations["s2"] = true

	claims, err := i.VerifyPrivate(creds.Private)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"s1": true}, claims.Registrations)
}

func Test_Issuer_expiryBoundary(t *testing.T) {
	creds, err := newTestIssuer(issuedAt).Issue("alice@example.com", true, map[string]bool{"s1": true})
	require.NoError(t, err)

	tests := []struct {
		name    string
		at      time.Time
		wantErr error
	}{
		{"immediately after issuance", issuedAt, nil},
		{"strictly before expiry", issuedAt.Add(300*time.Second - time.Millisecond), nil},
		{"exactly at expiry", issuedAt.Add(300 * time.Second), ErrExpiredCredential},
		{"strictly after expiry", issuedAt.Add(300*time.Second + time.Millisecond), ErrExpiredCredential},
		{"long after expiry", issuedAt.Add(24 * time.Hour), ErrExpiredCredential},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestIssuer(tt.at).VerifyPrivate(creds.Private)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.NotErrorIs(t, err, ErrInvalidCredential)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	// The public credential has a much shorter lifetime
	_, err = newTestIssuer(issuedAt.Add(29 * time.Second)).VerifyPublic(creds.Public)
	assert.NoError(t, err)
	_, err = newTestIssuer(issuedAt.Add(31 * time.Second)).VerifyPublic(creds.Public)
	assert.ErrorIs(t, err, ErrExpiredCredential)
}

func Test_Issuer_rejectsInvalidCredentials(t *testing.T) {
	i := newTestIssuer(issuedAt)
	creds, err := i.Issue("alice@example.com", true, map[string]bool{"s1": true})
	require.NoError(t, err)

	validPrivate := PrivateClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuerName,
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(time.Hour)),
		},
		Kind:          KindPrivate,
		Email:         "mallory@example.com",
		HasTicket:     true,
		Registrations: map[string]bool{"s1": true, "s2": true},
	}
	signWith := func(method jwt.SigningMethod, key interface{}, claims jwt.Claims) string {
		token, err := jwt.NewWithClaims(method, claims).SignedString(key)
		require.NoError(t, err)
		return token
	}
	withoutEmail := validPrivate
	withoutEmail.Email = ""
	withoutExpiry := validPrivate
	withoutExpiry.ExpiresAt = nil
	wrongIssuer := validPrivate
	wrongIssuer.Issuer = "someone-else"

	tests := []struct {
		name  string
		token string
	}{
		{"empty token", ""},
		{"garbage", "not.a.jwt"},
		{"signed with a different secret", signWith(jwt.SigningMethodHS256, []byte("some-other-secret"), validPrivate)},
		{"alg none", signWith(jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, validPrivate)},
		{"same secret with HS512", signWith(jwt.SigningMethodHS512, []byte(mockSecret), validPrivate)},
		{"same secret with HS384", signWith(jwt.SigningMethodHS384, []byte(mockSecret), validPrivate)},
		{"tampered payload", creds.Private[:strings.Index(creds.Private, ".")+1] + "eyJ0eXAiOiJwcml2YXRlIn0" + creds.Private[strings.LastIndex(creds.Private, "."):]},
		{"public credential presented as private", creds.Public},
		{"missing email", signWith(jwt.SigningMethodHS256, []byte(mockSecret), withoutEmail)},
		{"missing expiry", signWith(jwt.SigningMethodHS256, []byte(mockSecret), withoutExpiry)},
		{"wrong issuer", signWith(jwt.SigningMethodHS256, []byte(mockSecret), wrongIssuer)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := i.VerifyPrivate(tt.token)
			assert.ErrorIs(t, err, ErrInvalidCredential)
			assert.NotErrorIs(t, err, ErrExpiredCredential)
			assert.Nil(t, claims)
		})
	}

	// A private credential isn't accepted where a public one is expected either
	_, err = i.VerifyPublic(creds.Private)
	assert.ErrorIs(t, err, ErrInvalidCredential)
}

func Test_Issuer_Verify(t *testing.T) {
	i := newTestIssuer(issuedAt)
	creds, err := i.Issue("alice@example.com", true, map[string]bool{"s1": true})
	require.NoError(t, err)

	public, err := i.Verify(creds.Public)
	require.NoError(t, err)
	assert.Equal(t, &Claims{
		Kind:      KindPublic,
		HasTicket: true,
		ExpiresAt: issuedAt.Add(30 * time.Second),
	}, public)

	private, err := i.Verify(creds.Private)
	require.NoError(t, err)
	assert.Equal(t, &Claims{
		Kind:          KindPrivate,
		Email:         "alice@example.com",
		HasTicket:     true,
		Registrations: map[string]bool{"s1": true},
		ExpiresAt:     issuedAt.Add(300 * time.Second),
	}, private)

	_, err = newTestIssuer(issuedAt.Add(time.Hour)).Verify(creds.Private)
	assert.ErrorIs(t, err, ErrExpiredCredential)

	_, err = i.Verify("not.a.jwt")
	assert.ErrorIs(t, err, ErrInvalidCredential)
}

func Test_PrivateClaims_IsRegistered(t *testing.T) {
	claims := &PrivateClaims{Registrations: map[string]bool{"s1": true, "s2": false}}
	assert.True(t, claims.IsRegistered("s1"))
	assert.False(t, claims.IsRegistered("s2"))
	assert.False(t, claims.IsRegistered("s3"))
}
