package credential

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// issuerName is embedded in every credential and required on verification
const issuerName = "keyticket"

// Credentials is the pair of signed tokens handed to the user upon login
type Credentials struct {
	Public           string
	PublicExpiresAt  time.Time
	Private          string
	PrivateExpiresAt time.Time
	PrivateTtl       time.Duration
}

// Issuer mints and verifies HS256-signed session credentials with a shared secret
type Issuer struct {
	secret     []byte
	privateTtl time.Duration
	publicTtl  time.Duration
	now        func() time.Time
}

func NewIssuer(secret string, privateTtl time.Duration, publicTtl time.Duration) *Issuer {
	return &Issuer{
		secret:     []byte(secret),
		privateTtl: privateTtl,
		publicTtl:  publicTtl,
		now:        time.Now,
	}
}

// Issue signs a public and a private credential for a user who has just logged in. The
// registrations map is copied, so later changes by the caller don't leak in.
func (i *Issuer) Issue(email string, hasTicket bool, registrations map[string]bool) (*Credentials, error) {
	now := i.now()
	tracks := make(map[string]bool, len(registrations))
	for streamId, ok := range registrations {
		if ok {
			tracks[streamId] = true
		}
	}

	public := PublicClaims{
		RegisteredClaims: i.registeredClaims(now, i.publicTtl),
		Kind:             KindPublic,
		HasTicket:        hasTicket,
	}
	publicToken, err := i.sign(public)
	if err != nil {
		return nil, err
	}

	private := PrivateClaims{
		RegisteredClaims: i.registeredClaims(now, i.privateTtl),
		Kind:             KindPrivate,
		Email:            email,
		HasTicket:        hasTicket,
		Registrations:    tracks,
	}
	privateToken, err := i.sign(private)
	if err != nil {
		return nil, err
	}

	return &Credentials{
		Public:           publicToken,
		PublicExpiresAt:  public.ExpiresAt.Time,
		Private:          privateToken,
		PrivateExpiresAt: private.ExpiresAt.Time,
		PrivateTtl:       i.privateTtl,
	}, nil
}

// VerifyPublic decodes a public credential
func (i *Issuer) VerifyPublic(token string) (*PublicClaims, error) {
	var claims PublicClaims
	if err := i.parse(token, &claims); err != nil {
		return nil, err
	}
	return &claims, nil
}

// VerifyPrivate decodes a private credential. A public credential is rejected as
// invalid, since it doesn't identify the user.
func (i *Issuer) VerifyPrivate(token string) (*PrivateClaims, error) {
	var claims PrivateClaims
	if err := i.parse(token, &claims); err != nil {
		return nil, err
	}
	if claims.Registrations == nil {
		claims.Registrations = make(map[string]bool)
	}
	return &claims, nil
}

// Verify decodes a credential of either kind
func (i *Issuer) Verify(token string) (*Claims, error) {
	var claims anyClaims
	if err := i.parse(token, &claims); err != nil {
		return nil, err
	}
	result := &Claims{
		Kind:      claims.Kind,
		HasTicket: claims.HasTicket,
		ExpiresAt: claims.ExpiresAt.Time.UTC(),
	}
	if claims.Kind == KindPrivate {
		result.Email = claims.Email
		result.Registrations = claims.Registrations
		if result.Registrations == nil {
			result.Registrations = make(map[string]bool)
		}
	}
	return result, nil
}

func (i *Issuer) registeredClaims(now time.Time, ttl time.Duration) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Issuer:    issuerName,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
}

func (i *Issuer) sign(claims jwt.Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign credential: %w", err)
	}
	return signed, nil
}

// parse verifies the token's signature with HS256 only, regardless of what the token's
// header claims, then checks expiry, issuer and the claims' own Validate method
func (i *Issuer) parse(token string, claims jwt.Claims) error {
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(issuerName),
		jwt.WithTimeFunc(i.now),
	)
	if err == nil {
		return nil
	}
	if errors.Is(err, jwt.ErrTokenExpired) {
		return fmt.Errorf("%w: %v", ErrExpiredCredential, err)
	}
	return fmt.Errorf("%w: %v", ErrInvalidCredential, err)
}
