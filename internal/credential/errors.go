package credential

import "errors"

// ErrExpiredCredential is returned when a correctly-signed credential is past its expiry
var ErrExpiredCredential = errors.New("credential expired")

// ErrInvalidCredential is returned for any other verification failure: bad signature,
// malformed token, unexpected signing algorithm, wrong credential kind, or missing
// required claims
var ErrInvalidCredential = errors.New("credential invalid")

var errWrongKind = errors.New("unexpected credential kind")
var errMissingEmail = errors.New("credential has no email")
