package credential

import (
	"net/http"
	"strings"
	"time"
)

// CookieName is the cookie in which the private credential is delivered
const CookieName = "keyticket_session"

// NewCookie wraps a private credential in a cookie that page scripts can't read
func NewCookie(privateToken string, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    privateToken,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	}
}

// PrivateTokenFromRequest returns the private credential presented with a request. The
// cookie is authoritative: the Authorization header is only consulted for clients that
// don't send the cookie at all.
func PrivateTokenFromRequest(req *http.Request) string {
	if cookie, err := req.Cookie(CookieName); err == nil {
		return cookie.Value
	}
	return parseAuthorizationHeader(req.Header.Get("authorization"))
}

func parseAuthorizationHeader(value string) string {
	prefix := "Bearer "
	if strings.HasPrefix(value, prefix) {
		return value[len(prefix):]
	}
	return value
}
