package pretix

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"html"
	"net/http"
	"time"

	"github.com/pkg/browser"
)

// PromptForCodeGrant spins up a small HTTP server on http://localhost:<port>, then
// opens a browser window that sends the user to pretix to sign in, and waits for pretix
// to redirect back to that server with an authorization code. The pretix OAuth
// application must list 'http://localhost:<port>/callback' as a valid redirect URI.
// The returned Config has its RedirectUri set to that local URL, since the same value
// must accompany the code when it's exchanged.
func PromptForCodeGrant(ctx context.Context, cfg Config, port uint16) (string, Config, error) {
	cfg.RedirectUri = fmt.Sprintf("http://localhost:%d/callback", port)

	// We'll verify that pretix sends back the same 'state' value in the redirect
	csrfToken, err := generateCsrfToken()
	if err != nil {
		return "", cfg, err
	}

	// Give up if the user doesn't complete the sign-in within a few minutes
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	codeChannel := make(chan string, 1)
	errorChannel := make(chan error, 1)
	handleCallback := func(res http.ResponseWriter, req *http.Request) {
		if req.URL.Path != "/callback" {
			http.Error(res, "path not supported", http.StatusNotFound)
			return
		}
		if req.Method != http.MethodGet {
			http.Error(res, "method not supported", http.StatusMethodNotAllowed)
			return
		}
		code, err := parseCodeGrant(req, csrfToken)
		if err != nil {
			servePage(res, http.StatusBadRequest, "Sign-in Failed", err.Error())
			errorChannel <- err
			return
		}
		servePage(res, http.StatusOK, "Sign-in OK", "An authorization code has been received from pretix.")
		codeChannel <- code
	}

	server := &http.Server{
		Addr:    fmt.Sprintf("localhost:%d", port),
		Handler: http.HandlerFunc(handleCallback),
	}
	go func() {
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			errorChannel <- fmt.Errorf("error running callback server: %w", err)
		}
	}()
	defer server.Shutdown(context.Background())

	authorizeUrl := AuthorizeUrl(cfg, csrfToken)
	fmt.Printf("Opening web browser: %s\n", authorizeUrl)
	browser.OpenURL(authorizeUrl)

	select {
	case code := <-codeChannel:
		return code, cfg, nil
	case err := <-errorChannel:
		return "", cfg, err
	case <-ctx.Done():
		return "", cfg, fmt.Errorf("timed out waiting for user authorization")
	}
}

// generateCsrfToken returns a cryptographically random hex string
func generateCsrfToken() (string, error) {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate CSRF token: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}

// parseCodeGrant verifies that the callback request carries our CSRF token and an
// authorization code, returning the code
func parseCodeGrant(req *http.Request, csrfToken string) (string, error) {
	q := req.URL.Query()
	if errorCode := q.Get("error"); errorCode != "" {
		return "", fmt.Errorf("authorization was not granted: %s", errorCode)
	}
	state := q.Get("state")
	if state == "" {
		return "", fmt.Errorf("'state' value not found in URL query params")
	}
	if state != csrfToken {
		return "", fmt.Errorf("CSRF token verification failed")
	}
	code := q.Get("code")
	if code == "" {
		return "", fmt.Errorf("'code' value not found in URL query params")
	}
	return code, nil
}

// servePage answers the browser that pretix redirected back to us, so the operator
// knows whether to return to the terminal or try signing in again
func servePage(res http.ResponseWriter, statusCode int, title string, message string) {
	next := "Return to your terminal to see the ticket check result."
	if statusCode >= 300 {
		next = "Run checkticket again to retry the pretix sign-in."
	}
	res.Header().Set("Content-Type", "text/html; charset=utf-8")
	res.WriteHeader(statusCode)
	fmt.Fprintf(res, callbackPageTemplate, html.EscapeString(title), html.EscapeString(title), html.EscapeString(message), next)
}

const callbackPageTemplate = `<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>keyticket: %s</title></head>
<body>
<h1>%s</h1>
<p>%s</p>
<p>%s</p>
</body>
</html>
`
