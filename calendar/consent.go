package calendar

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// LocalServerConsent runs the OAuth authorization code flow with a redirect
// listener on the loopback interface.
type LocalServerConsent struct {
	// Out receives the authorization URL. Defaults to os.Stdout.
	Out io.Writer

	// Open, if set, is called with the authorization URL, typically to
	// launch a browser.
	Open func(authURL string) error
}

type consentResult struct {
	code string
	err  error
}

func (l *LocalServerConsent) Consent(ctx context.Context, conf *oauth2.Config) (*oauth2.Token, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("failed to start redirect listener: %w", err)
	}

	cfg := *conf
	cfg.RedirectURL = fmt.Sprintf("http://%s/", ln.Addr().String())
	state := uuid.NewString()

	results := make(chan consentResult, 1)
	srv := &http.Server{Handler: consentHandler(state, results)}

	go srv.Serve(ln)
	defer srv.Close()

	authURL := cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)

	out := l.Out
	if out == nil {
		out = os.Stdout
	}
	fmt.Fprintf(out, "Open this URL in your browser to authorize calendar access:\n%s\n", authURL)

	if l.Open != nil {
		if err := l.Open(authURL); err != nil {
			fmt.Fprintf(out, "could not open browser: %v\n", err)
		}
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-results:
		if r.err != nil {
			return nil, r.err
		}

		tok, err := cfg.Exchange(ctx, r.code)
		if err != nil {
			return nil, fmt.Errorf("failed to exchange auth code: %w", err)
		}
		return tok, nil
	}
}

func consentHandler(state string, results chan<- consentResult) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		// Browsers also ask for things like /favicon.ico.
		if q.Get("state") != state {
			http.Error(w, "invalid state", http.StatusBadRequest)
			return
		}

		var res consentResult
		switch {
		case q.Get("error") != "":
			res.err = fmt.Errorf("authorization denied: %s", q.Get("error"))
		case q.Get("code") == "":
			res.err = errors.New("authorization response has no code")
		default:
			res.code = q.Get("code")
		}

		select {
		case results <- res:
		default:
		}

		if res.err != nil {
			fmt.Fprintln(w, "Authorization failed. You can close this window.")
			return
		}
		fmt.Fprintln(w, "Authorization complete. You can close this window.")
	})
}
