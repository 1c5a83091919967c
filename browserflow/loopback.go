// Package browserflow implements pkce.Navigator for native (non-browser)
// hosts using the RFC 8252 loopback redirect: the authorization URL is
// opened in the system browser and the redirect back is captured by a
// short-lived local HTTP server.
package browserflow

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os/exec"
	"runtime"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// ErrTimeout reports that the user did not complete the login before the
// callback server gave up.
var ErrTimeout = errors.New("timed out waiting for authorization callback")

const defaultTimeout = 5 * time.Minute

const callbackPage = `<!DOCTYPE html>
<html><body><p>Login complete. You may close this window.</p></body></html>`

// Loopback is a pkce.Navigator backed by a loopback callback server.
// Replace blocks until the authorization server redirects back (or the
// timeout elapses); afterwards Location returns the callback URL including
// its code/state query parameters.
type Loopback struct {
	listenAddr   string
	callbackPath string
	timeout      time.Duration
	openBrowser  func(rawURL string) error

	mu      sync.Mutex
	current *url.URL
}

// Option modifies a Loopback instance.
type Option func(*Loopback)

// WithTimeout sets how long Replace waits for the callback.
func WithTimeout(timeout time.Duration) Option {
	return func(l *Loopback) {
		l.timeout = timeout
	}
}

// WithBrowserOpener overrides how the authorization URL is opened
// (primarily for testing).
func WithBrowserOpener(open func(rawURL string) error) Option {
	return func(l *Loopback) {
		l.openBrowser = open
	}
}

// New creates a Loopback listening on listenAddr (e.g. "127.0.0.1:8089")
// with the redirect registered at callbackPath (e.g. "/callback"). The
// client's redirect URL must be "http://" + listenAddr + callbackPath.
func New(listenAddr, callbackPath string, opts ...Option) *Loopback {
	l := &Loopback{
		listenAddr:   listenAddr,
		callbackPath: callbackPath,
		timeout:      defaultTimeout,
		openBrowser:  openSystemBrowser,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Location returns the most recent callback URL, nil before the first
// Replace completes.
func (l *Loopback) Location() *url.URL {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

// Replace opens the URL in the system browser and waits for the redirect
// back on the loopback server.
func (l *Loopback) Replace(u *url.URL) error {
	callbackChan := make(chan *url.URL, 1)

	mux := http.NewServeMux()
	mux.HandleFunc(fmt.Sprintf("GET %s", l.callbackPath), func(w http.ResponseWriter, r *http.Request) {
		callback := *r.URL
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(callbackPage))
		select {
		case callbackChan <- &callback:
		default: // a second hit on the callback is ignored
		}
	})

	server := &http.Server{Addr: l.listenAddr, Handler: mux}
	serveErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.Info().Str("url", fmt.Sprintf("http://%s%s", l.listenAddr, l.callbackPath)).Msg("waiting for authorization callback")
	if err := l.openBrowser(u.String()); err != nil {
		return errors.Wrap(err, "[Replace] open browser")
	}

	select {
	case callback := <-callbackChan:
		l.mu.Lock()
		l.current = callback
		l.mu.Unlock()
		return nil
	case err := <-serveErr:
		return errors.Wrap(err, "[Replace] callback server")
	case <-time.After(l.timeout):
		return ErrTimeout
	}
}

// ReplaceHistory records the scrubbed location; there is no visible address
// bar on a native host, so this only keeps Location consistent.
func (l *Loopback) ReplaceHistory(u *url.URL) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.current = u
	return nil
}

func openSystemBrowser(rawURL string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", rawURL)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", rawURL)
	default:
		cmd = exec.Command("xdg-open", rawURL)
	}
	return cmd.Start()
}
