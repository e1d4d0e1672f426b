// Package http exposes the load API: token issuance, compliance-gated card
// loads, and the audited event listing.
package http

import (
	"bytes"
	"context"
	_ "embed"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/yuin/goldmark"

	"limits/internal/core"
	"limits/internal/services"
	"limits/internal/storage"
)

//go:embed home.md
var homeMarkdown []byte

// UserStore resolves the acting user. There is no session layer; requests
// act as the instance's single provisioned user.
type UserStore interface {
	FirstUser(ctx context.Context) (core.User, error)
}

// EventLister reads back audited load attempts.
type EventLister interface {
	ListLoadEvents(ctx context.Context, cardID int64, limit int) ([]storage.LoadEvent, error)
}

type Server struct {
	http.Server
	loads       *services.LoadService
	users       UserStore
	events      EventLister
	rateLimiter *rateLimiter

	homeHTML     []byte
	shutdownOnce sync.Once
}

// NewServer configures routes and renders the home page, returning a
// ready-to-run http.Server.
func NewServer(addr string, loads *services.LoadService, users UserStore, events EventLister) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		loads:       loads,
		users:       users,
		events:      events,
		rateLimiter: newRateLimiter(60),
	}

	// The home page is static markdown; render it once at startup.
	var buf bytes.Buffer
	if err := goldmark.Convert(homeMarkdown, &buf); err != nil {
		slog.Warn("Failed rendering home page markdown", "error", err)
	}
	s.homeHTML = buf.Bytes()

	mux.HandleFunc("GET /{$}", s.withMiddleware(s.handleHome))
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)
	mux.HandleFunc("POST /tokens/", s.withMiddleware(s.handleToken))
	mux.HandleFunc("POST /cards/{id}/load/", s.withMiddleware(s.handleLoad))
	mux.HandleFunc("GET /cards/{id}/events/", s.withMiddleware(s.handleListEvents))

	return s
}

// Shutdown stops the server and its cleanup goroutines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	if len(s.homeHTML) == 0 {
		writeHTTPError(w, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(s.homeHTML)
}
