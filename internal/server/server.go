// Package server wires the invitation flow into an HTTP JSON API. The
// browser is a thin client: every screen transition, game tick, and coin
// balance lives server-side in the session, and the client only renders
// what these handlers return.
package server

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ldelange/invitation/internal/middleware"
	"github.com/ldelange/invitation/internal/service"
	"github.com/ldelange/invitation/internal/session"
	"github.com/ldelange/invitation/internal/storage"
)

// Server holds the handler dependencies.
type Server struct {
	store    storage.Store
	sessions *session.Manager
	rsvp     *service.RSVPService
	static   string
}

// New creates a Server. staticDir may be empty to disable file serving.
func New(store storage.Store, sessions *session.Manager, rsvp *service.RSVPService, staticDir string) *Server {
	return &Server{
		store:    store,
		sessions: sessions,
		rsvp:     rsvp,
		static:   staticDir,
	}
}

// Handler builds the route table with logging, CORS, and metrics applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	mux.HandleFunc("GET /api/sessions/{id}", s.handleSessionState)
	mux.HandleFunc("POST /api/sessions/{id}/advance", s.handleAdvance)

	mux.HandleFunc("POST /api/sessions/{id}/petal/tick", s.handlePetalTick)
	mux.HandleFunc("POST /api/sessions/{id}/petal/catch", s.handlePetalCatch)
	mux.HandleFunc("POST /api/sessions/{id}/reaction/tick", s.handleReactionTick)
	mux.HandleFunc("POST /api/sessions/{id}/reaction/stop", s.handleReactionStop)
	mux.HandleFunc("POST /api/sessions/{id}/reaction/reset", s.handleReactionReset)
	mux.HandleFunc("POST /api/sessions/{id}/jackpot", s.handleJackpot)

	mux.HandleFunc("GET /api/sessions/{id}/quote", s.handleQuote)
	mux.HandleFunc("POST /api/sessions/{id}/seats", s.handlePurchaseSeats)
	mux.HandleFunc("POST /api/sessions/{id}/details", s.handleDetails)
	mux.HandleFunc("GET /api/sessions/{id}/payment", s.handlePaymentInfo)
	mux.HandleFunc("POST /api/sessions/{id}/submit", s.handleSubmit)
	mux.HandleFunc("POST /api/sessions/{id}/decline", s.handleDecline)

	mux.HandleFunc("GET /api/guests/{code}", s.handleGetGuest)
	mux.HandleFunc("GET /api/rsvps/{code}", s.handleProbeRSVP)

	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/", s.handleStatic)

	return middleware.Logging(middleware.Metrics(middleware.CORS(mux)))
}

// handleStatic serves the SPA shell for non-API routes. Unknown paths fall
// back to index.html; the invite code rides in as ?g=<code>.
func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		http.NotFound(w, r)
		return
	}
	if s.static == "" {
		http.NotFound(w, r)
		return
	}

	urlPath := r.URL.Path
	if urlPath == "/" {
		urlPath = "/index.html"
	}
	filePath := filepath.Join(s.static, filepath.Clean(urlPath))
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		http.ServeFile(w, r, filepath.Join(s.static, "index.html"))
		return
	}
	http.ServeFile(w, r, filePath)
}
