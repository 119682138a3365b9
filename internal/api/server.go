package api

import (
	"context"
	"net/http"

	"github.com/callwaiting/ttsbridge/internal/api/middleware"
	"github.com/callwaiting/ttsbridge/internal/audiostore"
	"github.com/callwaiting/ttsbridge/internal/config"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// Version is reported by GET /. It is overridden at build time.
var Version = "dev"

// Synthesizer turns text into audio bytes. *synth.Client implements it.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice string) ([]byte, error)
	URL() string
}

// Server holds HTTP handler dependencies and the chi router.
type Server struct {
	router *chi.Mux
	cfg    *config.Config
	store  *audiostore.Store
	synth  Synthesizer
	stats  *Stats

	testLimiter *middleware.IPRateLimiter
}

// NewServer creates the HTTP handler with all routes mounted.
func NewServer(cfg *config.Config, store *audiostore.Store, synth Synthesizer) *Server {
	s := &Server{
		router:      chi.NewRouter(),
		cfg:         cfg,
		store:       store,
		synth:       synth,
		stats:       &Stats{},
		testLimiter: middleware.NewIPRateLimiter(middleware.SynthesisRateLimitConfig()),
	}

	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Router exposes the router so callers can mount extra endpoints (/metrics).
func (s *Server) Router() chi.Router {
	return s.router
}

// Stats returns the pipeline counters.
func (s *Server) Stats() *Stats {
	return s.stats
}

// Close stops background goroutines owned by the server.
func (s *Server) Close() {
	s.testLimiter.Stop()
}

// routes configures all middleware and mounts all routes.
func (s *Server) routes() {
	r := s.router

	// Global middleware stack.
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.StructuredLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.SecurityHeaders(s.cfg.TLSEnabled()))

	r.Get("/", s.handleHome)
	r.Get("/health", s.handleHealth)

	r.Get("/audio/{filename}", s.handleAudio)
	r.Head("/audio/{filename}", s.handleAudio)

	r.Group(func(r chi.Router) {
		if s.cfg.TwilioAuthToken != "" {
			r.Use(middleware.ValidateTwilioSignature(s.cfg.TwilioAuthToken, s.requestURL))
		}
		r.Post("/twilio/voice", s.handleVoice)
	})

	r.With(middleware.RateLimit(s.testLimiter)).Post("/test/tts", s.handleTestTTS)
}
