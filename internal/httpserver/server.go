// internal/httpserver/server.go
//
// HTTP server wiring for the garden share API.
// Responsibilities:
//   - Router + middleware (request IDs, access log, panic recovery, timeouts, CORS).
//   - Public endpoints: "/health", "/api".
//   - Auth endpoints (rate limited): mounted under /api/auth.
//   - Owner-scoped resources (require auth): /api/gardens, /api/crops, /api/profile.
//   - JSON fallbacks for unknown routes and methods.
//
// Notes:
//   - Every response is JSON with a "success" flag; failures carry "error".
//   - Handlers reach the database only through datastore.From[T] and always
//     scope reads and writes by the authenticated user's id.

package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/robalobadob/gardenshare/internal/auth"
	"github.com/robalobadob/gardenshare/internal/datastore"
	"github.com/robalobadob/gardenshare/internal/media"
)

// Version is reported by GET /api.
const Version = "1.0.0"

// Deps are the collaborators a Server needs.
type Deps struct {
	Store     *datastore.Client
	Tokens    *auth.Tokens
	Passwords *auth.Passwords
	Media     media.Store
	Log       zerolog.Logger
}

// Options tune request handling. Zero values fall back to defaults.
type Options struct {
	CORSOrigins       []string
	MediaFolder       string
	MaxUploadBytes    int64
	AuthRatePerMinute int // 0 disables the auth rate limit
	RequestTimeout    time.Duration
}

func (o Options) withDefaults() Options {
	if len(o.CORSOrigins) == 0 {
		o.CORSOrigins = []string{"http://localhost:3000"}
	}
	if o.MediaFolder == "" {
		o.MediaFolder = "garden-app"
	}
	if o.MaxUploadBytes <= 0 {
		o.MaxUploadBytes = 5 << 20
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 15 * time.Second
	}
	return o
}

// Server bundles the router and its dependencies.
type Server struct {
	r         *chi.Mux
	db        *datastore.Client
	tokens    *auth.Tokens
	passwords *auth.Passwords
	media     media.Store
	log       zerolog.Logger
	validate  *validator.Validate
	opts      Options
	started   time.Time
	now       func() time.Time
}

// New constructs a Server, installs middleware, and registers routes.
func New(d Deps, opts Options) *Server {
	opts = opts.withDefaults()
	s := &Server{
		r:         chi.NewRouter(),
		db:        d.Store,
		tokens:    d.Tokens,
		passwords: d.Passwords,
		media:     d.Media,
		log:       d.Log,
		validate:  newValidator(),
		opts:      opts,
		started:   time.Now(),
		now:       time.Now,
	}

	// --- middleware ---
	s.r.Use(chimw.RequestID)                    // add X-Request-ID
	s.r.Use(chimw.RealIP)                       // set RemoteAddr from X-Forwarded-For etc.
	s.r.Use(hlog.NewHandler(s.log))             // request-scoped logger
	s.r.Use(accessLog)                          // one line per request
	s.r.Use(s.recoverer)                        // panics become JSON 500s
	s.r.Use(timeout(opts.RequestTimeout))       // bound handler time, JSON 504
	s.r.Use(jsonContentType)                    // default JSON responses
	s.r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// JSON fallbacks; set before mounting so sub-routers inherit them
	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Route not found")
	})
	s.r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	// --- diagnostics ---
	s.r.Get("/health", s.handleHealth)

	s.r.Route("/api", func(r chi.Router) {
		r.Get("/", s.handleIndex)
		r.Route("/auth", s.mountAuth)
		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)
			r.Route("/gardens", s.mountGardens)
			r.Route("/crops", s.mountCrops)
			r.Route("/profile", s.mountProfile)
		})
	})

	return s
}

// Router exposes the internal router (useful for tests).
func (s *Server) Router() chi.Router { return s.r }

// Start serves HTTP on addr until ctx is cancelled, then drains in-flight
// requests for up to ten seconds.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	s.log.Info().Msg("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	code, status, dbState := http.StatusOK, "OK", "up"
	if err := s.db.Ping(r.Context()); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("health: database ping")
		code, status, dbState = http.StatusServiceUnavailable, "DEGRADED", "down"
	}
	writeJSON(w, code, map[string]any{
		"status":    status,
		"timestamp": s.now().UTC().Format(time.RFC3339),
		"uptime":    int64(time.Since(s.started).Seconds()),
		"database":  dbState,
	})
}

// GET /api
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	writeOK(w, http.StatusOK, "Garden Share API", map[string]any{
		"version": Version,
		"endpoints": map[string]string{
			"auth":    "/api/auth",
			"gardens": "/api/gardens",
			"crops":   "/api/crops",
			"profile": "/api/profile",
			"health":  "/health",
		},
	})
}
