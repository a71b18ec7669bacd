package http

import (
	"log/slog"
	"net/http"
	"time"

	"gamecatalog/auth"
	"gamecatalog/catalog"

	"github.com/gorilla/mux"
)

// Options tune the transport; a zero WriteRatePerMinute disables rate
// limiting of the mutating routes.
type Options struct {
	WriteRatePerMinute float64
	WriteBurst         int
	Logger             *slog.Logger
}

type Server struct {
	router   *mux.Router
	handler  http.Handler
	handlers *Handlers
	limiter  *RateLimiter
	logger   *slog.Logger
}

func NewServer(svc *catalog.Service, checker *auth.Checker, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	server := &Server{
		router:   mux.NewRouter(),
		handlers: NewHandlers(svc, logger),
		logger:   logger,
	}
	if opts.WriteRatePerMinute > 0 {
		server.limiter = NewRateLimiter(PerMinute(opts.WriteRatePerMinute), opts.WriteBurst, logger)
	}

	server.setupRoutes(checker)

	// Wrapped outside the router so unmatched routes and preflights are
	// logged and get the same headers.
	server.handler = RequestIDMiddleware(
		LoggingMiddleware(logger)(
			SecurityHeadersMiddleware(
				CORSMiddleware(server.router))))

	return server
}

func (s *Server) setupRoutes(checker *auth.Checker) {
	s.router.HandleFunc("/healthz", s.handlers.Health).Methods(http.MethodGet)

	// Listing is public
	s.router.HandleFunc("/jogos", s.handlers.ListEntries).Methods(http.MethodGet)

	protected := s.router.Methods(http.MethodPost, http.MethodPut, http.MethodDelete).Subrouter()
	if s.limiter != nil {
		protected.Use(s.limiter.Middleware)
	}
	protected.Use(BasicAuthMiddleware(checker, s.logger))

	protected.HandleFunc("/jogos", s.handlers.CreateEntry).Methods(http.MethodPost)
	protected.HandleFunc("/jogos/{id}", s.handlers.UpdateEntry).Methods(http.MethodPut)
	protected.HandleFunc("/jogos/{id}", s.handlers.DeleteEntry).Methods(http.MethodDelete)

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, s.logger, http.StatusNotFound, "not found")
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, s.logger, http.StatusMethodNotAllowed, "method not allowed")
	})
}

// Handler returns the router wrapped in the global middleware chain.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) GetHTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

// Close releases background resources held by the server.
func (s *Server) Close() {
	if s.limiter != nil {
		s.limiter.Close()
	}
}
