package bill

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/rs/cors"

	"github.com/zombor/billed/internal/metrics"
	"github.com/zombor/billed/internal/scanning"
)

const defaultMaxUploadSize = 10 << 20 // 10MB

// BasicAuth holds basic authentication credentials
type BasicAuth struct {
	Username string
	Password string
}

// AttachmentOpener serves stored receipt files
type AttachmentOpener interface {
	OpenAttachment(ctx context.Context, key string) ([]byte, string, error)
}

// ServerConfig holds the optional collaborators of a Server
type ServerConfig struct {
	BasicAuth     BasicAuth
	MaxUploadSize int64
	// Files serves /files/{key}; nil when receipts live elsewhere
	Files AttachmentOpener
	// Scanner suggests form values; nil disables /api/bills/scan
	Scanner scanning.Scanner
	// Metrics is served on /metrics when set
	Metrics *metrics.Metrics
}

// Server handles HTTP requests for bills
type Server struct {
	store   Store
	cfg     ServerConfig
	mux     *http.ServeMux
	handler http.Handler
	server  *http.Server
}

// NewServer creates a new Server with default mux
func NewServer(store Store, cfg ServerConfig) *Server {
	return NewServerWithMux(store, cfg, http.NewServeMux())
}

// NewServerWithMux creates a new Server with a custom mux for testing
func NewServerWithMux(store Store, cfg ServerConfig, mux *http.ServeMux) *Server {
	if cfg.MaxUploadSize <= 0 {
		cfg.MaxUploadSize = defaultMaxUploadSize
	}
	s := &Server{
		store: store,
		cfg:   cfg,
		mux:   mux,
	}
	s.registerRoutes()
	s.handler = cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-User"},
		ExposedHeaders: []string{"Location"},
		MaxAge:         3600,
	}).Handler(s.mux)
	return s
}

// authenticate checks basic auth credentials
func (s *Server) authenticate(r *http.Request) bool {
	if s.cfg.BasicAuth.Username == "" && s.cfg.BasicAuth.Password == "" {
		return true
	}

	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Basic ") {
		return false
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(auth, "Basic "))
	if err != nil {
		return false
	}

	credentials := strings.SplitN(string(decoded), ":", 2)
	if len(credentials) != 2 {
		return false
	}

	return credentials[0] == s.cfg.BasicAuth.Username && credentials[1] == s.cfg.BasicAuth.Password
}

// sessionFromRequest resolves the caller. With basic auth configured the
// authenticated username is the user and X-User is ignored; otherwise the
// X-User record set by a trusted front proxy is used.
func (s *Server) sessionFromRequest(r *http.Request) (Session, bool) {
	var session Session
	if s.cfg.BasicAuth.Username != "" {
		user, _, _ := r.BasicAuth()
		session = Session{Type: "Employee", Email: user}
	} else if raw := r.Header.Get("X-User"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &session); err != nil {
			slog.Warn("Invalid X-User header", "error", err)
			return Session{}, false
		}
	} else if user, _, ok := r.BasicAuth(); ok {
		session = Session{Type: "Employee", Email: user}
	}
	session.Email = strings.TrimSpace(session.Email)
	return session, session.Email != ""
}

// sessionHandlerFunc is a handler that needs the caller's session
type sessionHandlerFunc func(w http.ResponseWriter, r *http.Request, session Session)

// requireAuth checks credentials and resolves the session
func (s *Server) requireAuth(next sessionHandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.authenticate(r) {
			w.Header().Set("WWW-Authenticate", `Basic realm="Billed"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		session, ok := s.sessionFromRequest(r)
		if !ok {
			writeError(w, "No user session", http.StatusUnauthorized)
			return
		}
		next(w, r, session)
	}
}

// handle registers h on pattern, instrumented under the pattern name
func (s *Server) handle(pattern string, h http.Handler) {
	s.mux.Handle(pattern, s.cfg.Metrics.Instrument(pattern, h))
}

// registerRoutes registers all API routes on the server's mux
func (s *Server) registerRoutes() {
	s.handle("GET /api/expense-types", s.requireAuth(s.handleExpenseTypes))

	s.handle("GET /api/bills/receipt", s.requireAuth(s.handleViewReceipt))
	s.handle("POST /api/bills/attachments", s.requireAuth(s.handleUploadAttachment))
	s.handle("POST /api/bills/scan", s.requireAuth(s.handleScanReceipt))
	s.handle("GET /api/bills", s.requireAuth(s.handleListBills))
	s.handle("POST /api/bills", s.requireAuth(s.handleCreateBill))

	s.handle("GET /files/{key}", s.requireAuth(s.handleGetFile))

	if s.cfg.Metrics != nil {
		s.mux.Handle("GET /metrics", s.cfg.Metrics.Handler())
	}
}

// Start starts the HTTP server and blocks until it stops
func (s *Server) Start(addr string) error {
	slog.Info("Starting server", "address", addr)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops a started server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}
