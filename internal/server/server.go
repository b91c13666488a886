package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"inlineedit/internal/i18n"
	"inlineedit/internal/models"
	"inlineedit/internal/store"
)

const (
	allowRemoteEnvKey = "INLINEEDIT_ALLOW_REMOTE"
	readHeaderTimeout = 5 * time.Second
	readTimeout       = 30 * time.Second
	writeTimeout      = 60 * time.Second
	idleTimeout       = 60 * time.Second
	shutdownTimeout   = 10 * time.Second
	defaultPerPage    = 25
	maxPerPage        = 500
	loginMaxFailures  = 5
	loginWindow       = 5 * time.Minute
	loginBlockedFor   = 15 * time.Minute
)

// Store is the persistence the server needs.
type Store interface {
	store.IssueStore
	store.CatalogStore
	store.AuthStore
}

// Options carries the runtime settings of a Server.
type Options struct {
	ParentSettings  models.ParentSettings
	DefaultLocale   string
	RelativeURLRoot string
	PerPage         int
}

// Server wraps the HTTP handlers of the inline edit service.
type Server struct {
	addr         string
	store        Store
	bundle       *i18n.Bundle
	settings     models.ParentSettings
	locale       string
	root         string
	perPage      int
	authService  *AuthService
	loginLimiter *loginRateLimiter
	logger       *slog.Logger
}

// New creates a new server instance.
func New(addr string, st Store, bundle *i18n.Bundle, opts Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	perPage := opts.PerPage
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}

	return &Server{
		addr:         addr,
		store:        st,
		bundle:       bundle,
		settings:     opts.ParentSettings,
		locale:       opts.DefaultLocale,
		root:         strings.TrimRight(opts.RelativeURLRoot, "/"),
		perPage:      perPage,
		authService:  NewAuthService(st),
		loginLimiter: newLoginRateLimiter(loginMaxFailures, loginWindow, loginBlockedFor),
		logger:       logger.With("component", "server"),
	}
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	handler := s.routes()
	if s.root != "" {
		handler = http.StripPrefix(s.root, handler)
	}
	return s.withRequestLogging(handler)
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.log().Info("starting server", "addr", s.addr)
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log().Info("shutting down server", "addr", s.addr)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ListenAddr converts a base API URL into a listen address.
func ListenAddr(apiURL string) (string, error) {
	if apiURL == "" {
		return "", fmt.Errorf("api url is required")
	}
	if u, err := url.Parse(apiURL); err == nil && u.Host != "" {
		host := u.Hostname()
		if !isAllowedListenHost(host) {
			return "", fmt.Errorf("remote listen host %q requires %s=true", host, allowRemoteEnvKey)
		}
		return u.Host, nil
	}

	host, _, err := net.SplitHostPort(apiURL)
	if err == nil && !isAllowedListenHost(host) {
		return "", fmt.Errorf("remote listen host %q requires %s=true", host, allowRemoteEnvKey)
	}

	return apiURL, nil
}

func isAllowedListenHost(host string) bool {
	if host == "" {
		return true
	}
	if strings.EqualFold(strings.TrimSpace(os.Getenv(allowRemoteEnvKey)), "true") {
		return true
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func (s *Server) log() *slog.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return slog.Default()
}
