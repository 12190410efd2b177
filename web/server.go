// Package web serves a read-only JSON API over a directory session.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"phonebook/ldapdb/database"
	"phonebook/ldapdb/directory"
	"phonebook/ldapdb/directory/schema"
	"phonebook/ldapdb/logging"
)

// History returns the journaled mutations of an entry.
type History interface {
	History(ctx context.Context, dn string) ([]database.MutationRecord, error)
}

type Config struct {
	Registry *schema.Registry
	Session  *directory.Session

	// History is optional; without it the history route answers 501.
	History History

	Addr   string
	Logger *slog.Logger
}

// Server handles HTTP requests for the directory API.
type Server struct {
	registry *schema.Registry
	session  *directory.Session
	history  History
	mux      *http.ServeMux
	addr     string
	logger   *slog.Logger
}

func NewServer(cfg Config) *Server {
	s := &Server{
		registry: cfg.Registry,
		session:  cfg.Session,
		history:  cfg.History,
		mux:      http.NewServeMux(),
		addr:     cfg.Addr,
		logger:   logging.Default(cfg.Logger).With("component", "web"),
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /api/models", s.handleListModels)
	s.mux.HandleFunc("GET /api/models/{model}/entries", s.handleSearch)
	s.mux.HandleFunc("GET /api/models/{model}/count", s.handleCount)
	s.mux.HandleFunc("GET /api/models/{model}/entry", s.handleGetEntry)
	s.mux.HandleFunc("GET /api/history", s.handleHistory)
}

// Start listens until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Handler returns the HTTP handler for use with custom servers.
func (s *Server) Handler() http.Handler {
	return s.mux
}
