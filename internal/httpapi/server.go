// Package httpapi exposes team admission, readiness and the admin operations over HTTP.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-logr/logr"
	"sigs.k8s.io/controller-runtime/pkg/manager"

	"github.com/dc-tec/wrongsecrets-balancer/internal/admission"
	"github.com/dc-tec/wrongsecrets-balancer/internal/config"
	"github.com/dc-tec/wrongsecrets-balancer/internal/session"
	"github.com/dc-tec/wrongsecrets-balancer/internal/team"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// Instances is the part of the orchestrator the HTTP surface calls.
type Instances interface {
	List(ctx context.Context) ([]team.InstanceRecord, error)
	AwaitReadiness(ctx context.Context, teamName string) error
	Delete(ctx context.Context, teamName string) error
	RestartWorkload(ctx context.Context, teamName string) error
	RestartDesktop(ctx context.Context, teamName string) error
	TouchLastRequest(ctx context.Context, teamName string) error
}

// Admission decides joins and passcode resets.
type Admission interface {
	Join(ctx context.Context, req admission.JoinRequest) (admission.JoinResult, error)
	ResetPasscode(ctx context.Context, teamName string) (string, error)
	IsAdmin(teamName string) bool
}

// Server serves the balancer API. It runs as a manager.Runnable.
type Server struct {
	mux       *http.ServeMux
	instances Instances
	admission Admission
	sessions  *session.Manager
	limiter   *clientLimiters
	logger    logr.Logger
	address   string
}

var _ manager.LeaderElectionRunnable = (*Server)(nil)

// New assembles the routes.
func New(instances Instances, admit Admission, sessions *session.Manager, logger logr.Logger, cfg config.HTTP) *Server {
	s := &Server{
		mux:       http.NewServeMux(),
		instances: instances,
		admission: admit,
		sessions:  sessions,
		limiter:   newClientLimiters(cfg.JoinRateLimit, cfg.JoinBurst),
		logger:    logger.WithName("http"),
		address:   cfg.Address,
	}
	s.register()
	return s
}

func (s *Server) register() {
	s.mux.HandleFunc("POST /balancer/teams/{team}/join", s.withRateLimit(s.handleJoin))
	s.mux.HandleFunc("GET /balancer/teams/{team}/wait-till-ready", s.touch(s.handleWaitTillReady))
	s.mux.HandleFunc("POST /balancer/teams/reset-passcode", s.touch(s.handleResetPasscode))
	s.mux.HandleFunc("POST /balancer/teams/logout", s.handleLogout)

	s.mux.HandleFunc("GET /balancer/admin/all", s.requireAdmin(s.handleListInstances))
	s.mux.HandleFunc("POST /balancer/admin/teams/{team}/restart", s.requireAdmin(s.handleRestart))
	s.mux.HandleFunc("POST /balancer/admin/teams/{team}/restartdesktop", s.requireAdmin(s.handleRestartDesktop))
	s.mux.HandleFunc("DELETE /balancer/admin/teams/{team}/delete", s.requireAdmin(s.handleDelete))
}

// ServeHTTP delegates to the route table.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.address,
		Handler:           s,
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Serving balancer API", "address", s.address)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("balancer API server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down balancer API server: %w", err)
	}
	return nil
}

// NeedLeaderElection returns false: every replica serves requests.
func (s *Server) NeedLeaderElection() bool {
	return false
}

func (s *Server) withRateLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow(clientKey(r)) {
			writeMessage(w, http.StatusTooManyRequests, "Too many requests, slow down")
			return
		}
		next(w, r)
	}
}

// touch records activity for the team of the session, if any. It never fails the request.
func (s *Server) touch(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if teamName, err := s.sessions.Team(r); err == nil && !s.admission.IsAdmin(teamName) {
			if err := s.instances.TouchLastRequest(r.Context(), teamName); err != nil {
				s.logger.V(1).Info("Failed to record team activity", "team", teamName, "error", err.Error())
			}
		}
		next(w, r)
	}
}

func (s *Server) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		teamName, err := s.sessions.Team(r)
		if err != nil || !s.admission.IsAdmin(teamName) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}
