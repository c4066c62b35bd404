// Package server exposes the manager's local HTTP API: gateway
// lifecycle, integration connect flows, permissions, policies, audit
// and log reads. It binds loopback and authenticates every request
// with a shared token, except the browser-facing OAuth callback.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/nextlevelbuilder/clawman/internal/audit"
	"github.com/nextlevelbuilder/clawman/internal/config"
	"github.com/nextlevelbuilder/clawman/internal/diagnostics"
	"github.com/nextlevelbuilder/clawman/internal/gatewayctl"
	"github.com/nextlevelbuilder/clawman/internal/logs"
	"github.com/nextlevelbuilder/clawman/internal/oauthflow"
	"github.com/nextlevelbuilder/clawman/internal/state"
)

// TokenHeader carries the shared manager token on every API request.
const TokenHeader = "x-openclaw-token"

// TelegramValidator checks a bot token against the Telegram API and
// returns a human-readable bot label.
type TelegramValidator interface {
	Validate(ctx context.Context, token string) (string, error)
}

// Server wires the manager's collaborators behind the HTTP API.
type Server struct {
	cfg       *config.Config
	states    *state.Store
	gateway   *gatewayctl.Controller
	audits    *audit.Log
	handshake *oauthflow.Handshake
	telegram  TelegramValidator
	logFile   logs.Resolver
	diag      *diagnostics.Runner

	mux        *http.ServeMux
	httpServer *http.Server
}

func New(cfg *config.Config, states *state.Store, gateway *gatewayctl.Controller,
	audits *audit.Log, handshake *oauthflow.Handshake, telegram TelegramValidator,
	logFile logs.Resolver) *Server {

	s := &Server{
		cfg:       cfg,
		states:    states,
		gateway:   gateway,
		audits:    audits,
		handshake: handshake,
		telegram:  telegram,
		logFile:   logFile,
	}
	s.diag = &diagnostics.Runner{
		Gateway:     gateway,
		States:      states,
		LogResolver: logFile,
	}
	return s
}

// BuildMux creates and caches the mux with all routes registered.
func (s *Server) BuildMux() *http.ServeMux {
	if s.mux != nil {
		return s.mux
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("GET /api/status", s.auth(s.handleStatus))
	mux.HandleFunc("POST /api/gateway/start", s.auth(s.handleGatewayStart))
	mux.HandleFunc("POST /api/gateway/stop", s.auth(s.handleGatewayStop))
	mux.HandleFunc("POST /api/gateway/restart", s.auth(s.handleGatewayRestart))

	mux.HandleFunc("POST /api/integrations/telegram/connect", s.auth(s.handleTelegramConnect))
	mux.HandleFunc("POST /api/integrations/telegram/disconnect", s.auth(s.handleTelegramDisconnect))

	mux.HandleFunc("GET /api/integrations/gmail/oauth-creds", s.auth(s.handleGmailCredsGet))
	mux.HandleFunc("POST /api/integrations/gmail/oauth-creds", s.auth(s.handleGmailCredsSet))
	mux.HandleFunc("DELETE /api/integrations/gmail/oauth-creds", s.auth(s.handleGmailCredsClear))

	mux.HandleFunc("GET /api/integrations/gmail/oauth/status", s.auth(s.handleGmailOAuthStatus))
	mux.HandleFunc("POST /api/integrations/gmail/oauth/start", s.auth(s.handleGmailOAuthStart))
	mux.HandleFunc("DELETE /api/integrations/gmail/oauth", s.auth(s.handleGmailOAuthClear))

	// The provider redirects the user's browser here; it cannot carry
	// the manager token, so this route is deliberately unauthenticated.
	mux.HandleFunc("GET /oauth/google/callback", s.handleOAuthCallback)

	mux.HandleFunc("GET /api/permissions", s.auth(s.handlePermissionsGet))
	mux.HandleFunc("POST /api/permissions", s.auth(s.handlePermissionsSet))
	mux.HandleFunc("POST /api/permissions/reset", s.auth(s.handlePermissionsReset))

	mux.HandleFunc("GET /api/policies/confirm-before-send", s.auth(s.handleConfirmPolicyGet))
	mux.HandleFunc("POST /api/policies/confirm-before-send", s.auth(s.handleConfirmPolicySet))

	mux.HandleFunc("GET /api/audit/recent", s.auth(s.handleAuditRecent))
	mux.HandleFunc("GET /api/logs/recent", s.auth(s.handleLogsRecent))
	mux.HandleFunc("POST /api/diagnostics/run", s.auth(s.handleDiagnosticsRun))

	s.mux = mux
	return mux
}

// Start re-projects the derived config, begins watching the state
// file for out-of-process writes, and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if err := s.states.Reproject(); err != nil {
		slog.Warn("startup reprojection failed", "error", err)
	}

	stopWatch, err := watchStateFile(s.states)
	if err != nil {
		slog.Warn("state file watch unavailable", "error", err)
	} else {
		defer stopWatch()
	}

	addr := s.cfg.ListenAddr()
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.BuildMux(),
	}

	slog.Info("manager listening", "addr", addr)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("manager server: %w", err)
	}
	return nil
}

func (s *Server) auth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.Manager.Token == "" || r.Header.Get(TokenHeader) != s.cfg.Manager.Token {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		next(w, r)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
