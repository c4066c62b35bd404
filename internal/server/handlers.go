package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/nextlevelbuilder/clawman/internal/audit"
	"github.com/nextlevelbuilder/clawman/internal/gatewayctl"
	"github.com/nextlevelbuilder/clawman/internal/logs"
	"github.com/nextlevelbuilder/clawman/internal/oauthflow"
	"github.com/nextlevelbuilder/clawman/internal/state"
	"github.com/nextlevelbuilder/clawman/internal/telegram"
)

// ActorHeader lets callers identify themselves for the audit trail.
// Unknown or absent values fall back to the desktop UI, the primary
// consumer of this API.
const ActorHeader = "x-openclaw-actor"

func requestActor(r *http.Request) audit.Actor {
	switch audit.Actor(r.Header.Get(ActorHeader)) {
	case audit.ActorCLI:
		return audit.ActorCLI
	case audit.ActorBrowser:
		return audit.ActorBrowser
	}
	return audit.ActorDesktopUI
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return false
	}
	return true
}

// --- Status ---

type statusResponse struct {
	Gateway      gatewayctl.State                       `json:"gateway"`
	Integrations map[string]state.IntegrationConnection `json:"integrations"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	tg, err := s.states.GetTelegramConnection()
	if err != nil {
		slog.Error("status.telegram", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to read state"})
		return
	}
	gm, err := s.states.GetGmailConnection()
	if err != nil {
		slog.Error("status.gmail", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to read state"})
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{
		Gateway: s.gateway.Current(r.Context()),
		Integrations: map[string]state.IntegrationConnection{
			"telegram": tg,
			"gmail":    gm,
		},
	})
}

// --- Gateway lifecycle ---

func (s *Server) handleGatewayStart(w http.ResponseWriter, r *http.Request) {
	st := s.gateway.Start(r.Context())
	s.audits.SafeAppend(audit.Event{
		Type:    audit.EventGatewayStart,
		Actor:   requestActor(r),
		Details: map[string]interface{}{"status": st.Status},
	})
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleGatewayStop(w http.ResponseWriter, r *http.Request) {
	st := s.gateway.Stop(r.Context())
	s.audits.SafeAppend(audit.Event{
		Type:    audit.EventGatewayStop,
		Actor:   requestActor(r),
		Details: map[string]interface{}{"status": st.Status},
	})
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleGatewayRestart(w http.ResponseWriter, r *http.Request) {
	st := s.gateway.Restart(r.Context())
	s.audits.SafeAppend(audit.Event{
		Type:    audit.EventGatewayRestart,
		Actor:   requestActor(r),
		Details: map[string]interface{}{"status": st.Status},
	})
	writeJSON(w, http.StatusOK, st)
}

// --- Telegram ---

func (s *Server) handleTelegramConnect(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	actor := requestActor(r)

	label, err := s.telegram.Validate(r.Context(), req.Token)
	if err != nil {
		reason := telegramFailureReason(err)
		if serr := s.states.SetTelegramError(reason); serr != nil {
			slog.Error("telegram.connect persist error", "error", serr)
		}
		s.audits.SafeAppend(audit.Event{
			Type:    audit.EventTelegramConnectFailed,
			Actor:   actor,
			Details: map[string]interface{}{"reason": reason},
		})
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": reason})
		return
	}

	if err := s.states.SetTelegramToken(req.Token); err != nil {
		slog.Error("telegram.connect", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to persist token"})
		return
	}
	s.audits.SafeAppend(audit.Event{
		Type:    audit.EventTelegramConnect,
		Actor:   actor,
		Details: map[string]interface{}{"botLabel": label},
	})

	conn, err := s.states.GetTelegramConnection()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to read state"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"connection": conn, "botLabel": label})
}

// telegramFailureReason maps a validation error to a stable machine
// readable reason stored in state and audit, never the raw token.
func telegramFailureReason(err error) string {
	switch {
	case errors.Is(err, telegram.ErrInvalidFormat):
		return "invalid_token_format"
	case errors.Is(err, telegram.ErrNotOK):
		return "telegram_rejected_token"
	}
	return "telegram_unreachable"
}

func (s *Server) handleTelegramDisconnect(w http.ResponseWriter, r *http.Request) {
	if err := s.states.ClearTelegram(); err != nil {
		slog.Error("telegram.disconnect", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to clear integration"})
		return
	}
	s.audits.SafeAppend(audit.Event{
		Type:  audit.EventTelegramDisconnect,
		Actor: requestActor(r),
	})
	writeJSON(w, http.StatusOK, map[string]bool{"disconnected": true})
}

// --- Gmail OAuth credentials ---

func (s *Server) handleGmailCredsGet(w http.ResponseWriter, r *http.Request) {
	sum, err := s.states.GetGmailOAuthCredsSummary()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to read state"})
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleGmailCredsSet(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ClientID     string `json:"clientId"`
		ClientSecret string `json:"clientSecret"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	actor := requestActor(r)

	if req.ClientID == "" || req.ClientSecret == "" {
		s.audits.SafeAppend(audit.Event{
			Type:    audit.EventGmailCredsSetFailed,
			Actor:   actor,
			Details: map[string]interface{}{"reason": "missing_fields"},
		})
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "clientId and clientSecret are required"})
		return
	}

	if err := s.states.SetGmailOAuthCreds(req.ClientID, req.ClientSecret); err != nil {
		slog.Error("gmail.creds.set", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to persist credentials"})
		return
	}
	s.audits.SafeAppend(audit.Event{Type: audit.EventGmailCredsSet, Actor: actor})

	sum, err := s.states.GetGmailOAuthCredsSummary()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to read state"})
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleGmailCredsClear(w http.ResponseWriter, r *http.Request) {
	if err := s.states.ClearGmailOAuthCreds(); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to clear credentials"})
		return
	}
	s.audits.SafeAppend(audit.Event{Type: audit.EventGmailCredsClear, Actor: requestActor(r)})
	writeJSON(w, http.StatusOK, map[string]bool{"cleared": true})
}

// --- Gmail OAuth flow ---

func (s *Server) handleGmailOAuthStatus(w http.ResponseWriter, r *http.Request) {
	creds, err := s.states.GetGmailOAuthCredsSummary()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to read state"})
		return
	}
	tokens, err := s.states.GetGmailOAuthTokensSummary()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to read state"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"creds":                creds,
		"tokens":               tokens,
		"pendingAuthorization": s.handshake.Pending(),
	})
}

func (s *Server) handleGmailOAuthStart(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RedirectURI string `json:"redirectUri"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	actor := requestActor(r)

	if req.RedirectURI == "" {
		req.RedirectURI = "http://" + s.cfg.ListenAddr() + "/oauth/google/callback"
	}

	authURL, err := s.handshake.Start(req.RedirectURI)
	if err != nil {
		reason := "oauth_start_failed"
		status := http.StatusInternalServerError
		if errors.Is(err, oauthflow.ErrMissingCreds) {
			reason = "missing_oauth_creds"
			status = http.StatusConflict
		}
		s.audits.SafeAppend(audit.Event{
			Type:    audit.EventGmailOAuthStartFailed,
			Actor:   actor,
			Details: map[string]interface{}{"reason": reason},
		})
		writeJSON(w, status, map[string]string{"error": reason})
		return
	}

	s.audits.SafeAppend(audit.Event{Type: audit.EventGmailOAuthStart, Actor: actor})
	writeJSON(w, http.StatusOK, map[string]string{"authUrl": authURL})
}

func (s *Server) handleGmailOAuthClear(w http.ResponseWriter, r *http.Request) {
	if err := s.states.ClearGmailOAuthTokens(); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to clear tokens"})
		return
	}
	s.audits.SafeAppend(audit.Event{Type: audit.EventGmailOAuthClear, Actor: requestActor(r)})
	writeJSON(w, http.StatusOK, map[string]bool{"cleared": true})
}

// --- Permissions ---

func (s *Server) handlePermissionsGet(w http.ResponseWriter, r *http.Request) {
	view, err := s.states.GetPermissions()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to read state"})
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handlePermissionsSet(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID      string `json:"id"`
		Enabled bool   `json:"enabled"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	if err := s.states.SetPermission(req.ID, req.Enabled); err != nil {
		if errors.Is(err, state.ErrUnknownPermission) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown permission id"})
			return
		}
		slog.Error("permissions.set", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to persist permission"})
		return
	}
	s.audits.SafeAppend(audit.Event{
		Type:    audit.EventPermissionsSet,
		Actor:   requestActor(r),
		Details: map[string]interface{}{"id": req.ID, "enabled": req.Enabled},
	})

	view, err := s.states.GetPermissions()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to read state"})
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handlePermissionsReset(w http.ResponseWriter, r *http.Request) {
	if err := s.states.ResetPermissions(); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to reset permissions"})
		return
	}
	s.audits.SafeAppend(audit.Event{Type: audit.EventPermissionsReset, Actor: requestActor(r)})

	view, err := s.states.GetPermissions()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to read state"})
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// --- Confirm-before-send policy ---

func (s *Server) handleConfirmPolicyGet(w http.ResponseWriter, r *http.Request) {
	view, err := s.states.GetConfirmBeforeSendPolicy()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to read state"})
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleConfirmPolicySet(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IntegrationID string `json:"integrationId"`
		Enabled       bool   `json:"enabled"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	if err := s.states.SetConfirmBeforeSendPolicy(req.IntegrationID, req.Enabled); err != nil {
		if errors.Is(err, state.ErrUnknownIntegration) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown integration id"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to persist policy"})
		return
	}
	s.audits.SafeAppend(audit.Event{
		Type:    audit.EventPolicyConfirmBeforeSendSet,
		Actor:   requestActor(r),
		Details: map[string]interface{}{"integrationId": req.IntegrationID, "enabled": req.Enabled},
	})

	view, err := s.states.GetConfirmBeforeSendPolicy()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to read state"})
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// --- Audit, logs, diagnostics ---

func queryInt(r *http.Request, key string, fallback int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func (s *Server) handleAuditRecent(w http.ResponseWriter, r *http.Request) {
	res, err := s.audits.ReadRecent(queryInt(r, "limit", 100))
	if err != nil {
		slog.Error("audit.recent", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to read audit log"})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleLogsRecent(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, logs.ReadRecent(s.logFile, queryInt(r, "lines", 200)))
}

func (s *Server) handleDiagnosticsRun(w http.ResponseWriter, r *http.Request) {
	res := s.diag.Run(r.Context())
	s.audits.SafeAppend(audit.Event{
		Type:    audit.EventDiagnosticsRun,
		Actor:   requestActor(r),
		Details: map[string]interface{}{"overall": res.Summary.Overall},
	})
	writeJSON(w, http.StatusOK, res)
}
