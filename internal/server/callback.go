package server

import (
	"errors"
	"fmt"
	"html"
	"net/http"

	"github.com/nextlevelbuilder/clawman/internal/audit"
	"github.com/nextlevelbuilder/clawman/internal/oauthflow"
)

// handleOAuthCallback completes the Google authorization flow. The
// response is plain HTML because it renders in the user's browser,
// not in the desktop UI.
func (s *Server) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	res, err := s.handshake.Callback(r.Context(), q.Get("state"), q.Get("code"), q.Get("error"))
	if err != nil {
		reason := callbackFailureReason(err)
		s.audits.SafeAppend(audit.Event{
			Type:    audit.EventGmailOAuthCallbackFailed,
			Actor:   audit.ActorBrowser,
			Details: map[string]interface{}{"reason": reason},
		})
		writeCallbackPage(w, http.StatusBadRequest, "Authorization failed",
			fmt.Sprintf("Gmail authorization did not complete (%s). You can close this window and retry from the app.", reason))
		return
	}

	s.audits.SafeAppend(audit.Event{
		Type:    audit.EventGmailOAuthAuthorized,
		Actor:   audit.ActorBrowser,
		Details: map[string]interface{}{"accountEmail": res.AccountEmail},
	})

	msg := "Gmail is now connected. You can close this window."
	if res.AccountEmail != "" {
		msg = fmt.Sprintf("Gmail account %s is now connected. You can close this window.", res.AccountEmail)
	}
	writeCallbackPage(w, http.StatusOK, "Authorization complete", msg)
}

// callbackFailureReason maps handshake errors to stable reasons for
// the audit trail and the browser page. Raw provider errors and codes
// never leak into the page.
func callbackFailureReason(err error) string {
	switch {
	case errors.Is(err, oauthflow.ErrProvider):
		return "provider_error"
	case errors.Is(err, oauthflow.ErrNoPending):
		return "no_pending_authorization"
	case errors.Is(err, oauthflow.ErrExpired):
		return "authorization_expired"
	case errors.Is(err, oauthflow.ErrStateMismatch):
		return "state_mismatch"
	case errors.Is(err, oauthflow.ErrMissingCode):
		return "missing_code"
	case errors.Is(err, oauthflow.ErrExchange):
		return "token_exchange_failed"
	}
	return "callback_failed"
}

func writeCallbackPage(w http.ResponseWriter, status int, title, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintf(w, `<!doctype html>
<html>
<head><title>%s</title></head>
<body style="font-family: sans-serif; max-width: 32rem; margin: 4rem auto;">
<h1>%s</h1>
<p>%s</p>
</body>
</html>
`, html.EscapeString(title), html.EscapeString(title), html.EscapeString(body))
}
