package oauthflow

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/nextlevelbuilder/clawman/internal/state"
)

type fakeStore struct {
	creds  *state.GmailOAuthCreds
	saved  []state.GmailOAuthTokens
	setErr error
}

func (f *fakeStore) GetGmailOAuthCreds() (*state.GmailOAuthCreds, error) {
	return f.creds, nil
}

func (f *fakeStore) SetGmailOAuthTokens(t state.GmailOAuthTokens) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.saved = append(f.saved, t)
	return nil
}

func testCreds() *state.GmailOAuthCreds {
	return &state.GmailOAuthCreds{ClientID: "client-123.apps", ClientSecret: "shh-secret"}
}

// provider stubs Google's token and profile endpoints and counts
// exchanges.
type provider struct {
	srv       *httptest.Server
	exchanges atomic.Int64
	email     string
}

func newProvider(t *testing.T) *provider {
	t.Helper()
	p := &provider{email: "user@example.com"}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		p.exchanges.Add(1)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"at-1","refresh_token":"rt-1","token_type":"Bearer","expires_in":3600,"scope":"`+DefaultScope+`"}`)
	})
	mux.HandleFunc("GET /profile", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer at-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"emailAddress":%q}`, p.email)
	})
	p.srv = httptest.NewServer(mux)
	t.Cleanup(p.srv.Close)
	return p
}

func (p *provider) options() []Option {
	return []Option{
		WithEndpoint(oauth2.Endpoint{
			AuthURL:  p.srv.URL + "/auth",
			TokenURL: p.srv.URL + "/token",
		}),
		WithProfileURL(p.srv.URL + "/profile"),
		WithHTTPClient(p.srv.Client()),
	}
}

func startFlow(t *testing.T, h *Handshake) (stateToken string) {
	t.Helper()
	authURL, err := h.Start("http://127.0.0.1:3210/integrations/gmail/oauth/callback")
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	u, err := url.Parse(authURL)
	if err != nil {
		t.Fatal(err)
	}
	return u.Query().Get("state")
}

func TestStartRequiresCreds(t *testing.T) {
	h := New(&fakeStore{})
	_, err := h.Start("http://127.0.0.1/cb")
	if !errors.Is(err, ErrMissingCreds) {
		t.Errorf("error = %v, want ErrMissingCreds", err)
	}
}

func TestStartBuildsAuthorizationURL(t *testing.T) {
	p := newProvider(t)
	h := New(&fakeStore{creds: testCreds()}, p.options()...)

	authURL, err := h.Start("http://127.0.0.1:3210/cb")
	if err != nil {
		t.Fatal(err)
	}
	u, err := url.Parse(authURL)
	if err != nil {
		t.Fatal(err)
	}
	q := u.Query()
	checks := map[string]string{
		"client_id":              "client-123.apps",
		"redirect_uri":           "http://127.0.0.1:3210/cb",
		"response_type":          "code",
		"scope":                  DefaultScope,
		"access_type":            "offline",
		"prompt":                 "consent",
		"include_granted_scopes": "true",
	}
	for k, want := range checks {
		if got := q.Get(k); got != want {
			t.Errorf("auth URL %s = %q, want %q", k, got, want)
		}
	}
	if q.Get("state") == "" {
		t.Error("auth URL missing state token")
	}
	if strings.Contains(authURL, "shh-secret") {
		t.Error("auth URL leaks the client secret")
	}
}

func TestStartOverwritesPriorPending(t *testing.T) {
	p := newProvider(t)
	store := &fakeStore{creds: testCreds()}
	h := New(store, p.options()...)

	first := startFlow(t, h)
	second := startFlow(t, h)
	if first == second {
		t.Fatal("second Start() reused the same CSRF state")
	}

	// The first flow's callback must now fail: its state was
	// invalidated by the newer flow.
	if _, err := h.Callback(context.Background(), first, "code-1", ""); !errors.Is(err, ErrStateMismatch) {
		t.Errorf("stale-state callback error = %v, want ErrStateMismatch", err)
	}
}

func TestCallbackSuccessPersistsTokens(t *testing.T) {
	p := newProvider(t)
	store := &fakeStore{creds: testCreds()}
	h := New(store, p.options()...)

	csrf := startFlow(t, h)
	res, err := h.Callback(context.Background(), csrf, "code-1", "")
	if err != nil {
		t.Fatalf("Callback() error = %v", err)
	}
	if res.AccountEmail != "user@example.com" {
		t.Errorf("AccountEmail = %q, want user@example.com", res.AccountEmail)
	}

	if len(store.saved) != 1 {
		t.Fatalf("tokens saved %d times, want 1", len(store.saved))
	}
	tok := store.saved[0]
	if tok.AccessToken != "at-1" || tok.RefreshToken != "rt-1" {
		t.Errorf("saved tokens = %+v", tok)
	}
	if tok.Scope != DefaultScope {
		t.Errorf("scope = %q, want %q", tok.Scope, DefaultScope)
	}
	if tok.ExpiresAt.IsZero() {
		t.Error("expiry not recorded")
	}
	if h.Pending() {
		t.Error("pending request survived a successful callback")
	}
}

func TestCallbackStateIsSingleUse(t *testing.T) {
	p := newProvider(t)
	store := &fakeStore{creds: testCreds()}
	h := New(store, p.options()...)

	csrf := startFlow(t, h)
	if _, err := h.Callback(context.Background(), csrf, "code-1", ""); err != nil {
		t.Fatalf("first callback error = %v", err)
	}

	_, err := h.Callback(context.Background(), csrf, "code-1", "")
	if !errors.Is(err, ErrNoPending) {
		t.Errorf("replayed callback error = %v, want ErrNoPending", err)
	}
	if got := p.exchanges.Load(); got != 1 {
		t.Errorf("token exchanges = %d, want exactly 1", got)
	}
}

func TestCallbackExpiredEvenWithCorrectState(t *testing.T) {
	p := newProvider(t)
	store := &fakeStore{creds: testCreds()}

	fakeNow := time.Now()
	h := New(store, append(p.options(), withClock(func() time.Time { return fakeNow }))...)

	csrf := startFlow(t, h)
	fakeNow = fakeNow.Add(TTL + time.Minute)

	_, err := h.Callback(context.Background(), csrf, "code-1", "")
	if !errors.Is(err, ErrExpired) {
		t.Errorf("error = %v, want ErrExpired", err)
	}
	if got := p.exchanges.Load(); got != 0 {
		t.Errorf("token exchanges = %d, want 0 for expired flow", got)
	}
	if h.Pending() {
		t.Error("expired pending request was not cleared")
	}
}

func TestCallbackFailureCases(t *testing.T) {
	p := newProvider(t)

	tests := []struct {
		name          string
		state         string
		code          string
		providerError string
		wantErr       error
	}{
		{"provider error", "", "", "access_denied", ErrProvider},
		{"state mismatch", "wrong-state", "code-1", "", ErrStateMismatch},
		{"missing state", "", "code-1", "", ErrStateMismatch},
		{"missing code", "", "", "", ErrMissingCode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{creds: testCreds()}
			h := New(store, p.options()...)
			csrf := startFlow(t, h)

			recvState := tt.state
			if tt.name == "missing code" {
				recvState = csrf
			}

			_, err := h.Callback(context.Background(), recvState, tt.code, tt.providerError)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
			if len(store.saved) != 0 {
				t.Error("tokens were persisted on a failed callback")
			}
		})
	}

	if got := p.exchanges.Load(); got != 0 {
		t.Errorf("token exchanges = %d, want 0 across failure cases", got)
	}
}

func TestCallbackWithoutPendingLeavesRetryPossible(t *testing.T) {
	p := newProvider(t)
	store := &fakeStore{creds: testCreds()}
	h := New(store, p.options()...)

	if _, err := h.Callback(context.Background(), "anything", "code", ""); !errors.Is(err, ErrNoPending) {
		t.Fatalf("error = %v, want ErrNoPending", err)
	}

	// A legitimate flow still works afterwards.
	csrf := startFlow(t, h)
	if _, err := h.Callback(context.Background(), csrf, "code-1", ""); err != nil {
		t.Errorf("follow-up flow failed: %v", err)
	}
}
