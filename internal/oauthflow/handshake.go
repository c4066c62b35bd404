// Package oauthflow coordinates the Gmail OAuth authorization-code
// handshake: a single in-flight, time-bounded, CSRF-protected
// exchange against Google's endpoints.
package oauthflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/nextlevelbuilder/clawman/internal/state"
)

// DefaultScope is requested when no scope is configured.
const DefaultScope = "https://www.googleapis.com/auth/gmail.readonly"

const defaultProfileURL = "https://gmail.googleapis.com/gmail/v1/users/me/profile"

var (
	ErrMissingCreds  = errors.New("missing_oauth_creds")
	ErrProvider      = errors.New("provider_error")
	ErrNoPending     = errors.New("no_pending_request")
	ErrExpired       = errors.New("oauth_request_expired")
	ErrStateMismatch = errors.New("state_mismatch")
	ErrMissingCode   = errors.New("missing_code")
	ErrExchange      = errors.New("token_exchange_failed")
)

// TokenStore is the slice of the state store the handshake needs.
type TokenStore interface {
	GetGmailOAuthCreds() (*state.GmailOAuthCreds, error)
	SetGmailOAuthTokens(state.GmailOAuthTokens) error
}

// Handshake drives the flow. One instance serves the process; its
// pending slot is the only shared mutable state.
type Handshake struct {
	store      TokenStore
	slot       *PendingSlot
	endpoint   oauth2.Endpoint
	profileURL string
	client     *http.Client
	scope      string
	newState   func() string
}

type Option func(*Handshake)

// WithEndpoint overrides the provider endpoints (tests).
func WithEndpoint(ep oauth2.Endpoint) Option {
	return func(h *Handshake) { h.endpoint = ep }
}

// WithProfileURL overrides the profile lookup endpoint (tests).
func WithProfileURL(url string) Option {
	return func(h *Handshake) { h.profileURL = url }
}

// WithHTTPClient overrides the client used for exchange and profile
// lookup (tests).
func WithHTTPClient(c *http.Client) Option {
	return func(h *Handshake) { h.client = c }
}

// WithScope overrides the requested scope.
func WithScope(scope string) Option {
	return func(h *Handshake) { h.scope = scope }
}

func withClock(now func() time.Time) Option {
	return func(h *Handshake) { h.slot.now = now }
}

func New(store TokenStore, opts ...Option) *Handshake {
	h := &Handshake{
		store:      store,
		slot:       NewPendingSlot(),
		endpoint:   google.Endpoint,
		profileURL: defaultProfileURL,
		client:     http.DefaultClient,
		scope:      DefaultScope,
		newState:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Scope returns the scope the handshake requests.
func (h *Handshake) Scope() string { return h.scope }

// Pending reports whether a flow is currently awaiting its callback.
func (h *Handshake) Pending() bool {
	_, ok := h.slot.Current()
	return ok
}

func (h *Handshake) config(creds *state.GmailOAuthCreds, redirectURI string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		Endpoint:     h.endpoint,
		RedirectURL:  redirectURI,
		Scopes:       []string{h.scope},
	}
}

// Start begins a fresh flow: it requires configured client
// credentials, installs a new CSRF state token as the one pending
// request (overwriting any prior flow), and returns the authorization
// URL to open in the browser.
func (h *Handshake) Start(redirectURI string) (authURL string, err error) {
	creds, err := h.store.GetGmailOAuthCreds()
	if err != nil {
		return "", err
	}
	if creds == nil {
		return "", ErrMissingCreds
	}

	csrf := h.newState()
	h.slot.Replace(PendingRequest{
		State:       csrf,
		CreatedAt:   time.Now(),
		RedirectURI: redirectURI,
		Scope:       h.scope,
	})

	return h.config(creds, redirectURI).AuthCodeURL(csrf,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
		oauth2.SetAuthURLParam("include_granted_scopes", "true"),
	), nil
}

// CallbackResult reports a completed authorization.
type CallbackResult struct {
	AccountEmail string
}

// Callback completes the flow. Every failure path is terminal for the
// callback; the pending request is consumed on expiry, mismatch, or a
// real exchange attempt so a replayed state can never be exchanged
// twice. A callback with no pending request leaves nothing to clear
// and a later legitimate flow is unaffected.
func (h *Handshake) Callback(ctx context.Context, receivedState, code, providerError string) (CallbackResult, error) {
	if providerError != "" {
		return CallbackResult{}, fmt.Errorf("%w: %s", ErrProvider, providerError)
	}

	pending, ok := h.slot.Current()
	if !ok {
		return CallbackResult{}, ErrNoPending
	}
	if h.slot.Expired(pending) {
		h.slot.Clear()
		return CallbackResult{}, ErrExpired
	}
	if receivedState == "" || receivedState != pending.State {
		h.slot.Clear()
		return CallbackResult{}, ErrStateMismatch
	}
	if code == "" {
		h.slot.Clear()
		return CallbackResult{}, ErrMissingCode
	}

	// Consume the pending request before exchanging: a second
	// callback with the same state must find nothing pending.
	if _, ok := h.slot.Take(); !ok {
		return CallbackResult{}, ErrNoPending
	}

	creds, err := h.store.GetGmailOAuthCreds()
	if err != nil {
		return CallbackResult{}, err
	}
	if creds == nil {
		return CallbackResult{}, ErrMissingCreds
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, h.client)
	token, err := h.config(creds, pending.RedirectURI).Exchange(ctx, code)
	if err != nil {
		return CallbackResult{}, fmt.Errorf("%w: %s", ErrExchange, err)
	}
	if token.AccessToken == "" {
		return CallbackResult{}, fmt.Errorf("%w: missing access token", ErrExchange)
	}

	scope := pending.Scope
	if s, ok := token.Extra("scope").(string); ok && s != "" {
		scope = s
	}

	tokens := state.GmailOAuthTokens{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		Scope:        scope,
		TokenType:    token.TokenType,
	}
	if !token.Expiry.IsZero() {
		tokens.ExpiresAt = token.Expiry.UTC()
	}

	// Best-effort: resolve the account identity. Authorization stands
	// even if this lookup fails.
	tokens.AccountEmail = h.resolveAccountEmail(ctx, token.AccessToken)

	if err := h.store.SetGmailOAuthTokens(tokens); err != nil {
		return CallbackResult{}, err
	}
	return CallbackResult{AccountEmail: tokens.AccountEmail}, nil
}

func (h *Handshake) resolveAccountEmail(ctx context.Context, accessToken string) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.profileURL, nil)
	if err != nil {
		return ""
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := h.client.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return ""
	}

	var profile struct {
		EmailAddress string `json:"emailAddress"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return ""
	}
	return profile.EmailAddress
}
