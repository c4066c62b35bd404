// Package state persists the manager's domain state (integrations,
// permissions, policies) as a single schema-versioned JSON document.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/nextlevelbuilder/clawman/internal/durable"
	"github.com/nextlevelbuilder/clawman/internal/policy"
)

// StateFileName is the persisted document within the data directory.
const StateFileName = "state.json"

var (
	ErrUnknownPermission  = errors.New("unknown permission id")
	ErrUnknownIntegration = errors.New("unknown integration id")
)

// Projector re-derives the gateway-consumable config after every
// state write. The two writes are not one transaction: a crash in
// between leaves the projection stale, which is safe because it is
// re-derivable and regenerated at startup.
type Projector interface {
	Apply(st *AppState) error
}

// Store reads and writes the state document. All mutators are
// whole-document read-modify-write sequences serialized by an
// in-process mutex; cross-process writers are not coordinated.
type Store struct {
	mu        sync.Mutex
	dataDir   string
	statePath string
	projector Projector
	now       func() time.Time
}

type Option func(*Store)

// WithProjector wires the derived-config projector fired after every
// state mutation.
func WithProjector(p Projector) Option {
	return func(s *Store) { s.projector = p }
}

func withClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(dataDir string, opts ...Option) *Store {
	s := &Store{
		dataDir:   dataDir,
		statePath: filepath.Join(dataDir, StateFileName),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the state file path.
func (s *Store) Path() string { return s.statePath }

// GetState returns the current document, or schema-conformant
// defaults if the file is absent or its shape is invalid.
func (s *Store) GetState() (*AppState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// load reads and shape-checks the document. A shape mismatch is
// treated as absence: the invalid file is quarantined aside so the
// next write does not silently destroy it, and defaults are returned.
func (s *Store) load() (*AppState, error) {
	data, ok, err := durable.ReadFile(s.statePath)
	if err != nil {
		return nil, err
	}
	if !ok {
		return DefaultState(), nil
	}

	st, valid := decodeState(data)
	if !valid {
		s.quarantine()
		return DefaultState(), nil
	}
	return st, nil
}

// decodeState duck-types the document shape: the schema version must
// match and the integrations sub-object must be navigable. It is a
// width check, not a full deep validation.
func decodeState(data []byte) (*AppState, bool) {
	var probe struct {
		SchemaVersion int                        `json:"schemaVersion"`
		Integrations  map[string]json.RawMessage `json:"integrations"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, false
	}
	if probe.SchemaVersion != SchemaVersion || probe.Integrations == nil {
		return nil, false
	}
	tg, ok := probe.Integrations["telegram"]
	if !ok || len(tg) == 0 || tg[0] != '{' {
		return nil, false
	}

	var st AppState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, false
	}
	return &st, true
}

// quarantine renames a shape-invalid state file aside rather than
// discarding it, so a bad deploy cannot silently eat user data.
func (s *Store) quarantine() {
	aside := fmt.Sprintf("%s.invalid-%d", s.statePath, s.now().Unix())
	if err := os.Rename(s.statePath, aside); err != nil {
		slog.Warn("failed to quarantine invalid state file", "error", err)
		return
	}
	slog.Warn("state file had an unexpected shape; quarantined and reset to defaults",
		"quarantined", aside)
}

// save durably writes the document and re-projects the derived
// config.
func (s *Store) save(st *AppState) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if err := durable.WriteFile(s.statePath, append(data, '\n')); err != nil {
		return err
	}
	if s.projector != nil {
		if err := s.projector.Apply(st); err != nil {
			return fmt.Errorf("project config: %w", err)
		}
	}
	return nil
}

// mutate runs one serialized read-modify-write cycle.
func (s *Store) mutate(fn func(st *AppState)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.load()
	if err != nil {
		return err
	}
	fn(st)
	return s.save(st)
}

// Reproject recomputes the derived config from the current state
// without mutating it. Called at process start so a crash between the
// two writes of a prior mutation cannot leave the projection stale.
func (s *Store) Reproject() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.projector == nil {
		return nil
	}
	st, err := s.load()
	if err != nil {
		return err
	}
	return s.projector.Apply(st)
}

// --- Telegram ---

// SetTelegramToken stores a validated bot token. The first connect
// sets the connect timestamp; later reconnects keep it.
func (s *Store) SetTelegramToken(token string) error {
	return s.mutate(func(st *AppState) {
		tg := &st.Integrations.Telegram
		tg.Token = token
		if tg.ConnectedAt.IsZero() {
			tg.ConnectedAt = s.now()
		}
		tg.LastValidatedAt = s.now()
		tg.LastError = ""
	})
}

// SetTelegramError records a validation failure. The token is cleared
// so a connection is either connected or needs attention, never both.
func (s *Store) SetTelegramError(message string) error {
	return s.mutate(func(st *AppState) {
		tg := &st.Integrations.Telegram
		tg.Token = ""
		tg.LastError = message
		tg.LastValidatedAt = s.now()
	})
}

func (s *Store) ClearTelegram() error {
	return s.mutate(func(st *AppState) {
		st.Integrations.Telegram = TelegramState{}
	})
}

// GetTelegramConnection returns the non-secret connection view.
func (s *Store) GetTelegramConnection() (IntegrationConnection, error) {
	st, err := s.GetState()
	if err != nil {
		return IntegrationConnection{}, err
	}
	tg := st.Integrations.Telegram
	return IntegrationConnection{
		IntegrationID:   "telegram",
		Connected:       tg.Token != "",
		ConnectedAt:     tg.ConnectedAt,
		LastValidatedAt: tg.LastValidatedAt,
		NeedsAttention:  tg.LastError != "",
		LastError:       tg.LastError,
	}, nil
}

// TelegramToken returns the stored bot token for internal use (config
// projection references it by locator, never by value).
func (s *Store) TelegramToken() (string, error) {
	st, err := s.GetState()
	if err != nil {
		return "", err
	}
	return st.Integrations.Telegram.Token, nil
}

// --- Gmail OAuth credentials ---

func (s *Store) SetGmailOAuthCreds(clientID, clientSecret string) error {
	return s.mutate(func(st *AppState) {
		st.Integrations.Gmail.OAuth = &GmailOAuthCreds{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			UpdatedAt:    s.now(),
		}
	})
}

func (s *Store) ClearGmailOAuthCreds() error {
	return s.mutate(func(st *AppState) {
		st.Integrations.Gmail.OAuth = nil
	})
}

// GetGmailOAuthCreds returns the stored client credentials, or nil if
// none are configured. For the OAuth handshake only; HTTP responses
// use the summary view.
func (s *Store) GetGmailOAuthCreds() (*GmailOAuthCreds, error) {
	st, err := s.GetState()
	if err != nil {
		return nil, err
	}
	return st.Integrations.Gmail.OAuth, nil
}

func (s *Store) GetGmailOAuthCredsSummary() (GmailOAuthCredsSummary, error) {
	st, err := s.GetState()
	if err != nil {
		return GmailOAuthCredsSummary{}, err
	}
	creds := st.Integrations.Gmail.OAuth
	if creds == nil {
		return GmailOAuthCredsSummary{}, nil
	}
	return GmailOAuthCredsSummary{
		Configured:     true,
		ClientIDSuffix: clientIDSuffix(creds.ClientID),
		UpdatedAt:      creds.UpdatedAt,
	}, nil
}

// clientIDSuffix keeps only a short tail of the client id, enough for
// the user to recognize which app is configured.
func clientIDSuffix(id string) string {
	const keep = 8
	if len(id) <= keep {
		return id
	}
	return "…" + id[len(id)-keep:]
}

// --- Gmail OAuth tokens ---

func (s *Store) SetGmailOAuthTokens(tokens GmailOAuthTokens) error {
	return s.mutate(func(st *AppState) {
		tokens.UpdatedAt = s.now()
		tokens.LastError = ""
		st.Integrations.Gmail.Tokens = &tokens
	})
}

func (s *Store) ClearGmailOAuthTokens() error {
	return s.mutate(func(st *AppState) {
		st.Integrations.Gmail.Tokens = nil
	})
}

func (s *Store) GetGmailOAuthTokensSummary() (GmailOAuthTokensSummary, error) {
	st, err := s.GetState()
	if err != nil {
		return GmailOAuthTokensSummary{}, err
	}
	tok := st.Integrations.Gmail.Tokens
	if tok == nil {
		return GmailOAuthTokensSummary{}, nil
	}
	return GmailOAuthTokensSummary{
		Authorized:   tok.AccessToken != "",
		Scope:        tok.Scope,
		ExpiresAt:    tok.ExpiresAt,
		AccountEmail: tok.AccountEmail,
		UpdatedAt:    tok.UpdatedAt,
	}, nil
}

// GetGmailConnection returns the non-secret Gmail view. Connected
// means tokens are present; the account label is the resolved email.
func (s *Store) GetGmailConnection() (IntegrationConnection, error) {
	st, err := s.GetState()
	if err != nil {
		return IntegrationConnection{}, err
	}
	gm := st.Integrations.Gmail
	conn := IntegrationConnection{IntegrationID: "gmail"}
	if gm.Tokens != nil {
		conn.Connected = gm.Tokens.AccessToken != ""
		conn.AccountLabel = gm.Tokens.AccountEmail
		conn.LastValidatedAt = gm.Tokens.UpdatedAt
		conn.LastError = gm.Tokens.LastError
	}
	if conn.LastError == "" && gm.OAuth != nil {
		conn.LastError = gm.OAuth.LastError
	}
	conn.NeedsAttention = conn.LastError != ""
	return conn, nil
}

// --- Permissions ---

// PermissionsView pairs the static catalog with the fully
// materialized enabled map: every catalog id present, overrides
// winning over defaults, unknown override keys ignored.
type PermissionsView struct {
	Catalog []policy.Permission `json:"catalog"`
	Enabled map[string]bool     `json:"enabled"`
}

func (s *Store) GetPermissions() (PermissionsView, error) {
	st, err := s.GetState()
	if err != nil {
		return PermissionsView{}, err
	}
	return PermissionsView{
		Catalog: policy.Catalog,
		Enabled: MaterializePermissions(st.Permissions),
	}, nil
}

// MaterializePermissions combines catalog defaults with stored
// overrides into a full id → enabled map. Unknown override keys are
// ignored.
func MaterializePermissions(overrides map[string]bool) map[string]bool {
	enabled := policy.DefaultEnabled()
	for id, v := range overrides {
		if policy.Known(id) {
			enabled[id] = v
		}
	}
	return enabled
}

func (s *Store) SetPermission(id string, enabled bool) error {
	if !policy.Known(id) {
		return fmt.Errorf("%w: %q", ErrUnknownPermission, id)
	}
	return s.mutate(func(st *AppState) {
		if st.Permissions == nil {
			st.Permissions = make(map[string]bool)
		}
		st.Permissions[id] = enabled
	})
}

// ResetPermissions drops all overrides, reverting to catalog
// defaults.
func (s *Store) ResetPermissions() error {
	return s.mutate(func(st *AppState) {
		st.Permissions = nil
	})
}

// --- Confirm-before-send policy ---

// ConfirmBeforeSendView is the materialized policy map: every known
// integration present, absent overrides defaulting to true.
type ConfirmBeforeSendView struct {
	Enabled map[string]bool `json:"enabled"`
}

func (s *Store) GetConfirmBeforeSendPolicy() (ConfirmBeforeSendView, error) {
	st, err := s.GetState()
	if err != nil {
		return ConfirmBeforeSendView{}, err
	}
	return ConfirmBeforeSendView{
		Enabled: MaterializeConfirmBeforeSend(st.Policies.ConfirmBeforeSend),
	}, nil
}

// MaterializeConfirmBeforeSend materializes the confirm-before-send
// policy for every known integration, defaulting to true.
func MaterializeConfirmBeforeSend(overrides map[string]bool) map[string]bool {
	enabled := make(map[string]bool, len(policy.ConfirmBeforeSendIntegrations))
	for _, id := range policy.ConfirmBeforeSendIntegrations {
		enabled[id] = true
	}
	for id, v := range overrides {
		if policy.KnownConfirmIntegration(id) {
			enabled[id] = v
		}
	}
	return enabled
}

func (s *Store) SetConfirmBeforeSendPolicy(integrationID string, enabled bool) error {
	if !policy.KnownConfirmIntegration(integrationID) {
		return fmt.Errorf("%w: %q", ErrUnknownIntegration, integrationID)
	}
	return s.mutate(func(st *AppState) {
		if st.Policies.ConfirmBeforeSend == nil {
			st.Policies.ConfirmBeforeSend = make(map[string]bool)
		}
		st.Policies.ConfirmBeforeSend[integrationID] = enabled
	})
}
