package state

import "time"

// SchemaVersion is the supported state document version. Documents
// with any other version (or an unnavigable shape) are quarantined
// and replaced with defaults; there is no migration path in v1.
const SchemaVersion = 1

// AppState is the single persisted state document. The store is its
// only writer.
type AppState struct {
	SchemaVersion int          `json:"schemaVersion"`
	Integrations  Integrations `json:"integrations"`

	// Sparse override maps. Absent entries fall back to catalog
	// defaults (permissions) or to true (confirm-before-send).
	Permissions map[string]bool `json:"permissions,omitempty"`
	Policies    Policies        `json:"policies,omitzero"`
}

type Integrations struct {
	Telegram TelegramState `json:"telegram"`
	Gmail    GmailState    `json:"gmail,omitzero"`
}

// TelegramState holds the bot token in plaintext. It never leaves the
// state file: connection views expose presence only.
type TelegramState struct {
	Token           string    `json:"token,omitempty"`
	ConnectedAt     time.Time `json:"connectedAt,omitzero"`
	LastValidatedAt time.Time `json:"lastValidatedAt,omitzero"`
	LastError       string    `json:"lastError,omitempty"`
}

type GmailState struct {
	OAuth  *GmailOAuthCreds  `json:"oauth,omitempty"`
	Tokens *GmailOAuthTokens `json:"tokens,omitempty"`
}

// GmailOAuthCreds are bring-your-own app credentials.
type GmailOAuthCreds struct {
	ClientID     string    `json:"clientId"`
	ClientSecret string    `json:"clientSecret"`
	UpdatedAt    time.Time `json:"updatedAt,omitzero"`
	LastError    string    `json:"lastError,omitempty"`
}

type GmailOAuthTokens struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken,omitempty"`
	Scope        string    `json:"scope,omitempty"`
	TokenType    string    `json:"tokenType,omitempty"`
	ExpiresAt    time.Time `json:"expiresAt,omitzero"`
	AccountEmail string    `json:"accountEmail,omitempty"`
	UpdatedAt    time.Time `json:"updatedAt,omitzero"`
	LastError    string    `json:"lastError,omitempty"`
}

type Policies struct {
	ConfirmBeforeSend map[string]bool `json:"confirmBeforeSend,omitempty"`
}

// IntegrationConnection is the non-secret view of an integration.
// Connected and NeedsAttention are mutually exclusive: the error path
// removes the stored token.
type IntegrationConnection struct {
	IntegrationID   string    `json:"integrationId"`
	Connected       bool      `json:"connected"`
	AccountLabel    string    `json:"accountLabel,omitempty"`
	ConnectedAt     time.Time `json:"connectedAt,omitzero"`
	LastValidatedAt time.Time `json:"lastValidatedAt,omitzero"`
	NeedsAttention  bool      `json:"needsAttention"`
	LastError       string    `json:"lastError,omitempty"`
}

// GmailOAuthCredsSummary exposes only a truncated client id suffix,
// never the secret.
type GmailOAuthCredsSummary struct {
	Configured     bool      `json:"configured"`
	ClientIDSuffix string    `json:"clientIdSuffix,omitempty"`
	UpdatedAt      time.Time `json:"updatedAt,omitzero"`
}

// GmailOAuthTokensSummary exposes authorization status, never token
// values.
type GmailOAuthTokensSummary struct {
	Authorized   bool      `json:"authorized"`
	Scope        string    `json:"scope,omitempty"`
	ExpiresAt    time.Time `json:"expiresAt,omitzero"`
	AccountEmail string    `json:"accountEmail,omitempty"`
	UpdatedAt    time.Time `json:"updatedAt,omitzero"`
}

// DefaultState returns a schema-conformant empty document.
func DefaultState() *AppState {
	return &AppState{
		SchemaVersion: SchemaVersion,
	}
}
