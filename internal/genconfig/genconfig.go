// Package genconfig derives the secret-free configuration artifact
// consumed by the OpenClaw gateway. The projection is a pure function
// of the persisted state and is always safe to regenerate.
package genconfig

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/nextlevelbuilder/clawman/internal/durable"
	"github.com/nextlevelbuilder/clawman/internal/state"
)

// FileName is the generated artifact within the data directory.
const FileName = "openclaw.generated.json"

const (
	generatedBy      = "clawman"
	generatorVersion = "1"
)

// Token locators tell the gateway where a secret lives without ever
// carrying its value. The gateway resolves them against the state
// file itself.
const (
	telegramTokenRef = "state://integrations/telegram/token"
	gmailTokenRef    = "state://integrations/gmail/tokens"
)

// GeneratedConfig is a projection, never a source of truth. It must
// contain no secret material.
type GeneratedConfig struct {
	Channels     Channels        `json:"channels"`
	Integrations Integrations    `json:"integrations"`
	Permissions  map[string]bool `json:"permissions"`
	Policy       Policy          `json:"policy"`
	Meta         Meta            `json:"meta"`
}

type Channels struct {
	Telegram TelegramChannel `json:"telegram"`
}

type TelegramChannel struct {
	Enabled   bool   `json:"enabled"`
	TokenRef  string `json:"tokenRef,omitempty"`
	AllowSend bool   `json:"allowSend"`
}

type Integrations struct {
	Gmail GmailIntegration `json:"gmail"`
}

type GmailIntegration struct {
	Enabled      bool   `json:"enabled"`
	TokenRef     string `json:"tokenRef,omitempty"`
	AccountEmail string `json:"accountEmail,omitempty"`
	AllowRead    bool   `json:"allowRead"`
}

type Policy struct {
	ConfirmBeforeSend map[string]bool `json:"confirmBeforeSend"`
}

// Meta marks the file as generated so external consumers can tell it
// apart from a hand-edited one.
type Meta struct {
	GeneratedBy      string `json:"generatedBy"`
	GeneratorVersion string `json:"generatorVersion"`
}

// Project computes the derived config from a state document. Pure:
// no I/O, idempotent, and never includes token or secret values.
func Project(st *state.AppState) *GeneratedConfig {
	permissions := state.MaterializePermissions(st.Permissions)
	confirm := state.MaterializeConfirmBeforeSend(st.Policies.ConfirmBeforeSend)

	cfg := &GeneratedConfig{
		Permissions: permissions,
		Policy:      Policy{ConfirmBeforeSend: confirm},
		Meta: Meta{
			GeneratedBy:      generatedBy,
			GeneratorVersion: generatorVersion,
		},
	}

	if st.Integrations.Telegram.Token != "" {
		cfg.Channels.Telegram = TelegramChannel{
			Enabled:   true,
			TokenRef:  telegramTokenRef,
			AllowSend: permissions["telegram.send"],
		}
	}

	if tok := st.Integrations.Gmail.Tokens; tok != nil && tok.AccessToken != "" {
		cfg.Integrations.Gmail = GmailIntegration{
			Enabled:      true,
			TokenRef:     gmailTokenRef,
			AccountEmail: tok.AccountEmail,
			AllowRead:    permissions["gmail.read"],
		}
	}

	return cfg
}

// Writer persists projections durably. It is the only writer of the
// generated file and satisfies state.Projector.
type Writer struct {
	path string
}

func NewWriter(dataDir string) *Writer {
	return &Writer{path: filepath.Join(dataDir, FileName)}
}

// Path returns the generated file path.
func (w *Writer) Path() string { return w.path }

// Apply projects st and durably writes the artifact.
func (w *Writer) Apply(st *state.AppState) error {
	data, err := json.MarshalIndent(Project(st), "", "  ")
	if err != nil {
		return fmt.Errorf("encode generated config: %w", err)
	}
	return durable.WriteFile(w.path, append(data, '\n'))
}
