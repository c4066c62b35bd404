// Package policy holds the fixed permission catalog for the manager.
// Ids are stable machine identifiers: never reuse an id for a
// different meaning, evolve the catalog by adding entries only.
package policy

// Risk is a rough risk tier used for warnings and extra confirmation
// in the UI layer.
type Risk string

const (
	RiskLow    Risk = "low"
	RiskMedium Risk = "medium"
	RiskHigh   Risk = "high"
)

// Permission describes one toggleable capability.
type Permission struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	Description    string `json:"description"`
	Group          string `json:"group"`
	Risk           Risk   `json:"risk"`
	DefaultEnabled bool   `json:"defaultEnabled"`
}

// Catalog is the v1 permission set. Kept intentionally small; add new
// permissions as needed rather than overfitting early.
var Catalog = []Permission{
	{
		ID:             "gateway.control",
		Title:          "Control OpenClaw Gateway",
		Description:    "Start, stop, or restart the local OpenClaw gateway process.",
		Group:          "gateway",
		Risk:           RiskMedium,
		DefaultEnabled: true,
	},
	{
		ID:             "integrations.telegram.manage",
		Title:          "Connect Telegram",
		Description:    "Add or remove a Telegram bot token for OpenClaw to use.",
		Group:          "integrations",
		Risk:           RiskMedium,
		DefaultEnabled: false,
	},
	{
		ID:             "telegram.send",
		Title:          "Send Telegram messages",
		Description:    "Allow OpenClaw to send messages to Telegram chats.",
		Group:          "messaging",
		Risk:           RiskHigh,
		DefaultEnabled: false,
	},
	{
		ID:             "integrations.gmail.manage",
		Title:          "Connect Gmail",
		Description:    "Connect Gmail via OAuth and manage stored credentials.",
		Group:          "integrations",
		Risk:           RiskMedium,
		DefaultEnabled: false,
	},
	{
		ID:             "gmail.read",
		Title:          "Read Gmail",
		Description:    "Allow OpenClaw to read your email (metadata and/or content based on configuration).",
		Group:          "email",
		Risk:           RiskMedium,
		DefaultEnabled: false,
	},
	{
		ID:             "gmail.send",
		Title:          "Send email via Gmail",
		Description:    "Allow OpenClaw to send email from your Gmail account.",
		Group:          "email",
		Risk:           RiskHigh,
		DefaultEnabled: false,
	},
	{
		ID:             "integrations.calendar.manage",
		Title:          "Connect Calendar",
		Description:    "Connect a calendar account and manage stored credentials.",
		Group:          "integrations",
		Risk:           RiskMedium,
		DefaultEnabled: false,
	},
	{
		ID:             "calendar.read",
		Title:          "Read calendar",
		Description:    "Allow OpenClaw to read calendar events.",
		Group:          "calendar",
		Risk:           RiskMedium,
		DefaultEnabled: false,
	},
	{
		ID:             "calendar.write",
		Title:          "Create or edit calendar events",
		Description:    "Allow OpenClaw to create or modify calendar events.",
		Group:          "calendar",
		Risk:           RiskHigh,
		DefaultEnabled: false,
	},
	{
		ID:             "diagnostics.run",
		Title:          "Run diagnostics",
		Description:    "Allow the app to run local diagnostics (no secrets included).",
		Group:          "diagnostics",
		Risk:           RiskLow,
		DefaultEnabled: true,
	},
	{
		ID:             "support.export",
		Title:          "Export support bundle",
		Description:    "Allow exporting a local support bundle (redacted) for troubleshooting.",
		Group:          "support",
		Risk:           RiskMedium,
		DefaultEnabled: false,
	},
}

// Integrations that carry a confirm-before-send policy. Absent
// overrides default to true (safe by default).
var ConfirmBeforeSendIntegrations = []string{"telegram", "gmail"}

var catalogByID = func() map[string]Permission {
	m := make(map[string]Permission, len(Catalog))
	for _, p := range Catalog {
		m[p.ID] = p
	}
	return m
}()

// Known reports whether id names a catalog permission.
func Known(id string) bool {
	_, ok := catalogByID[id]
	return ok
}

// Get returns the catalog entry for id.
func Get(id string) (Permission, bool) {
	p, ok := catalogByID[id]
	return p, ok
}

// DefaultEnabled returns the catalog defaults as a fully materialized
// id → enabled map.
func DefaultEnabled() map[string]bool {
	m := make(map[string]bool, len(Catalog))
	for _, p := range Catalog {
		m[p.ID] = p.DefaultEnabled
	}
	return m
}

// KnownConfirmIntegration reports whether id is an integration with a
// confirm-before-send policy.
func KnownConfirmIntegration(id string) bool {
	for _, known := range ConfirmBeforeSendIntegrations {
		if id == known {
			return true
		}
	}
	return false
}
