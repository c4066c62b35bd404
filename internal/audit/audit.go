// Package audit keeps an append-only journal of manager actions as
// JSON Lines. It is best-effort observability: callers must never
// fail an operation because an audit write failed.
package audit

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/nextlevelbuilder/clawman/internal/tail"
)

// FileName is the journal within the data directory.
const FileName = "audit.jsonl"

// EventType is a closed enum of auditable actions.
type EventType string

const (
	EventGatewayStart   EventType = "gateway.start"
	EventGatewayStop    EventType = "gateway.stop"
	EventGatewayRestart EventType = "gateway.restart"

	EventTelegramConnect       EventType = "integrations.telegram.connect"
	EventTelegramConnectFailed EventType = "integrations.telegram.connect_failed"
	EventTelegramDisconnect    EventType = "integrations.telegram.disconnect"

	EventGmailCredsSet       EventType = "integrations.gmail.oauthCreds.set"
	EventGmailCredsSetFailed EventType = "integrations.gmail.oauthCreds.set_failed"
	EventGmailCredsClear     EventType = "integrations.gmail.oauthCreds.clear"

	EventGmailOAuthStart          EventType = "integrations.gmail.oauth.start"
	EventGmailOAuthStartFailed    EventType = "integrations.gmail.oauth.start_failed"
	EventGmailOAuthClear          EventType = "integrations.gmail.oauth.clear"
	EventGmailOAuthCallbackFailed EventType = "integrations.gmail.oauth.callback_failed"
	EventGmailOAuthAuthorized     EventType = "integrations.gmail.oauth.authorized"

	EventPermissionsSet   EventType = "permissions.set"
	EventPermissionsReset EventType = "permissions.reset"

	EventPolicyConfirmBeforeSendSet EventType = "policies.confirmBeforeSend.set"

	EventDiagnosticsRun EventType = "diagnostics.run"
)

// Actor identifies who triggered an action.
type Actor string

const (
	ActorDesktopUI Actor = "desktop-ui"
	ActorBrowser   Actor = "browser"
	ActorCLI       Actor = "cli"
	ActorUnknown   Actor = "unknown"
)

// Event is one journal entry. Ordering is write order; entries are
// never mutated or deleted.
type Event struct {
	TS      time.Time      `json:"ts"`
	Type    EventType      `json:"type"`
	Actor   Actor          `json:"actor"`
	Details map[string]any `json:"details,omitempty"`
}

// RecentResult is a bounded tail of the journal.
type RecentResult struct {
	Events    []Event `json:"events"`
	Truncated bool    `json:"truncated"`
}

// Log owns the journal file exclusively.
type Log struct {
	path string
	now  func() time.Time
}

func New(dataDir string) *Log {
	return &Log{
		path: filepath.Join(dataDir, FileName),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Path returns the journal file path.
func (l *Log) Path() string { return l.path }

// Append serializes the event to one JSON line and appends it with a
// sync to stable storage. A missing timestamp is assigned here.
func (l *Log) Append(event Event) error {
	if event.TS.IsZero() {
		event.TS = l.now()
	}
	if event.Actor == "" {
		event.Actor = ActorUnknown
	}

	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode audit event: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync audit log: %w", err)
	}
	return nil
}

// SafeAppend audits best-effort: failures are logged, never returned.
func (l *Log) SafeAppend(event Event) {
	if err := l.Append(event); err != nil {
		slog.Warn("audit append failed", "type", event.Type, "error", err)
	}
}

// ReadRecent returns up to limit trailing events. Malformed lines
// (including a partially written trailing line) are silently skipped.
// A zero or negative limit returns an empty result without touching
// the file.
func (l *Log) ReadRecent(limit int) (RecentResult, error) {
	if limit <= 0 {
		return RecentResult{Events: []Event{}}, nil
	}

	lines, truncated, err := tail.Lines(l.path, limit)
	if err != nil {
		if os.IsNotExist(err) {
			return RecentResult{Events: []Event{}}, nil
		}
		return RecentResult{}, fmt.Errorf("read audit log: %w", err)
	}

	events := make([]Event, 0, len(lines))
	for _, line := range lines {
		var ev Event
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			continue
		}
		if ev.Type == "" || ev.TS.IsZero() {
			continue
		}
		events = append(events, ev)
	}
	return RecentResult{Events: events, Truncated: truncated}, nil
}
