// Package diagnostics runs local health checks over the manager's
// collaborators. Checks never include secret material.
package diagnostics

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/nextlevelbuilder/clawman/internal/gatewayctl"
	"github.com/nextlevelbuilder/clawman/internal/logs"
	"github.com/nextlevelbuilder/clawman/internal/state"
)

// Level is a check severity rollup.
type Level string

const (
	LevelOK    Level = "ok"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Check is one diagnostic finding.
type Check struct {
	ID      string         `json:"id"`
	Level   Level          `json:"level"`
	Summary string         `json:"summary"`
	Details map[string]any `json:"details,omitempty"`
}

// Summary aggregates check levels.
type Summary struct {
	Overall    Level `json:"overall"`
	OKCount    int   `json:"okCount"`
	WarnCount  int   `json:"warnCount"`
	ErrorCount int   `json:"errorCount"`
}

// Result is one diagnostics run.
type Result struct {
	RanAt   time.Time `json:"ranAt"`
	Summary Summary   `json:"summary"`
	Checks  []Check   `json:"checks"`
}

// Runner wires the collaborators a run needs.
type Runner struct {
	Gateway     *gatewayctl.Controller
	States      *state.Store
	LogResolver logs.Resolver
}

// Run executes all checks.
func (r *Runner) Run(ctx context.Context) Result {
	var checks []Check

	checks = append(checks, r.checkGateway(ctx))
	checks = append(checks, r.checkState())
	checks = append(checks, r.checkLogs())
	checks = append(checks, r.checkTelegram())

	summary := Summary{Overall: LevelOK}
	for _, c := range checks {
		switch c.Level {
		case LevelOK:
			summary.OKCount++
		case LevelWarn:
			summary.WarnCount++
		case LevelError:
			summary.ErrorCount++
		}
	}
	if summary.ErrorCount > 0 {
		summary.Overall = LevelError
	} else if summary.WarnCount > 0 {
		summary.Overall = LevelWarn
	}

	return Result{RanAt: time.Now().UTC(), Summary: summary, Checks: checks}
}

// checkGateway exercises the gateway CLI path.
func (r *Runner) checkGateway(ctx context.Context) Check {
	gw := r.Gateway.Current(ctx)
	if gw.Status == gatewayctl.StatusError {
		msg := "gateway status returned error"
		if gw.LastError != nil {
			msg = gw.LastError.Message
		}
		return Check{
			ID:      "gateway.status",
			Level:   LevelError,
			Summary: msg,
			Details: map[string]any{"status": gw.Status},
		}
	}
	return Check{
		ID:      "gateway.status",
		Level:   LevelOK,
		Summary: fmt.Sprintf("gateway is %s", gw.Status),
		Details: map[string]any{"status": gw.Status},
	}
}

func (r *Runner) checkState() Check {
	st, err := r.States.GetState()
	if err != nil {
		return Check{
			ID:      "manager.state",
			Level:   LevelError,
			Summary: "failed to read state store",
			Details: map[string]any{"error": err.Error()},
		}
	}
	return Check{
		ID:      "manager.state",
		Level:   LevelOK,
		Summary: "state store readable",
		Details: map[string]any{"schemaVersion": st.SchemaVersion},
	}
}

func (r *Runner) checkLogs() Check {
	file := r.LogResolver()
	if file == "" {
		return Check{ID: "gateway.logs", Level: LevelWarn, Summary: "no gateway log file detected yet"}
	}
	if _, err := os.Stat(file); err != nil {
		return Check{
			ID:      "gateway.logs",
			Level:   LevelWarn,
			Summary: "no gateway log file detected yet",
			Details: map[string]any{"file": file},
		}
	}
	return Check{
		ID:      "gateway.logs",
		Level:   LevelOK,
		Summary: "gateway log file detected",
		Details: map[string]any{"file": file},
	}
}

func (r *Runner) checkTelegram() Check {
	conn, err := r.States.GetTelegramConnection()
	if err != nil {
		return Check{
			ID:      "integrations.telegram",
			Level:   LevelWarn,
			Summary: "failed to read telegram connection state",
			Details: map[string]any{"error": err.Error()},
		}
	}
	switch {
	case conn.Connected:
		return Check{ID: "integrations.telegram", Level: LevelOK, Summary: "telegram connected"}
	case conn.LastError != "":
		return Check{
			ID:      "integrations.telegram",
			Level:   LevelWarn,
			Summary: "telegram needs attention",
			Details: map[string]any{"lastError": conn.LastError},
		}
	}
	return Check{ID: "integrations.telegram", Level: LevelWarn, Summary: "telegram not connected"}
}
