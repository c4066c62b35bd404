// Package gatewayctl wraps the OpenClaw gateway lifecycle by shelling
// out to its CLI and reconciling the textual status report. It never
// returns a Go error to its caller: every failure becomes a status of
// "error" with a message.
package gatewayctl

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"time"
)

// Status is the reconciled gateway lifecycle state.
type Status string

const (
	StatusRunning  Status = "running"
	StatusStopped  Status = "stopped"
	StatusStarting Status = "starting"
	StatusStopping Status = "stopping"
	StatusError    Status = "error"
)

// ErrorInfo carries the diagnostic for an error status.
type ErrorInfo struct {
	Message string `json:"message"`
}

// State is derived fresh from the external process on demand; it is
// never persisted.
type State struct {
	Status    Status     `json:"status"`
	LastError *ErrorInfo `json:"lastError,omitempty"`
}

// Runner executes a gateway CLI subcommand and returns its combined
// stdout and stderr. Swapped out in tests.
type Runner func(ctx context.Context, args ...string) (string, error)

// commandTimeout bounds every CLI invocation so no operation blocks
// indefinitely.
const commandTimeout = 60 * time.Second

// Controller gates start/stop/restart against the current status so
// repeated calls never issue redundant or conflicting transitions.
type Controller struct {
	run Runner
}

// New creates a controller that invokes `<bin> gateway <subcommand>`.
func New(bin string) *Controller {
	if bin == "" {
		bin = "openclaw"
	}
	return &Controller{run: cliRunner(bin)}
}

// NewWithRunner creates a controller with a custom runner (tests).
func NewWithRunner(run Runner) *Controller {
	return &Controller{run: run}
}

func cliRunner(bin string) Runner {
	return func(ctx context.Context, args ...string) (string, error) {
		ctx, cancel := context.WithTimeout(ctx, commandTimeout)
		defer cancel()

		cmd := exec.CommandContext(ctx, bin, append([]string{"gateway"}, args...)...)
		out, err := cmd.CombinedOutput()
		if err != nil {
			if ctx.Err() == context.DeadlineExceeded {
				return "", fmt.Errorf("gateway command timed out after %s", commandTimeout)
			}
			if len(out) > 0 {
				return "", fmt.Errorf("%s: %s", err, strings.TrimSpace(string(out)))
			}
			return "", err
		}
		return strings.TrimSpace(string(out)), nil
	}
}

// The status subcommand prints a line "Runtime: <word>".
var runtimeLine = regexp.MustCompile(`(?m)^Runtime:\s*(\w+)`)

// ParseStatus maps the CLI status report to a State. Unparseable
// output is an error status with a diagnostic, not a failure.
func ParseStatus(output string) State {
	m := runtimeLine.FindStringSubmatch(output)
	raw := ""
	if m != nil {
		raw = strings.ToLower(m[1])
	}

	switch raw {
	case "running":
		return State{Status: StatusRunning}
	case "stopped":
		return State{Status: StatusStopped}
	case "starting":
		return State{Status: StatusStarting}
	case "stopping":
		return State{Status: StatusStopping}
	}

	if raw == "" {
		raw = "missing"
	}
	return State{
		Status:    StatusError,
		LastError: &ErrorInfo{Message: fmt.Sprintf("unable to parse gateway status from CLI output (Runtime: %s)", raw)},
	}
}

// Current queries the gateway status.
func (c *Controller) Current(ctx context.Context) State {
	out, err := c.run(ctx, "status")
	if err != nil {
		return State{Status: StatusError, LastError: &ErrorInfo{Message: err.Error()}}
	}
	return ParseStatus(out)
}

// Start issues a start unless the gateway is already running or in
// the middle of starting, in which case the current state is returned
// unchanged.
func (c *Controller) Start(ctx context.Context) State {
	current := c.Current(ctx)
	if current.Status == StatusRunning || current.Status == StatusStarting {
		return current
	}

	if _, err := c.run(ctx, "start"); err != nil {
		return State{Status: StatusError, LastError: &ErrorInfo{Message: err.Error()}}
	}
	return c.Current(ctx)
}

// Stop is symmetric with Start.
func (c *Controller) Stop(ctx context.Context) State {
	current := c.Current(ctx)
	if current.Status == StatusStopped || current.Status == StatusStopping {
		return current
	}

	if _, err := c.run(ctx, "stop"); err != nil {
		return State{Status: StatusError, LastError: &ErrorInfo{Message: err.Error()}}
	}
	return c.Current(ctx)
}

// Restart restarts a running gateway. When the gateway is stopped the
// user intent is "get it running", so restart delegates to Start.
func (c *Controller) Restart(ctx context.Context) State {
	current := c.Current(ctx)
	if current.Status == StatusStopped {
		return c.Start(ctx)
	}

	if _, err := c.run(ctx, "restart"); err != nil {
		return State{Status: StatusError, LastError: &ErrorInfo{Message: err.Error()}}
	}
	return c.Current(ctx)
}
