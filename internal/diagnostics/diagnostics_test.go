package diagnostics

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/nextlevelbuilder/clawman/internal/gatewayctl"
	"github.com/nextlevelbuilder/clawman/internal/state"
)

func newRunner(t *testing.T, statusOut string, statusErr error, logFile string) (*Runner, *state.Store) {
	t.Helper()
	gw := gatewayctl.NewWithRunner(func(ctx context.Context, args ...string) (string, error) {
		return statusOut, statusErr
	})
	st := state.New(t.TempDir())
	return &Runner{
		Gateway:     gw,
		States:      st,
		LogResolver: func() string { return logFile },
	}, st
}

func findCheck(t *testing.T, res Result, id string) Check {
	t.Helper()
	for _, c := range res.Checks {
		if c.ID == id {
			return c
		}
	}
	t.Fatalf("no check %q in %+v", id, res.Checks)
	return Check{}
}

func TestRunHealthy(t *testing.T) {
	dir := t.TempDir()
	logFile := filepath.Join(dir, "gw.log")
	if err := os.WriteFile(logFile, []byte("started\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	r, st := newRunner(t, "Runtime: running\n", nil, logFile)
	if err := st.SetTelegramToken("123:ABCDEFGHIJ"); err != nil {
		t.Fatal(err)
	}

	res := r.Run(context.Background())
	if res.Summary.Overall != LevelOK {
		t.Errorf("overall = %s, want ok (checks: %+v)", res.Summary.Overall, res.Checks)
	}
	if res.Summary.OKCount != len(res.Checks) {
		t.Errorf("okCount = %d, want %d", res.Summary.OKCount, len(res.Checks))
	}
	if res.RanAt.IsZero() {
		t.Error("ranAt should be stamped")
	}
}

func TestRunGatewayFailure(t *testing.T) {
	r, _ := newRunner(t, "", os.ErrPermission, "")

	res := r.Run(context.Background())
	if res.Summary.Overall != LevelError {
		t.Errorf("overall = %s, want error", res.Summary.Overall)
	}
	c := findCheck(t, res, "gateway.status")
	if c.Level != LevelError {
		t.Errorf("gateway check level = %s", c.Level)
	}
}

func TestRunWarnsWithoutTelegramOrLogs(t *testing.T) {
	r, _ := newRunner(t, "Runtime: stopped\n", nil, "")

	res := r.Run(context.Background())
	if res.Summary.Overall != LevelWarn {
		t.Errorf("overall = %s, want warn", res.Summary.Overall)
	}
	if c := findCheck(t, res, "integrations.telegram"); c.Level != LevelWarn {
		t.Errorf("telegram check level = %s", c.Level)
	}
	if c := findCheck(t, res, "gateway.logs"); c.Level != LevelWarn {
		t.Errorf("logs check level = %s", c.Level)
	}
}

func TestTelegramNeedsAttention(t *testing.T) {
	r, st := newRunner(t, "Runtime: running\n", nil, "")
	if err := st.SetTelegramToken("123:ABCDEFGHIJ"); err != nil {
		t.Fatal(err)
	}
	if err := st.SetTelegramError("bad_token"); err != nil {
		t.Fatal(err)
	}

	res := r.Run(context.Background())
	c := findCheck(t, res, "integrations.telegram")
	if c.Level != LevelWarn {
		t.Errorf("level = %s, want warn", c.Level)
	}
	if c.Details["lastError"] != "bad_token" {
		t.Errorf("details = %v", c.Details)
	}
}
