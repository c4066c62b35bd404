// Package logs locates the gateway's log file and reads its tail for
// the desktop UI.
package logs

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nextlevelbuilder/clawman/internal/tail"
)

// datePlaceholder in a configured log path is substituted with the
// current local date.
const datePlaceholder = "YYYY-MM-DD"

// Resolver returns the gateway log file path, or "" when none can be
// determined. Swappable for tests.
type Resolver func() string

// ResolveGatewayLogFile finds the gateway's current log file: the
// logging.file override from ~/.openclaw/openclaw.json when present,
// otherwise the documented default under the OS temp directory.
func ResolveGatewayLogFile() string {
	date := time.Now().Format("2006-01-02")

	home, err := os.UserHomeDir()
	if err == nil {
		if file := configuredLogFile(filepath.Join(home, ".openclaw", "openclaw.json")); file != "" {
			return strings.ReplaceAll(file, datePlaceholder, date)
		}
	}

	return filepath.Join(os.TempDir(), "openclaw", "openclaw-"+date+".log")
}

// configuredLogFile reads logging.file from a gateway config. Parse
// and read errors fall back to the default location.
func configuredLogFile(cfgPath string) string {
	data, err := os.ReadFile(cfgPath)
	if err != nil {
		return ""
	}
	var cfg struct {
		Logging struct {
			File string `json:"file"`
		} `json:"logging"`
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return ""
	}
	return strings.TrimSpace(cfg.Logging.File)
}

// Recent is a bounded tail of a gateway log.
type Recent struct {
	Available bool     `json:"available"`
	File      string   `json:"file,omitempty"`
	Lines     []string `json:"lines"`
	Truncated bool     `json:"truncated,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// ReadRecent tails the resolved log file. Failures are reported in
// the result, never as an error: missing logs are a normal state for
// a gateway that has not run yet.
func ReadRecent(resolve Resolver, lineCount int) Recent {
	file := resolve()
	if file == "" {
		return Recent{Lines: []string{}, Error: "no_log_file"}
	}

	lines, truncated, err := tail.Lines(file, lineCount)
	if err != nil {
		return Recent{File: file, Lines: []string{}, Error: err.Error()}
	}
	if lines == nil {
		lines = []string{}
	}
	return Recent{Available: true, File: file, Lines: lines, Truncated: truncated}
}
