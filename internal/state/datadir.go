package state

import (
	"os"
	"path/filepath"
)

// DataDirEnv overrides the resolved data directory.
const DataDirEnv = "OPENCLAW_DESKTOP_DATA_DIR"

// ResolveDataDir resolves the manager data directory: the env
// override, then the platform app-data convention, then a dotfolder
// in the home directory.
func ResolveDataDir() string {
	if v := os.Getenv(DataDirEnv); v != "" {
		return v
	}
	if local := os.Getenv("LOCALAPPDATA"); local != "" {
		return filepath.Join(local, "openclaw-desktop")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".openclaw-desktop")
}
