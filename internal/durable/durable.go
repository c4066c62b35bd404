// Package durable provides crash-resistant single-file writes with a
// one-generation backup for rollback. It has no knowledge of what the
// files contain.
package durable

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// BackupSuffix is appended to the target path for the retained prior
// generation. Only one generation is kept.
const BackupSuffix = ".bak"

// rename is swappable so tests can simulate rename failures at
// specific points of the write protocol.
var rename = os.Rename

// ReadFile reads the file at path. A missing file is not an error:
// ok is false and err is nil. Any other I/O failure propagates.
func ReadFile(path string) (data []byte, ok bool, err error) {
	data, err = os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	return data, true, nil
}

// WriteFile writes data to path so that a crash at any point leaves
// either the previous contents or the new contents at path, never a
// partial document. The previous contents are moved to path+".bak"
// before the new file is put in place.
func WriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	// Fresh temp name in the same directory. The pid plus a uuid plus
	// a nanosecond timestamp keeps concurrent writers in this process
	// from colliding.
	tmpPath := filepath.Join(dir, fmt.Sprintf(".%s.tmp-%d-%d-%s",
		filepath.Base(path), os.Getpid(), time.Now().UnixNano(), uuid.NewString()[:8]))

	if err := writeAndSync(tmpPath, data); err != nil {
		os.Remove(tmpPath)
		return err
	}

	bakPath := path + BackupSuffix

	// Rotate the current generation to .bak, replacing any prior backup.
	hadPrevious := false
	if _, err := os.Stat(path); err == nil {
		hadPrevious = true
		if err := rename(path, bakPath); err != nil {
			os.Remove(tmpPath)
			return fmt.Errorf("rotate backup: %w", err)
		}
	} else if !os.IsNotExist(err) {
		os.Remove(tmpPath)
		return fmt.Errorf("stat %s: %w", filepath.Base(path), err)
	}

	if err := rename(tmpPath, path); err != nil {
		// Best-effort rollback: the target is gone at this point when a
		// previous generation existed, so restore it from the backup.
		if hadPrevious {
			if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
				rename(bakPath, path)
			}
		}
		os.Remove(tmpPath)
		return fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}

	return nil
}

func writeAndSync(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	return nil
}
