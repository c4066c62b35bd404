package server

import (
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/nextlevelbuilder/clawman/internal/state"
)

// watchStateFile re-projects the derived config whenever the state
// file changes on disk. The manager is the normal writer, but a
// restore from backup or a hand edit while the manager runs would
// otherwise leave the projection stale until the next mutation.
//
// The parent directory is watched rather than the file: atomic
// replace-by-rename swaps the inode, which silently detaches a watch
// pinned to the file itself.
func watchStateFile(states *state.Store) (stop func(), err error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(filepath.Dir(states.Path())); err != nil {
		watcher.Close()
		return nil, err
	}

	go func() {
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Name != states.Path() {
					continue
				}
				if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Rename) {
					continue
				}
				if err := states.Reproject(); err != nil {
					slog.Warn("reprojection after state change failed", "error", err)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("state file watcher error", "error", err)
			}
		}
	}()

	return func() { watcher.Close() }, nil
}
