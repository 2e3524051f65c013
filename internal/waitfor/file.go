package waitfor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// WaitForPath blocks until path exists, or ctx is done. It watches the
// parent directory rather than polling, so creation is observed as it
// happens. The parent directory must already exist.
func WaitForPath(ctx context.Context, path string) error {
	if pathExists(path) {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	// The path may have appeared between the first check and the watch
	// registration.
	if pathExists(path) {
		return nil
	}

	target, err := filepath.Abs(path)
	if err != nil {
		target = path
	}

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for %s: %w", path, ctx.Err())
		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("watcher closed while waiting for %s", path)
			}
			if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Rename) {
				continue
			}
			if name, err := filepath.Abs(event.Name); err == nil && name == target {
				return nil
			}
			// Renames and editors that write through temp files can
			// surface under another name, so fall back to a stat.
			if pathExists(path) {
				return nil
			}
		case <-watcher.Errors:
			// Watch errors are transient here; the deadline decides
			// when to give up.
		}
	}
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
