package config

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch monitors path and calls onChange with base overlaid by the new file
// contents each time it is written. It runs until ctx is cancelled.
//
// A reload that fails to parse or validate is logged and skipped; the
// previous configuration stays active.
func Watch(ctx context.Context, log *slog.Logger, base Config, path string, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Watch the directory: an atomic save renames a new file over path,
	// which drops a watch held on the file itself.
	target := filepath.Clean(path)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return err
	}

	log.Info("Watching config file", "path", path)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			// A rename over path arrives as Create.
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			cfg, err := LoadFile(base, path)
			if err != nil {
				log.Error("Config reload failed, keeping previous config", "path", path, "error", err)
				continue
			}

			log.Info("Config reloaded", "path", path)
			onChange(cfg)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Error("Config watcher error", "error", err)
		}
	}
}
