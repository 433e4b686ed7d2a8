package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/devmgr-go/devmgr/pkg/device"
	"github.com/devmgr-go/devmgr/pkg/examples"
)

// reloader merges devices from a changed configuration into the live table
// and rescans the tree so the bus publishes them. Devices that disappear
// from the file stay in the tree; removal is reported by the bus, not by
// configuration.
type reloader struct {
	path    string
	table   *examples.DeviceTable
	manager *device.Manager
	logger  *slog.Logger
}

// watchedFiles returns the files whose changes trigger a reload.
func (r *reloader) watchedFiles() ([]string, error) {
	files := []string{filepath.Clean(r.path)}
	cfg, err := LoadConfig(r.path)
	if err != nil {
		return nil, err
	}
	if p := cfg.TablePath(); p != "" {
		files = append(files, filepath.Clean(p))
	}
	return files, nil
}

// reload returns the number of devices added to the table.
func (r *reloader) reload() (int, error) {
	cfg, err := LoadConfig(r.path)
	if err != nil {
		return 0, err
	}
	table, err := cfg.Table()
	if err != nil {
		return 0, err
	}

	added := r.table.Merge(table)
	if added == 0 {
		return 0, nil
	}
	root := r.manager.Root()
	if root == nil {
		return added, nil
	}
	if err := r.manager.Rescan(root); err != nil {
		return added, fmt.Errorf("rescan: %w", err)
	}
	return added, nil
}

// watch reloads on every write to the watched files until ctx is done.
// Directories are watched so editors that replace the file are seen.
func (r *reloader) watch(ctx context.Context) error {
	files, err := r.watchedFiles()
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	dirs := map[string]bool{}
	for _, f := range files {
		dir := filepath.Dir(f)
		if dirs[dir] {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("watching %s: %w", dir, err)
		}
		dirs[dir] = true
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if !r.isWatched(files, ev.Name) {
				continue
			}
			added, err := r.reload()
			if err != nil {
				r.logger.Warn("config reload failed", "file", ev.Name, "error", err)
				continue
			}
			r.logger.Info("config reloaded", "file", ev.Name, "added", added)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			r.logger.Warn("watcher error", "error", err)
		}
	}
}

func (r *reloader) isWatched(files []string, name string) bool {
	name = filepath.Clean(name)
	for _, f := range files {
		if f == name {
			return true
		}
	}
	return false
}
