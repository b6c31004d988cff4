// Package htwatch keeps a parsed copy of an htpasswd file current while
// other processes rewrite it.
//
// The parent directory is watched rather than the file itself because
// htpasswd.WriteFile replaces the file by renaming a new one over it.
package htwatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/kardianos/htpasswd"
)

// Config configures a Watcher.
type Config struct {
	// Path is the htpasswd file to watch. It must exist when New is called.
	Path string

	// FS reads the file. If nil, htpasswd.OS is used.
	FS htpasswd.FS

	// Logger receives reload results. If nil, slog.Default() is used.
	Logger *slog.Logger

	// OnReload, if set, is called with a private copy of each store
	// successfully loaded after the initial one.
	OnReload func(*htpasswd.Store)
}

// Watcher holds the last successfully parsed content of an htpasswd file.
type Watcher struct {
	path     string
	fsys     htpasswd.FS
	log      *slog.Logger
	onReload func(*htpasswd.Store)
	fsw      *fsnotify.Watcher

	mu    sync.RWMutex
	store *htpasswd.Store
}

// New loads cfg.Path and starts watching its directory. Call Run to process
// changes and Close, or cancel Run, to release the watch.
func New(cfg Config) (*Watcher, error) {
	if cfg.Path == "" {
		return nil, errors.New("htwatch: path is required")
	}
	w := &Watcher{
		path:     filepath.Clean(cfg.Path),
		fsys:     cfg.FS,
		log:      cfg.Logger,
		onReload: cfg.OnReload,
	}
	if w.fsys == nil {
		w.fsys = htpasswd.OS
	}
	if w.log == nil {
		w.log = slog.Default()
	}

	s, err := htpasswd.ReadFileFS(w.fsys, w.path)
	if err != nil {
		return nil, err
	}
	w.store = s

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("htwatch: create watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("htwatch: watch %s: %w", filepath.Dir(w.path), err)
	}
	w.fsw = fsw
	return w, nil
}

// Run processes file changes until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				w.Reload()
			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				w.log.Warn("htpasswd file removed, keeping last loaded credentials", "path", w.path)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Error("htpasswd watch error", "path", w.path, "err", err)
		}
	}
}

// Close stops watching. A running Run returns.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// Reload reads the file now. On failure the previous store is kept.
func (w *Watcher) Reload() error {
	s, err := htpasswd.ReadFileFS(w.fsys, w.path)
	if err != nil {
		w.log.Error("htpasswd reload failed", "path", w.path, "err", err)
		return err
	}

	w.mu.Lock()
	w.store = s
	w.mu.Unlock()

	w.log.Info("htpasswd reloaded", "path", w.path, "entries", s.Len())
	if w.onReload != nil {
		w.onReload(s.Clone())
	}
	return nil
}

// Current returns a copy of the last loaded store.
func (w *Watcher) Current() *htpasswd.Store {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.store.Clone()
}

// Lookup returns the hash loaded for username.
func (w *Watcher) Lookup(username string) (htpasswd.Hash, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.store.Get(username)
}
