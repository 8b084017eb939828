package config

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/tinyland-inc/stagelink/pkg/logger"
)

// Watcher reloads the config file when it changes on disk and notifies
// the owner when the studio endpoint differs from the last loaded value.
// Editors often replace the file (rename + create), so the parent
// directory is watched rather than the file itself.
type Watcher struct {
	path     string
	last     Endpoint
	onChange func(*Config)
	fsw      *fsnotify.Watcher
	done     chan struct{}
}

// NewWatcher starts watching path. onChange runs on the watcher goroutine
// whenever a reload yields a different endpoint; callers that need
// serialization must post into their own event loop.
func NewWatcher(path string, current Endpoint, onChange func(*Config)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, err
	}

	w := &Watcher{
		path:     path,
		last:     current,
		onChange: onChange,
		fsw:      fsw,
		done:     make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(w.path) {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			w.reload()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logger.WarnCF("config", "Watcher error", map[string]any{"error": err.Error()})
		case <-w.done:
			return
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := LoadConfig(w.path)
	if err != nil {
		logger.WarnCF("config", "Reload failed, keeping previous config", map[string]any{
			"path":  w.path,
			"error": err.Error(),
		})
		return
	}
	if cfg.Studio == w.last {
		return
	}
	logger.InfoCF("config", "Studio endpoint changed", map[string]any{
		"host": cfg.Studio.Host,
		"port": cfg.Studio.Port,
	})
	w.last = cfg.Studio
	w.onChange(cfg)
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}
