package config

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watcher reloads configuration when the config file changes on disk.
// Provider or voice changes apply to the next synthesis request.
type Watcher struct {
	watcher  *fsnotify.Watcher
	logger   zerolog.Logger
	onReload func(*Config)
	done     chan struct{}
}

// NewWatcher watches the config directory and invokes onReload with the
// freshly loaded configuration after each write to config.yaml.
func NewWatcher(logger zerolog.Logger, onReload func(*Config)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	configDir, err := GetConfigDir()
	if err != nil {
		fw.Close()
		return nil, err
	}
	if err := fw.Add(configDir); err != nil {
		fw.Close()
		return nil, err
	}

	w := &Watcher{
		watcher:  fw,
		logger:   logger.With().Str("component", "config-watcher").Logger(),
		onReload: onReload,
		done:     make(chan struct{}),
	}

	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) || filepath.Base(event.Name) != "config.yaml" {
				continue
			}
			cfg, err := Load()
			if err != nil {
				w.logger.Error().Err(err).Msg("Config reload failed")
				continue
			}
			w.logger.Info().Str("provider", cfg.TTS.Provider).Msg("Config reloaded")
			if w.onReload != nil {
				w.onReload(cfg)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("Config watcher error")

		case <-w.done:
			return
		}
	}
}

// Close stops the watcher
func (w *Watcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}
