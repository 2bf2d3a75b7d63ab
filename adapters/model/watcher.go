package model

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	"attrition/ports"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Holder publishes the current model. Ingestion takes a snapshot per batch,
// so a reload only affects batches scored after it.
type Holder struct {
	current atomic.Pointer[LogisticModel]
}

// NewHolder creates a holder with an initial model
func NewHolder(m *LogisticModel) *Holder {
	h := &Holder{}
	h.current.Store(m)
	return h
}

// Current returns the model new batches should use
func (h *Holder) Current() *LogisticModel {
	return h.current.Load()
}

// Predictor returns the current model as a ports.Predictor, or nil when none is loaded
func (h *Holder) Predictor() ports.Predictor {
	if m := h.current.Load(); m != nil {
		return m
	}
	return nil
}

// Swap replaces the model and returns the previous one
func (h *Holder) Swap(m *LogisticModel) *LogisticModel {
	return h.current.Swap(m)
}

// Watch reloads the artifact at path into h whenever it changes, until ctx is done.
// A file that fails to load leaves the previous model in place.
func Watch(ctx context.Context, path string, h *Holder, logger zerolog.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	// Watch the directory; editors replace files by rename
	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch directory: %w", err)
	}

	logger = logger.With().Str("component", "model_watcher").Str("path", path).Logger()
	go watchLoop(ctx, watcher, path, h, logger)
	return nil
}

func watchLoop(ctx context.Context, watcher *fsnotify.Watcher, path string, h *Holder, logger zerolog.Logger) {
	defer watcher.Close()

	var debounceTimer *time.Timer
	const debounceDelay = 200 * time.Millisecond

	for {
		select {
		case <-ctx.Done():
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filepath.Base(path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(debounceDelay, func() {
				reload(path, h, logger)
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.Warn().Err(err).Msg("model watcher error")
		}
	}
}

func reload(path string, h *Holder, logger zerolog.Logger) {
	m, err := Load(path)
	if err != nil {
		logger.Error().Err(err).Msg("model reload failed; keeping previous model")
		return
	}
	prev := h.Swap(m)
	ev := logger.Info().Str("version", m.Version())
	if prev != nil {
		ev = ev.Str("previous_version", prev.Version())
	}
	ev.Msg("model reloaded")
}
