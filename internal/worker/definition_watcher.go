package worker

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/statecraft/internal/loader"
)

// ChangeFunc is called after the watched definitions changed
type ChangeFunc func(ctx context.Context) error

// DefinitionWatcher polls definition files and calls onChange when any of
// them is added, removed or modified
type DefinitionWatcher struct {
	paths    []string
	onChange ChangeFunc
	logger   *zap.Logger

	// Configuration
	pollInterval time.Duration

	// State
	mu          sync.RWMutex
	isRunning   bool
	cancel      context.CancelFunc
	done        chan struct{}
	fingerprint string
	reloads     int
}

// NewDefinitionWatcher creates a new watcher over files and directories
func NewDefinitionWatcher(paths []string, interval time.Duration, onChange ChangeFunc, logger *zap.Logger) *DefinitionWatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &DefinitionWatcher{
		paths:        append([]string(nil), paths...),
		onChange:     onChange,
		logger:       logger,
		pollInterval: interval,
	}
}

// Start takes the initial fingerprint and starts polling
func (w *DefinitionWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.isRunning {
		return fmt.Errorf("definition watcher is already running")
	}

	fp, err := Fingerprint(w.paths)
	if err != nil {
		return err
	}
	w.fingerprint = fp

	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	w.isRunning = true

	w.logger.Info("DefinitionWatcher started",
		zap.Strings("paths", w.paths),
		zap.Duration("poll_interval", w.pollInterval))

	go w.pollLoop(ctx, w.done)

	return nil
}

// Stop stops polling and waits for an in-flight reload to finish
func (w *DefinitionWatcher) Stop() {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return
	}
	w.isRunning = false
	w.cancel()
	done := w.done
	w.mu.Unlock()

	<-done
	w.logger.Info("DefinitionWatcher stopped")
}

// Name returns the worker name for identification
func (w *DefinitionWatcher) Name() string {
	return "DefinitionWatcher"
}

// Reloads returns how many times onChange has been called
func (w *DefinitionWatcher) Reloads() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.reloads
}

func (w *DefinitionWatcher) pollLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

// poll compares the current fingerprint with the last one
func (w *DefinitionWatcher) poll(ctx context.Context) {
	fp, err := Fingerprint(w.paths)
	if err != nil {
		w.logger.Warn("Failed to scan definitions", zap.Error(err))
		return
	}

	w.mu.Lock()
	changed := fp != w.fingerprint
	w.fingerprint = fp
	w.mu.Unlock()

	if !changed {
		return
	}

	w.logger.Info("Definition change detected", zap.Strings("paths", w.paths))
	if err := w.onChange(ctx); err != nil {
		// the next change retries; the fingerprint is not rolled back so a
		// broken file is not reloaded on every tick
		w.logger.Error("Failed to apply definition change", zap.Error(err))
	}

	w.mu.Lock()
	w.reloads++
	w.mu.Unlock()
}

// Fingerprint summarizes name, size and modification time of every
// definition file under paths
func Fingerprint(paths []string) (string, error) {
	var entries []string
	for _, root := range paths {
		err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				if os.IsNotExist(err) {
					return nil
				}
				return err
			}
			if d.IsDir() {
				return nil
			}
			if _, ferr := loader.FormatFromPath(p); ferr != nil {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return err
			}
			entries = append(entries, fmt.Sprintf("%s|%d|%d", p, info.Size(), info.ModTime().UnixNano()))
			return nil
		})
		if err != nil {
			return "", fmt.Errorf("failed to scan %s: %w", root, err)
		}
	}
	sort.Strings(entries)

	h := sha256.New()
	for _, e := range entries {
		h.Write([]byte(e))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
