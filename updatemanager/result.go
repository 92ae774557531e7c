package updatemanager

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"

	"github.com/moltup/molt/updater"
)

// ErrNoResult is returned by LastResult when no helper run has left a result
// file behind.
var ErrNoResult = errors.New("no updater result available")

// LastResult returns the outcome the helper persisted after its most recent
// run. A failed helper run is only observable this way or through its log
// file: the helper has no live channel back to the application.
func (m *Manager) LastResult() (updater.Result, error) {
	result, err := updater.ReadResult(m.layout.ResultPath())
	if err != nil {
		if os.IsNotExist(err) {
			return updater.Result{}, ErrNoResult
		}
		return updater.Result{}, err
	}
	return result, nil
}

// WatchResult blocks until the helper writes its result file, then returns
// the result and removes the file. Bound the wait with the context. Intended
// for the restarted application or a companion process that wants to report
// the update outcome.
func (m *Manager) WatchResult(ctx context.Context) (updater.Result, error) {
	resultPath := m.layout.ResultPath()
	log.Debugf("watching for updater result at %s", resultPath)

	defer func() {
		if err := os.Remove(resultPath); err != nil && !os.IsNotExist(err) {
			log.Warnf("failed to remove result file: %v", err)
		}
	}()

	// The helper may already have finished before we started watching.
	if result, err := m.LastResult(); err == nil {
		return result, nil
	}

	// Wait for the storage directory to exist before installing a watcher
	// on it.
	ticker := time.NewTicker(300 * time.Millisecond)
	defer ticker.Stop()
	for {
		if info, err := os.Stat(m.layout.Dir()); err == nil && info.IsDir() {
			break
		}
		select {
		case <-ctx.Done():
			return updater.Result{}, ctx.Err()
		case <-ticker.C:
		}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return updater.Result{}, err
	}
	defer func() {
		if err := watcher.Close(); err != nil {
			log.Warnf("failed to close watcher: %v", err)
		}
	}()

	// Watch the directory, not the file: the file does not exist yet.
	if err := watcher.Add(m.layout.Dir()); err != nil {
		return updater.Result{}, fmt.Errorf("watch storage dir: %w", err)
	}

	// Re-check after the watcher is in place to close the race with a
	// helper finishing in between.
	if result, err := m.LastResult(); err == nil {
		return result, nil
	}

	for {
		select {
		case <-ctx.Done():
			return updater.Result{}, ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return updater.Result{}, errors.New("watcher closed unexpectedly")
			}
			if event.Name != resultPath {
				continue
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				result, err := m.LastResult()
				if err != nil {
					log.Debugf("error while reading result: %v", err)
					return updater.Result{}, err
				}
				return result, nil
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return updater.Result{}, errors.New("watcher closed unexpectedly")
			}
			return updater.Result{}, fmt.Errorf("watcher error: %w", err)
		}
	}
}
