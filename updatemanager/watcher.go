package updatemanager

import (
	"context"
	"sync"
	"time"

	goversion "github.com/hashicorp/go-version"
	log "github.com/sirupsen/logrus"
)

// DefaultCheckPeriod is how often the watcher polls the resolver.
const DefaultCheckPeriod = 30 * time.Minute

// Watcher periodically checks the manager's resolver for newer versions and
// notifies a listener when one appears. The listener fires at most once per
// distinct version.
type Watcher struct {
	manager *Manager
	period  time.Duration

	versionsLock  sync.Mutex
	lastAvailable *goversion.Version

	listenerLock     sync.Mutex
	onUpdateListener func(v *goversion.Version)
}

// NewWatcher creates a watcher over the manager. A non-positive period falls
// back to DefaultCheckPeriod.
func NewWatcher(manager *Manager, period time.Duration) *Watcher {
	if period <= 0 {
		period = DefaultCheckPeriod
	}
	return &Watcher{
		manager: manager,
		period:  period,
	}
}

// SetOnUpdateListener registers the notification callback. When a newer
// version is already known the listener fires immediately.
func (w *Watcher) SetOnUpdateListener(updateFn func(v *goversion.Version)) {
	w.listenerLock.Lock()
	defer w.listenerLock.Unlock()

	w.onUpdateListener = updateFn
	if v := w.available(); v != nil && updateFn != nil {
		updateFn(v)
	}
}

// Run polls until the context is cancelled. An immediate check happens before
// the first tick.
func (w *Watcher) Run(ctx context.Context) {
	if w.fetchVersion(ctx) {
		w.notify()
	}

	ticker := time.NewTicker(w.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if w.fetchVersion(ctx) {
				w.notify()
			}
		}
	}
}

func (w *Watcher) available() *goversion.Version {
	w.versionsLock.Lock()
	defer w.versionsLock.Unlock()
	return w.lastAvailable
}

// fetchVersion reports whether a version newer than both the running
// application and the previously seen one became available.
func (w *Watcher) fetchVersion(ctx context.Context) bool {
	result, err := w.manager.CheckForUpdates(ctx)
	if err != nil {
		logFailure("periodic update check", err)
		return false
	}
	if !result.CanUpdate {
		return false
	}

	w.versionsLock.Lock()
	defer w.versionsLock.Unlock()

	if w.lastAvailable != nil && !result.LastVersion.GreaterThan(w.lastAvailable) {
		return false
	}
	w.lastAvailable = result.LastVersion
	log.Infof("new version available: %s", result.LastVersion.Original())
	return true
}

func (w *Watcher) notify() {
	w.listenerLock.Lock()
	defer w.listenerLock.Unlock()

	if w.onUpdateListener == nil {
		return
	}
	if v := w.available(); v != nil {
		w.onUpdateListener(v)
	}
}
