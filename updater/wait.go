package updater

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ErrStillHeld is returned when a target file is still open for writing by
// another process after the configured wait timeout.
var ErrStillHeld = errors.New("target file is still held by another process")

const (
	probeInitialInterval = 100 * time.Millisecond
	probeMaxInterval     = time.Second
)

// awaitWritable blocks until every existing file in paths can be opened for
// exclusive writing, which is the signal that no process holds it anymore.
// One probe loop runs per file; all of them must succeed before the barrier
// opens. A zero timeout waits indefinitely. On timeout the returned error
// wraps ErrStillHeld.
func awaitWritable(ctx context.Context, paths []string, timeout time.Duration) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			// A file that does not exist cannot be held by anyone.
			log.Debugf("skipping wait for %s: %v", path, err)
			continue
		}

		path := path
		g.Go(func() error {
			return waitForWriteAccess(ctx, path, timeout)
		})
	}

	return g.Wait()
}

func waitForWriteAccess(ctx context.Context, path string, timeout time.Duration) error {
	log.Infof("waiting for write access to %s", path)

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = probeInitialInterval
	policy.MaxInterval = probeMaxInterval
	policy.MaxElapsedTime = timeout

	err := backoff.Retry(func() error {
		if probeWriteAccess(path) {
			return nil
		}
		return ErrStillHeld
	}, backoff.WithContext(policy, ctx))
	if err != nil {
		return fmt.Errorf("wait for write access to %s: %w", path, err)
	}

	log.Infof("write access to %s acquired", path)
	return nil
}

// probeWriteAccess reports whether path can currently be opened for writing.
// On platforms with mandatory sharing (Windows) this fails while the
// executable is running; elsewhere it is a best-effort permission probe.
func probeWriteAccess(path string) bool {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return false
	}
	if err := f.Close(); err != nil {
		log.Warnf("failed to close probe handle for %s: %v", path, err)
	}
	return true
}
