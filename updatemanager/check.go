package updatemanager

import (
	"context"
	"fmt"
	"sort"

	goversion "github.com/hashicorp/go-version"
)

// CheckResult is the outcome of a version query.
type CheckResult struct {
	// Versions are all versions the resolver reported, ascending.
	Versions []*goversion.Version
	// LastVersion is the highest discovered version, nil when the
	// resolver reported none.
	LastVersion *goversion.Version
	// CanUpdate is true iff LastVersion exists and is strictly greater
	// than the host's own version.
	CanUpdate bool
}

// CheckForUpdates queries the resolver for all available versions and
// compares the highest one against the host version. Resolver failures are
// logged and re-raised; cancellation is re-raised without logging.
func (m *Manager) CheckForUpdates(ctx context.Context) (*CheckResult, error) {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}

	versions, err := m.resolver.Versions(ctx)
	if err != nil {
		err = fmt.Errorf("resolve versions: %w", err)
		logFailure("update check", err)
		return nil, err
	}

	sorted := make([]*goversion.Version, len(versions))
	copy(sorted, versions)
	sort.Sort(goversion.Collection(sorted))

	result := &CheckResult{Versions: sorted}
	if len(sorted) > 0 {
		result.LastVersion = sorted[len(sorted)-1]
		result.CanUpdate = result.LastVersion.GreaterThan(m.meta.Version)
	}
	return result, nil
}
