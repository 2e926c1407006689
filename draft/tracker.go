// Package draft tracks media uploaded by an editing session that no saved
// article references yet. Pending uploads are reconciled when the article is
// saved, deleted when the editor discards them, and swept once the session
// has been idle for too long.
package draft

import (
	"context"
	"time"
)

// Tracker records pending uploads per editing session. Implementations are
// safe for concurrent use.
type Tracker interface {
	// Add records url as pending for session and marks the session active.
	Add(ctx context.Context, session, url string) error
	// Remove forgets url and reports whether it was pending for session.
	Remove(ctx context.Context, session, url string) (bool, error)
	// Pending returns the pending uploads of session.
	Pending(ctx context.Context, session string) ([]string, error)
	// Clear forgets session and all its pending uploads.
	Clear(ctx context.Context, session string) error
	// Stale returns the sessions last active before cutoff.
	Stale(ctx context.Context, cutoff time.Time) ([]string, error)
}
