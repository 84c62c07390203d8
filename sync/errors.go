package sync

import (
	"fmt"

	"tracker-api/domain"
)

// SyncError reports a failed remote persistence call. By the time one is
// produced the local mutation has already applied; the store is deliberately
// not rolled back, so callers decide whether to retry or refresh.
type SyncError struct {
	Op         string
	Collection domain.Collection
	EntityID   string
	Err        error
}

func (e *SyncError) Error() string {
	if e.Collection == "" {
		return fmt.Sprintf("sync %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("sync %s %s/%s: %v", e.Op, e.Collection, e.EntityID, e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }
