package store

import (
	"sync/atomic"
	"time"
)

var lastStamp int64

// nextStamp returns a strictly increasing UTC timestamp. Two mutations landing
// in the same wall-clock tick still get distinct, ordered updatedAt values.
func nextStamp() time.Time {
	for {
		now := time.Now().UTC().UnixNano()
		last := atomic.LoadInt64(&lastStamp)
		if now <= last {
			now = last + 1
		}
		if atomic.CompareAndSwapInt64(&lastStamp, last, now) {
			return time.Unix(0, now).UTC()
		}
	}
}
