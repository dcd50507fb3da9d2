package session

import (
	"context"
	"testing"
)

func TestManager_LockLifecycle(t *testing.T) {
	mgr := NewManager()
	ctx := context.Background()
	count := 10000

	for i := 0; i < count; i++ {
		_ = mgr.WithLock(ctx, int64(i), 1, func(context.Context) error { return nil })
	}

	lockCount := len(mgr.locks)
	t.Logf("Pairs locked: %d, Locks Leaked: %d", count, lockCount)

	if lockCount != 0 {
		t.Errorf("Memory Leak Detected: %d locks remaining in memory after release", lockCount)
	}
}
