package scheduling

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Locker serializes the ConflictGuard's critical section per doctor. No
// lock ever spans two doctors. Implementations: the Redis locker for
// deployments, NewInProcessLocker for single-instance runs and tests.
type Locker interface {
	WithDoctorLock(ctx context.Context, doctorID uuid.UUID, fn func(ctx context.Context) error) error
}

type inProcessLocker struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

// NewInProcessLocker returns a keyed-mutex Locker. Only correct when a
// single process performs all writes.
func NewInProcessLocker() Locker {
	return &inProcessLocker{locks: make(map[uuid.UUID]*sync.Mutex)}
}

func (l *inProcessLocker) WithDoctorLock(ctx context.Context, doctorID uuid.UUID, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	m, ok := l.locks[doctorID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[doctorID] = m
	}
	l.mu.Unlock()

	m.Lock()
	defer m.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx)
}
