package lease

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// NewLocalLocker returns an in-process Locker for single-instance deployments
// without Redis.
func NewLocalLocker() Locker {
	return &localLocker{held: make(map[uuid.UUID]string)}
}

type localLocker struct {
	mu   sync.Mutex
	held map[uuid.UUID]string
}

func (l *localLocker) Acquire(_ context.Context, campaignID uuid.UUID, _ time.Duration) (Lease, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.held[campaignID]; ok {
		return nil, ErrNotHeld
	}
	token, err := newToken()
	if err != nil {
		return nil, err
	}
	l.held[campaignID] = token
	return &localLease{locker: l, id: campaignID, token: token}, nil
}

type localLease struct {
	locker *localLocker
	id     uuid.UUID
	token  string
}

func (l *localLease) Refresh(context.Context, time.Duration) error {
	l.locker.mu.Lock()
	defer l.locker.mu.Unlock()

	if l.locker.held[l.id] != l.token {
		return ErrNotHeld
	}
	return nil
}

func (l *localLease) Release(context.Context) error {
	l.locker.mu.Lock()
	defer l.locker.mu.Unlock()

	if l.locker.held[l.id] == l.token {
		delete(l.locker.held, l.id)
	}
	return nil
}
