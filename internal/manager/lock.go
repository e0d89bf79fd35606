package manager

import (
	"context"
	"fmt"
	"sync"

	"github.com/cetra-finance/chamber/internal/pkg/apperrors"
)

// ChamberLocks grants one in-process writer per key. It never blocks:
// a held key is reported as busy so the caller can retry later.
type ChamberLocks struct {
	mu   sync.Mutex
	held map[string]uint64
	seq  uint64
}

func NewChamberLocks() *ChamberLocks {
	return &ChamberLocks{held: make(map[string]uint64)}
}

func (l *ChamberLocks) TryLock(ctx context.Context, key string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, busy := l.held[key]; busy {
		return nil, apperrors.New(apperrors.ErrChamberBusy, fmt.Sprintf("chamber %s has a step in progress", key), nil)
	}
	l.seq++
	token := l.seq
	l.held[key] = token

	return func() { l.release(key, token) }, nil
}

// release only drops the lock it was issued for, so a stale unlock is a no-op.
func (l *ChamberLocks) release(key string, token uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] == token {
		delete(l.held, key)
	}
}

// Held reports whether key is currently locked.
func (l *ChamberLocks) Held(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.held[key]
	return ok
}
