package trust

import (
	"context"
	"errors"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/semaphore"
)

// DefaultLockTimeout bounds how long Store operations wait for the lock.
const DefaultLockTimeout = 30 * time.Second

const (
	maxReaders     = 64
	lockRetryDelay = 25 * time.Millisecond
)

// rwLock admits many readers or one writer. Within the process this is a weighted
// semaphore; across processes an advisory flock on a sidecar file is held too.
type rwLock struct {
	sem     *semaphore.Weighted
	path    string
	timeout time.Duration
}

func newRWLock(path string, timeout time.Duration) *rwLock {
	return &rwLock{
		sem:     semaphore.NewWeighted(maxReaders),
		path:    path,
		timeout: timeout,
	}
}

func (l *rwLock) rlock(ctx context.Context) (func(), error) {
	return l.acquire(ctx, 1, func(ctx context.Context, f *flock.Flock) (bool, error) {
		return f.TryRLockContext(ctx, lockRetryDelay)
	})
}

func (l *rwLock) lock(ctx context.Context) (func(), error) {
	return l.acquire(ctx, maxReaders, func(ctx context.Context, f *flock.Flock) (bool, error) {
		return f.TryLockContext(ctx, lockRetryDelay)
	})
}

func (l *rwLock) acquire(ctx context.Context, weight int64, take func(context.Context, *flock.Flock) (bool, error)) (func(), error) {
	waitCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	if err := l.sem.Acquire(waitCtx, weight); err != nil {
		return nil, lockError(ctx, err)
	}

	// A fresh handle per acquisition gives each holder its own open file
	// description, so shared locks from concurrent readers stay independent.
	f := flock.New(l.path)
	ok, err := take(waitCtx, f)
	if err != nil || !ok {
		l.sem.Release(weight)
		if err == nil {
			err = context.DeadlineExceeded
		}
		return nil, lockError(ctx, err)
	}

	return func() {
		_ = f.Unlock()
		l.sem.Release(weight)
	}, nil
}

func lockError(parent context.Context, err error) error {
	if parent.Err() != nil {
		return parent.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrLockTimeout
	}
	return ErrStoreIO.MsgErr("failed to lock trust store", err)
}
