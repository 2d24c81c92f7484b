package entitylock

import (
	"context"
	"time"
)

// Do runs fn while owner holds the lock for id, releasing it when fn
// returns or panics. fn's error is returned as is; a release error is
// returned only when fn succeeded.
func (l *Locker[K]) Do(owner Owner, id K, fn func() error) (err error) {
	if err := l.Lock(owner, id); err != nil {
		return err
	}
	defer func() {
		if uerr := l.Unlock(owner, id); err == nil {
			err = uerr
		}
	}()
	return fn()
}

// DoTimeout is Do with the acquisition bounded as in LockTimeout. fn does
// not run when the lock is not obtained.
func (l *Locker[K]) DoTimeout(ctx context.Context, owner Owner, id K, timeout time.Duration, fn func(context.Context) error) (err error) {
	if err := l.LockTimeout(ctx, owner, id, timeout); err != nil {
		return err
	}
	defer func() {
		if uerr := l.Unlock(owner, id); err == nil {
			err = uerr
		}
	}()
	return fn(ctx)
}

// DoGlobal runs fn while owner holds global mode.
func (l *Locker[K]) DoGlobal(owner Owner, fn func() error) (err error) {
	if err := l.AcquireGlobal(owner); err != nil {
		return err
	}
	defer func() {
		if rerr := l.ReleaseGlobal(owner); err == nil {
			err = rerr
		}
	}()
	return fn()
}
