package session

import (
	"context"
	"sync"
)

// Attempt is the outcome of one Connect call. It settles exactly once:
// the first terminal event wins and later events are ignored.
type Attempt struct {
	once sync.Once
	done chan struct{}
	err  error
}

func newAttempt() *Attempt {
	return &Attempt{done: make(chan struct{})}
}

func settledAttempt(err error) *Attempt {
	a := newAttempt()
	a.settle(err)
	return a
}

// settle records err and releases waiters. It reports whether this call won.
func (a *Attempt) settle(err error) bool {
	won := false
	a.once.Do(func() {
		a.err = err
		close(a.done)
		won = true
	})
	return won
}

// Done is closed once the attempt has settled.
func (a *Attempt) Done() <-chan struct{} {
	return a.done
}

// settled reports whether the attempt has an outcome.
func (a *Attempt) settled() bool {
	select {
	case <-a.done:
		return true
	default:
		return false
	}
}

// Err returns the settlement error. It is nil while the attempt is pending.
func (a *Attempt) Err() error {
	select {
	case <-a.done:
		return a.err
	default:
		return nil
	}
}

// Wait blocks until the attempt settles or ctx is done.
func (a *Attempt) Wait(ctx context.Context) error {
	select {
	case <-a.done:
		return a.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
