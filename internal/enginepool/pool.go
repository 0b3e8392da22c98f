// Package enginepool implements the Engine Pool (C3): a bounded set of
// UCI engine drivers shared fairly across concurrent analyzer tasks.
package enginepool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"chess-backend/pkg/uci"

	"github.com/sirupsen/logrus"
)

// Pool holds N uci.Engine drivers behind a buffered channel, which gives
// fair FIFO dispatch for free: Go hands waiters the channel's oldest
// queued item, the same guarantee §4.2 asks for.
type Pool struct {
	binaryPath string
	size       int
	setupOpts  map[string]string

	slots chan *uci.Engine

	mutex  sync.Mutex
	closed bool
}

// New spawns size drivers against binaryPath and applies setupOpts (e.g.
// {"Threads": "1", "Hash": "64"}) to each before returning.
func New(binaryPath string, size int, setupOpts map[string]string) (*Pool, error) {
	if size <= 0 {
		size = 1
	}
	p := &Pool{
		binaryPath: binaryPath,
		size:       size,
		setupOpts:  setupOpts,
		slots:      make(chan *uci.Engine, size),
	}

	for i := 0; i < size; i++ {
		eng, err := p.spawn()
		if err != nil {
			p.Shutdown(context.Background())
			return nil, fmt.Errorf("engine pool: failed to start driver %d/%d: %w", i+1, size, err)
		}
		p.slots <- eng
	}

	logrus.Infof("engine pool: started %d driver(s) against %s", size, binaryPath)
	return p, nil
}

func (p *Pool) spawn() (*uci.Engine, error) {
	eng, err := uci.NewEngine(p.binaryPath)
	if err != nil {
		return nil, err
	}
	for name, value := range p.setupOpts {
		if err := eng.SetOption(name, value); err != nil {
			logrus.Warnf("engine pool: setoption %s=%s failed: %v", name, value, err)
		}
	}
	return eng, nil
}

// WithEngine acquires a driver, invokes fn, and returns the driver to
// the pool — replacing it transparently first if fn's execution left it
// broken. If ctx is cancelled while waiting for a slot, the wait is
// abandoned and ctx.Err() is returned without ever calling fn.
func (p *Pool) WithEngine(ctx context.Context, fn func(*uci.Engine) error) error {
	var eng *uci.Engine
	select {
	case eng = <-p.slots:
	case <-ctx.Done():
		return ctx.Err()
	}

	err := func() (callErr error) {
		defer func() {
			if r := recover(); r != nil {
				callErr = fmt.Errorf("engine pool: panic during engine use: %v", r)
			}
		}()
		return fn(eng)
	}()

	if ctx.Err() != nil && err == nil {
		// Caller aborted while we held the driver: best-effort stop,
		// return it to the pool rather than discarding it.
		_ = eng.Stop()
	}

	p.release(eng)
	return err
}

// release returns eng to the pool, replacing it with a freshly spawned
// driver if it has transitioned to broken.
func (p *Pool) release(eng *uci.Engine) {
	p.mutex.Lock()
	closed := p.closed
	p.mutex.Unlock()
	if closed {
		_ = eng.Close()
		return
	}

	if eng.IsBroken() {
		logrus.Warn("engine pool: replacing broken driver")
		replacement, err := p.spawn()
		if err != nil {
			logrus.Errorf("engine pool: failed to respawn driver: %v", err)
			// Put the broken one back rather than shrinking the pool
			// permanently; the next acquirer will hit the same error
			// and trigger another respawn attempt.
			p.slots <- eng
			return
		}
		p.slots <- replacement
		return
	}

	p.slots <- eng
}

// Shutdown sends termination to every driver, waiting up to grace for
// clean exits before the drivers' own Close() escalates to a kill.
func (p *Pool) Shutdown(ctx context.Context) {
	p.mutex.Lock()
	if p.closed {
		p.mutex.Unlock()
		return
	}
	p.closed = true
	p.mutex.Unlock()

	deadline := time.Now().Add(5 * time.Second)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	for i := 0; i < p.size; i++ {
		select {
		case eng := <-p.slots:
			_ = eng.Close()
		case <-time.After(time.Until(deadline)):
			logrus.Warn("engine pool: shutdown grace period exceeded, remaining drivers left running")
			return
		}
	}
	logrus.Info("engine pool: shutdown complete")
}

// Size returns the configured pool size.
func (p *Pool) Size() int { return p.size }

// InUse returns how many drivers are currently checked out.
func (p *Pool) InUse() int { return p.size - len(p.slots) }
