package scene

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/piosteiner/adenai-map/internal/mapview"
)

// ErrLoopClosed is returned when posting to a loop that has stopped.
var ErrLoopClosed = errors.New("scene loop closed")

const defaultQueueSize = 64

// Loop runs posted tasks one at a time on a single goroutine. The map
// view, its fans and the surface are only touched from inside the loop.
type Loop struct {
	tasks     chan func()
	done      chan struct{}
	closeOnce sync.Once
	logger    *zap.Logger
}

// NewLoop creates a loop. Tasks may be posted before Run starts.
func NewLoop(logger *zap.Logger) *Loop {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loop{
		tasks:  make(chan func(), defaultQueueSize),
		done:   make(chan struct{}),
		logger: logger.Named("scene_loop"),
	}
}

// Run executes tasks until ctx is cancelled. Tasks still queued at that
// point are dropped.
func (l *Loop) Run(ctx context.Context) error {
	defer l.closeOnce.Do(func() { close(l.done) })
	l.logger.Info("scene loop started")

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("scene loop stopped")
			return nil
		case fn := <-l.tasks:
			l.run(fn)
		}
	}
}

func (l *Loop) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("scene task panicked", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()
	fn()
}

// Post queues fn without waiting for it to run. It must not be called
// from inside the loop while the queue is full.
func (l *Loop) Post(fn func()) error {
	select {
	case <-l.done:
		return ErrLoopClosed
	default:
	}

	select {
	case l.tasks <- fn:
		return nil
	case <-l.done:
		return ErrLoopClosed
	}
}

// Do runs fn on the loop and waits for its result.
func (l *Loop) Do(ctx context.Context, fn func() error) error {
	result := make(chan error, 1)
	task := func() {
		if ctx.Err() != nil {
			result <- ctx.Err()
			return
		}
		var err error
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("scene task panicked: %v", r)
			}
			result <- err
		}()
		err = fn()
	}

	select {
	case l.tasks <- task:
	case <-l.done:
		return ErrLoopClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-result:
		return err
	case <-l.done:
		// The task may have run just before the loop stopped.
		select {
		case err := <-result:
			return err
		default:
			return ErrLoopClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Call runs fn on the loop and hands its value back. When Do gives up
// early the zero value is returned; fn's writes stay on the loop.
func Call[T any](ctx context.Context, l *Loop, fn func() (T, error)) (T, error) {
	values := make(chan T, 1)
	err := l.Do(ctx, func() error {
		v, err := fn()
		if err != nil {
			return err
		}
		values <- v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return <-values, nil
}

// Done is closed once Run has returned.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// LoopClock is a mapview.Clock whose callbacks run on the loop.
type LoopClock struct {
	loop *Loop
}

// NewLoopClock creates a clock posting to loop
func NewLoopClock(loop *Loop) *LoopClock {
	return &LoopClock{loop: loop}
}

// AfterFunc implements mapview.Clock. A callback that fires after the loop
// has stopped is dropped.
func (c *LoopClock) AfterFunc(d time.Duration, f func()) mapview.Timer {
	return time.AfterFunc(d, func() {
		if err := c.loop.Post(f); err != nil {
			c.loop.logger.Debug("dropped timer callback", zap.Error(err))
		}
	})
}
