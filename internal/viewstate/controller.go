package viewstate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
)

var ErrAlreadyMounted = errors.New("view already mounted")

// LoadFunc fetches and transforms the data of one view
type LoadFunc[T any] func(ctx context.Context) (T, error)

type panicError struct {
	value interface{}
}

func (e *panicError) Error() string {
	return fmt.Sprintf("loader panicked: %v", e.value)
}

// Controller drives one view through Loading -> Ready | Error. Each
// controller is mounted at most once; a remount uses a fresh controller.
type Controller[T any] struct {
	name     string
	load     LoadFunc[T]
	describe func(error) string
	onChange func(State[T])

	current atomic.Pointer[State[T]]

	mu        sync.Mutex // serialises transitions against Unmount
	mounted   bool
	unmounted bool
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewController creates an unmounted controller. describe turns a load error
// into the message shown to the user; nil uses err.Error().
func NewController[T any](name string, load LoadFunc[T], describe func(error) string) *Controller[T] {
	if describe == nil {
		describe = func(err error) string { return err.Error() }
	}
	c := &Controller[T]{
		name:     name,
		load:     load,
		describe: describe,
		done:     make(chan struct{}),
	}
	c.current.Store(&State[T]{Phase: Loading, Updated: time.Now()})
	return c
}

// OnChange registers fn to observe every state the controller enters. It
// must be called before Mount.
func (c *Controller[T]) OnChange(fn func(State[T])) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = fn
}

func (c *Controller[T]) Name() string {
	return c.name
}

// Mount enters Loading and starts the loader in its own goroutine. ctx bounds
// the load.
func (c *Controller[T]) Mount(ctx context.Context) error {
	c.mu.Lock()
	if c.mounted {
		c.mu.Unlock()
		return ErrAlreadyMounted
	}
	c.mounted = true

	ctx, c.cancel = context.WithCancel(ctx)
	s := &State[T]{Phase: Loading, Updated: time.Now()}
	c.current.Store(s)
	c.notify(*s)
	c.mu.Unlock()

	log.WithField("view", c.name).Debug("View mounted")
	go c.run(ctx)
	return nil
}

// Unmount tears the view down. A load still in flight is cancelled and its
// result discarded.
func (c *Controller[T]) Unmount() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.unmounted {
		return
	}
	c.unmounted = true
	if c.cancel != nil {
		c.cancel()
	}
	log.WithField("view", c.name).Debug("View unmounted")
}

// State returns the current state (atomic read)
func (c *Controller[T]) State() State[T] {
	return *c.current.Load()
}

// Done is closed when the loader has returned
func (c *Controller[T]) Done() <-chan struct{} {
	return c.done
}

// Wait blocks until the loader has returned or ctx ends
func (c *Controller[T]) Wait(ctx context.Context) error {
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller[T]) run(ctx context.Context) {
	defer close(c.done)
	start := time.Now()

	data, err := c.invoke(ctx)
	if err == nil {
		c.transition(succeeded, data, "")
		return
	}

	msg := UnknownErrorMessage
	var pe *panicError
	if errors.As(err, &pe) {
		log.WithFields(log.Fields{"view": c.name, "panic": pe.value}).Error("View loader panicked")
	} else if d := c.describe(err); d != "" {
		msg = d
	}

	log.WithFields(log.Fields{
		"view":     c.name,
		"error":    err,
		"duration": time.Since(start).String(),
	}).Warn("View failed to load")

	var zero T
	c.transition(failed, zero, msg)
}

func (c *Controller[T]) invoke(ctx context.Context) (data T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r}
		}
	}()
	return c.load(ctx)
}

func (c *Controller[T]) transition(ev event, data T, msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.unmounted {
		log.WithField("view", c.name).Debug("Discarding result of unmounted view")
		return
	}

	from := c.current.Load().Phase
	to, ok := next(from, ev)
	if !ok {
		log.WithFields(log.Fields{"view": c.name, "phase": from.String()}).Warn("Rejected view transition")
		return
	}

	s := &State[T]{Phase: to, Updated: time.Now()}
	if to == Ready {
		s.Data = data
	} else {
		s.Message = msg
	}
	c.current.Store(s)
	c.notify(*s)

	log.WithFields(log.Fields{"view": c.name, "state": to.String()}).Info("View state changed")
}

func (c *Controller[T]) notify(s State[T]) {
	if c.onChange != nil {
		c.onChange(s)
	}
}
