package studio

import (
	"context"
	"fmt"
	"sync"

	"github.com/timmy/memegenie/internal/domain"
)

// Fixed notices shown when an operation fails.
const (
	NoticeSuggest = "The Genie's funny bone is broken. Try again!"
	NoticeEdit    = "The cosmic energy failed. Try a different edit."
	NoticeExport  = "Could not render the image. Try another template."
)

// Status texts shown while an operation runs.
const (
	StatusSuggest      = "MemeGenie is channeling pure humor..."
	StatusEditTemplate = "Manifesting: %s..."
	StatusExport       = "Exporting the laughter..."
)

// Lifecycle is the observable controller state.
type Lifecycle struct {
	Busy       bool
	StatusText string
	Notice     string
}

// Flight is one admitted operation.
type Flight struct {
	done chan struct{}
	err  error
}

// Wait blocks until the operation finishes or ctx is done. It returns the
// operation's error; giving up on ctx does not stop the operation.
func (f *Flight) Wait(ctx context.Context) error {
	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed when the operation finishes.
func (f *Flight) Done() <-chan struct{} { return f.done }

// Controller admits one operation at a time. It moves Idle -> Busy on
// admission and back to Idle when the operation returns, recording the
// operation's notice if it failed.
type Controller struct {
	mu      sync.Mutex
	current *Flight
	status  string
	notice  string
}

// NewController returns an idle controller.
func NewController() *Controller {
	return &Controller{}
}

func (c *Controller) acquire(status string) (*Flight, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != nil {
		return nil, domain.ErrBusy
	}
	c.current = &Flight{done: make(chan struct{})}
	c.status = status
	c.notice = ""
	return c.current, nil
}

func (c *Controller) release(f *Flight, err error, notice string) {
	c.mu.Lock()
	f.err = err
	if err != nil {
		c.notice = notice
	}
	c.current = nil
	c.status = ""
	c.mu.Unlock()

	close(f.done)
}

// Invoke admits op and runs it in the background on a context detached from
// ctx's cancellation.
// Parameters:
//   - ctx: caller context; its values (logger fields) are kept, its cancellation is not.
//   - status: status text shown while busy.
//   - notice: notice recorded if op fails.
//   - op: the operation.
//
// Returns:
//   - *Flight: handle to wait on.
//   - error: domain.ErrBusy if another operation is in flight.
func (c *Controller) Invoke(ctx context.Context, status, notice string, op func(context.Context) error) (*Flight, error) {
	f, err := c.acquire(status)
	if err != nil {
		return nil, err
	}

	opCtx := context.WithoutCancel(ctx)
	go func() {
		var opErr error
		defer func() {
			if r := recover(); r != nil {
				opErr = fmt.Errorf("operation panicked: %v", r)
			}
			c.release(f, opErr, notice)
		}()
		opErr = op(opCtx)
	}()
	return f, nil
}

// Run admits op and runs it on the calling goroutine. A panic in op is
// returned as an error and records notice, as with Invoke.
func (c *Controller) Run(ctx context.Context, status, notice string, op func(context.Context) error) (opErr error) {
	f, err := c.acquire(status)
	if err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			opErr = fmt.Errorf("operation panicked: %v", r)
		}
		c.release(f, opErr, notice)
	}()
	return op(context.WithoutCancel(ctx))
}

// Wait blocks until the in-flight operation, if any, finishes.
func (c *Controller) Wait(ctx context.Context) error {
	c.mu.Lock()
	f := c.current
	c.mu.Unlock()

	if f == nil {
		return nil
	}
	return f.Wait(ctx)
}

// State returns the current lifecycle state.
func (c *Controller) State() Lifecycle {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Lifecycle{
		Busy:       c.current != nil,
		StatusText: c.status,
		Notice:     c.notice,
	}
}

// Busy reports whether an operation is in flight.
func (c *Controller) Busy() bool {
	return c.State().Busy
}
