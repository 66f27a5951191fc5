package core

import "context"

// Context carries cancellation for a Session. A caller cancels the embedded
// context.Context from another goroutine, and family sessions check it at
// the start of Foreach and at the top of each Foreach loop iteration. It is
// not checked before each individual command: a cancellation takes effect
// at the next loop iteration.
type Context struct {
	Ctx context.Context
}

// NewContext wraps a context.Context. A nil ctx is treated as
// context.Background().
func NewContext(ctx context.Context) *Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Context{Ctx: ctx}
}

// Cancelled reports whether the context has been cancelled.
func (c *Context) Cancelled() bool {
	if c == nil || c.Ctx == nil {
		return false
	}
	select {
	case <-c.Ctx.Done():
		return true
	default:
		return false
	}
}

// CheckCancelled returns StatusCancelled if the context has been cancelled,
// StatusSuccess otherwise. Family sessions call this at the start of
// Foreach and of every Foreach loop iteration, not before each command.
func (c *Context) CheckCancelled() Status {
	if c.Cancelled() {
		return StatusCancelled
	}
	return StatusSuccess
}
