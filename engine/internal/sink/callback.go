package sink

import (
	"context"

	"github.com/kagemori/fontpatch/engine/event"
)

// EventFunc is called for each event (in-process, zero serialisation).
type EventFunc func(ctx context.Context, ev event.Event) error

// Callback delivers events via a Go function call. This is the in-process
// path for embedding the engine in a larger binary.
type Callback struct {
	fn EventFunc
}

// NewCallback creates a Callback sink. A nil handler discards events.
func NewCallback(fn EventFunc) *Callback { return &Callback{fn: fn} }

func (c *Callback) Send(ctx context.Context, ev event.Event) error {
	if c.fn != nil {
		return c.fn(ctx, ev)
	}
	return nil
}

func (c *Callback) Close() error { return nil }
