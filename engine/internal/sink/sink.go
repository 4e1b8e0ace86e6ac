// Package sink defines the diagnostic output backends for the engine.
// Implementations deliver events to stdout, a webhook, or an in-process
// callback; the Router fans out to several at once.
package sink

import (
	"context"

	"github.com/kagemori/fontpatch/engine/event"
)

// Sink receives engine diagnostic events.
type Sink interface {
	Send(ctx context.Context, ev event.Event) error
	Close() error
}
