package engine

import (
	"context"
	"io"
	"log/slog"

	"github.com/kagemori/fontpatch/engine/event"
	"github.com/kagemori/fontpatch/engine/internal/sink"
)

// Sink is the diagnostic output interface for engine events.
type Sink = sink.Sink

// NewStdoutSink creates a stdout JSON-lines sink.
func NewStdoutSink(w io.Writer) Sink {
	return sink.NewStdout(w)
}

// NewWebhookSink creates a webhook POST sink with retry.
func NewWebhookSink(url string, logger *slog.Logger) Sink {
	return sink.NewWebhook(url, sink.WithWebhookLogger(logger))
}

// NewCallbackSink creates an in-process callback sink — zero
// serialisation for embedding the engine in a larger binary.
func NewCallbackSink(fn func(ctx context.Context, ev event.Event) error) Sink {
	return sink.NewCallback(fn)
}
