package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/kagemori/fontpatch/engine/event"
)

func TestStdoutWritesJSONLines(t *testing.T) {
	var buf bytes.Buffer
	s := NewStdout(&buf)

	ev := event.New(event.TypeActivate)
	ev.Scope = "scope-1"
	if err := s.Send(context.Background(), ev); err != nil {
		t.Fatal(err)
	}
	if err := s.Send(context.Background(), event.New(event.TypeSweepDone)); err != nil {
		t.Fatal(err)
	}

	dec := json.NewDecoder(&buf)
	var first event.Event
	if err := dec.Decode(&first); err != nil {
		t.Fatal(err)
	}
	if first.Type != event.TypeActivate || first.Scope != "scope-1" {
		t.Errorf("first line: got %+v", first)
	}
	var second event.Event
	if err := dec.Decode(&second); err != nil {
		t.Fatal(err)
	}
	if second.Type != event.TypeSweepDone {
		t.Errorf("second line type: got %q", second.Type)
	}
}

func TestRouterFansOutPastFailures(t *testing.T) {
	wantErr := errors.New("sink down")
	var delivered atomic.Int32

	failing := NewCallback(func(context.Context, event.Event) error { return wantErr })
	counting := NewCallback(func(context.Context, event.Event) error {
		delivered.Add(1)
		return nil
	})

	r := NewRouter(slog.New(slog.NewTextHandler(io.Discard, nil)), failing, counting)
	err := r.Send(context.Background(), event.New(event.TypeActivate))

	if !errors.Is(err, wantErr) {
		t.Errorf("router error: got %v, want %v", err, wantErr)
	}
	if delivered.Load() != 1 {
		t.Error("failure in one sink blocked delivery to the next")
	}
}

func TestWebhookRetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		var ev event.Event
		if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	w := NewWebhook(srv.URL,
		WithWebhookRetries(2),
		WithWebhookLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	if err := w.Send(context.Background(), event.New(event.TypePatchBatch)); err != nil {
		t.Fatalf("send: %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("requests: got %d, want 2", got)
	}
}

func TestWebhookExhaustsRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	w := NewWebhook(srv.URL,
		WithWebhookRetries(0),
		WithWebhookLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	if err := w.Send(context.Background(), event.New(event.TypeError)); err == nil {
		t.Error("send succeeded against an always-failing endpoint")
	}
}
