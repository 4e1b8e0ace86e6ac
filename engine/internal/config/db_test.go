package config

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

func TestDBStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fontpatch.db")

	s, err := OpenDB(path, nil)
	if err != nil {
		t.Fatal(err)
	}

	if got := s.Snapshot(); !got.Enabled {
		t.Error("fresh store: Enabled false, want default true")
	}

	err = s.Update(func(c *Config) {
		c.Enabled = false
		c.Blacklist = []string{"a.com", "b.com"}
		c.Font.Code = "Fira Code"
	})
	if err != nil {
		t.Fatal(err)
	}
	s.Close()

	s2, err := OpenDB(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()

	got := s2.Snapshot()
	if got.Enabled {
		t.Error("Enabled: got true, want false")
	}
	if len(got.Blacklist) != 2 || got.Blacklist[1] != "b.com" {
		t.Errorf("Blacklist: got %v", got.Blacklist)
	}
	if got.Font.Code != "Fira Code" {
		t.Errorf("Font.Code: got %q, want %q", got.Font.Code, "Fira Code")
	}
	if got.Font.CJK == "" {
		t.Error("Font.CJK lost its default")
	}
}

func TestDBStoreWatchSeesExternalWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fontpatch.db")

	watcher, err := OpenDB(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer watcher.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan struct{}, 1)
	go watcher.Watch(ctx, 5*time.Millisecond, 10*time.Millisecond, func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})

	// A second connection plays the settings panel in another process.
	writer, err := OpenDB(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer writer.Close()

	if err := writer.Update(func(c *Config) { c.Font.CJK = "LXGW WenKai" }); err != nil {
		t.Fatal(err)
	}

	select {
	case <-changed:
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not report the external write")
	}

	if got := watcher.Snapshot().Font.CJK; got != "LXGW WenKai" {
		t.Errorf("Font.CJK after reload: got %q, want %q", got, "LXGW WenKai")
	}
}
