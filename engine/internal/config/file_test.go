package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestOpenFileMissingYieldsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fontpatch.yaml")
	s, err := OpenFile(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	got := s.Snapshot()
	want := Default()
	if !got.Enabled || got.Font.CJK != want.Font.CJK {
		t.Errorf("snapshot: got %+v, want defaults", got)
	}
	// A missing file must not be created by opening.
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("OpenFile created the file")
	}
}

func TestFileStoreUpdatePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fontpatch.yaml")
	s, err := OpenFile(path)
	if err != nil {
		t.Fatal(err)
	}

	err = s.Update(func(c *Config) {
		c.Enabled = false
		c.Blacklist = []string{"example.com"}
		c.Font.CJK = "Source Han Sans"
	})
	if err != nil {
		t.Fatal(err)
	}
	s.Close()

	// Reopen and verify the round trip.
	s2, err := OpenFile(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()

	got := s2.Snapshot()
	if got.Enabled {
		t.Error("Enabled: got true, want false")
	}
	if len(got.Blacklist) != 1 || got.Blacklist[0] != "example.com" {
		t.Errorf("Blacklist: got %v", got.Blacklist)
	}
	if got.Font.CJK != "Source Han Sans" {
		t.Errorf("Font.CJK: got %q, want %q", got.Font.CJK, "Source Han Sans")
	}
	// Defaults re-applied for fields the update left empty.
	if got.Font.Code == "" {
		t.Error("Font.Code lost its default")
	}
}

func TestFileStoreUpdateLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenFile(filepath.Join(dir, "fontpatch.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	for i := 0; i < 3; i++ {
		if err := s.Update(func(c *Config) { c.Enabled = i%2 == 0 }); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("directory entries: got %v, want only fontpatch.yaml", names)
	}
}
