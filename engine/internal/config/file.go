package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// FileStore persists Config as a YAML file. Saves are atomic: a temp file
// in the same directory is renamed over the target.
type FileStore struct {
	path string

	mu  sync.Mutex
	cfg Config
}

// OpenFile loads the configuration at path. A missing file yields the
// defaults without creating anything; the first Update writes it.
func OpenFile(path string) (*FileStore, error) {
	s := &FileStore{path: path, cfg: Default()}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.applyDefaults()
	s.cfg = cfg
	return s, nil
}

func (s *FileStore) Snapshot() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.clone()
}

func (s *FileStore) Update(fn func(*Config)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.cfg.clone()
	fn(&next)
	next.applyDefaults()

	if err := s.write(next); err != nil {
		return err
	}
	s.cfg = next
	return nil
}

func (s *FileStore) write(cfg Config) error {
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".fontpatch-*.yaml")
	if err != nil {
		return fmt.Errorf("config: temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("config: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("config: close temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("config: rename: %w", err)
	}
	return nil
}

func (s *FileStore) Close() error { return nil }
