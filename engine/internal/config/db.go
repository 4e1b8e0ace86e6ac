package config

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Schema for the single-row configuration table.
const schema = `
CREATE TABLE IF NOT EXISTS fontpatch_config (
	id             INTEGER PRIMARY KEY CHECK (id = 1),
	enabled        INTEGER NOT NULL DEFAULT 1,
	blacklist      TEXT NOT NULL DEFAULT '[]',
	font_cjk       TEXT NOT NULL DEFAULT '',
	font_code      TEXT NOT NULL DEFAULT '',
	unicode_ranges TEXT NOT NULL DEFAULT '[]',
	updated_at     INTEGER NOT NULL
);
`

// DBStore persists Config in SQLite. Writes are single-statement upserts,
// so they are atomic by construction. Watch detects external writers (the
// settings panel running in another process) via PRAGMA data_version.
type DBStore struct {
	db     *sql.DB
	logger *slog.Logger

	mu  sync.Mutex
	cfg Config
}

// OpenDB opens (and initialises) the configuration store at path. The
// caller must blank-import an SQLite driver registered as "sqlite":
//
//	import _ "modernc.org/sqlite"
func OpenDB(path string, logger *slog.Logger) (*DBStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("config: open %s: %w", path, err)
	}
	// PRAGMA data_version is per-connection; the pool must stay on one
	// connection or Watch compares counters from different connections.
	// Pinning also keeps the session pragmas below in effect.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("config: %s: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("config: init schema: %w", err)
	}

	s := &DBStore{db: db, logger: logger, cfg: Default()}
	if err := s.reload(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *DBStore) Snapshot() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.clone()
}

func (s *DBStore) Update(fn func(*Config)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.cfg.clone()
	fn(&next)
	next.applyDefaults()

	blacklist, _ := json.Marshal(next.Blacklist)
	ranges, _ := json.Marshal(next.UnicodeRanges)
	enabled := 0
	if next.Enabled {
		enabled = 1
	}

	_, err := s.db.Exec(`
		INSERT INTO fontpatch_config (id, enabled, blacklist, font_cjk, font_code, unicode_ranges, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			enabled = excluded.enabled,
			blacklist = excluded.blacklist,
			font_cjk = excluded.font_cjk,
			font_code = excluded.font_code,
			unicode_ranges = excluded.unicode_ranges,
			updated_at = excluded.updated_at
	`, enabled, string(blacklist), next.Font.CJK, next.Font.Code, string(ranges), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("config: save: %w", err)
	}

	s.cfg = next
	return nil
}

func (s *DBStore) reload() error {
	var (
		enabled               int
		blacklistJSON, ranges string
		cfg                   Config
	)
	err := s.db.QueryRow(`
		SELECT enabled, blacklist, font_cjk, font_code, unicode_ranges
		FROM fontpatch_config WHERE id = 1
	`).Scan(&enabled, &blacklistJSON, &cfg.Font.CJK, &cfg.Font.Code, &ranges)
	if err == sql.ErrNoRows {
		return nil // keep defaults
	}
	if err != nil {
		return fmt.Errorf("config: load: %w", err)
	}

	cfg.Enabled = enabled != 0
	json.Unmarshal([]byte(blacklistJSON), &cfg.Blacklist)
	json.Unmarshal([]byte(ranges), &cfg.UnicodeRanges)
	cfg.applyDefaults()

	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
	return nil
}

// Watch polls PRAGMA data_version, debounces, reloads the configuration
// and invokes onChange. It blocks until ctx is cancelled. onChange runs
// after the in-memory snapshot has been refreshed, so callers typically
// pass the engine's FullRescan.
func (s *DBStore) Watch(ctx context.Context, interval, debounce time.Duration, onChange func()) {
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}

	last, _ := s.dataVersion(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var pending *time.Timer
	var pendingC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			v, err := s.dataVersion(ctx)
			if err != nil {
				s.logger.Warn("config: data_version poll failed", "error", err)
				continue
			}
			if v == last {
				continue
			}
			last = v
			// Collapse bursts of writes into one reload.
			if pending == nil {
				pending = time.NewTimer(debounce)
				pendingC = pending.C
			} else {
				pending.Reset(debounce)
			}
		case <-pendingC:
			pending = nil
			pendingC = nil
			if err := s.reload(); err != nil {
				s.logger.Warn("config: reload failed", "error", err)
				continue
			}
			s.logger.Info("config: external change applied")
			onChange()
		}
	}
}

func (s *DBStore) dataVersion(ctx context.Context) (int64, error) {
	var v int64
	err := s.db.QueryRowContext(ctx, "PRAGMA data_version").Scan(&v)
	return v, err
}

func (s *DBStore) Close() error { return s.db.Close() }
