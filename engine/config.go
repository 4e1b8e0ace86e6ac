package engine

import (
	"log/slog"

	"github.com/kagemori/fontpatch/engine/internal/config"
)

// Config is the engine configuration. Re-exported from internal.
type Config = config.Config

// FontConfig names the injected fonts.
type FontConfig = config.FontConfig

// Store is a configuration persistence backend.
type Store = config.Store

// FileStore is the YAML-file configuration store.
type FileStore = config.FileStore

// DBStore is the SQLite configuration store.
type DBStore = config.DBStore

// DefaultConfig returns the configuration used when nothing is persisted.
func DefaultConfig() Config { return config.Default() }

// OpenConfigFile opens the YAML-file configuration store at path.
func OpenConfigFile(path string) (*config.FileStore, error) {
	return config.OpenFile(path)
}

// OpenConfigDB opens the SQLite configuration store at path. The caller
// must blank-import an SQLite driver registered as "sqlite".
func OpenConfigDB(path string, logger *slog.Logger) (*config.DBStore, error) {
	return config.OpenDB(path, logger)
}
