// Package panel is the settings surface for the font-patch engine: a
// small HTTP API over the configuration store. Every mutation persists
// through the store and then triggers a full rescan, so edits take
// effect immediately. The panel never touches engine internals.
package panel

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kagemori/fontpatch/engine"
)

// Panel serves the settings API for one engine instance.
type Panel struct {
	eng    *engine.Engine
	store  engine.Store
	logger *slog.Logger
}

// New creates a Panel over the given engine and its writable store.
func New(eng *engine.Engine, store engine.Store, logger *slog.Logger) *Panel {
	if logger == nil {
		logger = slog.Default()
	}
	return &Panel{eng: eng, store: store, logger: logger}
}

// Router builds the chi router for the panel API.
func (p *Panel) Router() chi.Router {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/api/status", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, p.eng.Status())
	})

	r.Get("/api/config", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, p.store.Snapshot())
	})

	r.Put("/api/config", func(w http.ResponseWriter, r *http.Request) {
		var next engine.Config
		if err := json.NewDecoder(r.Body).Decode(&next); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		err := p.store.Update(func(c *engine.Config) { *c = next })
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		p.eng.FullRescan()
		writeJSON(w, http.StatusOK, p.store.Snapshot())
	})

	r.Post("/api/toggle", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Enabled bool `json:"enabled"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		err := p.store.Update(func(c *engine.Config) { c.Enabled = req.Enabled })
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		p.eng.FullRescan()
		writeJSON(w, http.StatusOK, map[string]bool{"enabled": req.Enabled})
	})

	r.Post("/api/rescan", func(w http.ResponseWriter, _ *http.Request) {
		p.eng.FullRescan()
		writeJSON(w, http.StatusOK, map[string]string{"status": "rescanned"})
	})

	return r
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
