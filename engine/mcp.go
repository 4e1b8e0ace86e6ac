package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// RegisterMCP registers the engine's tools on an MCP server. The store is
// the writable side of the engine's configuration; every mutation is
// followed by a full rescan so the edit takes effect immediately.
func (e *Engine) RegisterMCP(srv *mcp.Server, store Store) {
	e.registerStatusTool(srv)
	e.registerToggleTool(srv, store)
	e.registerRescanTool(srv)
	e.registerBlacklistTool(srv, store)
	e.registerFontsTool(srv, store)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

// addTool wires a typed endpoint into the MCP server: decode arguments,
// run, marshal the response as text content. Tool-level failures are
// reported through the result, never as transport errors.
func addTool(srv *mcp.Server, tool *mcp.Tool, decode func(json.RawMessage) (any, error), endpoint func(ctx context.Context, req any) (any, error)) {
	srv.AddTool(tool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		decoded, err := decode(req.Params.Arguments)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(fmt.Errorf("invalid arguments: %w", err))
			return &res, nil
		}

		resp, err := endpoint(ctx, decoded)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(errors.New(err.Error()))
			return &res, nil
		}

		data, err := json.Marshal(resp)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(fmt.Errorf("marshal: %w", err))
			return &res, nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
		}, nil
	})
}

func noArgs(json.RawMessage) (any, error) { return nil, nil }

// --- status ---

func (e *Engine) registerStatusTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "fontpatch_status",
		Description: "Report the font-patch engine state: gate, scopes, queue depth, patched elements, frame coverage.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}
	addTool(srv, tool, noArgs, func(_ context.Context, _ any) (any, error) {
		return e.Status(), nil
	})
}

// --- toggle ---

type toggleReq struct {
	Enabled bool `json:"enabled"`
}

func (e *Engine) registerToggleTool(srv *mcp.Server, store Store) {
	tool := &mcp.Tool{
		Name:        "fontpatch_toggle",
		Description: "Enable or disable font patching and apply immediately.",
		InputSchema: inputSchema(map[string]any{
			"enabled": map[string]any{"type": "boolean"},
		}, []string{"enabled"}),
	}
	addTool(srv, tool,
		func(raw json.RawMessage) (any, error) {
			var r toggleReq
			if err := json.Unmarshal(raw, &r); err != nil {
				return nil, err
			}
			return &r, nil
		},
		func(_ context.Context, req any) (any, error) {
			r := req.(*toggleReq)
			if err := store.Update(func(c *Config) { c.Enabled = r.Enabled }); err != nil {
				return nil, err
			}
			e.FullRescan()
			return map[string]bool{"enabled": r.Enabled}, nil
		})
}

// --- rescan ---

func (e *Engine) registerRescanTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "fontpatch_rescan",
		Description: "Deactivate and reactivate the whole document tree under the current configuration.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}
	addTool(srv, tool, noArgs, func(_ context.Context, _ any) (any, error) {
		e.FullRescan()
		return map[string]string{"status": "rescanned"}, nil
	})
}

// --- blacklist ---

type blacklistReq struct {
	Host   string `json:"host"`
	Remove bool   `json:"remove"`
}

func (e *Engine) registerBlacklistTool(srv *mcp.Server, store Store) {
	tool := &mcp.Tool{
		Name:        "fontpatch_blacklist",
		Description: "Add or remove a hostname on the site blacklist and apply immediately.",
		InputSchema: inputSchema(map[string]any{
			"host":   map[string]any{"type": "string"},
			"remove": map[string]any{"type": "boolean"},
		}, []string{"host"}),
	}
	addTool(srv, tool,
		func(raw json.RawMessage) (any, error) {
			var r blacklistReq
			if err := json.Unmarshal(raw, &r); err != nil {
				return nil, err
			}
			return &r, nil
		},
		func(_ context.Context, req any) (any, error) {
			r := req.(*blacklistReq)
			err := store.Update(func(c *Config) {
				out := c.Blacklist[:0]
				for _, h := range c.Blacklist {
					if h != r.Host {
						out = append(out, h)
					}
				}
				c.Blacklist = out
				if !r.Remove {
					c.Blacklist = append(c.Blacklist, r.Host)
				}
			})
			if err != nil {
				return nil, err
			}
			e.FullRescan()
			return map[string]any{"host": r.Host, "removed": r.Remove}, nil
		})
}

// --- fonts ---

type fontsReq struct {
	CJK  string `json:"cjk"`
	Code string `json:"code"`
}

func (e *Engine) registerFontsTool(srv *mcp.Server, store Store) {
	tool := &mcp.Tool{
		Name:        "fontpatch_fonts",
		Description: "Set the CJK and code fonts and apply immediately. Empty fields are left unchanged.",
		InputSchema: inputSchema(map[string]any{
			"cjk":  map[string]any{"type": "string"},
			"code": map[string]any{"type": "string"},
		}, nil),
	}
	addTool(srv, tool,
		func(raw json.RawMessage) (any, error) {
			var r fontsReq
			if err := json.Unmarshal(raw, &r); err != nil {
				return nil, err
			}
			return &r, nil
		},
		func(_ context.Context, req any) (any, error) {
			r := req.(*fontsReq)
			err := store.Update(func(c *Config) {
				if r.CJK != "" {
					c.Font.CJK = r.CJK
				}
				if r.Code != "" {
					c.Font.Code = r.Code
				}
			})
			if err != nil {
				return nil, err
			}
			e.FullRescan()
			return store.Snapshot().Font, nil
		})
}
