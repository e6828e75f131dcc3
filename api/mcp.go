package api

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/lienwatch/lienwatch/kit"
	"github.com/lienwatch/lienwatch/store"
)

// RegisterMCP registers the lienwatch tools on an MCP server.
func (s *Server) RegisterMCP(srv *mcp.Server) {
	s.registerTriggerRunTool(srv)
	s.registerStatusTool(srv)
	s.registerListSourcesTool(srv)
	s.registerRetrySyncTool(srv)
	s.registerRecentLiensTool(srv)
}

// inputSchema builds a JSON Schema object with type "object".
func inputSchema(properties map[string]any, required []string) map[string]any {
	sc := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		sc["required"] = required
	}
	return sc
}

// --- trigger_run ---

type triggerRunRequest struct {
	FromDate string `json:"from_date,omitempty"`
	ToDate   string `json:"to_date,omitempty"`
}

func (s *Server) registerTriggerRunTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "lienwatch_trigger_run",
		Description: "Start a discovery-and-sync run. Defaults to the previous calendar day when no dates are given. Fails while another run is active.",
		InputSchema: inputSchema(map[string]any{
			"from_date": map[string]any{"type": "string", "description": "Window start, YYYY-MM-DD (optional)"},
			"to_date":   map[string]any{"type": "string", "description": "Window end, YYYY-MM-DD (optional)"},
		}, nil),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*triggerRunRequest)
		runID, err := s.pl.Trigger(ctx, store.RunManual, r.FromDate, r.ToDate)
		if err != nil {
			return nil, err
		}
		return map[string]string{"run_id": runID}, nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r triggerRunRequest
		if len(req.Params.Arguments) > 0 {
			if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
				return nil, err
			}
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- status ---

func (s *Server) registerStatusTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "lienwatch_status",
		Description: "Report whether a run is active, plus the most recent run record and its per-source sub-runs.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(ctx context.Context, _ any) (any, error) {
		st, err := s.pl.Status(ctx)
		if err != nil {
			return nil, err
		}
		resp := statusResponse{Status: st}
		if st.LatestRun != nil {
			subs, err := s.store.ListSubRuns(ctx, st.LatestRun.ID)
			if err == nil {
				resp.SubRuns = subs
			}
		}
		return &resp, nil
	}

	decode := func(_ *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return &kit.MCPDecodeResult{Request: nil}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- list_sources ---

func (s *Server) registerListSourcesTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "lienwatch_list_sources",
		Description: "List configured recorder sources.",
		InputSchema: inputSchema(map[string]any{
			"enabled_only": map[string]any{"type": "boolean", "description": "Only show enabled sources (default: false)"},
		}, nil),
	}

	type listReq struct {
		EnabledOnly bool `json:"enabled_only"`
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*listReq)
		if r.EnabledOnly {
			return s.reg.ListEnabled(ctx)
		}
		return s.reg.List(ctx)
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r listReq
		if len(req.Params.Arguments) > 0 {
			json.Unmarshal(req.Params.Arguments, &r)
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- retry_sync ---

type retrySyncRequest struct {
	LienID string `json:"lien_id"`
}

func (s *Server) registerRetrySyncTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "lienwatch_retry_sync",
		Description: "Re-submit one lien to the external records service. Already-synced liens are a no-op.",
		InputSchema: inputSchema(map[string]any{
			"lien_id": map[string]any{"type": "string", "description": "Lien ID to re-submit"},
		}, []string{"lien_id"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*retrySyncRequest)
		return s.retrier.RetryOne(ctx, r.LienID)
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r retrySyncRequest
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- recent_liens ---

type recentLiensRequest struct {
	Status string `json:"status,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

func (s *Server) registerRecentLiensTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "lienwatch_recent_liens",
		Description: "List the most recently discovered liens, optionally filtered by status.",
		InputSchema: inputSchema(map[string]any{
			"status": map[string]any{"type": "string", "enum": []any{"pending", "processing", "synced", "mailer_sent", "completed"}, "description": "Filter by lifecycle status"},
			"limit":  map[string]any{"type": "integer", "description": "Max results (default 20)"},
		}, nil),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*recentLiensRequest)
		limit := r.Limit
		if limit <= 0 {
			limit = 20
		}
		if r.Status != "" {
			return s.store.ListLiensByStatus(ctx, r.Status, limit)
		}
		return s.store.ListRecentLiens(ctx, limit)
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r recentLiensRequest
		if len(req.Params.Arguments) > 0 {
			if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
				return nil, err
			}
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}
