// Package mcpserve exposes data request queries as MCP tools over stdio.
// Every tool call works on its own clone of the consolidated table set, so
// calls may run concurrently.
package mcpserve

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/CMIP-Data-Request/CMIP7-DReq-Software/internal/metadata"
	"github.com/CMIP-Data-Request/CMIP7-DReq-Software/internal/query"
	"github.com/CMIP-Data-Request/CMIP7-DReq-Software/internal/report"
	"github.com/CMIP-Data-Request/CMIP7-DReq-Software/internal/table"
)

// Tool names.
const (
	ToolListOpportunities  = "list_opportunities"
	ToolRequestedVariables = "requested_variables"
	ToolVariableMetadata   = "variable_metadata"
)

// Options configure a Server.
type Options struct {
	// Name and Version identify the server to clients.
	Name    string
	Version string
	// Provenance heads the documents returned by the query tools.
	Provenance report.Provenance
	Log        *zap.Logger
}

// Server answers tool calls against one consolidated table set.
type Server struct {
	set  *table.Set
	prov report.Provenance
	log  *zap.Logger
	mcp  *server.MCPServer
}

// New registers the query tools for set.
func New(set *table.Set, opts Options) *Server {
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	if opts.Name == "" {
		opts.Name = "dreq"
	}
	if opts.Provenance.Version == "" {
		opts.Provenance.Version = set.Version
	}
	s := &Server{
		set:  set,
		prov: opts.Provenance,
		log:  opts.Log,
		mcp:  server.NewMCPServer(opts.Name, opts.Version, server.WithToolCapabilities(false)),
	}

	s.mcp.AddTool(mcp.NewTool(ToolListOpportunities,
		mcp.WithDescription("List the titles of the opportunities in the data request."),
	), s.listOpportunities)

	s.mcp.AddTool(mcp.NewTool(ToolRequestedVariables,
		mcp.WithDescription("Variables requested from each experiment by the selected opportunities, grouped by priority level."),
		mcp.WithArray("opportunities",
			mcp.Description(`Opportunity titles, or ["all"] (default).`),
			mcp.WithStringItems()),
		mcp.WithString("priority_cutoff",
			mcp.Description("Lowest priority level to include."),
			mcp.Enum(query.PriorityLevels...)),
		mcp.WithBoolean("check_core",
			mcp.Description("Fail unless every experiment requests the same Core variables.")),
	), s.requestedVariables)

	s.mcp.AddTool(mcp.NewTool(ToolVariableMetadata,
		mcp.WithDescription("CMOR metadata of data request variables, keyed by compound name."),
		mcp.WithArray("compound_names",
			mcp.Description("Only these compound names, e.g. Amon.tas."),
			mcp.WithStringItems()),
		mcp.WithArray("cmor_tables",
			mcp.Description("Only variables of these CMOR tables, e.g. Amon."),
			mcp.WithStringItems()),
		mcp.WithArray("cmor_variables",
			mcp.Description("Only these CMOR variable names, e.g. tas."),
			mcp.WithStringItems()),
	), s.variableMetadata)

	return s
}

// MCP returns the underlying MCP server.
func (s *Server) MCP() *server.MCPServer { return s.mcp }

// ServeStdio serves tool calls on stdin and stdout until EOF.
func (s *Server) ServeStdio() error {
	s.log.Info("serving MCP tools on stdio", zap.String("version", s.set.Version))
	return server.ServeStdio(s.mcp)
}

func (s *Server) engine() (*query.Engine, error) {
	return query.NewEngine(s.set.Clone(), query.Context{Version: s.set.Version, Log: s.log})
}

func (s *Server) listOpportunities(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	e, err := s.engine()
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(e.Opportunities())
}

func (s *Server) requestedVariables(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sel := query.ParseSelector(req.GetStringSlice("opportunities", []string{query.AllKeyword}))
	cutoff := req.GetString("priority_cutoff", query.Low)
	checkCore := req.GetBool("check_core", false)

	e, err := s.engine()
	if err != nil {
		return toolError(err), nil
	}
	res, err := e.RequestedVariables(sel, cutoff, checkCore)
	if err != nil {
		return toolError(err), nil
	}
	if res.Empty() {
		return mcp.NewToolResultText(res.Message()), nil
	}
	doc, err := report.Requested(res, s.prov)
	if err != nil {
		return toolError(err), nil
	}
	s.log.Debug("tool call",
		zap.String("tool", ToolRequestedVariables),
		zap.Stringer("opportunities", sel),
		zap.Int("experiments", len(res.Experiments)))
	return jsonResult(doc)
}

func (s *Server) variableMetadata(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	opts := metadata.Options{
		CompoundNames: req.GetStringSlice("compound_names", nil),
		CMORTables:    req.GetStringSlice("cmor_tables", nil),
		CMORVariables: req.GetStringSlice("cmor_variables", nil),
	}
	cat, err := metadata.Resolve(s.set.Clone(), query.Context{Version: s.set.Version, Log: s.log}, opts)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(report.Metadata(cat, s.prov))
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(data)), nil
}

func toolError(err error) *mcp.CallToolResult {
	return mcp.NewToolResultError(err.Error())
}
