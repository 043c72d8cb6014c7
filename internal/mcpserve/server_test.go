package mcpserve

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CMIP-Data-Request/CMIP7-DReq-Software/internal/dreqtest"
	"github.com/CMIP-Data-Request/CMIP7-DReq-Software/internal/mapping"
	"github.com/CMIP-Data-Request/CMIP7-DReq-Software/internal/report"
	"github.com/CMIP-Data-Request/CMIP7-DReq-Software/internal/table"
)

func newServer(t *testing.T) *Server {
	t.Helper()
	spec, err := mapping.DefaultSpec()
	require.NoError(t, err)
	m, err := mapping.NewEngine(spec, nil)
	require.NoError(t, err)
	u, err := m.Consolidate(dreqtest.Partitioned(), dreqtest.Version)
	require.NoError(t, err)
	set, err := table.FromUnified(u, nil)
	require.NoError(t, err)
	return New(set, Options{Version: "test", Provenance: report.Provenance{File: "export.json"}})
}

func call(name string, args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	switch c := res.Content[0].(type) {
	case mcp.TextContent:
		return c.Text
	case *mcp.TextContent:
		return c.Text
	}
	t.Fatalf("unexpected content %T", res.Content[0])
	return ""
}

func TestListOpportunities(t *testing.T) {
	s := newServer(t)
	res, err := s.listOpportunities(context.Background(), call(ToolListOpportunities, nil))
	require.NoError(t, err)
	require.False(t, res.IsError, text(t, res))

	var titles []string
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &titles))
	assert.Equal(t, []string{"O1", "O2"}, titles)
}

func TestRequestedVariables(t *testing.T) {
	s := newServer(t)

	t.Run("defaults to all opportunities", func(t *testing.T) {
		res, err := s.requestedVariables(context.Background(), call(ToolRequestedVariables, nil))
		require.NoError(t, err)
		require.False(t, res.IsError, text(t, res))

		var doc struct {
			Header struct {
				Opportunities []string `json:"Opportunities supported"`
				Version       string   `json:"dreq content version"`
				File          string   `json:"dreq content file"`
			}
			Experiment map[string]map[string][]string `json:"experiment"`
		}
		require.NoError(t, json.Unmarshal([]byte(text(t, res)), &doc))
		assert.Equal(t, []string{"O1", "O2"}, doc.Header.Opportunities)
		assert.Equal(t, dreqtest.Version, doc.Header.Version)
		assert.Equal(t, "export.json", doc.Header.File)
		assert.Equal(t, []string{"Amon.pr"}, doc.Experiment["B"]["Low"])
	})

	t.Run("cutoff and selection", func(t *testing.T) {
		res, err := s.requestedVariables(context.Background(), call(ToolRequestedVariables, map[string]any{
			"opportunities":   []any{"O1"},
			"priority_cutoff": "core",
		}))
		require.NoError(t, err)
		require.False(t, res.IsError, text(t, res))
		assert.NotContains(t, text(t, res), `"High"`)
	})

	t.Run("empty selection", func(t *testing.T) {
		res, err := s.requestedVariables(context.Background(), call(ToolRequestedVariables, map[string]any{
			"opportunities": []any{},
		}))
		require.NoError(t, err)
		assert.False(t, res.IsError)
		assert.Equal(t, "no opportunities selected, nothing was requested", text(t, res))
	})

	t.Run("errors are tool results", func(t *testing.T) {
		res, err := s.requestedVariables(context.Background(), call(ToolRequestedVariables, map[string]any{
			"opportunities": []any{"Nope"},
		}))
		require.NoError(t, err)
		assert.True(t, res.IsError)
		assert.Contains(t, text(t, res), "opportunity not found")
	})
}

func TestVariableMetadata(t *testing.T) {
	s := newServer(t)
	res, err := s.variableMetadata(context.Background(), call(ToolVariableMetadata, map[string]any{
		"cmor_variables": []any{"tas"},
	}))
	require.NoError(t, err)
	require.False(t, res.IsError, text(t, res))

	var doc struct {
		Header map[string]any               `json:"Header"`
		Vars   map[string]map[string]string `json:"Compound Name"`
	}
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &doc))
	assert.Equal(t, float64(1), doc.Header["no. of variables"])
	assert.Equal(t, "air_temperature", doc.Vars["Amon.tas"]["standard_name"])
}

func TestConcurrentCallsDoNotShareState(t *testing.T) {
	s := newServer(t)
	var wg sync.WaitGroup
	errs := make(chan string, 16)
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			res, err := s.requestedVariables(context.Background(), call(ToolRequestedVariables, nil))
			if err != nil || res.IsError {
				errs <- "requested_variables failed"
			}
		}()
		go func() {
			defer wg.Done()
			res, err := s.variableMetadata(context.Background(), call(ToolVariableMetadata, nil))
			if err != nil || res.IsError {
				errs <- "variable_metadata failed"
			}
		}()
	}
	wg.Wait()
	close(errs)
	for msg := range errs {
		t.Error(msg)
	}
}

func TestToolsRegistered(t *testing.T) {
	s := newServer(t)
	resp := s.MCP().HandleMessage(context.Background(), []byte(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	data, err := json.Marshal(resp)
	require.NoError(t, err)
	for _, name := range []string{ToolListOpportunities, ToolRequestedVariables, ToolVariableMetadata} {
		assert.Contains(t, string(data), `"name":"`+name+`"`)
	}
}
