package mcp

import (
	"context"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/codemem/codemem-mcp/internal/config"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)

	s, err := NewServer(&cfg, zap.NewNop())
	require.NoError(t, err)
	return s
}

func toolRequest(args map[string]interface{}) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func mcpCode(t *testing.T, err error) int {
	t.Helper()
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	return mcpErr.Code
}

func TestNewServer_WiresComponents(t *testing.T) {
	s := newTestServer(t)
	assert.NotNil(t, s.router)
	assert.NotNil(t, s.updater)
	assert.NotNil(t, s.index)
	assert.NotNil(t, s.embedder)
	assert.NotNil(t, s.cache)
}

func TestQueryContext_RequiresPrompt(t *testing.T) {
	s := newTestServer(t)

	_, err := s.handleQueryContext(context.Background(), toolRequest(map[string]interface{}{}))
	require.Error(t, err)
	assert.Equal(t, ErrorCodeInvalidParams, mcpCode(t, err))

	_, err = s.handleQueryContext(context.Background(), toolRequest(map[string]interface{}{
		"prompt": "   ",
	}))
	require.Error(t, err)
	assert.Equal(t, ErrorCodeInvalidParams, mcpCode(t, err))
}

func TestQueryContext_RejectsUnknownLevel(t *testing.T) {
	s := newTestServer(t)

	_, err := s.handleQueryContext(context.Background(), toolRequest(map[string]interface{}{
		"prompt": "find auth",
		"levels": []interface{}{"sig", "paragraph"},
	}))
	require.Error(t, err)
	assert.Equal(t, ErrorCodeInvalidParams, mcpCode(t, err))
}

func TestQueryContext_RejectsNonStringLevels(t *testing.T) {
	s := newTestServer(t)

	_, err := s.handleQueryContext(context.Background(), toolRequest(map[string]interface{}{
		"prompt": "find auth",
		"levels": []interface{}{1, 2},
	}))
	require.Error(t, err)
	assert.Equal(t, ErrorCodeInvalidParams, mcpCode(t, err))
}

func TestQueryContext_RejectsUnknownFilterField(t *testing.T) {
	s := newTestServer(t)

	_, err := s.handleQueryContext(context.Background(), toolRequest(map[string]interface{}{
		"prompt": "find auth",
		"filter": map[string]interface{}{"branch": "main"},
	}))
	require.Error(t, err)
	assert.Equal(t, ErrorCodeInvalidParams, mcpCode(t, err))
}

func TestQueryContext_RejectsOutOfRangeK(t *testing.T) {
	s := newTestServer(t)

	for _, k := range []int{0, -1, 101} {
		_, err := s.handleQueryContext(context.Background(), toolRequest(map[string]interface{}{
			"prompt": "find auth",
			"k":      float64(k),
		}))
		require.Error(t, err, "k=%d", k)
		assert.Equal(t, ErrorCodeInvalidParams, mcpCode(t, err))
	}
}

func TestQueryContext_RejectsOutOfRangeMaxTokens(t *testing.T) {
	s := newTestServer(t)

	for _, mt := range []int{0, 49, 4097} {
		_, err := s.handleQueryContext(context.Background(), toolRequest(map[string]interface{}{
			"prompt":     "find auth",
			"max_tokens": float64(mt),
		}))
		require.Error(t, err, "max_tokens=%d", mt)
		assert.Equal(t, ErrorCodeInvalidParams, mcpCode(t, err))
	}
}

func TestIndexUpdate_RequiresArguments(t *testing.T) {
	s := newTestServer(t)

	cases := []map[string]interface{}{
		{},
		{"repo_path": "a.go"},
		{"repo_path": "a.go", "content": "package a"},
		{"content": "package a", "commit_id": "abc"},
	}
	for i, args := range cases {
		_, err := s.handleIndexUpdate(context.Background(), toolRequest(args))
		require.Error(t, err, "case %d", i)
		assert.Equal(t, ErrorCodeInvalidParams, mcpCode(t, err))
	}
}

func TestToolDefinitions(t *testing.T) {
	query := queryContextTool()
	assert.Equal(t, "query_context", query.Name)
	assert.Equal(t, []string{"prompt"}, query.InputSchema.Required)

	update := indexUpdateTool()
	assert.Equal(t, "index_update", update.Name)
	assert.ElementsMatch(t, []string{"repo_path", "content", "commit_id"}, update.InputSchema.Required)

	status := memoryStatusTool()
	assert.Equal(t, "memory_status", status.Name)
	assert.Empty(t, status.InputSchema.Required)
}
