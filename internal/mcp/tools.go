package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/codemem/codemem-mcp/internal/router"
	"github.com/codemem/codemem-mcp/internal/sla"
	"github.com/codemem/codemem-mcp/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams    = -32602 // Invalid method parameters
	ErrorCodeInternalError    = -32603 // Internal JSON-RPC error
	ErrorCodeDeadlineExceeded = -32001 // Hard retrieval deadline hit
	ErrorCodeIndexUnavailable = -32002 // Vector store unreachable after retries
	ErrorCodeEmbeddingFailed  = -32003 // Embedding provider failed after retries
	ErrorCodeAllLevelsFailed  = -32004 // Every requested level's search failed
)

// query_context parameter bounds
const (
	minK         = 1
	maxK         = 100
	minMaxTokens = 50
	maxMaxTokens = 4096
)

// handleQueryContext handles the query_context tool invocation
func (s *Server) handleQueryContext(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	prompt, ok := args["prompt"].(string)
	if !ok || strings.TrimSpace(prompt) == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "prompt parameter is required", map[string]interface{}{
			"param":  "prompt",
			"reason": "missing or empty",
		})
	}

	levels, err := parseLevelsArg(args)
	if err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid levels", map[string]interface{}{
			"param":  "levels",
			"reason": err.Error(),
		})
	}

	var filter types.Filter
	if raw, present := args["filter"]; present {
		filterArgs, ok := raw.(map[string]interface{})
		if !ok {
			return nil, newMCPError(ErrorCodeInvalidParams, "filter must be an object", map[string]interface{}{
				"param": "filter",
			})
		}
		filter, err = types.FilterFromArgs(filterArgs)
		if err != nil {
			return nil, newMCPError(ErrorCodeInvalidParams, "invalid filter", map[string]interface{}{
				"param":  "filter",
				"reason": err.Error(),
			})
		}
	}

	k := getIntDefault(args, "k", s.cfg.Retrieval.DefaultK)
	if k < minK || k > maxK {
		return nil, newMCPError(ErrorCodeInvalidParams,
			fmt.Sprintf("k must be between %d and %d", minK, maxK), map[string]interface{}{
				"param": "k",
				"value": k,
			})
	}

	maxTokens := getIntDefault(args, "max_tokens", s.cfg.Retrieval.DefaultMaxTokens)
	if maxTokens < minMaxTokens || maxTokens > maxMaxTokens {
		return nil, newMCPError(ErrorCodeInvalidParams,
			fmt.Sprintf("max_tokens must be between %d and %d", minMaxTokens, maxMaxTokens), map[string]interface{}{
				"param": "max_tokens",
				"value": maxTokens,
			})
	}

	query := router.Query{
		Prompt:    prompt,
		Levels:    levels,
		Filter:    filter,
		K:         k,
		MaxTokens: maxTokens,
	}

	requestID := uuid.NewString()
	s.logger.Debug("query accepted",
		zap.String("request_id", requestID),
		zap.Int("k", k),
		zap.Int("max_tokens", maxTokens))

	var pack *types.EvidencePack
	controller := sla.NewController(s.slaCfg, s.logger)
	err = controller.Run(ctx, s.heartbeatSender(ctx, requestID), func(runCtx context.Context, tracker *sla.Tracker) error {
		var routeErr error
		pack, routeErr = s.router.Route(runCtx, query, tracker)
		return routeErr
	})
	if err != nil {
		s.logger.Warn("query failed", zap.String("request_id", requestID), zap.Error(err))
		return nil, queryError(err)
	}

	response := map[string]interface{}{
		"chunks":    pack.Chunks,
		"truncated": pack.Truncated,
		"tokens":    pack.Tokens,
	}
	if len(pack.FailedLevels) > 0 {
		response["failed_levels"] = pack.FailedLevels
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// heartbeatSender emits SLA heartbeats as MCP progress notifications.
// Outside an MCP session (tests) it degrades to a log line.
func (s *Server) heartbeatSender(ctx context.Context, requestID string) func(sla.Heartbeat) {
	srv := server.ServerFromContext(ctx)
	return func(hb sla.Heartbeat) {
		if srv == nil {
			s.logger.Info("retrieval heartbeat",
				zap.String("request_id", requestID),
				zap.String("state", string(hb.State)),
				zap.Duration("elapsed", hb.Elapsed))
			return
		}
		err := srv.SendNotificationToClient(ctx, "notifications/progress", map[string]interface{}{
			"request_id": requestID,
			"state":      string(hb.State),
			"elapsed_ms": hb.Elapsed.Milliseconds(),
		})
		if err != nil {
			s.logger.Warn("heartbeat notification failed",
				zap.String("request_id", requestID),
				zap.Error(err))
		}
	}
}

// handleIndexUpdate handles the index_update tool invocation
func (s *Server) handleIndexUpdate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	repoPath, ok := args["repo_path"].(string)
	if !ok || repoPath == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "repo_path parameter is required", map[string]interface{}{
			"param":  "repo_path",
			"reason": "missing or empty",
		})
	}

	content, ok := args["content"].(string)
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "content parameter is required", map[string]interface{}{
			"param":  "content",
			"reason": "missing",
		})
	}

	commitID, ok := args["commit_id"].(string)
	if !ok || commitID == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "commit_id parameter is required", map[string]interface{}{
			"param":  "commit_id",
			"reason": "missing or empty",
		})
	}

	status, err := s.updater.Update(ctx, repoPath, content, commitID)
	if err != nil {
		return nil, updateError(err)
	}

	response := map[string]interface{}{
		"repo_path": status.RepoPath,
		"chunks":    status.Chunks,
		"skipped":   status.Skipped,
		"duration":  status.Duration,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleMemoryStatus handles the memory_status tool invocation
func (s *Server) handleMemoryStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	points, err := s.index.CollectionInfo(ctx)
	healthy := err == nil
	if err != nil {
		s.logger.Warn("collection info unavailable", zap.Error(err))
	}

	response := map[string]interface{}{
		"collection": s.cfg.VectorDB.Collection,
		"healthy":    healthy,
		"embedding": map[string]interface{}{
			"model":      s.embedder.Model(),
			"dimensions": s.embedder.Dimensions(),
		},
		"cache": map[string]interface{}{
			"entries":  s.cache.Len(),
			"capacity": s.cfg.Cache.Capacity,
		},
	}
	if healthy {
		response["points"] = points
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

// queryError maps pipeline failures to MCP error codes.
func queryError(err error) error {
	switch {
	case errors.Is(err, types.ErrDeadlineExceeded):
		return newMCPError(ErrorCodeDeadlineExceeded, "retrieval deadline exceeded", map[string]interface{}{
			"error": err.Error(),
		})
	case errors.Is(err, types.ErrVectorStoreUnavailable):
		return newMCPError(ErrorCodeIndexUnavailable, "vector store unavailable", map[string]interface{}{
			"error": err.Error(),
		})
	case errors.Is(err, types.ErrEmbedFailed):
		return newMCPError(ErrorCodeEmbeddingFailed, "query embedding failed", map[string]interface{}{
			"error": err.Error(),
		})
	case errors.Is(err, types.ErrAllLevelsFailed):
		return newMCPError(ErrorCodeAllLevelsFailed, "all level searches failed", map[string]interface{}{
			"error": err.Error(),
		})
	default:
		return newMCPError(ErrorCodeInternalError, "retrieval failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func updateError(err error) error {
	switch {
	case errors.Is(err, types.ErrVectorStoreUnavailable):
		return newMCPError(ErrorCodeIndexUnavailable, "vector store unavailable", map[string]interface{}{
			"error": err.Error(),
		})
	case errors.Is(err, types.ErrEmbedFailed):
		return newMCPError(ErrorCodeEmbeddingFailed, "chunk embedding failed", map[string]interface{}{
			"error": err.Error(),
		})
	default:
		return newMCPError(ErrorCodeInternalError, "index update failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// parseLevelsArg reads the optional levels array. Absence means all
// levels; an unknown level is an error, not a silent skip.
func parseLevelsArg(args map[string]interface{}) ([]types.Level, error) {
	raw, present := args["levels"]
	if !present {
		return types.AllLevels, nil
	}
	items, ok := raw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("levels must be an array of strings")
	}
	names := make([]string, 0, len(items))
	for _, item := range items {
		name, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("levels must be an array of strings")
		}
		names = append(names, name)
	}
	return types.ParseLevels(names)
}

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return defaultValue
	}
}
