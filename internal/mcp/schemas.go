package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// queryContextTool returns the tool definition for query_context
func queryContextTool() mcp.Tool {
	return mcp.Tool{
		Name:        "query_context",
		Description: "Retrieve a ranked, token-budgeted pack of code excerpts relevant to a prompt",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"prompt": map[string]interface{}{
					"type":        "string",
					"description": "Natural-language description of the code you need context for",
				},
				"levels": map[string]interface{}{
					"type":        "array",
					"description": "Chunk levels to search; omit for all levels",
					"items": map[string]interface{}{
						"type": "string",
						"enum": []string{"sig", "section", "file"},
					},
				},
				"filter": map[string]interface{}{
					"type":        "object",
					"description": "Optional metadata constraints applied store-side",
					"properties": map[string]interface{}{
						"path_prefix": map[string]interface{}{
							"type":        "string",
							"description": "Only return chunks whose repository path starts with this prefix",
						},
						"commit_from": map[string]interface{}{
							"type":        "string",
							"description": "Lower bound (inclusive) on the chunk's commit identifier; must be a base-10 integer (counter or unix timestamp)",
						},
						"commit_to": map[string]interface{}{
							"type":        "string",
							"description": "Upper bound (inclusive) on the chunk's commit identifier; must be a base-10 integer (counter or unix timestamp)",
						},
					},
				},
				"k": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of chunks to return (1-100)",
					"default":     24,
					"minimum":     1,
					"maximum":     100,
				},
				"max_tokens": map[string]interface{}{
					"type":        "integer",
					"description": "Token budget for the evidence pack (50-4096)",
					"default":     1000,
					"minimum":     50,
					"maximum":     4096,
				},
			},
			Required: []string{"prompt"},
		},
	}
}

// indexUpdateTool returns the tool definition for index_update
func indexUpdateTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_update",
		Description: "Re-chunk, re-embed and re-index one changed file, replacing its previous chunks",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"repo_path": map[string]interface{}{
					"type":        "string",
					"description": "Repository-relative path of the changed file",
				},
				"content": map[string]interface{}{
					"type":        "string",
					"description": "Full new content of the file",
				},
				"commit_id": map[string]interface{}{
					"type":        "string",
					"description": "Commit identifier the content belongs to",
				},
			},
			Required: []string{"repo_path", "content", "commit_id"},
		},
	}
}

// memoryStatusTool returns the tool definition for memory_status
func memoryStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "memory_status",
		Description: "Report index size, embedding model and cache statistics",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
