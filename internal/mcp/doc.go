// Package mcp implements the Model Context Protocol (MCP) server for codemem.
//
// The server exposes three tools to AI coding assistants:
//   - query_context: retrieve a ranked, token-budgeted evidence pack of
//     code excerpts for a natural-language prompt
//   - index_update: re-chunk, re-embed and re-index one changed file
//   - memory_status: report index health, embedding model and cache stats
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol. The default transport is stdio; an SSE
// transport is available for network deployments. Stdout is reserved for
// protocol traffic, so all logging goes to stderr.
//
// # Tool: query_context
//
//	Request:
//	{
//	  "name": "query_context",
//	  "arguments": {
//	    "prompt": "where are retries for the embedding provider handled",
//	    "levels": ["sig", "section"],
//	    "filter": {"path_prefix": "internal/"},
//	    "k": 24,
//	    "max_tokens": 1000
//	  }
//	}
//
//	Response:
//	{
//	  "chunks": [
//	    {
//	      "repo_path": "internal/embedder/retry.go",
//	      "level": "section",
//	      "code": "...",
//	      "loc_start": 30,
//	      "loc_end": 54,
//	      "score": 0.91
//	    }
//	  ],
//	  "truncated": false,
//	  "tokens": 412
//	}
//
// Long-running queries emit notifications/progress heartbeats once the
// soft threshold passes; the hard deadline aborts with error -32001.
//
// # Tool: index_update
//
//	Request:
//	{
//	  "name": "index_update",
//	  "arguments": {
//	    "repo_path": "internal/auth/service.go",
//	    "content": "package auth\n...",
//	    "commit_id": "4f2a9c1"
//	  }
//	}
//
// The update is file-atomic: an embedding failure leaves the previously
// indexed revision untouched.
//
// # Error Handling
//
// Errors are standard JSON-RPC responses. Codes:
//   - -32602: invalid params (missing/invalid arguments)
//   - -32603: internal error
//   - -32001: retrieval deadline exceeded
//   - -32002: vector store unavailable
//   - -32003: embedding provider failed
//   - -32004: all requested level searches failed
package mcp
