// Package types provides shared type definitions for the codemem MCP server.
//
// The domain revolves around three types:
//
// Chunk is a contiguous span of source code extracted at one of three
// granularity levels:
//
//	chunk := types.Chunk{
//	    RepoPath: "internal/retry/backoff.go",
//	    Level:    types.LevelSection,
//	    Code:     sectionText,
//	    LocStart: 14,
//	    LocEnd:   42,
//	}
//
// EvidencePack is the bounded, ranked set of chunks returned for a prompt.
// Its Tokens total never exceeds the caller's budget and Truncated is set
// whenever relevant content was left out verbatim.
//
// Filter is the structured payload filter applied server-side by the
// vector store: a repo path prefix and an inclusive commit range. Unknown
// filter fields are rejected at the transport boundary.
//
// The package also defines the error taxonomy shared by the pipelines;
// callers classify failures with errors.Is against these sentinels.
package types
