package types

import "errors"

// Domain errors shared across the retrieval and indexing pipelines.
var (
	// ErrExtractionSkipped marks a file the extractor could not process
	// (binary or unreadable content). Per-file, non-fatal.
	ErrExtractionSkipped = errors.New("extraction skipped")

	// ErrEmbedFailed means the embedding provider failed after retries.
	// Fatal to the enclosing update or query embed.
	ErrEmbedFailed = errors.New("embedding failed")

	// ErrVectorStoreUnavailable means the vector store did not respond
	// within the retry budget. Level-local during retrieve, call-fatal
	// during update.
	ErrVectorStoreUnavailable = errors.New("vector store unavailable")

	// ErrAllLevelsFailed means every requested level's search failed.
	ErrAllLevelsFailed = errors.New("all level searches failed")

	// ErrUnknownLevel is a structural parameter error, rejected without
	// retry.
	ErrUnknownLevel = errors.New("unknown context level")

	// ErrDeadlineExceeded means the hard transport deadline passed before
	// the pipeline finished.
	ErrDeadlineExceeded = errors.New("deadline exceeded")
)
