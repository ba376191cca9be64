package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/codemem/codemem-mcp/internal/cache"
	"github.com/codemem/codemem-mcp/internal/chunker"
	"github.com/codemem/codemem-mcp/internal/config"
	"github.com/codemem/codemem-mcp/internal/embedder"
	"github.com/codemem/codemem-mcp/internal/router"
	"github.com/codemem/codemem-mcp/internal/sla"
	"github.com/codemem/codemem-mcp/internal/summarizer"
	"github.com/codemem/codemem-mcp/internal/updater"
	"github.com/codemem/codemem-mcp/internal/vecindex"
)

const (
	// ServerName is the MCP server name
	ServerName = "codemem-mcp"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

const serverInstructions = `This server retrieves code context for a software project.

Indexed code is stored as chunks at three levels: "sig" (definition heads
with their doc comments), "section" (logical blocks), and "file" (whole
files, capped). Use query_context with a natural-language prompt to get a
ranked, token-budgeted evidence pack of relevant code. Narrow results
with levels, a path_prefix filter, or a commit range.

After changing a file, call index_update with the file's new content so
future queries see the current revision. Use memory_status to inspect
index health and size.`

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp      *server.MCPServer
	router   *router.Router
	updater  *updater.Updater
	index    *vecindex.Client
	embedder embedder.Embedder
	cache    *cache.Cache
	cfg      *config.Config
	slaCfg   sla.Config
	logger   *zap.Logger
}

// NewServer creates a new MCP server instance and wires all pipeline
// components from the loaded configuration.
func NewServer(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	emb, err := embedder.New(cfg.Embedding, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	index := vecindex.NewClient(vecindex.Config{
		URL:        cfg.VectorDB.URL,
		APIKey:     cfg.VectorDB.APIKey,
		Collection: cfg.VectorDB.Collection,
		Timeout:    cfg.QdrantTimeout(),
		MaxRetries: cfg.VectorDB.MaxRetries,
	}, logger)

	respCache, err := cache.New(cfg.Cache.Capacity, cfg.CacheTTL())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cache: %w", err)
	}

	var sum summarizer.Summarizer
	if cfg.Summary.Enabled {
		sum = summarizer.New(summarizer.Config{
			APIKey:  cfg.Summary.APIKey,
			BaseURL: cfg.Summary.BaseURL,
			Model:   cfg.Summary.Model,
		}, logger)
	}

	rt := router.New(emb, index, respCache, sum, logger)
	upd := updater.New(chunker.New(), emb, index, cfg.Embedding.BatchSize, cfg.Retrieval.MaxInFlight, logger)

	mcpServer := server.NewMCPServer(
		ServerName,
		ServerVersion,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions),
	)

	s := &Server{
		mcp:      mcpServer,
		router:   rt,
		updater:  upd,
		index:    index,
		embedder: emb,
		cache:    respCache,
		cfg:      cfg,
		slaCfg: sla.Config{
			SoftThreshold: cfg.SLASoft(),
			HardDeadline:  cfg.SLAHard(),
			Interval:      cfg.SLAHeartbeat(),
		},
		logger: logger,
	}
	s.registerTools()
	return s, nil
}

// Start verifies the vector collection exists before serving.
func (s *Server) Start(ctx context.Context) error {
	if err := s.index.EnsureCollection(ctx, s.embedder.Dimensions()); err != nil {
		return fmt.Errorf("failed to prepare collection: %w", err)
	}
	return nil
}

// Serve runs the MCP server on stdio and blocks until shutdown
func (s *Server) Serve(ctx context.Context) error {
	defer func() { _ = s.embedder.Close() }()
	return server.ServeStdio(s.mcp)
}

// ServeSSE runs the MCP server over SSE on the given address.
func (s *Server) ServeSSE(ctx context.Context, addr string) error {
	defer func() { _ = s.embedder.Close() }()
	sse := server.NewSSEServer(s.mcp)
	errc := make(chan error, 1)
	go func() { errc <- sse.Start(addr) }()
	select {
	case <-ctx.Done():
		return sse.Shutdown(context.Background())
	case err := <-errc:
		return err
	}
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(queryContextTool(), s.handleQueryContext)
	s.mcp.AddTool(indexUpdateTool(), s.handleIndexUpdate)
	s.mcp.AddTool(memoryStatusTool(), s.handleMemoryStatus)
}
