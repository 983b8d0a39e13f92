// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Luzzle tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/luzzle/luzzle/internal/db"
	"github.com/luzzle/luzzle/internal/markdown"
	"github.com/luzzle/luzzle/internal/piece"
	"github.com/luzzle/luzzle/internal/schema"
	"github.com/luzzle/luzzle/internal/storage"
	"github.com/luzzle/luzzle/internal/sync"
)

// Server wraps the MCP server with Luzzle tools.
type Server struct {
	mcp    *server.MCPServer
	store  storage.Provider
	db     *db.DB
	engine *sync.Engine
}

// New creates a new MCP server with all Luzzle tools registered.
func New(store storage.Provider, database *db.DB, engine *sync.Engine) *Server {
	s := &Server{store: store, db: database, engine: engine}

	s.mcp = server.NewMCPServer(
		"Luzzle",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_pieces",
		mcp.WithDescription("List pieces of a given type (books, links, texts)."),
		mcp.WithString("type", mcp.Required(), mcp.Description("Piece type to list")),
	), s.listPieces)

	s.mcp.AddTool(mcp.NewTool("read_piece",
		mcp.WithDescription("Read one piece as canonical Markdown (frontmatter plus note body)."),
		mcp.WithString("type", mcp.Required(), mcp.Description("Piece type")),
		mcp.WithString("slug", mcp.Required(), mcp.Description("Piece slug")),
	), s.readPiece)

	s.mcp.AddTool(mcp.NewTool("search_pieces",
		mcp.WithDescription("Full-text search through piece notes."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchPieces)

	s.mcp.AddTool(mcp.NewTool("create_piece",
		mcp.WithDescription("Create a new Markdown piece file in the tree and sync it. "+
			"Content MUST follow the piece format (YAML frontmatter validated per type). "+
			"Read the contract first via the get_piece_contract tool or the "+
			"luzzle://piece-format resource."),
		mcp.WithString("type", mcp.Required(), mcp.Description("Piece type (books, links, texts)")),
		mcp.WithString("slug", mcp.Required(), mcp.Description("Slug for the new piece")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Markdown content following the piece format contract")),
	), s.createPiece)

	s.mcp.AddTool(mcp.NewTool("sync_pieces",
		mcp.WithDescription("Reconcile the piece tree against the database and report the outcome."),
		mcp.WithBoolean("prune", mcp.Description("Also delete asset files no piece references (destructive)")),
	), s.syncPieces)

	s.mcp.AddTool(mcp.NewTool("get_piece_contract",
		mcp.WithDescription("Returns the canonical Luzzle piece format contract. "+
			"Call this before creating pieces to ensure correct structure."),
	), s.getPieceContract)

	// Resource: piece format contract.
	s.mcp.AddResource(
		mcp.NewResource("luzzle://piece-format", "Piece Format Contract",
			mcp.WithResourceDescription("Canonical Markdown piece format that all pieces must follow."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readPieceFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) listPieces(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	typ, err := req.RequireString("type")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	sc, err := schema.ForType(typ)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("unknown piece type: %s (known: %s)",
			typ, strings.Join(typeNames(), ", "))), nil
	}

	rows, total, err := s.db.ListPieces(sc, 200, 0)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	items := make([]*piece.Piece, 0, len(rows))
	for _, row := range rows {
		p, err := piece.FromStored(sc, row)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		items = append(items, p)
	}
	out, _ := json.MarshalIndent(map[string]any{"pieces": items, "total": total}, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readPiece(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	typ, err := req.RequireString("type")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	slug, err := req.RequireString("slug")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	sc, err := schema.ForType(typ)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	row, err := s.db.GetPiece(sc, slug)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s/%s", typ, slug)), nil
	}
	p, err := piece.FromStored(sc, row)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, err := markdown.Serialize(p.Note, p.Frontmatter)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) searchPieces(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.db.Search(query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(results, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) createPiece(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	typ, err := req.RequireString("type")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	slug, err := req.RequireString("slug")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	sc, err := schema.ForType(typ)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	data := []byte(content)
	// Validate before writing so a malformed file never lands in the tree.
	if _, err := markdown.Decode(slug, data, sc); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	path := piece.FilePath(sc, slug)
	if exists, err := s.store.Exists(path); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	} else if exists {
		return mcp.NewToolResultError(fmt.Sprintf("piece already exists: %s", path)), nil
	}

	if err := s.store.Write(path, data); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if _, err := s.engine.Run(ctx, sync.Options{}); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s", path)), nil
}

func (s *Server) syncPieces(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	report, err := s.engine.Run(ctx, sync.Options{Prune: req.GetBool("prune", false)})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(map[string]any{
		"inserted":  report.Inserted,
		"updated":   report.Updated,
		"unchanged": report.Unchanged,
		"deleted":   report.Deleted,
		"failures":  len(report.Failures),
	}, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getPieceContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(PieceFormatContract), nil
}

func (s *Server) readPieceFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "luzzle://piece-format",
			MIMEType: "text/markdown",
			Text:     PieceFormatContract,
		},
	}, nil
}

func typeNames() []string {
	var names []string
	for _, s := range schema.Types() {
		names = append(names, s.Type)
	}
	return names
}
