package mcpserver

import (
	"context"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/luzzle/luzzle/internal/storage"
	"github.com/luzzle/luzzle/internal/sync"
	"github.com/luzzle/luzzle/internal/testutil"
)

func testServer(t *testing.T) (*Server, storage.Provider) {
	t.Helper()

	_, store := testutil.TestTree(t)
	database := testutil.TestDB(t)
	engine := sync.NewEngine(database, store, nil, testutil.Logger())

	srv := New(store, database, engine)
	return srv, store
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct "call tool" test helper, so we invoke the handler
	// functions directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "list_pieces":
		result, err = srv.listPieces(ctx, req)
	case "read_piece":
		result, err = srv.readPiece(ctx, req)
	case "search_pieces":
		result, err = srv.searchPieces(ctx, req)
	case "create_piece":
		result, err = srv.createPiece(ctx, req)
	case "sync_pieces":
		result, err = srv.syncPieces(ctx, req)
	case "get_piece_contract":
		result, err = srv.getPieceContract(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestCreateAndReadPiece(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "create_piece", map[string]interface{}{
		"type": "books",
		"slug": "dune",
		"content": `---
title: Dune
author: Frank Herbert
---

A desert planet epic.
`,
	})
	if r.IsError {
		t.Fatalf("create failed: %s", resultText(r))
	}
	if got := resultText(r); got != "created: books/dune.md" {
		t.Errorf("create result = %q", got)
	}

	r = callTool(t, srv, "read_piece", map[string]interface{}{
		"type": "books",
		"slug": "dune",
	})
	if r.IsError {
		t.Fatalf("read failed: %s", resultText(r))
	}
	text := resultText(r)
	if !strings.Contains(text, "title: Dune") || !strings.Contains(text, "A desert planet epic.") {
		t.Errorf("read result = %q", text)
	}
}

func TestCreatePiece_RejectsInvalidFrontmatter(t *testing.T) {
	srv, store := testServer(t)

	r := callTool(t, srv, "create_piece", map[string]interface{}{
		"type":    "books",
		"slug":    "bad",
		"content": "---\ntitle: No Author\n---\n",
	})
	if !r.IsError {
		t.Fatal("expected error for missing required field")
	}
	if exists, _ := store.Exists("books/bad.md"); exists {
		t.Error("invalid piece was written to the tree")
	}
}

func TestReadPieceMissing(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "read_piece", map[string]interface{}{
		"type": "books",
		"slug": "nope",
	})
	if !r.IsError {
		t.Error("expected error for missing piece")
	}
}

func TestListPieces_UnknownType(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "list_pieces", map[string]interface{}{"type": "movies"})
	if !r.IsError {
		t.Error("expected error for unknown type")
	}
}

func TestSyncPieces(t *testing.T) {
	srv, store := testServer(t)
	_ = store.Write("links/go.md", []byte("---\nurl: https://go.dev\ntitle: Go\n---\n"))
	_ = store.Write(".assets/links/id1/orphan.png", []byte("png"))

	r := callTool(t, srv, "sync_pieces", map[string]interface{}{})
	if r.IsError {
		t.Fatalf("sync failed: %s", resultText(r))
	}
	if text := resultText(r); !strings.Contains(text, `"inserted": 1`) {
		t.Errorf("sync result = %q", text)
	}
	if ok, _ := store.Exists(".assets/links/id1/orphan.png"); !ok {
		t.Fatal("default sync deleted an asset file")
	}

	r = callTool(t, srv, "sync_pieces", map[string]interface{}{"prune": true})
	if r.IsError {
		t.Fatalf("prune sync failed: %s", resultText(r))
	}
	if ok, _ := store.Exists(".assets/links/id1/orphan.png"); ok {
		t.Error("orphan asset survived an explicit prune")
	}
}

func TestGetPieceContract(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "get_piece_contract", map[string]interface{}{})
	if text := resultText(r); !strings.Contains(text, "Piece Format Contract") {
		t.Errorf("contract = %q", text)
	}
}
