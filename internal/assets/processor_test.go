package assets

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"testing"

	"github.com/disintegration/imaging"

	"github.com/luzzle/luzzle/internal/schema"
	"github.com/luzzle/luzzle/internal/testutil"
)

func TestVariantPath(t *testing.T) {
	got := VariantPath(".assets/books/id1/cover.jpg", 640)
	if got != ".assets/books/id1/cover.w640.jpg" {
		t.Errorf("VariantPath = %q", got)
	}
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 255, A: 255})
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestRun_GeneratesAndCaches(t *testing.T) {
	database := testutil.TestDB(t)
	_, store := testutil.TestTree(t)

	books, _ := schema.ForType("books")
	ref := ".assets/books/id1/cover.png"
	_ = store.Write(ref, pngBytes(t, 1000, 500))
	if err := database.InsertPiece(books, map[string]any{
		"id": "id1", "slug": "dune", "note": "", "date_added": int64(1), "date_updated": nil,
		"title": "Dune", "author": "Herbert", "rating": nil, "favorite": nil,
		"date_read": nil, "cover": ref, "tags": nil,
	}); err != nil {
		t.Fatal(err)
	}

	p := NewProcessor(database, store, []int{320, 640, 2000}, testutil.Logger())
	result, err := p.Run(context.Background(), false, false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// 1000px source: 320 and 640 generated, 2000 skipped as upscale.
	if result.Generated != 2 || result.Failed != 0 {
		t.Fatalf("result = %+v, want 2 generated", result)
	}
	for _, want := range []string{".assets/books/id1/cover.w320.png", ".assets/books/id1/cover.w640.png"} {
		if ok, _ := store.Exists(want); !ok {
			t.Errorf("missing variant %s", want)
		}
	}
	if ok, _ := store.Exists(".assets/books/id1/cover.w2000.png"); ok {
		t.Error("upscaled variant should not exist")
	}

	// Second run hits the checksum cache.
	result, err = p.Run(context.Background(), false, false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Generated != 0 || result.Skipped != 1 {
		t.Errorf("second run = %+v, want cache skip", result)
	}

	// Force bypasses the cache.
	result, _ = p.Run(context.Background(), true, false)
	if result.Generated != 2 {
		t.Errorf("forced run = %+v, want regeneration", result)
	}
}

func TestRun_DanglingReferenceIsNotFailure(t *testing.T) {
	database := testutil.TestDB(t)
	_, store := testutil.TestTree(t)

	books, _ := schema.ForType("books")
	_ = database.InsertPiece(books, map[string]any{
		"id": "id1", "slug": "dune", "note": "", "date_added": int64(1), "date_updated": nil,
		"title": "Dune", "author": "Herbert", "rating": nil, "favorite": nil,
		"date_read": nil, "cover": ".assets/books/id1/missing.png", "tags": nil,
	})

	p := NewProcessor(database, store, nil, testutil.Logger())
	result, err := p.Run(context.Background(), false, false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Failed != 0 {
		t.Errorf("result = %+v, dangling reference must not fail", result)
	}
}
