// Package assets generates resized image variants for assets referenced from
// piece frontmatter.
package assets

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"runtime"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
	"golang.org/x/sync/errgroup"

	"github.com/luzzle/luzzle/internal/apperr"
	"github.com/luzzle/luzzle/internal/checksum"
	"github.com/luzzle/luzzle/internal/db"
	"github.com/luzzle/luzzle/internal/storage"
)

// DefaultWidths are the variant widths generated when none are configured.
var DefaultWidths = []int{320, 640, 1280}

// Processor walks every referenced asset and generates width variants named
// <stem>.w<width>.<ext>. A checksum cache skips sources that have not changed
// since the last run.
type Processor struct {
	db     *db.DB
	store  storage.Provider
	widths []int
	logger *slog.Logger
}

// Result summarizes one processing run.
type Result struct {
	Generated int
	Skipped   int
	Failed    int
}

// NewProcessor creates a processor with the given variant widths (nil means
// DefaultWidths).
func NewProcessor(database *db.DB, store storage.Provider, widths []int, logger *slog.Logger) *Processor {
	if len(widths) == 0 {
		widths = DefaultWidths
	}
	return &Processor{db: database, store: store, widths: widths, logger: logger}
}

// Run processes every referenced asset with a CPU-bounded fan-out. force
// regenerates variants even when the source checksum is cached; dryRun logs
// decisions without writing.
func (p *Processor) Run(ctx context.Context, force, dryRun bool) (*Result, error) {
	refs, err := p.db.AssetRefs()
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	result := &Result{}

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for ref := range refs {
		if !decodable(ref) {
			continue
		}
		g.Go(func() error {
			generated, err := p.process(ref, force, dryRun)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				result.Failed++
				p.logger.Warn("process: asset failed",
					slog.String("path", ref), slog.String("error", err.Error()))
			case generated == 0:
				result.Skipped++
			default:
				result.Generated += generated
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}

// process generates the variants for one source asset. Returns the number of
// variants written.
func (p *Processor) process(ref string, force, dryRun bool) (int, error) {
	data, err := p.store.Read(ref)
	if errors.Is(err, apperr.ErrNotFound) {
		// A dangling reference is not a processing failure; existence is only
		// checked in the prune direction.
		p.logger.Debug("process: referenced asset missing", slog.String("path", ref))
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	sum := checksum.Sum(data)
	if !force {
		cached, err := p.db.CacheGet(ref)
		if err != nil {
			return 0, err
		}
		if cached == sum {
			return 0, nil
		}
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("assets: decode %s: %w", ref, err)
	}
	format, err := imaging.FormatFromExtension(path.Ext(ref))
	if err != nil {
		return 0, fmt.Errorf("assets: format %s: %w", ref, err)
	}

	written := 0
	for _, width := range p.widths {
		if img.Bounds().Dx() <= width {
			continue
		}
		out := VariantPath(ref, width)
		if dryRun {
			p.logger.Info("process: would generate", slog.String("path", out))
			written++
			continue
		}
		resized := imaging.Resize(img, width, 0, imaging.Lanczos)
		var buf bytes.Buffer
		if err := imaging.Encode(&buf, resized, format); err != nil {
			return written, fmt.Errorf("assets: encode %s: %w", out, err)
		}
		if err := p.store.OpenWrite(out, &buf); err != nil {
			return written, err
		}
		written++
		p.logger.Debug("process: generated", slog.String("path", out), slog.Int("width", width))
	}

	if !dryRun {
		if err := p.db.CachePut(ref, sum); err != nil {
			return written, err
		}
	}
	return written, nil
}

// VariantPath returns the on-disk location of a width variant:
// .assets/books/<id>/cover.jpg → .assets/books/<id>/cover.w640.jpg.
func VariantPath(ref string, width int) string {
	ext := path.Ext(ref)
	stem := strings.TrimSuffix(ref, ext)
	return fmt.Sprintf("%s.w%d%s", stem, width, ext)
}

// decodable reports whether the imaging library can decode this file.
func decodable(ref string) bool {
	switch strings.ToLower(path.Ext(ref)) {
	case ".jpg", ".jpeg", ".png", ".gif", ".bmp", ".tif", ".tiff":
		return true
	default:
		return false
	}
}
