// Package sync implements the differential reconciliation between the piece
// tree on storage and the per-type database tables.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"regexp"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/luzzle/luzzle/internal/apperr"
	"github.com/luzzle/luzzle/internal/checksum"
	"github.com/luzzle/luzzle/internal/db"
	"github.com/luzzle/luzzle/internal/markdown"
	"github.com/luzzle/luzzle/internal/piece"
	"github.com/luzzle/luzzle/internal/schema"
	"github.com/luzzle/luzzle/internal/storage"
)

// readConcurrency bounds the file-read fan-out during the decision phase.
// The database apply phase is sequential.
const readConcurrency = 4

// Options controls one reconciliation run.
type Options struct {
	// Force disables the checksum short-circuit: every file is re-validated
	// and written through the mapper unconditionally.
	Force bool
	// Prune additionally removes asset files no surviving piece references.
	Prune bool
	// DryRun suppresses every mutation; decisions are logged instead.
	DryRun bool
}

// Failure records one per-item error. Item failures never abort the run.
type Failure struct {
	Path string
	Type string
	Err  error
}

// Report summarizes the decisions of one run.
type Report struct {
	Inserted     int
	Updated      int
	Unchanged    int
	Deleted      int
	PrunedAssets int
	Failures     []Failure
}

// Mutations returns the number of rows the run changed (or would change).
func (r *Report) Mutations() int {
	return r.Inserted + r.Updated + r.Deleted
}

// Engine reconciles the piece tree against the database. Each Run is a fresh
// pass; the engine itself holds no per-run state.
type Engine struct {
	db     *db.DB
	store  storage.Provider
	types  []*schema.Schema
	logger *slog.Logger
}

// NewEngine creates an engine over the given piece types. A nil type list
// means every registered type.
func NewEngine(database *db.DB, store storage.Provider, types []*schema.Schema, logger *slog.Logger) *Engine {
	if types == nil {
		types = schema.Types()
	}
	return &Engine{db: database, store: store, types: types, logger: logger}
}

// typedFile is a listed file resolved to its piece type.
type typedFile struct {
	file storage.FileInfo
	slug string
}

// Run discovers the tree, reconciles each type (sync then prune over the same
// listing snapshot), and optionally prunes orphaned assets afterwards.
func (e *Engine) Run(ctx context.Context, opts Options) (*Report, error) {
	listing, err := e.store.List("")
	if err != nil {
		return nil, fmt.Errorf("sync: list tree: %w", err)
	}

	perType := make(map[string][]typedFile)
	var assets []string
	for _, fi := range listing {
		if piece.IsAsset(fi.Path) {
			assets = append(assets, fi.Path)
			continue
		}
		if s, slug, ok := piece.Resolve(fi.Path); ok {
			perType[s.Type] = append(perType[s.Type], typedFile{file: fi, slug: slug})
		}
	}

	report := &Report{}
	for _, s := range e.types {
		if err := e.syncType(ctx, s, perType[s.Type], opts, report); err != nil {
			return nil, err
		}
	}

	// Asset prune runs strictly after every type's reconcile, so rows deleted
	// above no longer count as referencing their assets.
	if opts.Prune {
		if err := e.pruneAssets(assets, opts, report); err != nil {
			return nil, err
		}
	}

	return report, nil
}

// outcome is the per-file decision computed during the read phase.
type outcome struct {
	slug      string
	path      string
	sum       string
	unchanged bool
	vanished  bool
	doc       *markdown.Document
	err       error
}

// syncType reconciles one piece type: decide per file, apply, then prune rows
// whose file disappeared. Validation failures keep the prior row.
func (e *Engine) syncType(ctx context.Context, s *schema.Schema, files []typedFile, opts Options, report *Report) error {
	watermarks, err := e.db.Watermarks(s)
	if err != nil {
		return err
	}

	slugCount := make(map[string]int, len(files))
	for _, tf := range files {
		slugCount[tf.slug]++
		if slugCount[tf.slug] == 2 {
			e.logger.Warn("sync: duplicate slug, last file wins",
				slog.String("type", s.Type), slog.String("slug", tf.slug))
		}
	}

	// Decision phase: bounded fan-out for reads and validation. A file is
	// unchanged when its content checksum matches the one stored at the last
	// successful apply; mtimes are not trusted to order edits within their
	// granularity.
	outcomes := make([]outcome, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(readConcurrency)
	for i, tf := range files {
		i, tf := i, tf
		g.Go(func() error {
			o := outcome{slug: tf.slug, path: tf.file.Path}
			data, readErr := e.store.Read(tf.file.Path)
			switch {
			case errors.Is(readErr, apperr.ErrNotFound):
				// Deleted between listing and read; the prune pass below
				// treats it as an absent file.
				o.vanished = true
			case readErr != nil:
				o.err = readErr
			default:
				o.sum = checksum.Sum(data)
				cached, cacheErr := e.db.CacheGet(tf.file.Path)
				_, exists := watermarks[tf.slug]
				switch {
				case cacheErr != nil:
					o.err = cacheErr
				case exists && !opts.Force && cached == o.sum:
					o.unchanged = true
				default:
					o.doc, o.err = markdown.Decode(tf.slug, data, s)
				}
			}
			outcomes[i] = o
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
				return nil
			}
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	// Apply phase: sequential, in listing order.
	seen := make(map[string]struct{}, len(outcomes))
	for _, o := range outcomes {
		if o.vanished {
			continue
		}
		seen[o.slug] = struct{}{}

		switch {
		case o.err != nil:
			report.Failures = append(report.Failures, Failure{Path: o.path, Type: s.Type, Err: o.err})
			e.logger.Warn("sync: item failed",
				slog.String("type", s.Type),
				slog.String("path", o.path),
				slog.String("error", o.err.Error()))
		case o.unchanged:
			report.Unchanged++
		default:
			if err := e.apply(s, o, watermarks, opts, report); err != nil {
				report.Failures = append(report.Failures, Failure{Path: o.path, Type: s.Type, Err: err})
				e.logger.Warn("sync: apply failed",
					slog.String("type", s.Type),
					slog.String("path", o.path),
					slog.String("error", err.Error()))
			}
		}
	}

	// Prune phase: same listing snapshot, so a rename is observed as
	// delete-then-insert, never as an update.
	stale := make([]string, 0)
	for slug := range watermarks {
		if _, ok := seen[slug]; !ok {
			stale = append(stale, slug)
		}
	}
	if len(stale) > 0 && len(stale) == len(watermarks) {
		e.logger.Warn("sync: prune would remove every row of type",
			slog.String("type", s.Type), slog.Int("rows", len(stale)))
	}
	for _, slug := range stale {
		if opts.DryRun {
			e.logger.Info("sync: would delete", slog.String("type", s.Type), slog.String("slug", slug))
			report.Deleted++
			continue
		}
		if err := e.db.DeletePiece(s, slug); err != nil {
			report.Failures = append(report.Failures, Failure{Path: slug, Type: s.Type, Err: err})
			e.logger.Warn("sync: delete failed",
				slog.String("type", s.Type), slog.String("slug", slug), slog.String("error", err.Error()))
			continue
		}
		report.Deleted++
		e.logger.Info("sync: deleted", slog.String("type", s.Type), slog.String("slug", slug))
	}

	return nil
}

// apply inserts or updates one decided piece.
func (e *Engine) apply(s *schema.Schema, o outcome, watermarks map[string]int64, opts Options, report *Report) error {
	now := time.Now()

	if _, exists := watermarks[o.slug]; !exists {
		row, err := piece.Insertable(o.doc, s, now)
		if err != nil {
			return err
		}
		// Record the watermark so a duplicate slug later in the listing takes
		// the update path (last file wins).
		watermarks[o.slug] = now.UnixMilli()
		if opts.DryRun {
			e.logger.Info("sync: would insert", slog.String("type", s.Type), slog.String("slug", o.slug))
			report.Inserted++
			return nil
		}
		if err := e.db.InsertPiece(s, row); err != nil {
			return err
		}
		if err := e.db.CachePut(o.path, o.sum); err != nil {
			return err
		}
		report.Inserted++
		e.logger.Info("sync: inserted", slog.String("type", s.Type), slog.String("slug", o.slug))
		return nil
	}

	existing, err := e.db.GetPiece(s, o.slug)
	if err != nil {
		return err
	}
	changes, err := piece.Updatable(o.doc, s, existing, opts.Force, now)
	if err != nil {
		return err
	}
	if len(changes) == 0 {
		// Content differs byte-wise but maps to the same row; remember the
		// checksum so the next run short-circuits.
		report.Unchanged++
		if opts.DryRun {
			return nil
		}
		return e.db.CachePut(o.path, o.sum)
	}
	if opts.DryRun {
		e.logger.Info("sync: would update",
			slog.String("type", s.Type), slog.String("slug", o.slug), slog.Int("fields", len(changes)))
		report.Updated++
		return nil
	}
	if err := e.db.UpdatePiece(s, o.slug, changes); err != nil {
		return err
	}
	if err := e.db.CachePut(o.path, o.sum); err != nil {
		return err
	}
	report.Updated++
	e.logger.Info("sync: updated",
		slog.String("type", s.Type), slog.String("slug", o.slug), slog.Int("fields", len(changes)))
	return nil
}

var variantRe = regexp.MustCompile(`^(.+)\.w\d+\.[a-z0-9]+$`)

// pruneAssets deletes asset files referenced by no surviving piece. Generated
// variants survive as long as their source asset is still referenced.
func (e *Engine) pruneAssets(assets []string, opts Options, report *Report) error {
	refs, err := e.db.AssetRefs()
	if err != nil {
		return err
	}

	// Variants are named <stem>.w<width>.<format>; keep them when a
	// referenced asset shares the stem.
	refStems := make(map[string]struct{}, len(refs))
	for ref := range refs {
		refStems[stem(ref)] = struct{}{}
	}

	for _, p := range assets {
		if _, ok := refs[p]; ok {
			continue
		}
		if m := variantRe.FindStringSubmatch(path.Base(p)); m != nil {
			base := path.Join(path.Dir(p), m[1])
			if _, ok := refStems[base]; ok {
				continue
			}
		}
		if opts.DryRun {
			e.logger.Info("sync: would prune asset", slog.String("path", p))
			report.PrunedAssets++
			continue
		}
		if err := e.store.Delete(p); err != nil {
			report.Failures = append(report.Failures, Failure{Path: p, Err: err})
			e.logger.Warn("sync: asset prune failed", slog.String("path", p), slog.String("error", err.Error()))
			continue
		}
		report.PrunedAssets++
		e.logger.Info("sync: pruned asset", slog.String("path", p))
	}
	return nil
}

func stem(p string) string {
	base := path.Base(p)
	if i := strings.LastIndex(base, "."); i > 0 {
		base = base[:i]
	}
	return path.Join(path.Dir(p), base)
}
