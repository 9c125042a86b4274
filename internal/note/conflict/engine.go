package conflict

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gogotex/gonotes/internal/note"
	"github.com/gogotex/gonotes/pkg/logger"
	"github.com/gogotex/gonotes/pkg/metrics"
)

// Store is the versioned note store the engine writes through.
// SaveIfVersion must be atomic: it applies f and bumps the version only when
// the stored version still equals expectedVersion, and otherwise returns a
// *note.VersionMismatchError (or note.ErrNotFound).
type Store interface {
	Load(ctx context.Context, id string) (*note.Note, error)
	SaveIfVersion(ctx context.Context, id string, expectedVersion uint64, f note.Fields) (*note.Note, error)
}

// TagResolver maps a tag name to its canonical tag, creating it if absent.
type TagResolver interface {
	ResolveOrCreate(ctx context.Context, name string) (note.TagRef, error)
}

// Edit is one caller's proposed change to a note. ForceUpdate ignores
// ExpectedVersion.
type Edit struct {
	NoteID          string
	ExpectedVersion uint64
	Title           string
	Content         string
	Markdown        string
	Tags            []string
	Editor          string
}

// Engine detects and resolves write-write conflicts on notes. It holds no
// state between calls and is safe for concurrent use; mutual exclusion per
// version is provided by Store.SaveIfVersion.
type Engine struct {
	store Store
	tags  TagResolver
	now   func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the clock used to stamp UpdatedAt.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(store Store, tags TagResolver, opts ...Option) *Engine {
	e := &Engine{store: store, tags: tags, now: func() time.Time { return time.Now().UTC() }}
	for _, o := range opts {
		o(e)
	}
	return e
}

// CheckForConflicts reports how ed relates to the stored note. It never writes.
func (e *Engine) CheckForConflicts(ctx context.Context, ed Edit) (ConflictReport, error) {
	current, err := e.load(ctx, OpCheck, ed.NoteID)
	if err != nil {
		return ConflictReport{}, err
	}
	report := Detect(*current, ed.ExpectedVersion, ed.Title, ed.Content, ed.Tags)
	if report.HasConflict {
		metrics.ConflictChecks.WithLabelValues("conflict").Inc()
	} else {
		metrics.ConflictChecks.WithLabelValues("clean").Inc()
	}
	return report, nil
}

// UpdateWithConflictCheck writes ed only on top of ed.ExpectedVersion.
// A stale version yields a *VersionConflictError and no write.
func (e *Engine) UpdateWithConflictCheck(ctx context.Context, ed Edit) (*note.Note, error) {
	current, err := e.load(ctx, OpCheckedWrite, ed.NoteID)
	if err != nil {
		e.recordUpdate("checked", err)
		return nil, err
	}
	report := Detect(*current, ed.ExpectedVersion, ed.Title, ed.Content, ed.Tags)
	if report.HasConflict {
		logger.With("note", ed.NoteID, "expected", ed.ExpectedVersion, "actual", report.ActualVersion, "editor", ed.Editor).
			Infof("checked update rejected: conflicting fields %v", report.Fields())
		err := &VersionConflictError{NoteID: ed.NoteID, Expected: ed.ExpectedVersion, Actual: report.ActualVersion, Report: &report}
		e.recordUpdate("checked", err)
		return nil, err
	}

	updated, err := e.save(ctx, OpCheckedWrite, ed, ed.ExpectedVersion)
	if err != nil {
		var mismatch *note.VersionMismatchError
		if errors.As(err, &mismatch) {
			err = &VersionConflictError{NoteID: ed.NoteID, Expected: ed.ExpectedVersion, Actual: mismatch.Actual}
		}
		e.recordUpdate("checked", err)
		return nil, err
	}
	e.recordUpdate("checked", nil)
	return updated, nil
}

// ForceUpdate writes ed on top of whatever version is stored (last writer
// wins). It never reports a version conflict.
func (e *Engine) ForceUpdate(ctx context.Context, ed Edit) (*note.Note, error) {
	current, err := e.load(ctx, OpForcedWrite, ed.NoteID)
	if err != nil {
		e.recordUpdate("forced", err)
		return nil, err
	}
	if ed.ExpectedVersion != 0 && current.Version != ed.ExpectedVersion {
		logger.With("note", ed.NoteID, "overwritten", current.Version, "editor", ed.Editor).
			Infof("forced update overriding newer version")
	}

	updated, err := e.save(ctx, OpForcedWrite, ed, current.Version)
	if err != nil {
		var mismatch *note.VersionMismatchError
		if errors.As(err, &mismatch) {
			// another writer landed between load and save
			err = newError(OpForcedWrite, ed.NoteID, ErrPersistence, mismatch)
		}
		e.recordUpdate("forced", err)
		return nil, err
	}
	e.recordUpdate("forced", nil)
	return updated, nil
}

func (e *Engine) load(ctx context.Context, op Operation, id string) (*note.Note, error) {
	if err := ctx.Err(); err != nil {
		return nil, newError(op, id, ErrCancelled, err)
	}
	n, err := e.store.Load(ctx, id)
	if err != nil {
		return nil, e.classify(op, id, err)
	}
	return n, nil
}

// save resolves tags and writes through the store's compare-and-swap.
// A *note.VersionMismatchError is returned unwrapped for the caller to map.
func (e *Engine) save(ctx context.Context, op Operation, ed Edit, expected uint64) (*note.Note, error) {
	refs, err := e.resolveTags(ctx, ed.Tags)
	if err != nil {
		return nil, e.classify(op, ed.NoteID, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, newError(op, ed.NoteID, ErrCancelled, err)
	}

	f := note.Fields{
		Title:           ed.Title,
		Content:         ed.Content,
		MarkdownContent: ed.Markdown,
		Tags:            refs,
		Editor:          ed.Editor,
		UpdatedAt:       e.now(),
	}
	updated, err := e.store.SaveIfVersion(ctx, ed.NoteID, expected, f)
	if err != nil {
		var mismatch *note.VersionMismatchError
		if errors.As(err, &mismatch) {
			return nil, mismatch
		}
		return nil, e.classify(op, ed.NoteID, err)
	}
	logger.With("note", ed.NoteID, "version", updated.Version, "editor", ed.Editor).Debugf("%s committed", op)
	return updated, nil
}

// resolveTags resolves each distinct non-empty name concurrently, keeping
// first-seen order.
func (e *Engine) resolveTags(ctx context.Context, names []string) ([]note.TagRef, error) {
	distinct := make([]string, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		distinct = append(distinct, n)
	}

	refs := make([]note.TagRef, len(distinct))
	g, gctx := errgroup.WithContext(ctx)
	for i, name := range distinct {
		i, name := i, name
		g.Go(func() error {
			ref, err := e.tags.ResolveOrCreate(gctx, name)
			if err != nil {
				metrics.TagResolutions.WithLabelValues("error").Inc()
				return err
			}
			metrics.TagResolutions.WithLabelValues("ok").Inc()
			refs[i] = ref
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return refs, nil
}

func (e *Engine) classify(op Operation, id string, err error) error {
	switch {
	case errors.Is(err, note.ErrNotFound):
		return newError(op, id, ErrNotFound, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return newError(op, id, ErrCancelled, err)
	default:
		logger.With("note", id, "op", op).Errorf("store failure: %v", err)
		return newError(op, id, ErrPersistence, err)
	}
}

func (e *Engine) recordUpdate(mode string, err error) {
	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrVersionConflict):
		outcome = "conflict"
	case errors.Is(err, ErrNotFound):
		outcome = "not_found"
	case errors.Is(err, ErrCancelled):
		outcome = "cancelled"
	default:
		outcome = "persistence"
	}
	metrics.NoteUpdates.WithLabelValues(mode, outcome).Inc()
}
