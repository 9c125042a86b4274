package conflict

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/gogotex/gonotes/internal/note"
	"github.com/gogotex/gonotes/internal/note/repository"
	"github.com/gogotex/gonotes/internal/tags"
	"github.com/gogotex/gonotes/pkg/metrics"
)

var fixedNow = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

type fixture struct {
	repo   *repository.MemoryRepo
	tags   *tags.MemoryResolver
	engine *Engine
	id     string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := repository.NewMemoryRepo()
	res := tags.NewMemoryResolver()
	ctx := context.Background()

	ref, err := res.ResolveOrCreate(ctx, "test-tag")
	require.NoError(t, err)
	id, err := repo.Create(ctx, &note.Note{
		Title:      "Original Title",
		Content:    "Original Content",
		Tags:       []note.TagRef{ref},
		LastEditor: "editor1",
	})
	require.NoError(t, err)

	return &fixture{
		repo:   repo,
		tags:   res,
		engine: NewEngine(repo, res, WithClock(func() time.Time { return fixedNow })),
		id:     id,
	}
}

func (f *fixture) load(t *testing.T) *note.Note {
	t.Helper()
	n, err := f.repo.Load(context.Background(), f.id)
	require.NoError(t, err)
	return n
}

func TestCheckForConflictsStaleVersion(t *testing.T) {
	f := newFixture(t)
	report, err := f.engine.CheckForConflicts(context.Background(), Edit{
		NoteID:          f.id,
		ExpectedVersion: 0,
		Title:           "New Title",
		Content:         "New Content",
		Tags:            []string{"test-tag"},
		Editor:          "editor2",
	})
	require.NoError(t, err)
	require.True(t, report.HasConflict)
	require.True(t, report.TitleConflict)
	require.True(t, report.ContentConflict)
	require.False(t, report.TagConflict)
	require.Equal(t, uint64(1), report.ActualVersion)
	require.Equal(t, uint64(0), report.ExpectedVersion)
}

func TestCheckForConflictsIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ed := Edit{NoteID: f.id, ExpectedVersion: 0, Title: "t", Content: "c", Tags: []string{"x"}, Editor: "e"}

	first, err := f.engine.CheckForConflicts(context.Background(), ed)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		again, err := f.engine.CheckForConflicts(context.Background(), ed)
		require.NoError(t, err)
		require.Equal(t, first, again)
	}
	n := f.load(t)
	require.Equal(t, uint64(1), n.Version)
	require.Equal(t, "Original Title", n.Title)
	// checks never create tags
	require.Equal(t, 1, f.tags.Len())
}

func TestCheckForConflictsNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.CheckForConflicts(context.Background(), Edit{NoteID: "missing", ExpectedVersion: 1})
	require.ErrorIs(t, err, ErrNotFound)
	require.False(t, IsRetryable(err))
}

func TestUpdateWithConflictCheckSucceeds(t *testing.T) {
	f := newFixture(t)
	before := testutil.ToFloat64(metrics.NoteUpdates.WithLabelValues("checked", "ok"))

	updated, err := f.engine.UpdateWithConflictCheck(context.Background(), Edit{
		NoteID:          f.id,
		ExpectedVersion: 1,
		Title:           "Updated Title",
		Content:         "Updated Content",
		Markdown:        "# Updated",
		Tags:            []string{"new-tag"},
		Editor:          "editor2",
	})
	require.NoError(t, err)
	require.Equal(t, uint64(2), updated.Version)
	require.Equal(t, "Updated Title", updated.Title)
	require.Equal(t, "Updated Content", updated.Content)
	require.Equal(t, "# Updated", updated.MarkdownContent)
	require.Equal(t, "editor2", updated.LastEditor)
	require.Equal(t, fixedNow, updated.UpdatedAt)
	require.Equal(t, []string{"new-tag"}, updated.TagNames())

	stored := f.load(t)
	require.Equal(t, updated, stored)
	require.Equal(t, before+1, testutil.ToFloat64(metrics.NoteUpdates.WithLabelValues("checked", "ok")))
}

func TestUpdateWithConflictCheckStaleVersionDoesNotWrite(t *testing.T) {
	f := newFixture(t)
	before := testutil.ToFloat64(metrics.NoteUpdates.WithLabelValues("checked", "conflict"))

	_, err := f.engine.UpdateWithConflictCheck(context.Background(), Edit{
		NoteID:          f.id,
		ExpectedVersion: 0,
		Title:           "Updated Title",
		Content:         "Updated Content",
		Tags:            []string{"new-tag"},
		Editor:          "editor2",
	})
	require.ErrorIs(t, err, ErrVersionConflict)
	vc, ok := AsVersionConflict(err)
	require.True(t, ok)
	require.Equal(t, uint64(0), vc.Expected)
	require.Equal(t, uint64(1), vc.Actual)
	require.NotNil(t, vc.Report)
	require.True(t, vc.Report.TagConflict)
	require.False(t, IsRetryable(err))

	n := f.load(t)
	require.Equal(t, uint64(1), n.Version)
	require.Equal(t, "Original Title", n.Title)
	require.Equal(t, "Original Content", n.Content)
	require.Equal(t, "editor1", n.LastEditor)
	require.Equal(t, []string{"test-tag"}, n.TagNames())
	// rejected edits do not create tags either
	require.Equal(t, 1, f.tags.Len())
	require.Equal(t, before+1, testutil.ToFloat64(metrics.NoteUpdates.WithLabelValues("checked", "conflict")))
}

func TestUpdateWithConflictCheckNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.UpdateWithConflictCheck(context.Background(), Edit{NoteID: "missing", ExpectedVersion: 1})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSequentialCheckedUpdatesAdvanceByOne(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for v := uint64(1); v <= 5; v++ {
		n, err := f.engine.UpdateWithConflictCheck(ctx, Edit{NoteID: f.id, ExpectedVersion: v, Title: "t", Editor: "e"})
		require.NoError(t, err)
		require.Equal(t, v+1, n.Version)
	}
}

func TestConcurrentCheckedUpdatesSingleWinner(t *testing.T) {
	f := newFixture(t)
	const writers = 10
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.engine.UpdateWithConflictCheck(context.Background(), Edit{
				NoteID:          f.id,
				ExpectedVersion: 1,
				Title:           "racer",
				Tags:            []string{"test-tag"},
				Editor:          "e",
			})
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		require.ErrorIs(t, err, ErrVersionConflict)
		vc, ok := AsVersionConflict(err)
		require.True(t, ok)
		require.Equal(t, uint64(1), vc.Expected)
		require.Equal(t, uint64(2), vc.Actual)
	}
	require.Equal(t, 1, wins)
	require.Equal(t, uint64(2), f.load(t).Version)
}

func TestForceUpdateIgnoresVersion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	updated, err := f.engine.ForceUpdate(ctx, Edit{
		NoteID:  f.id,
		Title:   "Forced Title",
		Content: "Forced Content",
		Tags:    []string{"forced-tag"},
		Editor:  "editor2",
	})
	require.NoError(t, err)
	require.Equal(t, uint64(2), updated.Version)
	require.Equal(t, "Forced Title", updated.Title)
	require.Equal(t, "editor2", updated.LastEditor)
	require.Equal(t, []string{"forced-tag"}, updated.TagNames())

	// a wildly stale expected version is still overridden
	again, err := f.engine.ForceUpdate(ctx, Edit{NoteID: f.id, ExpectedVersion: 1, Title: "Again", Editor: "editor3"})
	require.NoError(t, err)
	require.Equal(t, uint64(3), again.Version)
	require.Equal(t, "Again", f.load(t).Title)
}

func TestForceUpdateNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.ForceUpdate(context.Background(), Edit{NoteID: "missing"})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRemovedTagSurvives(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	orig := f.load(t).Tags[0]

	_, err := f.engine.UpdateWithConflictCheck(ctx, Edit{NoteID: f.id, ExpectedVersion: 1, Tags: []string{"new-tag"}, Editor: "e"})
	require.NoError(t, err)

	ref, err := f.tags.ResolveOrCreate(ctx, "test-tag")
	require.NoError(t, err)
	require.Equal(t, orig, ref)
}

func TestUpdateDeduplicatesTags(t *testing.T) {
	f := newFixture(t)
	n, err := f.engine.UpdateWithConflictCheck(context.Background(), Edit{
		NoteID:          f.id,
		ExpectedVersion: 1,
		Tags:            []string{"b", "a", "b", "", "test-tag"},
		Editor:          "e",
	})
	require.NoError(t, err)
	require.Equal(t, []string{"b", "a", "test-tag"}, n.TagNames())
	require.Equal(t, f.load(t).Tags[2].ID, n.Tags[2].ID)
}

func TestCancelledContext(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.engine.CheckForConflicts(ctx, Edit{NoteID: f.id, ExpectedVersion: 1})
	require.ErrorIs(t, err, ErrCancelled)
	require.ErrorIs(t, err, context.Canceled)

	_, err = f.engine.UpdateWithConflictCheck(ctx, Edit{NoteID: f.id, ExpectedVersion: 1, Title: "x"})
	require.ErrorIs(t, err, ErrCancelled)
	_, err = f.engine.ForceUpdate(ctx, Edit{NoteID: f.id, Title: "x"})
	require.ErrorIs(t, err, ErrCancelled)

	require.Equal(t, uint64(1), f.load(t).Version)
}

// stubStore lets tests inject store failures.
type stubStore struct {
	n       *note.Note
	loadErr error
	saveErr error
	saves   int
}

func (s *stubStore) Load(ctx context.Context, id string) (*note.Note, error) {
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return s.n.Clone(), nil
}

func (s *stubStore) SaveIfVersion(ctx context.Context, id string, expected uint64, f note.Fields) (*note.Note, error) {
	s.saves++
	if s.saveErr != nil {
		return nil, s.saveErr
	}
	return s.n.Apply(f), nil
}

type failingResolver struct{ err error }

func (r failingResolver) ResolveOrCreate(ctx context.Context, name string) (note.TagRef, error) {
	return note.TagRef{}, r.err
}

func TestPersistenceFailureIsRetryableAndNotRetried(t *testing.T) {
	boom := errors.New("disk on fire")
	store := &stubStore{n: &note.Note{ID: "n1", Version: 1}, saveErr: boom}
	e := NewEngine(store, tags.NewMemoryResolver())

	_, err := e.UpdateWithConflictCheck(context.Background(), Edit{NoteID: "n1", ExpectedVersion: 1, Editor: "e"})
	require.ErrorIs(t, err, ErrPersistence)
	require.ErrorIs(t, err, boom)
	require.True(t, IsRetryable(err))
	require.Equal(t, 1, store.saves)

	_, err = e.ForceUpdate(context.Background(), Edit{NoteID: "n1", Editor: "e"})
	require.ErrorIs(t, err, ErrPersistence)
	require.Equal(t, 2, store.saves)
}

func TestLoadFailureIsPersistence(t *testing.T) {
	store := &stubStore{loadErr: errors.New("connection reset")}
	e := NewEngine(store, tags.NewMemoryResolver())
	_, err := e.CheckForConflicts(context.Background(), Edit{NoteID: "n1"})
	require.ErrorIs(t, err, ErrPersistence)
}

func TestForcedUpdateLosingCASIsPersistence(t *testing.T) {
	store := &stubStore{
		n:       &note.Note{ID: "n1", Version: 4},
		saveErr: &note.VersionMismatchError{ID: "n1", Expected: 4, Actual: 5},
	}
	e := NewEngine(store, tags.NewMemoryResolver())

	_, err := e.ForceUpdate(context.Background(), Edit{NoteID: "n1", Editor: "e"})
	require.ErrorIs(t, err, ErrPersistence)
	require.NotErrorIs(t, err, ErrVersionConflict)
	require.True(t, IsRetryable(err))
}

func TestCheckedUpdateLosingCASIsVersionConflict(t *testing.T) {
	store := &stubStore{
		n:       &note.Note{ID: "n1", Version: 4},
		saveErr: &note.VersionMismatchError{ID: "n1", Expected: 4, Actual: 5},
	}
	e := NewEngine(store, tags.NewMemoryResolver())

	_, err := e.UpdateWithConflictCheck(context.Background(), Edit{NoteID: "n1", ExpectedVersion: 4, Editor: "e"})
	vc, ok := AsVersionConflict(err)
	require.True(t, ok)
	require.Equal(t, uint64(4), vc.Expected)
	require.Equal(t, uint64(5), vc.Actual)
	require.Nil(t, vc.Report)
}

func TestTagResolutionFailureAbortsWrite(t *testing.T) {
	store := &stubStore{n: &note.Note{ID: "n1", Version: 1}}
	e := NewEngine(store, failingResolver{err: errors.New("tag store down")})

	_, err := e.UpdateWithConflictCheck(context.Background(), Edit{NoteID: "n1", ExpectedVersion: 1, Tags: []string{"x"}, Editor: "e"})
	require.ErrorIs(t, err, ErrPersistence)
	require.Equal(t, 0, store.saves)
}
