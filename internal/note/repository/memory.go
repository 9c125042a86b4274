package repository

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/gogotex/gonotes/internal/note"
)

var (
	ErrAlreadyExists = errors.New("note already exists")
)

// MemoryRepo is an in-memory repository used when no database is configured
// and in unit tests. SaveIfVersion compares and swaps under the write lock.
type MemoryRepo struct {
	mu    sync.RWMutex
	store map[string]*note.Note
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{store: make(map[string]*note.Note)}
}

func (m *MemoryRepo) Create(ctx context.Context, n *note.Note) (string, error) {
	prepareCreate(n)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[n.ID]; ok {
		return "", ErrAlreadyExists
	}
	m.store[n.ID] = n.Clone()
	return n.ID, nil
}

func (m *MemoryRepo) Load(ctx context.Context, id string) (*note.Note, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if n, ok := m.store[id]; ok {
		return n.Clone(), nil
	}
	return nil, note.ErrNotFound
}

// List returns all notes ordered by creation time.
func (m *MemoryRepo) List(ctx context.Context) ([]*note.Note, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*note.Note, 0, len(m.store))
	for _, n := range m.store {
		out = append(out, n.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryRepo) SaveIfVersion(ctx context.Context, id string, expectedVersion uint64, f note.Fields) (*note.Note, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.store[id]
	if !ok {
		return nil, note.ErrNotFound
	}
	if cur.Version != expectedVersion {
		return nil, &note.VersionMismatchError{ID: id, Expected: expectedVersion, Actual: cur.Version}
	}
	next := cur.Apply(f)
	m.store[id] = next
	return next.Clone(), nil
}

func (m *MemoryRepo) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[id]; !ok {
		return note.ErrNotFound
	}
	delete(m.store, id)
	return nil
}
