// Package tags resolves tag names to canonical tag entities. Tags are shared
// across notes and are never deleted when a note stops referencing them.
package tags

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gogotex/gonotes/internal/note"
)

var (
	ErrEmptyName = errors.New("tag name is empty")
)

// Tag is the persisted tag entity.
type Tag struct {
	ID        string    `json:"id" bson:"id"`
	Name      string    `json:"name" bson:"name"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
}

// Ref returns the reference stored on notes.
func (t Tag) Ref() note.TagRef { return note.TagRef{ID: t.ID, Name: t.Name} }

func newTagID() string { return "tag_" + uuid.NewString() }

// MemoryResolver keeps tags in process memory. Names are case-sensitive.
type MemoryResolver struct {
	mu     sync.Mutex
	byName map[string]Tag
}

func NewMemoryResolver() *MemoryResolver {
	return &MemoryResolver{byName: make(map[string]Tag)}
}

func (m *MemoryResolver) ResolveOrCreate(ctx context.Context, name string) (note.TagRef, error) {
	if name == "" {
		return note.TagRef{}, ErrEmptyName
	}
	if err := ctx.Err(); err != nil {
		return note.TagRef{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byName[name]
	if !ok {
		t = Tag{ID: newTagID(), Name: name, CreatedAt: time.Now().UTC()}
		m.byName[name] = t
	}
	return t.Ref(), nil
}

// Len returns the number of known tags.
func (m *MemoryResolver) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byName)
}
