package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/gogotex/gonotes/internal/note"
)

// Repository is the versioned note store. Create stores a note at version 1;
// SaveIfVersion is the compare-and-swap used by the conflict engine.
type Repository interface {
	Create(ctx context.Context, n *note.Note) (string, error)
	Load(ctx context.Context, id string) (*note.Note, error)
	List(ctx context.Context) ([]*note.Note, error)
	SaveIfVersion(ctx context.Context, id string, expectedVersion uint64, f note.Fields) (*note.Note, error)
	Delete(ctx context.Context, id string) error
}

// prepareCreate fills the id, initial version and creation stamps shared by
// all backends.
func prepareCreate(n *note.Note) {
	if n.ID == "" {
		n.ID = "note_" + uuid.NewString()
	}
	n.Version = 1
	if n.Tags == nil {
		n.Tags = []note.TagRef{}
	}
	now := time.Now().UTC()
	n.CreatedAt = now
	n.UpdatedAt = now
}
