package note

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned by stores when no note exists for an id.
	ErrNotFound = errors.New("note not found")
)

// VersionMismatchError is returned by SaveIfVersion when the stored version
// is no longer the one the write was conditioned on.
type VersionMismatchError struct {
	ID       string
	Expected uint64
	Actual   uint64
}

func (e *VersionMismatchError) Error() string {
	return fmt.Sprintf("note %s: version mismatch (expected %d, stored %d)", e.ID, e.Expected, e.Actual)
}

// TagRef references a tag entity by its canonical id. Notes never own tags.
type TagRef struct {
	ID   string `json:"id" bson:"id"`
	Name string `json:"name" bson:"name"`
}

// Note is the shared, versioned record edited by collaborators.
// Version starts at 1 and grows by exactly one per successful write.
type Note struct {
	ID              string    `json:"id" bson:"id"`
	Title           string    `json:"title" bson:"title"`
	Content         string    `json:"content" bson:"content"`
	MarkdownContent string    `json:"markdownContent,omitempty" bson:"markdownContent,omitempty"`
	Tags            []TagRef  `json:"tags" bson:"tags"`
	Version         uint64    `json:"version" bson:"version"`
	LastEditor      string    `json:"lastEditor" bson:"lastEditor"`
	CreatedAt       time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt" bson:"updatedAt"`
}

// TagNames returns the names of the note's tags in stored order.
func (n *Note) TagNames() []string {
	out := make([]string, 0, len(n.Tags))
	for _, t := range n.Tags {
		out = append(out, t.Name)
	}
	return out
}

// Clone returns a deep copy so stores can hand out values callers may mutate.
func (n *Note) Clone() *Note {
	c := *n
	if n.Tags != nil {
		c.Tags = append([]TagRef(nil), n.Tags...)
	}
	return &c
}

// Fields is the field set written by a successful update.
type Fields struct {
	Title           string
	Content         string
	MarkdownContent string
	Tags            []TagRef
	Editor          string
	UpdatedAt       time.Time
}

// Apply returns a copy of n carrying f and the next version.
func (n *Note) Apply(f Fields) *Note {
	c := n.Clone()
	c.Title = f.Title
	c.Content = f.Content
	c.MarkdownContent = f.MarkdownContent
	c.Tags = append([]TagRef{}, f.Tags...)
	c.LastEditor = f.Editor
	c.UpdatedAt = f.UpdatedAt
	c.Version = n.Version + 1
	return c
}
