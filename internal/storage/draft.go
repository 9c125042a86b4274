package storage

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Draft is an edit rejected with a version conflict, kept so a human can
// compare it with the stored note and resubmit it later.
type Draft struct {
	NoteID          string    `json:"noteId"`
	Editor          string    `json:"editor"`
	ExpectedVersion uint64    `json:"expectedVersion"`
	ActualVersion   uint64    `json:"actualVersion"`
	Title           string    `json:"title"`
	Content         string    `json:"content"`
	Markdown        string    `json:"markdown,omitempty"`
	Tags            []string  `json:"tags"`
	RejectedAt      time.Time `json:"rejectedAt"`
}

// DraftArchiver stores rejected drafts and returns the key they can be
// fetched by.
type DraftArchiver interface {
	SaveDraft(ctx context.Context, d Draft) (string, error)
}

// DraftReader is implemented by archives that can hand drafts back.
type DraftReader interface {
	LoadDraft(ctx context.Context, key string) (*Draft, error)
	DraftURL(ctx context.Context, key string, expires time.Duration) (string, error)
}

// DraftKey builds the object key: drafts/<note>/<expected>-<actual>-<editor>-<unix nanos>.json
func DraftKey(d Draft) string {
	editor := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		}
		return '_'
	}, d.Editor)
	if editor == "" {
		editor = "anonymous"
	}
	return fmt.Sprintf("drafts/%s/%d-%d-%s-%d.json", d.NoteID, d.ExpectedVersion, d.ActualVersion, editor, d.RejectedAt.UnixNano())
}
