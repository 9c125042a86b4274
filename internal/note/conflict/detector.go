package conflict

import (
	"github.com/gogotex/gonotes/internal/note"
)

// ConflictReport describes whether an edit based on ExpectedVersion collides
// with the stored note, and which fields are implicated.
type ConflictReport struct {
	HasConflict     bool     `json:"hasConflict"`
	TitleConflict   bool     `json:"titleConflict"`
	ContentConflict bool     `json:"contentConflict"`
	TagConflict     bool     `json:"tagConflict"`
	CurrentTitle    string   `json:"currentTitle"`
	IncomingTitle   string   `json:"incomingTitle"`
	CurrentContent  string   `json:"currentContent"`
	IncomingContent string   `json:"incomingContent"`
	CurrentTags     []string `json:"currentTags"`
	IncomingTags    []string `json:"incomingTags"`
	ExpectedVersion uint64   `json:"expectedVersion"`
	ActualVersion   uint64   `json:"actualVersion"`
}

// Fields lists the names of the conflicting fields.
func (r ConflictReport) Fields() []string {
	var out []string
	if r.TitleConflict {
		out = append(out, "title")
	}
	if r.ContentConflict {
		out = append(out, "content")
	}
	if r.TagConflict {
		out = append(out, "tags")
	}
	return out
}

// Detect compares an edit against the just-loaded current note.
//
// The version is the only conflict signal: a mismatch flags title and content
// whether or not their text differs. Tags are additionally gated on a set
// difference, so resubmitting unchanged tags after an unrelated bump does not
// flag them.
func Detect(current note.Note, expectedVersion uint64, incomingTitle, incomingContent string, incomingTagNames []string) ConflictReport {
	hasConflict := expectedVersion != current.Version
	currentTags := current.TagNames()
	incoming := append([]string{}, incomingTagNames...)

	return ConflictReport{
		HasConflict:     hasConflict,
		TitleConflict:   hasConflict,
		ContentConflict: hasConflict,
		TagConflict:     hasConflict && !sameNameSet(currentTags, incoming),
		CurrentTitle:    current.Title,
		IncomingTitle:   incomingTitle,
		CurrentContent:  current.Content,
		IncomingContent: incomingContent,
		CurrentTags:     currentTags,
		IncomingTags:    incoming,
		ExpectedVersion: expectedVersion,
		ActualVersion:   current.Version,
	}
}

func sameNameSet(a, b []string) bool {
	as := make(map[string]struct{}, len(a))
	for _, n := range a {
		as[n] = struct{}{}
	}
	bs := make(map[string]struct{}, len(b))
	for _, n := range b {
		if _, ok := as[n]; !ok {
			return false
		}
		bs[n] = struct{}{}
	}
	return len(as) == len(bs)
}
