package conflict

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gogotex/gonotes/internal/note"
)

func current() note.Note {
	return note.Note{
		ID:      "n1",
		Title:   "Original Title",
		Content: "Original Content",
		Tags:    []note.TagRef{{ID: "t1", Name: "test-tag"}, {ID: "t2", Name: "other"}},
		Version: 3,
	}
}

func TestDetect(t *testing.T) {
	cases := []struct {
		name     string
		expected uint64
		tags     []string
		conflict bool
		tagFlag  bool
	}{
		{name: "matching version", expected: 3, tags: []string{"brand-new"}},
		{name: "stale version same tags", expected: 2, tags: []string{"test-tag", "other"}, conflict: true},
		{name: "stale version reordered tags", expected: 2, tags: []string{"other", "test-tag"}, conflict: true},
		{name: "stale version duplicate tags", expected: 2, tags: []string{"other", "test-tag", "other"}, conflict: true},
		{name: "stale version changed tags", expected: 2, tags: []string{"test-tag"}, conflict: true, tagFlag: true},
		{name: "stale version superset", expected: 2, tags: []string{"test-tag", "other", "x"}, conflict: true, tagFlag: true},
		{name: "future version no tags", expected: 9, tags: nil, conflict: true, tagFlag: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := Detect(current(), tc.expected, "Original Title", "Original Content", tc.tags)
			assert.Equal(t, tc.conflict, r.HasConflict)
			// title/content follow the version, not the text
			assert.Equal(t, tc.conflict, r.TitleConflict)
			assert.Equal(t, tc.conflict, r.ContentConflict)
			assert.Equal(t, tc.tagFlag, r.TagConflict)
			assert.Equal(t, tc.expected, r.ExpectedVersion)
			assert.Equal(t, uint64(3), r.ActualVersion)
		})
	}
}

func TestDetectReportsValuesAsGiven(t *testing.T) {
	tags := []string{"b", "a", "b"}
	r := Detect(current(), 3, "New Title", "New Content", tags)

	assert.False(t, r.HasConflict)
	assert.Empty(t, r.Fields())
	assert.Equal(t, "Original Title", r.CurrentTitle)
	assert.Equal(t, "New Title", r.IncomingTitle)
	assert.Equal(t, "Original Content", r.CurrentContent)
	assert.Equal(t, "New Content", r.IncomingContent)
	assert.Equal(t, []string{"test-tag", "other"}, r.CurrentTags)
	assert.Equal(t, []string{"b", "a", "b"}, r.IncomingTags)

	// the report does not alias the caller's slice
	tags[0] = "changed"
	assert.Equal(t, "b", r.IncomingTags[0])
}

func TestReportFields(t *testing.T) {
	r := Detect(current(), 1, "x", "y", []string{"z"})
	assert.Equal(t, []string{"title", "content", "tags"}, r.Fields())

	r = Detect(current(), 1, "x", "y", []string{"test-tag", "other"})
	assert.Equal(t, []string{"title", "content"}, r.Fields())
}
