package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/gogotex/gonotes/internal/note"
	"github.com/gogotex/gonotes/internal/note/conflict"
	"github.com/gogotex/gonotes/internal/note/markdown"
	"github.com/gogotex/gonotes/internal/note/repository"
	"github.com/gogotex/gonotes/internal/tags"
)

var (
	ErrNotFound = errors.New("not found")
)

// Service defines the note operations used by the handler layer: plain CRUD
// plus the conflict engine's checked and forced updates.
type Service interface {
	Create(ctx context.Context, in NewNote) (*note.Note, error)
	Get(ctx context.Context, id string) (*note.Note, error)
	List(ctx context.Context) ([]*note.Note, error)
	Delete(ctx context.Context, id string) error

	CheckForConflicts(ctx context.Context, ed conflict.Edit) (conflict.ConflictReport, error)
	UpdateWithConflictCheck(ctx context.Context, ed conflict.Edit) (*note.Note, error)
	ForceUpdate(ctx context.Context, ed conflict.Edit) (*note.Note, error)
}

// NewNote is the input for creating a note at version 1.
type NewNote struct {
	Title    string
	Content  string
	Markdown string
	Tags     []string
	Editor   string
}

// NewMemoryService returns a Service backed by in-memory notes and tags.
func NewMemoryService() Service {
	return New(repository.NewMemoryRepo(), tags.NewMemoryResolver())
}

// New wires a Service over any repository and tag resolver.
func New(repo repository.Repository, resolver conflict.TagResolver, opts ...conflict.Option) Service {
	return &noteService{
		repo:   repo,
		tags:   resolver,
		engine: conflict.NewEngine(repo, resolver, opts...),
	}
}

type noteService struct {
	repo   repository.Repository
	tags   conflict.TagResolver
	engine *conflict.Engine
}

func (s *noteService) Create(ctx context.Context, in NewNote) (*note.Note, error) {
	md, err := markdown.Derive(in.Content, in.Markdown)
	if err != nil {
		return nil, err
	}
	refs := make([]note.TagRef, 0, len(in.Tags))
	seen := map[string]bool{}
	for _, name := range in.Tags {
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		ref, err := s.tags.ResolveOrCreate(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("create note: %w", err)
		}
		refs = append(refs, ref)
	}
	n := &note.Note{
		Title:           in.Title,
		Content:         in.Content,
		MarkdownContent: md,
		Tags:            refs,
		LastEditor:      in.Editor,
	}
	if _, err := s.repo.Create(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

func (s *noteService) Get(ctx context.Context, id string) (*note.Note, error) {
	n, err := s.repo.Load(ctx, id)
	if err != nil {
		if errors.Is(err, note.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return n, nil
}

func (s *noteService) List(ctx context.Context) ([]*note.Note, error) {
	return s.repo.List(ctx)
}

func (s *noteService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, note.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func (s *noteService) CheckForConflicts(ctx context.Context, ed conflict.Edit) (conflict.ConflictReport, error) {
	return s.engine.CheckForConflicts(ctx, ed)
}

func (s *noteService) UpdateWithConflictCheck(ctx context.Context, ed conflict.Edit) (*note.Note, error) {
	if err := withMarkdown(&ed); err != nil {
		return nil, err
	}
	return s.engine.UpdateWithConflictCheck(ctx, ed)
}

func (s *noteService) ForceUpdate(ctx context.Context, ed conflict.Edit) (*note.Note, error) {
	if err := withMarkdown(&ed); err != nil {
		return nil, err
	}
	return s.engine.ForceUpdate(ctx, ed)
}

func withMarkdown(ed *conflict.Edit) error {
	md, err := markdown.Derive(ed.Content, ed.Markdown)
	if err != nil {
		return err
	}
	ed.Markdown = md
	return nil
}
