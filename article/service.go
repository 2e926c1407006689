package article

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aldomucciarone59-web/mute-magazine/content"
	"github.com/aldomucciarone59-web/mute-magazine/draft"
	"github.com/aldomucciarone59-web/mute-magazine/media"
)

// Service runs article mutations and keeps hosted media in step with them.
//
// Media calls are best-effort. They are ordered so that a failure leaves at
// worst an orphaned remote object, never a saved article pointing at a
// deleted one.
type Service struct {
	store       Store
	media       media.Gateway
	drafts      draft.Tracker
	logger      *slog.Logger
	concurrency int
	now         func() time.Time
	newID       func() string

	tasks sync.WaitGroup
}

// Option configures a Service.
type Option func(*Service)

// WithTracker sets the pending-upload tracker (default in-memory).
func WithTracker(t draft.Tracker) Option {
	return func(s *Service) {
		s.drafts = t
	}
}

// WithLogger sets the logger for media cleanup outcomes.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithConcurrency bounds parallel media deletions (default 4).
func WithConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithClock sets the time source for default dates and draft sweeps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithIDGenerator replaces uuid v4 ids.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) {
		s.newID = fn
	}
}

// NewService returns a Service persisting to store and managing media
// through gw.
func NewService(store Store, gw media.Gateway, opts ...Option) *Service {
	s := &Service{
		store:       store,
		media:       gw,
		logger:      slog.Default(),
		concurrency: 4,
		now:         time.Now,
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.drafts == nil {
		s.drafts = draft.NewMemory()
	}
	return s
}

// Media returns the gateway the service deletes through.
func (s *Service) Media() media.Gateway { return s.media }

// SaveResult is the outcome of Create and Update. Cleanup delivers one
// report once the media no longer referenced by the saved article has been
// deleted in the background.
type SaveResult struct {
	Article Article
	Cleanup <-chan CleanupReport
}

// DeleteResult is the outcome of Delete.
type DeleteResult struct {
	DeletedCount int64 `json:"deletedCount"`
	MediaDeleted int   `json:"mediaDeleted"`
}

// MediaReferences returns the hosted media a owns: the cover and every image
// block, each once.
func (s *Service) MediaReferences(a Article) []string {
	refs, err := content.References(a.Cover, a.Content, s.media.Recognizes)
	if err != nil {
		s.logger.Warn("article content not parseable", "id", a.ID, "error", err)
	}
	return refs
}

// Get returns the article with id.
func (s *Service) Get(ctx context.Context, id string) (Article, error) {
	a, err := s.store.FindOne(ctx, id)
	if err != nil {
		return Article{}, fmt.Errorf("find article %s: %w", id, err)
	}
	return a, nil
}

// List returns the articles in category, or all of them when it is empty.
func (s *Service) List(ctx context.Context, category string) ([]Article, error) {
	if category != "" && !IsCategory(category) && category != Manifesto {
		return nil, invalid("category", "is not a recognized category")
	}
	articles, err := s.store.Find(ctx, Filter{Category: category})
	if err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}
	return articles, nil
}

// Create validates and persists a new article. Uploads of the session's
// NewDraft draft that the article does not reference are deleted afterwards.
func (s *Service) Create(ctx context.Context, f Fields, session string) (SaveResult, error) {
	a, err := f.article()
	if err != nil {
		return SaveResult{}, err
	}
	if a.Date == "" {
		a.Date = s.now().Format(DateLayout)
	}
	if a.IsManifesto() {
		a.ID = Manifesto
	} else {
		a.ID = s.newID()
	}

	if err := Validate(a); err != nil {
		return SaveResult{}, err
	}
	if err := s.store.InsertOne(ctx, a); err != nil {
		return SaveResult{}, fmt.Errorf("insert article: %w", err)
	}

	orphans := s.settleDraft(ctx, session, NewDraft, a)
	return SaveResult{Article: a, Cleanup: s.cleanup(ctx, a.ID, orphans)}, nil
}

// Update merges p into the stored article and persists it. Only after the
// write succeeds are the hosted objects the old state referenced and the new
// state does not deleted, in a background task.
func (s *Service) Update(ctx context.Context, id string, p Patch, session string) (SaveResult, error) {
	old, err := s.store.FindOne(ctx, id)
	if err != nil {
		return SaveResult{}, fmt.Errorf("find article %s: %w", id, err)
	}

	candidate, err := p.Apply(old)
	if err != nil {
		return SaveResult{}, err
	}
	candidate.ID = old.ID
	if err := Validate(candidate); err != nil {
		return SaveResult{}, err
	}

	if err := s.store.UpdateOne(ctx, id, candidate); err != nil {
		return SaveResult{}, fmt.Errorf("update article: %w", err)
	}

	removed := unreferenced(s.MediaReferences(old), s.MediaReferences(candidate))
	removed = append(removed, s.settleDraft(ctx, session, id, candidate)...)
	return SaveResult{Article: candidate, Cleanup: s.cleanup(ctx, id, removed)}, nil
}

// Delete removes the article and every hosted object it references. Media
// deletions run concurrently and one failure does not stop the others; the
// record is removed however many succeed. An absent article deletes no media.
func (s *Service) Delete(ctx context.Context, id string) (DeleteResult, error) {
	a, err := s.store.FindOne(ctx, id)
	if err != nil {
		return DeleteResult{}, fmt.Errorf("find article %s: %w", id, err)
	}

	// Once media deletion starts the record must go too.
	ctx = context.WithoutCancel(ctx)

	report := s.deleteAll(ctx, s.MediaReferences(a))
	s.logReport("article media deleted", id, report)

	n, err := s.store.DeleteOne(ctx, id)
	if err != nil {
		return DeleteResult{MediaDeleted: report.Deleted}, fmt.Errorf("delete article: %w", err)
	}
	if n == 0 {
		return DeleteResult{MediaDeleted: report.Deleted}, fmt.Errorf("delete article %s: %w", id, ErrNotFound)
	}
	return DeleteResult{DeletedCount: n, MediaDeleted: report.Deleted}, nil
}

// unreferenced returns the URLs of old that are not in current, by URL or by
// hosted reference.
func unreferenced(old, current []string) []string {
	keep := make(map[string]bool, len(current)*2)
	for _, u := range current {
		keep[u] = true
		if ref, ok := media.ParseRef(u); ok {
			keep[ref.String()] = true
		}
	}
	var out []string
	for _, u := range old {
		if keep[u] {
			continue
		}
		if ref, ok := media.ParseRef(u); ok && keep[ref.String()] {
			continue
		}
		out = append(out, u)
	}
	return out
}
