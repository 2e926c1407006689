package article

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/aldomucciarone59-web/mute-magazine/media"
)

type memStore struct {
	mu        sync.Mutex
	articles  map[string]Article
	updateErr error
	deleteErr error
}

func newMemStore(articles ...Article) *memStore {
	s := &memStore{articles: make(map[string]Article)}
	for _, a := range articles {
		s.articles[a.ID] = a
	}
	return s
}

func (s *memStore) FindOne(_ context.Context, id string) (Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.articles[id]
	if !ok {
		return Article{}, ErrNotFound
	}
	return a, nil
}

func (s *memStore) InsertOne(_ context.Context, a Article) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.articles[a.ID]; ok {
		return ErrConflict
	}
	s.articles[a.ID] = a
	return nil
}

func (s *memStore) UpdateOne(_ context.Context, id string, a Article) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	if _, ok := s.articles[id]; !ok {
		return ErrNotFound
	}
	s.articles[id] = a
	return nil
}

func (s *memStore) DeleteOne(_ context.Context, id string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return 0, s.deleteErr
	}
	if _, ok := s.articles[id]; !ok {
		return 0, nil
	}
	delete(s.articles, id)
	return 1, nil
}

func (s *memStore) Find(_ context.Context, f Filter) ([]Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Article
	for _, a := range s.articles {
		if f.Category == "" || a.Category == f.Category {
			out = append(out, a)
		}
	}
	slices.SortFunc(out, func(a, b Article) int { return strings.Compare(b.Date, a.Date) })
	return out, nil
}

// fakeGateway records every delete call. URLs listed in fail return an error.
type fakeGateway struct {
	mu      sync.Mutex
	deletes []string
	uploads int
	fail    map[string]bool
}

func (g *fakeGateway) Recognizes(url string) bool {
	return strings.HasPrefix(url, "https://res.cloudinary.com/") && strings.Contains(url, "/upload/")
}

func (g *fakeGateway) Upload(_ context.Context, f media.File) (media.Upload, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.uploads++
	id := fmt.Sprintf("mute-magazine/up%d", g.uploads)
	return media.Upload{
		URL:          "https://res.cloudinary.com/x/image/upload/v1/" + id + ".png",
		PublicID:     id,
		Format:       "png",
		ResourceType: media.Image,
	}, nil
}

func (g *fakeGateway) Delete(_ context.Context, url string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.deletes = append(g.deletes, url)
	if !g.Recognizes(url) {
		return false, nil
	}
	if g.fail[url] {
		return false, errors.New("remote failure")
	}
	return true, nil
}

func (g *fakeGateway) Destroy(_ context.Context, ref media.Ref) (bool, error) {
	return true, nil
}

func (g *fakeGateway) deleted() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := slices.Clone(g.deletes)
	slices.Sort(out)
	return out
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
