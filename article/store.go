package article

import (
	"context"
	"errors"
)

var (
	ErrNotFound   = errors.New("article not found")
	ErrConflict   = errors.New("article already exists")
	ErrValidation = errors.New("invalid article")
)

// Filter narrows Find. An empty Category matches every article.
type Filter struct {
	Category string
}

// Store persists articles keyed by Article.ID. Implementations return
// ErrNotFound when no article matches and ErrConflict on a duplicate id.
// Find returns the newest articles first.
type Store interface {
	FindOne(ctx context.Context, id string) (Article, error)
	InsertOne(ctx context.Context, a Article) error
	UpdateOne(ctx context.Context, id string, a Article) error
	DeleteOne(ctx context.Context, id string) (int64, error)
	Find(ctx context.Context, f Filter) ([]Article, error)
}

// Stats summarizes a store for the dashboard.
type Stats struct {
	Driver      string           `json:"driver"`
	Articles    int64            `json:"articles"`
	ByCategory  map[string]int64 `json:"byCategory"`
	DataSize    int64            `json:"dataSize"`
	StorageSize int64            `json:"storageSize"`
	IndexSize   int64            `json:"indexSize"`
}

// StatsProvider is implemented by stores that can report Stats.
type StatsProvider interface {
	Stats(ctx context.Context) (Stats, error)
}
