// Package mongostore persists articles in a MongoDB collection.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/aldomucciarone59-web/mute-magazine/article"
)

const (
	DefaultDatabase = "mute_magazine"
	Collection      = "articles"
)

// Store implements article.Store. Articles are addressed by their id field,
// never by the internal _id.
type Store struct {
	client *mongo.Client // set when the store owns the connection
	db     *mongo.Database
	coll   *mongo.Collection
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger for content that fails to decode.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New returns a store over the articles collection of db.
func New(db *mongo.Database, opts ...Option) *Store {
	s := &Store{
		db:     db,
		coll:   db.Collection(Collection),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open connects to uri, verifies the connection and ensures the indexes.
func Open(ctx context.Context, uri, database string, opts ...Option) (*Store, error) {
	if database == "" {
		database = DefaultDatabase
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	s := New(client.Database(database), opts...)
	s.client = client
	if err := s.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}

// EnsureIndexes creates the unique index on id.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
	})
	if err != nil {
		return fmt.Errorf("create indexes: %w", err)
	}
	return nil
}

// Close disconnects the client if the store opened it.
func (s *Store) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}

func (s *Store) FindOne(ctx context.Context, id string) (article.Article, error) {
	var doc document
	err := s.coll.FindOne(ctx, bson.M{"id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return article.Article{}, article.ErrNotFound
	}
	if err != nil {
		return article.Article{}, fmt.Errorf("find article: %w", err)
	}
	return s.toArticle(doc), nil
}

func (s *Store) InsertOne(ctx context.Context, a article.Article) error {
	doc, err := fromArticle(a)
	if err != nil {
		return err
	}
	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return article.ErrConflict
		}
		return fmt.Errorf("insert article: %w", err)
	}
	return nil
}

func (s *Store) UpdateOne(ctx context.Context, id string, a article.Article) error {
	doc, err := fromArticle(a)
	if err != nil {
		return err
	}
	doc.ID = id
	res, err := s.coll.UpdateOne(ctx, bson.M{"id": id}, bson.M{"$set": doc})
	if err != nil {
		return fmt.Errorf("update article: %w", err)
	}
	if res.MatchedCount == 0 {
		return article.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteOne(ctx context.Context, id string) (int64, error) {
	res, err := s.coll.DeleteOne(ctx, bson.M{"id": id})
	if err != nil {
		return 0, fmt.Errorf("delete article: %w", err)
	}
	return res.DeletedCount, nil
}

func (s *Store) Find(ctx context.Context, f article.Filter) ([]article.Article, error) {
	filter := bson.M{}
	if f.Category != "" {
		filter["category"] = f.Category
	}
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: -1}, {Key: "_id", Value: -1}})
	cur, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find articles: %w", err)
	}
	var docs []document
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode articles: %w", err)
	}
	articles := make([]article.Article, 0, len(docs))
	for _, doc := range docs {
		articles = append(articles, s.toArticle(doc))
	}
	return articles, nil
}

// Stats reports the article counts and the database sizes from dbStats.
func (s *Store) Stats(ctx context.Context) (article.Stats, error) {
	st := article.Stats{Driver: "mongo", ByCategory: make(map[string]int64)}

	var raw bson.M
	if err := s.db.RunCommand(ctx, bson.D{{Key: "dbStats", Value: 1}}).Decode(&raw); err != nil {
		return st, fmt.Errorf("db stats: %w", err)
	}
	st.DataSize = toInt64(raw["dataSize"])
	st.StorageSize = toInt64(raw["storageSize"])
	st.IndexSize = toInt64(raw["indexSize"])

	cur, err := s.coll.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.D{{Key: "_id", Value: "$category"}, {Key: "n", Value: bson.D{{Key: "$sum", Value: 1}}}}}},
	})
	if err != nil {
		return st, fmt.Errorf("count articles: %w", err)
	}
	var groups []struct {
		Category string `bson:"_id"`
		N        int64  `bson:"n"`
	}
	if err := cur.All(ctx, &groups); err != nil {
		return st, fmt.Errorf("count articles: %w", err)
	}
	for _, g := range groups {
		st.ByCategory[g.Category] = g.N
		st.Articles += g.N
	}
	return st, nil
}

// toInt64 converts the numeric types dbStats returns.
func toInt64(v any) int64 {
	switch n := v.(type) {
	case int32:
		return int64(n)
	case int64:
		return n
	case float64:
		return int64(n)
	case primitive.Decimal128:
		f, err := decimalFloat(n)
		if err != nil {
			return 0
		}
		return int64(f)
	default:
		return 0
	}
}
