package magazine

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/aldomucciarone59-web/mute-magazine/article"
	"github.com/aldomucciarone59-web/mute-magazine/content"
)

// Store wraps a SQLite database and implements article.Store.
type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// NewStore opens (or creates) the SQLite database at path, ensures the data
// directory exists, and creates the schema. Content that fails to decode is
// reported to logger, or to the default logger when it is nil.
func NewStore(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// Writers wait on SQLITE_BUSY instead of failing.
	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA busy_timeout=5000;
		PRAGMA synchronous=NORMAL;
	`); err != nil {
		db.Close()
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	s := &Store{db: db, path: path, logger: logger}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS articles (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    subtitle TEXT NOT NULL DEFAULT '',
    author TEXT NOT NULL,
    category TEXT NOT NULL,
    date TEXT NOT NULL,
    cover TEXT NOT NULL DEFAULT '',
    content TEXT NOT NULL DEFAULT ''
);
`)
	return err
}

const articleColumns = `id, title, subtitle, author, category, date, cover, content`

type scanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanArticle(row scanner) (article.Article, error) {
	var a article.Article
	var raw string
	if err := row.Scan(&a.ID, &a.Title, &a.Subtitle, &a.Author, &a.Category, &a.Date, &a.Cover, &raw); err != nil {
		return article.Article{}, err
	}
	doc, err := content.Decode(raw)
	if err != nil {
		s.logger.Warn("stored content not parseable", "id", a.ID, "error", err)
	}
	a.Content = doc
	return a, nil
}

func encodeContent(doc content.Document) (string, error) {
	b, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("encode content: %w", err)
	}
	return string(b), nil
}

// FindOne returns the article with id.
func (s *Store) FindOne(ctx context.Context, id string) (article.Article, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+articleColumns+` FROM articles WHERE id = ?`, id)
	a, err := s.scanArticle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return article.Article{}, article.ErrNotFound
	}
	if err != nil {
		return article.Article{}, fmt.Errorf("find article: %w", err)
	}
	return a, nil
}

// InsertOne stores a new article. A duplicate id yields article.ErrConflict.
func (s *Store) InsertOne(ctx context.Context, a article.Article) error {
	body, err := encodeContent(a.Content)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO articles (`+articleColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Title, a.Subtitle, a.Author, a.Category, a.Date, a.Cover, body)
	if isConstraint(err) {
		return article.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert article: %w", err)
	}
	return nil
}

// UpdateOne replaces the stored fields of the article with id.
func (s *Store) UpdateOne(ctx context.Context, id string, a article.Article) error {
	body, err := encodeContent(a.Content)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
UPDATE articles SET title = ?, subtitle = ?, author = ?, category = ?, date = ?, cover = ?, content = ?
WHERE id = ?`, a.Title, a.Subtitle, a.Author, a.Category, a.Date, a.Cover, body, id)
	if err != nil {
		return fmt.Errorf("update article: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update article: %w", err)
	}
	if n == 0 {
		return article.ErrNotFound
	}
	return nil
}

// DeleteOne removes the article with id and returns the number of rows removed.
func (s *Store) DeleteOne(ctx context.Context, id string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM articles WHERE id = ?`, id)
	if err != nil {
		return 0, fmt.Errorf("delete article: %w", err)
	}
	return res.RowsAffected()
}

// Find returns the articles matching f ordered by date descending.
func (s *Store) Find(ctx context.Context, f article.Filter) ([]article.Article, error) {
	var rows *sql.Rows
	var err error
	if f.Category == "" {
		rows, err = s.db.QueryContext(ctx, `SELECT `+articleColumns+` FROM articles ORDER BY date DESC, rowid DESC`)
	} else {
		rows, err = s.db.QueryContext(ctx, `SELECT `+articleColumns+` FROM articles WHERE category = ? ORDER BY date DESC, rowid DESC`, f.Category)
	}
	if err != nil {
		return nil, fmt.Errorf("find articles: %w", err)
	}
	defer rows.Close()

	articles := []article.Article{}
	for rows.Next() {
		a, err := s.scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		articles = append(articles, a)
	}
	return articles, rows.Err()
}

// Stats reports article counts per category and the database file sizes.
func (s *Store) Stats(ctx context.Context) (article.Stats, error) {
	st := article.Stats{Driver: "sqlite", ByCategory: make(map[string]int64)}

	rows, err := s.db.QueryContext(ctx, `SELECT category, COUNT(*) FROM articles GROUP BY category`)
	if err != nil {
		return st, fmt.Errorf("count articles: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var category string
		var n int64
		if err := rows.Scan(&category, &n); err != nil {
			return st, fmt.Errorf("count articles: %w", err)
		}
		st.ByCategory[category] = n
		st.Articles += n
	}
	if err := rows.Err(); err != nil {
		return st, fmt.Errorf("count articles: %w", err)
	}

	var pages, pageSize, free int64
	if err := s.db.QueryRowContext(ctx, `PRAGMA page_count`).Scan(&pages); err != nil {
		return st, fmt.Errorf("page count: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `PRAGMA page_size`).Scan(&pageSize); err != nil {
		return st, fmt.Errorf("page size: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `PRAGMA freelist_count`).Scan(&free); err != nil {
		return st, fmt.Errorf("freelist count: %w", err)
	}
	st.DataSize = (pages - free) * pageSize
	for _, p := range []string{s.path, s.path + "-wal"} {
		if fi, err := os.Stat(p); err == nil {
			st.StorageSize += fi.Size()
		}
	}
	return st, nil
}

func isConstraint(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
