package mongostore

import (
	"encoding/json"
	"fmt"
	"strconv"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/aldomucciarone59-web/mute-magazine/article"
	"github.com/aldomucciarone59-web/mute-magazine/content"
)

// document is the stored shape of an article. Content is written as the
// serialized document; older records may hold it as an embedded document.
type document struct {
	ID       string        `bson:"id"`
	Title    string        `bson:"title"`
	Subtitle string        `bson:"subtitle"`
	Author   string        `bson:"author"`
	Category string        `bson:"category"`
	Date     string        `bson:"date"`
	Cover    string        `bson:"cover"`
	Content  bson.RawValue `bson:"content"`
}

func fromArticle(a article.Article) (document, error) {
	raw, err := json.Marshal(a.Content)
	if err != nil {
		return document{}, fmt.Errorf("encode content: %w", err)
	}
	t, data, err := bson.MarshalValue(string(raw))
	if err != nil {
		return document{}, fmt.Errorf("encode content: %w", err)
	}
	return document{
		ID:       a.ID,
		Title:    a.Title,
		Subtitle: a.Subtitle,
		Author:   a.Author,
		Category: a.Category,
		Date:     a.Date,
		Cover:    a.Cover,
		Content:  bson.RawValue{Type: t, Value: data},
	}, nil
}

func (s *Store) toArticle(doc document) article.Article {
	body, err := contentOf(doc.Content)
	if err != nil {
		s.logger.Warn("stored content not parseable", "id", doc.ID, "error", err)
	}
	return article.Article{
		ID:       doc.ID,
		Title:    doc.Title,
		Subtitle: doc.Subtitle,
		Author:   doc.Author,
		Category: doc.Category,
		Date:     doc.Date,
		Cover:    doc.Cover,
		Content:  body,
	}
}

// contentOf decodes stored content in either form. Unparseable content yields
// an empty document and the error.
func contentOf(v bson.RawValue) (content.Document, error) {
	switch v.Type {
	case bsontype.String:
		return content.Decode(v.StringValue())
	case bsontype.EmbeddedDocument:
		ext, err := bson.MarshalExtJSON(v.Document(), false, false)
		if err != nil {
			return content.Document{}, fmt.Errorf("content to json: %w", err)
		}
		return content.Decode(ext)
	case 0, bsontype.Null, bsontype.Undefined:
		return content.Document{}, nil
	default:
		return content.Document{}, fmt.Errorf("%w: stored as %s", content.ErrNotDocument, v.Type)
	}
}

func decimalFloat(d primitive.Decimal128) (float64, error) {
	return strconv.ParseFloat(d.String(), 64)
}
