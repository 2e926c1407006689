// Package article implements the article lifecycle: validation, persistence
// through a Store, and keeping the media host consistent with what saved
// articles reference.
package article

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/aldomucciarone59-web/mute-magazine/content"
)

// DateLayout is the format of Article.Date.
const DateLayout = "2006-01-02"

// Manifesto is both the category and the fixed id of the manifesto article.
const Manifesto = "manifesto"

// Category is a section of the magazine.
type Category struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// Categories lists the sections articles can be filed under, in menu order.
var Categories = []Category{
	{Key: "cultura", Label: "Cultura"},
	{Key: "societa", Label: "Società"},
	{Key: "riflessioni", Label: "Riflessioni"},
	{Key: "curiosita", Label: "Curiosità"},
}

// IsCategory reports whether key names a section.
func IsCategory(key string) bool {
	for _, c := range Categories {
		if c.Key == key {
			return true
		}
	}
	return false
}

// CategoryLabel returns the display label for key, or key itself.
func CategoryLabel(key string) string {
	for _, c := range Categories {
		if c.Key == key {
			return c.Label
		}
	}
	if key == Manifesto {
		return "Manifesto"
	}
	return key
}

// Article is a published piece. Content unmarshals from either the structured
// document or its serialized string form.
type Article struct {
	ID       string           `json:"id"`
	Title    string           `json:"title" validate:"required"`
	Subtitle string           `json:"subtitle"`
	Author   string           `json:"author" validate:"required"`
	Category string           `json:"category" validate:"required,category"`
	Date     string           `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Cover    string           `json:"cover"`
	Content  content.Document `json:"content"`
}

// IsManifesto reports whether a is the manifesto singleton.
func (a Article) IsManifesto() bool {
	return a.Category == Manifesto
}

// Path returns the public path of the article page.
func (a Article) Path() string {
	return "/articoli/" + a.Category + "/" + a.ID + "/"
}

// Fields holds the values for a new article. Content is read with
// content.Decode: a body that is present but not a document is rejected.
type Fields struct {
	Title    string          `json:"title"`
	Subtitle string          `json:"subtitle"`
	Author   string          `json:"author"`
	Category string          `json:"category"`
	Date     string          `json:"date"`
	Cover    string          `json:"cover"`
	Content  json.RawMessage `json:"content"`
}

func (f Fields) article() (Article, error) {
	doc, err := decodeContent(f.Content)
	if err != nil {
		return Article{}, err
	}
	return Article{
		Title:    strings.TrimSpace(f.Title),
		Subtitle: strings.TrimSpace(f.Subtitle),
		Author:   strings.TrimSpace(f.Author),
		Category: strings.TrimSpace(f.Category),
		Date:     strings.TrimSpace(f.Date),
		Cover:    strings.TrimSpace(f.Cover),
		Content:  doc,
	}, nil
}

// Patch holds the fields of an update. Nil fields, and a missing or null
// content, keep their stored value.
type Patch struct {
	Title    *string         `json:"title"`
	Subtitle *string         `json:"subtitle"`
	Author   *string         `json:"author"`
	Category *string         `json:"category"`
	Date     *string         `json:"date"`
	Cover    *string         `json:"cover"`
	Content  json.RawMessage `json:"content"`
}

// Apply returns a with the patch merged in. The id never changes. Content
// that is not a document yields a *ValidationError and a is left as is.
func (p Patch) Apply(a Article) (Article, error) {
	var doc *content.Document
	if !isNull(p.Content) {
		d, err := decodeContent(p.Content)
		if err != nil {
			return a, err
		}
		doc = &d
	}
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	set(&a.Title, p.Title)
	set(&a.Subtitle, p.Subtitle)
	set(&a.Author, p.Author)
	set(&a.Category, p.Category)
	set(&a.Date, p.Date)
	set(&a.Cover, p.Cover)
	if doc != nil {
		a.Content = *doc
	}
	return a, nil
}

// RawContent returns doc in the form Fields and Patch accept.
func RawContent(doc content.Document) json.RawMessage {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil
	}
	return raw
}

func isNull(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) == 0 || bytes.Equal(t, []byte("null"))
}

func decodeContent(raw json.RawMessage) (content.Document, error) {
	if isNull(raw) {
		return content.Document{}, nil
	}
	doc, err := content.Decode(raw)
	if err != nil {
		return content.Document{}, invalid("content", "is not a valid document")
	}
	return doc, nil
}

// ValidationError lists the invalid fields of an article by JSON name.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + " " + e.Fields[k]
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, ", ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(field, msg string) error {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		key := fl.Field().String()
		return IsCategory(key) || key == Manifesto
	})
	return v
}

// Validate checks the required fields, the category and the date format. The
// manifesto category is reserved for the article with the manifesto id.
func Validate(a Article) error {
	err := validate.Struct(a)
	fields := make(map[string]string)
	if verrs, ok := err.(validator.ValidationErrors); ok {
		for _, fe := range verrs {
			fields[fe.Field()] = message(fe)
		}
	} else if err != nil {
		return fmt.Errorf("validate article: %w", err)
	}
	if _, bad := fields["category"]; !bad && a.ID != "" && (a.ID == Manifesto) != a.IsManifesto() {
		fields["category"] = "is reserved for the manifesto"
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "category":
		return "is not a recognized category"
	case "datetime":
		return "must be a YYYY-MM-DD date"
	default:
		return "is invalid"
	}
}
