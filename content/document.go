// Package content models the block-structured article body produced by the
// admin editor. A Document is an ordered list of typed blocks; block types the
// package does not know are kept verbatim so that saving an article never
// drops content it cannot render.
package content

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// Block type names as written by the editor.
const (
	TypeHeader    = "header"
	TypeParagraph = "paragraph"
	TypeList      = "list"
	TypeImage     = "image"
)

// List styles.
const (
	ListOrdered   = "ordered"
	ListUnordered = "unordered"
)

// Document is an article body. Block order is render order.
type Document struct {
	Time    int64
	Blocks  []Block
	Version string
}

// Block is one unit of content. Data holds one of *Header, *Paragraph,
// *List, *Image or *Unknown.
type Block struct {
	ID    string
	Data  Data
	Tunes json.RawMessage
}

// Data is the closed set of block payloads.
type Data interface {
	Type() string
	isData()
}

// Header is a heading of the given level (1-6).
type Header struct {
	Text  string `json:"text"`
	Level int    `json:"level"`
}

// Paragraph holds inline HTML text.
type Paragraph struct {
	Text string `json:"text"`
}

// List is an ordered or unordered list of inline HTML items.
type List struct {
	Style string   `json:"style"`
	Items []string `json:"items"`
}

// Image embeds an uploaded image, GIF or video.
type Image struct {
	File           File   `json:"file"`
	Caption        string `json:"caption,omitempty"`
	WithBorder     bool   `json:"withBorder,omitempty"`
	Stretched      bool   `json:"stretched,omitempty"`
	WithBackground bool   `json:"withBackground,omitempty"`
}

// File describes the hosted file behind an Image block. Type is "video" or
// "gif" for non-still media.
type File struct {
	URL          string `json:"url"`
	Type         string `json:"type,omitempty"`
	Mime         string `json:"mime,omitempty"`
	PublicID     string `json:"publicId,omitempty"`
	ResourceType string `json:"resourceType,omitempty"`
}

// Unknown is a block whose type is not recognized, or whose data did not
// match the shape of its type. Raw is the complete block as it was read; it is
// written back unchanged apart from insignificant whitespace.
type Unknown struct {
	Kind string
	Raw  json.RawMessage
}

func (*Header) Type() string    { return TypeHeader }
func (*Paragraph) Type() string { return TypeParagraph }
func (*List) Type() string      { return TypeList }
func (*Image) Type() string     { return TypeImage }
func (u *Unknown) Type() string { return u.Kind }

func (*Header) isData()    {}
func (*Paragraph) isData() {}
func (*List) isData()      {}
func (*Image) isData()     {}
func (*Unknown) isData()   {}

// IsVideo reports whether the image block embeds a video.
func (i *Image) IsVideo() bool {
	if i.File.Type == "video" || i.File.ResourceType == "video" {
		return true
	}
	return strings.HasPrefix(i.File.Mime, "video/")
}

// MediaURL returns the URL of the file an image block points at, or "" for
// any other block. Unknown blocks of type image are inspected leniently so a
// malformed image block still reports its file.
func (b Block) MediaURL() string {
	switch d := b.Data.(type) {
	case *Image:
		return d.File.URL
	case *Unknown:
		if d.Kind == TypeImage {
			return gjson.GetBytes(d.Raw, "data.file.url").String()
		}
	}
	return ""
}

// IsEmpty reports whether the document has no blocks.
func (d Document) IsEmpty() bool {
	return len(d.Blocks) == 0
}

// MediaURLs returns the file URL of every image block in order, including
// duplicates and URLs that are not hosted media.
func (d Document) MediaURLs() []string {
	var urls []string
	for _, b := range d.Blocks {
		if u := b.MediaURL(); u != "" {
			urls = append(urls, u)
		}
	}
	return urls
}

type wireDocument struct {
	Time    int64             `json:"time,omitempty"`
	Blocks  []json.RawMessage `json:"blocks"`
	Version string            `json:"version,omitempty"`
}

type wireBlock struct {
	ID    string          `json:"id,omitempty"`
	Type  string          `json:"type"`
	Data  json.RawMessage `json:"data"`
	Tunes json.RawMessage `json:"tunes,omitempty"`
}

// MarshalJSON writes the structured form of the document. Blocks is always
// an array.
func (d Document) MarshalJSON() ([]byte, error) {
	w := wireDocument{
		Time:    d.Time,
		Blocks:  make([]json.RawMessage, 0, len(d.Blocks)),
		Version: d.Version,
	}
	for i, b := range d.Blocks {
		raw, err := b.MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("block %d: %w", i, err)
		}
		w.Blocks = append(w.Blocks, raw)
	}
	return json.Marshal(w)
}

// UnmarshalJSON accepts the structured object or its serialized form (a JSON
// string holding the object). Anything that is not a document decodes to an
// empty document; use Decode to find out why.
func (d *Document) UnmarshalJSON(data []byte) error {
	doc, _ := decodeBytes(data)
	*d = doc
	return nil
}

// MarshalJSON writes the block in editor form. Unknown blocks are written
// exactly as read.
func (b Block) MarshalJSON() ([]byte, error) {
	if u, ok := b.Data.(*Unknown); ok {
		if len(u.Raw) == 0 {
			return nil, fmt.Errorf("unknown block %q has no raw form", u.Kind)
		}
		return u.Raw, nil
	}
	if b.Data == nil {
		return nil, fmt.Errorf("block %q has no data", b.ID)
	}
	data, err := json.Marshal(b.Data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireBlock{
		ID:    b.ID,
		Type:  b.Data.Type(),
		Data:  data,
		Tunes: b.Tunes,
	})
}

// UnmarshalJSON never fails on well-formed JSON: a block that cannot be read
// as its declared type becomes an Unknown block carrying the raw input.
func (b *Block) UnmarshalJSON(raw []byte) error {
	*b = decodeBlock(raw)
	return nil
}

func decodeBlock(raw json.RawMessage) Block {
	keep := append(json.RawMessage(nil), bytes.TrimSpace(raw)...)
	var w wireBlock
	if err := json.Unmarshal(keep, &w); err != nil {
		return Block{Data: &Unknown{Raw: keep}}
	}
	unknown := Block{ID: w.ID, Data: &Unknown{Kind: w.Type, Raw: keep}}

	var data Data
	switch w.Type {
	case TypeHeader:
		data = &Header{}
	case TypeParagraph:
		data = &Paragraph{}
	case TypeList:
		data = &List{}
	case TypeImage:
		data = &Image{}
	default:
		return unknown
	}
	if len(w.Data) == 0 || bytes.Equal(w.Data, []byte("null")) {
		return unknown
	}
	if err := json.Unmarshal(w.Data, data); err != nil {
		return unknown
	}
	return Block{ID: w.ID, Data: data, Tunes: w.Tunes}
}
