package content

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotDocument is returned by Decode when the input is not a content
// document in either of its forms.
var ErrNotDocument = errors.New("content is not a document")

// Parse normalizes raw to a Document. It accepts a Document, its serialized
// form as string or bytes, or an already decoded JSON value. Missing or
// unparseable content yields an empty document.
func Parse(raw any) Document {
	doc, _ := Decode(raw)
	return doc
}

// Decode is Parse with the parse problem reported. The returned document is
// always usable: on error it is empty.
func Decode(raw any) (Document, error) {
	switch v := raw.(type) {
	case nil:
		return Document{}, nil
	case Document:
		return v, nil
	case *Document:
		if v == nil {
			return Document{}, nil
		}
		return *v, nil
	case string:
		return decodeBytes([]byte(v))
	case []byte:
		return decodeBytes(v)
	case json.RawMessage:
		return decodeBytes(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return Document{}, fmt.Errorf("%w: %T: %v", ErrNotDocument, raw, err)
		}
		return decodeBytes(b)
	}
}

// decodeBytes handles the structured object, a JSON string wrapping it, and
// empty input.
func decodeBytes(data []byte) (Document, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return Document{}, nil
	}
	if data[0] == '"' {
		var inner string
		if err := json.Unmarshal(data, &inner); err != nil {
			return Document{}, fmt.Errorf("%w: %v", ErrNotDocument, err)
		}
		inner = string(bytes.TrimSpace([]byte(inner)))
		if inner == "" {
			return Document{}, nil
		}
		if inner[0] == '"' {
			return Document{}, fmt.Errorf("%w: doubly serialized", ErrNotDocument)
		}
		return decodeBytes([]byte(inner))
	}
	if data[0] != '{' {
		return Document{}, fmt.Errorf("%w: starts with %q", ErrNotDocument, data[0])
	}

	var w wireDocument
	if err := json.Unmarshal(data, &w); err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrNotDocument, err)
	}
	doc := Document{Time: w.Time, Version: w.Version}
	if len(w.Blocks) > 0 {
		doc.Blocks = make([]Block, 0, len(w.Blocks))
		for _, raw := range w.Blocks {
			doc.Blocks = append(doc.Blocks, decodeBlock(raw))
		}
	}
	return doc, nil
}
