package media

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	MaxImageSize = 10 << 20 // 10MB, GIFs included
	MaxVideoSize = 50 << 20 // 50MB
)

var (
	ErrEmpty       = errors.New("media: empty file")
	ErrTooLarge    = errors.New("media: file too large")
	ErrUnsupported = errors.New("media: unsupported file type")
	ErrInvalid     = errors.New("media: invalid image data")
)

// decodable lists the raster formats whose header is checked before upload.
var decodable = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
	"image/bmp":  true,
	"image/tiff": true,
}

// File is an upload candidate held in memory.
type File struct {
	Name string
	MIME string // declared content type, may be empty
	Data []byte
}

// Size returns the file length in bytes.
func (f File) Size() int64 { return int64(len(f.Data)) }

// ContentType returns the declared MIME type without parameters. A missing or
// generic declaration is replaced by the type sniffed from the data.
func (f File) ContentType() string {
	ct := baseType(f.MIME)
	if ct == "" || ct == "application/octet-stream" {
		ct = baseType(mimetype.Detect(f.Data).String())
	}
	return ct
}

// Kind classifies the file by its content type.
func (f File) Kind() ResourceType {
	return Classify(f.ContentType())
}

func baseType(ct string) string {
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.ToLower(strings.TrimSpace(ct))
}

// Classify maps a MIME type to the resource type it is stored under.
func Classify(mime string) ResourceType {
	ct := baseType(mime)
	switch {
	case strings.HasPrefix(ct, "video/"):
		return Video
	case strings.HasPrefix(ct, "image/"):
		return Image
	default:
		return Raw
	}
}

// MaxSize returns the size ceiling for a resource type, or 0 when the type
// is not accepted.
func MaxSize(rt ResourceType) int64 {
	switch rt {
	case Image:
		return MaxImageSize
	case Video:
		return MaxVideoSize
	default:
		return 0
	}
}

// Validate checks f before any network call. Raw files are rejected, sizes
// are held to the ceiling of their kind and raster image headers must decode.
func Validate(f File) error {
	if len(f.Data) == 0 {
		return ErrEmpty
	}
	ct := f.ContentType()
	kind := Classify(ct)
	limit := MaxSize(kind)
	if limit == 0 {
		return fmt.Errorf("%w: %s", ErrUnsupported, ct)
	}
	if f.Size() > limit {
		return fmt.Errorf("%w: %s is %s, max %s", ErrTooLarge, kind,
			humanize.IBytes(uint64(f.Size())), humanize.IBytes(uint64(limit)))
	}
	if decodable[ct] {
		if _, _, err := image.DecodeConfig(bytes.NewReader(f.Data)); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalid, ct, err)
		}
	}
	return nil
}
