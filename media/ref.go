// Package media talks to the remote media host that stores article images
// and videos. It derives hosted media references from delivery URLs,
// validates files before they are sent anywhere, and wraps the host's
// upload and destroy endpoints behind the Gateway interface.
package media

import (
	"net/url"
	"regexp"
	"strings"
)

// ResourceType is the media host's classification of a stored object.
type ResourceType string

const (
	Image ResourceType = "image"
	Video ResourceType = "video"
	Raw   ResourceType = "raw"
)

// Ref identifies a hosted object by its public id and resource type.
type Ref struct {
	PublicID     string       `json:"publicId"`
	ResourceType ResourceType `json:"resourceType"`
}

func (r Ref) String() string {
	return string(r.ResourceType) + ":" + r.PublicID
}

// publicIDPattern captures the path after /upload/ without the optional
// version segment and the file extension.
var publicIDPattern = regexp.MustCompile(`/upload/(?:v\d+/)?(.+?)(?:\.\w+)?$`)

// ParseRef derives the hosted reference of a delivery URL. The second result
// is false when the URL has no /upload/ segment or an empty public id.
func ParseRef(rawURL string) (Ref, bool) {
	p := strings.TrimSpace(rawURL)
	if u, err := url.Parse(p); err == nil && u.Path != "" {
		p = u.Path
	}
	m := publicIDPattern.FindStringSubmatch(p)
	if m == nil || m[1] == "" {
		return Ref{}, false
	}
	return Ref{PublicID: m[1], ResourceType: resourceTypeOf(p)}, true
}

// resourceTypeOf reads the segment in front of /upload/ and falls back to a
// plain /video/ check for delivery URLs with custom prefixes.
func resourceTypeOf(p string) ResourceType {
	if i := strings.Index(p, "/upload/"); i > 0 {
		prefix := p[:i]
		seg := prefix[strings.LastIndexByte(prefix, '/')+1:]
		switch ResourceType(seg) {
		case Image, Video, Raw:
			return ResourceType(seg)
		}
	}
	if strings.Contains(p, "/video/") {
		return Video
	}
	return Image
}
