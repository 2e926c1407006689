package media

import "context"

// Upload describes an object created on the media host.
type Upload struct {
	URL          string       `json:"url"`
	PublicID     string       `json:"publicId"`
	Format       string       `json:"format"`
	ResourceType ResourceType `json:"resourceType"`
	Width        int          `json:"width,omitempty"`
	Height       int          `json:"height,omitempty"`
	Bytes        int64        `json:"bytes,omitempty"`
}

// Ref returns the hosted reference of the uploaded object.
func (u Upload) Ref() Ref {
	return Ref{PublicID: u.PublicID, ResourceType: u.ResourceType}
}

// Gateway is the boundary to the remote media host. It keeps no record of
// what it uploaded.
//
// Delete reports (false, nil) for URLs the gateway does not recognize and
// makes no call for them. An object the host reports as already absent
// counts as deleted, so deleting twice succeeds twice.
type Gateway interface {
	Upload(ctx context.Context, f File) (Upload, error)
	Delete(ctx context.Context, url string) (bool, error)
	Destroy(ctx context.Context, ref Ref) (bool, error)
	Recognizes(url string) bool
}
