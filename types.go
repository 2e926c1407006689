package magazine

import (
	"github.com/aldomucciarone59-web/mute-magazine/article"
	"github.com/aldomucciarone59-web/mute-magazine/media"
)

// errorResponse is the body of every API error.
type errorResponse struct {
	Error string `json:"error"`
}

type createResponse struct {
	Success   bool            `json:"success"`
	ArticleID string          `json:"articleId"`
	Article   article.Article `json:"article"`
}

type updateResponse struct {
	Success bool            `json:"success"`
	Article article.Article `json:"article"`
}

type uploadResponse struct {
	Success      bool               `json:"success"`
	URL          string             `json:"url"`
	PublicID     string             `json:"publicId"`
	Format       string             `json:"format"`
	ResourceType media.ResourceType `json:"resourceType"`
	Width        int                `json:"width,omitempty"`
	Height       int                `json:"height,omitempty"`
}

// discardRequest names a pending upload. Article is the id of the edited
// article, empty while it is unsaved.
type discardRequest struct {
	URL     string `json:"url"`
	Article string `json:"article"`
}

type discardResponse struct {
	Success bool `json:"success"`
	Deleted bool `json:"deleted"`
}

type draftResponse struct {
	Deleted int `json:"deleted"`
}

type destroyRequest struct {
	PublicID     string             `json:"publicId"`
	ResourceType media.ResourceType `json:"resourceType"`
}

type destroyResponse struct {
	Success bool `json:"success"`
}

// statsResponse mirrors article.Stats with humanized sizes next to the raw ones.
type statsResponse struct {
	article.Stats
	DataSizeHuman    string `json:"dataSizeHuman"`
	StorageSizeHuman string `json:"storageSizeHuman"`
	IndexSizeHuman   string `json:"indexSizeHuman"`
}
