package magazine

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/aldomucciarone59-web/mute-magazine/media"
)

func (a *App) handleUpload(c echo.Context) error {
	if !a.uploadLimiter.Allow(c.RealIP()) {
		return echo.NewHTTPError(http.StatusTooManyRequests, "Too many uploads. Try again later.")
	}

	file, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "No file provided")
	}
	if file.Size > media.MaxVideoSize {
		return fmt.Errorf("%w: %s", media.ErrTooLarge, file.Filename)
	}

	src, err := file.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, media.MaxVideoSize+1))
	if err != nil {
		return fmt.Errorf("read upload: %w", err)
	}

	draft, err := DraftSession(c, true)
	if err != nil {
		return err
	}

	up, err := a.Articles.Upload(c.Request().Context(), draft, strings.TrimSpace(c.FormValue("article")), media.File{
		Name: file.Filename,
		MIME: file.Header.Get(echo.HeaderContentType),
		Data: data,
	}, strings.TrimSpace(c.FormValue("replaces")))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, uploadResponse{
		Success:      true,
		URL:          up.URL,
		PublicID:     up.PublicID,
		Format:       up.Format,
		ResourceType: up.ResourceType,
		Width:        up.Width,
		Height:       up.Height,
	})
}

func (a *App) handleDiscardUpload(c echo.Context) error {
	var req discardRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if strings.TrimSpace(req.URL) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "url is required")
	}
	draft, err := DraftSession(c, false)
	if err != nil {
		return err
	}
	if draft == "" {
		return c.JSON(http.StatusOK, discardResponse{Success: true})
	}
	deleted, err := a.Articles.DiscardPending(c.Request().Context(), draft, req.Article, req.URL)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, discardResponse{Success: true, Deleted: deleted})
}

func (a *App) handleDiscardDraft(c echo.Context) error {
	draft, err := DraftSession(c, false)
	if err != nil {
		return err
	}
	if draft == "" {
		return c.JSON(http.StatusOK, draftResponse{})
	}
	n, err := a.Articles.DiscardDraft(c.Request().Context(), draft, c.QueryParam("article"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, draftResponse{Deleted: n})
}

// handleMediaDestroy deletes a hosted object by public id.
func (a *App) handleMediaDestroy(c echo.Context) error {
	var req destroyRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if strings.TrimSpace(req.PublicID) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "publicId is required")
	}
	if req.ResourceType == "" {
		req.ResourceType = media.Image
	}
	if req.ResourceType != media.Image && req.ResourceType != media.Video && req.ResourceType != media.Raw {
		return echo.NewHTTPError(http.StatusBadRequest, "resourceType must be image, video or raw")
	}
	ok, err := a.Media.Destroy(c.Request().Context(), media.Ref{PublicID: req.PublicID, ResourceType: req.ResourceType})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, destroyResponse{Success: ok})
}
