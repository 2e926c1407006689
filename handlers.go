package magazine

import (
	"errors"
	"net/http"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/labstack/echo/v4"

	"github.com/aldomucciarone59-web/mute-magazine/article"
	"github.com/aldomucciarone59-web/mute-magazine/media"
)

func (a *App) handleArticlePage(c echo.Context) error {
	art, err := a.Articles.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, article.ErrNotFound) {
			return RenderStatus(c, http.StatusNotFound, a.Views.NotFound())
		}
		return err
	}
	if art.Category != c.Param("category") {
		return c.Redirect(http.StatusMovedPermanently, art.Path())
	}
	return Render(c, a.Views.Article(art))
}

func (a *App) handleDBStats(c echo.Context) error {
	sp, ok := a.Store.(article.StatsProvider)
	if !ok {
		return echo.NewHTTPError(http.StatusNotImplemented, "statistics are not available for this store")
	}
	stats, err := sp.Stats(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, statsResponse{
		Stats:            stats,
		DataSizeHuman:    humanize.IBytes(uint64(max(stats.DataSize, 0))),
		StorageSizeHuman: humanize.IBytes(uint64(max(stats.StorageSize, 0))),
		IndexSizeHuman:   humanize.IBytes(uint64(max(stats.IndexSize, 0))),
	})
}

// errorStatus maps domain errors to HTTP status codes and client messages.
// Messages of unexpected errors are not exposed.
func errorStatus(err error) (int, string) {
	var he *echo.HTTPError
	var ve *article.ValidationError
	switch {
	case errors.As(err, &he):
		msg, ok := he.Message.(string)
		if !ok {
			msg = http.StatusText(he.Code)
		}
		return he.Code, msg
	case errors.As(err, &ve):
		return http.StatusBadRequest, ve.Error()
	case errors.Is(err, media.ErrTooLarge):
		return http.StatusRequestEntityTooLarge, err.Error()
	case errors.Is(err, article.ErrValidation),
		errors.Is(err, media.ErrEmpty),
		errors.Is(err, media.ErrUnsupported),
		errors.Is(err, media.ErrInvalid):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, article.ErrNotFound):
		return http.StatusNotFound, "Article not found"
	case errors.Is(err, article.ErrConflict):
		return http.StatusConflict, "Article already exists"
	case errors.Is(err, media.ErrNotConfigured):
		return http.StatusServiceUnavailable, "Media storage is not configured"
	case errors.Is(err, media.ErrRemote):
		return http.StatusBadGateway, "Media storage request failed"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code, msg := errorStatus(err)
	if code >= http.StatusInternalServerError {
		a.Logger.Error("request failed",
			"method", c.Request().Method,
			"path", c.Request().URL.Path,
			"error", err,
		)
	}

	if strings.HasPrefix(c.Request().URL.Path, "/api/") {
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = c.JSON(code, errorResponse{Error: msg})
		return
	}

	switch code {
	case http.StatusNotFound:
		_ = RenderStatus(c, code, a.Views.NotFound())
	case http.StatusInternalServerError:
		_ = RenderStatus(c, code, a.Views.ServerError())
	default:
		_ = c.String(code, msg)
	}
}
