package magazine

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/aldomucciarone59-web/mute-magazine/article"
)

func (a *App) handleListArticles(c echo.Context) error {
	articles, err := a.Articles.List(c.Request().Context(), c.QueryParam("category"))
	if err != nil {
		return err
	}
	if articles == nil {
		articles = []article.Article{}
	}
	return c.JSON(http.StatusOK, articles)
}

func (a *App) handleGetArticle(c echo.Context) error {
	art, err := a.Articles.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, art)
}

func (a *App) handleCreateArticle(c echo.Context) error {
	var f article.Fields
	if err := c.Bind(&f); err != nil {
		return err
	}
	draft, err := DraftSession(c, false)
	if err != nil {
		return err
	}
	res, err := a.Articles.Create(c.Request().Context(), f, draft)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, createResponse{
		Success:   true,
		ArticleID: res.Article.ID,
		Article:   res.Article,
	})
}

func (a *App) handleUpdateArticle(c echo.Context) error {
	var p article.Patch
	if err := c.Bind(&p); err != nil {
		return err
	}
	draft, err := DraftSession(c, false)
	if err != nil {
		return err
	}
	res, err := a.Articles.Update(c.Request().Context(), c.Param("id"), p, draft)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, updateResponse{Success: true, Article: res.Article})
}

func (a *App) handleDeleteArticle(c echo.Context) error {
	res, err := a.Articles.Delete(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}
