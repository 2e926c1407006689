package magazine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/aldomucciarone59-web/mute-magazine/article"
	"github.com/aldomucciarone59-web/mute-magazine/draft"
	"github.com/aldomucciarone59-web/mute-magazine/media"
)

const hostedPrefix = "https://res.cloudinary.com/test/image/upload/v1/mute-magazine/"

type fakeGateway struct {
	mu        sync.Mutex
	n         int
	deletes   []string
	destroyed []media.Ref
}

func (g *fakeGateway) Upload(_ context.Context, f media.File) (media.Upload, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	id := fmt.Sprintf("mute-magazine/up%d", g.n)
	return media.Upload{
		URL:          fmt.Sprintf("%sup%d.png", hostedPrefix, g.n),
		PublicID:     id,
		Format:       "png",
		ResourceType: media.Image,
		Bytes:        f.Size(),
	}, nil
}

func (g *fakeGateway) Delete(_ context.Context, url string) (bool, error) {
	if !g.Recognizes(url) {
		return false, nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.deletes = append(g.deletes, url)
	return true, nil
}

func (g *fakeGateway) Destroy(_ context.Context, ref media.Ref) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.destroyed = append(g.destroyed, ref)
	return true, nil
}

func (g *fakeGateway) Recognizes(url string) bool {
	return strings.HasPrefix(url, hostedPrefix)
}

func (g *fakeGateway) deleted() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := slices.Clone(g.deletes)
	slices.Sort(out)
	return out
}

func newTestApp(t *testing.T) (*App, *fakeGateway) {
	t.Helper()
	gw := &fakeGateway{}
	a := New(SiteConfig{
		Name:             "Mute",
		URL:              "https://mute.example",
		SessionSecret:    "test-secret",
		UploadsPerMinute: 3,
	},
		WithStore(setupTestStore(t)),
		WithGateway(gw),
		WithTracker(draft.NewMemory()),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	if err := a.Init(context.Background()); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	t.Cleanup(func() {
		a.Articles.Wait()
		a.Close()
	})
	return a, gw
}

func serve(a *App, req *http.Request, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	a.Echo.ServeHTTP(rec, req)
	return rec
}

func jsonRequest(method, target string, body any) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func uploadRequest(t *testing.T, data []byte, replaces string) *http.Request {
	t.Helper()
	return multipartUpload(t, data, map[string]string{"replaces": replaces})
}

func multipartUpload(t *testing.T, data []byte, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile("file", "photo.png")
	if err != nil {
		t.Fatal(err)
	}
	fw.Write(data)
	for k, v := range fields {
		if v != "" {
			w.WriteField(k, v)
		}
	}
	w.Close()
	req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	return req
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 4, 3))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", rec.Body.String(), err)
	}
	return v
}

func createArticle(t *testing.T, a *App, fields map[string]any, cookies ...*http.Cookie) createResponse {
	t.Helper()
	rec := serve(a, jsonRequest(http.MethodPost, "/api/articles", fields), cookies...)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", rec.Code, rec.Body.String())
	}
	return decode[createResponse](t, rec)
}

func TestArticleCRUD(t *testing.T) {
	a, _ := newTestApp(t)

	created := createArticle(t, a, map[string]any{
		"title":    "Il silenzio",
		"author":   "Redazione",
		"category": "cultura",
		"date":     "2025-03-01",
		"content":  `{"blocks":[{"type":"paragraph","data":{"text":"Ciao"}}]}`,
	})
	if !created.Success || created.ArticleID == "" {
		t.Fatalf("create response = %+v", created)
	}

	rec := serve(a, httptest.NewRequest(http.MethodGet, "/api/articles/"+created.ArticleID, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	got := decode[article.Article](t, rec)
	if got.Title != "Il silenzio" || len(got.Content.Blocks) != 1 {
		t.Errorf("get = %+v", got)
	}

	rec = serve(a, jsonRequest(http.MethodPut, "/api/articles/"+created.ArticleID, map[string]any{"title": "Rumore"}))
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if up := decode[updateResponse](t, rec); up.Article.Title != "Rumore" || up.Article.Author != "Redazione" {
		t.Errorf("update = %+v", up.Article)
	}

	rec = serve(a, httptest.NewRequest(http.MethodGet, "/api/articles?category=cultura", nil))
	if list := decode[[]article.Article](t, rec); len(list) != 1 {
		t.Errorf("list = %d articles, want 1", len(list))
	}
	rec = serve(a, httptest.NewRequest(http.MethodGet, "/api/articles?category=societa", nil))
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("empty list body = %s, want []", rec.Body.String())
	}

	rec = serve(a, httptest.NewRequest(http.MethodDelete, "/api/articles/"+created.ArticleID, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rec.Code)
	}
	if res := decode[article.DeleteResult](t, rec); res.DeletedCount != 1 {
		t.Errorf("delete = %+v", res)
	}

	rec = serve(a, httptest.NewRequest(http.MethodDelete, "/api/articles/"+created.ArticleID, nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", rec.Code)
	}
}

func TestAPIErrors(t *testing.T) {
	a, _ := newTestApp(t)

	tests := []struct {
		name string
		req  *http.Request
		code int
		msg  string
	}{
		{"missing fields", jsonRequest(http.MethodPost, "/api/articles", map[string]any{"category": "cultura"}), http.StatusBadRequest, "title"},
		{"bad category", jsonRequest(http.MethodPost, "/api/articles", map[string]any{"title": "t", "author": "a", "category": "sport"}), http.StatusBadRequest, "category"},
		{"bad list filter", httptest.NewRequest(http.MethodGet, "/api/articles?category=sport", nil), http.StatusBadRequest, "category"},
		{"missing article", httptest.NewRequest(http.MethodGet, "/api/articles/nope", nil), http.StatusNotFound, "Article not found"},
		{"update missing", jsonRequest(http.MethodPut, "/api/articles/nope", map[string]any{"title": "x"}), http.StatusNotFound, "Article not found"},
		{"upload without file", httptest.NewRequest(http.MethodPost, "/api/upload", nil), http.StatusBadRequest, "No file provided"},
		{"discard without url", jsonRequest(http.MethodDelete, "/api/upload", map[string]any{}), http.StatusBadRequest, "url is required"},
		{"destroy without id", jsonRequest(http.MethodDelete, "/api/media", map[string]any{}), http.StatusBadRequest, "publicId is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(a, tt.req)
			if rec.Code != tt.code {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.code, rec.Body.String())
			}
			body := decode[errorResponse](t, rec)
			if !strings.Contains(body.Error, tt.msg) {
				t.Errorf("error = %q, want it to mention %q", body.Error, tt.msg)
			}
		})
	}
}

func TestManifestoConflict(t *testing.T) {
	a, _ := newTestApp(t)
	fields := map[string]any{"title": "Manifesto", "author": "Redazione", "category": article.Manifesto}
	if got := createArticle(t, a, fields); got.ArticleID != article.Manifesto {
		t.Fatalf("manifesto id = %q", got.ArticleID)
	}
	rec := serve(a, jsonRequest(http.MethodPost, "/api/articles", fields))
	if rec.Code != http.StatusConflict {
		t.Errorf("second manifesto status = %d, want 409", rec.Code)
	}
}

func TestUploadDraftLifecycle(t *testing.T) {
	a, gw := newTestApp(t)
	data := pngBytes(t)

	rec := serve(a, uploadRequest(t, data, ""))
	if rec.Code != http.StatusOK {
		t.Fatalf("upload status = %d, body = %s", rec.Code, rec.Body.String())
	}
	first := decode[uploadResponse](t, rec)
	cookies := rec.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("upload should issue an editing session cookie")
	}

	rec = serve(a, uploadRequest(t, data, first.URL), cookies...)
	if rec.Code != http.StatusOK {
		t.Fatalf("replace status = %d", rec.Code)
	}
	cover := decode[uploadResponse](t, rec)
	if got := gw.deleted(); len(got) != 1 || got[0] != first.URL {
		t.Fatalf("deleted after replace = %v, want [%s]", got, first.URL)
	}

	rec = serve(a, uploadRequest(t, data, ""), cookies...)
	abandoned := decode[uploadResponse](t, rec)

	createArticle(t, a, map[string]any{
		"title":    "Con copertina",
		"author":   "Redazione",
		"category": "riflessioni",
		"cover":    cover.URL,
	}, cookies...)
	a.Articles.Wait()

	got := gw.deleted()
	want := []string{first.URL, abandoned.URL}
	slices.Sort(want)
	if !slices.Equal(got, want) {
		t.Errorf("deleted = %v, want %v", got, want)
	}

	rec = serve(a, jsonRequest(http.MethodDelete, "/api/drafts", nil), cookies...)
	if res := decode[draftResponse](t, rec); res.Deleted != 0 {
		t.Errorf("draft discard after save deleted %d, want 0", res.Deleted)
	}
}

func TestDraftsAreScopedPerArticle(t *testing.T) {
	a, gw := newTestApp(t)
	data := pngBytes(t)
	existing := createArticle(t, a, map[string]any{"title": "Y", "author": "Redazione", "category": "cultura"})

	rec := serve(a, multipartUpload(t, data, nil))
	cover := decode[uploadResponse](t, rec)
	cookies := rec.Result().Cookies()

	rec = serve(a, multipartUpload(t, data, map[string]string{"article": existing.ArticleID}), cookies...)
	unused := decode[uploadResponse](t, rec)

	rec = serve(a, jsonRequest(http.MethodPut, "/api/articles/"+existing.ArticleID, map[string]any{"title": "Y2"}), cookies...)
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d", rec.Code)
	}
	a.Articles.Wait()
	if got := gw.deleted(); !slices.Equal(got, []string{unused.URL}) {
		t.Fatalf("deleted after update = %v, want [%s]", got, unused.URL)
	}

	createArticle(t, a, map[string]any{
		"title": "X", "author": "Redazione", "category": "societa", "cover": cover.URL,
	}, cookies...)
	a.Articles.Wait()
	if got := gw.deleted(); slices.Contains(got, cover.URL) {
		t.Errorf("cover of the new article was deleted: %v", got)
	}
}

func TestUpdateWithMalformedContentKeepsMedia(t *testing.T) {
	a, gw := newTestApp(t)
	image := hostedPrefix + "body.jpg"
	created := createArticle(t, a, map[string]any{
		"title":    "Foto",
		"author":   "Redazione",
		"category": "cultura",
		"content":  `{"blocks":[{"type":"image","data":{"file":{"url":"` + image + `"}}}]}`,
	})

	rec := serve(a, jsonRequest(http.MethodPut, "/api/articles/"+created.ArticleID, map[string]any{
		"content": `{"blocks":[{"type":"image"`,
	}))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 (body %s)", rec.Code, rec.Body.String())
	}
	if body := decode[errorResponse](t, rec); !strings.Contains(body.Error, "content") {
		t.Errorf("error = %q, want it to mention content", body.Error)
	}
	a.Articles.Wait()
	if got := gw.deleted(); len(got) != 0 {
		t.Errorf("deleted = %v, want none", got)
	}

	rec = serve(a, httptest.NewRequest(http.MethodGet, "/api/articles/"+created.ArticleID, nil))
	if got := decode[article.Article](t, rec); len(got.Content.Blocks) != 1 {
		t.Errorf("stored content = %d blocks, want 1", len(got.Content.Blocks))
	}
}

func TestDiscardUpload(t *testing.T) {
	a, gw := newTestApp(t)

	rec := serve(a, uploadRequest(t, pngBytes(t), ""))
	up := decode[uploadResponse](t, rec)
	cookies := rec.Result().Cookies()

	rec = serve(a, jsonRequest(http.MethodDelete, "/api/upload", discardRequest{URL: up.URL}), cookies...)
	if res := decode[discardResponse](t, rec); !res.Success || !res.Deleted {
		t.Errorf("discard = %+v", res)
	}

	// Without the session the upload is not pending for the caller.
	rec = serve(a, jsonRequest(http.MethodDelete, "/api/upload", discardRequest{URL: hostedPrefix + "saved.png"}))
	if res := decode[discardResponse](t, rec); res.Deleted {
		t.Error("discard without a session should delete nothing")
	}
	if got := gw.deleted(); len(got) != 1 {
		t.Errorf("deleted = %v, want one URL", got)
	}
}

func TestUploadRejectsInvalidFile(t *testing.T) {
	a, _ := newTestApp(t)
	rec := serve(a, uploadRequest(t, []byte("%PDF-1.4 not an image"), ""))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 (body %s)", rec.Code, rec.Body.String())
	}
}

func TestUploadRateLimit(t *testing.T) {
	a, _ := newTestApp(t)
	data := pngBytes(t)
	for i := range 3 {
		if rec := serve(a, uploadRequest(t, data, "")); rec.Code != http.StatusOK {
			t.Fatalf("upload %d status = %d", i, rec.Code)
		}
	}
	if rec := serve(a, uploadRequest(t, data, "")); rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", rec.Code)
	}
}

func TestDeleteArticleRemovesMedia(t *testing.T) {
	a, gw := newTestApp(t)
	cover := hostedPrefix + "cover.jpg"
	body := hostedPrefix + "body.jpg"
	created := createArticle(t, a, map[string]any{
		"title":    "Foto",
		"author":   "Redazione",
		"category": "curiosita",
		"cover":    cover,
		"content":  `{"blocks":[{"type":"image","data":{"file":{"url":"` + body + `"}}},{"type":"image","data":{"file":{"url":"https://picsum.photos/1"}}}]}`,
	})

	rec := serve(a, httptest.NewRequest(http.MethodDelete, "/api/articles/"+created.ArticleID, nil))
	res := decode[article.DeleteResult](t, rec)
	if res.DeletedCount != 1 || res.MediaDeleted != 2 {
		t.Errorf("delete = %+v, want 1 record and 2 media", res)
	}
	want := []string{body, cover}
	if got := gw.deleted(); !slices.Equal(got, want) {
		t.Errorf("deleted = %v, want %v", got, want)
	}
}

func TestMediaDestroy(t *testing.T) {
	a, gw := newTestApp(t)
	rec := serve(a, jsonRequest(http.MethodDelete, "/api/media", destroyRequest{PublicID: "mute-magazine/x"}))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(gw.destroyed) != 1 || gw.destroyed[0] != (media.Ref{PublicID: "mute-magazine/x", ResourceType: media.Image}) {
		t.Errorf("destroyed = %v", gw.destroyed)
	}

	rec = serve(a, jsonRequest(http.MethodDelete, "/api/media", destroyRequest{PublicID: "x", ResourceType: "audio"}))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad resource type status = %d, want 400", rec.Code)
	}
}

func TestArticlePage(t *testing.T) {
	a, _ := newTestApp(t)
	created := createArticle(t, a, map[string]any{
		"title":    "Pagina",
		"author":   "Redazione",
		"category": "societa",
		"content":  `{"blocks":[{"type":"header","data":{"text":"Sezione","level":2}}]}`,
	})

	rec := serve(a, httptest.NewRequest(http.MethodGet, "/articoli/societa/"+created.ArticleID+"/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if body := rec.Body.String(); !strings.Contains(body, "<h2>Sezione</h2>") || !strings.Contains(body, "<h1>Pagina</h1>") {
		t.Errorf("page body = %s", body)
	}
	if cc := rec.Header().Get("Cache-Control"); cc != "public, max-age=300" {
		t.Errorf("Cache-Control = %q", cc)
	}

	rec = serve(a, httptest.NewRequest(http.MethodGet, "/articoli/cultura/"+created.ArticleID+"/", nil))
	if rec.Code != http.StatusMovedPermanently || rec.Header().Get("Location") != created.Article.Path() {
		t.Errorf("wrong category: status = %d, location = %q", rec.Code, rec.Header().Get("Location"))
	}

	rec = serve(a, httptest.NewRequest(http.MethodGet, "/articoli/societa/nope/", nil))
	if rec.Code != http.StatusNotFound || !strings.Contains(rec.Body.String(), "Pagina non trovata") {
		t.Errorf("missing page: status = %d", rec.Code)
	}
}

func TestDBStats(t *testing.T) {
	a, _ := newTestApp(t)
	createArticle(t, a, map[string]any{"title": "t", "author": "a", "category": "cultura"})

	rec := serve(a, httptest.NewRequest(http.MethodGet, "/api/db-stats", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	got := decode[statsResponse](t, rec)
	if got.Driver != "sqlite" || got.Articles != 1 || got.ByCategory["cultura"] != 1 {
		t.Errorf("stats = %+v", got.Stats)
	}
	if got.DataSizeHuman == "" {
		t.Error("humanized size missing")
	}
	if rec.Header().Get("Cache-Control") != "no-store" {
		t.Errorf("Cache-Control = %q, want no-store", rec.Header().Get("Cache-Control"))
	}
}

func TestMetricsEndpoint(t *testing.T) {
	a, _ := newTestApp(t)
	serve(a, uploadRequest(t, pngBytes(t), ""))

	rec := serve(a, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{`mute_media_operations_total{op="upload",result="ok"} 1`, "mute_http_requests_total"} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{&article.ValidationError{Fields: map[string]string{"title": "is required"}}, http.StatusBadRequest},
		{fmt.Errorf("wrap: %w", media.ErrTooLarge), http.StatusRequestEntityTooLarge},
		{media.ErrUnsupported, http.StatusBadRequest},
		{fmt.Errorf("find: %w", article.ErrNotFound), http.StatusNotFound},
		{article.ErrConflict, http.StatusConflict},
		{fmt.Errorf("upload: %w", media.ErrRemote), http.StatusBadGateway},
		{media.ErrNotConfigured, http.StatusServiceUnavailable},
		{echo.NewHTTPError(http.StatusTooManyRequests, "slow down"), http.StatusTooManyRequests},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		code, msg := errorStatus(tt.err)
		if code != tt.code {
			t.Errorf("errorStatus(%v) = %d, want %d", tt.err, code, tt.code)
		}
		if code == http.StatusInternalServerError && strings.Contains(msg, "disk") {
			t.Errorf("internal error message leaked: %q", msg)
		}
	}
}

func TestInitRequiresSessionSecret(t *testing.T) {
	a := New(SiteConfig{}, WithStore(setupTestStore(t)), WithGateway(&fakeGateway{}))
	if err := a.Init(context.Background()); err == nil {
		t.Error("Init without a session secret should fail")
	}
}
