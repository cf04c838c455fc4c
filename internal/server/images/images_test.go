package images

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imghost/internal/gallery"
	"imghost/internal/server/auth"
	"imghost/pkg/api"
	"imghost/pkg/sqlite"
)

const token = "test-token"

var tinyPNG, _ = base64.StdEncoding.DecodeString(
	"iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR42mNkYAAAAAYAAjCB0C8AAAAASUVORK5CYII=")

type testServer struct {
	handler http.Handler
	svc     *gallery.Service
}

func newTestServer(t *testing.T, opts Options) *testServer {
	t.Helper()
	ctx := context.Background()
	st := &sqlite.Storage{}
	require.NoError(t, st.Init(ctx, sqlite.Config{
		Source:         fmt.Sprintf("file:%s?cache=shared&mode=rwc", filepath.Join(t.TempDir(), "objects.db")),
		AllowOverwrite: true,
	}))
	t.Cleanup(func() { _ = st.Close(ctx) })

	svc := gallery.New(st, gallery.Config{Root: "uploads", Domain: "img.example.com"})
	a := auth.New(auth.Credentials{APIToken: token})
	return &testServer{handler: a.Middleware(Handler(svc, opts)), svc: svc}
}

func (s *testServer) do(t *testing.T, method, target string, body io.Reader, authed bool, hdr ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if authed {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) upload(t *testing.T, name, contentType, folder string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, name))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	if folder != "" {
		require.NoError(t, mw.WriteField("folder", folder))
	}
	require.NoError(t, mw.Close())
	return s.do(t, http.MethodPost, "/api/images", &body, true, "Content-Type", mw.FormDataContentType())
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestUploadListAndServe(t *testing.T) {
	s := newTestServer(t, Options{PublicRead: true})

	rec := s.upload(t, "cat.png", "image/png", "blog", tinyPNG)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	up := decode[api.UploadResponse](t, rec)
	assert.True(t, up.Success)
	assert.True(t, strings.HasPrefix(up.Key, "uploads/blog/"))
	assert.Equal(t, "https://img.example.com/"+up.Key, up.URL)
	assert.Equal(t, "image/png", up.ContentType)

	rec = s.do(t, http.MethodGet, "/api/images", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[api.ListResponse](t, rec)
	require.Len(t, list.Images, 1)
	assert.Equal(t, up.Key, list.Images[0].Key)
	assert.Equal(t, "blog", list.Images[0].Folder)
	assert.NotEmpty(t, list.Images[0].SizeFormatted)
	assert.Nil(t, list.Cursor)
	require.Len(t, list.Folders, 1)
	assert.Equal(t, "uploads/blog/", list.Folders[0].FullPath)

	rec = s.do(t, http.MethodGet, "/"+up.Key, nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, "public, max-age=31536000", rec.Header().Get("Cache-Control"))
	assert.Equal(t, tinyPNG, rec.Body.Bytes())

	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)
	rec = s.do(t, http.MethodGet, "/"+up.Key, nil, false, "If-None-Match", etag)
	assert.Equal(t, http.StatusNotModified, rec.Code)

	rec = s.do(t, http.MethodGet, "/uploads/missing.png", nil, false)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListPagination(t *testing.T) {
	s := newTestServer(t, Options{PublicRead: true})
	for i := range 3 {
		require.Equal(t, http.StatusOK, s.upload(t, fmt.Sprintf("%d.png", i), "image/png", "", tinyPNG).Code)
	}

	rec := s.do(t, http.MethodGet, "/api/images?limit=2", nil, false)
	first := decode[api.ListResponse](t, rec)
	assert.Len(t, first.Images, 2)
	assert.True(t, first.Truncated)
	require.NotNil(t, first.Cursor)

	rec = s.do(t, http.MethodGet, "/api/images?limit=2&cursor="+*first.Cursor, nil, false)
	second := decode[api.ListResponse](t, rec)
	assert.Len(t, second.Images, 1)
	assert.False(t, second.Truncated)

	rec = s.do(t, http.MethodGet, "/api/images?limit=abc", nil, false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadRejections(t *testing.T) {
	s := newTestServer(t, Options{PublicRead: true, MaxUploadBytes: 16})

	rec := s.upload(t, "notes.txt", "text/plain", "", []byte("hi"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_input", decode[api.ErrorResponse](t, rec).Kind)

	rec = s.upload(t, "big.png", "image/png", "", bytes.Repeat([]byte{1}, 64))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/images", strings.NewReader(""), false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))
}

func TestFolderLifecycle(t *testing.T) {
	s := newTestServer(t, Options{PublicRead: true})

	rec := s.do(t, http.MethodPost, "/api/folders", strings.NewReader(`{"name":"My Blog 2024!!"}`), true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	created := decode[api.CreateFolderResponse](t, rec)
	assert.Equal(t, "my-blog-2024", created.Name)
	assert.Equal(t, "uploads/my-blog-2024/", created.FullPath)

	rec = s.do(t, http.MethodPost, "/api/folders", strings.NewReader(`{"name":"   "}`), true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_name", decode[api.ErrorResponse](t, rec).Kind)

	require.Equal(t, http.StatusOK, s.upload(t, "a.png", "image/png", "my-blog-2024", tinyPNG).Code)

	rec = s.do(t, http.MethodGet, "/api/folders", nil, false)
	folders := decode[api.FoldersResponse](t, rec)
	require.Len(t, folders.Folders, 1)
	assert.Equal(t, 1, folders.Folders[0].ObjectCount)

	rec = s.do(t, http.MethodDelete, "/api/folders", strings.NewReader(`{"path":"uploads/my-blog-2024/"}`), true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	deleted := decode[api.DeleteFolderResponse](t, rec)
	assert.True(t, deleted.Success)
	assert.Equal(t, 2, deleted.DeletedCount)
	assert.Empty(t, deleted.Failures)

	rec = s.do(t, http.MethodDelete, "/api/folders?path=my-blog-2024", nil, true)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodDelete, "/api/folders", strings.NewReader(`{}`), true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteImageRoutes(t *testing.T) {
	s := newTestServer(t, Options{PublicRead: true})
	a := decode[api.UploadResponse](t, s.upload(t, "a.png", "image/png", "x", tinyPNG))
	b := decode[api.UploadResponse](t, s.upload(t, "b.png", "image/png", "", tinyPNG))

	rec := s.do(t, http.MethodDelete, "/api/images/"+a.Key, nil, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, a.Key, decode[api.DeleteImageResponse](t, rec).Key)

	rec = s.do(t, http.MethodDelete, "/api/images?key="+b.Key, nil, true)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodDelete, "/api/images?key="+b.Key, nil, true)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodDelete, "/api/images/other/secret.png", nil, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatsAndUploadKey(t *testing.T) {
	s := newTestServer(t, Options{PublicRead: true})
	require.Equal(t, http.StatusOK, s.upload(t, "a.png", "image/png", "blog", tinyPNG).Code)
	require.Equal(t, http.StatusOK, s.upload(t, "b.gif", "image/gif", "", []byte("GIF89a"))).Code)

	rec := s.do(t, http.MethodGet, "/api/stats", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[api.StatsResponse](t, rec)
	assert.Equal(t, 2, stats.TotalImages)
	require.Len(t, stats.DailyStats, 1)
	require.Len(t, stats.ExtensionStats, 2)
	assert.Equal(t, "gif", stats.ExtensionStats[0].Extension)
	require.Len(t, stats.FolderStats, 1)
	assert.Equal(t, "blog", stats.FolderStats[0].Folder)

	rec = s.do(t, http.MethodPost, "/api/upload-key", strings.NewReader(`{"contentType":"image/webp","folder":"blog"}`), true)
	require.Equal(t, http.StatusOK, rec.Code)
	uk := decode[api.UploadKeyResponse](t, rec)
	assert.True(t, strings.HasPrefix(uk.Key, "uploads/blog/"))
	assert.True(t, strings.HasSuffix(uk.Key, ".webp"))
	assert.Equal(t, "image/webp", uk.ContentType)
}

func TestPrivateRead(t *testing.T) {
	s := newTestServer(t, Options{PublicRead: false})

	for _, target := range []string{"/api/images", "/api/folders", "/api/stats", "/uploads/a.png"} {
		rec := s.do(t, http.MethodGet, target, nil, false)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, target)
	}
	rec := s.do(t, http.MethodGet, "/api/images", nil, true)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/auth", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, api.Principal{ID: "api-user", Type: "api"}, decode[api.Principal](t, rec))
}

func TestUnknownAPIRoute(t *testing.T) {
	s := newTestServer(t, Options{PublicRead: true})
	rec := s.do(t, http.MethodGet, "/api/nope", nil, false)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "API endpoint not found")
}
