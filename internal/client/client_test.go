package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imghost/pkg/api"
)

func newTestClient(t *testing.T, token string, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(Config{BaseURL: srv.URL + "/", Token: token, HTTPClient: srv.Client()})
}

func TestAuthorizationHeader(t *testing.T) {
	cases := map[string]string{
		"":                  "",
		"tok":               "Bearer tok",
		"Basic dXNlcjpwdw==": "Basic dXNlcjpwdw==",
	}
	for token, want := range cases {
		var got string
		c := newTestClient(t, token, func(w http.ResponseWriter, r *http.Request) {
			got = r.Header.Get("Authorization")
			_ = json.NewEncoder(w).Encode(api.Principal{ID: "api-user", Type: "api"})
		})
		_, err := c.Whoami(context.Background())
		require.NoError(t, err)
		assert.Equal(t, want, got, "token %q", token)
	}
}

func TestListImagesQuery(t *testing.T) {
	c := newTestClient(t, "tok", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/images", r.URL.Path)
		assert.Equal(t, "blog", r.URL.Query().Get("folder"))
		assert.Equal(t, "abc", r.URL.Query().Get("cursor"))
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		next := "def"
		_ = json.NewEncoder(w).Encode(api.ListResponse{
			Images:    []api.Image{{Key: "uploads/blog/a.jpg"}},
			Truncated: true,
			Cursor:    &next,
			Total:     1,
		})
	})
	res, err := c.ListImages(context.Background(), "blog", "abc", 5)
	require.NoError(t, err)
	assert.True(t, res.Truncated)
	require.NotNil(t, res.Cursor)
	assert.Equal(t, "def", *res.Cursor)
	assert.Equal(t, "uploads/blog/a.jpg", res.Images[0].Key)
}

func TestErrorDecoding(t *testing.T) {
	c := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(api.ErrorResponse{Error: "authentication required"})
	})
	_, err := c.CreateFolder(context.Background(), "x", "")
	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))
	assert.Contains(t, err.Error(), "authentication required")

	plain := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Not Found", http.StatusNotFound)
	})
	_, err = plain.DeleteImage(context.Background(), "uploads/x.jpg")
	assert.True(t, IsNotFound(err))
	assert.Contains(t, err.Error(), "Not Found")
}

func TestDeleteFolderPartial(t *testing.T) {
	c := newTestClient(t, "tok", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		var req api.DeleteFolderRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "blog", req.Path)
		_ = json.NewEncoder(w).Encode(api.DeleteFolderResponse{
			DeletedCount: 2,
			Failures:     []api.DeleteFailure{{Key: "uploads/blog/b.jpg", Error: "boom"}},
		})
	})
	res, err := c.DeleteFolder(context.Background(), "blog")
	require.NoError(t, err)
	assert.Equal(t, 2, res.DeletedCount)
	assert.Len(t, res.Failures, 1)
}

func TestUploadMultipart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cat.png")
	require.NoError(t, os.WriteFile(path, []byte("\x89PNG\r\n\x1a\npayload"), 0o600))

	c := newTestClient(t, "tok", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "blog", r.FormValue("folder"))
		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, "cat.png", hdr.Filename)
		assert.Contains(t, string(data), "payload")
		_ = json.NewEncoder(w).Encode(api.UploadResponse{Success: true, Key: "uploads/blog/1_abcdef.png"})
	})
	res, err := c.Upload(context.Background(), path, "blog")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "uploads/blog/1_abcdef.png", res.Key)
}

func TestWithToken(t *testing.T) {
	c := New(Config{BaseURL: "http://localhost:8787"})
	d := c.WithToken("x")
	assert.Equal(t, "", c.authorization())
	assert.Equal(t, "Bearer x", d.authorization())
	assert.Equal(t, "http://localhost:8787", d.BaseURL())
}
