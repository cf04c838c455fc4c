package r2

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imghost/pkg/object"
)

const listPage1 = `<?xml version="1.0" encoding="UTF-8"?>
<ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">
  <Name>images</Name><Prefix>uploads/</Prefix><KeyCount>2</KeyCount><MaxKeys>2</MaxKeys>
  <IsTruncated>true</IsTruncated><NextContinuationToken>token-2</NextContinuationToken>
  <Contents><Key>uploads/a.jpg</Key><LastModified>2024-01-15T10:00:00.000Z</LastModified><ETag>"etag-a"</ETag><Size>100</Size><StorageClass>STANDARD</StorageClass></Contents>
  <Contents><Key>uploads/blog/b.png</Key><LastModified>2024-01-16T08:30:00.000Z</LastModified><ETag>"etag-b"</ETag><Size>200</Size><StorageClass>STANDARD</StorageClass></Contents>
</ListBucketResult>`

const listPage2 = `<?xml version="1.0" encoding="UTF-8"?>
<ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">
  <Name>images</Name><Prefix>uploads/</Prefix><KeyCount>0</KeyCount><MaxKeys>2</MaxKeys>
  <IsTruncated>false</IsTruncated>
</ListBucketResult>`

const noSuchKey = `<?xml version="1.0" encoding="UTF-8"?>
<Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`

// fakeBucket answers the handful of S3 calls the storage makes for reads,
// listings and deletes, using path-style addressing.
func fakeBucket(t *testing.T) (*Storage, *[]string) {
	t.Helper()
	var tokens []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && strings.TrimSuffix(r.URL.Path, "/") == "/images":
			assert.Equal(t, "2", r.URL.Query().Get("list-type"))
			token := r.URL.Query().Get("continuation-token")
			tokens = append(tokens, token)
			w.Header().Set("Content-Type", "application/xml")
			if token == "" {
				fmt.Fprint(w, listPage1)
			} else {
				fmt.Fprint(w, listPage2)
			}
		case r.Method == http.MethodHead && r.URL.Path == "/images/uploads/a.jpg":
			w.Header().Set("Content-Length", "100")
			w.Header().Set("ETag", `"etag-a"`)
			w.Header().Set("Content-Type", "image/jpeg")
			w.Header().Set("Last-Modified", "Mon, 15 Jan 2024 10:00:00 GMT")
			w.Header().Set("X-Amz-Meta-Original-Name", "cat.jpg")
		case r.Method == http.MethodHead:
			w.WriteHeader(http.StatusNotFound)
		case r.Method == http.MethodDelete:
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, noSuchKey)
		case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/images/"):
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, noSuchKey)
		default:
			w.WriteHeader(http.StatusNotImplemented)
		}
	}))
	t.Cleanup(srv.Close)

	t.Setenv("AWS_CONFIG_FILE", "/nonexistent")
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", "/nonexistent")
	s := &Storage{}
	require.NoError(t, s.Init(context.Background(), Config{
		AccessKey:        "key",
		SecretAccessKey:  "secret",
		Bucket:           "images",
		EndpointOverride: srv.URL,
	}))
	return s, &tokens
}

func TestListPages(t *testing.T) {
	s, tokens := fakeBucket(t)
	ctx := context.Background()

	page, err := s.List(ctx, object.ListOptions{Prefix: "uploads/", Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Objects, 2)
	assert.True(t, page.Truncated)
	assert.Equal(t, "token-2", page.Cursor)
	assert.Equal(t, object.Object{
		Key:          "uploads/a.jpg",
		Size:         100,
		ETag:         "etag-a",
		LastModified: time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC),
	}, page.Objects[0])

	// An empty truncated=false page ends the listing.
	last, err := s.List(ctx, object.ListOptions{Prefix: "uploads/", Limit: 2, Cursor: page.Cursor})
	require.NoError(t, err)
	assert.Empty(t, last.Objects)
	assert.False(t, last.Truncated)
	assert.Empty(t, last.Cursor)
	assert.Equal(t, []string{"", "token-2"}, *tokens)
}

func TestStat(t *testing.T) {
	s, _ := fakeBucket(t)
	ctx := context.Background()

	obj, err := s.Stat(ctx, "uploads/a.jpg")
	require.NoError(t, err)
	assert.Equal(t, int64(100), obj.Size)
	assert.Equal(t, "etag-a", obj.ETag)
	assert.Equal(t, "image/jpeg", obj.ContentType)
	assert.Equal(t, "cat.jpg", obj.Metadata["original-name"])

	_, err = s.Stat(ctx, "uploads/missing.jpg")
	assert.ErrorIs(t, err, object.ErrNotFound)
}

func TestGetMissing(t *testing.T) {
	s, _ := fakeBucket(t)
	_, _, err := s.Get(context.Background(), "uploads/missing.jpg", nil)
	assert.ErrorIs(t, err, object.ErrNotFound)
}

func TestDeleteMissingSucceeds(t *testing.T) {
	s, _ := fakeBucket(t)
	assert.NoError(t, s.Delete(context.Background(), "uploads/missing.jpg"))
}

func TestNotInitialized(t *testing.T) {
	var s Storage
	_, err := s.Stat(context.Background(), "k")
	assert.EqualError(t, err, "r2: client not initialized")
}

func TestRangeHeader(t *testing.T) {
	assert.Equal(t, "bytes=5-9", rangeHeader(object.Range{Start: 5, End: 9}))
	assert.Equal(t, "bytes=100-", rangeHeader(object.Range{Start: 100, End: -1}))
}

func TestEndpoint(t *testing.T) {
	cfg := Config{AccountID: "acct", AccessKey: "a", SecretAccessKey: "b", Bucket: "c"}
	require.NoError(t, cfg.validate())
	assert.Equal(t, "auto", cfg.Region)
	assert.Equal(t, "https://acct.r2.cloudflarestorage.com", cfg.endpoint())

	cfg.EndpointOverride = "http://localhost:9000"
	assert.Equal(t, "http://localhost:9000", cfg.endpoint())
}
