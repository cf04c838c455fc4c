// Package objecttest holds the behavior every object.ObjectStorage backend
// must share. Backend tests call Run with a freshly initialized store.
package objecttest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"imghost/pkg/object"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run exercises put/stat/get/list/delete against obj. Keys are namespaced
// under a unique prefix so the suite can run against a shared bucket.
func Run(t *testing.T, ctx context.Context, obj object.ObjectStorage) {
	t.Helper()
	prefix := fmt.Sprintf("imghost-test-%d/", time.Now().UnixNano())

	t.Run("PutStatGetDelete", func(t *testing.T) {
		key := prefix + "roundtrip.png"
		content := []byte("Hello, object store! This is a test payload.")
		meta := map[string]string{"owner": "imghost-tests"}

		putObj, err := obj.Put(ctx, key, bytes.NewReader(content), int64(len(content)), "image/png", meta)
		require.NoError(t, err)
		assert.Equal(t, key, putObj.Key)
		assert.Equal(t, int64(len(content)), putObj.Size)

		statObj, err := obj.Stat(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, int64(len(content)), statObj.Size)
		assert.Equal(t, "image/png", statObj.ContentType)
		assert.Equal(t, "imghost-tests", statObj.Metadata["owner"])

		_, rc, err := obj.Get(ctx, key, nil)
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		assert.Equal(t, content, data)

		require.NoError(t, obj.Delete(ctx, key))
		_, err = obj.Stat(ctx, key)
		assert.ErrorIs(t, err, object.ErrNotFound)

		// Deleting again is a no-op.
		assert.NoError(t, obj.Delete(ctx, key))
	})

	t.Run("ListPagination", func(t *testing.T) {
		listPrefix := prefix + "paged/"
		want := make(map[string]bool)
		for i := range 5 {
			key := fmt.Sprintf("%s%02d.jpg", listPrefix, i)
			_, err := obj.Put(ctx, key, bytes.NewReader([]byte{byte(i)}), 1, "image/jpeg", nil)
			require.NoError(t, err)
			want[key] = true
		}
		// A sibling that shares the textual prefix but not the folder.
		_, err := obj.Put(ctx, prefix+"paged-other.jpg", bytes.NewReader([]byte("x")), 1, "image/jpeg", nil)
		require.NoError(t, err)

		got := make(map[string]bool)
		cursor := ""
		for pages := 0; ; pages++ {
			require.Less(t, pages, 10, "listing did not terminate")
			page, err := obj.List(ctx, object.ListOptions{Prefix: listPrefix, Cursor: cursor, Limit: 2})
			require.NoError(t, err)
			assert.LessOrEqual(t, len(page.Objects), 2)
			for _, o := range page.Objects {
				assert.False(t, got[o.Key], "duplicate key %s", o.Key)
				got[o.Key] = true
			}
			if !page.Truncated {
				assert.Empty(t, page.Cursor)
				break
			}
			require.NotEmpty(t, page.Cursor)
			cursor = page.Cursor
		}
		assert.Equal(t, want, got)

		for key := range want {
			require.NoError(t, obj.Delete(ctx, key))
		}
		require.NoError(t, obj.Delete(ctx, prefix+"paged-other.jpg"))
	})
}
