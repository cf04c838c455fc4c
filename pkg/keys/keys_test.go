package keys

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildAndSplitKey(t *testing.T) {
	cases := []struct {
		folder, file, key string
	}{
		{"", "a.jpg", "uploads/a.jpg"},
		{"blog", "a.jpg", "uploads/blog/a.jpg"},
		{"blog/2024", "a.jpg", "uploads/blog/2024/a.jpg"},
		{"/blog/", "a.jpg", "uploads/blog/a.jpg"},
	}
	for _, tc := range cases {
		key := BuildKey("uploads", tc.folder, tc.file)
		assert.Equal(t, tc.key, key)

		folder, file := SplitKey(key, "uploads")
		assert.Equal(t, tc.file, file)
		assert.Equal(t, BuildKey("", tc.folder, ""), folder)
	}
}

func TestSplitKeyOutsideRoot(t *testing.T) {
	folder, file := SplitKey("other/x/y.png", "uploads")
	assert.Equal(t, "other/x", folder)
	assert.Equal(t, "y.png", file)
}

func TestPrefix(t *testing.T) {
	assert.Equal(t, "uploads/", Prefix("uploads", ""))
	assert.Equal(t, "uploads/blog/", Prefix("uploads", "blog"))
	assert.Equal(t, "uploads/blog/2024/", Prefix("uploads/", "/blog/2024/"))
}

func TestTopFolder(t *testing.T) {
	assert.Equal(t, "", TopFolder("uploads/a.jpg", "uploads"))
	assert.Equal(t, "blog", TopFolder("uploads/blog/a.jpg", "uploads"))
	assert.Equal(t, "blog", TopFolder("uploads/blog/2024/a.jpg", "uploads"))
}

func TestSanitizeFolderName(t *testing.T) {
	cases := map[string]string{
		"My Blog 2024!!":  "my-blog-2024",
		"  spaced  out  ": "spaced-out",
		"under_score":     "under_score",
		"Café Menü":       "cafe-menu",
		"a-b":             "a-b",
	}
	for in, want := range cases {
		got, err := SanitizeFolderName(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)

		again, err := SanitizeFolderName(got)
		require.NoError(t, err)
		assert.Equal(t, got, again, "sanitizing must be idempotent for %q", in)
	}
}

func TestSanitizeFolderNameEmpty(t *testing.T) {
	for _, in := range []string{"", "   ", "!!!", "/?*"} {
		_, err := SanitizeFolderName(in)
		assert.ErrorIs(t, err, ErrInvalidName, "%q", in)
	}
}

func TestCleanFolderPath(t *testing.T) {
	got, err := CleanFolderPath("/blog//2024/")
	require.NoError(t, err)
	assert.Equal(t, "blog/2024", got)

	got, err = CleanFolderPath("")
	require.NoError(t, err)
	assert.Equal(t, "", got)

	_, err = CleanFolderPath("blog/../secrets")
	assert.ErrorIs(t, err, ErrInvalidPath)
	_, err = CleanFolderPath("./blog")
	assert.ErrorIs(t, err, ErrInvalidPath)
}

func TestExtensions(t *testing.T) {
	assert.Equal(t, "png", Ext("a.PNG"))
	assert.Equal(t, "", Ext("README"))
	assert.Equal(t, "gz", Ext("archive.tar.gz"))

	assert.Equal(t, "webp", FileExtension("x.webp"))
	assert.Equal(t, "jpg", FileExtension("x.exe"))
	assert.Equal(t, "jpg", FileExtension("noext"))

	assert.Equal(t, "image/svg+xml", ContentTypeFor("svg"))
	assert.Equal(t, "image/jpeg", ContentTypeFor("JPEG"))
	assert.Equal(t, "image/jpeg", ContentTypeFor("unknown"))

	ext, ok := ExtensionForContentType("image/png; charset=binary")
	assert.True(t, ok)
	assert.Equal(t, "png", ext)
	assert.False(t, IsAllowedContentType("application/pdf"))
	assert.True(t, IsAllowedContentType("IMAGE/AVIF"))
}
