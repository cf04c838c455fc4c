// Package keys maps between storage keys and the folder/file view of the
// gallery, and generates collision-resistant file names for uploads.
//
// A key is "<root>/<folder path>/<file name>", where the folder path may be
// empty or hold several "/"-separated segments. Folders have no record of
// their own; an otherwise empty folder is kept visible by a zero-length
// marker object named MarkerName.
package keys

import (
	"errors"
	"regexp"
	"strings"

	"github.com/gosimple/unidecode"
)

// MarkerName is the reserved file name of a folder marker object.
const MarkerName = ".folder"

// DefaultExtension is used when neither the file name nor the content type
// yields an allowed image extension.
const DefaultExtension = "jpg"

var (
	// ErrInvalidName is returned when a folder name is empty after sanitizing.
	ErrInvalidName = errors.New("folder name is empty after sanitizing")
	// ErrInvalidPath is returned for folder paths with "." or ".." segments.
	ErrInvalidPath = errors.New("folder path contains a relative segment")
)

// extensionTypes lists the allowed image extensions and the content type
// each one is stored with.
var extensionTypes = map[string]string{
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"webp": "image/webp",
	"avif": "image/avif",
	"svg":  "image/svg+xml",
	"bmp":  "image/bmp",
	"tiff": "image/tiff",
}

// typeExtensions maps accepted upload content types to extensions.
var typeExtensions = map[string]string{
	"image/jpeg":    "jpg",
	"image/png":     "png",
	"image/gif":     "gif",
	"image/webp":    "webp",
	"image/avif":    "avif",
	"image/svg+xml": "svg",
	"image/bmp":     "bmp",
	"image/tiff":    "tiff",
}

// BuildKey joins the non-empty parts into a storage key. Leading and
// trailing slashes of each part are dropped, so the result always starts
// with root + "/".
func BuildKey(root, folder, fileName string) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{root, folder, fileName} {
		if p = strings.Trim(p, "/"); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "/")
}

// Prefix returns the listing prefix of folder under root, ending in "/".
// With an empty root and folder it is the empty prefix.
func Prefix(root, folder string) string {
	if p := BuildKey(root, folder, ""); p != "" {
		return p + "/"
	}
	return ""
}

// SplitKey removes root + "/" from the front of key and splits the rest
// into the folder path and the file name. Objects directly under root have
// an empty folder path. Keys outside root are split as if root were empty.
func SplitKey(key, root string) (folderPath, fileName string) {
	rel := strings.TrimPrefix(key, strings.Trim(root, "/")+"/")
	i := strings.LastIndexByte(rel, '/')
	if i < 0 {
		return "", rel
	}
	return rel[:i], rel[i+1:]
}

// TopFolder returns the first folder segment of key under root, or "" when
// the object sits directly under root.
func TopFolder(key, root string) string {
	folder, _ := SplitKey(key, root)
	top, _, _ := strings.Cut(folder, "/")
	return top
}

// IsMarker reports whether fileName is the folder marker.
func IsMarker(fileName string) bool {
	return fileName == MarkerName
}

var (
	nonNameChars = regexp.MustCompile(`[^\w\s-]`)
	whitespace   = regexp.MustCompile(`\s+`)
)

// SanitizeFolderName turns user input into a single path segment made of
// lower-case word characters and hyphens. Non-ASCII letters are
// transliterated first, so "Café" keeps its letters as "cafe".
func SanitizeFolderName(raw string) (string, error) {
	name := unidecode.Unidecode(raw)
	name = nonNameChars.ReplaceAllString(name, "")
	name = strings.TrimSpace(name)
	name = whitespace.ReplaceAllString(name, "-")
	name = strings.ToLower(name)
	if name == "" {
		return "", ErrInvalidName
	}
	return name, nil
}

// CleanFolderPath normalizes a folder path supplied by a client: surrounding
// slashes and empty segments are dropped, "." and ".." are rejected. The
// empty string is the root.
func CleanFolderPath(raw string) (string, error) {
	segments := strings.Split(strings.TrimSpace(raw), "/")
	out := segments[:0]
	for _, s := range segments {
		s = strings.TrimSpace(s)
		switch s {
		case "":
			continue
		case ".", "..":
			return "", ErrInvalidPath
		}
		out = append(out, s)
	}
	return strings.Join(out, "/"), nil
}

// Ext returns the lower-cased text after the final "." of fileName, or ""
// when there is none.
func Ext(fileName string) string {
	i := strings.LastIndexByte(fileName, '.')
	if i < 0 {
		return ""
	}
	return strings.ToLower(fileName[i+1:])
}

// FileExtension returns the allowed image extension of fileName, falling
// back to DefaultExtension.
func FileExtension(fileName string) string {
	if ext := Ext(fileName); IsAllowedExtension(ext) {
		return ext
	}
	return DefaultExtension
}

// IsAllowedExtension reports whether ext is one of the image extensions.
func IsAllowedExtension(ext string) bool {
	_, ok := extensionTypes[ext]
	return ok
}

// ContentTypeFor returns the content type an object with extension ext is
// stored with.
func ContentTypeFor(ext string) string {
	if ct, ok := extensionTypes[strings.ToLower(ext)]; ok {
		return ct
	}
	return extensionTypes[DefaultExtension]
}

// ExtensionForContentType maps an upload content type to its extension.
// Parameters such as "; charset=utf-8" are ignored.
func ExtensionForContentType(contentType string) (string, bool) {
	base, _, _ := strings.Cut(contentType, ";")
	ext, ok := typeExtensions[strings.ToLower(strings.TrimSpace(base))]
	return ext, ok
}

// IsAllowedContentType reports whether uploads of contentType are accepted.
func IsAllowedContentType(contentType string) bool {
	_, ok := ExtensionForContentType(contentType)
	return ok
}
