// Package object is the flat key/value store contract the gateway is built
// on. The R2, MinIO and SQLite backends implement it; none of them knows
// about folders.
package object

import (
	"context"
	"errors"
	"io"
	"time"
)

// MaxListLimit is the most entries a single List call returns.
const MaxListLimit = 1000

// Object is the metadata of one stored key.
type Object struct {
	Key  string
	Size int64
	// ETag is unquoted.
	ETag        string
	ContentType string
	// LastModified is the upload time as reported by the backend.
	LastModified time.Time
	// Metadata is user metadata set at upload. Listings may leave it empty.
	Metadata map[string]string
}

// Range selects bytes Start through End inclusive; End < 0 reads to the end.
type Range struct {
	Start int64
	End   int64
}

// ListOptions selects one page of a prefix listing.
type ListOptions struct {
	// Prefix is matched literally against the start of each key.
	Prefix string
	// Cursor continues a previous listing. It is whatever the backend
	// returned in ListPage.Cursor and must be passed back unmodified.
	Cursor string
	// Limit caps the page size; see ClampLimit.
	Limit int
}

// ListPage is one page of a prefix listing in key order.
type ListPage struct {
	Objects []Object
	// Truncated reports whether more entries may follow. A truncated page
	// can be empty.
	Truncated bool
	// Cursor is set only when Truncated is true.
	Cursor string
}

var (
	ErrNotFound = errors.New("object not found")
	ErrConflict = errors.New("object already exists")
)

// Lifecycle opens and releases a backend. Init takes the backend's own
// Config value or a pointer to it.
type Lifecycle interface {
	Init(ctx context.Context, param any) error
	Close(ctx context.Context) error
}

// Lister pages through keys sharing a prefix.
type Lister interface {
	List(ctx context.Context, opts ListOptions) (ListPage, error)
}

// Reader reads single objects and listings. Missing keys yield ErrNotFound.
type Reader interface {
	Lister
	// Get returns the metadata and a body the caller must close.
	Get(ctx context.Context, key string, rng *Range) (Object, io.ReadCloser, error)
	// Stat returns the metadata only.
	Stat(ctx context.Context, key string) (Object, error)
}

// Writer stores objects. sizeHint is -1 when unknown.
type Writer interface {
	Put(ctx context.Context, key string, r io.Reader, sizeHint int64, contentType string, meta map[string]string) (Object, error)
	// MultipartPut uploads large bodies in parts of about partSize bytes.
	MultipartPut(ctx context.Context, key string, r io.Reader, partSize int64, contentType string, meta map[string]string) (Object, error)
}

// Deleter removes objects. Deleting a missing key succeeds.
type Deleter interface {
	Delete(ctx context.Context, key string) error
}

// ObjectStorage is the full backend contract.
type ObjectStorage interface {
	Lifecycle
	Reader
	Writer
	Deleter
}

// ClampLimit maps a requested page size onto (0, MaxListLimit]. Zero,
// negative and oversized limits all mean MaxListLimit.
func ClampLimit(limit int) int {
	if limit <= 0 || limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}
