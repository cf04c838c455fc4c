package gallery

import (
	"bytes"
	"context"
	"errors"
	"io"
	"slices"
	"strings"
	"sync"
	"time"

	"imghost/pkg/object"
)

// memStore is an in-memory object.ObjectStorage with failure injection.
// Its cursor is the last key of the previous page.
type memStore struct {
	mu      sync.Mutex
	objects map[string]memObject

	// failDelete lists keys whose Delete fails.
	failDelete map[string]bool
	// listErr is returned by every List call when set.
	listErr error
	// pageSize caps pages below the requested limit when > 0.
	pageSize int
	// listCalls counts List invocations.
	listCalls int
	// deletes counts Delete invocations.
	deletes int
}

type memObject struct {
	object.Object
	data []byte
}

func newMemStore() *memStore {
	return &memStore{objects: make(map[string]memObject), failDelete: make(map[string]bool)}
}

// seed stores an object with the given size and modification time.
func (m *memStore) seed(key string, size int64, modified time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = memObject{
		Object: object.Object{Key: key, Size: size, LastModified: modified, ETag: "etag-" + key},
		data:   make([]byte, size),
	}
}

func (m *memStore) keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.objects))
	for k := range m.objects {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

func (m *memStore) Init(context.Context, any) error { return nil }
func (m *memStore) Close(context.Context) error     { return nil }

func (m *memStore) Get(_ context.Context, key string, _ *object.Range) (object.Object, io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.objects[key]
	if !ok {
		return object.Object{}, nil, object.ErrNotFound
	}
	return o.Object, io.NopCloser(bytes.NewReader(o.data)), nil
}

func (m *memStore) List(_ context.Context, opts object.ListOptions) (object.ListPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	if m.listErr != nil {
		return object.ListPage{}, m.listErr
	}
	limit := object.ClampLimit(opts.Limit)
	if m.pageSize > 0 && m.pageSize < limit {
		limit = m.pageSize
	}

	var matched []string
	for k := range m.objects {
		if strings.HasPrefix(k, opts.Prefix) && k > opts.Cursor {
			matched = append(matched, k)
		}
	}
	slices.Sort(matched)

	page := object.ListPage{}
	if len(matched) > limit {
		matched = matched[:limit]
		page.Truncated = true
		page.Cursor = matched[len(matched)-1]
	}
	for _, k := range matched {
		page.Objects = append(page.Objects, m.objects[k].Object)
	}
	return page, nil
}

func (m *memStore) Put(_ context.Context, key string, r io.Reader, _ int64, contentType string, meta map[string]string) (object.Object, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return object.Object{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	obj := object.Object{
		Key:          key,
		Size:         int64(len(data)),
		ContentType:  contentType,
		LastModified: time.Now().UTC(),
		ETag:         "etag-" + key,
		Metadata:     meta,
	}
	m.objects[key] = memObject{Object: obj, data: data}
	return obj, nil
}

func (m *memStore) MultipartPut(ctx context.Context, key string, r io.Reader, _ int64, contentType string, meta map[string]string) (object.Object, error) {
	return m.Put(ctx, key, r, -1, contentType, meta)
}

func (m *memStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes++
	if m.failDelete[key] {
		return errors.New("injected delete failure")
	}
	delete(m.objects, key)
	return nil
}

func (m *memStore) Stat(_ context.Context, key string) (object.Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.objects[key]
	if !ok {
		return object.Object{}, object.ErrNotFound
	}
	return o.Object, nil
}

var _ object.ObjectStorage = (*memStore)(nil)
