// Package gallery projects a flat object store onto folders and files,
// computes usage statistics, and performs uploads and folder operations.
//
// Nothing is cached between calls: every listing, folder tree and
// statistics snapshot is derived from a fresh store listing.
package gallery

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"

	"imghost/internal/errs"
	"imghost/pkg/keys"
	"imghost/pkg/object"
)

const (
	DefaultRoot = "uploads"
	// DefaultMultipartThreshold is the body size above which uploads are
	// streamed in parts.
	DefaultMultipartThreshold = 100 << 20
	DefaultPartSize           = 16 << 20
	DefaultDeleteConcurrency  = 16

	sniffLen = 3072
)

// Config holds the settings of a Service.
type Config struct {
	// Root is the key prefix every managed object lives under.
	Root string
	// Domain and CDNDomain are host names used for public URLs. A scheme
	// prefix is ignored.
	Domain    string
	CDNDomain string
	// DeleteConcurrency bounds parallel deletes; <= 0 is unbounded.
	DeleteConcurrency  int
	MultipartThreshold int64
	PartSize           int64
}

// Service is the gallery engine. It is safe for concurrent use.
type Service struct {
	store     object.ObjectStorage
	cfg       Config
	names     *keys.Generator
	folders   *Folders
	observers []Observer
	now       func() time.Time
}

// Option configures a Service.
type Option func(s *Service)

// WithObservers registers observers notified after every mutation.
func WithObservers(obs ...Observer) Option {
	return func(s *Service) {
		s.observers = append(s.observers, obs...)
	}
}

// WithNameGenerator replaces the upload name generator.
func WithNameGenerator(g *keys.Generator) Option {
	return func(s *Service) {
		s.names = g
	}
}

// WithClock sets the time source used for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// New returns a Service over store. Zero fields of cfg take their defaults,
// except DeleteConcurrency where zero means unbounded.
func New(store object.ObjectStorage, cfg Config, opts ...Option) *Service {
	cfg.Root = strings.Trim(cfg.Root, "/")
	if cfg.Root == "" {
		cfg.Root = DefaultRoot
	}
	cfg.Domain = StripScheme(cfg.Domain)
	if cfg.Domain == "" {
		cfg.Domain = "localhost"
	}
	cfg.CDNDomain = StripScheme(cfg.CDNDomain)
	if cfg.CDNDomain == "" {
		cfg.CDNDomain = cfg.Domain
	}
	if cfg.MultipartThreshold <= 0 {
		cfg.MultipartThreshold = DefaultMultipartThreshold
	}
	if cfg.PartSize <= 0 {
		cfg.PartSize = DefaultPartSize
	}

	s := &Service{
		store: store,
		cfg:   cfg,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.names == nil {
		s.names = keys.NewGenerator()
	}
	s.folders = NewFolders(store, cfg.Root, cfg.DeleteConcurrency)
	return s
}

// StripScheme removes a leading http:// or https:// and any trailing slash.
func StripScheme(domain string) string {
	domain = strings.TrimSpace(domain)
	domain = strings.TrimPrefix(domain, "https://")
	domain = strings.TrimPrefix(domain, "http://")
	return strings.TrimRight(domain, "/")
}

// Root returns the configured root prefix.
func (s *Service) Root() string { return s.cfg.Root }

// URLs returns the public and CDN URLs of key.
func (s *Service) URLs(key string) (url, cdnURL string) {
	return "https://" + s.cfg.Domain + "/" + key, "https://" + s.cfg.CDNDomain + "/" + key
}

func (s *Service) publish(ctx context.Context, ev Event) {
	ev.Time = s.now()
	for _, o := range s.observers {
		o.Notify(ctx, ev)
	}
}

// Listing is one page of a folder listing.
type Listing struct {
	Files []File
	// Folders is only filled for a listing of the root.
	Folders    []FolderNode
	Truncated  bool
	NextCursor string
}

// List returns one page of the objects under folder, including those in
// its subfolders.
func (s *Service) List(ctx context.Context, folder, cursor string, limit int) (Listing, error) {
	rel, err := cleanFolder("list", folder)
	if err != nil {
		return Listing{}, err
	}
	page, err := ListPage(ctx, s.store, keys.Prefix(s.cfg.Root, rel), cursor, limit)
	if err != nil {
		return Listing{}, err
	}

	proj := Project(page.Entries, s.cfg.Root)
	out := Listing{
		Files:      proj.Files,
		Truncated:  page.Truncated,
		NextCursor: page.NextCursor,
	}
	if rel == "" {
		out.Folders = proj.Folders
	}
	return out, nil
}

// ListFolders sweeps the whole root and returns every folder.
func (s *Service) ListFolders(ctx context.Context) ([]FolderNode, error) {
	p := newProjector(s.cfg.Root, false)
	err := Walk(ctx, s.store, keys.Prefix(s.cfg.Root, ""), func(page Page) error {
		p.add(page.Entries)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p.result().Folders, nil
}

// Stats aggregates every object under folder, page by page.
func (s *Service) Stats(ctx context.Context, folder string) (Snapshot, error) {
	rel, err := cleanFolder("stats", folder)
	if err != nil {
		return Snapshot{}, err
	}
	snap := NewSnapshot()
	err = Walk(ctx, s.store, keys.Prefix(s.cfg.Root, rel), func(page Page) error {
		snap = snap.Merge(Aggregate(page.Entries, s.cfg.Root))
		return nil
	})
	if err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// CreatedFolder describes a folder made by CreateFolder.
type CreatedFolder struct {
	Name string
	// Path is relative to the root.
	Path string
	// FullPath is "root/path/".
	FullPath string
}

// CreateFolder sanitizes name and writes the marker of parent/name.
func (s *Service) CreateFolder(ctx context.Context, name, parent string) (CreatedFolder, error) {
	clean, err := keys.SanitizeFolderName(name)
	if err != nil {
		return CreatedFolder{}, errs.Wrap(errs.KindInvalidName, "create folder", name, err)
	}
	parentPath, err := cleanFolder("create folder", parent)
	if err != nil {
		return CreatedFolder{}, err
	}
	path := keys.BuildKey("", parentPath, clean)
	if err := s.folders.Create(ctx, path); err != nil {
		return CreatedFolder{}, err
	}
	zerolog.Ctx(ctx).Info().Str("folder", path).Msg("folder created")
	s.publish(ctx, Event{Kind: EventFolderCreated, Path: path})
	return CreatedFolder{Name: clean, Path: path, FullPath: keys.Prefix(s.cfg.Root, path)}, nil
}

// DeleteFolder removes every object under path. See Folders.Delete.
func (s *Service) DeleteFolder(ctx context.Context, path string) (DeleteResult, error) {
	res, err := s.folders.Delete(ctx, path)
	if err == nil || errs.IsPartialDeletion(err) {
		s.publish(ctx, Event{Kind: EventFolderDeleted, Path: res.Path, Count: res.DeletedCount, Failed: len(res.Failures)})
	}
	return res, err
}

// UploadKey is a storage key derived for a future upload.
type UploadKey struct {
	Key         string
	FileName    string
	ContentType string
	URL         string
	CDNURL      string
}

// NewUploadKey derives a storage key without touching the store.
func (s *Service) NewUploadKey(originalName, contentType, folder string) (UploadKey, error) {
	rel, err := cleanFolder("upload key", folder)
	if err != nil {
		return UploadKey{}, err
	}
	name, err := s.names.Generate(originalName, contentType)
	if err != nil {
		return UploadKey{}, errs.Wrap(errs.KindUnknown, "upload key", originalName, err)
	}
	key := keys.BuildKey(s.cfg.Root, rel, name)
	url, cdn := s.URLs(key)
	return UploadKey{
		Key:         key,
		FileName:    name,
		ContentType: keys.ContentTypeFor(keys.Ext(name)),
		URL:         url,
		CDNURL:      cdn,
	}, nil
}

// UploadRequest is an image to store.
type UploadRequest struct {
	FileName    string
	ContentType string
	Folder      string
	Body        io.Reader
	// Size is the body length, or -1 when unknown.
	Size int64
}

// Uploaded describes a stored image.
type Uploaded struct {
	UploadKey
	Size         int64
	ETag         string
	LastModified time.Time
	Folder       string
}

// Upload stores an image under a freshly generated key. A missing or
// generic content type is sniffed from the body. Only image types with a
// known extension are accepted.
func (s *Service) Upload(ctx context.Context, req UploadRequest) (Uploaded, error) {
	body := req.Body
	contentType := req.ContentType
	if contentType == "" || strings.HasPrefix(contentType, "application/octet-stream") {
		head := make([]byte, sniffLen)
		n, err := io.ReadFull(body, head)
		if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
			return Uploaded{}, errs.Wrap(errs.KindInvalidInput, "upload", req.FileName, err)
		}
		contentType = mimetype.Detect(head[:n]).String()
		body = io.MultiReader(bytes.NewReader(head[:n]), body)
	}
	if !keys.IsAllowedContentType(contentType) {
		return Uploaded{}, errs.New(errs.KindInvalidInput, "upload", req.FileName, "unsupported file type "+contentType)
	}

	uk, err := s.NewUploadKey(req.FileName, contentType, req.Folder)
	if err != nil {
		return Uploaded{}, err
	}

	var obj object.Object
	if req.Size > s.cfg.MultipartThreshold {
		obj, err = s.store.MultipartPut(ctx, uk.Key, body, s.cfg.PartSize, uk.ContentType, nil)
	} else {
		obj, err = s.store.Put(ctx, uk.Key, body, req.Size, uk.ContentType, nil)
	}
	if err != nil {
		return Uploaded{}, errs.Wrap(errs.KindStoreUnavailable, "upload", uk.Key, err)
	}

	folder, _ := keys.SplitKey(uk.Key, s.cfg.Root)
	zerolog.Ctx(ctx).Info().Str("key", uk.Key).Int64("size", obj.Size).Msg("image uploaded")
	s.publish(ctx, Event{Kind: EventImageUploaded, Key: uk.Key, Path: folder})
	return Uploaded{
		UploadKey:    uk,
		Size:         obj.Size,
		ETag:         obj.ETag,
		LastModified: obj.LastModified,
		Folder:       folder,
	}, nil
}

// DeleteImage removes a single image. The key must lie under the root.
func (s *Service) DeleteImage(ctx context.Context, key string) error {
	if err := s.checkKey("delete image", key); err != nil {
		return err
	}
	if _, err := s.store.Stat(ctx, key); err != nil {
		return storeError("delete image", key, err)
	}
	if err := s.store.Delete(ctx, key); err != nil {
		return storeError("delete image", key, err)
	}
	folder, _ := keys.SplitKey(key, s.cfg.Root)
	zerolog.Ctx(ctx).Info().Str("key", key).Msg("image deleted")
	s.publish(ctx, Event{Kind: EventImageDeleted, Key: key, Path: folder})
	return nil
}

// Open streams an object under the root. The caller closes the body.
func (s *Service) Open(ctx context.Context, key string, rng *object.Range) (object.Object, io.ReadCloser, error) {
	if err := s.checkKey("open", key); err != nil {
		return object.Object{}, nil, err
	}
	obj, body, err := s.store.Get(ctx, key, rng)
	if err != nil {
		return object.Object{}, nil, storeError("open", key, err)
	}
	return obj, body, nil
}

func (s *Service) checkKey(op, key string) error {
	if key == "" {
		return errs.New(errs.KindInvalidInput, op, key, "image key is required")
	}
	if !strings.HasPrefix(key, keys.Prefix(s.cfg.Root, "")) {
		return errs.New(errs.KindInvalidInput, op, key, "key is outside the managed root")
	}
	if _, err := keys.CleanFolderPath(key); err != nil {
		return errs.Wrap(errs.KindInvalidInput, op, key, err)
	}
	return nil
}

func cleanFolder(op, folder string) (string, error) {
	rel, err := keys.CleanFolderPath(folder)
	if err != nil {
		return "", errs.Wrap(errs.KindInvalidInput, op, folder, err)
	}
	return rel, nil
}

func storeError(op, key string, err error) error {
	if errors.Is(err, object.ErrNotFound) {
		return errs.Wrap(errs.KindNotFound, op, key, err)
	}
	return errs.Wrap(errs.KindStoreUnavailable, op, key, err)
}
