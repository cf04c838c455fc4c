// Package minio implements object.ObjectStorage on a MinIO server.
package minio

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"imghost/pkg/object"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Config holds MinIO connection details.
type Config struct {
	// Endpoint is the host:port of the server, e.g. "localhost:9000".
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// Region is only needed for region-aware deployments.
	Region string
	// CreateBucket makes Init create the bucket when it does not exist.
	CreateBucket bool
}

// Storage implements object.ObjectStorage for MinIO.
// It is safe for concurrent use by multiple goroutines.
type Storage struct {
	client *miniogo.Client
	bucket string
}

// Init connects to MinIO and verifies the bucket is reachable.
func (s *Storage) Init(ctx context.Context, param any) error {
	cfg, ok := param.(Config)
	if !ok {
		if p, ok := param.(*Config); ok && p != nil {
			cfg = *p
		} else {
			return fmt.Errorf("minio: unexpected config type %T", param)
		}
	}
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return errors.New("minio: Endpoint and Bucket are required")
	}

	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return fmt.Errorf("minio: create client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return fmt.Errorf("minio: check bucket: %w", mapError(err))
	}
	if !exists {
		if !cfg.CreateBucket {
			return fmt.Errorf("minio: bucket %q does not exist", cfg.Bucket)
		}
		if err := client.MakeBucket(ctx, cfg.Bucket, miniogo.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return fmt.Errorf("minio: create bucket: %w", mapError(err))
		}
	}

	s.client = client
	s.bucket = cfg.Bucket
	return nil
}

// Close is a no-op; the SDK client holds no persistent connections.
func (s *Storage) Close(_ context.Context) error {
	return nil
}

// Put uploads the full object body. A negative sizeHint lets the SDK stream
// the body in parts.
func (s *Storage) Put(ctx context.Context, key string, r io.Reader, sizeHint int64, contentType string, meta map[string]string) (object.Object, error) {
	return s.put(ctx, key, r, sizeHint, miniogo.PutObjectOptions{
		ContentType:  contentType,
		UserMetadata: meta,
	})
}

// MultipartPut streams large uploads with a fixed part size.
func (s *Storage) MultipartPut(ctx context.Context, key string, r io.Reader, partSize int64, contentType string, meta map[string]string) (object.Object, error) {
	return s.put(ctx, key, r, -1, miniogo.PutObjectOptions{
		ContentType:  contentType,
		UserMetadata: meta,
		PartSize:     uint64(partSize),
	})
}

func (s *Storage) put(ctx context.Context, key string, r io.Reader, size int64, opts miniogo.PutObjectOptions) (object.Object, error) {
	if err := s.ensureClient(); err != nil {
		return object.Object{}, err
	}
	if _, err := s.client.PutObject(ctx, s.bucket, key, r, size, opts); err != nil {
		return object.Object{}, mapError(err)
	}
	return s.Stat(ctx, key)
}

// Get opens a streaming handle to the object.
func (s *Storage) Get(ctx context.Context, key string, rng *object.Range) (object.Object, io.ReadCloser, error) {
	if err := s.ensureClient(); err != nil {
		return object.Object{}, nil, err
	}

	opts := miniogo.GetObjectOptions{}
	if rng != nil {
		end := rng.End
		if end < 0 {
			end = 0
		}
		if rng.Start > 0 || end > 0 {
			if err := opts.SetRange(rng.Start, end); err != nil {
				return object.Object{}, nil, fmt.Errorf("minio: %w", err)
			}
		}
	}

	obj, err := s.client.GetObject(ctx, s.bucket, key, opts)
	if err != nil {
		return object.Object{}, nil, mapError(err)
	}

	// GetObject is lazy; Stat surfaces a missing key.
	stat, err := obj.Stat()
	if err != nil {
		obj.Close()
		return object.Object{}, nil, mapError(err)
	}

	return infoToObject(stat), obj, nil
}

// List returns one page of objects under opts.Prefix. The cursor encodes the
// last key of the previous page and is passed to the server as StartAfter.
func (s *Storage) List(ctx context.Context, opts object.ListOptions) (object.ListPage, error) {
	if err := s.ensureClient(); err != nil {
		return object.ListPage{}, err
	}

	startAfter := ""
	if opts.Cursor != "" {
		b, err := base64.RawURLEncoding.DecodeString(opts.Cursor)
		if err != nil {
			return object.ListPage{}, fmt.Errorf("minio: invalid cursor: %w", err)
		}
		startAfter = string(b)
	}
	limit := object.ClampLimit(opts.Limit)

	listCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	page := object.ListPage{Objects: make([]object.Object, 0, limit)}
	for info := range s.client.ListObjects(listCtx, s.bucket, miniogo.ListObjectsOptions{
		Prefix:     opts.Prefix,
		Recursive:  true,
		StartAfter: startAfter,
		MaxKeys:    limit + 1,
	}) {
		if info.Err != nil {
			return object.ListPage{}, mapError(info.Err)
		}
		if len(page.Objects) == limit {
			page.Truncated = true
			break
		}
		page.Objects = append(page.Objects, infoToObject(info))
	}

	if page.Truncated {
		last := page.Objects[len(page.Objects)-1].Key
		page.Cursor = base64.RawURLEncoding.EncodeToString([]byte(last))
	}
	return page, nil
}

// Stat returns metadata only.
func (s *Storage) Stat(ctx context.Context, key string) (object.Object, error) {
	if err := s.ensureClient(); err != nil {
		return object.Object{}, err
	}
	info, err := s.client.StatObject(ctx, s.bucket, key, miniogo.StatObjectOptions{})
	if err != nil {
		return object.Object{}, mapError(err)
	}
	return infoToObject(info), nil
}

// Delete removes an object. Missing keys are not an error.
func (s *Storage) Delete(ctx context.Context, key string) error {
	if err := s.ensureClient(); err != nil {
		return err
	}
	err := mapError(s.client.RemoveObject(ctx, s.bucket, key, miniogo.RemoveObjectOptions{}))
	if errors.Is(err, object.ErrNotFound) {
		return nil
	}
	return err
}

func (s *Storage) ensureClient() error {
	if s.client == nil {
		return errors.New("minio: client not initialized")
	}
	return nil
}

func infoToObject(info miniogo.ObjectInfo) object.Object {
	var meta map[string]string
	if len(info.UserMetadata) > 0 {
		meta = make(map[string]string, len(info.UserMetadata))
		for k, v := range info.UserMetadata {
			meta[strings.ToLower(k)] = v
		}
	}
	return object.Object{
		Key:          info.Key,
		Size:         info.Size,
		ETag:         strings.Trim(info.ETag, `"`),
		ContentType:  info.ContentType,
		LastModified: info.LastModified,
		Metadata:     meta,
	}
}

// mapError translates MinIO SDK errors into the object package sentinels.
func mapError(err error) error {
	if err == nil {
		return nil
	}

	resp := miniogo.ToErrorResponse(err)
	switch resp.Code {
	case "NoSuchKey", "NoSuchObject":
		return object.ErrNotFound
	}
	if resp.StatusCode == http.StatusNotFound && resp.Code != "NoSuchBucket" {
		return object.ErrNotFound
	}

	return fmt.Errorf("minio: %w", err)
}

// Ensure Storage implements ObjectStorage interface.
var _ object.ObjectStorage = (*Storage)(nil)
