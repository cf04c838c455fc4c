// Package r2 implements object.ObjectStorage for Cloudflare R2 and other
// S3-compatible endpoints.
package r2

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"imghost/pkg/object"
)

const (
	// MinPartSize is the smallest part S3 accepts for all but the last part.
	MinPartSize = 5 << 20

	// Uploaded names are never reused, so objects can be cached forever.
	immutableCacheControl = "public, max-age=31536000, immutable"
)

// Config holds R2 connection details.
type Config struct {
	AccountID       string
	AccessKey       string
	SecretAccessKey string
	Bucket          string
	// Region defaults to "auto", which is what R2 expects.
	Region string
	// EndpointOverride replaces the account endpoint, e.g. for a local
	// S3-compatible server. Path-style addressing is used with it.
	EndpointOverride string
}

func (c *Config) validate() error {
	if c.AccountID == "" && c.EndpointOverride == "" {
		return errors.New("r2: AccountID or EndpointOverride required")
	}
	if c.AccessKey == "" || c.SecretAccessKey == "" || c.Bucket == "" {
		return errors.New("r2: AccessKey, SecretAccessKey and Bucket are required")
	}
	if c.Region == "" {
		c.Region = "auto"
	}
	return nil
}

func (c Config) endpoint() string {
	if c.EndpointOverride != "" {
		return c.EndpointOverride
	}
	return fmt.Sprintf("https://%s.r2.cloudflarestorage.com", c.AccountID)
}

// Storage implements object.ObjectStorage on an R2 bucket.
type Storage struct {
	client *s3.Client
	bucket *string
}

// Init builds the S3 client from static credentials.
func (s *Storage) Init(ctx context.Context, param any) error {
	var cfg Config
	switch p := param.(type) {
	case Config:
		cfg = p
	case *Config:
		if p == nil {
			return errors.New("r2: nil config")
		}
		cfg = *p
	default:
		return fmt.Errorf("r2: unexpected config type %T", param)
	}
	if err := cfg.validate(); err != nil {
		return err
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretAccessKey, "")),
	)
	if err != nil {
		return fmt.Errorf("r2: load config: %w", err)
	}

	s.client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.endpoint())
		o.UsePathStyle = cfg.EndpointOverride != ""
	})
	s.bucket = aws.String(cfg.Bucket)
	return nil
}

// Close is a no-op; the SDK client holds no resources that need releasing.
func (s *Storage) Close(_ context.Context) error {
	return nil
}

// Put uploads the body in a single request.
func (s *Storage) Put(ctx context.Context, key string, r io.Reader, sizeHint int64, contentType string, meta map[string]string) (object.Object, error) {
	if err := s.ready(); err != nil {
		return object.Object{}, err
	}
	input := &s3.PutObjectInput{
		Bucket:       s.bucket,
		Key:          aws.String(key),
		Body:         r,
		CacheControl: aws.String(immutableCacheControl),
		ContentType:  optional(contentType),
		Metadata:     maps.Clone(meta),
	}
	if sizeHint >= 0 {
		input.ContentLength = aws.Int64(sizeHint)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return object.Object{}, mapError("put", key, err)
	}
	return s.Stat(ctx, key)
}

// MultipartPut uploads the body in parts of partSize bytes (at least
// MinPartSize). A body that fits in one part is sent with Put instead. A
// failed upload is aborted so no orphaned parts stay in the bucket.
func (s *Storage) MultipartPut(ctx context.Context, key string, r io.Reader, partSize int64, contentType string, meta map[string]string) (object.Object, error) {
	if err := s.ready(); err != nil {
		return object.Object{}, err
	}
	partSize = max(partSize, MinPartSize)

	buf := make([]byte, partSize)
	n, err := io.ReadFull(r, buf)
	switch {
	case errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF):
		return s.Put(ctx, key, bytes.NewReader(buf[:n]), int64(n), contentType, meta)
	case err != nil:
		return object.Object{}, fmt.Errorf("r2: read %s: %w", key, err)
	}

	created, err := s.client.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket:       s.bucket,
		Key:          aws.String(key),
		CacheControl: aws.String(immutableCacheControl),
		ContentType:  optional(contentType),
		Metadata:     maps.Clone(meta),
	})
	if err != nil {
		return object.Object{}, mapError("create multipart upload", key, err)
	}

	up := &multipartUpload{s: s, key: aws.String(key), id: created.UploadId}
	if err := up.send(ctx, buf[:n]); err != nil {
		return up.abort(ctx, err)
	}
	for {
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			if err := up.send(ctx, buf[:n]); err != nil {
				return up.abort(ctx, err)
			}
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			break
		}
		if err != nil {
			return up.abort(ctx, fmt.Errorf("r2: read %s: %w", key, err))
		}
	}
	if err := up.complete(ctx); err != nil {
		return up.abort(ctx, err)
	}
	return s.Stat(ctx, key)
}

// multipartUpload tracks the parts of one in-flight upload.
type multipartUpload struct {
	s     *Storage
	key   *string
	id    *string
	parts []types.CompletedPart
}

func (u *multipartUpload) send(ctx context.Context, part []byte) error {
	num := aws.Int32(int32(len(u.parts) + 1))
	resp, err := u.s.client.UploadPart(ctx, &s3.UploadPartInput{
		Bucket:     u.s.bucket,
		Key:        u.key,
		UploadId:   u.id,
		PartNumber: num,
		Body:       bytes.NewReader(part),
	})
	if err != nil {
		return mapError("upload part", *u.key, err)
	}
	u.parts = append(u.parts, types.CompletedPart{ETag: resp.ETag, PartNumber: num})
	return nil
}

func (u *multipartUpload) complete(ctx context.Context) error {
	_, err := u.s.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:          u.s.bucket,
		Key:             u.key,
		UploadId:        u.id,
		MultipartUpload: &types.CompletedMultipartUpload{Parts: u.parts},
	})
	if err != nil {
		return mapError("complete multipart upload", *u.key, err)
	}
	return nil
}

func (u *multipartUpload) abort(ctx context.Context, cause error) (object.Object, error) {
	_, _ = u.s.client.AbortMultipartUpload(context.WithoutCancel(ctx), &s3.AbortMultipartUploadInput{
		Bucket:   u.s.bucket,
		Key:      u.key,
		UploadId: u.id,
	})
	return object.Object{}, cause
}

// Get streams the object, or the requested byte range of it.
func (s *Storage) Get(ctx context.Context, key string, rng *object.Range) (object.Object, io.ReadCloser, error) {
	if err := s.ready(); err != nil {
		return object.Object{}, nil, err
	}
	input := &s3.GetObjectInput{Bucket: s.bucket, Key: aws.String(key)}
	if rng != nil {
		input.Range = aws.String(rangeHeader(*rng))
	}
	resp, err := s.client.GetObject(ctx, input)
	if err != nil {
		return object.Object{}, nil, mapError("get", key, err)
	}
	h := headers{resp.ContentLength, resp.ETag, resp.ContentType, resp.LastModified, resp.Metadata}
	return h.object(key), resp.Body, nil
}

// Stat issues a HEAD request.
func (s *Storage) Stat(ctx context.Context, key string) (object.Object, error) {
	if err := s.ready(); err != nil {
		return object.Object{}, err
	}
	resp, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: s.bucket, Key: aws.String(key)})
	if err != nil {
		return object.Object{}, mapError("stat", key, err)
	}
	h := headers{resp.ContentLength, resp.ETag, resp.ContentType, resp.LastModified, resp.Metadata}
	return h.object(key), nil
}

// List returns one ListObjectsV2 page. The continuation token is handed back
// to the caller untouched. Listings carry no content type or metadata.
func (s *Storage) List(ctx context.Context, opts object.ListOptions) (object.ListPage, error) {
	if err := s.ready(); err != nil {
		return object.ListPage{}, err
	}
	input := &s3.ListObjectsV2Input{
		Bucket:            s.bucket,
		Prefix:            aws.String(opts.Prefix),
		MaxKeys:           aws.Int32(int32(object.ClampLimit(opts.Limit))),
		ContinuationToken: optional(opts.Cursor),
	}
	resp, err := s.client.ListObjectsV2(ctx, input)
	if err != nil {
		return object.ListPage{}, mapError("list", opts.Prefix, err)
	}

	page := object.ListPage{
		Objects:   make([]object.Object, 0, len(resp.Contents)),
		Truncated: aws.ToBool(resp.IsTruncated),
	}
	for _, c := range resp.Contents {
		h := headers{size: c.Size, etag: c.ETag, modified: c.LastModified}
		page.Objects = append(page.Objects, h.object(aws.ToString(c.Key)))
	}
	if page.Truncated {
		page.Cursor = aws.ToString(resp.NextContinuationToken)
		if page.Cursor == "" {
			return object.ListPage{}, fmt.Errorf("r2: list %q: truncated page without continuation token", opts.Prefix)
		}
	}
	return page, nil
}

// Delete removes key. S3 already treats a missing key as success; a 404
// from a stricter endpoint is folded into success as well.
func (s *Storage) Delete(ctx context.Context, key string) error {
	if err := s.ready(); err != nil {
		return err
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: s.bucket, Key: aws.String(key)})
	if err = mapError("delete", key, err); errors.Is(err, object.ErrNotFound) {
		return nil
	}
	return err
}

func (s *Storage) ready() error {
	if s.client == nil {
		return errors.New("r2: client not initialized")
	}
	return nil
}

// headers are the object attributes shared by GET, HEAD and list entries.
type headers struct {
	size        *int64
	etag        *string
	contentType *string
	modified    *time.Time
	meta        map[string]string
}

func (h headers) object(key string) object.Object {
	return object.Object{
		Key:          key,
		Size:         aws.ToInt64(h.size),
		ETag:         strings.Trim(aws.ToString(h.etag), `"`),
		ContentType:  aws.ToString(h.contentType),
		LastModified: aws.ToTime(h.modified),
		Metadata:     maps.Clone(h.meta),
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return aws.String(s)
}

func rangeHeader(rng object.Range) string {
	if rng.End >= 0 {
		return fmt.Sprintf("bytes=%d-%d", rng.Start, rng.End)
	}
	return fmt.Sprintf("bytes=%d-", rng.Start)
}

// mapError turns missing-key responses into object.ErrNotFound and wraps
// everything else with the operation and key.
func mapError(op, key string, err error) error {
	if err == nil {
		return nil
	}
	if isNotFound(err) {
		return object.ErrNotFound
	}
	return fmt.Errorf("r2: %s %s: %w", op, key, err)
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch strings.ToLower(apiErr.ErrorCode()) {
		case "nosuchkey", "notfound", "404":
			return true
		}
	}
	var respErr *smithyhttp.ResponseError
	return errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusNotFound
}

var _ object.ObjectStorage = (*Storage)(nil)
