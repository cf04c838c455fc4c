// Package sqlite implements object.ObjectStorage on a single SQL table, for
// local development and tests. The embedded modernc.org/sqlite driver
// ("sqlite") and the libsql driver ("libsql", for Turso databases) are both
// registered.
package sqlite

import (
	"bytes"
	"context"
	"crypto/md5"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"math"
	"regexp"
	"strings"
	"time"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"imghost/pkg/object"
)

// Config defines how the storage is opened.
type Config struct {
	// Source is the DSN, e.g. file:objects.db?cache=shared.
	Source string
	// Driver registered with database/sql. Defaults to "sqlite".
	Driver string
	// Table holding the objects. Defaults to "objects".
	Table string
	// AllowOverwrite makes Put replace an existing key instead of failing
	// with object.ErrConflict.
	AllowOverwrite bool
	// DB is an already open connection; Source and Driver are then ignored
	// and Close leaves it open.
	DB *sql.DB
	// Now stamps uploads. Defaults to time.Now.
	Now func() time.Time
}

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Columns shared by every metadata query, in scanObject order.
const columns = `key, size, etag, content_type, uploaded_at, meta`

// queries are rendered once per table in Init.
type queries struct {
	stat   string
	get    string
	list   string
	insert string
	upsert string
	delete string
}

func newQueries(table string) queries {
	insert := fmt.Sprintf(`INSERT INTO %s (key, body, size, etag, content_type, uploaded_at, meta) VALUES (?, ?, ?, ?, ?, ?, ?)`, table)
	return queries{
		stat: fmt.Sprintf(`SELECT %s FROM %s WHERE key = ?`, columns, table),
		// substr on a BLOB counts bytes, so a range is cut inside the database.
		get:    fmt.Sprintf(`SELECT %s, substr(body, ?, ?) FROM %s WHERE key = ?`, columns, table),
		list:   fmt.Sprintf(`SELECT %s FROM %s WHERE key >= ? AND key > ?`, columns, table),
		insert: insert,
		upsert: insert + ` ON CONFLICT(key) DO UPDATE SET body = excluded.body, size = excluded.size, etag = excluded.etag, content_type = excluded.content_type, uploaded_at = excluded.uploaded_at, meta = excluded.meta`,
		delete: fmt.Sprintf(`DELETE FROM %s WHERE key = ?`, table),
	}
}

func schema(table string) []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			key          TEXT PRIMARY KEY,
			body         BLOB NOT NULL,
			size         INTEGER NOT NULL,
			etag         TEXT NOT NULL DEFAULT '',
			content_type TEXT NOT NULL DEFAULT '',
			uploaded_at  INTEGER NOT NULL,
			meta         TEXT NOT NULL DEFAULT ''
		)`, table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %[1]s_uploaded_at ON %[1]s (uploaded_at)`, table),
	}
}

// Storage satisfies object.ObjectStorage using a SQL table.
type Storage struct {
	db             *sql.DB
	ownsDB         bool
	q              queries
	allowOverwrite bool
	now            func() time.Time
}

// Init opens the database and creates the table when missing.
func (s *Storage) Init(ctx context.Context, param any) error {
	var cfg Config
	switch p := param.(type) {
	case Config:
		cfg = p
	case *Config:
		if p == nil {
			return errors.New("sqlite: nil config")
		}
		cfg = *p
	default:
		return fmt.Errorf("sqlite: unexpected config type %T", param)
	}

	if cfg.Driver == "" {
		cfg.Driver = "sqlite"
	}
	if cfg.Table == "" {
		cfg.Table = "objects"
	}
	if !tableName.MatchString(cfg.Table) {
		return fmt.Errorf("sqlite: invalid table name %q", cfg.Table)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	switch {
	case cfg.DB != nil:
		s.db = cfg.DB
	case cfg.Source == "":
		return errors.New("sqlite: Source is required")
	default:
		db, err := sql.Open(cfg.Driver, cfg.Source)
		if err != nil {
			return fmt.Errorf("sqlite: open database: %w", err)
		}
		s.db, s.ownsDB = db, true
	}
	s.q = newQueries(cfg.Table)
	s.allowOverwrite = cfg.AllowOverwrite
	s.now = cfg.Now

	for _, stmt := range schema(cfg.Table) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite: create schema: %w", err)
		}
	}
	return nil
}

// Close releases the connection when the storage opened it.
func (s *Storage) Close(_ context.Context) error {
	if s.db != nil && s.ownsDB {
		return s.db.Close()
	}
	return nil
}

// Put stores the whole body in one row.
func (s *Storage) Put(ctx context.Context, key string, r io.Reader, _ int64, contentType string, meta map[string]string) (object.Object, error) {
	if err := s.ready(); err != nil {
		return object.Object{}, err
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return object.Object{}, fmt.Errorf("sqlite: read body: %w", err)
	}
	metaJSON, err := encodeMeta(meta)
	if err != nil {
		return object.Object{}, err
	}

	// Stored at millisecond precision, so the returned value matches Stat.
	uploaded := s.now().UTC().Truncate(time.Millisecond)
	obj := object.Object{
		Key:          key,
		Size:         int64(len(body)),
		ETag:         etagOf(body),
		ContentType:  contentType,
		LastModified: uploaded,
		Metadata:     maps.Clone(meta),
	}

	query := s.q.insert
	if s.allowOverwrite {
		query = s.q.upsert
	}
	_, err = s.db.ExecContext(ctx, query, key, body, obj.Size, obj.ETag, contentType, uploaded.UnixMilli(), metaJSON)
	if isConflict(err) {
		return object.Object{}, object.ErrConflict
	}
	if err != nil {
		return object.Object{}, fmt.Errorf("sqlite: put %s: %w", key, err)
	}
	return obj, nil
}

// MultipartPut is Put: a row is always written in one statement.
func (s *Storage) MultipartPut(ctx context.Context, key string, r io.Reader, _ int64, contentType string, meta map[string]string) (object.Object, error) {
	return s.Put(ctx, key, r, -1, contentType, meta)
}

// Get reads the object, or the requested byte range of it.
func (s *Storage) Get(ctx context.Context, key string, rng *object.Range) (object.Object, io.ReadCloser, error) {
	if err := s.ready(); err != nil {
		return object.Object{}, nil, err
	}
	start, length := int64(1), int64(math.MaxInt64)
	if rng != nil {
		if rng.Start < 0 || (rng.End >= 0 && rng.End < rng.Start) {
			return object.Object{}, nil, fmt.Errorf("sqlite: invalid range %d-%d", rng.Start, rng.End)
		}
		start = rng.Start + 1
		if rng.End >= 0 {
			length = rng.End - rng.Start + 1
		}
	}

	var body []byte
	obj, err := scanObject(s.db.QueryRowContext(ctx, s.q.get, start, length, key), &body)
	if errors.Is(err, sql.ErrNoRows) {
		return object.Object{}, nil, object.ErrNotFound
	}
	if err != nil {
		return object.Object{}, nil, fmt.Errorf("sqlite: get %s: %w", key, err)
	}
	if rng != nil && rng.Start >= obj.Size {
		return object.Object{}, nil, fmt.Errorf("sqlite: range start %d beyond object size %d", rng.Start, obj.Size)
	}
	return obj, io.NopCloser(bytes.NewReader(body)), nil
}

// Stat reads metadata only.
func (s *Storage) Stat(ctx context.Context, key string) (object.Object, error) {
	if err := s.ready(); err != nil {
		return object.Object{}, err
	}
	obj, err := scanObject(s.db.QueryRowContext(ctx, s.q.stat, key))
	if errors.Is(err, sql.ErrNoRows) {
		return object.Object{}, object.ErrNotFound
	}
	if err != nil {
		return object.Object{}, fmt.Errorf("sqlite: stat %s: %w", key, err)
	}
	return obj, nil
}

// List returns one page of keys starting with opts.Prefix, in key order. The
// prefix is matched as a key range rather than with LIKE, so '%' and '_' in
// folder names are literal and the primary key index is used. The cursor is
// the last key of the previous page, base64 encoded.
func (s *Storage) List(ctx context.Context, opts object.ListOptions) (object.ListPage, error) {
	if err := s.ready(); err != nil {
		return object.ListPage{}, err
	}
	after, err := decodeCursor(opts.Cursor)
	if err != nil {
		return object.ListPage{}, err
	}
	limit := object.ClampLimit(opts.Limit)

	query := s.q.list
	args := []any{opts.Prefix, after}
	if end, ok := prefixEnd(opts.Prefix); ok {
		query += ` AND key < ?`
		args = append(args, end)
	}
	query += ` ORDER BY key LIMIT ?`
	// One extra row tells whether another page exists.
	args = append(args, limit+1)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return object.ListPage{}, fmt.Errorf("sqlite: list %q: %w", opts.Prefix, err)
	}
	defer rows.Close()

	page := object.ListPage{Objects: make([]object.Object, 0, min(limit, 64))}
	for rows.Next() {
		if len(page.Objects) == limit {
			page.Truncated = true
			break
		}
		obj, err := scanObject(rows)
		if err != nil {
			return object.ListPage{}, fmt.Errorf("sqlite: list %q: %w", opts.Prefix, err)
		}
		page.Objects = append(page.Objects, obj)
	}
	if err := rows.Err(); err != nil {
		return object.ListPage{}, fmt.Errorf("sqlite: list %q: %w", opts.Prefix, err)
	}
	if page.Truncated {
		page.Cursor = encodeCursor(page.Objects[len(page.Objects)-1].Key)
	}
	return page, nil
}

// Delete removes key. A missing key is not an error.
func (s *Storage) Delete(ctx context.Context, key string) error {
	if err := s.ready(); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, s.q.delete, key); err != nil {
		return fmt.Errorf("sqlite: delete %s: %w", key, err)
	}
	return nil
}

func (s *Storage) ready() error {
	if s.db == nil {
		return errors.New("sqlite: storage not initialized")
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

// scanObject reads the columns constant, followed by extra destinations.
func scanObject(row scanner, extra ...any) (object.Object, error) {
	var (
		obj      object.Object
		uploaded int64
		meta     string
	)
	dest := append([]any{&obj.Key, &obj.Size, &obj.ETag, &obj.ContentType, &uploaded, &meta}, extra...)
	if err := row.Scan(dest...); err != nil {
		return object.Object{}, err
	}
	obj.LastModified = time.UnixMilli(uploaded).UTC()
	if meta != "" {
		if err := json.Unmarshal([]byte(meta), &obj.Metadata); err != nil {
			return object.Object{}, fmt.Errorf("decode metadata of %s: %w", obj.Key, err)
		}
	}
	return obj, nil
}

// prefixEnd returns the smallest string greater than every string with the
// given prefix. ok is false when no such bound exists.
func prefixEnd(prefix string) (end string, ok bool) {
	b := []byte(prefix)
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] < 0xff {
			b[i]++
			return string(b[:i+1]), true
		}
	}
	return "", false
}

// etagOf matches the S3 convention for single-part uploads.
func etagOf(body []byte) string {
	sum := md5.Sum(body)
	return hex.EncodeToString(sum[:])
}

func encodeCursor(key string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(key))
}

func decodeCursor(cursor string) (string, error) {
	if cursor == "" {
		return "", nil
	}
	b, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return "", fmt.Errorf("sqlite: invalid cursor: %w", err)
	}
	return string(b), nil
}

func encodeMeta(meta map[string]string) (string, error) {
	if len(meta) == 0 {
		return "", nil
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("sqlite: encode metadata: %w", err)
	}
	return string(b), nil
}

func isConflict(err error) bool {
	if err == nil {
		return false
	}
	var se *msqlite.Error
	if errors.As(err, &se) {
		return se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
	}
	// libsql reports constraint violations as text.
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

var _ object.ObjectStorage = (*Storage)(nil)
