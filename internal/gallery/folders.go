package gallery

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"imghost/internal/errs"
	"imghost/pkg/keys"
	"imghost/pkg/object"
)

// DeleteState is a stage of a folder deletion.
type DeleteState string

const (
	StateListing               DeleteState = "listing"
	StateDeleting              DeleteState = "deleting"
	StateCompleted             DeleteState = "completed"
	StateCompletedWithFailures DeleteState = "completed_with_failures"
)

// DeleteFailure is an object a folder deletion could not remove.
type DeleteFailure struct {
	Key string
	Err error
}

// DeleteResult reports a folder deletion. Failures are ordered by key.
type DeleteResult struct {
	Path         string
	DeletedCount int
	Failures     []DeleteFailure
	State        DeleteState
}

// FailedKeys returns the keys in Failures.
func (r DeleteResult) FailedKeys() []string {
	out := make([]string, len(r.Failures))
	for i, f := range r.Failures {
		out[i] = f.Key
	}
	return out
}

// Folders creates and deletes folders under a root prefix.
type Folders struct {
	store object.ObjectStorage
	root  string
	// concurrency bounds the in-flight deletes; <= 0 means unbounded.
	concurrency int
}

// NewFolders returns a Folders for root.
func NewFolders(store object.ObjectStorage, root string, concurrency int) *Folders {
	return &Folders{store: store, root: root, concurrency: concurrency}
}

// Create writes the marker object of path. Creating an existing folder
// succeeds.
func (f *Folders) Create(ctx context.Context, path string) error {
	key := keys.BuildKey(f.root, path, keys.MarkerName)
	if _, err := f.store.Put(ctx, key, bytes.NewReader(nil), 0, "text/plain", nil); err != nil {
		return errs.Wrap(errs.KindStoreUnavailable, "create folder", key, err)
	}
	return nil
}

// Delete removes every object under path. All deletes are attempted even
// when some fail; failed keys are reported in the result together with a
// PartialDeletion error. A path with no objects yields NotFound.
func (f *Folders) Delete(ctx context.Context, path string) (DeleteResult, error) {
	rel, err := f.relativePath(path)
	if err != nil {
		return DeleteResult{}, err
	}
	prefix := keys.Prefix(f.root, rel)
	log := zerolog.Ctx(ctx).With().Str("prefix", prefix).Logger()
	result := DeleteResult{Path: rel, State: StateListing}
	log.Debug().Str("state", string(result.State)).Msg("deleting folder")

	var targets []string
	err = Walk(ctx, f.store, prefix, func(p Page) error {
		for _, obj := range p.Entries {
			targets = append(targets, obj.Key)
		}
		return nil
	})
	if err != nil {
		return result, err
	}
	if len(targets) == 0 {
		return result, errs.New(errs.KindNotFound, "delete folder", rel, "folder is empty or does not exist")
	}

	result.State = StateDeleting
	log.Debug().Str("state", string(result.State)).Int("remaining", len(targets)).Msg("deleting folder")

	var (
		mu       sync.Mutex
		failures []DeleteFailure
		g        errgroup.Group
	)
	if f.concurrency > 0 {
		g.SetLimit(f.concurrency)
	}
	for _, key := range targets {
		g.Go(func() error {
			if err := f.store.Delete(ctx, key); err != nil {
				mu.Lock()
				failures = append(failures, DeleteFailure{Key: key, Err: err})
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	slices.SortFunc(failures, func(a, b DeleteFailure) int {
		return strings.Compare(a.Key, b.Key)
	})
	result.Failures = failures
	result.DeletedCount = len(targets) - len(failures)

	if len(failures) > 0 {
		result.State = StateCompletedWithFailures
		log.Warn().
			Str("state", string(result.State)).
			Int("deleted", result.DeletedCount).
			Strs("failed", result.FailedKeys()).
			Msg("folder partially deleted")
		return result, errs.New(errs.KindPartialDeletion, "delete folder", rel,
			fmt.Sprintf("%d of %d objects could not be deleted", len(failures), len(targets)))
	}
	result.State = StateCompleted
	log.Info().Str("state", string(result.State)).Int("deleted", result.DeletedCount).Msg("folder deleted")
	return result, nil
}

// relativePath accepts either a folder path relative to the root or the
// "root/path/" form, recognised by its trailing slash, and returns the
// relative path. The root itself cannot be deleted.
func (f *Folders) relativePath(path string) (string, error) {
	p := strings.TrimSpace(path)
	if full := keys.Prefix(f.root, ""); strings.HasSuffix(p, "/") && strings.HasPrefix(p, full) {
		p = strings.TrimPrefix(p, full)
	}
	rel, err := keys.CleanFolderPath(p)
	if err != nil {
		return "", errs.Wrap(errs.KindInvalidInput, "delete folder", path, err)
	}
	if rel == "" {
		return "", errs.New(errs.KindInvalidInput, "delete folder", path, "no folder path provided")
	}
	return rel, nil
}
