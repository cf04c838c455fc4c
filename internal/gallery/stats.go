package gallery

import (
	"cmp"
	"maps"
	"slices"
	"time"

	"imghost/pkg/keys"
	"imghost/pkg/object"
)

// DayLayout is the key format of Snapshot.ByDay.
const DayLayout = time.DateOnly

// Bucket is a count and byte total.
type Bucket struct {
	Count int
	Size  int64
}

func (b Bucket) add(o Bucket) Bucket {
	return Bucket{Count: b.Count + o.Count, Size: b.Size + o.Size}
}

// Snapshot holds rollups over a set of objects. Marker objects are not
// counted.
type Snapshot struct {
	TotalCount int
	TotalSize  int64
	// ByDay is keyed by the UTC upload date.
	ByDay map[string]Bucket
	// ByExtension is keyed by the lower-cased text after the last ".";
	// names without a dot land under "".
	ByExtension map[string]Bucket
	// ByFolder is keyed by the first folder segment under the root. Objects
	// directly under the root are not included.
	ByFolder map[string]Bucket
}

// NamedBucket is a Bucket with its map key, for ordered output.
type NamedBucket struct {
	Name string
	Bucket
}

// NewSnapshot returns an empty snapshot, the identity of Merge.
func NewSnapshot() Snapshot {
	return Snapshot{
		ByDay:       make(map[string]Bucket),
		ByExtension: make(map[string]Bucket),
		ByFolder:    make(map[string]Bucket),
	}
}

// Aggregate computes the snapshot of entries in a single pass. root is
// needed to find each object's top-level folder.
func Aggregate(entries []object.Object, root string) Snapshot {
	s := NewSnapshot()
	for _, obj := range entries {
		folderPath, fileName := keys.SplitKey(obj.Key, root)
		if keys.IsMarker(fileName) {
			continue
		}
		b := Bucket{Count: 1, Size: obj.Size}

		s.TotalCount++
		s.TotalSize += obj.Size
		day := obj.LastModified.UTC().Format(DayLayout)
		s.ByDay[day] = s.ByDay[day].add(b)
		ext := keys.Ext(fileName)
		s.ByExtension[ext] = s.ByExtension[ext].add(b)
		if folderPath != "" {
			top := keys.TopFolder(obj.Key, root)
			s.ByFolder[top] = s.ByFolder[top].add(b)
		}
	}
	return s
}

// Merge returns the sum of s and o. Neither input is modified. Merge is
// associative and commutative, so pages may be aggregated in any order.
func (s Snapshot) Merge(o Snapshot) Snapshot {
	return Snapshot{
		TotalCount:  s.TotalCount + o.TotalCount,
		TotalSize:   s.TotalSize + o.TotalSize,
		ByDay:       mergeBuckets(s.ByDay, o.ByDay),
		ByExtension: mergeBuckets(s.ByExtension, o.ByExtension),
		ByFolder:    mergeBuckets(s.ByFolder, o.ByFolder),
	}
}

func mergeBuckets(a, b map[string]Bucket) map[string]Bucket {
	out := make(map[string]Bucket, max(len(a), len(b)))
	maps.Copy(out, a)
	for k, v := range b {
		out[k] = out[k].add(v)
	}
	return out
}

// Days returns ByDay newest first.
func (s Snapshot) Days() []NamedBucket {
	days := sortedBuckets(s.ByDay)
	slices.Reverse(days)
	return days
}

// Extensions returns ByExtension ordered by extension.
func (s Snapshot) Extensions() []NamedBucket {
	return sortedBuckets(s.ByExtension)
}

// Folders returns ByFolder ordered by folder name.
func (s Snapshot) Folders() []NamedBucket {
	return sortedBuckets(s.ByFolder)
}

func sortedBuckets(m map[string]Bucket) []NamedBucket {
	out := make([]NamedBucket, 0, len(m))
	for name, b := range m {
		out = append(out, NamedBucket{Name: name, Bucket: b})
	}
	slices.SortFunc(out, func(a, b NamedBucket) int {
		return cmp.Compare(a.Name, b.Name)
	})
	return out
}
