package gallery

import (
	"fmt"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imghost/pkg/object"
)

func TestAggregateTwoDays(t *testing.T) {
	day1 := time.Date(2024, 3, 1, 23, 30, 0, 0, time.UTC)
	day2 := time.Date(2024, 3, 2, 0, 15, 0, 0, time.UTC)
	snap := Aggregate([]object.Object{
		{Key: "uploads/a.jpg", Size: 100, LastModified: day1},
		{Key: "uploads/blog/b.PNG", Size: 200, LastModified: day2},
	}, "uploads")

	assert.Equal(t, 2, snap.TotalCount)
	assert.Equal(t, int64(300), snap.TotalSize)

	days := snap.Days()
	require.Len(t, days, 2)
	assert.Equal(t, "2024-03-02", days[0].Name)
	assert.Equal(t, int64(200), days[0].Size)
	assert.Equal(t, "2024-03-01", days[1].Name)
	assert.Equal(t, int64(100), days[1].Size)

	assert.Equal(t, Bucket{Count: 1, Size: 100}, snap.ByExtension["jpg"])
	assert.Equal(t, Bucket{Count: 1, Size: 200}, snap.ByExtension["png"])
	assert.Equal(t, map[string]Bucket{"blog": {Count: 1, Size: 200}}, snap.ByFolder)
}

func TestAggregateUsesUTC(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)
	// 2024-03-02 01:00 in Tokyo is still March 1st in UTC.
	snap := Aggregate([]object.Object{
		{Key: "uploads/a.jpg", Size: 1, LastModified: time.Date(2024, 3, 2, 1, 0, 0, 0, tokyo)},
	}, "uploads")
	assert.Contains(t, snap.ByDay, "2024-03-01")
}

func TestAggregateEdgeBuckets(t *testing.T) {
	now := time.Now()
	snap := Aggregate([]object.Object{
		{Key: "uploads/README", Size: 5, LastModified: now},
		{Key: "uploads/blog/2024/deep.gif", Size: 7, LastModified: now},
		{Key: "uploads/blog/.folder", Size: 0, LastModified: now},
	}, "uploads")

	assert.Equal(t, 2, snap.TotalCount, "markers are not counted")
	assert.Equal(t, Bucket{Count: 1, Size: 5}, snap.ByExtension[""])
	assert.Equal(t, Bucket{Count: 1, Size: 7}, snap.ByFolder["blog"])
	assert.NotContains(t, snap.ByExtension, "folder")
}

func randomObjects(r *rand.Rand, n int) []object.Object {
	folders := []string{"", "blog/", "blog/2024/", "art/"}
	exts := []string{"jpg", "png", "gif", ""}
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]object.Object, n)
	for i := range out {
		name := fmt.Sprintf("f%d", i)
		if ext := exts[r.IntN(len(exts))]; ext != "" {
			name += "." + ext
		}
		out[i] = object.Object{
			Key:          "uploads/" + folders[r.IntN(len(folders))] + name,
			Size:         r.Int64N(1 << 20),
			LastModified: base.Add(time.Duration(r.IntN(10*24)) * time.Hour),
		}
	}
	return out
}

func TestMergeMatchesSinglePass(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 11))
	for range 50 {
		entries := randomObjects(r, r.IntN(60))
		whole := Aggregate(entries, "uploads")
		split := r.IntN(len(entries) + 1)

		a := Aggregate(entries[:split], "uploads")
		b := Aggregate(entries[split:], "uploads")
		assert.Equal(t, whole, a.Merge(b))
		assert.Equal(t, whole, b.Merge(a), "merge is commutative")
	}
}

func TestMergeAssociative(t *testing.T) {
	r := rand.New(rand.NewPCG(3, 5))
	a := Aggregate(randomObjects(r, 20), "uploads")
	b := Aggregate(randomObjects(r, 20), "uploads")
	c := Aggregate(randomObjects(r, 20), "uploads")

	assert.Equal(t, a.Merge(b).Merge(c), a.Merge(b.Merge(c)))
	assert.Equal(t, a, a.Merge(NewSnapshot()))
}
