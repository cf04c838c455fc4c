package keys

import (
	"bytes"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var namePattern = regexp.MustCompile(`^(\d+)_([0-9a-z]{6})\.([a-z]+)$`)

func fixedClock(ms ...int64) func() time.Time {
	i := 0
	return func() time.Time {
		t := time.UnixMilli(ms[i])
		if i < len(ms)-1 {
			i++
		}
		return t
	}
}

func TestGenerateFormat(t *testing.T) {
	g := NewGenerator(WithClock(fixedClock(1700000000000)))

	name, err := g.Generate("photo.PNG", "image/jpeg")
	require.NoError(t, err)
	m := namePattern.FindStringSubmatch(name)
	require.NotNil(t, m, name)
	assert.Equal(t, "1700000000000", m[1])
	assert.Equal(t, "png", m[3])
}

func TestGenerateExtensionFallbacks(t *testing.T) {
	g := NewGenerator()

	name, err := g.Generate("blob", "image/webp")
	require.NoError(t, err)
	assert.Equal(t, "webp", Ext(name))

	name, err = g.Generate("script.exe", "application/octet-stream")
	require.NoError(t, err)
	assert.Equal(t, "jpg", Ext(name))
}

func TestGenerateDeterministicRandom(t *testing.T) {
	// 0..5 map straight onto the alphabet; 255 is above the rejection limit.
	src := bytes.NewReader([]byte{0, 255, 1, 2, 35, 36, 10, 0, 0, 0, 0, 0})
	g := NewGenerator(WithClock(fixedClock(42)), WithRand(src))

	name, err := g.Generate("a.gif", "")
	require.NoError(t, err)
	assert.Equal(t, "42_012z0a.gif", name)
}

func TestGenerateMonotonic(t *testing.T) {
	g := NewGenerator(WithClock(fixedClock(2000, 1000, 3000)))

	var stamps []string
	for range 3 {
		name, err := g.Generate("a.jpg", "")
		require.NoError(t, err)
		stamps = append(stamps, namePattern.FindStringSubmatch(name)[1])
	}
	assert.Equal(t, []string{"2000", "2000", "3000"}, stamps)
}

func TestGenerateUnique(t *testing.T) {
	g := NewGenerator(WithClock(fixedClock(1)))
	seen := make(map[string]struct{})
	for range 1000 {
		name, err := g.Generate("a.jpg", "")
		require.NoError(t, err)
		_, dup := seen[name]
		require.False(t, dup, name)
		seen[name] = struct{}{}
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("no entropy") }

func TestGenerateRandomFailure(t *testing.T) {
	g := NewGenerator(WithRand(failingReader{}))
	_, err := g.Generate("a.jpg", "")
	assert.ErrorContains(t, err, "no entropy")
}
