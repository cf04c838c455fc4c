package keys

import (
	"crypto/rand"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"
)

const (
	suffixLen = 6
	base36    = "0123456789abcdefghijklmnopqrstuvwxyz"
)

// Generator produces upload file names of the form
// "<unix millis>_<6 base36 chars>.<ext>". Names are not reserved anywhere;
// uniqueness rests on the timestamp plus the random suffix.
type Generator struct {
	mu   sync.Mutex
	now  func() time.Time
	rand io.Reader
	last int64
}

// GeneratorOption configures a Generator.
type GeneratorOption func(g *Generator)

// WithClock sets the time source. Default is time.Now.
func WithClock(now func() time.Time) GeneratorOption {
	return func(g *Generator) {
		g.now = now
	}
}

// WithRand sets the random source. Default is crypto/rand.Reader.
func WithRand(r io.Reader) GeneratorOption {
	return func(g *Generator) {
		g.rand = r
	}
}

// NewGenerator returns a Generator using the wall clock and crypto/rand
// unless overridden.
func NewGenerator(opts ...GeneratorOption) *Generator {
	g := &Generator{
		now:  time.Now,
		rand: rand.Reader,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate returns a fresh file name. The extension comes from originalName
// when it carries an allowed one, else from contentType, else it is
// DefaultExtension. The timestamp never goes backwards across calls, even
// if the clock does.
func (g *Generator) Generate(originalName, contentType string) (string, error) {
	suffix, err := g.suffix()
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(g.timestamp(), 10) + "_" + suffix + "." + pickExtension(originalName, contentType), nil
}

func (g *Generator) timestamp() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	ms := g.now().UnixMilli()
	if ms < g.last {
		ms = g.last
	}
	g.last = ms
	return ms
}

// suffix draws base36 characters by rejection sampling so every character
// is equally likely.
func (g *Generator) suffix() (string, error) {
	const limit = 252 // largest multiple of 36 below 256
	out := make([]byte, 0, suffixLen)
	buf := make([]byte, suffixLen)
	for len(out) < suffixLen {
		if _, err := io.ReadFull(g.rand, buf); err != nil {
			return "", fmt.Errorf("keys: read random suffix: %w", err)
		}
		for _, b := range buf {
			if b >= limit {
				continue
			}
			out = append(out, base36[int(b)%len(base36)])
			if len(out) == suffixLen {
				break
			}
		}
	}
	return string(out), nil
}

func pickExtension(originalName, contentType string) string {
	if ext := Ext(originalName); IsAllowedExtension(ext) {
		return ext
	}
	if ext, ok := ExtensionForContentType(contentType); ok {
		return ext
	}
	return DefaultExtension
}
