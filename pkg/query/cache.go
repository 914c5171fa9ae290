package query

import (
	"encoding/binary"
	"strconv"

	"github.com/Yiling-J/theine-go"
	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/singleflight"
)

// SelectCache memoizes parsed select specifications keyed by schema
// version, raw expression, and compile options. Concurrent first parses of
// the same key are deduplicated.
type SelectCache struct {
	cache *theine.Cache[uint64, *SelectSpec]
	group singleflight.Group
}

// NewSelectCache builds a cache holding up to maxEntries parsed specs.
func NewSelectCache(maxEntries int64) (*SelectCache, error) {
	cache, err := theine.NewBuilder[uint64, *SelectSpec](maxEntries).Build()
	if err != nil {
		return nil, err
	}
	return &SelectCache{cache: cache}, nil
}

// Parse returns the cached spec for (schema version, raw, opts), parsing on
// miss.
func (c *SelectCache) Parse(schema SchemaResolver, raw string, opts Options) (*SelectSpec, error) {
	key := cacheKey(schema.SchemaVersion(), raw, opts)
	if spec, ok := c.cache.Get(key); ok {
		return spec, nil
	}

	v, err, _ := c.group.Do(strconv.FormatUint(key, 16), func() (any, error) {
		spec, err := ParseSelect(schema, raw, opts)
		if err != nil {
			return nil, err
		}
		c.cache.Set(key, spec, 1)
		return spec, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*SelectSpec), nil
}

// Close releases the underlying cache resources.
func (c *SelectCache) Close() {
	c.cache.Close()
}

func cacheKey(version uint64, raw string, opts Options) uint64 {
	h := xxhash.New()

	writeUint64(h, version)
	writeString(h, raw)
	writeString(h, opts.OrderBy)
	writeUint64(h, uint64(len(opts.GroupBy)))
	for _, g := range opts.GroupBy {
		writeString(h, g)
	}
	writeUint64(h, uint64(opts.Depth))
	writeUint64(h, uint64(opts.Limit))
	writeUint64(h, uint64(opts.Offset))
	writeString(h, flags(opts))
	writeString(h, opts.Var)

	return h.Sum64()
}

// writeString length-prefixes the string so adjacent key fields cannot
// overlap.
func writeString(h *xxhash.Digest, s string) {
	writeUint64(h, uint64(len(s)))
	_, _ = h.WriteString(s)
}

func writeUint64(h *xxhash.Digest, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	_, _ = h.Write(b[:])
}

func flags(opts Options) string {
	f := []byte("----")
	if opts.Graph {
		f[0] = 'g'
	}
	if opts.OrderDesc {
		f[1] = 'd'
	}
	if opts.SelectOne {
		f[2] = '1'
	}
	if opts.PrettyPrint {
		f[3] = 'p'
	}
	return string(f)
}
