package redis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEtagKey(t *testing.T) {
	assert.Equal(t, "playlist:abc:etag", EtagKey("abc"))
}

func TestNilCacheIsNoop(t *testing.T) {
	ctx := context.Background()
	for _, c := range []*ETagCache{nil, NewETagCache(nil)} {
		c.Set(ctx, "p1", "strict", `"x"`)
		_, ok := c.Get(ctx, "p1", "strict")
		assert.False(t, ok)
		c.Invalidate(ctx, "p1")
		assert.NoError(t, c.Ping(ctx))
	}
}
