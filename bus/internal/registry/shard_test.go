package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIndexByHash(t *testing.T) {
	assert.Panics(t, func() { indexByHash("x", 0) })
	assert.Equal(t, 0, indexByHash("x", 1))

	for _, key := range []string{"", "a", "tick", "some.long.command.name"} {
		idx := indexByHash(key, 7)
		assert.GreaterOrEqual(t, idx, 0)
		assert.Less(t, idx, 7)
		assert.Equal(t, idx, indexByHash(key, 7), "stable for %q", key)
	}
}
