package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeAndTrim(t *testing.T) {
	t.Run("trims, drops empties, keeps first occurrence", func(t *testing.T) {
		got := DedupeAndTrim([]string{"  alice ", "bob", "alice", "", "  "})
		assert.Equal(t, []string{"alice", "bob"}, got)
	})

	t.Run("empty input passes through", func(t *testing.T) {
		assert.Empty(t, DedupeAndTrim(nil))
		assert.Empty(t, DedupeAndTrim([]string{}))
	})

	t.Run("order preserved", func(t *testing.T) {
		got := DedupeAndTrim([]string{"carol", "alice", "bob", "alice"})
		assert.Equal(t, []string{"carol", "alice", "bob"}, got)
	})
}
