package watch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChangedPathsDedupesOnMark(t *testing.T) {
	c := NewChangedPaths()
	c.Mark("a/b")
	c.Mark("a/b")
	c.Mark("a/c")
	assert.Equal(t, 2, c.Len())
}

func TestChangedPathsDrainClears(t *testing.T) {
	c := NewChangedPaths()
	c.Mark("a/b")
	c.Mark("a/c")

	got := c.Drain()
	assert.ElementsMatch(t, []string{"a/b", "a/c"}, got)
	assert.Equal(t, 0, c.Len())

	// Marking the same path again after a drain must not be treated as a
	// dup of the drained state.
	c.Mark("a/b")
	assert.Equal(t, 1, c.Len())
}

func TestChangedPathsDrainPreservesInsertionOrder(t *testing.T) {
	c := NewChangedPaths()
	c.Mark("z")
	c.Mark("a")
	c.Mark("m")
	assert.Equal(t, []string{"z", "a", "m"}, c.Drain())
}
