package chain

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strptr(s string) *string { return &s }

func TestOrderEmpty(t *testing.T) {
	ordered, err := Order(nil)
	require.NoError(t, err)
	assert.Empty(t, ordered)
}

func TestOrderSingle(t *testing.T) {
	ordered, err := Order([]Link{{ID: "a"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ordered)
}

func TestOrderWalksFromHead(t *testing.T) {
	// Stored out of order on purpose; c <- a <- b.
	links := []Link{
		{ID: "b", Prev: strptr("a")},
		{ID: "c"},
		{ID: "a", Prev: strptr("c")},
	}
	ordered, err := Order(links)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a", "b"}, ordered)
}

func TestOrderNoHead(t *testing.T) {
	// Two blocks pointing at each other: a cycle with no head.
	links := []Link{
		{ID: "a", Prev: strptr("b")},
		{ID: "b", Prev: strptr("a")},
	}
	_, err := Order(links)
	assert.ErrorIs(t, err, ErrNoHead)
}

func TestOrderTwoHeads(t *testing.T) {
	links := []Link{
		{ID: "a"},
		{ID: "b"},
	}
	_, err := Order(links)
	assert.ErrorIs(t, err, ErrDuplicateRef)
}

func TestOrderBranch(t *testing.T) {
	links := []Link{
		{ID: "a"},
		{ID: "b", Prev: strptr("a")},
		{ID: "c", Prev: strptr("a")},
	}
	_, err := Order(links)
	assert.ErrorIs(t, err, ErrDuplicateRef)
}

func TestOrderDisconnectedTail(t *testing.T) {
	// Head plus a detached cycle.
	links := []Link{
		{ID: "a"},
		{ID: "b", Prev: strptr("c")},
		{ID: "c", Prev: strptr("b")},
	}
	_, err := Order(links)
	assert.ErrorIs(t, err, ErrDisconnected)
}

func TestOrderUnknownPredecessor(t *testing.T) {
	links := []Link{
		{ID: "a"},
		{ID: "b", Prev: strptr("ghost")},
	}
	_, err := Order(links)
	assert.ErrorIs(t, err, ErrUnknownRef)
}

func TestRemapIsomorphic(t *testing.T) {
	links := []Link{
		{ID: "a"},
		{ID: "b", Prev: strptr("a")},
		{ID: "c", Prev: strptr("b")},
	}

	var n int
	newID := func() string {
		n++
		return fmt.Sprintf("new-%d", n)
	}

	clones, mapping, err := Remap(links, newID)
	require.NoError(t, err)
	require.Len(t, clones, 3)
	require.Len(t, mapping, 3)

	sourceOrder, err := Order(links)
	require.NoError(t, err)
	cloneOrder, err := Order(clones)
	require.NoError(t, err)

	require.Len(t, cloneOrder, len(sourceOrder))
	for i, oldID := range sourceOrder {
		assert.Equal(t, mapping[oldID], cloneOrder[i], "relative order must survive the remap")
		assert.NotEqual(t, oldID, cloneOrder[i], "clone ids must be disjoint from the source")
	}
}

func TestRemapRejectsBrokenChain(t *testing.T) {
	links := []Link{
		{ID: "a"},
		{ID: "b"},
	}
	_, _, err := Remap(links, func() string { return "x" })
	assert.Error(t, err)
}
