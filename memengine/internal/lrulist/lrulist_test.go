package lrulist

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInsertAtHeadAndLookup(t *testing.T) {
	l := New()
	l.InsertAtHead("a", 1, 10, 100)
	l.InsertAtHead("b", 2, 20, 200)

	n, ok := l.Lookup("b")
	assert.True(t, ok)
	assert.Equal(t, 2, n.Value)
	assert.Same(t, n, l.head)

	assert.Equal(t, 2, l.TotalCount())
	assert.Equal(t, uint64(30), l.TotalCost())
}

func TestMoveToHeadReordersList(t *testing.T) {
	l := New()
	l.InsertAtHead("a", 1, 1, 1)
	l.InsertAtHead("b", 2, 1, 2)
	l.InsertAtHead("c", 3, 1, 3)
	// order head->tail: c, b, a

	na, _ := l.Lookup("a")
	l.MoveToHead(na)
	assert.Same(t, na, l.head)
	assert.Same(t, na, l.head)

	tail := l.Tail()
	assert.Equal(t, "b", tail.Key)
}

func TestMoveToHeadNoopWhenAlreadyHead(t *testing.T) {
	l := New()
	l.InsertAtHead("a", 1, 1, 1)
	n, _ := l.Lookup("a")
	l.MoveToHead(n)
	assert.Same(t, n, l.head)
	assert.Same(t, n, l.tail)
}

func TestUpdateCostAdjustsAggregate(t *testing.T) {
	l := New()
	n := l.InsertAtHead("a", 1, 10, 1)
	assert.Equal(t, uint64(10), l.TotalCost())
	l.UpdateCost(n, 25)
	assert.Equal(t, uint64(25), n.Cost)
	assert.Equal(t, uint64(25), l.TotalCost())
}

func TestRemoveUnlinksAndDecrementsAggregates(t *testing.T) {
	l := New()
	l.InsertAtHead("a", 1, 5, 1)
	nb := l.InsertAtHead("b", 2, 7, 2)
	l.InsertAtHead("c", 3, 9, 3)

	l.Remove(nb)

	_, ok := l.Lookup("b")
	assert.False(t, ok)
	assert.Equal(t, 2, l.TotalCount())
	assert.Equal(t, uint64(14), l.TotalCost())

	// Remaining list is still correctly linked: c -> a.
	assert.Equal(t, "c", l.head.Key)
	assert.Equal(t, "a", l.tail.Key)
	assert.Same(t, l.head, l.tail.prev)
}

func TestRemoveTailPopsLeastRecentlyUsed(t *testing.T) {
	l := New()
	l.InsertAtHead("a", 1, 1, 1)
	l.InsertAtHead("b", 2, 1, 2)

	n := l.RemoveTail()
	assert.Equal(t, "a", n.Key)
	assert.Equal(t, 1, l.TotalCount())

	n = l.RemoveTail()
	assert.Equal(t, "b", n.Key)
	assert.Equal(t, 0, l.TotalCount())

	assert.Nil(t, l.RemoveTail())
	assert.Nil(t, l.head)
	assert.Nil(t, l.tail)
}

func TestEmptyListTailIsNil(t *testing.T) {
	l := New()
	assert.Nil(t, l.Tail())
	assert.Equal(t, 0, l.TotalCount())
	assert.Equal(t, uint64(0), l.TotalCost())
}

func TestSnapshotReturnsHeadToTailOrder(t *testing.T) {
	l := New()
	l.InsertAtHead("a", 1, 1, 1)
	l.InsertAtHead("b", 2, 1, 2)
	l.InsertAtHead("c", 3, 1, 3)
	// order head->tail: c, b, a

	nodes := l.Snapshot()
	assert.Len(t, nodes, 3)
	assert.Equal(t, []string{"c", "b", "a"}, []string{nodes[0].Key, nodes[1].Key, nodes[2].Key})
}

func TestRemoveAllClearsListAndAggregates(t *testing.T) {
	l := New()
	l.InsertAtHead("a", 1, 5, 1)
	l.InsertAtHead("b", 2, 7, 2)

	l.RemoveAll()

	assert.Equal(t, 0, l.TotalCount())
	assert.Equal(t, uint64(0), l.TotalCost())
	assert.Nil(t, l.Tail())
	_, ok := l.Lookup("a")
	assert.False(t, ok)
	assert.Empty(t, l.Snapshot())
}
