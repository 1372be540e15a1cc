// Package lrulist is an intrusive doubly-linked list plus a hash index
// over in-memory nodes, giving the memory engine O(1) insert-at-head,
// move-to-head, remove-arbitrary, and remove-tail. The head is the
// most-recently-used node; the tail is the least-recently-used.
//
// Grounded on the head/tail-plus-map shape in gford1000-go-lru's
// lru_cache.go, reimplemented with explicit node pointers (rather than
// container/list) per the intrusive-list design note: Remove(node) is a
// direct unlink, never a scan.
package lrulist

// Node is one entry in the list. Cost is an arbitrary caller-assigned
// weight; Time is the caller-supplied timestamp of the node's last access
// (memengine passes time.Now().UnixNano()).
type Node struct {
	Key   string
	Value any
	Cost  uint64
	Time  int64

	prev, next *Node
}

// List is not safe for concurrent use; the owning memengine.Engine
// serializes access with its own mutex.
type List struct {
	head, tail *Node
	index      map[string]*Node

	totalCount int
	totalCost  uint64
}

// New returns an empty list.
func New() *List {
	return &List{index: make(map[string]*Node)}
}

// Lookup returns the node for key, if present. It does not move the node.
func (l *List) Lookup(key string) (*Node, bool) {
	n, ok := l.index[key]
	return n, ok
}

// TotalCount is the number of live nodes.
func (l *List) TotalCount() int { return l.totalCount }

// TotalCost is the sum of Cost over live nodes.
func (l *List) TotalCost() uint64 { return l.totalCost }

// Tail returns the least-recently-used node, or nil if the list is empty.
func (l *List) Tail() *Node { return l.tail }

// InsertAtHead creates and indexes a new node, placing it at the head.
// The caller must not already have a node for key (check Lookup first).
func (l *List) InsertAtHead(key string, value any, cost uint64, now int64) *Node {
	n := &Node{Key: key, Value: value, Cost: cost, Time: now}
	l.index[key] = n
	l.linkAtHead(n)
	l.totalCount++
	l.totalCost += cost
	return n
}

// MoveToHead unlinks n from its current position and reinserts it at the
// head. Used on every hit (get or set-on-existing-key).
func (l *List) MoveToHead(n *Node) {
	if l.head == n {
		return
	}
	l.unlink(n)
	l.linkAtHead(n)
}

// UpdateCost adjusts n's cost in place, keeping TotalCost consistent.
func (l *List) UpdateCost(n *Node, newCost uint64) {
	l.totalCost -= n.Cost
	n.Cost = newCost
	l.totalCost += newCost
}

// Remove unlinks n, removes it from the index, and decrements the
// aggregates.
func (l *List) Remove(n *Node) {
	l.unlink(n)
	delete(l.index, n.Key)
	l.totalCount--
	l.totalCost -= n.Cost
}

// RemoveTail pops and returns the least-recently-used node, or nil if the
// list is empty.
func (l *List) RemoveTail() *Node {
	n := l.tail
	if n == nil {
		return nil
	}
	l.Remove(n)
	return n
}

// Snapshot returns every live node from head to tail without removing
// them, for callers that need to act on each value before clearing.
func (l *List) Snapshot() []*Node {
	nodes := make([]*Node, 0, l.totalCount)
	for n := l.head; n != nil; n = n.next {
		nodes = append(nodes, n)
	}
	return nodes
}

// RemoveAll clears the list in O(1), discarding every node and resetting
// the aggregates. It does not run release hooks; callers that need to
// release evicted values must Snapshot first.
func (l *List) RemoveAll() {
	l.head = nil
	l.tail = nil
	l.index = make(map[string]*Node)
	l.totalCount = 0
	l.totalCost = 0
}

func (l *List) linkAtHead(n *Node) {
	n.prev = nil
	n.next = l.head
	if l.head != nil {
		l.head.prev = n
	}
	l.head = n
	if l.tail == nil {
		l.tail = n
	}
}

func (l *List) unlink(n *Node) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		l.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		l.tail = n.prev
	}
	n.prev = nil
	n.next = nil
}
