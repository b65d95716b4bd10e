package mrc

import "math/rand"

// treap is an order-statistics tree keyed by last-access time. Each node is
// one tracked object; subtree aggregates give the number of distinct objects
// (and their bytes) accessed after a given time in O(log n), which is
// exactly the reuse-distance query.
type treap struct {
	root *treapNode
	rng  *rand.Rand
	size int
}

type treapNode struct {
	key      uint64 // last-access logical time, unique per node
	bytes    uint64 // object size
	priority uint32

	left, right *treapNode
	count       int    // subtree node count
	sumBytes    uint64 // subtree byte sum
}

func newTreap(seed int64) *treap {
	return &treap{rng: rand.New(rand.NewSource(seed))}
}

func (t *treap) Len() int { return t.size }

func (n *treapNode) update() {
	n.count = 1
	n.sumBytes = n.bytes
	if n.left != nil {
		n.count += n.left.count
		n.sumBytes += n.left.sumBytes
	}
	if n.right != nil {
		n.count += n.right.count
		n.sumBytes += n.right.sumBytes
	}
}

func rotateRight(n *treapNode) *treapNode {
	l := n.left
	n.left = l.right
	l.right = n
	n.update()
	l.update()
	return l
}

func rotateLeft(n *treapNode) *treapNode {
	r := n.right
	n.right = r.left
	r.left = n
	n.update()
	r.update()
	return r
}

// Insert adds a node for an access at time key covering bytes. Keys are
// logical times and therefore unique.
func (t *treap) Insert(key, bytes uint64) {
	t.root = t.insert(t.root, key, bytes)
	t.size++
}

func (t *treap) insert(n *treapNode, key, bytes uint64) *treapNode {
	if n == nil {
		return &treapNode{
			key:      key,
			bytes:    bytes,
			priority: t.rng.Uint32(),
			count:    1,
			sumBytes: bytes,
		}
	}
	if key < n.key {
		n.left = t.insert(n.left, key, bytes)
		if n.left.priority > n.priority {
			n = rotateRight(n)
		} else {
			n.update()
		}
	} else {
		n.right = t.insert(n.right, key, bytes)
		if n.right.priority > n.priority {
			n = rotateLeft(n)
		} else {
			n.update()
		}
	}
	return n
}

// Delete removes the node with the given key, if present.
func (t *treap) Delete(key uint64) {
	var deleted bool
	t.root, deleted = t.delete(t.root, key)
	if deleted {
		t.size--
	}
}

func (t *treap) delete(n *treapNode, key uint64) (*treapNode, bool) {
	if n == nil {
		return nil, false
	}
	var deleted bool
	switch {
	case key < n.key:
		n.left, deleted = t.delete(n.left, key)
	case key > n.key:
		n.right, deleted = t.delete(n.right, key)
	default:
		if n.left == nil {
			return n.right, true
		}
		if n.right == nil {
			return n.left, true
		}
		if n.left.priority > n.right.priority {
			n = rotateRight(n)
			n.right, deleted = t.delete(n.right, key)
		} else {
			n = rotateLeft(n)
			n.left, deleted = t.delete(n.left, key)
		}
	}
	n.update()
	return n, deleted
}

// SumGreater returns how many tracked objects were last accessed strictly
// after key, and their total bytes. With key set to an object's previous
// access time this is its reuse distance, in objects and in bytes.
func (t *treap) SumGreater(key uint64) (count int, bytes uint64) {
	n := t.root
	for n != nil {
		if key < n.key {
			count++
			bytes += n.bytes
			if n.right != nil {
				count += n.right.count
				bytes += n.right.sumBytes
			}
			n = n.left
		} else {
			n = n.right
		}
	}
	return count, bytes
}
