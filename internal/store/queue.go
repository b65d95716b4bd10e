package store

// Queue is an intrusive FIFO/LRU ordering over objects owned by a Store.
// Links live inside the objects themselves, so membership is O(1) and an
// object can belong to at most one queue at a time. Head is the oldest
// position (eviction side), tail the newest.
//
// Byte and count totals are maintained on push/remove; callers that Resize an
// object must unlink it first and relink afterwards so the totals stay exact.
type Queue struct {
	head  Handle
	tail  Handle
	count uint64
	bytes uint64
}

// Head returns the oldest handle, or NilHandle when the queue is empty.
func (q *Queue) Head() Handle { return q.head }

// Tail returns the newest handle, or NilHandle when the queue is empty.
func (q *Queue) Tail() Handle { return q.tail }

// Len returns the number of linked objects.
func (q *Queue) Len() uint64 { return q.count }

// Bytes returns the byte sum of linked objects.
func (q *Queue) Bytes() uint64 { return q.bytes }

// Next returns the handle after h toward the tail.
func (q *Queue) Next(s *Store, h Handle) Handle { return s.Obj(h).next }

// Prev returns the handle before h toward the head.
func (q *Queue) Prev(s *Store, h Handle) Handle { return s.Obj(h).prev }

// PushTail links h at the newest position.
func (q *Queue) PushTail(s *Store, h Handle) {
	o := s.Obj(h)
	o.next = NilHandle
	o.prev = q.tail
	if q.tail != NilHandle {
		s.Obj(q.tail).next = h
	} else {
		q.head = h
	}
	q.tail = h
	q.count++
	q.bytes += o.Size
}

// PushHead links h at the oldest position.
func (q *Queue) PushHead(s *Store, h Handle) {
	o := s.Obj(h)
	o.prev = NilHandle
	o.next = q.head
	if q.head != NilHandle {
		s.Obj(q.head).prev = h
	} else {
		q.tail = h
	}
	q.head = h
	q.count++
	q.bytes += o.Size
}

// PopHead unlinks and returns the oldest handle, or NilHandle if empty.
func (q *Queue) PopHead(s *Store) Handle {
	h := q.head
	if h == NilHandle {
		return NilHandle
	}
	q.Remove(s, h)
	return h
}

// Remove unlinks h from the queue.
func (q *Queue) Remove(s *Store, h Handle) {
	o := s.Obj(h)
	if o.prev != NilHandle {
		s.Obj(o.prev).next = o.next
	} else {
		q.head = o.next
	}
	if o.next != NilHandle {
		s.Obj(o.next).prev = o.prev
	} else {
		q.tail = o.prev
	}
	o.next = NilHandle
	o.prev = NilHandle
	q.count--
	q.bytes -= o.Size
}

// MoveToTail relinks h at the newest position.
func (q *Queue) MoveToTail(s *Store, h Handle) {
	if q.tail == h {
		return
	}
	q.Remove(s, h)
	q.PushTail(s, h)
}
