// Package store implements the object store and hash index every simulated
// cache is built on: an arena of cache objects addressed by stable integer
// handles, an open hash index with chaining keyed by object id, and intrusive
// queues whose next/prev links are handle-valued fields inside the objects.
//
// The store is the sole owner of all object records. Policies order and tag
// objects through handles; a queue never owns objects, it only orders
// references the store already owns.
package store

import (
	simerrors "github.com/cachesim/cachesim/pkg/errors"
)

// Handle is a stable 1-based reference to an object in the arena.
// The zero Handle is the nil reference.
type Handle uint32

// NilHandle is the null object reference.
const NilHandle Handle = 0

// Object state tags used by multi-tier policies. A resident object belongs to
// at most one primary queue at a time; State records which one.
const (
	StateNone uint8 = iota
	StateSmall
	StateMain
	StateGhost
	StateHot
	StateCold
	StateTest
	StateT1
	StateT2
	StateB1
	StateB2
)

// Object represents one record in the arena: identity, byte accounting, and
// the per-policy scratch fields (frequency counter, reference bit, tier tag,
// auxiliary word). Link fields are unexported; queues manipulate them through
// the store.
type Object struct {
	ID   uint64
	Size uint64

	// Policy scratch. Semantics are owned by whichever policy runs the
	// cache; the store only zeroes them on insert.
	Freq       uint32
	Referenced bool
	Demoted    bool
	State      uint8
	Aux        uint64
	LastAccess uint64

	next     Handle
	prev     Handle
	hashNext Handle
	live     bool
}

// Resident reports whether the object holds a payload, as opposed to being a
// metadata-only ghost or test entry kept around to detect re-access.
func (o *Object) Resident() bool {
	switch o.State {
	case StateGhost, StateTest, StateB1, StateB2:
		return false
	default:
		return true
	}
}

const (
	chunkShift = 12
	chunkSize  = 1 << chunkShift // objects per arena chunk
	chunkMask  = chunkSize - 1

	minBuckets = 256
	// Grow the bucket array when count exceeds buckets*maxLoadNum/maxLoadDen.
	maxLoadNum = 7
	maxLoadDen = 8
)

// Store owns all live cache objects for one cache instance.
// It is not safe for concurrent use; each simulated cache is single-threaded.
type Store struct {
	chunks   [][]Object
	freeList []Handle
	buckets  []Handle
	count    uint64
	occupied uint64
}

// New creates an empty store. sizeHint is the expected object count and only
// affects the initial bucket allocation.
func New(sizeHint int) *Store {
	n := minBuckets
	for n < sizeHint {
		n <<= 1
	}
	return &Store{
		buckets: make([]Handle, n),
	}
}

// hash mixes the object id into a bucket index. Fibonacci multiplicative
// hashing keeps skewed id distributions (sequential ids, aligned addresses)
// from clustering in a few chains.
func (s *Store) hash(id uint64) uint64 {
	h := id * 0x9e3779b97f4a7c15
	h ^= h >> 29
	return h & uint64(len(s.buckets)-1)
}

// Obj returns the object for a handle. The pointer stays valid for the
// lifetime of the object (arena chunks are never reallocated), but callers
// must not retain it past a Remove of the same handle.
func (s *Store) Obj(h Handle) *Object {
	idx := uint32(h) - 1
	return &s.chunks[idx>>chunkShift][idx&chunkMask]
}

// Find returns the handle for id, or NilHandle if the id is not indexed.
func (s *Store) Find(id uint64) Handle {
	for h := s.buckets[s.hash(id)]; h != NilHandle; {
		o := s.Obj(h)
		if o.ID == id {
			return h
		}
		h = o.hashNext
	}
	return NilHandle
}

// Contains reports whether an object with id is indexed.
func (s *Store) Contains(id uint64) bool {
	return s.Find(id) != NilHandle
}

// Insert adds a new object and returns its handle. The occupied-bytes
// counter and the hash index are updated together; no intermediate state is
// observable. Inserting an id that is already present fails without mutating
// the store.
func (s *Store) Insert(id, size uint64) (Handle, error) {
	if s.Find(id) != NilHandle {
		return NilHandle, simerrors.Newf(simerrors.ErrCodeDuplicateObject,
			"object %d already resident", id).WithComponent("store").WithOperation("insert")
	}
	if s.count+1 > uint64(len(s.buckets))*maxLoadNum/maxLoadDen {
		s.growBuckets()
	}

	h := s.alloc()
	o := s.Obj(h)
	*o = Object{ID: id, Size: size, live: true}

	b := s.hash(id)
	o.hashNext = s.buckets[b]
	s.buckets[b] = h

	s.count++
	s.occupied += size
	return h, nil
}

// Remove deletes the object with id. It returns the freed size and whether
// the id was present.
func (s *Store) Remove(id uint64) (uint64, bool) {
	h := s.Find(id)
	if h == NilHandle {
		return 0, false
	}
	size := s.Obj(h).Size
	s.RemoveHandle(h)
	return size, true
}

// RemoveHandle deletes the object behind h. The object must not be linked
// into any queue; callers unlink first so queue byte accounting stays exact.
func (s *Store) RemoveHandle(h Handle) {
	o := s.Obj(h)
	s.unindex(o)
	s.occupied -= o.Size
	s.count--
	o.live = false
	s.freeList = append(s.freeList, h)
}

// Resize changes an object's size and adjusts the occupied-bytes counter.
// Used by ghost-list policies that keep an id indexed after dropping its
// payload. The object must not be linked into a queue while resized.
func (s *Store) Resize(h Handle, newSize uint64) {
	o := s.Obj(h)
	s.occupied -= o.Size
	s.occupied += newSize
	o.Size = newSize
}

// OccupiedBytes returns the byte sum of all indexed objects.
func (s *Store) OccupiedBytes() uint64 {
	return s.occupied
}

// Count returns the number of indexed objects.
func (s *Store) Count() uint64 {
	return s.count
}

// ForEach calls fn for every live object until fn returns false.
func (s *Store) ForEach(fn func(h Handle, o *Object) bool) {
	for ci, chunk := range s.chunks {
		for i := range chunk {
			o := &chunk[i]
			if !o.live {
				continue
			}
			h := Handle(uint32(ci)<<chunkShift + uint32(i) + 1)
			if !fn(h, o) {
				return
			}
		}
	}
}

// CheckConsistency recomputes occupied bytes and object count from the arena
// and compares them against the tracked counters. A mismatch means a policy
// or the kernel corrupted the accounting and the run must abort.
func (s *Store) CheckConsistency() error {
	var bytes, count uint64
	s.ForEach(func(_ Handle, o *Object) bool {
		bytes += o.Size
		count++
		return true
	})
	if bytes != s.occupied {
		return simerrors.Newf(simerrors.ErrCodeAccountingDrift,
			"occupied bytes %d but object sizes sum to %d", s.occupied, bytes).
			WithComponent("store")
	}
	if count != s.count {
		return simerrors.Newf(simerrors.ErrCodeAccountingDrift,
			"object count %d but arena holds %d live objects", s.count, count).
			WithComponent("store")
	}
	return nil
}

func (s *Store) alloc() Handle {
	if n := len(s.freeList); n > 0 {
		h := s.freeList[n-1]
		s.freeList = s.freeList[:n-1]
		return h
	}
	nChunks := len(s.chunks)
	if nChunks == 0 || len(s.chunks[nChunks-1]) == chunkSize {
		s.chunks = append(s.chunks, make([]Object, 0, chunkSize))
		nChunks++
	}
	last := &s.chunks[nChunks-1]
	*last = append(*last, Object{})
	idx := uint32(nChunks-1)<<chunkShift + uint32(len(*last)) - 1
	return Handle(idx + 1)
}

func (s *Store) unindex(o *Object) {
	b := s.hash(o.ID)
	h := s.buckets[b]
	if s.Obj(h) == o {
		s.buckets[b] = o.hashNext
		o.hashNext = NilHandle
		return
	}
	for h != NilHandle {
		prev := s.Obj(h)
		if next := prev.hashNext; next != NilHandle && s.Obj(next) == o {
			prev.hashNext = o.hashNext
			o.hashNext = NilHandle
			return
		}
		h = prev.hashNext
	}
	// Unreachable for a live object: every live object is chained exactly
	// once from its bucket.
	panic(simerrors.Newf(simerrors.ErrCodeMissingObject,
		"object %d not found in its hash chain", o.ID).WithComponent("store"))
}

func (s *Store) growBuckets() {
	old := s.buckets
	s.buckets = make([]Handle, len(old)*2)
	for _, h := range old {
		for h != NilHandle {
			o := s.Obj(h)
			next := o.hashNext
			b := s.hash(o.ID)
			o.hashNext = s.buckets[b]
			s.buckets[b] = h
			h = next
		}
	}
}
