// Package queue implements the value-based binary heaps used by graph
// search: a min-heap for the expansion frontier and a bounded max-heap for
// the running result set.
package queue

// Item is a (node, distance) pair ordered by distance.
type Item struct {
	Node uint32
	Dist float32
}

// Queue is a binary heap over Items with value-based storage, so pushes and
// pops do not allocate once capacity is reached. Construct with NewMin or
// NewMax; the zero value is a min-heap with no preallocated capacity.
type Queue struct {
	max   bool
	items []Item
}

// NewMin returns a queue that pops the smallest distance first.
func NewMin(capacity int) *Queue {
	return &Queue{items: make([]Item, 0, capacity)}
}

// NewMax returns a queue that pops the largest distance first.
func NewMax(capacity int) *Queue {
	return &Queue{max: true, items: make([]Item, 0, capacity)}
}

// Len returns the number of items in the queue.
func (q *Queue) Len() int { return len(q.items) }

// Reset clears the queue for reuse, keeping the backing storage.
func (q *Queue) Reset() { q.items = q.items[:0] }

// Peek returns the top item without removing it.
func (q *Queue) Peek() (Item, bool) {
	if len(q.items) == 0 {
		return Item{}, false
	}
	return q.items[0], true
}

// Push inserts an item while maintaining the heap invariant.
func (q *Queue) Push(it Item) {
	q.items = append(q.items, it)
	q.siftUp(len(q.items) - 1)
}

// Pop removes and returns the top item.
func (q *Queue) Pop() (Item, bool) {
	n := len(q.items)
	if n == 0 {
		return Item{}, false
	}
	root := q.items[0]
	last := q.items[n-1]
	q.items = q.items[:n-1]
	if n-1 > 0 {
		q.items[0] = last
		q.siftDown(0)
	}
	return root, true
}

// PushBounded inserts an item into a max-heap whose size must stay at or
// below bound, evicting the current worst item when full. Reports whether
// the item was inserted. Only meaningful for max-heaps.
func (q *Queue) PushBounded(it Item, bound int) bool {
	if bound <= 0 {
		return false
	}
	if len(q.items) < bound {
		q.Push(it)
		return true
	}
	if worst := q.items[0]; it.Dist < worst.Dist {
		q.items[0] = it
		q.siftDown(0)
		return true
	}
	return false
}

// Min returns the item with the smallest distance currently in the queue.
// For min-heaps this is the top; for max-heaps this scans the backing slice.
func (q *Queue) Min() (Item, bool) {
	if len(q.items) == 0 {
		return Item{}, false
	}
	if !q.max {
		return q.items[0], true
	}
	best := q.items[0]
	for _, it := range q.items[1:] {
		if it.Dist < best.Dist {
			best = it
		}
	}
	return best, true
}

// Items exposes the backing slice in heap order. The slice is invalidated by
// the next mutation; callers must copy if they need to retain it.
func (q *Queue) Items() []Item { return q.items }

func (q *Queue) less(i, j int) bool {
	if q.max {
		return q.items[i].Dist > q.items[j].Dist
	}
	return q.items[i].Dist < q.items[j].Dist
}

func (q *Queue) siftUp(i int) {
	for i > 0 {
		p := (i - 1) / 2
		if !q.less(i, p) {
			return
		}
		q.items[i], q.items[p] = q.items[p], q.items[i]
		i = p
	}
}

func (q *Queue) siftDown(i int) {
	n := len(q.items)
	for {
		l := 2*i + 1
		if l >= n {
			return
		}
		best := l
		if r := l + 1; r < n && q.less(r, l) {
			best = r
		}
		if !q.less(best, i) {
			return
		}
		q.items[i], q.items[best] = q.items[best], q.items[i]
		i = best
	}
}
