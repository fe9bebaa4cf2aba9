package tree

import (
	"iter"
)

// TreeIterator is a stateful in-order iterator over a tree. It keeps the
// nodes whose right subtree is still pending on an explicit stack, so every
// step is O(1) amortized and the walk can be suspended between entries.
type TreeIterator[B, V any] struct {
	a           *arena[B, V]
	nodeIndex   uint
	nodeHistory []uint
}

// Iterate returns an iterator over all entries in (Low, High) order. It is
// important for the tree to not be modified while using the iterator; use
// Clone to iterate a snapshot.
func (r *Tree[B, V]) Iterate() *TreeIterator[B, V] {
	iter := &TreeIterator[B, V]{
		a:           r.a,
		nodeHistory: []uint{},
	}
	iter.Reset()
	return iter
}

// Reset moves the iterator back before the first entry.
func (iter *TreeIterator[B, V]) Reset() {
	iter.nodeIndex = 0
	iter.nodeHistory = iter.nodeHistory[:0]
	if iter.a != nil {
		iter.pushLeft(iter.a.root)
	}
}

func (iter *TreeIterator[B, V]) pushLeft(index uint) {
	for index != 0 {
		iter.nodeHistory = append(iter.nodeHistory, index)
		index = iter.a.nodes[index].Left
	}
}

// Next jumps to the next entry. It returns false if there is none.
func (iter *TreeIterator[B, V]) Next() bool {
	l := len(iter.nodeHistory)
	if l == 0 {
		iter.nodeIndex = 0
		return false
	}
	iter.nodeIndex = iter.nodeHistory[l-1]
	iter.nodeHistory = iter.nodeHistory[:l-1]
	iter.pushLeft(iter.a.nodes[iter.nodeIndex].Right)
	return true
}

// Interval returns the interval of the current entry.
func (iter *TreeIterator[B, V]) Interval() Interval[B] {
	return iter.a.nodes[iter.nodeIndex].Interval
}

// Value returns the value of the current entry.
func (iter *TreeIterator[B, V]) Value() V {
	return iter.a.nodes[iter.nodeIndex].Value
}

// Entry returns the current entry.
func (iter *TreeIterator[B, V]) Entry() Entry[B, V] {
	return iter.a.entry(iter.nodeIndex)
}

// All returns the entries in (Low, High) order for use with range.
func (r *Tree[B, V]) All() iter.Seq2[Interval[B], V] {
	return func(yield func(Interval[B], V) bool) {
		it := r.Iterate()
		for it.Next() {
			if !yield(it.Interval(), it.Value()) {
				return
			}
		}
	}
}

// Sorted returns all entries in (Low, High) order.
func (r *Tree[B, V]) Sorted() []Entry[B, V] {
	ret := make([]Entry[B, V], 0, r.Len())
	it := r.Iterate()
	for it.Next() {
		ret = append(ret, it.Entry())
	}
	return ret
}
