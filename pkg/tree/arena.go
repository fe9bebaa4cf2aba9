package tree

import (
	"sync/atomic"
)

// arena holds the nodes of one tree graph. Tree handles created with Clone
// share an arena until one of them mutates.
type arena[B, V any] struct {
	nodes            []treeNode[B, V] // [0] is unused, it stands for the absent child
	availableIndexes []uint           // a place to store node indexes that we deleted, and are available
	root             uint
	count            int
	refs             atomic.Int32 // number of tree handles sharing this arena
}

func newArena[B, V any](capacity int) *arena[B, V] {
	a := &arena[B, V]{
		nodes:            make([]treeNode[B, V], 1, capacity+1),
		availableIndexes: make([]uint, 0),
	}
	a.refs.Store(1)
	return a
}

// copy returns a private deep copy of the arena. Values are copied as is.
func (a *arena[B, V]) copy() *arena[B, V] {
	ret := &arena[B, V]{
		nodes:            make([]treeNode[B, V], len(a.nodes), cap(a.nodes)),
		availableIndexes: make([]uint, len(a.availableIndexes), cap(a.availableIndexes)),
		root:             a.root,
		count:            a.count,
	}
	copy(ret.nodes, a.nodes)
	copy(ret.availableIndexes, a.availableIndexes)
	ret.refs.Store(1)
	return ret
}

// newNode creates a leaf in the arena and returns its index. It may grow the
// node slice, so no pointer into nodes may be held across this call.
func (a *arena[B, V]) newNode(i Interval[B], v V) uint {
	n := treeNode[B, V]{
		Interval: i,
		Value:    v,
		MinLow:   i.Low,
		MaxHigh:  i.High,
		Height:   1,
	}
	availCount := len(a.availableIndexes)
	if availCount > 0 {
		index := a.availableIndexes[availCount-1]
		a.availableIndexes = a.availableIndexes[:availCount-1]
		a.nodes[index] = n
		return index
	}

	a.nodes = append(a.nodes, n)
	return uint(len(a.nodes) - 1)
}

// freeNode releases the node at index so it can be reused.
func (a *arena[B, V]) freeNode(index uint) {
	a.nodes[index] = treeNode[B, V]{}
	a.availableIndexes = append(a.availableIndexes, index)
}
