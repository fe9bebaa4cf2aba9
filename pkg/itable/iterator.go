package itable

import (
	"github.com/henderiw/intervaltree/pkg/tree"
	"k8s.io/apimachinery/pkg/labels"
)

type Iterator[B any] struct {
	snapshot *tree.Tree[B, labels.Set]
	iter     *tree.TreeIterator[B, labels.Set]
}

func (r *Iterator[B]) Next() bool {
	return r.iter.Next()
}

func (r *Iterator[B]) Entry() Entry[B] {
	return NewEntry(r.iter.Interval(), r.iter.Value())
}

// Close drops the snapshot so the table does not copy its intervals on the
// next change. The iterator must not be used afterwards.
func (r *Iterator[B]) Close() {
	r.snapshot.Clear()
}
