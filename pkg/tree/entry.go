package tree

import (
	"fmt"
)

// Entry is an interval stored in the tree together with its value.
type Entry[B, V any] struct {
	Interval Interval[B]
	Value    V
}

type Entries[B, V any] []Entry[B, V]

func NewEntry[B, V any](i Interval[B], v V) Entry[B, V] {
	return Entry[B, V]{
		Interval: i,
		Value:    v,
	}
}

func (r Entry[B, V]) String() string {
	return fmt.Sprintf("interval: %s, value: %v", r.Interval, r.Value)
}

// Intervals returns the intervals of the entries, in the same order.
func (r Entries[B, V]) Intervals() []Interval[B] {
	ret := make([]Interval[B], 0, len(r))
	for _, e := range r {
		ret = append(ret, e.Interval)
	}
	return ret
}

// Values returns the values of the entries, in the same order.
func (r Entries[B, V]) Values() []V {
	ret := make([]V, 0, len(r))
	for _, e := range r {
		ret = append(ret, e.Value)
	}
	return ret
}
