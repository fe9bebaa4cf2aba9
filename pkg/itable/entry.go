package itable

import (
	"fmt"

	"github.com/henderiw/intervaltree/pkg/tree"
	"k8s.io/apimachinery/pkg/labels"
)

type Entry[B any] interface {
	Interval() tree.Interval[B]
	Labels() labels.Set
	String() string
	Equal(e2 Entry[B]) bool
}

type entry[B any] struct {
	interval tree.Interval[B]
	labels   labels.Set
}

type Entries[B any] []Entry[B]

func (r entry[B]) Interval() tree.Interval[B] { return r.interval }
func (r entry[B]) Labels() labels.Set         { return r.labels }
func (r entry[B]) String() string {
	return fmt.Sprintf("interval: %s, labels: %s", r.interval, r.labels.String())
}
func (r entry[B]) Equal(e2 Entry[B]) bool {
	return fmt.Sprint(r.interval) == fmt.Sprint(e2.Interval()) &&
		r.labels.String() == e2.Labels().String()
}

func NewEntry[B any](i tree.Interval[B], labels labels.Set) Entry[B] {
	return entry[B]{
		interval: i,
		labels:   labels,
	}
}

func fromTree[B any](entries []tree.Entry[B, labels.Set]) Entries[B] {
	ret := make(Entries[B], 0, len(entries))
	for _, e := range entries {
		ret = append(ret, NewEntry(e.Interval, e.Value))
	}
	return ret
}
