package itable

import (
	"github.com/henderiw/intervaltree/pkg/tree"
	"k8s.io/apimachinery/pkg/labels"
)

type integer interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64
}

// Next returns b+1, false on overflow.
func Next[B integer](b B) (B, bool) {
	n := b + 1
	return n, n > b
}

// FirstFree returns the lowest unclaimed value of within for tables with
// integer bounds.
func FirstFree[B integer](t Table[B], within tree.Interval[B]) (B, bool, error) {
	return t.FindFirstFree(within, Next[B])
}

// ClaimFirstFree claims the lowest unclaimed value of within for tables with
// integer bounds.
func ClaimFirstFree[B integer](t Table[B], within tree.Interval[B], labels labels.Set) (B, error) {
	return t.ClaimDynamic(within, labels, Next[B])
}
