package tree

import (
	"cmp"
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrInvalidInterval is returned when an interval has its lower bound after its upper bound.
	ErrInvalidInterval = errors.New("invalid interval")
	// ErrUnsorted is returned by FromSorted when the input is not in (Low, High) order.
	ErrUnsorted = errors.New("entries not sorted")
	// ErrNoCompare is returned when a zero value tree is used.
	ErrNoCompare = errors.New("tree has no compare function")
)

// CompareFn returns a negative number when a < b, zero when a == b and a
// positive number when a > b.
type CompareFn[B any] func(a, b B) int

// Interval is a closed range [Low, High].
type Interval[B any] struct {
	Low  B
	High B
}

// NewInterval returns the interval [low, high]. The bounds are validated by
// the tree operations that accept it.
func NewInterval[B any](low, high B) Interval[B] {
	return Interval[B]{Low: low, High: high}
}

// Point returns the degenerate interval [p, p].
func Point[B any](p B) Interval[B] {
	return Interval[B]{Low: p, High: p}
}

func (r Interval[B]) String() string {
	return fmt.Sprintf("[%v, %v]", r.Low, r.High)
}

// IsValid returns whether Low <= High.
func (r Interval[B]) IsValid(compare CompareFn[B]) bool {
	return compare(r.Low, r.High) <= 0
}

// Compare orders intervals by (Low, High).
func (r Interval[B]) Compare(other Interval[B], compare CompareFn[B]) int {
	if c := compare(r.Low, other.Low); c != 0 {
		return c
	}
	return compare(r.High, other.High)
}

// Overlaps returns whether r and other share at least one point.
func (r Interval[B]) Overlaps(other Interval[B], compare CompareFn[B]) bool {
	return compare(r.Low, other.High) <= 0 && compare(other.Low, r.High) <= 0
}

// CoveredBy returns whether r lies entirely within other.
func (r Interval[B]) CoveredBy(other Interval[B], compare CompareFn[B]) bool {
	return compare(other.Low, r.Low) <= 0 && compare(r.High, other.High) <= 0
}

// Encloses returns whether other lies entirely within r.
func (r Interval[B]) Encloses(other Interval[B], compare CompareFn[B]) bool {
	return other.CoveredBy(r, compare)
}

// Contains returns whether p lies within r.
func (r Interval[B]) Contains(p B, compare CompareFn[B]) bool {
	return compare(r.Low, p) <= 0 && compare(p, r.High) <= 0
}

// Intersect returns the common part of r and other. The result is only
// meaningful when the intervals overlap.
func (r Interval[B]) Intersect(other Interval[B], compare CompareFn[B]) Interval[B] {
	return Interval[B]{
		Low:  maxOf(r.Low, other.Low, compare),
		High: minOf(r.High, other.High, compare),
	}
}

func validate[B any](r Interval[B], compare CompareFn[B]) error {
	if compare == nil {
		return ErrNoCompare
	}
	if !r.IsValid(compare) {
		return errors.Wrapf(ErrInvalidInterval, "lower bound %v is after upper bound %v", r.Low, r.High)
	}
	return nil
}

func minOf[B any](a, b B, compare CompareFn[B]) B {
	if compare(b, a) < 0 {
		return b
	}
	return a
}

func maxOf[B any](a, b B, compare CompareFn[B]) B {
	if compare(b, a) > 0 {
		return b
	}
	return a
}

// ordered returns the natural order of an ordered bound type.
func ordered[B cmp.Ordered]() CompareFn[B] {
	return cmp.Compare[B]
}
