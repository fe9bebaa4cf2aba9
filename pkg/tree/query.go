package tree

import (
	"slices"
)

// walker describes one pruned in-order walk over the tree.
type walker[B, V any] struct {
	a *arena[B, V]
	// enterLeft and enterRight receive the child subtree root and report
	// whether the subtree can hold a match
	enterLeft  func(child *treeNode[B, V]) bool
	enterRight func(child *treeNode[B, V]) bool
	// match tests the node itself
	match func(n *treeNode[B, V]) bool
	// visit receives every matching node, returning false stops the walk
	visit func(index uint) bool
}

// walk visits the subtree at index left, self, right. It returns false when
// the walk was stopped.
func (w *walker[B, V]) walk(index uint) bool {
	n := &w.a.nodes[index]
	if n.Left != 0 && w.enterLeft(&w.a.nodes[n.Left]) {
		if !w.walk(n.Left) {
			return false
		}
	}
	if w.match(n) && !w.visit(index) {
		return false
	}
	if n.Right != 0 && w.enterRight(&w.a.nodes[n.Right]) {
		return w.walk(n.Right)
	}
	return true
}

func (r *Tree[B, V]) run(w *walker[B, V]) {
	if r.a == nil || r.a.root == 0 {
		return
	}
	w.a = r.a
	w.walk(r.a.root)
}

func (r *Tree[B, V]) collect(w *walker[B, V]) []Entry[B, V] {
	var ret []Entry[B, V]
	w.visit = func(index uint) bool {
		ret = append(ret, r.a.entry(index))
		return true
	}
	r.run(w)
	return ret
}

func (r *Tree[B, V]) overlapWalker(q Interval[B]) *walker[B, V] {
	compare := r.compare
	return &walker[B, V]{
		enterLeft: func(child *treeNode[B, V]) bool {
			return compare(child.MaxHigh, q.Low) >= 0
		},
		enterRight: func(child *treeNode[B, V]) bool {
			return compare(child.MinLow, q.High) <= 0
		},
		match: func(n *treeNode[B, V]) bool {
			return n.Interval.Overlaps(q, compare)
		},
	}
}

// Overlapping returns the entries sharing at least one point with q, in
// (Low, High) order.
func (r *Tree[B, V]) Overlapping(q Interval[B]) ([]Entry[B, V], error) {
	if err := validate(q, r.compare); err != nil {
		return nil, err
	}
	return r.collect(r.overlapWalker(q)), nil
}

// Containing returns the entries holding the point p.
func (r *Tree[B, V]) Containing(p B) []Entry[B, V] {
	if r.compare == nil {
		return nil
	}
	return r.collect(r.overlapWalker(Point(p)))
}

// HasOverlap returns whether any entry shares at least one point with q. It
// stops at the first match.
func (r *Tree[B, V]) HasOverlap(q Interval[B]) (bool, error) {
	if err := validate(q, r.compare); err != nil {
		return false, err
	}
	found := false
	w := r.overlapWalker(q)
	w.visit = func(uint) bool {
		found = true
		return false
	}
	r.run(w)
	return found, nil
}

// Contained returns the entries lying entirely within q.
func (r *Tree[B, V]) Contained(q Interval[B]) ([]Entry[B, V], error) {
	if err := validate(q, r.compare); err != nil {
		return nil, err
	}
	compare := r.compare
	w := &walker[B, V]{
		enterLeft: func(child *treeNode[B, V]) bool {
			return compare(child.MaxHigh, q.Low) >= 0
		},
		enterRight: func(child *treeNode[B, V]) bool {
			return compare(child.MinLow, q.High) <= 0
		},
		match: func(n *treeNode[B, V]) bool {
			return n.Interval.CoveredBy(q, compare)
		},
	}
	return r.collect(w), nil
}

// Enclosing returns the entries holding all of q.
func (r *Tree[B, V]) Enclosing(q Interval[B]) ([]Entry[B, V], error) {
	if err := validate(q, r.compare); err != nil {
		return nil, err
	}
	compare := r.compare
	w := &walker[B, V]{
		enterLeft: func(child *treeNode[B, V]) bool {
			return compare(child.MinLow, q.Low) <= 0
		},
		enterRight: func(child *treeNode[B, V]) bool {
			return compare(child.MaxHigh, q.High) >= 0
		},
		match: func(n *treeNode[B, V]) bool {
			return n.Interval.Encloses(q, compare)
		},
	}
	return r.collect(w), nil
}

// Gaps returns the parts of rng not covered by any entry, ordered by Low.
// Gaps share their end points with the neighbouring entries since bounds
// have no notion of successor. A gap is reported only when it has a
// positive width, except that an uncovered rng is returned whole.
func (r *Tree[B, V]) Gaps(rng Interval[B]) ([]Interval[B], error) {
	if err := validate(rng, r.compare); err != nil {
		return nil, err
	}
	compare := r.compare
	hits := r.collect(r.overlapWalker(rng))
	if len(hits) == 0 {
		return []Interval[B]{rng}, nil
	}

	spans := make([]Interval[B], 0, len(hits))
	for _, e := range hits {
		spans = append(spans, e.Interval.Intersect(rng, compare))
	}
	slices.SortStableFunc(spans, func(x, y Interval[B]) int {
		return compare(x.Low, y.Low)
	})

	var gaps []Interval[B]
	cursor := rng.Low
	for _, s := range spans {
		if compare(s.Low, cursor) > 0 {
			gaps = append(gaps, Interval[B]{Low: cursor, High: s.Low})
		}
		cursor = maxOf(cursor, s.High, compare)
	}
	if compare(cursor, rng.High) < 0 {
		gaps = append(gaps, Interval[B]{Low: cursor, High: rng.High})
	}
	return gaps, nil
}
