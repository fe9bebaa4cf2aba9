package tree

import (
	"cmp"

	"github.com/pkg/errors"
)

// Tree is an AVL balanced interval tree. Every node caches the smallest lower
// bound and the biggest upper bound of its subtree, which lets the queries
// skip subtrees that cannot hold a match.
//
// A Tree is a handle on a node graph. Clone returns a second handle on the
// same graph in O(1); the first mutation through either handle copies the
// graph for that handle only. Reads never copy. A single handle must not be
// mutated concurrently.
type Tree[B, V any] struct {
	compare CompareFn[B]
	a       *arena[B, V]
}

// NewTree returns an empty tree over an ordered bound type.
func NewTree[B cmp.Ordered, V any]() *Tree[B, V] {
	return NewTreeFunc[B, V](ordered[B]())
}

// NewTreeFunc returns an empty tree ordering bounds with compare.
func NewTreeFunc[B, V any](compare CompareFn[B]) *Tree[B, V] {
	return &Tree[B, V]{
		compare: compare,
		a:       newArena[B, V](0),
	}
}

// FromEntries builds a tree by inserting the entries one by one.
func FromEntries[B, V any](compare CompareFn[B], entries []Entry[B, V]) (*Tree[B, V], error) {
	r := NewTreeFunc[B, V](compare)
	for _, e := range entries {
		if err := validate(e.Interval, compare); err != nil {
			return nil, err
		}
	}
	for _, e := range entries {
		r.a.root = r.a.insert(r.a.root, e.Interval, e.Value, compare)
		r.a.count++
	}
	return r, nil
}

// FromSorted builds a perfectly balanced tree in O(n) from entries sorted by
// (Low, High). It fails with ErrUnsorted when the order is violated.
func FromSorted[B, V any](compare CompareFn[B], entries []Entry[B, V]) (*Tree[B, V], error) {
	for i, e := range entries {
		if err := validate(e.Interval, compare); err != nil {
			return nil, err
		}
		if i > 0 && entries[i-1].Interval.Compare(e.Interval, compare) > 0 {
			return nil, errors.Wrapf(ErrUnsorted, "entry %d %s sorts before entry %d %s", i, e.Interval, i-1, entries[i-1].Interval)
		}
	}
	r := &Tree[B, V]{
		compare: compare,
		a:       newArena[B, V](len(entries)),
	}
	r.a.root = r.a.build(entries, compare)
	r.a.count = len(entries)
	return r, nil
}

// NewTreeFromEntries is FromEntries for ordered bound types.
func NewTreeFromEntries[B cmp.Ordered, V any](entries []Entry[B, V]) (*Tree[B, V], error) {
	return FromEntries(ordered[B](), entries)
}

// NewTreeFromSorted is FromSorted for ordered bound types.
func NewTreeFromSorted[B cmp.Ordered, V any](entries []Entry[B, V]) (*Tree[B, V], error) {
	return FromSorted(ordered[B](), entries)
}

// Clone returns a handle sharing the node graph of r. The graph is copied
// by whichever handle mutates first.
// - Note: the values in the tree are not deep copied
func (r *Tree[B, V]) Clone() *Tree[B, V] {
	if r.a != nil {
		r.a.refs.Add(1)
	}
	return &Tree[B, V]{
		compare: r.compare,
		a:       r.a,
	}
}

// own makes sure r holds the only reference to its arena before a mutation.
func (r *Tree[B, V]) own() {
	if r.a == nil {
		r.a = newArena[B, V](0)
		return
	}
	if r.a.refs.Load() > 1 {
		c := r.a.copy()
		r.a.refs.Add(-1)
		r.a = c
	}
}

// Compare returns the bound order of the tree.
func (r *Tree[B, V]) Compare() CompareFn[B] {
	return r.compare
}

// Len returns the number of entries in the tree.
func (r *Tree[B, V]) Len() int {
	if r.a == nil {
		return 0
	}
	return r.a.count
}

// Height returns the height of the tree, 0 when empty.
func (r *Tree[B, V]) Height() int {
	if r.a == nil {
		return 0
	}
	return r.a.height(r.a.root)
}

// Clear removes all entries. Other handles sharing the graph keep it.
func (r *Tree[B, V]) Clear() {
	if r.a != nil {
		r.a.refs.Add(-1)
	}
	r.a = newArena[B, V](0)
}

// Insert adds the interval with its value. Duplicated intervals are allowed.
func (r *Tree[B, V]) Insert(i Interval[B], v V) error {
	if err := validate(i, r.compare); err != nil {
		return err
	}
	r.own()
	r.a.root = r.a.insert(r.a.root, i, v, r.compare)
	r.a.count++
	return nil
}

// Remove deletes one entry whose interval equals i and returns its value.
// When several entries share the interval the first one met on the way down
// is removed. The bool is false when no such entry exists.
func (r *Tree[B, V]) Remove(i Interval[B]) (V, bool, error) {
	var v V
	if err := validate(i, r.compare); err != nil {
		return v, false, err
	}
	if r.a == nil {
		return v, false, nil
	}
	p, ok := r.a.searchPath(i, r.compare)
	if !ok {
		return v, false, nil
	}
	return r.removeAt(p), true, nil
}

// RemoveFunc deletes the first entry, in order, whose interval equals i and
// whose value satisfies match.
func (r *Tree[B, V]) RemoveFunc(i Interval[B], match func(V) bool) (V, bool, error) {
	var v V
	if err := validate(i, r.compare); err != nil {
		return v, false, err
	}
	if r.a == nil {
		return v, false, nil
	}
	p, ok := r.a.matchPath(r.a.root, i, match, r.compare, nil)
	if !ok {
		return v, false, nil
	}
	return r.removeAt(p), true, nil
}

func (r *Tree[B, V]) removeAt(p path) V {
	// the copy made by own has the same shape, p stays valid
	r.own()
	root, v := r.a.removeAt(r.a.root, p, r.compare)
	r.a.root = root
	r.a.count--
	return v
}

// Replace sets the value of the first entry on the search path whose
// interval equals i and returns the previous value.
func (r *Tree[B, V]) Replace(i Interval[B], v V) (V, bool, error) {
	var old V
	if err := validate(i, r.compare); err != nil {
		return old, false, err
	}
	if r.a == nil {
		return old, false, nil
	}
	index := r.a.find(r.a.root, i, r.compare)
	if index == 0 {
		return old, false, nil
	}
	r.own()
	old = r.a.nodes[index].Value
	r.a.nodes[index].Value = v
	return old, true, nil
}

// Get returns the value of the first entry whose interval equals i.
func (r *Tree[B, V]) Get(i Interval[B]) (V, bool, error) {
	var v V
	if err := validate(i, r.compare); err != nil {
		return v, false, err
	}
	if r.a == nil {
		return v, false, nil
	}
	index := r.a.find(r.a.root, i, r.compare)
	if index == 0 {
		return v, false, nil
	}
	return r.a.nodes[index].Value, true, nil
}

// Min returns the first entry in (Low, High) order.
func (r *Tree[B, V]) Min() (Entry[B, V], bool) {
	if r.a == nil || r.a.root == 0 {
		return Entry[B, V]{}, false
	}
	index := r.a.root
	for r.a.nodes[index].Left != 0 {
		index = r.a.nodes[index].Left
	}
	return r.a.entry(index), true
}

// Max returns the last entry in (Low, High) order.
func (r *Tree[B, V]) Max() (Entry[B, V], bool) {
	if r.a == nil || r.a.root == 0 {
		return Entry[B, V]{}, false
	}
	index := r.a.root
	for r.a.nodes[index].Right != 0 {
		index = r.a.nodes[index].Right
	}
	return r.a.entry(index), true
}

func (a *arena[B, V]) entry(index uint) Entry[B, V] {
	return Entry[B, V]{
		Interval: a.nodes[index].Interval,
		Value:    a.nodes[index].Value,
	}
}

// insert adds a leaf below index and returns the new subtree root. Equal keys
// go right so duplicates keep their insertion order.
func (a *arena[B, V]) insert(index uint, i Interval[B], v V, compare CompareFn[B]) uint {
	if index == 0 {
		return a.newNode(i, v)
	}
	// newNode may reallocate nodes, so the child index is assigned afterwards
	if i.Compare(a.nodes[index].Interval, compare) < 0 {
		child := a.insert(a.nodes[index].Left, i, v, compare)
		a.nodes[index].Left = child
	} else {
		child := a.insert(a.nodes[index].Right, i, v, compare)
		a.nodes[index].Right = child
	}
	return a.fix(index, compare)
}

// find returns the index of the first node on the search path whose interval
// equals i, 0 if there is none.
func (a *arena[B, V]) find(index uint, i Interval[B], compare CompareFn[B]) uint {
	for index != 0 {
		n := &a.nodes[index]
		switch c := i.Compare(n.Interval, compare); {
		case c < 0:
			index = n.Left
		case c > 0:
			index = n.Right
		default:
			return index
		}
	}
	return 0
}

// path is the way down from the root to a node, true meaning right.
type path []bool

// searchPath returns the path to the first node on the search path whose
// interval equals i.
func (a *arena[B, V]) searchPath(i Interval[B], compare CompareFn[B]) (path, bool) {
	var p path
	index := a.root
	for index != 0 {
		n := &a.nodes[index]
		switch c := i.Compare(n.Interval, compare); {
		case c < 0:
			p = append(p, false)
			index = n.Left
		case c > 0:
			p = append(p, true)
			index = n.Right
		default:
			return p, true
		}
	}
	return nil, false
}

// matchPath returns the path to the first node, in order, whose interval
// equals i and whose value satisfies match. Equal intervals can sit on both
// sides of an equal node, so both are searched.
func (a *arena[B, V]) matchPath(index uint, i Interval[B], match func(V) bool, compare CompareFn[B], p path) (path, bool) {
	if index == 0 {
		return nil, false
	}
	n := &a.nodes[index]
	c := i.Compare(n.Interval, compare)
	if c <= 0 {
		if found, ok := a.matchPath(n.Left, i, match, compare, append(p, false)); ok {
			return found, true
		}
	}
	if c == 0 && match(n.Value) {
		return p, true
	}
	if c >= 0 {
		return a.matchPath(n.Right, i, match, compare, append(p, true))
	}
	return nil, false
}

// removeAt deletes the node at the end of p below index and returns the new
// subtree root and the removed value. Every node on the way is updated and
// rebalanced.
func (a *arena[B, V]) removeAt(index uint, p path, compare CompareFn[B]) (uint, V) {
	if index == 0 {
		panic("path leads to an absent node - should be impossible!")
	}
	if len(p) == 0 {
		return a.unlink(index, compare)
	}
	var v V
	if p[0] {
		var right uint
		right, v = a.removeAt(a.nodes[index].Right, p[1:], compare)
		a.nodes[index].Right = right
	} else {
		var left uint
		left, v = a.removeAt(a.nodes[index].Left, p[1:], compare)
		a.nodes[index].Left = left
	}
	return a.fix(index, compare), v
}

// unlink deletes the node at index and returns the new subtree root and the
// removed value.
func (a *arena[B, V]) unlink(index uint, compare CompareFn[B]) (uint, V) {
	n := &a.nodes[index]
	v := n.Value
	switch {
	case n.Left == 0:
		right := n.Right
		a.freeNode(index)
		return right, v
	case n.Right == 0:
		left := n.Left
		a.freeNode(index)
		return left, v
	}

	// two children - promote the in-order successor
	right, succ := a.removeMin(n.Right, compare)
	n = &a.nodes[index]
	n.Right = right
	n.Interval = a.nodes[succ].Interval
	n.Value = a.nodes[succ].Value
	a.freeNode(succ)
	return a.fix(index, compare), v
}

// removeMin detaches the leftmost node of the subtree at index. It returns
// the new subtree root and the detached node, which the caller frees.
func (a *arena[B, V]) removeMin(index uint, compare CompareFn[B]) (uint, uint) {
	n := &a.nodes[index]
	if n.Left == 0 {
		right := n.Right
		n.Right = 0
		return right, index
	}
	left, minIndex := a.removeMin(n.Left, compare)
	a.nodes[index].Left = left
	return a.fix(index, compare), minIndex
}

// build creates a balanced subtree from sorted entries, taking the middle
// entry as the root, and returns its index.
func (a *arena[B, V]) build(entries []Entry[B, V], compare CompareFn[B]) uint {
	if len(entries) == 0 {
		return 0
	}
	mid := len(entries) / 2
	index := a.newNode(entries[mid].Interval, entries[mid].Value)
	left := a.build(entries[:mid], compare)
	right := a.build(entries[mid+1:], compare)
	a.nodes[index].Left = left
	a.nodes[index].Right = right
	a.update(index, compare)
	return index
}
