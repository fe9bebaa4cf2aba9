package tree

// rotateLeft rotates the subtree at index to the left and returns the new
// subtree root.
func (a *arena[B, V]) rotateLeft(index uint, compare CompareFn[B]) uint {
	pivot := a.nodes[index].Right
	if pivot == 0 {
		panic("rotateLeft on a node without right child - should be impossible!")
	}
	a.nodes[index].Right = a.nodes[pivot].Left
	a.nodes[pivot].Left = index

	// the old root is now a child of the pivot, update it first
	a.update(index, compare)
	a.update(pivot, compare)
	return pivot
}

// rotateRight rotates the subtree at index to the right and returns the new
// subtree root.
func (a *arena[B, V]) rotateRight(index uint, compare CompareFn[B]) uint {
	pivot := a.nodes[index].Left
	if pivot == 0 {
		panic("rotateRight on a node without left child - should be impossible!")
	}
	a.nodes[index].Left = a.nodes[pivot].Right
	a.nodes[pivot].Right = index

	a.update(index, compare)
	a.update(pivot, compare)
	return pivot
}

// balance restores the AVL invariant at index, assuming both subtrees are
// balanced and the node itself is up to date. It returns the new subtree
// root.
func (a *arena[B, V]) balance(index uint, compare CompareFn[B]) uint {
	switch bf := a.balanceFactor(index); {
	case bf > 1:
		left := a.nodes[index].Left
		if a.balanceFactor(left) < 0 {
			// left-right case
			a.nodes[index].Left = a.rotateLeft(left, compare)
		}
		return a.rotateRight(index, compare)
	case bf < -1:
		right := a.nodes[index].Right
		if a.balanceFactor(right) > 0 {
			// right-left case
			a.nodes[index].Right = a.rotateRight(right, compare)
		}
		return a.rotateLeft(index, compare)
	default:
		return index
	}
}

// fix updates and rebalances the node at index after one of its subtrees
// changed.
func (a *arena[B, V]) fix(index uint, compare CompareFn[B]) uint {
	a.update(index, compare)
	return a.balance(index, compare)
}
