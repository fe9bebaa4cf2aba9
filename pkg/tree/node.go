package tree

type treeNode[B, V any] struct {
	Left     uint // left node index: 0 for not set
	Right    uint // right node index: 0 for not set
	Interval Interval[B]
	Value    V
	MinLow   B   // smallest lower bound in the subtree
	MaxHigh  B   // biggest upper bound in the subtree
	Height   int // 1 for a leaf
}

// update recomputes the augmented fields of the node at index from its own
// interval and the cached fields of its children. Children must be up to
// date before their parent is updated.
func (a *arena[B, V]) update(index uint, compare CompareFn[B]) {
	n := &a.nodes[index]
	n.MinLow = n.Interval.Low
	n.MaxHigh = n.Interval.High
	n.Height = 1
	for _, child := range [2]uint{n.Left, n.Right} {
		if child == 0 {
			continue
		}
		c := &a.nodes[child]
		n.MinLow = minOf(n.MinLow, c.MinLow, compare)
		n.MaxHigh = maxOf(n.MaxHigh, c.MaxHigh, compare)
		n.Height = max(n.Height, c.Height+1)
	}
}

func (a *arena[B, V]) height(index uint) int {
	if index == 0 {
		return 0
	}
	return a.nodes[index].Height
}

func (a *arena[B, V]) balanceFactor(index uint) int {
	n := &a.nodes[index]
	return a.height(n.Left) - a.height(n.Right)
}
