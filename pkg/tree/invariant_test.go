package tree

import (
	"math/rand/v2"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

// checkInvariants verifies the AVL balance, the cached augmentation and the
// entry count of the tree.
func checkInvariants[B, V any](t *testing.T, r *Tree[B, V]) {
	t.Helper()
	if r.a == nil {
		return
	}
	count := checkNode(t, r.a, r.a.root, r.compare)
	require.Equal(t, r.a.count, count, "count does not match reachable nodes")
}

func checkNode[B, V any](t *testing.T, a *arena[B, V], index uint, compare CompareFn[B]) int {
	t.Helper()
	if index == 0 {
		return 0
	}
	n := a.nodes[index]
	count := 1 + checkNode(t, a, n.Left, compare) + checkNode(t, a, n.Right, compare)

	lh, rh := a.height(n.Left), a.height(n.Right)
	require.LessOrEqual(t, lh-rh, 1, "node %s unbalanced", n.Interval)
	require.GreaterOrEqual(t, lh-rh, -1, "node %s unbalanced", n.Interval)
	require.Equal(t, 1+max(lh, rh), n.Height, "node %s height", n.Interval)

	minLow, maxHigh := n.Interval.Low, n.Interval.High
	for _, child := range []uint{n.Left, n.Right} {
		if child == 0 {
			continue
		}
		minLow = minOf(minLow, a.nodes[child].MinLow, compare)
		maxHigh = maxOf(maxHigh, a.nodes[child].MaxHigh, compare)
	}
	require.Zero(t, compare(minLow, n.MinLow), "node %s min lower bound", n.Interval)
	require.Zero(t, compare(maxHigh, n.MaxHigh), "node %s max upper bound", n.Interval)

	if n.Left != 0 {
		require.LessOrEqual(t, a.nodes[n.Left].Interval.Compare(n.Interval, compare), 0, "left child out of order")
	}
	if n.Right != 0 {
		require.GreaterOrEqual(t, a.nodes[n.Right].Interval.Compare(n.Interval, compare), 0, "right child out of order")
	}
	return count
}

func randomInterval(rnd *rand.Rand, space, width int) Interval[int] {
	low := rnd.IntN(space)
	return iv(low, low+rnd.IntN(width))
}

func bruteForce(entries []Entry[int, int], match func(Interval[int]) bool) []Entry[int, int] {
	var ret []Entry[int, int]
	for _, e := range entries {
		if match(e.Interval) {
			ret = append(ret, e)
		}
	}
	return ret
}

func TestRandomWorkload(t *testing.T) {
	const (
		space = 1000
		width = 60
		ops   = 3000
	)
	compare := ordered[int]()
	rnd := rand.New(rand.NewPCG(1, 2))
	r := NewTree[int, int]()
	var stored []Interval[int]

	for i := 0; i < ops; i++ {
		if len(stored) > 0 && rnd.IntN(3) == 0 {
			// remove an existing interval, or a missing one now and then
			target := stored[rnd.IntN(len(stored))]
			if rnd.IntN(10) == 0 {
				target = iv(space+1, space+2)
			}
			_, ok, err := r.Remove(target)
			require.NoError(t, err)
			if target.Low <= space {
				require.True(t, ok)
				for j, s := range stored {
					if s == target {
						stored = append(stored[:j], stored[j+1:]...)
						break
					}
				}
			} else {
				require.False(t, ok)
			}
		} else {
			in := randomInterval(rnd, space, width)
			require.NoError(t, r.Insert(in, i))
			stored = append(stored, in)
		}
		require.Equal(t, len(stored), r.Len())
		if i%100 == 0 {
			checkInvariants(t, r)
		}
	}
	checkInvariants(t, r)

	all := r.Sorted()
	require.Len(t, all, len(stored))
	for i := 1; i < len(all); i++ {
		require.LessOrEqual(t, all[i-1].Interval.Compare(all[i].Interval, compare), 0)
	}

	for i := 0; i < 200; i++ {
		q := randomInterval(rnd, space, 3*width)

		got, err := r.Overlapping(q)
		require.NoError(t, err)
		want := bruteForce(all, func(s Interval[int]) bool { return s.Low <= q.High && q.Low <= s.High })
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("Overlapping(%s) -want, +got:\n%s", q, diff)
		}

		has, err := r.HasOverlap(q)
		require.NoError(t, err)
		require.Equal(t, len(want) > 0, has)

		got, err = r.Contained(q)
		require.NoError(t, err)
		want = bruteForce(all, func(s Interval[int]) bool { return q.Low <= s.Low && s.High <= q.High })
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("Contained(%s) -want, +got:\n%s", q, diff)
		}

		got, err = r.Enclosing(q)
		require.NoError(t, err)
		want = bruteForce(all, func(s Interval[int]) bool { return s.Low <= q.Low && q.High <= s.High })
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("Enclosing(%s) -want, +got:\n%s", q, diff)
		}

		p := rnd.IntN(space)
		want = bruteForce(all, func(s Interval[int]) bool { return s.Low <= p && p <= s.High })
		if diff := cmp.Diff(want, r.Containing(p)); diff != "" {
			t.Fatalf("Containing(%d) -want, +got:\n%s", p, diff)
		}

		checkGaps(t, r, all, q)
	}
}

// checkGaps verifies that the gaps are sorted, disjoint, inside rng, hold no
// covered point in their interior and hold every uncovered point of rng.
func checkGaps(t *testing.T, r *Tree[int, int], all []Entry[int, int], rng Interval[int]) {
	t.Helper()
	gaps, err := r.Gaps(rng)
	require.NoError(t, err)

	covered := func(p int) bool {
		for _, e := range all {
			if e.Interval.Low <= p && p <= e.Interval.High {
				return true
			}
		}
		return false
	}
	for i, g := range gaps {
		require.True(t, g.Low <= g.High)
		require.True(t, rng.Low <= g.Low && g.High <= rng.High, "gap %s outside %s", g, rng)
		if i > 0 {
			require.LessOrEqual(t, gaps[i-1].High, g.Low, "gaps %s and %s overlap", gaps[i-1], g)
		}
		for p := g.Low + 1; p < g.High; p++ {
			require.False(t, covered(p), "gap %s holds covered point %d", g, p)
		}
	}
	for p := rng.Low; p <= rng.High; p++ {
		if covered(p) {
			continue
		}
		found := false
		for _, g := range gaps {
			if g.Low <= p && p <= g.High {
				found = true
				break
			}
		}
		require.True(t, found, "uncovered point %d of %s not in gaps %v", p, rng, gaps)
	}
}

func TestInsertionOrderIndependence(t *testing.T) {
	rnd := rand.New(rand.NewPCG(3, 4))
	entries := make([]Entry[int, string], 0, 200)
	for i := 0; i < 200; i++ {
		entries = append(entries, NewEntry(randomInterval(rnd, 500, 40), "v"))
	}
	shuffled := make([]Entry[int, string], len(entries))
	copy(shuffled, entries)
	rnd.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

	r1, err := NewTreeFromEntries(entries)
	require.NoError(t, err)
	r2, err := NewTreeFromEntries(shuffled)
	require.NoError(t, err)
	r3, err := NewTreeFromSorted(r1.Sorted())
	require.NoError(t, err)
	checkInvariants(t, r1)
	checkInvariants(t, r2)
	checkInvariants(t, r3)

	for i := 0; i < 100; i++ {
		q := randomInterval(rnd, 500, 80)
		o1, err := r1.Overlapping(q)
		require.NoError(t, err)
		o2, err := r2.Overlapping(q)
		require.NoError(t, err)
		o3, err := r3.Overlapping(q)
		require.NoError(t, err)
		require.Equal(t, Entries[int, string](o1).Intervals(), Entries[int, string](o2).Intervals())
		require.Equal(t, Entries[int, string](o1).Intervals(), Entries[int, string](o3).Intervals())
	}
}

func TestSequentialInsertStaysBalanced(t *testing.T) {
	r := NewTree[int, int]()
	for i := 0; i < 1024; i++ {
		require.NoError(t, r.Insert(iv(i, i+1), i))
	}
	checkInvariants(t, r)
	// an AVL tree with n nodes is at most ~1.44 log2(n) high
	require.LessOrEqual(t, r.Height(), 15)

	for i := 0; i < 1024; i += 2 {
		_, ok, err := r.Remove(iv(i, i+1))
		require.NoError(t, err)
		require.True(t, ok)
	}
	checkInvariants(t, r)
	require.Equal(t, 512, r.Len())
}
