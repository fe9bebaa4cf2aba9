package itable

import (
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/go-logr/logr/testr"
	"github.com/google/go-cmp/cmp"
	"github.com/henderiw/intervaltree/pkg/tree"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/apimachinery/pkg/labels"
)

func iv(low, high int) tree.Interval[int] {
	return tree.NewInterval(low, high)
}

func space(low, high int) *tree.Interval[int] {
	s := iv(low, high)
	return &s
}

var initEntries = Entries[int]{
	NewEntry(iv(0, 9), labels.Set{"type": "reserved"}),
	NewEntry(iv(990, 999), labels.Set{"type": "reserved"}),
}

func intervals(entries Entries[int]) []tree.Interval[int] {
	ret := make([]tree.Interval[int], 0, len(entries))
	for _, e := range entries {
		ret = append(ret, e.Interval())
	}
	return ret
}

func TestNewTable(t *testing.T) {
	cases := map[string]struct {
		space           *tree.Interval[int]
		initEntries     Entries[int]
		validation      ValidationFn[int]
		expectedEntries int
		expectedErr     error
	}{
		"NewWithoutInitEntries": {
			space:           space(0, 999),
			expectedEntries: 0,
		},
		"NewWithInitEntries": {
			space:           space(0, 999),
			initEntries:     initEntries,
			validation:      func(i tree.Interval[int]) error { return errors.New("validation") },
			expectedEntries: 2,
		},
		"NewUnbounded": {
			initEntries:     initEntries,
			expectedEntries: 2,
		},
		"NewErrorOutOfSpace": {
			space:           space(0, 100),
			initEntries:     initEntries,
			expectedEntries: 1,
			expectedErr:     ErrOutOfSpace,
		},
		"NewErrorConflict": {
			space: space(0, 999),
			initEntries: Entries[int]{
				NewEntry(iv(0, 9), nil),
				NewEntry(iv(5, 15), nil),
			},
			expectedEntries: 1,
			expectedErr:     ErrConflict,
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			r, err := New("test", Config[int]{
				Space:       tc.space,
				InitEntries: tc.initEntries,
				Validation:  tc.validation,
				Logger:      testr.New(t),
			})
			if tc.expectedErr != nil {
				assert.ErrorIs(t, err, tc.expectedErr)
			} else {
				assert.NoError(t, err)
			}
			require.NotNil(t, r)
			if r.Count() != tc.expectedEntries {
				t.Errorf("%s: -want %d, +got: %d\n", name, tc.expectedEntries, r.Count())
			}
		})
	}
}

func TestNewInvalidSpace(t *testing.T) {
	_, err := New("test", Config[int]{Space: space(10, 0)})
	assert.ErrorIs(t, err, tree.ErrInvalidInterval)
}

func TestClaim(t *testing.T) {
	cases := map[string]struct {
		claim       tree.Interval[int]
		shared      bool
		expectedErr error
	}{
		"Free":             {claim: iv(100, 199)},
		"Point":            {claim: iv(500, 500)},
		"OverlapInit":      {claim: iv(5, 20), expectedErr: ErrConflict},
		"TouchInit":        {claim: iv(9, 20), expectedErr: ErrConflict},
		"OutOfSpace":       {claim: iv(900, 1000), expectedErr: ErrOutOfSpace},
		"Invalid":          {claim: iv(20, 10), expectedErr: tree.ErrInvalidInterval},
		"Validation":       {claim: iv(666, 666), expectedErr: errEvil},
		"SharedOverlap":    {claim: iv(5, 20), shared: true},
		"SharedOutOfSpace": {claim: iv(-1, 20), shared: true, expectedErr: ErrOutOfSpace},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			r := newTestTable(t)

			claim := r.Claim
			if tc.shared {
				claim = r.ClaimShared
			}
			err := claim(tc.claim, labels.Set{"name": name})
			if tc.expectedErr != nil {
				assert.ErrorIs(t, err, tc.expectedErr)
				assert.Equal(t, len(initEntries), r.Count())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, len(initEntries)+1, r.Count())

			e, err := r.Get(tc.claim)
			require.NoError(t, err)
			assert.Equal(t, name, e.Labels()["name"])
		})
	}
}

var errEvil = errors.New("evil")

func newTestTable(t *testing.T) Table[int] {
	t.Helper()
	r, err := New("test", Config[int]{
		Space:       space(0, 999),
		InitEntries: initEntries,
		Validation: func(i tree.Interval[int]) error {
			if i.Contains(666, func(a, b int) int { return a - b }) {
				return errors.Wrapf(errEvil, "interval %s", i)
			}
			return nil
		},
		Logger: testr.New(t),
	})
	require.NoError(t, err)
	return r
}

func TestGetUpdateRelease(t *testing.T) {
	r := newTestTable(t)

	_, err := r.Get(iv(10, 20))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, r.Update(iv(10, 20), labels.Set{}), ErrNotFound)
	assert.ErrorIs(t, r.Release(iv(10, 20)), ErrNotFound)

	require.NoError(t, r.Claim(iv(10, 20), labels.Set{"owner": "a"}))
	require.NoError(t, r.Update(iv(10, 20), labels.Set{"owner": "b"}))
	e, err := r.Get(iv(10, 20))
	require.NoError(t, err)
	assert.True(t, e.Equal(NewEntry(iv(10, 20), labels.Set{"owner": "b"})))

	require.NoError(t, r.ClaimShared(iv(10, 20), labels.Set{"owner": "c"}))
	assert.Equal(t, 4, r.Count())

	// release drops every entry with the interval
	require.NoError(t, r.Release(iv(10, 20)))
	assert.Equal(t, 2, r.Count())
	assert.True(t, r.IsFree(iv(10, 20)))
}

func TestReleaseByLabel(t *testing.T) {
	r := newTestTable(t)
	require.NoError(t, r.Claim(iv(10, 19), labels.Set{"owner": "a"}))
	require.NoError(t, r.Claim(iv(20, 29), labels.Set{"owner": "b"}))
	require.NoError(t, r.ClaimShared(iv(20, 29), labels.Set{"owner": "a"}))
	require.NoError(t, r.Claim(iv(30, 39), labels.Set{"owner": "a"}))

	selector := labels.SelectorFromSet(labels.Set{"owner": "a"})
	assert.Len(t, r.GetByLabel(selector), 3)

	require.NoError(t, r.ReleaseByLabel(selector))
	assert.Empty(t, r.GetByLabel(selector))
	assert.Equal(t, 3, r.Count())

	e, err := r.Get(iv(20, 29))
	require.NoError(t, err)
	assert.Equal(t, "b", e.Labels()["owner"])
}

func TestRelations(t *testing.T) {
	r, err := New("test", Config[int]{})
	require.NoError(t, err)
	for _, i := range []tree.Interval[int]{iv(0, 100), iv(10, 20), iv(15, 18), iv(30, 40), iv(90, 120)} {
		require.NoError(t, r.ClaimShared(i, labels.Set{"interval": i.String()}))
	}

	conflicts, err := r.Conflicts(iv(18, 30))
	require.NoError(t, err)
	if diff := cmp.Diff([]tree.Interval[int]{iv(0, 100), iv(10, 20), iv(15, 18), iv(30, 40)}, intervals(conflicts)); diff != "" {
		t.Errorf("Conflicts() -want, +got:\n%s", diff)
	}

	if diff := cmp.Diff([]tree.Interval[int]{iv(0, 100), iv(90, 120)}, intervals(r.Covering(95))); diff != "" {
		t.Errorf("Covering() -want, +got:\n%s", diff)
	}

	children, err := r.Children(iv(10, 40))
	require.NoError(t, err)
	if diff := cmp.Diff([]tree.Interval[int]{iv(10, 20), iv(15, 18), iv(30, 40)}, intervals(children)); diff != "" {
		t.Errorf("Children() -want, +got:\n%s", diff)
	}

	parents, err := r.Parents(iv(16, 17))
	require.NoError(t, err)
	if diff := cmp.Diff([]tree.Interval[int]{iv(0, 100), iv(10, 20), iv(15, 18)}, intervals(parents)); diff != "" {
		t.Errorf("Parents() -want, +got:\n%s", diff)
	}

	_, err = r.Parents(iv(17, 16))
	assert.ErrorIs(t, err, tree.ErrInvalidInterval)
}

func TestFindFree(t *testing.T) {
	cases := map[string]struct {
		claims   []tree.Interval[int]
		within   tree.Interval[int]
		expected []tree.Interval[int]
		err      error
	}{
		"Empty": {
			within:   iv(0, 999),
			expected: []tree.Interval[int]{iv(9, 990)},
		},
		"Claimed": {
			claims:   []tree.Interval[int]{iv(100, 199), iv(300, 399)},
			within:   iv(50, 350),
			expected: []tree.Interval[int]{iv(50, 100), iv(199, 300)},
		},
		"FullyClaimed": {
			claims: []tree.Interval[int]{iv(100, 199)},
			within: iv(120, 130),
		},
		"OutOfSpace": {
			within: iv(900, 1200),
			err:    ErrOutOfSpace,
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			r := newTestTable(t)
			for _, i := range tc.claims {
				require.NoError(t, r.Claim(i, nil))
			}
			got, err := r.FindFree(tc.within)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			if diff := cmp.Diff(tc.expected, got); diff != "" {
				t.Errorf("FindFree() -want, +got:\n%s", diff)
			}
		})
	}
}

func TestIsFree(t *testing.T) {
	r := newTestTable(t)
	assert.True(t, r.IsFree(iv(10, 989)))
	assert.False(t, r.IsFree(iv(9, 10)))
	assert.False(t, r.IsFree(iv(10, 1000)))
	assert.False(t, r.IsFree(iv(20, 10)))
}

func TestCloneAndIterate(t *testing.T) {
	r := newTestTable(t)
	require.NoError(t, r.Claim(iv(100, 199), labels.Set{"owner": "a"}))

	c := r.Clone()
	require.NoError(t, c.Claim(iv(200, 299), nil))
	assert.Equal(t, 3, r.Count())
	assert.Equal(t, 4, c.Count())
	s, ok := c.Space()
	assert.True(t, ok)
	assert.Equal(t, iv(0, 999), s)

	iter := r.Iterate()
	defer iter.Close()
	// the iterator works on a snapshot
	require.NoError(t, r.Release(iv(100, 199)))

	var got []tree.Interval[int]
	for iter.Next() {
		got = append(got, iter.Entry().Interval())
	}
	assert.Equal(t, []tree.Interval[int]{iv(0, 9), iv(100, 199), iv(990, 999)}, got)
	assert.Equal(t, []tree.Interval[int]{iv(0, 9), iv(990, 999)}, intervals(r.GetAll()))
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	r, err := New("vlan", Config[int]{
		Space:       space(0, 999),
		InitEntries: initEntries,
		Registerer:  reg,
	})
	require.NoError(t, err)

	require.NoError(t, r.Claim(iv(10, 19), nil))
	require.Error(t, r.Claim(iv(15, 25), nil))
	require.Error(t, r.Claim(iv(15, 1025), nil))
	require.NoError(t, r.Release(iv(10, 19)))

	m := r.(*table[int]).metrics
	assert.Equal(t, float64(3), testutil.ToFloat64(m.claims.WithLabelValues(claimResultOK)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.claims.WithLabelValues(claimResultConflict)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.claims.WithLabelValues(claimResultInvalid)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.releases))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.entries))

	n, err := testutil.GatherAndCount(reg, "intervaltree_table_entries")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// clones do not report
	c := r.Clone()
	require.NoError(t, c.Claim(iv(10, 19), nil))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.entries))
}

func TestFirstFree(t *testing.T) {
	cases := map[string]struct {
		claims   []tree.Interval[int]
		within   tree.Interval[int]
		expected int
		found    bool
	}{
		"Empty":          {within: iv(10, 20), expected: 10, found: true},
		"AfterClaim":     {claims: []tree.Interval[int]{iv(10, 12)}, within: iv(10, 20), expected: 13, found: true},
		"BetweenClaims":  {claims: []tree.Interval[int]{iv(10, 12), iv(14, 20)}, within: iv(10, 20), expected: 13, found: true},
		"AdjacentClaims": {claims: []tree.Interval[int]{iv(10, 12), iv(13, 20)}, within: iv(10, 20)},
		"BeforeClaim":    {claims: []tree.Interval[int]{iv(15, 20)}, within: iv(10, 20), expected: 10, found: true},
		"SinglePoint":    {within: iv(30, 30), expected: 30, found: true},
		"ClaimedPoint":   {claims: []tree.Interval[int]{iv(30, 30)}, within: iv(30, 30)},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			r, err := New("test", Config[int]{})
			require.NoError(t, err)
			for _, i := range tc.claims {
				require.NoError(t, r.Claim(i, nil))
			}
			got, found, err := FirstFree(r, tc.within)
			require.NoError(t, err)
			assert.Equal(t, tc.found, found)
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestNext(t *testing.T) {
	n, ok := Next[uint8](254)
	assert.True(t, ok)
	assert.Equal(t, uint8(255), n)

	_, ok = Next[uint8](math.MaxUint8)
	assert.False(t, ok)
	_, ok = Next[int64](math.MaxInt64)
	assert.False(t, ok)
}

func TestFirstFreeAtMax(t *testing.T) {
	r, err := New("test", Config[uint8]{})
	require.NoError(t, err)
	require.NoError(t, r.Claim(tree.NewInterval[uint8](250, 255), nil))

	_, found, err := FirstFree(r, tree.NewInterval[uint8](255, 255))
	require.NoError(t, err)
	assert.False(t, found)

	got, found, err := FirstFree(r, tree.NewInterval[uint8](240, 255))
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, uint8(240), got)
}

func TestClaimDynamic(t *testing.T) {
	r := newTestTable(t)

	got, err := ClaimFirstFree(r, iv(0, 999), labels.Set{"owner": "a"})
	require.NoError(t, err)
	assert.Equal(t, 10, got)
	e, err := r.Get(iv(10, 10))
	require.NoError(t, err)
	assert.Equal(t, "a", e.Labels()["owner"])

	require.NoError(t, r.Claim(iv(11, 989), nil))
	_, err = ClaimFirstFree(r, iv(0, 999), nil)
	assert.ErrorIs(t, err, ErrNoFree)

	_, err = ClaimFirstFree(r, iv(0, 1000), nil)
	assert.ErrorIs(t, err, ErrOutOfSpace)
}

func TestClaimDynamicConcurrent(t *testing.T) {
	r := newTestTable(t)

	const claimers = 50
	ids := make(chan int, claimers)
	var wg sync.WaitGroup
	for i := 0; i < claimers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := ClaimFirstFree(r, iv(0, 999), labels.Set{"owner": fmt.Sprint(i)})
			assert.NoError(t, err)
			ids <- id
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[int]bool{}
	for id := range ids {
		assert.False(t, seen[id], "id %d claimed twice", id)
		seen[id] = true
		assert.True(t, id >= 10 && id < 10+claimers)
	}
	assert.Len(t, seen, claimers)
	assert.Equal(t, len(initEntries)+claimers, r.Count())
}

func TestReleaseByLabelConcurrent(t *testing.T) {
	r := newTestTable(t)
	selector := labels.SelectorFromSet(labels.Set{"owner": "a"})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 100; i < 300; i++ {
			assert.NoError(t, r.Claim(iv(i, i), labels.Set{"owner": "a"}))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			assert.NoError(t, r.ReleaseByLabel(selector))
		}
	}()
	wg.Wait()

	// every entry matching when the release started is gone afterwards
	require.NoError(t, r.ReleaseByLabel(selector))
	assert.Empty(t, r.GetByLabel(selector))
	assert.Equal(t, len(initEntries), r.Count())
}
