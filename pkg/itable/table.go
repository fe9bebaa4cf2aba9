// Package itable provides a labeled interval allocation table. Claims are
// checked for conflicts against the stored intervals, and the table is safe
// for concurrent use.
package itable

import (
	"cmp"
	"sync"

	"github.com/go-logr/logr"
	"github.com/henderiw/intervaltree/pkg/tree"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"k8s.io/apimachinery/pkg/labels"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
)

var (
	ErrConflict   = errors.New("interval conflicts with a claimed interval")
	ErrNotFound   = errors.New("interval not found")
	ErrOutOfSpace = errors.New("interval outside of the table space")
	ErrNoFree     = errors.New("no free value")
)

type Table[B any] interface {
	Clone() Table[B]
	Get(i tree.Interval[B]) (Entry[B], error)
	Claim(i tree.Interval[B], labels labels.Set) error
	ClaimShared(i tree.Interval[B], labels labels.Set) error
	Update(i tree.Interval[B], labels labels.Set) error
	Release(i tree.Interval[B]) error
	ReleaseByLabel(selector labels.Selector) error

	Conflicts(i tree.Interval[B]) (Entries[B], error)
	Covering(p B) Entries[B]
	Children(i tree.Interval[B]) (Entries[B], error)
	Parents(i tree.Interval[B]) (Entries[B], error)
	GetByLabel(selector labels.Selector) Entries[B]
	GetAll() Entries[B]

	IsFree(i tree.Interval[B]) bool
	FindFree(within tree.Interval[B]) ([]tree.Interval[B], error)
	FindFirstFree(within tree.Interval[B], next NextFn[B]) (B, bool, error)
	ClaimDynamic(within tree.Interval[B], labels labels.Set, next NextFn[B]) (B, error)

	Count() int
	Space() (tree.Interval[B], bool)
	Iterate() *Iterator[B]
}

// ValidationFn is called on every claim, init entries excepted.
type ValidationFn[B any] func(i tree.Interval[B]) error

// NextFn returns the value following b, false when b is the last value.
type NextFn[B any] func(b B) (B, bool)

type Config[B any] struct {
	// Space limits the intervals the table accepts, nil for no limit.
	Space *tree.Interval[B]
	// InitEntries are claimed when the table is created, they bypass
	// the validation function.
	InitEntries Entries[B]
	Validation  ValidationFn[B]
	Logger      logr.Logger
	// Registerer receives the table metrics, nil to not register them.
	Registerer prometheus.Registerer
}

func New[B cmp.Ordered](name string, cfg Config[B]) (Table[B], error) {
	return NewFunc(name, cmp.Compare[B], cfg)
}

func NewFunc[B any](name string, compare tree.CompareFn[B], cfg Config[B]) (Table[B], error) {
	log := cfg.Logger
	if log.GetSink() == nil {
		log = logr.Discard()
	}
	r := &table[B]{
		m:          new(sync.RWMutex),
		name:       name,
		compare:    compare,
		tree:       tree.NewTreeFunc[B, labels.Set](compare),
		space:      cfg.Space,
		validateFn: cfg.Validation,
		log:        log.WithValues("table", name),
		metrics:    newMetrics(name, cfg.Registerer),
	}
	if r.space != nil && !r.space.IsValid(compare) {
		return nil, errors.Wrapf(tree.ErrInvalidInterval, "table %s space %s", name, r.space)
	}

	var errs []error
	for _, e := range cfg.InitEntries {
		if err := r.claim(e.Interval(), e.Labels(), true, false); err != nil {
			errs = append(errs, err)
		}
	}
	return r, utilerrors.NewAggregate(errs)
}

type table[B any] struct {
	m          *sync.RWMutex
	name       string
	compare    tree.CompareFn[B]
	tree       *tree.Tree[B, labels.Set]
	space      *tree.Interval[B]
	validateFn ValidationFn[B]
	log        logr.Logger
	metrics    *metrics
}

// Clone returns a snapshot of the table. The snapshot shares the stored
// intervals until either side changes and does not report metrics.
func (r *table[B]) Clone() Table[B] {
	r.m.RLock()
	defer r.m.RUnlock()

	return &table[B]{
		m:          new(sync.RWMutex),
		name:       r.name,
		compare:    r.compare,
		tree:       r.tree.Clone(),
		space:      r.space,
		validateFn: r.validateFn,
		log:        r.log,
	}
}

func (r *table[B]) validate(i tree.Interval[B], init bool) error {
	if !i.IsValid(r.compare) {
		return errors.Wrapf(tree.ErrInvalidInterval, "lower bound %v is after upper bound %v", i.Low, i.High)
	}
	if r.space != nil && !i.CoveredBy(*r.space, r.compare) {
		return errors.Wrapf(ErrOutOfSpace, "interval %s, table %s space %s", i, r.name, r.space)
	}
	if r.validateFn != nil && !init {
		if err := r.validateFn(i); err != nil {
			return err
		}
	}
	return nil
}

func (r *table[B]) Get(i tree.Interval[B]) (Entry[B], error) {
	r.m.RLock()
	defer r.m.RUnlock()

	l, ok, err := r.tree.Get(i)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "interval %s", i)
	}
	return NewEntry(i, l), nil
}

func (r *table[B]) Claim(i tree.Interval[B], labels labels.Set) error {
	r.m.Lock()
	defer r.m.Unlock()

	return r.claim(i, labels, false, false)
}

func (r *table[B]) ClaimShared(i tree.Interval[B], labels labels.Set) error {
	r.m.Lock()
	defer r.m.Unlock()

	return r.claim(i, labels, false, true)
}

func (r *table[B]) claim(i tree.Interval[B], labels labels.Set, init, shared bool) error {
	if err := r.validate(i, init); err != nil {
		r.metrics.claimed(claimResultInvalid)
		return err
	}
	if !shared {
		conflicts, err := r.tree.Overlapping(i)
		if err != nil {
			return err
		}
		if len(conflicts) > 0 {
			r.metrics.claimed(claimResultConflict)
			r.log.V(1).Info("claim conflict", "interval", i.String(), "conflicts", len(conflicts), "first", conflicts[0].Interval.String())
			return errors.Wrapf(ErrConflict, "interval %s overlaps %s", i, conflicts[0].Interval)
		}
	}
	if err := r.tree.Insert(i, labels); err != nil {
		return err
	}
	r.metrics.claimed(claimResultOK)
	r.metrics.setEntries(r.tree.Len())
	r.log.V(1).Info("claimed", "interval", i.String(), "labels", labels.String())
	return nil
}

func (r *table[B]) Update(i tree.Interval[B], labels labels.Set) error {
	r.m.Lock()
	defer r.m.Unlock()

	_, ok, err := r.tree.Replace(i, labels)
	if err != nil {
		return err
	}
	if !ok {
		return errors.Wrapf(ErrNotFound, "update interval %s", i)
	}
	return nil
}

// Release removes every entry stored with exactly the interval i.
func (r *table[B]) Release(i tree.Interval[B]) error {
	r.m.Lock()
	defer r.m.Unlock()

	n := 0
	for {
		_, ok, err := r.tree.Remove(i)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		n++
	}
	if n == 0 {
		return errors.Wrapf(ErrNotFound, "release interval %s", i)
	}
	r.released(n)
	r.log.V(1).Info("released", "interval", i.String(), "entries", n)
	return nil
}

func (r *table[B]) ReleaseByLabel(selector labels.Selector) error {
	r.m.Lock()
	defer r.m.Unlock()

	var matches []tree.Interval[B]
	for i, l := range r.tree.All() {
		if selector.Matches(l) {
			matches = append(matches, i)
		}
	}

	n := 0
	for _, i := range matches {
		_, ok, err := r.tree.RemoveFunc(i, func(l labels.Set) bool {
			return selector.Matches(l)
		})
		if err != nil {
			return err
		}
		if ok {
			n++
		}
	}
	r.released(n)
	r.log.V(1).Info("released by label", "selector", selector.String(), "entries", n)
	return nil
}

func (r *table[B]) released(n int) {
	r.metrics.released(n)
	r.metrics.setEntries(r.tree.Len())
}

// Conflicts returns the entries overlapping i.
func (r *table[B]) Conflicts(i tree.Interval[B]) (Entries[B], error) {
	r.m.RLock()
	defer r.m.RUnlock()

	entries, err := r.tree.Overlapping(i)
	if err != nil {
		return nil, err
	}
	return fromTree(entries), nil
}

// Covering returns the entries holding the point p.
func (r *table[B]) Covering(p B) Entries[B] {
	r.m.RLock()
	defer r.m.RUnlock()

	return fromTree(r.tree.Containing(p))
}

// Children returns the entries lying within i.
func (r *table[B]) Children(i tree.Interval[B]) (Entries[B], error) {
	r.m.RLock()
	defer r.m.RUnlock()

	entries, err := r.tree.Contained(i)
	if err != nil {
		return nil, err
	}
	return fromTree(entries), nil
}

// Parents returns the entries holding all of i.
func (r *table[B]) Parents(i tree.Interval[B]) (Entries[B], error) {
	r.m.RLock()
	defer r.m.RUnlock()

	entries, err := r.tree.Enclosing(i)
	if err != nil {
		return nil, err
	}
	return fromTree(entries), nil
}

func (r *table[B]) GetByLabel(selector labels.Selector) Entries[B] {
	r.m.RLock()
	defer r.m.RUnlock()

	entries := Entries[B]{}
	for i, l := range r.tree.All() {
		if selector.Matches(l) {
			entries = append(entries, NewEntry(i, l))
		}
	}
	return entries
}

func (r *table[B]) GetAll() Entries[B] {
	r.m.RLock()
	defer r.m.RUnlock()

	return fromTree(r.tree.Sorted())
}

// IsFree returns whether i can be claimed without conflict.
func (r *table[B]) IsFree(i tree.Interval[B]) bool {
	r.m.RLock()
	defer r.m.RUnlock()

	if err := r.validate(i, true); err != nil {
		return false
	}
	found, err := r.tree.HasOverlap(i)
	return err == nil && !found
}

// FindFree returns the unclaimed parts of within.
func (r *table[B]) FindFree(within tree.Interval[B]) ([]tree.Interval[B], error) {
	r.m.RLock()
	defer r.m.RUnlock()

	if err := r.validate(within, true); err != nil {
		return nil, err
	}
	return r.tree.Gaps(within)
}

// FindFirstFree returns the lowest unclaimed value of within.
func (r *table[B]) FindFirstFree(within tree.Interval[B], next NextFn[B]) (B, bool, error) {
	r.m.RLock()
	defer r.m.RUnlock()

	return r.firstFree(within, next)
}

// ClaimDynamic claims the lowest unclaimed value of within as a point and
// returns it.
func (r *table[B]) ClaimDynamic(within tree.Interval[B], labels labels.Set, next NextFn[B]) (B, error) {
	r.m.Lock()
	defer r.m.Unlock()

	v, ok, err := r.firstFree(within, next)
	if err != nil {
		return v, err
	}
	if !ok {
		return v, errors.Wrapf(ErrNoFree, "table %s within %s", r.name, within)
	}
	if err := r.claim(tree.Point(v), labels, false, false); err != nil {
		return v, err
	}
	return v, nil
}

func (r *table[B]) firstFree(within tree.Interval[B], next NextFn[B]) (B, bool, error) {
	var zero B
	if err := r.validate(within, true); err != nil {
		return zero, false, err
	}
	gaps, err := r.tree.Gaps(within)
	if err != nil {
		return zero, false, err
	}
	for _, gap := range gaps {
		// gaps end on the claimed neighbours
		v := gap.Low
		if !r.pointFree(v) {
			n, ok := next(v)
			if !ok || r.compare(n, gap.High) > 0 {
				continue
			}
			v = n
		}
		if r.pointFree(v) {
			return v, true, nil
		}
	}
	return zero, false, nil
}

func (r *table[B]) pointFree(v B) bool {
	found, err := r.tree.HasOverlap(tree.Point(v))
	return err == nil && !found
}

func (r *table[B]) Count() int {
	r.m.RLock()
	defer r.m.RUnlock()

	return r.tree.Len()
}

// Space returns the range the table accepts, false when it is unbounded.
func (r *table[B]) Space() (tree.Interval[B], bool) {
	if r.space == nil {
		return tree.Interval[B]{}, false
	}
	return *r.space, true
}

// Iterate returns an iterator over a snapshot of the table, the table can
// be changed while iterating.
func (r *table[B]) Iterate() *Iterator[B] {
	r.m.RLock()
	defer r.m.RUnlock()

	snapshot := r.tree.Clone()
	return &Iterator[B]{
		snapshot: snapshot,
		iter:     snapshot.Iterate(),
	}
}
