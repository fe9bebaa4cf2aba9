package vxlantable

import (
	"github.com/go-logr/logr"
	"github.com/henderiw/intervaltree/pkg/itable"
	"github.com/henderiw/intervaltree/pkg/tree"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"k8s.io/apimachinery/pkg/labels"
)

// MaxVNI is the largest 24 bit VXLAN network identifier.
const MaxVNI = 1<<24 - 1

var ErrNoFreeVNI = errors.New("no free vni")

type VXLANTable interface {
	Get(id uint32) (labels.Set, error)
	Claim(id uint32, d labels.Set) error
	ClaimDynamic(d labels.Set) (uint32, error)
	ClaimRange(from, to uint32, d labels.Set) error
	Release(id uint32) error
	Update(id uint32, d labels.Set) error

	Count() int
	Has(id uint32) bool

	IsFree(id uint32) bool
	FindFree() (uint32, error)

	GetAll() itable.Entries[uint32]
	GetByLabel(selector labels.Selector) itable.Entries[uint32]
}

type Config struct {
	Logger     logr.Logger
	Registerer prometheus.Registerer
}

// New returns a table for the VNIs from offset to max.
func New(offset, max uint32, cfg Config) (VXLANTable, error) {
	if max > MaxVNI {
		return nil, errors.Wrapf(tree.ErrInvalidInterval, "vni %d is larger than %d", max, MaxVNI)
	}
	space := tree.NewInterval(offset, max)
	t, err := itable.New("vxlan", itable.Config[uint32]{
		Space:      &space,
		Logger:     cfg.Logger,
		Registerer: cfg.Registerer,
	})
	if err != nil {
		return nil, err
	}
	return &vxlanTable{
		table: t,
		space: space,
	}, nil
}

type vxlanTable struct {
	table itable.Table[uint32]
	space tree.Interval[uint32]
}

func (r *vxlanTable) Get(id uint32) (labels.Set, error) {
	e, err := r.table.Get(tree.Point(id))
	if err != nil {
		return nil, err
	}
	return e.Labels(), nil
}

func (r *vxlanTable) Claim(id uint32, d labels.Set) error {
	return r.table.Claim(tree.Point(id), d)
}

func (r *vxlanTable) ClaimRange(from, to uint32, d labels.Set) error {
	return r.table.Claim(tree.NewInterval(from, to), d)
}

// ClaimDynamic claims the lowest free id.
func (r *vxlanTable) ClaimDynamic(d labels.Set) (uint32, error) {
	id, err := itable.ClaimFirstFree(r.table, r.space, d)
	if err != nil {
		if errors.Is(err, itable.ErrNoFree) {
			return 0, errors.Wrap(ErrNoFreeVNI, err.Error())
		}
		return 0, err
	}
	return id, nil
}

func (r *vxlanTable) Release(id uint32) error {
	return r.table.Release(tree.Point(id))
}

func (r *vxlanTable) Update(id uint32, d labels.Set) error {
	return r.table.Update(tree.Point(id), d)
}

func (r *vxlanTable) Count() int {
	return r.table.Count()
}

func (r *vxlanTable) Has(id uint32) bool {
	return len(r.table.Covering(id)) > 0
}

func (r *vxlanTable) IsFree(id uint32) bool {
	return r.table.IsFree(tree.Point(id))
}

func (r *vxlanTable) FindFree() (uint32, error) {
	id, ok, err := itable.FirstFree(r.table, r.space)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, errors.Wrapf(ErrNoFreeVNI, "range %s", r.space)
	}
	return id, nil
}

func (r *vxlanTable) GetAll() itable.Entries[uint32] {
	return r.table.GetAll()
}

func (r *vxlanTable) GetByLabel(selector labels.Selector) itable.Entries[uint32] {
	return r.table.GetByLabel(selector)
}
