package vlantable

import (
	"strconv"
	"strings"

	"github.com/go-logr/logr"
	"github.com/henderiw/intervaltree/pkg/itable"
	"github.com/henderiw/intervaltree/pkg/tree"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"k8s.io/apimachinery/pkg/labels"
)

const (
	untaggedVLAN = 0
	defaultVLAN  = 1
	reservedVLAN = 4095
	maxVLAN      = 4095
)

var (
	ErrReserved   = errors.New("reserved vlan")
	ErrInvalidID  = errors.New("invalid vlan id")
	ErrNoFreeVLAN = errors.New("no free vlan")
)

type VLANTable interface {
	Get(id uint16) (labels.Set, error)
	Claim(id uint16, d labels.Set) error
	ClaimDynamic(d labels.Set) (uint16, error)
	ClaimRange(rng string, d labels.Set) error
	Release(id uint16) error
	ReleaseRange(rng string) error
	Update(id uint16, d labels.Set) error

	Count() int
	Has(id uint16) bool

	IsFree(id uint16) bool
	FindFree() (uint16, error)

	GetAll() itable.Entries[uint16]
	GetByLabel(selector labels.Selector) itable.Entries[uint16]
}

type Config struct {
	Logger     logr.Logger
	Registerer prometheus.Registerer
}

var initEntries = itable.Entries[uint16]{
	itable.NewEntry(tree.Point[uint16](untaggedVLAN), labels.Set{"type": "untagged", "status": "reserved"}),
	itable.NewEntry(tree.Point[uint16](defaultVLAN), labels.Set{"type": "default", "status": "reserved"}),
	itable.NewEntry(tree.Point[uint16](reservedVLAN), labels.Set{"type": "reserved", "status": "reserved"}),
}

func New(cfg Config) (VLANTable, error) {
	space := tree.NewInterval[uint16](0, maxVLAN)
	t, err := itable.New("vlan", itable.Config[uint16]{
		Space:       &space,
		InitEntries: initEntries,
		Validation:  validate,
		Logger:      cfg.Logger,
		Registerer:  cfg.Registerer,
	})
	if err != nil {
		return nil, err
	}
	return &vlanTable{
		table: t,
		space: space,
	}, nil
}

func validate(i tree.Interval[uint16]) error {
	switch {
	case i.Low <= untaggedVLAN:
		return errors.Wrapf(ErrReserved, "VLAN %d is the untagged VLAN, cannot be claimed", untaggedVLAN)
	case i.Low <= defaultVLAN:
		return errors.Wrapf(ErrReserved, "VLAN %d is the default VLAN, cannot be claimed", defaultVLAN)
	case i.High >= reservedVLAN:
		return errors.Wrapf(ErrReserved, "VLAN %d is reserved, cannot be claimed", reservedVLAN)
	}
	return nil
}

type vlanTable struct {
	table itable.Table[uint16]
	space tree.Interval[uint16]
}

func (r *vlanTable) Get(id uint16) (labels.Set, error) {
	e, err := r.table.Get(tree.Point(id))
	if err != nil {
		return nil, err
	}
	return e.Labels(), nil
}

func (r *vlanTable) Claim(id uint16, d labels.Set) error {
	return r.table.Claim(tree.Point(id), d)
}

// ClaimRange claims the vlans of a "start-end" range as one entry.
func (r *vlanTable) ClaimRange(rng string, d labels.Set) error {
	i, err := parseRange(rng)
	if err != nil {
		return err
	}
	return r.table.Claim(i, d)
}

// ClaimDynamic claims the lowest free id.
func (r *vlanTable) ClaimDynamic(d labels.Set) (uint16, error) {
	id, err := itable.ClaimFirstFree(r.table, r.space, d)
	if err != nil {
		if errors.Is(err, itable.ErrNoFree) {
			return 0, errors.Wrap(ErrNoFreeVLAN, err.Error())
		}
		return 0, err
	}
	return id, nil
}

func (r *vlanTable) Release(id uint16) error {
	return r.table.Release(tree.Point(id))
}

func (r *vlanTable) ReleaseRange(rng string) error {
	i, err := parseRange(rng)
	if err != nil {
		return err
	}
	return r.table.Release(i)
}

func (r *vlanTable) Update(id uint16, d labels.Set) error {
	return r.table.Update(tree.Point(id), d)
}

func (r *vlanTable) Count() int {
	return r.table.Count()
}

// Has returns whether id is claimed, on its own or as part of a range.
func (r *vlanTable) Has(id uint16) bool {
	return len(r.table.Covering(id)) > 0
}

func (r *vlanTable) IsFree(id uint16) bool {
	return r.table.IsFree(tree.Point(id))
}

func (r *vlanTable) FindFree() (uint16, error) {
	id, ok, err := itable.FirstFree(r.table, r.space)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, ErrNoFreeVLAN
	}
	return id, nil
}

func (r *vlanTable) GetAll() itable.Entries[uint16] {
	return r.table.GetAll()
}

func (r *vlanTable) GetByLabel(selector labels.Selector) itable.Entries[uint16] {
	return r.table.GetByLabel(selector)
}

func parseRange(rng string) (tree.Interval[uint16], error) {
	start, end, ok := strings.Cut(rng, "-")
	if !ok {
		end = start
	}
	low, err := parseID(start)
	if err != nil {
		return tree.Interval[uint16]{}, err
	}
	high, err := parseID(end)
	if err != nil {
		return tree.Interval[uint16]{}, err
	}
	return tree.NewInterval(low, high), nil
}

func parseID(s string) (uint16, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(s), 10, 16)
	if err != nil || id > maxVLAN {
		return 0, errors.Wrapf(ErrInvalidID, "%q", s)
	}
	return uint16(id), nil
}
