package iptable

import (
	"net/netip"
	"strings"

	"github.com/go-logr/logr"
	"github.com/henderiw/intervaltree/pkg/itable"
	"github.com/henderiw/intervaltree/pkg/tree"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go4.org/netipx"
	"k8s.io/apimachinery/pkg/labels"
)

var (
	ErrInvalidAddress = errors.New("invalid ip address")
	ErrNoFreeAddress  = errors.New("no free ip address")
)

type IPTable interface {
	Get(addr string) (itable.Entry[netip.Addr], error)
	Claim(addr string, labels labels.Set) error
	Release(addr string) error
	Update(addr string, labels labels.Set) error

	Lookup(addr string) (itable.Entries[netip.Addr], error)
	Count() int
	Has(addr string) bool

	IsFree(addr string) bool
	FindFree() (netip.Addr, error)
	FreeRanges() []netipx.IPRange

	GetAll() itable.Entries[netip.Addr]
	GetByLabel(selector labels.Selector) itable.Entries[netip.Addr]
}

type Config struct {
	Logger     logr.Logger
	Registerer prometheus.Registerer
}

func compareAddr(a, b netip.Addr) int { return a.Compare(b) }

func New(from, to netip.Addr, cfg Config) (IPTable, error) {
	ipRange := netipx.IPRangeFrom(from, to)
	if !ipRange.IsValid() {
		return nil, errors.Wrapf(ErrInvalidAddress, "range from %s to %s", from, to)
	}
	space := tree.NewInterval(from, to)
	t, err := itable.NewFunc("ip "+ipRange.String(), compareAddr, itable.Config[netip.Addr]{
		Space:      &space,
		Logger:     cfg.Logger,
		Registerer: cfg.Registerer,
	})
	if err != nil {
		return nil, err
	}
	return &ipTable{
		table:   t,
		ipRange: ipRange,
	}, nil
}

type ipTable struct {
	table   itable.Table[netip.Addr]
	ipRange netipx.IPRange
}

func (r *ipTable) Get(addr string) (itable.Entry[netip.Addr], error) {
	i, err := r.parse(addr)
	if err != nil {
		return nil, err
	}
	return r.table.Get(i)
}

func (r *ipTable) Claim(addr string, labels labels.Set) error {
	i, err := r.parse(addr)
	if err != nil {
		return err
	}
	return r.table.Claim(i, labels)
}

func (r *ipTable) Release(addr string) error {
	i, err := r.parse(addr)
	if err != nil {
		return err
	}
	return r.table.Release(i)
}

func (r *ipTable) Update(addr string, labels labels.Set) error {
	i, err := r.parse(addr)
	if err != nil {
		return err
	}
	return r.table.Update(i, labels)
}

// Lookup returns the claims holding every address of addr.
func (r *ipTable) Lookup(addr string) (itable.Entries[netip.Addr], error) {
	i, err := r.parse(addr)
	if err != nil {
		return nil, err
	}
	return r.table.Parents(i)
}

func (r *ipTable) Count() int {
	return r.table.Count()
}

// Has returns whether any claim overlaps addr.
func (r *ipTable) Has(addr string) bool {
	i, err := r.parse(addr)
	if err != nil {
		return false
	}
	entries, err := r.table.Conflicts(i)
	return err == nil && len(entries) > 0
}

func (r *ipTable) IsFree(addr string) bool {
	i, err := r.parse(addr)
	if err != nil {
		return false
	}
	return r.table.IsFree(i)
}

func (r *ipTable) FindFree() (netip.Addr, error) {
	addr, ok, err := r.table.FindFirstFree(tree.NewInterval(r.ipRange.From(), r.ipRange.To()), nextAddr)
	if err != nil {
		return netip.Addr{}, err
	}
	if !ok {
		return netip.Addr{}, errors.Wrapf(ErrNoFreeAddress, "range %s", r.ipRange)
	}
	return addr, nil
}

func nextAddr(a netip.Addr) (netip.Addr, bool) {
	n := a.Next()
	return n, n.IsValid()
}

// FreeRanges returns the unclaimed addresses of the table range, read from
// one snapshot of the table.
func (r *ipTable) FreeRanges() []netipx.IPRange {
	snapshot := r.table.Clone()
	gaps, err := snapshot.FindFree(tree.NewInterval(r.ipRange.From(), r.ipRange.To()))
	if err != nil {
		return nil
	}
	var ranges []netipx.IPRange
	for _, gap := range gaps {
		// gaps end on the claimed neighbours, step over them
		from, to := gap.Low, gap.High
		if !snapshot.IsFree(tree.Point(from)) {
			from = from.Next()
		}
		if !snapshot.IsFree(tree.Point(to)) {
			to = to.Prev()
		}
		if !from.IsValid() || !to.IsValid() || from.Compare(to) > 0 {
			continue
		}
		ranges = append(ranges, netipx.IPRangeFrom(from, to))
	}
	return ranges
}

func (r *ipTable) GetAll() itable.Entries[netip.Addr] {
	return r.table.GetAll()
}

func (r *ipTable) GetByLabel(selector labels.Selector) itable.Entries[netip.Addr] {
	return r.table.GetByLabel(selector)
}

// parse accepts an address, a prefix or a from-to range.
func (r *ipTable) parse(addr string) (tree.Interval[netip.Addr], error) {
	var ipRange netipx.IPRange
	switch {
	case strings.Contains(addr, "-"):
		rng, err := netipx.ParseIPRange(addr)
		if err != nil {
			return tree.Interval[netip.Addr]{}, errors.Wrapf(ErrInvalidAddress, "range %s: %v", addr, err)
		}
		ipRange = rng
	case strings.Contains(addr, "/"):
		pfx, err := netip.ParsePrefix(addr)
		if err != nil {
			return tree.Interval[netip.Addr]{}, errors.Wrapf(ErrInvalidAddress, "prefix %s: %v", addr, err)
		}
		ipRange = netipx.RangeOfPrefix(pfx)
	default:
		ip, err := netip.ParseAddr(addr)
		if err != nil {
			return tree.Interval[netip.Addr]{}, errors.Wrapf(ErrInvalidAddress, "address %s: %v", addr, err)
		}
		ipRange = netipx.IPRangeFrom(ip, ip)
	}
	if ipRange.From().BitLen() != r.ipRange.From().BitLen() {
		return tree.Interval[netip.Addr]{}, errors.Wrapf(ErrInvalidAddress, "%s does not match the family of %s", addr, r.ipRange)
	}
	return tree.NewInterval(ipRange.From(), ipRange.To()), nil
}
