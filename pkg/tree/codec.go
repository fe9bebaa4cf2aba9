package tree

import (
	"cmp"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// record is the serialized form of one entry. A tree is serialized as its
// records in (Low, High) order; the shape of the tree is not encoded.
type record[B, V any] struct {
	Low   B `json:"low" yaml:"low"`
	High  B `json:"high" yaml:"high"`
	Value V `json:"value" yaml:"value"`
}

func (r *Tree[B, V]) records() []record[B, V] {
	ret := make([]record[B, V], 0, r.Len())
	for i, v := range r.All() {
		ret = append(ret, record[B, V]{Low: i.Low, High: i.High, Value: v})
	}
	return ret
}

// load replaces the content of r with the records. Nothing changes when a
// record is invalid.
func (r *Tree[B, V]) load(records []record[B, V]) error {
	if r.compare == nil {
		return ErrNoCompare
	}
	entries := make([]Entry[B, V], 0, len(records))
	for _, rec := range records {
		entries = append(entries, Entry[B, V]{
			Interval: Interval[B]{Low: rec.Low, High: rec.High},
			Value:    rec.Value,
		})
	}
	t, err := FromEntries(r.compare, entries)
	if err != nil {
		return err
	}
	if r.a != nil {
		r.a.refs.Add(-1)
	}
	r.a = t.a
	return nil
}

func (r *Tree[B, V]) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.records())
}

// UnmarshalJSON replaces the content of the tree. The tree must have been
// created with one of the constructors so it knows its bound order.
func (r *Tree[B, V]) UnmarshalJSON(data []byte) error {
	var records []record[B, V]
	if err := json.Unmarshal(data, &records); err != nil {
		return errors.Wrap(err, "cannot decode interval records")
	}
	return r.load(records)
}

func (r *Tree[B, V]) MarshalYAML() (interface{}, error) {
	return r.records(), nil
}

// UnmarshalYAML replaces the content of the tree, see UnmarshalJSON.
func (r *Tree[B, V]) UnmarshalYAML(value *yaml.Node) error {
	var records []record[B, V]
	if err := value.Decode(&records); err != nil {
		return errors.Wrap(err, "cannot decode interval records")
	}
	return r.load(records)
}

// DecodeJSON returns the tree serialized in data.
func DecodeJSON[B cmp.Ordered, V any](data []byte) (*Tree[B, V], error) {
	r := NewTree[B, V]()
	if err := r.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return r, nil
}

// DecodeYAML returns the tree serialized in data.
func DecodeYAML[B cmp.Ordered, V any](data []byte) (*Tree[B, V], error) {
	r := NewTree[B, V]()
	if err := yaml.Unmarshal(data, r); err != nil {
		return nil, err
	}
	return r, nil
}
