package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ResourceKind indexes the six resource counters of a ledger.
type ResourceKind int

const (
	Wood ResourceKind = iota
	Brick
	Sheep
	Wheat
	Ore
	// Gold is a wildcard that can only be converted into another resource.
	Gold

	NumResourceKinds = 6
)

var resourceNames = [NumResourceKinds]string{"wood", "brick", "sheep", "wheat", "ore", "gold"}

// AllResourceKinds lists every kind in counter order.
var AllResourceKinds = [NumResourceKinds]ResourceKind{Wood, Brick, Sheep, Wheat, Ore, Gold}

// Valid reports whether k is a known kind.
func (k ResourceKind) Valid() bool { return k >= 0 && int(k) < NumResourceKinds }

// Tradable reports whether k can be received in a trade.
func (k ResourceKind) Tradable() bool { return k.Valid() && k != Gold }

func (k ResourceKind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("resource(%d)", int(k))
	}
	return resourceNames[k]
}

// ParseResourceKind maps a case-insensitive name onto a ResourceKind.
func ParseResourceKind(s string) (ResourceKind, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range resourceNames {
		if n == name {
			return ResourceKind(i), nil
		}
	}
	return 0, fmt.Errorf("%w: resource %q", ErrUnknownKind, s)
}

func (k ResourceKind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("%w: resource %d", ErrUnknownKind, int(k))
	}
	return []byte(resourceNames[k]), nil
}

func (k *ResourceKind) UnmarshalText(b []byte) error {
	parsed, err := ParseResourceKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// MustResource panics with ErrUnknownKind when k is out of range.
func MustResource(k ResourceKind) ResourceKind {
	if !k.Valid() {
		panic(fmt.Errorf("%w: resource %d", ErrUnknownKind, int(k)))
	}
	return k
}

// Resources is a per-kind vector of counts or deltas.
// It encodes to JSON as {"wood":1,...}, omitting zero entries.
type Resources [NumResourceKinds]int

// Of builds a single-kind vector.
func Of(k ResourceKind, n int) Resources {
	var r Resources
	r[MustResource(k)] = n
	return r
}

// Add returns the element-wise sum.
func (r Resources) Add(o Resources) Resources {
	for i := range r {
		r[i] += o[i]
	}
	return r
}

// Sub returns the element-wise difference.
func (r Resources) Sub(o Resources) Resources {
	for i := range r {
		r[i] -= o[i]
	}
	return r
}

// Negate flips every sign.
func (r Resources) Negate() Resources {
	for i := range r {
		r[i] = -r[i]
	}
	return r
}

// Covers reports whether every count in r is at least the matching count in cost.
func (r Resources) Covers(cost Resources) bool {
	for i := range r {
		if r[i] < cost[i] {
			return false
		}
	}
	return true
}

// NonNegative reports whether no entry is below zero.
func (r Resources) NonNegative() bool {
	for _, n := range r {
		if n < 0 {
			return false
		}
	}
	return true
}

// IsZero reports whether every entry is zero.
func (r Resources) IsZero() bool {
	return r == Resources{}
}

// Total sums every entry.
func (r Resources) Total() int {
	total := 0
	for _, n := range r {
		total += n
	}
	return total
}

func (r Resources) MarshalJSON() ([]byte, error) {
	m := make(map[string]int, NumResourceKinds)
	for i, n := range r {
		if n != 0 {
			m[resourceNames[i]] = n
		}
	}
	return json.Marshal(m)
}

func (r *Resources) UnmarshalJSON(b []byte) error {
	var m map[string]int
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	var out Resources
	for name, n := range m {
		k, err := ParseResourceKind(name)
		if err != nil {
			return err
		}
		out[k] = n
	}
	*r = out
	return nil
}
