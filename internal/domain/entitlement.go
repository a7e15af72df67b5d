package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// EntitlementKind is a purchasable board piece with a per-player maximum.
type EntitlementKind int

const (
	Settlement EntitlementKind = iota
	City
	Road

	NumEntitlementKinds = 3
)

var entitlementNames = [NumEntitlementKinds]string{"settlement", "city", "road"}

// AllEntitlementKinds lists every kind in counter order.
var AllEntitlementKinds = [NumEntitlementKinds]EntitlementKind{Settlement, City, Road}

func (k EntitlementKind) Valid() bool { return k >= 0 && int(k) < NumEntitlementKinds }

func (k EntitlementKind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("entitlement(%d)", int(k))
	}
	return entitlementNames[k]
}

// ParseEntitlementKind maps a case-insensitive name onto an EntitlementKind.
func ParseEntitlementKind(s string) (EntitlementKind, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range entitlementNames {
		if n == name {
			return EntitlementKind(i), nil
		}
	}
	return 0, fmt.Errorf("%w: entitlement %q", ErrUnknownKind, s)
}

func (k EntitlementKind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("%w: entitlement %d", ErrUnknownKind, int(k))
	}
	return []byte(entitlementNames[k]), nil
}

func (k *EntitlementKind) UnmarshalText(b []byte) error {
	parsed, err := ParseEntitlementKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// MustEntitlement panics with ErrUnknownKind when k is out of range.
func MustEntitlement(k EntitlementKind) EntitlementKind {
	if !k.Valid() {
		panic(fmt.Errorf("%w: entitlement %d", ErrUnknownKind, int(k)))
	}
	return k
}

// Entitlements is a per-kind vector of entitlement counts.
type Entitlements [NumEntitlementKinds]int

func (e Entitlements) MarshalJSON() ([]byte, error) {
	m := make(map[string]int, NumEntitlementKinds)
	for i, n := range e {
		m[entitlementNames[i]] = n
	}
	return json.Marshal(m)
}

func (e *Entitlements) UnmarshalJSON(b []byte) error {
	var m map[string]int
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	var out Entitlements
	for name, n := range m {
		k, err := ParseEntitlementKind(name)
		if err != nil {
			return err
		}
		out[k] = n
	}
	*e = out
	return nil
}
