package domain

import (
	"fmt"
	"strings"
)

// DevCardKind is a development card type in the shared per-game pool.
type DevCardKind int

const (
	Knight DevCardKind = iota
	VictoryPoint
	YearOfPlenty
	Monopoly
	RoadBuilding

	NumDevCardKinds = 5
)

var devCardNames = [NumDevCardKinds]string{"knight", "victory_point", "year_of_plenty", "monopoly", "road_building"}

func (k DevCardKind) Valid() bool { return k >= 0 && int(k) < NumDevCardKinds }

func (k DevCardKind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("devcard(%d)", int(k))
	}
	return devCardNames[k]
}

// ParseDevCardKind accepts snake_case or CamelCase names ("road_building", "RoadBuilding").
func ParseDevCardKind(s string) (DevCardKind, error) {
	name := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "_", ""))
	for i, n := range devCardNames {
		if strings.ReplaceAll(n, "_", "") == name {
			return DevCardKind(i), nil
		}
	}
	return 0, fmt.Errorf("%w: dev card %q", ErrUnknownKind, s)
}

func (k DevCardKind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("%w: dev card %d", ErrUnknownKind, int(k))
	}
	return []byte(devCardNames[k]), nil
}

func (k *DevCardKind) UnmarshalText(b []byte) error {
	parsed, err := ParseDevCardKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// MustDevCard panics with ErrUnknownKind when k is out of range.
func MustDevCard(k DevCardKind) DevCardKind {
	if !k.Valid() {
		panic(fmt.Errorf("%w: dev card %d", ErrUnknownKind, int(k)))
	}
	return k
}

// DevCard is one held development card.
type DevCard struct {
	Kind   DevCardKind `json:"kind"`
	Played bool        `json:"played"`
}
