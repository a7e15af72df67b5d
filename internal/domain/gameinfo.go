package domain

import (
	"encoding/json"
	"fmt"
)

// DevCardCounts sizes the shared dev card pool per kind.
type DevCardCounts [NumDevCardKinds]int

// Total returns the pool size.
func (c DevCardCounts) Total() int {
	total := 0
	for _, n := range c {
		total += n
	}
	return total
}

func (c DevCardCounts) MarshalJSON() ([]byte, error) {
	m := make(map[string]int, NumDevCardKinds)
	for i, n := range c {
		m[devCardNames[i]] = n
	}
	return json.Marshal(m)
}

func (c *DevCardCounts) UnmarshalJSON(b []byte) error {
	var m map[string]int
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	var out DevCardCounts
	for name, n := range m {
		k, err := ParseDevCardKind(name)
		if err != nil {
			return err
		}
		out[k] = n
	}
	*c = out
	return nil
}

// CostTable maps each entitlement kind to its resource price.
type CostTable [NumEntitlementKinds]Resources

func (t CostTable) MarshalJSON() ([]byte, error) {
	m := make(map[string]Resources, NumEntitlementKinds)
	for i, cost := range t {
		m[entitlementNames[i]] = cost
	}
	return json.Marshal(m)
}

func (t *CostTable) UnmarshalJSON(b []byte) error {
	var m map[string]Resources
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	out := *t
	for name, cost := range m {
		k, err := ParseEntitlementKind(name)
		if err != nil {
			return err
		}
		out[k] = cost
	}
	*t = out
	return nil
}

// GameInfo is the configuration snapshot a Game is seeded with.
type GameInfo struct {
	MaxEntitlements Entitlements  `json:"max_entitlements"`
	DevCards        DevCardCounts `json:"dev_cards"`
	Costs           CostTable     `json:"costs"`
	DevCardCost     Resources     `json:"dev_card_cost"`
	MaritimeRatio   int           `json:"maritime_ratio"`
}

// DefaultGameInfo returns the base-game piece limits, deck and price list.
func DefaultGameInfo() GameInfo {
	return GameInfo{
		MaxEntitlements: Entitlements{Settlement: 5, City: 4, Road: 15},
		DevCards:        DevCardCounts{Knight: 14, VictoryPoint: 5, YearOfPlenty: 2, Monopoly: 2, RoadBuilding: 2},
		Costs: CostTable{
			Settlement: {Wood: 1, Brick: 1, Sheep: 1, Wheat: 1},
			City:       {Wheat: 2, Ore: 3},
			Road:       {Wood: 1, Brick: 1},
		},
		DevCardCost:   Resources{Sheep: 1, Wheat: 1, Ore: 1},
		MaritimeRatio: 4,
	}
}

// Validate rejects negative limits and prices.
func (g GameInfo) Validate() error {
	for _, k := range AllEntitlementKinds {
		if g.MaxEntitlements[k] < 0 {
			return fmt.Errorf("max %s must not be negative", k)
		}
		if !g.Costs[k].NonNegative() {
			return fmt.Errorf("%s cost must not be negative", k)
		}
	}
	for i, n := range g.DevCards {
		if n < 0 {
			return fmt.Errorf("%s count must not be negative", DevCardKind(i))
		}
	}
	if !g.DevCardCost.NonNegative() {
		return fmt.Errorf("dev card cost must not be negative")
	}
	if g.MaritimeRatio < 1 {
		return fmt.Errorf("maritime ratio must be at least 1, got %d", g.MaritimeRatio)
	}
	return nil
}
