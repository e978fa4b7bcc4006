// Package economy implements planets, players, production, research and the trading
// center, together with the per-turn economic steps the turn engine sequences.
package economy

import "math"

type Resource uint8

const (
	ResourceFood Resource = iota + 1
	ResourceOre
	ResourceIridium
	ResourceGold
)

func (r Resource) String() string {
	switch r {
	case ResourceFood:
		return "FOOD"
	case ResourceOre:
		return "ORE"
	case ResourceIridium:
		return "IRIDIUM"
	case ResourceGold:
		return "GOLD"
	default:
		return "UNKNOWN"
	}
}

func ParseResource(s string) (Resource, bool) {
	for _, r := range []Resource{ResourceFood, ResourceOre, ResourceIridium, ResourceGold} {
		if r.String() == s {
			return r, true
		}
	}
	return 0, false
}

// Cost is the fixed price of a production item.
type Cost struct {
	Production float64 `json:"production"`
	Gold       int     `json:"gold"`
	Ore        int     `json:"ore"`
	Iridium    int     `json:"iridium"`
}

// Ledger is the player-level purse. Food is held per planet.
type Ledger struct {
	Gold    int `json:"gold"`
	Ore     int `json:"ore"`
	Iridium int `json:"iridium"`
}

func (l Ledger) CanAfford(c Cost) bool {
	return l.Gold >= c.Gold && l.Ore >= c.Ore && l.Iridium >= c.Iridium
}

func (l *Ledger) Pay(c Cost) bool {
	if !l.CanAfford(c) {
		return false
	}
	l.Gold -= c.Gold
	l.Ore -= c.Ore
	l.Iridium -= c.Iridium
	return true
}

func (l *Ledger) Refund(gold, ore, iridium int) {
	l.Gold += gold
	l.Ore += ore
	l.Iridium += iridium
}

// Yield is one turn of fractional planet output.
type Yield struct {
	Food       float64
	Ore        float64
	Iridium    float64
	Gold       float64
	Production float64
}

// Whole is the integer part of a Yield after remainders are carried.
type Whole struct {
	Food    int
	Ore     int
	Iridium int
	Gold    int
}

// Remainders carries fractional resources between turns.
type Remainders struct {
	Food    float64 `json:"food"`
	Ore     float64 `json:"ore"`
	Iridium float64 `json:"iridium"`
	Gold    float64 `json:"gold"`
}

// Tolerance for float accumulation (ten additions of 0.1 must produce a whole unit).
const remainderEpsilon = 1e-9

func carry(rem *float64, add float64) int {
	*rem += add
	whole := math.Floor(*rem + remainderEpsilon)
	*rem -= whole
	if *rem < 0 {
		*rem = 0
	}
	return int(whole)
}

// AccumulateResourceRemainders adds y into r and returns the integer units that became
// available. Fractions are never dropped: the sum of returned units plus the carried
// remainder always equals the accumulated total.
func AccumulateResourceRemainders(r *Remainders, y Yield) Whole {
	return Whole{
		Food:    carry(&r.Food, y.Food),
		Ore:     carry(&r.Ore, y.Ore),
		Iridium: carry(&r.Iridium, y.Iridium),
		Gold:    carry(&r.Gold, y.Gold),
	}
}
