package fleet

import "sort"

type ShipType uint8

const (
	ShipDefense ShipType = iota + 1
	ShipScout
	ShipDestroyer
	ShipCruiser
	ShipBattleship
	// ShipSpacePlatform only appears as a combatant type; platforms are a fleet flag.
	ShipSpacePlatform
)

// SpacePlatformStrength is the damage a space platform absorbs before it is destroyed.
const SpacePlatformStrength = 64

const MaxLevel = 5

var AllBuildable = []ShipType{ShipDefense, ShipScout, ShipDestroyer, ShipCruiser, ShipBattleship}

func (t ShipType) String() string {
	switch t {
	case ShipDefense:
		return "DEFENSE"
	case ShipScout:
		return "SCOUT"
	case ShipDestroyer:
		return "DESTROYER"
	case ShipCruiser:
		return "CRUISER"
	case ShipBattleship:
		return "BATTLESHIP"
	case ShipSpacePlatform:
		return "SPACE_PLATFORM"
	default:
		return "UNKNOWN"
	}
}

func ParseShipType(s string) (ShipType, bool) {
	for _, t := range append(AllBuildable, ShipSpacePlatform) {
		if t.String() == s {
			return t, true
		}
	}
	return 0, false
}

func (t ShipType) BaseStrength() int {
	switch t {
	case ShipDefense:
		return 2
	case ShipScout:
		return 4
	case ShipDestroyer:
		return 8
	case ShipCruiser:
		return 16
	case ShipBattleship:
		return 32
	case ShipSpacePlatform:
		return SpacePlatformStrength
	default:
		return 0
	}
}

// Speed is hexes per turn. Defense ships never leave their planet.
func (t ShipType) Speed() int {
	switch t {
	case ShipScout:
		return 3
	case ShipDestroyer, ShipCruiser:
		return 2
	case ShipBattleship:
		return 1
	default:
		return 0
	}
}

func (t ShipType) Mobile() bool { return t.Speed() > 0 }

// advantages maps each type to the type it is strong against.
// Space platforms are strong against everything and weak against nothing.
var advantages = map[ShipType]ShipType{
	ShipDefense:    ShipDestroyer,
	ShipDestroyer:  ShipBattleship,
	ShipBattleship: ShipCruiser,
	ShipCruiser:    ShipScout,
	ShipScout:      ShipDefense,
}

func HasAdvantage(attacker, target ShipType) bool {
	if attacker == ShipSpacePlatform {
		return target != ShipSpacePlatform
	}
	if target == ShipSpacePlatform {
		return false
	}
	return advantages[attacker] == target
}

// Advantage returns +1 when attacker is strong against target, -1 when target is strong
// against attacker, else 0.
func Advantage(attacker, target ShipType) int {
	switch {
	case HasAdvantage(attacker, target):
		return 1
	case HasAdvantage(target, attacker):
		return -1
	default:
		return 0
	}
}

type StarShip struct {
	ID         uint64
	Type       ShipType
	Damage     int
	Experience int
}

func NewStarShip(id uint64, t ShipType) *StarShip {
	return &StarShip{ID: id, Type: t}
}

// ExperienceForLevel is the cumulative experience required to reach level.
func ExperienceForLevel(base, level int) int {
	return base * level * (level + 1) / 2
}

func (s *StarShip) Level() int {
	base := s.Type.BaseStrength()
	lvl := 0
	for lvl < MaxLevel && s.Experience >= ExperienceForLevel(base, lvl+1) {
		lvl++
	}
	return lvl
}

func (s *StarShip) MaxStrength() int {
	base := s.Type.BaseStrength()
	return base + base*s.Level()/4
}

func (s *StarShip) Strength() int {
	v := s.MaxStrength() - s.Damage
	if v < 0 {
		return 0
	}
	return v
}

// AddExperience reports whether the ship gained at least one level.
func (s *StarShip) AddExperience(n int) bool {
	if n <= 0 {
		return false
	}
	before := s.Level()
	s.Experience += n
	return s.Level() > before
}

// SortByStrengthDesc orders ships strongest first, ties by id.
func SortByStrengthDesc(ships []*StarShip) {
	sort.SliceStable(ships, func(i, j int) bool {
		si, sj := ships[i].Strength(), ships[j].Strength()
		if si != sj {
			return si > sj
		}
		return ships[i].ID < ships[j].ID
	})
}
