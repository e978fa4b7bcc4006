// Package fleet models starships and the fleets that carry them.
package fleet

import (
	"errors"
	"fmt"
	"sort"

	"starconquest.ai/internal/sim/galaxy"
)

var (
	ErrNotEnoughShips = errors.New("not enough ships")
	ErrImmobile       = errors.New("ship type cannot travel")
)

// Fleet is either stationed at a planet (InTransit false), in transit, or ephemeral
// (a carrier between two other fleets during split/merge).
type Fleet struct {
	ID      uint64
	OwnerID string

	Ships []*StarShip

	HasSpacePlatform    bool
	SpacePlatformDamage int

	InTransit           bool
	Origin              galaxy.Hex
	Destination         galaxy.Hex
	OriginPlanetID      uint64
	DestinationPlanetID uint64
	DistanceRemaining   int
	TurnsToDestination  int
}

func New(id uint64, ownerID string) *Fleet {
	return &Fleet{ID: id, OwnerID: ownerID}
}

func (f *Fleet) PlatformStrength() int {
	if !f.HasSpacePlatform {
		return 0
	}
	v := SpacePlatformStrength - f.SpacePlatformDamage
	if v < 0 {
		return 0
	}
	return v
}

// Strength is the sum of ship strengths plus the remaining space platform strength.
func (f *Fleet) Strength() int {
	if f == nil {
		return 0
	}
	total := f.PlatformStrength()
	for _, s := range f.Ships {
		total += s.Strength()
	}
	return total
}

func (f *Fleet) Empty() bool {
	return f == nil || (len(f.Ships) == 0 && !f.HasSpacePlatform)
}

func (f *Fleet) Counts() map[ShipType]int {
	out := map[ShipType]int{}
	for _, s := range f.Ships {
		out[s.Type]++
	}
	return out
}

func (f *Fleet) CountOf(t ShipType) int {
	n := 0
	for _, s := range f.Ships {
		if s.Type == t {
			n++
		}
	}
	return n
}

// MobileStrength excludes defense ships and the platform.
func (f *Fleet) MobileStrength() int {
	total := 0
	for _, s := range f.Ships {
		if s.Type.Mobile() {
			total += s.Strength()
		}
	}
	return total
}

func (f *Fleet) Add(ships ...*StarShip) {
	f.Ships = append(f.Ships, ships...)
}

// Merge moves every ship of other into f. The platform never moves.
func (f *Fleet) Merge(other *Fleet) {
	if other == nil || other == f {
		return
	}
	f.Ships = append(f.Ships, other.Ships...)
	other.Ships = nil
}

// Split detaches counts ships into a new ephemeral fleet, healthiest ships first.
func (f *Fleet) Split(newID uint64, counts map[ShipType]int) (*Fleet, error) {
	for t, n := range counts {
		if n < 0 {
			return nil, fmt.Errorf("negative count for %s", t)
		}
		if n > 0 && !t.Mobile() {
			return nil, fmt.Errorf("%w: %s", ErrImmobile, t)
		}
		if f.CountOf(t) < n {
			return nil, fmt.Errorf("%w: have %d %s, want %d", ErrNotEnoughShips, f.CountOf(t), t, n)
		}
	}
	SortByStrengthDesc(f.Ships)
	out := New(newID, f.OwnerID)
	remaining := make(map[ShipType]int, len(counts))
	for t, n := range counts {
		remaining[t] = n
	}
	kept := f.Ships[:0]
	for _, s := range f.Ships {
		if remaining[s.Type] > 0 {
			remaining[s.Type]--
			out.Ships = append(out.Ships, s)
			continue
		}
		kept = append(kept, s)
	}
	f.Ships = kept
	return out, nil
}

// Speed is the slowest ship's speed plus bonus; zero when nothing can move.
func (f *Fleet) Speed(bonus int) int {
	speed := 0
	for _, s := range f.Ships {
		sp := s.Type.Speed()
		if sp == 0 {
			return 0
		}
		if speed == 0 || sp < speed {
			speed = sp
		}
	}
	if speed == 0 {
		return 0
	}
	return speed + bonus
}

func turnsFor(distance, speed int) int {
	if speed <= 0 {
		return 0
	}
	return (distance + speed - 1) / speed
}

// SendTo puts the fleet in transit. A zero distance still takes one turn.
func (f *Fleet) SendTo(originPlanet uint64, origin galaxy.Hex, destPlanet uint64, dest galaxy.Hex, speed int) error {
	if speed <= 0 {
		return ErrImmobile
	}
	f.InTransit = true
	f.Origin = origin
	f.Destination = dest
	f.OriginPlanetID = originPlanet
	f.DestinationPlanetID = destPlanet
	f.DistanceRemaining = galaxy.Distance(origin, dest)
	if f.DistanceRemaining < 1 {
		f.DistanceRemaining = 1
	}
	f.TurnsToDestination = turnsFor(f.DistanceRemaining, speed)
	return nil
}

// Step advances an in-transit fleet by one turn and reports arrival.
func (f *Fleet) Step(speed int) bool {
	if !f.InTransit {
		return false
	}
	if speed <= 0 {
		speed = 1
	}
	f.DistanceRemaining -= speed
	if f.DistanceRemaining <= 0 {
		f.DistanceRemaining = 0
		f.TurnsToDestination = 0
		return true
	}
	f.TurnsToDestination = turnsFor(f.DistanceRemaining, speed)
	return false
}

// Land clears transit state.
func (f *Fleet) Land() {
	f.InTransit = false
	f.Origin = galaxy.Hex{}
	f.Destination = galaxy.Hex{}
	f.OriginPlanetID = 0
	f.DestinationPlanetID = 0
	f.DistanceRemaining = 0
	f.TurnsToDestination = 0
}

// RemoveDestroyed drops ships at zero strength and a platform whose damage reached its
// strength. Returns the number of ships removed.
func (f *Fleet) RemoveDestroyed() int {
	kept := f.Ships[:0]
	removed := 0
	for _, s := range f.Ships {
		if s.Strength() <= 0 {
			removed++
			continue
		}
		kept = append(kept, s)
	}
	for i := len(kept); i < len(f.Ships); i++ {
		f.Ships[i] = nil
	}
	f.Ships = kept
	if f.HasSpacePlatform && f.SpacePlatformDamage >= SpacePlatformStrength {
		f.HasSpacePlatform = false
		f.SpacePlatformDamage = 0
	}
	return removed
}

func (f *Fleet) TotalDamage() int {
	total := f.SpacePlatformDamage
	if !f.HasSpacePlatform {
		total = 0
	}
	for _, s := range f.Ships {
		if s.Damage > 0 {
			total += s.Damage
		}
	}
	return total
}

// Repair removes up to amount damage, most damaged ship first, platform last. Returns the
// strength actually restored.
func (f *Fleet) Repair(amount int) int {
	if amount <= 0 {
		return 0
	}
	damaged := make([]*StarShip, 0, len(f.Ships))
	for _, s := range f.Ships {
		if s.Damage > 0 {
			damaged = append(damaged, s)
		}
	}
	sort.SliceStable(damaged, func(i, j int) bool {
		if damaged[i].Damage != damaged[j].Damage {
			return damaged[i].Damage > damaged[j].Damage
		}
		return damaged[i].ID < damaged[j].ID
	})
	restored := 0
	for _, s := range damaged {
		if amount == 0 {
			break
		}
		fix := min(s.Damage, amount)
		s.Damage -= fix
		amount -= fix
		restored += fix
	}
	if amount > 0 && f.HasSpacePlatform && f.SpacePlatformDamage > 0 {
		fix := min(f.SpacePlatformDamage, amount)
		f.SpacePlatformDamage -= fix
		restored += fix
	}
	return restored
}

func (f *Fleet) Clone() *Fleet {
	if f == nil {
		return nil
	}
	cp := *f
	cp.Ships = make([]*StarShip, len(f.Ships))
	for i, s := range f.Ships {
		sc := *s
		cp.Ships[i] = &sc
	}
	return &cp
}
