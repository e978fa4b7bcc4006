package fleet

import (
	"errors"
	"testing"

	"starconquest.ai/internal/sim/galaxy"
)

func mkFleet(types ...ShipType) *Fleet {
	f := New(1, "p1")
	for i, t := range types {
		f.Add(NewStarShip(uint64(i+1), t))
	}
	return f
}

func TestStrengthIsSumOfShipsPlusPlatform(t *testing.T) {
	f := mkFleet(ShipDefense, ShipScout, ShipDestroyer, ShipCruiser, ShipBattleship)
	if got := f.Strength(); got != 2+4+8+16+32 {
		t.Fatalf("strength=%d", got)
	}
	f.Ships[4].Damage = 10
	f.HasSpacePlatform = true
	f.SpacePlatformDamage = 4
	want := 2 + 4 + 8 + 16 + 22 + (SpacePlatformStrength - 4)
	if got := f.Strength(); got != want {
		t.Fatalf("strength=%d want %d", got, want)
	}
	f.Ships[0].Damage = 100
	f.SpacePlatformDamage = 500
	if got := f.Strength(); got != 4+8+16+22 {
		t.Fatalf("clamped strength=%d", got)
	}
}

func TestEmptyFleetHasZeroStrength(t *testing.T) {
	f := New(1, "")
	if !f.Empty() || f.Strength() != 0 {
		t.Fatalf("empty fleet: empty=%v strength=%d", f.Empty(), f.Strength())
	}
	var nilFleet *Fleet
	if nilFleet.Strength() != 0 {
		t.Fatalf("nil fleet strength")
	}
}

func TestLevelingBoostsStrength(t *testing.T) {
	s := NewStarShip(1, ShipScout)
	if s.Level() != 0 || s.MaxStrength() != 4 {
		t.Fatalf("fresh level=%d max=%d", s.Level(), s.MaxStrength())
	}
	if !s.AddExperience(ExperienceForLevel(4, 1)) {
		t.Fatalf("expected level up")
	}
	if s.Level() != 1 || s.MaxStrength() != 5 {
		t.Fatalf("level=%d max=%d", s.Level(), s.MaxStrength())
	}
	s.AddExperience(1_000_000)
	if s.Level() != MaxLevel {
		t.Fatalf("level=%d want cap %d", s.Level(), MaxLevel)
	}
}

func TestAdvantageCycle(t *testing.T) {
	cycle := []ShipType{ShipDefense, ShipDestroyer, ShipBattleship, ShipCruiser, ShipScout}
	for i, a := range cycle {
		b := cycle[(i+1)%len(cycle)]
		if Advantage(a, b) != 1 || Advantage(b, a) != -1 {
			t.Fatalf("%s should beat %s", a, b)
		}
	}
	for _, tt := range AllBuildable {
		if Advantage(ShipSpacePlatform, tt) != 1 {
			t.Fatalf("platform should beat %s", tt)
		}
		if Advantage(tt, ShipSpacePlatform) != -1 {
			t.Fatalf("%s should be weak against platform", tt)
		}
	}
	if Advantage(ShipDestroyer, ShipScout) != 0 {
		t.Fatalf("destroyer vs scout is neutral")
	}
}

func TestSplitTakesHealthiestAndValidates(t *testing.T) {
	f := mkFleet(ShipScout, ShipScout, ShipScout, ShipDefense)
	f.Ships[0].Damage = 3
	out, err := f.Split(9, map[ShipType]int{ShipScout: 2})
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if len(out.Ships) != 2 || out.Strength() != 8 {
		t.Fatalf("split fleet ships=%d strength=%d", len(out.Ships), out.Strength())
	}
	if f.CountOf(ShipScout) != 1 || f.CountOf(ShipDefense) != 1 {
		t.Fatalf("remaining counts %v", f.Counts())
	}
	if _, err := f.Split(10, map[ShipType]int{ShipScout: 2}); !errors.Is(err, ErrNotEnoughShips) {
		t.Fatalf("want ErrNotEnoughShips, got %v", err)
	}
	if _, err := f.Split(10, map[ShipType]int{ShipDefense: 1}); !errors.Is(err, ErrImmobile) {
		t.Fatalf("want ErrImmobile, got %v", err)
	}
}

func TestTransitSteps(t *testing.T) {
	f := mkFleet(ShipScout, ShipDestroyer)
	speed := f.Speed(0)
	if speed != 2 {
		t.Fatalf("speed=%d want 2", speed)
	}
	if err := f.SendTo(1, galaxy.Hex{}, 2, galaxy.Hex{Q: 5}, speed); err != nil {
		t.Fatalf("send: %v", err)
	}
	if f.TurnsToDestination != 3 {
		t.Fatalf("turns=%d want 3", f.TurnsToDestination)
	}
	arrived := 0
	for i := 0; i < 3; i++ {
		if f.Step(speed) {
			arrived = i + 1
		}
	}
	if arrived != 3 {
		t.Fatalf("arrived on step %d", arrived)
	}
	if mkFleet(ShipDefense).Speed(0) != 0 {
		t.Fatalf("defense fleet must be immobile")
	}
}

func TestRepairAndRemoveDestroyed(t *testing.T) {
	f := mkFleet(ShipCruiser, ShipScout, ShipScout)
	f.Ships[0].Damage = 6
	f.Ships[1].Damage = 4
	f.HasSpacePlatform = true
	f.SpacePlatformDamage = 10
	if got := f.RemoveDestroyed(); got != 1 {
		t.Fatalf("removed=%d want 1", got)
	}
	if got := f.Repair(8); got != 8 {
		t.Fatalf("repaired=%d", got)
	}
	if f.Ships[0].Damage != 0 || f.SpacePlatformDamage != 8 {
		t.Fatalf("damage after repair ship=%d platform=%d", f.Ships[0].Damage, f.SpacePlatformDamage)
	}
	f.SpacePlatformDamage = SpacePlatformStrength
	f.RemoveDestroyed()
	if f.HasSpacePlatform {
		t.Fatalf("platform should be destroyed at threshold")
	}
}
