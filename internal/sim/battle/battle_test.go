package battle

import (
	"math/rand"
	"testing"

	"starconquest.ai/internal/sim/fleet"
)

func build(owner string, counts map[fleet.ShipType]int) *fleet.Fleet {
	f := fleet.New(1, owner)
	id := uint64(1)
	for _, t := range fleet.AllBuildable {
		for i := 0; i < counts[t]; i++ {
			f.Add(fleet.NewStarShip(id, t))
			id++
		}
	}
	return f
}

func trials(t *testing.T, n int, seed int64, a, d map[fleet.ShipType]int) (attackerWins, defenderWins, mutual int) {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	for i := 0; i < n; i++ {
		res := Simulate(rng, Side{Fleet: build("a", a)}, Side{Fleet: build("d", d)})
		switch {
		case res.AttackerWins:
			attackerWins++
		case res.MutualDestruction:
			mutual++
		default:
			defenderWins++
		}
	}
	return
}

func TestTypeAdvantageWins(t *testing.T) {
	cruiser := map[fleet.ShipType]int{fleet.ShipCruiser: 1}
	scouts := map[fleet.ShipType]int{fleet.ShipScout: 4}

	aw, _, _ := trials(t, 100, 1, cruiser, scouts)
	if aw < 50 {
		t.Fatalf("attacking cruiser won %d/100 against equal-strength scouts", aw)
	}
	_, dw, _ := trials(t, 100, 2, scouts, cruiser)
	if dw < 50 {
		t.Fatalf("defending cruiser won %d/100 against equal-strength scouts", dw)
	}
}

func TestDoubleStrengthOvermatch(t *testing.T) {
	aw, _, _ := trials(t, 100, 3,
		map[fleet.ShipType]int{fleet.ShipScout: 4},
		map[fleet.ShipType]int{fleet.ShipDestroyer: 1})
	if aw < 50 {
		t.Fatalf("4 scouts won %d/100 against 1 destroyer", aw)
	}
	aw, _, _ = trials(t, 100, 4,
		map[fleet.ShipType]int{fleet.ShipScout: 8},
		map[fleet.ShipType]int{fleet.ShipCruiser: 1})
	if aw < 50 {
		t.Fatalf("8 scouts won %d/100 against the cruiser they are weak to", aw)
	}
}

func TestSymmetricFleetsAreFair(t *testing.T) {
	cases := []struct {
		name string
		comp map[fleet.ShipType]int
	}{
		{"scout", map[fleet.ShipType]int{fleet.ShipScout: 1}},
		{"destroyer", map[fleet.ShipType]int{fleet.ShipDestroyer: 1}},
		{"cruiser", map[fleet.ShipType]int{fleet.ShipCruiser: 1}},
		{"mixed", map[fleet.ShipType]int{fleet.ShipDestroyer: 2, fleet.ShipScout: 2}},
	}
	for i, tc := range cases {
		aw, dw, _ := trials(t, 10000, int64(50+i), tc.comp, tc.comp)
		decided := aw + dw
		if decided == 0 {
			t.Fatalf("%s: no decided battles", tc.name)
		}
		share := float64(aw) / float64(decided)
		if share < 0.47 || share > 0.53 {
			t.Fatalf("%s: attacker share %.3f of %d decided battles", tc.name, share, decided)
		}
	}
}

// weakened returns a fleet of n ships of type typ, each left at strength 1.
func weakened(owner string, typ fleet.ShipType, n int) *fleet.Fleet {
	f := build(owner, map[fleet.ShipType]int{typ: n})
	for _, s := range f.Ships {
		s.Damage = s.MaxStrength() - 1
	}
	return f
}

func TestStallGoesToStrongerSide(t *testing.T) {
	rng := rand.New(rand.NewSource(10))
	a := weakened("a", fleet.ShipScout, 2)
	d := weakened("d", fleet.ShipScout, 1)
	res := Simulate(rng, Side{Fleet: a}, Side{Fleet: d})
	if !res.Stalled || res.Rounds != 1 {
		t.Fatalf("expected a stall in round 1: %+v", res)
	}
	if !res.AttackerWins || len(d.Ships) != 0 || len(a.Ships) != 2 || res.DefenderShipsLost != 1 {
		t.Fatalf("stronger attacker should hold: res=%+v attacker=%d defender=%d", res, len(a.Ships), len(d.Ships))
	}

	a = weakened("a", fleet.ShipScout, 1)
	d = weakened("d", fleet.ShipScout, 2)
	res = Simulate(rng, Side{Fleet: a}, Side{Fleet: d})
	if res.AttackerWins || len(a.Ships) != 0 || res.AttackerShipsLost != 1 {
		t.Fatalf("stronger defender should hold: res=%+v", res)
	}
}

func TestEvenStallIsCoinFlip(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	aw := 0
	const n = 400
	for i := 0; i < n; i++ {
		a := weakened("a", fleet.ShipScout, 1)
		d := weakened("d", fleet.ShipScout, 1)
		res := Simulate(rng, Side{Fleet: a}, Side{Fleet: d})
		if !res.Stalled || res.MutualDestruction {
			t.Fatalf("res=%+v", res)
		}
		if res.AttackerWins {
			aw++
			if len(d.Ships) != 0 {
				t.Fatalf("routed defender kept ships")
			}
		} else if len(a.Ships) != 0 {
			t.Fatalf("routed attacker kept ships")
		}
	}
	if aw < n/4 || aw > 3*n/4 {
		t.Fatalf("attacker won %d/%d even stalls", aw, n)
	}
}

func TestRoundLimitDecidesBattle(t *testing.T) {
	rng := rand.New(rand.NewSource(12))
	a := build("a", map[fleet.ShipType]int{fleet.ShipBattleship: 2})
	d := build("d", map[fleet.ShipType]int{fleet.ShipBattleship: 2})
	res := simulate(rng, Side{Fleet: a}, Side{Fleet: d}, 1)
	if !res.Stalled || res.Rounds != 1 {
		t.Fatalf("expected the round limit to stop the battle: %+v", res)
	}
	if a.Empty() == d.Empty() {
		t.Fatalf("exactly one side should be routed: attacker=%d defender=%d", a.Strength(), d.Strength())
	}
	if res.AttackerWins != d.Empty() || res.MutualDestruction {
		t.Fatalf("res=%+v attacker=%d defender=%d", res, a.Strength(), d.Strength())
	}
}

// Destroyers and scouts sit apart in the advantage cycle, so neither side of an
// equal-strength fight is favored by type.
func TestDestroyerAgainstScoutsHasNoTypeEdge(t *testing.T) {
	if fleet.Advantage(fleet.ShipDestroyer, fleet.ShipScout) != 0 || fleet.Advantage(fleet.ShipScout, fleet.ShipDestroyer) != 0 {
		t.Fatalf("destroyer and scout should be neutral to each other")
	}
	aw, dw, _ := trials(t, 1000, 13,
		map[fleet.ShipType]int{fleet.ShipDestroyer: 1},
		map[fleet.ShipType]int{fleet.ShipScout: 2})
	if aw == 0 || dw == 0 {
		t.Fatalf("1 destroyer vs 2 scouts: attacker %d defender %d of 1000", aw, dw)
	}
}

func TestExperienceOnlyForWinnerAfterBattle(t *testing.T) {
	rng := rand.New(rand.NewSource(6))
	a := build("a", map[fleet.ShipType]int{fleet.ShipBattleship: 1})
	d := build("d", map[fleet.ShipType]int{fleet.ShipScout: 1})
	res := Simulate(rng, Side{Fleet: a}, Side{Fleet: d})
	if !res.AttackerWins {
		t.Fatalf("battleship should beat a lone scout")
	}
	if a.Ships[0].Experience <= 0 {
		t.Fatalf("winner got no experience")
	}
	if len(d.Ships) != 0 {
		t.Fatalf("loser still has ships")
	}
}

func TestEmptyDefenderLosesImmediately(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	a := build("a", map[fleet.ShipType]int{fleet.ShipScout: 1})
	res := Simulate(rng, Side{Fleet: a}, Side{Fleet: fleet.New(2, "")})
	if !res.AttackerWins || res.Rounds != 0 {
		t.Fatalf("res=%+v", res)
	}
	res = Simulate(rng, Side{Fleet: fleet.New(3, "x")}, Side{Fleet: build("d", map[fleet.ShipType]int{fleet.ShipScout: 1})})
	if res.AttackerWins {
		t.Fatalf("empty attacker cannot win")
	}
}

func TestSpacePlatformDestroyedAtThreshold(t *testing.T) {
	rng := rand.New(rand.NewSource(8))
	a := build("a", map[fleet.ShipType]int{fleet.ShipBattleship: 6})
	d := fleet.New(2, "d")
	d.HasSpacePlatform = true
	res := Simulate(rng, Side{Fleet: a}, Side{Fleet: d})
	if !res.AttackerWins || !res.DefenderPlatformLost || d.HasSpacePlatform {
		t.Fatalf("res=%+v platform=%v", res, d.HasSpacePlatform)
	}
}

func TestAttackBonusImprovesOdds(t *testing.T) {
	comp := map[fleet.ShipType]int{fleet.ShipDestroyer: 3}
	rng := rand.New(rand.NewSource(9))
	wins := 0
	for i := 0; i < 300; i++ {
		res := Simulate(rng,
			Side{Fleet: build("a", comp), AttackBonusChance: 1, DefenseBonusChance: 1},
			Side{Fleet: build("d", comp)})
		if res.AttackerWins {
			wins++
		}
	}
	if wins < 200 {
		t.Fatalf("bonused attacker won only %d/300", wins)
	}
}
