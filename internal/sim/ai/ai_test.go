package ai

import (
	"math/rand"
	"testing"

	"starconquest.ai/internal/sim/economy"
	"starconquest.ai/internal/sim/fleet"
	"starconquest.ai/internal/sim/galaxy"
	"starconquest.ai/internal/sim/tuning"
)

type testWorld struct {
	turn    int
	planets []*economy.Planet
	next    uint64
}

func (w *testWorld) CurrentTurn() int { return w.turn }
func (w *testWorld) AllPlanets() []*economy.Planet { return w.planets }
func (w *testWorld) NextFleetID() uint64 {
	w.next++
	return w.next
}

func (w *testWorld) Planet(id uint64) *economy.Planet {
	for _, p := range w.planets {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func setup(t economy.PlayerType, rules tuning.Tuning) (*testWorld, *economy.Player, *economy.Planet, *economy.Planet) {
	pl := economy.NewPlayer("ai", "AI", t, rules)
	home := economy.NewPlanet(1, "home", galaxy.PlanetClass2, galaxy.Hex{}, 0, 101)
	home.OwnerID = pl.ID
	home.Fleet.OwnerID = pl.ID
	for i := 0; i < 4; i++ {
		home.Population = append(home.Population, &economy.Citizen{Worker: economy.WorkerBuilder, LoyalTo: pl.ID})
	}
	pl.AddPlanet(home.ID)
	other := economy.NewPlanet(2, "other", galaxy.PlanetClass1, galaxy.Hex{Q: 3}, 0, 102)
	return &testWorld{turn: 1, planets: []*economy.Planet{home, other}, next: 1000}, pl, home, other
}

func TestScoutFirstWhileExploring(t *testing.T) {
	rules := tuning.Defaults()
	w, pl, home, _ := setup(economy.PlayerNormal, rules)
	New(rules, nil).TakeTurn(w, pl, rand.New(rand.NewSource(1)))

	if len(home.BuildQueue) != 1 || home.BuildQueue[0].Ship != fleet.ShipScout {
		t.Fatalf("queue=%+v", home.BuildQueue)
	}
	if _, ok := pl.BuildGoals[home.ID]; ok {
		t.Fatalf("enqueued goal should be cleared")
	}
	if pl.Ledger.Gold != 10 || pl.Ledger.Ore != 4 {
		t.Fatalf("ledger=%+v", pl.Ledger)
	}
}

func TestHumanPlayersAreSkipped(t *testing.T) {
	rules := tuning.Defaults()
	w, pl, home, _ := setup(economy.PlayerHuman, rules)
	New(rules, nil).TakeTurn(w, pl, rand.New(rand.NewSource(1)))
	if len(home.BuildQueue) != 0 || len(pl.BuildGoals) != 0 {
		t.Fatalf("human player was driven by the AI")
	}
}

func TestReassignFeedsFirstThenMines(t *testing.T) {
	rules := tuning.Defaults()
	rules.AI.FoodSlack["HARD"] = [2]float64{0, 0}
	_, pl, home, _ := setup(economy.PlayerHard, rules)
	e := New(rules, nil)
	rng := rand.New(rand.NewSource(1))

	e.reassignPopulation(pl, []*economy.Planet{home}, rng)
	c := home.WorkerCounts()
	if c[economy.WorkerFarmer] != 2 || c[economy.WorkerMiner] != 0 || c[economy.WorkerBuilder] != 2 {
		t.Fatalf("counts=%v", c)
	}

	pl.Ledger.Ore = 0
	pl.BuildGoals[home.ID] = economy.BuildGoal{Kind: economy.KindImprovement, Improvement: economy.ImprovementMine}
	e.reassignPopulation(pl, []*economy.Planet{home}, rng)
	c = home.WorkerCounts()
	if c[economy.WorkerFarmer] != 2 || c[economy.WorkerMiner] != 2 || c[economy.WorkerBuilder] != 0 {
		t.Fatalf("counts with ore goal=%v", c)
	}
}

func TestDispatchScoutsNearestUnexplored(t *testing.T) {
	rules := tuning.Defaults()
	w, pl, home, other := setup(economy.PlayerNormal, rules)
	for i := uint64(1); i <= 4; i++ {
		home.Fleet.Add(fleet.NewStarShip(i, fleet.ShipDestroyer))
	}
	e := New(rules, nil)
	e.dispatchFleets(w, pl, []*economy.Planet{home}, rand.New(rand.NewSource(1)))

	if len(pl.FleetsInTransit) != 1 {
		t.Fatalf("in transit=%d", len(pl.FleetsInTransit))
	}
	f := pl.FleetsInTransit[0]
	if f.DestinationPlanetID != other.ID || len(f.Ships) != 1 || !f.InTransit {
		t.Fatalf("fleet=%+v", f)
	}
	if home.Fleet.CountOf(fleet.ShipDestroyer) != 3 {
		t.Fatalf("home kept %d destroyers", home.Fleet.CountOf(fleet.ShipDestroyer))
	}
}

func TestDispatchHoldsGarrison(t *testing.T) {
	rules := tuning.Defaults()
	w, pl, home, _ := setup(economy.PlayerNormal, rules)
	home.Fleet.Add(fleet.NewStarShip(1, fleet.ShipDestroyer))
	New(rules, nil).dispatchFleets(w, pl, []*economy.Planet{home}, rand.New(rand.NewSource(1)))
	if len(pl.FleetsInTransit) != 0 {
		t.Fatalf("lone garrison ship was sent away")
	}
}

func TestDetachmentRespectsLimit(t *testing.T) {
	f := fleet.New(1, "ai")
	f.Add(fleet.NewStarShip(1, fleet.ShipScout), fleet.NewStarShip(2, fleet.ShipDestroyer), fleet.NewStarShip(3, fleet.ShipDefense))
	counts, ok := detachment(f, 0, 12, false)
	if !ok || counts[fleet.ShipScout] != 1 || counts[fleet.ShipDestroyer] != 1 || counts[fleet.ShipDefense] != 0 {
		t.Fatalf("counts=%v ok=%v", counts, ok)
	}
	if _, ok := detachment(f, 13, 20, false); ok {
		t.Fatalf("need above mobile strength must fail")
	}
}

func TestScoutingDetachmentRespectsLimit(t *testing.T) {
	f := fleet.New(1, "ai")
	f.Add(fleet.NewStarShip(1, fleet.ShipScout))
	if counts, ok := detachment(f, 1, 3, true); ok {
		t.Fatalf("scout above the limit was sent: %v", counts)
	}
	counts, ok := detachment(f, 1, 4, true)
	if !ok || counts[fleet.ShipScout] != 1 || len(counts) != 1 {
		t.Fatalf("counts=%v ok=%v", counts, ok)
	}

	// SendShips takes the healthy scout, so the damaged one does not make the run fit.
	damaged := fleet.NewStarShip(2, fleet.ShipScout)
	damaged.Damage = 2
	f.Add(damaged)
	if counts, ok := detachment(f, 1, 3, true); ok {
		t.Fatalf("healthy scout above the limit was sent: %v", counts)
	}
}

func TestIntelStalenessByTier(t *testing.T) {
	rules := tuning.Defaults()
	cases := []struct {
		typ    economy.PlayerType
		window int
		est    int
	}{
		{economy.PlayerEasy, 1, 15},
		{economy.PlayerNormal, 1, 15},
		{economy.PlayerHard, rules.AI.IntelStalenessTurns, 10},
		{economy.PlayerExpert, rules.AI.IntelStalenessTurns, 10},
	}
	for _, c := range cases {
		t.Run(c.typ.String(), func(t *testing.T) {
			w, pl, _, other := setup(c.typ, rules)
			if got := staleness(pl, rules.AI); got != c.window {
				t.Fatalf("staleness=%d want %d", got, c.window)
			}
			pl.Explored[other.ID] = true
			pl.Intel[other.ID] = economy.Intel{Strength: 10, OwnerID: "enemy", TurnSeen: 1}
			e := New(rules, nil)

			w.turn = 2
			if est, scouting := e.estimate(w, pl, other); est != 10 || scouting {
				t.Fatalf("fresh intel: est=%d scouting=%v", est, scouting)
			}
			w.turn = 5
			if est, _ := e.estimate(w, pl, other); est != c.est {
				t.Fatalf("intel 4 turns old: est=%d want %d", est, c.est)
			}
		})
	}
}

func TestRelayMovesSpareStrengthToTheFront(t *testing.T) {
	rules := tuning.Defaults()
	cases := []struct {
		typ   economy.PlayerType
		relay bool
	}{
		{economy.PlayerHard, false},
		{economy.PlayerExpert, true},
	}
	for _, c := range cases {
		t.Run(c.typ.String(), func(t *testing.T) {
			w, pl, home, other := setup(c.typ, rules)
			for i := uint64(1); i <= 4; i++ {
				home.Fleet.Add(fleet.NewStarShip(i, fleet.ShipCruiser))
			}
			front := economy.NewPlanet(3, "front", galaxy.PlanetClass1, galaxy.Hex{Q: 5}, 0, 103)
			front.OwnerID = pl.ID
			front.Fleet.OwnerID = pl.ID
			pl.AddPlanet(front.ID)
			enemy := economy.NewPlanet(4, "enemy", galaxy.PlanetClass1, galaxy.Hex{Q: 9}, 0, 104)
			enemy.OwnerID = "enemy"
			w.planets = append(w.planets, front, enemy)

			// Nothing is worth attacking.
			for _, p := range []*economy.Planet{other, enemy} {
				pl.Explored[p.ID] = true
				pl.Intel[p.ID] = economy.Intel{Strength: 1000, OwnerID: p.OwnerID, TurnSeen: w.turn}
			}
			New(rules, nil).dispatchFleets(w, pl, []*economy.Planet{home, front}, rand.New(rand.NewSource(1)))

			if !c.relay {
				if len(pl.FleetsInTransit) != 0 {
					t.Fatalf("%s relayed %d fleets", c.typ, len(pl.FleetsInTransit))
				}
				return
			}
			if len(pl.FleetsInTransit) != 1 {
				t.Fatalf("in transit=%d want 1", len(pl.FleetsInTransit))
			}
			f := pl.FleetsInTransit[0]
			if f.DestinationPlanetID != front.ID || f.CountOf(fleet.ShipCruiser) != 3 {
				t.Fatalf("fleet to %d with %d cruisers", f.DestinationPlanetID, f.CountOf(fleet.ShipCruiser))
			}
			if home.Fleet.CountOf(fleet.ShipCruiser) != 1 {
				t.Fatalf("home kept %d cruisers", home.Fleet.CountOf(fleet.ShipCruiser))
			}
		})
	}
}

func TestSpacePlatformGoalOnceFullyImproved(t *testing.T) {
	rules := tuning.Defaults()
	for _, typ := range []economy.PlayerType{economy.PlayerEasy, economy.PlayerNormal, economy.PlayerHard, economy.PlayerExpert} {
		t.Run(typ.String(), func(t *testing.T) {
			_, pl, home, _ := setup(typ, rules)
			home.Improvements = map[economy.ImprovementType]int{
				economy.ImprovementFarm:    3,
				economy.ImprovementMine:    1,
				economy.ImprovementFactory: 4,
				economy.ImprovementColony:  1,
			}
			e := New(rules, nil)
			rng := rand.New(rand.NewSource(1))

			g := e.chooseGoal(pl, home, false, 1, rng)
			if g.Kind != economy.KindImprovement || g.Improvement != economy.ImprovementSpacePlatform {
				t.Fatalf("goal=%s want SPACE_PLATFORM", goalName(g))
			}
			if g := e.chooseGoal(pl, home, true, 1, rng); g.Kind != economy.KindStarship || g.Ship != fleet.ShipScout {
				t.Fatalf("exploring goal=%s want scout", goalName(g))
			}
			home.Fleet.HasSpacePlatform = true
			if g := e.chooseGoal(pl, home, false, 1, rng); g.Kind != economy.KindStarship || g.Ship == fleet.ShipScout {
				t.Fatalf("goal with platform=%s want a warship", goalName(g))
			}
		})
	}
}

func TestWarshipPicksFollowTierWeights(t *testing.T) {
	rules := tuning.Defaults()
	const draws = 10000
	types := [3]fleet.ShipType{fleet.ShipDestroyer, fleet.ShipCruiser, fleet.ShipBattleship}
	for typ, weights := range warshipWeights {
		t.Run(typ.String(), func(t *testing.T) {
			pl := economy.NewPlayer("ai", "AI", typ, rules)
			rng := rand.New(rand.NewSource(7))
			for i := 0; i < draws; i++ {
				if s := pickWarship(pl, rng); s != fleet.ShipDestroyer {
					t.Fatalf("picked locked %s", s)
				}
			}

			pl.Research.Progress[economy.ResearchUnlockCruiser].Unlock.Unlocked = true
			pl.Research.Progress[economy.ResearchUnlockBattleship].Unlock.Unlocked = true
			got := map[fleet.ShipType]int{}
			for i := 0; i < draws; i++ {
				got[pickWarship(pl, rng)]++
			}
			total := weights[0] + weights[1] + weights[2]
			for i, s := range types {
				want := float64(weights[i]) / float64(total)
				share := float64(got[s]) / draws
				if share < want-0.03 || share > want+0.03 {
					t.Fatalf("%s share %.3f want %.3f", s, share, want)
				}
			}
		})
	}
}
