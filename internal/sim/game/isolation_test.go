package game

import (
	"math/rand"
	"slices"
	"testing"

	"starconquest.ai/internal/sim/ai"
	"starconquest.ai/internal/sim/economy"
	"starconquest.ai/internal/sim/events"
	"starconquest.ai/internal/sim/galaxy"
	"starconquest.ai/internal/sim/tuning"
)

// panicAI blows up on one seat and does nothing for the others.
type panicAI struct{ playerID string }

func (p panicAI) TakeTurn(_ ai.World, pl *economy.Player, _ *rand.Rand) {
	if pl.ID == p.playerID {
		panic("ai failure")
	}
}

func TestFailingPlayerDoesNotBlockOthers(t *testing.T) {
	g, err := StartGame("g1", 21, []PlayerSpec{
		{ID: "p1", Name: "Alice", Type: economy.PlayerHuman},
		{ID: "p2", Name: "Bot", Type: economy.PlayerNormal},
	}, galaxy.Options{Systems: 2, PlanetsPerSystem: 4}, tuning.Defaults(), nil)
	if err != nil {
		t.Fatalf("StartGame: %v", err)
	}
	g.ai = panicAI{playerID: "p2"}

	p1, p2 := g.Players["p1"], g.Players["p2"]
	home1, home2 := g.Planets[p1.HomePlanetID], g.Planets[p2.HomePlanetID]
	mustApply(t, g, "p1", Action{Kind: ActSendShips, PlanetID: home1.ID, TargetPlanetID: home2.ID, Ships: map[string]int{"SCOUT": 1}})
	mustApply(t, g, "p2", Action{Kind: ActSendShips, PlanetID: home2.ID, TargetPlanetID: home1.ID, Ships: map[string]int{"SCOUT": 1}})
	f1, f2 := p1.FleetsInTransit[0], p2.FleetsInTransit[0]
	dist1, dist2 := f1.DistanceRemaining, f2.DistanceRemaining
	bank1, bank2 := home1.ProductionBank, home2.ProductionBank
	ledger2, food2 := p2.Ledger, home2.Food
	mustApply(t, g, "p1", Action{Kind: ActEndTurn})

	res, err := g.ResolveTurn()
	if err != nil {
		t.Fatalf("ResolveTurn: %v", err)
	}
	if res.Turn != 1 || g.Turn != 1 {
		t.Fatalf("turn=%d/%d want 1", res.Turn, g.Turn)
	}

	// The failing seat skipped every later step.
	if !slices.Contains(p2.FleetsInTransit, f2) || f2.DistanceRemaining != dist2 {
		t.Fatalf("failed player's fleet moved: in transit=%v distance %d -> %d", slices.Contains(p2.FleetsInTransit, f2), dist2, f2.DistanceRemaining)
	}
	if home2.ProductionBank != bank2 || p2.Ledger != ledger2 || home2.Food != food2 {
		t.Fatalf("failed player's economy ran: bank %.2f -> %.2f ledger %+v -> %+v food %d -> %d",
			bank2, home2.ProductionBank, ledger2, p2.Ledger, food2, home2.Food)
	}

	// The healthy seat resolved normally.
	if home1.ProductionBank <= bank1 {
		t.Fatalf("healthy player's production did not accrue: %.2f -> %.2f", bank1, home1.ProductionBank)
	}
	if slices.Contains(p1.FleetsInTransit, f1) && f1.DistanceRemaining >= dist1 {
		t.Fatalf("healthy player's fleet did not move: distance %d -> %d", dist1, f1.DistanceRemaining)
	}
	if slices.Contains(res.Destroyed, "p2") {
		t.Fatalf("failed player reported destroyed")
	}
}

func TestArrivalOfFailedPlayerWaitsForNextTurn(t *testing.T) {
	g := twoHumans(t, 23)
	p1, p2 := g.Players["p1"], g.Players["p2"]
	mustApply(t, g, "p2", Action{Kind: ActSendShips, PlanetID: p2.HomePlanetID, TargetPlanetID: p1.HomePlanetID, Ships: map[string]int{"SCOUT": 1}})
	f := p2.FleetsInTransit[0]

	// The fleet reached its target this turn but its owner failed afterwards.
	f.DistanceRemaining = 0
	p2.FleetsInTransit = nil
	r := &resolver{
		g:        g,
		rng:      turnRNG(g.Seed, 1),
		log:      events.NewLog(),
		failed:   map[string]bool{"p2": true},
		arrivals: []arrival{{pl: p2, f: f, dest: f.DestinationPlanetID}},
	}
	r.resolveConflicts()
	if !slices.Contains(p2.FleetsInTransit, f) || !f.InTransit {
		t.Fatalf("arriving fleet dropped: in transit=%v", p2.FleetsInTransit)
	}

	if _, err := g.ForceResolveTurn(); err != nil {
		t.Fatalf("ForceResolveTurn: %v", err)
	}
	if slices.Contains(p2.FleetsInTransit, f) {
		t.Fatalf("fleet still in transit after the following turn")
	}
	if !p2.Explored[p1.HomePlanetID] {
		t.Fatalf("conflict at the destination did not run")
	}
}
