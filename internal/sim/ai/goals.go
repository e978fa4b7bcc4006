package ai

import (
	"errors"
	"math/rand"

	"starconquest.ai/internal/sim/economy"
	"starconquest.ai/internal/sim/fleet"
	"starconquest.ai/internal/sim/galaxy"
)

type planStep struct {
	imp   economy.ImprovementType
	count int
}

// Cumulative improvement targets per planet class. The last step keeps adding
// factories until the slots run out.
var improvementPlans = map[galaxy.PlanetType][]planStep{
	galaxy.PlanetClass2: {
		{economy.ImprovementFarm, 2},
		{economy.ImprovementMine, 1},
		{economy.ImprovementFactory, 1},
		{economy.ImprovementColony, 1},
		{economy.ImprovementFarm, 3},
		{economy.ImprovementFactory, 99},
	},
	galaxy.PlanetClass1: {
		{economy.ImprovementFarm, 1},
		{economy.ImprovementMine, 1},
		{economy.ImprovementFactory, 1},
		{economy.ImprovementColony, 1},
		{economy.ImprovementFactory, 99},
	},
	galaxy.PlanetDead: {
		{economy.ImprovementMine, 2},
		{economy.ImprovementFactory, 1},
		{economy.ImprovementColony, 1},
		{economy.ImprovementFactory, 99},
	},
	galaxy.PlanetAsteroidBelt: {
		{economy.ImprovementMine, 2},
		{economy.ImprovementFactory, 99},
	},
}

// Warship weights (destroyer, cruiser, battleship) per tier.
var warshipWeights = map[economy.PlayerType][3]int{
	economy.PlayerEasy:   {6, 3, 1},
	economy.PlayerNormal: {4, 4, 2},
	economy.PlayerHard:   {2, 4, 4},
	economy.PlayerExpert: {1, 4, 5},
}

func nextImprovement(p *economy.Planet) (economy.ImprovementType, bool) {
	if p.FreeSlots() <= 0 {
		return 0, false
	}
	for _, step := range improvementPlans[p.Type] {
		have := p.Improvements[step.imp] + p.QueuedCount(economy.KindImprovement, step.imp)
		if have < step.count {
			return step.imp, true
		}
	}
	return 0, false
}

func pickWarship(pl *economy.Player, rng *rand.Rand) fleet.ShipType {
	types := [3]fleet.ShipType{fleet.ShipDestroyer, fleet.ShipCruiser, fleet.ShipBattleship}
	weights := warshipWeights[pl.Type]
	total := 0
	for i, t := range types {
		if !pl.Research.ShipUnlocked(t) {
			weights[i] = 0
		}
		total += weights[i]
	}
	if total == 0 {
		return fleet.ShipDestroyer
	}
	n := rng.Intn(total)
	for i, w := range weights {
		if n < w {
			return types[i]
		}
		n -= w
	}
	return fleet.ShipDestroyer
}

func scoutCount(pl *economy.Player, planets []*economy.Planet) int {
	n := 0
	for _, p := range planets {
		n += p.Fleet.CountOf(fleet.ShipScout)
		for _, it := range p.BuildQueue {
			if it.Kind == economy.KindStarship && it.Ship == fleet.ShipScout {
				n++
			}
		}
	}
	for _, f := range pl.FleetsInTransit {
		n += f.CountOf(fleet.ShipScout)
	}
	return n
}

func (e *Engine) chooseGoal(pl *economy.Player, p *economy.Planet, explore bool, scouts int, rng *rand.Rand) economy.BuildGoal {
	if explore && scouts == 0 {
		return economy.BuildGoal{Kind: economy.KindStarship, Ship: fleet.ShipScout}
	}
	if imp, ok := nextImprovement(p); ok {
		return economy.BuildGoal{Kind: economy.KindImprovement, Improvement: imp}
	}
	big := p.Type == galaxy.PlanetClass2 || p.Type == galaxy.PlanetClass1
	if !explore && big && !p.Fleet.HasSpacePlatform &&
		p.QueuedCount(economy.KindImprovement, economy.ImprovementSpacePlatform) == 0 {
		return economy.BuildGoal{Kind: economy.KindImprovement, Improvement: economy.ImprovementSpacePlatform}
	}
	if explore {
		return economy.BuildGoal{Kind: economy.KindStarship, Ship: fleet.ShipScout}
	}
	return economy.BuildGoal{Kind: economy.KindStarship, Ship: pickWarship(pl, rng)}
}

func (e *Engine) selectBuildGoals(w World, pl *economy.Player, planets []*economy.Planet, rng *rand.Rand) {
	explore := exploring(w, pl)
	scouts := scoutCount(pl, planets)
	for _, p := range planets {
		if _, ok := pl.BuildGoals[p.ID]; ok {
			continue
		}
		g := e.chooseGoal(pl, p, explore, scouts, rng)
		if g.Kind == economy.KindStarship && g.Ship == fleet.ShipScout {
			scouts++
		}
		pl.BuildGoals[p.ID] = g
	}

	for _, p := range planets {
		g, ok := pl.BuildGoals[p.ID]
		if !ok || len(p.BuildQueue) >= 2 || !pl.Ledger.CanAfford(g.Cost()) {
			continue
		}
		var err error
		if g.Kind == economy.KindStarship {
			err = economy.EnqueueStarship(pl, p, g.Ship)
		} else {
			err = economy.EnqueueImprovement(pl, p, g.Improvement)
		}
		if err != nil && errors.Is(err, economy.ErrInsufficientResources) {
			continue
		}
		if err != nil {
			e.logger.Printf("ai %s: planet %d: drop goal %s: %v", pl.ID, p.ID, goalName(g), err)
		}
		delete(pl.BuildGoals, p.ID)
	}
}

func goalName(g economy.BuildGoal) string {
	if g.Kind == economy.KindStarship {
		return g.Ship.String()
	}
	return g.Improvement.String()
}
