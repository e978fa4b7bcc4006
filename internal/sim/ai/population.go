package ai

import (
	"math"
	"math/rand"
	"sort"

	"starconquest.ai/internal/sim/economy"
)

type assignment struct {
	p        *economy.Planet
	out      economy.Yield
	effort   float64
	free     int
	farmers  int
	miners   int
	builders int
}

func (e *Engine) foodSlack(pl *economy.Player, rng *rand.Rand) float64 {
	band, ok := e.rules.AI.FoodSlack[pl.Type.String()]
	if !ok {
		return 0
	}
	return band[0] + rng.Float64()*(band[1]-band[0])
}

// reassignPopulation covers food first, then the ore and iridium the open build goals
// still need, and puts everyone else to work on production.
func (e *Engine) reassignPopulation(pl *economy.Player, planets []*economy.Planet, rng *rand.Rand) {
	rules := e.rules.Economy
	food := e.foodSlack(pl, rng)
	var ore, iridium float64
	for _, g := range pl.BuildGoals {
		c := g.Cost()
		ore += float64(c.Ore)
		iridium += float64(c.Iridium)
	}
	ore -= float64(pl.Ledger.Ore)
	iridium -= float64(pl.Ledger.Iridium)

	as := make([]*assignment, 0, len(planets))
	for _, p := range planets {
		food += float64(economy.FoodNeeded(p, rules))
		as = append(as, &assignment{
			p:      p,
			out:    economy.WorkerOutput(pl, p, rules),
			effort: 1 - p.AverageProtest(),
			free:   len(p.Population),
		})
	}

	sort.SliceStable(as, func(i, j int) bool { return as[i].out.Food > as[j].out.Food })
	for _, a := range as {
		if food <= 0 {
			break
		}
		per := a.out.Food * a.effort
		if per <= 0 {
			continue
		}
		n := min(a.free, int(math.Ceil(food/per)))
		a.farmers = n
		a.free -= n
		food -= float64(n) * per
	}

	sort.SliceStable(as, func(i, j int) bool { return as[i].out.Ore > as[j].out.Ore })
	for _, a := range as {
		if ore <= 0 && iridium <= 0 {
			break
		}
		if a.effort <= 0 || a.free == 0 {
			continue
		}
		want := 0.0
		if ore > 0 && a.out.Ore > 0 {
			want = math.Max(want, ore/(a.out.Ore*a.effort))
		}
		if iridium > 0 && a.out.Iridium > 0 {
			want = math.Max(want, iridium/(a.out.Iridium*a.effort))
		}
		n := min(a.free, int(math.Ceil(want)))
		a.miners = n
		a.free -= n
		ore -= float64(n) * a.out.Ore * a.effort
		iridium -= float64(n) * a.out.Iridium * a.effort
	}

	for _, a := range as {
		a.builders = a.free
		if err := a.p.SetWorkerSplit(a.farmers, a.miners, a.builders); err != nil {
			e.logger.Printf("ai %s: planet %d: worker split: %v", pl.ID, a.p.ID, err)
		}
	}
}
