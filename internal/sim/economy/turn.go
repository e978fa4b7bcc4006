package economy

import (
	"fmt"
	"math"

	"starconquest.ai/internal/sim/events"
	"starconquest.ai/internal/sim/fleet"
	"starconquest.ai/internal/sim/tuning"
)

// WorkerOutput is what one fully effective worker of each role produces on p.
// Food is per farmer, Ore and Iridium per miner, Production per builder.
func WorkerOutput(pl *Player, p *Planet, rules tuning.Economy) Yield {
	r := p.Rates()
	boost := func(imp ImprovementType) float64 {
		b := 1 + rules.ImprovementBonus*float64(p.Improvements[imp])
		if pl != nil {
			b *= 1 + pl.Research.EfficiencyBonus(imp)
		}
		return b
	}
	mine := boost(ImprovementMine)
	return Yield{
		Food:       r.FoodPerFarmer * boost(ImprovementFarm),
		Ore:        r.OrePerMiner * mine,
		Iridium:    r.IridiumPerMiner * mine,
		Production: r.ProductionPerWorker * boost(ImprovementFactory),
		Gold:       rules.GoldPerCitizen,
	}
}

// PlanetYield is one turn of raw output before remainders are carried.
func PlanetYield(pl *Player, p *Planet, rules tuning.Economy) Yield {
	var farmers, miners, builders, all float64
	for _, c := range p.Population {
		e := c.Effort()
		all += e
		switch c.Worker {
		case WorkerFarmer:
			farmers += e
		case WorkerMiner:
			miners += e
		case WorkerBuilder:
			builders += e
		}
	}
	w := WorkerOutput(pl, p, rules)
	return Yield{
		Food:       farmers * w.Food,
		Ore:        miners * w.Ore,
		Iridium:    miners * w.Iridium,
		Production: builders * w.Production,
		Gold:       all * w.Gold,
	}
}

// GenerateResources credits a planet's yield: food to the planet, ore/iridium/gold to the
// owner, production to the planet's bank. The research share of gold is returned as points.
func GenerateResources(pl *Player, p *Planet, rules tuning.Economy) (researchPoints float64) {
	y := PlanetYield(pl, p, rules)
	researchPoints = y.Gold * pl.Research.Percent
	y.Gold -= researchPoints
	w := AccumulateResourceRemainders(&p.Remainders, y)
	p.Food += w.Food
	pl.Ledger.Gold += w.Gold
	pl.Ledger.Ore += w.Ore
	pl.Ledger.Iridium += w.Iridium
	p.ProductionBank += y.Production
	return researchPoints
}

func FoodNeeded(p *Planet, rules tuning.Economy) int {
	return int(math.Ceil(float64(len(p.Population)) * rules.FoodPerCitizen))
}

// FoodOutcome reports what a player's food pass did.
type FoodOutcome struct {
	Events   []events.Event
	Starving map[uint64]bool
	// Planets that starved to zero population and reverted to unowned.
	Lost []uint64
}

// ResolveFood feeds every owned planet. Deficits are covered from other planets' surplus
// first; anything still short starves: one citizen dies and the rest protest harder.
func ResolveFood(planets []*Planet, rules tuning.Economy) FoodOutcome {
	out := FoodOutcome{Starving: map[uint64]bool{}}
	spare := make([]int, len(planets))
	for i, p := range planets {
		spare[i] = p.Food - FoodNeeded(p, rules)
	}
	for i, p := range planets {
		if spare[i] >= 0 {
			continue
		}
		shipped := 0
		for j, src := range planets {
			if spare[i] >= 0 {
				break
			}
			if j == i || spare[j] <= 0 {
				continue
			}
			n := min(spare[j], -spare[i])
			spare[j] -= n
			spare[i] += n
			src.Food -= n
			p.Food += n
			shipped += n
		}
		if shipped > 0 {
			out.Events = append(out.Events, events.Event{
				Type:     events.FoodShipped,
				Message:  fmt.Sprintf("%d food shipped to %s", shipped, p.Name),
				PlanetID: p.ID,
				Amount:   shipped,
			})
		}
	}

	for _, p := range planets {
		need := FoodNeeded(p, rules)
		if p.Food >= need {
			p.Food -= need
			continue
		}
		p.Food = 0
		out.Starving[p.ID] = true
		if len(p.Population) == 0 {
			continue
		}
		p.Population = p.Population[:len(p.Population)-1]
		for _, c := range p.Population {
			c.ProtestLevel = math.Min(1, c.ProtestLevel+rules.StarvationProtestIncrease)
		}
		out.Events = append(out.Events, events.Event{
			Type:     events.PopulationStarvation,
			Message:  fmt.Sprintf("a citizen starved on %s", p.Name),
			PlanetID: p.ID,
			Amount:   1,
		})
		if len(p.Population) == 0 {
			p.ClearOwner()
			out.Lost = append(out.Lost, p.ID)
			out.Events = append(out.Events, events.Event{
				Type:     events.PlanetLostDueToStarvation,
				Message:  fmt.Sprintf("%s was lost to starvation", p.Name),
				PlanetID: p.ID,
			})
		}
	}
	return out
}

func DecayProtest(p *Planet, rules tuning.Economy) {
	for _, c := range p.Population {
		c.ProtestLevel = math.Max(0, c.ProtestLevel-rules.ProtestDecayPerTurn)
	}
}

// GrowPopulation adds a citizen once accumulated growth reaches one. Growth only
// accrues while the planet has food left over after eating.
func GrowPopulation(p *Planet, rules tuning.Economy) *events.Event {
	if p.Food <= 0 || len(p.Population) == 0 {
		return nil
	}
	p.PopulationGrowth += rules.PopulationGrowthRate * float64(len(p.Population))
	if p.PopulationGrowth < 1 {
		return nil
	}
	p.PopulationGrowth = 0
	if len(p.Population) >= p.GrowthCap() {
		return nil
	}
	p.Population = append(p.Population, &Citizen{Worker: WorkerBuilder, LoyalTo: p.OwnerID})
	return &events.Event{
		Type:     events.PopulationGrowth,
		Message:  fmt.Sprintf("population grew on %s", p.Name),
		PlanetID: p.ID,
		Amount:   1,
	}
}

// AutoRefill requeues the last starship when the planet is set to repeat it and the
// queue has run dry.
func AutoRefill(pl *Player, p *Planet) *events.Event {
	if !p.BuildLastStarship || p.LastStarshipType == 0 || len(p.BuildQueue) > 0 {
		return nil
	}
	if err := EnqueueStarship(pl, p, p.LastStarshipType); err != nil {
		return &events.Event{
			Type:     events.InsufficientResources,
			Message:  fmt.Sprintf("could not requeue %s on %s: %v", p.LastStarshipType, p.Name, err),
			PlanetID: p.ID,
		}
	}
	return nil
}

// Strength repaired per unit of each resource.
const (
	repairPerTwoGold = 3
	repairPerOre     = 2
	repairPerIridium = 4
)

// RepairBudget is the strength the ledger can fully pay for, capped at damage.
func RepairBudget(l Ledger, damage int) int {
	s := damage
	s = min(s, l.Gold*repairPerTwoGold/2)
	s = min(s, l.Ore*repairPerOre)
	s = min(s, l.Iridium*repairPerIridium)
	return max(s, 0)
}

func ceilDiv(a, b int) int { return (a + b - 1) / b }

// RepairPlanetaryFleet spends the owner's gold, ore and iridium on the planet's
// stationed fleet.
func RepairPlanetaryFleet(pl *Player, p *Planet) *events.Event {
	s := RepairBudget(pl.Ledger, p.Fleet.TotalDamage())
	if s <= 0 {
		return nil
	}
	s = p.Fleet.Repair(s)
	if s <= 0 {
		return nil
	}
	pl.Ledger.Gold -= ceilDiv(2*s, repairPerTwoGold)
	pl.Ledger.Ore -= ceilDiv(s, repairPerOre)
	pl.Ledger.Iridium -= ceilDiv(s, repairPerIridium)
	return &events.Event{
		Type:     events.ShipsRepaired,
		Message:  fmt.Sprintf("repaired %d strength at %s", s, p.Name),
		PlanetID: p.ID,
		Amount:   s,
	}
}

// CompletedEvent describes a finished build.
func CompletedEvent(p *Planet, r *BuildResult) events.Event {
	e := events.Event{PlanetID: p.ID, Amount: 1}
	switch r.Item.Kind {
	case KindStarship:
		e.Type = events.ShipBuilt
		e.Message = fmt.Sprintf("%s built on %s", r.Item.Ship, p.Name)
	case KindDemolish:
		e.Type = events.ImprovementDemolished
		e.Message = fmt.Sprintf("%s demolished on %s", r.Item.Improvement, p.Name)
	default:
		e.Type = events.ImprovementBuilt
		e.Message = fmt.Sprintf("%s built on %s", r.Item.Improvement, p.Name)
	}
	return e
}

// NativeFleet is the defense an unowned planet of the given class starts with.
func NativeFleet(p *Planet, rules tuning.Combat, ids ShipIDs) {
	n := rules.NativeDefenders[p.Type.String()]
	for i := 0; i < n; i++ {
		p.Fleet.Add(fleet.NewStarShip(ids.NextShipID(), fleet.ShipDefense))
	}
	for i := 0; i < rules.NativePopulation && len(p.Population) < p.MaxPopulation(); i++ {
		p.Population = append(p.Population, &Citizen{Worker: WorkerFarmer})
	}
}

// SendShips detaches counts ships from the fleet stationed at from and puts them in
// transit toward to. The detachment is tracked on the player until it lands.
func SendShips(pl *Player, from, to *Planet, counts map[fleet.ShipType]int, fleetID uint64) (*fleet.Fleet, error) {
	if from.ID == to.ID {
		return nil, fmt.Errorf("%w: origin and destination are the same planet", fleet.ErrImmobile)
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	if total == 0 {
		return nil, fmt.Errorf("%w: no ships selected", fleet.ErrNotEnoughShips)
	}
	f, err := from.Fleet.Split(fleetID, counts)
	if err != nil {
		return nil, err
	}
	f.OwnerID = pl.ID
	if err := f.SendTo(from.ID, from.Hex, to.ID, to.Hex, f.Speed(pl.Research.SpeedBonus())); err != nil {
		from.Fleet.Merge(f)
		return nil, err
	}
	pl.FleetsInTransit = append(pl.FleetsInTransit, f)
	return f, nil
}
