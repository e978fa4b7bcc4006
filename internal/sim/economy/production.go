package economy

import (
	"errors"
	"fmt"
	"math"

	"starconquest.ai/internal/sim/fleet"
)

type ProductionKind uint8

const (
	KindImprovement ProductionKind = iota + 1
	KindStarship
	KindDemolish
)

func (k ProductionKind) String() string {
	switch k {
	case KindImprovement:
		return "IMPROVEMENT"
	case KindStarship:
		return "STARSHIP"
	case KindDemolish:
		return "DEMOLISH"
	default:
		return "UNKNOWN"
	}
}

func ParseProductionKind(s string) (ProductionKind, bool) {
	for _, k := range []ProductionKind{KindImprovement, KindStarship, KindDemolish} {
		if k.String() == s {
			return k, true
		}
	}
	return 0, false
}

// ProductionItem is a tagged union over improvements, starships and demolitions sharing
// one cost-and-progress record. Improvement is set for KindImprovement and KindDemolish,
// Ship for KindStarship.
type ProductionItem struct {
	Kind        ProductionKind
	Improvement ImprovementType
	Ship        fleet.ShipType
	Cost        Cost
	Completed   float64
}

var improvementCosts = map[ImprovementType]Cost{
	ImprovementFarm:          {Production: 6, Gold: 2},
	ImprovementMine:          {Production: 12, Gold: 4, Ore: 2},
	ImprovementColony:        {Production: 16, Gold: 6, Ore: 2, Iridium: 1},
	ImprovementFactory:       {Production: 24, Gold: 8, Ore: 4, Iridium: 2},
	ImprovementSpacePlatform: {Production: 64, Gold: 24, Ore: 40, Iridium: 20},
}

var starshipCosts = map[fleet.ShipType]Cost{
	fleet.ShipDefense:    {Production: 2, Gold: 1, Ore: 1},
	fleet.ShipScout:      {Production: 4, Gold: 2, Ore: 2},
	fleet.ShipDestroyer:  {Production: 8, Gold: 3, Ore: 4, Iridium: 1},
	fleet.ShipCruiser:    {Production: 16, Gold: 6, Ore: 8, Iridium: 3},
	fleet.ShipBattleship: {Production: 32, Gold: 12, Ore: 16, Iridium: 6},
}

func ImprovementCost(t ImprovementType) Cost { return improvementCosts[t] }

func StarshipCost(t fleet.ShipType) Cost { return starshipCosts[t] }

// DemolishCost is a quarter of the improvement's production and no resources.
func DemolishCost(t ImprovementType) Cost {
	return Cost{Production: improvementCosts[t].Production / 4}
}

func NewImprovementItem(t ImprovementType) *ProductionItem {
	return &ProductionItem{Kind: KindImprovement, Improvement: t, Cost: ImprovementCost(t)}
}

func NewStarshipItem(t fleet.ShipType) *ProductionItem {
	return &ProductionItem{Kind: KindStarship, Ship: t, Cost: StarshipCost(t)}
}

func NewDemolishItem(t ImprovementType) *ProductionItem {
	return &ProductionItem{Kind: KindDemolish, Improvement: t, Cost: DemolishCost(t)}
}

func (it *ProductionItem) Name() string {
	switch it.Kind {
	case KindStarship:
		return it.Ship.String()
	case KindDemolish:
		return "DEMOLISH_" + it.Improvement.String()
	default:
		return it.Improvement.String()
	}
}

func (it *ProductionItem) Remaining() float64 {
	r := it.Cost.Production - it.Completed
	if r < 0 {
		return 0
	}
	return r
}

// refund is the unspent fraction of the resource cost.
func (it *ProductionItem) refund() (gold, ore, iridium int) {
	if it.Cost.Production <= 0 {
		return it.Cost.Gold, it.Cost.Ore, it.Cost.Iridium
	}
	frac := 1 - it.Completed/it.Cost.Production
	if frac < 0 {
		frac = 0
	}
	f := func(v int) int { return int(math.Floor(float64(v) * frac)) }
	return f(it.Cost.Gold), f(it.Cost.Ore), f(it.Cost.Iridium)
}

var (
	ErrInsufficientResources = errors.New("insufficient resources")
	ErrNoImprovementSlots    = errors.New("no free improvement slots")
	ErrAlreadyHasPlatform    = errors.New("planet already has a space platform")
	ErrNothingToDemolish     = errors.New("no such improvement to demolish")
	ErrInvalidQueueIndex     = errors.New("invalid build queue index")
	ErrNotResearched         = errors.New("ship type not researched")
	ErrUnknownItem           = errors.New("unknown production item")
)

func EnqueueImprovement(pl *Player, p *Planet, t ImprovementType) error {
	cost, ok := improvementCosts[t]
	if !ok {
		return fmt.Errorf("%w: %v", ErrUnknownItem, t)
	}
	if t == ImprovementSpacePlatform {
		if p.Fleet.HasSpacePlatform || p.QueuedCount(KindImprovement, t) > 0 {
			return ErrAlreadyHasPlatform
		}
	} else if p.FreeSlots() <= 0 {
		return ErrNoImprovementSlots
	}
	if !pl.Ledger.Pay(cost) {
		return ErrInsufficientResources
	}
	p.BuildQueue = append(p.BuildQueue, NewImprovementItem(t))
	return nil
}

func EnqueueStarship(pl *Player, p *Planet, t fleet.ShipType) error {
	cost, ok := starshipCosts[t]
	if !ok {
		return fmt.Errorf("%w: %v", ErrUnknownItem, t)
	}
	if !pl.Research.ShipUnlocked(t) {
		return fmt.Errorf("%w: %s", ErrNotResearched, t)
	}
	if !pl.Ledger.Pay(cost) {
		return ErrInsufficientResources
	}
	p.BuildQueue = append(p.BuildQueue, NewStarshipItem(t))
	p.LastStarshipType = t
	return nil
}

func EnqueueDemolish(p *Planet, t ImprovementType) error {
	if t == ImprovementSpacePlatform {
		if !p.Fleet.HasSpacePlatform || p.QueuedCount(KindDemolish, t) > 0 {
			return ErrNothingToDemolish
		}
	} else if p.Improvements[t]-p.QueuedCount(KindDemolish, t) <= 0 {
		return ErrNothingToDemolish
	}
	if t == ImprovementColony && len(p.Population) > p.MaxPopulation()-1-p.QueuedCount(KindDemolish, t) {
		return fmt.Errorf("%w: population would exceed colony capacity", ErrNothingToDemolish)
	}
	p.BuildQueue = append(p.BuildQueue, NewDemolishItem(t))
	return nil
}

// RemoveFromQueue drops the item at index and refunds its unspent fraction.
func RemoveFromQueue(pl *Player, p *Planet, index int) (*ProductionItem, error) {
	if index < 0 || index >= len(p.BuildQueue) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidQueueIndex, index)
	}
	it := p.BuildQueue[index]
	p.BuildQueue = append(p.BuildQueue[:index], p.BuildQueue[index+1:]...)
	pl.Ledger.Refund(it.refund())
	return it, nil
}

// ReorderQueue moves the item at from to position to.
func ReorderQueue(p *Planet, from, to int) error {
	n := len(p.BuildQueue)
	if from < 0 || from >= n || to < 0 || to >= n {
		return fmt.Errorf("%w: %d -> %d", ErrInvalidQueueIndex, from, to)
	}
	it := p.BuildQueue[from]
	q := append(p.BuildQueue[:from:from], p.BuildQueue[from+1:]...)
	q = append(q[:to], append([]*ProductionItem{it}, q[to:]...)...)
	p.BuildQueue = q
	return nil
}

// BuildResult describes the item a planet finished this turn.
type BuildResult struct {
	Item *ProductionItem
	// Set when the item was a starship.
	Ship *fleet.StarShip
}

// ShipIDs mints starship ids.
type ShipIDs interface {
	NextShipID() uint64
}

// AdvanceBuildQueue spends the planet's banked production on the head of the queue.
// At most one item completes per turn; leftover production stays banked for the next item.
func AdvanceBuildQueue(p *Planet, ids ShipIDs) *BuildResult {
	if len(p.BuildQueue) == 0 {
		return nil
	}
	it := p.BuildQueue[0]
	if it.Kind == KindDemolish && it.Improvement == ImprovementColony && len(p.Population) > p.MaxPopulation()-1 {
		// Held until the population fits the smaller cap.
		return nil
	}
	need := it.Remaining()
	if p.ProductionBank < need {
		it.Completed += p.ProductionBank
		p.ProductionBank = 0
		return nil
	}
	p.ProductionBank -= need
	it.Completed = it.Cost.Production
	p.BuildQueue = p.BuildQueue[1:]

	res := &BuildResult{Item: it}
	switch it.Kind {
	case KindImprovement:
		if it.Improvement == ImprovementSpacePlatform {
			p.Fleet.HasSpacePlatform = true
			p.Fleet.SpacePlatformDamage = 0
		} else {
			p.Improvements[it.Improvement]++
		}
	case KindDemolish:
		if it.Improvement == ImprovementSpacePlatform {
			p.Fleet.HasSpacePlatform = false
			p.Fleet.SpacePlatformDamage = 0
		} else if p.Improvements[it.Improvement] > 0 {
			p.Improvements[it.Improvement]--
			if p.Improvements[it.Improvement] == 0 {
				delete(p.Improvements, it.Improvement)
			}
		}
	case KindStarship:
		s := fleet.NewStarShip(ids.NextShipID(), it.Ship)
		p.Fleet.Add(s)
		res.Ship = s
	}
	return res
}
