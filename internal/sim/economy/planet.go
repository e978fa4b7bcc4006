package economy

import (
	"errors"
	"fmt"

	"starconquest.ai/internal/sim/fleet"
	"starconquest.ai/internal/sim/galaxy"
)

// PlanetRates are the per-worker outputs fixed by planet type.
type PlanetRates struct {
	FoodPerFarmer       float64
	OrePerMiner         float64
	IridiumPerMiner     float64
	ProductionPerWorker float64
	MaxImprovements     int
	BasePopulation      int
}

var planetRates = map[galaxy.PlanetType]PlanetRates{
	galaxy.PlanetClass2:       {FoodPerFarmer: 2, OrePerMiner: 0.5, IridiumPerMiner: 0.25, ProductionPerWorker: 1, MaxImprovements: 9, BasePopulation: 4},
	galaxy.PlanetClass1:       {FoodPerFarmer: 1, OrePerMiner: 0.75, IridiumPerMiner: 0.5, ProductionPerWorker: 1, MaxImprovements: 6, BasePopulation: 3},
	galaxy.PlanetDead:         {FoodPerFarmer: 0.5, OrePerMiner: 1, IridiumPerMiner: 0.5, ProductionPerWorker: 0.75, MaxImprovements: 5, BasePopulation: 2},
	galaxy.PlanetAsteroidBelt: {FoodPerFarmer: 0.25, OrePerMiner: 1.5, IridiumPerMiner: 1, ProductionPerWorker: 0.5, MaxImprovements: 3, BasePopulation: 1},
}

func RatesFor(t galaxy.PlanetType) PlanetRates { return planetRates[t] }

type ImprovementType uint8

const (
	ImprovementFarm ImprovementType = iota + 1
	ImprovementMine
	ImprovementFactory
	ImprovementColony
	ImprovementSpacePlatform
)

var AllImprovements = []ImprovementType{ImprovementFarm, ImprovementMine, ImprovementFactory, ImprovementColony, ImprovementSpacePlatform}

func (t ImprovementType) String() string {
	switch t {
	case ImprovementFarm:
		return "FARM"
	case ImprovementMine:
		return "MINE"
	case ImprovementFactory:
		return "FACTORY"
	case ImprovementColony:
		return "COLONY"
	case ImprovementSpacePlatform:
		return "SPACE_PLATFORM"
	default:
		return "UNKNOWN"
	}
}

func ParseImprovement(s string) (ImprovementType, bool) {
	for _, t := range AllImprovements {
		if t.String() == s {
			return t, true
		}
	}
	return 0, false
}

// UsesSlot reports whether the improvement counts against MaxImprovements.
func (t ImprovementType) UsesSlot() bool { return t != ImprovementSpacePlatform }

type WorkerType uint8

const (
	WorkerFarmer WorkerType = iota + 1
	WorkerMiner
	WorkerBuilder
)

var AllWorkerTypes = []WorkerType{WorkerFarmer, WorkerMiner, WorkerBuilder}

func (w WorkerType) String() string {
	switch w {
	case WorkerFarmer:
		return "FARMER"
	case WorkerMiner:
		return "MINER"
	case WorkerBuilder:
		return "WORKER"
	default:
		return "UNKNOWN"
	}
}

func ParseWorkerType(s string) (WorkerType, bool) {
	for _, w := range AllWorkerTypes {
		if w.String() == s {
			return w, true
		}
	}
	return 0, false
}

type Citizen struct {
	Worker       WorkerType
	ProtestLevel float64
	LoyalTo      string
}

// Effort is how much of a worker this citizen currently is.
func (c *Citizen) Effort() float64 {
	e := 1 - c.ProtestLevel
	if e < 0 {
		return 0
	}
	return e
}

var ErrBadWorkerSplit = errors.New("worker split does not match population")

type Planet struct {
	ID          uint64
	Name        string
	Type        galaxy.PlanetType
	Hex         galaxy.Hex
	SystemIndex int

	// Empty when unowned.
	OwnerID string

	Population   []*Citizen
	BuildQueue   []*ProductionItem
	Improvements map[ImprovementType]int

	Food             int
	Remainders       Remainders
	ProductionBank   float64
	PopulationGrowth float64

	// Stationed fleet. Never nil.
	Fleet *fleet.Fleet

	WaypointPlanetID  uint64
	BuildLastStarship bool
	LastStarshipType  fleet.ShipType
}

func NewPlanet(id uint64, name string, t galaxy.PlanetType, hex galaxy.Hex, system int, fleetID uint64) *Planet {
	return &Planet{
		ID:           id,
		Name:         name,
		Type:         t,
		Hex:          hex,
		SystemIndex:  system,
		Improvements: map[ImprovementType]int{},
		Fleet:        fleet.New(fleetID, ""),
	}
}

func (p *Planet) Owned() bool { return p.OwnerID != "" }

func (p *Planet) Rates() PlanetRates { return RatesFor(p.Type) }

// MaxPopulation is the base slots plus one per colony built.
func (p *Planet) MaxPopulation() int {
	return p.Rates().BasePopulation + p.Improvements[ImprovementColony]
}

// GrowthCap is MaxPopulation less the colonies queued for demolition, so growth never
// fills a slot that is about to go away.
func (p *Planet) GrowthCap() int {
	return p.MaxPopulation() - p.QueuedCount(KindDemolish, ImprovementColony)
}

func (p *Planet) BuiltSlots() int {
	n := 0
	for t, c := range p.Improvements {
		if t.UsesSlot() {
			n += c
		}
	}
	return n
}

// QueuedSlots counts queued improvements that will occupy a slot once built. Queued
// demolitions free nothing until they complete.
func (p *Planet) QueuedSlots() int {
	n := 0
	for _, it := range p.BuildQueue {
		if it.Kind == KindImprovement && it.Improvement.UsesSlot() {
			n++
		}
	}
	return n
}

func (p *Planet) FreeSlots() int {
	return p.Rates().MaxImprovements - p.BuiltSlots() - p.QueuedSlots()
}

func (p *Planet) QueuedCount(kind ProductionKind, imp ImprovementType) int {
	n := 0
	for _, it := range p.BuildQueue {
		if it.Kind == kind && it.Improvement == imp {
			n++
		}
	}
	return n
}

func (p *Planet) WorkerCounts() map[WorkerType]int {
	out := map[WorkerType]int{}
	for _, c := range p.Population {
		out[c.Worker]++
	}
	return out
}

func (p *Planet) AverageProtest() float64 {
	if len(p.Population) == 0 {
		return 0
	}
	sum := 0.0
	for _, c := range p.Population {
		sum += c.ProtestLevel
	}
	return sum / float64(len(p.Population))
}

// SetWorkerSplit reassigns citizens so the role counts match. Citizens already holding a
// wanted role keep it.
func (p *Planet) SetWorkerSplit(farmers, miners, builders int) error {
	if farmers < 0 || miners < 0 || builders < 0 || farmers+miners+builders != len(p.Population) {
		return fmt.Errorf("%w: %d+%d+%d vs %d", ErrBadWorkerSplit, farmers, miners, builders, len(p.Population))
	}
	want := map[WorkerType]int{WorkerFarmer: farmers, WorkerMiner: miners, WorkerBuilder: builders}
	have := map[WorkerType]int{}
	var spare []*Citizen
	for _, c := range p.Population {
		if have[c.Worker] < want[c.Worker] {
			have[c.Worker]++
			continue
		}
		spare = append(spare, c)
	}
	for _, w := range AllWorkerTypes {
		for have[w] < want[w] && len(spare) > 0 {
			spare[0].Worker = w
			spare = spare[1:]
			have[w]++
		}
	}
	return nil
}

// ClearOwner reverts the planet to unowned, dropping every owner-scoped field.
func (p *Planet) ClearOwner() {
	p.OwnerID = ""
	p.BuildQueue = nil
	p.ProductionBank = 0
	p.Remainders = Remainders{}
	p.WaypointPlanetID = 0
	p.BuildLastStarship = false
	p.LastStarshipType = 0
	p.Fleet.OwnerID = ""
}

// TransferTo hands the planet to a new owner; every citizen becomes loyal to the new owner
// and protests at protestLevel.
func (p *Planet) TransferTo(ownerID string, protestLevel float64) {
	p.ClearOwner()
	p.OwnerID = ownerID
	p.Fleet.OwnerID = ownerID
	for _, c := range p.Population {
		c.LoyalTo = ownerID
		c.ProtestLevel = protestLevel
	}
}
