package galaxy

import (
	"errors"
	"fmt"
	"math/rand"
)

type PlanetType uint8

const (
	PlanetAsteroidBelt PlanetType = iota + 1
	PlanetDead
	PlanetClass1
	PlanetClass2
)

func (t PlanetType) String() string {
	switch t {
	case PlanetAsteroidBelt:
		return "ASTEROID"
	case PlanetDead:
		return "DEAD"
	case PlanetClass1:
		return "CLASS_1"
	case PlanetClass2:
		return "CLASS_2"
	default:
		return "UNKNOWN"
	}
}

func ParsePlanetType(s string) (PlanetType, bool) {
	for _, t := range []PlanetType{PlanetAsteroidBelt, PlanetDead, PlanetClass1, PlanetClass2} {
		if t.String() == s {
			return t, true
		}
	}
	return 0, false
}

type Options struct {
	Systems          int  `json:"systems"`
	PlanetsPerSystem int  `json:"planets_per_system"`
	SizeMultiplier   int  `json:"size_multiplier"`
	DistributeEvenly bool `json:"distribute_evenly"`
	// Optional per-turn wall clock limit. Enforced by the caller, not the engine.
	TurnTimeLimitSeconds int `json:"turn_time_limit_seconds,omitempty"`
}

func (o *Options) Normalize() {
	if o.SizeMultiplier <= 0 {
		o.SizeMultiplier = 1
	}
}

func (o Options) Validate() error {
	if o.Systems < 2 || o.Systems > 4 {
		return fmt.Errorf("systems must be 2..4, got %d", o.Systems)
	}
	if o.PlanetsPerSystem < 4 || o.PlanetsPerSystem > 8 {
		return fmt.Errorf("planets_per_system must be 4..8, got %d", o.PlanetsPerSystem)
	}
	if o.SizeMultiplier < 1 || o.SizeMultiplier > 4 {
		return fmt.Errorf("size_multiplier must be 1..4, got %d", o.SizeMultiplier)
	}
	if o.TurnTimeLimitSeconds < 0 {
		return errors.New("turn_time_limit_seconds must be >= 0")
	}
	return nil
}

type Placement struct {
	Hex  Hex
	Type PlanetType
	Home bool
}

type System struct {
	Index   int
	Center  Hex
	Planets []Placement
}

type Layout struct {
	Systems []System
}

// All returns every placement in system order.
func (l Layout) All() []Placement {
	var out []Placement
	for _, s := range l.Systems {
		out = append(out, s.Planets...)
	}
	return out
}

// systemDirections picks ring directions that keep systems apart for each count.
var systemDirections = map[int][]int{
	2: {0, 3},
	3: {0, 2, 4},
	4: {0, 1, 3, 4},
}

// evenTypes is the per-system multiset used when distributing evenly (after the home planet).
var evenTypes = []PlanetType{PlanetClass1, PlanetDead, PlanetAsteroidBelt, PlanetClass2, PlanetClass1, PlanetDead, PlanetAsteroidBelt}

// Generate lays out systems and planets. Every system gets one class-2 home planet at the
// first slot; the remaining planets occupy distinct hexes within radius 2 of the system center.
func Generate(opts Options, rng *rand.Rand) (Layout, error) {
	opts.Normalize()
	if err := opts.Validate(); err != nil {
		return Layout{}, err
	}
	radius := 6 * opts.SizeMultiplier
	var layout Layout
	for i, dir := range systemDirections[opts.Systems] {
		center := Directions[dir].Scale(radius)
		slots := Spiral(center, 2)[1:]
		rng.Shuffle(len(slots), func(a, b int) { slots[a], slots[b] = slots[b], slots[a] })

		types := make([]PlanetType, 0, opts.PlanetsPerSystem)
		types = append(types, PlanetClass2)
		if opts.DistributeEvenly {
			rest := append([]PlanetType(nil), evenTypes[:opts.PlanetsPerSystem-1]...)
			rng.Shuffle(len(rest), func(a, b int) { rest[a], rest[b] = rest[b], rest[a] })
			types = append(types, rest...)
		} else {
			for len(types) < opts.PlanetsPerSystem {
				types = append(types, randomPlanetType(rng))
			}
		}

		sys := System{Index: i, Center: center}
		for j, t := range types {
			sys.Planets = append(sys.Planets, Placement{Hex: slots[j], Type: t, Home: j == 0})
		}
		layout.Systems = append(layout.Systems, sys)
	}
	return layout, nil
}

func randomPlanetType(rng *rand.Rand) PlanetType {
	switch n := rng.Intn(10); {
	case n < 2:
		return PlanetClass2
	case n < 5:
		return PlanetClass1
	case n < 8:
		return PlanetDead
	default:
		return PlanetAsteroidBelt
	}
}
