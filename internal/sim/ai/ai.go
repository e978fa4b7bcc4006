// Package ai drives non-human players: build goals, worker assignment and fleet dispatch.
package ai

import (
	"io"
	"log"
	"math/rand"

	"starconquest.ai/internal/sim/economy"
	"starconquest.ai/internal/sim/tuning"
)

// World is the slice of game state the AI reads and mutates.
type World interface {
	CurrentTurn() int
	// Planets returns every planet ordered by id.
	AllPlanets() []*economy.Planet
	Planet(id uint64) *economy.Planet
	NextFleetID() uint64
}

type Engine struct {
	rules  tuning.Tuning
	logger *log.Logger
}

func New(rules tuning.Tuning, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Engine{rules: rules, logger: logger}
}

// TakeTurn runs the three passes in order. Later passes read the goals and worker
// counts set by earlier ones.
func (e *Engine) TakeTurn(w World, pl *economy.Player, rng *rand.Rand) {
	if !pl.Type.IsAI() {
		return
	}
	planets := e.owned(w, pl)
	if len(planets) == 0 {
		return
	}
	e.selectBuildGoals(w, pl, planets, rng)
	e.reassignPopulation(pl, planets, rng)
	e.dispatchFleets(w, pl, planets, rng)
}

func (e *Engine) owned(w World, pl *economy.Player) []*economy.Planet {
	out := make([]*economy.Planet, 0, len(pl.PlanetIDs))
	for _, id := range pl.PlanetIDs {
		p := w.Planet(id)
		if p == nil || p.OwnerID != pl.ID {
			e.logger.Printf("ai %s: planet %d indexed but not owned", pl.ID, id)
			continue
		}
		out = append(out, p)
	}
	return out
}

func exploring(w World, pl *economy.Player) bool {
	for _, p := range w.AllPlanets() {
		if p.OwnerID != pl.ID && !pl.Explored[p.ID] {
			return true
		}
	}
	return false
}

func staleness(pl *economy.Player, rules tuning.AI) int {
	switch pl.Type {
	case economy.PlayerHard, economy.PlayerExpert:
		return rules.IntelStalenessTurns
	default:
		// Easy and normal tiers only trust what they saw last turn.
		return 1
	}
}
