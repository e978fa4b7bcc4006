// Package game owns one game's arena of players, planets and fleets, applies player
// actions and resolves turns.
package game

import (
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand"
	"sort"

	"starconquest.ai/internal/sim/ai"
	"starconquest.ai/internal/sim/economy"
	"starconquest.ai/internal/sim/fleet"
	"starconquest.ai/internal/sim/galaxy"
	"starconquest.ai/internal/sim/tuning"
)

var (
	ErrUnknownPlanet = errors.New("unknown planet")
	ErrUnknownPlayer = errors.New("unknown player")
	ErrBadPlayers    = errors.New("bad player list")
)

// IDs is the per-game id allocator. Every counter holds the last id handed out.
type IDs struct {
	Planet     uint64
	Fleet      uint64
	Ship       uint64
	TradeOrder uint64
}

func (c *IDs) NextPlanetID() uint64 {
	c.Planet++
	return c.Planet
}

func (c *IDs) NextFleetID() uint64 {
	c.Fleet++
	return c.Fleet
}

func (c *IDs) NextShipID() uint64 {
	c.Ship++
	return c.Ship
}

func (c *IDs) NextTradeOrderID() uint64 {
	c.TradeOrder++
	return c.TradeOrder
}

type PlayerSpec struct {
	ID   string
	Name string
	Type economy.PlayerType
}

type Game struct {
	ID      string
	Seed    int64
	Turn    int
	Options galaxy.Options

	// Unix seconds when the current turn opened for actions.
	TurnStarted int64

	Players     map[string]*economy.Player
	PlayerOrder []string
	Planets     map[uint64]*economy.Planet
	planetOrder []uint64
	Trading     *economy.TradingCenter
	Destroyed   []string

	ids    IDs
	rules  tuning.Tuning
	logger *log.Logger
	ai     seatAI
}

// seatAI plays the non-human seats.
type seatAI interface {
	TakeTurn(w ai.World, pl *economy.Player, rng *rand.Rand)
}

func newGame(id string, seed int64, opts galaxy.Options, rules tuning.Tuning, logger *log.Logger) *Game {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Game{
		ID:      id,
		Seed:    seed,
		Options: opts,
		Players: map[string]*economy.Player{},
		Planets: map[uint64]*economy.Planet{},
		Trading: economy.NewTradingCenter(rules.Market),
		rules:   rules,
		logger:  logger,
		ai:      ai.New(rules, logger),
	}
}

// StartGame generates the galaxy and seats one player per system on its home planet.
func StartGame(id string, seed int64, players []PlayerSpec, opts galaxy.Options, rules tuning.Tuning, logger *log.Logger) (*Game, error) {
	opts.Normalize()
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if len(players) == 0 || len(players) > opts.Systems {
		return nil, fmt.Errorf("%w: %d players for %d systems", ErrBadPlayers, len(players), opts.Systems)
	}
	seen := map[string]bool{}
	for _, ps := range players {
		if ps.ID == "" || seen[ps.ID] {
			return nil, fmt.Errorf("%w: empty or duplicate id %q", ErrBadPlayers, ps.ID)
		}
		if ps.Type == 0 {
			return nil, fmt.Errorf("%w: player %s has no type", ErrBadPlayers, ps.ID)
		}
		seen[ps.ID] = true
	}

	rng := rand.New(rand.NewSource(seed))
	layout, err := galaxy.Generate(opts, rng)
	if err != nil {
		return nil, err
	}

	g := newGame(id, seed, opts, rules, logger)
	homes := map[int]*economy.Planet{}
	for _, sys := range layout.Systems {
		for i, pl := range sys.Planets {
			name := fmt.Sprintf("%c%d", 'A'+sys.Index, i+1)
			p := economy.NewPlanet(g.ids.NextPlanetID(), name, pl.Type, pl.Hex, sys.Index, g.ids.NextFleetID())
			g.addPlanet(p)
			if pl.Home {
				homes[sys.Index] = p
				continue
			}
			economy.NativeFleet(p, rules.Combat, &g.ids)
		}
	}

	for i, ps := range players {
		home := homes[i]
		if home == nil {
			return nil, fmt.Errorf("system %d has no home planet", i)
		}
		pl := economy.NewPlayer(ps.ID, ps.Name, ps.Type, rules)
		g.Players[pl.ID] = pl
		g.PlayerOrder = append(g.PlayerOrder, pl.ID)
		g.seatPlayer(pl, home)
	}
	// Unclaimed home planets become ordinary neutral planets.
	for i := len(players); i < opts.Systems; i++ {
		if home := homes[i]; home != nil {
			economy.NativeFleet(home, rules.Combat, &g.ids)
		}
	}
	return g, nil
}

// Starting split for a fresh home planet: half farmers, one miner, the rest builders.
func (g *Game) seatPlayer(pl *economy.Player, home *economy.Planet) {
	eco := g.rules.Economy
	home.OwnerID = pl.ID
	home.Fleet.OwnerID = pl.ID
	home.Food = eco.StartingFood
	n := min(eco.StartingPopulation, home.MaxPopulation())
	for i := 0; i < n; i++ {
		w := economy.WorkerBuilder
		switch {
		case i < n/2:
			w = economy.WorkerFarmer
		case i == n/2:
			w = economy.WorkerMiner
		}
		home.Population = append(home.Population, &economy.Citizen{Worker: w, LoyalTo: pl.ID})
	}
	home.Fleet.Add(
		fleet.NewStarShip(g.ids.NextShipID(), fleet.ShipDefense),
		fleet.NewStarShip(g.ids.NextShipID(), fleet.ShipDefense),
		fleet.NewStarShip(g.ids.NextShipID(), fleet.ShipScout),
	)
	pl.HomePlanetID = home.ID
	pl.AddPlanet(home.ID)
	pl.MarkExplored(home.ID, home.Fleet.Strength(), pl.ID, g.Turn)
}

func (g *Game) addPlanet(p *economy.Planet) {
	g.Planets[p.ID] = p
	i := sort.Search(len(g.planetOrder), func(i int) bool { return g.planetOrder[i] >= p.ID })
	g.planetOrder = append(g.planetOrder, 0)
	copy(g.planetOrder[i+1:], g.planetOrder[i:])
	g.planetOrder[i] = p.ID
}

func (g *Game) Rules() tuning.Tuning { return g.rules }

func (g *Game) SetLogger(l *log.Logger) {
	if l == nil {
		l = log.New(io.Discard, "", 0)
	}
	g.logger = l
	g.ai = ai.New(g.rules, l)
}

func (g *Game) CurrentTurn() int { return g.Turn }

func (g *Game) AllPlanets() []*economy.Planet {
	out := make([]*economy.Planet, 0, len(g.planetOrder))
	for _, id := range g.planetOrder {
		out = append(out, g.Planets[id])
	}
	return out
}

func (g *Game) Planet(id uint64) *economy.Planet { return g.Planets[id] }

func (g *Game) NextFleetID() uint64 { return g.ids.NextFleetID() }

func (g *Game) NextShipID() uint64 { return g.ids.NextShipID() }

func (g *Game) Player(id string) *economy.Player { return g.Players[id] }

func (g *Game) IsDestroyed(id string) bool {
	for _, d := range g.Destroyed {
		if d == id {
			return true
		}
	}
	return false
}

// active players still take part in resolution.
func (g *Game) active(pl *economy.Player) bool {
	return pl != nil && !g.IsDestroyed(pl.ID)
}

// ownedPlanets resolves a player's planet index, skipping ids that no longer point at a
// planet it owns.
func (g *Game) ownedPlanets(pl *economy.Player) []*economy.Planet {
	out := make([]*economy.Planet, 0, len(pl.PlanetIDs))
	for _, id := range pl.PlanetIDs {
		p := g.Planets[id]
		if p == nil || p.OwnerID != pl.ID {
			g.logger.Printf("game %s: player %s: stale planet index %d", g.ID, pl.ID, id)
			continue
		}
		out = append(out, p)
	}
	return out
}

// AllHumansEnded reports whether every active human player has ended the turn.
func (g *Game) AllHumansEnded() bool {
	for _, id := range g.PlayerOrder {
		pl := g.Players[id]
		if !g.active(pl) || pl.Type != economy.PlayerHuman || pl.Resigned {
			continue
		}
		if !pl.TurnEnded {
			return false
		}
	}
	return true
}
