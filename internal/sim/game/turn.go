package game

import (
	"errors"
	"fmt"
	"math/rand"
	"runtime/debug"
	"slices"

	"starconquest.ai/internal/sim/battle"
	"starconquest.ai/internal/sim/economy"
	"starconquest.ai/internal/sim/events"
	"starconquest.ai/internal/sim/fleet"
)

var ErrTurnNotReady = errors.New("not every human player has ended the turn")

type TurnResult struct {
	Turn int
	// Per player, highest priority first.
	Events    map[string][]events.Event
	Destroyed []string
}

type arrival struct {
	pl   *economy.Player
	f    *fleet.Fleet
	dest uint64
}

type resolver struct {
	g        *Game
	rng      *rand.Rand
	log      *events.Log
	failed   map[string]bool
	arrivals []arrival
}

// turnRNG derives the battle and AI random source from the game seed and turn number, so a
// game decoded from its document resolves exactly the same way as the in-memory one.
func turnRNG(seed int64, turn int) *rand.Rand {
	return rand.New(rand.NewSource(seed ^ (int64(turn) * 0x5851F42D4C957F2D)))
}

// ResolveTurn runs one resolution pass. It fails with ErrTurnNotReady while a human player
// has not ended the turn.
func (g *Game) ResolveTurn() (TurnResult, error) {
	if !g.AllHumansEnded() {
		return TurnResult{Turn: g.Turn}, ErrTurnNotReady
	}
	return g.ForceResolveTurn()
}

// ForceResolveTurn resolves regardless of end-turn flags (turn time limit).
//
// The game is mutated in place. A returned error means resolution stopped part way; the
// caller must discard this Game and keep the last committed document.
func (g *Game) ForceResolveTurn() (res TurnResult, err error) {
	defer func() {
		if v := recover(); v != nil {
			g.logger.Printf("turn %d: resolution aborted: %v\n%s", g.Turn, v, debug.Stack())
			err = fmt.Errorf("turn %d: resolution aborted: %v", g.Turn, v)
		}
	}()

	g.Turn++
	r := &resolver{
		g:      g,
		rng:    turnRNG(g.Seed, g.Turn),
		log:    events.NewLog(),
		failed: map[string]bool{},
	}
	r.runAI()
	r.executeTrades()
	r.moveFleets()
	r.runEconomy()
	r.repairFleets()
	r.resolveConflicts()
	destroyed := r.checkDestroyed()

	for _, pl := range g.Players {
		pl.TurnEnded = false
	}
	return TurnResult{Turn: g.Turn, Events: r.log.Sorted(), Destroyed: destroyed}, nil
}

// players yields active players in seat order.
func (r *resolver) players() []*economy.Player {
	out := make([]*economy.Player, 0, len(r.g.PlayerOrder))
	for _, id := range r.g.PlayerOrder {
		if pl := r.g.Players[id]; r.g.active(pl) {
			out = append(out, pl)
		}
	}
	return out
}

// safely runs one player's step. A panic marks the player failed for the rest of the turn.
func (r *resolver) safely(pl *economy.Player, step string, fn func()) {
	if r.failed[pl.ID] {
		return
	}
	defer func() {
		if v := recover(); v != nil {
			r.failed[pl.ID] = true
			r.g.logger.Printf("turn %d: player %s: %s: %v", r.g.Turn, pl.ID, step, v)
		}
	}()
	fn()
}

func (r *resolver) runAI() {
	for _, pl := range r.players() {
		if !pl.Type.IsAI() || pl.Resigned {
			continue
		}
		r.safely(pl, "ai", func() { r.g.ai.TakeTurn(r.g, pl, r.rng) })
	}
}

func (r *resolver) executeTrades() {
	g := r.g
	results := g.Trading.Execute(g.Players, g.Planets, g.rules.Market.FeePercent)
	executed := map[string]int{}
	gold := map[string]int{}
	var order []string
	for _, tr := range results {
		id := tr.Order.PlayerID
		if _, ok := executed[id]; !ok {
			order = append(order, id)
			executed[id] = 0
		}
		if !tr.Executed {
			r.log.Add(id, events.Event{
				Type:     events.TradeNotExecuted,
				Message:  fmt.Sprintf("%s %d %s not executed: %s", tr.Order.Type, tr.Order.Amount, tr.Order.Resource, tr.Reason),
				PlanetID: tr.Order.PlanetID,
				Amount:   tr.Order.Amount,
			})
			continue
		}
		executed[id]++
		gold[id] += tr.Gold
	}
	for _, id := range order {
		if executed[id] == 0 {
			continue
		}
		r.log.Add(id, events.Event{
			Type:    events.TradesExecuted,
			Message: fmt.Sprintf("%d trades executed, %d gold net", executed[id], gold[id]),
			Amount:  executed[id],
		})
	}
}

func (r *resolver) moveFleets() {
	for _, pl := range r.players() {
		r.safely(pl, "move fleets", func() { r.movePlayerFleets(pl) })
	}
}

func (r *resolver) movePlayerFleets(pl *economy.Player) {
	g := r.g
	bonus := pl.Research.SpeedBonus()
	// Fresh slice: a panic part way leaves the transit list as it was.
	kept := make([]*fleet.Fleet, 0, len(pl.FleetsInTransit))
	for _, f := range pl.FleetsInTransit {
		if !f.Step(f.Speed(bonus)) {
			kept = append(kept, f)
			continue
		}
		dest := g.Planets[f.DestinationPlanetID]
		if dest == nil {
			origin := g.Planets[f.OriginPlanetID]
			g.logger.Printf("turn %d: player %s: fleet %d: unknown destination %d", g.Turn, pl.ID, f.ID, f.DestinationPlanetID)
			f.Land()
			if origin != nil && origin.OwnerID == pl.ID {
				origin.Fleet.Merge(f)
			}
			continue
		}
		if dest.OwnerID == pl.ID {
			f.Land()
			dest.Fleet.Merge(f)
			r.log.Add(pl.ID, events.Event{
				Type:     events.FleetArrived,
				Message:  fmt.Sprintf("fleet arrived at %s", dest.Name),
				PlanetID: dest.ID,
			})
			continue
		}
		r.arrivals = append(r.arrivals, arrival{pl: pl, f: f, dest: dest.ID})
	}
	pl.FleetsInTransit = kept
}

func (r *resolver) runEconomy() {
	for _, pl := range r.players() {
		r.safely(pl, "economy", func() { r.playerEconomy(pl) })
	}
}

func (r *resolver) playerEconomy(pl *economy.Player) {
	g := r.g
	eco := g.rules.Economy
	planets := g.ownedPlanets(pl)

	for _, p := range planets {
		if e := economy.AutoRefill(pl, p); e != nil {
			r.log.Add(pl.ID, *e)
		}
	}

	points := 0.0
	for _, p := range planets {
		points += economy.GenerateResources(pl, p, eco)
	}
	if t, ok := pl.Research.AddPoints(points, g.rules.Research); ok {
		r.log.Add(pl.ID, events.Event{
			Type:    events.ResearchComplete,
			Message: fmt.Sprintf("%s research reached level %d", t, pl.Research.Progress[t].Level),
			Amount:  pl.Research.Progress[t].Level,
		})
	}

	food := economy.ResolveFood(planets, eco)
	r.log.AddAll(pl.ID, food.Events)
	for _, id := range food.Lost {
		pl.RemovePlanet(id)
	}

	for _, p := range planets {
		if p.OwnerID != pl.ID {
			continue
		}
		starving := food.Starving[p.ID]
		if !starving {
			economy.DecayProtest(p, eco)
		}
		if done := economy.AdvanceBuildQueue(p, g); done != nil {
			r.log.Add(pl.ID, economy.CompletedEvent(p, done))
			if done.Ship != nil {
				r.toWaypoint(pl, p, done.Ship)
			}
		}
		if !starving {
			if e := economy.GrowPopulation(p, eco); e != nil {
				r.log.Add(pl.ID, *e)
			}
		}
	}
}

// toWaypoint sends a freshly built mobile ship on to the planet's waypoint.
func (r *resolver) toWaypoint(pl *economy.Player, p *economy.Planet, s *fleet.StarShip) {
	g := r.g
	if p.WaypointPlanetID == 0 || !s.Type.Mobile() {
		return
	}
	to := g.Planets[p.WaypointPlanetID]
	if to == nil {
		g.logger.Printf("turn %d: player %s: planet %d: waypoint %d no longer exists", g.Turn, pl.ID, p.ID, p.WaypointPlanetID)
		p.WaypointPlanetID = 0
		return
	}
	counts := map[fleet.ShipType]int{s.Type: 1}
	if _, err := economy.SendShips(pl, p, to, counts, g.ids.NextFleetID()); err != nil {
		g.logger.Printf("turn %d: player %s: planet %d: waypoint dispatch: %v", g.Turn, pl.ID, p.ID, err)
	}
}

func (r *resolver) repairFleets() {
	for _, pl := range r.players() {
		r.safely(pl, "repair", func() {
			for _, p := range r.g.ownedPlanets(pl) {
				if e := economy.RepairPlanetaryFleet(pl, p); e != nil {
					r.log.Add(pl.ID, *e)
				}
			}
		})
	}
}

func (r *resolver) resolveConflicts() {
	for _, a := range r.arrivals {
		if r.failed[a.pl.ID] {
			// Still in transit at the destination; it fights next turn.
			if !slices.Contains(a.pl.FleetsInTransit, a.f) {
				a.pl.FleetsInTransit = append(a.pl.FleetsInTransit, a.f)
			}
			continue
		}
		r.safely(a.pl, "conflict", func() { r.conflict(a) })
	}
	r.arrivals = nil
}

func (r *resolver) side(pl *economy.Player, f *fleet.Fleet) battle.Side {
	s := battle.Side{Fleet: f}
	if pl != nil {
		s.AttackBonusChance = pl.Research.AttackChance()
		s.DefenseBonusChance = pl.Research.DefenseChance()
	}
	return s
}

func (r *resolver) conflict(a arrival) {
	g := r.g
	pl, f := a.pl, a.f
	dest := g.Planets[a.dest]
	f.Land()

	// Captured by an earlier arrival this turn.
	if dest.OwnerID == pl.ID {
		dest.Fleet.Merge(f)
		r.log.Add(pl.ID, events.Event{
			Type:     events.FleetArrived,
			Message:  fmt.Sprintf("fleet arrived at %s", dest.Name),
			PlanetID: dest.ID,
		})
		return
	}

	defenderID := dest.OwnerID
	defender := g.Players[defenderID]
	if !pl.Explored[dest.ID] {
		r.log.Add(pl.ID, events.Event{
			Type:     events.PlanetExplored,
			Message:  fmt.Sprintf("explored %s", dest.Name),
			PlanetID: dest.ID,
			Amount:   dest.Fleet.Strength(),
		})
	}
	pl.MarkExplored(dest.ID, dest.Fleet.Strength(), defenderID, g.Turn)

	res := battle.Simulate(r.rng, r.side(pl, f), r.side(defender, dest.Fleet))
	if res.AttackerWins {
		dest.TransferTo(pl.ID, g.rules.Economy.CaptureProtestLevel)
		dest.Fleet.Merge(f)
		if len(dest.Population) == 0 {
			dest.Population = append(dest.Population, &economy.Citizen{
				Worker:       economy.WorkerBuilder,
				ProtestLevel: g.rules.Economy.CaptureProtestLevel,
				LoyalTo:      pl.ID,
			})
		}
		pl.AddPlanet(dest.ID)
		pl.MarkExplored(dest.ID, dest.Fleet.Strength(), pl.ID, g.Turn)
		r.log.Add(pl.ID, events.Event{
			Type:          events.PlanetCaptured,
			Message:       fmt.Sprintf("captured %s", dest.Name),
			PlanetID:      dest.ID,
			OtherPlayerID: defenderID,
			Amount:        res.DefenderShipsLost,
		})
		if defender != nil {
			defender.RemovePlanet(dest.ID)
			r.log.Add(defender.ID, events.Event{
				Type:          events.PlanetLost,
				Message:       fmt.Sprintf("%s was captured by %s", dest.Name, pl.Name),
				PlanetID:      dest.ID,
				OtherPlayerID: pl.ID,
				Amount:        res.AttackerShipsLost,
			})
		}
		return
	}

	pl.MarkExplored(dest.ID, dest.Fleet.Strength(), defenderID, g.Turn)
	r.log.Add(pl.ID, events.Event{
		Type:          events.AttackingFleetLost,
		Message:       fmt.Sprintf("attack on %s failed", dest.Name),
		PlanetID:      dest.ID,
		OtherPlayerID: defenderID,
		Amount:        res.AttackerShipsLost,
	})
	if defender != nil {
		r.log.Add(defender.ID, events.Event{
			Type:          events.DefendedAgainstAttackingFleet,
			Message:       fmt.Sprintf("%s held against %s", dest.Name, pl.Name),
			PlanetID:      dest.ID,
			OtherPlayerID: pl.ID,
			Amount:        res.DefenderShipsLost,
		})
	}
}

func (r *resolver) checkDestroyed() []string {
	g := r.g
	var out []string
	for _, pl := range r.players() {
		if !pl.Destroyed() {
			continue
		}
		g.Destroyed = append(g.Destroyed, pl.ID)
		g.Trading.DropPlayer(pl.ID)
		pl.BuildGoals = map[uint64]economy.BuildGoal{}
		out = append(out, pl.ID)
		r.log.Add(pl.ID, events.Event{
			Type:    events.PlayerDestroyed,
			Message: fmt.Sprintf("%s has been destroyed", pl.Name),
		})
	}
	return out
}
