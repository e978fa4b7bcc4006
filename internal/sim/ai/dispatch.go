package ai

import (
	"math"
	"math/rand"
	"sort"

	"starconquest.ai/internal/sim/economy"
	"starconquest.ai/internal/sim/fleet"
	"starconquest.ai/internal/sim/galaxy"
)

// Strength that must stay home, by planet class.
var baseDefense = map[galaxy.PlanetType]int{
	galaxy.PlanetClass2:       8,
	galaxy.PlanetClass1:       6,
	galaxy.PlanetDead:         4,
	galaxy.PlanetAsteroidBelt: 2,
}

// How far a known enemy can be and still count as a threat.
const threatRadius = 4

// Attack margin over the estimated defense, per tier.
var attackFactor = map[economy.PlayerType]float64{
	economy.PlayerEasy:   1.0,
	economy.PlayerNormal: 1.5,
	economy.PlayerHard:   2.0,
	economy.PlayerExpert: 2.0,
}

func (e *Engine) defenseRequirement(w World, pl *economy.Player, p *economy.Planet) int {
	req := baseDefense[p.Type]
	if pl.Type == economy.PlayerEasy {
		req /= 2
	}
	if pl.Type != economy.PlayerHard && pl.Type != economy.PlayerExpert {
		return req
	}
	stale := staleness(pl, e.rules.AI)
	for _, o := range w.AllPlanets() {
		in, ok := pl.Intel[o.ID]
		if !ok || in.OwnerID == "" || in.OwnerID == pl.ID {
			continue
		}
		if galaxy.Distance(p.Hex, o.Hex) > threatRadius {
			continue
		}
		if s, ok := pl.LastKnownStrength(o.ID, w.CurrentTurn(), stale); ok {
			req = max(req, s/2)
		}
	}
	// A warship finishing next turn stands in for some of the garrison.
	if len(p.BuildQueue) > 0 {
		head := p.BuildQueue[0]
		prod := economy.PlanetYield(pl, p, e.rules.Economy).Production + p.ProductionBank
		if head.Kind == economy.KindStarship && head.Remaining() <= prod {
			req = max(0, req-head.Ship.BaseStrength())
		}
	}
	return req
}

// spareStrength is the mobile strength p can send without dropping below its requirement.
// Immobile defense ships and the platform count toward the requirement.
func (e *Engine) spareStrength(w World, pl *economy.Player, p *economy.Planet) int {
	mobile := p.Fleet.MobileStrength()
	immobile := p.Fleet.Strength() - mobile
	hold := max(0, e.defenseRequirement(w, pl, p)-immobile)
	return mobile - hold
}

// estimate is the strength pl expects at target, and whether it is a scouting run.
func (e *Engine) estimate(w World, pl *economy.Player, target *economy.Planet) (int, bool) {
	if !pl.Explored[target.ID] {
		return 1, true
	}
	if s, ok := pl.LastKnownStrength(target.ID, w.CurrentTurn(), staleness(pl, e.rules.AI)); ok {
		return s, false
	}
	if in, ok := pl.Intel[target.ID]; ok {
		return in.Strength + in.Strength/2, false
	}
	return 2 * baseDefense[target.Type], false
}

// detachment picks ships from f, weakest type first, until their strength reaches need
// and stays within limit. A need of zero takes everything that fits. Within a type the
// healthiest ships go first, matching what SendShips takes. Scouting runs take a single
// scout when one is stationed and fits.
func detachment(f *fleet.Fleet, need, limit int, scouting bool) (map[fleet.ShipType]int, bool) {
	byType := map[fleet.ShipType][]*fleet.StarShip{}
	for _, s := range f.Ships {
		if s.Type.Mobile() && s.Strength() > 0 {
			byType[s.Type] = append(byType[s.Type], s)
		}
	}
	for _, ships := range byType {
		fleet.SortByStrengthDesc(ships)
	}
	if scouts := byType[fleet.ShipScout]; scouting && len(scouts) > 0 && scouts[0].Strength() <= limit {
		return map[fleet.ShipType]int{fleet.ShipScout: 1}, true
	}
	counts := map[fleet.ShipType]int{}
	got := 0
	for _, t := range fleet.AllBuildable {
		for _, s := range byType[t] {
			if need > 0 && got >= need {
				break
			}
			// Split takes the healthiest first, so a ship that does not fit blocks the rest of its type.
			if got+s.Strength() > limit {
				break
			}
			counts[t]++
			got += s.Strength()
		}
	}
	return counts, got >= need && got > 0
}

func (e *Engine) dispatchFleets(w World, pl *economy.Player, planets []*economy.Planet, rng *rand.Rand) {
	targeted := map[uint64]bool{}
	for _, f := range pl.FleetsInTransit {
		targeted[f.DestinationPlanetID] = true
	}
	for _, p := range planets {
		spare := e.spareStrength(w, pl, p)
		if spare <= 0 {
			continue
		}
		if e.attack(w, pl, p, spare, targeted, rng) {
			continue
		}
		if pl.Type == economy.PlayerExpert {
			e.relay(w, pl, p, planets, spare)
		}
	}
}

func (e *Engine) attack(w World, pl *economy.Player, p *economy.Planet, spare int, targeted map[uint64]bool, rng *rand.Rand) bool {
	type candidate struct {
		planet   *economy.Planet
		dist     int
		need     int
		scouting bool
	}
	var cands []candidate
	for _, o := range w.AllPlanets() {
		if o.OwnerID == pl.ID || targeted[o.ID] {
			continue
		}
		est, scouting := e.estimate(w, pl, o)
		need := est
		if !scouting {
			f := attackFactor[pl.Type]
			if pl.Type == economy.PlayerEasy || pl.Type == economy.PlayerNormal {
				f *= 0.75 + rng.Float64()*0.5
			}
			need = int(math.Ceil(float64(est)*f)) + 1
		}
		if need > spare {
			continue
		}
		cands = append(cands, candidate{planet: o, dist: galaxy.Distance(p.Hex, o.Hex), need: need, scouting: scouting})
	}
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].dist != cands[j].dist {
			return cands[i].dist < cands[j].dist
		}
		return cands[i].planet.ID < cands[j].planet.ID
	})
	for _, c := range cands {
		counts, ok := detachment(p.Fleet, c.need, spare, c.scouting)
		if !ok {
			continue
		}
		if _, err := economy.SendShips(pl, p, c.planet, counts, w.NextFleetID()); err != nil {
			e.logger.Printf("ai %s: send %d -> %d: %v", pl.ID, p.ID, c.planet.ID, err)
			continue
		}
		targeted[c.planet.ID] = true
		return true
	}
	return false
}

// relay moves spare strength to the owned planet closest to a known enemy.
func (e *Engine) relay(w World, pl *economy.Player, p *economy.Planet, planets []*economy.Planet, spare int) {
	frontDist := func(mine *economy.Planet) int {
		best := math.MaxInt
		for _, o := range w.AllPlanets() {
			in, ok := pl.Intel[o.ID]
			if !ok || in.OwnerID == "" || in.OwnerID == pl.ID {
				continue
			}
			best = min(best, galaxy.Distance(mine.Hex, o.Hex))
		}
		return best
	}
	here := frontDist(p)
	if here == math.MaxInt {
		return
	}
	var front *economy.Planet
	bestDist := here
	for _, o := range planets {
		if d := frontDist(o); d < bestDist {
			front, bestDist = o, d
		}
	}
	if front == nil {
		return
	}
	counts, ok := detachment(p.Fleet, 0, spare, false)
	if !ok {
		return
	}
	if _, err := economy.SendShips(pl, p, front, counts, w.NextFleetID()); err != nil {
		e.logger.Printf("ai %s: relay %d -> %d: %v", pl.ID, p.ID, front.ID, err)
	}
}
