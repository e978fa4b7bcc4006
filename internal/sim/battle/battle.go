// Package battle resolves fleet-vs-fleet combat.
//
// Combat runs in rounds of simultaneous fire. Every combatant fires floor(strength/2) shots
// per round. Targets and damage are computed against the round-start snapshot and applied
// once both sides have fired, so a shot may land on a ship already doomed this round; such
// shots deal no further damage. Experience is granted to the winner's survivors after the
// battle ends.
//
// A battle that stalls (a round in which nobody can fire, or the round limit) goes to the
// side with more remaining strength, or to a coin flip when even; the other side is routed.
package battle

import (
	"math/rand"

	"starconquest.ai/internal/sim/fleet"
)

const maxRounds = 10000

const baseMaxDamage = 2

type Side struct {
	Fleet *fleet.Fleet
	// Chance per shot of +1 max damage when firing.
	AttackBonusChance float64
	// Chance per incoming shot of -1 max damage.
	DefenseBonusChance float64
}

type Result struct {
	AttackerWins bool
	// Both fleets were destroyed in the same round. Counts as a defender win.
	MutualDestruction bool
	// The battle was decided by remaining strength rather than fought out.
	Stalled bool
	Rounds  int

	AttackerShipsLost int
	DefenderShipsLost int
	// Platform destroyed on either side.
	AttackerPlatformLost bool
	DefenderPlatformLost bool
}

type combatant struct {
	ship     *fleet.StarShip // nil for the space platform
	typ      fleet.ShipType
	strength int
	pending  int
}

func snapshot(f *fleet.Fleet) []*combatant {
	out := make([]*combatant, 0, len(f.Ships)+1)
	for _, s := range f.Ships {
		if st := s.Strength(); st > 0 {
			out = append(out, &combatant{ship: s, typ: s.Type, strength: st})
		}
	}
	if st := f.PlatformStrength(); st > 0 {
		out = append(out, &combatant{typ: fleet.ShipSpacePlatform, strength: st})
	}
	return out
}

// pickTarget prefers live ships the shooter has an advantage against, then any live ship,
// then the enemy platform once no ships remain.
func pickTarget(rng *rand.Rand, shooter fleet.ShipType, enemies []*combatant, scratch []*combatant) *combatant {
	scratch = scratch[:0]
	for _, e := range enemies {
		if e.ship != nil && fleet.HasAdvantage(shooter, e.typ) {
			scratch = append(scratch, e)
		}
	}
	if len(scratch) == 0 {
		for _, e := range enemies {
			if e.ship != nil {
				scratch = append(scratch, e)
			}
		}
	}
	if len(scratch) == 0 {
		for _, e := range enemies {
			if e.ship == nil {
				return e
			}
		}
		return nil
	}
	return scratch[rng.Intn(len(scratch))]
}

func roll(rng *rand.Rand, chance float64) bool {
	return chance > 0 && rng.Float64() < chance
}

// fire tallies one side's shots into the enemies' pending damage. Returns shots fired.
func fire(rng *rand.Rand, own, enemy Side, shooters, enemies []*combatant, dealt map[*fleet.StarShip]int) int {
	shots := 0
	scratch := make([]*combatant, 0, len(enemies))
	for _, c := range shooters {
		n := c.strength / 2
		for i := 0; i < n; i++ {
			target := pickTarget(rng, c.typ, enemies, scratch)
			if target == nil {
				return shots
			}
			shots++
			maxDamage := baseMaxDamage
			if roll(rng, own.AttackBonusChance) {
				maxDamage++
			}
			if roll(rng, enemy.DefenseBonusChance) {
				maxDamage--
			}
			maxDamage += fleet.Advantage(c.typ, target.typ)
			if maxDamage < 0 {
				maxDamage = 0
			}
			dmg := rng.Intn(maxDamage + 1)
			if left := target.strength - target.pending; dmg > left {
				dmg = left
			}
			if dmg <= 0 {
				continue
			}
			target.pending += dmg
			if c.ship != nil {
				dealt[c.ship] += dmg
			}
		}
	}
	return shots
}

func apply(f *fleet.Fleet, hits []*combatant) {
	for _, c := range hits {
		if c.pending == 0 {
			continue
		}
		if c.ship != nil {
			c.ship.Damage += c.pending
		} else {
			f.SpacePlatformDamage += c.pending
		}
	}
}

// Simulate mutates both fleets: damage is applied, destroyed ships and platforms are
// removed and the winner's survivors gain experience equal to the damage they dealt.
func Simulate(rng *rand.Rand, attacker, defender Side) Result {
	return simulate(rng, attacker, defender, maxRounds)
}

func simulate(rng *rand.Rand, attacker, defender Side, limit int) Result {
	var res Result
	a, d := attacker.Fleet, defender.Fleet
	aPlatform, dPlatform := a.HasSpacePlatform, d.HasSpacePlatform
	dealt := map[*fleet.StarShip]int{}

	for a.Strength() > 0 && d.Strength() > 0 {
		if res.Rounds >= limit {
			res.Stalled = true
			break
		}
		res.Rounds++
		aSnap := snapshot(a)
		dSnap := snapshot(d)
		shots := fire(rng, attacker, defender, aSnap, dSnap, dealt)
		shots += fire(rng, defender, attacker, dSnap, aSnap, dealt)
		if shots == 0 {
			// Every combatant is below 2 strength.
			res.Stalled = true
			break
		}
		apply(a, aSnap)
		apply(d, dSnap)
		res.AttackerShipsLost += a.RemoveDestroyed()
		res.DefenderShipsLost += d.RemoveDestroyed()
	}

	if res.Stalled {
		breakStall(rng, a, d, &res)
	}

	aAlive, dAlive := a.Strength() > 0, d.Strength() > 0
	res.AttackerWins = aAlive && !dAlive
	res.MutualDestruction = !aAlive && !dAlive
	res.AttackerPlatformLost = aPlatform && !a.HasSpacePlatform
	res.DefenderPlatformLost = dPlatform && !d.HasSpacePlatform

	winner := d
	if res.AttackerWins {
		winner = a
	}
	if winner.Strength() > 0 {
		for _, s := range winner.Ships {
			s.AddExperience(dealt[s])
		}
	}
	return res
}

func breakStall(rng *rand.Rand, a, d *fleet.Fleet, res *Result) {
	as, ds := a.Strength(), d.Strength()
	attackerHolds := as > ds || (as == ds && rng.Intn(2) == 0)
	if attackerHolds {
		res.DefenderShipsLost += rout(d)
	} else {
		res.AttackerShipsLost += rout(a)
	}
}

// rout removes every ship and the platform. Returns the ships removed.
func rout(f *fleet.Fleet) int {
	n := len(f.Ships)
	f.Ships = nil
	f.HasSpacePlatform = false
	f.SpacePlatformDamage = 0
	return n
}
