package economy

import (
	"sort"

	"starconquest.ai/internal/sim/fleet"
	"starconquest.ai/internal/sim/tuning"
)

type PlayerType uint8

const (
	PlayerHuman PlayerType = iota + 1
	PlayerEasy
	PlayerNormal
	PlayerHard
	PlayerExpert
)

var AllPlayerTypes = []PlayerType{PlayerHuman, PlayerEasy, PlayerNormal, PlayerHard, PlayerExpert}

func (t PlayerType) String() string {
	switch t {
	case PlayerHuman:
		return "HUMAN"
	case PlayerEasy:
		return "EASY"
	case PlayerNormal:
		return "NORMAL"
	case PlayerHard:
		return "HARD"
	case PlayerExpert:
		return "EXPERT"
	default:
		return "UNKNOWN"
	}
}

func ParsePlayerType(s string) (PlayerType, bool) {
	for _, t := range AllPlayerTypes {
		if t.String() == s {
			return t, true
		}
	}
	return 0, false
}

func (t PlayerType) IsAI() bool { return t >= PlayerEasy && t <= PlayerExpert }

// Intel is what a player last saw of a planet.
type Intel struct {
	Strength int    `json:"strength"`
	OwnerID  string `json:"owner_id,omitempty"`
	TurnSeen int    `json:"turn_seen"`
}

// BuildGoal is the item an AI player is saving up for on a planet.
type BuildGoal struct {
	Kind        ProductionKind
	Improvement ImprovementType
	Ship        fleet.ShipType
}

func (g BuildGoal) Cost() Cost {
	if g.Kind == KindStarship {
		return StarshipCost(g.Ship)
	}
	return ImprovementCost(g.Improvement)
}

type Player struct {
	ID   string
	Name string
	Type PlayerType

	Ledger   Ledger
	Research Research

	HomePlanetID uint64
	// Non-owning index into the game's planets, kept sorted.
	PlanetIDs       []uint64
	FleetsInTransit []*fleet.Fleet

	Explored   map[uint64]bool
	Intel      map[uint64]Intel
	BuildGoals map[uint64]BuildGoal

	TurnEnded bool
	Resigned  bool
}

func NewPlayer(id, name string, t PlayerType, rules tuning.Tuning) *Player {
	return &Player{
		ID:   id,
		Name: name,
		Type: t,
		Ledger: Ledger{
			Gold:    rules.Economy.StartingGold,
			Ore:     rules.Economy.StartingOre,
			Iridium: rules.Economy.StartingIridium,
		},
		Research:   NewResearch(rules.Research),
		Explored:   map[uint64]bool{},
		Intel:      map[uint64]Intel{},
		BuildGoals: map[uint64]BuildGoal{},
	}
}

func (p *Player) OwnsPlanet(id uint64) bool {
	i := sort.Search(len(p.PlanetIDs), func(i int) bool { return p.PlanetIDs[i] >= id })
	return i < len(p.PlanetIDs) && p.PlanetIDs[i] == id
}

func (p *Player) AddPlanet(id uint64) {
	i := sort.Search(len(p.PlanetIDs), func(i int) bool { return p.PlanetIDs[i] >= id })
	if i < len(p.PlanetIDs) && p.PlanetIDs[i] == id {
		return
	}
	p.PlanetIDs = append(p.PlanetIDs, 0)
	copy(p.PlanetIDs[i+1:], p.PlanetIDs[i:])
	p.PlanetIDs[i] = id
}

func (p *Player) RemovePlanet(id uint64) {
	i := sort.Search(len(p.PlanetIDs), func(i int) bool { return p.PlanetIDs[i] >= id })
	if i < len(p.PlanetIDs) && p.PlanetIDs[i] == id {
		p.PlanetIDs = append(p.PlanetIDs[:i], p.PlanetIDs[i+1:]...)
	}
	delete(p.BuildGoals, id)
}

// MarkExplored records a visit and a fresh look at the planet's defenses.
func (p *Player) MarkExplored(planetID uint64, strength int, ownerID string, turn int) {
	p.Explored[planetID] = true
	p.Intel[planetID] = Intel{Strength: strength, OwnerID: ownerID, TurnSeen: turn}
}

// LastKnownStrength returns remembered intel no older than staleness turns. A staleness
// of zero or less accepts any age.
func (p *Player) LastKnownStrength(planetID uint64, turn, staleness int) (int, bool) {
	in, ok := p.Intel[planetID]
	if !ok {
		return 0, false
	}
	if staleness > 0 && turn-in.TurnSeen > staleness {
		return 0, false
	}
	return in.Strength, true
}

// Destroyed: no planets and nothing in flight.
func (p *Player) Destroyed() bool {
	return len(p.PlanetIDs) == 0 && len(p.FleetsInTransit) == 0
}
