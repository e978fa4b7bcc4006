// Package events defines the per-player turn event messages the engine emits.
package events

import "sort"

type Type int

// Values double as sort priority: higher values are reported first.
const (
	PlayerDestroyed               Type = 5
	InsufficientResources         Type = 10
	PlanetExplored                Type = 14
	FleetArrived                  Type = 15
	PopulationGrowth              Type = 20
	ShipsRepaired                 Type = 30
	TradeNotExecuted              Type = 39
	TradesExecuted                Type = 40
	ImprovementDemolished         Type = 44
	ShipBuilt                     Type = 45
	ImprovementBuilt              Type = 50
	ResearchComplete              Type = 55
	FoodShipped                   Type = 60
	PopulationStarvation          Type = 70
	DefendedAgainstAttackingFleet Type = 80
	AttackingFleetLost            Type = 85
	PlanetLostDueToStarvation     Type = 90
	PlanetCaptured                Type = 95
	PlanetLost                    Type = 100
)

var names = map[Type]string{
	PlayerDestroyed:               "PLAYER_DESTROYED",
	InsufficientResources:         "INSUFFICIENT_RESOURCES",
	PlanetExplored:                "PLANET_EXPLORED",
	FleetArrived:                  "FLEET_ARRIVED",
	PopulationGrowth:              "POPULATION_GROWTH",
	ShipsRepaired:                 "SHIPS_REPAIRED",
	TradeNotExecuted:              "TRADE_NOT_EXECUTED",
	TradesExecuted:                "TRADES_EXECUTED",
	ImprovementDemolished:         "IMPROVEMENT_DEMOLISHED",
	ShipBuilt:                     "SHIP_BUILT",
	ImprovementBuilt:              "IMPROVEMENT_BUILT",
	ResearchComplete:              "RESEARCH_COMPLETE",
	FoodShipped:                   "FOOD_SHIPPED",
	PopulationStarvation:          "POPULATION_STARVATION",
	DefendedAgainstAttackingFleet: "DEFENDED_AGAINST_ATTACKING_FLEET",
	AttackingFleetLost:            "ATTACKING_FLEET_LOST",
	PlanetLostDueToStarvation:     "PLANET_LOST_DUE_TO_STARVATION",
	PlanetCaptured:                "PLANET_CAPTURED",
	PlanetLost:                    "PLANET_LOST",
}

func (t Type) String() string {
	if n, ok := names[t]; ok {
		return n
	}
	return "UNKNOWN"
}

func ParseType(s string) (Type, bool) {
	for t, n := range names {
		if n == s {
			return t, true
		}
	}
	return 0, false
}

type Event struct {
	Type     Type   `json:"type"`
	Message  string `json:"message"`
	PlanetID uint64 `json:"planet_id,omitempty"`
	// Optional counterparty (attacker/defender player id).
	OtherPlayerID string `json:"other_player_id,omitempty"`
	Amount        int    `json:"amount,omitempty"`
}

// Log accumulates events per player in emission order.
type Log struct {
	byPlayer map[string][]Event
}

func NewLog() *Log { return &Log{byPlayer: map[string][]Event{}} }

func (l *Log) Add(playerID string, e Event) {
	if playerID == "" {
		return
	}
	l.byPlayer[playerID] = append(l.byPlayer[playerID], e)
}

func (l *Log) AddAll(playerID string, es []Event) {
	for _, e := range es {
		l.Add(playerID, e)
	}
}

// Drop forgets everything recorded for playerID.
func (l *Log) Drop(playerID string) {
	delete(l.byPlayer, playerID)
}

func (l *Log) For(playerID string) []Event {
	return l.byPlayer[playerID]
}

// Sorted returns a copy of every player's events ordered by type priority, highest first.
// Equal types keep emission order.
func (l *Log) Sorted() map[string][]Event {
	out := make(map[string][]Event, len(l.byPlayer))
	for id, es := range l.byPlayer {
		cp := append([]Event(nil), es...)
		SortByPriority(cp)
		out[id] = cp
	}
	return out
}

func SortByPriority(es []Event) {
	sort.SliceStable(es, func(i, j int) bool { return es[i].Type > es[j].Type })
}
