package game

import (
	"errors"
	"fmt"

	"starconquest.ai/internal/protocol"
	"starconquest.ai/internal/sim/economy"
	"starconquest.ai/internal/sim/fleet"
)

type ActionKind string

const (
	ActEnqueueImprovement    ActionKind = "ENQUEUE_IMPROVEMENT"
	ActEnqueueStarship       ActionKind = "ENQUEUE_STARSHIP"
	ActRemoveFromQueue       ActionKind = "REMOVE_FROM_QUEUE"
	ActReorderQueue          ActionKind = "REORDER_QUEUE"
	ActDemolishImprovement   ActionKind = "DEMOLISH_IMPROVEMENT"
	ActAdjustWorkerSplit     ActionKind = "ADJUST_WORKER_SPLIT"
	ActSendShips             ActionKind = "SEND_SHIPS"
	ActSetWaypoint           ActionKind = "SET_WAYPOINT"
	ActClearWaypoint         ActionKind = "CLEAR_WAYPOINT"
	ActToggleBuildLast       ActionKind = "TOGGLE_BUILD_LAST_STARSHIP"
	ActSubmitTrade           ActionKind = "SUBMIT_TRADE"
	ActCancelTrade           ActionKind = "CANCEL_TRADE"
	ActAdjustResearchPercent ActionKind = "ADJUST_RESEARCH_PERCENT"
	ActSubmitResearch        ActionKind = "SUBMIT_RESEARCH_ITEM"
	ActCancelResearch        ActionKind = "CANCEL_RESEARCH_ITEM"
	ActEndTurn               ActionKind = "END_TURN"
	ActResign                ActionKind = "RESIGN"
)

// Action is one player intent. Fields not used by Kind are ignored.
type Action struct {
	Kind ActionKind `json:"kind"`

	PlanetID       uint64 `json:"planet_id,omitempty"`
	TargetPlanetID uint64 `json:"target_planet_id,omitempty"`
	// Improvement, ship or research type name.
	Item    string `json:"item,omitempty"`
	Index   int    `json:"index,omitempty"`
	ToIndex int    `json:"to_index,omitempty"`

	Farmers  int `json:"farmers,omitempty"`
	Miners   int `json:"miners,omitempty"`
	Builders int `json:"builders,omitempty"`

	Ships map[string]int `json:"ships,omitempty"`

	Resource  string  `json:"resource,omitempty"`
	TradeType string  `json:"trade_type,omitempty"`
	Amount    int     `json:"amount,omitempty"`
	OrderID   uint64  `json:"order_id,omitempty"`
	Percent   float64 `json:"percent,omitempty"`
	Enabled   bool    `json:"enabled,omitempty"`
}

type Result struct {
	OK     bool   `json:"ok"`
	Code   string `json:"code,omitempty"`
	Reason string `json:"reason,omitempty"`
	Turn   int    `json:"turn"`

	FleetID uint64 `json:"fleet_id,omitempty"`
	OrderID uint64 `json:"order_id,omitempty"`
}

// ActionError is a rejected action. The game is unchanged when one is returned.
type ActionError struct {
	Code   string
	Reason string
	Err    error
}

func (e *ActionError) Error() string { return e.Code + ": " + e.Reason }

func (e *ActionError) Unwrap() error { return e.Err }

func reject(code string, err error) *ActionError {
	return &ActionError{Code: code, Reason: err.Error(), Err: err}
}

func rejectf(code, format string, args ...any) *ActionError {
	return &ActionError{Code: code, Reason: fmt.Sprintf(format, args...)}
}

// codeFor maps model errors onto wire codes.
func codeFor(err error) string {
	switch {
	case errors.Is(err, economy.ErrInsufficientResources),
		errors.Is(err, fleet.ErrNotEnoughShips):
		return protocol.ErrNoResource
	case errors.Is(err, economy.ErrNoImprovementSlots),
		errors.Is(err, economy.ErrAlreadyHasPlatform),
		errors.Is(err, economy.ErrResearchMaxed):
		return protocol.ErrConflict
	case errors.Is(err, economy.ErrNotResearched):
		return protocol.ErrNoPermission
	case errors.Is(err, ErrUnknownPlanet),
		errors.Is(err, ErrUnknownPlayer),
		errors.Is(err, economy.ErrTradeNotFound):
		return protocol.ErrNotFound
	case errors.Is(err, economy.ErrNothingToDemolish),
		errors.Is(err, fleet.ErrImmobile):
		return protocol.ErrInvalidTarget
	default:
		return protocol.ErrBadRequest
	}
}

type actionHandler func(g *Game, pl *economy.Player, act Action, res *Result) error

var actionDispatch = map[ActionKind]actionHandler{
	ActEnqueueImprovement:    handleEnqueueImprovement,
	ActEnqueueStarship:       handleEnqueueStarship,
	ActRemoveFromQueue:       handleRemoveFromQueue,
	ActReorderQueue:          handleReorderQueue,
	ActDemolishImprovement:   handleDemolish,
	ActAdjustWorkerSplit:     handleWorkerSplit,
	ActSendShips:             handleSendShips,
	ActSetWaypoint:           handleSetWaypoint,
	ActClearWaypoint:         handleClearWaypoint,
	ActToggleBuildLast:       handleToggleBuildLast,
	ActSubmitTrade:           handleSubmitTrade,
	ActCancelTrade:           handleCancelTrade,
	ActAdjustResearchPercent: handleResearchPercent,
	ActSubmitResearch:        handleSubmitResearch,
	ActCancelResearch:        handleCancelResearch,
	ActEndTurn:               handleEndTurn,
	ActResign:                handleResign,
}

// ApplyAction validates and applies one action for playerID. On error the game is left
// as it was, except where a handler fails after its own validation, which the caller
// guards against by applying actions to a copy.
func (g *Game) ApplyAction(playerID string, act Action) (Result, error) {
	res := Result{Turn: g.Turn}
	pl := g.Players[playerID]
	if pl == nil {
		return res, reject(protocol.ErrNotFound, fmt.Errorf("%w: %s", ErrUnknownPlayer, playerID))
	}
	if g.IsDestroyed(pl.ID) || pl.Resigned {
		return res, rejectf(protocol.ErrNoPermission, "player %s is out of the game", pl.ID)
	}
	h := actionDispatch[act.Kind]
	if h == nil {
		return res, rejectf(protocol.ErrBadRequest, "unknown action kind %q", act.Kind)
	}
	if err := h(g, pl, act, &res); err != nil {
		var ae *ActionError
		if errors.As(err, &ae) {
			return res, ae
		}
		return res, reject(codeFor(err), err)
	}
	res.OK = true
	return res, nil
}

// ownPlanet resolves id and checks pl owns it.
func (g *Game) ownPlanet(pl *economy.Player, id uint64) (*economy.Planet, error) {
	p := g.Planets[id]
	if p == nil {
		return nil, reject(protocol.ErrNotFound, fmt.Errorf("%w: %d", ErrUnknownPlanet, id))
	}
	if p.OwnerID != pl.ID {
		return nil, rejectf(protocol.ErrNoPermission, "planet %d not owned by %s", id, pl.ID)
	}
	return p, nil
}

func handleEnqueueImprovement(g *Game, pl *economy.Player, act Action, _ *Result) error {
	p, err := g.ownPlanet(pl, act.PlanetID)
	if err != nil {
		return err
	}
	t, ok := economy.ParseImprovement(act.Item)
	if !ok {
		return rejectf(protocol.ErrBadRequest, "unknown improvement %q", act.Item)
	}
	return economy.EnqueueImprovement(pl, p, t)
}

func handleEnqueueStarship(g *Game, pl *economy.Player, act Action, _ *Result) error {
	p, err := g.ownPlanet(pl, act.PlanetID)
	if err != nil {
		return err
	}
	t, ok := fleet.ParseShipType(act.Item)
	if !ok || t == fleet.ShipSpacePlatform {
		return rejectf(protocol.ErrBadRequest, "unknown starship %q", act.Item)
	}
	return economy.EnqueueStarship(pl, p, t)
}

func handleRemoveFromQueue(g *Game, pl *economy.Player, act Action, _ *Result) error {
	p, err := g.ownPlanet(pl, act.PlanetID)
	if err != nil {
		return err
	}
	_, err = economy.RemoveFromQueue(pl, p, act.Index)
	return err
}

func handleReorderQueue(g *Game, pl *economy.Player, act Action, _ *Result) error {
	p, err := g.ownPlanet(pl, act.PlanetID)
	if err != nil {
		return err
	}
	return economy.ReorderQueue(p, act.Index, act.ToIndex)
}

func handleDemolish(g *Game, pl *economy.Player, act Action, _ *Result) error {
	p, err := g.ownPlanet(pl, act.PlanetID)
	if err != nil {
		return err
	}
	t, ok := economy.ParseImprovement(act.Item)
	if !ok {
		return rejectf(protocol.ErrBadRequest, "unknown improvement %q", act.Item)
	}
	return economy.EnqueueDemolish(p, t)
}

func handleWorkerSplit(g *Game, pl *economy.Player, act Action, _ *Result) error {
	p, err := g.ownPlanet(pl, act.PlanetID)
	if err != nil {
		return err
	}
	return p.SetWorkerSplit(act.Farmers, act.Miners, act.Builders)
}

func parseShipCounts(in map[string]int) (map[fleet.ShipType]int, error) {
	out := make(map[fleet.ShipType]int, len(in))
	for name, n := range in {
		t, ok := fleet.ParseShipType(name)
		if !ok {
			return nil, rejectf(protocol.ErrBadRequest, "unknown ship type %q", name)
		}
		if n < 0 {
			return nil, rejectf(protocol.ErrBadRequest, "negative count for %s", name)
		}
		if n > 0 {
			out[t] = n
		}
	}
	return out, nil
}

func handleSendShips(g *Game, pl *economy.Player, act Action, res *Result) error {
	from, err := g.ownPlanet(pl, act.PlanetID)
	if err != nil {
		return err
	}
	to := g.Planets[act.TargetPlanetID]
	if to == nil {
		return reject(protocol.ErrNotFound, fmt.Errorf("%w: %d", ErrUnknownPlanet, act.TargetPlanetID))
	}
	counts, err := parseShipCounts(act.Ships)
	if err != nil {
		return err
	}
	f, err := economy.SendShips(pl, from, to, counts, g.ids.NextFleetID())
	if err != nil {
		return err
	}
	res.FleetID = f.ID
	return nil
}

func handleSetWaypoint(g *Game, pl *economy.Player, act Action, _ *Result) error {
	p, err := g.ownPlanet(pl, act.PlanetID)
	if err != nil {
		return err
	}
	if g.Planets[act.TargetPlanetID] == nil {
		return reject(protocol.ErrNotFound, fmt.Errorf("%w: %d", ErrUnknownPlanet, act.TargetPlanetID))
	}
	if act.TargetPlanetID == p.ID {
		return rejectf(protocol.ErrInvalidTarget, "waypoint cannot be the planet itself")
	}
	p.WaypointPlanetID = act.TargetPlanetID
	return nil
}

func handleClearWaypoint(g *Game, pl *economy.Player, act Action, _ *Result) error {
	p, err := g.ownPlanet(pl, act.PlanetID)
	if err != nil {
		return err
	}
	p.WaypointPlanetID = 0
	return nil
}

func handleToggleBuildLast(g *Game, pl *economy.Player, act Action, _ *Result) error {
	p, err := g.ownPlanet(pl, act.PlanetID)
	if err != nil {
		return err
	}
	if act.Enabled && p.LastStarshipType == 0 {
		return rejectf(protocol.ErrConflict, "planet %d has not built a starship yet", p.ID)
	}
	p.BuildLastStarship = act.Enabled
	return nil
}

func handleSubmitTrade(g *Game, pl *economy.Player, act Action, res *Result) error {
	r, ok := economy.ParseResource(act.Resource)
	if !ok || r == economy.ResourceGold {
		return rejectf(protocol.ErrBadRequest, "cannot trade %q", act.Resource)
	}
	tt, ok := economy.ParseTradeType(act.TradeType)
	if !ok {
		return rejectf(protocol.ErrBadRequest, "unknown trade type %q", act.TradeType)
	}
	if r == economy.ResourceFood {
		if _, err := g.ownPlanet(pl, act.PlanetID); err != nil {
			return err
		}
	}
	o := &economy.TradeOrder{
		PlayerID: pl.ID,
		PlanetID: act.PlanetID,
		Resource: r,
		Type:     tt,
		Amount:   act.Amount,
	}
	if err := g.Trading.Submit(o); err != nil {
		return err
	}
	o.ID = g.ids.NextTradeOrderID()
	res.OrderID = o.ID
	return nil
}

func handleCancelTrade(g *Game, pl *economy.Player, act Action, _ *Result) error {
	return g.Trading.Cancel(pl.ID, act.OrderID)
}

func handleResearchPercent(_ *Game, pl *economy.Player, act Action, _ *Result) error {
	return pl.Research.SetPercent(act.Percent)
}

func handleSubmitResearch(_ *Game, pl *economy.Player, act Action, _ *Result) error {
	t, ok := economy.ParseResearchType(act.Item)
	if !ok {
		return rejectf(protocol.ErrBadRequest, "unknown research %q", act.Item)
	}
	return pl.Research.Submit(t)
}

func handleCancelResearch(_ *Game, pl *economy.Player, _ Action, _ *Result) error {
	pl.Research.Cancel()
	return nil
}

func handleEndTurn(_ *Game, pl *economy.Player, _ Action, _ *Result) error {
	pl.TurnEnded = true
	return nil
}

// handleResign releases every planet and recalls nothing: fleets in flight are lost.
func handleResign(g *Game, pl *economy.Player, _ Action, _ *Result) error {
	for _, p := range g.ownedPlanets(pl) {
		p.ClearOwner()
	}
	pl.PlanetIDs = nil
	pl.FleetsInTransit = nil
	pl.BuildGoals = map[uint64]economy.BuildGoal{}
	g.Trading.DropPlayer(pl.ID)
	pl.Resigned = true
	pl.TurnEnded = true
	return nil
}
