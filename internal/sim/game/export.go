package game

import (
	"fmt"
	"log"
	"sort"

	"starconquest.ai/internal/persistence/snapshot"
	"starconquest.ai/internal/sim/economy"
	"starconquest.ai/internal/sim/fleet"
	"starconquest.ai/internal/sim/galaxy"
	"starconquest.ai/internal/sim/tuning"
)

// Export projects the game onto its flat document form. Every slice is emitted in id
// or seat order so equal games produce equal documents.
func (g *Game) Export() snapshot.GameV1 {
	doc := snapshot.GameV1{
		Header: snapshot.Header{Version: snapshot.Version, GameID: g.ID, Turn: g.Turn},
		Seed:   g.Seed,
		Options: snapshot.OptionsV1{
			Systems:              g.Options.Systems,
			PlanetsPerSystem:     g.Options.PlanetsPerSystem,
			SizeMultiplier:       g.Options.SizeMultiplier,
			DistributeEvenly:     g.Options.DistributeEvenly,
			TurnTimeLimitSeconds: g.Options.TurnTimeLimitSeconds,
		},
		Counters: snapshot.CountersV1{
			NextPlanetID:     g.ids.Planet,
			NextFleetID:      g.ids.Fleet,
			NextShipID:       g.ids.Ship,
			NextTradeOrderID: g.ids.TradeOrder,
		},
		TurnStartedUnix: g.TurnStarted,
		Destroyed:       append([]string(nil), g.Destroyed...),
	}
	for _, id := range g.PlayerOrder {
		doc.Players = append(doc.Players, exportPlayer(g.Players[id]))
	}
	for _, id := range g.planetOrder {
		doc.Planets = append(doc.Planets, exportPlanet(g.Planets[id]))
	}
	for _, m := range []*economy.Market{g.Trading.Food, g.Trading.Ore, g.Trading.Iridium} {
		doc.Market.Resources = append(doc.Market.Resources, snapshot.MarketCurveV1{
			Resource:      m.Resource.String(),
			MinPrice:      m.MinPrice,
			MaxPrice:      m.MaxPrice,
			DesiredAmount: m.DesiredAmount,
			Stock:         m.Stock,
			Price:         m.Price,
		})
	}
	for _, o := range g.Trading.Orders {
		doc.Market.Orders = append(doc.Market.Orders, snapshot.TradeOrderV1{
			ID:       o.ID,
			PlayerID: o.PlayerID,
			PlanetID: o.PlanetID,
			Resource: o.Resource.String(),
			Type:     o.Type.String(),
			Amount:   o.Amount,
		})
	}
	return doc
}

func sortedKeys[V any](m map[uint64]V) []uint64 {
	out := make([]uint64, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func exportPlayer(pl *economy.Player) snapshot.PlayerV1 {
	out := snapshot.PlayerV1{
		ID:           pl.ID,
		Name:         pl.Name,
		Type:         pl.Type.String(),
		Gold:         pl.Ledger.Gold,
		Ore:          pl.Ledger.Ore,
		Iridium:      pl.Ledger.Iridium,
		HomePlanetID: pl.HomePlanetID,
		PlanetIDs:    append(make([]uint64, 0, len(pl.PlanetIDs)), pl.PlanetIDs...),
		TurnEnded:    pl.TurnEnded,
		Resigned:     pl.Resigned,
	}
	for _, f := range pl.FleetsInTransit {
		out.FleetsInTransit = append(out.FleetsInTransit, exportFleet(f))
	}
	for _, id := range sortedKeys(pl.Explored) {
		if pl.Explored[id] {
			out.Explored = append(out.Explored, id)
		}
	}
	for _, id := range sortedKeys(pl.Intel) {
		in := pl.Intel[id]
		out.Intel = append(out.Intel, snapshot.IntelV1{PlanetID: id, Strength: in.Strength, OwnerID: in.OwnerID, TurnSeen: in.TurnSeen})
	}
	for _, id := range sortedKeys(pl.BuildGoals) {
		bg := pl.BuildGoals[id]
		item := bg.Improvement.String()
		if bg.Kind == economy.KindStarship {
			item = bg.Ship.String()
		}
		out.BuildGoals = append(out.BuildGoals, snapshot.BuildGoalV1{PlanetID: id, Kind: bg.Kind.String(), Item: item})
	}

	out.Research.Percent = pl.Research.Percent
	if pl.Research.Current != 0 {
		out.Research.Current = pl.Research.Current.String()
	}
	for _, t := range economy.AllResearch {
		rp := pl.Research.Progress[t]
		if rp == nil {
			continue
		}
		item := snapshot.ResearchItemV1{
			Type:            t.String(),
			Level:           rp.Level,
			MaxLevel:        rp.MaxLevel,
			PointsCompleted: rp.PointsCompleted,
		}
		switch {
		case rp.Unlock != nil:
			item.Unlocked = rp.Unlock.Unlocked
		case rp.Combat != nil:
			item.Chance = rp.Combat.Chance
		case rp.Efficiency != nil:
			item.Percent = rp.Efficiency.Percent
		case rp.Propulsion != nil:
			item.SpeedBonus = rp.Propulsion.SpeedBonus
		}
		out.Research.Items = append(out.Research.Items, item)
	}
	return out
}

func exportPlanet(p *economy.Planet) snapshot.PlanetV1 {
	out := snapshot.PlanetV1{
		ID:               p.ID,
		Name:             p.Name,
		Type:             p.Type.String(),
		Q:                p.Hex.Q,
		R:                p.Hex.R,
		System:           p.SystemIndex,
		OwnerID:          p.OwnerID,
		Population:       make([]snapshot.CitizenV1, 0, len(p.Population)),
		Food:             p.Food,
		ProductionBank:   p.ProductionBank,
		PopulationGrowth: p.PopulationGrowth,
		Remainders: snapshot.RemaindersV1{
			Food:    p.Remainders.Food,
			Ore:     p.Remainders.Ore,
			Iridium: p.Remainders.Iridium,
			Gold:    p.Remainders.Gold,
		},
		Fleet:             exportFleet(p.Fleet),
		WaypointPlanetID:  p.WaypointPlanetID,
		BuildLastStarship: p.BuildLastStarship,
	}
	if p.LastStarshipType != 0 {
		out.LastStarshipType = p.LastStarshipType.String()
	}
	for _, c := range p.Population {
		out.Population = append(out.Population, snapshot.CitizenV1{Worker: c.Worker.String(), ProtestLevel: c.ProtestLevel, LoyalTo: c.LoyalTo})
	}
	for _, it := range p.BuildQueue {
		out.BuildQueue = append(out.BuildQueue, snapshot.ProductionItemV1{
			Kind:       it.Kind.String(),
			Item:       queueItemName(it),
			Production: it.Cost.Production,
			Gold:       it.Cost.Gold,
			Ore:        it.Cost.Ore,
			Iridium:    it.Cost.Iridium,
			Completed:  it.Completed,
		})
	}
	if len(p.Improvements) > 0 {
		out.Improvements = make(map[string]int, len(p.Improvements))
		for t, n := range p.Improvements {
			out.Improvements[t.String()] = n
		}
	}
	return out
}

func queueItemName(it *economy.ProductionItem) string {
	if it.Kind == economy.KindStarship {
		return it.Ship.String()
	}
	return it.Improvement.String()
}

func exportFleet(f *fleet.Fleet) snapshot.FleetV1 {
	out := snapshot.FleetV1{
		ID:                  f.ID,
		OwnerID:             f.OwnerID,
		Ships:               make([]snapshot.ShipV1, 0, len(f.Ships)),
		HasSpacePlatform:    f.HasSpacePlatform,
		SpacePlatformDamage: f.SpacePlatformDamage,
		InTransit:           f.InTransit,
		OriginQ:             f.Origin.Q,
		OriginR:             f.Origin.R,
		DestinationQ:        f.Destination.Q,
		DestinationR:        f.Destination.R,
		OriginPlanetID:      f.OriginPlanetID,
		DestinationPlanetID: f.DestinationPlanetID,
		DistanceRemaining:   f.DistanceRemaining,
		TurnsToDestination:  f.TurnsToDestination,
	}
	for _, s := range f.Ships {
		out.Ships = append(out.Ships, snapshot.ShipV1{ID: s.ID, Type: s.Type.String(), Damage: s.Damage, Experience: s.Experience})
	}
	return out
}

// Import rebuilds a game from its document. Every cross reference is checked; a dangling
// planet or player id is an error, never silently dropped.
func Import(doc snapshot.GameV1, rules tuning.Tuning, logger *log.Logger) (*Game, error) {
	if doc.Header.Version != snapshot.Version {
		return nil, fmt.Errorf("unsupported game document version %d", doc.Header.Version)
	}
	opts := galaxy.Options{
		Systems:              doc.Options.Systems,
		PlanetsPerSystem:     doc.Options.PlanetsPerSystem,
		SizeMultiplier:       doc.Options.SizeMultiplier,
		DistributeEvenly:     doc.Options.DistributeEvenly,
		TurnTimeLimitSeconds: doc.Options.TurnTimeLimitSeconds,
	}
	g := newGame(doc.Header.GameID, doc.Seed, opts, rules, logger)
	g.Turn = doc.Header.Turn
	g.TurnStarted = doc.TurnStartedUnix
	g.ids = IDs{
		Planet:     doc.Counters.NextPlanetID,
		Fleet:      doc.Counters.NextFleetID,
		Ship:       doc.Counters.NextShipID,
		TradeOrder: doc.Counters.NextTradeOrderID,
	}
	g.Destroyed = append([]string(nil), doc.Destroyed...)

	for _, pv := range doc.Planets {
		p, err := importPlanet(pv)
		if err != nil {
			return nil, fmt.Errorf("planet %d: %w", pv.ID, err)
		}
		if g.Planets[p.ID] != nil {
			return nil, fmt.Errorf("duplicate planet id %d", p.ID)
		}
		g.addPlanet(p)
	}
	for _, pv := range doc.Players {
		pl, err := importPlayer(pv, rules)
		if err != nil {
			return nil, fmt.Errorf("player %s: %w", pv.ID, err)
		}
		if g.Players[pl.ID] != nil {
			return nil, fmt.Errorf("%w: duplicate player id %s", ErrBadPlayers, pl.ID)
		}
		g.Players[pl.ID] = pl
		g.PlayerOrder = append(g.PlayerOrder, pl.ID)
	}

	for _, m := range doc.Market.Resources {
		r, ok := economy.ParseResource(m.Resource)
		if !ok {
			return nil, fmt.Errorf("market: unknown resource %q", m.Resource)
		}
		dst := g.Trading.Market(r)
		if dst == nil {
			return nil, fmt.Errorf("market: resource %s is not traded", m.Resource)
		}
		*dst = economy.Market{
			Resource:      r,
			MinPrice:      m.MinPrice,
			MaxPrice:      m.MaxPrice,
			DesiredAmount: m.DesiredAmount,
			Stock:         m.Stock,
			Price:         m.Price,
		}
	}
	for _, ov := range doc.Market.Orders {
		r, ok := economy.ParseResource(ov.Resource)
		if !ok {
			return nil, fmt.Errorf("trade order %d: unknown resource %q", ov.ID, ov.Resource)
		}
		tt, ok := economy.ParseTradeType(ov.Type)
		if !ok {
			return nil, fmt.Errorf("trade order %d: unknown type %q", ov.ID, ov.Type)
		}
		g.Trading.Orders = append(g.Trading.Orders, &economy.TradeOrder{
			ID:       ov.ID,
			PlayerID: ov.PlayerID,
			PlanetID: ov.PlanetID,
			Resource: r,
			Type:     tt,
			Amount:   ov.Amount,
		})
	}

	if err := g.checkReferences(); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *Game) checkReferences() error {
	for _, p := range g.Planets {
		if p.OwnerID != "" && g.Players[p.OwnerID] == nil {
			return fmt.Errorf("%w: planet %d owned by %s", ErrUnknownPlayer, p.ID, p.OwnerID)
		}
		if p.WaypointPlanetID != 0 && g.Planets[p.WaypointPlanetID] == nil {
			return fmt.Errorf("%w: planet %d waypoint %d", ErrUnknownPlanet, p.ID, p.WaypointPlanetID)
		}
	}
	for _, id := range g.PlayerOrder {
		pl := g.Players[id]
		if pl.HomePlanetID != 0 && g.Planets[pl.HomePlanetID] == nil {
			return fmt.Errorf("%w: player %s home %d", ErrUnknownPlanet, id, pl.HomePlanetID)
		}
		for _, pid := range pl.PlanetIDs {
			p := g.Planets[pid]
			if p == nil {
				return fmt.Errorf("%w: player %s indexes planet %d", ErrUnknownPlanet, id, pid)
			}
			if p.OwnerID != id {
				return fmt.Errorf("player %s indexes planet %d owned by %q", id, pid, p.OwnerID)
			}
		}
		for _, f := range pl.FleetsInTransit {
			if g.Planets[f.DestinationPlanetID] == nil {
				return fmt.Errorf("%w: player %s fleet %d heads to %d", ErrUnknownPlanet, id, f.ID, f.DestinationPlanetID)
			}
		}
		for pid := range pl.BuildGoals {
			if g.Planets[pid] == nil {
				return fmt.Errorf("%w: player %s build goal on %d", ErrUnknownPlanet, id, pid)
			}
		}
	}
	for _, o := range g.Trading.Orders {
		if g.Players[o.PlayerID] == nil {
			return fmt.Errorf("%w: trade order %d by %s", ErrUnknownPlayer, o.ID, o.PlayerID)
		}
		if o.Resource == economy.ResourceFood && g.Planets[o.PlanetID] == nil {
			return fmt.Errorf("%w: trade order %d planet %d", ErrUnknownPlanet, o.ID, o.PlanetID)
		}
	}
	for _, id := range g.Destroyed {
		if g.Players[id] == nil {
			return fmt.Errorf("%w: destroyed player %s", ErrUnknownPlayer, id)
		}
	}
	return nil
}

func importPlanet(pv snapshot.PlanetV1) (*economy.Planet, error) {
	t, ok := galaxy.ParsePlanetType(pv.Type)
	if !ok {
		return nil, fmt.Errorf("unknown planet type %q", pv.Type)
	}
	f, err := importFleet(pv.Fleet)
	if err != nil {
		return nil, err
	}
	p := economy.NewPlanet(pv.ID, pv.Name, t, galaxy.Hex{Q: pv.Q, R: pv.R}, pv.System, 0)
	p.Fleet = f
	p.OwnerID = pv.OwnerID
	p.Food = pv.Food
	p.ProductionBank = pv.ProductionBank
	p.PopulationGrowth = pv.PopulationGrowth
	p.Remainders = economy.Remainders{
		Food:    pv.Remainders.Food,
		Ore:     pv.Remainders.Ore,
		Iridium: pv.Remainders.Iridium,
		Gold:    pv.Remainders.Gold,
	}
	p.WaypointPlanetID = pv.WaypointPlanetID
	p.BuildLastStarship = pv.BuildLastStarship
	if pv.LastStarshipType != "" {
		st, ok := fleet.ParseShipType(pv.LastStarshipType)
		if !ok {
			return nil, fmt.Errorf("unknown starship %q", pv.LastStarshipType)
		}
		p.LastStarshipType = st
	}
	for _, cv := range pv.Population {
		w, ok := economy.ParseWorkerType(cv.Worker)
		if !ok {
			return nil, fmt.Errorf("unknown worker %q", cv.Worker)
		}
		p.Population = append(p.Population, &economy.Citizen{Worker: w, ProtestLevel: cv.ProtestLevel, LoyalTo: cv.LoyalTo})
	}
	for name, n := range pv.Improvements {
		it, ok := economy.ParseImprovement(name)
		if !ok {
			return nil, fmt.Errorf("unknown improvement %q", name)
		}
		p.Improvements[it] = n
	}
	for _, qv := range pv.BuildQueue {
		it, err := importQueueItem(qv)
		if err != nil {
			return nil, err
		}
		p.BuildQueue = append(p.BuildQueue, it)
	}
	return p, nil
}

func importQueueItem(qv snapshot.ProductionItemV1) (*economy.ProductionItem, error) {
	kind, ok := economy.ParseProductionKind(qv.Kind)
	if !ok {
		return nil, fmt.Errorf("unknown production kind %q", qv.Kind)
	}
	it := &economy.ProductionItem{
		Kind:      kind,
		Cost:      economy.Cost{Production: qv.Production, Gold: qv.Gold, Ore: qv.Ore, Iridium: qv.Iridium},
		Completed: qv.Completed,
	}
	if kind == economy.KindStarship {
		st, ok := fleet.ParseShipType(qv.Item)
		if !ok {
			return nil, fmt.Errorf("unknown starship %q", qv.Item)
		}
		it.Ship = st
		return it, nil
	}
	imp, ok := economy.ParseImprovement(qv.Item)
	if !ok {
		return nil, fmt.Errorf("unknown improvement %q", qv.Item)
	}
	it.Improvement = imp
	return it, nil
}

func importFleet(fv snapshot.FleetV1) (*fleet.Fleet, error) {
	f := fleet.New(fv.ID, fv.OwnerID)
	f.HasSpacePlatform = fv.HasSpacePlatform
	f.SpacePlatformDamage = fv.SpacePlatformDamage
	f.InTransit = fv.InTransit
	f.Origin = galaxy.Hex{Q: fv.OriginQ, R: fv.OriginR}
	f.Destination = galaxy.Hex{Q: fv.DestinationQ, R: fv.DestinationR}
	f.OriginPlanetID = fv.OriginPlanetID
	f.DestinationPlanetID = fv.DestinationPlanetID
	f.DistanceRemaining = fv.DistanceRemaining
	f.TurnsToDestination = fv.TurnsToDestination
	for _, sv := range fv.Ships {
		t, ok := fleet.ParseShipType(sv.Type)
		if !ok || t == fleet.ShipSpacePlatform {
			return nil, fmt.Errorf("fleet %d: bad ship type %q", fv.ID, sv.Type)
		}
		f.Ships = append(f.Ships, &fleet.StarShip{ID: sv.ID, Type: t, Damage: sv.Damage, Experience: sv.Experience})
	}
	return f, nil
}

func importPlayer(pv snapshot.PlayerV1, rules tuning.Tuning) (*economy.Player, error) {
	t, ok := economy.ParsePlayerType(pv.Type)
	if !ok {
		return nil, fmt.Errorf("unknown player type %q", pv.Type)
	}
	pl := economy.NewPlayer(pv.ID, pv.Name, t, rules)
	pl.Ledger = economy.Ledger{Gold: pv.Gold, Ore: pv.Ore, Iridium: pv.Iridium}
	pl.HomePlanetID = pv.HomePlanetID
	for _, id := range pv.PlanetIDs {
		pl.AddPlanet(id)
	}
	pl.TurnEnded = pv.TurnEnded
	pl.Resigned = pv.Resigned
	for _, fv := range pv.FleetsInTransit {
		f, err := importFleet(fv)
		if err != nil {
			return nil, err
		}
		pl.FleetsInTransit = append(pl.FleetsInTransit, f)
	}
	for _, id := range pv.Explored {
		pl.Explored[id] = true
	}
	for _, iv := range pv.Intel {
		pl.Intel[iv.PlanetID] = economy.Intel{Strength: iv.Strength, OwnerID: iv.OwnerID, TurnSeen: iv.TurnSeen}
	}
	for _, gv := range pv.BuildGoals {
		kind, ok := economy.ParseProductionKind(gv.Kind)
		if !ok {
			return nil, fmt.Errorf("build goal on %d: unknown kind %q", gv.PlanetID, gv.Kind)
		}
		bg := economy.BuildGoal{Kind: kind}
		if kind == economy.KindStarship {
			if bg.Ship, ok = fleet.ParseShipType(gv.Item); !ok {
				return nil, fmt.Errorf("build goal on %d: unknown starship %q", gv.PlanetID, gv.Item)
			}
		} else if bg.Improvement, ok = economy.ParseImprovement(gv.Item); !ok {
			return nil, fmt.Errorf("build goal on %d: unknown improvement %q", gv.PlanetID, gv.Item)
		}
		pl.BuildGoals[gv.PlanetID] = bg
	}

	pl.Research.Percent = pv.Research.Percent
	if pv.Research.Current != "" {
		cur, ok := economy.ParseResearchType(pv.Research.Current)
		if !ok {
			return nil, fmt.Errorf("unknown research %q", pv.Research.Current)
		}
		pl.Research.Current = cur
	}
	for _, iv := range pv.Research.Items {
		rt, ok := economy.ParseResearchType(iv.Type)
		if !ok {
			return nil, fmt.Errorf("unknown research %q", iv.Type)
		}
		rp := pl.Research.Progress[rt]
		rp.Level = iv.Level
		rp.MaxLevel = iv.MaxLevel
		rp.PointsCompleted = iv.PointsCompleted
		switch {
		case rp.Unlock != nil:
			rp.Unlock.Unlocked = iv.Unlocked
		case rp.Combat != nil:
			rp.Combat.Chance = iv.Chance
		case rp.Efficiency != nil:
			rp.Efficiency.Percent = iv.Percent
		case rp.Propulsion != nil:
			rp.Propulsion.SpeedBonus = iv.SpeedBonus
		}
	}
	return pl, nil
}
