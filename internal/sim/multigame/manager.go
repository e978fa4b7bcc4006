// Package multigame hosts many games on one document store. Player actions go through
// the optimistic mutation loop; turn resolution takes a game exclusively.
package multigame

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"starconquest.ai/internal/persistence/docstore"
	plog "starconquest.ai/internal/persistence/log"
	"starconquest.ai/internal/persistence/snapshot"
	"starconquest.ai/internal/protocol"
	"starconquest.ai/internal/sim/events"
	"starconquest.ai/internal/sim/galaxy"
	"starconquest.ai/internal/sim/game"
	"starconquest.ai/internal/sim/tuning"
)

var ErrGameNotFound = errors.New("game not found")

const subscriberBuffer = 8

type Config struct {
	Store docstore.Store
	Rules tuning.Tuning
	// DataDir holds per-game turn/action logs and exported snapshots. Empty disables both.
	DataDir string
	Logger  *log.Logger
	Now     func() time.Time
}

type Manager struct {
	store   docstore.Store
	rules   tuning.Tuning
	dataDir string
	logger  *log.Logger
	now     func() time.Time

	mu    sync.Mutex
	slots map[string]*slot
}

// slot is the process-local companion of one stored game.
type slot struct {
	id string

	// Actions hold it shared; resolution holds it exclusively.
	turn sync.RWMutex

	subMu   sync.Mutex
	subs    map[string]map[int]chan protocol.TurnEventsMsg
	nextSub int

	turnLog   *plog.TurnLogger
	actionLog *plog.ActionLogger
}

type CreateRequest struct {
	ID      string
	Seed    int64
	Players []game.PlayerSpec
	Options galaxy.Options
}

type PlayerInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	Planets   int    `json:"planets"`
	TurnEnded bool   `json:"turn_ended"`
	Destroyed bool   `json:"destroyed,omitempty"`
	Resigned  bool   `json:"resigned,omitempty"`
}

type Info struct {
	ID                   string       `json:"id"`
	Turn                 int          `json:"turn"`
	Digest               string       `json:"digest"`
	TurnStartedUnix      int64        `json:"turn_started_unix"`
	TurnTimeLimitSeconds int          `json:"turn_time_limit_seconds,omitempty"`
	Players              []PlayerInfo `json:"players"`
}

// Outcome is one committed resolution.
type Outcome struct {
	game.TurnResult
	GameID string
	Digest string
	Forced bool
}

func NewManager(cfg Config) (*Manager, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("nil store")
	}
	if err := cfg.Rules.Validate(); err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard, "", 0)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Manager{
		store:   cfg.Store,
		rules:   cfg.Rules,
		dataDir: cfg.DataDir,
		logger:  cfg.Logger,
		now:     cfg.Now,
		slots:   map[string]*slot{},
	}, nil
}

func (m *Manager) gameDir(id string) string {
	return filepath.Join(m.dataDir, "games", id)
}

func (m *Manager) slot(id string) *slot {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.slots[id]
	if s == nil {
		s = &slot{id: id, subs: map[string]map[int]chan protocol.TurnEventsMsg{}}
		if m.dataDir != "" {
			s.turnLog = plog.NewTurnLogger(m.gameDir(id))
			s.actionLog = plog.NewActionLogger(m.gameDir(id))
		}
		m.slots[id] = s
	}
	return s
}

func (m *Manager) decode(id string, body []byte) (*game.Game, error) {
	var doc snapshot.GameV1
	if err := docstore.Decode(body, &doc); err != nil {
		return nil, fmt.Errorf("game %s: %w", id, err)
	}
	return game.Import(doc, m.rules, m.logger)
}

func encode(g *game.Game) ([]byte, error) {
	return docstore.Encode(g.Export())
}

func (m *Manager) get(ctx context.Context, id string) (docstore.Record, error) {
	rec, err := m.store.Get(ctx, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return rec, fmt.Errorf("%w: %s", ErrGameNotFound, id)
	}
	return rec, err
}

// Create starts a game and persists its first document.
func (m *Manager) Create(ctx context.Context, req CreateRequest) (Info, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Seed == 0 {
		req.Seed = m.now().UnixNano()
	}
	g, err := game.StartGame(req.ID, req.Seed, req.Players, req.Options, m.rules, m.logger)
	if err != nil {
		return Info{}, err
	}
	g.TurnStarted = m.now().Unix()
	body, err := encode(g)
	if err != nil {
		return Info{}, err
	}
	if _, err := m.store.Create(ctx, req.ID, body); err != nil {
		return Info{}, err
	}
	m.logger.Printf("game %s created: %d players, %d systems", req.ID, len(req.Players), g.Options.Systems)
	return info(g)
}

// Load returns a private copy of the stored game.
func (m *Manager) Load(ctx context.Context, id string) (*game.Game, error) {
	rec, err := m.get(ctx, id)
	if err != nil {
		return nil, err
	}
	return m.decode(id, rec.Body)
}

func (m *Manager) Info(ctx context.Context, id string) (Info, error) {
	g, err := m.Load(ctx, id)
	if err != nil {
		return Info{}, err
	}
	return info(g)
}

func info(g *game.Game) (Info, error) {
	digest, err := g.Digest()
	if err != nil {
		return Info{}, err
	}
	out := Info{
		ID:                   g.ID,
		Turn:                 g.Turn,
		Digest:               digest,
		TurnStartedUnix:      g.TurnStarted,
		TurnTimeLimitSeconds: g.Options.TurnTimeLimitSeconds,
	}
	for _, id := range g.PlayerOrder {
		pl := g.Players[id]
		out.Players = append(out.Players, PlayerInfo{
			ID:        pl.ID,
			Name:      pl.Name,
			Type:      pl.Type.String(),
			Planets:   len(pl.PlanetIDs),
			TurnEnded: pl.TurnEnded,
			Destroyed: g.IsDestroyed(pl.ID),
			Resigned:  pl.Resigned,
		})
	}
	return out, nil
}

func (m *Manager) GameIDs(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// ApplyAction runs one player action through the mutation loop. The action is applied to
// a freshly decoded copy, so a rejection never touches the stored document. When the
// action is the last human END_TURN the turn resolves before ApplyAction returns.
func (m *Manager) ApplyAction(ctx context.Context, gameID, playerID string, act game.Action) (game.Result, error) {
	res, err := m.applyShared(ctx, gameID, playerID, act)
	if err != nil || act.Kind != game.ActEndTurn {
		return res, err
	}
	if _, rerr := m.Resolve(ctx, gameID, false); rerr != nil && !errors.Is(rerr, game.ErrTurnNotReady) {
		m.logger.Printf("game %s: resolve after end turn: %v", gameID, rerr)
	}
	return res, nil
}

func (m *Manager) applyShared(ctx context.Context, gameID, playerID string, act game.Action) (game.Result, error) {
	if _, err := m.get(ctx, gameID); err != nil {
		return game.Result{Code: protocol.ErrGameNotFound, Reason: err.Error()}, &game.ActionError{Code: protocol.ErrGameNotFound, Reason: err.Error(), Err: err}
	}
	s := m.slot(gameID)
	if !s.turn.TryRLock() {
		ae := &game.ActionError{Code: protocol.ErrTurnInProgress, Reason: "turn resolution in progress"}
		return game.Result{Code: ae.Code, Reason: ae.Reason}, ae
	}
	defer s.turn.RUnlock()

	var res game.Result
	_, attempts, err := docstore.Mutate(ctx, m.store, gameID, func(cur docstore.Record) ([]byte, error) {
		g, err := m.decode(gameID, cur.Body)
		if err != nil {
			return nil, err
		}
		r, err := g.ApplyAction(playerID, act)
		res = r
		if err != nil {
			return nil, err
		}
		return encode(g)
	}, m.rules.MutateMaxRetries)
	if err != nil {
		var ae *game.ActionError
		switch {
		case errors.As(err, &ae):
		case errors.Is(err, docstore.ErrConcurrentUpdate):
			ae = &game.ActionError{Code: protocol.ErrRetryExhausted, Reason: err.Error(), Err: err}
		default:
			ae = &game.ActionError{Code: protocol.ErrInternal, Reason: err.Error(), Err: err}
			m.logger.Printf("game %s: action %s by %s: %v", gameID, act.Kind, playerID, err)
		}
		res.OK = false
		res.Code = ae.Code
		res.Reason = ae.Reason
		m.logAction(s, gameID, playerID, act, res, attempts)
		return res, ae
	}
	m.logAction(s, gameID, playerID, act, res, attempts)
	return res, nil
}

func (m *Manager) logAction(s *slot, gameID, playerID string, act game.Action, res game.Result, attempts int) {
	if s.actionLog == nil {
		return
	}
	payload, _ := json.Marshal(act)
	err := s.actionLog.WriteAction(plog.ActionEntry{
		GameID:   gameID,
		Turn:     res.Turn,
		PlayerID: playerID,
		Kind:     string(act.Kind),
		Payload:  payload,
		OK:       res.OK,
		Code:     res.Code,
		Attempts: attempts,
		At:       m.now().UnixMilli(),
	})
	if err != nil {
		m.logger.Printf("game %s: action log: %v", gameID, err)
	}
}

// Resolve runs one turn with the game held exclusively. Without force it returns
// game.ErrTurnNotReady while a human has not ended the turn. A failed resolution commits
// nothing.
func (m *Manager) Resolve(ctx context.Context, gameID string, force bool) (Outcome, error) {
	s := m.slot(gameID)
	s.turn.Lock()
	defer s.turn.Unlock()

	rec, err := m.get(ctx, gameID)
	if err != nil {
		return Outcome{}, err
	}
	g, err := m.decode(gameID, rec.Body)
	if err != nil {
		return Outcome{}, err
	}
	var res game.TurnResult
	if force {
		res, err = g.ForceResolveTurn()
	} else {
		res, err = g.ResolveTurn()
	}
	if err != nil {
		return Outcome{}, err
	}
	now := m.now()
	g.TurnStarted = now.Unix()
	body, err := encode(g)
	if err != nil {
		return Outcome{}, err
	}
	if _, err := m.store.Put(ctx, gameID, body); err != nil {
		return Outcome{}, fmt.Errorf("commit turn %d: %w", res.Turn, err)
	}
	digest, err := g.Digest()
	if err != nil {
		return Outcome{}, err
	}
	out := Outcome{TurnResult: res, GameID: gameID, Digest: digest, Forced: force}
	m.logTurn(s, out, now)
	m.publish(s, g, out)
	m.logger.Printf("game %s: turn %d resolved (forced=%v) digest=%s", gameID, res.Turn, force, digest[:12])
	return out, nil
}

// logTurn records the turn. ResolvedAt carries the same clock reading as the new turn's
// start, which replay relies on.
func (m *Manager) logTurn(s *slot, out Outcome, now time.Time) {
	if s.turnLog == nil {
		return
	}
	entry := plog.TurnEntry{
		GameID:     out.GameID,
		Turn:       out.Turn,
		ResolvedAt: now.UnixMilli(),
		Forced:     out.Forced,
		Events:     map[string][]plog.TurnEvent{},
		Destroyed:  out.Destroyed,
		Digest:     out.Digest,
	}
	for pid, es := range out.Events {
		for _, e := range es {
			entry.Events[pid] = append(entry.Events[pid], plog.TurnEvent{
				Type:          e.Type.String(),
				Message:       e.Message,
				PlanetID:      e.PlanetID,
				OtherPlayerID: e.OtherPlayerID,
				Amount:        e.Amount,
			})
		}
	}
	if err := s.turnLog.WriteTurn(entry); err != nil {
		m.logger.Printf("game %s: turn log: %v", out.GameID, err)
	}
}

// CheckDeadlines force-resolves every game whose turn time limit has passed. It returns
// the ids it resolved.
func (m *Manager) CheckDeadlines(ctx context.Context, now time.Time) ([]string, error) {
	ids, err := m.store.List(ctx)
	if err != nil {
		return nil, err
	}
	var resolved []string
	for _, id := range ids {
		rec, err := m.store.Get(ctx, id)
		if err != nil {
			m.logger.Printf("game %s: deadline check: %v", id, err)
			continue
		}
		var doc snapshot.GameV1
		if err := docstore.Decode(rec.Body, &doc); err != nil {
			m.logger.Printf("game %s: deadline check: %v", id, err)
			continue
		}
		limit := doc.Options.TurnTimeLimitSeconds
		if limit <= 0 || now.Unix()-doc.TurnStartedUnix < int64(limit) {
			continue
		}
		if _, err := m.Resolve(ctx, id, true); err != nil {
			m.logger.Printf("game %s: forced resolve: %v", id, err)
			continue
		}
		resolved = append(resolved, id)
	}
	return resolved, nil
}

// Subscribe delivers one TURN_EVENTS message per resolved turn to playerID. Slow
// subscribers miss messages rather than stall resolution.
func (m *Manager) Subscribe(gameID, playerID string) (<-chan protocol.TurnEventsMsg, func()) {
	s := m.slot(gameID)
	ch := make(chan protocol.TurnEventsMsg, subscriberBuffer)
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	if s.subs[playerID] == nil {
		s.subs[playerID] = map[int]chan protocol.TurnEventsMsg{}
	}
	s.subs[playerID][id] = ch
	s.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs[playerID], id)
			s.subMu.Unlock()
		})
	}
}

func (m *Manager) publish(s *slot, g *game.Game, out Outcome) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for pid, subs := range s.subs {
		if len(subs) == 0 {
			continue
		}
		msg := TurnEventsMessage(g.ID, out.Turn, out.Events[pid], out.Destroyed)
		for _, ch := range subs {
			select {
			case ch <- msg:
			default:
				m.logger.Printf("game %s: dropped turn %d events for slow subscriber %s", g.ID, out.Turn, pid)
			}
		}
	}
}

func TurnEventsMessage(gameID string, turn int, es []events.Event, destroyed []string) protocol.TurnEventsMsg {
	msg := protocol.TurnEventsMsg{
		Type:            protocol.TypeTurnEvents,
		ProtocolVersion: protocol.Version,
		GameID:          gameID,
		Turn:            turn,
		Events:          make([]protocol.Event, 0, len(es)),
		Destroyed:       destroyed,
	}
	for _, e := range es {
		msg.Events = append(msg.Events, protocol.Event{
			Type:          e.Type.String(),
			Priority:      int(e.Type),
			Message:       e.Message,
			PlanetID:      e.PlanetID,
			OtherPlayerID: e.OtherPlayerID,
			Amount:        e.Amount,
		})
	}
	return msg
}

// ExportSnapshot writes the current document under DataDir and returns the file path.
func (m *Manager) ExportSnapshot(ctx context.Context, gameID string) (string, error) {
	if m.dataDir == "" {
		return "", fmt.Errorf("no data dir configured")
	}
	g, err := m.Load(ctx, gameID)
	if err != nil {
		return "", err
	}
	path := filepath.Join(m.gameDir(gameID), "snapshots", fmt.Sprintf("%d.snap.zst", g.Turn))
	if err := snapshot.WriteSnapshot(path, g.Export()); err != nil {
		return "", err
	}
	return path, nil
}

// ImportSnapshot stores a game read from a snapshot file under its own id.
func (m *Manager) ImportSnapshot(ctx context.Context, path string) (Info, error) {
	doc, err := snapshot.ReadSnapshot(path)
	if err != nil {
		return Info{}, err
	}
	g, err := game.Import(doc, m.rules, m.logger)
	if err != nil {
		return Info{}, err
	}
	body, err := encode(g)
	if err != nil {
		return Info{}, err
	}
	if _, err := m.store.Create(ctx, g.ID, body); err != nil {
		return Info{}, err
	}
	return info(g)
}

func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.slots))
	for id := range m.slots {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	var errs []error
	for _, id := range ids {
		s := m.slots[id]
		if s.turnLog != nil {
			errs = append(errs, s.turnLog.Close())
		}
		if s.actionLog != nil {
			errs = append(errs, s.actionLog.Close())
		}
	}
	return errors.Join(errs...)
}

