package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

const Version = 1

type Header struct {
	Version int    `json:"version"`
	GameID  string `json:"game_id"`
	Turn    int    `json:"turn"`
}

// GameV1 is the flat, acyclic form of a game. Cross references are ids.
type GameV1 struct {
	Header Header `json:"header"`

	Seed            int64      `json:"seed"`
	Options         OptionsV1  `json:"options"`
	Counters        CountersV1 `json:"counters"`
	TurnStartedUnix int64      `json:"turn_started_unix"`

	Players   []PlayerV1 `json:"players"`
	Planets   []PlanetV1 `json:"planets"`
	Market    MarketV1   `json:"market"`
	Destroyed []string   `json:"destroyed,omitempty"`
}

type OptionsV1 struct {
	Systems              int  `json:"systems"`
	PlanetsPerSystem     int  `json:"planets_per_system"`
	SizeMultiplier       int  `json:"size_multiplier"`
	DistributeEvenly     bool `json:"distribute_evenly"`
	TurnTimeLimitSeconds int  `json:"turn_time_limit_seconds,omitempty"`
}

// CountersV1 holds the per-game id allocator.
type CountersV1 struct {
	NextPlanetID     uint64 `json:"next_planet_id"`
	NextFleetID      uint64 `json:"next_fleet_id"`
	NextShipID       uint64 `json:"next_ship_id"`
	NextTradeOrderID uint64 `json:"next_trade_order_id"`
}

type PlayerV1 struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`

	Gold    int `json:"gold"`
	Ore     int `json:"ore"`
	Iridium int `json:"iridium"`

	HomePlanetID    uint64    `json:"home_planet_id"`
	PlanetIDs       []uint64  `json:"planet_ids"`
	FleetsInTransit []FleetV1 `json:"fleets_in_transit,omitempty"`

	Explored   []uint64      `json:"explored,omitempty"`
	Intel      []IntelV1     `json:"intel,omitempty"`
	BuildGoals []BuildGoalV1 `json:"build_goals,omitempty"`
	Research   ResearchV1    `json:"research"`

	TurnEnded bool `json:"turn_ended"`
	Resigned  bool `json:"resigned"`
}

type IntelV1 struct {
	PlanetID uint64 `json:"planet_id"`
	Strength int    `json:"strength"`
	OwnerID  string `json:"owner_id,omitempty"`
	TurnSeen int    `json:"turn_seen"`
}

type BuildGoalV1 struct {
	PlanetID uint64 `json:"planet_id"`
	Kind     string `json:"kind"`
	Item     string `json:"item"`
}

type ResearchV1 struct {
	Percent float64          `json:"percent"`
	Current string           `json:"current,omitempty"`
	Items   []ResearchItemV1 `json:"items"`
}

// ResearchItemV1 flattens the per-category payloads; only the fields of the item's
// category are set.
type ResearchItemV1 struct {
	Type            string  `json:"type"`
	Level           int     `json:"level"`
	MaxLevel        int     `json:"max_level"`
	PointsCompleted float64 `json:"points_completed"`

	Unlocked   bool    `json:"unlocked,omitempty"`
	Chance     float64 `json:"chance,omitempty"`
	Percent    float64 `json:"percent,omitempty"`
	SpeedBonus int     `json:"speed_bonus,omitempty"`
}

type PlanetV1 struct {
	ID     uint64 `json:"id"`
	Name   string `json:"name"`
	Type   string `json:"type"`
	Q      int    `json:"q"`
	R      int    `json:"r"`
	System int    `json:"system"`

	OwnerID string `json:"owner_id,omitempty"`

	Population   []CitizenV1        `json:"population"`
	BuildQueue   []ProductionItemV1 `json:"build_queue,omitempty"`
	Improvements map[string]int     `json:"improvements,omitempty"`

	Food             int          `json:"food"`
	Remainders       RemaindersV1 `json:"remainders"`
	ProductionBank   float64      `json:"production_bank"`
	PopulationGrowth float64      `json:"population_growth"`

	Fleet FleetV1 `json:"fleet"`

	WaypointPlanetID  uint64 `json:"waypoint_planet_id,omitempty"`
	BuildLastStarship bool   `json:"build_last_starship,omitempty"`
	LastStarshipType  string `json:"last_starship_type,omitempty"`
}

type CitizenV1 struct {
	Worker       string  `json:"worker"`
	ProtestLevel float64 `json:"protest_level"`
	LoyalTo      string  `json:"loyal_to,omitempty"`
}

type RemaindersV1 struct {
	Food    float64 `json:"food"`
	Ore     float64 `json:"ore"`
	Iridium float64 `json:"iridium"`
	Gold    float64 `json:"gold"`
}

type ProductionItemV1 struct {
	Kind       string  `json:"kind"`
	Item       string  `json:"item"`
	Production float64 `json:"production"`
	Gold       int     `json:"gold"`
	Ore        int     `json:"ore"`
	Iridium    int     `json:"iridium"`
	Completed  float64 `json:"completed"`
}

type FleetV1 struct {
	ID      uint64   `json:"id"`
	OwnerID string   `json:"owner_id,omitempty"`
	Ships   []ShipV1 `json:"ships"`

	HasSpacePlatform    bool `json:"has_space_platform,omitempty"`
	SpacePlatformDamage int  `json:"space_platform_damage,omitempty"`

	InTransit           bool   `json:"in_transit,omitempty"`
	OriginQ             int    `json:"origin_q,omitempty"`
	OriginR             int    `json:"origin_r,omitempty"`
	DestinationQ        int    `json:"destination_q,omitempty"`
	DestinationR        int    `json:"destination_r,omitempty"`
	OriginPlanetID      uint64 `json:"origin_planet_id,omitempty"`
	DestinationPlanetID uint64 `json:"destination_planet_id,omitempty"`
	DistanceRemaining   int    `json:"distance_remaining,omitempty"`
	TurnsToDestination  int    `json:"turns_to_destination,omitempty"`
}

type ShipV1 struct {
	ID         uint64 `json:"id"`
	Type       string `json:"type"`
	Damage     int    `json:"damage"`
	Experience int    `json:"experience"`
}

type MarketV1 struct {
	Resources []MarketCurveV1 `json:"resources"`
	Orders    []TradeOrderV1  `json:"orders,omitempty"`
}

type MarketCurveV1 struct {
	Resource      string  `json:"resource"`
	MinPrice      float64 `json:"min_price"`
	MaxPrice      float64 `json:"max_price"`
	DesiredAmount int     `json:"desired_amount"`
	Stock         int     `json:"stock"`
	Price         float64 `json:"price"`
}

type TradeOrderV1 struct {
	ID       uint64 `json:"id"`
	PlayerID string `json:"player_id"`
	PlanetID uint64 `json:"planet_id,omitempty"`
	Resource string `json:"resource"`
	Type     string `json:"type"`
	Amount   int    `json:"amount"`
}

func WriteSnapshot(path string, snap GameV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	defer enc.Close()

	bw := bufio.NewWriterSize(enc, 256*1024)
	defer bw.Flush()

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}

	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	return nil
}

func ReadSnapshot(path string) (GameV1, error) {
	var snap GameV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	// Header line is informational; the gob body carries it too.
	_, _ = br.ReadBytes('\n')

	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	if snap.Header.Version != Version {
		return snap, fmt.Errorf("unsupported snapshot version %d", snap.Header.Version)
	}
	return snap, nil
}

// ReadHeader returns only the header line, without decoding the body.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()
	line, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("decode header: %w", err)
	}
	return h, nil
}
