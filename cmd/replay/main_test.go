package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"starconquest.ai/internal/persistence/docstore"
	"starconquest.ai/internal/persistence/snapshot"
	"starconquest.ai/internal/sim/economy"
	"starconquest.ai/internal/sim/galaxy"
	"starconquest.ai/internal/sim/game"
	"starconquest.ai/internal/sim/multigame"
	"starconquest.ai/internal/sim/tuning"
)

func TestVerifyLogsReproducesServerTurns(t *testing.T) {
	dataDir := t.TempDir()
	at := time.Unix(1_700_000_000, 0)
	m, err := multigame.NewManager(multigame.Config{
		Store:   docstore.NewMemory(),
		Rules:   tuning.Defaults(),
		DataDir: dataDir,
		Now:     func() time.Time { return at },
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	ctx := context.Background()
	_, err = m.Create(ctx, multigame.CreateRequest{
		ID:   "g1",
		Seed: 21,
		Players: []game.PlayerSpec{
			{ID: "p1", Name: "Alice", Type: economy.PlayerHuman},
			{ID: "ai", Name: "Hal", Type: economy.PlayerNormal},
		},
		Options: galaxy.Options{Systems: 2, PlanetsPerSystem: 5},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	snapPath, err := m.ExportSnapshot(ctx, "g1")
	if err != nil {
		t.Fatalf("ExportSnapshot: %v", err)
	}

	g, _ := m.Load(ctx, "g1")
	home := g.Players["p1"].HomePlanetID
	steps := [][]game.Action{
		{{Kind: game.ActEnqueueImprovement, PlanetID: home, Item: "FARM"}, {Kind: game.ActSubmitTrade, Resource: "ORE", TradeType: "SELL", Amount: 1}},
		{{Kind: game.ActEnqueueImprovement, PlanetID: 9999, Item: "MINE"}},
		{},
	}
	for _, acts := range steps {
		for _, act := range acts {
			_, _ = m.ApplyAction(ctx, "g1", "p1", act)
		}
		at = at.Add(time.Minute)
		if _, err := m.ApplyAction(ctx, "g1", "p1", game.Action{Kind: game.ActEndTurn}); err != nil {
			t.Fatalf("end turn: %v", err)
		}
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	snap, err := snapshot.ReadSnapshot(snapPath)
	if err != nil {
		t.Fatalf("ReadSnapshot: %v", err)
	}
	rg, err := game.Import(snap, tuning.Defaults(), nil)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	var out bytes.Buffer
	checked, err := verifyLogs(rg, filepath.Join(dataDir, "games", "g1"), &out)
	if err != nil {
		t.Fatalf("verifyLogs: %v\n%s", err, out.String())
	}
	if checked != 3 {
		t.Fatalf("checked=%d want 3\n%s", checked, out.String())
	}
}

func TestResolveTurnsPrintsDigests(t *testing.T) {
	g, err := game.StartGame("g1", 4, []game.PlayerSpec{
		{ID: "a", Name: "A", Type: economy.PlayerEasy},
		{ID: "b", Name: "B", Type: economy.PlayerHard},
	}, galaxy.Options{Systems: 2, PlanetsPerSystem: 4}, tuning.Defaults(), nil)
	if err != nil {
		t.Fatalf("StartGame: %v", err)
	}
	var out bytes.Buffer
	if err := resolveTurns(g, 3, &out); err != nil {
		t.Fatalf("resolveTurns: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 3 || !strings.HasPrefix(lines[2], "turn=3 digest=") {
		t.Fatalf("output:\n%s", out.String())
	}
}
