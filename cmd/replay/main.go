package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	plog "starconquest.ai/internal/persistence/log"
	"starconquest.ai/internal/persistence/snapshot"
	"starconquest.ai/internal/sim/game"
	"starconquest.ai/internal/sim/tuning"
)

func main() {
	var (
		snapPath   = flag.String("snapshot", "", "path to .snap.zst")
		gameDir    = flag.String("logs", "", "game data dir holding turns/ and actions/ logs (optional)")
		turns      = flag.Int("turns", 0, "force-resolve this many turns without actions and print digests")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (optional)")
	)
	flag.Parse()

	if *snapPath == "" {
		fmt.Fprintln(os.Stderr, "missing -snapshot")
		os.Exit(2)
	}
	rules := tuning.Defaults()
	if *tuningPath != "" {
		t, err := tuning.Load(*tuningPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "load tuning:", err)
			os.Exit(1)
		}
		rules = t
	}

	snap, err := snapshot.ReadSnapshot(*snapPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}
	fmt.Printf("snapshot v%d game=%s turn=%d seed=%d players=%d planets=%d orders=%d\n",
		snap.Header.Version, snap.Header.GameID, snap.Header.Turn, snap.Seed,
		len(snap.Players), len(snap.Planets), len(snap.Market.Orders))

	g, err := game.Import(snap, rules, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, "import snapshot:", err)
		os.Exit(1)
	}

	if *gameDir != "" {
		checked, err := verifyLogs(g, *gameDir, os.Stdout)
		if err != nil {
			fmt.Fprintln(os.Stderr, "replay:", err)
			os.Exit(1)
		}
		fmt.Printf("replay ok: checked=%d turns (from snapshot turn=%d)\n", checked, snap.Header.Turn)
	}
	if *turns > 0 {
		if err := resolveTurns(g, *turns, os.Stdout); err != nil {
			fmt.Fprintln(os.Stderr, "resolve:", err)
			os.Exit(1)
		}
	}
}

// resolveTurns force-resolves n turns and prints one digest line per turn.
func resolveTurns(g *game.Game, n int, out io.Writer) error {
	for i := 0; i < n; i++ {
		res, err := g.ForceResolveTurn()
		if err != nil {
			return err
		}
		digest, err := g.Digest()
		if err != nil {
			return err
		}
		events := 0
		for _, es := range res.Events {
			events += len(es)
		}
		fmt.Fprintf(out, "turn=%d digest=%s events=%d destroyed=%v\n", res.Turn, digest, events, res.Destroyed)
	}
	return nil
}

// verifyLogs re-applies the accepted actions of every logged turn after the game's turn,
// resolves, and compares the digest with the one logged at resolution time.
func verifyLogs(g *game.Game, gameDir string, out io.Writer) (int, error) {
	turns, err := plog.ReadTurns(gameDir)
	if err != nil {
		return 0, err
	}
	acts, err := plog.ReadActions(gameDir)
	if err != nil {
		return 0, err
	}

	checked := 0
	ai := 0
	for _, te := range turns {
		if te.Turn <= g.Turn {
			continue
		}
		if te.Turn != g.Turn+1 {
			return checked, fmt.Errorf("turn gap: at %d, log has %d", g.Turn, te.Turn)
		}
		for ai < len(acts) && (!acts[ai].OK || acts[ai].Turn <= g.Turn) {
			a := acts[ai]
			ai++
			if !a.OK || a.Turn < g.Turn {
				continue
			}
			var act game.Action
			if err := json.Unmarshal(a.Payload, &act); err != nil {
				return checked, fmt.Errorf("turn %d: action payload: %w", g.Turn, err)
			}
			if _, err := g.ApplyAction(a.PlayerID, act); err != nil {
				return checked, fmt.Errorf("turn %d: %s %s no longer applies: %w", g.Turn, a.PlayerID, a.Kind, err)
			}
		}
		if _, err := g.ForceResolveTurn(); err != nil {
			return checked, err
		}
		g.TurnStarted = te.ResolvedAt / 1000
		got, err := g.Digest()
		if err != nil {
			return checked, err
		}
		if got != te.Digest {
			return checked, fmt.Errorf("digest mismatch at turn %d: got=%s want=%s", te.Turn, got, te.Digest)
		}
		checked++
		fmt.Fprintf(out, "turn=%d digest=%s ok\n", te.Turn, got)
	}
	return checked, nil
}
