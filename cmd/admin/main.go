package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"starconquest.ai/internal/persistence/docstore"
	plog "starconquest.ai/internal/persistence/log"
	"starconquest.ai/internal/persistence/snapshot"
	"starconquest.ai/internal/sim/game"
	"starconquest.ai/internal/sim/tuning"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "show":
			showCmd(os.Args[2:])
			return
		case "export":
			exportCmd(os.Args[2:])
			return
		case "import":
			importCmd(os.Args[2:])
			return
		case "turns":
			turnsCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		case "resolve":
			resolveCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

func dbFlags(fs *flag.FlagSet) (dataDir, dbPath *string) {
	dataDir = fs.String("data", "./data", "runtime data directory")
	dbPath = fs.String("db", "", "sqlite path (default: <data>/games.sqlite)")
	return
}

func openDB(dataDir, dbPath string) *docstore.SQLite {
	if strings.TrimSpace(dbPath) == "" {
		dbPath = filepath.Join(dataDir, "games.sqlite")
	}
	s, err := docstore.OpenSQLite(dbPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open db:", err)
		os.Exit(1)
	}
	return s
}

func loadDoc(s docstore.Store, id string) (snapshot.GameV1, docstore.Record) {
	rec, err := s.Get(context.Background(), id)
	if err != nil {
		fmt.Fprintln(os.Stderr, "get:", err)
		os.Exit(1)
	}
	var doc snapshot.GameV1
	if err := docstore.Decode(rec.Body, &doc); err != nil {
		fmt.Fprintln(os.Stderr, "decode:", err)
		os.Exit(1)
	}
	return doc, rec
}

func requireGame(id string) {
	if strings.TrimSpace(id) == "" {
		fmt.Fprintln(os.Stderr, "missing -game")
		os.Exit(2)
	}
}

func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir, dbPath := dbFlags(fs)
	_ = fs.Parse(args)

	s := openDB(*dataDir, *dbPath)
	defer s.Close()
	ids, err := s.List(context.Background())
	if err != nil {
		fmt.Fprintln(os.Stderr, "list:", err)
		os.Exit(1)
	}
	for _, id := range ids {
		doc, rec := loadDoc(s, id)
		fmt.Printf("%s turn=%d players=%d planets=%d version=%s updated=%s\n",
			id, doc.Header.Turn, len(doc.Players), len(doc.Planets), rec.Version, rec.UpdatedAt.Format("2006-01-02T15:04:05Z"))
	}
}

// showCmd prints the stored document as indented JSON.
func showCmd(args []string) {
	fs := flag.NewFlagSet("show", flag.ExitOnError)
	dataDir, dbPath := dbFlags(fs)
	gameID := fs.String("game", "", "game id")
	_ = fs.Parse(args)
	requireGame(*gameID)

	s := openDB(*dataDir, *dbPath)
	defer s.Close()
	doc, _ := loadDoc(s, *gameID)
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(doc)
}

func exportCmd(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	dataDir, dbPath := dbFlags(fs)
	gameID := fs.String("game", "", "game id")
	outPath := fs.String("out", "", "output snapshot path (default: <data>/games/<id>/snapshots/<turn>.snap.zst)")
	_ = fs.Parse(args)
	requireGame(*gameID)

	s := openDB(*dataDir, *dbPath)
	defer s.Close()
	doc, _ := loadDoc(s, *gameID)
	if strings.TrimSpace(*outPath) == "" {
		*outPath = filepath.Join(*dataDir, "games", *gameID, "snapshots", fmt.Sprintf("%d.snap.zst", doc.Header.Turn))
	}
	if err := snapshot.WriteSnapshot(*outPath, doc); err != nil {
		fmt.Fprintln(os.Stderr, "write snapshot:", err)
		os.Exit(1)
	}
	digest, _ := game.Digest(doc)
	fmt.Printf("export ok: game=%s turn=%d digest=%s out=%s\n", *gameID, doc.Header.Turn, digest, *outPath)
}

// importCmd stores a snapshot file as a new game document. The document is validated by
// a full import first.
func importCmd(args []string) {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	dataDir, dbPath := dbFlags(fs)
	snapPath := fs.String("snapshot", "", "snapshot path")
	_ = fs.Parse(args)
	if strings.TrimSpace(*snapPath) == "" {
		fmt.Fprintln(os.Stderr, "missing -snapshot")
		os.Exit(2)
	}

	doc, err := snapshot.ReadSnapshot(*snapPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}
	g, err := game.Import(doc, tuning.Defaults(), nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, "import:", err)
		os.Exit(1)
	}
	body, err := docstore.Encode(g.Export())
	if err != nil {
		fmt.Fprintln(os.Stderr, "encode:", err)
		os.Exit(1)
	}
	s := openDB(*dataDir, *dbPath)
	defer s.Close()
	if _, err := s.Create(context.Background(), g.ID, body); err != nil {
		fmt.Fprintln(os.Stderr, "store:", err)
		os.Exit(1)
	}
	fmt.Printf("import ok: game=%s turn=%d\n", g.ID, g.Turn)
}

func turnsCmd(args []string) {
	fs := flag.NewFlagSet("turns", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	gameID := fs.String("game", "", "game id")
	_ = fs.Parse(args)
	requireGame(*gameID)

	turns, err := plog.ReadTurns(filepath.Join(*dataDir, "games", *gameID))
	if err != nil {
		fmt.Fprintln(os.Stderr, "read turns:", err)
		os.Exit(1)
	}
	for _, te := range turns {
		events := 0
		for _, es := range te.Events {
			events += len(es)
		}
		fmt.Printf("turn=%d forced=%v events=%d destroyed=%v digest=%s\n", te.Turn, te.Forced, events, te.Destroyed, te.Digest)
	}
}
