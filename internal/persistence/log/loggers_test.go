package log

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"
)

func readLines(t *testing.T, path string) []map[string]any {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		t.Fatalf("zstd: %v", err)
	}
	defer dec.Close()
	var out []map[string]any
	sc := bufio.NewScanner(dec)
	for sc.Scan() {
		var m map[string]any
		if err := json.Unmarshal(sc.Bytes(), &m); err != nil {
			t.Fatalf("line: %v", err)
		}
		out = append(out, m)
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}
	return out
}

func TestTurnLoggerWritesCompressedLines(t *testing.T) {
	dir := t.TempDir()
	l := NewTurnLogger(dir)
	l.w.now = func() time.Time { return time.Date(2026, 3, 1, 14, 5, 0, 0, time.UTC) }
	for turn := 1; turn <= 2; turn++ {
		err := l.WriteTurn(TurnEntry{
			GameID: "g1",
			Turn:   turn,
			Events: map[string][]TurnEvent{"p1": {{Type: "SHIP_BUILT", Message: "scout built"}}},
			Digest: "abc",
		})
		if err != nil {
			t.Fatalf("WriteTurn: %v", err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	lines := readLines(t, filepath.Join(dir, "turns", "turns-2026-03-01-14.jsonl.zst"))
	if len(lines) != 2 {
		t.Fatalf("lines=%d want 2", len(lines))
	}
	if lines[1]["turn"].(float64) != 2 || lines[0]["game_id"] != "g1" {
		t.Fatalf("unexpected entries: %v", lines)
	}
}

func TestWriterRotatesHourly(t *testing.T) {
	dir := t.TempDir()
	w := NewJSONLZstdWriter(dir, "actions")
	at := time.Date(2026, 3, 1, 14, 59, 0, 0, time.UTC)
	w.now = func() time.Time { return at }
	if err := w.Write(ActionEntry{GameID: "g1", Kind: "END_TURN", OK: true}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	at = at.Add(2 * time.Minute)
	if err := w.Write(ActionEntry{GameID: "g1", Kind: "RESIGN", OK: true}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	for _, name := range []string{"actions-2026-03-01-14.jsonl.zst", "actions-2026-03-01-15.jsonl.zst"} {
		if n := len(readLines(t, filepath.Join(dir, name))); n != 1 {
			t.Fatalf("%s has %d lines", name, n)
		}
	}
}

func TestReadBackGameLogs(t *testing.T) {
	dir := t.TempDir()
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	tl := NewTurnLogger(dir)
	al := NewActionLogger(dir)
	tl.w.now = func() time.Time { return at }
	al.w.now = func() time.Time { return at }

	for turn := 1; turn <= 3; turn++ {
		if err := al.WriteAction(ActionEntry{GameID: "g1", Turn: turn - 1, PlayerID: "p1", Kind: "END_TURN", OK: true}); err != nil {
			t.Fatalf("WriteAction: %v", err)
		}
		if err := tl.WriteTurn(TurnEntry{GameID: "g1", Turn: turn, Digest: "d"}); err != nil {
			t.Fatalf("WriteTurn: %v", err)
		}
		at = at.Add(time.Hour)
	}
	_ = tl.Close()
	_ = al.Close()

	turns, err := ReadTurns(dir)
	if err != nil {
		t.Fatalf("ReadTurns: %v", err)
	}
	if len(turns) != 3 || turns[0].Turn != 1 || turns[2].Turn != 3 {
		t.Fatalf("turns=%+v", turns)
	}
	acts, err := ReadActions(dir)
	if err != nil {
		t.Fatalf("ReadActions: %v", err)
	}
	if len(acts) != 3 || acts[1].Turn != 1 || acts[1].Kind != "END_TURN" {
		t.Fatalf("actions=%+v", acts)
	}
	files, _ := ListFiles(filepath.Join(dir, "turns"), "turns")
	if len(files) != 3 {
		t.Fatalf("files=%v", files)
	}
}
