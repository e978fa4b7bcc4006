package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

// JSONLZstdWriter appends JSON lines to hourly zstd files named <prefix>-<yyyy-mm-dd-hh>.jsonl.zst.
type JSONLZstdWriter struct {
	baseDir string
	prefix  string
	now     func() time.Time

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

func NewJSONLZstdWriter(baseDir, prefix string) *JSONLZstdWriter {
	return &JSONLZstdWriter{
		baseDir: baseDir,
		prefix:  prefix,
		now:     time.Now,
	}
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *JSONLZstdWriter) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	hour := w.now().UTC().Format("2006-01-02-15")
	if hour != w.curHour {
		if err := w.rotateLocked(hour); err != nil {
			return err
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

// Flushed lines only land in the file once the zstd frame is closed, so readers of a
// live file should Close (or wait for the hour to roll) first.
func (w *JSONLZstdWriter) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	path := w.pathForHour(hour)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 128*1024)
	w.curHour = hour
	return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	var err1 error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err1 = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	w.curHour = ""
	return err1
}

func (w *JSONLZstdWriter) pathForHour(hour string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
}

type TurnEvent struct {
	Type          string `json:"type"`
	Message       string `json:"message"`
	PlanetID      uint64 `json:"planet_id,omitempty"`
	OtherPlayerID string `json:"other_player_id,omitempty"`
	Amount        int    `json:"amount,omitempty"`
}

// TurnEntry is one resolved turn.
type TurnEntry struct {
	GameID     string                 `json:"game_id"`
	Turn       int                    `json:"turn"`
	ResolvedAt int64                  `json:"resolved_at"`
	Forced     bool                   `json:"forced,omitempty"`
	Events     map[string][]TurnEvent `json:"events"`
	Destroyed  []string               `json:"destroyed,omitempty"`
	Digest     string                 `json:"digest"`
}

// ActionEntry records one player action and its outcome.
type ActionEntry struct {
	GameID   string          `json:"game_id"`
	Turn     int             `json:"turn"`
	PlayerID string          `json:"player_id"`
	Kind     string          `json:"kind"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	OK       bool            `json:"ok"`
	Code     string          `json:"code,omitempty"`
	Attempts int             `json:"attempts,omitempty"`
	At       int64           `json:"at"`
}

// TurnLogger writes one JSONL entry per resolved turn (compressed).
type TurnLogger struct{ w *JSONLZstdWriter }

func NewTurnLogger(gameDir string) *TurnLogger {
	return &TurnLogger{w: NewJSONLZstdWriter(filepath.Join(gameDir, "turns"), "turns")}
}

func (l *TurnLogger) WriteTurn(v TurnEntry) error { return l.w.Write(v) }
func (l *TurnLogger) Close() error                { return l.w.Close() }

// ActionLogger writes the action audit trail (compressed).
type ActionLogger struct{ w *JSONLZstdWriter }

func NewActionLogger(gameDir string) *ActionLogger {
	return &ActionLogger{w: NewJSONLZstdWriter(filepath.Join(gameDir, "actions"), "actions")}
}

func (l *ActionLogger) WriteAction(v ActionEntry) error { return l.w.Write(v) }
func (l *ActionLogger) Close() error                    { return l.w.Close() }
