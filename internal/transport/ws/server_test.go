package ws

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"starconquest.ai/internal/persistence/docstore"
	"starconquest.ai/internal/protocol"
	"starconquest.ai/internal/sim/economy"
	"starconquest.ai/internal/sim/galaxy"
	"starconquest.ai/internal/sim/game"
	"starconquest.ai/internal/sim/multigame"
	"starconquest.ai/internal/sim/tuning"
)

func startServer(t *testing.T) (*multigame.Manager, string) {
	t.Helper()
	m, err := multigame.NewManager(multigame.Config{Store: docstore.NewMemory(), Rules: tuning.Defaults()})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	_, err = m.Create(context.Background(), multigame.CreateRequest{
		ID:   "g1",
		Seed: 3,
		Players: []game.PlayerSpec{
			{ID: "p1", Name: "Alice", Type: economy.PlayerHuman},
			{ID: "p2", Name: "Bob", Type: economy.PlayerHuman},
		},
		Options: galaxy.Options{Systems: 2, PlanetsPerSystem: 4},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	srv := httptest.NewServer(NewServer(m, log.New(io.Discard, "", 0)).Handler())
	t.Cleanup(srv.Close)
	return m, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	if err := conn.WriteJSON(v); err != nil {
		t.Fatalf("write: %v", err)
	}
}

// readType reads messages until one of type typ arrives and decodes it into out.
func readType(t *testing.T, conn *websocket.Conn, typ string, out any) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		_, b, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read waiting for %s: %v", typ, err)
		}
		base, err := protocol.DecodeBase(b)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if base.Type != typ {
			continue
		}
		if err := json.Unmarshal(b, out); err != nil {
			t.Fatalf("unmarshal %s: %v", typ, err)
		}
		return
	}
}

func join(t *testing.T, url, player string) (*websocket.Conn, protocol.WelcomeMsg) {
	t.Helper()
	conn := dial(t, url)
	send(t, conn, protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version, GameID: "g1", PlayerID: player})
	var w protocol.WelcomeMsg
	readType(t, conn, protocol.TypeWelcome, &w)
	return conn, w
}

func action(reqID, kind string, payload string) protocol.ActionMsg {
	return protocol.ActionMsg{
		Type:            protocol.TypeAction,
		ProtocolVersion: protocol.Version,
		ReqID:           reqID,
		Kind:            kind,
		Payload:         json.RawMessage(payload),
	}
}

func TestActionRoundTripAndTurnEvents(t *testing.T) {
	_, url := startServer(t)
	c1, w := join(t, url, "p1")
	if w.SessionID == "" || w.GameID != "g1" || w.Turn != 0 || w.Digest == "" {
		t.Fatalf("welcome=%+v", w)
	}

	send(t, c1, action("r1", "SUBMIT_TRADE", `{"resource":"ORE","trade_type":"SELL","amount":1}`))
	var res protocol.ResultMsg
	readType(t, c1, protocol.TypeResult, &res)
	if !res.OK || res.ReqID != "r1" || res.OrderID == 0 {
		t.Fatalf("result=%+v", res)
	}

	send(t, c1, action("r2", "ENQUEUE_IMPROVEMENT", `{"planet_id":9999,"item":"FARM"}`))
	readType(t, c1, protocol.TypeResult, &res)
	if res.OK || res.ReqID != "r2" || res.Code != protocol.ErrNotFound {
		t.Fatalf("result=%+v", res)
	}

	send(t, c1, action("r3", "TELEPORT", ``))
	readType(t, c1, protocol.TypeResult, &res)
	if res.OK || res.Code != protocol.ErrBadRequest {
		t.Fatalf("unknown kind result=%+v", res)
	}

	c2, _ := join(t, url, "p2")
	send(t, c1, action("e1", "END_TURN", ``))
	readType(t, c1, protocol.TypeResult, &res)
	if !res.OK {
		t.Fatalf("p1 end turn: %+v", res)
	}
	send(t, c2, action("e2", "END_TURN", ``))

	var te protocol.TurnEventsMsg
	readType(t, c1, protocol.TypeTurnEvents, &te)
	if te.Turn != 1 || te.GameID != "g1" {
		t.Fatalf("p1 turn events=%+v", te)
	}
	readType(t, c2, protocol.TypeTurnEvents, &te)
	if te.Turn != 1 {
		t.Fatalf("p2 turn events=%+v", te)
	}
}

func TestActionForAnotherSeatRejected(t *testing.T) {
	_, url := startServer(t)
	c1, _ := join(t, url, "p1")
	am := action("x", "END_TURN", ``)
	am.PlayerID = "p2"
	send(t, c1, am)
	var res protocol.ResultMsg
	readType(t, c1, protocol.TypeResult, &res)
	if res.OK || res.Code != protocol.ErrNoPermission {
		t.Fatalf("result=%+v", res)
	}
}

func TestRateLimit(t *testing.T) {
	_, url := startServer(t)
	c1, _ := join(t, url, "p1")
	const n = 60
	for i := 0; i < n; i++ {
		send(t, c1, action("", "CANCEL_RESEARCH_ITEM", ``))
	}
	limited := 0
	for i := 0; i < n; i++ {
		var res protocol.ResultMsg
		readType(t, c1, protocol.TypeResult, &res)
		if res.Code == protocol.ErrRateLimit {
			limited++
		}
	}
	if limited == 0 {
		t.Fatalf("no action was rate limited")
	}
}

func TestHelloForUnknownGame(t *testing.T) {
	_, url := startServer(t)
	conn := dial(t, url)
	send(t, conn, protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version, GameID: "nope", PlayerID: "p1"})
	var em protocol.ErrorMsg
	readType(t, conn, protocol.TypeError, &em)
	if em.Code != protocol.ErrGameNotFound {
		t.Fatalf("error=%+v", em)
	}
}
