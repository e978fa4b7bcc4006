package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/gorilla/websocket"

	"starconquest.ai/internal/protocol"
)

// bot takes a seat and ends every turn, logging what happened to it.
func main() {
	var (
		url    = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		gameID = flag.String("game", "", "game id")
		player = flag.String("player", "", "seat to take")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	if *gameID == "" || *player == "" {
		logger.Fatalf("need -game and -player")
	}
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		GameID:          *gameID,
		PlayerID:        *player,
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	go func() {
		<-stop
		_ = conn.Close()
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeWelcome:
			var w protocol.WelcomeMsg
			if err := json.Unmarshal(msg, &w); err != nil {
				continue
			}
			logger.Printf("WELCOME session=%s game=%s turn=%d", w.SessionID, w.GameID, w.Turn)
			endTurn(conn, w.Turn)

		case protocol.TypeTurnEvents:
			var te protocol.TurnEventsMsg
			if err := json.Unmarshal(msg, &te); err != nil {
				continue
			}
			for _, e := range te.Events {
				logger.Printf("turn %d: %s %s", te.Turn, e.Type, e.Message)
			}
			for _, id := range te.Destroyed {
				if id == *player {
					logger.Printf("destroyed at turn %d", te.Turn)
					return
				}
			}
			endTurn(conn, te.Turn)

		case protocol.TypeResult:
			var r protocol.ResultMsg
			if err := json.Unmarshal(msg, &r); err != nil {
				continue
			}
			if !r.OK {
				logger.Printf("%s rejected: %s %s", r.ReqID, r.Code, r.Reason)
			}

		case protocol.TypeError:
			var e protocol.ErrorMsg
			if err := json.Unmarshal(msg, &e); err == nil {
				logger.Printf("ERROR %s: %s", e.Code, e.Reason)
			}
		}
	}
}

func endTurn(conn *websocket.Conn, turn int) {
	_ = conn.WriteJSON(protocol.ActionMsg{
		Type:            protocol.TypeAction,
		ProtocolVersion: protocol.Version,
		ReqID:           fmt.Sprintf("end_%d", turn),
		Kind:            "END_TURN",
	})
}
