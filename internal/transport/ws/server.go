package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"starconquest.ai/internal/protocol"
	"starconquest.ai/internal/sim/game"
	"starconquest.ai/internal/sim/multigame"
)

const (
	actionsPerSecond = 10
	actionBurst      = 20
	outQueue         = 16
)

// Games is the part of the game manager a connection needs.
type Games interface {
	Info(ctx context.Context, id string) (multigame.Info, error)
	ApplyAction(ctx context.Context, gameID, playerID string, act game.Action) (game.Result, error)
	Subscribe(gameID, playerID string) (<-chan protocol.TurnEventsMsg, func())
}

type Server struct {
	games Games
	log   *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(games Games, logger *log.Logger) *Server {
	return &Server{
		games: games,
		log:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

type session struct {
	id       string
	gameID   string
	playerID string
	out      chan []byte
	limiter  *rate.Limiter
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		sess := s.handshake(ctx, conn)
		if sess == nil {
			return
		}
		events, unsubscribe := s.games.Subscribe(sess.gameID, sess.playerID)
		defer unsubscribe()

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b := <-sess.out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Turn events forwarder.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case msg := <-events:
					sess.send(ctx, msg)
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			s.handleMessage(ctx, sess, msg)
		}
		s.log.Printf("session %s closed (game %s player %s)", sess.id, sess.gameID, sess.playerID)
	}
}

func (s *Server) handleMessage(ctx context.Context, sess *session, msg []byte) {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		sess.send(ctx, errorMsg(protocol.ErrProtoBadRequest, "malformed message"))
		return
	}
	if base.Type != protocol.TypeAction {
		sess.send(ctx, errorMsg(protocol.ErrProtoBadRequest, "unexpected message type "+base.Type))
		return
	}
	var am protocol.ActionMsg
	if err := json.Unmarshal(msg, &am); err != nil {
		sess.send(ctx, errorMsg(protocol.ErrProtoBadRequest, "malformed ACTION"))
		return
	}
	if am.ProtocolVersion != "" && am.ProtocolVersion != protocol.Version {
		sess.send(ctx, errorMsg(protocol.ErrProtoBadRequest, "bad protocol_version"))
		return
	}
	if (am.GameID != "" && am.GameID != sess.gameID) || (am.PlayerID != "" && am.PlayerID != sess.playerID) {
		sess.send(ctx, resultMsg(am.ReqID, game.Result{Code: protocol.ErrNoPermission, Reason: "action for another seat"}))
		return
	}
	if !sess.limiter.Allow() {
		sess.send(ctx, resultMsg(am.ReqID, game.Result{Code: protocol.ErrRateLimit, Reason: "too many actions"}))
		return
	}
	var act game.Action
	if len(am.Payload) > 0 {
		if err := json.Unmarshal(am.Payload, &act); err != nil {
			sess.send(ctx, resultMsg(am.ReqID, game.Result{Code: protocol.ErrBadRequest, Reason: "malformed payload"}))
			return
		}
	}
	act.Kind = game.ActionKind(am.Kind)
	res, err := s.games.ApplyAction(ctx, sess.gameID, sess.playerID, act)
	if err != nil && res.Code == "" {
		res.Code = protocol.ErrInternal
		res.Reason = err.Error()
	}
	sess.send(ctx, resultMsg(am.ReqID, res))
}

func (s *Server) handshake(ctx context.Context, conn *websocket.Conn) *session {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		closePolicy(conn, "expected HELLO")
		return nil
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		closePolicy(conn, "malformed HELLO")
		return nil
	}
	if hello.ProtocolVersion != protocol.Version {
		closePolicy(conn, "bad protocol_version")
		return nil
	}
	inf, err := s.games.Info(ctx, hello.GameID)
	if err != nil {
		_ = writeJSON(conn, errorMsg(protocol.ErrGameNotFound, "unknown game"))
		closePolicy(conn, "unknown game")
		return nil
	}
	seated := false
	for _, p := range inf.Players {
		if p.ID == hello.PlayerID {
			seated = true
			break
		}
	}
	if !seated {
		_ = writeJSON(conn, errorMsg(protocol.ErrNotFound, "unknown player"))
		closePolicy(conn, "unknown player")
		return nil
	}

	sess := &session{
		id:       uuid.NewString(),
		gameID:   hello.GameID,
		playerID: hello.PlayerID,
		out:      make(chan []byte, outQueue),
		limiter:  rate.NewLimiter(actionsPerSecond, actionBurst),
	}
	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       sess.id,
		GameID:          inf.ID,
		PlayerID:        sess.playerID,
		Turn:            inf.Turn,
		Digest:          inf.Digest,
	}
	if err := writeJSON(conn, welcome); err != nil {
		return nil
	}
	s.log.Printf("session %s: player %s joined game %s at turn %d", sess.id, sess.playerID, sess.gameID, inf.Turn)
	return sess
}

// send queues v for the writer goroutine. It gives up when the connection is gone.
func (sess *session) send(ctx context.Context, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	select {
	case sess.out <- b:
	case <-ctx.Done():
	}
}

func resultMsg(reqID string, res game.Result) protocol.ResultMsg {
	return protocol.ResultMsg{
		Type:            protocol.TypeResult,
		ProtocolVersion: protocol.Version,
		ReqID:           reqID,
		OK:              res.OK,
		Code:            res.Code,
		Reason:          res.Reason,
		Turn:            res.Turn,
		FleetID:         res.FleetID,
		OrderID:         res.OrderID,
	}
}

func errorMsg(code, reason string) protocol.ErrorMsg {
	return protocol.ErrorMsg{Type: protocol.TypeError, ProtocolVersion: protocol.Version, Code: code, Reason: reason}
}

func closePolicy(conn *websocket.Conn, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason), time.Now().Add(time.Second))
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
