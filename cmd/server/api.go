package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"starconquest.ai/internal/persistence/docstore"
	"starconquest.ai/internal/protocol"
	"starconquest.ai/internal/sim/economy"
	"starconquest.ai/internal/sim/galaxy"
	"starconquest.ai/internal/sim/game"
	"starconquest.ai/internal/sim/multigame"
)

type api struct {
	games  *multigame.Manager
	logger *log.Logger
}

type createPlayer struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

type createGameRequest struct {
	ID      string         `json:"id,omitempty"`
	Seed    int64          `json:"seed,omitempty"`
	Players []createPlayer `json:"players"`
	Options galaxy.Options `json:"options"`
}

func newRouter(games *multigame.Manager, wsHandler http.HandlerFunc, logger *log.Logger) http.Handler {
	a := &api{games: games, logger: logger}
	r := chi.NewRouter()

	r.Get("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte("ok"))
	})
	r.Get("/metrics", a.handleMetrics)

	r.Route("/v1/games", func(r chi.Router) {
		r.Get("/", a.handleList)
		r.Post("/", a.handleCreate)
		r.Get("/{id}", a.handleInfo)
		r.Post("/{id}/snapshot", a.handleSnapshot)
		r.Post("/{id}/resolve", a.handleResolve)
	})
	r.Get("/v1/ws", wsHandler)
	return r
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}

func writeError(rw http.ResponseWriter, status int, code string, err error) {
	writeJSON(rw, status, map[string]any{"ok": false, "code": code, "error": err.Error()})
}

func (a *api) gameError(rw http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, multigame.ErrGameNotFound):
		writeError(rw, http.StatusNotFound, protocol.ErrGameNotFound, err)
	case errors.Is(err, game.ErrTurnNotReady):
		writeError(rw, http.StatusConflict, protocol.ErrConflict, err)
	case errors.Is(err, docstore.ErrExists):
		writeError(rw, http.StatusConflict, protocol.ErrConflict, err)
	default:
		a.logger.Printf("api: %v", err)
		writeError(rw, http.StatusInternalServerError, protocol.ErrInternal, err)
	}
}

func (a *api) handleList(rw http.ResponseWriter, r *http.Request) {
	ids, err := a.games.GameIDs(r.Context())
	if err != nil {
		a.gameError(rw, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(rw, http.StatusOK, map[string]any{"games": ids})
}

func (a *api) handleCreate(rw http.ResponseWriter, r *http.Request) {
	var req createGameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, err)
		return
	}
	specs := make([]game.PlayerSpec, 0, len(req.Players))
	for _, p := range req.Players {
		typ := economy.PlayerHuman
		if p.Type != "" {
			t, ok := economy.ParsePlayerType(strings.ToUpper(p.Type))
			if !ok {
				writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, fmt.Errorf("unknown player type %q", p.Type))
				return
			}
			typ = t
		}
		specs = append(specs, game.PlayerSpec{ID: p.ID, Name: p.Name, Type: typ})
	}
	inf, err := a.games.Create(r.Context(), multigame.CreateRequest{
		ID:      req.ID,
		Seed:    req.Seed,
		Players: specs,
		Options: req.Options,
	})
	if errors.Is(err, docstore.ErrExists) {
		a.gameError(rw, err)
		return
	}
	if err != nil {
		writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, err)
		return
	}
	writeJSON(rw, http.StatusCreated, inf)
}

func (a *api) handleInfo(rw http.ResponseWriter, r *http.Request) {
	inf, err := a.games.Info(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.gameError(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, inf)
}

func (a *api) handleSnapshot(rw http.ResponseWriter, r *http.Request) {
	path, err := a.games.ExportSnapshot(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.gameError(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, map[string]any{"ok": true, "path": path})
}

// handleResolve is an operator endpoint: loopback callers only.
func (a *api) handleResolve(rw http.ResponseWriter, r *http.Request) {
	if !isLoopbackRemote(r.RemoteAddr) {
		http.Error(rw, "forbidden", http.StatusForbidden)
		return
	}
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))
	out, err := a.games.Resolve(r.Context(), chi.URLParam(r, "id"), force)
	if err != nil {
		a.gameError(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, map[string]any{"ok": true, "turn": out.Turn, "digest": out.Digest, "destroyed": out.Destroyed})
}

func (a *api) handleMetrics(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
	ids, err := a.games.GameIDs(r.Context())
	if err != nil {
		rw.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	fmt.Fprintf(rw, "# HELP starconquest_games Stored games.\n")
	fmt.Fprintf(rw, "# TYPE starconquest_games gauge\n")
	fmt.Fprintf(rw, "starconquest_games %d\n", len(ids))

	fmt.Fprintf(rw, "# HELP starconquest_game_turn Current turn per game.\n")
	fmt.Fprintf(rw, "# TYPE starconquest_game_turn gauge\n")
	for _, id := range ids {
		inf, err := a.games.Info(r.Context(), id)
		if err != nil {
			continue
		}
		fmt.Fprintf(rw, "starconquest_game_turn{game=%q} %d\n", id, inf.Turn)
	}
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
