// Package server exposes the REST and websocket surfaces.
package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sp14green/chessarena/internal/ai"
	"github.com/sp14green/chessarena/internal/obslog"
	"github.com/sp14green/chessarena/internal/render"
	"github.com/sp14green/chessarena/internal/room"
	"github.com/sp14green/chessarena/internal/rules"
	"github.com/sp14green/chessarena/pkg/gamedto"
)

type Server struct {
	manager  *room.Manager
	selector *ai.Selector
}

func New(manager *room.Manager, selector *ai.Selector) *Server {
	return &Server{manager: manager, selector: selector}
}

func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	r.Get("/waiting-games/", s.handleWaitingGames)
	r.Get("/join-game/{gameID}", s.handleJoinGame)
	r.Post("/create-game/", s.handleCreateGame)
	r.Post("/evalbar/", s.handleEval)
	r.Post("/best-move/", s.handleBestMove)
	r.Get("/games/{gameID}/board.png", s.handleBoardPNG)
	r.Get("/ws/chess/{gameID}", s.handleWS)

	return r
}

func (s *Server) handleWaitingGames(w http.ResponseWriter, r *http.Request) {
	ids := s.manager.ListWaiting()
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, gamedto.WaitingGamesResponse{Games: ids})
}

// handleJoinGame is the read-only state query. It creates the session
// when missing, so spectators and reconnecting clients share one path.
func (s *Server) handleJoinGame(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "gameID")
	sess, err := s.manager.GetOrCreate(r.Context(), gameID)
	if err != nil {
		obslog.L().Error("join_game_failed", zap.String("game_id", gameID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, gamedto.ErrorResponse{Error: "failed to load game"})
		return
	}
	state := sess.State()
	writeJSON(w, http.StatusOK, gamedto.GameStateResponse{
		GameID:      gameID,
		FEN:         state.FEN,
		MoveHistory: state.MovesUCI,
		MovesSAN:    state.MovesSAN,
		Status:      string(state.Status),
	})
}

func (s *Server) handleCreateGame(w http.ResponseWriter, r *http.Request) {
	gameID := uuid.NewString()
	if _, err := s.manager.GetOrCreate(r.Context(), gameID); err != nil {
		writeJSON(w, http.StatusInternalServerError, gamedto.ErrorResponse{Error: "failed to create game"})
		return
	}
	writeJSON(w, http.StatusOK, gamedto.CreateGameResponse{GameID: gameID})
}

func (s *Server) handleEval(w http.ResponseWriter, r *http.Request) {
	var req gamedto.EvalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, gamedto.ErrorResponse{Error: "invalid request body"})
		return
	}
	pos, err := rules.Decode(req.FEN)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, gamedto.ErrorResponse{Error: "invalid fen"})
		return
	}
	score := ai.Evaluate(pos.Chess())
	writeJSON(w, http.StatusOK, gamedto.EvalResponse{Evaluation: score})
}

func (s *Server) handleBestMove(w http.ResponseWriter, r *http.Request) {
	var req gamedto.BestMoveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, gamedto.ErrorResponse{Error: "invalid request body"})
		return
	}
	pos, err := rules.Decode(req.FEN)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, gamedto.ErrorResponse{Error: "invalid fen"})
		return
	}

	mode := ai.Mode(r.URL.Query().Get("game_mode"))
	if mode == "" {
		mode = ai.ModeSearch
	}
	mv, err := s.selector.Select(r.Context(), pos.Chess(), mode)
	switch {
	case errors.Is(err, ai.ErrUnknownMode):
		writeJSON(w, http.StatusBadRequest, gamedto.ErrorResponse{Error: "unknown game_mode"})
		return
	case errors.Is(err, ai.ErrNoMove):
		writeJSON(w, http.StatusUnprocessableEntity, gamedto.ErrorResponse{Error: "no legal moves"})
		return
	case err != nil:
		obslog.L().Error("best_move_failed", zap.String("mode", string(mode)), zap.Error(err))
		writeJSON(w, http.StatusBadGateway, gamedto.ErrorResponse{Error: "move selection failed"})
		return
	}
	writeJSON(w, http.StatusOK, gamedto.BestMoveResponse{BestMove: mv.String()})
}

// handleBoardPNG renders a snapshot image. This is a query; an id with
// no live session is a 404, never an implicit create.
func (s *Server) handleBoardPNG(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "gameID")
	sess, ok := s.manager.Get(gameID)
	if !ok {
		http.NotFound(w, r)
		return
	}
	state := sess.State()
	pos, err := rules.Decode(state.FEN)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, gamedto.ErrorResponse{Error: "failed to render board"})
		return
	}
	png, err := render.BoardPNG(pos.Chess().Board(), render.Options{})
	if err != nil {
		obslog.L().Error("board_render_failed", zap.String("game_id", gameID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, gamedto.ErrorResponse{Error: "failed to render board"})
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
