package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/sp14green/chessarena/internal/obslog"
	"github.com/sp14green/chessarena/internal/room"
	"github.com/sp14green/chessarena/internal/rules"
	"github.com/sp14green/chessarena/pkg/gamedto"
)

// handleWS upgrades the connection and attaches the client to its
// session. One goroutine drains the session's outbound frames; the
// handler itself loops on inbound frames until the peer goes away.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "gameID")
	clientID := strings.TrimSpace(r.URL.Query().Get("client_id"))
	if clientID == "" {
		http.Error(w, "client_id is required", http.StatusBadRequest)
		return
	}

	sess, err := s.manager.GetOrCreate(r.Context(), gameID)
	if err != nil {
		obslog.L().Error("ws_session_load_failed", zap.String("game_id", gameID), zap.Error(err))
		http.Error(w, "failed to load game", http.StatusInternalServerError)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		obslog.L().Warn("ws_accept_failed", zap.String("game_id", gameID), zap.Error(err))
		return
	}

	sub, color, state, err := sess.Join(clientID)
	if errors.Is(err, room.ErrSessionClosed) {
		// the reaper closed the session between lookup and join; a
		// fresh lookup recreates it from its snapshot
		sess, err = s.manager.GetOrCreate(r.Context(), gameID)
		if err == nil {
			sub, color, state, err = sess.Join(clientID)
		}
	}
	if errors.Is(err, room.ErrSessionFull) {
		_ = wsjson.Write(r.Context(), conn, gamedto.ErrorFrame{Type: gamedto.FrameError, Message: "session is full"})
		_ = conn.Close(websocket.StatusPolicyViolation, "session full")
		return
	}
	if err != nil {
		_ = conn.Close(websocket.StatusInternalError, "join failed")
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer func() {
		cancel()
		sess.Disconnect(sub)
		_ = conn.Close(websocket.StatusNormalClosure, "")
	}()

	init := gamedto.InitFrame{
		Type:        gamedto.FrameInit,
		Color:       string(color),
		Position:    state.FEN,
		MoveHistory: state.MovesUCI,
		Status:      string(state.Status),
	}
	if err := wsjson.Write(ctx, conn, init); err != nil {
		return
	}

	go writeLoop(ctx, conn, sub)
	s.readLoop(ctx, conn, sess, clientID)
}

// writeLoop forwards session broadcasts to one peer. It exits when the
// subscriber channel closes (disconnect) or the context ends.
func writeLoop(ctx context.Context, conn *websocket.Conn, sub *room.Subscriber) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-sub.Out:
			if !ok {
				return
			}
			if err := wsjson.Write(ctx, conn, frame); err != nil {
				return
			}
		}
	}
}

func (s *Server) readLoop(ctx context.Context, conn *websocket.Conn, sess *room.Session, clientID string) {
	for {
		var frame gamedto.ClientFrame
		if err := wsjson.Read(ctx, conn, &frame); err != nil {
			return
		}

		var opErr error
		switch frame.Type {
		case gamedto.FrameMove:
			_, opErr = sess.ApplyMove(ctx, clientID, frame.From, frame.To, frame.Promotion)
		case gamedto.FrameReset:
			_, opErr = sess.Reset(ctx, clientID)
		default:
			opErr = room.ErrUnknownFrame
		}

		if opErr != nil {
			// validation failures go back to the originator only
			msg := clientMessage(opErr)
			if err := wsjson.Write(ctx, conn, gamedto.ErrorFrame{Type: gamedto.FrameError, Message: msg}); err != nil {
				return
			}
		}
	}
}

// clientMessage maps operation errors to stable client-facing text.
func clientMessage(err error) string {
	switch {
	case errors.Is(err, rules.ErrMalformedMove):
		return "malformed move"
	case errors.Is(err, rules.ErrIllegalMove):
		return "illegal move"
	case errors.Is(err, room.ErrNotYourTurn):
		return "not your turn"
	case errors.Is(err, room.ErrGameOver):
		return "game is over"
	case errors.Is(err, room.ErrNotJoined):
		return "not joined"
	case errors.Is(err, room.ErrUnknownFrame):
		return "unknown message type"
	default:
		return "request failed"
	}
}
