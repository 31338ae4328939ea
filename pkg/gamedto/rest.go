package gamedto

// WaitingGamesResponse lists joinable sessions: exactly one color
// claimed, the other free.
type WaitingGamesResponse struct {
	Games []string `json:"games"`
}

// GameStateResponse is the read-only session view served by the join
// endpoint. Spectators poll this without holding a color.
type GameStateResponse struct {
	GameID      string   `json:"game_id"`
	FEN         string   `json:"fen"`
	MoveHistory []string `json:"move_history"`
	MovesSAN    []string `json:"moves_san"`
	Status      string   `json:"status"`
}

type CreateGameResponse struct {
	GameID string `json:"game_id"`
}

type EvalRequest struct {
	FEN string `json:"fen"`
}

type EvalResponse struct {
	Evaluation float64 `json:"evaluation"`
}

type BestMoveRequest struct {
	FEN string `json:"fen"`
}

type BestMoveResponse struct {
	BestMove string `json:"best_move"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
