package ai

import (
	"errors"
	"math"

	chesslib "github.com/corentings/chess/v2"
)

// ErrNoMove is returned when the side to move has no legal move, i.e.
// the position is already terminal.
var ErrNoMove = errors.New("no move available")

// mateScore dominates any material evaluation so a forced mate always
// outranks a material win. Remaining depth is added on top so the
// search prefers the shorter mate.
const mateScore = 10000

// Search returns the minimax value of the position explored to the
// given depth with alpha-beta pruning. Positive favors white.
func Search(pos *chesslib.Position, depth int) float64 {
	return alphaBeta(pos, depth, math.Inf(-1), math.Inf(1))
}

func alphaBeta(pos *chesslib.Position, depth int, alpha, beta float64) float64 {
	switch pos.Status() {
	case chesslib.Checkmate:
		if pos.Turn() == chesslib.White {
			return -(mateScore + float64(depth))
		}
		return mateScore + float64(depth)
	case chesslib.Stalemate:
		return 0
	}
	if depth <= 0 {
		return Evaluate(pos)
	}

	moves := pos.ValidMoves()
	if pos.Turn() == chesslib.White {
		best := math.Inf(-1)
		for i := range moves {
			value := alphaBeta(pos.Update(&moves[i]), depth-1, alpha, beta)
			if value > best {
				best = value
			}
			if value > alpha {
				alpha = value
			}
			if beta <= alpha {
				break
			}
		}
		return best
	}

	best := math.Inf(1)
	for i := range moves {
		value := alphaBeta(pos.Update(&moves[i]), depth-1, alpha, beta)
		if value < best {
			best = value
		}
		if value < beta {
			beta = value
		}
		if beta <= alpha {
			break
		}
	}
	return best
}

// BestMove runs the root of the search and returns the move producing
// the extremal value for the side to move. Ties keep the first move in
// generation order, so results are deterministic for a fixed position
// and depth. ErrNoMove signals a terminal root.
func BestMove(pos *chesslib.Position, depth int) (chesslib.Move, float64, error) {
	moves := pos.ValidMoves()
	if len(moves) == 0 {
		return chesslib.Move{}, 0, ErrNoMove
	}

	maximize := pos.Turn() == chesslib.White
	alpha := math.Inf(-1)
	beta := math.Inf(1)

	var best chesslib.Move
	var bestValue float64
	for i := range moves {
		value := alphaBeta(pos.Update(&moves[i]), depth-1, alpha, beta)
		if i == 0 || (maximize && value > bestValue) || (!maximize && value < bestValue) {
			best = moves[i]
			bestValue = value
		}
		if maximize {
			if value > alpha {
				alpha = value
			}
		} else if value < beta {
			beta = value
		}
	}
	return best, bestValue, nil
}
