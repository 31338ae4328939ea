package ai

import (
	chesslib "github.com/corentings/chess/v2"
)

// Material values in centipawns. The king carries no material weight;
// mate is handled by the search, not the evaluation.
var materialValues = map[chesslib.PieceType]float64{
	chesslib.Pawn:   100,
	chesslib.Knight: 320,
	chesslib.Bishop: 330,
	chesslib.Rook:   500,
	chesslib.Queen:  900,
	chesslib.King:   0,
}

// Piece-square bonuses indexed by square with A1 = 0, from white's
// point of view. Black squares are mirrored so one table serves both
// sides.
var pawnSquares = [64]float64{
	0, 0, 0, 0, 0, 0, 0, 0,
	5, 5, 5, -5, -5, 5, 5, 5,
	1, 1, 2, 3, 3, 2, 1, 1,
	0.5, 0.5, 1, 2.5, 2.5, 1, 0.5, 0.5,
	0, 0, 0, 2, 2, 0, 0, 0,
	0.5, -0.5, -1, 0, 0, -1, -0.5, 0.5,
	0.5, 1, 1, -2, -2, 1, 1, 0.5,
	0, 0, 0, 0, 0, 0, 0, 0,
}

var knightSquares = [64]float64{
	-5, -4, -3, -3, -3, -3, -4, -5,
	-4, -2, 0, 0.5, 0.5, 0, -2, -4,
	-3, 0.5, 1, 1.5, 1.5, 1, 0.5, -3,
	-3, 0, 1.5, 2, 2, 1.5, 0, -3,
	-3, 0.5, 1.5, 2, 2, 1.5, 0.5, -3,
	-3, 0, 1, 1.5, 1.5, 1, 0, -3,
	-4, -2, 0, 0, 0, 0, -2, -4,
	-5, -4, -3, -3, -3, -3, -4, -5,
}

var pieceSquares = map[chesslib.PieceType]*[64]float64{
	chesslib.Pawn:   &pawnSquares,
	chesslib.Knight: &knightSquares,
}

// Evaluate scores a position in pawn units. Positive favors white,
// magnitude is material plus positional bonus. Pure function of the
// position; the search calls it at arbitrary depth.
func Evaluate(pos *chesslib.Position) float64 {
	total := 0.0
	for sq, piece := range pos.Board().SquareMap() {
		value := materialValues[piece.Type()]
		if table, ok := pieceSquares[piece.Type()]; ok {
			idx := int(sq)
			if piece.Color() == chesslib.Black {
				idx ^= 56 // vertical mirror
			}
			value += table[idx]
		}
		if piece.Color() == chesslib.White {
			total += value
		} else {
			total -= value
		}
	}
	return total / 100.0
}
