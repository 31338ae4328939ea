package rules

import (
	"errors"
	"fmt"
	"strings"

	chesslib "github.com/corentings/chess/v2"
)

var (
	ErrMalformedMove = errors.New("malformed move")
	ErrIllegalMove   = errors.New("illegal move")
)

// Color identifies a chess side.
type Color string

const (
	White Color = "white"
	Black Color = "black"
)

func (c Color) Other() Color {
	if c == White {
		return Black
	}
	return White
}

// Status is the derived state of a game. It is recomputed from the
// position after every applied move and never set directly.
type Status string

const (
	StatusOngoing          Status = "ongoing"
	StatusCheck            Status = "check"
	StatusCheckmate        Status = "checkmate"
	StatusStalemate        Status = "stalemate"
	StatusDrawInsufficient Status = "draw_insufficient_material"
	StatusDrawFiftyMove    Status = "draw_fifty_move"
	StatusDrawRepetition   Status = "draw_threefold_repetition"
)

// Terminal reports whether no further moves are accepted in this status.
func (s Status) Terminal() bool {
	switch s {
	case StatusOngoing, StatusCheck:
		return false
	default:
		return true
	}
}

// Position is the authoritative board state of one game. It wraps the
// chess library game so callers never touch library types directly,
// except for moves returned by LegalMoves/FindMove.
type Position struct {
	game *chesslib.Game
}

// Initial returns the canonical starting position.
func Initial() *Position {
	return &Position{game: chesslib.NewGame()}
}

// Decode builds a position from a full FEN string.
func Decode(fen string) (*Position, error) {
	trimmed := strings.TrimSpace(fen)
	if trimmed == "" || trimmed == "startpos" {
		return Initial(), nil
	}
	option, err := chesslib.FEN(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse fen %q: %w", fen, err)
	}
	return &Position{game: chesslib.NewGame(option)}, nil
}

// Replay reconstructs a position by applying UCI moves from the initial
// position. The stored move list is the authoritative replay log;
// replaying it is the only way a persisted game is rebuilt.
func Replay(movesUCI []string) (*Position, error) {
	game := chesslib.NewGame()
	for i, mv := range movesUCI {
		if err := game.PushNotationMove(strings.ToLower(strings.TrimSpace(mv)), chesslib.UCINotation{}, nil); err != nil {
			return nil, fmt.Errorf("replay move %d %q: %w", i+1, mv, err)
		}
	}
	return &Position{game: game}, nil
}

// FEN returns the full canonical encoding including side to move,
// castling rights, and en passant square.
func (p *Position) FEN() string {
	return p.game.FEN()
}

// PlacementKey returns the piece-placement field of the FEN only. The
// opening book is keyed by this encoding; it is not interchangeable
// with the full FEN.
func (p *Position) PlacementKey() string {
	return PlacementKey(p.game.FEN())
}

// PlacementKey extracts the piece-placement field from a FEN string.
func PlacementKey(fen string) string {
	fields := strings.Fields(strings.TrimSpace(fen))
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func (p *Position) SideToMove() Color {
	if p.game.Position().Turn() == chesslib.White {
		return White
	}
	return Black
}

// LegalMoves returns every legal move in the current position.
func (p *Position) LegalMoves() []chesslib.Move {
	return p.game.ValidMoves()
}

// Chess exposes the underlying library position for the evaluator and
// the search engine, which walk positions immutably via Update.
func (p *Position) Chess() *chesslib.Position {
	return p.game.Position()
}

// FindMove resolves a from/to/promotion triple against the legal moves
// of the current position. ErrMalformedMove covers unparsable input,
// ErrIllegalMove a well-formed move the position does not admit.
func (p *Position) FindMove(from, to, promotion string) (chesslib.Move, error) {
	fromSq, ok := parseSquare(from)
	if !ok {
		return chesslib.Move{}, fmt.Errorf("%w: bad from square %q", ErrMalformedMove, from)
	}
	toSq, ok := parseSquare(to)
	if !ok {
		return chesslib.Move{}, fmt.Errorf("%w: bad to square %q", ErrMalformedMove, to)
	}
	promo, ok := parsePromotion(promotion)
	if !ok {
		return chesslib.Move{}, fmt.Errorf("%w: bad promotion %q", ErrMalformedMove, promotion)
	}
	for _, mv := range p.game.ValidMoves() {
		if mv.S1() != fromSq || mv.S2() != toSq {
			continue
		}
		if promo != chesslib.NoPieceType && mv.Promo() != promo {
			continue
		}
		if promo == chesslib.NoPieceType && mv.Promo() != chesslib.NoPieceType {
			// promotion moves require an explicit piece choice
			continue
		}
		return mv, nil
	}
	return chesslib.Move{}, fmt.Errorf("%w: %s%s%s", ErrIllegalMove, from, to, promotion)
}

// SAN renders a move in algebraic notation against the current
// position. Call before Apply.
func (p *Position) SAN(mv *chesslib.Move) string {
	return chesslib.AlgebraicNotation{}.Encode(p.game.Position(), mv)
}

// Apply pushes a move obtained from LegalMoves/FindMove.
func (p *Position) Apply(mv *chesslib.Move) error {
	if err := p.game.Move(mv, nil); err != nil {
		return fmt.Errorf("%w: %s", ErrIllegalMove, mv.String())
	}
	return nil
}

// Status derives the session status from the position. Checkmate and
// stalemate come from the position itself, automatic draws from the
// recorded game outcome, claimable draws from the draw-eligibility
// rules, and check from the last applied move.
func (p *Position) Status() Status {
	switch p.game.Position().Status() {
	case chesslib.Checkmate:
		return StatusCheckmate
	case chesslib.Stalemate:
		return StatusStalemate
	}

	if p.game.Outcome() == chesslib.Draw {
		switch p.game.Method() {
		case chesslib.InsufficientMaterial:
			return StatusDrawInsufficient
		case chesslib.SeventyFiveMoveRule:
			return StatusDrawFiftyMove
		case chesslib.FivefoldRepetition:
			return StatusDrawRepetition
		}
	}

	for _, method := range p.game.EligibleDraws() {
		switch method {
		case chesslib.FiftyMoveRule:
			return StatusDrawFiftyMove
		case chesslib.ThreefoldRepetition:
			return StatusDrawRepetition
		}
	}

	if last := p.lastMove(); last != nil && last.HasTag(chesslib.Check) {
		return StatusCheck
	}
	return StatusOngoing
}

func (p *Position) lastMove() *chesslib.Move {
	moves := p.game.Moves()
	if len(moves) == 0 {
		return nil
	}
	return moves[len(moves)-1]
}

func parseSquare(s string) (chesslib.Square, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != 2 {
		return 0, false
	}
	file := s[0]
	rank := s[1]
	if file < 'a' || file > 'h' || rank < '1' || rank > '8' {
		return 0, false
	}
	return chesslib.NewSquare(chesslib.File(file-'a'), chesslib.Rank(rank-'1')), true
}

func parsePromotion(s string) (chesslib.PieceType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return chesslib.NoPieceType, true
	case "q":
		return chesslib.Queen, true
	case "r":
		return chesslib.Rook, true
	case "b":
		return chesslib.Bishop, true
	case "n":
		return chesslib.Knight, true
	default:
		return chesslib.NoPieceType, false
	}
}
