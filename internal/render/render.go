// Package render produces board snapshot images for the REST surface.
package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	imagedraw "image/draw"
	"image/png"
	"strings"

	nchess "github.com/corentings/chess/v2"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

type Options struct {
	// LastMove, when set, tints the from/to squares.
	LastMove *Highlight
}

type Highlight struct {
	From nchess.Square
	To   nchess.Square
}

var (
	lightSquare    = color.RGBA{233, 207, 163, 255}
	darkSquare     = color.RGBA{187, 136, 96, 255}
	highlightColor = color.NRGBA{R: 255, G: 228, B: 120, A: 140}
	whitePieceText = color.NRGBA{R: 250, G: 250, B: 250, A: 255}
	blackPieceText = color.NRGBA{R: 20, G: 20, B: 20, A: 255}
	coordinateText = color.NRGBA{R: 60, G: 50, B: 40, A: 255}
)

// BoardPNG renders the position as a PNG with rank/file coordinates in
// the margin and letter glyphs for pieces (upper case white, lower case
// black).
func BoardPNG(board *nchess.Board, opts Options) ([]byte, error) {
	if board == nil {
		return nil, fmt.Errorf("board is nil")
	}

	const (
		squareSize = 48
		boardSize  = squareSize * 8
		margin     = 20
	)

	total := boardSize + margin*2
	origin := image.Point{X: margin, Y: margin}
	img := image.NewRGBA(image.Rect(0, 0, total, total))
	imagedraw.Draw(img, img.Bounds(), image.NewUniform(color.RGBA{245, 240, 230, 255}), image.Point{}, imagedraw.Src)

	drawSquares(img, squareSize, origin)
	if opts.LastMove != nil {
		drawSquareOverlay(img, opts.LastMove.From, squareSize, origin, highlightColor)
		drawSquareOverlay(img, opts.LastMove.To, squareSize, origin, highlightColor)
	}
	drawPieces(img, board, squareSize, origin)
	drawCoordinates(img, squareSize, origin, margin)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

var (
	ranks = []nchess.Rank{nchess.Rank8, nchess.Rank7, nchess.Rank6, nchess.Rank5, nchess.Rank4, nchess.Rank3, nchess.Rank2, nchess.Rank1}
	files = []nchess.File{nchess.FileA, nchess.FileB, nchess.FileC, nchess.FileD, nchess.FileE, nchess.FileF, nchess.FileG, nchess.FileH}
)

func drawSquares(dst imagedraw.Image, squareSize int, origin image.Point) {
	for row, rank := range ranks {
		for col, file := range files {
			x := origin.X + col*squareSize
			y := origin.Y + row*squareSize
			sq := nchess.NewSquare(file, rank)
			imagedraw.Draw(dst, image.Rect(x, y, x+squareSize, y+squareSize), image.NewUniform(squareColor(sq)), image.Point{}, imagedraw.Src)
		}
	}
}

func drawSquareOverlay(img *image.RGBA, sq nchess.Square, squareSize int, origin image.Point, clr color.Color) {
	rect := squareRect(sq, squareSize, origin)
	imagedraw.Draw(img, rect, image.NewUniform(clr), image.Point{}, imagedraw.Over)
}

func drawPieces(img *image.RGBA, board *nchess.Board, squareSize int, origin image.Point) {
	drawer := &font.Drawer{Dst: img, Face: basicfont.Face7x13}
	boardMap := board.SquareMap()
	for sq, piece := range boardMap {
		if piece == nchess.NoPiece {
			continue
		}
		letter := pieceLetter(piece)
		if piece.Color() == nchess.White {
			drawer.Src = image.NewUniform(whitePieceText)
		} else {
			drawer.Src = image.NewUniform(blackPieceText)
		}
		rect := squareRect(sq, squareSize, origin)
		centerX := rect.Min.X + squareSize/2
		baseline := rect.Min.Y + squareSize/2 + basicfont.Face7x13.Metrics().Ascent.Ceil()/2
		drawCenteredText(drawer, letter, centerX, baseline)
	}
}

func drawCoordinates(img *image.RGBA, squareSize int, origin image.Point, margin int) {
	drawer := &font.Drawer{Dst: img, Face: basicfont.Face7x13, Src: image.NewUniform(coordinateText)}
	ascent := basicfont.Face7x13.Metrics().Ascent.Ceil()
	boardEndY := origin.Y + 8*squareSize

	for row, rank := range ranks {
		baseline := origin.Y + row*squareSize + squareSize/2 + ascent/2
		drawCenteredText(drawer, rank.String(), origin.X-margin/2, baseline)
	}
	for col, file := range files {
		centerX := origin.X + col*squareSize + squareSize/2
		drawCenteredText(drawer, file.String(), centerX, boardEndY+ascent+2)
	}
}

func drawCenteredText(drawer *font.Drawer, text string, centerX, baseline int) {
	if text == "" {
		return
	}
	width := drawer.MeasureString(text).Round()
	drawer.Dot = fixed.P(centerX-width/2, baseline)
	drawer.DrawString(text)
}

func pieceLetter(piece nchess.Piece) string {
	var letter string
	switch piece.Type() {
	case nchess.King:
		letter = "K"
	case nchess.Queen:
		letter = "Q"
	case nchess.Rook:
		letter = "R"
	case nchess.Bishop:
		letter = "B"
	case nchess.Knight:
		letter = "N"
	case nchess.Pawn:
		letter = "P"
	default:
		return ""
	}
	if piece.Color() == nchess.Black {
		return strings.ToLower(letter)
	}
	return letter
}

func squareRect(sq nchess.Square, squareSize int, origin image.Point) image.Rectangle {
	col := int(sq.File())
	row := 7 - int(sq.Rank())
	x := origin.X + col*squareSize
	y := origin.Y + row*squareSize
	return image.Rect(x, y, x+squareSize, y+squareSize)
}

func squareColor(sq nchess.Square) color.Color {
	if (int(sq.File())+int(sq.Rank()))%2 == 0 {
		return darkSquare
	}
	return lightSquare
}
