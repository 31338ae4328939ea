package ai

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	chesslib "github.com/corentings/chess/v2"
)

// Book maps a piece-placement key (the first FEN field only, not the
// full position string) to candidate replies in UCI notation. The file
// format is a single JSON object of key -> ["e2e4", ...] entries.
type Book struct {
	entries map[string][]string
}

// LoadBook reads an opening book from path. An empty path is not an
// error; it yields a nil book and every lookup misses.
func LoadBook(path string) (*Book, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open opening book %q: %w", path, err)
	}
	entries := make(map[string][]string)
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("decode opening book %q: %w", path, err)
	}
	return &Book{entries: entries}, nil
}

// NewBook builds a book from in-memory entries, mainly for tests.
func NewBook(entries map[string][]string) *Book {
	return &Book{entries: entries}
}

// Len returns the number of keyed positions in the book.
func (b *Book) Len() int {
	if b == nil {
		return 0
	}
	return len(b.entries)
}

// Candidates returns the book moves for the position that are legal
// right now. Book entries may reference moves recorded in a different
// context, so every candidate is re-validated against the live legal
// move set before being offered.
func (b *Book) Candidates(pos *chesslib.Position) []chesslib.Move {
	if b == nil || pos == nil {
		return nil
	}
	key := placementKeyOf(pos)
	stored, ok := b.entries[key]
	if !ok || len(stored) == 0 {
		return nil
	}

	legal := make(map[string]chesslib.Move)
	for _, mv := range pos.ValidMoves() {
		legal[mv.String()] = mv
	}

	candidates := make([]chesslib.Move, 0, len(stored))
	for _, uci := range stored {
		if mv, ok := legal[strings.ToLower(strings.TrimSpace(uci))]; ok {
			candidates = append(candidates, mv)
		}
	}
	return candidates
}

func placementKeyOf(pos *chesslib.Position) string {
	fields := strings.Fields(pos.String())
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
