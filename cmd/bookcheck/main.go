package main

import (
	"fmt"
	"log"
	"os"

	"github.com/sp14green/chessarena/internal/ai"
	"github.com/sp14green/chessarena/internal/rules"
)

// bookcheck loads an opening book and probes it, either with the
// starting position or with FENs passed as arguments.
func main() {
	path := os.Getenv("OPENING_BOOK_PATH")
	if len(os.Args) > 1 && os.Args[1] != "" {
		path = os.Args[1]
	}
	if path == "" {
		log.Fatal("usage: bookcheck <book.json> [fen...] (or set OPENING_BOOK_PATH)")
	}

	book, err := ai.LoadBook(path)
	if err != nil {
		log.Fatalf("book load error: %v", err)
	}
	if book == nil {
		log.Fatal("no book loaded")
	}
	fmt.Printf("book ok: %d positions\n", book.Len())

	fens := os.Args[2:]
	if len(fens) == 0 {
		fens = []string{"startpos"}
	}
	for _, fen := range fens {
		pos, err := rules.Decode(fen)
		if err != nil {
			log.Printf("bad fen %q: %v", fen, err)
			continue
		}
		candidates := book.Candidates(pos.Chess())
		if len(candidates) == 0 {
			fmt.Printf("%s: no book moves\n", pos.PlacementKey())
			continue
		}
		fmt.Printf("%s:", pos.PlacementKey())
		for _, mv := range candidates {
			fmt.Printf(" %s", mv.String())
		}
		fmt.Println()
	}
}
