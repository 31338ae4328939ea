// Package gamedto defines the JSON shapes exchanged with clients over
// the websocket and REST surfaces.
package gamedto

// Frame type tags for websocket messages, both directions.
const (
	FrameInit  = "init"
	FrameMove  = "move"
	FrameError = "error"
	FrameReset = "reset"
)

// ClientFrame is a message received from a websocket client. Type is
// always set; the move fields are meaningful only for FrameMove.
type ClientFrame struct {
	Type      string `json:"type"`
	From      string `json:"from,omitempty"`
	To        string `json:"to,omitempty"`
	Promotion string `json:"promotion,omitempty"`
}

// InitFrame is the first server frame on a new connection and, with
// Type set to FrameReset, the fan-out frame after a reset.
type InitFrame struct {
	Type        string   `json:"type"`
	Color       string   `json:"color"`
	Position    string   `json:"position"`
	MoveHistory []string `json:"moveHistory"`
	Status      string   `json:"status"`
}

// MoveFrame relays an accepted move to the other connected client.
type MoveFrame struct {
	Type      string `json:"type"`
	From      string `json:"from"`
	To        string `json:"to"`
	Promotion string `json:"promotion,omitempty"`
	Status    string `json:"status"`
}

// ErrorFrame reports a rejected client frame to its originator only.
type ErrorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
