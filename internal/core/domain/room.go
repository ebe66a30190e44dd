/*
 * file: room.go
 * package: domain
 * description:
 *     In-memory room and match state. Nothing here is persisted; rooms and
 *     matches live only as long as a process keeps them in RoomService's
 *     maps (see services.RoomService).
 */

package domain

import "github.com/google/uuid"

// BoardSize is the fixed dimension of the five-in-a-row board.
const BoardSize = 15

// WinLength is the number of contiguous same-colored stones needed to win.
const WinLength = 5

// Color identifies a seat / stone color.
type Color string

const (
	Black Color = "black"
	White Color = "white"
)

// Other returns the opposing color.
func (c Color) Other() Color {
	if c == Black {
		return White
	}
	return Black
}

// Coord is a board cell address.
type Coord struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// InBounds reports whether the coordinate falls on the board.
func (c Coord) InBounds() bool {
	return c.Row >= 0 && c.Row < BoardSize && c.Col >= 0 && c.Col < BoardSize
}

// Move is one placed stone.
type Move struct {
	Color Color `json:"color"`
	Coord Coord `json:"coord"`
}

// RoomState is the lobby/playing state of a Room.
type RoomState string

const (
	Waiting RoomState = "waiting"
	Playing RoomState = "playing"
)

// Seat holds one occupant of a colored seat plus their ready flag.
type Seat struct {
	Username string
	Ready    bool
}

// Match is a single game within a room, from match.start to match.over.
type Match struct {
	MatchID uuid.UUID
	Turn    Color
	Moves   []Move
	Board   [BoardSize][BoardSize]Color // empty string cell == unoccupied
}

// Room is the authoritative in-memory lobby/match state for one room.
// Mutation is serialized by Mu; callers outside services.RoomService must
// never touch a Room's fields directly.
type Room struct {
	ID           uuid.UUID
	Title        string
	Black        *Seat
	White        *Seat
	Spectators   []string // set semantics: at most one entry per username
	State        RoomState
	CurrentMatch *Match
}

// SeatInfo is the externally-visible view of an occupied seat.
type SeatInfo struct {
	Username string `json:"username"`
	Ready    bool   `json:"ready"`
}

// SeatsSnapshot is the externally-visible view of both seats.
type SeatsSnapshot struct {
	Black *SeatInfo `json:"black"`
	White *SeatInfo `json:"white"`
}

// RoomSnapshot is a self-contained, serializable view of a Room.
type RoomSnapshot struct {
	RoomID     string        `json:"roomId"`
	Title      string        `json:"title"`
	Seats      SeatsSnapshot `json:"seats"`
	Spectators []string      `json:"spectators"`
	State      RoomState     `json:"state"`
}
