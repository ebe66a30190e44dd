package services

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fiveinarow/server/internal/core/domain"
)

func readyBoth(t *testing.T, s *RoomService, black, white string) {
	t.Helper()
	_, _, _, err := s.SetReady(black, true)
	require.NoError(t, err)
	_, _, startEvt, err := s.SetReady(white, true)
	require.NoError(t, err)
	require.NotNil(t, startEvt)
}

func setupMatch(t *testing.T) (*RoomService, string, string) {
	t.Helper()
	s := NewRoomService()
	roomID, _ := s.CreateRoom("alice", "")
	_, err := s.JoinRoom("bob", roomID)
	require.NoError(t, err)
	_, _, err = s.TakeSeat("bob", SeatWhite)
	require.NoError(t, err)
	readyBoth(t, s, "alice", "bob")
	return s, "alice", "bob"
}

func TestCreateRoom_SeatsCreatorBlackNotReady(t *testing.T) {
	s := NewRoomService()

	roomID, snap := s.CreateRoom("alice", "  ")

	assert.Equal(t, roomID.String(), snap.RoomID)
	assert.Equal(t, defaultRoomTitle, snap.Title)
	require.NotNil(t, snap.Seats.Black)
	assert.Equal(t, "alice", snap.Seats.Black.Username)
	assert.False(t, snap.Seats.Black.Ready)
	assert.Nil(t, snap.Seats.White)
	assert.Equal(t, domain.Waiting, snap.State)
}

func TestJoinRoom_UnknownRoom(t *testing.T) {
	s := NewRoomService()
	_, err := s.JoinRoom("bob", uuid.New())
	apiErr := AsError(err)
	assert.Equal(t, RoomNotFound, apiErr.Kind)
}

func TestJoinRoom_AlreadyMemberIsNoop(t *testing.T) {
	s := NewRoomService()
	roomID, _ := s.CreateRoom("alice", "")

	snap1, err := s.JoinRoom("alice", roomID)
	require.NoError(t, err)
	snap2, err := s.JoinRoom("alice", roomID)
	require.NoError(t, err)

	assert.Equal(t, snap1, snap2)
	assert.Empty(t, snap2.Spectators)
}

func TestJoinRoom_AddsSpectator(t *testing.T) {
	s := NewRoomService()
	roomID, _ := s.CreateRoom("alice", "")

	snap, err := s.JoinRoom("bob", roomID)
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, snap.Spectators)
}

func TestTakeSeat_SeatAlreadyTaken(t *testing.T) {
	s := NewRoomService()
	roomID, _ := s.CreateRoom("alice", "")
	_, err := s.JoinRoom("bob", roomID)
	require.NoError(t, err)

	_, _, err = s.TakeSeat("bob", SeatBlack)
	apiErr := AsError(err)
	assert.Equal(t, SeatTaken, apiErr.Kind)
}

func TestTakeSeat_ResetsReadyOnSeatChange(t *testing.T) {
	s := NewRoomService()
	roomID, _ := s.CreateRoom("alice", "")
	_, err := s.JoinRoom("bob", roomID)
	require.NoError(t, err)
	_, _, err = s.TakeSeat("bob", SeatWhite)
	require.NoError(t, err)

	_, snap, _, err := s.SetReady("bob", true)
	require.NoError(t, err)
	require.NotNil(t, snap.Seats.White)
	assert.True(t, snap.Seats.White.Ready)

	_, snap, err = s.TakeSeat("bob", SeatSpectator)
	require.NoError(t, err)
	assert.Nil(t, snap.Seats.White)
	assert.Equal(t, []string{"bob"}, snap.Spectators)
}

func TestSetReady_BothReadyStartsMatch(t *testing.T) {
	s, _, _ := setupMatch(t)
	roomID, ok := s.RoomIDForUser("alice")
	require.True(t, ok)

	snap, ok := s.Snapshot(roomID)
	require.True(t, ok)
	assert.Equal(t, domain.Playing, snap.State)
}

func TestMatchMove_WinByRow(t *testing.T) {
	s, alice, bob := setupMatch(t)

	type mv struct {
		user string
		row  int
		col  int
	}
	moves := []mv{
		{alice, 7, 3}, {bob, 0, 0},
		{alice, 7, 4}, {bob, 0, 1},
		{alice, 7, 5}, {bob, 0, 2},
		{alice, 7, 6}, {bob, 0, 3},
	}
	for _, m := range moves {
		_, result, _, err := s.MatchMove(m.user, domain.Coord{Row: m.row, Col: m.col})
		require.NoError(t, err)
		assert.True(t, result.Accepted)
	}

	roomID, _ := s.RoomIDForUser(alice)
	_, result, events, err := s.MatchMove(alice, domain.Coord{Row: 7, Col: 7})
	require.NoError(t, err)
	require.True(t, result.Accepted)
	require.Len(t, events, 3)

	over, ok := events[1].Payload.(matchOverPayload)
	require.True(t, ok)
	assert.Equal(t, "black_win", over.Result)
	require.NotNil(t, over.Winner)
	assert.Equal(t, "black", *over.Winner)
	assert.Equal(t, "five_in_a_row", over.Reason)

	snap, ok := s.Snapshot(roomID)
	require.True(t, ok)
	assert.Equal(t, domain.Waiting, snap.State)
	assert.False(t, snap.Seats.Black.Ready)
	assert.False(t, snap.Seats.White.Ready)
}

func TestMatchMove_WrongTurn(t *testing.T) {
	s, alice, _ := setupMatch(t)

	_, result, events, err := s.MatchMove(alice, domain.Coord{Row: 7, Col: 7})
	require.NoError(t, err)
	assert.True(t, result.Accepted)
	require.Len(t, events, 1)

	_, result, events, err = s.MatchMove(alice, domain.Coord{Row: 7, Col: 8})
	require.NoError(t, err)
	assert.False(t, result.Accepted)
	assert.Equal(t, "not_your_turn", result.Reason)
	assert.Empty(t, events)
}

func TestMatchMove_Overlap(t *testing.T) {
	s, alice, bob := setupMatch(t)

	_, result, _, err := s.MatchMove(alice, domain.Coord{Row: 7, Col: 7})
	require.NoError(t, err)
	require.True(t, result.Accepted)

	_, result, _, err = s.MatchMove(bob, domain.Coord{Row: 7, Col: 7})
	require.NoError(t, err)
	assert.False(t, result.Accepted)
	assert.Equal(t, "overlap", result.Reason)
}

func TestMatchMove_OutOfRange(t *testing.T) {
	s, alice, _ := setupMatch(t)

	for _, c := range []domain.Coord{{Row: -1, Col: 0}, {Row: 15, Col: 0}, {Row: 0, Col: 15}} {
		_, result, _, err := s.MatchMove(alice, c)
		require.NoError(t, err)
		assert.False(t, result.Accepted)
		assert.Equal(t, "out_of_range", result.Reason)
	}
}

func TestMatchMove_BoundaryCellsAccepted(t *testing.T) {
	s, alice, _ := setupMatch(t)

	_, result, _, err := s.MatchMove(alice, domain.Coord{Row: 0, Col: 0})
	require.NoError(t, err)
	assert.True(t, result.Accepted)
}

func TestLeaveRoom_MidMatchRemainingPlayerWins(t *testing.T) {
	s, alice, _ := setupMatch(t)
	roomID, _ := s.RoomIDForUser(alice)

	_, result, _, err := s.MatchMove(alice, domain.Coord{Row: 3, Col: 3})
	require.NoError(t, err)
	require.True(t, result.Accepted)

	snap, events, ok := s.LeaveRoom(alice)
	require.True(t, ok)
	require.Len(t, events, 1)
	over, ok := events[0].Payload.(matchOverPayload)
	require.True(t, ok)
	assert.Equal(t, "white_win", over.Result)
	require.NotNil(t, over.Winner)
	assert.Equal(t, "white", *over.Winner)
	assert.Equal(t, "disconnect", over.Reason)
	assert.Equal(t, domain.Waiting, snap.State)
	assert.Nil(t, snap.Seats.Black)

	snap2, ok := s.Snapshot(roomID)
	require.True(t, ok)
	assert.Equal(t, domain.Waiting, snap2.State)
}

func TestLeaveRoom_NotInAnyRoom(t *testing.T) {
	s := NewRoomService()
	_, events, had := s.LeaveRoom("nobody")
	assert.False(t, had)
	assert.Nil(t, events)
}

func TestLeaveRoom_EmptiesAndRemovesRoom(t *testing.T) {
	s := NewRoomService()
	roomID, _ := s.CreateRoom("alice", "")

	_, _, ok := s.LeaveRoom("alice")
	assert.True(t, ok)

	_, ok = s.Snapshot(roomID)
	assert.False(t, ok)
}

func TestParticipants_SortedAndDeduplicated(t *testing.T) {
	s := NewRoomService()
	roomID, _ := s.CreateRoom("zoe", "")
	_, err := s.JoinRoom("amy", roomID)
	require.NoError(t, err)

	participants := s.Participants(roomID)
	assert.Equal(t, []string{"amy", "zoe"}, participants)
}

// TestDrawOnFullBoard fills the board with black on cells where
// (row + 2*col) % 4 is 0 or 1 and white on the rest. Under that coloring
// every row alternates color cell-by-cell and every column and diagonal
// repeats in blocks of two, so neither color ever holds more than two
// contiguous cells in any direction — no mid-game five-in-a-row is
// possible, and the 225th move must end the match as a draw. The split
// also lands on exactly 113 black cells and 112 white ones, matching the
// move counts of a full game.
func TestDrawOnFullBoard(t *testing.T) {
	s, alice, bob := setupMatch(t)

	var blackCells, whiteCells []domain.Coord
	for r := 0; r < domain.BoardSize; r++ {
		for c := 0; c < domain.BoardSize; c++ {
			if (r+2*c)%4 < 2 {
				blackCells = append(blackCells, domain.Coord{Row: r, Col: c})
			} else {
				whiteCells = append(whiteCells, domain.Coord{Row: r, Col: c})
			}
		}
	}
	require.Len(t, blackCells, 113)
	require.Len(t, whiteCells, 112)

	var lastEvents []EnvelopeOut
	moveCount := 0
	for i := 0; i < len(blackCells); i++ {
		_, result, events, err := s.MatchMove(alice, blackCells[i])
		require.NoError(t, err)
		require.Truef(t, result.Accepted, "black move %d rejected: %s", i, result.Reason)
		moveCount++
		lastEvents = events

		if i < len(whiteCells) {
			_, result, events, err := s.MatchMove(bob, whiteCells[i])
			require.NoError(t, err)
			require.Truef(t, result.Accepted, "white move %d rejected: %s", i, result.Reason)
			moveCount++
			lastEvents = events
		}
	}

	require.Equal(t, domain.BoardSize*domain.BoardSize, moveCount)
	require.Len(t, lastEvents, 3)
	over, ok := lastEvents[1].Payload.(matchOverPayload)
	require.True(t, ok)
	assert.Equal(t, "draw", over.Result)
	assert.Nil(t, over.Winner)
	assert.Equal(t, "board_full", over.Reason)
}
