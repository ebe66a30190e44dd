/*
 * file: room_service.go
 * package: services
 * description:
 *     Authoritative in-memory state for rooms, seats, ready flags, and the
 *     per-room match (board, turn, move history, win detection). Performs
 *     no I/O: every operation returns the events its caller must broadcast,
 *     keeping this service trivially testable in isolation from the Hub
 *     and socket layer.
 */

package services

import (
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/fiveinarow/server/internal/core/domain"
)

// SeatKind identifies the target of a take_seat request.
type SeatKind string

const (
	SeatBlack     SeatKind = "black"
	SeatWhite     SeatKind = "white"
	SeatSpectator SeatKind = "spectator"
)

const defaultRoomTitle = "Room"

// room wraps a domain.Room with the mutex that serializes every
// read-modify-write sequence against it.
type room struct {
	mu    sync.Mutex
	state domain.Room
}

/*
 * RoomService holds every live room and the username→room index. Point
 * lookups on the top-level maps are guarded by mu; mutation of a single
 * room's contents is serialized by that room's own mutex so no lock is
 * ever held across a network send.
 *
 * Fields:
 *   - mu (sync.RWMutex): Protects rooms and userRoom.
 *   - rooms (map[uuid.UUID]*room): Every currently live room, keyed by id.
 *   - userRoom (map[string]uuid.UUID): The current room for each connected username.
 */
type RoomService struct {
	mu       sync.RWMutex
	rooms    map[uuid.UUID]*room
	userRoom map[string]uuid.UUID
}

/*
 * NewRoomService creates a new, empty RoomService.
 *
 * Parameters:
 *   - None.
 *
 * Returns:
 *   - *RoomService: A new service instance with no rooms registered.
 */
func NewRoomService() *RoomService {
	return &RoomService{
		rooms:    make(map[uuid.UUID]*room),
		userRoom: make(map[string]uuid.UUID),
	}
}

func (s *RoomService) getRoom(id uuid.UUID) *room {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rooms[id]
}

func (s *RoomService) setUserRoom(username string, id uuid.UUID) {
	s.mu.Lock()
	s.userRoom[username] = id
	s.mu.Unlock()
}

/*
 * DebugRoomIDs lists every currently live room id, sorted for deterministic
 * output.
 *
 * Parameters:
 *   - None.
 *
 * Returns:
 *   - []string: The sorted list of live room ids.
 */
func (s *RoomService) DebugRoomIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.rooms))
	for id := range s.rooms {
		ids = append(ids, id.String())
	}
	sort.Strings(ids)
	return ids
}

/*
 * DebugRoomIDForUser looks up the room a username currently occupies.
 *
 * Parameters:
 *   - username (string): The username to look up.
 *
 * Returns:
 *   - string: The room id, or "" if the user is in no room.
 */
func (s *RoomService) DebugRoomIDForUser(username string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id, ok := s.userRoom[username]; ok {
		return id.String()
	}
	return ""
}

/*
 * RoomIDForUser is an index lookup used for dispatch routing.
 *
 * Parameters:
 *   - username (string): The username to look up.
 *
 * Returns:
 *   - uuid.UUID: The current room id.
 *   - bool: false if the user is in no room.
 */
func (s *RoomService) RoomIDForUser(username string) (uuid.UUID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.userRoom[username]
	return id, ok
}

/*
 * CreateRoom creates a new room with the caller seated Black, not-ready, no
 * spectators, state Waiting, and registers it in the user→room index.
 *
 * Parameters:
 *   - username (string): The creator, seated Black.
 *   - title (string): The room title; trimmed, defaulted if blank.
 *
 * Returns:
 *   - uuid.UUID: The new room's id.
 *   - domain.RoomSnapshot: The initial snapshot.
 */
func (s *RoomService) CreateRoom(username, title string) (uuid.UUID, domain.RoomSnapshot) {
	title = trimOrDefault(title, defaultRoomTitle)
	roomID := uuid.New()

	r := &room{
		state: domain.Room{
			ID:         roomID,
			Title:      title,
			Black:      &domain.Seat{Username: username, Ready: false},
			White:      nil,
			Spectators: nil,
			State:      domain.Waiting,
		},
	}

	s.mu.Lock()
	s.rooms[roomID] = r
	s.userRoom[username] = roomID
	s.mu.Unlock()

	return roomID, snapshotOf(&r.state)
}

/*
 * JoinRoom adds username to roomID as a spectator, unless the user is
 * already a member of that room (any seat or spectator), in which case the
 * call only refreshes the user→room index.
 *
 * Parameters:
 *   - username (string): The joining user.
 *   - roomID (uuid.UUID): The room to join.
 *
 * Returns:
 *   - domain.RoomSnapshot: The resulting snapshot.
 *   - error: *Error{Kind: RoomNotFound} if roomID is unknown.
 */
func (s *RoomService) JoinRoom(username string, roomID uuid.UUID) (domain.RoomSnapshot, error) {
	r := s.getRoom(roomID)
	if r == nil {
		return domain.RoomSnapshot{}, NewError(RoomNotFound, "room not found")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if isMember(&r.state, username) {
		s.setUserRoom(username, roomID)
		return snapshotOf(&r.state), nil
	}

	r.state.Spectators = append(r.state.Spectators, username)
	s.setUserRoom(username, roomID)
	return snapshotOf(&r.state), nil
}

/*
 * LeaveRoom removes username from their current room, if any. If the room
 * was Playing and the leaver held a seat, the match is ended with the sole
 * remaining seated player as winner (or a draw if neither seat remains
 * occupied), the room reverts to Waiting, and both ready flags are
 * cleared. If the room becomes empty it is removed from the service.
 *
 * Parameters:
 *   - username (string): The departing user.
 *
 * Returns:
 *   - domain.RoomSnapshot: The resulting snapshot; zero value if the user was in no room.
 *   - []EnvelopeOut: Empty, or a single match.over event.
 *   - bool: false if the user was in no room (the other return values are meaningless).
 */
func (s *RoomService) LeaveRoom(username string) (domain.RoomSnapshot, []EnvelopeOut, bool) {
	s.mu.Lock()
	roomID, ok := s.userRoom[username]
	if ok {
		delete(s.userRoom, username)
	}
	s.mu.Unlock()
	if !ok {
		return domain.RoomSnapshot{}, nil, false
	}

	r := s.getRoom(roomID)
	if r == nil {
		return domain.RoomSnapshot{}, nil, false
	}

	r.mu.Lock()
	removeMember(&r.state, username)

	var events []EnvelopeOut
	if r.state.State == domain.Playing && r.state.CurrentMatch != nil {
		events = append(events, matchOverOnDisconnect(&r.state))
		r.state.State = domain.Waiting
		r.state.CurrentMatch = nil
		clearReady(&r.state)
	}

	empty := r.state.Black == nil && r.state.White == nil && len(r.state.Spectators) == 0
	snap := snapshotOf(&r.state)
	r.mu.Unlock()

	if empty {
		s.mu.Lock()
		delete(s.rooms, roomID)
		s.mu.Unlock()
	}

	return snap, events, true
}

/*
 * TakeSeat moves username to the target seat, removing them from any
 * current position first. The ready flag resets to false on any seat
 * change.
 *
 * Parameters:
 *   - username (string): The acting user; must already be in a room.
 *   - seat (SeatKind): The destination: Black, White, or Spectator.
 *
 * Returns:
 *   - uuid.UUID: The room id.
 *   - domain.RoomSnapshot: The resulting snapshot.
 *   - error: *Error with kind NotInRoom, RoomNotFound, InvalidRoomState, or SeatTaken.
 */
func (s *RoomService) TakeSeat(username string, seat SeatKind) (uuid.UUID, domain.RoomSnapshot, error) {
	roomID, ok := s.RoomIDForUser(username)
	if !ok {
		return uuid.UUID{}, domain.RoomSnapshot{}, NewError(NotInRoom, "not in a room")
	}
	r := s.getRoom(roomID)
	if r == nil {
		return uuid.UUID{}, domain.RoomSnapshot{}, NewError(RoomNotFound, "room not found")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state.State == domain.Playing {
		return uuid.UUID{}, domain.RoomSnapshot{}, NewError(InvalidRoomState, "room is mid-match")
	}

	removeMember(&r.state, username)

	switch seat {
	case SeatBlack:
		if r.state.Black != nil {
			return uuid.UUID{}, domain.RoomSnapshot{}, NewError(SeatTaken, "black seat taken")
		}
		r.state.Black = &domain.Seat{Username: username, Ready: false}
	case SeatWhite:
		if r.state.White != nil {
			return uuid.UUID{}, domain.RoomSnapshot{}, NewError(SeatTaken, "white seat taken")
		}
		r.state.White = &domain.Seat{Username: username, Ready: false}
	default:
		r.state.Spectators = append(r.state.Spectators, username)
	}

	return roomID, snapshotOf(&r.state), nil
}

/*
 * SetReady sets the caller's ready flag. If both seats become occupied and
 * ready, the room transitions to Playing with a fresh match.
 *
 * Parameters:
 *   - username (string): The acting user; must occupy a seat.
 *   - ready (bool): The new ready flag.
 *
 * Returns:
 *   - uuid.UUID: The room id.
 *   - domain.RoomSnapshot: The resulting snapshot.
 *   - *EnvelopeOut: A match.start event, or nil if no transition occurred.
 *   - error: *Error with kind NotInRoom, RoomNotFound, InvalidRoomState, or Forbidden.
 */
func (s *RoomService) SetReady(username string, ready bool) (uuid.UUID, domain.RoomSnapshot, *EnvelopeOut, error) {
	roomID, ok := s.RoomIDForUser(username)
	if !ok {
		return uuid.UUID{}, domain.RoomSnapshot{}, nil, NewError(NotInRoom, "not in a room")
	}
	r := s.getRoom(roomID)
	if r == nil {
		return uuid.UUID{}, domain.RoomSnapshot{}, nil, NewError(RoomNotFound, "room not found")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state.State == domain.Playing {
		return uuid.UUID{}, domain.RoomSnapshot{}, nil, NewError(InvalidRoomState, "room is mid-match")
	}

	isSeated := false
	if r.state.Black != nil && r.state.Black.Username == username {
		r.state.Black.Ready = ready
		isSeated = true
	}
	if r.state.White != nil && r.state.White.Username == username {
		r.state.White.Ready = ready
		isSeated = true
	}
	if !isSeated {
		return uuid.UUID{}, domain.RoomSnapshot{}, nil, NewError(Forbidden, "caller is not seated")
	}

	var startEvent *EnvelopeOut
	if r.state.Black != nil && r.state.White != nil && r.state.Black.Ready && r.state.White.Ready {
		matchID := uuid.New()
		r.state.State = domain.Playing
		r.state.CurrentMatch = &domain.Match{
			MatchID: matchID,
			Turn:    domain.Black,
			Moves:   nil,
		}
		evt := NewEvent("match.start", matchStartPayload{
			MatchID:   matchID.String(),
			BoardSize: domain.BoardSize,
			Turn:      domain.Black,
			Moves:     []moveWire{},
		})
		startEvent = &evt
	}

	return roomID, snapshotOf(&r.state), startEvent, nil
}

// moveResult is the payload returned to the caller of MatchMove.
type moveResult struct {
	Accepted bool         `json:"accepted"`
	Turn     domain.Color `json:"turn,omitempty"`
	Move     *moveWire    `json:"move,omitempty"`
	Reason   string       `json:"reason,omitempty"`
}

type moveWire struct {
	Color domain.Color `json:"color"`
	Coord domain.Coord `json:"coord"`
}

type matchStartPayload struct {
	MatchID   string       `json:"matchId"`
	BoardSize int          `json:"boardSize"`
	Turn      domain.Color `json:"turn"`
	Moves     []moveWire   `json:"moves"`
}

type matchMovedPayload struct {
	MatchID string       `json:"matchId"`
	Move    moveWire     `json:"move"`
	Turn    domain.Color `json:"turn"`
}

type matchOverPayload struct {
	MatchID string  `json:"matchId"`
	Result  string  `json:"result"`
	Winner  *string `json:"winner"`
	Reason  string  `json:"reason"`
}

/*
 * MatchMove applies a move for username at coord. Hard errors leave state
 * untouched; soft rejections (wrong turn, out of range, overlap) also
 * leave state untouched but are reported in the response rather than as an
 * error, per the accepted:false contract.
 *
 * Parameters:
 *   - username (string): The moving user; must occupy the seat to move.
 *   - coord (domain.Coord): The target cell.
 *
 * Returns:
 *   - uuid.UUID: The room id.
 *   - moveResult: The response payload (accepted true/false plus details).
 *   - []EnvelopeOut: match.moved, and on termination match.over + room.snapshot.
 *   - error: *Error with kind NotInRoom, RoomNotFound, InvalidRoomState, or MatchNotFound.
 */
func (s *RoomService) MatchMove(username string, coord domain.Coord) (uuid.UUID, moveResult, []EnvelopeOut, error) {
	roomID, ok := s.RoomIDForUser(username)
	if !ok {
		return uuid.UUID{}, moveResult{}, nil, NewError(NotInRoom, "not in a room")
	}
	r := s.getRoom(roomID)
	if r == nil {
		return uuid.UUID{}, moveResult{}, nil, NewError(RoomNotFound, "room not found")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state.State != domain.Playing {
		return uuid.UUID{}, moveResult{}, nil, NewError(InvalidRoomState, "room is not mid-match")
	}
	if r.state.CurrentMatch == nil {
		return uuid.UUID{}, moveResult{}, nil, NewError(MatchNotFound, "no active match")
	}
	m := r.state.CurrentMatch

	var seatUsername string
	switch m.Turn {
	case domain.Black:
		if r.state.Black != nil {
			seatUsername = r.state.Black.Username
		}
	case domain.White:
		if r.state.White != nil {
			seatUsername = r.state.White.Username
		}
	}
	if seatUsername != username {
		return roomID, moveResult{Accepted: false, Reason: "not_your_turn"}, nil, nil
	}

	if !coord.InBounds() {
		return roomID, moveResult{Accepted: false, Reason: "out_of_range"}, nil, nil
	}
	if m.Board[coord.Row][coord.Col] != "" {
		return roomID, moveResult{Accepted: false, Reason: "overlap"}, nil, nil
	}

	mover := m.Turn
	m.Board[coord.Row][coord.Col] = mover
	m.Moves = append(m.Moves, domain.Move{Color: mover, Coord: coord})

	events := []EnvelopeOut{
		NewEvent("match.moved", matchMovedPayload{
			MatchID: m.MatchID.String(),
			Move:    moveWire{Color: mover, Coord: coord},
			Turn:    mover.Other(),
		}),
	}

	var overPayload *matchOverPayload
	if isWin(&m.Board, coord.Row, coord.Col, mover) {
		winner := string(mover)
		overPayload = &matchOverPayload{
			MatchID: m.MatchID.String(),
			Result:  string(mover) + "_win",
			Winner:  &winner,
			Reason:  "five_in_a_row",
		}
	} else if len(m.Moves) >= domain.BoardSize*domain.BoardSize {
		overPayload = &matchOverPayload{
			MatchID: m.MatchID.String(),
			Result:  "draw",
			Winner:  nil,
			Reason:  "board_full",
		}
	}

	if overPayload != nil {
		events = append(events, NewEvent("match.over", *overPayload))
		r.state.State = domain.Waiting
		r.state.CurrentMatch = nil
		clearReady(&r.state)
		events = append(events, NewEvent("room.snapshot", snapshotOf(&r.state)))
	} else {
		m.Turn = mover.Other()
	}

	result := moveResult{
		Accepted: true,
		Turn:     mover.Other(),
		Move:     &moveWire{Color: mover, Coord: coord},
	}
	return roomID, result, events, nil
}

/*
 * Snapshot returns a self-contained view of a room's current state.
 *
 * Parameters:
 *   - roomID (uuid.UUID): The room to read.
 *
 * Returns:
 *   - domain.RoomSnapshot: The snapshot.
 *   - bool: false if roomID is unknown.
 */
func (s *RoomService) Snapshot(roomID uuid.UUID) (domain.RoomSnapshot, bool) {
	r := s.getRoom(roomID)
	if r == nil {
		return domain.RoomSnapshot{}, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return snapshotOf(&r.state), true
}

/*
 * Participants returns a deduplicated, sorted list of usernames across
 * both seats and spectators.
 *
 * Parameters:
 *   - roomID (uuid.UUID): The room to read.
 *
 * Returns:
 *   - []string: The sorted, deduplicated usernames.
 */
func (s *RoomService) Participants(roomID uuid.UUID) []string {
	r := s.getRoom(roomID)
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	set := make(map[string]struct{})
	if r.state.Black != nil {
		set[r.state.Black.Username] = struct{}{}
	}
	if r.state.White != nil {
		set[r.state.White.Username] = struct{}{}
	}
	for _, u := range r.state.Spectators {
		set[u] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for u := range set {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}

func trimOrDefault(s, def string) string {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return def
	}
	return trimmed
}

func isMember(r *domain.Room, username string) bool {
	if r.Black != nil && r.Black.Username == username {
		return true
	}
	if r.White != nil && r.White.Username == username {
		return true
	}
	for _, u := range r.Spectators {
		if u == username {
			return true
		}
	}
	return false
}

func removeMember(r *domain.Room, username string) {
	if r.Black != nil && r.Black.Username == username {
		r.Black = nil
	}
	if r.White != nil && r.White.Username == username {
		r.White = nil
	}
	if len(r.Spectators) > 0 {
		kept := r.Spectators[:0]
		for _, u := range r.Spectators {
			if u != username {
				kept = append(kept, u)
			}
		}
		r.Spectators = kept
	}
}

func clearReady(r *domain.Room) {
	if r.Black != nil {
		r.Black.Ready = false
	}
	if r.White != nil {
		r.White.Ready = false
	}
}

func matchOverOnDisconnect(r *domain.Room) EnvelopeOut {
	var winner *string
	result := "draw"
	if r.Black != nil && r.White == nil {
		w := string(domain.Black)
		winner = &w
		result = "black_win"
	} else if r.White != nil && r.Black == nil {
		w := string(domain.White)
		winner = &w
		result = "white_win"
	}
	return NewEvent("match.over", matchOverPayload{
		MatchID: r.CurrentMatch.MatchID.String(),
		Result:  result,
		Winner:  winner,
		Reason:  "disconnect",
	})
}

func snapshotOf(r *domain.Room) domain.RoomSnapshot {
	spectators := make([]string, len(r.Spectators))
	copy(spectators, r.Spectators)
	return domain.RoomSnapshot{
		RoomID: r.ID.String(),
		Title:  r.Title,
		Seats: domain.SeatsSnapshot{
			Black: seatInfoOf(r.Black),
			White: seatInfoOf(r.White),
		},
		Spectators: spectators,
		State:      r.State,
	}
}

func seatInfoOf(s *domain.Seat) *domain.SeatInfo {
	if s == nil {
		return nil
	}
	return &domain.SeatInfo{Username: s.Username, Ready: s.Ready}
}

// isWin counts, in each of four directions through (r, c), the maximal
// contiguous run of cells holding color v and reports whether any run
// reaches the winning length.
func isWin(board *[domain.BoardSize][domain.BoardSize]domain.Color, r, c int, v domain.Color) bool {
	dirs := [4][2]int{{0, 1}, {1, 0}, {1, 1}, {1, -1}}
	for _, d := range dirs {
		count := 1
		for step := 1; step < domain.WinLength; step++ {
			rr, cc := r+d[0]*step, c+d[1]*step
			if rr < 0 || cc < 0 || rr >= domain.BoardSize || cc >= domain.BoardSize || board[rr][cc] != v {
				break
			}
			count++
		}
		for step := 1; step < domain.WinLength; step++ {
			rr, cc := r-d[0]*step, c-d[1]*step
			if rr < 0 || cc < 0 || rr >= domain.BoardSize || cc >= domain.BoardSize || board[rr][cc] != v {
				break
			}
			count++
		}
		if count >= domain.WinLength {
			return true
		}
	}
	return false
}
