/*
 * file: session.go
 * package: services
 * description:
 *     Per-connection socket loop: authenticates on upgrade, dispatches
 *     inbound envelopes to Room Service operations, forwards returned
 *     events through the Hub, and cleans up on disconnect.
 */

package services

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/fiveinarow/server/internal/core/domain"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// queueItem is one entry of a Session's unbounded outbound queue: either a
// text frame to write, or a close instruction that ends the writer.
type queueItem struct {
	data        []byte
	isClose     bool
	closeCode   int
	closeReason string
}

/*
 * Session is one accepted connection's reader/writer pair. It implements
 * the outbound interface the Hub uses to deliver frames and to evict a
 * prior connection on the single-session invariant.
 *
 * Fields:
 *   - hub (*Hub): The registry this session registers with.
 *   - rooms (*RoomService): The state machine this session dispatches into.
 *   - conn (*websocket.Conn): The underlying socket connection.
 *   - username (string): The verified identity of this connection.
 *   - mu (sync.Mutex): Guards queue and closed.
 *   - cond (*sync.Cond): Wakes the writer when queue gains an item or closes.
 *   - queue ([]queueItem): The unbounded outbound queue.
 *   - closed (bool): Set once the session is torn down.
 */
type Session struct {
	hub      *Hub
	rooms    *RoomService
	conn     *websocket.Conn
	username string

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []queueItem
	closed bool
}

/*
 * ServeWs upgrades an HTTP request to a socket connection after verifying
 * the bearer access token carried in the query string or Authorization
 * header. On verification failure the upgrade is rejected with HTTP 401.
 *
 * Parameters:
 *   - hub (*Hub): The registry to register the new session with.
 *   - rooms (*RoomService): The state machine to dispatch inbound envelopes into.
 *   - auth (*AuthService): Used to verify the presented access token.
 *   - w (http.ResponseWriter): The HTTP response writer.
 *   - r (*http.Request): The incoming upgrade request.
 *
 * Returns:
 *   - None.
 */
func ServeWs(hub *Hub, rooms *RoomService, auth *AuthService, w http.ResponseWriter, r *http.Request) {
	token := extractAccessToken(r)
	if token == "" {
		http.Error(w, "missing access token", http.StatusUnauthorized)
		return
	}
	claims, err := auth.VerifyAccessToken(token)
	if err != nil {
		http.Error(w, "invalid access token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ERROR: websocket upgrade failed for %s: %v", claims.Username, err)
		return
	}

	session := &Session{
		hub:      hub,
		rooms:    rooms,
		conn:     conn,
		username: claims.Username,
	}
	session.cond = sync.NewCond(&session.mu)

	hub.Register(claims.Username, session)

	if roomID, ok := rooms.RoomIDForUser(claims.Username); ok {
		if snap, ok := rooms.Snapshot(roomID); ok {
			session.sendJSON(NewEvent("room.snapshot", snap))
		}
	}

	go session.writePump()
	go session.readPump()
}

func extractAccessToken(r *http.Request) string {
	if tok := r.URL.Query().Get("accessToken"); tok != "" {
		return tok
	}
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

/*
 * Send enqueues a raw text frame for delivery; never blocks.
 *
 * Parameters:
 *   - message ([]byte): The raw text frame to deliver.
 *
 * Returns:
 *   - None.
 */
func (s *Session) Send(message []byte) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, queueItem{data: message})
	s.mu.Unlock()
	s.cond.Signal()
}

/*
 * Evict enqueues an auth.kicked event followed by a close-4001 instruction,
 * implementing the single-session eviction sequence.
 *
 * Parameters:
 *   - None.
 *
 * Returns:
 *   - None.
 */
func (s *Session) Evict() {
	kicked, _ := json.Marshal(NewEvent("auth.kicked", map[string]string{"reason": kickedReason}))

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, queueItem{data: kicked})
	s.queue = append(s.queue, queueItem{isClose: true, closeCode: CloseSingleSession, closeReason: kickedReason})
	s.mu.Unlock()
	s.cond.Broadcast()
}

func (s *Session) sendJSON(envelope EnvelopeOut) {
	b, err := json.Marshal(envelope)
	if err != nil {
		log.Printf("ERROR: failed to marshal envelope for %s: %v", s.username, err)
		return
	}
	s.Send(b)
}

func (s *Session) shutdown() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	s.cond.Broadcast()
}

/*
 * writePump drains the outbound queue to the socket until the session is
 * closed, honoring close instructions pushed by Evict.
 *
 * Parameters:
 *   - None.
 *
 * Returns:
 *   - None.
 */
func (s *Session) writePump() {
	defer s.conn.Close()
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.closed {
			s.cond.Wait()
		}
		if len(s.queue) == 0 {
			s.mu.Unlock()
			return
		}
		item := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		s.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if item.isClose {
			_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(item.closeCode, item.closeReason))
			return
		}
		if err := s.conn.WriteMessage(websocket.TextMessage, item.data); err != nil {
			log.Printf("ERROR: write failed for %s: %v", s.username, err)
			return
		}
	}
}

/*
 * readPump drives the dispatch loop for one connection until the peer
 * closes, a protocol error occurs, or the Hub evicts this session.
 *
 * Parameters:
 *   - None.
 *
 * Returns:
 *   - None.
 */
func (s *Session) readPump() {
	defer s.cleanup()

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		mt, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("INFO: socket closed for %s: %v", s.username, err)
			}
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		s.handleFrame(data)
	}
}

func (s *Session) cleanup() {
	s.hub.Unregister(s.username, s)
	s.leaveAndBroadcast()
	s.shutdown()
}

func (s *Session) handleFrame(data []byte) {
	if string(data) == "ping" {
		s.Send([]byte("pong"))
		return
	}

	env, err := DecodeEnvelope(data)
	if err != nil {
		if reqID := extractReqID(data); reqID != "" {
			s.sendJSON(NewErrorResponse("unknown", reqID, BadRequest, "malformed envelope"))
		}
		return
	}
	if env.V != ProtocolVersion {
		if env.ReqID != "" {
			s.sendJSON(NewErrorResponse(env.Type, env.ReqID, BadRequest, "unsupported protocol version"))
		}
		return
	}

	s.dispatch(env)
}

func extractReqID(data []byte) string {
	var probe struct {
		ReqID string `json:"reqId"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return ""
	}
	return probe.ReqID
}

func (s *Session) dispatch(env *EnvelopeIn) {
	switch env.Type {
	case "room.create":
		s.handleRoomCreate(env)
	case "room.join":
		s.handleRoomJoin(env)
	case "room.leave":
		s.handleRoomLeave(env)
	case "room.takeSeat":
		s.handleTakeSeat(env)
	case "room.ready":
		s.handleReady(env)
	case "match.move":
		s.handleMatchMove(env)
	default:
		s.sendJSON(NewErrorResponse(env.Type, env.ReqID, BadRequest, "unrecognized type"))
	}
}

// leaveAndBroadcast removes the caller from their current room (if any)
// and broadcasts the resulting events and refreshed snapshot to whoever
// remains. Returns whether the caller had been in a room at all.
func (s *Session) leaveAndBroadcast() bool {
	snap, events, had := s.rooms.LeaveRoom(s.username)
	if !had {
		return false
	}
	log.Printf("INFO: %s left room %s", s.username, snap.RoomID)
	if oldRoomID, err := uuid.Parse(snap.RoomID); err == nil {
		s.broadcastEvents(oldRoomID, append(events, NewEvent("room.snapshot", snap)))
	}
	return true
}

func (s *Session) broadcastEvents(roomID uuid.UUID, events []EnvelopeOut) {
	for _, username := range s.rooms.Participants(roomID) {
		for _, evt := range events {
			s.hub.SendJSON(username, evt)
		}
	}
}

func (s *Session) handleRoomCreate(env *EnvelopeIn) {
	var payload struct {
		Title string `json:"title"`
	}
	_ = json.Unmarshal(env.Payload, &payload)

	s.leaveAndBroadcast()

	roomID, snap := s.rooms.CreateRoom(s.username, payload.Title)
	log.Printf("INFO: %s created room %s (live rooms: %v)", s.username, roomID, s.rooms.DebugRoomIDs())
	s.sendJSON(NewResponse(env.Type, env.ReqID, snap))
	s.hub.SendJSON(s.username, NewEvent("room.snapshot", snap))
}

func (s *Session) handleRoomJoin(env *EnvelopeIn) {
	var payload struct {
		RoomID string `json:"roomId"`
	}
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		s.sendJSON(NewErrorResponse(env.Type, env.ReqID, BadRequest, "invalid payload"))
		return
	}
	targetID, err := uuid.Parse(payload.RoomID)
	if err != nil {
		s.sendJSON(NewErrorResponse(env.Type, env.ReqID, BadRequest, "invalid roomId"))
		return
	}

	if current, ok := s.rooms.RoomIDForUser(s.username); ok && current != targetID {
		s.leaveAndBroadcast()
	}

	snap, err := s.rooms.JoinRoom(s.username, targetID)
	if err != nil {
		apiErr := AsError(err)
		s.sendJSON(NewErrorResponse(env.Type, env.ReqID, apiErr.Kind, apiErr.Message))
		return
	}
	log.Printf("INFO: %s joined room %s (live rooms: %v)", s.username, targetID, s.rooms.DebugRoomIDs())

	s.sendJSON(NewResponse(env.Type, env.ReqID, snap))
	s.broadcastEvents(targetID, []EnvelopeOut{NewEvent("room.snapshot", snap)})
}

func (s *Session) handleRoomLeave(env *EnvelopeIn) {
	s.leaveAndBroadcast()
	s.sendJSON(NewResponse(env.Type, env.ReqID, map[string]bool{"ok": true}))
}

func (s *Session) handleTakeSeat(env *EnvelopeIn) {
	var payload struct {
		Seat string `json:"seat"`
	}
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		s.sendJSON(NewErrorResponse(env.Type, env.ReqID, BadRequest, "invalid payload"))
		return
	}

	var seat SeatKind
	switch payload.Seat {
	case string(SeatBlack):
		seat = SeatBlack
	case string(SeatWhite):
		seat = SeatWhite
	case string(SeatSpectator):
		seat = SeatSpectator
	default:
		s.sendJSON(NewErrorResponse(env.Type, env.ReqID, BadRequest, "invalid seat"))
		return
	}

	roomID, snap, err := s.rooms.TakeSeat(s.username, seat)
	if err != nil {
		apiErr := AsError(err)
		s.sendJSON(NewErrorResponse(env.Type, env.ReqID, apiErr.Kind, apiErr.Message))
		return
	}

	s.sendJSON(NewResponse(env.Type, env.ReqID, snap))
	s.broadcastEvents(roomID, []EnvelopeOut{NewEvent("room.snapshot", snap)})
}

func (s *Session) handleReady(env *EnvelopeIn) {
	var payload struct {
		Ready bool `json:"ready"`
	}
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		s.sendJSON(NewErrorResponse(env.Type, env.ReqID, BadRequest, "invalid payload"))
		return
	}

	roomID, snap, startEvt, err := s.rooms.SetReady(s.username, payload.Ready)
	if err != nil {
		apiErr := AsError(err)
		s.sendJSON(NewErrorResponse(env.Type, env.ReqID, apiErr.Kind, apiErr.Message))
		return
	}

	s.sendJSON(NewResponse(env.Type, env.ReqID, snap))
	events := []EnvelopeOut{NewEvent("room.snapshot", snap)}
	if startEvt != nil {
		events = append(events, *startEvt)
	}
	s.broadcastEvents(roomID, events)
}

func (s *Session) handleMatchMove(env *EnvelopeIn) {
	var payload struct {
		Coord domain.Coord `json:"coord"`
	}
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		s.sendJSON(NewErrorResponse(env.Type, env.ReqID, BadRequest, "invalid payload"))
		return
	}

	roomID, result, events, err := s.rooms.MatchMove(s.username, payload.Coord)
	if err != nil {
		apiErr := AsError(err)
		s.sendJSON(NewErrorResponse(env.Type, env.ReqID, apiErr.Kind, apiErr.Message))
		return
	}

	s.sendJSON(NewResponse(env.Type, env.ReqID, result))
	if result.Accepted && len(events) > 0 {
		s.broadcastEvents(roomID, events)
	}
}
