/*
 * file: hub.go
 * package: services
 * description:
 *     Per-username registry of live socket send channels. Enforces the
 *     single-session invariant by evicting any prior connection for a
 *     username on both register() and kick(), and routes outbound
 *     messages by username without ever blocking on network I/O.
 */

package services

import (
	"encoding/json"
	"log"
	"sync"
)

// kickedReason is the wire reason carried by an auth.kicked event.
const kickedReason = "single_session"

// CloseSingleSession is the socket close code reserved for forced eviction.
const CloseSingleSession = 4001

// outbound is the minimal surface a Socket Session's writer must offer so
// the Hub can deliver frames and evict without depending on gorilla/websocket.
type outbound interface {
	// Send enqueues a text frame for delivery; never blocks.
	Send(message []byte)
	// Evict enqueues the auth.kicked event then a close-4001 frame, then
	// tears down the connection.
	Evict()
}

/*
 * Hub is the process-wide registry mapping usernames to live outbound
 * socket queues. It never blocks waiting for network I/O: every operation
 * either completes immediately or hands a message to the recipient's own
 * unbounded queue.
 *
 * Fields:
 *   - mu (sync.RWMutex): Protects clients.
 *   - clients (map[string]outbound): The live connection for each registered username.
 */
type Hub struct {
	mu      sync.RWMutex
	clients map[string]outbound
}

/*
 * NewHub creates and initializes a new Hub instance.
 *
 * Parameters:
 *   - None.
 *
 * Returns:
 *   - *Hub: a pointer to a new Hub instance.
 */
func NewHub() *Hub {
	return &Hub{clients: make(map[string]outbound)}
}

/*
 * Register installs sender as the live connection for username, evicting
 * any prior connection first. The new sender replaces the old atomically
 * from the perspective of any concurrent Send.
 *
 * Parameters:
 *   - username (string): The authenticated identity of the connection.
 *   - sender (outbound): The new connection's outbound handle.
 *
 * Returns:
 *   - None.
 */
func (h *Hub) Register(username string, sender outbound) {
	h.mu.Lock()
	old, existed := h.clients[username]
	h.clients[username] = sender
	h.mu.Unlock()

	if existed {
		log.Printf("INFO: evicting prior session for %s", username)
		old.Evict()
	}
}

/*
 * Unregister drops the entry for username if present. If sender no longer
 * matches the registered connection (a newer connection already replaced
 * it), the call is a no-op so a stale session's cleanup cannot clobber a
 * fresher one.
 *
 * Parameters:
 *   - username (string): The identity to drop.
 *   - sender (outbound): The connection requesting removal.
 *
 * Returns:
 *   - None.
 */
func (h *Hub) Unregister(username string, sender outbound) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if current, ok := h.clients[username]; ok && current == sender {
		delete(h.clients, username)
	}
}

/*
 * Send delivers a raw text frame to username's connection. Delivery is
 * best-effort: if username has no live connection, the message is
 * silently dropped.
 *
 * Parameters:
 *   - username (string): The recipient.
 *   - frame ([]byte): The raw text frame to deliver.
 *
 * Returns:
 *   - None.
 */
func (h *Hub) Send(username string, frame []byte) {
	h.mu.RLock()
	sender, ok := h.clients[username]
	h.mu.RUnlock()
	if !ok {
		return
	}
	sender.Send(frame)
}

/*
 * SendJSON marshals envelope and delivers it as a text frame to username.
 *
 * Parameters:
 *   - username (string): The recipient.
 *   - envelope (EnvelopeOut): The envelope to serialize and deliver.
 *
 * Returns:
 *   - None.
 */
func (h *Hub) SendJSON(username string, envelope EnvelopeOut) {
	frame, err := json.Marshal(envelope)
	if err != nil {
		log.Printf("ERROR: failed to marshal envelope for %s: %v", username, err)
		return
	}
	h.Send(username, frame)
}

/*
 * Kick evicts any live connection for username using the same
 * auth.kicked + close-4001 sequence as Register. Invoked by the HTTP login
 * handler before tokens are returned to the caller.
 *
 * Parameters:
 *   - username (string): The identity to evict.
 *
 * Returns:
 *   - None.
 */
func (h *Hub) Kick(username string) {
	h.mu.Lock()
	old, existed := h.clients[username]
	if existed {
		delete(h.clients, username)
	}
	h.mu.Unlock()

	if existed {
		old.Evict()
	}
}
