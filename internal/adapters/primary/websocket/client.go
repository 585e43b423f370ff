package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/lorrc/repair-service-backend/internal/core/domain"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Default time allowed to read the next pong message from the peer.
	defaultPongWait = 60 * time.Second

	// Maximum message size allowed from peer.
	maxMessageSize = 1024
)

// Keepalive bounds the ping/pong cycle for one connection.
type Keepalive struct {
	// PingInterval is the period between pings. Must be less than PongWait.
	PingInterval time.Duration

	// PongWait is the time allowed to read the next pong from the peer.
	PongWait time.Duration
}

// normalized fills in defaults for zero or inconsistent values.
func (k Keepalive) normalized() Keepalive {
	if k.PongWait <= 0 {
		k.PongWait = defaultPongWait
	}
	if k.PingInterval <= 0 || k.PingInterval >= k.PongWait {
		k.PingInterval = (k.PongWait * 9) / 10
	}
	return k
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	Hub *Hub

	// The websocket connection.
	Conn *websocket.Conn

	// Buffered channel of outbound envelopes. Delivery order on this channel
	// is the per-connection FIFO guarantee.
	Send chan domain.EventEnvelope

	// session is this connection's registry bookkeeping.
	session *Session

	// replay delivers persisted notifications after the peer authenticates.
	replay *ReplayBridge

	// keepalive bounds the ping/pong cycle.
	keepalive Keepalive

	// sendMu guards sendClosed and serializes enqueue against CloseSend, so
	// a close can never race a channel send.
	sendMu     sync.Mutex
	sendClosed bool

	// logger for this client
	logger *slog.Logger
}

// NewClient creates a new WebSocket client with a pending session bound to
// the handshake-verified identity.
func NewClient(hub *Hub, conn *websocket.Conn, identityID uuid.UUID, role domain.Role, displayName string, keepalive Keepalive, replay *ReplayBridge, logger *slog.Logger) *Client {
	session := newSession(identityID, role, displayName)
	return &Client{
		Hub:       hub,
		Conn:      conn,
		Send:      make(chan domain.EventEnvelope, 256),
		session:   session,
		replay:    replay,
		keepalive: keepalive.normalized(),
		logger: logger.With(
			"connection_id", session.ConnectionID.String(),
			"identity_id", identityID.String(),
		),
	}
}

// ConnectionID returns the session's connection identifier.
func (c *Client) ConnectionID() uuid.UUID {
	return c.session.ConnectionID
}

// CloseSend safely closes the Send channel exactly once.
func (c *Client) CloseSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.sendClosed {
		return
	}
	c.sendClosed = true
	close(c.Send)
}

// enqueue queues an envelope for delivery without blocking. A peer that
// cannot drain its buffer misses the envelope; the ping/pong deadline will
// collect the connection if it is actually dead. Enqueueing to a closed
// session is a no-op.
func (c *Client) enqueue(envelope domain.EventEnvelope) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.sendClosed {
		c.logger.Debug("dropped envelope for closed session", "event", envelope.Event)
		return
	}

	select {
	case c.Send <- envelope:
	default:
		c.logger.Warn("send buffer full, dropping envelope", "event", envelope.Event)
	}
}

// ReadPump pumps messages from the websocket connection to the hub.
// This method runs in its own goroutine.
func (c *Client) ReadPump() {
	defer func() {
		// After shutdown the run loop is gone; don't block on it.
		select {
		case c.Hub.Unregister <- c:
		case <-c.Hub.quit:
		}
		_ = c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	if err := c.Conn.SetReadDeadline(time.Now().Add(c.keepalive.PongWait)); err != nil {
		c.logger.Error("failed to set read deadline", "error", err)
		return
	}

	c.Conn.SetPongHandler(func(string) error {
		c.Hub.Registry().TouchActivity(c.session.IdentityID)
		if err := c.Conn.SetReadDeadline(time.Now().Add(c.keepalive.PongWait)); err != nil {
			c.logger.Error("failed to set read deadline in pong handler", "error", err)
		}
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read error", "error", err)
			}
			break
		}

		c.handleIncomingMessage(message)
	}
}

// WritePump pumps envelopes from the hub to the websocket connection.
// This method runs in its own goroutine.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.keepalive.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
	}()

	for {
		select {
		case envelope, ok := <-c.Send:
			if err := c.Conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Error("failed to set write deadline", "error", err)
				return
			}

			if !ok {
				// The hub closed the channel. Send close message.
				if err := c.Conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
					c.logger.Debug("failed to send close message", "error", err)
				}
				return
			}

			if err := c.writeJSON(envelope); err != nil {
				c.logger.Error("failed to write message", "error", err)
				return
			}

		case <-ticker.C:
			if err := c.Conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Error("failed to set write deadline for ping", "error", err)
				return
			}

			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Debug("failed to send ping", "error", err)
				return
			}
		}
	}
}

// writeJSON writes a JSON envelope to the websocket connection
func (c *Client) writeJSON(envelope domain.EventEnvelope) error {
	w, err := c.Conn.NextWriter(websocket.TextMessage)
	if err != nil {
		return err
	}

	if err := json.NewEncoder(w).Encode(envelope); err != nil {
		_ = w.Close()
		return err
	}

	return w.Close()
}

// --- Incoming Message Handling ---

// ClientMessage is the structure for messages sent from the client.
type ClientMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// RoomPayload is the payload for join-room/leave-room messages
type RoomPayload struct {
	Room string `json:"room"`
}

// AuthenticatePayload is the payload for the post-connection authenticate
// signal that triggers notification replay.
type AuthenticatePayload struct {
	IdentityID string `json:"identityId"`
	Role       string `json:"role"`
}

// roomAck is the acknowledgment payload for join-room/leave-room.
type roomAck struct {
	Success bool   `json:"success"`
	Room    string `json:"room"`
}

// activityAck is the acknowledgment payload for activity.
type activityAck struct {
	Timestamp time.Time `json:"timestamp"`
}

// handleIncomingMessage processes messages received from the client.
// Any peer message counts as an activity touch.
func (c *Client) handleIncomingMessage(message []byte) {
	c.Hub.Registry().TouchActivity(c.session.IdentityID)

	var msg ClientMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		c.logger.Warn("failed to unmarshal client message", "error", err)
		return
	}

	switch msg.Type {
	case "join-room":
		c.handleJoinRoom(msg.Payload)

	case "leave-room":
		c.handleLeaveRoom(msg.Payload)

	case "authenticate":
		c.handleAuthenticate(msg.Payload)

	case "activity":
		c.sendAck(domain.EventActivityAck, activityAck{Timestamp: time.Now().UTC()})

	case "request-presence":
		c.enqueue(domain.NewEnvelope(domain.EventPresenceSnapshot, domain.SystemInitiator(), c.Hub.Registry().Snapshot(), nil))

	default:
		c.logger.Debug("received unknown message type", "type", msg.Type)
	}
}

func (c *Client) handleJoinRoom(payload json.RawMessage) {
	var p RoomPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		c.logger.Warn("failed to unmarshal join-room payload", "error", err)
		return
	}

	if p.Room == "" {
		c.sendAck(domain.EventJoinRoomAck, roomAck{Success: false, Room: p.Room})
		return
	}

	if err := c.Hub.JoinRoom(c, p.Room); err != nil {
		c.logger.Warn("room join failed", "room", p.Room, "error", err)
		c.sendAck(domain.EventJoinRoomAck, roomAck{Success: false, Room: p.Room})
		return
	}

	c.sendAck(domain.EventJoinRoomAck, roomAck{Success: true, Room: p.Room})
}

func (c *Client) handleLeaveRoom(payload json.RawMessage) {
	var p RoomPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		c.logger.Warn("failed to unmarshal leave-room payload", "error", err)
		return
	}

	// Leaving a room that was never joined is a no-op, so the ack always
	// reports success.
	c.Hub.LeaveRoom(c, p.Room)
	c.sendAck(domain.EventLeaveRoomAck, roomAck{Success: true, Room: p.Room})
}

// handleAuthenticate bridges the persisted notification store into this
// connection. The identity was already verified at the handshake; a payload
// disagreeing with the binding is logged and ignored in favor of the bound
// identity.
func (c *Client) handleAuthenticate(payload json.RawMessage) {
	var p AuthenticatePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		c.logger.Warn("failed to unmarshal authenticate payload", "error", err)
		return
	}

	if p.IdentityID != "" && p.IdentityID != c.session.IdentityID.String() {
		c.logger.Warn("authenticate identity mismatch, using bound identity",
			"claimed_identity", p.IdentityID,
		)
	}

	if c.replay != nil {
		c.replay.Deliver(c)
	}
}

func (c *Client) sendAck(event domain.EventName, payload interface{}) {
	c.enqueue(domain.NewEnvelope(event, domain.SystemInitiator(), payload, nil))
}
