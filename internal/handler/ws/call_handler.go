// Package ws bridges browser clients to the call engine over WebSocket.
// Each connection belongs to one user; commands come in as JSON messages
// and call-state snapshots go out the same way.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"telecare-calling/internal/domain"
	"telecare-calling/internal/media"
	"telecare-calling/internal/service/call"
	"telecare-calling/pkg/constants"
	apperrors "telecare-calling/pkg/errors"
	"telecare-calling/pkg/logger"
	"telecare-calling/pkg/metrics"
)

// Client command types
const (
	CmdStart        = "start"
	CmdEnd          = "end"
	CmdDecline      = "decline"
	CmdToggleMute   = "toggle_mute"
	CmdToggleCamera = "toggle_camera"
	CmdChat         = "chat"
)

// Server event types
const (
	EventCallState       = "call_state"
	EventIncomingCall    = "incoming_call"
	EventIncomingCleared = "incoming_cleared"
	EventError           = "error"
)

// ClientMessage is one inbound command from the browser.
type ClientMessage struct {
	Type           string `json:"type"`
	Peer           string `json:"peer,omitempty"`
	CallType       string `json:"call_type,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
	Text           string `json:"text,omitempty"`
}

// IncomingCall is the ringing banner payload sent when a pointer appears
// under the connected user's registry slot.
type IncomingCall struct {
	CallID   string          `json:"call_id"`
	CallerID string          `json:"caller_id"`
	CallType domain.CallType `json:"call_type"`
}

// ErrorBody carries a command failure back to the client.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ServerMessage is one outbound event to the browser.
type ServerMessage struct {
	Type      string         `json:"type"`
	Call      *call.Snapshot `json:"call,omitempty"`
	Incoming  *IncomingCall  `json:"incoming,omitempty"`
	Error     *ErrorBody     `json:"error,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// HubConfig carries the shared dependencies every connection's engine uses.
type HubConfig struct {
	Sessions   call.SessionStore
	Registry   call.PointerStore
	Candidates call.CandidateStore
	Media      media.Factory

	Conversations call.SummaryNotifier
	Presence      call.PresenceChecker
	Push          call.IncomingCallPusher
	History       call.Archiver

	RingTimeout    time.Duration
	AllowedOrigins []string
	MaxConnections int
}

// Hub manages calling WebSocket connections. Unlike a fan-out chat hub there
// is no cross-client broadcast; all signaling flows through the document
// store, so the hub only tracks connections and enforces the capacity limit.
type Hub struct {
	cfg      HubConfig
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*Client]bool

	semaphore chan struct{}
}

// NewHub creates a new Hub
func NewHub(cfg HubConfig) *Hub {
	if cfg.MaxConnections <= 0 {
		cfg.MaxConnections = 1000
	}

	allowed := make(map[string]bool, len(cfg.AllowedOrigins))
	for _, o := range cfg.AllowedOrigins {
		allowed[o] = true
	}

	return &Hub{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// No allowlist configured means development: accept any origin.
				if len(allowed) == 0 {
					return true
				}
				return allowed[r.Header.Get("Origin")]
			},
		},
		clients:   make(map[*Client]bool),
		semaphore: make(chan struct{}, cfg.MaxConnections),
	}
}

// Client is one user's WebSocket connection. It owns at most one call engine
// at a time and an incoming-call watcher on the user's registry slot.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	userID string
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	engine   *call.Engine
	incoming *domain.ActiveCallPointer
}

// ServeWS handles a calling WebSocket request. The user id comes from the
// user_id query parameter or from upstream middleware via the gin context.
func (h *Hub) ServeWS(c *gin.Context) {
	select {
	case h.semaphore <- struct{}{}:
	default:
		logger.Warn("WebSocket connection rejected: max connections reached",
			zap.Int("max_connections", h.cfg.MaxConnections))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "server at capacity, please try again later"})
		return
	}

	userID := c.Query("user_id")
	if userID == "" {
		if v, ok := c.Get("user_id"); ok {
			userID, _ = v.(string)
		}
	}
	if userID == "" {
		<-h.semaphore
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user_id required"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		<-h.semaphore
		logger.Warn("WebSocket upgrade failed",
			zap.String("user_id", userID), zap.Error(err))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	client := &Client{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, 64),
		userID: userID,
		ctx:    ctx,
		cancel: cancel,
	}

	h.mu.Lock()
	h.clients[client] = true
	h.mu.Unlock()
	metrics.WSConnections.Inc()

	go client.watchIncoming()
	go client.writePump()
	go client.readPump()
}

// ConnectionCount returns the number of open connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Shutdown closes every open connection.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.teardown()
	}
}

// engineConfig builds the per-call engine configuration for one client.
func (h *Hub) engineConfig(userID string, onUpdate func(call.Snapshot)) call.Config {
	return call.Config{
		SelfID:        userID,
		Sessions:      h.cfg.Sessions,
		Registry:      h.cfg.Registry,
		Candidates:    h.cfg.Candidates,
		Media:         h.cfg.Media,
		Conversations: h.cfg.Conversations,
		Presence:      h.cfg.Presence,
		Push:          h.cfg.Push,
		History:       h.cfg.History,
		RingTimeout:   h.cfg.RingTimeout,
		OnUpdate:      onUpdate,
	}
}

// remove releases the connection slot. Safe to call more than once; only
// the first caller frees the semaphore.
func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if ok {
		metrics.WSConnections.Dec()
		<-h.semaphore
	}
}

// watchIncoming forwards registry changes for this user to the connection.
// Events for the call the client is already in are suppressed.
func (c *Client) watchIncoming() {
	w := call.NewIncomingWatcher(c.hub.cfg.Registry, c.userID)
	w.OnIncoming = func(ptr *domain.ActiveCallPointer) {
		c.mu.Lock()
		inCall := c.engine != nil
		if !inCall {
			c.incoming = ptr
		}
		c.mu.Unlock()
		if inCall {
			return
		}
		c.enqueue(&ServerMessage{
			Type: EventIncomingCall,
			Incoming: &IncomingCall{
				CallID:   ptr.CallID,
				CallerID: ptr.Initiator,
				CallType: ptr.Type,
			},
			Timestamp: time.Now(),
		})
	}
	w.OnCleared = func() {
		c.mu.Lock()
		had := c.incoming != nil
		c.incoming = nil
		inCall := c.engine != nil
		c.mu.Unlock()
		if !had || inCall {
			return
		}
		c.enqueue(&ServerMessage{Type: EventIncomingCleared, Timestamp: time.Now()})
	}

	if err := w.Run(c.ctx); err != nil && c.ctx.Err() == nil {
		logger.Warn("incoming-call watcher stopped",
			zap.String("user_id", c.userID), zap.Error(err))
	}
}

func (c *Client) readPump() {
	defer c.teardown()

	c.conn.SetReadDeadline(time.Now().Add(constants.WebSocketPingInterval))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(constants.WebSocketPingInterval))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Debug("WebSocket connection closed",
					zap.String("user_id", c.userID), zap.Error(err))
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			logger.Warn("invalid message format from WebSocket",
				zap.String("user_id", c.userID), zap.Error(err))
			continue
		}
		c.handle(&msg)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(constants.WebSocketPingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(constants.WebSocketWriteTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(constants.WebSocketWriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handle(msg *ClientMessage) {
	switch msg.Type {
	case CmdStart:
		c.startCall(msg)
	case CmdEnd:
		if eng := c.currentEngine(); eng != nil {
			eng.End()
		}
	case CmdDecline:
		c.decline()
	case CmdToggleMute:
		if eng := c.currentEngine(); eng != nil {
			eng.ToggleMute()
		}
	case CmdToggleCamera:
		if eng := c.currentEngine(); eng != nil {
			eng.ToggleCamera()
		}
	case CmdChat:
		eng := c.currentEngine()
		if eng == nil {
			c.sendError(apperrors.InvalidStateError("no active call"))
			return
		}
		ctx, cancel := context.WithTimeout(c.ctx, constants.StoreTimeout)
		defer cancel()
		if err := eng.SendChat(ctx, msg.Text); err != nil {
			c.sendError(err)
		}
	default:
		c.sendError(apperrors.InvalidInputError("unknown command type"))
	}
}

// startCall opens the call view. With a pending incoming pointer the start
// is the accept: peer and call type default to the pointer's.
func (c *Client) startCall(msg *ClientMessage) {
	c.mu.Lock()
	if c.engine != nil {
		c.mu.Unlock()
		c.sendError(apperrors.InvalidStateError("call already active"))
		return
	}
	peer := msg.Peer
	callType := domain.CallType(msg.CallType)
	if inc := c.incoming; inc != nil && (peer == "" || peer == inc.Initiator) {
		peer = inc.Initiator
		callType = inc.Type
	}
	c.mu.Unlock()

	if callType == "" {
		callType = domain.CallTypeVoice
	}

	eng, err := call.New(c.hub.engineConfig(c.userID, c.pushState))
	if err != nil {
		c.sendError(err)
		return
	}
	if err := eng.Start(c.ctx, peer, callType, msg.ConversationID); err != nil {
		c.sendError(err)
		return
	}

	c.mu.Lock()
	c.engine = eng
	c.incoming = nil
	c.mu.Unlock()

	go func() {
		select {
		case <-eng.Done():
		case <-c.ctx.Done():
		}
		eng.Close()
		c.mu.Lock()
		if c.engine == eng {
			c.engine = nil
		}
		c.mu.Unlock()
	}()
}

// decline rejects the pending incoming call without opening the call view.
func (c *Client) decline() {
	c.mu.Lock()
	ptr := c.incoming
	c.incoming = nil
	c.mu.Unlock()

	if ptr == nil {
		c.sendError(apperrors.InvalidStateError("no incoming call to decline"))
		return
	}

	ctx, cancel := context.WithTimeout(c.ctx, constants.StoreTimeout)
	defer cancel()
	if err := call.Decline(ctx, c.hub.cfg.Sessions, c.hub.cfg.Registry, ptr); err != nil {
		c.sendError(err)
	}
}

func (c *Client) currentEngine() *call.Engine {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.engine
}

// pushState forwards an engine snapshot to the browser. Called from the
// engine's event loop, so enqueue must never block.
func (c *Client) pushState(snap call.Snapshot) {
	c.enqueue(&ServerMessage{Type: EventCallState, Call: &snap, Timestamp: time.Now()})
}

func (c *Client) sendError(err error) {
	c.enqueue(&ServerMessage{
		Type: EventError,
		Error: &ErrorBody{
			Code:    string(apperrors.CodeOf(err)),
			Message: err.Error(),
		},
		Timestamp: time.Now(),
	})
}

// enqueue drops the message when the outbound buffer is full; a slow reader
// loses intermediate snapshots, not the connection.
func (c *Client) enqueue(msg *ServerMessage) {
	raw, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case c.send <- raw:
	default:
		logger.Debug("dropping outbound message for slow WebSocket client",
			zap.String("user_id", c.userID), zap.String("type", msg.Type))
	}
}

// teardown closes the connection and ends any active call, as if the user
// had closed the call view.
func (c *Client) teardown() {
	c.mu.Lock()
	eng := c.engine
	c.engine = nil
	c.mu.Unlock()

	c.cancel()
	if eng != nil {
		eng.Close()
	}
	c.conn.Close()
	c.hub.remove(c)
}
