package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// Frame types sent to stream clients.
const (
	FrameEvent = "event"
	FrameAck   = "ack"
	FramePong  = "pong"
	FrameError = "error"
)

// Request types accepted from stream clients.
const (
	RequestSubscribe   = "subscribe"
	RequestUnsubscribe = "unsubscribe"
	RequestPing        = "ping"
)

const (
	defaultPingInterval = 30 * time.Second
	defaultPongTimeout  = 10 * time.Second
)

// Frame is a server-to-client message. Event frames carry Channel and Data;
// replies echo the request ID.
type Frame struct {
	Type    string `json:"type"`
	ID      string `json:"id,omitempty"`
	Channel string `json:"channel,omitempty"`
	Time    string `json:"time,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// Request is a client-to-server message:
//
//	{"type":"subscribe","id":"1","channels":["pool.event"]}
type Request struct {
	Type     string   `json:"type"`
	ID       string   `json:"id,omitempty"`
	Channels []string `json:"channels,omitempty"`
}

// streamClient is one WebSocket connection. Its outbox is drained by
// writeLoop and closed by the hub.
type streamClient struct {
	hub      *Hub
	conn     *websocket.Conn
	outbox   chan []byte
	subject  string
	ping     time.Duration
	pongWait time.Duration
}

// upgrader accepts any origin; clients authenticate with a token instead.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// handleWebSocket authenticates the request and starts an event stream.
// Browsers cannot set headers on an upgrade, so the token is normally the
// token query parameter; a bearer header is accepted as well.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token, _ = strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	}
	if token == "" {
		writeUnauthorized(w, "token query parameter is required")
		return
	}
	claims, err := parseToken(token, s.cfg.JWT.Secret)
	if err != nil {
		writeUnauthorized(w, "invalid or expired token")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already written the HTTP error.
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &streamClient{
		hub:     s.hub,
		conn:    conn,
		outbox:  make(chan []byte, outboxSize),
		subject: claims.Subject,
	}
	c.ping, c.pongWait = keepalive(s.hub.cfg.PingInterval, s.hub.cfg.PongTimeout)
	s.hub.add(c)

	go c.writeLoop()
	go c.readLoop(int64(s.hub.cfg.MaxMessageSize))
}

// readLoop handles requests until the connection fails, then removes the
// client from the hub.
func (c *streamClient) readLoop(limit int64) {
	defer func() {
		c.hub.remove(c)
		c.conn.Close()
	}()

	if limit > 0 {
		c.conn.SetReadLimit(limit)
	}
	extend := func() error {
		return c.conn.SetReadDeadline(time.Now().Add(c.ping + c.pongWait))
	}
	extend() //nolint:errcheck // a failed deadline surfaces on the next read
	c.conn.SetPongHandler(func(string) error { return extend() })

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.hub.logger.Warn("stream read failed", "subject", c.subject, "error", err)
			}
			return
		}
		extend() //nolint:errcheck // a failed deadline surfaces on the next read
		c.handle(data)
	}
}

// writeLoop sends queued frames and keepalive pings. It exits when the hub
// closes the outbox or a write fails.
func (c *streamClient) writeLoop() {
	ticker := time.NewTicker(c.ping)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		var (
			kind int
			data []byte
		)
		select {
		case frame, ok := <-c.outbox:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, nil) //nolint:errcheck // closing anyway
				return
			}
			kind, data = websocket.TextMessage, frame
		case <-ticker.C:
			kind = websocket.PingMessage
		}
		c.conn.SetWriteDeadline(time.Now().Add(c.pongWait)) //nolint:errcheck // write below reports failure
		if err := c.conn.WriteMessage(kind, data); err != nil {
			return
		}
	}
}

// handle answers one client request.
func (c *streamClient) handle(data []byte) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		c.reply(Frame{Type: FrameError, Data: map[string]string{"message": "malformed request"}})
		return
	}

	switch req.Type {
	case RequestPing:
		c.reply(Frame{Type: FramePong, ID: req.ID})
	case RequestSubscribe, RequestUnsubscribe:
		if len(req.Channels) == 0 {
			c.replyError(req.ID, "channels must not be empty")
			return
		}
		for _, ch := range req.Channels {
			if _, ok := knownChannels[ch]; !ok {
				c.replyError(req.ID, "unknown channel "+ch)
				return
			}
		}
		on := req.Type == RequestSubscribe
		c.hub.subscribe(c, req.Channels, on)
		if on {
			c.hub.logger.Info("stream client subscribed", "subject", c.subject, "channels", req.Channels)
		}
		c.reply(Frame{Type: FrameAck, ID: req.ID, Data: map[string]any{req.Type: req.Channels}})
	default:
		c.replyError(req.ID, "unknown request type "+req.Type)
	}
}

func (c *streamClient) replyError(id, message string) {
	c.reply(Frame{Type: FrameError, ID: id, Data: map[string]string{"message": message}})
}

func (c *streamClient) reply(f Frame) {
	f.Time = time.Now().UTC().Format(time.RFC3339Nano)
	data, err := json.Marshal(f)
	if err != nil {
		return
	}
	c.hub.deliver(c, data)
}

// keepalive converts configured seconds to durations, defaulting unset values.
func keepalive(pingSeconds, pongSeconds int) (ping, pongWait time.Duration) {
	ping, pongWait = defaultPingInterval, defaultPongTimeout
	if pingSeconds > 0 {
		ping = time.Duration(pingSeconds) * time.Second
	}
	if pongSeconds > 0 {
		pongWait = time.Duration(pongSeconds) * time.Second
	}
	return ping, pongWait
}
