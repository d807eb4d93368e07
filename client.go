package main

import (
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = (pongWait * 9) / 10
	maxMessageSize    = 4096
	sendBufSize       = 256
	maxMessagesPerSec = 60
)

// Internal send-channel markers. Outbound JSON always starts with '{', so
// single-byte prefixes are unambiguous.
const (
	markerBinary = 0xFF // payload is a binary websocket frame
	markerClose  = 0xFE // payload is a close reason; write it and hang up
)

// Client is one WebSocket connection: the multiplexing point between a
// player identity and its room.
type Client struct {
	gw         *Gateway
	conn       *websocket.Conn
	send       chan []byte
	playerID   string
	roomID     string
	room       *Room
	remoteAddr string
	binary     bool // client asked for msgpack state frames
	msgCount   int
	msgResetAt time.Time
}

// NewClient wraps an upgraded connection.
func NewClient(gw *Gateway, conn *websocket.Conn, remoteAddr string, binary bool) *Client {
	return &Client{
		gw:         gw,
		conn:       conn,
		send:       make(chan []byte, sendBufSize),
		remoteAddr: remoteAddr,
		binary:     binary,
	}
}

// ReadPump reads inbound frames until the connection dies, then removes
// the player from its room. Room teardown kicks arrive as write-side
// closes, which also land here as read errors.
func (c *Client) ReadPump() {
	defer func() {
		c.gw.TrackDisconnect(c.remoteAddr)
		if c.room != nil {
			c.room.Remove(c.playerID)
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("ws error: %v", err)
			}
			break
		}

		// Rate limiting
		now := time.Now()
		if now.After(c.msgResetAt) {
			c.msgCount = 0
			c.msgResetAt = now.Add(time.Second)
		}
		c.msgCount++
		if c.msgCount > maxMessagesPerSec {
			log.Printf("rate limit exceeded for %s, disconnecting", c.remoteAddr)
			break
		}

		msg, ok := DecodeClientMessage(message)
		if !ok {
			// Malformed or unknown: dropped, nobody else affected.
			continue
		}
		if msg.Type == ClientPing {
			// Latency probe; echoes the opaque id, never touches state.
			c.room.SendPing(c.playerID, msg.ID)
			continue
		}
		c.room.HandleCommand(c.playerID, msg)
	}
}

// WritePump writes outbound frames and keepalive pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			var err error
			switch {
			case len(message) > 0 && message[0] == markerBinary:
				err = c.conn.WriteMessage(websocket.BinaryMessage, message[1:])
			case len(message) > 0 && message[0] == markerClose:
				// Close with reason; queued state updates were flushed
				// first, the channel is FIFO.
				data := websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(message[1:]))
				c.conn.WriteMessage(websocket.CloseMessage, data)
				return
			default:
				err = c.conn.WriteMessage(websocket.TextMessage, message)
			}
			if err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendJSON sends a message as a text frame.
func (c *Client) SendJSON(msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("marshal error: %v", err)
		return
	}
	c.enqueue(data)
}

// SendState sends a state update: msgpack binary for clients that opted
// in, JSON text otherwise.
func (c *Client) SendState(msg StateUpdateMessage) {
	if !c.binary {
		c.SendJSON(msg)
		return
	}
	data, err := msgpack.Marshal(msg)
	if err != nil {
		log.Printf("msgpack marshal error: %v", err)
		return
	}
	framed := make([]byte, len(data)+1)
	framed[0] = markerBinary
	copy(framed[1:], data)
	c.enqueue(framed)
}

// Kick closes the connection with an explanatory reason after flushing
// anything already queued.
func (c *Client) Kick(reason string) {
	framed := make([]byte, len(reason)+1)
	framed[0] = markerClose
	copy(framed[1:], reason)
	c.enqueue(framed)
}

// enqueue hands a frame to the write pump without ever blocking; a slow
// client drops frames rather than stalling a tick.
func (c *Client) enqueue(data []byte) {
	defer func() { recover() }()
	select {
	case c.send <- data:
	default:
	}
}
