/*
Package signaling contains the core logic for room coordination and WebRTC
negotiation relay.

This file defines the Client struct, the WebSocket transport binding for one
connection. It owns the read/write pumps, the outbound message queue, and the
disconnect detection that drives lifecycle cleanup.
*/
package signaling

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"peercall/internal/app/identity"
	"peercall/internal/pkg/logx"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum time allowed for the server to wait for a Pong message from the client.
	pongWait = 60 * time.Second

	// frequency at which the server sends a Ping message.
	pingPeriod = (pongWait * 9) / 10

	// maximum allowed size (in bytes) of a message sent by the client.
	// Session descriptions dominate; 64 KiB leaves ample headroom.
	maxMessageSize = 65536

	// sendQueueSize is the outbound queue depth per connection. The queue
	// preserves per-sender FIFO order; when it fills, further messages to
	// this recipient are dropped rather than blocking the relay.
	sendQueueSize = 256
)

// Client represents one active WebSocket connection bound to an identity.
// It implements Sender: the relay queues envelopes here and the write pump
// drains them in order.
type Client struct {
	relay *Relay

	// underlying WebSocket connection object.
	conn *websocket.Conn

	// assigned by the relay's registry at connect time.
	connID ConnID

	identity identity.Identity

	// a buffered channel queuing envelopes waiting to be written out.
	send chan Envelope

	// mu guards closed so a fan-out racing Close never writes to a closed channel.
	mu     sync.Mutex
	closed bool

	// structured logger with connection context.
	logger zerolog.Logger
}

// NewClient binds a freshly upgraded WebSocket connection to the relay and
// returns the Client. The connection is registered immediately; the caller
// starts the pumps.
func NewClient(relay *Relay, wsConn *websocket.Conn, id identity.Identity) *Client {
	client := &Client{
		relay:    relay,
		conn:     wsConn,
		identity: id,
		send:     make(chan Envelope, sendQueueSize),
	}

	client.connID = relay.Connect(id, client)
	client.logger = logx.Logger().With().
		Str("conn_id", string(client.connID)).
		Str("user_id", id.UserID).
		Logger()

	return client
}

// ConnID returns the connection identifier assigned at registration.
func (c *Client) ConnID() ConnID {
	return c.connID
}

// Send queues an envelope for delivery. It never blocks: when the queue is
// full the envelope is dropped and an error returned, so one stalled client
// cannot hold up a fan-out to its peers.
func (c *Client) Send(env Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("connection closed")
	}

	select {
	case c.send <- env:
		return nil
	default:
		c.logger.Warn().
			Str("msg_type", string(env.Type)).
			Int("queue_len", len(c.send)).
			Msg("Client send queue full, dropping message")
		return fmt.Errorf("client send queue full")
	}
}

// Close asks the write pump to drain and close the connection. Safe to call
// more than once and concurrently with Send.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// ReadPump reads envelopes from the WebSocket connection and dispatches them
// to the relay. It handles heartbeats (Pong) and performs cleanup when the
// connection closes, however it closes.
func (c *Client) ReadPump() {
	defer c.cleanupOnDisconnect()

	c.conn.SetReadLimit(maxMessageSize)

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, messageBytes, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info().Err(err).Msg("Error reading message (Client close/going away)")
			}
			break
		}

		var env Envelope
		if err := json.Unmarshal(messageBytes, &env); err != nil {
			c.logger.Warn().Err(err).Msg("Client sent invalid JSON, dropped")
			continue
		}

		c.relay.Dispatch(c.connID, env)
	}
}

// cleanupOnDisconnect runs when the read pump terminates: the relay tears the
// session down (room removal, peer-left fan-out, registry removal) and the
// transport is closed. Closing the connection also cancels any pending writes.
func (c *Client) cleanupOnDisconnect() {
	c.logger.Info().Msg("Client connection cleanup starting.")

	c.relay.Disconnect(c.connID)
	c.Close()

	if err := c.conn.Close(); err != nil {
		c.logger.Debug().Err(err).Msg("Client connection close error")
	}
}

// WritePump drains the send queue to the WebSocket connection in FIFO order
// and keeps the heartbeat alive. One writer per connection; gorilla/websocket
// permits at most one concurrent writer.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()

		if err := c.conn.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Client connection close error in WritePump")
		}
	}()

	for {
		select {
		case env, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Error().Err(err).Msg("Failed to set write deadline")
				return
			}

			if !ok {
				// Close() drained the queue; say goodbye properly.
				if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
					c.logger.Debug().Err(err).Msg("Error writing close message")
				}
				return
			}

			messageBytes, err := json.Marshal(env)
			if err != nil {
				c.logger.Error().Err(err).Str("msg_type", string(env.Type)).Msg("Error marshaling envelope")
				continue
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, messageBytes); err != nil {
				c.logger.Info().Err(err).Msg("Error writing message")
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Error().Err(err).Msg("Failed to set write deadline on ping")
				return
			}

			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Info().Err(err).Msg("Error writing ping")
				return
			}
		}
	}
}
