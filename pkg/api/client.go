// Copyright 2013 The Gorilla WebSocket Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"patrolchat/pkg/errors"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096

	// Time allowed for a connection to authenticate before it is cut.
	authWindow = 30 * time.Second
)

var (
	newline = []byte{'\n'}
	space   = []byte{' '}
)

// TokenVerifier validates an identity token and yields the stable
// user id it was issued for.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (string, error)
}

// Client is a middleman between a websocket connection and the Hub.
// It joins its user room only after the peer proves its identity.
type Client struct {
	hub  *Hub
	conn *websocket.Conn

	// Buffered channel of outbound messages. Closed only by the hub,
	// via closeSend; sendMu synchronizes that close with error frames
	// written from the read pump.
	send     chan []byte
	sendMu   sync.Mutex
	sendGone bool

	// ID of the user the connection claims to belong to.
	id string

	chatService ChatService
	verifier    TokenVerifier
	log         *zap.Logger

	isAuthenticated bool
}

func NewClient(hub *Hub, conn *websocket.Conn, id string, chatService ChatService, verifier TokenVerifier, log *zap.Logger) *Client {
	return &Client{
		hub:         hub,
		conn:        conn,
		send:        make(chan []byte, 256),
		id:          id,
		chatService: chatService,
		verifier:    verifier,
		log:         log,
	}
}

// ReadPump pumps messages from the websocket connection into the chat
// service. The application runs ReadPump in a per-connection
// goroutine, ensuring at most one reader per connection.
func (c *Client) ReadPump() {
	defer func() {
		if c.isAuthenticated {
			c.hub.Unregister(c)
		}
		if err := c.conn.Close(); err != nil {
			c.log.Debug("closing websocket connection", zap.Error(err))
		}
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.log.Warn("unable to set read deadline", zap.Error(err))
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// Cut the connection if the peer does not authenticate in time.
	disconnectTimer := time.AfterFunc(authWindow, func() {
		c.writeClientError("did not authenticate within allotted time")
		_ = c.conn.Close()
	})
	defer disconnectTimer.Stop()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Debug("websocket closed unexpectedly", zap.Error(err))
			}
			return
		}
		raw = bytes.TrimSpace(bytes.ReplaceAll(raw, newline, space))

		var incoming IncomingEvent
		if err := json.Unmarshal(raw, &incoming); err != nil {
			c.writeClientError("could not parse frame")
			continue
		}

		if !c.isAuthenticated {
			if incoming.RequestType != RequestAuthenticate {
				c.writeClientError("authenticate first")
				continue
			}
			if !c.authenticate(incoming.Token) {
				return
			}
			disconnectTimer.Stop()
			continue
		}

		c.handle(incoming)
	}
}

func (c *Client) authenticate(token string) bool {
	uid, err := c.verifier.Verify(context.Background(), token)
	if err != nil {
		c.writeClientError("token not valid")
		return false
	}
	if uid != c.id {
		c.writeClientError("token does not match client uid")
		return false
	}

	c.isAuthenticated = true
	c.hub.Register(c)
	return true
}

func (c *Client) handle(incoming IncomingEvent) {
	ctx := context.Background()

	switch incoming.RequestType {
	case RequestSendMessage:
		var target SendTarget
		if incoming.ConversationId != "" {
			target = ByConversation(incoming.ConversationId)
		} else if incoming.ReceiverId != "" {
			target = ByCounterpart(incoming.ReceiverId)
		}

		_, err := c.chatService.SendMessage(ctx, c.id, SendMessageInput{
			Target: target,
			Body:   incoming.Message,
			Media:  incoming.Media,
		})
		if err != nil {
			c.writeServiceError(err)
		}

	case RequestMarkRead:
		if err := c.chatService.MarkRead(ctx, c.id, incoming.ConversationId); err != nil {
			c.writeServiceError(err)
		}

	default:
		c.writeClientError("unsupported request type")
	}
}

// writeClientError best-effort reports a protocol failure to the peer.
func (c *Client) writeClientError(message string) {
	c.writeError(errors.CodeInvalidArgument, message)
}

func (c *Client) writeServiceError(err error) {
	c.writeError(errors.CodeOf(err), err.Error())
}

func (c *Client) writeError(code errors.Code, message string) {
	payload, err := json.Marshal(map[string]string{
		"type":  "error",
		"code":  string(code),
		"error": message,
	})
	if err != nil {
		return
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.sendGone {
		// The hub already cut this connection.
		return
	}
	select {
	case c.send <- payload:
	default:
	}
}

// closeSend closes the outbound channel. The hub is the sole caller;
// after it returns, writeError becomes a no-op.
func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	c.sendGone = true
	close(c.send)
}

// WritePump pumps messages from the Hub to the websocket connection.
// One goroutine per connection ensures at most one writer.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			_, _ = w.Write(message)

			// Add queued events to the current websocket message.
			n := len(c.send)
			for i := 0; i < n; i++ {
				_, _ = w.Write(newline)
				_, _ = w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
