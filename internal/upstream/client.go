// Package upstream dials the cloud realtime-speech provider and exchanges
// events with it over a single WebSocket. It owns the only goroutine that
// ever calls conn.WriteMessage, and applies the same ping/keepalive
// discipline a streaming client needs to hold a long-lived connection open.
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/yourusername/realtime-voice-proxy/internal/realtime"
)

const (
	pingInterval = 20 * time.Second
	pongWait     = 45 * time.Second
)

// ErrQueueFull is returned by Send when the outbound queue is saturated —
// the caller (the session) treats this as a fatal backpressure condition.
var ErrQueueFull = errors.New("upstream: outbound queue full")

// Client is a single session's connection to the realtime provider.
type Client struct {
	conn *websocket.Conn
	log  zerolog.Logger

	send   chan []byte
	events chan []byte

	closeOnce sync.Once
	closed    chan struct{}
}

// Dial connects to the provider at url, authenticating with apiKey via the
// Authorization header, and starts the read and write loops. queueSize
// bounds the outbound queue.
func Dial(ctx context.Context, url, apiKey string, queueSize int, log zerolog.Logger) (*Client, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+apiKey)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, fmt.Errorf("upstream: dial: %w", err)
	}

	c := &Client{
		conn:   conn,
		log:    log,
		send:   make(chan []byte, queueSize),
		events: make(chan []byte, queueSize),
		closed: make(chan struct{}),
	}

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go c.writeLoop()
	go c.readLoop()

	return c, nil
}

// Send marshals and enqueues a client event for the write loop. It never
// blocks: a full queue is reported as ErrQueueFull instead of applying
// backpressure to the caller, since the caller is itself a single-writer
// goroutine that must not stall on a slow upstream.
func (c *Client) Send(event realtime.ClientEvent) error {
	raw, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("upstream: encode event: %w", err)
	}

	select {
	case c.send <- raw:
		return nil
	default:
		return ErrQueueFull
	}
}

// Events returns the channel of raw upstream messages. The caller decodes
// each with realtime.Decode. The channel is closed when the read loop exits.
func (c *Client) Events() <-chan []byte {
	return c.events
}

// Closed reports when the connection has torn down, for callers that need
// to select on it alongside other work.
func (c *Client) Closed() <-chan struct{} {
	return c.closed
}

// Close sends a close frame and tears down both loops. Safe to call more
// than once.
func (c *Client) Close(code int, reason string) error {
	var err error
	c.closeOnce.Do(func() {
		deadline := time.Now().Add(time.Second)
		msg := websocket.FormatCloseMessage(code, reason)
		err = c.conn.WriteControl(websocket.CloseMessage, msg, deadline)
		close(c.closed)
		c.conn.Close()
	})
	return err
}

func (c *Client) writeLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.closed:
			return
		case raw, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				c.log.Warn().Err(err).Msg("upstream write failed")
				c.Close(websocket.CloseAbnormalClosure, "write failed")
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				c.log.Warn().Err(err).Msg("upstream ping failed")
				c.Close(websocket.CloseAbnormalClosure, "ping failed")
				return
			}
		}
	}
}

func (c *Client) readLoop() {
	defer close(c.events)

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.closed:
			default:
				c.log.Debug().Err(err).Msg("upstream read ended")
				c.Close(websocket.CloseAbnormalClosure, "read failed")
			}
			return
		}

		select {
		case c.events <- message:
		case <-c.closed:
			return
		}
	}
}
