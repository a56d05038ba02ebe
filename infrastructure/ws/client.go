package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"peerchat/domain/event"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Client speaks the IPC protocol from the UI side. Calls may be issued
// concurrently; pushed events are delivered on Events.
type Client struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan Response
	err     error

	events chan event.ChatEvent
	done   chan struct{}
}

// Dial connects to url. A non-empty token is sent as a bearer token.
func Dial(ctx context.Context, url, token string) (*Client, error) {
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, err
	}
	c := &Client{
		conn:    conn,
		pending: make(map[string]chan Response),
		events:  make(chan event.ChatEvent, defaultConnectionBuffer),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Events yields pushed notifications until the connection closes.
func (c *Client) Events() <-chan event.ChatEvent { return c.events }

// Call sends command and waits for its response. result may be nil.
func (c *Client) Call(ctx context.Context, command string, args any, result any) error {
	req := Request{ID: uuid.NewString(), Command: command}
	if args != nil {
		raw, err := json.Marshal(args)
		if err != nil {
			return err
		}
		req.Args = raw
	}

	wait := make(chan Response, 1)
	c.mu.Lock()
	if c.err != nil {
		c.mu.Unlock()
		return c.err
	}
	c.pending[req.ID] = wait
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, req.ID)
		c.mu.Unlock()
	}()

	c.writeMu.Lock()
	err := c.conn.WriteJSON(req)
	c.writeMu.Unlock()
	if err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return c.closeErr()
	case resp := <-wait:
		if !resp.OK {
			return fmt.Errorf("%s: %s", command, resp.Error)
		}
		if result == nil || resp.Result == nil {
			return nil
		}
		raw, err := json.Marshal(resp.Result)
		if err != nil {
			return err
		}
		return json.Unmarshal(raw, result)
	}
}

func (c *Client) Close() error {
	c.writeMu.Lock()
	_ = c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()
	return c.conn.Close()
}

func (c *Client) closeErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// readLoop routes responses to their caller and events to Events.
func (c *Client) readLoop() {
	defer close(c.events)
	defer close(c.done)
	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			c.err = fmt.Errorf("connection closed: %w", err)
			c.mu.Unlock()
			return
		}

		var envelope struct {
			Response
			Event json.RawMessage `json:"event"`
		}
		if err := json.Unmarshal(msg, &envelope); err != nil {
			continue
		}
		if len(envelope.Event) > 0 {
			evt, err := event.Decode(envelope.Event)
			if err == nil {
				select {
				case c.events <- evt:
				default:
					// Nobody is draining Events
				}
			}
			continue
		}
		c.mu.Lock()
		wait, ok := c.pending[envelope.ID]
		c.mu.Unlock()
		if ok {
			wait <- envelope.Response
		}
	}
}
