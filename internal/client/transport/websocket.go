package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024

	defaultRetryDelay = 3 * time.Second
	defaultSendBuffer = 256
)

// Options tune a websocket Client. Zero values use defaults.
type Options struct {
	Dialer     *websocket.Dialer
	Logger     *log.Logger
	RetryDelay time.Duration
	SendBuffer int
}

// Client is a reconnecting websocket transport. Inbound frames are decoded
// into Events and dispatched from a single goroutine in arrival order;
// "connect" and "disconnect" are synthesized around each connection.
type Client struct {
	Registry

	url    string
	dialer *websocket.Dialer
	log    *log.Logger
	retry  time.Duration
	bufLen int

	mu   sync.Mutex
	send chan []byte
}

var _ Conn = (*Client)(nil)

func NewClient(url string, opts Options) *Client {
	c := &Client{
		url:    url,
		dialer: opts.Dialer,
		log:    opts.Logger,
		retry:  opts.RetryDelay,
		bufLen: opts.SendBuffer,
	}
	if c.dialer == nil {
		c.dialer = websocket.DefaultDialer
	}
	if c.log == nil {
		c.log = log.New(io.Discard, "", 0)
	}
	if c.retry <= 0 {
		c.retry = defaultRetryDelay
	}
	if c.bufLen <= 0 {
		c.bufLen = defaultSendBuffer
	}
	return c
}

// Run connects and keeps redialing after a fixed delay until ctx is done.
func (c *Client) Run(ctx context.Context) error {
	for {
		if err := c.connectOnce(ctx); err != nil && ctx.Err() == nil {
			c.log.Printf("transport: %v; retrying in %s", err, c.retry)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.retry):
		}
	}
}

// Connected reports whether a connection is currently up.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.send != nil
}

// Emit marshals the event and queues it for the write pump.
func (c *Client) Emit(name string, payload any) error {
	ev, err := NewEvent(name, payload)
	if err != nil {
		return err
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("%s: encode envelope: %w", name, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.send == nil {
		return ErrNotConnected
	}
	select {
	case c.send <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

func (c *Client) connectOnce(ctx context.Context) error {
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.url, err)
	}

	send := make(chan []byte, c.bufLen)
	done := make(chan struct{})
	c.mu.Lock()
	c.send = send
	c.mu.Unlock()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	c.log.Printf("transport: connected to %s", c.url)
	c.Dispatch(Event{Type: EventConnect})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.writePump(conn, send, done)
	}()

	err = c.readPump(conn)

	c.mu.Lock()
	c.send = nil
	c.mu.Unlock()
	close(done)
	conn.Close()
	wg.Wait()

	c.log.Printf("transport: disconnected: %v", err)
	c.Dispatch(Event{Type: EventDisconnect})
	return err
}

func (c *Client) readPump(conn *websocket.Conn) error {
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				return fmt.Errorf("read: %w", err)
			}
			return err
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))

		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil || ev.Type == "" {
			c.log.Printf("transport: dropping malformed frame: %q", data)
			continue
		}
		if ev.Type == EventConnect || ev.Type == EventDisconnect {
			continue
		}
		c.Dispatch(ev)
	}
}

func (c *Client) writePump(conn *websocket.Conn, send <-chan []byte, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case msg := <-send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.log.Printf("transport: write: %v", err)
				conn.Close()
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				conn.Close()
				return
			}
		}
	}
}
