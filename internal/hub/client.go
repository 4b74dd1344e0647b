package hub

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Vansh-Bhardwaj/debridui-sync-go/internal/protocol"
	"github.com/Vansh-Bhardwaj/debridui-sync-go/internal/token"
)

// Status is the single source of truth for whether outbound sends are
// attempted.
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
)

var (
	// ErrNotConnected is returned by Send while the hub connection is down.
	// Callers surface this as a failure; stale commands are never queued for
	// later delivery.
	ErrNotConnected = errors.New("not connected to session hub")
	// ErrBrowseTimeout is returned when a browse round trip is never answered.
	ErrBrowseTimeout = errors.New("browse request timed out")
)

// TokenSource supplies the bearer credential used when dialing.
type TokenSource interface {
	GetToken(ctx context.Context) (string, error)
}

// Handler receives every parsed inbound frame, in transport order.
type Handler func(*protocol.ServerMessage)

// Options configures a Client.
type Options struct {
	URL           string
	Identity      protocol.DeviceIdentity
	Tokens        TokenSource
	DialTimeout   time.Duration
	BackoffBase   time.Duration
	BackoffMax    time.Duration
	BrowseTimeout time.Duration
	Logger        *log.Logger

	// OnStatus is invoked on every ConnectionStatus transition.
	OnStatus func(Status)

	// OnFrame receives the raw bytes of every accepted frame, before the
	// parsed handler. Used by the broadcast relay to republish hub traffic
	// to sibling processes.
	OnFrame func(raw []byte)
}

// Client owns the one full-duplex connection to the session hub. It dials with
// a bearer token, announces identity, forwards every parsed frame to a single
// handler, and reconnects with capped exponential backoff on unexpected close.
type Client struct {
	url           string
	identity      protocol.DeviceIdentity
	tokens        TokenSource
	dialTimeout   time.Duration
	backoffBase   time.Duration
	backoffMax    time.Duration
	browseTimeout time.Duration
	logger        *log.Logger
	onStatus      func(Status)
	onFrame       func([]byte)

	mu             sync.Mutex
	conn           *websocket.Conn
	status         Status
	handler        Handler
	generation     uint64
	attempts       int
	suppressed     bool // user-requested disconnect, no auto-reconnect
	dialing        bool // a Connect is in flight; later Connect calls coalesce
	reconnectTimer *time.Timer

	pendingBrowses map[string]*pendingBrowse
}

// NewClient creates a hub client. The handler must be registered with
// SetHandler before Connect.
func NewClient(opts Options) (*Client, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("hub URL is required")
	}
	if opts.Tokens == nil {
		return nil, fmt.Errorf("token source is required")
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 5 * time.Second
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = time.Second
	}
	if opts.BackoffMax <= 0 {
		opts.BackoffMax = 30 * time.Second
	}
	if opts.BrowseTimeout <= 0 {
		opts.BrowseTimeout = 15 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Client{
		url:            opts.URL,
		identity:       opts.Identity,
		tokens:         opts.Tokens,
		dialTimeout:    opts.DialTimeout,
		backoffBase:    opts.BackoffBase,
		backoffMax:     opts.BackoffMax,
		browseTimeout:  opts.BrowseTimeout,
		logger:         opts.Logger,
		onStatus:       opts.OnStatus,
		onFrame:        opts.OnFrame,
		status:         StatusDisconnected,
		suppressed:     true,
		pendingBrowses: make(map[string]*pendingBrowse),
	}, nil
}

// SetHandler registers the single inbound message handler.
func (c *Client) SetHandler(handler Handler) {
	c.mu.Lock()
	c.handler = handler
	c.mu.Unlock()
}

// Status returns the current connection status.
func (c *Client) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Connect dials the hub, announces identity, and starts the read loop.
// Re-enables auto-reconnect after a previous Disconnect. The client owns at
// most one connection: a Connect while another dial is in flight coalesces
// into that dial, and a Disconnect issued mid-dial wins over the dial.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.status == StatusConnected || c.dialing {
		c.mu.Unlock()
		return nil
	}
	c.dialing = true
	c.suppressed = false
	c.cancelReconnectLocked()
	c.setStatusLocked(StatusConnecting)
	c.mu.Unlock()

	bearer, err := c.tokens.GetToken(ctx)
	if err != nil {
		c.mu.Lock()
		c.dialing = false
		if errors.Is(err, token.ErrAuthRequired) {
			// Sync stays down until the user re-authenticates. Never a retry
			// storm against the auth endpoint.
			c.suppressed = true
			c.setStatusLocked(StatusDisconnected)
			c.mu.Unlock()
			return fmt.Errorf("hub connect: %w", err)
		}
		c.scheduleReconnectLocked()
		c.mu.Unlock()
		return fmt.Errorf("hub connect: %w", err)
	}

	dialer := websocket.Dialer{HandshakeTimeout: c.dialTimeout}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+bearer)

	conn, _, err := dialer.DialContext(ctx, c.url, header)
	if err != nil {
		c.mu.Lock()
		c.dialing = false
		c.scheduleReconnectLocked()
		c.mu.Unlock()
		return fmt.Errorf("hub dial: %w", err)
	}

	hello := &protocol.ClientMessage{Type: protocol.MsgHello, Identity: &c.identity}
	if err := c.writeFrame(conn, hello); err != nil {
		conn.Close()
		c.mu.Lock()
		c.dialing = false
		c.scheduleReconnectLocked()
		c.mu.Unlock()
		return fmt.Errorf("hub hello: %w", err)
	}

	c.mu.Lock()
	c.dialing = false
	if c.suppressed {
		// A Disconnect arrived while the dial was in flight; it wins.
		c.mu.Unlock()
		conn.Close()
		return ErrNotConnected
	}
	c.conn = conn
	c.generation++
	c.attempts = 0
	generation := c.generation
	c.setStatusLocked(StatusConnected)
	c.mu.Unlock()

	go c.readLoop(conn, generation)
	c.logger.Printf("connected to session hub as %s (%s)", c.identity.Name, c.identity.ID)
	return nil
}

// Disconnect closes the connection, cancels pending reconnect timers, and
// suppresses auto-reconnect until the next Connect. Outstanding browse calls
// resolve with ErrNotConnected rather than hanging.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.suppressed = true
	c.cancelReconnectLocked()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.failPendingBrowsesLocked(ErrNotConnected)
	c.setStatusLocked(StatusDisconnected)
	c.mu.Unlock()
}

// Send writes one frame. Fails fast when not connected.
func (c *Client) Send(msg *protocol.ClientMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status != StatusConnected || c.conn == nil {
		return ErrNotConnected
	}
	if err := c.writeFrame(c.conn, msg); err != nil {
		return fmt.Errorf("hub send: %w", err)
	}
	return nil
}

// writeFrame encodes and writes one outbound message.
func (c *Client) writeFrame(conn *websocket.Conn, msg *protocol.ClientMessage) error {
	data, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (c *Client) readLoop(conn *websocket.Conn, generation uint64) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.handleClose(generation)
			return
		}

		msg, err := protocol.Parse(data)
		if err != nil {
			// Unknown and malformed frames are dropped, never fatal.
			c.logger.Printf("dropping frame: %v", err)
			continue
		}

		if c.onFrame != nil {
			c.onFrame(data)
		}

		if msg.Type == protocol.MsgBrowseResponse {
			c.resolveBrowse(msg)
		}

		c.mu.Lock()
		handler := c.handler
		c.mu.Unlock()
		if handler != nil {
			handler(msg)
		}
	}
}

func (c *Client) handleClose(generation uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if generation != c.generation {
		// A stale read loop outlived its connection; a newer one owns state.
		return
	}
	c.conn = nil
	c.failPendingBrowsesLocked(ErrNotConnected)
	if c.suppressed {
		c.setStatusLocked(StatusDisconnected)
		return
	}
	c.logger.Printf("hub connection lost, reconnecting")
	c.scheduleReconnectLocked()
}

// scheduleReconnectLocked arms the backoff timer. Caller holds c.mu.
func (c *Client) scheduleReconnectLocked() {
	if c.suppressed {
		c.setStatusLocked(StatusDisconnected)
		return
	}
	c.setStatusLocked(StatusConnecting)
	delay := c.backoffDelay(c.attempts)
	c.attempts++
	c.cancelReconnectLocked()
	c.reconnectTimer = time.AfterFunc(delay, func() {
		if err := c.Connect(context.Background()); err != nil {
			c.logger.Printf("reconnect failed: %v", err)
		}
	})
}

func (c *Client) cancelReconnectLocked() {
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
}

// backoffDelay grows exponentially from the base, capped, with up to 50%
// jitter so a fleet of devices does not reconnect in lockstep.
func (c *Client) backoffDelay(attempt int) time.Duration {
	delay := c.backoffBase
	for i := 0; i < attempt && delay < c.backoffMax; i++ {
		delay *= 2
	}
	if delay > c.backoffMax {
		delay = c.backoffMax
	}
	jitter := time.Duration(rand.Int63n(int64(delay)/2 + 1))
	return delay + jitter
}

// setStatusLocked updates status and notifies. Caller holds c.mu; the
// callback runs on a fresh goroutine so listeners may call back in.
func (c *Client) setStatusLocked(status Status) {
	if c.status == status {
		return
	}
	c.status = status
	if c.onStatus != nil {
		go c.onStatus(status)
	}
}
