// Package wsquery subscribes to server-side query channels. A channel sends
// JSON arrays of objects; each message is merged into the local result set by
// identity. Lost connections are retried at a fixed interval a bounded number
// of times, after which the channel stays disconnected until Reconnect.
package wsquery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/flowmesh/schemaui/internal/logger"
	"github.com/flowmesh/schemaui/internal/metrics"
	"github.com/flowmesh/schemaui/internal/tracing"
	"github.com/flowmesh/schemaui/internal/xpath"
)

// State is the connection state of a channel
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// ErrRunning is returned by Start and Reconnect while the channel is active
var ErrRunning = errors.New("query channel already running")

// Options configures a Client
type Options struct {
	// BaseURL is the ws:// or wss:// address of the backend
	BaseURL string
	// Name selects the channel, the path is /ws-query-<Name>
	Name   string
	Params url.Values

	IDField       string
	MaxRetries    uint
	RetryInterval time.Duration

	Dialer  *websocket.Dialer
	Metrics *metrics.TransportMetrics

	// OnUpdate receives the merged result set after every message
	OnUpdate func(items []any)
	// OnState receives every state transition
	OnState func(State)
}

// Client is one query channel
type Client struct {
	opts Options
	log  zerolog.Logger

	mu      sync.Mutex
	state   State
	items   []any
	lastErr error
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates a channel client; it does not connect
func New(opts Options) *Client {
	if opts.IDField == "" {
		opts.IDField = "_id"
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = 3 * time.Second
	}
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	return &Client{
		opts: opts,
		log:  logger.WithComponent("wsquery").With().Str("channel", opts.Name).Logger(),
	}
}

// URL returns the channel address
func (c *Client) URL() string {
	u := strings.TrimRight(c.opts.BaseURL, "/") + "/ws-query-" + c.opts.Name
	if len(c.opts.Params) > 0 {
		u += "?" + c.opts.Params.Encode()
	}
	return u
}

// Name returns the channel name
func (c *Client) Name() string {
	return c.opts.Name
}

// State returns the current connection state
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err returns the error that ended the last connection attempt
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Items returns a copy of the merged result set
func (c *Client) Items() []any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]any(nil), c.items...)
}

// Start connects in the background
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done != nil {
		return ErrRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.run(ctx, c.done)
	return nil
}

// Reconnect restarts a channel that gave up. It is the only way out of the
// disconnected state.
func (c *Client) Reconnect(ctx context.Context) error {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()

	if done != nil {
		select {
		case <-done:
		default:
			return ErrRunning
		}
	}

	c.mu.Lock()
	c.done = nil
	c.mu.Unlock()
	return c.Start(ctx)
}

// Stop closes the connection and waits for the background loop to exit
func (c *Client) Stop() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (c *Client) setState(s State, err error) {
	c.mu.Lock()
	changed := c.state != s
	c.state = s
	if err != nil {
		c.lastErr = err
	}
	c.mu.Unlock()

	c.opts.Metrics.SetChannelState(c.opts.Name, int(s))
	if changed && c.opts.OnState != nil {
		c.opts.OnState(s)
	}
}

func (c *Client) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	// retries is spent across drops and refilled only by a connection that
	// delivered a message or stayed up for a full interval
	var retries uint
	for {
		c.setState(StateConnecting, nil)
		conn, err := c.dial(ctx, &retries)
		if err != nil {
			c.giveUp(ctx, err)
			return
		}

		c.setState(StateConnected, nil)
		c.log.Info().Str("url", c.URL()).Msg("Query channel connected")

		connectedAt := time.Now()
		delivered, err := c.read(ctx, conn)
		if ctx.Err() != nil {
			c.setState(StateDisconnected, nil)
			return
		}
		if delivered || time.Since(connectedAt) >= c.opts.RetryInterval {
			retries = 0
		}
		if retries >= c.opts.MaxRetries {
			c.giveUp(ctx, fmt.Errorf("connection lost: %w", err))
			return
		}
		retries++
		c.opts.Metrics.RecordReconnect(c.opts.Name)
		c.log.Warn().Err(err).Uint("retry", retries).Dur("retry_in", c.opts.RetryInterval).Msg("Query channel lost")

		timer := time.NewTimer(c.opts.RetryInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			c.setState(StateDisconnected, nil)
			return
		case <-timer.C:
		}
	}
}

func (c *Client) giveUp(ctx context.Context, err error) {
	if ctx.Err() != nil {
		c.setState(StateDisconnected, nil)
		return
	}
	c.log.Warn().Err(err).Uint("max_retries", c.opts.MaxRetries).Msg("Query channel gave up reconnecting")
	c.setState(StateDisconnected, err)
}

// dial connects with a constant backoff. The first attempt is free, every
// further one spends from retries; MaxRetries caps the total.
func (c *Client) dial(ctx context.Context, retries *uint) (*websocket.Conn, error) {
	attempt := 0
	operation := func() (*websocket.Conn, error) {
		attempt++
		if attempt > 1 {
			*retries++
			c.opts.Metrics.RecordReconnect(c.opts.Name)
		}
		conn, resp, err := c.opts.Dialer.DialContext(ctx, c.URL(), tracing.InjectHTTP(ctx, nil))
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, backoff.Permanent(ctx.Err())
			}
			return nil, fmt.Errorf("dial %s: %w", c.URL(), err)
		}
		return conn, nil
	}

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewConstantBackOff(c.opts.RetryInterval)),
		backoff.WithMaxTries(c.opts.MaxRetries-*retries+1),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.log.Debug().Err(err).Dur("retry_in", next).Msg("Query channel dial failed")
		}),
	)
}

// read consumes messages until the connection fails. delivered reports
// whether at least one message arrived.
func (c *Client) read(ctx context.Context, conn *websocket.Conn) (delivered bool, err error) {
	closed := make(chan struct{})
	defer close(closed)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-closed:
			conn.Close()
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return delivered, err
		}
		delivered = true
		c.opts.Metrics.RecordDelta(c.opts.Name)

		delta, err := decodeDelta(data)
		if err != nil {
			c.log.Warn().Err(err).Msg("Ignoring malformed query message")
			continue
		}

		c.mu.Lock()
		c.items = Merge(c.items, delta, c.opts.IDField)
		items := append([]any(nil), c.items...)
		c.mu.Unlock()

		if c.opts.OnUpdate != nil {
			c.opts.OnUpdate(items)
		}
	}
}

func decodeDelta(data []byte) ([]any, error) {
	var msg any
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	switch v := msg.(type) {
	case []any:
		return v, nil
	case map[string]any:
		return []any{v}, nil
	default:
		return nil, fmt.Errorf("unexpected query message of type %T", msg)
	}
}

// Merge applies delta to items: an object whose identity is already present
// replaces that entry, anything else is appended
func Merge(items, delta []any, idField string) []any {
	out := append([]any(nil), items...)
	for _, d := range delta {
		d = xpath.ClearXPath(d)
		m, ok := d.(map[string]any)
		id, hasID := m[idField]
		if !ok || !hasID || id == nil {
			out = append(out, d)
			continue
		}
		_, idx, found := lo.FindIndexOf(out, func(item any) bool {
			im, ok := item.(map[string]any)
			return ok && xpath.Equal(im[idField], id)
		})
		if found {
			out[idx] = d
			continue
		}
		out = append(out, d)
	}
	return out
}
