// Package stream owns the WebSocket session against the venue: one
// background goroutine that dials, replays subscriptions after every
// reconnect, decodes inbound frames and fans the resulting events out to any
// number of consumer streams.
//
// The client never gives up on the connection by itself. Socket errors only
// trigger a reconnect; the session ends when the caller closes the client or
// cancels the context passed to Connect.
package stream

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/veiloq/kraken-stream/pkg/logging"
	"github.com/veiloq/kraken-stream/pkg/protocol"
)

// DefaultURL is the venue's public streaming endpoint
const DefaultURL = "wss://ws.kraken.com"

var (
	// ErrAlreadyConnected is returned by Connect when the session was
	// already started; the internal command receiver can be taken only once.
	ErrAlreadyConnected = errors.New("client already connected")

	// ErrClosed is returned by Subscribe after Close
	ErrClosed = errors.New("client closed")
)

// Command is one queued subscribe request
type Command struct {
	Pairs        []string
	Subscription protocol.Subscription
}

// Options configures a Client. Zero values fall back to the defaults noted
// per field.
type Options struct {
	// URL of the streaming endpoint; DefaultURL when empty
	URL string

	// CommandBuffer bounds the outbound command queue (default 100).
	// Subscribe blocks when the queue is full.
	CommandBuffer int

	// EventBuffer is the ring capacity of each consumer stream (default 100)
	EventBuffer int

	// ReconnectDelay is the pause before redialing after a mid-session drop
	// (default 1s). Kept shorter than ConnectRetryDelay: a dropped session
	// was recently healthy, so the fault is more likely transient.
	ReconnectDelay time.Duration

	// ConnectRetryDelay is the pause after a failed dial (default 5s)
	ConnectRetryDelay time.Duration

	// Logger defaults to logging.NewLogger()
	Logger logging.Logger
}

func (o Options) withDefaults() Options {
	if o.URL == "" {
		o.URL = DefaultURL
	}
	if o.CommandBuffer <= 0 {
		o.CommandBuffer = 100
	}
	if o.EventBuffer <= 0 {
		o.EventBuffer = 100
	}
	if o.ReconnectDelay <= 0 {
		o.ReconnectDelay = time.Second
	}
	if o.ConnectRetryDelay <= 0 {
		o.ConnectRetryDelay = 5 * time.Second
	}
	if o.Logger == nil {
		o.Logger = logging.NewLogger()
	}
	return o
}

// Client is a long-lived streaming client. Create it with New (no network
// I/O), attach consumers with Events, start the session with Connect, queue
// subscriptions with Subscribe.
type Client struct {
	opts   Options
	logger logging.Logger
	bus    *bus

	commands chan Command
	done     chan struct{}

	mu        sync.Mutex
	recv      chan Command // taken by the first Connect, nil afterwards
	closeOnce sync.Once
}

// New creates a client. It does not touch the network; call Connect to start
// the session.
func New(opts Options) *Client {
	opts = opts.withDefaults()
	commands := make(chan Command, opts.CommandBuffer)
	return &Client{
		opts:     opts,
		logger:   opts.Logger,
		bus:      newBus(opts.EventBuffer),
		commands: commands,
		recv:     commands,
		done:     make(chan struct{}),
	}
}

// Events returns a fresh, independent stream of decoded events. Streams can
// be created at any time, before or after Connect; each has its own ring
// buffer and drop counter.
func (c *Client) Events() *Stream {
	return c.bus.subscribe()
}

// Subscribe queues a subscribe command for the given pairs and channel and
// returns as soon as it is enqueued. token may be empty; private channels
// require the token from auth.Authenticator.
//
// Acceptance or rejection by the venue arrives later as a SubscriptionStatus
// event on the bus; Subscribe itself never waits for it.
func (c *Client) Subscribe(ctx context.Context, pairs []string, channel, token string) error {
	cmd := Command{
		Pairs: pairs,
		Subscription: protocol.Subscription{
			Name:  channel,
			Token: token,
		},
	}

	// Check the closed state first: with buffer space free, a select would
	// race the ready send against the closed done channel and could accept a
	// command no goroutine will ever drain.
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	select {
	case c.commands <- cmd:
		return nil
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close signals that no more commands will ever be issued. It is the one
// deliberate shutdown path: the session goroutine drops the connection and
// exits instead of reconnecting. Safe to call multiple times.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
	})
	return nil
}

// Connect starts the background session goroutine. It may be called at most
// once per client; a second call returns ErrAlreadyConnected. The context
// governs the whole session: cancelling it ends the session the same way
// Close does.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.recv == nil {
		return ErrAlreadyConnected
	}
	commands := c.recv
	c.recv = nil

	go c.run(ctx, commands)
	return nil
}

// run is the session loop: dial, replay, serve, reconnect. Only this
// goroutine ever touches the socket.
func (c *Client) run(ctx context.Context, commands <-chan Command) {
	// Subscriptions that were successfully sent, in acceptance order;
	// replayed one frame per entry on every reconnect.
	var replay []Command

	for {
		c.logger.Info("connecting", logging.String("url", c.opts.URL))
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.opts.URL, nil)
		if err != nil {
			c.logger.Error("connection failed",
				logging.Error(err),
				logging.Duration("retry_in", c.opts.ConnectRetryDelay),
			)
			if !c.pause(ctx, c.opts.ConnectRetryDelay) {
				return
			}
			continue
		}
		c.logger.Info("connected")

		alive := c.serve(ctx, conn, commands, &replay)
		conn.Close()
		if !alive {
			return
		}
		if !c.pause(ctx, c.opts.ReconnectDelay) {
			return
		}
	}
}

// serve drives one connected session. It returns true when the connection
// died and the client should reconnect, false when the client is shutting
// down for good.
func (c *Client) serve(ctx context.Context, conn *websocket.Conn, commands <-chan Command, replay *[]Command) bool {
	for _, cmd := range *replay {
		if err := sendSubscribe(conn, cmd); err != nil {
			// Can't write: the fresh connection is already dead
			c.logger.Error("resubscribe failed", logging.Error(err))
			return true
		}
		c.logger.Info("resubscribed",
			logging.Strings("pairs", cmd.Pairs),
			logging.String("channel", cmd.Subscription.Name),
		)
	}

	frames := make(chan []byte)
	stop := make(chan struct{})
	defer close(stop)
	go readPump(conn, frames, stop)

	for {
		select {
		case msg, ok := <-frames:
			if !ok {
				c.logger.Warn("stream ended, reconnecting")
				return true
			}
			event, err := protocol.Decode(msg)
			if err != nil {
				c.logger.Error("decode failure", logging.Error(err))
				continue
			}
			c.bus.publish(event)

		case cmd := <-commands:
			if err := sendSubscribe(conn, cmd); err != nil {
				c.logger.Error("subscribe send failed", logging.Error(err))
				return true
			}
			c.logger.Info("subscribed",
				logging.Strings("pairs", cmd.Pairs),
				logging.String("channel", cmd.Subscription.Name),
			)
			*replay = append(*replay, cmd)

		case <-c.done:
			c.logger.Info("client closed, shutting down session")
			return false

		case <-ctx.Done():
			c.logger.Info("context cancelled, shutting down session")
			return false
		}
	}
}

func sendSubscribe(conn *websocket.Conn, cmd Command) error {
	frame := protocol.SubscribeRequest{
		Event:        "subscribe",
		Pairs:        cmd.Pairs,
		Subscription: cmd.Subscription,
	}
	return conn.WriteJSON(frame)
}

// readPump feeds inbound frames into a channel the session loop can select
// on, and closes it when the socket errors or ends.
func readPump(conn *websocket.Conn, frames chan<- []byte, stop <-chan struct{}) {
	defer close(frames)
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		select {
		case frames <- msg:
		case <-stop:
			return
		}
	}
}

// pause waits out a reconnect delay, returning false if the client shut
// down while waiting.
func (c *Client) pause(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-c.done:
		return false
	case <-ctx.Done():
		return false
	}
}
