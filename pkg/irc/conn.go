// Package irc drives one chat connection through its lifecycle and bridges
// wire traffic onto the event bus.
package irc

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"slices"
	"strings"
	"sync"

	"chatat/pkg/bus"
	"chatat/pkg/twitch"
	"chatat/pkg/wire"
)

// DefaultAddr is Twitch's plaintext chat endpoint.
const DefaultAddr = "irc.chat.twitch.tv:6667"

// Dialer opens the byte stream to the chat server.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Config describes what to connect to and which channels to join initially.
type Config struct {
	Addr     string
	Auth     twitch.Auth
	Channels []*twitch.Channel
}

type Option func(*Conn)

// WithDialer replaces the default net.Dialer.
func WithDialer(dialer Dialer) Option {
	return func(c *Conn) {
		if dialer != nil {
			c.dialer = dialer
		}
	}
}

// Conn owns one transport. It publishes parsed messages on bus.TopicMessage
// and writes what is published on bus.TopicSend and bus.TopicJoin.
type Conn struct {
	cfg    Config
	bus    *bus.Bus
	codec  *wire.Codec
	dialer Dialer
	log    *slog.Logger

	mu        sync.Mutex
	ctx       context.Context
	state     State
	transport net.Conn
	joined    map[*twitch.Channel]struct{}
	subs      []bus.Subscription
	err       error

	writeMu sync.Mutex
	readers sync.WaitGroup
	done    chan struct{}
}

// New validates cfg and returns a disconnected Conn.
func New(cfg Config, b *bus.Bus, codec *wire.Codec, log *slog.Logger, opts ...Option) (*Conn, error) {
	if err := cfg.Auth.Validate(); err != nil {
		return nil, fmt.Errorf("invalid credentials: %w", err)
	}
	if b == nil {
		return nil, errors.New("event bus is required")
	}
	if codec == nil {
		return nil, errors.New("wire codec is required")
	}
	if slices.Contains(cfg.Channels, nil) {
		return nil, errors.New("initial channels must not contain nil")
	}
	if strings.TrimSpace(cfg.Addr) == "" {
		cfg.Addr = DefaultAddr
	}
	if log == nil {
		log = slog.Default()
	}

	c := &Conn{
		cfg:    cfg,
		bus:    b,
		codec:  codec,
		dialer: &net.Dialer{},
		log:    log.With("component", "irc.conn", "addr", cfg.Addr),
		ctx:    context.Background(),
		state:  StateDisconnected,
		joined: make(map[*twitch.Channel]struct{}),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Run connects and blocks until the connection is closed, either by the peer,
// an I/O error, or ctx being canceled. It returns the terminal cause, which is
// nil for a local close.
func (c *Conn) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := c.Connect(ctx); err != nil {
		if !errors.Is(err, ErrAlreadyStarted) {
			c.readers.Wait()
		}
		return err
	}

	select {
	case <-ctx.Done():
		c.Close()
	case <-c.done:
	}

	c.readers.Wait()
	return c.Err()
}

// Connect dials, authenticates and joins the configured channels. PASS and
// NICK are not acknowledged by the server; a rejected login shows up as the
// peer closing the stream. Any failure after the dial leaves the connection
// Closed.
func (c *Conn) Connect(ctx context.Context) (err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if !c.advance(StateDisconnected, StateConnecting) {
		return ErrAlreadyStarted
	}

	transport, err := c.dialer.DialContext(ctx, "tcp", c.cfg.Addr)
	if err != nil {
		terr := &TransportError{Op: "dial", Err: err}
		c.shutdown(terr)
		return terr
	}
	defer func() {
		if err != nil {
			c.shutdown(err)
		}
	}()

	c.mu.Lock()
	if c.state != StateConnecting {
		c.mu.Unlock()
		_ = transport.Close()
		return c.closedErr()
	}
	c.transport = transport
	c.ctx = context.WithoutCancel(ctx)
	c.subs = append(c.subs,
		c.bus.Subscribe(bus.TopicSend, c.onSend),
		c.bus.Subscribe(bus.TopicJoin, c.onJoin),
	)
	c.mu.Unlock()

	c.readers.Add(1)
	go c.readLoop(transport)

	if !c.advance(StateConnecting, StateAuthenticating) {
		return c.closedErr()
	}
	c.log.Info("Connected, authenticating", "username", c.cfg.Auth.Username)

	if err := c.write(wire.EncodeCommand("pass", c.cfg.Auth.OAuthToken)); err != nil {
		return err
	}
	if err := c.write(wire.EncodeCommand("nick", c.cfg.Auth.Username)); err != nil {
		return err
	}

	if !c.advance(StateAuthenticating, StateJoining) {
		return c.closedErr()
	}
	for _, channel := range c.cfg.Channels {
		if err := c.Join(ctx, channel); err != nil {
			return err
		}
	}

	if !c.advance(StateJoining, StateActive) {
		return c.closedErr()
	}
	c.log.Info("Connection active", "channels", channelNames(c.Joined()))

	return nil
}

// Join writes JOIN for channel unless it is already in the joined set.
func (c *Conn) Join(_ context.Context, channel *twitch.Channel) error {
	if channel == nil {
		return errors.New("channel is required")
	}

	c.mu.Lock()
	if !c.state.canSend() {
		c.mu.Unlock()
		return ErrNotActive
	}
	if _, ok := c.joined[channel]; ok {
		c.mu.Unlock()
		return nil
	}
	c.joined[channel] = struct{}{}
	c.mu.Unlock()

	if err := c.write(wire.EncodeCommand("join", channel.String())); err != nil {
		return err
	}

	c.log.Debug("Joined channel", "channel", channel.Name())
	return nil
}

// Send writes msg as a PRIVMSG to its channel.
func (c *Conn) Send(_ context.Context, msg twitch.Message) error {
	if msg.Channel == nil {
		return errors.New("message has no channel")
	}
	if !c.State().canSend() {
		return ErrNotActive
	}

	return c.write(wire.EncodePrivmsg(msg))
}

// Close tears the connection down. It is safe to call in any state and more
// than once.
func (c *Conn) Close() error {
	c.shutdown(nil)
	return nil
}

// Done is closed exactly once, when the connection reaches StateClosed.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Err returns the terminal cause once Done is closed.
func (c *Conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Joined returns the channels JOIN was issued for, in no particular order.
func (c *Conn) Joined() []*twitch.Channel {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]*twitch.Channel, 0, len(c.joined))
	for ch := range c.joined {
		out = append(out, ch)
	}
	return out
}

func (c *Conn) onSend(ctx context.Context, payload any) error {
	msg, ok := payload.(twitch.Message)
	if !ok {
		return fmt.Errorf("unexpected %s payload %T", bus.TopicSend, payload)
	}

	return c.Send(ctx, msg)
}

func (c *Conn) onJoin(ctx context.Context, payload any) error {
	channel, ok := payload.(*twitch.Channel)
	if !ok {
		return fmt.Errorf("unexpected %s payload %T", bus.TopicJoin, payload)
	}

	return c.Join(ctx, channel)
}

func (c *Conn) readLoop(transport net.Conn) {
	defer c.readers.Done()

	reader := bufio.NewReaderSize(transport, wire.MaxLineSize)
	overlong := false
	for {
		line, err := reader.ReadSlice('\n')
		if errors.Is(err, bufio.ErrBufferFull) {
			if !overlong {
				c.log.Warn("Dropping undecodable line", "error", wire.LineTooLong(line))
			}
			overlong = true
			continue
		}
		switch {
		case overlong:
			// Tail of a line already reported.
			overlong = false
		case len(line) > 0:
			c.handleLine(line)
		}
		if err != nil {
			if c.State().terminating() {
				return
			}
			c.shutdown(&TransportError{Op: "read", Err: err})
			return
		}
	}
}

func (c *Conn) handleLine(line []byte) {
	if arg, ok := wire.ParsePing(line); ok {
		if err := c.write(wire.EncodePong(arg)); err != nil {
			c.log.Warn("Failed to answer ping", "error", err)
		}
		return
	}

	msg, ok, err := c.codec.ParseLine(line)
	if err != nil {
		c.log.Warn("Dropping undecodable line", "error", err)
		return
	}
	if !ok {
		c.log.Debug("Ignoring line", "line", strings.TrimRight(string(line), "\r\n"))
		return
	}

	c.mu.Lock()
	ctx := c.ctx
	c.mu.Unlock()

	c.bus.Publish(ctx, bus.TopicMessage, msg)
}

func (c *Conn) write(payload []byte) error {
	c.mu.Lock()
	transport := c.transport
	c.mu.Unlock()
	if transport == nil {
		return ErrNotActive
	}

	c.writeMu.Lock()
	_, err := transport.Write(payload)
	c.writeMu.Unlock()

	if err != nil {
		if c.State().terminating() {
			return c.closedErr()
		}
		terr := &TransportError{Op: "write", Err: err}
		c.shutdown(terr)
		return terr
	}

	return nil
}

// advance moves from one state to the next, failing if another goroutine got
// there first (typically a shutdown).
func (c *Conn) advance(from, to State) bool {
	c.mu.Lock()
	if c.state != from {
		c.mu.Unlock()
		return false
	}
	c.state = to
	c.mu.Unlock()

	c.publishState(StateChange{From: from, To: to})
	return true
}

// shutdown runs the closing sequence once; later calls return immediately.
func (c *Conn) shutdown(cause error) {
	c.mu.Lock()
	if c.state.terminating() {
		c.mu.Unlock()
		return
	}
	from := c.state
	c.state = StateClosing
	c.err = cause
	transport := c.transport
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()

	c.publishState(StateChange{From: from, To: StateClosing, Err: cause})

	for _, sub := range subs {
		c.bus.Unsubscribe(sub)
	}
	if transport != nil {
		if err := transport.Close(); err != nil {
			c.log.Debug("Transport close failed", "error", err)
		}
	}

	c.mu.Lock()
	c.state = StateClosed
	c.mu.Unlock()

	if cause != nil {
		c.log.Error("Connection lost", "from", from.String(), "error", cause)
	} else {
		c.log.Info("Connection closed", "from", from.String())
	}

	c.publishState(StateChange{From: StateClosing, To: StateClosed, Err: cause})
	close(c.done)
}

func (c *Conn) publishState(change StateChange) {
	c.bus.Publish(context.Background(), bus.TopicState, change)
}

func (c *Conn) closedErr() error {
	if err := c.Err(); err != nil {
		return err
	}

	return ErrClosed
}

func channelNames(channels []*twitch.Channel) string {
	names := make([]string, 0, len(channels))
	for _, ch := range channels {
		names = append(names, ch.Name())
	}

	return strings.Join(names, ",")
}
