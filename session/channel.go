package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sourcegraph/jsonrpc2"

	"github.com/lexcodex/godiagram/persistence"
	"github.com/lexcodex/godiagram/structure"
)

// Channel owns the connection to the watcher. Inbound messages are decoded
// and delivered on Events in arrival order; outbound commands go through Send.
type Channel struct {
	endpoint Endpoint
	dialer   Dialer
	logger   *log.Logger
	journal  persistence.Journal
	session  string

	mu      sync.Mutex
	state   State
	stream  jsonrpc2.ObjectStream
	closing bool
	lastErr error

	writeMu sync.Mutex
	events  chan Event
}

// Option customises a Channel.
type Option func(*Channel)

// WithLogger routes channel logs to logger.
func WithLogger(logger *log.Logger) Option {
	return func(c *Channel) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithJournal records every inbound and outbound message.
func WithJournal(journal persistence.Journal, session string) Option {
	return func(c *Channel) {
		if journal != nil {
			c.journal = journal
		}
		c.session = session
	}
}

// WithDialer overrides the transport chosen from the endpoint.
func WithDialer(d Dialer) Option {
	return func(c *Channel) {
		if d != nil {
			c.dialer = d
		}
	}
}

// NewChannel builds a disconnected channel for the endpoint.
func NewChannel(endpoint Endpoint, opts ...Option) *Channel {
	c := &Channel{
		endpoint: endpoint,
		logger:   log.New(io.Discard, "", 0),
		journal:  persistence.Discard{},
		state:    StateDisconnected,
		events:   make(chan Event, 64),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.dialer == nil {
		c.dialer = DialerFor(endpoint, c.logger.Writer())
	}
	return c
}

// Events delivers decoded inbound messages. It is never closed; a ClosedEvent
// marks the end of each connection.
func (c *Channel) Events() <-chan Event {
	return c.events
}

// State reports the current lifecycle state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err returns the error that moved the channel to StateErrored, if any.
func (c *Channel) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Endpoint returns the endpoint the channel dials.
func (c *Channel) Endpoint() Endpoint {
	return c.endpoint
}

// Open dials the watcher and starts the read loop. A closed or errored
// channel may be opened again.
func (c *Channel) Open(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateConnecting || c.state == StateConnected {
		c.mu.Unlock()
		return ErrAlreadyOpen
	}
	c.state = StateConnecting
	c.lastErr = nil
	c.mu.Unlock()

	dialCtx := ctx
	if c.endpoint.DialTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, c.endpoint.DialTimeout)
		defer cancel()
	}
	stream, err := c.dialer.Dial(dialCtx)
	if err != nil {
		c.mu.Lock()
		c.state = StateErrored
		c.lastErr = err
		c.mu.Unlock()
		c.logger.Printf("session: connect %s failed: %v", c.endpoint, err)
		return err
	}

	c.mu.Lock()
	c.stream = stream
	c.closing = false
	c.state = StateConnected
	c.mu.Unlock()
	c.logger.Printf("session: connected to %s", c.endpoint)
	go c.readLoop(stream)
	return nil
}

// Close shuts the connection down. The read loop reports a ClosedEvent with
// StateClosed.
func (c *Channel) Close() error {
	c.mu.Lock()
	stream := c.stream
	if stream == nil {
		if c.state != StateErrored {
			c.state = StateClosed
		}
		c.mu.Unlock()
		return nil
	}
	c.closing = true
	c.mu.Unlock()
	return stream.Close()
}

// Send writes one command. It fails with ErrNotConnected unless the channel is
// connected; nothing is queued for later.
func (c *Channel) Send(cmd Command) error {
	c.mu.Lock()
	stream := c.stream
	connected := c.state == StateConnected
	c.mu.Unlock()
	if !connected || stream == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	err := stream.WriteObject(cmd)
	c.writeMu.Unlock()

	result := "sent"
	if err != nil {
		result = err.Error()
		c.logger.Printf("session: send %s failed: %v", cmd.Action, err)
	}
	payload, _ := json.Marshal(cmd)
	c.record(persistence.Entry{
		Direction: persistence.DirectionOutbound,
		Kind:      string(cmd.Action),
		Ref:       structure.NodeRef{Package: cmd.Package, File: cmd.File, Struct: cmd.Name}.String(),
		Result:    result,
		Payload:   payload,
	})
	if err != nil {
		return fmt.Errorf("send %s: %w", cmd.Action, err)
	}
	return nil
}

// SendIntent encodes and sends an edit intent.
func (c *Channel) SendIntent(intent structure.EditIntent) error {
	cmd, err := CommandFor(intent)
	if err != nil {
		return err
	}
	return c.Send(cmd)
}

func (c *Channel) readLoop(stream jsonrpc2.ObjectStream) {
	for {
		var raw json.RawMessage
		err := stream.ReadObject(&raw)
		if err != nil {
			if isDecodeError(err) {
				perr := &ProtocolError{Reason: "malformed json", Err: err}
				c.deliver(ProtocolErrorEvent{Err: perr}, nil)
				continue
			}
			c.finish(stream, err)
			return
		}
		ev, err := Decode(raw)
		if err != nil {
			var perr *ProtocolError
			if !errors.As(err, &perr) {
				perr = &ProtocolError{Reason: "decode", Err: err, Raw: raw}
			}
			ev = ProtocolErrorEvent{Err: perr}
		}
		c.deliver(ev, raw)
	}
}

func (c *Channel) deliver(ev Event, raw json.RawMessage) {
	entry := persistence.Entry{
		Direction: persistence.DirectionInbound,
		Kind:      eventKind(ev),
		Payload:   raw,
	}
	switch ev := ev.(type) {
	case PeerErrorEvent:
		entry.Result = ev.Err.Message
		c.logger.Printf("session: %v", ev.Err)
	case ProtocolErrorEvent:
		entry.Result = ev.Err.Error()
		c.logger.Printf("session: dropped message: %v", ev.Err)
	}
	if !json.Valid(raw) {
		entry.Payload = nil
	}
	c.record(entry)
	c.events <- ev
}

func (c *Channel) finish(stream jsonrpc2.ObjectStream, err error) {
	c.mu.Lock()
	if c.stream != stream {
		c.mu.Unlock()
		return
	}
	closing := c.closing
	state := StateErrored
	var reported error
	if closing || isCleanClose(err) {
		state = StateClosed
	} else {
		reported = err
		c.lastErr = err
	}
	c.state = state
	c.stream = nil
	c.mu.Unlock()

	_ = stream.Close()
	if reported != nil {
		c.logger.Printf("session: connection lost: %v", err)
	} else {
		c.logger.Printf("session: connection closed")
	}
	ev := ClosedEvent{State: state, Err: reported}
	c.record(persistence.Entry{Direction: persistence.DirectionInbound, Kind: eventKind(ev), Result: state.String()})
	if closing {
		// Nobody may be listening after an explicit close.
		select {
		case c.events <- ev:
		default:
		}
		return
	}
	c.events <- ev
}

func (c *Channel) record(entry persistence.Entry) {
	entry.Session = c.session
	entry.Timestamp = time.Now().UTC()
	if err := c.journal.Record(context.Background(), entry); err != nil {
		c.logger.Printf("session: journal: %v", err)
	}
}

func isDecodeError(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr)
}

func isCleanClose(err error) bool {
	if errors.Is(err, io.EOF) {
		return true
	}
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
}
