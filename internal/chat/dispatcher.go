package chat

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	msgEmptyName      = "username must not be empty"
	msgNameTooLong    = "username too long (max 20 characters)"
	msgNameTaken      = "name '%s' is already taken"
	msgAlreadyJoined  = "already joined as %s"
	msgJoinFirst      = "set your username first"
	msgMessageTooLong = "message too long (max 500 characters)"
	msgInvalidFormat  = "invalid message format"
	msgServerError    = "server error"
)

// Options tunes the edge-case behavior of a Dispatcher.
type Options struct {
	// ReportDecodeErrors replies with an error notice when a frame is not a
	// JSON object. When false such frames are only logged.
	ReportDecodeErrors bool
	// RollbackFailedJoin releases a freshly claimed name when the welcome
	// notice cannot be delivered, so no user_left is announced for it.
	RollbackFailedJoin bool
	// TypingTTL is how long a typing marker stays set. Zero disables tracking.
	TypingTTL time.Duration
	// Clock stamps outbound notices. Defaults to time.Now.
	Clock func() time.Time
}

// DefaultOptions returns the options used by the server unless configured otherwise.
func DefaultOptions() Options {
	return Options{
		ReportDecodeErrors: true,
		RollbackFailedJoin: true,
		TypingTTL:          3 * time.Second,
	}
}

// Dispatcher interprets inbound frames, updates the registry and fans out
// notices. Frames for a single connection must be handed over sequentially;
// different connections may be served concurrently.
type Dispatcher struct {
	registry *Registry
	opts     Options
	typing   *typingTracker
	logger   *slog.Logger
}

// NewDispatcher builds a Dispatcher on top of registry.
func NewDispatcher(registry *Registry, opts Options, logger *slog.Logger) *Dispatcher {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		registry: registry,
		opts:     opts,
		typing:   newTypingTracker(opts.TypingTTL),
		logger:   logger.With(slog.String("component", "dispatcher")),
	}
}

// Registry exposes the registry backing the dispatcher.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// Typing returns the names marked as typing within the last TypingTTL.
func (d *Dispatcher) Typing() []string {
	return d.typing.names()
}

// Connect registers a freshly accepted connection as anonymous.
func (d *Dispatcher) Connect(c Conn) {
	d.registry.Add(c)
	d.logger.Info("client connected", slog.String("conn", c.ID()), slog.Int("clients", d.registry.Len()))
}

// Disconnect removes c and, if it had joined, tells everyone else it left.
// It is idempotent: only the call that actually frees the name broadcasts.
func (d *Dispatcher) Disconnect(c Conn) {
	name, named := d.registry.Remove(c)
	attrs := []any{slog.String("conn", c.ID()), slog.Int("clients", d.registry.Len())}
	if named {
		attrs = append(attrs, slog.String("username", name))
	}
	d.logger.Info("client disconnected", attrs...)
	if !named {
		return
	}
	d.typing.clear(name)
	d.broadcast(UserLeftNotice(name, d.opts.Clock()), nil)
}

// HandleFrame processes one inbound frame from c. It never returns an error:
// validation problems go back to the sender as error notices, everything
// else is logged. A panic is recovered and answered with a server error
// notice; if that cannot be delivered either, the connection is dropped.
func (d *Dispatcher) HandleFrame(c Conn, raw []byte) {
	log := d.logger.With(slog.String("conn", c.ID()))
	defer func() {
		if r := recover(); r != nil {
			log.Error("recovered from panic while handling frame", slog.Any("panic", r))
			d.replyServerError(c, log)
		}
	}()

	if !d.registry.Contains(c) {
		log.Debug("dropping frame from closed connection")
		return
	}
	log.Debug("frame received", slog.String("raw", string(raw)))

	ev, err := DecodeEvent(raw)
	switch {
	case errors.Is(err, ErrMalformedFrame):
		log.Warn("undecodable frame", slog.Any("error", err))
		if d.opts.ReportDecodeErrors {
			d.reply(c, ErrorNotice(msgInvalidFormat))
		}
		return
	case err != nil:
		log.Warn("malformed payload", slog.String("type", ev.Type), slog.Any("error", err))
		return
	}

	switch ev.Type {
	case TypeJoin:
		d.handleJoin(c, ev, log)
	case TypeMessage:
		d.handleMessage(c, ev)
	case TypeTyping:
		d.handleTyping(c)
	default:
		log.Warn("unknown message type", slog.String("type", ev.Type))
	}
}

func (d *Dispatcher) handleJoin(c Conn, ev Event, log *slog.Logger) {
	name, err := d.registry.ClaimName(c, ev.Username)
	if err != nil {
		if errors.Is(err, ErrUnknownConn) {
			return
		}
		log.Info("join rejected", slog.String("username", name), slog.Any("error", err))
		d.reply(c, ErrorNotice(d.joinErrorText(c, name, err)))
		return
	}

	// a claim that never reached the joiner must not keep the name reserved
	welcomed := false
	defer func() {
		if !welcomed {
			d.registry.Release(c)
		}
	}()

	now := d.opts.Clock()
	if err := d.send(c, WelcomeNotice(name, now)); err != nil {
		log.Warn("welcome delivery failed", slog.String("username", name), slog.Any("error", err))
		if d.opts.RollbackFailedJoin {
			d.registry.Release(c)
		}
		d.drop(c)
		return
	}
	welcomed = true
	log.Info("user joined", slog.String("username", name))
	d.broadcast(UserJoinedNotice(name, now), c)
}

func (d *Dispatcher) joinErrorText(c Conn, name string, err error) string {
	switch {
	case errors.Is(err, ErrEmptyName):
		return msgEmptyName
	case errors.Is(err, ErrNameTooLong):
		return msgNameTooLong
	case errors.Is(err, ErrAlreadyJoined):
		current, _ := d.registry.NameOf(c)
		return fmt.Sprintf(msgAlreadyJoined, current)
	case errors.Is(err, ErrNameTaken):
		return fmt.Sprintf(msgNameTaken, name)
	}
	return err.Error()
}

func (d *Dispatcher) handleMessage(c Conn, ev Event) {
	name, ok := d.registry.NameOf(c)
	if !ok {
		d.reply(c, ErrorNotice(msgJoinFirst))
		return
	}

	text := strings.TrimSpace(ev.Message)
	if text == "" {
		return
	}
	if utf8.RuneCountInString(text) > MaxMessageLength {
		d.reply(c, ErrorNotice(msgMessageTooLong))
		return
	}
	d.broadcast(MessageNotice(name, text, d.opts.Clock()), nil)
}

func (d *Dispatcher) handleTyping(c Conn) {
	name, ok := d.registry.NameOf(c)
	if !ok {
		return
	}
	d.typing.mark(name)
	d.broadcast(TypingNotice(name), c)
}

func (d *Dispatcher) send(c Conn, n Notice) error {
	frame, err := n.Encode()
	if err != nil {
		return err
	}
	return c.Send(frame)
}

// reply unicasts n to c, treating a failed send as a disconnect.
func (d *Dispatcher) reply(c Conn, n Notice) {
	if err := d.send(c, n); err != nil {
		d.logger.Debug("unicast failed", slog.String("conn", c.ID()), slog.String("type", n.Type), slog.Any("error", err))
		d.drop(c)
	}
}

func (d *Dispatcher) replyServerError(c Conn, log *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("connection unusable after panic, dropping", slog.Any("panic", r))
			d.drop(c)
		}
	}()
	d.reply(c, ErrorNotice(msgServerError))
}

// broadcast delivers n to every live connection except exclude. Targets
// whose send fails are dropped after the fan-out completes; their own
// departure notices cascade from there.
func (d *Dispatcher) broadcast(n Notice, exclude Conn) {
	frame, err := n.Encode()
	if err != nil {
		d.logger.Error("cannot encode notice", slog.Any("error", err))
		return
	}

	targets := d.registry.Snapshot(exclude)
	var failed []Conn
	for _, t := range targets {
		if err := t.Send(frame); err != nil {
			d.logger.Debug("broadcast send failed", slog.String("conn", t.ID()), slog.String("type", n.Type), slog.Any("error", err))
			failed = append(failed, t)
		}
	}
	d.logger.Debug("broadcast", slog.String("type", n.Type), slog.Int("targets", len(targets)), slog.Int("failed", len(failed)))

	for _, t := range failed {
		d.drop(t)
	}
}

func (d *Dispatcher) drop(c Conn) {
	c.Close()
	d.Disconnect(c)
}
