package editor

import (
	"context"
	"io"
	"log"
	"sync"
	"time"

	"github.com/lexcodex/godiagram/dispatch"
	"github.com/lexcodex/godiagram/filter"
	"github.com/lexcodex/godiagram/layout"
	"github.com/lexcodex/godiagram/session"
	"github.com/lexcodex/godiagram/structure"
)

// Channel is the part of session.Channel the editor drives.
type Channel interface {
	dispatch.Sender
	Events() <-chan session.Event
	Open(ctx context.Context) error
	Close() error
	State() session.State
}

// Options configures an Editor.
type Options struct {
	Logger           *log.Logger
	TransitionWindow time.Duration
	// MaxNotices bounds the notification backlog.
	MaxNotices int
}

// Editor composes the store, dispatcher, viewport, geometry registry and
// filter behind one lock, so inbound messages, user input and timer expiry
// are applied one at a time.
type Editor struct {
	mu sync.Mutex

	store      *structure.Store
	dispatcher *dispatch.Dispatcher
	viewport   *layout.Viewport
	registry   *layout.Registry
	index      filter.Index
	channel    Channel
	logger     *log.Logger

	minimap    bool
	selection  Selection
	expanded   map[string]bool
	notices    []Notice
	maxNotices int
}

// New wires an editor around ch.
func New(ch Channel, opts Options) *Editor {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if opts.MaxNotices <= 0 {
		opts.MaxNotices = 20
	}
	store := structure.NewStore(logger)
	e := &Editor{
		store:      store,
		dispatcher: dispatch.New(store, ch, logger),
		viewport:   layout.NewViewport(opts.TransitionWindow),
		registry:   layout.NewRegistry(),
		channel:    ch,
		logger:     logger,
		expanded:   make(map[string]bool),
		maxNotices: opts.MaxNotices,
	}
	e.viewport.Observe(store.Model())
	return e
}

// Update tells the presentation layer what an operation changed. When
// Transition is set the caller arms a timer for TransitionWindow and passes
// Generation to Expire.
type Update struct {
	Changed    bool
	Transition bool
	Generation uint64
	Notice     *Notice
}

// Open connects the channel.
func (e *Editor) Open(ctx context.Context) error {
	if err := e.channel.Open(ctx); err != nil {
		e.mu.Lock()
		e.notify(NoticeError, "connect: "+err.Error())
		e.mu.Unlock()
		return err
	}
	return nil
}

// Close disconnects the channel.
func (e *Editor) Close() error { return e.channel.Close() }

// Events exposes the channel's inbound events.
func (e *Editor) Events() <-chan session.Event { return e.channel.Events() }

// Registry is where renderers publish node geometry.
func (e *Editor) Registry() *layout.Registry { return e.registry }

// TransitionWindow is how long a transition lasts.
func (e *Editor) TransitionWindow() time.Duration { return e.viewport.Window() }

// Model returns the current model.
func (e *Editor) Model() *structure.Model { return e.store.Model() }

// HandleEvent applies one inbound event.
func (e *Editor) HandleEvent(ev session.Event) Update {
	e.mu.Lock()
	defer e.mu.Unlock()
	var up Update
	switch ev := ev.(type) {
	case session.SnapshotEvent:
		if err := e.dispatcher.Reconcile(ev.Snapshot.Transformation()); err != nil {
			up.Notice = e.notify(NoticeError, "snapshot rejected: "+err.Error())
		}
		e.registry.Prune(e.store.Model())
	case session.ClearEvent:
		e.dispatcher.Reset()
		e.registry.Reset()
		e.selection = Selection{}
	case session.PeerErrorEvent:
		up.Notice = e.notify(NoticeError, ev.Err.Message)
	case session.ProtocolErrorEvent:
		e.logger.Printf("editor: ignoring message: %v", ev.Err)
	case session.ClosedEvent:
		if ev.Err != nil {
			up.Notice = e.notify(NoticeError, "connection lost: "+ev.Err.Error())
		} else {
			up.Notice = e.notify(NoticeInfo, "connection closed")
		}
		up.Changed = true
	}
	return e.observe(up)
}

// Run applies inbound events until ctx is done, reporting each update to fn.
// Presentation layers with their own loop read Events directly instead.
func (e *Editor) Run(ctx context.Context, fn func(Update)) error {
	events := e.channel.Events()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-events:
			up := e.HandleEvent(ev)
			if up.Transition {
				gen := up.Generation
				time.AfterFunc(e.viewport.Window(), func() { e.Expire(gen) })
			}
			if fn != nil {
				fn(up)
			}
		}
	}
}

// Live applies a keystroke-level text edit locally.
func (e *Editor) Live(intent structure.EditIntent) (Update, error) {
	return e.edit(func() error { return e.dispatcher.Live(intent) })
}

// Commit applies and sends the final value of a text edit.
func (e *Editor) Commit(intent structure.EditIntent) (Update, error) {
	return e.edit(func() error { return e.dispatcher.Commit(intent) })
}

// Abandon reverts a live text edit.
func (e *Editor) Abandon(intent structure.EditIntent) (Update, error) {
	return e.edit(func() error { return e.dispatcher.Abandon(intent) })
}

// Dispatch applies and sends any intent; text intents are committed.
// A deleted struct's geometry is forgotten even when the send fails, since
// the local deletion stands.
func (e *Editor) Dispatch(intent structure.EditIntent) (Update, error) {
	return e.edit(func() error {
		err := e.dispatcher.Dispatch(intent)
		if intent.Kind == structure.IntentDeleteStruct {
			if _, ok := e.store.Model().Lookup(intent.Ref); !ok {
				e.registry.Forget(intent.Ref)
			}
		}
		return err
	})
}

func (e *Editor) edit(fn func() error) (Update, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	var up Update
	err := fn()
	if err != nil {
		up.Notice = e.notify(NoticeWarn, err.Error())
	}
	return e.observe(up), err
}

// Clear drops the model and every pending edit, as a clearLayout message
// would.
func (e *Editor) Clear() Update {
	return e.HandleEvent(session.ClearEvent{})
}

// Expire ends the transition started at gen.
func (e *Editor) Expire(gen uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.viewport.Expire(gen)
}

func (e *Editor) PointerDown(p layout.Point) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.viewport.PointerDown(p)
}

func (e *Editor) PointerMove(p layout.Point) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.viewport.PointerMove(p)
}

func (e *Editor) PointerUp() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.viewport.PointerUp()
}

func (e *Editor) PointerLeave() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.viewport.PointerLeave()
}

// PanBy moves the view without a drag gesture.
func (e *Editor) PanBy(d layout.Point) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.viewport.PanBy(d)
}

func (e *Editor) ResetPan() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.viewport.ResetPan()
}

// SetQuery updates the highlight query.
func (e *Editor) SetQuery(q string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.index.SetQuery(q)
}

// IsHighlighted evaluates the current query against text.
func (e *Editor) IsHighlighted(text string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.index.IsHighlighted(text)
}

// ToggleMinimap switches between the full and the overview scale.
func (e *Editor) ToggleMinimap() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.minimap = !e.minimap
	return e.minimap
}

// Select marks a package, file or struct as selected.
func (e *Editor) Select(sel Selection) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.selection = sel.normalize()
}

// ToggleFunctions expands or collapses a package's global function group.
func (e *Editor) ToggleFunctions(pkg string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.expanded[pkg] = !e.expanded[pkg]
	return e.expanded[pkg]
}

// DismissNotices clears the notification backlog.
func (e *Editor) DismissNotices() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.notices = nil
}

func (e *Editor) observe(up Update) Update {
	gen, changed := e.viewport.Observe(e.store.Model())
	if changed {
		up.Changed = true
		up.Transition = true
		up.Generation = gen
	}
	if up.Notice != nil {
		up.Changed = true
	}
	return up
}

func (e *Editor) notify(level NoticeLevel, msg string) *Notice {
	n := Notice{Time: time.Now(), Level: level, Message: msg}
	e.notices = append(e.notices, n)
	if len(e.notices) > e.maxNotices {
		e.notices = e.notices[len(e.notices)-e.maxNotices:]
	}
	if level == NoticeError {
		e.logger.Printf("editor: %s", msg)
	}
	return &n
}
