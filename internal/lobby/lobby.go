package lobby

import (
	"context"
	"errors"
	"time"

	"github.com/clementchew02/Timer/internal/engine"
	"github.com/clementchew02/Timer/internal/room"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

var ErrClosed = errors.New("lobby closed")

type Msg interface{ isLobbyMsg() }

// FromClient carries a raw command; parsing happens on the lobby goroutine.
type FromClient struct {
	Room    room.ID
	Command string
}

func (FromClient) isLobbyMsg() {}

type Join struct {
	ClientID string
	Outbox   chan engine.Event // where this client wants to receive events
}

func (Join) isLobbyMsg() {}

type Leave struct{ ClientID string }

func (Leave) isLobbyMsg() {}

type Shutdown struct{}

func (Shutdown) isLobbyMsg() {}

// GetRooms replies with every room reconciled to now.
type GetRooms struct {
	Reply chan []engine.Snapshot
}

func (GetRooms) isLobbyMsg() {}

// GetState reflects internal state without recomputing.
type GetState struct {
	Reply chan View
}

func (GetState) isLobbyMsg() {}

// run executes a scheduler callback on the lobby goroutine.
type run struct{ fn func() }

func (run) isLobbyMsg() {}

type View struct {
	NumClients int
	Rooms      []engine.Snapshot
	Tasks      map[room.ID]bool
}

type Lobby struct {
	inbox   chan Msg
	engine  *engine.Engine
	rooms   *room.Registry
	clients map[string]chan engine.Event
	sinks   []engine.Sink
	log     *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

type options struct {
	clock    clockwork.Clock
	sched    engine.Scheduler
	interval time.Duration
	duration time.Duration
	sinks    []engine.Sink
	log      *zap.Logger
}

type Option func(*options)

func WithClock(c clockwork.Clock) Option { return func(o *options) { o.clock = c } }

// WithScheduler replaces the ticker scheduler. Callbacks are still run on
// the lobby goroutine.
func WithScheduler(s engine.Scheduler) Option { return func(o *options) { o.sched = s } }

func WithTickInterval(d time.Duration) Option { return func(o *options) { o.interval = d } }

func WithDefaultDuration(d time.Duration) Option { return func(o *options) { o.duration = d } }

// WithSink adds a sink that receives every event alongside the observers.
func WithSink(s engine.Sink) Option { return func(o *options) { o.sinks = append(o.sinks, s) } }

func WithLogger(l *zap.Logger) Option { return func(o *options) { o.log = l } }

func New(parent context.Context, rooms *room.Registry, opts ...Option) *Lobby {
	o := options{
		clock:    clockwork.NewRealClock(),
		interval: engine.DefaultTickInterval,
		duration: engine.DefaultDuration,
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.sched == nil {
		o.sched = engine.NewTickerScheduler(o.clock)
	}

	ctx, cancel := context.WithCancel(parent)
	l := &Lobby{
		inbox:   make(chan Msg, 64), // Small buffer
		rooms:   rooms,
		clients: make(map[string]chan engine.Event),
		sinks:   o.sinks,
		log:     o.log,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	l.engine = engine.New(rooms, postingScheduler{inner: o.sched, post: l.post}, engine.SinkFunc(l.broadcast),
		engine.WithClock(o.clock),
		engine.WithTickInterval(o.interval),
		engine.WithDefaultDuration(o.duration),
		engine.WithLogger(o.log),
	)

	go l.loop()
	return l
}

func (l *Lobby) loop() {
	defer close(l.done)
	for {
		select {
		case <-l.ctx.Done():
			l.shutdown()
			return

		case m := <-l.inbox:
			switch msg := m.(type) {
			case Join:
				l.join(msg)

			case Leave:
				if ch, ok := l.clients[msg.ClientID]; ok {
					close(ch)
					delete(l.clients, msg.ClientID)
					l.log.Debug("client left", zap.String("client_id", msg.ClientID))
				}

			case FromClient:
				l.handleCommand(msg)

			case GetRooms:
				msg.Reply <- l.engine.ReconcileAll()

			case GetState:
				// test-only: reflect internal state without data races
				view := View{
					NumClients: len(l.clients),
					Rooms:      l.engine.Snapshots(),
					Tasks:      make(map[room.ID]bool),
				}
				for _, id := range l.rooms.IDs() {
					view.Tasks[id] = l.engine.HasTask(id)
				}
				msg.Reply <- view

			case run:
				msg.fn()

			case Shutdown:
				l.shutdown()
				return
			}
		}
	}
}

// join reconciles every room before registering the client, so the
// joiner gets exactly one update per room and running rooms are
// rebroadcast to everyone already here.
func (l *Lobby) join(msg Join) {
	for _, snap := range l.engine.ReconcileAll() {
		select {
		case msg.Outbox <- snap.Event():
		default:
			l.log.Warn("join outbox full, dropping client", zap.String("client_id", msg.ClientID))
			close(msg.Outbox)
			return
		}
	}
	l.clients[msg.ClientID] = msg.Outbox
	l.log.Debug("client joined", zap.String("client_id", msg.ClientID), zap.Int("clients", len(l.clients)))
}

func (l *Lobby) handleCommand(msg FromClient) {
	cmd, err := engine.ParseCommand(msg.Command)
	if err == nil {
		err = l.engine.Apply(msg.Room, cmd)
	}
	if err != nil {
		// v1: the sender never hears about rejected commands
		l.log.Debug("command ignored",
			zap.String("room", string(msg.Room)),
			zap.String("command", msg.Command),
			zap.Error(err))
	}
}

func (l *Lobby) shutdown() {
	l.engine.Shutdown()
	for id, ch := range l.clients {
		close(ch) // Tell client no more events
		delete(l.clients, id)
	}
	l.cancel()
}

func (l *Lobby) broadcast(evt engine.Event) {
	for id, ch := range l.clients {
		select {
		case ch <- evt:
			//ok
		default:
			// Client is slow/full - drop them.
			l.log.Warn("client outbox full, dropping client", zap.String("client_id", id))
			close(ch)
			delete(l.clients, id)
		}
	}
	for _, s := range l.sinks {
		s.Publish(evt)
	}
}

func (l *Lobby) post(fn func()) {
	select {
	case l.inbox <- run{fn: fn}:
	case <-l.ctx.Done():
	}
}

// Expose the inbox so tests or transports can send messages.
func (l *Lobby) Inbox() chan<- Msg { return l.inbox }

// Send enqueues m unless the lobby has stopped.
func (l *Lobby) Send(ctx context.Context, m Msg) error {
	select {
	case <-l.ctx.Done():
		return ErrClosed
	default:
	}
	select {
	case l.inbox <- m:
		return nil
	case <-l.ctx.Done():
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Lobby) Rooms(ctx context.Context) ([]engine.Snapshot, error) {
	reply := make(chan []engine.Snapshot, 1)
	if err := l.Send(ctx, GetRooms{Reply: reply}); err != nil {
		return nil, err
	}
	select {
	case snaps := <-reply:
		return snaps, nil
	case <-l.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *Lobby) State(ctx context.Context) (View, error) {
	reply := make(chan View, 1)
	if err := l.Send(ctx, GetState{Reply: reply}); err != nil {
		return View{}, err
	}
	select {
	case v := <-reply:
		return v, nil
	case <-l.done:
		return View{}, ErrClosed
	case <-ctx.Done():
		return View{}, ctx.Err()
	}
}

// NumRooms is fixed at construction and safe to call from any goroutine.
func (l *Lobby) NumRooms() int { return l.rooms.Len() }

// Done is closed once the lobby goroutine has exited.
func (l *Lobby) Done() <-chan struct{} { return l.done }

// postingScheduler hands every fire to the lobby goroutine.
type postingScheduler struct {
	inner engine.Scheduler
	post  func(func())
}

func (s postingScheduler) Every(d time.Duration, fn func()) engine.Task {
	return s.inner.Every(d, func() { s.post(fn) })
}
