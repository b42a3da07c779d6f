package engine

import (
	"errors"
	"time"

	"github.com/clementchew02/Timer/internal/room"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

var ErrInvalidCommand = errors.New("invalid command")
var ErrAlreadyRunning = errors.New("timer already running")
var ErrNotRunning = errors.New("timer not running")
var ErrExpired = errors.New("timer expired")

const (
	DefaultDuration     = 5 * time.Minute
	DefaultTickInterval = 100 * time.Millisecond
)

type Command string

const (
	CmdStart   Command = "start"
	CmdStop    Command = "stop"
	CmdRestart Command = "restart"
)

/*
	Idle    --start-->   Running
	Running --stop-->    Idle
	Running --tick, 0--> Expired   (timer-alarm, then timer-update)
	Expired --start-->   rejected (ErrExpired)
	any     --restart--> Idle(DefaultDuration)
*/

type EventType string

const (
	EvtStateUpdated EventType = "timer-update"
	EvtExpired      EventType = "timer-alarm"
)

type Event struct {
	Type       EventType
	Room       room.ID
	TimeLeftMs int64
	Running    bool
}

// Snapshot is a room's state as delivered to a single observer.
type Snapshot struct {
	Room       room.ID
	TimeLeftMs int64
	Running    bool
}

func (s Snapshot) Event() Event {
	return Event{Type: EvtStateUpdated, Room: s.Room, TimeLeftMs: s.TimeLeftMs, Running: s.Running}
}

// task is the engine's ownership token for a room's periodic recompute.
type task struct {
	gen    uint64
	handle Task
}

// Engine applies commands and ticks to the rooms of a registry. It is not
// safe for concurrent use: every method, and every callback handed to the
// Scheduler, must run on one goroutine.
type Engine struct {
	rooms    *room.Registry
	sched    Scheduler
	sink     Sink
	clock    clockwork.Clock
	interval time.Duration
	duration time.Duration
	log      *zap.Logger

	tasks map[room.ID]task
	gen   uint64
}

type Option func(*Engine)

func WithClock(c clockwork.Clock) Option { return func(e *Engine) { e.clock = c } }

func WithTickInterval(d time.Duration) Option { return func(e *Engine) { e.interval = d } }

// WithDefaultDuration sets the duration restart resets a room to.
func WithDefaultDuration(d time.Duration) Option { return func(e *Engine) { e.duration = d } }

func WithLogger(l *zap.Logger) Option { return func(e *Engine) { e.log = l } }

func New(rooms *room.Registry, sched Scheduler, sink Sink, opts ...Option) *Engine {
	e := &Engine{
		rooms:    rooms,
		sched:    sched,
		sink:     sink,
		clock:    clockwork.NewRealClock(),
		interval: DefaultTickInterval,
		duration: DefaultDuration,
		log:      zap.NewNop(),
		tasks:    make(map[room.ID]task),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func ParseCommand(s string) (Command, error) {
	switch Command(s) {
	case CmdStart, CmdStop, CmdRestart:
		return Command(s), nil
	default:
		return "", ErrInvalidCommand
	}
}

// Recompute derives the room's remaining time from the wall clock and
// publishes the result. It is the only place events are published from.
func (e *Engine) Recompute(id room.ID) error {
	s, err := e.rooms.Get(id)
	if err != nil {
		return err
	}

	expired := advance(s, e.clock.Now())
	if expired {
		e.cancelTask(id)
		e.log.Info("timer expired", zap.String("room", string(id)))
		e.sink.Publish(Event{Type: EvtExpired, Room: id})
	}

	e.sink.Publish(snapshot(id, s).Event())
	return nil
}

func (e *Engine) Apply(id room.ID, cmd Command) error {
	s, err := e.rooms.Get(id)
	if err != nil {
		return err
	}

	switch cmd {
	case CmdStart:
		if s.Running {
			return ErrAlreadyRunning
		}
		if s.TimeLeft <= 0 {
			return ErrExpired
		}
		s.LastUpdate = e.clock.Now()
		s.Running = true
		e.cancelTask(id)
		e.installTask(id)

	case CmdStop:
		if !s.Running {
			return ErrNotRunning
		}
		e.cancelTask(id)
		s.Running = false

	case CmdRestart:
		e.cancelTask(id)
		s.Running = false
		s.TimeLeft = e.duration
		s.LastUpdate = e.clock.Now()

	default:
		return ErrInvalidCommand
	}

	e.log.Debug("command applied",
		zap.String("room", string(id)),
		zap.String("command", string(cmd)),
		zap.String("remaining", FormatRemaining(s.TimeLeft.Milliseconds())))
	return e.Recompute(id)
}

// Reconcile brings a running room up to date and returns its snapshot for
// delivery to one observer.
func (e *Engine) Reconcile(id room.ID) (Snapshot, error) {
	s, err := e.rooms.Get(id)
	if err != nil {
		return Snapshot{}, err
	}
	if s.Running {
		if err := e.Recompute(id); err != nil {
			return Snapshot{}, err
		}
	}
	return snapshot(id, s), nil
}

func (e *Engine) ReconcileAll() []Snapshot {
	ids := e.rooms.IDs()
	out := make([]Snapshot, 0, len(ids))
	for _, id := range ids {
		snap, err := e.Reconcile(id)
		if err != nil {
			continue
		}
		out = append(out, snap)
	}
	return out
}

// Snapshots reports every room without recomputing.
func (e *Engine) Snapshots() []Snapshot {
	ids := e.rooms.IDs()
	out := make([]Snapshot, 0, len(ids))
	for _, id := range ids {
		s, err := e.rooms.Get(id)
		if err != nil {
			continue
		}
		out = append(out, snapshot(id, s))
	}
	return out
}

func (e *Engine) HasTask(id room.ID) bool {
	_, ok := e.tasks[id]
	return ok
}

// Shutdown cancels every periodic task. Room states are left as they are.
func (e *Engine) Shutdown() {
	for id := range e.tasks {
		e.cancelTask(id)
	}
}

func (e *Engine) installTask(id room.ID) {
	e.gen++
	gen := e.gen
	handle := e.sched.Every(e.interval, func() { e.tick(id, gen) })
	e.tasks[id] = task{gen: gen, handle: handle}
}

func (e *Engine) cancelTask(id room.ID) {
	t, ok := e.tasks[id]
	if !ok {
		return
	}
	t.handle.Cancel()
	delete(e.tasks, id)
}

// tick drops fires from a task that has since been cancelled or replaced.
func (e *Engine) tick(id room.ID, gen uint64) {
	t, ok := e.tasks[id]
	if !ok || t.gen != gen {
		return
	}
	_ = e.Recompute(id)
}
