package room

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

var ErrUnknownRoom = errors.New("unknown room")
var ErrNoRooms = errors.New("no rooms configured")
var ErrDuplicateRoom = errors.New("duplicate room")

type ID string

// State is the authoritative clock of one room. It is only mutated by the
// timer engine.
type State struct {
	TimeLeft   time.Duration
	Running    bool
	LastUpdate time.Time // when TimeLeft was last accurate
}

// Registry owns the fixed set of rooms. It does no locking; callers
// serialize access.
type Registry struct {
	ids    []ID
	states map[ID]*State
}

func New(ids []ID, initial time.Duration, now time.Time) (*Registry, error) {
	if len(ids) == 0 {
		return nil, ErrNoRooms
	}

	r := &Registry{
		ids:    make([]ID, 0, len(ids)),
		states: make(map[ID]*State, len(ids)),
	}
	for _, id := range ids {
		if _, ok := r.states[id]; ok {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateRoom, id)
		}
		r.ids = append(r.ids, id)
		r.states[id] = &State{TimeLeft: initial, LastUpdate: now}
	}
	return r, nil
}

func (r *Registry) Get(id ID) (*State, error) {
	s, ok := r.states[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRoom, id)
	}
	return s, nil
}

func (r *Registry) Has(id ID) bool {
	_, ok := r.states[id]
	return ok
}

// IDs returns the room ids in configured order.
func (r *Registry) IDs() []ID { return slices.Clone(r.ids) }

func (r *Registry) Len() int { return len(r.ids) }
