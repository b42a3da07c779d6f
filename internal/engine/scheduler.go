package engine

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Scheduler runs fn every d until the returned Task is cancelled.
type Scheduler interface {
	Every(d time.Duration, fn func()) Task
}

type Task interface {
	// Cancel stops future fires. It does not wait for a fire in progress.
	Cancel()
}

type TickerScheduler struct {
	clock clockwork.Clock
}

func NewTickerScheduler(clock clockwork.Clock) *TickerScheduler {
	return &TickerScheduler{clock: clock}
}

func (s *TickerScheduler) Every(d time.Duration, fn func()) Task {
	t := &tickerTask{
		ticker: s.clock.NewTicker(d),
		done:   make(chan struct{}),
	}
	go t.run(fn)
	return t
}

type tickerTask struct {
	ticker clockwork.Ticker
	done   chan struct{}
	once   sync.Once
}

func (t *tickerTask) run(fn func()) {
	for {
		select {
		case <-t.done:
			return
		case <-t.ticker.Chan():
			select {
			case <-t.done:
				return
			default:
			}
			fn()
		}
	}
}

func (t *tickerTask) Cancel() {
	t.once.Do(func() {
		t.ticker.Stop()
		close(t.done)
	})
}
