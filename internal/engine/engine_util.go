package engine

import (
	"fmt"
	"time"

	"github.com/clementchew02/Timer/internal/room"
)

// advance moves a running state forward to now. It reports whether the
// timer reached zero, in which case the state is clamped and stopped.
func advance(s *room.State, now time.Time) bool {
	if !s.Running {
		return false
	}

	s.TimeLeft -= now.Sub(s.LastUpdate)
	s.LastUpdate = now

	if s.TimeLeft <= 0 {
		s.TimeLeft = 0
		s.Running = false
		return true
	}
	return false
}

func snapshot(id room.ID, s *room.State) Snapshot {
	return Snapshot{Room: id, TimeLeftMs: s.TimeLeft.Milliseconds(), Running: s.Running}
}

// FormatRemaining renders milliseconds as MM:SS, rounding down.
func FormatRemaining(ms int64) string {
	total := max(0, ms/1000)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}
