package dialer

import "time"

// Scheduler abstracts one-shot timer creation so the state machines can be
// tested against a fake clock. Production code uses SystemScheduler.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) Timer
}

// Timer is a cancellable scheduled task.
type Timer interface {
	// Stop cancels the task. It reports false if the task already fired.
	Stop() bool
}

// SystemScheduler schedules on the runtime timer heap.
type SystemScheduler struct{}

func (SystemScheduler) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

// stopTimer clears a pending timer in place. Always call before scheduling a
// replacement so a stale task cannot fire against new state.
func stopTimer(t *Timer) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}
