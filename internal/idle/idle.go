// Package idle signals quiet periods in which background work can run
// without competing with the user.
package idle

import (
	"sync"
	"time"
)

// DefaultQuietPeriod is how long activity must pause before an idle
// signal fires.
const DefaultQuietPeriod = 30 * time.Second

// Source delivers idle notifications.
type Source interface {
	// Idle returns a channel that receives a value each time the quiet
	// period elapses without activity.
	Idle() <-chan struct{}

	// Touch records user activity and restarts the quiet period.
	Touch()

	// Stop shuts the source down. The idle channel stops firing.
	Stop()
}

// Timer is a timer-backed Source. Every Touch resets the countdown;
// when it expires, one idle signal is sent (non-blocking) and the
// countdown restarts, so continued quiet keeps delivering signals.
type Timer struct {
	mu      sync.Mutex
	quiet   time.Duration
	timer   *time.Timer
	ch      chan struct{}
	stopped bool
}

var _ Source = (*Timer)(nil)

// NewTimer creates a timer source. A non-positive quiet period uses the
// default.
func NewTimer(quiet time.Duration) *Timer {
	if quiet <= 0 {
		quiet = DefaultQuietPeriod
	}
	t := &Timer{
		quiet: quiet,
		ch:    make(chan struct{}, 1),
	}
	t.timer = time.AfterFunc(quiet, t.fire)
	return t
}

func (t *Timer) Idle() <-chan struct{} { return t.ch }

func (t *Timer) Touch() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	t.timer.Reset(t.quiet)
}

func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	t.stopped = true
	t.timer.Stop()
}

func (t *Timer) fire() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.timer.Reset(t.quiet)
	t.mu.Unlock()
	select {
	case t.ch <- struct{}{}:
	default:
	}
}

// Manual is a hand-driven Source for tests.
type Manual struct {
	ch chan struct{}
}

var _ Source = (*Manual)(nil)

// NewManual creates a manual source.
func NewManual() *Manual {
	return &Manual{ch: make(chan struct{}, 1)}
}

func (m *Manual) Idle() <-chan struct{} { return m.ch }
func (m *Manual) Touch()                {}
func (m *Manual) Stop()                 {}

// Fire sends one idle signal, blocking until it is received or buffered.
func (m *Manual) Fire() { m.ch <- struct{}{} }
