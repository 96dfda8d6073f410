package typing

import (
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// DefaultDebounce is how long the input must stay idle before typing_stop is emitted
const DefaultDebounce = 1500 * time.Millisecond

// State is the local typing state
type State int

const (
	StateIdle State = iota
	StateTyping
)

func (s State) String() string {
	if s == StateTyping {
		return "typing"
	}
	return "idle"
}

// Emitter receives typing_start (true) and typing_stop (false) transitions. It is called
// with the machine locked and must not call back into the machine.
type Emitter func(start bool)

// Machine debounces local input into typing_start/typing_stop transitions. Exactly one
// emission happens per Idle<->Typing edge.
type Machine struct {
	mu    sync.Mutex
	clock clockwork.Clock
	delay time.Duration
	emit  Emitter

	state State
	timer clockwork.Timer
	epoch uint64 // Invalidates callbacks of stopped timers
}

// NewMachine creates an idle machine. A nil clock uses the real clock; a non-positive delay
// uses DefaultDebounce.
func NewMachine(clock clockwork.Clock, delay time.Duration, emit Emitter) *Machine {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if delay <= 0 {
		delay = DefaultDebounce
	}
	return &Machine{
		clock: clock,
		delay: delay,
		emit:  emit,
	}
}

// State returns the current state
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// OnInput handles an edit of the chat input. Non-empty text starts typing; every edit
// restarts the debounce timer.
func (m *Machine) OnInput(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if strings.TrimSpace(text) != "" && m.state == StateIdle {
		m.state = StateTyping
		m.emitLocked(true)
	}
	m.restartTimerLocked()
}

// OnSend handles a sent message: typing stops immediately instead of waiting for the
// debounce.
func (m *Machine) OnSend() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopTimerLocked()
	m.toIdleLocked()
}

// Reset cancels any pending timer and returns to idle without emitting; used when the
// connection the transitions were meant for is gone.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopTimerLocked()
	m.state = StateIdle
}

func (m *Machine) restartTimerLocked() {
	m.stopTimerLocked()
	epoch := m.epoch
	m.timer = m.clock.AfterFunc(m.delay, func() {
		m.expire(epoch)
	})
}

func (m *Machine) stopTimerLocked() {
	m.epoch++
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func (m *Machine) expire(epoch uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if epoch != m.epoch {
		return
	}
	m.timer = nil
	m.toIdleLocked()
}

func (m *Machine) toIdleLocked() {
	if m.state != StateTyping {
		return
	}
	m.state = StateIdle
	m.emitLocked(false)
}

func (m *Machine) emitLocked(start bool) {
	log.Debug().Bool("typing", start).Msg("typing state changed")
	if m.emit != nil {
		m.emit(start)
	}
}
