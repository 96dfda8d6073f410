package typing

import (
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []bool
}

func (r *recorder) emit(start bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, start)
}

func (r *recorder) get() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]bool, len(r.events))
	copy(out, r.events)
	return out
}

func setupMachine(t *testing.T) (*Machine, *clockwork.FakeClock, *recorder) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	rec := &recorder{}
	return NewMachine(clock, DefaultDebounce, rec.emit), clock, rec
}

func waitForEvents(t *testing.T, rec *recorder, want []bool) {
	t.Helper()
	require.Eventually(t, func() bool {
		return assert.ObjectsAreEqual(want, rec.get())
	}, time.Second, 5*time.Millisecond, "got %v, want %v", rec.get(), want)
}

func TestMachine_BurstEmitsOneStartAndOneStop(t *testing.T) {
	m, clock, rec := setupMachine(t)

	// Keystrokes spaced closer than the debounce delay.
	for _, text := range []string{"h", "he", "hel", "hell", "hello"} {
		m.OnInput(text)
		clock.Advance(400 * time.Millisecond)
	}
	assert.Equal(t, []bool{true}, rec.get())
	assert.Equal(t, StateTyping, m.State())

	// 400ms already elapsed since the last keystroke.
	clock.Advance(DefaultDebounce - 400*time.Millisecond - time.Millisecond)
	assert.Equal(t, []bool{true}, rec.get(), "no stop before the debounce delay")

	clock.Advance(time.Millisecond)
	waitForEvents(t, rec, []bool{true, false})
	assert.Equal(t, StateIdle, m.State())
}

func TestMachine_WhitespaceDoesNotStartTyping(t *testing.T) {
	m, clock, rec := setupMachine(t)

	m.OnInput("   ")
	assert.Equal(t, StateIdle, m.State())

	clock.Advance(DefaultDebounce)
	// Give a fired callback the chance to run before asserting nothing happened.
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, rec.get())
}

func TestMachine_SendForcesStop(t *testing.T) {
	m, clock, rec := setupMachine(t)

	m.OnInput("hi")
	m.OnSend()
	assert.Equal(t, []bool{true, false}, rec.get())
	assert.Equal(t, StateIdle, m.State())

	// The cancelled debounce timer must not emit a second stop.
	clock.Advance(2 * DefaultDebounce)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, []bool{true, false}, rec.get())
}

func TestMachine_SendWhileIdleEmitsNothing(t *testing.T) {
	m, _, rec := setupMachine(t)
	m.OnSend()
	assert.Empty(t, rec.get())
}

func TestMachine_TypingAgainAfterStop(t *testing.T) {
	m, clock, rec := setupMachine(t)

	m.OnInput("a")
	clock.Advance(DefaultDebounce)
	waitForEvents(t, rec, []bool{true, false})

	m.OnInput("ab")
	assert.Equal(t, []bool{true, false, true}, rec.get())
	m.OnSend()
	assert.Equal(t, []bool{true, false, true, false}, rec.get())
}

func TestMachine_ClearingInputStillDebounces(t *testing.T) {
	m, clock, rec := setupMachine(t)

	m.OnInput("a")
	clock.Advance(time.Second)
	m.OnInput("") // user deleted the text; stays typing until idle
	assert.Equal(t, StateTyping, m.State())

	clock.Advance(time.Second)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, []bool{true}, rec.get())

	clock.Advance(DefaultDebounce - time.Second)
	waitForEvents(t, rec, []bool{true, false})
}

func TestMachine_ResetIsSilent(t *testing.T) {
	m, clock, rec := setupMachine(t)

	m.OnInput("a")
	m.Reset()
	clock.Advance(2 * DefaultDebounce)
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, []bool{true}, rec.get())
	assert.Equal(t, StateIdle, m.State())
}

func TestNewMachine_Defaults(t *testing.T) {
	m := NewMachine(nil, 0, nil)
	assert.Equal(t, DefaultDebounce, m.delay)
	assert.NotNil(t, m.clock)

	m.OnInput("x")
	m.OnSend()
	assert.Equal(t, StateIdle, m.State())
}
