// Package audio implements the session's debounced commit buffer: a byte
// counter and a single rearmable timer that fires a commit once the client
// stops sending frames for a fixed window.
package audio

import "time"

// Timer is the minimal rearm/cancel surface the buffer needs from a timer.
// Abstracted so tests can drive the buffer without sleeping in wall-clock
// time, and to keep exactly one timer path from leaking a stale goroutine.
type Timer interface {
	Stop() bool
	Reset(d time.Duration) bool
}

// Clock creates Timers. The production Clock wraps time.AfterFunc; tests
// substitute a fake that fires on command.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

// RealClock is the production Clock, backed by time.AfterFunc.
var RealClock Clock = realClock{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return &realTimer{t: time.AfterFunc(d, f)}
}

type realTimer struct{ t *time.Timer }

func (r *realTimer) Stop() bool                      { return r.t.Stop() }
func (r *realTimer) Reset(d time.Duration) bool       { return r.t.Reset(d) }

// Config bounds the buffer's behavior.
type Config struct {
	// Debounce is the window of inactivity that triggers a commit. Fixed
	// per session, configured in [150ms, 500ms].
	Debounce time.Duration
	// MinCommitBytes is the minimum buffered byte count a debounce fire
	// must see before it actually commits; below it, the timer is merely
	// extended so upstream never rejects a too-small buffer.
	MinCommitBytes int
}

// Buffer tracks bytes appended since the last commit and the single timer
// that debounces the eventual commit. At most one timer is ever armed per
// Buffer.
type Buffer struct {
	cfg   Config
	clock Clock
	onFire func(committedBytes int)

	mu      chanMutex
	bytes   int
	timer   Timer
	stopped bool
}

// chanMutex is a 1-buffered channel used as a mutex. Its zero value is a nil
// channel and is not usable; New fills it in via newMutex.
type chanMutex chan struct{}

func newMutex() chanMutex {
	m := make(chanMutex, 1)
	m <- struct{}{}
	return m
}

func (m chanMutex) Lock()   { <-m }
func (m chanMutex) Unlock() { m <- struct{}{} }

// New creates a Buffer. onFire is invoked (from whatever goroutine the
// Clock's Timer fires on) when the debounce window elapses with at least
// MinCommitBytes buffered; it receives the byte count being committed and
// is expected to enqueue a commit+response.create pair upstream without
// blocking the timer goroutine.
func New(clock Clock, cfg Config, onFire func(committedBytes int)) *Buffer {
	return &Buffer{
		cfg:    cfg,
		clock:  clock,
		onFire: onFire,
		mu:     newMutex(),
	}
}

// Append records n bytes appended and (re)arms the debounce timer. Call this
// once per binary frame, after the frame has already been forwarded
// upstream as input_audio_buffer.append — Append only tracks the commit
// trigger, it does not itself send anything.
func (b *Buffer) Append(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.stopped {
		return
	}

	b.bytes += n
	b.arm()
}

// arm must be called with mu held.
func (b *Buffer) arm() {
	if b.timer == nil {
		b.timer = b.clock.AfterFunc(b.cfg.Debounce, b.fire)
		return
	}
	b.timer.Reset(b.cfg.Debounce)
}

// fire runs when the debounce window elapses with no intervening Append.
func (b *Buffer) fire() {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return
	}

	if b.bytes < b.cfg.MinCommitBytes {
		// Too little buffered to commit yet; extend the window instead of
		// firing a too-small commit upstream.
		b.arm()
		b.mu.Unlock()
		return
	}

	committed := b.bytes
	b.bytes = 0
	b.mu.Unlock()

	b.onFire(committed)
}

// Cancel stops the timer without committing and zeroes the counter, for use
// on CloseStream, socket close, or a transition into Closing — the pending
// audio must be dropped, not committed. The buffer is inert afterward;
// further Append calls are no-ops.
func (b *Buffer) Cancel() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.stopped = true
	if b.timer != nil {
		b.timer.Stop()
	}
	b.bytes = 0
}

// BufferedBytes reports the current byte count, for tests and diagnostics.
func (b *Buffer) BufferedBytes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bytes
}
