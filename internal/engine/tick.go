// Package engine provides the hex city simulation: the world context, the
// building lifecycle, build-mode operations, and the tick loop that drives them.
package engine

import (
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// Engine drives the simulation forward on a wall-clock schedule.
type Engine struct {
	Interval time.Duration // Base tick interval at speed 1

	tick    atomic.Uint64
	running atomic.Bool
	mu      sync.Mutex
	speed   float64 // 1.0 = real-time, 0 = paused

	// Callbacks, populated during setup.
	OnTick     func(tick uint64) // Every tick
	OnReport   func(tick uint64) // Every ReportEvery ticks
	OnAutosave func(tick uint64) // Every AutosaveEvery ticks

	ReportEvery   uint64
	AutosaveEvery uint64
}

// NewEngine creates a simulation engine with default settings.
func NewEngine() *Engine {
	return &Engine{
		Interval: 100 * time.Millisecond,
		speed:    1.0,
	}
}

// Tick returns the last tick run.
func (e *Engine) Tick() uint64 {
	return e.tick.Load()
}

// SetTick moves the counter, e.g. after loading a save.
func (e *Engine) SetTick(t uint64) {
	e.tick.Store(t)
}

// Speed returns the current speed multiplier.
func (e *Engine) Speed() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.speed
}

// SetSpeed changes the speed multiplier; values <= 0 pause.
func (e *Engine) SetSpeed(s float64) {
	if math.IsNaN(s) || s < 0 {
		s = 0
	}
	e.mu.Lock()
	e.speed = s
	e.mu.Unlock()
}

// Running reports whether Run is active.
func (e *Engine) Running() bool {
	return e.running.Load()
}

// Run starts the simulation loop. Blocks until Stop() is called.
func (e *Engine) Run() {
	e.running.Store(true)
	slog.Info("simulation engine started", "tick", e.Tick(), "speed", e.Speed())

	for e.running.Load() {
		speed := e.Speed()
		if speed <= 0 {
			// Paused; sleep briefly and check again.
			time.Sleep(100 * time.Millisecond)
			continue
		}

		start := time.Now()

		e.Step()

		// Sleep for the remainder of the tick interval, adjusted for speed.
		elapsed := time.Since(start)
		target := time.Duration(float64(e.Interval) / speed)
		if elapsed < target {
			time.Sleep(target - elapsed)
		}
	}

	slog.Info("simulation engine stopped", "tick", e.Tick())
}

// Stop halts the simulation loop.
func (e *Engine) Stop() {
	e.running.Store(false)
}

// Step advances the simulation by one tick and fires due callbacks.
func (e *Engine) Step() {
	t := e.tick.Add(1)

	if e.OnTick != nil {
		e.OnTick(t)
	}
	if e.ReportEvery > 0 && t%e.ReportEvery == 0 && e.OnReport != nil {
		e.OnReport(t)
	}
	if e.AutosaveEvery > 0 && t%e.AutosaveEvery == 0 && e.OnAutosave != nil {
		e.OnAutosave(t)
	}
}

// SimTime renders simulated seconds as a duration string.
func SimTime(seconds float64) string {
	return time.Duration(seconds * float64(time.Second)).Round(time.Second).String()
}
