// Simulation ties the world to the tick engine: it serializes access to the
// world, advances it each tick, and keeps the recent event log.

package engine

import (
	"log/slog"
	"sync"

	"github.com/dustin/go-humanize"

	"github.com/talgya/hexburg/internal/catalog"
	"github.com/talgya/hexburg/internal/economy"
)

// MaxEvents bounds the in-memory event log.
const MaxEvents = 1000

// Simulation owns a World and guards it for concurrent callers.
type Simulation struct {
	mu    sync.Mutex
	world *World

	StepSeconds float64 // simulated seconds per tick

	// OnStep receives a summary after every tick, outside the lock.
	OnStep func(Summary)

	events  []Event
	pending []Event // recorded since the last PendingEvents call
}

// Summary is an aggregate snapshot of the world.
type Summary struct {
	Tick              uint64                   `json:"tick"`
	Time              float64                  `json:"time"`
	SimTime           string                   `json:"sim_time"`
	Population        int                      `json:"population"`
	MaxPopulation     int                      `json:"max_population"`
	IdlePopulation    int                      `json:"idle_population"`
	AssignedJobs      int                      `json:"assigned_jobs"`
	TotalJobs         int                      `json:"total_jobs"`
	UnassignedJobRate float64                  `json:"unassigned_job_rate"`
	Buildings         int                      `json:"buildings"`
	Roads             int                      `json:"roads"`
	UnderConstruction int                      `json:"under_construction"`
	Resources         map[economy.Resource]int `json:"resources"`
}

// NewSimulation wraps a world.
func NewSimulation(w *World, stepSeconds float64) *Simulation {
	if stepSeconds <= 0 {
		stepSeconds = 0.1
	}
	return &Simulation{world: w, StepSeconds: stepSeconds}
}

// Do runs fn with exclusive access to the world. Events fn records are
// collected into the log.
func (s *Simulation) Do(fn func(w *World) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := fn(s.world)
	s.collect()
	return err
}

// Step advances the world one tick. Suitable as Engine.OnTick.
func (s *Simulation) Step(tick uint64) {
	s.mu.Lock()
	s.world.Step(s.StepSeconds)
	s.collect()
	sum := s.summarize()
	s.mu.Unlock()

	if s.OnStep != nil {
		s.OnStep(sum)
	}
}

func (s *Simulation) collect() {
	fresh := s.world.TakeEvents()
	s.events = append(s.events, fresh...)
	s.pending = append(s.pending, fresh...)
	// Trim old events to prevent unbounded growth.
	if len(s.events) > MaxEvents {
		s.events = s.events[len(s.events)-MaxEvents:]
	}
	if len(s.pending) > MaxEvents {
		s.pending = s.pending[len(s.pending)-MaxEvents:]
	}
}

// PendingEvents returns and clears events not yet handed to persistence.
func (s *Simulation) PendingEvents() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.pending
	s.pending = nil
	return out
}

// RecentEvents returns up to n of the newest events, oldest first.
func (s *Simulation) RecentEvents(n int) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n <= 0 || n > len(s.events) {
		n = len(s.events)
	}
	out := make([]Event, n)
	copy(out, s.events[len(s.events)-n:])
	return out
}

// Summary returns the current aggregate snapshot.
func (s *Simulation) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summarize()
}

func (s *Simulation) summarize() Summary {
	w := s.world
	sum := Summary{
		Tick:              w.Tick,
		Time:              w.Time,
		SimTime:           SimTime(w.Time),
		Population:        w.Pop.Population,
		MaxPopulation:     w.Pop.MaxPopulation,
		IdlePopulation:    w.Pop.Idle(),
		AssignedJobs:      w.Pop.AssignedJobs,
		TotalJobs:         w.Pop.TotalJobs,
		UnassignedJobRate: w.Pop.UnassignedJobRate(),
		Resources:         w.Ledger.Snapshot(),
	}
	for _, b := range w.Buildings() {
		switch {
		case b.State != StateActive:
			sum.UnderConstruction++
			sum.Buildings++
		case w.Template(b).Kind == catalog.KindRoad:
			sum.Roads++
		default:
			sum.Buildings++
		}
	}
	return sum
}

// Report logs a summary line. Suitable as Engine.OnReport.
func (s *Simulation) Report(tick uint64) {
	sum := s.Summary()
	args := []any{
		"tick", tick,
		"time", sum.SimTime,
		"population", humanize.Comma(int64(sum.Population)),
		"max_population", humanize.Comma(int64(sum.MaxPopulation)),
		"idle", humanize.Comma(int64(sum.IdlePopulation)),
		"jobs", humanize.Comma(int64(sum.TotalJobs)),
		"buildings", sum.Buildings,
		"roads", sum.Roads,
	}
	s.mu.Lock()
	for _, r := range s.world.Ledger.Resources() {
		args = append(args, string(r), humanize.Comma(int64(s.world.Ledger.Get(r))))
	}
	s.mu.Unlock()
	slog.Info("settlement report", args...)
}
