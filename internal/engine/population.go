// Population and job counters. Housing supplies residents and production
// buildings supply job slots.

package engine

// Population holds the settlement-wide labor counters.
type Population struct {
	Population    int `json:"population"`
	MaxPopulation int `json:"max_population"`
	AssignedJobs  int `json:"assigned_jobs"`
	TotalJobs     int `json:"total_jobs"`
}

// Idle returns residents not assigned to any job. Negative while some
// workers have lost their homes and not yet been released.
func (p Population) Idle() int {
	return p.Population - p.AssignedJobs
}

// UnassignedJobs returns open job slots.
func (p Population) UnassignedJobs() int {
	return p.TotalJobs - p.AssignedJobs
}

// UnassignedJobRate returns the fraction of job slots left open.
func (p Population) UnassignedJobRate() float64 {
	if p.TotalJobs <= 0 {
		return 0
	}
	return float64(p.UnassignedJobs()) / float64(p.TotalJobs)
}

func (w *World) increaseMaxPopulation(n int) {
	if !w.invariant(n >= 0, "negative max population increase", "n", n) {
		return
	}
	w.Pop.MaxPopulation += n
}

func (w *World) decreaseMaxPopulation(n int) {
	if !w.invariant(n >= 0 && n <= w.Pop.MaxPopulation, "max population underflow",
		"n", n, "max", w.Pop.MaxPopulation) {
		n = clampInt(n, 0, w.Pop.MaxPopulation)
	}
	w.invariant(w.Pop.Population <= w.Pop.MaxPopulation-n, "population above capacity",
		"population", w.Pop.Population, "max", w.Pop.MaxPopulation-n)
	w.Pop.MaxPopulation -= n
}

func (w *World) addPopulation(n int) {
	if !w.invariant(n >= 0 && w.Pop.Population+n <= w.Pop.MaxPopulation, "population overflow",
		"n", n, "population", w.Pop.Population, "max", w.Pop.MaxPopulation) {
		n = clampInt(n, 0, max(0, w.Pop.MaxPopulation-w.Pop.Population))
	}
	w.Pop.Population += n
}

func (w *World) removePopulation(n int) {
	if !w.invariant(n >= 0 && n <= w.Pop.Population, "population underflow",
		"n", n, "population", w.Pop.Population) {
		n = clampInt(n, 0, w.Pop.Population)
	}
	w.Pop.Population -= n
}

func (w *World) addJobs(n int) {
	if !w.invariant(n >= 0, "negative job increase", "n", n) {
		return
	}
	w.Pop.TotalJobs += n
}

func (w *World) removeJobs(n int) {
	if !w.invariant(n >= 0 && n <= w.Pop.TotalJobs, "job underflow", "n", n, "jobs", w.Pop.TotalJobs) {
		n = clampInt(n, 0, w.Pop.TotalJobs)
	}
	w.invariant(w.Pop.AssignedJobs <= w.Pop.TotalJobs-n, "assigned jobs above slots",
		"assigned", w.Pop.AssignedJobs, "jobs", w.Pop.TotalJobs-n)
	w.Pop.TotalJobs -= n
}

func (w *World) assignWorkers(n int) {
	if !w.invariant(n >= 0, "negative worker assignment", "n", n) {
		return
	}
	w.Pop.AssignedJobs += n
}

func (w *World) freeWorkers(n int) {
	if !w.invariant(n >= 0 && n <= w.Pop.AssignedJobs, "assigned worker underflow",
		"n", n, "assigned", w.Pop.AssignedJobs) {
		n = clampInt(n, 0, w.Pop.AssignedJobs)
	}
	w.Pop.AssignedJobs -= n
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
