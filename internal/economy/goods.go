// Package economy provides the resource ledger: the player's global stockpile
// of goods, with affordability checks and atomic multi-resource deductions.
package economy

import (
	"fmt"
	"sort"
	"strings"
)

// Resource identifies a kind of good ("wood", "grain", "bread", ...).
type Resource string

// Amount is a quantity of one resource, as used in costs and production.
type Amount struct {
	Resource Resource `json:"resource" yaml:"resource"`
	Count    int      `json:"count" yaml:"count"`
}

func (a Amount) String() string {
	return fmt.Sprintf("%d %s", a.Count, a.Resource)
}

// Ledger maps resource kinds to non-negative quantities.
// Unknown kinds implicitly hold zero. The zero value is not usable; call NewLedger.
type Ledger struct {
	stock map[Resource]int
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{stock: make(map[Resource]int)}
}

// Get returns the quantity held of r.
func (l *Ledger) Get(r Resource) int {
	return l.stock[r]
}

// Has reports whether at least n of r is held.
func (l *Ledger) Has(r Resource, n int) bool {
	return l.stock[r] >= n
}

// HasAll reports whether every amount is available at once. Repeated
// resources are summed before checking.
func (l *Ledger) HasAll(amounts []Amount) bool {
	for r, n := range totals(amounts) {
		if l.stock[r] < n {
			return false
		}
	}
	return true
}

// Use deducts n of r if available. Returns false, leaving the ledger
// untouched, when the stock is insufficient or n is negative.
func (l *Ledger) Use(r Resource, n int) bool {
	if n < 0 || !l.Has(r, n) {
		return false
	}
	l.set(r, l.stock[r]-n)
	return true
}

// UseAll deducts every amount, or none of them when any is short.
func (l *Ledger) UseAll(amounts []Amount) bool {
	need := totals(amounts)
	for r, n := range need {
		if n < 0 || l.stock[r] < n {
			return false
		}
	}
	for r, n := range need {
		l.set(r, l.stock[r]-n)
	}
	return true
}

// Add credits n of r. Negative amounts are ignored.
func (l *Ledger) Add(r Resource, n int) {
	if n <= 0 {
		return
	}
	l.stock[r] += n
}

// AddAll credits every amount.
func (l *Ledger) AddAll(amounts []Amount) {
	for _, a := range amounts {
		l.Add(a.Resource, a.Count)
	}
}

// Set overwrites the quantity of r. Negative values are stored as zero.
func (l *Ledger) Set(r Resource, n int) {
	if n < 0 {
		n = 0
	}
	l.set(r, n)
}

func (l *Ledger) set(r Resource, n int) {
	if n == 0 {
		delete(l.stock, r)
		return
	}
	l.stock[r] = n
}

// Clear empties the ledger.
func (l *Ledger) Clear() {
	clear(l.stock)
}

// Snapshot returns a copy of every non-zero entry.
func (l *Ledger) Snapshot() map[Resource]int {
	out := make(map[Resource]int, len(l.stock))
	for r, n := range l.stock {
		out[r] = n
	}
	return out
}

// Restore replaces the contents with the given snapshot.
func (l *Ledger) Restore(snap map[Resource]int) {
	l.Clear()
	for r, n := range snap {
		l.Set(r, n)
	}
}

// Resources returns the held resource kinds in name order.
func (l *Ledger) Resources() []Resource {
	out := make([]Resource, 0, len(l.stock))
	for r := range l.stock {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Total returns the sum of all quantities.
func (l *Ledger) Total() int {
	total := 0
	for _, n := range l.stock {
		total += n
	}
	return total
}

func (l *Ledger) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, r := range l.Resources() {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s:%d", r, l.stock[r])
	}
	b.WriteByte('}')
	return b.String()
}

// Scale returns amounts with every count multiplied by k.
func Scale(amounts []Amount, k int) []Amount {
	out := make([]Amount, len(amounts))
	for i, a := range amounts {
		out[i] = Amount{Resource: a.Resource, Count: a.Count * k}
	}
	return out
}

func totals(amounts []Amount) map[Resource]int {
	need := make(map[Resource]int, len(amounts))
	for _, a := range amounts {
		need[a.Resource] += a.Count
	}
	return need
}
