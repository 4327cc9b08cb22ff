// Package coverage accumulates per-cell visit counts over a simulation
// window. Within one step every cell counts at most once, no matter how many
// satellites cover it.
package coverage

import (
	"sort"

	"github.com/large-farva/coverage-engine/internal/grid"
)

// StepSet is the union of cells covered by any satellite during one step.
type StepSet map[grid.Cell]struct{}

// NewStepSet returns an empty set.
func NewStepSet() StepSet {
	return make(StepSet)
}

// Add inserts cells into the set; duplicates collapse.
func (s StepSet) Add(cells ...grid.Cell) {
	for _, c := range cells {
		s[c] = struct{}{}
	}
}

// Len is the number of distinct cells in the set.
func (s StepSet) Len() int { return len(s) }

// Entry is one covered cell and its visit count.
type Entry struct {
	Cell  grid.Cell
	Count int
}

// Map holds visit counts per cell. Counts only grow.
type Map struct {
	counts map[grid.Cell]int
	steps  int
}

// New returns an empty coverage map.
func New() *Map {
	return &Map{counts: make(map[grid.Cell]int)}
}

// Accumulate records one step: each distinct cell in set gains one visit.
// An empty set still counts as a step.
func (m *Map) Accumulate(set StepSet) {
	for c := range set {
		m.counts[c]++
	}
	m.steps++
}

// Count returns the visit count of c, zero if it was never covered.
func (m *Map) Count(c grid.Cell) int {
	return m.counts[c]
}

// Len is the number of distinct cells ever covered.
func (m *Map) Len() int {
	return len(m.counts)
}

// Steps is how many steps have been accumulated.
func (m *Map) Steps() int {
	return m.steps
}

// Entries returns the counts sorted by cell identifier.
func (m *Map) Entries() []Entry {
	out := make([]Entry, 0, len(m.counts))
	for c, n := range m.counts {
		out = append(out, Entry{Cell: c, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Cell < out[j].Cell })
	return out
}

// Merge adds other's counts and steps into m. Summing is only meaningful
// for maps built over disjoint time windows.
func (m *Map) Merge(other *Map) {
	for c, n := range other.counts {
		m.counts[c] += n
	}
	m.steps += other.steps
}

// Stats summarizes the distribution of visit counts.
type Stats struct {
	Cells int     `json:"cells"`
	Total int     `json:"total_visits"`
	Min   int     `json:"min"`
	Max   int     `json:"max"`
	Mean  float64 `json:"mean"`
}

// Stats computes count statistics over the covered cells.
func (m *Map) Stats() Stats {
	s := Stats{Cells: len(m.counts)}
	first := true
	for _, n := range m.counts {
		s.Total += n
		if first || n < s.Min {
			s.Min = n
		}
		if first || n > s.Max {
			s.Max = n
		}
		first = false
	}
	if s.Cells > 0 {
		s.Mean = float64(s.Total) / float64(s.Cells)
	}
	return s
}
