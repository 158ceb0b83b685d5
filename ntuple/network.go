package ntuple

import (
	"github.com/chewxy/math32"

	"github.com/brensch/ntuple2048/game"
)

// Network is an n-tuple network: one dense weight table per pattern.
// The value of a board is the sum of the entries its features select.
//
// A Network has no locking. Training needs a single owner; any number of
// goroutines may call Estimate while nobody writes.
type Network struct {
	patterns []Pattern
	tables   [][]float32
}

// New allocates a zeroed table of TableSize entries for every pattern.
// With the default patterns that is roughly 12.5MB, allocated up front.
func New(patterns []Pattern) (*Network, error) {
	ps := make([]Pattern, len(patterns))
	copy(ps, patterns)
	for _, p := range ps {
		if err := p.Validate(); err != nil {
			return nil, err
		}
	}

	tables := make([][]float32, len(ps))
	for i := range tables {
		tables[i] = make([]float32, TableSize)
	}
	return &Network{patterns: ps, tables: tables}, nil
}

// NewDefault returns a zeroed network over DefaultPatterns.
func NewDefault() *Network {
	n, err := New(DefaultPatterns)
	if err != nil {
		panic(err)
	}
	return n
}

func (n *Network) Patterns() []Pattern { return n.patterns }
func (n *Network) NumTables() int      { return len(n.tables) }

// Weight returns a single table entry.
func (n *Network) Weight(table, index int) float32 {
	return n.tables[table][index]
}

// SetWeight overwrites a single table entry.
func (n *Network) SetWeight(table, index int, w float32) {
	n.tables[table][index] = w
}

func (n *Network) feature(b game.Board, i int) int {
	idx, err := Extract(b, n.patterns[i])
	if err != nil {
		// Patterns are validated in New and cells hold at most 15, so this is a bug.
		panic(err)
	}
	return idx
}

// Estimate returns the value of b.
func (n *Network) Estimate(b game.Board) float32 {
	var value float32
	for i := range n.tables {
		value += n.tables[i][n.feature(b, i)]
	}
	return value
}

// Adjust adds delta to the entry every pattern selects for b.
func (n *Network) Adjust(b game.Board, delta float32) {
	for i := range n.tables {
		n.tables[i][n.feature(b, i)] += delta
	}
}

// Update moves the value of b toward target by alpha times the error and
// returns the error. The same adjustment goes to every pattern's entry; the
// error is not split across features.
func (n *Network) Update(b game.Board, target, alpha float32) float32 {
	err := target - n.Estimate(b)
	n.Adjust(b, alpha*err)
	return err
}

// Stats summarises the tables for logging.
type Stats struct {
	Tables  int
	Entries int
	NonZero int
	MaxAbs  float32
	SumAbs  float64
	HasNaN  bool
}

func (n *Network) Stats() Stats {
	st := Stats{Tables: len(n.tables)}
	for _, t := range n.tables {
		st.Entries += len(t)
		for _, w := range t {
			if w == 0 {
				continue
			}
			if math32.IsNaN(w) {
				st.HasNaN = true
				continue
			}
			st.NonZero++
			a := math32.Abs(w)
			st.SumAbs += float64(a)
			if a > st.MaxAbs {
				st.MaxAbs = a
			}
		}
	}
	return st
}

// Clone returns a deep copy, used to freeze weights for evaluation.
func (n *Network) Clone() *Network {
	out := &Network{
		patterns: append([]Pattern(nil), n.patterns...),
		tables:   make([][]float32, len(n.tables)),
	}
	for i, t := range n.tables {
		out.tables[i] = append([]float32(nil), t...)
	}
	return out
}
