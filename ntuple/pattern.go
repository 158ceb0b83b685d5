// Package ntuple implements the n-tuple network value function: tuple
// patterns, feature extraction, the weight tables and their binary file format.
package ntuple

import (
	"fmt"

	"github.com/brensch/ntuple2048/game"
)

const (
	// Base is the radix used to pack a tuple's ranks into a feature index.
	// Every rank sampled by a pattern must be below Base.
	Base = 25
	// TupleLen is the number of cells in a pattern.
	TupleLen = 4
	// TableSize is the number of entries in each weight table (Base^TupleLen).
	TableSize = Base * Base * Base * Base
)

// Pattern is an ordered list of cell positions sampled from a board.
type Pattern [TupleLen]int

// DefaultPatterns are the four rows followed by the four columns.
var DefaultPatterns = []Pattern{
	{0, 1, 2, 3},
	{4, 5, 6, 7},
	{8, 9, 10, 11},
	{12, 13, 14, 15},
	{0, 4, 8, 12},
	{1, 5, 9, 13},
	{2, 6, 10, 14},
	{3, 7, 11, 15},
}

// RangeError reports a pattern position outside the board or a rank that
// does not fit the feature radix. Either one would index outside a table.
type RangeError struct {
	Pattern Pattern
	Pos     int
	Rank    int
}

func (e *RangeError) Error() string {
	if e.Pos < 0 || e.Pos >= game.Cells {
		return fmt.Sprintf("ntuple: pattern %v: position %d outside board", e.Pattern, e.Pos)
	}
	return fmt.Sprintf("ntuple: pattern %v: rank %d at position %d exceeds base %d", e.Pattern, e.Rank, e.Pos, Base)
}

// Validate checks that every position of p lies on the board.
func (p Pattern) Validate() error {
	for _, pos := range p {
		if pos < 0 || pos >= game.Cells {
			return &RangeError{Pattern: p, Pos: pos}
		}
	}
	return nil
}

// Extract packs the ranks under p into a base-25 feature index:
// r0*25^3 + r1*25^2 + r2*25 + r3.
func Extract(b game.Board, p Pattern) (int, error) {
	index := 0
	for _, pos := range p {
		if pos < 0 || pos >= game.Cells {
			return 0, &RangeError{Pattern: p, Pos: pos}
		}
		r := int(b.At(pos))
		if r >= Base {
			return 0, &RangeError{Pattern: p, Pos: pos, Rank: r}
		}
		index = index*Base + r
	}
	return index, nil
}
