// Package game defines the 2048 board state, actions and the move engine.
//
// A Board is a value: every transition returns a new Board and never mutates
// the receiver, so afterstates can be stored in trajectories without cloning.
package game

import (
	"fmt"
	"strings"
)

const (
	// Size is the side length of the grid.
	Size = 4
	// Cells is the number of cells on the grid.
	Cells = Size * Size
	// MaxRank is the largest rank a 4-bit cell can hold (tile 32768).
	MaxRank = 15
)

// Board packs 16 cells of 4 bits each into a uint64.
// Cell i occupies bits [4i, 4i+4); cells are numbered row-major from the top-left.
// A cell holds a rank: 0 is empty, n is the tile 2^n.
type Board uint64

// At returns the rank stored at pos.
func (b Board) At(pos int) uint8 {
	return uint8((uint64(b) >> (uint(pos) * 4)) & 0xf)
}

// With returns a copy of b with pos set to rank.
func (b Board) With(pos int, rank uint8) Board {
	shift := uint(pos) * 4
	cleared := uint64(b) &^ (uint64(0xf) << shift)
	return Board(cleared | (uint64(rank&0xf) << shift))
}

// Empty returns the positions of all empty cells in ascending order.
func (b Board) Empty() []int {
	out := make([]int, 0, Cells)
	for pos := 0; pos < Cells; pos++ {
		if b.At(pos) == 0 {
			out = append(out, pos)
		}
	}
	return out
}

// MaxTile returns the largest rank on the board.
func (b Board) MaxTile() uint8 {
	var best uint8
	for pos := 0; pos < Cells; pos++ {
		if r := b.At(pos); r > best {
			best = r
		}
	}
	return best
}

// FromRanks builds a board from 16 row-major ranks.
func FromRanks(ranks [Cells]uint8) Board {
	var b Board
	for pos, r := range ranks {
		b = b.With(pos, r)
	}
	return b
}

// Ranks unpacks the board into row-major ranks.
func (b Board) Ranks() [Cells]uint8 {
	var out [Cells]uint8
	for pos := range out {
		out[pos] = b.At(pos)
	}
	return out
}

// TileValue converts a rank to the displayed tile value.
func TileValue(rank uint8) int {
	if rank == 0 {
		return 0
	}
	return 1 << rank
}

func (b Board) String() string {
	var sb strings.Builder
	sb.WriteString("+------------------------+\n")
	for row := 0; row < Size; row++ {
		sb.WriteByte('|')
		for col := 0; col < Size; col++ {
			fmt.Fprintf(&sb, "%6d", TileValue(b.At(row*Size+col)))
		}
		sb.WriteString("|\n")
	}
	sb.WriteString("+------------------------+\n")
	return sb.String()
}
