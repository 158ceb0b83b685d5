package rules

import (
	"errors"
	"fmt"

	"github.com/brensch/ntuple2048/game"
)

var (
	// ErrIllegalMove is returned when a slide would not change the board.
	ErrIllegalMove = errors.New("illegal move")
	// ErrOccupied is returned when a tile is placed on a non-empty cell.
	ErrOccupied = errors.New("cell occupied")
	// ErrOutOfRange is returned for directions, positions or tiles outside the board's domain.
	ErrOutOfRange = errors.New("out of range")
	// ErrNoAction is returned when the none action is applied.
	ErrNoAction = errors.New("no action")
)

// GetLegalMoves returns the slides that change the board, in opcode order.
func GetLegalMoves(b game.Board) []game.Direction {
	moves := make([]game.Direction, 0, 4)
	for _, dir := range game.Directions {
		if _, reward := b.Slide(dir); reward != game.IllegalMove {
			moves = append(moves, dir)
		}
	}
	return moves
}

// IsGameOver returns true if no slide changes the board.
func IsGameOver(b game.Board) bool {
	for _, dir := range game.Directions {
		if _, reward := b.Slide(dir); reward != game.IllegalMove {
			return false
		}
	}
	return true
}

// Apply returns the board after the action and the reward it earned.
// Placements earn nothing. The input board is never modified.
func Apply(b game.Board, a game.Action) (game.Board, int, error) {
	switch a.Kind {
	case game.ActionSlide:
		if !a.Dir.Valid() {
			return b, 0, fmt.Errorf("slide %d: %w", a.Dir, ErrOutOfRange)
		}
		after, reward := b.Slide(a.Dir)
		if reward == game.IllegalMove {
			return b, 0, fmt.Errorf("slide %s: %w", a.Dir, ErrIllegalMove)
		}
		return after, reward, nil

	case game.ActionPlace:
		if a.Pos < 0 || a.Pos >= game.Cells {
			return b, 0, fmt.Errorf("place at %d: %w", a.Pos, ErrOutOfRange)
		}
		if a.Tile == 0 || a.Tile > game.MaxRank {
			return b, 0, fmt.Errorf("place rank %d: %w", a.Tile, ErrOutOfRange)
		}
		if b.At(a.Pos) != 0 {
			return b, 0, fmt.Errorf("place at %d: %w", a.Pos, ErrOccupied)
		}
		return b.With(a.Pos, a.Tile), 0, nil
	}
	return b, 0, ErrNoAction
}
