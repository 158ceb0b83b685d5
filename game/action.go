package game

import "fmt"

// ActionKind tags which variant an Action holds.
type ActionKind uint8

const (
	// ActionNone signals that the agent has nothing to do: game over for the
	// player, a full board for the environment.
	ActionNone ActionKind = iota
	ActionSlide
	ActionPlace
)

// Action is produced by an agent and applied by the driver.
type Action struct {
	Kind ActionKind
	Dir  Direction
	Pos  int
	Tile uint8
}

// NoAction returns the none variant.
func NoAction() Action {
	return Action{Kind: ActionNone}
}

// SlideAction returns a slide in dir.
func SlideAction(dir Direction) Action {
	return Action{Kind: ActionSlide, Dir: dir}
}

// PlaceAction places a tile of the given rank (1 is a 2, 2 is a 4) at pos.
func PlaceAction(pos int, tile uint8) Action {
	return Action{Kind: ActionPlace, Pos: pos, Tile: tile}
}

func (a Action) IsNone() bool {
	return a.Kind == ActionNone
}

func (a Action) String() string {
	switch a.Kind {
	case ActionSlide:
		return "slide(" + a.Dir.String() + ")"
	case ActionPlace:
		return fmt.Sprintf("place(%d,%d)", a.Pos, TileValue(a.Tile))
	default:
		return "none"
	}
}

// Opcode packs the action into one integer: 0..3 are slides in Direction
// order, placements are 16*tile + pos, and none is -1.
func (a Action) Opcode() int {
	switch a.Kind {
	case ActionSlide:
		return int(a.Dir)
	case ActionPlace:
		return int(a.Tile)<<4 | a.Pos
	default:
		return -1
	}
}

// ActionFromOpcode is the inverse of Opcode. Anything it cannot decode is none.
func ActionFromOpcode(op int) Action {
	switch {
	case op >= 0 && op < len(Directions):
		return SlideAction(Direction(op))
	case op >= 16 && op>>4 <= MaxRank:
		return PlaceAction(op&0x0f, uint8(op>>4))
	default:
		return NoAction()
	}
}
