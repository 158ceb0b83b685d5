package game

// Direction is a slide opcode. The numbering is also the enumeration order used
// for tie-breaking, so it must not change.
type Direction int

const (
	Up Direction = iota
	Right
	Down
	Left
)

// Directions lists every slide in opcode order.
var Directions = [4]Direction{Up, Right, Down, Left}

var directionNames = [4]string{"up", "right", "down", "left"}

func (d Direction) Valid() bool {
	return d >= Up && d <= Left
}

func (d Direction) String() string {
	if !d.Valid() {
		return "invalid"
	}
	return directionNames[d]
}

// IllegalMove is the reward Slide reports when nothing on the board changes.
const IllegalMove = -1

// lines holds, per direction, the four lines of cell positions ordered so that
// index 0 is the edge tiles slide toward. Right and down are the reflections of
// left and up; every direction goes through slideLine.
var lines = func() [4][Size][Size]int {
	var out [4][Size][Size]int
	for i := 0; i < Size; i++ {
		for j := 0; j < Size; j++ {
			out[Up][i][j] = j*Size + i
			out[Down][i][j] = (Size-1-j)*Size + i
			out[Left][i][j] = i*Size + j
			out[Right][i][j] = i*Size + (Size - 1 - j)
		}
	}
	return out
}()

// Slide applies a move and returns the afterstate with the score earned by merges.
// The reward is IllegalMove and the board is returned unchanged when the move
// does not alter any cell or the direction is out of range.
func (b Board) Slide(dir Direction) (Board, int) {
	if !dir.Valid() {
		return b, IllegalMove
	}

	out := b
	reward := 0
	for _, idx := range lines[dir] {
		var line [Size]uint8
		for j, pos := range idx {
			line[j] = b.At(pos)
		}
		moved, r := slideLine(line)
		reward += r
		for j, pos := range idx {
			out = out.With(pos, moved[j])
		}
	}

	if out == b {
		return b, IllegalMove
	}
	return out, reward
}

// slideLine compresses a line toward index 0, merges equal neighbours once
// and compresses again.
func slideLine(line [Size]uint8) ([Size]uint8, int) {
	var packed [Size]uint8
	n := 0
	for _, r := range line {
		if r != 0 {
			packed[n] = r
			n++
		}
	}

	reward := 0
	for i := 0; i+1 < n; i++ {
		r := packed[i]
		if r == 0 || r >= MaxRank || packed[i+1] != r {
			continue
		}
		packed[i] = r + 1
		packed[i+1] = 0
		reward += 1 << (r + 1)
		// the merged tile is final for this slide
		i++
	}

	var out [Size]uint8
	n = 0
	for _, r := range packed {
		if r != 0 {
			out[n] = r
			n++
		}
	}
	return out, reward
}
