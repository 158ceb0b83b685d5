package game

import (
	"math/rand"
	"strings"
	"testing"
)

// dumpBoard is a test helper to visualize a board as ranks.
func dumpBoard(b Board) string {
	var sb strings.Builder
	for row := 0; row < Size; row++ {
		for col := 0; col < Size; col++ {
			r := b.At(row*Size + col)
			if r == 0 {
				sb.WriteString(" .")
				continue
			}
			sb.WriteByte(' ')
			sb.WriteByte("0123456789abcdef"[r])
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

func logSlide(t *testing.T, name string, before Board, dir Direction, after Board, reward int) {
	t.Helper()
	t.Logf("=== %s ===\nBefore:\n%sMove: %s Reward: %d\nAfter:\n%s", name, dumpBoard(before), dir, reward, dumpBoard(after))
}

func rowBoard(ranks ...uint8) Board {
	var all [Cells]uint8
	copy(all[:], ranks)
	return FromRanks(all)
}

func TestBoard_AtWith(t *testing.T) {
	var b Board
	for pos := 0; pos < Cells; pos++ {
		b = b.With(pos, uint8(pos%MaxRank)+1)
	}
	for pos := 0; pos < Cells; pos++ {
		if got, want := b.At(pos), uint8(pos%MaxRank)+1; got != want {
			t.Fatalf("At(%d)=%d want %d", pos, got, want)
		}
	}

	// Overwriting a cell must leave its neighbours intact.
	b2 := b.With(5, 0)
	if b2.At(5) != 0 || b2.At(4) != b.At(4) || b2.At(6) != b.At(6) {
		t.Fatalf("With(5,0) disturbed neighbours:\n%s", dumpBoard(b2))
	}
	if b.At(5) == 0 {
		t.Fatalf("With mutated the receiver")
	}
}

func TestSlide_MergeDoesNotCascade(t *testing.T) {
	before := rowBoard(1, 1, 2, 2)
	after, reward := before.Slide(Left)
	logSlide(t, "2 2 4 4 left", before, Left, after, reward)

	if reward != 12 {
		t.Fatalf("reward=%d want 12", reward)
	}
	want := rowBoard(2, 3, 0, 0)
	if after != want {
		t.Fatalf("after:\n%swant:\n%s", dumpBoard(after), dumpBoard(want))
	}
}

func TestSlide_Lines(t *testing.T) {
	cases := []struct {
		name   string
		line   [4]uint8
		dir    Direction
		want   [4]uint8
		reward int
	}{
		{"four equal left", [4]uint8{1, 1, 1, 1}, Left, [4]uint8{2, 2, 0, 0}, 8},
		{"merged tile is final", [4]uint8{2, 1, 1, 0}, Left, [4]uint8{2, 2, 0, 0}, 4},
		{"gap then merge", [4]uint8{1, 0, 0, 1}, Left, [4]uint8{2, 0, 0, 0}, 4},
		{"odd run left", [4]uint8{1, 1, 1, 0}, Left, [4]uint8{2, 1, 0, 0}, 4},
		{"odd run right", [4]uint8{1, 1, 1, 0}, Right, [4]uint8{0, 0, 1, 2}, 4},
		{"pairs right", [4]uint8{1, 1, 2, 2}, Right, [4]uint8{0, 0, 2, 3}, 12},
		{"compress only", [4]uint8{0, 3, 0, 4}, Left, [4]uint8{3, 4, 0, 0}, 0},
		{"max rank never merges", [4]uint8{15, 15, 0, 0}, Right, [4]uint8{0, 0, 15, 15}, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			before := rowBoard(tc.line[:]...)
			after, reward := before.Slide(tc.dir)
			logSlide(t, tc.name, before, tc.dir, after, reward)
			if reward != tc.reward {
				t.Fatalf("reward=%d want %d", reward, tc.reward)
			}
			if want := rowBoard(tc.want[:]...); after != want {
				t.Fatalf("after:\n%swant:\n%s", dumpBoard(after), dumpBoard(want))
			}
		})
	}
}

func TestSlide_Columns(t *testing.T) {
	// Column 1 holds 2,2,4,. from top to bottom.
	before := Board(0).With(1, 1).With(5, 1).With(9, 2)

	up, reward := before.Slide(Up)
	logSlide(t, "column up", before, Up, up, reward)
	if reward != 4 || up.At(1) != 2 || up.At(5) != 2 || up.At(9) != 0 || up.At(13) != 0 {
		t.Fatalf("up: reward=%d\n%s", reward, dumpBoard(up))
	}

	down, reward := before.Slide(Down)
	logSlide(t, "column down", before, Down, down, reward)
	// The 4 lands on the bottom edge and the two 2s merge above it.
	if reward != 4 || down.At(13) != 2 || down.At(9) != 2 || down.At(5) != 0 || down.At(1) != 0 {
		t.Fatalf("down: reward=%d\n%s", reward, dumpBoard(down))
	}
}

func TestSlide_Illegal(t *testing.T) {
	var empty Board
	for _, dir := range Directions {
		if after, reward := empty.Slide(dir); reward != IllegalMove || after != empty {
			t.Fatalf("empty board %s: reward=%d", dir, reward)
		}
	}

	// Checkerboard of 2s and 4s: full, and no equal neighbours.
	var ranks [Cells]uint8
	for pos := range ranks {
		ranks[pos] = uint8(1 + (pos/Size+pos%Size)%2)
	}
	full := FromRanks(ranks)
	for _, dir := range Directions {
		if _, reward := full.Slide(dir); reward != IllegalMove {
			t.Fatalf("locked board %s: reward=%d\n%s", dir, reward, dumpBoard(full))
		}
	}

	if _, reward := rowBoard(1, 2, 3, 4).Slide(Left); reward != IllegalMove {
		t.Fatalf("compressed row left: reward=%d", reward)
	}
	if _, reward := rowBoard(1).Slide(Direction(7)); reward != IllegalMove {
		t.Fatalf("invalid direction must be illegal")
	}
}

func TestSlide_RepeatOnlyMerges(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 2000; i++ {
		var ranks [Cells]uint8
		for pos := range ranks {
			if rng.Intn(3) > 0 {
				ranks[pos] = uint8(rng.Intn(6))
			}
		}
		b := FromRanks(ranks)
		for _, dir := range Directions {
			after, reward := b.Slide(dir)
			if reward == IllegalMove {
				continue
			}
			again, reward2 := after.Slide(dir)
			// A second identical slide has nothing left to compress; it can only
			// be legal by merging a pair that the first slide produced.
			if reward2 != IllegalMove && reward2 == 0 {
				logSlide(t, "repeat", after, dir, again, reward2)
				t.Fatalf("second slide moved tiles without merging")
			}
		}
	}

	// Without equal neighbours after the first slide, repeating is illegal.
	after, _ := rowBoard(0, 1, 0, 2).Slide(Left)
	if _, reward := after.Slide(Left); reward != IllegalMove {
		t.Fatalf("left then left: reward=%d want illegal", reward)
	}
	// 2 2 4 merges into 4 4, which a second slide may merge again.
	after, reward := rowBoard(1, 1, 2).Slide(Left)
	if reward != 4 {
		t.Fatalf("first reward=%d want 4", reward)
	}
	if _, reward := after.Slide(Left); reward != 8 {
		t.Fatalf("second reward=%d want 8", reward)
	}
}

func TestSpawn_PlacesOnEmptyCell(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	b := rowBoard(3, 3, 3, 3)
	twos, fours := 0, 0
	for i := 0; i < 1000; i++ {
		pos, tile, ok := ChooseSpawn(b, rng, DefaultSpawnSettings, 0)
		if !ok {
			t.Fatalf("spawn on non-full board failed")
		}
		if b.At(pos) != 0 {
			t.Fatalf("spawned on occupied cell %d", pos)
		}
		switch tile {
		case 1:
			twos++
		case 2:
			fours++
		default:
			t.Fatalf("unexpected tile rank %d", tile)
		}
	}
	if fours == 0 || twos < fours*4 {
		t.Fatalf("tile mix looks wrong: twos=%d fours=%d", twos, fours)
	}
}

func TestSpawn_FullBoardAndDeterministicFallback(t *testing.T) {
	var ranks [Cells]uint8
	for pos := range ranks {
		ranks[pos] = 1
	}
	full := FromRanks(ranks)
	if _, _, ok := ChooseSpawn(full, nil, DefaultSpawnSettings, 0); ok {
		t.Fatalf("spawn on full board must report !ok")
	}

	b := rowBoard(1, 0, 2)
	p1, t1, _ := ChooseSpawn(b, nil, DefaultSpawnSettings, 7)
	p2, t2, _ := ChooseSpawn(b, nil, DefaultSpawnSettings, 7)
	if p1 != p2 || t1 != t2 {
		t.Fatalf("nil-rng spawn is not deterministic")
	}
}

func TestAction_String(t *testing.T) {
	if s := SlideAction(Left).String(); s != "slide(left)" {
		t.Fatalf("got %q", s)
	}
	if s := PlaceAction(3, 2).String(); s != "place(3,4)" {
		t.Fatalf("got %q", s)
	}
	if !NoAction().IsNone() {
		t.Fatalf("NoAction must be none")
	}
}

func TestAction_Opcode(t *testing.T) {
	cases := []struct {
		a  Action
		op int
	}{
		{SlideAction(Up), 0},
		{SlideAction(Left), 3},
		{PlaceAction(0, 1), 16},
		{PlaceAction(15, 2), 47},
		{NoAction(), -1},
	}
	for _, c := range cases {
		if got := c.a.Opcode(); got != c.op {
			t.Fatalf("%s opcode=%d want %d", c.a, got, c.op)
		}
		if back := ActionFromOpcode(c.op); back != c.a {
			t.Fatalf("opcode %d decoded to %s want %s", c.op, back, c.a)
		}
	}
	if !ActionFromOpcode(7).IsNone() {
		t.Fatalf("opcode 7 is not an action")
	}
}
