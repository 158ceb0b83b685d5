package selfplay

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/brensch/ntuple2048/agent"
	"github.com/brensch/ntuple2048/game"
	"github.com/brensch/ntuple2048/ntuple"
)

func newPair(t *testing.T, playerArgs, envArgs string) (*agent.Player, *agent.RandomEnv) {
	t.Helper()
	p, err := agent.NewPlayer(playerArgs, nil)
	if err != nil {
		t.Fatalf("new player: %v", err)
	}
	e, err := agent.NewRandomEnv(envArgs)
	if err != nil {
		t.Fatalf("new env: %v", err)
	}
	return p, e
}

func TestPlayEpisode_RecordsAlternatingTurns(t *testing.T) {
	p, e := newPair(t, "alpha=0.1", "seed=4")
	res, err := PlayEpisode(p, e, PlayOptions{RecordSteps: true})
	if err != nil {
		t.Fatalf("play: %v", err)
	}
	if res.ID == "" || res.Steps == 0 {
		t.Fatalf("result=%+v", res)
	}
	if res.Final.MaxTile() != res.MaxTile {
		t.Fatalf("max tile %d final %d", res.MaxTile, res.Final.MaxTile())
	}

	recs := res.Records
	if len(recs) < 3 {
		t.Fatalf("only %d records", len(recs))
	}
	if recs[0].Role != agent.RoleEnvironment || recs[1].Role != agent.RoleEnvironment {
		t.Fatalf("first two turns should be placements: %s %s", recs[0].Role, recs[1].Role)
	}

	score, slides := 0, 0
	for i, r := range recs {
		if r.Turn != i {
			t.Fatalf("record %d has turn %d", i, r.Turn)
		}
		if i > 0 && r.Before != recs[i-1].After {
			t.Fatalf("record %d does not continue from the previous board", i)
		}
		if i >= 2 {
			want := agent.RolePlayer
			if (i-2)%2 == 1 {
				want = agent.RoleEnvironment
			}
			if r.Role != want {
				t.Fatalf("record %d role=%s want %s", i, r.Role, want)
			}
		}
		if r.Action.Kind == game.ActionSlide {
			slides++
		}
		score += r.Reward
	}
	if score != res.Score || slides != res.Steps {
		t.Fatalf("score %d/%d slides %d/%d", score, res.Score, slides, res.Steps)
	}
	if recs[len(recs)-1].After != res.Final {
		t.Fatalf("final board mismatch")
	}

	// The game ends because the player is stuck.
	for _, dir := range game.Directions {
		if _, r := res.Final.Slide(dir); r != game.IllegalMove {
			t.Fatalf("final board still allows %s", dir)
		}
	}
	if p.LastUpdate().Steps != res.Steps {
		t.Fatalf("player learned from %d steps, played %d", p.LastUpdate().Steps, res.Steps)
	}
}

// cheater tries to place a tile on its own turn.
type cheater struct{}

func (cheater) OpenEpisode()  {}
func (cheater) CloseEpisode() {}
func (cheater) Name() string  { return "cheater" }
func (cheater) Role() string  { return agent.RolePlayer }
func (cheater) TakeAction(b game.Board) game.Action {
	return game.PlaceAction(b.Empty()[0], 1)
}

func TestPlayEpisode_RejectsIllegalAction(t *testing.T) {
	_, e := newPair(t, "", "seed=1")
	_, err := PlayEpisode(cheater{}, e, PlayOptions{})
	if err == nil {
		t.Fatalf("illegal action was accepted")
	}
	if !strings.Contains(err.Error(), "player") {
		t.Fatalf("error does not name the role: %v", err)
	}
}

// quitter never moves.
type quitter struct{}

func (quitter) OpenEpisode()                      {}
func (quitter) CloseEpisode()                     {}
func (quitter) Name() string                      { return "quitter" }
func (quitter) Role() string                      { return agent.RolePlayer }
func (quitter) TakeAction(game.Board) game.Action { return game.NoAction() }

func TestPlayEpisode_PassingOnLiveBoardFails(t *testing.T) {
	_, e := newPair(t, "", "seed=4")
	res, err := PlayEpisode(quitter{}, e, PlayOptions{})
	if !errors.Is(err, ErrPassedWithMoves) {
		t.Fatalf("err=%v want ErrPassedWithMoves", err)
	}
	if res.Steps != 0 {
		t.Fatalf("steps=%d", res.Steps)
	}
}

func TestTrain_BlocksAndHooks(t *testing.T) {
	p, e := newPair(t, "alpha=0.1", "seed=8")

	var episodes []EpisodeSummary
	var blocks []BlockSummary
	stats, err := Train(context.Background(), p, e, TrainConfig{Total: 6, Block: 3, Limit: 3}, Hooks{
		OnEpisode: func(_ EpisodeResult, s EpisodeSummary) { episodes = append(episodes, s) },
		OnBlock:   func(b BlockSummary) { blocks = append(blocks, b) },
	})
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	if stats.Total() != 6 || len(episodes) != 6 {
		t.Fatalf("total=%d episodes=%d", stats.Total(), len(episodes))
	}
	for i, s := range episodes {
		if s.Index != i+1 || s.Alpha != 0.1 {
			t.Fatalf("episode %d summary=%+v", i, s)
		}
	}
	if len(blocks) != 2 || blocks[0].From != 1 || blocks[0].To != 3 || blocks[1].From != 4 || blocks[1].To != 6 {
		t.Fatalf("blocks=%+v", blocks)
	}
	if p.Network().Stats().NonZero == 0 {
		t.Fatalf("training did not touch the weights")
	}
}

func TestTrain_StopsOnCancel(t *testing.T) {
	p, e := newPair(t, "alpha=0.1", "seed=2")
	ctx, cancel := context.WithCancel(context.Background())

	stats, err := Train(ctx, p, e, TrainConfig{Total: 1000, Block: 10}, Hooks{
		OnEpisode: func(_ EpisodeResult, s EpisodeSummary) {
			if s.Index == 2 {
				cancel()
			}
		},
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v want context.Canceled", err)
	}
	if stats.Total() != 2 {
		t.Fatalf("played %d episodes after cancel at 2", stats.Total())
	}
}

func TestSummarize_TileRates(t *testing.T) {
	eps := []EpisodeSummary{
		{Index: 1, Score: 100, Steps: 10, MaxTile: 64, DurationMs: 1},
		{Index: 2, Score: 300, Steps: 20, MaxTile: 128, DurationMs: 1},
		{Index: 3, Score: 200, Steps: 30, MaxTile: 128, DurationMs: 1},
		{Index: 4, Score: 400, Steps: 40, MaxTile: 256, DurationMs: 1},
	}
	b := Summarize(eps, []time.Duration{time.Second, time.Second, time.Second, time.Second})
	if b.From != 1 || b.To != 4 || b.AvgScore != 250 || b.MaxScore != 400 || b.OpsPerSec != 25 {
		t.Fatalf("block=%+v", b)
	}
	want := []TileRate{
		{Tile: 64, Reached: 1, Ended: 0.25},
		{Tile: 128, Reached: 0.75, Ended: 0.5},
		{Tile: 256, Reached: 0.25, Ended: 0.25},
	}
	if len(b.Tiles) != len(want) {
		t.Fatalf("tiles=%+v", b.Tiles)
	}
	for i := range want {
		if b.Tiles[i] != want[i] {
			t.Fatalf("tile %d=%+v want %+v", i, b.Tiles[i], want[i])
		}
	}

	out := b.Format()
	if !strings.HasPrefix(out, "4\tavg = 250, max = 400, ops = 25\n") {
		t.Fatalf("format=%q", out)
	}
	if !strings.Contains(out, "\t128\t75.0%\t(50.0%)\n") {
		t.Fatalf("format=%q", out)
	}
}

func TestStats_Limit(t *testing.T) {
	s := NewStats(2)
	for i := 0; i < 5; i++ {
		s.Add(EpisodeResult{Score: i}, 0, 0)
	}
	b := s.Block(10)
	if s.Total() != 5 || b.From != 4 || b.To != 5 {
		t.Fatalf("total=%d block=%+v", s.Total(), b)
	}
}

func TestEvaluate_DeterministicAcrossWorkers(t *testing.T) {
	trainer, env := newPair(t, "alpha=0.1", "seed=3")
	if _, err := Train(context.Background(), trainer, env, TrainConfig{Total: 5}, Hooks{}); err != nil {
		t.Fatalf("train: %v", err)
	}
	net := trainer.Network().Clone()
	before := net.Stats()

	one, b1, err := Evaluate(context.Background(), net, EvalConfig{Games: 6, Workers: 1, Seed: 100})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	four, b4, err := Evaluate(context.Background(), net, EvalConfig{Games: 6, Workers: 4, Seed: 100})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	for i := range one {
		if one[i].Index != i+1 || one[i].Score != four[i].Score || one[i].MaxTile != four[i].MaxTile {
			t.Fatalf("game %d differs: %+v vs %+v", i, one[i], four[i])
		}
	}
	if b1.AvgScore != b4.AvgScore || b1.MaxScore != b4.MaxScore {
		t.Fatalf("blocks differ: %+v vs %+v", b1, b4)
	}
	if net.Stats() != before {
		t.Fatalf("evaluation changed the weights")
	}
}

func TestEvaluate_GameCount(t *testing.T) {
	net := ntuple.NewDefault()
	if _, _, err := Evaluate(context.Background(), net, EvalConfig{Games: -1, Workers: 2}); err == nil {
		t.Fatalf("negative game count accepted")
	}
	got, block, err := Evaluate(context.Background(), net, EvalConfig{Games: 0, Workers: 2})
	if err != nil || len(got) != 0 || block.To != 0 {
		t.Fatalf("zero games: got=%v block=%+v err=%v", got, block, err)
	}
}
