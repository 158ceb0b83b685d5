package selfplay

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/brensch/ntuple2048/agent"
	"github.com/brensch/ntuple2048/game"
	"github.com/brensch/ntuple2048/rules"
)

// ErrPassedWithMoves is returned when the player answers none while a slide
// is still legal.
var ErrPassedWithMoves = errors.New("player passed with legal moves left")

// StepRecord is one applied action, kept when PlayOptions.RecordSteps is set.
type StepRecord struct {
	Turn   int
	Role   string
	Before game.Board
	Action game.Action
	Reward int
	After  game.Board
}

// EpisodeResult is the outcome of one game.
type EpisodeResult struct {
	ID      string
	Score   int
	Steps   int // player slides
	MaxTile uint8
	Final   game.Board
	Start   time.Time
	End     time.Time
	Records []StepRecord
}

func (r EpisodeResult) Duration() time.Duration { return r.End.Sub(r.Start) }

type PlayOptions struct {
	RecordSteps bool
	// InitialTiles is the number of environment placements before the
	// player's first turn. Zero means two.
	InitialTiles int
}

// PlayEpisode runs one game to completion: the environment places the
// initial tiles, then player and environment alternate until either returns
// none. An error means an agent produced an action the board rejects.
func PlayEpisode(player, env agent.Agent, opts PlayOptions) (EpisodeResult, error) {
	initial := opts.InitialTiles
	if initial <= 0 {
		initial = 2
	}

	res := EpisodeResult{ID: uuid.NewString(), Start: time.Now()}
	if opts.RecordSteps {
		res.Records = make([]StepRecord, 0, 2048)
	}

	player.OpenEpisode()
	env.OpenEpisode()

	var b game.Board
	turn := 0
	apply := func(who agent.Agent, a game.Action) error {
		after, reward, err := rules.Apply(b, a)
		if err != nil {
			return fmt.Errorf("turn %d %s %s: %w", turn, who.Role(), a, err)
		}
		if opts.RecordSteps {
			res.Records = append(res.Records, StepRecord{
				Turn:   turn,
				Role:   who.Role(),
				Before: b,
				Action: a,
				Reward: reward,
				After:  after,
			})
		}
		res.Score += reward
		b = after
		turn++
		return nil
	}

	var playErr error
	for i := 0; i < initial && playErr == nil; i++ {
		a := env.TakeAction(b)
		if a.IsNone() {
			break
		}
		playErr = apply(env, a)
	}

	for playErr == nil {
		a := player.TakeAction(b)
		if a.IsNone() {
			if !rules.IsGameOver(b) {
				playErr = fmt.Errorf("turn %d %s: %w", turn, player.Role(), ErrPassedWithMoves)
			}
			break
		}
		if playErr = apply(player, a); playErr != nil {
			break
		}
		res.Steps++

		a = env.TakeAction(b)
		if a.IsNone() {
			break
		}
		playErr = apply(env, a)
	}

	env.CloseEpisode()
	if playErr != nil {
		// Skip learning from a trajectory the board did not accept.
		return res, playErr
	}
	player.CloseEpisode()

	res.Final = b
	res.MaxTile = b.MaxTile()
	res.End = time.Now()
	return res, nil
}
