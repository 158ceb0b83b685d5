// Package agent implements the players and environments that take turns on a board.
//
// The set of agents is closed: the TD learning Player, the DummyPlayer that
// slides randomly, and the RandomEnv that places tiles.
package agent

import (
	"math/rand"
	"time"

	"github.com/brensch/ntuple2048/game"
	"github.com/brensch/ntuple2048/rules"
)

// Agent is one side of an episode.
type Agent interface {
	OpenEpisode()
	CloseEpisode()
	TakeAction(b game.Board) game.Action
	Name() string
	Role() string
}

const (
	RolePlayer      = "player"
	RoleEnvironment = "environment"
)

// newRand seeds from cfg.Seed when present, otherwise from the clock.
func newRand(cfg Config) *rand.Rand {
	seed := time.Now().UnixNano()
	if cfg.Seed != nil {
		seed = *cfg.Seed
	}
	return rand.New(rand.NewSource(seed))
}

// RandomEnv places a 2 (90%) or a 4 (10%) on a uniformly chosen empty cell.
type RandomEnv struct {
	cfg      Config
	rng      *rand.Rand
	settings game.SpawnSettings
}

// NewRandomEnv builds an environment from a construction string; it honours seed.
func NewRandomEnv(args string) (*RandomEnv, error) {
	cfg, err := ParseConfig("name=random role=" + RoleEnvironment + " " + args)
	if err != nil {
		return nil, err
	}
	return &RandomEnv{cfg: cfg, rng: newRand(cfg), settings: game.DefaultSpawnSettings}, nil
}

func (e *RandomEnv) OpenEpisode()   {}
func (e *RandomEnv) CloseEpisode()  {}
func (e *RandomEnv) Name() string   { return e.cfg.Name }
func (e *RandomEnv) Role() string   { return e.cfg.Role }
func (e *RandomEnv) Config() Config { return e.cfg }

// TakeAction returns a placement, or none when the board is full.
func (e *RandomEnv) TakeAction(b game.Board) game.Action {
	pos, tile, ok := game.ChooseSpawn(b, e.rng, e.settings, 0)
	if !ok {
		return game.NoAction()
	}
	return game.PlaceAction(pos, tile)
}

// DummyPlayer slides in a random legal direction.
type DummyPlayer struct {
	cfg Config
	rng *rand.Rand
}

// NewDummyPlayer builds a random player from a construction string; it honours seed.
func NewDummyPlayer(args string) (*DummyPlayer, error) {
	cfg, err := ParseConfig("name=dummy role=" + RolePlayer + " " + args)
	if err != nil {
		return nil, err
	}
	return &DummyPlayer{cfg: cfg, rng: newRand(cfg)}, nil
}

func (p *DummyPlayer) OpenEpisode()  {}
func (p *DummyPlayer) CloseEpisode() {}
func (p *DummyPlayer) Name() string  { return p.cfg.Name }
func (p *DummyPlayer) Role() string  { return p.cfg.Role }

func (p *DummyPlayer) TakeAction(b game.Board) game.Action {
	moves := rules.GetLegalMoves(b)
	if len(moves) == 0 {
		return game.NoAction()
	}
	return game.SlideAction(moves[p.rng.Intn(len(moves))])
}
