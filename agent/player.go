package agent

import (
	"fmt"
	"log/slog"

	"github.com/chewxy/math32"

	"github.com/brensch/ntuple2048/game"
	"github.com/brensch/ntuple2048/ntuple"
)

// Step is one player turn: the reward earned and the afterstate it produced.
type Step struct {
	Reward int
	After  game.Board
}

// UpdateStats describes the last backward TD pass.
type UpdateStats struct {
	Steps        int
	MeanAbsError float32
}

// Player chooses the slide maximising reward plus the estimated value of the
// afterstate and learns that value with backward TD(0) at episode end.
//
// The Player is the only writer of its Network. Sharing one Network between
// Players is only safe when every one of them has alpha 0.
type Player struct {
	cfg     Config
	net     *ntuple.Network
	alpha   float32
	history []Step
	last    UpdateStats
	log     *slog.Logger
}

// NewPlayer builds a learning player around net. It honours init, load,
// alpha and save. A nil net gets a zeroed network over the default patterns.
// A load failure is returned as *ntuple.WeightFileError.
func NewPlayer(args string, net *ntuple.Network) (*Player, error) {
	cfg, err := ParseConfig("name=td role=" + RolePlayer + " " + args)
	if err != nil {
		return nil, err
	}
	return NewPlayerFromConfig(cfg, net)
}

func NewPlayerFromConfig(cfg Config, net *ntuple.Network) (*Player, error) {
	if cfg.Alpha < 0 {
		return nil, fmt.Errorf("alpha %v must not be negative", cfg.Alpha)
	}

	logger := slog.Default().With("agent", cfg.Name)

	if net == nil || cfg.Init != nil {
		patterns := ntuple.DefaultPatterns
		if net != nil {
			patterns = net.Patterns()
		}
		fresh, err := ntuple.New(patterns)
		if err != nil {
			return nil, err
		}
		if net == nil {
			net = fresh
		} else {
			*net = *fresh
		}
	}

	if cfg.Load != "" {
		if err := net.Load(cfg.Load); err != nil {
			return nil, err
		}
		st := net.Stats()
		logger.Info("loaded weights", "path", cfg.Load, "tables", st.Tables, "non_zero", st.NonZero, "max_abs", st.MaxAbs)
	}

	return &Player{cfg: cfg, net: net, alpha: cfg.Alpha, log: logger}, nil
}

func (p *Player) Name() string             { return p.cfg.Name }
func (p *Player) Role() string             { return p.cfg.Role }
func (p *Player) Config() Config           { return p.cfg }
func (p *Player) Network() *ntuple.Network { return p.net }
func (p *Player) Alpha() float32           { return p.alpha }
func (p *Player) LastUpdate() UpdateStats  { return p.last }

// Trajectory returns a copy of the steps recorded so far in this episode.
func (p *Player) Trajectory() []Step {
	return append([]Step(nil), p.history...)
}

func (p *Player) OpenEpisode() {
	p.history = p.history[:0]
	p.last = UpdateStats{}
}

// TakeAction evaluates directions in opcode order and keeps the first one
// with the highest reward + value. It returns none when no slide is legal.
func (p *Player) TakeAction(before game.Board) game.Action {
	bestDir := game.Direction(-1)
	var best Step
	var bestScore float32
	for _, dir := range game.Directions {
		after, reward := before.Slide(dir)
		if reward == game.IllegalMove {
			continue
		}
		score := float32(reward) + p.net.Estimate(after)
		if bestDir < 0 || score > bestScore {
			bestDir = dir
			bestScore = score
			best = Step{Reward: reward, After: after}
		}
	}

	if bestDir < 0 {
		return game.NoAction()
	}
	p.history = append(p.history, best)
	return game.SlideAction(bestDir)
}

// CloseEpisode runs backward TD(0) over the trajectory. The final afterstate
// is pulled toward 0; every earlier one toward the next step's reward plus
// the next afterstate's value as estimated at that moment, so adjustments
// made later in the episode already affect earlier targets.
// Nothing changes when the trajectory is empty or alpha is 0.
func (p *Player) CloseEpisode() {
	if len(p.history) == 0 || p.alpha == 0 {
		return
	}

	n := len(p.history)
	var sumAbs float32
	sumAbs += math32.Abs(p.net.Update(p.history[n-1].After, 0, p.alpha))
	for t := n - 2; t >= 0; t-- {
		next := p.history[t+1]
		target := float32(next.Reward) + p.net.Estimate(next.After)
		sumAbs += math32.Abs(p.net.Update(p.history[t].After, target, p.alpha))
	}

	p.last = UpdateStats{Steps: n, MeanAbsError: sumAbs / float32(n)}
	p.log.Debug("td update", "steps", n, "mean_abs_error", p.last.MeanAbsError)
}

// Close saves the weights when save= was configured.
func (p *Player) Close() error {
	if p.cfg.Save == "" {
		return nil
	}
	if err := p.net.Save(p.cfg.Save); err != nil {
		return err
	}
	st := p.net.Stats()
	p.log.Info("saved weights", "path", p.cfg.Save, "non_zero", st.NonZero, "max_abs", st.MaxAbs)
	return nil
}
