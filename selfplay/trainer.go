package selfplay

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/brensch/ntuple2048/agent"
)

type TrainConfig struct {
	Total       int // episodes to play
	Block       int // episodes per summary; <= 0 means Total
	Limit       int // episodes kept for statistics; <= 0 keeps all
	RecordSteps bool
	Logger      *slog.Logger
}

// Hooks receive results as training progresses. Both are optional and run
// on the training goroutine, so they must not block for long.
type Hooks struct {
	OnEpisode func(EpisodeResult, EpisodeSummary)
	OnBlock   func(BlockSummary)
}

// learner is implemented by agents that report their learning state.
type learner interface {
	Alpha() float32
	LastUpdate() agent.UpdateStats
}

// Train plays cfg.Total episodes sequentially. The player owns its weights
// for the whole run; nothing else writes them. Cancellation is checked
// between episodes only, so an episode always finishes and learns.
func Train(ctx context.Context, player, env agent.Agent, cfg TrainConfig, hooks Hooks) (*Stats, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	block := cfg.Block
	if block <= 0 {
		block = cfg.Total
	}
	limit := cfg.Limit
	if limit > 0 && limit < block {
		logger.Warn("limit smaller than block; raising it", "limit", limit, "block", block)
		limit = block
	}
	stats := NewStats(limit)

	logger.Info("training started", "total", cfg.Total, "block", block, "player", player.Name(), "env", env.Name())

	for i := 0; i < cfg.Total; i++ {
		select {
		case <-ctx.Done():
			logger.Info("training stopped", "episodes", stats.Total(), "reason", ctx.Err())
			return stats, ctx.Err()
		default:
		}

		res, err := PlayEpisode(player, env, PlayOptions{RecordSteps: cfg.RecordSteps})
		if err != nil {
			return stats, fmt.Errorf("episode %d: %w", i+1, err)
		}

		var alpha, tdErr float32
		if l, ok := player.(learner); ok {
			alpha = l.Alpha()
			tdErr = l.LastUpdate().MeanAbsError
		}
		sum := stats.Add(res, alpha, tdErr)
		if hooks.OnEpisode != nil {
			hooks.OnEpisode(res, sum)
		}

		if stats.Total()%block == 0 {
			b := stats.Block(block)
			logger.Info("block done", "episodes", b.To, "avg", b.AvgScore, "max", b.MaxScore, "ops", b.OpsPerSec)
			if hooks.OnBlock != nil {
				hooks.OnBlock(b)
			}
		}
	}

	logger.Info("training finished", "episodes", stats.Total())
	return stats, nil
}
