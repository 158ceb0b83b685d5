package selfplay

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/brensch/ntuple2048/agent"
	"github.com/brensch/ntuple2048/game"
	"github.com/brensch/ntuple2048/ntuple"
)

type EvalConfig struct {
	Games   int
	Workers int
	// Seed is the environment seed of game 0; game i uses Seed+i, so results
	// do not depend on the number of workers.
	Seed   int64
	Logger *slog.Logger
}

// Evaluate plays cfg.Games greedy games with frozen weights spread over
// cfg.Workers goroutines. Every worker gets its own alpha=0 player; the
// network is only read, so it is shared without locking.
func Evaluate(ctx context.Context, net *ntuple.Network, cfg EvalConfig) ([]EpisodeSummary, BlockSummary, error) {
	if cfg.Games < 0 {
		return nil, BlockSummary{}, fmt.Errorf("evaluate: games must not be negative, got %d", cfg.Games)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	if workers > cfg.Games {
		workers = cfg.Games
	}

	results := make([]EpisodeSummary, cfg.Games)
	var next atomic.Int64
	g, gctx := errgroup.WithContext(ctx)

	for w := 0; w < workers; w++ {
		workerID := w
		g.Go(func() error {
			player, err := agent.NewPlayerFromConfig(agent.Config{Name: fmt.Sprintf("eval%d", workerID), Role: agent.RolePlayer}, net)
			if err != nil {
				return err
			}
			for {
				if err := gctx.Err(); err != nil {
					return err
				}
				i := int(next.Add(1) - 1)
				if i >= cfg.Games {
					return nil
				}

				env, err := agent.NewRandomEnv(fmt.Sprintf("seed=%d", cfg.Seed+int64(i)))
				if err != nil {
					return err
				}
				res, err := PlayEpisode(player, env, PlayOptions{})
				if err != nil {
					return fmt.Errorf("worker %d game %d: %w", workerID, i, err)
				}
				results[i] = EpisodeSummary{
					ID:         res.ID,
					Index:      i + 1,
					Score:      res.Score,
					Steps:      res.Steps,
					MaxTile:    game.TileValue(res.MaxTile),
					DurationMs: float64(res.Duration().Microseconds()) / 1000,
				}
			}
		})
	}

	if err := g.Wait(); err != nil {
		return nil, BlockSummary{}, err
	}

	block := Summarize(results, nil)
	logger.Info("evaluation done", "games", cfg.Games, "workers", workers, "avg", block.AvgScore, "max", block.MaxScore)
	return results, block, nil
}
