package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/brensch/ntuple2048/agent"
	"github.com/brensch/ntuple2048/internal/envflag"
	"github.com/brensch/ntuple2048/logging"
	"github.com/brensch/ntuple2048/monitor"
	"github.com/brensch/ntuple2048/ntuple"
	"github.com/brensch/ntuple2048/selfplay"
	"github.com/brensch/ntuple2048/store"
	"github.com/brensch/ntuple2048/tui"
)

func main() {
	total := flag.Int("total", envflag.Int("NTUPLE_TOTAL", 1000), "Number of training episodes")
	block := flag.Int("block", envflag.Int("NTUPLE_BLOCK", 1000), "Episodes per statistics block")
	limit := flag.Int("limit", envflag.Int("NTUPLE_LIMIT", 1000), "Episodes kept in memory for statistics")
	play := flag.String("play", envflag.String("NTUPLE_PLAY", ""), "Player construction string, e.g. \"alpha=0.1 init\"")
	evil := flag.String("evil", envflag.String("NTUPLE_EVIL", ""), "Environment construction string, e.g. \"seed=1\"")
	load := flag.String("load", envflag.String("NTUPLE_LOAD", ""), "Load weights from this file (overrides load= in --play)")
	save := flag.String("save", envflag.String("NTUPLE_SAVE", ""), "Save weights to this file after training (overrides save= in --play)")
	outDir := flag.String("out-dir", envflag.String("NTUPLE_OUT_DIR", ""), "Archive episodes as parquet under this directory; empty disables")
	archiveSteps := flag.Bool("archive-steps", envflag.Bool("NTUPLE_ARCHIVE_STEPS", false), "Also archive every applied action")
	archiveRotate := flag.Int("archive-rotate", envflag.Int("NTUPLE_ARCHIVE_ROTATE", 1000), "Episodes per archive file")
	evalGames := flag.Int("eval", envflag.Int("NTUPLE_EVAL", 0), "Greedy evaluation games with frozen weights after training")
	evalWorkers := flag.Int("eval-workers", envflag.Int("NTUPLE_EVAL_WORKERS", 4), "Goroutines used for evaluation")
	evalSeed := flag.Int64("eval-seed", envflag.Int64("NTUPLE_EVAL_SEED", 1), "Environment seed of the first evaluation game")
	monitorAddr := flag.String("monitor", envflag.String("NTUPLE_MONITOR", ""), "Serve the websocket monitor on this address, e.g. :8090")
	useTUI := flag.Bool("tui", envflag.Bool("NTUPLE_TUI", false), "Show the terminal dashboard")
	logFormat := flag.String("log-format", envflag.String("NTUPLE_LOG_FORMAT", "console"), "console or json")
	logLevel := flag.String("log-level", envflag.String("NTUPLE_LOG_LEVEL", "info"), "debug, info, warn or error")
	logFile := flag.String("log-file", envflag.String("NTUPLE_LOG_FILE", ""), "Write logs to this file instead of stderr (defaults to ntuple2048.log with --tui)")
	flag.Parse()

	if *total <= 0 {
		log.Fatalf("--total must be positive, got %d", *total)
	}

	var logOut io.Writer = os.Stderr
	if *logFile == "" && *useTUI {
		*logFile = "ntuple2048.log"
	}
	if *logFile != "" {
		f, err := os.OpenFile(*logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			log.Fatalf("Failed to open log file: %v", err)
		}
		defer f.Close()
		logOut = f
	}
	logger, err := logging.New(logOut, *logFormat, *logLevel)
	if err != nil {
		log.Fatalf("Invalid logging flags: %v", err)
	}
	slog.SetDefault(logger)

	playArgs := *play
	if *load != "" {
		playArgs += " load=" + *load
	}
	if *save != "" {
		playArgs += " save=" + *save
	}

	player, err := agent.NewPlayer(playArgs, nil)
	if err != nil {
		var wfe *ntuple.WeightFileError
		if errors.As(err, &wfe) {
			log.Fatalf("Failed to load weights: %v", err)
		}
		log.Fatalf("Invalid --play: %v", err)
	}
	env, err := agent.NewRandomEnv(*evil)
	if err != nil {
		log.Fatalf("Invalid --evil: %v", err)
	}
	logger.Info("agents ready", "play", player.Config().String(), "evil", env.Config().String())

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(sigCtx)
	defer cancel()

	var onEpisode []func(selfplay.EpisodeResult, selfplay.EpisodeSummary)
	var onBlock []func(selfplay.BlockSummary)
	var background sync.WaitGroup

	var archive *store.Archive
	if *outDir != "" {
		archive, err = store.NewArchive(*outDir, store.ArchiveOptions{
			Steps:  *archiveSteps,
			Rotate: *archiveRotate,
			Player: player.Name(),
			Logger: logger,
		})
		if err != nil {
			log.Fatalf("Failed to open archive: %v", err)
		}
		onEpisode = append(onEpisode, func(res selfplay.EpisodeResult, sum selfplay.EpisodeSummary) {
			if err := archive.Add(res, sum); err != nil {
				logger.Error("archive episode", "id", res.ID, "err", err)
			}
		})
	}

	if *monitorAddr != "" {
		hub := monitor.NewHub("ntuple2048", logger)
		background.Add(1)
		go func() {
			defer background.Done()
			if err := monitor.Serve(ctx, *monitorAddr, hub); err != nil {
				logger.Error("monitor stopped", "err", err)
			}
		}()
		onEpisode = append(onEpisode, func(_ selfplay.EpisodeResult, sum selfplay.EpisodeSummary) { hub.PublishEpisode(sum) })
		onBlock = append(onBlock, hub.PublishBlock)
	}

	var feed *tui.Feed
	if *useTUI {
		feed = tui.NewFeed()
		onEpisode = append(onEpisode, func(_ selfplay.EpisodeResult, sum selfplay.EpisodeSummary) { feed.Episode(sum) })
		onBlock = append(onBlock, feed.Block)
	} else {
		onBlock = append(onBlock, func(b selfplay.BlockSummary) { fmt.Print(b.Format()) })
	}

	hooks := selfplay.Hooks{
		OnEpisode: func(res selfplay.EpisodeResult, sum selfplay.EpisodeSummary) {
			for _, fn := range onEpisode {
				fn(res, sum)
			}
		},
		OnBlock: func(b selfplay.BlockSummary) {
			for _, fn := range onBlock {
				fn(b)
			}
		},
	}
	cfg := selfplay.TrainConfig{
		Total:       *total,
		Block:       *block,
		Limit:       *limit,
		RecordSteps: archive != nil && *archiveSteps,
		Logger:      logger,
	}

	var trainErr error
	if feed != nil {
		done := make(chan struct{})
		go func() {
			defer close(done)
			_, trainErr = selfplay.Train(ctx, player, env, cfg, hooks)
			feed.Done(trainErr)
		}()
		if err := tui.Run(ctx, tui.NewModel("ntuple2048 "+player.Config().String(), *total, feed), feed); err != nil {
			logger.Error("dashboard", "err", err)
		}
		// Leaving the dashboard stops training after the current episode.
		cancel()
		<-done
	} else {
		_, trainErr = selfplay.Train(ctx, player, env, cfg, hooks)
	}

	switch {
	case trainErr == nil:
	case errors.Is(trainErr, context.Canceled):
		logger.Info("training interrupted")
	default:
		logger.Error("training failed", "err", trainErr)
	}

	if archive != nil {
		if err := archive.Close(); err != nil {
			logger.Error("close archive", "err", err)
		}
	}

	if err := player.Close(); err != nil {
		log.Fatalf("Failed to save weights: %v", err)
	}

	if *evalGames > 0 && sigCtx.Err() == nil {
		_, summary, err := selfplay.Evaluate(sigCtx, player.Network(), selfplay.EvalConfig{
			Games:   *evalGames,
			Workers: *evalWorkers,
			Seed:    *evalSeed,
			Logger:  logger,
		})
		if err != nil {
			logger.Error("evaluation failed", "err", err)
		} else {
			fmt.Printf("evaluation, %d games\n", *evalGames)
			fmt.Print(summary.Format())
		}
	}

	cancel()
	background.Wait()

	if trainErr != nil && !errors.Is(trainErr, context.Canceled) {
		os.Exit(1)
	}
}
