package store

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/brensch/ntuple2048/selfplay"
)

const (
	EpisodesDir = "episodes"
	StepsDir    = "steps"
)

type ArchiveOptions struct {
	// Steps also archives every applied action; episodes must then be played
	// with RecordSteps.
	Steps bool
	// Rotate starts a new file after this many episodes; <= 0 means 1000.
	Rotate int
	Player string
	Logger *slog.Logger
}

// Archive writes episodes to <root>/episodes and, optionally, their steps to
// <root>/steps. Files become visible as each batch is finalized.
type Archive struct {
	root string
	opts ArchiveOptions
	log  *slog.Logger

	episodes *BatchWriter[EpisodeRow]
	steps    *BatchWriter[StepRow]
	files    []string
}

func NewArchive(root string, opts ArchiveOptions) (*Archive, error) {
	if root == "" {
		return nil, fmt.Errorf("archive root is required")
	}
	if opts.Rotate <= 0 {
		opts.Rotate = 1000
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Archive{root: root, opts: opts, log: logger.With("component", "archive")}, nil
}

// Files lists the finalized parquet files so far.
func (a *Archive) Files() []string {
	return append([]string(nil), a.files...)
}

// Add appends one episode, rotating files when the batch is full.
func (a *Archive) Add(res selfplay.EpisodeResult, sum selfplay.EpisodeSummary) error {
	if a.episodes == nil {
		w, err := NewBatchWriter[EpisodeRow](filepath.Join(a.root, EpisodesDir), "episodes", EpisodeSchema)
		if err != nil {
			return err
		}
		a.episodes = w
	}
	if err := a.episodes.WriteRows([]EpisodeRow{NewEpisodeRow(a.opts.Player, res, sum)}); err != nil {
		return fmt.Errorf("write episode %s: %w", res.ID, err)
	}
	a.episodes.NoteEpisodeWritten()

	if a.opts.Steps {
		if a.steps == nil {
			w, err := NewBatchWriter[StepRow](filepath.Join(a.root, StepsDir), "steps", StepSchema)
			if err != nil {
				return err
			}
			a.steps = w
		}
		if err := a.steps.WriteRows(NewStepRows(res)); err != nil {
			return fmt.Errorf("write steps %s: %w", res.ID, err)
		}
		a.steps.NoteEpisodeWritten()
	}

	if a.episodes.BufferedEpisodes() >= a.opts.Rotate {
		return a.Flush()
	}
	return nil
}

// Flush finalizes the current batch files. The next Add opens new ones.
func (a *Archive) Flush() error {
	var firstErr error
	if a.episodes != nil {
		if err := a.finalize(a.episodes.Finalize()); err != nil {
			firstErr = err
		}
		a.episodes = nil
	}
	if a.steps != nil {
		if err := a.finalize(a.steps.Finalize()); err != nil && firstErr == nil {
			firstErr = err
		}
		a.steps = nil
	}
	return firstErr
}

func (a *Archive) finalize(path string, rows, episodes int, err error) error {
	if err != nil {
		return err
	}
	if path == "" {
		return nil
	}
	a.files = append(a.files, path)
	a.log.Info("archived batch", "path", path, "rows", rows, "episodes", episodes)
	return nil
}

func (a *Archive) Close() error {
	return a.Flush()
}
