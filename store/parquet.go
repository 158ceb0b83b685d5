// Package store archives played episodes as Parquet files.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"

	"github.com/brensch/ntuple2048/selfplay"
)

const (
	EpisodeSchema = "ntuple_episode_v1"
	StepSchema    = "ntuple_step_v1"
)

// EpisodeRow is one finished episode.
//
// FinalBoard is the packed board: 16 cells of 4 bits, cell 0 in the lowest
// nibble, each nibble a rank (tile value 2^rank, 0 empty).
type EpisodeRow struct {
	EpisodeID  string  `parquet:"episode_id"`
	Index      int64   `parquet:"index"`
	Player     string  `parquet:"player,dict"`
	Score      int64   `parquet:"score"`
	Steps      int32   `parquet:"steps"`
	MaxTile    int32   `parquet:"max_tile"`
	DurationMs float64 `parquet:"duration_ms"`
	Alpha      float32 `parquet:"alpha"`
	TDError    float32 `parquet:"td_error"`
	FinalBoard int64   `parquet:"final_board"`
	StartedAt  int64   `parquet:"started_at_ms"`
}

// StepRow is one applied action. Action is the opcode of the move: 0..3 are
// slides up, right, down, left; placements are 16*tile + position.
type StepRow struct {
	EpisodeID string `parquet:"episode_id,dict"`
	Turn      int32  `parquet:"turn"`
	Role      string `parquet:"role,dict"`
	Action    int32  `parquet:"action"`
	Reward    int32  `parquet:"reward"`
	Before    int64  `parquet:"before"`
	After     int64  `parquet:"after"`
}

func NewEpisodeRow(player string, res selfplay.EpisodeResult, sum selfplay.EpisodeSummary) EpisodeRow {
	return EpisodeRow{
		EpisodeID:  res.ID,
		Index:      int64(sum.Index),
		Player:     player,
		Score:      int64(res.Score),
		Steps:      int32(res.Steps),
		MaxTile:    int32(sum.MaxTile),
		DurationMs: sum.DurationMs,
		Alpha:      sum.Alpha,
		TDError:    sum.TDError,
		FinalBoard: int64(res.Final),
		StartedAt:  res.Start.UnixMilli(),
	}
}

// NewStepRows converts the recorded steps of an episode. It returns nil when
// the episode was played without RecordSteps.
func NewStepRows(res selfplay.EpisodeResult) []StepRow {
	if len(res.Records) == 0 {
		return nil
	}
	rows := make([]StepRow, len(res.Records))
	for i, r := range res.Records {
		rows[i] = StepRow{
			EpisodeID: res.ID,
			Turn:      int32(r.Turn),
			Role:      r.Role,
			Action:    int32(r.Action.Opcode()),
			Reward:    int32(r.Reward),
			Before:    int64(r.Before),
			After:     int64(r.After),
		}
	}
	return rows
}

// WriteParquetAtomic writes rows into outDir/tmp and then moves the file into
// outDir, so readers globbing outDir never observe a partial file.
func WriteParquetAtomic[T any](outDir, prefix, schema string, rows []T) (string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	tmpDir := filepath.Join(outDir, "tmp")
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return "", fmt.Errorf("create tmp dir: %w", err)
	}

	name := fmt.Sprintf("%s_%d.parquet", prefix, time.Now().UnixNano())
	finalPath := filepath.Join(outDir, name)
	tmpPath := filepath.Join(tmpDir, name+".tmp")
	_ = os.Remove(tmpPath)

	if err := parquet.WriteFile(tmpPath, rows,
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedBetterCompression}),
		parquet.KeyValueMetadata("schema", schema),
	); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("write parquet: %w", err)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("rename parquet: %w", err)
	}
	return finalPath, nil
}

func ReadEpisodes(path string) ([]EpisodeRow, error) {
	rows, err := parquet.ReadFile[EpisodeRow](path)
	if err != nil {
		return nil, fmt.Errorf("read episodes %s: %w", path, err)
	}
	return rows, nil
}

func ReadSteps(path string) ([]StepRow, error) {
	rows, err := parquet.ReadFile[StepRow](path)
	if err != nil {
		return nil, fmt.Errorf("read steps %s: %w", path, err)
	}
	return rows, nil
}
