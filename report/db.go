// Package report summarises archived episodes with DuckDB.
package report

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/brensch/ntuple2048/game"
	"github.com/brensch/ntuple2048/selfplay"
	"github.com/brensch/ntuple2048/store"
)

// Overview covers every archived episode.
type Overview struct {
	Episodes int64   `json:"episodes"`
	AvgScore float64 `json:"avg_score"`
	MaxScore int64   `json:"max_score"`
	MaxTile  int64   `json:"max_tile"`
	Steps    int64   `json:"steps"`
}

// Open creates an in-memory DuckDB with "episodes" and "steps" views over the
// parquet archives under roots. Files still in a tmp/ directory are skipped.
// Roots without archives yield empty views.
func Open(roots []string) (*sql.DB, error) {
	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return nil, err
	}
	// Basic pragmas; ignore errors for compatibility across versions.
	_, _ = db.Exec("PRAGMA threads=4")

	if err := createView(db, "episodes", store.EpisodesDir, roots, emptyEpisodes); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := createView(db, "steps", store.StepsDir, roots, emptySteps); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

const emptyEpisodes = `SELECT
	NULL::VARCHAR AS episode_id,
	NULL::BIGINT AS "index",
	NULL::VARCHAR AS player,
	NULL::BIGINT AS score,
	NULL::INTEGER AS steps,
	NULL::INTEGER AS max_tile,
	NULL::DOUBLE AS duration_ms,
	NULL::REAL AS alpha,
	NULL::REAL AS td_error,
	NULL::BIGINT AS final_board,
	NULL::BIGINT AS started_at_ms,
	NULL::VARCHAR AS filename`

const emptySteps = `SELECT
	NULL::VARCHAR AS episode_id,
	NULL::INTEGER AS turn,
	NULL::VARCHAR AS role,
	NULL::INTEGER AS action,
	NULL::INTEGER AS reward,
	NULL::BIGINT AS "before",
	NULL::BIGINT AS "after",
	NULL::VARCHAR AS filename`

// createView points view at every <prefix>_*.parquet file below roots.
func createView(db *sql.DB, view, prefix string, roots []string, empty string) error {
	globs := make([]string, 0, len(roots))
	for _, root := range roots {
		root = strings.TrimSpace(root)
		if root == "" || !hasArchiveFiles(root, prefix) {
			continue
		}
		glob := filepath.Join(root, "**", prefix+"_*.parquet")
		globs = append(globs, "'"+escapeSQLString(glob)+"'")
	}

	if len(globs) == 0 {
		_, err := db.Exec(`CREATE OR REPLACE VIEW ` + view + ` AS SELECT * FROM (` + empty + `) WHERE 1=0`)
		return err
	}

	_, err := db.Exec(`CREATE OR REPLACE VIEW ` + view + ` AS
		SELECT * FROM read_parquet([` + strings.Join(globs, ",") + `], filename=true, union_by_name=true)
		WHERE NOT regexp_matches(filename, '[/\\]tmp[/\\][^/\\]*$')`)
	return err
}

// hasArchiveFiles reports whether root holds at least one finalized file
// with the given prefix. read_parquet fails on a glob that matches nothing.
func hasArchiveFiles(root, prefix string) bool {
	found := false
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if d.Name() == "tmp" {
				return filepath.SkipDir
			}
			return nil
		}
		name := d.Name()
		if strings.HasPrefix(name, prefix+"_") && strings.HasSuffix(name, ".parquet") {
			found = true
			return filepath.SkipAll
		}
		return nil
	})
	return found
}

func escapeSQLString(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// ParseRoots splits a comma-separated list, dropping blanks and duplicates.
func ParseRoots(csv string) []string {
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	seen := make(map[string]bool, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

func QueryOverview(ctx context.Context, db *sql.DB) (Overview, error) {
	var o Overview
	err := db.QueryRowContext(ctx, `SELECT
			COUNT(*)::BIGINT,
			COALESCE(AVG(score), 0)::DOUBLE,
			COALESCE(MAX(score), 0)::BIGINT,
			COALESCE(MAX(max_tile), 0)::BIGINT,
			COALESCE(SUM(steps), 0)::BIGINT
		FROM episodes`).Scan(&o.Episodes, &o.AvgScore, &o.MaxScore, &o.MaxTile, &o.Steps)
	return o, err
}

// QueryBlocks groups episodes into blocks of size episodes in archive order
// (start time, then index within the run) and summarises each block.
func QueryBlocks(ctx context.Context, db *sql.DB, size int) ([]selfplay.BlockSummary, error) {
	if size <= 0 {
		size = 1000
	}
	query := `WITH ordered AS (
		SELECT
			score, steps, duration_ms,
			row_number() OVER (ORDER BY started_at_ms, "index", episode_id) AS rn
		FROM episodes
	)
	SELECT
		MIN(rn)::BIGINT AS from_ep,
		MAX(rn)::BIGINT AS to_ep,
		AVG(score)::DOUBLE AS avg_score,
		MAX(score)::BIGINT AS max_score,
		SUM(steps)::BIGINT AS steps,
		SUM(duration_ms)::DOUBLE AS duration_ms
	FROM ordered
	GROUP BY (rn - 1) // %d
	ORDER BY from_ep ASC`

	rows, err := db.QueryContext(ctx, fmt.Sprintf(query, size))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []selfplay.BlockSummary
	for rows.Next() {
		var b selfplay.BlockSummary
		var from, to, maxScore, steps int64
		var durMs float64
		if err := rows.Scan(&from, &to, &b.AvgScore, &maxScore, &steps, &durMs); err != nil {
			return nil, err
		}
		b.From, b.To, b.MaxScore = int(from), int(to), int(maxScore)
		if durMs > 0 {
			b.OpsPerSec = float64(steps) / (durMs / 1000)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// QueryTileRates returns, for every tile up to the best one, the share of
// episodes that reached it and the share that ended on it.
func QueryTileRates(ctx context.Context, db *sql.DB) ([]selfplay.TileRate, error) {
	rows, err := db.QueryContext(ctx, `SELECT max_tile::BIGINT, COUNT(*)::BIGINT
		FROM episodes
		GROUP BY max_tile
		ORDER BY max_tile DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ended := make(map[int]int)
	top, total := 0, 0
	for rows.Next() {
		var tile, n int64
		if err := rows.Scan(&tile, &n); err != nil {
			return nil, err
		}
		ended[int(tile)] = int(n)
		total += int(n)
		if int(tile) > top {
			top = int(tile)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if total == 0 {
		return nil, nil
	}

	var rates []selfplay.TileRate
	reached := 0
	for tile := top; tile >= 2; tile /= 2 {
		reached += ended[tile]
		rates = append([]selfplay.TileRate{{
			Tile:    tile,
			Reached: float64(reached) / float64(total),
			Ended:   float64(ended[tile]) / float64(total),
		}}, rates...)
		if reached == total {
			break
		}
	}
	return rates, nil
}

// EpisodeInfo is one archived episode.
type EpisodeInfo struct {
	EpisodeID  string  `json:"episode_id"`
	Index      int64   `json:"index"`
	Player     string  `json:"player"`
	Score      int64   `json:"score"`
	Steps      int64   `json:"steps"`
	MaxTile    int64   `json:"max_tile"`
	DurationMs float64 `json:"duration_ms"`
	StartedAt  int64   `json:"started_at_ms"`
	File       string  `json:"file"`
}

// QueryEpisodes lists episodes, best score first.
func QueryEpisodes(ctx context.Context, db *sql.DB, limit, offset int) ([]EpisodeInfo, error) {
	rows, err := db.QueryContext(ctx, `SELECT
			episode_id, "index"::BIGINT, COALESCE(player, ''), score::BIGINT, steps::BIGINT,
			max_tile::BIGINT, duration_ms::DOUBLE, started_at_ms::BIGINT, filename
		FROM episodes
		ORDER BY score DESC, episode_id
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]EpisodeInfo, 0, limit)
	for rows.Next() {
		var e EpisodeInfo
		if err := rows.Scan(&e.EpisodeID, &e.Index, &e.Player, &e.Score, &e.Steps, &e.MaxTile, &e.DurationMs, &e.StartedAt, &e.File); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// StepInfo is one archived action with its boards unpacked into tile values.
type StepInfo struct {
	Turn   int32           `json:"turn"`
	Role   string          `json:"role"`
	Action string          `json:"action"`
	Reward int32           `json:"reward"`
	Before [game.Cells]int `json:"before"`
	After  [game.Cells]int `json:"after"`
}

// QuerySteps returns the archived steps of one episode in turn order. It
// returns sql.ErrNoRows when none were archived.
func QuerySteps(ctx context.Context, db *sql.DB, episodeID string) ([]StepInfo, error) {
	rows, err := db.QueryContext(ctx, `SELECT turn::INTEGER, role, action::INTEGER, reward::INTEGER, "before"::BIGINT, "after"::BIGINT
		FROM steps
		WHERE episode_id = ?
		ORDER BY turn`, episodeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StepInfo
	for rows.Next() {
		var s StepInfo
		var action int32
		var before, after int64
		if err := rows.Scan(&s.Turn, &s.Role, &action, &s.Reward, &before, &after); err != nil {
			return nil, err
		}
		s.Action = game.ActionFromOpcode(int(action)).String()
		s.Before = tiles(game.Board(before))
		s.After = tiles(game.Board(after))
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, sql.ErrNoRows
	}
	return out, nil
}

func tiles(b game.Board) [game.Cells]int {
	var out [game.Cells]int
	for pos, r := range b.Ranks() {
		out[pos] = game.TileValue(r)
	}
	return out
}
