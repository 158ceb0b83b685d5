package selfplay

import (
	"fmt"
	"strings"
	"time"

	"github.com/brensch/ntuple2048/game"
)

// EpisodeSummary is the compact per-episode record shared with the monitor,
// the dashboard and the archive.
type EpisodeSummary struct {
	ID         string  `json:"id"`
	Index      int     `json:"index"`
	Score      int     `json:"score"`
	Steps      int     `json:"steps"`
	MaxTile    int     `json:"max_tile"`
	DurationMs float64 `json:"duration_ms"`
	Alpha      float32 `json:"alpha"`
	TDError    float32 `json:"td_error,omitempty"`
}

// TileRate is the share of episodes in a block that reached a tile.
type TileRate struct {
	Tile    int     `json:"tile"`
	Reached float64 `json:"reached"` // max tile >= Tile
	Ended   float64 `json:"ended"`   // max tile == Tile
}

// BlockSummary aggregates consecutive episodes.
type BlockSummary struct {
	From      int        `json:"from"` // first episode index, 1-based
	To        int        `json:"to"`
	AvgScore  float64    `json:"avg_score"`
	MaxScore  int        `json:"max_score"`
	OpsPerSec float64    `json:"ops_per_sec"`
	Tiles     []TileRate `json:"tiles"`
}

// Stats keeps the most recent episodes for block summaries.
type Stats struct {
	limit    int
	total    int
	recent   []EpisodeSummary
	duration []time.Duration
}

// NewStats keeps at most limit episodes in memory; limit <= 0 keeps all.
func NewStats(limit int) *Stats {
	return &Stats{limit: limit}
}

func (s *Stats) Total() int { return s.total }

// Add records an episode and returns its summary.
func (s *Stats) Add(r EpisodeResult, alpha, tdError float32) EpisodeSummary {
	s.total++
	sum := EpisodeSummary{
		ID:         r.ID,
		Index:      s.total,
		Score:      r.Score,
		Steps:      r.Steps,
		MaxTile:    game.TileValue(r.MaxTile),
		DurationMs: float64(r.Duration().Microseconds()) / 1000,
		Alpha:      alpha,
		TDError:    tdError,
	}
	s.recent = append(s.recent, sum)
	s.duration = append(s.duration, r.Duration())
	if s.limit > 0 && len(s.recent) > s.limit {
		drop := len(s.recent) - s.limit
		s.recent = append(s.recent[:0], s.recent[drop:]...)
		s.duration = append(s.duration[:0], s.duration[drop:]...)
	}
	return sum
}

// Block summarises the last n episodes still held in memory.
func (s *Stats) Block(n int) BlockSummary {
	if n <= 0 || n > len(s.recent) {
		n = len(s.recent)
	}
	return Summarize(s.recent[len(s.recent)-n:], s.duration[len(s.duration)-n:])
}

// Summarize aggregates episodes. durations may be nil, in which case the
// per-episode DurationMs fields are used.
func Summarize(eps []EpisodeSummary, durations []time.Duration) BlockSummary {
	var b BlockSummary
	if len(eps) == 0 {
		return b
	}
	b.From = eps[0].Index
	b.To = eps[len(eps)-1].Index

	var sum float64
	var steps int
	var elapsed time.Duration
	ended := make(map[int]int)
	for i, e := range eps {
		sum += float64(e.Score)
		if e.Score > b.MaxScore {
			b.MaxScore = e.Score
		}
		steps += e.Steps
		if durations != nil {
			elapsed += durations[i]
		} else {
			elapsed += time.Duration(e.DurationMs * float64(time.Millisecond))
		}
		ended[e.MaxTile]++
	}
	b.AvgScore = sum / float64(len(eps))
	if elapsed > 0 {
		b.OpsPerSec = float64(steps) / elapsed.Seconds()
	}

	top := 0
	for tile := range ended {
		if tile > top {
			top = tile
		}
	}
	reached := 0
	for tile := top; tile >= 2; tile /= 2 {
		reached += ended[tile]
		b.Tiles = append(b.Tiles, TileRate{
			Tile:    tile,
			Reached: float64(reached) / float64(len(eps)),
			Ended:   float64(ended[tile]) / float64(len(eps)),
		})
		// tiles below the smallest final tile were reached by everyone
		if reached == len(eps) {
			break
		}
	}
	// ascending tile order reads like a histogram
	for i, j := 0, len(b.Tiles)-1; i < j; i, j = i+1, j-1 {
		b.Tiles[i], b.Tiles[j] = b.Tiles[j], b.Tiles[i]
	}
	return b
}

// Format renders a block the way the training log prints it:
//
//	1000	avg = 2315, max = 7028, ops = 251734
//		128	99.5%	(3.1%)
func (b BlockSummary) Format() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d\tavg = %.0f, max = %d, ops = %.0f\n", b.To, b.AvgScore, b.MaxScore, b.OpsPerSec)
	for _, t := range b.Tiles {
		fmt.Fprintf(&sb, "\t%d\t%.1f%%\t(%.1f%%)\n", t.Tile, t.Reached*100, t.Ended*100)
	}
	return sb.String()
}
