package report

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/brensch/ntuple2048/store"
)

func writeEpisodes(t *testing.T, root string, rows []store.EpisodeRow) {
	t.Helper()
	if _, err := store.WriteParquetAtomic(filepath.Join(root, store.EpisodesDir), store.EpisodesDir, store.EpisodeSchema, rows); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestReport_BlocksAndTiles(t *testing.T) {
	root := t.TempDir()
	var rows []store.EpisodeRow
	for i := 1; i <= 4; i++ {
		rows = append(rows, store.EpisodeRow{
			EpisodeID:  "ep" + string(rune('0'+i)),
			Index:      int64(i),
			Score:      int64(100 * i),
			Steps:      10,
			MaxTile:    int32(64 << (i / 2)), // 64 128 128 256
			DurationMs: 500,
			StartedAt:  int64(i),
		})
	}
	writeEpisodes(t, root, rows[:2])
	writeEpisodes(t, root, rows[2:])

	// A half-written batch in tmp/ must be ignored.
	tmpDir := filepath.Join(root, store.EpisodesDir, "tmp")
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if _, err := store.WriteParquetAtomic(tmpDir, "ignored", store.EpisodeSchema, rows); err != nil {
		t.Fatalf("write tmp: %v", err)
	}
	// Give it an episode file name so only the tmp/ filter keeps it out.
	ignored, _ := filepath.Glob(filepath.Join(tmpDir, "ignored_*.parquet"))
	for _, f := range ignored {
		if err := os.Rename(f, filepath.Join(tmpDir, "episodes_999.parquet")); err != nil {
			t.Fatal(err)
		}
	}

	db, err := Open([]string{root})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	ctx := context.Background()

	o, err := QueryOverview(ctx, db)
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	if o.Episodes != 4 || o.AvgScore != 250 || o.MaxScore != 400 || o.MaxTile != 256 || o.Steps != 40 {
		t.Fatalf("overview=%+v", o)
	}

	blocks, err := QueryBlocks(ctx, db, 2)
	if err != nil {
		t.Fatalf("blocks: %v", err)
	}
	if len(blocks) != 2 {
		t.Fatalf("blocks=%+v", blocks)
	}
	if blocks[0].From != 1 || blocks[0].To != 2 || blocks[0].AvgScore != 150 || blocks[0].MaxScore != 200 {
		t.Fatalf("block 0=%+v", blocks[0])
	}
	if blocks[1].AvgScore != 350 || blocks[1].OpsPerSec != 20 {
		t.Fatalf("block 1=%+v", blocks[1])
	}

	tiles, err := QueryTileRates(ctx, db)
	if err != nil {
		t.Fatalf("tiles: %v", err)
	}
	if len(tiles) != 3 || tiles[0].Tile != 64 || tiles[0].Reached != 1 || tiles[1].Reached != 0.75 || tiles[2].Ended != 0.25 {
		t.Fatalf("tiles=%+v", tiles)
	}
}

func TestReport_EmptyRoots(t *testing.T) {
	db, err := Open([]string{t.TempDir(), ""})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	o, err := QueryOverview(context.Background(), db)
	if err != nil || o.Episodes != 0 {
		t.Fatalf("overview=%+v err=%v", o, err)
	}
	tiles, err := QueryTileRates(context.Background(), db)
	if err != nil || tiles != nil {
		t.Fatalf("tiles=%+v err=%v", tiles, err)
	}
}

func TestParseRoots(t *testing.T) {
	got := ParseRoots(" a, b ,,a,c")
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Fatalf("got %v", got)
	}
}
