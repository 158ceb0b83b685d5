package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brensch/ntuple2048/internal/envflag"
	"github.com/brensch/ntuple2048/monitor"
	"github.com/brensch/ntuple2048/report"
	"github.com/brensch/ntuple2048/selfplay"
)

func main() {
	roots := flag.String("root", envflag.String("NTUPLE_REPORT_ROOT", "data"), "Comma-separated archive directories")
	block := flag.Int("block", 1000, "Episodes per block")
	asJSON := flag.Bool("json", false, "Print JSON instead of text")
	watch := flag.String("watch", "", "Instead of reading archives, follow a running monitor, e.g. ws://localhost:8090/ws")
	listen := flag.String("listen", "", "Serve the report as a JSON API on this address instead of printing it")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *watch != "" {
		if err := follow(ctx, *watch); err != nil && ctx.Err() == nil {
			log.Fatalf("Watch failed: %v", err)
		}
		return
	}

	rootList := report.ParseRoots(*roots)
	if *listen != "" {
		serve(ctx, *listen, rootList)
		return
	}

	start := time.Now()
	db, err := report.Open(rootList)
	if err != nil {
		log.Fatalf("Failed to open archives: %v", err)
	}
	defer db.Close()

	overview, err := report.QueryOverview(ctx, db)
	if err != nil {
		log.Fatalf("Overview query failed: %v", err)
	}
	blocks, err := report.QueryBlocks(ctx, db, *block)
	if err != nil {
		log.Fatalf("Block query failed: %v", err)
	}
	tiles, err := report.QueryTileRates(ctx, db)
	if err != nil {
		log.Fatalf("Tile query failed: %v", err)
	}

	if *asJSON {
		out := struct {
			Overview report.Overview         `json:"overview"`
			Blocks   []selfplay.BlockSummary `json:"blocks"`
			Tiles    []selfplay.TileRate     `json:"tiles"`
		}{overview, blocks, tiles}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			log.Fatalf("Encode failed: %v", err)
		}
		return
	}

	fmt.Printf("%d episodes in %v (queried in %v)\n", overview.Episodes, rootList, time.Since(start).Round(time.Millisecond))
	fmt.Printf("avg = %.0f, max = %d, best tile = %d, steps = %d\n\n", overview.AvgScore, overview.MaxScore, overview.MaxTile, overview.Steps)
	for _, b := range blocks {
		fmt.Print(b.Format())
	}
	if len(tiles) > 0 {
		fmt.Print(selfplay.BlockSummary{To: int(overview.Episodes), AvgScore: overview.AvgScore, MaxScore: int(overview.MaxScore), Tiles: tiles}.Format())
	}
}

func follow(ctx context.Context, url string) error {
	log.Printf("Following %s", url)
	return monitor.Watch(ctx, url, func(e monitor.Event) error {
		switch e.Type {
		case monitor.EventEpisode:
			var s selfplay.EpisodeSummary
			if err := json.Unmarshal(e.Data, &s); err != nil {
				return err
			}
			fmt.Printf("#%d\tscore = %d, tile = %d, steps = %d\n", s.Index, s.Score, s.MaxTile, s.Steps)
		case monitor.EventBlock:
			var b selfplay.BlockSummary
			if err := json.Unmarshal(e.Data, &b); err != nil {
				return err
			}
			fmt.Print(b.Format())
		}
		return nil
	})
}

func serve(ctx context.Context, addr string, roots []string) {
	cache := report.NewDBCache(roots, 30*time.Second)
	defer cache.Close()

	mux := http.NewServeMux()
	report.NewServer(cache).RegisterRoutes(mux)
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("Report API listening on http://%s (roots %v)", addr, roots)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Report API failed: %v", err)
	}
}
