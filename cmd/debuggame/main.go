package main

import (
	"flag"
	"fmt"
	"log"
	"path/filepath"

	"github.com/brensch/ntuple2048/agent"
	"github.com/brensch/ntuple2048/game"
	"github.com/brensch/ntuple2048/selfplay"
	"github.com/brensch/ntuple2048/store"
)

// debuggame plays one greedy episode with frozen weights and prints every
// turn, optionally keeping the steps as a parquet file.
func main() {
	load := flag.String("load", "", "Weights file; empty plays with zero weights")
	seed := flag.Int64("seed", 1, "Environment seed")
	outDir := flag.String("out-dir", "", "Write the episode's steps as parquet under this directory")
	quiet := flag.Bool("quiet", false, "Only print the final board")
	flag.Parse()

	args := ""
	if *load != "" {
		args = "load=" + *load
	}
	player, err := agent.NewPlayer(args, nil)
	if err != nil {
		log.Fatalf("Failed to create player: %v", err)
	}
	env, err := agent.NewRandomEnv(fmt.Sprintf("seed=%d", *seed))
	if err != nil {
		log.Fatalf("Failed to create environment: %v", err)
	}

	res, err := selfplay.PlayEpisode(player, env, selfplay.PlayOptions{RecordSteps: true})
	if err != nil {
		log.Fatalf("Episode failed: %v", err)
	}

	if !*quiet {
		for _, r := range res.Records {
			if r.Action.Kind != game.ActionSlide {
				continue
			}
			fmt.Printf("  Turn %4d | %-12s | +%-5d | value %.1f\n", r.Turn, r.Action, r.Reward, player.Network().Estimate(r.After))
		}
	}
	fmt.Print(res.Final.String())
	fmt.Printf("score = %d, steps = %d, max tile = %d, took %v\n", res.Score, res.Steps, game.TileValue(res.MaxTile), res.Duration())

	if *outDir != "" {
		path, err := store.WriteParquetAtomic(filepath.Join(*outDir, store.StepsDir), store.StepsDir, store.StepSchema, store.NewStepRows(res))
		if err != nil {
			log.Fatalf("Failed to write steps: %v", err)
		}
		log.Printf("Wrote %d steps to %s", len(res.Records), path)
	}
}
