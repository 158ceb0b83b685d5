package main

import (
	"flag"
	"log"
	"path/filepath"

	"github.com/brensch/ntuple2048/internal/envflag"
	"github.com/brensch/ntuple2048/store"
)

// compact merges the many small batch files a long training run leaves in an
// archive into one file per kind.
func main() {
	root := flag.String("root", envflag.String("NTUPLE_OUT_DIR", "data"), "Archive directory written by ntuple2048 --out-dir")
	flag.Parse()

	out, rows, err := store.Compact[store.EpisodeRow](filepath.Join(*root, store.EpisodesDir), store.EpisodesDir, store.EpisodeSchema)
	if err != nil {
		log.Fatalf("Compact episodes failed: %v", err)
	}
	report("episodes", out, rows)

	out, rows, err = store.Compact[store.StepRow](filepath.Join(*root, store.StepsDir), store.StepsDir, store.StepSchema)
	if err != nil {
		log.Fatalf("Compact steps failed: %v", err)
	}
	report("steps", out, rows)
}

func report(kind, out string, rows int) {
	if out == "" {
		log.Printf("%s: nothing to compact", kind)
		return
	}
	log.Printf("%s: %d rows merged into %s", kind, rows, out)
}
