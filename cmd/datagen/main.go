package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/knotwork-db/knotwork/internal/generator"
)

func main() {
	cfg := generator.DefaultConfig()
	var (
		people        = flag.Int("people", cfg.NumPeople, "number of person nodes to generate")
		relationships = flag.Int("relationships", cfg.NumRelationships, "number of relationships to generate")
		untypedChance = flag.Float64("untyped-chance", cfg.UntypedChance, "probability of an edge carrying no type")
		labelChance   = flag.Float64("second-label-chance", cfg.SecondLabelChance, "probability of a node carrying a second label")
		useUUIDs      = flag.Bool("uuid", false, "use UUID node identifiers instead of sequential ones")
		seed          = flag.Int64("seed", cfg.Seed, "random seed for deterministic generation")
		directed      = flag.Bool("directed", false, "write the snapshot for a directed graph")
		output        = flag.String("output", "knotwork.json", "snapshot file to write")
		writeStdout   = flag.Bool("stdout", false, "write the raw dataset to stdout instead of a snapshot file")
	)
	flag.Parse()

	genCfg := generator.Config{
		NumPeople:         *people,
		NumRelationships:  *relationships,
		UntypedChance:     clampProbability(*untypedChance),
		SecondLabelChance: clampProbability(*labelChance),
		UUIDs:             *useUUIDs,
		Seed:              *seed,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	dataset, err := generator.New(genCfg).Generate(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "generation failed: %v\n", err)
		os.Exit(1)
	}

	if *writeStdout {
		if err := json.NewEncoder(os.Stdout).Encode(dataset); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write dataset to stdout: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := generator.WriteSnapshot(dataset, *output, *directed); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write snapshot: %v\n", err)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stdout, "Generated %d nodes and %d relationships into %s\n", len(dataset.Nodes), len(dataset.Relationships), *output)
}

func clampProbability(value float64) float64 {
	if value < 0 {
		return 0
	}
	if value > 1 {
		return 1
	}
	return value
}
