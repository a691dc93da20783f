// Command gamesub-embed maintains the game catalog offline: imports RAWG dumps,
// computes embeddings and rebuilds the vector index.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/gamesub/gamesub/internal/usecase/batch"
	"github.com/gamesub/gamesub/internal/version"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "gamesub-embed",
		Usage:   "Catalog import and embedding maintenance for gamesub",
		Version: version.String(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "env",
				Usage:   "Configuration environment (config/<env>.yaml)",
				EnvVars: []string{"ENV"},
				Value:   "local",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "import",
				Usage:  "Load games from a RAWG JSON export",
				Action: importCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "file",
						Aliases:  []string{"f"},
						Usage:    "Path to the JSON file (array or {\"results\": [...]})",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "embed",
						Usage: "Embed new and changed games after the import",
					},
					batchSizeFlag(),
				},
			},
			{
				Name:   "backfill",
				Usage:  "Embed the whole catalog",
				Action: backfillCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "only-missing",
						Usage: "Skip games that already have a vector",
					},
					batchSizeFlag(),
				},
			},
			{
				Name:   "refresh-stale",
				Usage:  "Re-embed games whose text changed since their vector was computed",
				Action: refreshStaleCommand,
				Flags:  []cli.Flag{batchSizeFlag()},
			},
			{
				Name:   "refresh",
				Usage:  "Re-embed a single game",
				Action: refreshCommand,
				Flags: []cli.Flag{
					&cli.Int64Flag{
						Name:     "id",
						Usage:    "Game id",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Embed even if the stored vector is current",
					},
				},
			},
			{
				Name:   "stats",
				Usage:  "Show embedding coverage",
				Action: statsCommand,
			},
			{
				Name:   "reindex",
				Usage:  "Drop and recreate the vector index",
				Action: reindexCommand,
			},
		},
	}
}

func batchSizeFlag() cli.Flag {
	return &cli.IntFlag{
		Name:    "batch-size",
		Aliases: []string{"b"},
		Usage:   "Number of games embedded and committed together",
		Value:   batch.DefaultBatchSize,
	}
}
