package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Iotic-Labs/nyx-sdk/internal/app"
	"github.com/Iotic-Labs/nyx-sdk/internal/indexer"
	"github.com/Iotic-Labs/nyx-sdk/internal/llm"
	"github.com/Iotic-Labs/nyx-sdk/internal/storage"
)

var ingestFlags struct {
	sqlite     string
	chunkSize  int
	qdrant     bool
	includeOwn bool
	supplement bool
	ifExists   string
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Load your subscriptions into SQLite and the chunk index",
	Long: `Downloads every subscribed dataset and loads it locally.

This command:
1. Lists your subscriptions (and your own datasets with --own)
2. Builds the text chunk index from non-tabular datasets
3. Loads CSV, Excel and JSON datasets into SQLite tables
4. Writes the nyx_subscriptions manifest table
5. Mirrors the chunk index into Qdrant with --qdrant`,
	Args: cobra.NoArgs,
	RunE: runIngest,
}

var queryK int

var queryCmd = &cobra.Command{
	Use:   "query <text>",
	Short: "Find the chunks of your subscriptions closest to text",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := prepare(cmd.Context(), nil)
		if err != nil {
			return err
		}
		defer p.Store().Close()

		result := p.Index().Query(args[0], queryK)
		if !result.Success {
			fmt.Println(result.Message)
			return nil
		}
		for i, chunk := range result.Chunks {
			m := result.Metadata[i]
			fmt.Printf("[%d] %.3f %s (%s)\n%s\n\n", i+1, result.Similarities[i], m.Title, m.URL, chunk)
		}
		return nil
	},
}

var sqlFile string

var sqlCmd = &cobra.Command{
	Use:   "sql <statement>",
	Short: "Run a read-only SQL statement against an ingested database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := sqlFile
		if path == "" {
			path = cfg.SQLiteFile
		}
		if path == "" {
			return errors.New("no database: pass --sqlite or set NYX_SQLITE_FILE")
		}
		store, err := storage.OpenSQLite(path, logger)
		if err != nil {
			return err
		}
		defer store.Close()

		rs, err := store.Query(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Println(strings.Join(rs.Columns, " | "))
		for _, row := range rs.Rows {
			cells := make([]string, len(row))
			for i, v := range row {
				if v == nil {
					cells[i] = "NULL"
				} else {
					cells[i] = fmt.Sprint(v)
				}
			}
			fmt.Println(strings.Join(cells, " | "))
		}
		fmt.Printf("(%d rows)\n", len(rs.Rows))
		return nil
	},
}

var askFlags struct {
	k          int
	confidence bool
}

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a question from your subscribed data with an LLM",
	Long: `Ingests your subscriptions, retrieves the closest chunks and asks the
configured model (NYX_LLM_PROVIDER, default openai) to answer from them.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		answerer, err := app.NewAnswerer(cfg, logger)
		if err != nil {
			return err
		}
		p, err := prepare(ctx, nil)
		if err != nil {
			return err
		}
		defer p.Store().Close()

		manifest, err := p.Store().Manifest(ctx)
		if err != nil {
			return err
		}
		chunks := p.Index().Query(args[0], askFlags.k)

		ask := answerer.Ask
		if askFlags.confidence {
			ask = answerer.AskWithConfidence
		}
		answer, err := ask(ctx, args[0], chunks, manifest)
		if err != nil {
			return err
		}
		printAnswer(answer)
		return nil
	},
}

func init() {
	f := ingestCmd.Flags()
	f.StringVar(&ingestFlags.sqlite, "sqlite", "", "database file (default: NYX_SQLITE_FILE, or in memory)")
	f.IntVar(&ingestFlags.chunkSize, "chunk-size", 0, "chunk size in words (default: NYX_CHUNK_SIZE)")
	f.BoolVar(&ingestFlags.qdrant, "qdrant", false, "mirror the chunk index into Qdrant")
	f.BoolVar(&ingestFlags.includeOwn, "own", false, "include your own datasets")
	f.BoolVar(&ingestFlags.supplement, "supplement", false, "also store text chunks as SQLite tables")
	f.StringVar(&ingestFlags.ifExists, "if-exists", "replace", "replace, append or fail for supplementary tables and the manifest")

	queryCmd.Flags().IntVarP(&queryK, "k", "k", 5, "number of chunks to return")
	sqlCmd.Flags().StringVar(&sqlFile, "sqlite", "", "database file (default: NYX_SQLITE_FILE)")
	askCmd.Flags().IntVarP(&askFlags.k, "k", "k", 5, "number of chunks given to the model")
	askCmd.Flags().BoolVar(&askFlags.confidence, "confidence", false, "ask the model for a confidence score")

	rootCmd.AddCommand(ingestCmd, queryCmd, sqlCmd, askCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	start := time.Now()

	var mirror indexer.Mirror
	if ingestFlags.qdrant {
		fmt.Printf("Connecting to Qdrant at %s:%d...\n", cfg.QdrantHost, cfg.QdrantPort)
		qs, err := app.OpenMirror(ctx, cfg, logger)
		if err != nil {
			return fmt.Errorf("Failed to connect to Qdrant: %w", err)
		}
		defer qs.Close()
		mirror = qs
	}

	p, err := prepare(ctx, mirror)
	if err != nil {
		return err
	}
	defer p.Store().Close()

	fmt.Println()
	fmt.Println("Ingest complete!")
	fmt.Printf("  Database: %s\n", p.Store().Path())
	fmt.Printf("  Total time: %s\n", time.Since(start).Round(time.Millisecond))
	return nil
}

// prepare lists the subscriptions, runs the pipeline over them and prints
// a summary. The caller closes the returned pipeline's store.
func prepare(ctx context.Context, mirror indexer.Mirror) (*indexer.Pipeline, error) {
	c, err := client()
	if err != nil {
		return nil, err
	}

	path := ingestFlags.sqlite
	if path == "" {
		path = cfg.SQLiteFile
	}
	p, err := app.NewPipeline(c, path, mirror, logger)
	if err != nil {
		return nil, err
	}

	datasets, err := p.Subscribed(ctx, ingestFlags.includeOwn)
	if err != nil {
		p.Store().Close()
		return nil, err
	}

	chunkSize := ingestFlags.chunkSize
	if chunkSize <= 0 {
		chunkSize = cfg.ChunkSize
	}
	result, err := p.Run(ctx, datasets, indexer.RunOptions{
		ChunkSize:  chunkSize,
		Supplement: ingestFlags.supplement,
		IfExists:   storage.ParseIfExists(ingestFlags.ifExists),
	})
	if err != nil {
		p.Store().Close()
		return nil, err
	}
	printRun(result)
	return p, nil
}

func printRun(r *indexer.RunResult) {
	fmt.Printf("  Datasets: %d\n", r.TotalDatasets)
	fmt.Printf("  Tables: %d\n", len(r.Tables))
	fmt.Printf("  Chunks: %d\n", r.Chunks)
	if r.Mirrored > 0 {
		fmt.Printf("  Mirrored: %d\n", r.Mirrored)
	}
	if len(r.Skipped) > 0 {
		fmt.Println("  Skipped:")
		for _, s := range r.Skipped {
			fmt.Printf("    - %s (%s): %s\n", s.Title, s.Stage, s.Reason)
		}
	}
	fmt.Println()
}

func printAnswer(a *llm.Answer) {
	fmt.Println(a.Text)
	if a.Confidence != nil {
		fmt.Printf("\nConfidence: %.2f\n", *a.Confidence)
	}
	if len(a.Sources) > 0 {
		fmt.Println("\nSources:")
		for _, s := range a.Sources {
			fmt.Printf("  - %s (%s)\n", s.Title, s.URL)
		}
	}
}
