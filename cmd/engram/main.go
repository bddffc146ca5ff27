// Command engram is a CLI for the engram retrieval engine. Memory content
// persists in the SQLite collaborators; vectors are re-derived from the
// stored text on every invocation.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/engramdb/engram"
	"github.com/engramdb/engram/internal/config"
	"github.com/engramdb/engram/pkg/embedding"
	"github.com/engramdb/engram/pkg/index"
	"github.com/engramdb/engram/pkg/logging"
	"github.com/engramdb/engram/pkg/synthesis"
)

var (
	ciID      string
	algorithm string
	limit     int
	verbose   bool
)

var (
	heading = color.New(color.FgCyan, color.Bold)
	scoreC  = color.New(color.FgGreen)
	faint   = color.New(color.Faint)
)

var rootCmd = &cobra.Command{
	Use:   "engram",
	Short: "Embedding-based retrieval engine for CI session memory",
	Long: `engram stores memory records for CIs and recalls them by fusing
vector similarity, graph relationships and keyword matches.`,
}

// openMemory builds a Memory from the environment and rehydrates the
// selected CI's vector store from the graph database.
func openMemory(ctx context.Context) (*engram.Memory, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	level := logging.LevelWarn
	if verbose {
		level = logging.LevelDebug
	}
	logger := logging.New(os.Stderr, level)

	opts := []engram.Option{engram.WithLogger(logger)}
	if cfg.Embedding.Method == "external" {
		pcfg := embedding.DefaultHTTPProviderConfig(cfg.Embedding.ProviderKey)
		if cfg.Embedding.ProviderURL != "" {
			pcfg.URL = cfg.Embedding.ProviderURL
		}
		pcfg.Model = cfg.Embedding.ProviderModel
		pcfg.Dimensions = cfg.Embedding.Dimensions
		opts = append(opts, engram.WithProvider(embedding.NewHTTPProvider(pcfg)))
	}

	mem, err := engram.Open(engram.Config{
		Dimensions:  cfg.Embedding.Dimensions,
		Method:      cfg.Embedding.Method,
		GraphPath:   cfg.Storage.GraphPath,
		KeywordPath: cfg.Storage.KeywordPath,
	}, opts...)
	if err != nil {
		return nil, err
	}

	if _, err := mem.Load(ctx, ciID); err != nil {
		mem.Close()
		return nil, err
	}
	return mem, nil
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the memory databases",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		mem, err := openMemory(ctx)
		if err != nil {
			return fmt.Errorf("failed to initialize: %w", err)
		}
		defer mem.Close()

		cfg, _ := config.Load()
		fmt.Printf("Memory databases initialized (graph: %s, keyword: %s)\n",
			cfg.Storage.GraphPath, cfg.Storage.KeywordPath)
		return nil
	},
}

var storeCmd = &cobra.Command{
	Use:   "store <text>",
	Short: "Store a memory record for a CI",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		mem, err := openMemory(ctx)
		if err != nil {
			return err
		}
		defer mem.Close()

		recordID, _ := cmd.Flags().GetString("id")
		id, err := mem.Store(ctx, ciID, recordID, args[0])
		if err != nil {
			return fmt.Errorf("failed to store: %w", err)
		}
		fmt.Printf("Stored %s (%d records for %s)\n", id, mem.Count(ciID), ciID)
		return nil
	},
}

var relateCmd = &cobra.Command{
	Use:   "relate <from-id> <to-id>",
	Short: "Record a relationship between two memories",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		mem, err := openMemory(ctx)
		if err != nil {
			return err
		}
		defer mem.Close()

		relation, _ := cmd.Flags().GetString("relation")
		strength, _ := cmd.Flags().GetFloat64("strength")
		if err := mem.Relate(ctx, args[0], args[1], relation, strength); err != nil {
			return fmt.Errorf("failed to relate: %w", err)
		}
		fmt.Printf("Related %s -> %s\n", args[0], args[1])
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Exact similarity search over a CI's memories",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		mem, err := openMemory(ctx)
		if err != nil {
			return err
		}
		defer mem.Close()

		matches, err := mem.Search(ctx, ciID, args[0], limit)
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}

		heading.Printf("%d matches\n", len(matches))
		for i, m := range matches {
			fmt.Printf("%2d. %s  ", i+1, m.RecordID)
			scoreC.Printf("%.4f\n", m.Similarity)
		}
		return nil
	},
}

var recallCmd = &cobra.Command{
	Use:   "recall <query>",
	Short: "Synthesized recall across all backends",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		mem, err := openMemory(ctx)
		if err != nil {
			return err
		}
		defer mem.Close()

		opts := synthesis.DefaultOptions()
		opts.Algorithm = synthesis.ParseAlgorithm(algorithm)
		opts.MaxResults = limit

		rs, err := mem.RecallSynthesized(ctx, ciID, args[0], &opts)
		if err != nil {
			return fmt.Errorf("recall failed: %w", err)
		}

		heading.Printf("%d results (%s)\n", rs.Count(), opts.Algorithm)
		for i, r := range rs.Results {
			fmt.Printf("%2d. %s  ", i+1, r.RecordID)
			scoreC.Printf("%.4f", r.Score)
			faint.Printf("  [%s]\n", backends(r))
			if r.Content != "" {
				faint.Printf("    %s\n", r.Content)
			}
		}
		return nil
	},
}

var indexCmd = &cobra.Command{
	Use:   "index <query>",
	Short: "Approximate search via a freshly built HNSW index",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		mem, err := openMemory(ctx)
		if err != nil {
			return err
		}
		defer mem.Close()

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		icfg := index.DefaultConfig()
		icfg.M = cfg.Index.M
		icfg.MMax = cfg.Index.MMax
		icfg.EfConstruction = cfg.Index.EfConstruction
		icfg.EfSearch = cfg.Index.EfSearch
		icfg.Seed = cfg.Index.Seed

		idx, err := mem.BuildIndex(ciID, icfg)
		if err != nil {
			return fmt.Errorf("failed to build index: %w", err)
		}
		faint.Printf("index: %d nodes, max layer %d\n", idx.Size(), idx.MaxLayer())

		results, err := mem.SearchApprox(ctx, ciID, args[0], limit)
		if err != nil {
			return fmt.Errorf("approximate search failed: %w", err)
		}
		heading.Printf("%d approximate matches\n", len(results))
		for i, r := range results {
			fmt.Printf("%2d. %s  ", i+1, r.RecordID)
			scoreC.Printf("dist %.4f\n", r.Distance)
		}
		return nil
	},
}

// backends renders the contribution flags of one result.
func backends(r synthesis.Result) string {
	s := ""
	if r.FromVector {
		s += "v"
	}
	if r.FromGraph {
		s += "g"
	}
	if r.FromKeyword {
		s += "k"
	}
	if r.FromWorking {
		s += "w"
	}
	return s
}

func init() {
	rootCmd.PersistentFlags().StringVar(&ciID, "ci", "default", "CI identifier")
	rootCmd.PersistentFlags().IntVar(&limit, "limit", 10, "Maximum results")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose logging")

	storeCmd.Flags().String("id", "", "Record id (generated when empty)")
	relateCmd.Flags().String("relation", "similar", "Relation class")
	relateCmd.Flags().Float64("strength", 1.0, "Relationship strength")
	recallCmd.Flags().StringVar(&algorithm, "algorithm", "weighted",
		"Fusion algorithm (union/intersection/weighted/hierarchical)")

	rootCmd.AddCommand(
		initCmd,
		storeCmd,
		relateCmd,
		searchCmd,
		recallCmd,
		indexCmd,
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
