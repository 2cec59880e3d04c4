package main

import (
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/quotelab/quotelab/internal/annotate"
	"github.com/quotelab/quotelab/internal/collect"
	"github.com/quotelab/quotelab/internal/config"
	"github.com/quotelab/quotelab/internal/consensus"
	"github.com/quotelab/quotelab/internal/database"
	"github.com/quotelab/quotelab/internal/ingest"
	"github.com/quotelab/quotelab/internal/server"
	"github.com/quotelab/quotelab/internal/task"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "quotelab",
	Short:   "Crowdsourced quote annotation for newspaper articles",
	Long:    "Quotelab serves labelling tasks to annotators, aggregates their answers into consensus labels, and exports the labeled corpus for model training.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		} else {
			log.SetFlags(log.LstdFlags)
		}

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(collectCmd)
	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(confidenceCmd)
	rootCmd.AddCommand(exportCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("quotelab", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/quotelab/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to configure sources, feeds, and labelling thresholds.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database and labelling status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		fmt.Println("Articles:")
		fmt.Printf("  Total: %d\n", stats.TotalArticles)
		fmt.Printf("  Fully labeled: %d\n", stats.FullyLabeledArticles)
		fmt.Println("\nAnnotations:")
		fmt.Printf("  Labels: %d\n", stats.TotalLabels)
		fmt.Printf("  Skips: %d\n", stats.SkippedLabels)
		fmt.Printf("  Sessions: %d\n", stats.Sessions)

		counts, err := newService(db).SourceCounts()
		if err != nil {
			return err
		}
		if len(counts) > 0 {
			fmt.Printf("\n%-20s %10s %10s %10s\n", "Source", "Articles", "Sentences", "Quotes")
			var articles, sentences, quotes int
			for _, c := range counts {
				fmt.Printf("%-20s %10d %10d %10d\n", c.Source, c.Articles, c.Sentences, c.Quotes)
				articles += c.Articles
				sentences += c.Sentences
				quotes += c.Quotes
			}
			fmt.Printf("%-20s %10d %10d %10d\n", "Total", articles, sentences, quotes)
		}
		return nil
	},
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the annotation server",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		fmt.Printf("Starting server at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(db, newService(db), cfg.AdminKey(), port)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to run server on (overrides config)")
}

// --- add command ---

var (
	addSource string
	addAdmin  bool
)

var addCmd = &cobra.Command{
	Use:   "add [file or directory...]",
	Short: "Add XML articles to the labelling pool",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		var paths []string
		for _, arg := range args {
			info, err := os.Stat(arg)
			if err != nil {
				return err
			}
			if !info.IsDir() {
				paths = append(paths, arg)
				continue
			}
			entries, err := filepath.Glob(filepath.Join(arg, "*.xml"))
			if err != nil {
				return err
			}
			paths = append(paths, entries...)
		}

		added := 0
		for _, path := range paths {
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			doc, err := ingest.ParseXML(data)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			id, err := db.InsertArticle(collect.NewArticle(doc, addSource, addAdmin))
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			fmt.Printf("Added article [%d]: %s\n", id, doc.Name)
			added++
		}
		fmt.Printf("\nAdded %d article(s).\n", added)
		return nil
	},
}

func init() {
	addCmd.Flags().StringVar(&addSource, "source", "", "Source name for the added articles")
	addCmd.Flags().BoolVar(&addAdmin, "admin", false, "Restrict the articles to admin annotators")
}

// --- collect command ---

var daysBack int

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Collect new articles from the configured feeds",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		if len(cfg.Sources.Feeds) == 0 {
			return fmt.Errorf("no feeds configured")
		}

		fmt.Println("Collecting articles from feeds...")
		collector := collect.NewCollector(db, cfg.Sources.Feeds, 0)
		result := collector.Collect(daysBack)

		fmt.Println("\nCollection complete:")
		fmt.Printf("  New articles: %d\n", result.Collected)
		fmt.Printf("  Skipped: %d\n", result.Skipped)
		fmt.Printf("  Failed: %d\n", result.Failed)
		return nil
	},
}

func init() {
	collectCmd.Flags().IntVar(&daysBack, "days-back", 7, "Only collect entries published within this window")
}

// --- refresh command ---

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Recompute every article's labeled state from its annotations",
	Long:  "Recomputes consensus for every sentence of every article. Run after changing the labelling thresholds.",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		n, err := newService(db).Refresh()
		if err != nil {
			return err
		}
		fmt.Printf("Refreshed %d article(s).\n", n)
		return nil
	},
}

// --- confidence command ---

// confidenceUpdate is one entry of the scores file produced by the external
// prediction models.
type confidenceUpdate struct {
	ArticleID   int64     `json:"article_id"`
	Confidence  []float64 `json:"confidence"`
	Predictions []int     `json:"predictions"`
}

var confidenceCmd = &cobra.Command{
	Use:   "confidence [scores.json]",
	Short: "Import per-sentence model scores",
	Long:  "Reads a JSON array of {article_id, confidence, predictions} entries and updates the selection order of the task pool.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		var updates []confidenceUpdate
		if err := json.Unmarshal(data, &updates); err != nil {
			return fmt.Errorf("parsing scores: %w", err)
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		svc := newService(db)
		for _, u := range updates {
			if err := svc.UpdateConfidence(u.ArticleID, u.Confidence, u.Predictions); err != nil {
				return fmt.Errorf("article %d: %w", u.ArticleID, err)
			}
		}
		fmt.Printf("Updated scores for %d article(s).\n", len(updates))
		return nil
	},
}

// --- export command ---

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the fully labeled articles as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		labeled, err := newService(db).Export()
		if err != nil {
			return err
		}

		out := os.Stdout
		if exportOut != "" {
			f, err := os.Create(exportOut)
			if err != nil {
				return err
			}
			defer f.Close()
			out = f
		}

		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(labeled); err != nil {
			return err
		}
		if exportOut != "" {
			fmt.Printf("Exported %d article(s) to %s\n", len(labeled), exportOut)
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Write the export to a file instead of stdout")
}

func newService(db *database.DB) *annotate.Service {
	l := cfg.Labelling
	return annotate.New(db, annotate.Config{
		Consensus: consensus.Config{
			ConsensusThreshold: l.ConsensusThreshold,
			CountThreshold:     l.CountThreshold,
		},
		Selector: task.Config{
			ConfidenceThreshold: l.ConfidenceThreshold,
			ArticleLoads:        l.ArticleLoads,
			MinParagraphLength:  l.MinParagraphLength,
		},
		Sources:      cfg.Sources.Names,
		TestFraction: l.TestFraction,
	}, rand.New(rand.NewSource(time.Now().UnixNano())))
}

func openDB() (*database.DB, error) {
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	dbPath := filepath.Join(dataDir, "quotelab.db")
	return database.Open(dbPath)
}
