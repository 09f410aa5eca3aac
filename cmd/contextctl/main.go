// Command contextctl runs selections and corpus maintenance from the shell.
//
//	contextctl query  [-config path] [-archive path] [-json] <question...>
//	contextctl import [-config path] [-archive path]
//	contextctl stats  [-config path] [-archive path]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Timeline-Context-Engine/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/Timeline-Context-Engine/internal/relevance"
	"github.com/Adithya-Monish-Kumar-K/Timeline-Context-Engine/internal/relevance/rawscan"
	"github.com/Adithya-Monish-Kumar-K/Timeline-Context-Engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Timeline-Context-Engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Timeline-Context-Engine/pkg/postgres"
)

func main() {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}
	var err error
	switch os.Args[1] {
	case "query":
		err = runQuery(os.Args[2:], os.Stdout)
	case "import":
		err = runImport(os.Args[2:], os.Stdout)
	case "stats":
		err = runStats(os.Args[2:], os.Stdout)
	case "-h", "--help", "help":
		usage(os.Stdout)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		usage(os.Stderr)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "contextctl %s: %v\n", os.Args[1], err)
		os.Exit(1)
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: contextctl <query|import|stats> [flags]")
	fmt.Fprintln(w, "  query   print the context selected for a question")
	fmt.Fprintln(w, "  import  copy an archive export into the postgres records table")
	fmt.Fprintln(w, "  stats   summarise an archive export")
}

// common holds the flags every subcommand accepts.
type common struct {
	configPath string
	archive    string
	owner      string
	logLevel   string
}

func (c *common) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", "", "path to config file")
	fs.StringVar(&c.archive, "archive", "", "archive export path (overrides config)")
	fs.StringVar(&c.owner, "owner", "", "account handle (overrides config)")
	fs.StringVar(&c.logLevel, "log-level", "warn", "log level")
}

func (c *common) load() (*config.Config, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, err
	}
	if c.archive != "" {
		cfg.Corpus.ArchivePath = c.archive
	}
	if c.owner != "" {
		cfg.Corpus.Owner = c.owner
	}
	logger.Setup(c.logLevel, "text")
	return cfg, nil
}

// loadArchive reads the configured archive into a one-off store.
func loadArchive(ctx context.Context, cfg *config.Config) (*corpus.Store, *corpus.Snapshot, error) {
	src := corpus.NewArchiveSource(cfg.Corpus.ArchivePath, cfg.Corpus.Owner)
	store := corpus.NewStore(src, corpus.StoreOptions{
		RawStorePath: cfg.Corpus.RawStore(),
		RawScanMode:  cfg.Relevance.ScanMode,
		Raw: rawscan.Options{
			Window:    rawscan.LineWindow(cfg.Relevance.ScanWindow),
			IDPattern: regexp.MustCompile(cfg.Relevance.IDPattern),
		},
	}, nil)
	snap, err := store.Reload(ctx)
	if err != nil {
		return nil, nil, err
	}
	return store, snap, nil
}

type queryOutput struct {
	Query      string           `json:"query"`
	Terms      []string         `json:"terms"`
	Selected   int              `json:"selected"`
	Candidates int              `json:"candidates"`
	RawMatches int              `json:"raw_matches"`
	Sources    []string         `json:"sources"`
	StagesMs   map[string]int64 `json:"stages_ms"`
	Context    string           `json:"context"`
}

func runQuery(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("query", flag.ContinueOnError)
	var c common
	c.register(fs)
	asJSON := fs.Bool("json", false, "print the full result as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := c.load()
	if err != nil {
		return err
	}
	question := strings.Join(fs.Args(), " ")

	ctx := context.Background()
	_, snap, err := loadArchive(ctx, cfg)
	if err != nil {
		return err
	}
	engine := relevance.NewEngine(relevance.OptionsFromConfig(cfg.Relevance, cfg.Corpus.Owner), nil)
	res := engine.Select(ctx, snap, question)

	if !*asJSON {
		_, err := fmt.Fprintln(out, res.Context)
		return err
	}
	o := queryOutput{
		Query:      question,
		Terms:      res.Terms.Terms,
		Selected:   len(res.Records),
		Candidates: res.Candidates,
		RawMatches: res.RawMatches,
		Sources:    res.Sources(),
		StagesMs:   make(map[string]int64, len(res.Stages)),
		Context:    res.Context,
	}
	for name, d := range res.Stages {
		o.StagesMs[name] = d.Milliseconds()
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(o)
}

func runImport(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	var c common
	c.register(fs)
	timeout := fs.Duration("timeout", 5*time.Minute, "overall import deadline")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := c.load()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	records, err := corpus.NewArchiveSource(cfg.Corpus.ArchivePath, cfg.Corpus.Owner).Load(ctx)
	if err != nil {
		return err
	}
	pg, err := postgres.New(cfg.Postgres)
	if err != nil {
		return err
	}
	defer pg.Close()
	if err := corpus.Migrate(ctx, pg); err != nil {
		return err
	}
	start := time.Now()
	if err := corpus.Import(ctx, pg, cfg.Corpus.Owner, records); err != nil {
		return err
	}
	slog.Info("import finished", "records", len(records), "duration", time.Since(start))
	_, err = fmt.Fprintf(out, "imported %d records for %q into %s\n", len(records), cfg.Corpus.Owner, cfg.Postgres.Database)
	return err
}

func runStats(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	var c common
	c.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := c.load()
	if err != nil {
		return err
	}
	store, _, err := loadArchive(context.Background(), cfg)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(store.Stats())
}
