package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/Sternrassler/altered-catalogue/internal/config"
	"github.com/Sternrassler/altered-catalogue/pkg/cache"
	"github.com/Sternrassler/altered-catalogue/pkg/catalogue"
	"github.com/Sternrassler/altered-catalogue/pkg/client"
	"github.com/Sternrassler/altered-catalogue/pkg/logging"
	"github.com/Sternrassler/altered-catalogue/pkg/metrics"
	"github.com/Sternrassler/altered-catalogue/pkg/normalize"
	"github.com/Sternrassler/altered-catalogue/pkg/pagination"
	"github.com/Sternrassler/altered-catalogue/pkg/render"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type options struct {
	configPath string
	excel      bool
	gsheet     bool
	markdown   string
	timeout    time.Duration
}

// targets selects the artifacts produced by one run.
type targets struct {
	Excel    bool
	GSheet   bool
	Markdown bool
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:          "altered-catalogue",
		Short:        "Fetch Altered TCG cards and generate a catalogue",
		Long:         "Fetches Common, Rare and Exalted cards from the Altered API and builds an Excel workbook and/or Google Sheet for collection tracking.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "YAML config file (defaults are used when omitted)")
	cmd.Flags().BoolVar(&opts.excel, "excel", false, "Generate an Excel (.xlsx) file")
	cmd.Flags().BoolVar(&opts.gsheet, "gsheet", false, "Generate a Google Sheet")
	cmd.Flags().StringVar(&opts.markdown, "markdown", "", `Write a markdown preview to this path ("-" for stdout)`)
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "Abort the whole run after this duration (0 = no limit)")

	return cmd
}

// resolveTargets runs both the workbook and the sheet when no output is requested.
func resolveTargets(excel, gsheet bool, markdown string) targets {
	t := targets{Excel: excel, GSheet: gsheet, Markdown: markdown != ""}
	if !t.Excel && !t.GSheet && !t.Markdown {
		t.Excel, t.GSheet = true, true
	}
	return t
}

func run(ctx context.Context, opts *options, stdout io.Writer) error {
	if err := config.LoadEnvFiles(".env", ".env.local"); err != nil {
		return err
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}

	logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.Logging.Level),
		Pretty: cfg.Logging.Pretty,
		Output: os.Stderr,
	})
	logger := logging.NewLogger("cli")

	if cfg.Metrics.Textfile != "" {
		defer func() {
			if err := metrics.WriteTextfile(cfg.Metrics.Textfile); err != nil {
				logger.Warn().Err(err).Msg("Metrics not written")
			}
		}()
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
	}

	markdownPath := opts.markdown
	if markdownPath == "" {
		markdownPath = cfg.Output.MarkdownPath
	}
	t := resolveTargets(opts.excel, opts.gsheet, markdownPath)

	fmt.Fprintln(stdout, "=== Altered TCG Cards to Catalogue ===")
	logger.Info().Strs("factions", cfg.Source.Factions).Msg("Fetching card data")

	rows, err := fetchRows(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("Fetch failed")
		return err
	}

	if len(rows) == 0 {
		fmt.Fprintln(stdout, "No cards fetched. Exiting.")
		return nil
	}

	if t.Markdown {
		if err := writeMarkdown(markdownPath, rows, stdout); err != nil {
			return err
		}
	}

	if t.Excel {
		if err := buildWorkbook(ctx, cfg, rows, logger); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Saved catalogue to %s\n", cfg.Output.ExcelPath)
	}

	if t.GSheet {
		url, err := publishSheet(ctx, cfg, rows)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Google Sheet URL: %s\n", url)
	}

	fmt.Fprintln(stdout, "Done!")
	return nil
}

func fetchRows(ctx context.Context, cfg *config.Config) ([]normalize.Row, error) {
	c, err := client.New(cfg.ClientConfig())
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}

	fetcher, err := pagination.NewFetcher(c, pagination.Config{
		Partitions: cfg.Source.Factions,
		PageSize:   c.ItemsPerPage(),
	})
	if err != nil {
		return nil, fmt.Errorf("create fetcher: %w", err)
	}

	return catalogue.NewPipeline(fetcher, normalize.New(cfg.Source.Locale)).Rows(ctx)
}

func buildWorkbook(ctx context.Context, cfg *config.Config, rows []normalize.Row, logger zerolog.Logger) error {
	store, closeStore, err := newThumbnailStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	thumbs := render.NewThumbnailer(store, cfg.Thumbnails.GetTimeout(), cfg.Source.Locale)

	opts := render.DefaultWorkbookOptions()
	opts.ThumbWidth = cfg.Thumbnails.Width
	opts.ThumbHeight = cfg.Thumbnails.Height

	if dir := filepath.Dir(cfg.Output.ExcelPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	logger.Info().Int("rows", len(rows)).Str("path", cfg.Output.ExcelPath).Msg("Building Excel catalogue")
	return render.WriteWorkbook(ctx, cfg.Output.ExcelPath, rows, thumbs, opts)
}

// newThumbnailStore uses Redis when a URL is configured and the local cache directory otherwise.
func newThumbnailStore(ctx context.Context, cfg *config.Config) (cache.Store, func(), error) {
	ttl := cfg.Thumbnails.GetTTL()

	if cfg.Thumbnails.RedisURL == "" {
		return cache.NewDirStore(cfg.Thumbnails.CacheDir, ttl), func() {}, nil
	}

	opt := &redis.Options{Addr: cfg.Thumbnails.RedisURL}
	if strings.Contains(cfg.Thumbnails.RedisURL, "://") {
		parsed, err := redis.ParseURL(cfg.Thumbnails.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("parse redis url: %w", err)
		}
		opt = parsed
	}

	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, nil, fmt.Errorf("connect to redis at %s: %w", opt.Addr, err)
	}

	return cache.NewRedisStore(rdb, ttl), func() { rdb.Close() }, nil
}

func publishSheet(ctx context.Context, cfg *config.Config, rows []normalize.Row) (string, error) {
	opts := render.SheetsOptions{
		Title:          cfg.Output.SheetTitle,
		WorksheetTitle: cfg.Output.WorksheetTitle,
		BatchSize:      cfg.Output.BatchSize,
		SharePublic:    cfg.Output.SharePublic,
	}

	publisher, err := render.NewSheetsPublisher(ctx, cfg.Output.CredentialsFile, opts)
	if err != nil {
		return "", err
	}
	return publisher.Publish(ctx, rows)
}

func writeMarkdown(path string, rows []normalize.Row, stdout io.Writer) error {
	if path == "-" {
		return render.WriteMarkdown(stdout, rows)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create markdown preview: %w", err)
	}
	if err := render.WriteMarkdown(f, rows); err != nil {
		f.Close()
		return fmt.Errorf("write markdown preview: %w", err)
	}
	return f.Close()
}
