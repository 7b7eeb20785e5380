package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/Ruscigno/marketsum/model"
	"github.com/Ruscigno/marketsum/pkg/crawler"
	"github.com/Ruscigno/marketsum/pkg/database"
	"github.com/Ruscigno/marketsum/pkg/errors"
	"github.com/Ruscigno/marketsum/pkg/export"
	"github.com/Ruscigno/marketsum/pkg/fetch"
	"github.com/Ruscigno/marketsum/pkg/report"
	"github.com/Ruscigno/marketsum/pkg/repository"
	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type crawlOptions struct {
	pages   int
	out     string
	csv     string
	persist bool
	summary bool
	table   bool
}

var crawlOpts crawlOptions

// crawlCmd runs one crawl in the foreground
var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Crawl the listing and export it",
	Long: `Fetches the first --pages pages of the market-sum listing, skips rows with
missing values, derives the equity ratio and writes an xlsx workbook.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runCrawl(ctx, cmd.OutOrStdout(), cmd.ErrOrStderr(), crawlOpts)
	},
}

func init() {
	RootCmd.AddCommand(crawlCmd)

	flags := crawlCmd.Flags()
	flags.IntVarP(&crawlOpts.pages, "pages", "p", 1, "number of listing pages to crawl")
	flags.StringVarP(&crawlOpts.out, "out", "o", "", "xlsx output file (default <output-dir>/<prefix>_<timestamp>.xlsx)")
	flags.StringVar(&crawlOpts.csv, "csv", "", "also write the records as CSV to this file")
	flags.BoolVar(&crawlOpts.persist, "persist", false, "store the crawl in DATABASE_URL")
	flags.BoolVar(&crawlOpts.summary, "summary", false, "print averages and the top stocks by equity ratio")
	flags.BoolVar(&crawlOpts.table, "table", false, "print every record as a table")
}

func runCrawl(ctx context.Context, stdout, stderr io.Writer, opts crawlOptions) error {
	if opts.pages < 1 {
		return errors.NewInputError("--pages must be at least 1").WithDetails(fmt.Sprint(opts.pages))
	}

	client, err := fetch.NewClient(newFetchConfig(appConfig, logger))
	if err != nil {
		return err
	}
	defer client.Close()

	bar := progressbar.NewOptions(100,
		progressbar.OptionSetWriter(stderr),
		progressbar.OptionSetDescription(fmt.Sprintf("crawling %d page(s)", opts.pages)),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
	)

	c := crawler.NewCrawler(client,
		crawler.WithLogger(logger),
		crawler.WithPageDelay(appConfig.PageDelay),
	)
	createdAt := time.Now().UTC()
	var pageErrors []string
	result := c.Run(ctx, opts.pages, crawler.FuncObserver{
		OnProgress: func(p int) { _ = bar.Set(p) },
		OnError: func(msg string) {
			pageErrors = append(pageErrors, msg)
			fmt.Fprintf(stderr, "\n%s\n", msg)
		},
	})
	_ = bar.Finish()
	fmt.Fprintln(stderr)

	if result.Cancelled {
		fmt.Fprintf(stderr, "crawl cancelled, keeping %d record(s)\n", result.Count)
	}
	fmt.Fprintf(stdout, "%d record(s) in %.2fs\n", result.Count, result.ElapsedSeconds)

	// An explicit --out is always written, even with no rows.
	out := opts.out
	switch {
	case out != "":
	case result.Count == 0:
		fmt.Fprintln(stderr, "no records to save, skipping export")
	default:
		out = filepath.Join(appConfig.OutputDir, export.DefaultFilename(appConfig.ExportPrefix, time.Now()))
	}
	if out != "" {
		if err := export.NewXLSXWriter(out, logger).Write(result.Records); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "saved %s\n", out)
	}

	if opts.csv != "" {
		if err := export.NewCSVWriter(opts.csv, logger).Write(result.Records); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "saved %s\n", opts.csv)
	}

	if opts.table {
		if err := report.WriteTable(stdout, result.Records); err != nil {
			return err
		}
	}
	if opts.summary {
		fmt.Fprintln(stdout)
		if err := report.WriteSummary(stdout, report.Summarize(result)); err != nil {
			return err
		}
	}

	if opts.persist {
		// The crawl outcome is already on disk; a database failure is reported
		// but does not undo it.
		if err := persistCrawl(context.WithoutCancel(ctx), opts.pages, createdAt, pageErrors, result); err != nil {
			logger.Error("Failed to persist crawl", zap.Error(err))
			return err
		}
	}
	return nil
}

func persistCrawl(ctx context.Context, pages int, createdAt time.Time, pageErrors []string, result model.CrawlResult) error {
	db, err := database.NewDB(ctx, database.DefaultConfig(appConfig.DatabaseURL, appConfig.MigrationsPath), logger)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.RunMigrations(); err != nil {
		return err
	}

	repo := repository.NewCrawlRepository(db, logger)
	crawl := &repository.Crawl{
		ID:        uuid.New(),
		Pages:     pages,
		Status:    repository.CrawlStatusRunning,
		CreatedAt: createdAt,
	}
	if err := repo.CreateCrawl(ctx, crawl); err != nil {
		return err
	}

	finished := time.Now().UTC()
	crawl.Status = repository.CrawlStatusFinished
	crawl.RecordCount = result.Count
	crawl.PagesFailed = result.PagesFailed
	crawl.RowsSkipped = result.RowsSkipped
	crawl.Cancelled = result.Cancelled
	crawl.ElapsedSeconds = result.ElapsedSeconds
	crawl.Errors = pageErrors
	crawl.FinishedAt = &finished
	if err := repo.FinishCrawl(ctx, crawl, result.Records); err != nil {
		return err
	}
	logger.Info("Crawl persisted", zap.String("crawl_id", crawl.ID.String()), zap.Int("records", result.Count))
	return nil
}
