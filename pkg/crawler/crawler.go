package crawler

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/Ruscigno/marketsum/model"
	"github.com/Ruscigno/marketsum/pkg/errors"
	"github.com/Ruscigno/marketsum/pkg/metrics"
	"github.com/Ruscigno/marketsum/pkg/normalize"
	"github.com/Ruscigno/marketsum/pkg/parser"
	"go.uber.org/zap"
)

// DefaultPageDelay is the pause between consecutive page requests.
const DefaultPageDelay = 1500 * time.Millisecond

// Fetcher downloads one listing page.
type Fetcher interface {
	FetchPage(ctx context.Context, page int) (string, error)
}

// Crawler walks listing pages 1..N sequentially and aggregates records.
type Crawler struct {
	fetcher   Fetcher
	logger    *zap.Logger
	metrics   metrics.CrawlMetrics
	pageDelay time.Duration
}

// Option customizes a Crawler.
type Option func(*Crawler)

func WithLogger(logger *zap.Logger) Option {
	return func(c *Crawler) { c.logger = logger }
}

func WithMetrics(m metrics.CrawlMetrics) Option {
	return func(c *Crawler) { c.metrics = m }
}

// WithPageDelay overrides the pause between pages. Zero disables it.
func WithPageDelay(d time.Duration) Option {
	return func(c *Crawler) { c.pageDelay = d }
}

func NewCrawler(fetcher Fetcher, opts ...Option) *Crawler {
	c := &Crawler{
		fetcher:   fetcher,
		logger:    zap.NewNop(),
		metrics:   metrics.Nop{},
		pageDelay: DefaultPageDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run crawls pages 1..pageCount. Page failures are reported to obs and never
// abort the crawl. When ctx is cancelled the crawl stops before the next page
// and completes with what it has.
func (c *Crawler) Run(ctx context.Context, pageCount int, obs Observer) model.CrawlResult {
	if obs == nil {
		obs = NopObserver{}
	}
	start := time.Now()
	result := model.CrawlResult{Records: []model.Record{}}

	c.logger.Info("Starting crawl", zap.Int("pages", pageCount))

	for page := 1; page <= pageCount; page++ {
		if ctx.Err() != nil {
			result.Cancelled = true
			break
		}

		records, skipped, err := c.crawlPage(ctx, page)
		if err != nil {
			if ctx.Err() != nil {
				result.Cancelled = true
				break
			}
			result.PagesFailed++
			obs.Error(fmt.Sprintf("page %d: %v", page, pageCause(err)))
			c.logger.Warn("Page failed", zap.Int("page", page), zap.Error(err))
		} else {
			result.Records = append(result.Records, records...)
			result.RowsSkipped += skipped
		}

		obs.Progress(page * 100 / pageCount)

		if page < pageCount && !c.pause(ctx) {
			result.Cancelled = true
			break
		}
	}

	elapsed := time.Since(start)
	result.Count = len(result.Records)
	result.ElapsedSeconds = elapsed.Seconds()

	c.metrics.AddRecords(result.Count)
	c.metrics.AddSkippedRows(result.RowsSkipped)
	c.metrics.ObserveCrawl(elapsed, result.Cancelled)

	obs.Records(result.Records)
	obs.Finished(result.Count, result.ElapsedSeconds)

	c.logger.Info("Crawl finished",
		zap.Int("count", result.Count),
		zap.Int("pages_failed", result.PagesFailed),
		zap.Int("rows_skipped", result.RowsSkipped),
		zap.Bool("cancelled", result.Cancelled),
		zap.Duration("elapsed", elapsed))
	return result
}

// Start runs the crawl on its own goroutine. The returned channel yields the
// result once and is then closed.
func (c *Crawler) Start(ctx context.Context, pageCount int, obs Observer) <-chan model.CrawlResult {
	done := make(chan model.CrawlResult, 1)
	go func() {
		defer close(done)
		done <- c.Run(ctx, pageCount, obs)
	}()
	return done
}

func (c *Crawler) crawlPage(ctx context.Context, page int) ([]model.Record, int, error) {
	start := time.Now()

	markup, err := c.fetcher.FetchPage(ctx, page)
	if err != nil {
		c.metrics.ObservePage(metrics.OutcomeNetworkError, time.Since(start))
		return nil, 0, err
	}

	rows, err := parser.ExtractRows(markup)
	if err != nil {
		c.metrics.ObservePage(metrics.OutcomeParseError, time.Since(start))
		return nil, 0, err
	}

	records := make([]model.Record, 0, len(rows))
	skipped := 0
	for i, row := range rows {
		rec, err := normalize.Normalize(row)
		if err != nil {
			skipped++
			name, _ := row.Get(model.ColumnName)
			c.logger.Debug("Row dropped",
				zap.Int("page", page),
				zap.Int("row", i+1),
				zap.String("name", name),
				zap.Error(err))
			continue
		}
		records = append(records, rec)
	}

	c.metrics.ObservePage(metrics.OutcomeOK, time.Since(start))
	c.logger.Debug("Page parsed",
		zap.Int("page", page),
		zap.Int("rows", len(rows)),
		zap.Int("records", len(records)))
	return records, skipped, nil
}

// pause waits for the page delay. It reports false if ctx ended first.
func (c *Crawler) pause(ctx context.Context) bool {
	if c.pageDelay <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(c.pageDelay)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// pageCause strips the page prefix a NetworkError already carries so the
// notification reads "page N: cause" once.
func pageCause(err error) error {
	var ne *errors.NetworkError
	if stderrors.As(err, &ne) && ne.Cause != nil {
		return ne.Cause
	}
	return err
}
