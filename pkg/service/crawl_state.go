package service

import (
	"context"
	"sync"
	"time"

	"github.com/Ruscigno/marketsum/model"
	"github.com/Ruscigno/marketsum/pkg/report"
	"github.com/Ruscigno/marketsum/pkg/repository"
	"github.com/google/uuid"
)

// crawlState is the live view of one crawl. The worker writes it, API
// handlers read it.
type crawlState struct {
	mu sync.RWMutex

	id         uuid.UUID
	pages      int
	status     repository.CrawlStatus
	progress   int
	errors     []string
	result     *model.CrawlResult
	createdAt  time.Time
	finishedAt *time.Time

	cancel context.CancelFunc
}

func newCrawlState(id uuid.UUID, pages int, cancel context.CancelFunc) *crawlState {
	return &crawlState{
		id:        id,
		pages:     pages,
		status:    repository.CrawlStatusQueued,
		errors:    []string{},
		createdAt: time.Now().UTC(),
		cancel:    cancel,
	}
}

func (c *crawlState) setRunning() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = repository.CrawlStatusRunning
}

func (c *crawlState) setProgress(p int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.progress = p
}

func (c *crawlState) addError(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errors = append(c.errors, msg)
}

func (c *crawlState) finish(result model.CrawlResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now().UTC()
	c.status = repository.CrawlStatusFinished
	c.result = &result
	c.finishedAt = &now
}

func (c *crawlState) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now().UTC()
	c.status = repository.CrawlStatusFailed
	c.errors = append(c.errors, err.Error())
	c.finishedAt = &now
}

func (c *crawlState) done() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.finishedAt != nil
}

func (c *crawlState) records() ([]model.Record, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.result == nil {
		return nil, false
	}
	return c.result.Records, true
}

// snapshot renders the state. Records are included only when withRecords is set.
func (c *crawlState) snapshot(withRecords bool) CrawlStatusResponse {
	c.mu.RLock()
	defer c.mu.RUnlock()

	resp := CrawlStatusResponse{
		ID:         c.id.String(),
		Status:     string(c.status),
		Pages:      c.pages,
		Progress:   c.progress,
		Errors:     append([]string{}, c.errors...),
		CreatedAt:  c.createdAt,
		FinishedAt: c.finishedAt,
	}
	if c.result != nil {
		resp.Count = c.result.Count
		resp.ElapsedSeconds = c.result.ElapsedSeconds
		resp.PagesFailed = c.result.PagesFailed
		resp.RowsSkipped = c.result.RowsSkipped
		resp.Cancelled = c.result.Cancelled
		if withRecords {
			resp.Records = c.result.Records
			summary := report.Summarize(*c.result)
			resp.Summary = &summary
		}
	}
	return resp
}

// row is the persisted form of the state.
func (c *crawlState) row() *repository.Crawl {
	c.mu.RLock()
	defer c.mu.RUnlock()

	row := &repository.Crawl{
		ID:         c.id,
		Pages:      c.pages,
		Status:     c.status,
		Errors:     append([]string{}, c.errors...),
		CreatedAt:  c.createdAt,
		FinishedAt: c.finishedAt,
	}
	if c.result != nil {
		row.RecordCount = c.result.Count
		row.PagesFailed = c.result.PagesFailed
		row.RowsSkipped = c.result.RowsSkipped
		row.Cancelled = c.result.Cancelled
		row.ElapsedSeconds = c.result.ElapsedSeconds
	}
	return row
}

// fromRow renders a persisted crawl that is no longer held in memory.
func fromRow(row *repository.Crawl, records []model.Record) CrawlStatusResponse {
	resp := CrawlStatusResponse{
		ID:             row.ID.String(),
		Status:         string(row.Status),
		Pages:          row.Pages,
		Errors:         append([]string{}, row.Errors...),
		Count:          row.RecordCount,
		ElapsedSeconds: row.ElapsedSeconds,
		PagesFailed:    row.PagesFailed,
		RowsSkipped:    row.RowsSkipped,
		Cancelled:      row.Cancelled,
		CreatedAt:      row.CreatedAt,
		FinishedAt:     row.FinishedAt,
	}
	// Progress of a cancelled crawl is not persisted.
	if row.Status == repository.CrawlStatusFinished && !row.Cancelled {
		resp.Progress = 100
	}
	if records != nil {
		resp.Records = records
		summary := report.Summarize(model.CrawlResult{
			Records:        records,
			Count:          len(records),
			ElapsedSeconds: row.ElapsedSeconds,
			PagesFailed:    row.PagesFailed,
			RowsSkipped:    row.RowsSkipped,
			Cancelled:      row.Cancelled,
		})
		resp.Summary = &summary
	}
	return resp
}
