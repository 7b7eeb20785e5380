package service

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Ruscigno/marketsum/model"
	"github.com/Ruscigno/marketsum/pkg/crawler"
	"github.com/Ruscigno/marketsum/pkg/errors"
	"github.com/Ruscigno/marketsum/pkg/export"
	"github.com/Ruscigno/marketsum/pkg/middleware"
	"github.com/Ruscigno/marketsum/pkg/repository"
	"github.com/Ruscigno/marketsum/pkg/worker"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// persistTimeout bounds repository writes made after the request context is gone.
const persistTimeout = 10 * time.Second

// StartCrawl validates the request and queues a crawl
func (s *service) StartCrawl(ctx context.Context, req CrawlRequest) (CrawlAccepted, error) {
	if err := middleware.ValidateStruct(req); err != nil {
		return CrawlAccepted{}, errors.NewInputError("invalid crawl request").WithDetails(err.Error()).WithCause(err)
	}

	id := uuid.New()
	jobCtx, cancel := context.WithCancel(s.baseCtx)
	state := newCrawlState(id, req.Pages, cancel)

	s.mu.Lock()
	s.crawls[id] = state
	s.evictLocked()
	s.mu.Unlock()

	if err := s.queue.Enqueue(&worker.Job{ID: id, Pages: req.Pages, Ctx: jobCtx}); err != nil {
		cancel()
		s.mu.Lock()
		delete(s.crawls, id)
		s.mu.Unlock()
		return CrawlAccepted{}, err
	}

	s.logger.Info("Crawl queued", zap.String("crawl_id", id.String()), zap.Int("pages", req.Pages))
	return CrawlAccepted{ID: id.String(), Status: string(repository.CrawlStatusQueued), Pages: req.Pages}, nil
}

// Run executes a queued crawl. It is called by the work queue.
func (s *service) Run(ctx context.Context, job *worker.Job) error {
	state, ok := s.lookup(job.ID)
	if !ok {
		return fmt.Errorf("crawl %s is no longer tracked", job.ID)
	}
	defer state.cancel()
	state.setRunning()
	s.persist(func(ctx context.Context) error {
		return s.repo.CreateCrawl(ctx, state.row())
	})

	fetcher, err := s.newFetcher()
	if err != nil {
		state.fail(err)
		s.persistFinish(state, nil)
		return fmt.Errorf("failed to create fetcher: %w", err)
	}
	defer fetcher.Close()

	c := crawler.NewCrawler(fetcher,
		crawler.WithLogger(s.logger.With(zap.String("crawl_id", job.ID.String()))),
		crawler.WithMetrics(s.metrics),
		crawler.WithPageDelay(s.pageDelay),
	)
	result := c.Run(ctx, job.Pages, crawler.FuncObserver{
		OnProgress: state.setProgress,
		OnError:    state.addError,
	})
	state.finish(result)
	s.persistFinish(state, result.Records)
	return nil
}

// GetCrawl returns the state of a crawl, with records once it has finished
func (s *service) GetCrawl(ctx context.Context, id string) (CrawlStatusResponse, error) {
	crawlID, err := parseID(id)
	if err != nil {
		return CrawlStatusResponse{}, err
	}

	if state, ok := s.lookup(crawlID); ok {
		return state.snapshot(true), nil
	}
	if s.repo == nil {
		return CrawlStatusResponse{}, notFound(crawlID)
	}

	row, err := s.repo.GetCrawl(ctx, crawlID)
	if err != nil {
		return CrawlStatusResponse{}, err
	}
	records, err := s.repo.GetRecords(ctx, crawlID)
	if err != nil {
		return CrawlStatusResponse{}, err
	}
	return fromRow(row, records), nil
}

// CancelCrawl stops a queued or running crawl. Records gathered so far are kept.
func (s *service) CancelCrawl(_ context.Context, id string) (CrawlStatusResponse, error) {
	crawlID, err := parseID(id)
	if err != nil {
		return CrawlStatusResponse{}, err
	}
	state, ok := s.lookup(crawlID)
	if !ok {
		return CrawlStatusResponse{}, notFound(crawlID)
	}
	if state.done() {
		return CrawlStatusResponse{}, errors.NewAppError(errors.ErrCodeConflict, "crawl has already finished").WithDetails(id)
	}

	state.cancel()
	s.logger.Info("Crawl cancellation requested", zap.String("crawl_id", id))
	return state.snapshot(false), nil
}

// ListCrawls lists crawls newest first
func (s *service) ListCrawls(ctx context.Context, req ListCrawlsRequest) (ListCrawlsResponse, error) {
	if err := middleware.ValidateStruct(req); err != nil {
		return ListCrawlsResponse{}, errors.NewInputError("invalid listing request").WithDetails(err.Error()).WithCause(err)
	}
	limit := req.Limit
	if limit == 0 {
		limit = 50
	}

	if s.repo != nil {
		rows, err := s.repo.ListCrawls(ctx, limit, req.Offset)
		if err == nil {
			resp := ListCrawlsResponse{Crawls: make([]CrawlStatusResponse, 0, len(rows))}
			for _, row := range rows {
				if state, ok := s.lookup(row.ID); ok {
					resp.Crawls = append(resp.Crawls, state.snapshot(false))
					continue
				}
				resp.Crawls = append(resp.Crawls, fromRow(row, nil))
			}
			resp.Total = len(resp.Crawls)
			return resp, nil
		}
		s.logger.Warn("Falling back to in-memory crawl list", zap.Error(err))
	}

	s.mu.RLock()
	all := make([]CrawlStatusResponse, 0, len(s.crawls))
	for _, state := range s.crawls {
		all = append(all, state.snapshot(false))
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	if req.Offset >= len(all) {
		return ListCrawlsResponse{Crawls: []CrawlStatusResponse{}}, nil
	}
	all = all[req.Offset:]
	if len(all) > limit {
		all = all[:limit]
	}
	return ListCrawlsResponse{Crawls: all, Total: len(all)}, nil
}

// ExportCrawl renders the records of a finished crawl as a spreadsheet
func (s *service) ExportCrawl(ctx context.Context, id string) (ExportFile, error) {
	crawlID, err := parseID(id)
	if err != nil {
		return ExportFile{}, err
	}

	var (
		records  []model.Record
		finished time.Time
	)
	if state, ok := s.lookup(crawlID); ok {
		recs, done := state.records()
		if !done {
			return ExportFile{}, errors.NewAppError(errors.ErrCodeConflict, "crawl has not finished").WithDetails(id)
		}
		records = recs
		if snap := state.snapshot(false); snap.FinishedAt != nil {
			finished = *snap.FinishedAt
		}
	} else {
		resp, err := s.GetCrawl(ctx, id)
		if err != nil {
			return ExportFile{}, err
		}
		if resp.Status != string(repository.CrawlStatusFinished) {
			return ExportFile{}, errors.NewAppError(errors.ErrCodeConflict, "crawl has not finished").WithDetails(id)
		}
		records = resp.Records
		if resp.FinishedAt != nil {
			finished = *resp.FinishedAt
		}
	}
	if finished.IsZero() {
		finished = time.Now()
	}

	var buf bytes.Buffer
	if err := export.EncodeXLSX(&buf, records); err != nil {
		return ExportFile{}, errors.NewAppError(errors.ErrCodeInternal, "failed to render spreadsheet").WithCause(err)
	}
	return ExportFile{
		Filename:    export.DefaultFilename(s.exportPrefix, finished.Local()),
		ContentType: xlsxContentType,
		Data:        buf.Bytes(),
	}, nil
}

// CheckHealth reports the health of the service and its dependencies
func (s *service) CheckHealth(ctx context.Context) (HealthResponse, error) {
	return s.health.CheckHealth(ctx), nil
}

func (s *service) lookup(id uuid.UUID) (*crawlState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.crawls[id]
	return state, ok
}

// evictLocked drops the oldest finished crawls beyond maxRetained.
func (s *service) evictLocked() {
	if len(s.crawls) <= s.maxRetained {
		return
	}
	finished := make([]*crawlState, 0, len(s.crawls))
	for _, state := range s.crawls {
		if state.done() {
			finished = append(finished, state)
		}
	}
	sort.Slice(finished, func(i, j int) bool { return finished[i].createdAt.Before(finished[j].createdAt) })
	for _, state := range finished {
		if len(s.crawls) <= s.maxRetained {
			return
		}
		delete(s.crawls, state.id)
	}
}

// persist runs a repository write behind the circuit breaker. Failures are
// logged and never fail the crawl.
func (s *service) persist(fn func(ctx context.Context) error) {
	if s.repo == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := s.breaker.Execute(ctx, fn); err != nil {
		s.logger.Warn("Failed to persist crawl", zap.Error(err))
	}
}

func (s *service) persistFinish(state *crawlState, records []model.Record) {
	s.persist(func(ctx context.Context) error {
		return s.repo.FinishCrawl(ctx, state.row(), records)
	})
}

func parseID(id string) (uuid.UUID, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, errors.NewInputError("invalid crawl id").WithDetails(id).WithCause(err)
	}
	return parsed, nil
}

func notFound(id uuid.UUID) error {
	return errors.NewAppError(errors.ErrCodeNotFound, "crawl not found").WithDetails(id.String())
}
