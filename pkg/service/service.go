package service

import (
	"context"
	"sync"
	"time"

	"github.com/Ruscigno/marketsum/model"
	"github.com/Ruscigno/marketsum/pkg/crawler"
	"github.com/Ruscigno/marketsum/pkg/database"
	"github.com/Ruscigno/marketsum/pkg/metrics"
	"github.com/Ruscigno/marketsum/pkg/report"
	"github.com/Ruscigno/marketsum/pkg/repository"
	"github.com/Ruscigno/marketsum/pkg/retry"
	"github.com/Ruscigno/marketsum/pkg/worker"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CrawlRequest defines the input for starting a crawl
type CrawlRequest struct {
	Pages int `json:"pages" validate:"required,gte=1"`
}

// CrawlAccepted is returned when a crawl has been queued
type CrawlAccepted struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Pages  int    `json:"pages"`
}

// CrawlStatusResponse describes a crawl and, once finished, its records
type CrawlStatusResponse struct {
	ID             string          `json:"id"`
	Status         string          `json:"status"`
	Pages          int             `json:"pages"`
	Progress       int             `json:"progress"`
	Errors         []string        `json:"errors"`
	Count          int             `json:"count"`
	ElapsedSeconds float64         `json:"elapsed_seconds"`
	PagesFailed    int             `json:"pages_failed"`
	RowsSkipped    int             `json:"rows_skipped"`
	Cancelled      bool            `json:"cancelled"`
	Records        []model.Record  `json:"records,omitempty"`
	Summary        *report.Summary `json:"summary,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	FinishedAt     *time.Time      `json:"finished_at,omitempty"`
}

// ListCrawlsRequest defines paging for the crawl listing
type ListCrawlsRequest struct {
	Limit  int `json:"limit,omitempty" validate:"gte=0,lte=500"`
	Offset int `json:"offset,omitempty" validate:"gte=0"`
}

// ListCrawlsResponse defines the response for listing crawls
type ListCrawlsResponse struct {
	Crawls []CrawlStatusResponse `json:"crawls"`
	Total  int                   `json:"total"`
}

// ExportFile is a rendered spreadsheet ready to be downloaded
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Service defines the crawl service interface
type Service interface {
	StartCrawl(ctx context.Context, req CrawlRequest) (CrawlAccepted, error)
	GetCrawl(ctx context.Context, id string) (CrawlStatusResponse, error)
	CancelCrawl(ctx context.Context, id string) (CrawlStatusResponse, error)
	ListCrawls(ctx context.Context, req ListCrawlsRequest) (ListCrawlsResponse, error)
	ExportCrawl(ctx context.Context, id string) (ExportFile, error)
	CheckHealth(ctx context.Context) (HealthResponse, error)
	Close()
}

// Fetcher is a per-crawl page source that owns network resources.
type Fetcher interface {
	crawler.Fetcher
	Close()
}

// Config wires the service to its collaborators. Repository and DB are
// optional; without them crawls live in memory only.
type Config struct {
	NewFetcher   func() (Fetcher, error)
	Repository   repository.CrawlRepository
	DB           *database.DB
	Metrics      metrics.CrawlMetrics
	Logger       *zap.Logger
	PageDelay    time.Duration
	ExportPrefix string
	QueueSize    int
	MaxRetained  int
	Version      string
}

// service implements the Service interface
type service struct {
	newFetcher   func() (Fetcher, error)
	repo         repository.CrawlRepository
	metrics      metrics.CrawlMetrics
	logger       *zap.Logger
	pageDelay    time.Duration
	exportPrefix string
	maxRetained  int

	breaker *retry.CircuitBreaker
	health  HealthService
	queue   *worker.WorkQueue

	baseCtx context.Context
	stop    context.CancelFunc

	mu     sync.RWMutex
	crawls map[uuid.UUID]*crawlState
}

// NewService creates a new Service with a single crawl worker.
func NewService(cfg Config) Service {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Nop{}
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 10
	}
	if cfg.MaxRetained <= 0 {
		cfg.MaxRetained = 100
	}

	cbConfig := retry.DefaultCircuitBreakerConfig("crawl-repository")
	cbConfig.Logger = cfg.Logger

	baseCtx, stop := context.WithCancel(context.Background())
	s := &service{
		newFetcher:   cfg.NewFetcher,
		repo:         cfg.Repository,
		metrics:      cfg.Metrics,
		logger:       cfg.Logger,
		pageDelay:    cfg.PageDelay,
		exportPrefix: cfg.ExportPrefix,
		maxRetained:  cfg.MaxRetained,
		breaker:      retry.NewCircuitBreaker(cbConfig),
		baseCtx:      baseCtx,
		stop:         stop,
		crawls:       make(map[uuid.UUID]*crawlState),
	}
	s.queue = worker.NewWorkQueue(1, cfg.QueueSize, s, cfg.Logger)
	s.health = NewHealthService(cfg.DB, s.queue, cfg.Logger, cfg.Version)
	return s
}

// Close cancels running crawls and waits for the worker to exit.
func (s *service) Close() {
	s.stop()
	s.queue.Stop()
}
