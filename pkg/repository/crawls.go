package repository

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/Ruscigno/marketsum/model"
	"github.com/Ruscigno/marketsum/pkg/database"
	"github.com/Ruscigno/marketsum/pkg/errors"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

// CrawlStatus represents the lifecycle state of a crawl
type CrawlStatus string

const (
	CrawlStatusQueued   CrawlStatus = "QUEUED"
	CrawlStatusRunning  CrawlStatus = "RUNNING"
	CrawlStatusFinished CrawlStatus = "FINISHED"
	CrawlStatusFailed   CrawlStatus = "FAILED"
)

// Crawl represents a crawl in the database
type Crawl struct {
	ID             uuid.UUID      `db:"id" json:"id"`
	Pages          int            `db:"pages" json:"pages"`
	Status         CrawlStatus    `db:"status" json:"status"`
	RecordCount    int            `db:"record_count" json:"record_count"`
	PagesFailed    int            `db:"pages_failed" json:"pages_failed"`
	RowsSkipped    int            `db:"rows_skipped" json:"rows_skipped"`
	Cancelled      bool           `db:"cancelled" json:"cancelled"`
	ElapsedSeconds float64        `db:"elapsed_seconds" json:"elapsed_seconds"`
	Errors         pq.StringArray `db:"errors" json:"errors"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	FinishedAt     *time.Time     `db:"finished_at" json:"finished_at,omitempty"`
}

// recordRow is a Record as stored, keyed by crawl and position.
type recordRow struct {
	CrawlID  uuid.UUID `db:"crawl_id"`
	Position int       `db:"position"`
	model.Record
}

// CrawlRepository defines the interface for crawl persistence
type CrawlRepository interface {
	CreateCrawl(ctx context.Context, crawl *Crawl) error
	FinishCrawl(ctx context.Context, crawl *Crawl, records []model.Record) error
	GetCrawl(ctx context.Context, id uuid.UUID) (*Crawl, error)
	GetRecords(ctx context.Context, id uuid.UUID) ([]model.Record, error)
	ListCrawls(ctx context.Context, limit, offset int) ([]*Crawl, error)
}

// crawlRepository implements CrawlRepository
type crawlRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewCrawlRepository creates a new crawl repository
func NewCrawlRepository(db *database.DB, logger *zap.Logger) CrawlRepository {
	return &crawlRepository{
		db:     db,
		logger: logger,
	}
}

// CreateCrawl inserts a queued crawl
func (r *crawlRepository) CreateCrawl(ctx context.Context, crawl *Crawl) error {
	if crawl.ID == uuid.Nil {
		crawl.ID = uuid.New()
	}
	if crawl.Status == "" {
		crawl.Status = CrawlStatusQueued
	}
	if crawl.CreatedAt.IsZero() {
		crawl.CreatedAt = time.Now().UTC()
	}
	if crawl.Errors == nil {
		crawl.Errors = pq.StringArray{}
	}

	query := `
		INSERT INTO crawls (id, pages, status, errors, created_at)
		VALUES (:id, :pages, :status, :errors, :created_at)`

	if _, err := r.db.NamedExecContext(ctx, query, crawl); err != nil {
		r.logger.Error("Failed to create crawl", zap.Error(err), zap.String("id", crawl.ID.String()))
		return fmt.Errorf("failed to create crawl: %w", err)
	}

	r.logger.Info("Crawl created", zap.String("id", crawl.ID.String()), zap.Int("pages", crawl.Pages))
	return nil
}

// FinishCrawl stores the outcome of a crawl and its records in one transaction
func (r *crawlRepository) FinishCrawl(ctx context.Context, crawl *Crawl, records []model.Record) error {
	if crawl.FinishedAt == nil {
		now := time.Now().UTC()
		crawl.FinishedAt = &now
	}
	if crawl.Errors == nil {
		crawl.Errors = pq.StringArray{}
	}

	err := r.db.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		query := `
			UPDATE crawls SET
				status = :status,
				record_count = :record_count,
				pages_failed = :pages_failed,
				rows_skipped = :rows_skipped,
				cancelled = :cancelled,
				elapsed_seconds = :elapsed_seconds,
				errors = :errors,
				finished_at = :finished_at
			WHERE id = :id`

		result, err := tx.NamedExecContext(ctx, query, crawl)
		if err != nil {
			return fmt.Errorf("failed to update crawl: %w", err)
		}
		if n, err := result.RowsAffected(); err == nil && n == 0 {
			return errors.NewAppError(errors.ErrCodeNotFound, "crawl not found").WithDetails(crawl.ID.String())
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM crawl_records WHERE crawl_id = $1`, crawl.ID); err != nil {
			return fmt.Errorf("failed to clear records: %w", err)
		}
		if len(records) == 0 {
			return nil
		}

		rows := make([]recordRow, len(records))
		for i, rec := range records {
			rows[i] = recordRow{CrawlID: crawl.ID, Position: i, Record: rec}
		}
		insert := `
			INSERT INTO crawl_records (
				crawl_id, position, name, market_cap, per, pbr,
				total_assets, foreign_ratio, equity_ratio
			) VALUES (
				:crawl_id, :position, :name, :market_cap, :per, :pbr,
				:total_assets, :foreign_ratio, :equity_ratio
			)`
		for start := 0; start < len(rows); start += insertBatchSize {
			end := min(start+insertBatchSize, len(rows))
			if _, err := tx.NamedExecContext(ctx, insert, rows[start:end]); err != nil {
				return fmt.Errorf("failed to insert records: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		r.logger.Error("Failed to finish crawl", zap.Error(err), zap.String("id", crawl.ID.String()))
		return err
	}

	r.logger.Info("Crawl stored",
		zap.String("id", crawl.ID.String()),
		zap.String("status", string(crawl.Status)),
		zap.Int("records", len(records)))
	return nil
}

// insertBatchSize keeps a multi-row insert below the Postgres bind parameter limit.
const insertBatchSize = 500

// GetCrawl retrieves a crawl by its ID
func (r *crawlRepository) GetCrawl(ctx context.Context, id uuid.UUID) (*Crawl, error) {
	var crawl Crawl
	query := `SELECT * FROM crawls WHERE id = $1`

	if err := r.db.GetContext(ctx, &crawl, query, id); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewAppError(errors.ErrCodeNotFound, "crawl not found").WithDetails(id.String())
		}
		r.logger.Error("Failed to get crawl by ID", zap.Error(err), zap.String("id", id.String()))
		return nil, fmt.Errorf("failed to get crawl: %w", err)
	}
	return &crawl, nil
}

// GetRecords retrieves the records of a crawl in their original order
func (r *crawlRepository) GetRecords(ctx context.Context, id uuid.UUID) ([]model.Record, error) {
	var records []model.Record
	query := `
		SELECT name, market_cap, per, pbr, total_assets, foreign_ratio, equity_ratio
		FROM crawl_records WHERE crawl_id = $1 ORDER BY position`

	if err := r.db.SelectContext(ctx, &records, query, id); err != nil {
		r.logger.Error("Failed to get crawl records", zap.Error(err), zap.String("id", id.String()))
		return nil, fmt.Errorf("failed to get records: %w", err)
	}
	if records == nil {
		records = []model.Record{}
	}
	return records, nil
}

// ListCrawls retrieves crawls, newest first
func (r *crawlRepository) ListCrawls(ctx context.Context, limit, offset int) ([]*Crawl, error) {
	if limit <= 0 {
		limit = 50
	}
	var crawls []*Crawl
	query := `SELECT * FROM crawls ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	if err := r.db.SelectContext(ctx, &crawls, query, limit, offset); err != nil {
		r.logger.Error("Failed to list crawls", zap.Error(err))
		return nil, fmt.Errorf("failed to list crawls: %w", err)
	}
	return crawls, nil
}
