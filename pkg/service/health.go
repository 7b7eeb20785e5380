package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Ruscigno/marketsum/pkg/database"
	"go.uber.org/zap"
)

// HealthStatus represents the health status of a component
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
	HealthStatusDegraded  HealthStatus = "degraded"
)

// ComponentHealth represents the health of a single component
type ComponentHealth struct {
	Name      string       `json:"name"`
	Status    HealthStatus `json:"status"`
	Message   string       `json:"message,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
	Duration  string       `json:"duration,omitempty"`
}

// HealthResponse represents the overall health response
type HealthResponse struct {
	Status     HealthStatus      `json:"status"`
	Timestamp  time.Time         `json:"timestamp"`
	Version    string            `json:"version"`
	Components []ComponentHealth `json:"components"`
	Uptime     string            `json:"uptime"`
}

// HealthService defines the health check service interface
type HealthService interface {
	CheckHealth(ctx context.Context) HealthResponse
	CheckDatabase(ctx context.Context) ComponentHealth
	CheckQueue() ComponentHealth
}

// queueDepth is the part of the work queue the health check reads.
type queueDepth interface {
	Depth() int
}

// healthService implements the HealthService interface
type healthService struct {
	db        *database.DB
	queue     queueDepth
	logger    *zap.Logger
	startTime time.Time
	version   string
}

// NewHealthService creates a new health service. db may be nil when
// persistence is disabled.
func NewHealthService(db *database.DB, queue queueDepth, logger *zap.Logger, version string) HealthService {
	return &healthService{
		db:        db,
		queue:     queue,
		logger:    logger,
		startTime: time.Now(),
		version:   version,
	}
}

// CheckHealth performs a comprehensive health check
func (h *healthService) CheckHealth(ctx context.Context) HealthResponse {
	start := time.Now()

	components := []ComponentHealth{h.CheckQueue()}
	if h.db != nil {
		components = append(components, h.CheckDatabase(ctx))
	}

	overallStatus := h.determineOverallStatus(components)
	response := HealthResponse{
		Status:     overallStatus,
		Timestamp:  time.Now(),
		Version:    h.version,
		Components: components,
		Uptime:     time.Since(h.startTime).String(),
	}

	h.logger.Debug("Health check completed",
		zap.String("status", string(overallStatus)),
		zap.Duration("duration", time.Since(start)),
		zap.Int("components", len(components)))

	return response
}

// CheckDatabase checks the database health
func (h *healthService) CheckDatabase(ctx context.Context) ComponentHealth {
	start := time.Now()

	component := ComponentHealth{
		Name:      "database",
		Timestamp: time.Now(),
	}

	if h.db == nil {
		component.Status = HealthStatusUnhealthy
		component.Message = "Database connection not initialized"
		return component
	}

	if err := h.db.Health(ctx); err != nil {
		component.Status = HealthStatusUnhealthy
		component.Message = err.Error()
		h.logger.Error("Database health check failed", zap.Error(err))
		return component
	}

	stats := h.db.Stats()
	if stats.MaxOpenConnections > 0 && stats.OpenConnections > stats.MaxOpenConnections*8/10 {
		component.Status = HealthStatusDegraded
		component.Message = "High connection usage"
	} else {
		component.Status = HealthStatusHealthy
		component.Message = "Database is healthy"
	}

	component.Duration = time.Since(start).String()
	return component
}

// CheckQueue reports how many crawls are waiting for the worker
func (h *healthService) CheckQueue() ComponentHealth {
	component := ComponentHealth{
		Name:      "crawl_queue",
		Status:    HealthStatusHealthy,
		Timestamp: time.Now(),
	}
	if h.queue == nil {
		component.Status = HealthStatusUnhealthy
		component.Message = "Work queue not initialized"
		return component
	}
	component.Message = fmt.Sprintf("%d crawl(s) waiting", h.queue.Depth())
	return component
}

// determineOverallStatus determines the overall health status based on component statuses
func (h *healthService) determineOverallStatus(components []ComponentHealth) HealthStatus {
	hasUnhealthy := false
	hasDegraded := false

	for _, component := range components {
		switch component.Status {
		case HealthStatusUnhealthy:
			hasUnhealthy = true
		case HealthStatusDegraded:
			hasDegraded = true
		}
	}

	if hasUnhealthy {
		return HealthStatusUnhealthy
	}
	if hasDegraded {
		return HealthStatusDegraded
	}
	return HealthStatusHealthy
}
