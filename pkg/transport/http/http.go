package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/Ruscigno/marketsum/pkg/endpoint"
	"github.com/Ruscigno/marketsum/pkg/errors"
	"github.com/Ruscigno/marketsum/pkg/metrics"
	"github.com/Ruscigno/marketsum/pkg/middleware"
	"github.com/Ruscigno/marketsum/pkg/service"
	httptransport "github.com/go-kit/kit/transport/http"
	"go.uber.org/zap"
)

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	APIKey            string
	MaxBodySize       int64
	RequestsPerSecond float64
	Burst             int
	Logger            *zap.Logger
	AllowedOrigins    []string
	Metrics           metrics.HTTPMetrics
	// MetricsHandler serves GET /metrics when set.
	MetricsHandler http.Handler
}

// NewHTTPHandler sets up HTTP handlers for the endpoints with middleware.
// The returned function releases the rate limiter's background sweep.
func NewHTTPHandler(endpoints endpoint.Endpoints, config HTTPConfig) (http.Handler, func()) {
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.Metrics == nil {
		config.Metrics = metrics.Nop{}
	}
	if config.MaxBodySize <= 0 {
		config.MaxBodySize = 1 << 20
	}

	options := []httptransport.ServerOption{
		httptransport.ServerErrorEncoder(encodeError),
		httptransport.ServerErrorHandler(logErrorHandler{config.Logger}),
	}

	mux := http.NewServeMux()

	mux.Handle("POST /crawls", httptransport.NewServer(
		endpoints.StartCrawl,
		decodeStartCrawlRequest,
		encodeAccepted,
		options...,
	))

	mux.Handle("GET /crawls", httptransport.NewServer(
		endpoints.ListCrawls,
		decodeListCrawlsRequest,
		encodeResponse,
		options...,
	))

	mux.Handle("GET /crawls/{id}", httptransport.NewServer(
		endpoints.GetCrawl,
		decodeCrawlIDRequest,
		encodeResponse,
		options...,
	))

	mux.Handle("DELETE /crawls/{id}", httptransport.NewServer(
		endpoints.CancelCrawl,
		decodeCrawlIDRequest,
		encodeResponse,
		options...,
	))

	mux.Handle("GET /crawls/{id}/export", httptransport.NewServer(
		endpoints.ExportCrawl,
		decodeCrawlIDRequest,
		encodeExportResponse,
		options...,
	))

	// Health Check endpoint (no authentication required)
	mux.Handle("GET /health", httptransport.NewServer(
		endpoints.CheckHealth,
		decodeHealthRequest,
		encodeHealthResponse,
		options...,
	))

	if config.MetricsHandler != nil {
		mux.Handle("GET /metrics", config.MetricsHandler)
	}

	rateLimit, stop := middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: config.RequestsPerSecond,
		Burst:             config.Burst,
		Logger:            config.Logger,
	})

	handler := middleware.Chain(mux,
		middleware.RequestID(),
		middleware.ErrorLogging(config.Logger),
		middleware.SecurityHeaders(),
		middleware.CORS(config.AllowedOrigins),
		middleware.StructuredLogging(config.Logger),
		middleware.RequestLogging(middleware.LoggingConfig{Logger: config.Logger}),
		middleware.APIKeyAuth(middleware.AuthConfig{APIKey: config.APIKey, Logger: config.Logger}),
		rateLimit,
		middleware.RequestValidation(middleware.ValidationConfig{
			MaxBodySize: config.MaxBodySize,
			Logger:      config.Logger,
		}),
		middleware.Metrics(config.Metrics),
	)
	return handler, stop
}

func decodeStartCrawlRequest(_ context.Context, r *http.Request) (interface{}, error) {
	var req service.CrawlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err == io.EOF {
			return nil, errors.NewInputError("request body is required")
		}
		return nil, errors.NewInputError("invalid request body").WithDetails(err.Error()).WithCause(err)
	}
	return req, nil
}

func decodeCrawlIDRequest(_ context.Context, r *http.Request) (interface{}, error) {
	id := r.PathValue("id")
	if id == "" {
		return nil, errors.NewInputError("crawl id is required")
	}
	return endpoint.CrawlIDRequest{ID: id}, nil
}

func decodeListCrawlsRequest(_ context.Context, r *http.Request) (interface{}, error) {
	req := service.ListCrawlsRequest{}
	query := r.URL.Query()

	for name, dst := range map[string]*int{"limit": &req.Limit, "offset": &req.Offset} {
		raw := query.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, errors.NewInputError(fmt.Sprintf("invalid %s", name)).WithDetails(raw)
		}
		*dst = n
	}
	return req, nil
}

func decodeHealthRequest(_ context.Context, r *http.Request) (interface{}, error) {
	return nil, nil
}

func encodeResponse(_ context.Context, w http.ResponseWriter, response interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(response)
}

func encodeAccepted(_ context.Context, w http.ResponseWriter, response interface{}) error {
	if accepted, ok := response.(service.CrawlAccepted); ok {
		w.Header().Set("Location", "/crawls/"+accepted.ID)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	return json.NewEncoder(w).Encode(response)
}

func encodeHealthResponse(_ context.Context, w http.ResponseWriter, response interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	if health, ok := response.(service.HealthResponse); ok && health.Status == service.HealthStatusUnhealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	return json.NewEncoder(w).Encode(response)
}

func encodeExportResponse(_ context.Context, w http.ResponseWriter, response interface{}) error {
	file, ok := response.(service.ExportFile)
	if !ok {
		return fmt.Errorf("unexpected export response %T", response)
	}
	w.Header().Set("Content-Type", file.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(file.Data)))
	_, err := w.Write(file.Data)
	return err
}

func encodeError(_ context.Context, err error, w http.ResponseWriter) {
	middleware.WriteError(w, err, 0)
}

type logErrorHandler struct {
	logger *zap.Logger
}

func (h logErrorHandler) Handle(ctx context.Context, err error) {
	if errors.StatusFor(err) >= http.StatusInternalServerError {
		h.logger.Error("Request failed", zap.Error(err))
		return
	}
	h.logger.Debug("Request rejected", zap.Error(err))
}
