package cmd

import (
	"context"
	stderrors "errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Ruscigno/marketsum/pkg/config"
	"github.com/Ruscigno/marketsum/pkg/database"
	"github.com/Ruscigno/marketsum/pkg/endpoint"
	"github.com/Ruscigno/marketsum/pkg/fetch"
	"github.com/Ruscigno/marketsum/pkg/metrics"
	"github.com/Ruscigno/marketsum/pkg/repository"
	"github.com/Ruscigno/marketsum/pkg/service"
	httptransport "github.com/Ruscigno/marketsum/pkg/transport/http"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the crawl API",
	Long: `Starts a http server that queues crawls, reports their progress and
serves finished results as xlsx downloads. Crawls are stored in DATABASE_URL when it is set.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runServer(ctx)
	},
}

func init() {
	RootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("port", "", "listen port or host:port")
	serveCmd.Flags().String("api-key", "", "API key required on /crawls (disabled when empty)")
	mustBind(serveCmd.Flags().Lookup, map[string]string{
		config.KeyHTTPPort: "port",
		config.KeyAPIKey:   "api-key",
	})
}

func runServer(ctx context.Context) error {
	appMetrics := metrics.NewApplicationMetrics("marketsum")

	svcConfig := service.Config{
		NewFetcher: func() (service.Fetcher, error) {
			return fetch.NewClient(newFetchConfig(appConfig, logger))
		},
		Metrics:      appMetrics,
		Logger:       logger,
		PageDelay:    appConfig.PageDelay,
		ExportPrefix: appConfig.ExportPrefix,
		Version:      Version,
	}

	if appConfig.DatabaseURL != "" {
		db, err := database.NewDB(ctx, database.DefaultConfig(appConfig.DatabaseURL, appConfig.MigrationsPath), logger)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.RunMigrations(); err != nil {
			return err
		}
		svcConfig.DB = db
		svcConfig.Repository = repository.NewCrawlRepository(db, logger)
	} else {
		logger.Warn("DATABASE_URL not set, crawls are kept in memory only")
	}

	svc := service.NewService(svcConfig)
	defer svc.Close()

	handler, stopLimiter := httptransport.NewHTTPHandler(endpoint.MakeEndpoints(svc), httptransport.HTTPConfig{
		APIKey:            appConfig.APIKey,
		RequestsPerSecond: appConfig.RequestsPerSecond,
		Burst:             appConfig.Burst,
		Logger:            logger,
		AllowedOrigins:    []string{"*"},
		Metrics:           appMetrics,
		MetricsHandler:    appMetrics.Handler(),
	})
	defer stopLimiter()

	server := &http.Server{
		Addr:              appConfig.ListenAddr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting server", zap.String("addr", server.Addr), zap.String("version", Version))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !stderrors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", zap.Error(err))
		return err
	}
	return nil
}
