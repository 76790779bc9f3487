package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/aglayrton/fluxo-agua/internal/aggregate"
	"github.com/aglayrton/fluxo-agua/internal/anomaly"
	"github.com/aglayrton/fluxo-agua/internal/config"
	"github.com/aglayrton/fluxo-agua/internal/db"
	"github.com/aglayrton/fluxo-agua/internal/flowcontrol"
	"github.com/aglayrton/fluxo-agua/internal/httpapi"
	"github.com/aglayrton/fluxo-agua/internal/metrics"
	"github.com/aglayrton/fluxo-agua/internal/mq"
	"github.com/aglayrton/fluxo-agua/internal/notify"
	"github.com/aglayrton/fluxo-agua/internal/repository"
	"github.com/aglayrton/fluxo-agua/internal/service"
)

func startHTTP(
	lc fx.Lifecycle,
	router *mux.Router,
	cfg *config.Config,
	logger *zap.Logger,
) {
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler: handlers.LoggingHandler(os.Stdout, router),
	}

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			logger.Info("starting http server", zap.Int("port", cfg.HTTP.Port))
			go func() {
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Error("http server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			logger.Info("stopping http server")
			return server.Shutdown(stopCtx)
		},
	})
}

func startConsumer(
	lc fx.Lifecycle,
	conn *mq.Connection,
	cfg *config.Config,
	logger *zap.Logger,
	ingest *service.IngestService,
) (*mq.Consumer, error) {
	ctx, cancel := context.WithCancel(context.Background())

	consumer, err := mq.NewConsumer(mq.ConsumerConfig{
		Connection:    conn,
		Queue:         cfg.RabbitMQ.IngestQueue,
		DLQQueue:      cfg.RabbitMQ.DLQQueue,
		Exchange:      cfg.RabbitMQ.IngestExchange,
		RoutingKey:    cfg.RabbitMQ.IngestRoutingKey,
		PrefetchCount: cfg.RabbitMQ.PrefetchCount,
		Logger:        logger,
		Handler:       ingest.ProcessMessage,
	})
	if err != nil {
		cancel()
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			logger.Info("starting ingest consumer",
				zap.String("queue", cfg.RabbitMQ.IngestQueue),
				zap.Int("prefetch", cfg.RabbitMQ.PrefetchCount))
			return consumer.Start(ctx)
		},
		OnStop: func(_ context.Context) error {
			cancel()
			if err := consumer.Close(); err != nil {
				logger.Error("failed to close consumer", zap.Error(err))
				return err
			}
			logger.Info("ingest consumer stopped gracefully")
			return nil
		},
	})

	return consumer, nil
}

// ProvideDBPool creates the database connection pool
func ProvideDBPool(lc fx.Lifecycle, logger *zap.Logger, cfg *config.Config) (*pgxpool.Pool, error) {
	return db.NewPool(lc, logger, cfg.Database)
}

// ProvideRepository creates the repository bound to the residence timezone
func ProvideRepository(pool *pgxpool.Pool, cfg *config.Config) *repository.Repository {
	return repository.NewRepository(pool, cfg.Control.Location)
}

// ProvideMetrics registers the prometheus collectors
func ProvideMetrics() *metrics.Metrics {
	return metrics.New()
}

// ProvideAnomalyDetector creates the spike detector
func ProvideAnomalyDetector(cfg *config.Config) *anomaly.Detector {
	return anomaly.NewDetector(cfg.Anomaly.SpikeThreshold, cfg.Anomaly.MinDataPointsForDetection)
}

// ProvideAggregator creates the consumption aggregation service
func ProvideAggregator(repo *repository.Repository) *aggregate.Service {
	return aggregate.NewService(repo)
}

// ProvideMailer creates the SMTP sender
func ProvideMailer(cfg *config.Config) *notify.Mailer {
	return notify.NewMailer(cfg.SMTP)
}

// ProvideDispatcher creates the alert dispatcher
func ProvideDispatcher(repo *repository.Repository, mailer *notify.Mailer, logger *zap.Logger) *notify.Dispatcher {
	return notify.NewDispatcher(repo, mailer, logger)
}

// ProvideMQConnection creates the RabbitMQ connection
func ProvideMQConnection(lc fx.Lifecycle, logger *zap.Logger, cfg *config.Config) (*mq.Connection, error) {
	return mq.NewConnection(lc, logger, cfg.RabbitMQ.URL, cfg.ServiceName)
}

// ProvidePublisher creates the event publisher
func ProvidePublisher(conn *mq.Connection, cfg *config.Config, logger *zap.Logger) (*mq.Publisher, error) {
	return mq.NewPublisher(conn, cfg.RabbitMQ.EventExchange, logger)
}

// ProvideController creates the flow controller
func ProvideController(
	repo *repository.Repository,
	aggregator *aggregate.Service,
	dispatcher *notify.Dispatcher,
	publisher *mq.Publisher,
	m *metrics.Metrics,
	logger *zap.Logger,
) *flowcontrol.Controller {
	return flowcontrol.NewController(repo, repo, aggregator, dispatcher, publisher, m, logger)
}

// ProvideIngestService creates the reading ingest service
func ProvideIngestService(
	repo *repository.Repository,
	detector *anomaly.Detector,
	controller *flowcontrol.Controller,
	publisher *mq.Publisher,
	m *metrics.Metrics,
	cfg *config.Config,
	logger *zap.Logger,
) *service.IngestService {
	return service.NewIngestService(repo, detector, controller, publisher, m, cfg, logger)
}

// ProvideHandlers creates the HTTP API handlers
func ProvideHandlers(
	ingest *service.IngestService,
	aggregator *aggregate.Service,
	controller *flowcontrol.Controller,
	repo *repository.Repository,
	cfg *config.Config,
	logger *zap.Logger,
) *httpapi.Handlers {
	return httpapi.NewHandlers(ingest, aggregator, controller, repo, cfg.Control.Location, logger)
}

// ProvideRouter builds the HTTP route table
func ProvideRouter(h *httpapi.Handlers, m *metrics.Metrics) *mux.Router {
	return httpapi.NewRouter(h, m)
}
