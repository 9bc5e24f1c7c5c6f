package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	healthcheck "github.com/seongnamsijang/oms/internal/health"
	"github.com/seongnamsijang/oms/internal/messaging/kafka"
	"github.com/seongnamsijang/oms/internal/metrics"
	"github.com/seongnamsijang/oms/internal/service/idempotency"
	"github.com/seongnamsijang/oms/internal/service/order"
	"github.com/seongnamsijang/oms/internal/service/outbox"
	"github.com/seongnamsijang/oms/internal/transport/httpapi"
	"github.com/seongnamsijang/oms/internal/version"
)

const shutdownTimeout = 5 * time.Second

// Run собирает зависимости и запускает сервис оформления заказов:
// HTTP API, сервер метрик и фоновые воркеры. Блокируется до отмены ctx.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	deps, err := NewDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := deps.Close(); err != nil {
			logger.WithError(err).Warn("failed to close storage")
		}
	}()

	orderMetrics := metrics.NewOrderMetrics()
	orderService := order.NewService(deps.Orders,
		logger.WithField("component", "order-service"),
		order.WithOutbox(deps.Outbox),
		order.WithMinOrder(cfg.MinOrder),
		order.WithMetrics(orderMetrics),
	)

	// Kafka опционален: без брокеров события копятся в outbox
	// и уходят после включения воркера.
	var kafkaProducer *kafka.Producer
	var outboxWorker *outbox.Worker
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := kafka.NewProducer(cfg.KafkaBrokers)
		if err != nil {
			logger.WithError(err).Warn("failed to create kafka producer, continuing without kafka")
		} else {
			kafkaProducer = producer
			logger.WithField("brokers", cfg.KafkaBrokers).Info("kafka producer initialized")
			outboxWorker = outbox.NewWorker(
				deps.Outbox,
				kafka.NewOutboxPublisher(producer, kafka.TopicOrderEvents),
				outbox.WithLogger(logger.WithField("component", "outbox-worker")),
				outbox.WithDLQPublisher(kafka.NewOutboxPublisher(producer, kafka.TopicDeadLetterQueue)),
			)
		}
	}

	cleanupWorker := idempotency.NewCleanupWorker(deps.Idempotency,
		idempotency.WithLogger(logger.WithField("component", "idempotency-cleanup-worker")),
	)

	workersCtx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()
	if outboxWorker != nil {
		go outboxWorker.Run(workersCtx)
	}
	go cleanupWorker.Run(workersCtx)

	healthHandler := healthcheck.NewHandler(version.String())
	if deps.Store != nil {
		store := deps.Store
		healthHandler.RegisterChecker("postgres", healthcheck.NewSimpleChecker("postgres", func() error {
			return store.Ping(context.Background())
		}))
	}

	metricsSrv := startMetricsServer(cfg.MetricsAddr, logger, healthHandler)

	apiHandler := httpapi.NewHandler(orderService,
		logger.WithField("component", "httpapi"),
		httpapi.WithCatalog(deps.Catalog),
		httpapi.WithIdempotency(deps.Idempotency),
	)
	apiMux := http.NewServeMux()
	apiHandler.Register(apiMux)

	apiSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: apiMux}
	errCh := make(chan error, 1)
	go func() {
		logger.Infof("HTTP API слушает %s", cfg.HTTPAddr)
		errCh <- apiSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем сервис")
		stopWorkers()
		shutdownHTTP(apiSrv, logger)
		shutdownHTTP(metricsSrv, logger)
		closeKafka(kafkaProducer, logger)
		return ctx.Err()
	case err := <-errCh:
		stopWorkers()
		shutdownHTTP(metricsSrv, logger)
		closeKafka(kafkaProducer, logger)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// startMetricsServer запускает HTTP-сервер с /metrics и health-проверками.
func startMetricsServer(addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		logger.Infof("health checks: %s/healthz, %s/readyz, %s/livez", addr, addr, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}

func closeKafka(producer *kafka.Producer, logger *log.Entry) {
	if producer == nil {
		return
	}
	if err := producer.Close(); err != nil {
		logger.WithError(err).Warn("failed to close kafka producer")
		return
	}
	logger.Info("kafka producer closed")
}
