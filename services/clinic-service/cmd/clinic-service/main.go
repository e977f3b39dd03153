package main

import (
	"context"
	"errors"
	"net/http"
	"time"
	_ "time/tzdata"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/oralflow/oralflow/libs/config"
	"github.com/oralflow/oralflow/libs/db"
	"github.com/oralflow/oralflow/libs/grpcx"
	"github.com/oralflow/oralflow/libs/httpx"
	"github.com/oralflow/oralflow/libs/kafkax"
	otelx "github.com/oralflow/oralflow/libs/otel"
	"github.com/oralflow/oralflow/libs/runtime"
	"github.com/oralflow/oralflow/services/clinic-service/internal/booking"
	"github.com/oralflow/oralflow/services/clinic-service/internal/handlers"
	"github.com/oralflow/oralflow/services/clinic-service/internal/maintenance"
	"github.com/oralflow/oralflow/services/clinic-service/internal/metrics"
	"github.com/oralflow/oralflow/services/clinic-service/internal/outbox"
	"github.com/oralflow/oralflow/services/clinic-service/internal/policy"
	"github.com/oralflow/oralflow/services/clinic-service/internal/storage"
	"github.com/oralflow/oralflow/services/clinic-service/internal/sweep"
	"github.com/oralflow/oralflow/services/clinic-service/migrations"
)

func main() {
	_ = config.LoadDotEnv()
	service := config.String("SERVICE_NAME", "clinic-service")
	port, err := config.Port("PORT", "8081")
	if err != nil {
		panic(err)
	}
	grpcPort, err := config.Port("GRPC_PORT", "9091")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	loc, err := config.Location("CLINIC_TIMEZONE", "America/Guayaquil")
	if err != nil {
		panic(err)
	}

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}

	if config.Bool("MIGRATE_ON_START", false) {
		if err := migrateUp(dbURL); err != nil {
			logger.Error("migrations failed", "err", err)
			panic(err)
		}
		logger.Info("migrations applied")
	}

	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	brokers := config.String("KAFKA_BROKERS", "")
	outboxRepo := outbox.NewRepository()
	publisher := outbox.NewPublisher(pool, outboxRepo, logger, m, outbox.PublisherConfig{
		Brokers:   brokers,
		PollEvery: config.Seconds("OUTBOX_POLL_SECONDS", 2*time.Second),
		BatchSize: config.Int("OUTBOX_BATCH_SIZE", 50),
	})
	go publisher.Run(ctx)

	provider := policy.NewStoreProvider(storage.NewPolicyRepository(pool), logger)
	bookings := booking.New(pool, provider, outboxRepo, m, logger, booking.Config{Location: loc})
	bulk := maintenance.New(pool, outboxRepo, m, logger, maintenance.Config{Location: loc})

	if config.Bool("SWEEP_ENABLED", true) {
		sweeper := sweep.New(pool, provider, outboxRepo, m, logger, sweep.Config{
			Location:     loc,
			ReminderLead: time.Duration(config.Int("REMINDER_LEAD_HOURS", 24)) * time.Hour,
		})
		go sweep.NewWorker(sweeper, logger, config.Seconds("SWEEP_INTERVAL_SECONDS", time.Minute)).Run(ctx)
	}

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)},
	)
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	handlers.Register(mux, bookings, bulk, logger)

	httpMetrics := httpx.NewHTTPMetrics(reg, "clinic")
	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithRecover(logger),
		httpx.WithAccessLog(logger),
		httpMetrics.Middleware(),
		httpx.WithBodyLimit(1<<20),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "clinic")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcSrv := grpcx.NewServer(logger)
	grpcSrv.SetServing(service, true)
	go func() {
		if err := grpcSrv.Serve(ctx, ":"+grpcPort); err != nil {
			logger.Error("grpc server error", "err", err)
		}
	}()

	go func() {
		logger.Info("http server starting", "addr", srv.Addr, "tz", loc.String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	grpcSrv.SetServing(service, false)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}

func migrateUp(dbURL string) error {
	mg, err := db.NewMigrator(dbURL, migrations.FS, ".")
	if err != nil {
		return err
	}
	defer mg.Close()
	return mg.Up()
}
