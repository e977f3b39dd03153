package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/oralflow/oralflow/libs/config"
	"github.com/oralflow/oralflow/libs/db"
	"github.com/oralflow/oralflow/libs/httpx"
	"github.com/oralflow/oralflow/libs/kafkax"
	otelx "github.com/oralflow/oralflow/libs/otel"
	"github.com/oralflow/oralflow/libs/runtime"
	"github.com/oralflow/oralflow/services/notification-service/internal/consumer"
	"github.com/oralflow/oralflow/services/notification-service/internal/dispatch"
	"github.com/oralflow/oralflow/services/notification-service/internal/inbox"
	"github.com/oralflow/oralflow/services/notification-service/internal/storage"
	"github.com/oralflow/oralflow/services/notification-service/internal/whatsapp"
	"github.com/oralflow/oralflow/services/notification-service/migrations"
)

func main() {
	_ = config.LoadDotEnv()
	service := config.String("SERVICE_NAME", "notification-service")
	port, err := config.Port("PORT", "8085")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

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

	var sender whatsapp.Sender
	switch strings.ToLower(config.String("WHATSAPP_PROVIDER", "noop")) {
	case "noop":
		sender = whatsapp.NewNoopSender()
	default:
		sender = whatsapp.NewWebhookSender(
			config.String("WHATSAPP_WEBHOOK_URL", ""),
			config.String("WHATSAPP_TOKEN", ""),
		)
	}

	dispatcher := dispatch.New(
		sender,
		storage.NewRepository(pool),
		config.String("PHONE_DEFAULT_REGION", "EC"),
		logger,
	)

	brokers := config.String("KAFKA_BROKERS", "")
	eventConsumer := consumer.New(logger, inbox.NewRepository(pool), consumer.Config{
		Brokers: brokers,
		GroupID: config.String("KAFKA_GROUP_ID", "notification-service"),
		Topics:  config.List("KAFKA_CONSUME_TOPICS", strings.Join(dispatch.Topics(), ",")),
	}, dispatcher.Handle)
	go eventConsumer.Run(ctx)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)},
	)
	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	handler = otelhttp.NewHandler(handler, "notification")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr, "provider", sender.ProviderID())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
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
