// cmd/intake-bot/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"intake-bot/internal/bot/assist"
	"intake-bot/internal/bot/dispatch"
	"intake-bot/internal/bot/flow"
	"intake-bot/internal/bot/notify"
	"intake-bot/internal/bot/watchdog"
	"intake-bot/internal/catalog"
	"intake-bot/internal/common/aws"
	"intake-bot/internal/common/config"
	"intake-bot/internal/common/database"
	"intake-bot/internal/common/logger"
	"intake-bot/internal/common/observability"
	"intake-bot/internal/common/speech"
	"intake-bot/internal/common/telegram"
	"intake-bot/internal/common/translate"
	"intake-bot/internal/models"
	"intake-bot/internal/server"
	"intake-bot/internal/store"
	"intake-bot/pkg/registry"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	zapLog := logger.New("info", "console")
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting intake bot...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	obs := observability.New("intake-bot")
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init Elasticsearch with retry, optional ---
	var esClient *database.ElasticsearchClient
	if cfg.Database.Elasticsearch.GetURL() != "" {
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Warn("elasticsearch unavailable, message search indexing disabled", zap.Error(err))
			esClient = nil
		} else {
			zapLog.Info("Elasticsearch connected successfully")
		}
	}

	// --- Init Chat Gateway Client ---
	chat := telegram.NewClient(cfg.Telegram, log)
	err = retryWithBackoff(func() error {
		me, err := chat.GetMe(ctx)
		if err != nil {
			return err
		}
		zapLog.Info("gateway token verified", zap.String("botUsername", me.Username))
		return nil
	}, 5, 2*time.Second, zapLog, "Gateway token verification")
	if err != nil {
		zapLog.Fatal("gateway verification failed after retries", zap.Error(err))
	}

	// --- Init Provider Clients ---
	translator := translate.NewClient(cfg.Translate, log)
	speechClient := speech.NewClient(cfg.Speech, log)

	var sesClient *aws.SESClient
	if cfg.Notifications.Email.Enabled {
		sesClient, err = aws.NewSESClient(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			zapLog.Fatal("ses client init failed", zap.Error(err))
		}
	}

	var snsClient *aws.SNSClient
	if cfg.Notifications.SMS.Enabled {
		snsClient, err = aws.NewSNSClient(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			zapLog.Fatal("sns client init failed", zap.Error(err))
		}
	}

	// --- Init Stores ---
	apps := store.NewApplicationStore(pg, log)
	catalogStore := store.NewCatalogStore(pg, log)
	messages := store.NewMessageStore(pg, esClient, log)
	dedup := store.NewDedupStore(redis, log)
	recipients := store.NewRecipientStore(pg, log)

	// --- Seed Catalog (optional) ---
	if cfg.App.CatalogSeedPath != "" {
		if err := seedCatalog(ctx, catalogStore, cfg.App.CatalogSeedPath); err != nil {
			zapLog.Fatal("catalog seed failed", zap.Error(err))
		}
		zapLog.Info("catalog seeded", zap.String("path", cfg.App.CatalogSeedPath))
	}

	catalogSvc := catalog.NewService(catalogStore, log)

	// --- Wire Handlers ---
	var emailSender notify.EmailSender
	if sesClient != nil {
		emailSender = sesClient
	}
	var smsSender notify.SMSSender
	if snsClient != nil {
		smsSender = snsClient
	}
	notifier := notify.NewNotifier(notify.FromAppConfig(cfg.Notifications), recipients, dedup, chat, emailSender, smsSender, log)

	flowHandler := flow.NewHandler(flow.FromAppConfig(cfg.Flow), apps, catalogSvc, chat, notifier, log)
	assistHandler := assist.NewHandler(assist.FromAppConfig(cfg.Assist), translator, speechClient, chat, messages, log)
	dispatcher := dispatch.NewHandler(dispatch.FromAppConfig(cfg.Telegram), flowHandler, assistHandler, apps, chat, dedup, obs, log)

	wdHandler := watchdog.NewHandler(watchdog.FromAppConfig(cfg.Watchdog), apps, catalogSvc, dedup, notifier, log)

	// --- Watchdog Ticker ---
	wdCtx, wdCancel := context.WithCancel(ctx)
	defer wdCancel()
	go runWatchdogLoop(wdCtx, wdHandler, watchdog.FromAppConfig(cfg.Watchdog).Interval, zapLog)

	// --- HTTP Server ---
	srv := server.New(cfg.Server.Port, dispatcher, wdHandler, log)
	go func() {
		if err := srv.Start(); err != nil {
			zapLog.Fatal("http server failed", zap.Error(err))
		}
	}()

	zapLog.Info("intake bot started", zap.Int("port", cfg.Server.Port))

	// --- Wait for shutdown signal ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("shutting down...")
	wdCancel()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		zapLog.Error("http server shutdown failed", zap.Error(err))
	}
	zapLog.Info("shutdown complete")
}

func runWatchdogLoop(ctx context.Context, wd *watchdog.Handler, interval time.Duration, log *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := wd.Run(ctx); err != nil {
				log.Error("watchdog sweep failed", zap.Error(err))
			}
		}
	}
}

func seedCatalog(ctx context.Context, catalogStore *store.CatalogStore, path string) error {
	doc, err := registry.LoadCatalog(path)
	if err != nil {
		return err
	}

	steps := make([]models.QuestionDefinition, 0, len(doc.Questions))
	for _, q := range doc.Questions {
		opts, err := registry.SeedOptions(q.Options)
		if err != nil {
			return fmt.Errorf("step %s: %w", q.StepID, err)
		}
		steps = append(steps, models.QuestionDefinition{
			StepID:    q.StepID,
			Position:  q.Position,
			Prompt:    q.Prompt,
			InputKind: q.InputKind,
			Options:   opts,
			Active:    q.Active,
		})
	}
	return catalogStore.ReplaceAll(ctx, steps)
}
