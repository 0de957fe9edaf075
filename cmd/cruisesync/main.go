package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/tidewave/cruisesync/app/controllers"
	"github.com/tidewave/cruisesync/app/repository"
	"github.com/tidewave/cruisesync/internal/pkg/cache"
	"github.com/tidewave/cruisesync/internal/pkg/database"
	"github.com/tidewave/cruisesync/internal/pkg/env"
	"github.com/tidewave/cruisesync/internal/pkg/feed"
	"github.com/tidewave/cruisesync/internal/pkg/feedarchive"
	"github.com/tidewave/cruisesync/internal/pkg/notify"
	"github.com/tidewave/cruisesync/internal/pkg/router"
	"github.com/tidewave/cruisesync/internal/pkg/syncer"
	"github.com/tidewave/cruisesync/internal/pkg/synclock"
	"github.com/tidewave/cruisesync/internal/pkg/traveltek"
	"github.com/tidewave/cruisesync/internal/pkg/webhook"
)

func main() {
	app, pool := NewApplication()

	// Graceful shutdown: stop accepting requests, then close feed sessions.
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		_ = app.Shutdown()
	}()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "0.0.0.0"), env.GetEnv("APP_PORT", "4000")))
	pool.Close()
	if err != nil {
		log.Fatal(err)
	}
}

func NewApplication() (*fiber.App, *traveltek.Pool) {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	// Feed credentials are startup-fatal: the service exists to sync and
	// cannot do its job without them.
	feedCfg, err := traveltek.LoadConfig()
	if err != nil {
		log.Fatalf("feed configuration: %v", err)
	}
	precedence, err := feed.LoadPrecedence()
	if err != nil {
		log.Fatalf("pricing precedence: %v", err)
	}
	archiver, err := feedarchive.NewFromEnv()
	if err != nil {
		log.Fatalf("feed archive: %v", err)
	}

	pool := traveltek.NewPool(feedCfg, traveltek.DialFTP)
	repos := repository.NewFactory(database.GetDB()).GetRepositories()

	extractor := syncer.NewExtractor(database.GetDB(), precedence)
	detector := syncer.NewDetector(repos.Sailing, repos.PriceHistory)
	scheduler := syncer.NewScheduler(syncer.LoadConfig(), pool, extractor, detector,
		repos.Batch, notify.NewReporterFromEnv(), archiver)

	locker := synclock.NewLocker(cache.GetClient())
	intake := webhook.NewIntake(webhook.LoadConfig(), repos.WebhookEvent, repos.Sailing,
		locker, repos.SyncLock, scheduler)

	controllers.InitializeWebhookController(intake)
	controllers.InitializeSyncController(repos)
	controllers.InitializeHealthController(pool)

	app := fiber.New(fiber.Config{
		BodyLimit: 10 * 1024 * 1024,
	})
	app.Use(recover.New(), logger.New())
	app.Get("/metrics", monitor.New())

	router.InstallRouter(app)

	return app, pool
}
