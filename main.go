package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/meridianmedia/bookingsync/app/controllers"
	"github.com/meridianmedia/bookingsync/app/models"
	"github.com/meridianmedia/bookingsync/app/repository"
	"github.com/meridianmedia/bookingsync/internal/pkg/booking"
	"github.com/meridianmedia/bookingsync/internal/pkg/cache"
	"github.com/meridianmedia/bookingsync/internal/pkg/database"
	"github.com/meridianmedia/bookingsync/internal/pkg/env"
	"github.com/meridianmedia/bookingsync/internal/pkg/lacrm"
	"github.com/meridianmedia/bookingsync/internal/pkg/lock"
	"github.com/meridianmedia/bookingsync/internal/pkg/poller"
	"github.com/meridianmedia/bookingsync/internal/pkg/router"
	"github.com/meridianmedia/bookingsync/internal/pkg/schema"
	"github.com/meridianmedia/bookingsync/internal/pkg/source"
	enginesync "github.com/meridianmedia/bookingsync/internal/pkg/sync"
)

var pollManager *poller.Manager

func main() {
	app := NewApplication()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit

		pollManager.Stop()
		_ = app.Shutdown()
	}()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	db := database.GetDB()
	if err := models.LoadSyncSettings(db); err != nil {
		log.Fatalf("Failed to load sync settings: %v", err)
	}

	src := source.NewMySQLSource(db)
	settingRepo := repository.NewSettingRepository(db)
	mappingRepo := repository.NewMappingRepository(db)
	schemaCache := schema.NewCache(src, settingRepo)
	reader := booking.NewReader(src)

	crm := lacrm.NewClient(func() string {
		if s := models.GetSyncSettings(); s != nil {
			return s.GetAPIKey()
		}
		return ""
	})

	engine := enginesync.NewEngine(crm, reader, schemaCache, mappingRepo, newLocker(), nil)
	pollManager = poller.NewManager(engine, reader, schemaCache, mappingRepo, settingRepo, nil, pollInterval())

	controllers.InitializeHookController(engine)
	controllers.InitializeAdminSyncController(pollManager, schemaCache, settingRepo)

	app := fiber.New(fiber.Config{
		AppName: "bookingsync",
	})
	app.Use(recover.New(), logger.New())
	app.Get("/metrics", monitor.New())

	router.InstallRouter(app)

	pollManager.Start()

	return app
}

// newLocker uses the shared Redis instance when it is reachable, which
// keeps booking locks valid across replicas. Without Redis a single
// process falls back to in-memory locks.
func newLocker() lock.Locker {
	client := cache.GetClient()
	if client != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err == nil {
			return lock.NewRedisLocker(client, lock.DefaultTTL)
		}
	}
	log.Println("Warning: Redis not reachable, using in-process sync locks")
	return lock.NewMemoryLocker(lock.DefaultTTL)
}

func pollInterval() time.Duration {
	raw := env.GetEnv("POLL_INTERVAL_SECONDS", "60")
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds <= 0 {
		return poller.DefaultInterval
	}
	return time.Duration(seconds) * time.Second
}
