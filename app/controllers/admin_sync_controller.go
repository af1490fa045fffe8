package controllers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/meridianmedia/bookingsync/app/models"
	"github.com/meridianmedia/bookingsync/app/repository"
	"github.com/meridianmedia/bookingsync/internal/pkg/schema"
)

// CycleRunner runs one full poll cycle on demand
type CycleRunner interface {
	RunOnce(ctx context.Context)
}

// SchemaRediscoverer forces a fresh schema discovery
type SchemaRediscoverer interface {
	Get(forced bool) schema.Map
}

var (
	adminRunner   CycleRunner
	adminSchemas  SchemaRediscoverer
	adminSettings repository.SettingRepository
)

// InitializeAdminSyncController wires the poll manager and schema cache
// into the admin endpoints
func InitializeAdminSyncController(runner CycleRunner, schemas SchemaRediscoverer, settings repository.SettingRepository) {
	adminRunner = runner
	adminSchemas = schemas
	adminSettings = settings
}

// HandleSyncRecheck triggers one poll cycle (watermark scan plus recheck
// pass) in the background.
func HandleSyncRecheck(c *fiber.Ctx) error {
	if adminRunner == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "poll manager is not initialized",
		})
	}

	log.Info("[Admin] Manual recheck requested")
	go adminRunner.RunOnce(context.Background())

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"status": "accepted",
	})
}

// HandleSchemaRediscover drops the cached schema map and rediscovers the
// source tables immediately.
func HandleSchemaRediscover(c *fiber.Ctx) error {
	if adminSchemas == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "schema cache is not initialized",
		})
	}

	log.Info("[Admin] Forced schema rediscovery requested")
	m := adminSchemas.Get(true)

	return c.JSON(fiber.Map{
		"booking_table":  m.BookingTable,
		"customer_table": m.CustomerTable,
		"service_table":  m.ServiceTable,
	})
}

// HandleSyncStatus reports the sync configuration state and watermark.
// The API key itself is never echoed back.
func HandleSyncStatus(c *fiber.Ctx) error {
	s := models.GetSyncSettings()
	if s == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "settings are not loaded",
		})
	}

	watermark := ""
	if adminSettings != nil {
		if v, err := adminSettings.GetValue(models.SettingLastProcessedID); err == nil {
			watermark = v
		}
	}

	return c.JSON(fiber.Map{
		"api_key_configured": s.GetAPIKey() != "",
		"add_note":           s.IsAddNoteEnabled(),
		"delete_on_cancel":   s.IsDeleteOnCancelEnabled(),
		"debug":              s.IsDebugEnabled(),
		"poll_batch_limit":   s.GetPollBatchLimit(),
		"recheck_limit":      s.GetRecheckLimit(),
		"last_processed_id":  watermark,
	})
}
