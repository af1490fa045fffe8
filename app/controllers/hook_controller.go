package controllers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
)

// BookingSyncer is the reconciliation surface the hook endpoints drive
type BookingSyncer interface {
	OnBookingCreated(ctx context.Context, id uint)
	OnBookingUpdated(ctx context.Context, id uint)
	OnBookingCancelled(ctx context.Context, id uint)
}

var hookSyncer BookingSyncer

// InitializeHookController wires the sync engine into the hook endpoints
func InitializeHookController(syncer BookingSyncer) {
	hookSyncer = syncer
}

// bookingIDParam parses and validates the :id path parameter
func bookingIDParam(c *fiber.Ctx) (uint, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return 0, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "booking id must be a positive integer",
		})
	}
	return uint(id), nil
}

// dispatchHook runs the sync operation in the background. Hooks answer
// immediately; sync outcomes are observable in the logs and the mapping
// table, and contention or failure is healed by the poll loop.
func dispatchHook(c *fiber.Ctx, kind string, op func(ctx context.Context, id uint)) error {
	if hookSyncer == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "sync engine is not initialized",
		})
	}

	id, err := bookingIDParam(c)
	if err != nil {
		return err
	}

	log.Debugf("[Hooks] %s signal for booking %d", kind, id)
	go op(context.Background(), id)

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"status":     "accepted",
		"booking_id": id,
	})
}

// HandleBookingCreated accepts a booking-created signal
func HandleBookingCreated(c *fiber.Ctx) error {
	return dispatchHook(c, "created", func(ctx context.Context, id uint) {
		hookSyncer.OnBookingCreated(ctx, id)
	})
}

// HandleBookingUpdated accepts a booking-updated signal
func HandleBookingUpdated(c *fiber.Ctx) error {
	return dispatchHook(c, "updated", func(ctx context.Context, id uint) {
		hookSyncer.OnBookingUpdated(ctx, id)
	})
}

// HandleBookingCancelled accepts a booking-cancelled signal
func HandleBookingCancelled(c *fiber.Ctx) error {
	return dispatchHook(c, "cancelled", func(ctx context.Context, id uint) {
		hookSyncer.OnBookingCancelled(ctx, id)
	})
}
