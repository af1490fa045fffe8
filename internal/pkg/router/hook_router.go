package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/meridianmedia/bookingsync/app/controllers"
	"github.com/meridianmedia/bookingsync/internal/pkg/env"
)

type HookRouter struct {
}

func NewHookRouter() *HookRouter {
	return &HookRouter{}
}

func (h HookRouter) InstallRouter(app *fiber.App) {
	app.Get("/up", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	hooks := app.Group("/hooks", limiter.New(), sharedTokenMiddleware("HOOK_TOKEN"))
	hooks.Post("/booking/created/:id", controllers.HandleBookingCreated)
	hooks.Post("/booking/updated/:id", controllers.HandleBookingUpdated)
	hooks.Post("/booking/cancelled/:id", controllers.HandleBookingCancelled)
}

// sharedTokenMiddleware rejects requests whose X-Sync-Token header does
// not match the token in the named env var. An empty env var disables the
// check, for deployments where the network boundary does the gating.
func sharedTokenMiddleware(envKey string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := env.GetEnv(envKey, "")
		if token != "" && c.Get("X-Sync-Token") != token {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid or missing sync token",
			})
		}
		return c.Next()
	}
}
