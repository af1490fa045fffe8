package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/meridianmedia/bookingsync/app/controllers"
)

type AdminRouter struct {
}

func NewAdminRouter() *AdminRouter {
	return &AdminRouter{}
}

func (a AdminRouter) InstallRouter(app *fiber.App) {
	admin := app.Group("/admin/sync", sharedTokenMiddleware("ADMIN_TOKEN"))
	admin.Get("/status", controllers.HandleSyncStatus)
	admin.Post("/recheck", controllers.HandleSyncRecheck)
	admin.Post("/rediscover", controllers.HandleSchemaRediscover)
}
