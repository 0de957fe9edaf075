package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/tidewave/cruisesync/app/controllers"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	app.Get("/health", controllers.HandleHealth)

	api := app.Group("/api")
	v1 := api.Group("/v1")

	// Intake
	v1.Post("/webhooks/traveltek", controllers.HandleTraveltekWebhook)

	// Read-only sync observability
	v1.Get("/sync/batches", controllers.HandleListSyncBatches)
	v1.Get("/sync/batches/:uuid", controllers.HandleGetSyncBatch)
	v1.Get("/sync/batches/:uuid/changes", controllers.HandleGetBatchPriceChanges)
	v1.Get("/sailings/:id/price-history", controllers.HandleGetSailingPriceHistory)
	v1.Get("/lines/:lineid/webhook-events", controllers.HandleListWebhookEvents)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
