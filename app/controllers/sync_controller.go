package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/tidewave/cruisesync/app/repository"
)

var syncRepos *repository.Repositories

// InitializeSyncController wires the repositories into the read-only sync API.
func InitializeSyncController(repos *repository.Repositories) {
	syncRepos = repos
}

// HandleGetSyncBatch returns one batch by UUID, including its failure
// breakdown by error category.
func HandleGetSyncBatch(c *fiber.Ctx) error {
	uuid := c.Params("uuid")
	if uuid == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "uuid missing"})
	}

	batch, err := syncRepos.Batch.GetByUUID(uuid)
	if err != nil || batch == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "batch not found"})
	}
	return c.JSON(batch)
}

// HandleListSyncBatches returns the most recent batches.
func HandleListSyncBatches(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 20)
	if limit < 1 || limit > 100 {
		limit = 20
	}
	batches, err := syncRepos.Batch.ListRecent(limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal"})
	}
	return c.JSON(fiber.Map{"batches": batches})
}

// HandleGetBatchPriceChanges returns the price history rows one batch produced.
func HandleGetBatchPriceChanges(c *fiber.Ctx) error {
	uuid := c.Params("uuid")
	batch, err := syncRepos.Batch.GetByUUID(uuid)
	if err != nil || batch == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "batch not found"})
	}
	entries, err := syncRepos.PriceHistory.ListByBatch(batch.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal"})
	}
	return c.JSON(fiber.Map{"batch": batch.UUID, "changes": entries})
}

// HandleGetSailingPriceHistory returns recent price changes for one sailing.
func HandleGetSailingPriceHistory(c *fiber.Ctx) error {
	sailingID, err := c.ParamsInt("id")
	if err != nil || sailingID < 1 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "invalid sailing id"})
	}
	limit := c.QueryInt("limit", 100)
	if limit < 1 || limit > 500 {
		limit = 100
	}
	entries, err := syncRepos.PriceHistory.ListBySailing(uint(sailingID), limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal"})
	}
	return c.JSON(fiber.Map{"sailing_id": sailingID, "changes": entries})
}

// HandleListWebhookEvents returns the recent notification audit trail for a line.
func HandleListWebhookEvents(c *fiber.Ctx) error {
	lineID, err := c.ParamsInt("lineid")
	if err != nil || lineID < 1 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "invalid line id"})
	}
	limit := c.QueryInt("limit", 50)
	if limit < 1 || limit > 200 {
		limit = 50
	}
	events, err := syncRepos.WebhookEvent.ListByLine(lineID, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal"})
	}
	return c.JSON(fiber.Map{"line_id": lineID, "events": events})
}
