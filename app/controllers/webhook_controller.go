package controllers

import (
	"context"
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/tidewave/cruisesync/internal/pkg/webhook"
)

// IntakeService is the intake pipeline the handler hands notifications to;
// satisfied by webhook.Intake.
type IntakeService interface {
	Receive(ctx context.Context, payload *webhook.Payload, rawBody []byte) (*webhook.Result, error)
}

var webhookIntake IntakeService

// InitializeWebhookController wires the intake pipeline into the handler.
func InitializeWebhookController(intake IntakeService) {
	webhookIntake = intake
}

// HandleTraveltekWebhook receives feed update notifications. The sender
// treats non-2xx as a delivery failure and retries aggressively, so every
// outcome answers 200, internal failures included: a retry storm on top of
// a broken backend only makes things worse, and the audit row carries the
// failure for follow-up.
func HandleTraveltekWebhook(c *fiber.Ctx) error {
	body := c.Body()

	var payload webhook.Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		log.Warnf("[Webhook] Undecodable notification body: %v", err)
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status":   "rejected",
			"accepted": false,
			"reason":   webhook.ReasonInvalid,
		})
	}

	result, err := webhookIntake.Receive(c.UserContext(), &payload, body)
	if err != nil {
		log.Errorf("[Webhook] Intake failed for line %d: %v", payload.LineID, err)
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status":   "error",
			"accepted": false,
		})
	}

	status := "accepted"
	if !result.Accepted {
		status = "rejected"
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status":   status,
		"accepted": result.Accepted,
		"reason":   result.Reason,
		"event_id": result.EventID,
	})
}
