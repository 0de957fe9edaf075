package controllers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sony/gobreaker"

	"github.com/tidewave/cruisesync/internal/pkg/cache"
	"github.com/tidewave/cruisesync/internal/pkg/database"
)

// BreakerStater exposes the feed circuit state; satisfied by traveltek.Pool.
type BreakerStater interface {
	State() gobreaker.State
	IdleCount() int
}

var healthPool BreakerStater

// InitializeHealthController wires the feed pool into the health endpoint.
func InitializeHealthController(pool BreakerStater) {
	healthPool = pool
}

// HandleHealth reports liveness of the service and its dependencies. The
// endpoint stays 200 while the circuit is open: an unreachable feed host
// degrades syncing, it does not make this instance unhealthy.
func HandleHealth(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	dbStatus := "ok"
	if sqlDB, err := database.GetDB().DB(); err != nil || sqlDB.PingContext(ctx) != nil {
		dbStatus = "down"
	}

	redisStatus := "ok"
	if err := cache.GetClient().Ping(ctx).Err(); err != nil {
		redisStatus = "down"
	}

	feed := fiber.Map{}
	if healthPool != nil {
		feed["circuit"] = healthPool.State().String()
		feed["idle_sessions"] = healthPool.IdleCount()
	}

	status := fiber.StatusOK
	if dbStatus == "down" || redisStatus == "down" {
		status = fiber.StatusServiceUnavailable
	}
	return c.Status(status).JSON(fiber.Map{
		"database": dbStatus,
		"redis":    redisStatus,
		"feed":     feed,
	})
}
