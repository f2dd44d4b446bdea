package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/groupbuy-api/internal/config"
	"github.com/noah-isme/groupbuy-api/internal/utils"
)

// HealthResponse represents the payload returned by the health endpoint.
type HealthResponse struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	Service     string    `json:"service"`
	Environment string    `json:"environment"`
	Database    string    `json:"database"`
}

// Pinger is anything whose liveness the health check reports.
type Pinger interface {
	Ping() error
}

// HealthCheck reports service metadata and, when db is set, whether the store answers.
func HealthCheck(cfg config.Config, db Pinger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		payload := HealthResponse{
			Status:      "ok",
			Timestamp:   time.Now().UTC(),
			Service:     cfg.AppName,
			Environment: cfg.AppEnv,
			Database:    "unknown",
		}

		if db != nil {
			if err := db.Ping(); err != nil {
				payload.Status = "degraded"
				payload.Database = "unreachable"
				return c.Status(fiber.StatusServiceUnavailable).JSON(utils.APIResponse{
					Success: false,
					Data:    payload,
					Error:   "UNAVAILABLE",
					Message: "database unreachable",
				})
			}
			payload.Database = "ok"
		}

		return utils.SendSuccess(c, "service healthy", payload)
	}
}
