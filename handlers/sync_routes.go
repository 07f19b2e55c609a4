// handlers/sync_routes.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"partnership-sync/logger"
	"partnership-sync/middleware"
	"partnership-sync/workers"

	"github.com/gofiber/fiber/v2"
)

// SyncService is what the trigger routes drive; *workers.Syncer implements it.
type SyncService interface {
	SyncCustomers(ctx context.Context, opts workers.RunOptions) (*workers.RunSummary, error)
	SyncTransactions(ctx context.Context, opts workers.RunOptions) (*workers.RunSummary, error)
	SyncUsage(ctx context.Context, opts workers.RunOptions) (*workers.RunSummary, error)
	SyncAll(ctx context.Context, opts workers.RunOptions) (*workers.SyncAllSummary, error)
}

type syncRequest struct {
	Incremental bool           `json:"incremental"`
	Mode        string         `json:"mode"`
	Limit       int            `json:"limit"`
	Page        int            `json:"page"`
	Filter      map[string]any `json:"filter"`
	StartDate   string         `json:"startDate"`
	EndDate     string         `json:"endDate"`
	Status      string         `json:"status"`
}

// parseSyncRequest reads the optional JSON body. An empty body means a full
// run with default paging.
func parseSyncRequest(body []byte) (workers.RunOptions, error) {
	var req syncRequest
	if len(strings.TrimSpace(string(body))) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			return workers.RunOptions{}, fmt.Errorf("malformed JSON body: %w", err)
		}
	}

	opts := workers.RunOptions{
		Incremental: req.Incremental,
		Page:        req.Page,
		Limit:       req.Limit,
		Filter:      req.Filter,
		Status:      strings.TrimSpace(req.Status),
	}
	switch strings.ToLower(strings.TrimSpace(req.Mode)) {
	case "":
	case "incremental":
		opts.Incremental = true
	case "full":
		opts.Incremental = false
	default:
		return opts, fmt.Errorf("mode must be \"full\" or \"incremental\", got %q", req.Mode)
	}
	if req.Limit < 0 {
		return opts, errors.New("limit must not be negative")
	}
	if req.Page < 0 {
		return opts, errors.New("page must not be negative")
	}

	var err error
	if opts.StartDate, err = parseDate(req.StartDate, false); err != nil {
		return opts, fmt.Errorf("startDate: %w", err)
	}
	if opts.EndDate, err = parseDate(req.EndDate, false); err != nil {
		return opts, fmt.Errorf("endDate: %w", err)
	}
	if opts.StartDate != nil && opts.EndDate != nil && opts.StartDate.After(*opts.EndDate) {
		return opts, errors.New("startDate is after endDate")
	}
	return opts, nil
}

// SetupSyncRoutes registers the sync trigger endpoints.
func SetupSyncRoutes(router fiber.Router, syncer SyncService) {
	routes := router.Group("/sync", middleware.CallerContextMiddleware())

	routes.Post("/customers", runEntity("customers", syncer.SyncCustomers))
	routes.Post("/transactions", runEntity("transactions", syncer.SyncTransactions))
	routes.Post("/usage", runEntity("usage", syncer.SyncUsage))

	routes.Post("/all", func(c *fiber.Ctx) error {
		opts, err := parseSyncRequest(c.Body())
		if err != nil {
			return badRequest(c, "invalid sync request", err)
		}
		log := logger.FromContext(c.UserContext())
		log.Info().Str("entity", "all").Bool("incremental", opts.Incremental).Msg("sync triggered")

		summary, err := syncer.SyncAll(c.UserContext(), opts)
		if err != nil {
			return c.Status(fiber.StatusBadGateway).JSON(summary)
		}
		return c.JSON(summary)
	})
}

func runEntity(entity string, run func(context.Context, workers.RunOptions) (*workers.RunSummary, error)) fiber.Handler {
	return func(c *fiber.Ctx) error {
		opts, err := parseSyncRequest(c.Body())
		if err != nil {
			return badRequest(c, "invalid sync request", err)
		}
		log := logger.FromContext(c.UserContext())
		log.Info().Str("entity", entity).Bool("incremental", opts.Incremental).Msg("sync triggered")

		summary, err := run(c.UserContext(), opts)
		if err != nil {
			status := fiber.StatusInternalServerError
			if workers.IsSourceFailure(err) {
				status = fiber.StatusBadGateway
			}
			if summary == nil {
				return c.Status(status).JSON(fiber.Map{
					"status": workers.StatusError,
					"error":  "sync run failed",
					"cause":  err.Error(),
				})
			}
			return c.Status(status).JSON(summary)
		}
		return c.JSON(summary)
	}
}
