// handlers/params.go
package handlers

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"partnership-sync/services"

	"github.com/gofiber/fiber/v2"
)

// parseDate accepts YYYY-MM-DD or RFC 3339. A date-only upper bound is moved
// to the start of the next day so the whole day is included.
func parseDate(value string, upper bool) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.DateOnly, value); err == nil {
		if upper {
			t = t.AddDate(0, 0, 1)
		}
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, fmt.Errorf("%q is not a date (want YYYY-MM-DD)", value)
	}
	t = t.UTC()
	return &t, nil
}

func pagination(c *fiber.Ctx) (services.Pagination, error) {
	page, err := strconv.Atoi(c.Query("page", "1"))
	if err != nil || page < 1 {
		return services.Pagination{}, fmt.Errorf("page must be a positive integer")
	}
	size, err := strconv.Atoi(c.Query("size", "20"))
	if err != nil || size < 1 {
		return services.Pagination{}, fmt.Errorf("size must be a positive integer")
	}
	return services.Pagination{Page: page, Size: size}, nil
}

func badRequest(c *fiber.Ctx, msg string, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": msg,
		"cause": err.Error(),
	})
}
