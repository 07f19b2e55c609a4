// handlers/dashboard_routes.go
package handlers

import (
	"errors"
	"fmt"

	"partnership-sync/services"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// SetupCustomerRoutes registers the read-only customer views.
func SetupCustomerRoutes(router fiber.Router, customers *services.CustomerQueryService) {
	router.Get("/customers", func(c *fiber.Ctx) error {
		page, err := pagination(c)
		if err != nil {
			return badRequest(c, "invalid pagination", err)
		}
		filter := services.CustomerFilter{
			Search:       c.Query("search"),
			ReferralCode: c.Query("referral_code"),
			PartnerType:  c.Query("partner_type"),
			IndustrySlug: c.Query("industry"),
			Pagination:   page,
		}
		switch filter.PartnerType {
		case "", "government", "non_government":
		default:
			return badRequest(c, "invalid partner_type", fmt.Errorf("want government or non_government, got %q", filter.PartnerType))
		}
		if s := c.Query("status"); s != "" {
			status, ok := services.ParseActivityStatus(s)
			if !ok {
				return badRequest(c, "invalid status", fmt.Errorf("want active, idle or passive, got %q", s))
			}
			filter.Status = status
		}
		if filter.CreatedFrom, err = parseDate(c.Query("created_from"), false); err != nil {
			return badRequest(c, "invalid created_from", err)
		}
		if filter.CreatedTo, err = parseDate(c.Query("created_to"), true); err != nil {
			return badRequest(c, "invalid created_to", err)
		}

		result, err := customers.ListCustomers(c.UserContext(), filter)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to list customers",
				"cause": err.Error(),
			})
		}
		return c.JSON(result)
	})

	router.Get("/customers/activity", func(c *fiber.Ctx) error {
		counts, err := customers.ActivitySummary(c.UserContext())
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to summarize customer activity",
				"cause": err.Error(),
			})
		}
		var total int64
		for _, n := range counts {
			total += n
		}
		return c.JSON(fiber.Map{
			"active":  counts[services.ActivityActive],
			"idle":    counts[services.ActivityIdle],
			"passive": counts[services.ActivityPassive],
			"total":   total,
		})
	})

	router.Get("/customers/:guid", func(c *fiber.Ctx) error {
		detail, err := customers.GetCustomer(c.UserContext(), c.Params("guid"))
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "customer not found"})
		}
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to load customer",
				"cause": err.Error(),
			})
		}
		return c.JSON(detail)
	})
}

// SetupTransactionRoutes registers the read-only transaction views.
func SetupTransactionRoutes(router fiber.Router, transactions *services.TransactionQueryService) {
	router.Get("/transactions", func(c *fiber.Ctx) error {
		page, err := pagination(c)
		if err != nil {
			return badRequest(c, "invalid pagination", err)
		}
		filter := services.TransactionFilter{
			Search:       c.Query("search"),
			Status:       c.Query("status"),
			CustomerGUID: c.Query("customer_guid"),
			Currency:     c.Query("currency"),
			Pagination:   page,
		}
		if filter.From, err = parseDate(c.Query("from"), false); err != nil {
			return badRequest(c, "invalid from", err)
		}
		if filter.To, err = parseDate(c.Query("to"), true); err != nil {
			return badRequest(c, "invalid to", err)
		}

		result, err := transactions.ListTransactions(c.UserContext(), filter)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to list transactions",
				"cause": err.Error(),
			})
		}
		return c.JSON(result)
	})

	router.Get("/transactions/:guid", func(c *fiber.Ctx) error {
		view, err := transactions.GetTransaction(c.UserContext(), c.Params("guid"))
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "transaction not found"})
		}
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to load transaction",
				"cause": err.Error(),
			})
		}
		return c.JSON(view)
	})
}

// SetupPartnerRoutes registers the partner listing.
func SetupPartnerRoutes(router fiber.Router, db *gorm.DB) {
	router.Get("/partners", func(c *fiber.Ctx) error {
		partners, err := services.ListPartners(c.UserContext(), db)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to list partners",
				"cause": err.Error(),
			})
		}
		return c.JSON(fiber.Map{"items": partners})
	})
}
