package handlers

import (
	"strconv"

	"engagement-service/middleware"
	"engagement-service/services"

	"github.com/gofiber/fiber/v2"
)

// SetupLeaderboardRoutes mounts the ranked-view routes.
func SetupLeaderboardRoutes(app *fiber.App, leaderboard *services.LeaderboardService) {
	secured := app.Group("/s", middleware.UserContextMiddleware())

	secured.Get("/leaderboard", func(c *fiber.Ctx) error {
		creatorID := c.Query("creator_id")
		if creatorID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "creator_id is required"})
		}
		limit, _ := strconv.Atoi(c.Query("limit", "20"))

		resp, err := leaderboard.GetLeaderboard(creatorID, limit)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to load leaderboard",
			})
		}
		return c.JSON(resp)
	})

	secured.Get("/leaderboard/rank", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		creatorID := c.Query("creator_id")
		if creatorID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "creator_id is required"})
		}

		rank, err := leaderboard.GetUserRank(userID, creatorID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to compute rank",
			})
		}
		return c.JSON(rank)
	})
}
