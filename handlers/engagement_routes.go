package handlers

import (
	"errors"

	"engagement-service/middleware"
	"engagement-service/models"
	"engagement-service/services"
	"engagement-service/utils"

	"github.com/gofiber/fiber/v2"
)

// SetupEngagementRoutes mounts the activity-recording and summary routes.
// A failed award must never block the primary user action (a video keeps
// playing even if its points were lost), so write failures are logged and
// answered with 202 + accepted=false instead of a 5xx.
func SetupEngagementRoutes(app *fiber.App, engagement *services.EngagementService) {
	secured := app.Group("/s", middleware.UserContextMiddleware())

	secured.Post("/engagement/activity", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		var body struct {
			CreatorID    string `json:"creator_id"`
			Kind         string `json:"kind"`
			WatchSeconds int    `json:"watch_seconds"`
		}
		if err := c.BodyParser(&body); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
		}
		kind := models.ActivityKind(body.Kind)
		if body.CreatorID == "" || !models.ValidActivityKind(kind) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "creator_id and a valid kind are required"})
		}

		res, err := engagement.RecordActivity(userID, body.CreatorID, kind, body.WatchSeconds)
		return respondActivity(c, res, err)
	})

	secured.Post("/engagement/video/complete", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		var body struct {
			CreatorID    string `json:"creator_id"`
			WatchSeconds int    `json:"watch_seconds"`
		}
		if err := c.BodyParser(&body); err != nil || body.CreatorID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "creator_id is required"})
		}

		res, err := engagement.RecordVideoCompletion(userID, body.CreatorID, body.WatchSeconds)
		return respondActivity(c, res, err)
	})

	secured.Post("/engagement/chat/messages", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		var body struct {
			CreatorID string `json:"creator_id"`
			Count     int    `json:"count"`
		}
		if err := c.BodyParser(&body); err != nil || body.CreatorID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "creator_id is required"})
		}
		if body.Count < 1 {
			body.Count = 1
		}

		res, err := engagement.RecordChatMessages(userID, body.CreatorID, body.Count)
		return respondActivity(c, res, err)
	})

	secured.Post("/engagement/goal/complete", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		var body struct {
			CreatorID string `json:"creator_id"`
			GoalID    string `json:"goal_id"`
		}
		if err := c.BodyParser(&body); err != nil || body.CreatorID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "creator_id is required"})
		}

		res, err := engagement.RecordGoalCompletion(userID, body.CreatorID, body.GoalID)
		return respondActivity(c, res, err)
	})

	secured.Get("/engagement/summary", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		creatorID := c.Query("creator_id")
		if creatorID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "creator_id is required"})
		}

		sum, err := engagement.GetEngagementSummary(userID, creatorID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to load engagement summary",
			})
		}
		return c.JSON(sum)
	})
}

func respondActivity(c *fiber.Ctx, res services.ActivityResult, err error) error {
	if err != nil {
		if utils.Sugar != nil {
			if errors.Is(err, services.ErrKeyFrozen) {
				utils.Sugar.Errorw("activity rejected: key frozen", "path", c.Path(), "err", err)
			} else {
				utils.Sugar.Warnw("activity recording failed", "path", c.Path(), "err", err)
			}
		}
		// Best-effort: the primary user action must not fail.
		return c.Status(fiber.StatusAccepted).JSON(services.ActivityResult{})
	}
	return c.JSON(res)
}
