package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"engagement-service/handlers"
	"engagement-service/middleware"
	"engagement-service/models"
	"engagement-service/services"
	"engagement-service/utils"
	"engagement-service/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, reading environment variables directly")
	}
	if err := utils.InitLogger(); err != nil {
		log.Fatal("failed to initialize logger:", err)
	}

	app := fiber.New(fiber.Config{
		AppName: "engagement-service",
	})

	// Only Gateway requests allowed — no exceptions
	app.Use(middleware.GatewayAuthMiddleware())

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		utils.Sugar.Warnw("ALLOWED_ORIGINS not set, using default", "default", "http://localhost:3000")
		allowedOrigins = "http://localhost:3000"
	}
	origins := strings.Split(allowedOrigins, ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(origins, ","),
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Request-ID, X-User-ID",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Without a durable store the engine degrades to a no-op: reads return
	// zeros, writes are dropped. Anonymous/offline use keeps working.
	var db *gorm.DB
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		utils.Sugar.Warnw("DATABASE_URL not set — engagement engine running as no-op")
	} else {
		var err error
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
		if err != nil {
			utils.Sugar.Fatalw("failed to connect to database", "err", err)
		}
		if err := db.AutoMigrate(
			&models.StreakRecord{},
			&models.DailyActivityRecord{},
			&models.PointsAccount{},
			&models.PointTransaction{},
			&models.UserBadge{},
			&models.UserMirror{},
			&models.CreatorMirror{},
		); err != nil {
			utils.Sugar.Fatalw("failed to migrate database", "err", err)
		}
	}

	pointsConfig := services.LoadPointsConfig()
	engagementService := services.NewEngagementService(db, pointsConfig)
	leaderboardService := services.NewLeaderboardService(db)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if db != nil {
		services.NewReconciliationService(engagementService).StartSweep(5 * time.Minute)

		profileSyncURL := os.Getenv("PROFILE_SYNC_URL")
		if profileSyncURL != "" {
			token := os.Getenv("ENGAGEMENT_SERVICE_TOKEN")
			worker := workers.NewProfileSyncWorker(db, profileSyncURL, "/api/v1/public/profiles", token)
			worker.Start(ctx)
		} else {
			utils.Sugar.Warnw("PROFILE_SYNC_URL not set — leaderboard will show raw user ids")
		}
	}

	handlers.SetupEngagementRoutes(app, engagementService)
	handlers.SetupLeaderboardRoutes(app, leaderboardService)

	listenAddr := os.Getenv("LISTEN_ADDR")
	if listenAddr == "" {
		listenAddr = ":5300"
	}
	go func() {
		if err := app.Listen(listenAddr); err != nil {
			utils.Sugar.Errorw("server error", "err", err)
		}
	}()
	utils.Sugar.Infow("engagement service running", "addr", listenAddr, "store_configured", db != nil)

	<-ctx.Done()
	utils.Sugar.Infow("shutting down")
	_ = app.Shutdown()
}
