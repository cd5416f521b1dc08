package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"bounty-publish-system/chain"
	"bounty-publish-system/handlers"
	"bounty-publish-system/middleware"
	"bounty-publish-system/models"
	"bounty-publish-system/services"
	"bounty-publish-system/utils"
	"bounty-publish-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 50 * 1024 * 1024, // 50MB, enough for submission attachments
	})

	// Gateway token guard first — when SERVICE_TOKEN is set, nothing else runs.
	app.Use(middleware.ServiceAuthMiddleware())

	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}
	allowedOriginsString := strings.Join(allowedOriginsList, ",")

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOriginsString,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Payment, X-Viewer-Address",
		ExposeHeaders:    "Content-Length, Content-Type",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.Bounty{},
		&models.BountyWinner{},
		&models.Submission{},
		&models.SubmissionAttachment{},
		&models.Profile{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	if err := utils.InitR2(); err != nil {
		log.Fatal("failed to initialize R2 client:", err)
	}

	chainCfg, err := chain.LoadConfig()
	if err != nil {
		log.Fatal("invalid chain configuration:", err)
	}
	chainClient, err := chain.Dial(chainCfg)
	if err != nil {
		log.Fatal("failed to connect to chain RPC:", err)
	}

	// The custodial key lives exclusively inside the payout executor. Without
	// it the service still serves reads, creations and submissions; only the
	// award endpoint reports payouts unconfigured. The sender interface stays
	// nil (not a typed nil pointer) when the executor is disabled.
	var sender services.TokenSender
	executor, err := chain.NewPayoutExecutor(chainCfg, chainClient.Eth)
	if err != nil {
		log.Printf("⚠️  payout executor disabled: %v", err)
		executor = nil
	} else {
		sender = executor
	}

	notifier := workers.NewNotifier()
	reviewer := workers.NewReviewWorker(db)

	bountyService := services.NewBountyService(db, chainClient, chain.NewVerifier(chainCfg, chainClient.Eth), notifier)
	submissionService := services.NewSubmissionService(db, chainClient, reviewer, notifier)
	payoutService := services.NewPayoutService(db, sender, notifier)
	profileService := services.NewProfileService(db)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bountyService.StartRefundSweep()

	handlers.SetupBountyRoutes(app, bountyService)
	handlers.SetupSubmissionRoutes(app, submissionService)
	handlers.SetupPayoutRoutes(app, payoutService)
	handlers.SetupProfileRoutes(app, profileService)

	port := os.Getenv("PORT")
	if port == "" {
		port = "5200"
	}

	go func() {
		if err := app.Listen(":" + port); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("✅ Server running on http://localhost:%s", port)
	log.Printf("✅ Chain: %s (asset %s, platform wallet %s)", chainCfg.Network, chainCfg.AssetAddress.Hex(), chainCfg.PlatformWallet.Hex())
	log.Println("✅ Refund sweep running (every 10m)")
	if executor != nil {
		log.Printf("✅ Payout executor ready (custodial wallet %s)", executor.From().Hex())
	}
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
}
