package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"dare-engine/handlers"
	"dare-engine/middleware"
	"dare-engine/models"
	"dare-engine/services"
	"dare-engine/utils"
	"dare-engine/workers"

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
		BodyLimit: 512 * 1024 * 1024, // 512MB — proof artifacts
	})

	// 🔐 GLOBAL: Only Gateway requests allowed — no exceptions
	app.Use(middleware.GatewayAuthMiddleware())

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
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, X-User-ID, X-User-Roles, X-Bot-Token",
		ExposeHeaders:    "Content-Length, Content-Type, Authorization, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	if err := utils.InitR2(); err != nil {
		log.Fatal("failed to initialize R2 client:", err)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.Dare{},
		&models.Vote{},
		&models.VoterAccount{},
		&models.ProofLedgerEntry{},
		&models.Appeal{},
		&models.OverrideLog{},
		&models.FeeConfig{},
		&models.SettlementInstruction{},
		&models.NotificationEvent{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	settlementService := services.NewSettlementService(db)
	if _, err := settlementService.EnsureFeeConfig(); err != nil {
		log.Fatal("failed to seed fee config:", err)
	}

	validator := services.NewProofValidator(db)
	validator.AllowHost(utils.ProofHost())

	dareService := services.NewDareService(db, validator, settlementService)
	voteService := services.NewVoteService(db, settlementService)
	appealService := services.NewAppealService(db, settlementService)

	// --- External collaborators: escrow ledger + notification channel ---
	escrowURL := os.Getenv("ESCROW_SERVICE_URL")
	if escrowURL == "" {
		log.Fatal("ESCROW_SERVICE_URL environment variable not set")
	}
	notifyURL := os.Getenv("NOTIFY_SERVICE_URL")
	if notifyURL == "" {
		log.Fatal("NOTIFY_SERVICE_URL environment variable not set")
	}
	serviceToken := os.Getenv("DARE_SERVICE_TOKEN")
	if serviceToken == "" {
		log.Fatal("DARE_SERVICE_TOKEN environment variable not set")
	}

	escrowClient := services.NewEscrowClient(escrowURL, serviceToken)
	notifierClient := services.NewNotifierClient(notifyURL, serviceToken)

	outboxWorker := workers.NewOutboxWorker(db, escrowClient, notifierClient)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go outboxWorker.Poll(ctx, 5*time.Second)

	dareService.StartExpirySweep()

	// ✅ Setup routes — enforced Gateway auth + /s/ prefix for user context
	handlers.SetupDareRoutes(app, dareService, settlementService)
	handlers.SetupVoteRoutes(app, voteService)
	handlers.SetupAppealRoutes(app, appealService)
	handlers.SetupWebhookRoutes(app, appealService)

	go func() {
		if err := app.Listen(":5300"); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Println("✅ Server running on http://localhost:5300")
	log.Println("✅ Outbox dispatch worker running (every 5s)")
	log.Println("✅ Expiry sweep running (every 1m)")
	log.Println("✅ GatewayAuthMiddleware enforced globally — all requests must come from Gateway")
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
}
