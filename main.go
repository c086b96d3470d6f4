package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"reward-ledger-system/handlers"
	"reward-ledger-system/middleware"
	"reward-ledger-system/models"
	"reward-ledger-system/services"
	"reward-ledger-system/utils"
	"reward-ledger-system/workers"

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
		BodyLimit: 1 * 1024 * 1024, // 1MB — this service only ever takes small JSON payloads
	})

	// 🔐❗ GLOBAL: Only Gateway requests allowed — no exceptions
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
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, Cache-Control, X-User-ID, X-User-Roles, X-Service-Token, X-Device-ID",
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
		&models.User{},
		&models.Transaction{},
		&models.OfferClick{},
		&models.WithdrawalRequest{},
		&models.Referral{},
		&models.AdminSettings{},
		&models.PostbackEvent{},
		&models.OfferMirror{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	settingsService := services.NewSettingsService(db)
	if err := settingsService.EnsureSettingsRow(); err != nil {
		log.Fatal("failed to seed admin settings:", err)
	}

	ledgerService := services.NewLedgerService(db, settingsService)
	quotaService := services.NewQuotaService(db, ledgerService)
	offerService := services.NewOfferService(db, ledgerService)
	referralService := services.NewReferralService(db, settingsService)
	withdrawalService := services.NewWithdrawalService(db, settingsService)
	exportService := services.NewExportService(db)

	authServiceURL := os.Getenv("AUTH_SERVICE_URL")
	if authServiceURL == "" {
		log.Fatal("AUTH_SERVICE_URL environment variable not set")
	}
	serviceToken := os.Getenv("REWARD_SERVICE_TOKEN")
	if serviceToken == "" {
		log.Fatal("REWARD_SERVICE_TOKEN environment variable not set")
	}
	authClient := services.NewAuthServiceClient(authServiceURL, serviceToken)

	syncWorker := workers.NewUserSyncWorker(db, referralService, authServiceURL, "/api/v1/public/accounts", serviceToken)

	offerSyncClient := workers.NewOfferSyncClient(db)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go workers.PollOffers(ctx, offerSyncClient, 5*time.Minute)

	go func() {
		log.Println("Starting User Sync Worker...")
		syncWorker.Start(ctx)
	}()

	settingsService.StartRefreshLoop(ctx, 30*time.Second)
	services.StartMaintenanceScheduler(quotaService, offerService)

	handlers.SetupLedgerRoutes(app, ledgerService, quotaService, offerService,
		referralService, withdrawalService, settingsService, authClient)
	handlers.SetupAdminRoutes(app, ledgerService, withdrawalService, settingsService, exportService, db)
	handlers.SetupPostbackRoutes(app, ledgerService, settingsService, db)

	go func() {
		if err := app.Listen(":5300"); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Println("✅ Server running on http://localhost:5300")
	log.Println("✅ User Sync Worker running")
	log.Println("✅ Offer catalog polling running (every 5m)")
	log.Println("✅ Maintenance scheduler running (midnight quota sweep, hourly click sweep)")
	log.Println("✅ GatewayAuthMiddleware enforced globally — all requests must come from Gateway")
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
}
