package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"dogschool-platform/handlers"
	"dogschool-platform/models"
	"dogschool-platform/services"
	"dogschool-platform/utils"
	"dogschool-platform/workers"

	"github.com/go-co-op/gocron/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 32 * 1024 * 1024, // documents, not videos
	})

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		allowedOrigins = "http://localhost:3000"
	}
	parts := strings.Split(allowedOrigins, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(parts, ","),
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400,
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
		&models.Tenant{},
		&models.User{},
		&models.Dog{},
		&models.TrainingType{},
		&models.Level{},
		&models.LevelRequirement{},
		&models.Achievement{},
		&models.Appointment{},
		&models.Booking{},
		&models.Transaction{},
		&models.Document{},
		&models.PushSubscription{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	var cache *redis.Client
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			log.Fatal("invalid REDIS_URL:", err)
		}
		cache = redis.NewClient(opts)
	} else {
		log.Println("⚠️  REDIS_URL not set, tenant config cache disabled")
	}

	var notifier services.Notifier = services.LogNotifier{}
	if amqpURL := os.Getenv("AMQP_URL"); amqpURL != "" {
		notifier = services.NewQueueNotifier(amqpURL)
	} else {
		log.Println("⚠️  AMQP_URL not set, notifications go to the log only")
	}

	var storage *utils.Storage
	if os.Getenv("S3_BUCKET_NAME") != "" {
		storage, err = utils.NewStorageFromEnv()
		if err != nil {
			log.Fatal("failed to initialize document storage:", err)
		}
	} else {
		log.Println("⚠️  S3_BUCKET_NAME not set, document storage disabled")
	}

	configService := services.NewTenantConfigService(db, cache)
	achievementService := services.NewAchievementService(db)
	progressionService := services.NewProgressionService(db, achievementService, notifier)
	bookingService := services.NewBookingService(db, configService, achievementService, notifier)
	transactionService := services.NewTransactionService(db, configService, achievementService, notifier)

	handlers.SetupAuthRoutes(app, db)
	handlers.SetupTenantRoutes(app, db, configService)
	handlers.SetupUserRoutes(app, db, progressionService, achievementService)
	handlers.SetupCatalogRoutes(app, db)
	handlers.SetupAppointmentRoutes(app, db, bookingService)
	handlers.SetupTransactionRoutes(app, transactionService)
	handlers.SetupDocumentRoutes(app, db, storage)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sched, err := gocron.NewScheduler()
	if err != nil {
		log.Fatal("failed to create scheduler:", err)
	}
	if err := workers.NewReminderWorker(db, notifier).Start(sched); err != nil {
		log.Fatal("failed to register reminder worker:", err)
	}
	if err := workers.NewAutoBillingWorker(db, configService, bookingService).Start(sched); err != nil {
		log.Fatal("failed to register auto-billing worker:", err)
	}
	sched.Start()

	port := os.Getenv("PORT")
	if port == "" {
		port = "5300"
	}
	go func() {
		if err := app.Listen(":" + port); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("✅ Server running on http://localhost:%s", port)
	log.Println("✅ Reminder worker running (every 1m)")
	log.Println("✅ Auto-billing worker running (every 15m)")

	<-ctx.Done()
	log.Println("Shutting down server...")
	_ = sched.Shutdown()
	_ = app.Shutdown()
}
