package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/meridianbank/core/internal/database"
	"github.com/meridianbank/core/internal/handlers"
	"github.com/meridianbank/core/internal/jobs"
	mW "github.com/meridianbank/core/internal/middleware"
	"github.com/meridianbank/core/internal/notify"
	"github.com/meridianbank/core/internal/services"
)

// @title Meridian Core Banking API
// @version 1.0
// @description Customer, account and transaction processing API
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https

func main() {
	// Initialize config
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()
	viper.ReadInConfig()

	viper.SetEnvPrefix("")

	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")
	viper.BindEnv("jwt.expiry_hours", "JWT_EXPIRY_HOURS")
	viper.BindEnv("argon2.time", "ARGON2_TIME")
	viper.BindEnv("argon2.memory", "ARGON2_MEMORY")
	viper.BindEnv("argon2.threads", "ARGON2_THREADS")
	viper.BindEnv("argon2.key_length", "ARGON2_KEY_LENGTH")
	viper.BindEnv("argon2.salt_length", "ARGON2_SALT_LENGTH")

	viper.BindEnv("smtp.host", "SMTP_HOST")
	viper.BindEnv("smtp.port", "SMTP_PORT")
	viper.BindEnv("smtp.username", "SMTP_USERNAME")
	viper.BindEnv("smtp.password", "SMTP_PASSWORD")
	viper.BindEnv("smtp.sender", "SMTP_SENDER")

	viper.SetDefault("jwt.expiry_hours", 24)
	viper.SetDefault("argon2.time", 1)
	viper.SetDefault("argon2.memory", 64*1024)
	viper.SetDefault("argon2.threads", 4)
	viper.SetDefault("argon2.key_length", 32)
	viper.SetDefault("argon2.salt_length", 16)

	// Initialize logger
	logrus.SetFormatter(&logrus.JSONFormatter{})
	if level, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		logrus.SetLevel(level)
	} else {
		logrus.SetLevel(logrus.InfoLevel)
	}

	// Initialize storage
	db := database.InitDatabase()
	defer db.Close()

	redisClient := database.InitRedis()
	if redisClient != nil {
		defer redisClient.Close()
	}

	// Initialize services
	var notifier services.Notifier
	if n := notify.NewEmailNotifier(db); n != nil {
		notifier = n
	}

	authService := services.NewAuthService(db, redisClient)
	customerService := services.NewCustomerService(db)
	accountService := services.NewAccountService(db)
	transactionService := services.NewTransactionService(db, redisClient, notifier)
	creditService := services.NewCreditService(db, redisClient)
	settlementService := services.NewSettlementService(db, redisClient)
	receiptService := services.NewReceiptService(db, redisClient)
	receiptHandler := handlers.NewReceiptHandler(receiptService)

	// Start batch jobs
	scheduler := jobs.NewScheduler(db, creditService, settlementService)
	if err := scheduler.Start(); err != nil {
		logrus.Fatalf("Failed to start scheduler: %v", err)
	}
	defer scheduler.Stop()

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(mW.SecurityHeaders)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Timeout(60 * time.Second))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Access-Control-Allow-Origin"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("http://localhost:8080/swagger/doc.json"),
	))

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public endpoints (no auth required)
		r.Post("/auth/register", authService.Register)
		r.Post("/auth/login", authService.Login)
		r.Post("/auth/logout", authService.Logout)

		// Protected endpoints (auth required)
		r.Group(func(r chi.Router) {
			r.Use(mW.AuthMiddleware(redisClient))

			r.Get("/auth/account", authService.GetUserAccount)

			r.Post("/customers", customerService.CreateCustomer)
			r.Get("/customers", customerService.ListCustomers)
			r.Get("/customers/{customerId}", customerService.GetCustomer)
			r.Put("/customers/{customerId}/status", customerService.UpdateCustomerStatus)

			r.Post("/customers/{customerId}/score", creditService.ScoreCustomer)
			r.Get("/customers/{customerId}/credit-decision", creditService.GetCreditDecision)

			r.Post("/accounts", accountService.OpenAccount)
			r.Get("/accounts/{accountId}", accountService.GetAccount)
			r.Get("/accounts/{accountId}/balance", accountService.BalanceEnquiry)
			r.Put("/accounts/{accountId}/status", accountService.UpdateAccountStatus)
			r.Put("/accounts/{accountId}/overdraft", accountService.ConfigureOverdraft)

			r.Post("/accounts/{accountId}/deposit", transactionService.Deposit)
			r.Post("/accounts/{accountId}/withdraw", transactionService.Withdraw)
			r.Post("/transfers", transactionService.Transfer)

			r.Get("/transactions", transactionService.ListTransactions)
			r.Get("/transactions/recent", transactionService.GetRecentTransactions)
			r.Get("/transactions/{txId}", transactionService.GetTransaction)
			r.Post("/transactions/{txId}/reverse", transactionService.Reverse)

			r.Get("/settlement/{transactionId}/pacs008", settlementService.ExportTransaction)
			r.Post("/settlement/{transactionId}/status", settlementService.ReportStatus)
			r.Post("/settlement/run", settlementService.RunQueue)

			r.Post("/receipts", receiptHandler.GenerateReceipt)
			r.Post("/receipts/verify", receiptHandler.VerifyReceipt)
		})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Start server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		logrus.Infof("Server starting on :%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logrus.Fatalf("Server forced to shutdown: %v", err)
	}

	logrus.Info("Server stopped")
}
