package main

import (
	"log"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sieless/Taxi-Tao-sub001/internal/database"
	"github.com/sieless/Taxi-Tao-sub001/internal/handlers"
	"github.com/sieless/Taxi-Tao-sub001/internal/middleware"
	"github.com/sieless/Taxi-Tao-sub001/internal/models"
	"github.com/sieless/Taxi-Tao-sub001/internal/services"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Initialize database with better error handling
	db, err := database.InitDB()
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	if err := database.RunMigrations(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Get underlying SQL DB instance
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("Failed to get database instance: %v", err)
	}

	// Configure connection pool
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// Initialize Redis
	if err := services.InitRedis(); err != nil {
		log.Fatalf("Failed to initialize Redis: %v", err)
	}

	// Initialize Firebase (optional - will log warning if not configured)
	if err := services.InitFirebase(); err != nil {
		log.Printf("Firebase initialization warning: %v", err)
	}

	// Initialize Storage (S3 or local fallback)
	if err := services.InitStorage(); err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}

	// Initialize WebSocket hub
	hub := services.NewHub()
	go hub.Run()

	// Initialize router
	r := gin.Default()

	// Configure CORS
	config := cors.DefaultConfig()
	config.AllowOrigins = []string{"*"}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	r.Use(cors.New(config))

	// Serve static files
	r.Static("/uploads", "/app/uploads")
	r.Static("/static", "./static")

	// Routes
	api := r.Group("/api")
	{
		// Public routes
		auth := api.Group("/auth")
		{
			auth.POST("/register", handlers.Register(db))
			auth.POST("/login", handlers.Login(db))
			auth.POST("/verify-email", handlers.VerifyEmail(db))
			auth.POST("/forgot-password", handlers.RequestPasswordReset(db))
			auth.POST("/verify-otp", handlers.VerifyOTP(db))
			auth.POST("/reset-password", handlers.ResetPassword(db))
		}

		// Public browsing and guest flows: no account needed to search drivers,
		// negotiate a price, or book at a listed price
		api.GET("/matching/recommendations", handlers.GetRecommendations(db))
		api.GET("/drivers/:id", handlers.GetDriverProfile(db))
		api.GET("/drivers/:id/prices", handlers.GetDriverRoutePrices(db))

		api.POST("/negotiations", handlers.CreateNegotiation(db, hub))
		api.GET("/negotiations/:id", handlers.GetNegotiation(db))
		api.POST("/negotiations/:id/counter", handlers.CounterNegotiation(db, hub))
		api.POST("/negotiations/:id/accept", handlers.AcceptNegotiation(db, hub))
		api.POST("/negotiations/:id/decline", handlers.DeclineNegotiation(db, hub))

		api.POST("/bookings", handlers.CreateBooking(db, hub))
		api.POST("/bookings/:id/cancel", handlers.CancelBooking(db, hub))
		api.POST("/bookings/:id/rate", handlers.RateBooking(db))

		api.POST("/ride-requests", handlers.CreateRideRequest(db, hub))
		api.POST("/ride-requests/:id/cancel", handlers.CancelRideRequest(db))

		// WebSocket connection
		api.GET("/ws", middleware.AuthMiddleware(), handlers.WebSocketHandler(hub))

		// Protected routes
		protected := api.Group("/")
		protected.Use(middleware.AuthMiddleware())
		{
			// User routes
			users := protected.Group("/users")
			{
				users.GET("/profile", handlers.GetProfile(db))
				users.PUT("/profile", handlers.UpdateProfile(db))
				users.POST("/profile/photo", handlers.UploadProfilePhoto(db))
			}

			// Driver pricing
			pricing := protected.Group("/pricing")
			{
				pricing.POST("/routes", handlers.SetRoutePrice(db))
				pricing.GET("/routes", handlers.GetMyRoutePrices(db))
				pricing.DELETE("/routes/:id", handlers.DeleteRoutePrice(db))
			}

			// Driver routes: negotiations, bookings, ride requests
			driver := protected.Group("/driver")
			{
				driver.GET("/negotiations", handlers.GetDriverNegotiations(db))
				driver.GET("/bookings", handlers.GetDriverBookings(db))
				driver.POST("/bookings/:id/complete", handlers.CompleteBooking(db))
				driver.GET("/ride-requests", handlers.GetOpenRideRequests(db))
				driver.POST("/ride-requests/:id/respond", handlers.RespondToRideRequest(db, hub))
			}

			// Registered customer routes
			customer := protected.Group("/customer")
			{
				customer.GET("/negotiations", handlers.GetMyNegotiations(db))
				customer.GET("/bookings", handlers.GetMyBookings(db))
				customer.GET("/ride-requests", handlers.GetMyRideRequests(db))
			}

			// Notification routes
			notifications := protected.Group("/notifications")
			{
				notifications.GET("", handlers.GetMyNotifications(db))
				notifications.POST("/read", handlers.MarkNotificationsRead(db))
				notifications.POST("/register-token", handlers.RegisterFCMToken(db))
				notifications.DELETE("/remove-token", handlers.RemoveFCMToken(db))
				notifications.POST("/test", handlers.TestNotification(db))

				// Notification preferences
				notifications.GET("/preferences", handlers.GetNotificationPreferences(db))
				notifications.PUT("/preferences", handlers.UpdateNotificationPreferences(db))
			}

			// Admin routes
			admin := protected.Group("/admin")
			admin.Use(middleware.RequireUserType(string(models.UserTypeAdmin)))
			{
				admin.GET("/drivers", handlers.ListDrivers(db))
				admin.PATCH("/drivers/:id/subscription", handlers.SetDriverSubscription(db))
				admin.PATCH("/drivers/:id/visibility", handlers.SetDriverVisibility(db))
				admin.PATCH("/drivers/:id/active", handlers.SetDriverActive(db))
				admin.GET("/overview", handlers.GetPlatformOverview(db))
				admin.POST("/broadcast", handlers.SendBroadcastNotificationHandler(db))
			}
		}
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	if err := r.Run(":" + port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
