// internal/interfaces/http/routes/routes.go
package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/your-org/checkout-backend/internal/config"
	"github.com/your-org/checkout-backend/internal/domain/cart"
	"github.com/your-org/checkout-backend/internal/domain/checkout"
	"github.com/your-org/checkout-backend/internal/domain/order"
	"github.com/your-org/checkout-backend/internal/domain/payment"
	"github.com/your-org/checkout-backend/internal/domain/pricing"
	"github.com/your-org/checkout-backend/internal/domain/user"
	"github.com/your-org/checkout-backend/internal/domain/verification"
	"github.com/your-org/checkout-backend/internal/interfaces/http/handlers"
	"github.com/your-org/checkout-backend/internal/interfaces/http/middleware"
	"github.com/your-org/checkout-backend/internal/pkg/email"
	"gorm.io/gorm"
)

// SetupRoutes wires all services and registers every API route group
func SetupRoutes(rg *gin.RouterGroup, db *gorm.DB, redisClient *redis.Client, cfg *config.Config) {
	// Core services
	cartService := cart.NewService(db, redisClient, cfg)
	userService := user.NewService(db, cfg)
	orderService := order.NewService(db, cfg)
	emailService := email.NewEmailService(cfg)

	// Pricing and verification
	engine := pricing.NewEngine(cfg.Checkout.OnlineDiscountPercent)
	verificationStore := verification.NewRedisStore(redisClient)
	tokenManager := verification.NewTokenManager(cfg.JWT.Secret, cfg.App.Name, cfg.Checkout.TokenExpiry)
	verificationService := verification.NewService(verificationStore, tokenManager, cfg)

	// Payment pipeline
	gateway := payment.NewRazorpayGateway(cfg)
	finalizer := order.NewFinalizer(orderService, userService, cartService, emailService)
	orchestrator := payment.NewOrchestrator(gateway, orderService, finalizer, verificationService)
	checkoutService := checkout.NewService(db, redisClient, cfg, cartService, engine, orchestrator)

	// Handlers
	authHandler := handlers.NewAuthHandler(db, cfg)
	profileHandler := handlers.NewUserProfileHandler(db, cfg)
	addressHandler := handlers.NewUserAddressHandler(db, cfg)
	cartHandler := handlers.NewCartHandler(cartService, cfg)
	checkoutHandler := handlers.NewCheckoutHandler(checkoutService, cfg)
	codHandler := handlers.NewCODHandler(verificationService, checkoutService)
	razorpayHandler := handlers.NewRazorpayHandler(checkoutService, orderService, gateway, cfg, db)
	orderHandler := handlers.NewOrderHandler(orderService, cfg)
	invoiceHandler := handlers.NewInvoiceHandler(orderService, cfg)

	setupAuthRoutes(rg, authHandler, cfg)
	setupUserRoutes(rg, profileHandler, addressHandler, cfg)
	setupCartRoutes(rg, cartHandler, cfg)
	setupCheckoutRoutes(rg, checkoutHandler, codHandler, razorpayHandler, cfg)
	setupOrderRoutes(rg, orderHandler, invoiceHandler, cfg)
	setupWebhookRoutes(rg, razorpayHandler)
	setupAdminRoutes(rg, codHandler, razorpayHandler, orderHandler, cfg)
}

// setupAuthRoutes sets up authentication related routes
func setupAuthRoutes(rg *gin.RouterGroup, authHandler *handlers.AuthHandler, cfg *config.Config) {
	auth := rg.Group("/auth")
	{
		// Public auth endpoints
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.RefreshToken)

		// Protected auth endpoints
		protected := auth.Group("")
		protected.Use(middleware.AuthMiddleware(cfg))
		{
			protected.POST("/logout", authHandler.Logout)
			protected.GET("/me", authHandler.GetCurrentUser)
			protected.GET("/validate", authHandler.ValidateToken)
			protected.PUT("/change-password", authHandler.ChangePassword)
		}
	}
}

// setupUserRoutes sets up user profile and address routes
func setupUserRoutes(rg *gin.RouterGroup, profileHandler *handlers.UserProfileHandler, addressHandler *handlers.UserAddressHandler, cfg *config.Config) {
	users := rg.Group("/users")
	users.Use(middleware.AuthMiddleware(cfg))
	{
		users.GET("/profile", profileHandler.GetProfile)
		users.PUT("/profile", profileHandler.UpdateProfile)
		users.GET("/dashboard", profileHandler.GetDashboard)
		users.GET("/account", profileHandler.GetAccount)
		users.PUT("/change-password", profileHandler.ChangePassword)

		users.GET("/addresses", addressHandler.GetAddresses)
		users.GET("/addresses/:id", addressHandler.GetAddress)
		users.POST("/addresses", addressHandler.CreateAddress)
		users.PUT("/addresses/:id", addressHandler.UpdateAddress)
		users.DELETE("/addresses/:id", addressHandler.DeleteAddress)
		users.PUT("/addresses/:id/default", addressHandler.SetDefaultAddress)
	}
}

// setupCartRoutes sets up cart routes (guest sessions or authenticated users)
func setupCartRoutes(rg *gin.RouterGroup, cartHandler *handlers.CartHandler, cfg *config.Config) {
	cart := rg.Group("/cart")
	cart.Use(middleware.OptionalAuthMiddleware(cfg))
	{
		cart.GET("", cartHandler.GetCart)
		cart.DELETE("", cartHandler.ClearCart)
		cart.GET("/count", cartHandler.GetCartItemCount)
		cart.POST("/items", cartHandler.AddToCart)
		cart.PUT("/items/:productId", cartHandler.UpdateCartItem)
		cart.DELETE("/items/:productId", cartHandler.RemoveFromCart)
	}

	// Merging requires a logged-in user
	merge := rg.Group("/cart")
	merge.Use(middleware.AuthMiddleware(cfg))
	{
		merge.POST("/merge", cartHandler.MergeCart)
	}
}

// setupCheckoutRoutes sets up pricing, COD, and Razorpay checkout routes
func setupCheckoutRoutes(rg *gin.RouterGroup, checkoutHandler *handlers.CheckoutHandler, codHandler *handlers.CODHandler, razorpayHandler *handlers.RazorpayHandler, cfg *config.Config) {
	co := rg.Group("/checkout")
	co.Use(middleware.OptionalAuthMiddleware(cfg))
	{
		co.GET("/summary", checkoutHandler.GetSummary)
		co.POST("/calculate-amount", razorpayHandler.CalculateAmount)
	}

	coupons := rg.Group("/checkout")
	coupons.Use(middleware.AuthMiddleware(cfg))
	{
		coupons.POST("/apply-coupon", checkoutHandler.ApplyCoupon)
		coupons.DELETE("/coupon", checkoutHandler.RemoveCoupon)
	}

	// COD flow: OTP verification then order placement
	cod := rg.Group("/cod")
	{
		cod.POST("/send-otp", codHandler.SendOTP)
		cod.POST("/verify-otp", codHandler.VerifyOTP)
		cod.GET("/bypass-status", codHandler.BypassStatus)
		cod.POST("/guest-order", codHandler.CreateGuestOrder)

		authed := cod.Group("")
		authed.Use(middleware.AuthMiddleware(cfg))
		{
			authed.POST("/order", codHandler.CreateOrder)
		}
	}

	// Razorpay flow: create gateway order then verify the signed payment
	razorpay := rg.Group("/razorpay")
	razorpay.Use(middleware.OptionalAuthMiddleware(cfg))
	{
		razorpay.POST("/create-order", razorpayHandler.CreateOrder)
		razorpay.POST("/guest-verify", razorpayHandler.GuestVerifyPayment)
		razorpay.POST("/failure", razorpayHandler.PaymentFailure)
	}

	verify := rg.Group("/razorpay")
	verify.Use(middleware.AuthMiddleware(cfg))
	{
		verify.POST("/verify/:userId", razorpayHandler.VerifyPayment)
	}
}

// setupOrderRoutes sets up order history and tracking routes
func setupOrderRoutes(rg *gin.RouterGroup, orderHandler *handlers.OrderHandler, invoiceHandler *handlers.InvoiceHandler, cfg *config.Config) {
	// Guest tracking does not require authentication
	rg.GET("/orders/guest/track", orderHandler.GuestTrackOrder)

	orders := rg.Group("/orders")
	orders.Use(middleware.AuthMiddleware(cfg))
	{
		orders.GET("", orderHandler.GetOrders)
		orders.GET("/:id", orderHandler.GetOrder)
		orders.GET("/:id/track", orderHandler.TrackOrder)
		orders.PUT("/:id/cancel", orderHandler.CancelOrder)
		orders.GET("/number/:orderNumber", orderHandler.GetOrderByNumber)
		orders.GET("/:id/invoice", invoiceHandler.GenerateInvoice)
		orders.GET("/:id/invoice/data", invoiceHandler.GetInvoiceData)
	}
}

// setupWebhookRoutes sets up payment provider webhooks (signature-authenticated)
func setupWebhookRoutes(rg *gin.RouterGroup, razorpayHandler *handlers.RazorpayHandler) {
	webhooks := rg.Group("/webhooks")
	{
		webhooks.POST("/razorpay", razorpayHandler.Webhook)
	}
}

// setupAdminRoutes sets up admin management routes
func setupAdminRoutes(rg *gin.RouterGroup, codHandler *handlers.CODHandler, razorpayHandler *handlers.RazorpayHandler, orderHandler *handlers.OrderHandler, cfg *config.Config) {
	admin := rg.Group("/admin")
	admin.Use(middleware.AuthMiddleware(cfg))
	admin.Use(middleware.AdminMiddleware())
	{
		// Order management
		orders := admin.Group("/orders")
		{
			orders.GET("", orderHandler.AdminGetOrders)
			orders.GET("/:id", orderHandler.AdminGetOrder)
			orders.PUT("/:id/status", orderHandler.AdminUpdateOrderStatus)
			orders.PUT("/:id/cancel", orderHandler.AdminCancelOrder)
		}

		// Payment management
		payments := admin.Group("/payments")
		{
			payments.GET("", razorpayHandler.AdminGetPayments)
			payments.GET("/:id", razorpayHandler.AdminGetPaymentDetails)
		}

		// COD verification controls
		cod := admin.Group("/cod")
		{
			cod.PUT("/bypass", codHandler.SetBypass)
		}
	}
}
