package handler

import (
	"github.com/labstack/echo/v4"

	"pharmacy-service/internal/middleware"
	"pharmacy-service/internal/model"
	"pharmacy-service/internal/repository"
	"pharmacy-service/pkg/jwtutil"
)

// Handlers groups every route handler of the API
type Handlers struct {
	Auth      *AuthHandler
	User      *UserHandler
	Product   *ProductHandler
	Cart      *CartHandler
	Order     *OrderHandler
	Dashboard *DashboardHandler
	Health    *HealthHandler
}

// RegisterRoutes mounts the API under /api/v1 and the health probe at /health.
// userRepo backs the per-request account check; authLimiter may be nil.
func RegisterRoutes(e *echo.Echo, h Handlers, jwtUtil *jwtutil.JWTUtil, userRepo repository.UserRepository, authLimiter *middleware.RateLimiter) {
	e.GET("/health", h.Health.HealthCheck)

	admin := middleware.Authorize(jwtUtil, userRepo, model.RoleAdmin)
	customer := middleware.Authorize(jwtUtil, userRepo, model.RoleCustomer)
	anyone := middleware.Authorize(jwtUtil, userRepo, model.RoleAdmin, model.RoleCustomer)

	api := e.Group("/api/v1")

	// Authentication routes
	auth := api.Group("/auth")
	if authLimiter != nil {
		auth.Use(authLimiter.Middleware)
	}
	auth.POST("/login", h.Auth.Login)
	auth.POST("/register", h.Auth.Register)
	auth.POST("/logout", h.Auth.Logout)
	auth.POST("/refresh-token", h.Auth.RefreshToken)
	auth.PATCH("/change-password", h.Auth.ChangePassword, anyone...)

	users := api.Group("/users")
	users.GET("/me", h.User.Me, anyone...)
	users.GET("", h.User.List, admin...)
	users.PATCH("/:id/block", h.User.Block, admin...)

	products := api.Group("/products")
	products.GET("", h.Product.ListProducts)
	products.GET("/:id", h.Product.GetProduct)
	products.POST("", h.Product.CreateProduct, admin...)
	products.PATCH("/:id", h.Product.UpdateProduct, admin...)
	products.DELETE("/:id", h.Product.DeleteProduct, admin...)

	api.POST("/cart", h.Cart.Products)

	orders := api.Group("/orders")
	orders.POST("", h.Order.CreateOrder, customer...)
	orders.GET("/mine", h.Order.MyOrders, customer...)
	orders.GET("/mine/:id", h.Order.MyOrder, customer...)
	orders.GET("", h.Order.ListOrders, admin...)
	orders.GET("/:id", h.Order.GetOrder, admin...)
	orders.PATCH("/:id/status", h.Order.UpdateStatus, admin...)
	orders.PATCH("/:id/payment-status", h.Order.UpdatePaymentStatus, admin...)

	dashboard := api.Group("/dashboard", admin...)
	dashboard.GET("/stats", h.Dashboard.Stats)
	dashboard.GET("/revenue", h.Dashboard.Revenue)
	dashboard.GET("/recent-orders", h.Dashboard.RecentOrders)
	dashboard.GET("/low-stock", h.Dashboard.LowStock)
	dashboard.GET("/expiring", h.Dashboard.Expiring)
}

// RegisterUploads serves locally stored prescriptions to admins only
func RegisterUploads(e *echo.Echo, dir string, jwtUtil *jwtutil.JWTUtil, userRepo repository.UserRepository) {
	uploads := e.Group("/uploads", middleware.Authorize(jwtUtil, userRepo, model.RoleAdmin)...)
	uploads.Static("/", dir)
}
