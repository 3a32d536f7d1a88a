package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"harvest/controllers"
	"harvest/middlewares"
	"harvest/services"
)

// Services are the handlers' dependencies.
type Services struct {
	Carts    *services.CartService
	Checkout *services.CheckoutService
	Orders   *services.OrderService
}

// SetupRoutes registers the health, metrics and /api/v1 endpoints.
func SetupRoutes(r *gin.Engine, svc Services, jwtSecret string) {
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api/v1")
	api.Use(middlewares.AuthMiddleware(jwtSecret))

	SetupCartRoutes(api, svc.Carts)
	SetupOrderRoutes(api, svc.Checkout, svc.Orders)
	SetupFarmerRoutes(api, svc.Orders)
}

func SetupCartRoutes(api *gin.RouterGroup, carts *services.CartService) {
	cart := api.Group("/cart")
	{
		cart.GET("", controllers.GetCart(carts))
		cart.DELETE("", controllers.ClearCart(carts))
		cart.POST("/items", controllers.AddCartItem(carts))
		cart.PUT("/items/:id", controllers.UpdateCartItem(carts))
		cart.DELETE("/items/:id", controllers.RemoveCartItem(carts))
		cart.PATCH("/items/:id/select", controllers.SelectCartItem(carts))
	}
}

func SetupOrderRoutes(api *gin.RouterGroup, checkout *services.CheckoutService, orders *services.OrderService) {
	group := api.Group("/orders")
	{
		group.POST("", controllers.CreateOrder(checkout))
		group.GET("", controllers.GetUserOrders(orders))
		group.GET("/:id", controllers.GetOrderDetails(orders))
		group.PATCH("/:id/cancel", controllers.CancelOrder(orders))
	}
}

func SetupFarmerRoutes(api *gin.RouterGroup, orders *services.OrderService) {
	farmer := api.Group("/farmer/orders")
	{
		farmer.GET("", controllers.GetFarmerOrders(orders))
		farmer.GET("/:id", controllers.GetFarmerOrder(orders))
		farmer.PATCH("/:id", controllers.UpdateFarmerOrder(orders))
	}
}
