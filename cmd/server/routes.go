package main

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"

	"github.com/imamnura/warung-enin-sub000/config"
	"github.com/imamnura/warung-enin-sub000/internal/database/models"
	"github.com/imamnura/warung-enin-sub000/internal/gateway/handlers"
	"github.com/imamnura/warung-enin-sub000/internal/gateway/middleware"
	"github.com/imamnura/warung-enin-sub000/internal/repository"
	"github.com/imamnura/warung-enin-sub000/internal/services/order"
	"github.com/imamnura/warung-enin-sub000/internal/services/payment"
	"github.com/imamnura/warung-enin-sub000/internal/services/promo"
	"github.com/imamnura/warung-enin-sub000/internal/storage"
)

func buildRouter(cfg config.Config,
	store repository.Store,
	orders *order.Service,
	payments *payment.Service,
	promos *promo.Validator,
	proofs storage.ProofStore,
	cache *redis.Client,
) *gin.Engine {
	r := gin.Default()

	r.Use(middleware.CORS())
	r.Use(gin.Recovery())

	authHandler := handlers.NewAuthHandler(store)
	storefront := handlers.NewStorefrontHandler(orders, payments, promos, store, proofs, cache)
	dashboard := handlers.NewDashboardHandler(orders, payments, store, cache)
	courier := handlers.NewCourierHandler(orders, payments)

	// --- Public API Group ---
	public := r.Group("/api/v1")
	public.Use(middleware.RateLimit(cfg.RateLimit))
	{
		auth := public.Group("/auth")
		{
			auth.POST("/login", authHandler.Login)
		}

		public.GET("/menus", storefront.ListMenus)
		public.POST("/orders", storefront.Checkout)
		public.GET("/orders/:number", storefront.TrackOrder)
		public.POST("/orders/:number/proof", storefront.UploadProof)
		public.POST("/promos/validate", storefront.ValidatePromo)
	}

	// --- Operator API Group ---
	operator := r.Group("/api/v1/dashboard")
	operator.Use(middleware.JWTAuth(models.RoleOperator))
	{
		ordersGroup := operator.Group("/orders")
		{
			ordersGroup.GET("", dashboard.ListOrders)
			ordersGroup.POST("/:id/accept", dashboard.AcceptOrder)
			ordersGroup.POST("/:id/advance", dashboard.AdvanceOrder)
			ordersGroup.POST("/:id/courier", dashboard.AssignCourier)
			ordersGroup.POST("/:id/cancel", dashboard.CancelOrder)
		}

		paymentsGroup := operator.Group("/payments")
		{
			paymentsGroup.POST("/:id/verify", dashboard.VerifyPayment)
			paymentsGroup.POST("/:id/refund", dashboard.RefundPayment)
		}

		promosGroup := operator.Group("/promos")
		{
			promosGroup.POST("", dashboard.CreatePromo)
			promosGroup.GET("", dashboard.ListPromos)
			promosGroup.PUT("/:id", dashboard.UpdatePromo)
		}

		menusGroup := operator.Group("/menus")
		{
			menusGroup.POST("", dashboard.CreateMenu)
			menusGroup.PUT("/:id", dashboard.UpdateMenu)
		}
	}

	// --- Courier API Group ---
	courierGroup := r.Group("/api/v1/courier")
	courierGroup.Use(middleware.JWTAuth(models.RoleCourier))
	{
		courierGroup.POST("/orders/:id/depart", courier.MarkOnDelivery)
		courierGroup.POST("/orders/:id/delivered", courier.MarkDelivered)
		courierGroup.POST("/orders/:id/cash", courier.ConfirmCash)
		courierGroup.POST("/payments/:id/handover", courier.Handover)
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"message":   "Server is running",
			"timestamp": time.Now(),
		})
	})

	return r
}
