package routes

import (
	"log/slog"

	"qrmenu-service/internal/api/handlers"
	"qrmenu-service/internal/api/middleware"
	"qrmenu-service/internal/config"
	"qrmenu-service/internal/repositories/postgres"
	"qrmenu-service/internal/services"
	"qrmenu-service/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"
)

type Router struct {
	engine       *gin.Engine
	hub          *ws.Hub
	dispatcher   *ws.Dispatcher
	orderHandler *handlers.OrderHandler
	rateLimitMW  *middleware.RateLimitMiddleware
	rateLimit    config.RateLimitConfig
}

func NewRouter(
	hub *ws.Hub,
	db *gorm.DB,
	redisClient *redis.Client,
	rateLimit config.RateLimitConfig,
	logger *slog.Logger,
) *Router {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	engine.Use(gin.Recovery())
	engine.Use(middleware.CORS())
	engine.Use(middleware.LogAPI())

	orderRepo := postgres.NewOrderRepository(db)
	redisService := services.NewRedisService(redisClient)

	dispatcher := ws.NewDispatcher(hub, orderRepo, logger)

	return &Router{
		engine:       engine,
		hub:          hub,
		dispatcher:   dispatcher,
		orderHandler: handlers.NewOrderHandler(orderRepo),
		rateLimitMW:  middleware.NewRateLimitMiddleware(redisService),
		rateLimit:    rateLimit,
	}
}

func (r *Router) SetupRoutes() {
	r.engine.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "connections": r.hub.ClientCount()})
	})

	r.engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	limit := r.rateLimitMW.RateLimitIP(r.rateLimit.Requests, r.rateLimit.Window)

	r.engine.GET("/ws", limit, ws.ServeWS(r.hub, r.dispatcher))

	api := r.engine.Group("/api/v1")
	{
		api.POST("/orders", limit, r.orderHandler.CreateOrder)
		api.PATCH("/orders/:id/status", r.orderHandler.UpdateOrderStatus)
		api.GET("/restaurants/:id/orders", r.orderHandler.GetRestaurantOrders)
	}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
