package admin

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/visorry/flash-invite-sub001/internal/cache"
	"github.com/visorry/flash-invite-sub001/internal/config"
	apihttp "github.com/visorry/flash-invite-sub001/internal/http"
	"github.com/visorry/flash-invite-sub001/internal/http/api/admin/handlers"
	"github.com/visorry/flash-invite-sub001/internal/telegram"
)

// RegisterAdminRoutes registers the admin console API under /v0/admin.
func RegisterAdminRoutes(r *gin.Engine, db *gorm.DB, jwtCfg config.JWTConfig, manager *telegram.Manager, cacheClient *cache.Cache) {
	if r == nil || db == nil {
		return
	}

	admin := r.Group("/v0/admin")

	authHandler := handlers.NewAuthHandler(db, jwtCfg.Secret, jwtCfg.AdminExpiry)
	admin.POST("/login", authHandler.Login)

	authed := admin.Group("")
	authed.Use(apihttp.AdminAuth(jwtCfg.Secret))

	botHandler := handlers.NewBotAdminHandler(db, manager, cacheClient)
	authed.GET("/bot-admin", botHandler.List)
	authed.POST("/bot-admin/health-check", botHandler.HealthCheck)
	authed.POST("/bot-admin/restart/:id", botHandler.Restart)
	authed.POST("/bot-admin/restart-multiple", botHandler.RestartMultiple)
	authed.POST("/bot-admin/restart-unhealthy", botHandler.RestartUnhealthy)
	authed.POST("/bot-admin/resync-all", botHandler.ResyncAll)

	pricingHandler := handlers.NewPricingHandler(db)
	authed.GET("/token-pricing", pricingHandler.ListTokenPricing)
	authed.PUT("/token-pricing", pricingHandler.UpsertTokenPricing)
	authed.DELETE("/token-pricing/:durationUnit", pricingHandler.DeleteTokenPricing)
	authed.GET("/automation-pricing", pricingHandler.ListAutomationPricing)
	authed.PUT("/automation-pricing", pricingHandler.UpsertAutomationPricing)
	authed.DELETE("/automation-pricing/:featureType", pricingHandler.DeleteAutomationPricing)

	planHandler := handlers.NewPlanHandler(db)
	authed.POST("/plans", planHandler.Create)
	authed.GET("/plans", planHandler.List)
	authed.GET("/plans/:id", planHandler.Get)
	authed.PUT("/plans/:id", planHandler.Update)
	authed.DELETE("/plans/:id", planHandler.Delete)
	authed.POST("/plans/:id/toggle", planHandler.Toggle)

	bundleHandler := handlers.NewBundleHandler(db)
	authed.POST("/token-bundles", bundleHandler.Create)
	authed.GET("/token-bundles", bundleHandler.List)
	authed.PUT("/token-bundles/:id", bundleHandler.Update)
	authed.DELETE("/token-bundles/:id", bundleHandler.Delete)
	authed.POST("/token-bundles/:id/toggle", bundleHandler.Toggle)

	gatewayHandler := handlers.NewGatewayHandler(db)
	authed.GET("/payment-gateways", gatewayHandler.List)
	authed.PUT("/payment-gateways/:id", gatewayHandler.Update)
	authed.POST("/payment-gateways/:id/toggle", gatewayHandler.Toggle)
	authed.POST("/payment-gateways/:id/set-default", gatewayHandler.SetDefault)

	configHandler := handlers.NewConfigHandler(db, manager)
	authed.GET("/config", configHandler.Get)
	authed.PUT("/config", configHandler.Update)
	r.GET("/v0/config/public", configHandler.Public)
}
