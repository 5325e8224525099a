package dashboard

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/visorry/flash-invite-sub001/internal/broadcast"
	"github.com/visorry/flash-invite-sub001/internal/cache"
	"github.com/visorry/flash-invite-sub001/internal/config"
	apihttp "github.com/visorry/flash-invite-sub001/internal/http"
	"github.com/visorry/flash-invite-sub001/internal/http/api/dashboard/handlers"
	"github.com/visorry/flash-invite-sub001/internal/telegram"
)

// RegisterDashboardRoutes registers the end-user dashboard API under
// /v0/dashboard. Registration and login stay outside the auth middleware.
func RegisterDashboardRoutes(r *gin.Engine, db *gorm.DB, jwtCfg config.JWTConfig, manager *telegram.Manager, cacheClient *cache.Cache, dispatcher *broadcast.Dispatcher) {
	if r == nil || db == nil {
		return
	}

	dash := r.Group("/v0/dashboard")

	authHandler := handlers.NewAuthHandler(db, jwtCfg.Secret, jwtCfg.Expiry)
	dash.POST("/register", authHandler.Register)
	dash.POST("/login", authHandler.Login)

	authed := dash.Group("")
	authed.Use(apihttp.UserAuth(jwtCfg.Secret))

	botHandler := handlers.NewBotHandler(db, manager)
	authed.POST("/bots", botHandler.Create)
	authed.GET("/bots", botHandler.List)
	authed.GET("/bots/:id", botHandler.Get)
	authed.DELETE("/bots/:id", botHandler.Delete)
	authed.GET("/bots/:id/chats", botHandler.Chats)
	authed.POST("/bots/:id/link", botHandler.LinkEntity)
	authed.POST("/bots/:id/unlink", botHandler.UnlinkEntity)

	entityHandler := handlers.NewEntityHandler(db)
	authed.GET("/telegram-entities", entityHandler.List)
	authed.GET("/telegram-entities/:id", entityHandler.Get)

	ruleHandler := handlers.NewForwardRuleHandler(db)
	authed.POST("/forward-rules", ruleHandler.Create)
	authed.GET("/forward-rules", ruleHandler.List)
	authed.GET("/forward-rules/:id", ruleHandler.Get)
	authed.PUT("/forward-rules/:id", ruleHandler.Update)
	authed.DELETE("/forward-rules/:id", ruleHandler.Delete)
	authed.POST("/forward-rules/:id/toggle", ruleHandler.Toggle)
	authed.POST("/forward-rules/:id/start", ruleHandler.Start)
	authed.POST("/forward-rules/:id/pause", ruleHandler.Pause)
	authed.POST("/forward-rules/:id/resume", ruleHandler.Resume)
	authed.POST("/forward-rules/:id/reset", ruleHandler.Reset)

	broadcastHandler := handlers.NewBroadcastHandler(db, dispatcher)
	authed.POST("/broadcast", broadcastHandler.Create)
	authed.GET("/broadcast", broadcastHandler.List)
	authed.GET("/broadcast/bots-with-subscribers", broadcastHandler.BotsWithSubscribers)
	authed.GET("/broadcast/source-groups/:botID", broadcastHandler.SourceGroups)
	authed.GET("/broadcast/subscribers/:botID", broadcastHandler.Subscribers)
	authed.GET("/broadcast/subscribers/:botID/stats", broadcastHandler.SubscriberStats)
	authed.GET("/broadcast/:id", broadcastHandler.Get)
	authed.PUT("/broadcast/:id", broadcastHandler.Update)
	authed.DELETE("/broadcast/:id", broadcastHandler.Delete)
	authed.POST("/broadcast/:id/send", broadcastHandler.Send)
	authed.POST("/broadcast/:id/cancel", broadcastHandler.Cancel)
	authed.POST("/broadcast/:id/duplicate", broadcastHandler.Duplicate)
	authed.GET("/broadcast/:id/preview", broadcastHandler.Preview)

	dropHandler := handlers.NewAutoDropHandler(db)
	authed.POST("/auto-drop", dropHandler.Create)
	authed.GET("/auto-drop", dropHandler.List)
	authed.GET("/auto-drop/:id", dropHandler.Get)
	authed.PUT("/auto-drop/:id", dropHandler.Update)
	authed.DELETE("/auto-drop/:id", dropHandler.Delete)
	authed.POST("/auto-drop/:id/toggle", dropHandler.Toggle)
	authed.POST("/auto-drop/:id/start", dropHandler.Start)
	authed.POST("/auto-drop/:id/pause", dropHandler.Pause)
	authed.POST("/auto-drop/:id/resume", dropHandler.Resume)
	authed.POST("/auto-drop/:id/reset", dropHandler.Reset)

	inviteHandler := handlers.NewInviteHandler(db, cacheClient)
	authed.POST("/invites", inviteHandler.Create)
	authed.GET("/invites", inviteHandler.List)

	memberHandler := handlers.NewMemberHandler(db)
	authed.GET("/members", memberHandler.List)
	authed.POST("/members", memberHandler.Create)

	promoterHandler := handlers.NewPromoterHandler(db)
	authed.GET("/promoter", promoterHandler.List)
	authed.GET("/promoter/:id", promoterHandler.Get)
	authed.POST("/promoter", promoterHandler.Create)
	authed.PUT("/promoter/:id", promoterHandler.Update)
	authed.DELETE("/promoter/:id", promoterHandler.Delete)
	authed.POST("/promoter/:id/toggle", promoterHandler.Toggle)

	tokenHandler := handlers.NewTokenHandler(db, cacheClient)
	authed.GET("/tokens/balance", tokenHandler.Balance)
	authed.POST("/tokens/calculate-cost", tokenHandler.CalculateCost)
}
