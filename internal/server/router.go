package server

import (
	"net/http"
	"time"

	"github.com/louisboswell/loungr/internal/auth"
	"github.com/louisboswell/loungr/internal/config"
	"github.com/louisboswell/loungr/internal/metrics"
	"github.com/louisboswell/loungr/internal/mw"
	"github.com/louisboswell/loungr/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

// SetupRouter 统一初始化 Gin 中间件与 REST API。
func SetupRouter(cfg config.Config, db *gorm.DB) *gin.Engine {
	userSvc := service.NewUserService(db, cfg)
	postSvc := service.NewPostService(db)
	roomSvc := service.NewRoomService(db)
	h := NewHandler(userSvc, postSvc, roomSvc, cfg)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(metrics.GinMiddleware())
	r.Use(mw.CORS(cfg.Env))
	// 控制单个 IP+路由的速率，避免小站被刷爆。
	r.Use(mw.RateLimit(rate.Every(time.Second/20), 40))

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")

	api.POST("/auth/register", h.Register)
	api.POST("/auth/login", h.Login)
	api.POST("/auth/refresh", h.RefreshToken)

	// 需要 Bearer Token 的业务接口。
	authed := api.Group("")
	authed.Use(auth.AuthMiddleware(cfg, db))

	authed.GET("/feed", h.Feed)
	authed.GET("/posts", h.Explore)
	authed.POST("/posts", h.CreatePost)
	authed.POST("/posts/:id/like", h.LikePost)
	authed.DELETE("/posts/:id/like", h.UnlikePost)
	authed.GET("/posts/:id/replies", h.ListReplies)
	authed.POST("/posts/:id/replies", h.CreateReply)

	authed.GET("/users/:username", h.UserProfile)
	authed.POST("/users/:username/follow", h.FollowUser)
	authed.DELETE("/users/:username/follow", h.UnfollowUser)
	authed.PUT("/me", h.UpdateMe)
	authed.GET("/me/rooms", h.MyRooms)

	authed.GET("/rooms", h.ListRooms)
	authed.POST("/rooms", h.CreateRoom)
	authed.DELETE("/rooms/:code", h.DeleteRoom)
	authed.POST("/rooms/:code/join", h.JoinRoom)
	authed.POST("/rooms/:code/leave", h.LeaveRoom)
	authed.GET("/rooms/:code/members", h.RoomMembers)

	return r
}
