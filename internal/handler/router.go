package handler

import (
	"github.com/akin525/bills-ledger/internal/config"
	"github.com/akin525/bills-ledger/internal/event"
	"github.com/akin525/bills-ledger/internal/realtime"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// SetupRouter 配置路由
func SetupRouter(db *gorm.DB, rdb *redis.Client, cfg *config.Config, dispatcher *event.Dispatcher, wsServer *realtime.Server) *gin.Engine {
	// 设置 gin 为发布模式（减少日志输出）
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// 注册中间件
	r.Use(RecoveryMiddleware())
	r.Use(LoggerMiddleware())
	r.Use(CORSMiddleware())

	// 创建处理器
	h := NewHandler(db, rdb, cfg, dispatcher)

	// 开放路由（无需认证）
	auth := r.Group("/api/v1/auth")
	{
		auth.POST("/register", h.Register)
		auth.POST("/login", h.Login)
		auth.POST("/forgot-password", h.ForgotPassword)
		auth.POST("/reset-password", h.ResetPassword)
	}

	// 认证路由
	api := r.Group("/api/v1")
	api.Use(JWTAuthMiddleware(cfg.JWT.Secret))
	{
		// 用户
		users := api.Group("/users")
		{
			users.GET("/me", h.GetProfile)
			users.PUT("/me", h.UpdateProfile)
			users.POST("/me/password", h.ChangePassword)
			users.GET("/search", h.SearchUsers)
		}

		// 账单
		bills := api.Group("/bills")
		{
			bills.POST("", h.CreateBill)
			bills.GET("", h.ListBills)
			bills.GET("/summary", h.GetBillSummary)
			bills.GET("/:id", h.GetBill)
			bills.POST("/:id/pay", h.MarkBillPaid)
			bills.PUT("/:id/status", h.UpdateBillStatus)
			bills.DELETE("/:id", h.DeleteBill)
		}

		// 转账
		transactions := api.Group("/transactions")
		{
			transactions.POST("", h.CreateTransaction)
			transactions.GET("", h.ListTransactions)
			transactions.GET("/stats", h.GetTransactionStats)
			transactions.GET("/:id", h.GetTransaction)
			transactions.POST("/:id/cancel", h.CancelTransaction)
		}

		// 会话与消息
		conversations := api.Group("/conversations")
		{
			conversations.GET("", h.ListConversations)
			conversations.POST("/direct", h.GetOrCreateDirectConversation)
			conversations.POST("/group", h.CreateGroupConversation)
			conversations.GET("/:id/messages", h.ListMessages)
			conversations.POST("/:id/messages", h.SendMessage)
			conversations.POST("/:id/participants", h.AddConversationParticipant)
			conversations.DELETE("/:id/participants/me", h.LeaveConversation)
			conversations.POST("/:id/read", h.MarkConversationRead)
		}

		// 好友
		friends := api.Group("/friends")
		{
			friends.GET("", h.ListFriends)
			friends.POST("/requests", h.SendFriendRequest)
			friends.GET("/requests", h.ListFriendRequests)
			friends.POST("/requests/:id/accept", h.AcceptFriendRequest)
			friends.POST("/requests/:id/reject", h.RejectFriendRequest)
			friends.DELETE("/:id", h.RemoveFriend)
		}

		// 通知
		notifications := api.Group("/notifications")
		{
			notifications.GET("", h.ListNotifications)
			notifications.GET("/unread-count", h.GetUnreadCount)
			notifications.POST("/read-all", h.MarkAllNotificationsRead)
			notifications.POST("/:id/read", h.MarkNotificationRead)
			notifications.DELETE("/:id", h.DeleteNotification)
		}

		// 组织
		organizations := api.Group("/organizations")
		{
			organizations.POST("", h.CreateOrganization)
			organizations.GET("", h.ListOrganizations)
			organizations.GET("/:id", h.GetOrganization)
			organizations.PUT("/:id", h.UpdateOrganization)
			organizations.DELETE("/:id", h.DeleteOrganization)
			organizations.POST("/:id/members", h.AddOrganizationMember)
			organizations.DELETE("/:id/members/:user_id", h.RemoveOrganizationMember)
			organizations.PUT("/:id/members/:user_id/role", h.UpdateOrganizationMemberRole)
		}
	}

	// WebSocket 入口，认证在握手阶段完成
	r.GET("/ws", wsServer.HandleWS)

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
