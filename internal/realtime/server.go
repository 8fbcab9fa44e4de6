package realtime

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/akin525/bills-ledger/internal/event"
	"github.com/akin525/bills-ledger/pkg/token"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Server WebSocket 接入层：握手认证、会话生命周期、上下线广播
type Server struct {
	hub        *Hub
	dispatcher *event.Dispatcher

	conversations ConversationStore
	friends       FriendStore
	bills         BillStore
	transactions  TransactionStore

	jwtSecret string
	upgrader  websocket.Upgrader
}

func NewServer(
	hub *Hub,
	dispatcher *event.Dispatcher,
	conversations ConversationStore,
	friends FriendStore,
	bills BillStore,
	transactions TransactionStore,
	jwtSecret string,
) *Server {
	return &Server{
		hub:           hub,
		dispatcher:    dispatcher,
		conversations: conversations,
		friends:       friends,
		bills:         bills,
		transactions:  transactions,
		jwtSecret:     jwtSecret,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// 浏览器端跨域由前置的 CORS 中间件约束
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// HandleWS GET /ws 升级入口
// 认证失败直接拒绝握手，不建立连接
func (s *Server) HandleWS(c *gin.Context) {
	claims, err := s.authenticate(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": 401, "message": "认证失败"})
		return
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[WS] 升级失败: user=%d err=%v", claims.UserID, err)
		return
	}

	sess := newSession(uuid.NewString(), claims.UserID, claims.Username, s, conn)
	s.hub.Register(sess)
	log.Printf("[WS] 连接建立: user=%d conn=%s", claims.UserID, sess.id)

	go sess.writePump()
	go sess.readPump()

	s.broadcastPresence(c.Request.Context(), claims.UserID, StatusOnline)
}

// authenticate 从 query 参数或 Authorization 头取 token
func (s *Server) authenticate(c *gin.Context) (*token.Claims, error) {
	raw := c.Query("token")
	if raw == "" {
		header := c.GetHeader("Authorization")
		raw = strings.TrimPrefix(header, "Bearer ")
	}
	return token.Verify(s.jwtSecret, raw)
}

// broadcastPresence 向用户的所有好友推送上下线状态，失败只记日志
func (s *Server) broadcastPresence(ctx context.Context, userID int64, status string) {
	friendIDs, err := s.friends.ListFriendIDs(ctx, userID)
	if err != nil {
		log.Printf("[WS] 查询好友失败，跳过状态广播: user=%d err=%v", userID, err)
		return
	}
	payload := UserStatusData{UserID: userID, Status: status}
	for _, fid := range friendIDs {
		s.hub.Push(fid, EventUserStatusChanged, payload)
	}
}
