package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/akin525/bills-ledger/internal/config"
	"github.com/akin525/bills-ledger/internal/event"
	"github.com/akin525/bills-ledger/internal/handler"
	"github.com/akin525/bills-ledger/internal/infrastructure/cache"
	"github.com/akin525/bills-ledger/internal/infrastructure/database"
	"github.com/akin525/bills-ledger/internal/infrastructure/mq"
	"github.com/akin525/bills-ledger/internal/job"
	"github.com/akin525/bills-ledger/internal/realtime"
	"github.com/akin525/bills-ledger/internal/repository"
	"github.com/akin525/bills-ledger/pkg/idgen"
)

func main() {
	// 加载配置
	cfg := config.LoadConfig("config/config.yaml")

	// 初始化 ID 生成器
	idgen.Init(1)

	// 初始化 MySQL
	db := database.InitMySQL(&cfg.MySQL)

	// 初始化 Redis
	redisClient := cache.InitRedis(&cfg.Redis)

	// 初始化 Kafka
	mq.InitKafka(&cfg.Kafka)
	defer mq.CloseKafka()

	// 在线连接注册表 + 事件派发器
	// 派发器通过 hub 判断接收人是否在线：在线直推，离线落通知
	hub := realtime.NewHub()
	dispatcher := event.NewDispatcher(
		hub,
		repository.NewNotificationRepository(db),
		repository.NewOutboxRepository(db),
		cfg.Kafka.Topic,
	)

	// WebSocket 接入层
	wsServer := realtime.NewServer(
		hub,
		dispatcher,
		repository.NewConversationRepository(db),
		repository.NewFriendRepository(db),
		repository.NewBillRepository(db),
		repository.NewTransactionRepository(db),
		cfg.JWT.Secret,
	)

	// 创建上下文（用于优雅关闭）
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 启动后台任务
	outboxSender := job.NewOutboxSender(db, cfg)
	go outboxSender.Start(ctx)

	overdueJob := job.NewBillOverdueJob(db, cfg, dispatcher)
	go overdueJob.Start(ctx)

	// 设置路由
	router := handler.SetupRouter(db, redisClient, cfg, dispatcher, wsServer)

	// 启动 HTTP 服务
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// 在 goroutine 中启动服务器
	go func() {
		log.Printf("服务启动，监听端口: %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("服务启动失败: %v", err)
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("正在关闭服务...")

	// 取消上下文，停止后台任务
	cancel()

	// 断开所有 WebSocket 连接
	hub.Shutdown()

	// 关闭 HTTP 服务（等待最多5秒）
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("服务关闭异常: %v", err)
	}

	log.Println("服务已关闭")
}
