// Package main API Server 入口
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

	"github.com/redis/go-redis/v9"

	"eventhub/internal/apiserver/auth"
	"eventhub/internal/apiserver/payment"
	"eventhub/internal/apiserver/server"
	"eventhub/internal/apiserver/upload"
	"eventhub/internal/config"
	"eventhub/internal/objstore"
	"eventhub/internal/ratelimit"
	"eventhub/internal/storage/mongostore"
)

func main() {
	// 加载配置（自动加载 .env，根据 APP_ENV 切换配置文件）
	cfg := config.Load()

	log.Printf("Starting API Server... [env=%s]", cfg.Env)
	log.Printf("Config: %s", cfg.String())

	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET is required")
	}

	// 初始化 MongoDB（业务数据）
	store, err := mongostore.NewStore(cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer store.Close()
	log.Println("Connected to MongoDB")

	// 初始化 MinIO（活动图片）
	objClient, err := objstore.NewClient(cfg.MinIO)
	if err != nil {
		log.Fatalf("Failed to create MinIO client: %v", err)
	}
	if err := objClient.EnsureBucket(context.Background()); err != nil {
		log.Fatalf("Failed to ensure MinIO bucket: %v", err)
	}
	log.Printf("Connected to MinIO [bucket=%s]", cfg.MinIO.Bucket)

	// 初始化 Redis 限流器（可选，连接失败只告警不退出）
	limiter := ratelimit.NewLimiter(connectRedis(cfg.RedisURL))

	// 启动时确保管理员账号存在
	if err := auth.EnsureAdminUser(store, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		log.Fatalf("Failed to ensure admin user: %v", err)
	}

	authCfg := auth.Config{
		JWTSecret: cfg.JWTSecret,
		TokenTTL:  cfg.Auth.TokenTTL,
	}

	h := server.NewHandler(server.Options{
		Store:      store,
		Uploader:   objClient,
		Gateway:    payment.NewGateway(cfg.Razorpay.KeyID, cfg.Razorpay.KeySecret),
		AuthConfig: authCfg,
		UploadConfig: upload.Config{
			MaxSizeBytes: cfg.Upload.MaxSizeBytes,
			Folder:       cfg.Upload.Folder,
		},
		Limiter:           limiter,
		RazorpayKeyID:     cfg.Razorpay.KeyID,
		RazorpayKeySecret: cfg.Razorpay.KeySecret,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      h.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// 优雅关闭
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	log.Printf("API Server listening on :%s", cfg.APIPort)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}

	fmt.Println("Server stopped")
}

// connectRedis 连接 Redis，未配置或连不上时返回 nil（限流降级为直通）
func connectRedis(redisURL string) *redis.Client {
	if redisURL == "" {
		log.Println("Redis not configured, rate limiting disabled")
		return nil
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		log.Printf("Invalid Redis URL, rate limiting disabled: %v", err)
		return nil
	}

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("Redis unreachable, rate limiting disabled: %v", err)
		client.Close()
		return nil
	}

	log.Println("Connected to Redis")
	return client
}
