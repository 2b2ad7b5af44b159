package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tradechamp/tradechamp-server/internal/api"
	"github.com/tradechamp/tradechamp-server/internal/auth"
	"github.com/tradechamp/tradechamp-server/internal/config"
	"github.com/tradechamp/tradechamp-server/internal/database"
	"github.com/tradechamp/tradechamp-server/internal/handler"
	"github.com/tradechamp/tradechamp-server/internal/infrastructure/kafka"
	"github.com/tradechamp/tradechamp-server/internal/infrastructure/redis"
	"github.com/tradechamp/tradechamp-server/internal/observability"
	mysqlrepo "github.com/tradechamp/tradechamp-server/internal/repository/mysql"
	service "github.com/tradechamp/tradechamp-server/internal/services"
)

func main() {
	cfg := config.Load()

	shutdown, _ := observability.Setup("tradechamp-server")
	defer shutdown(context.Background())

	// The pool is released here when the server stops; process exit is
	// main's concern, not the pool's.
	db, err := database.Open(database.Config{
		Host:         cfg.DBHost,
		User:         cfg.DBUser,
		Password:     cfg.DBPassword,
		Name:         cfg.DBName,
		ConnLimit:    cfg.DBConnLimit,
		QueryTimeout: cfg.QueryTimeout,
	})
	if err != nil {
		log.Fatalf("Failed to connect to MySQL: %v", err)
	}
	defer db.Close()

	redisClient, err := redis.NewClient(cfg.RedisAddr)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()

	kafkaProducer := kafka.NewProducer(cfg.KafkaBrokers)
	defer kafkaProducer.Close()

	authenticator := auth.New(cfg.BcryptCost)
	userRepo := mysqlrepo.NewMySQLUserRepository(db, authenticator)
	svc := service.NewUserService(userRepo, authenticator, redisClient, kafkaProducer, cfg.JWTSecret)

	h := handler.NewHandler(svc, cfg.Production())
	router := api.SetupRouter(api.Options{
		Handler:        h,
		RedisClient:    redisClient,
		JWTSecret:      cfg.JWTSecret,
		AllowedOrigins: cfg.AllowedOrigins,
		Production:     cfg.Production(),
	})

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}
	go func() {
		log.Printf("Starting server on :%s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server shutdown failed: %v", err)
	}
	log.Println("Server stopped")
}
