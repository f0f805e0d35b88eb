package main

import (
	"context"
	"log"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"patrolchat/config"
	"patrolchat/pkg/api"
	"patrolchat/pkg/app"
	"patrolchat/pkg/bus"
	"patrolchat/pkg/logger"
	"patrolchat/pkg/middleware"
	"patrolchat/pkg/repository"
)

func init() {
	if err := godotenv.Load(".env"); err != nil {
		log.Println("No .env file found, relying on environment")
	}
}

func main() {
	cfg := config.Load()

	zlog, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Unable to build logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	ctx := context.Background()

	db, err := config.SetupDatabase(ctx, cfg.DatabaseURL)
	if err != nil {
		zlog.Error("unable to connect to database", zap.Error(err))
		os.Exit(1)
	}
	defer db.Close()
	zlog.Info("connected to officer directory database")

	firebaseApp := config.SetupFirebase()

	firestoreClient, err := firebaseApp.Firestore(ctx)
	if err != nil {
		zlog.Fatal("unable to create firestore client", zap.Error(err))
	}
	defer func() { _ = firestoreClient.Close() }()

	authClient, err := firebaseApp.Auth(ctx)
	if err != nil {
		zlog.Fatal("unable to create firebase auth client", zap.Error(err))
	}
	verifier := middleware.NewFirebaseVerifier(authClient)

	storage := repository.NewStorage(db, firestoreClient, zlog)

	hub := api.NewHub(zlog)

	var eventBus api.EventBus
	if cfg.NATSURL != "" {
		natsBus, err := bus.Connect(cfg.NATSURL, zlog)
		if err != nil {
			zlog.Fatal("unable to connect to nats", zap.Error(err))
		}
		eventBus = natsBus
		zlog.Info("cross-instance fan-out enabled", zap.String("url", cfg.NATSURL))
	}
	fanout := api.NewFanout(hub, eventBus, zlog)

	userService := api.NewUserService(storage)
	chatService := api.NewChatService(storage, storage, fanout, zlog)

	router := chi.NewRouter()
	server := app.NewServer(router, userService, chatService, hub, fanout, verifier, cfg, zlog)

	if err := server.Run(); err != nil {
		zlog.Fatal("server stopped", zap.Error(err))
	}
}
