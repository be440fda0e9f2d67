package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"meetuply/internal/config"
	"meetuply/internal/database"
	"meetuply/internal/events"
	"meetuply/internal/middleware"
	"meetuply/internal/modules/auth"
	"meetuply/internal/modules/event"
	"meetuply/internal/modules/notification"
	"meetuply/internal/modules/participant"
	"meetuply/internal/modules/payment"
	"meetuply/internal/modules/payout"
	"meetuply/internal/modules/promo"
	"meetuply/internal/modules/subscription"
	"meetuply/internal/modules/wallet"
	"meetuply/internal/pkg/jwt"
	"meetuply/internal/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	zlog, err := logger.New(cfg.LogLevel, cfg.Development)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		zlog.Fatal("database connection failed", zap.Error(err))
	}
	if err := database.Migrate(db); err != nil {
		zlog.Fatal("migration failed", zap.Error(err))
	}

	tokens := jwt.New(cfg.JWTSecret, cfg.JWTTTL)
	bus := events.NewBus(zlog)
	gateway := payment.NewTinkoffClient(cfg.Tinkoff, zlog)

	walletSvc := wallet.NewService(db, zlog)
	paymentSvc := payment.NewService(db, gateway, walletSvc, bus, cfg.Tinkoff, zlog)
	eventSvc := event.NewService(db, walletSvc, paymentSvc, bus, zlog)
	participantSvc := participant.NewService(db, walletSvc, paymentSvc, eventSvc, bus, zlog)
	payoutSvc := payout.NewService(db, gateway, paymentSvc, zlog)
	subscriptionSvc := subscription.NewService(db, walletSvc, zlog)
	promoSvc := promo.NewService(db, walletSvc, zlog)
	authSvc := auth.NewService(db, tokens, zlog)

	hub := notification.NewHub()
	defer hub.Close()
	notificationSvc := notification.NewService(db, hub, zlog)
	notification.Subscribe(bus, notificationSvc)

	if !cfg.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.CORS(), middleware.RequestLogger(zlog))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1")

	authHandler := auth.NewHandler(authSvc)
	authHandler.RegisterPublicRoutes(api)

	paymentHandler := payment.NewHandler(paymentSvc, zlog)
	paymentHandler.RegisterWebhook(api)

	protected := api.Group("")
	protected.Use(middleware.Auth(tokens))

	authHandler.RegisterRoutes(protected)
	wallet.NewHandler(walletSvc).RegisterRoutes(protected)
	paymentHandler.RegisterRoutes(protected)
	event.NewHandler(eventSvc).RegisterRoutes(protected)
	participant.NewHandler(participantSvc).RegisterRoutes(protected)
	payout.NewHandler(payoutSvc).RegisterRoutes(protected)
	subscription.NewHandler(subscriptionSvc).RegisterRoutes(protected)
	promo.NewHandler(promoSvc).RegisterRoutes(protected)
	notification.NewHandler(notificationSvc, hub, zlog).RegisterRoutes(protected)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		zlog.Info("server starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zlog.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		zlog.Error("graceful shutdown failed", zap.Error(err))
	}
}
