package main

import (
	"context"
	"embed"
	"encoding/base64"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	gmw "github.com/Laisky/gin-middlewares/v6"
	glog "github.com/Laisky/go-utils/v5/log"
	"github.com/Laisky/zap"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/chatbridge/chatbridge/bridge/bedrock"
	"github.com/chatbridge/chatbridge/common"
	"github.com/chatbridge/chatbridge/common/config"
	"github.com/chatbridge/chatbridge/common/graceful"
	"github.com/chatbridge/chatbridge/common/logger"
	"github.com/chatbridge/chatbridge/controller"
	"github.com/chatbridge/chatbridge/docstore"
	"github.com/chatbridge/chatbridge/middleware"
	"github.com/chatbridge/chatbridge/monitor"
	"github.com/chatbridge/chatbridge/router"
	"github.com/chatbridge/chatbridge/session"
)

//go:embed web/*
var buildFS embed.FS

func main() {
	ctx := context.Background()

	common.Init()
	logger.SetupLogger()

	if *common.PrintVersion {
		println(common.Version)
		os.Exit(0)
	}

	logger.Logger.Info("ChatBridge started", zap.String("version", common.Version))

	if config.GinMode != "" {
		gin.SetMode(config.GinMode)
	} else if !config.DebugEnabled {
		gin.SetMode(gin.ReleaseMode)
	}

	middleware.RegisterValidators()

	bridgeClient, err := bedrock.New(ctx, bedrock.WithObserver(monitor.RecordUsage))
	if err != nil {
		logger.Logger.Fatal("failed to initialize bedrock bridge", zap.Error(err))
	}
	logger.Logger.Info("bedrock bridge ready",
		zap.String("region", config.AwsRegion),
		zap.String("default_model", config.DefaultModel))

	sessionStore, err := buildSessionStore(ctx)
	if err != nil {
		logger.Logger.Fatal("failed to initialize session store", zap.Error(err))
	}

	api := &controller.ChatAPI{
		Bridge:   bridgeClient,
		Sessions: sessionStore,
		Docs:     buildDocStore(ctx),
	}

	logLevel := glog.LevelInfo
	if config.DebugEnabled {
		logLevel = glog.LevelDebug
	}

	// Initialize HTTP server
	server := gin.New()
	server.RedirectTrailingSlash = false
	server.Use(
		gin.Recovery(),
		gmw.NewLoggerMiddleware(
			gmw.WithLoggerMwColored(),
			gmw.WithLevel(logLevel.String()),
			gmw.WithLogger(logger.Logger.Named("gin")),
		),
	)
	// This will cause SSE not to work!!!
	//server.Use(gzip.Gzip(gzip.DefaultCompression))
	server.Use(middleware.RequestId())
	server.Use(middleware.PanicRecover())
	server.Use(middleware.CORS())
	server.Use(sessions.Sessions("session", buildCookieStore()))

	if config.EnablePrometheusMetrics {
		server.GET("/metrics", gin.WrapH(promhttp.Handler()))
		logger.Logger.Info("Prometheus metrics endpoint available at /metrics")
	}

	router.SetRouter(server, api, buildFS)

	port := config.ServerPort
	if port == "" {
		port = strconv.Itoa(*common.Port)
	}
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: server,
	}

	go func() {
		logger.Logger.Info("server started", zap.String("address", "http://localhost:"+port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Logger.Fatal("failed to start HTTP server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Logger.Info("shutdown signal received, draining in-flight completions")
	graceful.SetDraining()

	shutdownCtx, cancel := context.WithTimeout(ctx, time.Duration(config.ShutdownTimeoutSec)*time.Second)
	defer cancel()
	if err := graceful.Drain(shutdownCtx); err != nil {
		logger.Logger.Warn("drain incomplete", zap.Error(err))
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Logger.Warn("forced shutdown", zap.Error(err))
	}
	logger.Logger.Info("server exited")
}

// buildSessionStore picks Redis when REDIS_CONN_STRING is set, otherwise the
// in-memory store. Both expire idle buffers with SessionTTL.
func buildSessionStore(ctx context.Context) (session.Store, error) {
	if config.RedisConnString == "" {
		logger.Logger.Info("using in-memory session store",
			zap.Duration("session_ttl", config.SessionTTL))
		return session.NewMemoryStore(config.SessionTTL), nil
	}
	logger.Logger.Info("using redis session store",
		zap.Duration("session_ttl", config.SessionTTL))
	return session.NewRedisStoreFromURL(ctx, config.RedisConnString, config.SessionTTL)
}

// buildDocStore returns nil when CONTEXT_BUCKET is unset, which disables
// document-context augmentation.
func buildDocStore(ctx context.Context) *docstore.Store {
	if config.ContextBucket == "" {
		return nil
	}
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(config.AwsRegion),
	}
	if config.AwsAccessKey != "" && config.AwsSecretKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(config.AwsAccessKey, config.AwsSecretKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		logger.Logger.Fatal("failed to load AWS config for document store", zap.Error(err))
	}
	logger.Logger.Info("document context enabled", zap.String("bucket", config.ContextBucket))
	return docstore.NewFromConfig(awsCfg, config.ContextBucket)
}

func buildCookieStore() cookie.Store {
	var store cookie.Store
	secret, err := base64.StdEncoding.DecodeString(config.SessionSecret)
	if err != nil {
		logger.Logger.Info("session secret is not base64 encoded, using raw value instead")
		store = cookie.NewStore([]byte(config.SessionSecret))
	} else {
		store = cookie.NewStore(secret, secret)
	}
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   config.CookieMaxAgeHours * 3600,
		SameSite: http.SameSiteLaxMode,
		Secure:   config.EnableCookieSecure,
		HttpOnly: true,
	})
	return store
}
