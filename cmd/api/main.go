package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	_ "github.com/decode-labs/decode-api/api/swagger"
	"github.com/decode-labs/decode-api/internal/handler"
	"github.com/decode-labs/decode-api/internal/middleware"
	"github.com/decode-labs/decode-api/internal/models"
	"github.com/decode-labs/decode-api/internal/pubsub"
	"github.com/decode-labs/decode-api/internal/repository"
	"github.com/decode-labs/decode-api/internal/service"
	"github.com/decode-labs/decode-api/pkg/cache"
	"github.com/decode-labs/decode-api/pkg/config"
	"github.com/decode-labs/decode-api/pkg/database"
	"github.com/decode-labs/decode-api/pkg/jobs"
	"github.com/decode-labs/decode-api/pkg/logger"
	"github.com/decode-labs/decode-api/pkg/mailer"
	corsmiddleware "github.com/decode-labs/decode-api/pkg/middleware/cors"
	reqidmiddleware "github.com/decode-labs/decode-api/pkg/middleware/requestid"
	"github.com/decode-labs/decode-api/pkg/storage"
)

// @title Decode API
// @version 1.0.0
// @description Learning platform API: courses, quizzes, points and rewards
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to database", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching and chat fan-out disabled", "error", err)
		redisClient = nil
	}

	validate := validator.New()
	txRunner := database.NewTxRunner(db)

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	quizRepo := repository.NewQuizRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	redemptionRepo := repository.NewRedemptionRepository(db)
	referralRepo := repository.NewReferralRepository(db)
	roomRepo := repository.NewRoomRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	statementRepo := repository.NewStatementRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	// Background infrastructure.
	var mail mailer.Mailer = mailer.NopMailer{}
	if cfg.Mail.Enabled {
		mail = mailer.NewSendGrid(cfg.Mail, logr)
	}
	notificationSvc := service.NewNotificationService(notificationRepo, userRepo, mail, jobs.QueueConfig{Workers: 2}, logr)

	var statementSvc *service.StatementService
	if cfg.Statements.Enabled {
		store, err := storage.NewLocalStorage(cfg.Statements.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to init statement storage", "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Statements.SignedURLSecret, cfg.Statements.SignedURLTTL)
		statementSvc = service.NewStatementService(statementRepo, ledgerRepo, userRepo, store, signer, jobs.QueueConfig{
			Workers:    cfg.Statements.WorkerConcurrency,
			MaxRetries: cfg.Statements.WorkerRetries,
		}, logr)
	}

	broker := pubsub.NewRoomBroker(redisClient, logr)

	// Services.
	metricsSvc := service.NewMetricsService()
	pointsSvc := service.NewPointsService(userRepo, ledgerRepo, cacheRepo, cfg.Leaderboard.Size, cfg.Leaderboard.CacheTTL, logr)
	authSvc := service.NewAuthService(userRepo, referralRepo, ledgerRepo, txRunner, oauthProviders(cfg.OAuth), pointsSvc, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
		SignupBonus:        cfg.Referrals.SignupBonus,
	})
	userSvc := service.NewUserService(userRepo, validate, logr)
	courseSvc := service.NewCourseService(courseRepo, quizRepo, enrollmentRepo, logr)
	completionSvc := service.NewCompletionService(quizRepo, enrollmentRepo, ledgerRepo, courseRepo, txRunner, notificationSvc, metricsSvc, pointsSvc, cfg.Points.TxMaxRetries, logr)
	redemptionSvc := service.NewRedemptionService(redemptionRepo, ledgerRepo, txRunner, notificationSvc, metricsSvc, pointsSvc, cfg.Points.TxMaxRetries, validate, logr)
	referralSvc := service.NewReferralService(referralRepo, ledgerRepo, txRunner, notificationSvc, pointsSvc, cfg.Referrals.HireBonus, cfg.Points.TxMaxRetries, validate, logr)
	roomSvc := service.NewRoomService(roomRepo, broker, cfg.Rooms.DefaultCapacity, cfg.Rooms.MessagePageSize, validate, logr)

	// Handlers.
	authHandler := handler.NewAuthHandler(authSvc)
	userHandler := handler.NewUserHandler(userSvc, notificationSvc)
	courseHandler := handler.NewCourseHandler(courseSvc, completionSvc)
	pointsHandler := handler.NewPointsHandler(pointsSvc, statementSvc)
	redemptionHandler := handler.NewRedemptionHandler(redemptionSvc)
	referralHandler := handler.NewReferralHandler(referralSvc)
	roomHandler := handler.NewRoomHandler(roomSvc)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	notificationSvc.Start(ctx)
	defer notificationSvc.Stop()
	if statementSvc != nil {
		statementSvc.Start(ctx)
		defer statementSvc.Stop()
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/oauth", authHandler.OAuthLogin)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)
	}

	users := api.Group("/users", middleware.JWT(authSvc))
	{
		users.GET("/me", userHandler.Me)
		users.PUT("/me", userHandler.UpdateMe)
		users.DELETE("/me", userHandler.DeleteMe)
		users.GET("/me/notifications", userHandler.Notifications)
		users.PUT("/me/notifications/:id/read", userHandler.MarkNotificationRead)
	}

	courses := api.Group("/courses")
	{
		courses.GET("", middleware.OptionalJWT(authSvc), courseHandler.List)
		courses.GET("/:id", middleware.OptionalJWT(authSvc), courseHandler.Get)
		courses.POST("/:id/enroll", middleware.JWT(authSvc), courseHandler.Enroll)
		courses.PUT("/:id/progress", middleware.JWT(authSvc), courseHandler.UpdateProgress)
		courses.GET("/:id/quiz", middleware.JWT(authSvc), courseHandler.GetQuiz)
		courses.POST("/:id/quiz/submit", middleware.JWT(authSvc), courseHandler.SubmitQuiz)
	}
	api.GET("/enrollments", middleware.JWT(authSvc), courseHandler.MyEnrollments)

	points := api.Group("/points")
	{
		points.GET("/leaderboard", pointsHandler.Leaderboard)
		points.GET("/balance", middleware.JWT(authSvc), pointsHandler.Balance)
		points.GET("/history", middleware.JWT(authSvc), pointsHandler.History)
		if statementSvc != nil {
			points.POST("/statements", middleware.JWT(authSvc), pointsHandler.RequestStatement)
			points.GET("/statements/download", pointsHandler.DownloadStatement)
			points.GET("/statements/:id", middleware.JWT(authSvc), pointsHandler.GetStatement)
		}
	}

	redemptions := api.Group("/redemptions", middleware.JWT(authSvc))
	{
		redemptions.POST("", redemptionHandler.Create)
		redemptions.GET("", redemptionHandler.List)
		redemptions.GET("/:id", redemptionHandler.Get)
		redemptions.PUT("/:id/status", middleware.RequireRoles(models.RoleAdmin), redemptionHandler.UpdateStatus)
	}

	referrals := api.Group("/referrals", middleware.JWT(authSvc))
	{
		referrals.POST("", referralHandler.Create)
		referrals.GET("", referralHandler.List)
		referrals.PUT("/:id/status", middleware.RequireRoles(models.RoleAdmin), referralHandler.UpdateStatus)
	}

	rooms := api.Group("/rooms", middleware.JWT(authSvc))
	{
		rooms.GET("", roomHandler.List)
		rooms.POST("", roomHandler.Create)
		rooms.POST("/:id/join", roomHandler.Join)
		rooms.GET("/:id/messages", roomHandler.Messages)
		rooms.POST("/:id/messages", roomHandler.PostMessage)
		rooms.GET("/:id/stream", roomHandler.Stream)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}

func oauthProviders(cfg config.OAuthConfig) map[models.AuthProvider]service.OAuthProvider {
	providers := map[models.AuthProvider]service.OAuthProvider{}

	if cfg.GoogleClientID != "" {
		providers[models.ProviderGoogle] = service.OAuthProvider{
			Config: &oauth2.Config{
				ClientID:     cfg.GoogleClientID,
				ClientSecret: cfg.GoogleClientSecret,
				RedirectURL:  cfg.GoogleRedirectURL,
				Scopes:       []string{"openid", "email", "profile"},
				Endpoint:     google.Endpoint,
			},
			UserInfoURL: "https://openidconnect.googleapis.com/v1/userinfo",
		}
	}

	if cfg.LinkedInClientID != "" {
		providers[models.ProviderLinkedIn] = service.OAuthProvider{
			Config: &oauth2.Config{
				ClientID:     cfg.LinkedInClientID,
				ClientSecret: cfg.LinkedInClientSecret,
				RedirectURL:  cfg.LinkedInRedirectURL,
				Scopes:       []string{"openid", "email", "profile"},
				Endpoint: oauth2.Endpoint{
					AuthURL:  "https://www.linkedin.com/oauth/v2/authorization",
					TokenURL: "https://www.linkedin.com/oauth/v2/accessToken",
				},
			},
			UserInfoURL: "https://api.linkedin.com/v2/userinfo",
		}
	}

	return providers
}
