package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "crmhub/docs"
	"crmhub/internal/auth"
	"crmhub/internal/config"
	"crmhub/internal/handlers"
	"crmhub/internal/middleware"
	"crmhub/internal/pdf"
	"crmhub/internal/realtime"
	"crmhub/internal/repositories"
	"crmhub/internal/routes"
	"crmhub/internal/services"
	"crmhub/internal/session"
)

// @title                       CRM Hub API
// @version                     1.0
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization

func init() {
	// суммы в JSON числами, а не строками
	decimal.MarshalJSONWithoutQuotes = true
}

type App struct {
	cfg    *config.Config
	log    *zap.Logger
	db     *sql.DB
	redis  *redis.Client
	router *gin.Engine

	Reports *services.ReportService
}

// OpenDB opens the Postgres pool and checks the connection.
func OpenDB(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if cfg.Database.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return db, nil
}

// New wires repositories, services and handlers. The caller owns the
// returned App and must Close it.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	// === DB ===
	db, err := OpenDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	// === Redis ===
	rdb, err := session.NewClient(ctx, cfg.Redis.URL)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	a := &App{cfg: cfg, log: log, db: db, redis: rdb}

	// === Repos ===
	userRepo := repositories.NewUserRepository(db)
	profileRepo := repositories.NewProfileRepository(db)
	companyRepo := repositories.NewCompanyRepository(db)
	contactRepo := repositories.NewContactRepository(db)
	leadRepo := repositories.NewLeadRepository(db)
	pipelineRepo := repositories.NewPipelineRepository(db)
	dealRepo := repositories.NewDealRepository(db)
	activityRepo := repositories.NewActivityRepository(db)
	taskRepo := repositories.NewTaskRepository(db)

	// === Services ===
	emailService := services.NewEmailService(
		cfg.Email.SMTPHost,
		cfg.Email.SMTPPort,
		cfg.Email.SMTPUser,
		cfg.Email.SMTPPassword,
		cfg.Email.FromEmail,
		log,
	)
	tg, err := services.NewTelegramService(cfg.Telegram.BotToken, cfg.Telegram.ChatID, log)
	if err != nil {
		// без телеги работаем дальше, уведомления уйдут только на почту
		log.Warn("[app] telegram disabled", zap.Error(err))
		tg, _ = services.NewTelegramService("", 0, log)
	}
	notifier := services.NewNotifier(emailService, tg, profileRepo, log)

	store := session.NewStore(rdb, cfg.Auth.RefreshTTL)
	bus := session.NewBus(rdb)
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTTL)
	authService := services.NewAuthService(userRepo, profileRepo, store, bus, tokens, emailService, log)

	pipelineService := services.NewPipelineService(pipelineRepo)
	boards := realtime.NewBoardHub()
	dealService := services.NewDealService(dealRepo, pipelineRepo, notifier, log).WithEvents(boards)
	leadService := services.NewLeadService(leadRepo, contactRepo, dealService, log)
	companyService := services.NewCompanyService(companyRepo)
	contactService := services.NewContactService(contactRepo)
	activityService := services.NewActivityService(activityRepo)
	taskService := services.NewTaskService(taskRepo)
	dashboardService := services.NewDashboardService(contactRepo, companyRepo, leadRepo, dealRepo, taskRepo, activityRepo)

	pdfGen := pdf.NewReportGenerator(cfg.Files.RootDir, cfg.Files.FontPath)
	a.Reports = services.NewReportService(dealService, pdfGen)

	// === Handlers ===
	h := routes.Handlers{
		Auth:       handlers.NewAuthHandler(authService),
		Companies:  handlers.NewCompanyHandler(companyService),
		Contacts:   handlers.NewContactHandler(contactService),
		Leads:      handlers.NewLeadHandler(leadService),
		Pipelines:  handlers.NewPipelineHandler(pipelineService),
		Deals:      handlers.NewDealHandler(dealService, boards),
		Activities: handlers.NewActivityHandler(activityService),
		Tasks:      handlers.NewTaskHandler(taskService),
		Reports:    handlers.NewReportHandler(a.Reports, dashboardService),
	}

	// === Gin ===
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.CORS(cfg.Server.AllowedOrigins))

	// Swagger
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Роуты (JWT внутри SetupRoutes)
	routes.SetupRoutes(router, h, authService)
	a.router = router

	return a, nil
}

func (a *App) Handler() http.Handler { return a.router }

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("[app] listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	a.log.Info("[app] shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (a *App) Close() {
	if err := a.redis.Close(); err != nil {
		a.log.Warn("[app] close redis", zap.Error(err))
	}
	if err := a.db.Close(); err != nil {
		a.log.Warn("[app] close db", zap.Error(err))
	}
}
