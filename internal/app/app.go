package app

import (
	"context"
	"course_engine_backend/internal/config"
	"course_engine_backend/internal/controller"
	"course_engine_backend/internal/middleware"
	"course_engine_backend/internal/repository"
	"course_engine_backend/internal/service"
	"course_engine_backend/pkg/configwatcher"
	"course_engine_backend/pkg/database"
	"course_engine_backend/pkg/logger"
	"course_engine_backend/pkg/monitoring"
	"course_engine_backend/pkg/security"
	"course_engine_backend/pkg/tracing"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config          *config.Config
	ConfigDir       string
	Router          *gin.Engine
	DB              *gorm.DB
	Redis           *redis.Client
	services        *services
	tracer          *sdktrace.TracerProvider
	configCallbacks []func(*config.Config)
}

type repositories struct {
	course      *repository.CourseRepository
	enrollment  *repository.EnrollmentRepository
	quiz        *repository.QuizRepository
	attempt     *repository.QuizAttemptRepository
	progress    *repository.ProgressRepository
	achievement *repository.AchievementRepository
}

type services struct {
	engine      *service.EngineSettings
	storage     *service.StorageService
	achievement *service.AchievementService
	progress    *service.ProgressService
	attempt     *service.QuizAttemptService
	quiz        *service.QuizService
	lesson      *service.LessonService
}

type controllers struct {
	quiz        *controller.QuizController
	attempt     *controller.QuizAttemptController
	progress    *controller.ProgressController
	lesson      *controller.LessonController
	achievement *controller.AchievementController
	health      *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

func (a *App) initRepositories(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *repositories {
	return &repositories{
		course:      repository.NewCourseRepository(db, rdb, cfg.Redis.LessonCacheTTL()),
		enrollment:  repository.NewEnrollmentRepository(db),
		quiz:        repository.NewQuizRepository(db),
		attempt:     repository.NewQuizAttemptRepository(db),
		progress:    repository.NewProgressRepository(db),
		achievement: repository.NewAchievementRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config) (*services, error) {
	s := &services{}

	storage, err := service.NewStorageService(cfg)
	if err != nil {
		return nil, err
	}
	s.storage = storage
	s.engine = service.NewEngineSettings(cfg.Engine)

	s.achievement = service.NewAchievementService(repos.achievement, repos.progress, s.storage, s.engine)
	s.progress = service.NewProgressService(repos.progress, repos.enrollment, repos.course, s.achievement)
	s.attempt = service.NewQuizAttemptService(repos.quiz, repos.attempt, repos.course, s.progress, s.engine)
	s.quiz = service.NewQuizService(repos.quiz, repos.course)
	s.lesson = service.NewLessonService(repos.course, repos.progress, repos.enrollment, repos.quiz)

	// 配置热更新只作用于引擎参数
	a.RegisterConfigCallback(func(newCfg *config.Config) {
		s.engine.Update(newCfg.Engine)
		logger.Log.Info("engine settings reloaded",
			zap.Int("attemptRetryLimit", s.engine.Get().AttemptRetryLimit),
			zap.Int("fastLearnerMinutes", s.engine.Get().FastLearnerMinutes),
		)
	})

	return s, nil
}

func (a *App) initControllers(s *services, db *gorm.DB, rdb *redis.Client) *controllers {
	return &controllers{
		quiz:        controller.NewQuizController(s.quiz),
		attempt:     controller.NewQuizAttemptController(s.attempt),
		progress:    controller.NewProgressController(s.progress),
		lesson:      controller.NewLessonController(s.lesson),
		achievement: controller.NewAchievementController(s.achievement),
		health:      controller.NewHealthController(db, rdb, s.storage),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(middleware.RequestID())
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())
	router.Use(security.RateLimiter(cfg.RateLimit))

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

func NewApp(cfg *config.Config, configDir string) (*App, error) {
	if err := logger.InitLogger(cfg); err != nil {
		return nil, err
	}
	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(&cfg.Database)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config:    cfg,
		ConfigDir: configDir,
		DB:        db,
	}
	if cfg.MigrateOnly {
		return app, nil
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		return nil, err
	}
	app.Redis = rdb

	repos := app.initRepositories(db, rdb, cfg)
	services, err := app.initServices(repos, cfg)
	if err != nil {
		return nil, err
	}
	app.services = services
	controllers := app.initControllers(services, db, rdb)

	// 监控初始化
	monitoring.Init()

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer("course-engine", cfg.Tracing.CollectorEndpoint)
		if err != nil {
			return nil, err
		}
		app.tracer = tp
	}

	gin.SetMode(cfg.Server.Mode)
	router := gin.New()
	router.Use(gin.Recovery())
	app.Router = router

	app.setupMiddlewares(router, cfg)
	app.registerRoutes(router, controllers, cfg)

	if cfg.Storage.Type == "local" {
		router.Static("/uploads", cfg.Storage.LocalPath)
	}

	return app, nil
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	go func() {
		configFile := filepath.Join(a.ConfigDir, "config.yaml")
		err := configwatcher.WatchConfig(ctx, configFile, func(newCfg *config.Config) {
			for _, cb := range a.configCallbacks {
				cb(newCfg)
			}
		})
		if err != nil {
			logger.Log.Warn("config watcher stopped", zap.Error(err))
		}
	}()

	// 启动服务器
	go func() {
		logger.Log.Info("Server running", zap.String("port", a.Config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal("listen failed", zap.Error(err))
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
	}

	if a.tracer != nil {
		if err := a.tracer.Shutdown(shutdownCtx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}

	logger.Log.Info("Server exiting")
}
