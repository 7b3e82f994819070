// @title Caption API
// @version 1.0
// @description 图片描述与标签生成服务
// @host localhost:8080
// @BasePath /
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-resty/resty/v2"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"caption_dev_v1/internal/config"
	"caption_dev_v1/internal/controller"
	"caption_dev_v1/internal/middleware"
	"caption_dev_v1/internal/model"
	"caption_dev_v1/internal/repository"
	"caption_dev_v1/internal/router"
	"caption_dev_v1/internal/service"
	"caption_dev_v1/internal/task"
	"caption_dev_v1/pkg/database"
	"caption_dev_v1/pkg/logger"
	"caption_dev_v1/pkg/utils"
)

func main() {
	// 1. 加载配置
	cfg, v, err := config.Load(getEnv("CONFIG_PATH", "./config.yaml"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志
	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	// 3. 初始化依赖
	deps, err := initDependencies(cfg, v, log)
	if err != nil {
		log.Fatal("初始化依赖失败", zap.Error(err))
	}

	// 4. 启动定时任务
	tasks, err := initTasks(cfg, deps, log)
	if err != nil {
		log.Fatal("初始化定时任务失败", zap.Error(err))
	}
	tasks.Start()

	// 5. 初始化路由
	gin.SetMode(cfg.Server.Mode)
	r := router.NewEngine(log)
	router.InitRoutes(r, deps.RouterOptions)

	// 6. 启动服务
	startServer(cfg.Server, r, tasks, log)

	closeDatabase(deps.DB, log)
}

// ==================== 依赖容器 ====================

// Dependencies 依赖容器
type Dependencies struct {
	DB            *gorm.DB // 未配置 DATABASE_DSN 时为 nil
	CallLogRepo   repository.AICallLogRepository
	Limiter       *middleware.ClientRateLimiter
	RouterOptions router.Options
}

// ==================== 初始化函数 ====================

// initDependencies 初始化所有依赖
func initDependencies(cfg *config.Config, v *viper.Viper, log *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{}

	// -------- 审计库（可选） --------
	if cfg.AuditEnabled() {
		db, err := database.InitDB(cfg.Database.DSN, database.DefaultPoolConfig(), log, &model.AICallLog{})
		if err != nil {
			return nil, err
		}
		deps.DB = db
		deps.CallLogRepo = repository.NewAICallLogRepository(db)
	} else {
		log.Info("未配置 DATABASE_DSN，AI 调用审计已关闭")
	}

	// -------- 推理能力 --------
	httpClient := utils.NewHTTPClient(cfg.AI.RequestTimeout)
	captioner := service.NewHuggingFaceCaptioner(httpClient, cfg.AI.CaptionBaseURL, cfg.AI.CaptionModel)
	generator := initTextGenerator(cfg.AI, httpClient)
	credentials := config.NewCredentialSource(v, cfg.AI.RefinerProvider)

	if !credentials.Credentials().Complete() {
		// 不阻止启动，请求时返回配置错误
		log.Warn("推理服务密钥未配置", zap.String("provider", cfg.AI.RefinerProvider))
	}

	descSvc := service.NewDescriptionService(
		credentials,
		service.NewHTTPImageFetcher(httpClient),
		captioner,
		generator,
		deps.CallLogRepo,
		log.Named("description"),
	)

	// -------- 上传归档（可选） --------
	storage, err := service.NewStorageProvider(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("初始化存储失败: %w", err)
	}
	var staticDir string
	if local, ok := storage.(*service.LocalStorage); ok {
		staticDir = local.Dir()
	}

	// -------- 控制器 & 路由 --------
	opts := router.Options{
		Description: controller.NewDescriptionController(descSvc, storage, cfg.Server.MaxUploadBytes, log),
		StaticDir:   staticDir,
		MaxMemory:   cfg.Server.MaxUploadBytes * 2,
	}
	if deps.CallLogRepo != nil {
		opts.Usage = controller.NewUsageController(service.NewUsageService(deps.CallLogRepo))
	}
	if cfg.RateLimit.Enabled {
		deps.Limiter = middleware.NewClientRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
		opts.RateLimiter = deps.Limiter
	}
	deps.RouterOptions = opts

	log.Info("依赖初始化完成",
		zap.String("caption_model", captioner.Model()),
		zap.String("refiner_provider", generator.Provider()),
		zap.String("refiner_model", generator.Model()),
		zap.Bool("audit", deps.CallLogRepo != nil),
		zap.String("storage", cfg.Storage.Provider),
	)
	return deps, nil
}

// initTextGenerator 按 provider 选择文本润色模型
func initTextGenerator(cfg config.AIConfig, httpClient *resty.Client) service.TextGenerator {
	opts := service.GeneratorOptions{
		BaseURL:     cfg.RefinerBaseURL,
		Model:       cfg.RefinerModel,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
	}
	if cfg.RefinerProvider == config.ProviderGemini {
		if opts.Model == service.DefaultOpenAIModel {
			opts.Model = service.DefaultGeminiModel
		}
		return service.NewGeminiGenerator(opts)
	}
	return service.NewOpenAIGenerator(httpClient, opts)
}

// initTasks 注册后台任务
func initTasks(cfg *config.Config, deps *Dependencies, log *zap.Logger) (*task.TaskManager, error) {
	taskCfg := task.DefaultConfig()
	taskCfg.AuditRetention = time.Duration(cfg.Audit.RetentionDays) * 24 * time.Hour
	taskCfg.AuditSpec = cfg.Audit.CleanupSpec

	taskDeps := &task.TaskManagerDeps{CallLogRepo: deps.CallLogRepo}
	if deps.Limiter != nil {
		taskDeps.Limiter = deps.Limiter
	}
	return task.NewTaskManager(taskDeps, taskCfg, log.Named("task"))
}

// ==================== 服务启动 ====================

// startServer 启动服务并在收到退出信号后优雅关闭
func startServer(cfg config.ServerConfig, r *gin.Engine, tasks *task.TaskManager, log *zap.Logger) {
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	// 异步启动服务
	go func() {
		log.Info("服务启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("服务启动失败", zap.Error(err))
		}
	}()

	// 等待退出信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("正在关闭服务...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("服务强制关闭", zap.Error(err))
	}
	tasks.Stop(ctx)

	log.Info("服务已退出")
}

// closeDatabase 关闭审计库连接
func closeDatabase(db *gorm.DB, log *zap.Logger) {
	if db == nil {
		return
	}
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	if err := sqlDB.Close(); err != nil {
		log.Warn("关闭数据库连接失败", zap.Error(err))
	}
}

// ==================== 工具函数 ====================

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
