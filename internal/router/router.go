package router

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"caption_dev_v1/internal/controller"
	"caption_dev_v1/internal/middleware"

	_ "caption_dev_v1/docs"
)

// Options 路由依赖
type Options struct {
	Description *controller.DescriptionController
	Usage       *controller.UsageController   // 未启用审计库时为 nil
	RateLimiter *middleware.ClientRateLimiter // 为 nil 时不限流
	StaticDir   string                        // 本地归档目录，非空时挂载到 /uploads
	MaxMemory   int64
}

// NewEngine 创建 gin 引擎并注册全局中间件
func NewEngine(logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestContext(), middleware.AccessLog(logger))
	return r
}

// InitRoutes 注册所有路由
func InitRoutes(r *gin.Engine, opts Options) {
	if opts.MaxMemory > 0 {
		r.MaxMultipartMemory = opts.MaxMemory
	}

	// 1. 系统路由
	r.GET("/healthz", controller.Health)
	// 访问 http://localhost:8080/swagger/index.html 即可查看
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	if opts.StaticDir != "" {
		r.Static("/uploads", opts.StaticDir)
	}

	// 2. API 路由组
	api := r.Group("/api")
	{
		// 描述生成，受限流保护
		generate := api.Group("/generateDescription")
		if opts.RateLimiter != nil {
			generate.Use(middleware.RateLimit(opts.RateLimiter))
		}
		{
			// POST /api/generateDescription
			generate.POST("", opts.Description.GenerateDescription)
			// POST /api/generateDescription/upload
			generate.POST("/upload", opts.Description.UploadAndGenerate)
		}

		// 用量统计
		if opts.Usage != nil {
			ai := api.Group("/ai")
			{
				// GET /api/ai/usage?days=7
				ai.GET("/usage", opts.Usage.GetUsage)
			}
		}
	}
}
