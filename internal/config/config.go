package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/viper"
)

// ==================== 配置结构 ====================

// Config 应用配置
type Config struct {
	Server    ServerConfig
	Log       LogConfig
	AI        AIConfig
	Database  DatabaseConfig
	Storage   StorageConfig
	RateLimit RateLimitConfig
	Audit     AuditConfig
}

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	Port            string
	Mode            string // gin 模式: debug / release / test
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	MaxUploadBytes  int64
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string
	Format string
}

// AIConfig 两个推理能力的配置（模型、超时、采样参数）
// 密钥不在这里，见 CredentialSource
type AIConfig struct {
	CaptionBaseURL string
	CaptionModel   string

	RefinerProvider string // openai | gemini
	RefinerBaseURL  string
	RefinerModel    string
	MaxTokens       int
	Temperature     float64

	RequestTimeout time.Duration
}

// DatabaseConfig 审计库配置，DSN 为空则不启用
type DatabaseConfig struct {
	DSN string
}

// StorageConfig 上传图片归档配置，Provider 为空则不启用
type StorageConfig struct {
	Provider  string // "s3" | "local" | ""
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
	Endpoint  string // S3 兼容端点，或本地存储的访问前缀
	CDNDomain string
	BasePath  string
}

// RateLimitConfig 按客户端 IP 限流
type RateLimitConfig struct {
	Enabled bool
	RPS     float64
	Burst   int
}

// AuditConfig AI 调用审计保留策略
type AuditConfig struct {
	RetentionDays int
	CleanupSpec   string
}

// AuditEnabled 是否启用审计库
func (c *Config) AuditEnabled() bool {
	return c.Database.DSN != ""
}

// ==================== 加载 ====================

// Load 加载配置：config.yaml（可选）+ 环境变量覆盖
// 返回的 viper 实例供 CredentialSource 在请求时读取密钥
func Load(path string) (*Config, *viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			// 配置文件可选，不存在时只用默认值 + 环境变量
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
				return nil, nil, fmt.Errorf("读取配置文件失败: %w", err)
			}
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:            v.GetString("server.port"),
			Mode:            v.GetString("server.mode"),
			ReadTimeout:     v.GetDuration("server.read_timeout"),
			WriteTimeout:    v.GetDuration("server.write_timeout"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
			MaxUploadBytes:  v.GetInt64("server.max_upload_bytes"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
		AI: AIConfig{
			CaptionBaseURL:  v.GetString("ai.caption.base_url"),
			CaptionModel:    v.GetString("ai.caption.model"),
			RefinerProvider: strings.ToLower(v.GetString("ai.refiner.provider")),
			RefinerBaseURL:  v.GetString("ai.refiner.base_url"),
			RefinerModel:    v.GetString("ai.refiner.model"),
			MaxTokens:       v.GetInt("ai.refiner.max_tokens"),
			Temperature:     v.GetFloat64("ai.refiner.temperature"),
			RequestTimeout:  v.GetDuration("ai.request_timeout"),
		},
		Database: DatabaseConfig{
			DSN: v.GetString("database.dsn"),
		},
		Storage: StorageConfig{
			Provider:  strings.ToLower(v.GetString("storage.provider")),
			Bucket:    v.GetString("storage.bucket"),
			Region:    v.GetString("storage.region"),
			AccessKey: v.GetString("storage.access_key"),
			SecretKey: v.GetString("storage.secret_key"),
			Endpoint:  v.GetString("storage.endpoint"),
			CDNDomain: v.GetString("storage.cdn_domain"),
			BasePath:  v.GetString("storage.base_path"),
		},
		RateLimit: RateLimitConfig{
			Enabled: v.GetBool("rate_limit.enabled"),
			RPS:     v.GetFloat64("rate_limit.rps"),
			Burst:   v.GetInt("rate_limit.burst"),
		},
		Audit: AuditConfig{
			RetentionDays: v.GetInt("audit.retention_days"),
			CleanupSpec:   v.GetString("audit.cleanup_spec"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	return cfg, v, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 120*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.max_upload_bytes", 4*1024*1024)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("ai.caption.base_url", "https://api-inference.huggingface.co")
	v.SetDefault("ai.caption.model", "nlpconnect/vit-gpt2-image-captioning")
	v.SetDefault("ai.refiner.provider", ProviderOpenAI)
	v.SetDefault("ai.refiner.model", "gpt-3.5-turbo")
	v.SetDefault("ai.refiner.max_tokens", 150)
	v.SetDefault("ai.refiner.temperature", 0.7)
	v.SetDefault("ai.request_timeout", 60*time.Second)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.rps", 1.0)
	v.SetDefault("rate_limit.burst", 5)

	v.SetDefault("audit.retention_days", 30)
	v.SetDefault("audit.cleanup_spec", "0 0 3 * * *")

	// 环境变量名与 key 一致，显式绑定便于 AutomaticEnv 找到
	_ = v.BindEnv("database.dsn", "DATABASE_DSN")
	_ = v.BindEnv("server.port", "SERVER_PORT")
	_ = v.BindEnv("ai.refiner.provider", "AI_REFINER_PROVIDER")
}

// Validate 校验静态配置，一次性返回所有问题
func (c *Config) Validate() error {
	var result *multierror.Error

	if c.Server.Port == "" {
		result = multierror.Append(result, errors.New("server.port 不能为空"))
	}
	if c.Server.MaxUploadBytes <= 0 {
		result = multierror.Append(result, errors.New("server.max_upload_bytes 必须大于 0"))
	}
	switch c.AI.RefinerProvider {
	case ProviderOpenAI, ProviderGemini:
	default:
		result = multierror.Append(result, fmt.Errorf("不支持的 ai.refiner.provider: %q", c.AI.RefinerProvider))
	}
	if c.AI.MaxTokens <= 0 {
		result = multierror.Append(result, errors.New("ai.refiner.max_tokens 必须大于 0"))
	}
	if c.AI.Temperature < 0 || c.AI.Temperature > 2 {
		result = multierror.Append(result, errors.New("ai.refiner.temperature 超出范围 [0, 2]"))
	}
	switch c.Storage.Provider {
	case "", "s3", "local":
	default:
		result = multierror.Append(result, fmt.Errorf("不支持的 storage.provider: %q", c.Storage.Provider))
	}
	if c.RateLimit.Enabled && (c.RateLimit.RPS <= 0 || c.RateLimit.Burst <= 0) {
		result = multierror.Append(result, errors.New("rate_limit.rps 和 rate_limit.burst 必须大于 0"))
	}

	return result.ErrorOrNil()
}
