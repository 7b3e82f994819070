package database

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// PoolConfig 连接池参数
type PoolConfig struct {
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

// DefaultPoolConfig 默认连接池参数（审计写入量很小，不需要大池子）
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxIdleConns:    5,
		MaxOpenConns:    20,
		ConnMaxLifetime: time.Hour,
	}
}

// sqliteScheme 本地开发可用 sqlite:caption.db 代替 Postgres
const sqliteScheme = "sqlite:"

// dialector 按 DSN 选择驱动
func dialector(dsn string) gorm.Dialector {
	if strings.HasPrefix(dsn, sqliteScheme) {
		return sqlite.Open(strings.TrimPrefix(dsn, sqliteScheme))
	}
	return postgres.Open(dsn)
}

// InitDB 初始化数据库连接
// dsn: Postgres 连接字符串，或 sqlite:<path>
// models: 需要自动建表/迁移的结构体指针
func InitDB(dsn string, pool PoolConfig, log *zap.Logger, models ...interface{}) (*gorm.DB, error) {
	db, err := gorm.Open(dialector(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("数据库连接失败: %w", err)
	}

	return Configure(db, pool, log, models...)
}

// Configure 设置连接池并执行迁移，测试中可直接传入 sqlite 连接
func Configure(db *gorm.DB, pool PoolConfig, log *zap.Logger, models ...interface{}) (*gorm.DB, error) {
	// 获取底层的 sqlDB 对象，用于设置连接池参数
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取底层 SQL DB 失败: %w", err)
	}

	sqlDB.SetMaxIdleConns(pool.MaxIdleConns)
	sqlDB.SetMaxOpenConns(pool.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(pool.ConnMaxLifetime)

	if len(models) > 0 {
		if err := db.AutoMigrate(models...); err != nil {
			return nil, fmt.Errorf("自动建表出错: %w", err)
		}
	}

	log.Info("数据库连接成功", zap.Int("migrated_models", len(models)))
	return db, nil
}
