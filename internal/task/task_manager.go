package task

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"caption_dev_v1/internal/repository"
)

// ErrTaskDisabled 任务未启用
var ErrTaskDisabled = errors.New("task is disabled")

// ==================== TaskManager 后台任务管理器 ====================

// TaskManager 统一管理后台定时任务
// 管理范围：审计日志保留期清理、限流器空闲条目清理
type TaskManager struct {
	cron   *cron.Cron
	logger *zap.Logger

	auditTask   *AuditCleanupTask
	limiterTask *LimiterSweepTask
}

// TaskManagerDeps 任务管理器依赖，为 nil 的任务不注册
type TaskManagerDeps struct {
	CallLogRepo repository.AICallLogRepository
	Limiter     IdleSweeper
}

// TaskManagerConfig 任务管理器配置
type TaskManagerConfig struct {
	AuditRetention time.Duration
	AuditSpec      string

	LimiterSweepSpec string
	LimiterIdle      time.Duration

	// 单次任务超时
	JobTimeout time.Duration
}

// DefaultConfig 默认配置
func DefaultConfig() *TaskManagerConfig {
	return &TaskManagerConfig{
		AuditRetention:   30 * 24 * time.Hour,
		AuditSpec:        "0 0 3 * * *", // 每天 03:00
		LimiterSweepSpec: "0 */10 * * * *",
		LimiterIdle:      30 * time.Minute,
		JobTimeout:       5 * time.Minute,
	}
}

// NewTaskManager 创建任务管理器并注册任务
func NewTaskManager(deps *TaskManagerDeps, cfg *TaskManagerConfig, logger *zap.Logger) (*TaskManager, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 5 * time.Minute
	}

	tm := &TaskManager{
		cron:   cron.New(cron.WithSeconds()), // 支持秒级控制
		logger: logger,
	}

	// 审计日志清理
	if deps.CallLogRepo != nil && cfg.AuditRetention > 0 {
		tm.auditTask = NewAuditCleanupTask(deps.CallLogRepo, cfg.AuditRetention, logger)
		timeout := cfg.JobTimeout
		if _, err := tm.cron.AddFunc(cfg.AuditSpec, func() {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			_, _ = tm.auditTask.Run(ctx)
		}); err != nil {
			return nil, fmt.Errorf("注册审计清理任务失败: %w", err)
		}
	}

	// 限流条目清理
	if deps.Limiter != nil {
		tm.limiterTask = NewLimiterSweepTask(deps.Limiter, cfg.LimiterIdle, logger)
		if _, err := tm.cron.AddFunc(cfg.LimiterSweepSpec, func() {
			tm.limiterTask.Run()
		}); err != nil {
			return nil, fmt.Errorf("注册限流清理任务失败: %w", err)
		}
	}

	return tm, nil
}

// ==================== 生命周期管理 ====================

// JobCount 已注册任务数量
func (tm *TaskManager) JobCount() int {
	return len(tm.cron.Entries())
}

// Start 启动所有任务
func (tm *TaskManager) Start() {
	if tm.JobCount() == 0 {
		tm.logger.Info("[TaskManager] 没有需要运行的后台任务")
		return
	}

	tm.cron.Start()
	tm.logger.Info("[TaskManager] 后台任务已启动", zap.Int("jobs", tm.JobCount()))
}

// Stop 停止所有任务，等待运行中的任务结束或 ctx 超时
func (tm *TaskManager) Stop(ctx context.Context) {
	done := tm.cron.Stop()
	select {
	case <-done.Done():
		tm.logger.Info("[TaskManager] 后台任务已全部停止")
	case <-ctx.Done():
		tm.logger.Warn("[TaskManager] 等待后台任务停止超时")
	}
}

// ==================== 手动触发接口 ====================

// TriggerAuditCleanup 立即执行一次审计清理
func (tm *TaskManager) TriggerAuditCleanup(ctx context.Context) (int64, error) {
	if tm.auditTask == nil {
		return 0, ErrTaskDisabled
	}
	return tm.auditTask.Run(ctx)
}
