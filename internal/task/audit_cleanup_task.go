package task

import (
	"context"
	"time"

	"go.uber.org/zap"

	"caption_dev_v1/internal/repository"
)

// AuditCleanupTask 按保留期清理 AI 调用日志
type AuditCleanupTask struct {
	CallLogRepo repository.AICallLogRepository
	Retention   time.Duration

	logger *zap.Logger
	now    func() time.Time
}

func NewAuditCleanupTask(repo repository.AICallLogRepository, retention time.Duration, logger *zap.Logger) *AuditCleanupTask {
	return &AuditCleanupTask{
		CallLogRepo: repo,
		Retention:   retention,
		logger:      logger,
		now:         time.Now,
	}
}

// Run 删除保留期之前的记录
func (t *AuditCleanupTask) Run(ctx context.Context) (int64, error) {
	cutoff := t.now().Add(-t.Retention)

	deleted, err := t.CallLogRepo.DeleteBefore(ctx, cutoff)
	if err != nil {
		t.logger.Error("[Cron] 清理 AI 调用日志失败", zap.Time("cutoff", cutoff), zap.Error(err))
		return 0, err
	}

	t.logger.Info("[Cron] AI 调用日志清理完成", zap.Int64("deleted", deleted), zap.Time("cutoff", cutoff))
	return deleted, nil
}

// ==================== 限流器清理 ====================

// IdleSweeper 可清理空闲条目的组件
type IdleSweeper interface {
	Cleanup(idle time.Duration) int
}

// LimiterSweepTask 定期清理长时间未出现的客户端限流条目
type LimiterSweepTask struct {
	Limiter IdleSweeper
	Idle    time.Duration

	logger *zap.Logger
}

func NewLimiterSweepTask(limiter IdleSweeper, idle time.Duration, logger *zap.Logger) *LimiterSweepTask {
	return &LimiterSweepTask{Limiter: limiter, Idle: idle, logger: logger}
}

func (t *LimiterSweepTask) Run() int {
	removed := t.Limiter.Cleanup(t.Idle)
	if removed > 0 {
		t.logger.Debug("[Cron] 清理空闲限流条目", zap.Int("removed", removed))
	}
	return removed
}
