package service

import (
	"context"
	"fmt"
	"time"

	"caption_dev_v1/internal/repository"
)

const maxUsageDays = 90

// UsageReport 用量报表
type UsageReport struct {
	Days    int                          `json:"days"`
	Summary *repository.AIUsageStats     `json:"summary"`
	Daily   []repository.DailyUsageStats `json:"daily"`
}

// UsageService AI 调用用量查询
type UsageService struct {
	callLogRepo repository.AICallLogRepository
	now         func() time.Time
}

func NewUsageService(callLogRepo repository.AICallLogRepository) *UsageService {
	return &UsageService{callLogRepo: callLogRepo, now: time.Now}
}

// GetUsage 最近 days 天的汇总与按日统计，days 限制在 [1, 90]
func (s *UsageService) GetUsage(ctx context.Context, days int) (*UsageReport, error) {
	if days < 1 {
		days = 1
	}
	if days > maxUsageDays {
		days = maxUsageDays
	}

	end := s.now()
	start := end.AddDate(0, 0, -days)

	summary, err := s.callLogRepo.GetUsage(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("查询用量失败: %w", err)
	}

	daily, err := s.callLogRepo.GetDailyUsage(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("查询每日用量失败: %w", err)
	}
	if daily == nil {
		daily = []repository.DailyUsageStats{}
	}

	return &UsageReport{Days: days, Summary: summary, Daily: daily}, nil
}
