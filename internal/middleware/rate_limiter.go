package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"caption_dev_v1/internal/api/dto"
)

// MsgTooManyRequests 限流响应文案
const MsgTooManyRequests = "Too many requests, please retry later."

// ==================== ClientRateLimiter 按客户端限流 ====================

// ClientRateLimiter 每个 key（客户端 IP）一个令牌桶
// 防止单个客户端刷爆下游推理服务配额
type ClientRateLimiter struct {
	limiters sync.Map // key -> *limiterEntry
	rps      rate.Limit
	burst    int
	now      func() time.Time
}

// limiterEntry 令牌桶条目
type limiterEntry struct {
	limiter  *rate.Limiter
	mu       sync.Mutex
	lastSeen time.Time
}

func NewClientRateLimiter(rps float64, burst int) *ClientRateLimiter {
	return &ClientRateLimiter{
		rps:   rate.Limit(rps),
		burst: burst,
		now:   time.Now,
	}
}

// ==================== 限流检查 ====================

// CheckResult 检查结果
type CheckResult struct {
	Allowed    bool          // 是否允许
	RetryAfter time.Duration // 建议等待时间
}

// Check 消耗一个令牌
func (r *ClientRateLimiter) Check(key string) CheckResult {
	actual, _ := r.limiters.LoadOrStore(key, &limiterEntry{
		limiter: rate.NewLimiter(r.rps, r.burst),
	})
	entry := actual.(*limiterEntry)

	entry.mu.Lock()
	defer entry.mu.Unlock()

	now := r.now()
	entry.lastSeen = now

	reservation := entry.limiter.ReserveN(now, 1)
	if !reservation.OK() {
		return CheckResult{Allowed: false, RetryAfter: time.Second}
	}
	delay := reservation.DelayFrom(now)
	if delay > 0 {
		reservation.CancelAt(now)
		return CheckResult{Allowed: false, RetryAfter: delay}
	}

	return CheckResult{Allowed: true}
}

// Cleanup 清理 idle 之前未出现的客户端，返回清理数量
func (r *ClientRateLimiter) Cleanup(idle time.Duration) int {
	cutoff := r.now().Add(-idle)
	removed := 0

	r.limiters.Range(func(key, value any) bool {
		entry := value.(*limiterEntry)
		entry.mu.Lock()
		stale := entry.lastSeen.Before(cutoff)
		entry.mu.Unlock()

		if stale {
			r.limiters.Delete(key)
			removed++
		}
		return true
	})

	return removed
}

// ==================== Gin 中间件 ====================

// RateLimit 按客户端 IP 限流，超限返回 429
func RateLimit(limiter *ClientRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		result := limiter.Check(c.ClientIP())
		if !result.Allowed {
			seconds := int(math.Ceil(result.RetryAfter.Seconds()))
			if seconds < 1 {
				seconds = 1
			}
			c.Header("Retry-After", strconv.Itoa(seconds))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, dto.ErrorResponse{Error: MsgTooManyRequests})
			return
		}
		c.Next()
	}
}
