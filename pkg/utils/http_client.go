package utils

import (
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultUserAgent = "Caption-Go-App/1.0"

// NewHTTPClient 创建一个配置好超时和 UA 的 Resty 客户端
// 它是全系统统一的出站请求入口（图片下载、Hugging Face、OpenAI）
func NewHTTPClient(timeout time.Duration) *resty.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return resty.New().
		SetTimeout(timeout).
		SetHeader("User-Agent", defaultUserAgent).
		SetRetryCount(0) // 不做重试，失败直接返回给调用方
}
