package utils

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/go-resty/resty/v2"
)

// DownloadImage 下载网络图片并返回字节切片和 Content-Type
// 只接受 http/https，非 2xx 状态码视为失败
func DownloadImage(ctx context.Context, client *resty.Client, rawURL string) ([]byte, string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, "", fmt.Errorf("invalid image url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, "", fmt.Errorf("unsupported image url scheme: %q", u.Scheme)
	}

	resp, err := client.R().
		SetContext(ctx).
		Get(u.String())
	if err != nil {
		return nil, "", fmt.Errorf("http get failed: %w", err)
	}

	if !resp.IsSuccess() {
		return nil, "", fmt.Errorf("download failed with status: %d", resp.StatusCode())
	}

	data := resp.Body()
	contentType := resp.Header().Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	return data, contentType, nil
}
