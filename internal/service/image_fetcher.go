package service

import (
	"context"

	"github.com/go-resty/resty/v2"

	"caption_dev_v1/pkg/utils"
)

// ImageFetcher 按地址下载图片
type ImageFetcher interface {
	Fetch(ctx context.Context, imageURL string) ([]byte, error)
}

// HTTPImageFetcher 基于 resty 的图片下载
type HTTPImageFetcher struct {
	client *resty.Client
}

func NewHTTPImageFetcher(client *resty.Client) *HTTPImageFetcher {
	return &HTTPImageFetcher{client: client}
}

func (f *HTTPImageFetcher) Fetch(ctx context.Context, imageURL string) ([]byte, error) {
	data, _, err := utils.DownloadImage(ctx, f.client, imageURL)
	return data, err
}
