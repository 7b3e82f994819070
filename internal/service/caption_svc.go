package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"
)

const (
	DefaultCaptionBaseURL = "https://api-inference.huggingface.co"
	DefaultCaptionModel   = "nlpconnect/vit-gpt2-image-captioning"
)

// HuggingFaceCaptioner 调用 Hugging Face Inference API 生成图片描述
type HuggingFaceCaptioner struct {
	client  *resty.Client
	baseURL string
	model   string
}

// NewHuggingFaceCaptioner 创建图片描述服务
func NewHuggingFaceCaptioner(client *resty.Client, baseURL, model string) *HuggingFaceCaptioner {
	if baseURL == "" {
		baseURL = DefaultCaptionBaseURL
	}
	if model == "" {
		model = DefaultCaptionModel
	}
	return &HuggingFaceCaptioner{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
	}
}

func (c *HuggingFaceCaptioner) Provider() string { return "huggingface" }

func (c *HuggingFaceCaptioner) Model() string { return c.model }

// Caption 上传原始图片字节，返回第一条 generated_text
func (c *HuggingFaceCaptioner) Caption(ctx context.Context, apiKey string, image []byte) (string, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetAuthToken(apiKey).
		SetHeader("Content-Type", http.DetectContentType(image)).
		SetBody(image).
		Post(fmt.Sprintf("%s/models/%s", c.baseURL, c.model))
	if err != nil {
		return "", fmt.Errorf("请求失败: %w", err)
	}

	if !resp.IsSuccess() {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(resp.Body(), &apiErr) == nil && apiErr.Error != "" {
			return "", fmt.Errorf("HuggingFace API 错误 [%d]: %s", resp.StatusCode(), apiErr.Error)
		}
		return "", fmt.Errorf("HuggingFace API 错误 [%d]: %s", resp.StatusCode(), resp.String())
	}

	var results []struct {
		GeneratedText string `json:"generated_text"`
	}
	if err := json.Unmarshal(resp.Body(), &results); err != nil {
		return "", fmt.Errorf("解析响应失败: %w", err)
	}
	if len(results) == 0 {
		return "", fmt.Errorf("无生成结果")
	}

	return strings.TrimSpace(results[0].GeneratedText), nil
}
