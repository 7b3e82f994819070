package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
)

const (
	DefaultOpenAIBaseURL   = "https://api.openai.com/v1"
	DefaultOpenAIModel     = "gpt-3.5-turbo"
	DefaultRefineMaxTokens = 150
	DefaultRefineTemp      = 0.7
)

// OpenAIGenerator 通过 chat/completions 接口润色描述
type OpenAIGenerator struct {
	client *resty.Client
	opts   GeneratorOptions
}

// NewOpenAIGenerator 创建 OpenAI 文本服务
func NewOpenAIGenerator(client *resty.Client, opts GeneratorOptions) *OpenAIGenerator {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultOpenAIBaseURL
	}
	if opts.Model == "" {
		opts.Model = DefaultOpenAIModel
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultRefineMaxTokens
	}
	// 温度 0 视为未配置
	if opts.Temperature <= 0 {
		opts.Temperature = DefaultRefineTemp
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	return &OpenAIGenerator{client: client, opts: opts}
}

func (g *OpenAIGenerator) Provider() string { return "openai" }

func (g *OpenAIGenerator) Model() string { return g.opts.Model }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Generate 发送 system + user 两条消息，返回第一个 choice 的文本
func (g *OpenAIGenerator) Generate(ctx context.Context, apiKey string, prompt RefinementPrompt) (*Generation, error) {
	body := chatCompletionRequest{
		Model: g.opts.Model,
		Messages: []chatMessage{
			{Role: "system", Content: prompt.System},
			{Role: "user", Content: prompt.UserMessage()},
		},
		MaxTokens:   g.opts.MaxTokens,
		Temperature: g.opts.Temperature,
	}

	resp, err := g.client.R().
		SetContext(ctx).
		SetAuthToken(apiKey).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(g.opts.BaseURL + "/chat/completions")
	if err != nil {
		return nil, fmt.Errorf("请求失败: %w", err)
	}

	var result chatCompletionResponse
	if jsonErr := json.Unmarshal(resp.Body(), &result); jsonErr != nil && resp.IsSuccess() {
		return nil, fmt.Errorf("解析响应失败: %w", jsonErr)
	}

	if !resp.IsSuccess() {
		if result.Error != nil && result.Error.Message != "" {
			return nil, fmt.Errorf("OpenAI API 错误 [%d]: %s", resp.StatusCode(), result.Error.Message)
		}
		return nil, fmt.Errorf("OpenAI API 错误 [%d]: %s", resp.StatusCode(), resp.String())
	}

	if len(result.Choices) == 0 {
		return nil, fmt.Errorf("无生成结果")
	}

	return &Generation{
		Text:         strings.TrimSpace(result.Choices[0].Message.Content),
		InputTokens:  result.Usage.PromptTokens,
		OutputTokens: result.Usage.CompletionTokens,
	}, nil
}
