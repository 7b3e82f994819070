package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const DefaultGeminiModel = "gemini-1.5-flash"

// GeminiGenerator 使用 Gemini 润色描述
type GeminiGenerator struct {
	opts GeneratorOptions
}

// NewGeminiGenerator 创建 Gemini 文本服务
func NewGeminiGenerator(opts GeneratorOptions) *GeminiGenerator {
	if opts.Model == "" {
		opts.Model = DefaultGeminiModel
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultRefineMaxTokens
	}
	// 温度 0 视为未配置
	if opts.Temperature <= 0 {
		opts.Temperature = DefaultRefineTemp
	}
	return &GeminiGenerator{opts: opts}
}

func (g *GeminiGenerator) Provider() string { return "gemini" }

func (g *GeminiGenerator) Model() string { return g.opts.Model }

// clientOptions 密钥按请求传入，客户端不复用
func (g *GeminiGenerator) clientOptions(apiKey string) []option.ClientOption {
	opts := []option.ClientOption{option.WithAPIKey(apiKey)}
	if g.opts.BaseURL != "" {
		opts = append(opts, option.WithEndpoint(g.opts.BaseURL))
	}
	return opts
}

// configure 应用采样参数与系统指令
func (g *GeminiGenerator) configure(model *genai.GenerativeModel, prompt RefinementPrompt) {
	model.SetTemperature(float32(g.opts.Temperature))
	model.SetMaxOutputTokens(int32(g.opts.MaxTokens))
	if prompt.System != "" {
		model.SystemInstruction = genai.NewUserContent(genai.Text(prompt.System))
	}
}

func (g *GeminiGenerator) Generate(ctx context.Context, apiKey string, prompt RefinementPrompt) (*Generation, error) {
	client, err := genai.NewClient(ctx, g.clientOptions(apiKey)...)
	if err != nil {
		return nil, fmt.Errorf("创建 Gemini 客户端失败: %w", err)
	}
	defer client.Close()

	model := client.GenerativeModel(g.opts.Model)
	g.configure(model, prompt)

	resp, err := model.GenerateContent(ctx, genai.Text(prompt.UserMessage()))
	if err != nil {
		return nil, fmt.Errorf("Gemini API 错误: %w", err)
	}

	if len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("无生成结果")
	}

	gen := &Generation{Text: extractGeminiText(resp.Candidates[0])}
	if resp.UsageMetadata != nil {
		gen.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
		gen.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	return gen, nil
}

func extractGeminiText(candidate *genai.Candidate) string {
	if candidate == nil || candidate.Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return strings.TrimSpace(sb.String())
}
