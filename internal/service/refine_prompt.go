package service

import (
	"context"
	"fmt"
)

// ==================== 提示词 ====================

const (
	// RefineSystemPrompt 文本润色的系统角色
	RefineSystemPrompt = "You are an assistant that improves image descriptions and generates relevant hashtags."

	// RefineInstructionTemplate 文本润色指令，%s 为图片原始描述
	RefineInstructionTemplate = "Based on the following description, write a more engaging description and suggest relevant hashtags.\n\n" +
		"Description: %s\n\n" +
		"Return the result in the following format:\n\n" +
		"Description: [Your enhanced description here]\n\n" +
		"Hashtags: [A comma-separated list of hashtags]"
)

// RefinementPrompt 文本润色请求
type RefinementPrompt struct {
	System              string
	InstructionTemplate string
	Caption             string
}

// NewRefinementPrompt 用固定模板构造润色请求
func NewRefinementPrompt(caption string) RefinementPrompt {
	return RefinementPrompt{
		System:              RefineSystemPrompt,
		InstructionTemplate: RefineInstructionTemplate,
		Caption:             caption,
	}
}

// UserMessage 渲染用户消息
func (p RefinementPrompt) UserMessage() string {
	return fmt.Sprintf(p.InstructionTemplate, p.Caption)
}

// ==================== 能力接口 ====================

// Generation 文本模型一次调用的结果
type Generation struct {
	Text         string
	InputTokens  int
	OutputTokens int
}

// TextGenerator 文本润色模型
type TextGenerator interface {
	Provider() string
	Model() string
	Generate(ctx context.Context, apiKey string, prompt RefinementPrompt) (*Generation, error)
}

// Captioner 图片描述模型
type Captioner interface {
	Provider() string
	Model() string
	Caption(ctx context.Context, apiKey string, image []byte) (string, error)
}

// GeneratorOptions 文本模型采样参数
type GeneratorOptions struct {
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
}
