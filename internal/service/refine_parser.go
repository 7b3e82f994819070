package service

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/samber/lo"

	"caption_dev_v1/internal/model"
)

var (
	descriptionPattern = regexp.MustCompile(`(?i)Description:\s*(.*)`)
	hashtagsPattern    = regexp.MustCompile(`(?i)Hashtags:\s*(.*)`)
)

// isHashtagSeparator 逗号或任意 Unicode 空白（含 NBSP、全角空格、BOM）
func isHashtagSeparator(r rune) bool {
	return r == ',' || r == '\uFEFF' || unicode.IsSpace(r)
}

// ParsedRefinement 润色文本的解析结果
type ParsedRefinement struct {
	Description      string
	Hashtags         []string
	DescriptionFound bool
	HashtagsFound    bool
}

// Status 解析状态，写入调用日志
func (p ParsedRefinement) Status() string {
	switch {
	case p.DescriptionFound && p.HashtagsFound:
		return model.ParseStatusOK
	case p.HashtagsFound:
		return model.ParseStatusNoDescription
	case p.DescriptionFound:
		return model.ParseStatusNoHashtags
	default:
		return model.ParseStatusNone
	}
}

// ParseRefinement 从模型输出中提取描述与标签
// 描述缺失或为空时回退为原始 caption；标签缺失时返回空切片
func ParseRefinement(text, caption string) ParsedRefinement {
	result := ParsedRefinement{
		Description: caption,
		Hashtags:    []string{},
	}

	if m := descriptionPattern.FindStringSubmatch(text); m != nil {
		if desc := strings.TrimSpace(m[1]); desc != "" {
			result.Description = desc
			result.DescriptionFound = true
		}
	}

	if m := hashtagsPattern.FindStringSubmatch(text); m != nil {
		result.Hashtags = SplitHashtags(m[1])
		result.HashtagsFound = len(result.Hashtags) > 0
	}

	return result
}

// SplitHashtags 按逗号和空白切分，去掉前导 #，保留顺序与重复项
func SplitHashtags(raw string) []string {
	tokens := lo.Map(strings.FieldsFunc(raw, isHashtagSeparator), func(tok string, _ int) string {
		return strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(tok), "#"))
	})
	return lo.Filter(tokens, func(tok string, _ int) bool {
		return tok != ""
	})
}
