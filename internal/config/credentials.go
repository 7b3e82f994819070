package config

import (
	"strings"

	"github.com/spf13/viper"
)

// 文本生成服务提供方
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// 密钥对应的环境变量
const (
	EnvHuggingFaceKey = "HUGGINGFACE_API_KEY"
	EnvOpenAIKey      = "OPENAI_API_KEY"
	EnvGeminiKey      = "GEMINI_API_KEY"
)

// Credentials 一次请求所需的两个推理服务密钥
type Credentials struct {
	Caption string
	Text    string
}

// Complete 两个密钥是否都已配置
func (c Credentials) Complete() bool {
	return strings.TrimSpace(c.Caption) != "" && strings.TrimSpace(c.Text) != ""
}

// CredentialSource 在请求时读取密钥，不在启动时快照
type CredentialSource interface {
	Credentials() Credentials
}

type viperCredentials struct {
	v        *viper.Viper
	provider string
}

// NewCredentialSource 基于 viper（环境变量 + 配置文件）的密钥来源
func NewCredentialSource(v *viper.Viper, provider string) CredentialSource {
	return &viperCredentials{v: v, provider: provider}
}

func (c *viperCredentials) Credentials() Credentials {
	textKey := EnvOpenAIKey
	if c.provider == ProviderGemini {
		textKey = EnvGeminiKey
	}

	return Credentials{
		Caption: c.v.GetString(EnvHuggingFaceKey),
		Text:    c.v.GetString(textKey),
	}
}

// StaticCredentials 固定密钥，测试用
type StaticCredentials Credentials

func (s StaticCredentials) Credentials() Credentials {
	return Credentials(s)
}
