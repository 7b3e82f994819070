package model

import "gorm.io/datatypes"

// AICallLog AI调用日志（每次出站推理调用一条，只写不读）
type AICallLog struct {
	BaseModel

	// 关联
	RequestID string `gorm:"size:64;index;comment:请求ID"`

	// 调用信息
	CallType  string `gorm:"size:32;index;comment:调用类型(caption/refine)"`
	Provider  string `gorm:"size:32;comment:服务提供方"`
	ModelName string `gorm:"size:128;comment:模型名称"`

	// 用量统计
	InputTokens  int `gorm:"default:0;comment:输入token数"`
	OutputTokens int `gorm:"default:0;comment:输出token数"`
	ImageBytes   int `gorm:"default:0;comment:图片大小(字节)"`

	// 性能
	DurationMs int64 `gorm:"comment:耗时(毫秒)"`

	// 状态
	Status   string `gorm:"size:32;index;default:success;comment:状态(success/failed)"`
	ErrorMsg string `gorm:"size:1024;comment:错误信息"`

	// 结果
	Output      string         `gorm:"size:2048;comment:模型原始输出"`
	ParseStatus string         `gorm:"size:32;comment:解析状态(ok/no_description/no_hashtags/none)"`
	Hashtags    datatypes.JSON `gorm:"comment:解析出的标签"`
}

func (AICallLog) TableName() string {
	return "ai_call_logs"
}

// ==================== 调用类型常量 ====================

const (
	AICallTypeCaption = "caption"
	AICallTypeRefine  = "refine"
)

// ==================== 状态常量 ====================

const (
	AICallStatusSuccess = "success"
	AICallStatusFailed  = "failed"
)

// ==================== 解析状态常量 ====================

const (
	ParseStatusOK            = "ok"
	ParseStatusNoDescription = "no_description"
	ParseStatusNoHashtags    = "no_hashtags"
	ParseStatusNone          = "none"
)
