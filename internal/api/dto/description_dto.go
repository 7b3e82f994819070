package dto

// ==================== 请求 DTO ====================

// GenerateDescriptionRequest 按图片地址生成描述
type GenerateDescriptionRequest struct {
	ImageURL string `json:"imageUrl" example:"https://example.com/photo.jpg"`
}

// UsageQuery 用量查询参数
type UsageQuery struct {
	Days int `form:"days"`
}

// ==================== 响应 DTO ====================

// GenerateDescriptionResponse 生成结果，hashtags 永远是数组
type GenerateDescriptionResponse struct {
	Description string   `json:"description" example:"A serene lake reflecting the golden sunset."`
	Hashtags    []string `json:"hashtags" example:"nature,sunset,lake"`
	ImageURL    string   `json:"imageUrl,omitempty"` // 仅上传接口且启用归档时返回
}

// ErrorResponse 错误响应
type ErrorResponse struct {
	Error string `json:"error" example:"No image URL provided"`
}

// HealthResponse 健康检查
type HealthResponse struct {
	Status string `json:"status" example:"ok"`
}
