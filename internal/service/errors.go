package service

import "errors"

// 描述生成流水线的错误分类，控制器按 errors.Is 映射为固定的 JSON 响应
var (
	// ErrNoImageURL 请求缺少 imageUrl
	ErrNoImageURL = errors.New("no image url provided")
	// ErrNoImage 上传请求缺少图片
	ErrNoImage = errors.New("no image provided")
	// ErrAPIKeysNotSet 推理服务密钥未配置
	ErrAPIKeysNotSet = errors.New("api keys are not set")
	// ErrImageFetch 图片地址无法访问
	ErrImageFetch = errors.New("failed to fetch image")
	// ErrGeneration 调用推理服务失败
	ErrGeneration = errors.New("failed to generate description and hashtags")
)
