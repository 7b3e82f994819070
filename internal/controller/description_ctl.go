package controller

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"caption_dev_v1/internal/api/dto"
	"caption_dev_v1/internal/service"
	"caption_dev_v1/pkg/utils"
)

// 对外固定的错误文案
const (
	MsgNoImageURL      = "No image URL provided"
	MsgNoImageFile     = "No image file provided"
	MsgFileTooLarge    = "File size exceeds 4MB limit. Please choose a smaller file."
	MsgAPIKeysNotSet   = "API keys are not set"
	MsgImageFetch      = "Failed to fetch image."
	MsgGenerationError = "Failed to generate description and hashtags."
)

// multipartOverhead 上传请求体中除文件内容外的边界与表单头预留
const multipartOverhead = 64 * 1024

// DescriptionGenerator 描述生成能力
type DescriptionGenerator interface {
	GenerateFromURL(ctx context.Context, imageURL string) (*service.GenerationResult, error)
	GenerateFromImage(ctx context.Context, image []byte) (*service.GenerationResult, error)
}

// ==================== 控制器 ====================

// DescriptionController 图片描述控制器
type DescriptionController struct {
	generator      DescriptionGenerator
	storage        service.StorageProvider // 可为 nil，不归档
	maxUploadBytes int64
	logger         *zap.Logger
}

func NewDescriptionController(generator DescriptionGenerator, storage service.StorageProvider, maxUploadBytes int64, logger *zap.Logger) *DescriptionController {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DescriptionController{
		generator:      generator,
		storage:        storage,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// ==================== API 方法 ====================

// GenerateDescription 根据图片地址生成描述与标签
// @Summary 根据图片地址生成描述与标签
// @Tags Description
// @Accept json
// @Produce json
// @Param body body dto.GenerateDescriptionRequest true "图片地址"
// @Success 200 {object} dto.GenerateDescriptionResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 429 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /api/generateDescription [post]
func (ctrl *DescriptionController) GenerateDescription(c *gin.Context) {
	var req dto.GenerateDescriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: MsgNoImageURL})
		return
	}

	result, err := ctrl.generator.GenerateFromURL(c.Request.Context(), req.ImageURL)
	if err != nil {
		ctrl.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, toResponse(result))
}

// UploadAndGenerate 上传图片生成描述与标签
// @Summary 上传图片生成描述与标签
// @Tags Description
// @Accept multipart/form-data
// @Produce json
// @Param image formData file true "图片文件（不超过 4MB）"
// @Success 200 {object} dto.GenerateDescriptionResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 429 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /api/generateDescription/upload [post]
func (ctrl *DescriptionController) UploadAndGenerate(c *gin.Context) {
	// 解析 multipart 前限制请求体，超出部分不会落盘
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, ctrl.maxUploadBytes+multipartOverhead)

	header, err := c.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: MsgFileTooLarge})
			return
		}
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: MsgNoImageFile})
		return
	}
	if header.Size > ctrl.maxUploadBytes {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: MsgFileTooLarge})
		return
	}

	file, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: MsgNoImageFile})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, ctrl.maxUploadBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: MsgNoImageFile})
		return
	}
	if int64(len(data)) > ctrl.maxUploadBytes {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: MsgFileTooLarge})
		return
	}
	if len(data) == 0 {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: MsgNoImageFile})
		return
	}

	ctx := c.Request.Context()
	imageURL := ctrl.archive(ctx, data, header.Filename, header.Header.Get("Content-Type"))

	result, err := ctrl.generator.GenerateFromImage(ctx, data)
	if err != nil {
		ctrl.discardArchive(ctx, imageURL)
		ctrl.writeError(c, err)
		return
	}

	resp := toResponse(result)
	resp.ImageURL = imageURL
	c.JSON(http.StatusOK, resp)
}

// ==================== 辅助方法 ====================

// writeError 错误分类 → HTTP 状态码与固定文案，内部细节只写日志
func (ctrl *DescriptionController) writeError(c *gin.Context, err error) {
	status, msg := http.StatusInternalServerError, MsgGenerationError

	switch {
	case errors.Is(err, service.ErrNoImageURL):
		status, msg = http.StatusBadRequest, MsgNoImageURL
	case errors.Is(err, service.ErrNoImage):
		status, msg = http.StatusBadRequest, MsgNoImageFile
	case errors.Is(err, service.ErrAPIKeysNotSet):
		status, msg = http.StatusInternalServerError, MsgAPIKeysNotSet
	case errors.Is(err, service.ErrImageFetch):
		status, msg = http.StatusBadRequest, MsgImageFetch
	}

	if status >= http.StatusInternalServerError {
		ctrl.logger.Error("generate description failed",
			zap.String("request_id", utils.GetRequestID(c.Request.Context())),
			zap.Int("status", status),
			zap.Error(err))
	}

	c.JSON(status, dto.ErrorResponse{Error: msg})
}

// archive 归档上传图片，失败只记录日志，返回空地址
func (ctrl *DescriptionController) archive(ctx context.Context, data []byte, filename, contentType string) string {
	if ctrl.storage == nil {
		return ""
	}
	url, err := ctrl.storage.Upload(ctx, data, filename, contentType)
	if err != nil {
		ctrl.logger.Warn("archive upload failed",
			zap.String("request_id", utils.GetRequestID(ctx)),
			zap.String("filename", filename),
			zap.Error(err))
		return ""
	}
	return url
}

// discardArchive 生成失败时删除已归档的图片
func (ctrl *DescriptionController) discardArchive(ctx context.Context, url string) {
	if ctrl.storage == nil || url == "" {
		return
	}
	if err := ctrl.storage.Delete(context.WithoutCancel(ctx), url); err != nil {
		ctrl.logger.Warn("discard archive failed",
			zap.String("request_id", utils.GetRequestID(ctx)),
			zap.String("url", url),
			zap.Error(err))
	}
}

func toResponse(result *service.GenerationResult) dto.GenerateDescriptionResponse {
	hashtags := result.Hashtags
	if hashtags == nil {
		hashtags = []string{}
	}
	return dto.GenerateDescriptionResponse{
		Description: result.Description,
		Hashtags:    hashtags,
	}
}
