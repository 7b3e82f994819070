package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"caption_dev_v1/internal/config"
	"caption_dev_v1/internal/model"
	"caption_dev_v1/internal/repository"
	"caption_dev_v1/pkg/utils"
)

// ==================== 结果 ====================

// GenerationResult 描述生成结果
type GenerationResult struct {
	Caption     string   `json:"-"`
	Description string   `json:"description"`
	Hashtags    []string `json:"hashtags"`
}

// ==================== 服务 ====================

// DescriptionService 图片 → caption → 润色 → 解析
type DescriptionService struct {
	credentials config.CredentialSource
	fetcher     ImageFetcher
	captioner   Captioner
	generator   TextGenerator
	callLogRepo repository.AICallLogRepository // 可为 nil
	logger      *zap.Logger
}

// NewDescriptionService 创建描述生成服务
func NewDescriptionService(
	credentials config.CredentialSource,
	fetcher ImageFetcher,
	captioner Captioner,
	generator TextGenerator,
	callLogRepo repository.AICallLogRepository,
	logger *zap.Logger,
) *DescriptionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DescriptionService{
		credentials: credentials,
		fetcher:     fetcher,
		captioner:   captioner,
		generator:   generator,
		callLogRepo: callLogRepo,
		logger:      logger,
	}
}

// GenerateFromURL 下载图片后生成描述与标签
func (s *DescriptionService) GenerateFromURL(ctx context.Context, imageURL string) (*GenerationResult, error) {
	imageURL = strings.TrimSpace(imageURL)
	if imageURL == "" {
		return nil, ErrNoImageURL
	}

	creds, err := s.requireCredentials()
	if err != nil {
		return nil, err
	}

	image, err := s.fetcher.Fetch(ctx, imageURL)
	if err != nil {
		s.logger.Warn("fetch image failed",
			zap.String("request_id", utils.GetRequestID(ctx)),
			zap.String("image_url", imageURL),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrImageFetch, err)
	}

	return s.generate(ctx, creds, image)
}

// GenerateFromImage 使用已上传的图片字节生成描述与标签
func (s *DescriptionService) GenerateFromImage(ctx context.Context, image []byte) (*GenerationResult, error) {
	if len(image) == 0 {
		return nil, ErrNoImage
	}

	creds, err := s.requireCredentials()
	if err != nil {
		return nil, err
	}

	return s.generate(ctx, creds, image)
}

// requireCredentials 每次请求读取，任何出站调用之前检查
func (s *DescriptionService) requireCredentials() (config.Credentials, error) {
	creds := s.credentials.Credentials()
	if !creds.Complete() {
		return creds, ErrAPIKeysNotSet
	}
	return creds, nil
}

func (s *DescriptionService) generate(ctx context.Context, creds config.Credentials, image []byte) (*GenerationResult, error) {
	requestID := utils.GetRequestID(ctx)
	log := s.logger.With(zap.String("request_id", requestID))

	// 1. 图片描述
	start := time.Now()
	caption, err := s.captioner.Caption(ctx, creds.Caption, image)
	captionLog := &model.AICallLog{
		RequestID:  requestID,
		CallType:   model.AICallTypeCaption,
		Provider:   s.captioner.Provider(),
		ModelName:  s.captioner.Model(),
		ImageBytes: len(image),
		DurationMs: time.Since(start).Milliseconds(),
		Status:     model.AICallStatusSuccess,
		Output:     truncate(caption, 2048),
	}
	if err != nil {
		captionLog.Status = model.AICallStatusFailed
		captionLog.ErrorMsg = truncate(err.Error(), 1024)
		s.record(ctx, captionLog)
		log.Error("caption failed", zap.String("model", s.captioner.Model()), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrGeneration, err)
	}
	s.record(ctx, captionLog)
	log.Debug("caption generated", zap.String("caption", caption))

	// 2. 文本润色
	start = time.Now()
	gen, err := s.generator.Generate(ctx, creds.Text, NewRefinementPrompt(caption))
	refineLog := &model.AICallLog{
		RequestID:  requestID,
		CallType:   model.AICallTypeRefine,
		Provider:   s.generator.Provider(),
		ModelName:  s.generator.Model(),
		DurationMs: time.Since(start).Milliseconds(),
		Status:     model.AICallStatusSuccess,
	}
	if err != nil {
		refineLog.Status = model.AICallStatusFailed
		refineLog.ErrorMsg = truncate(err.Error(), 1024)
		s.record(ctx, refineLog)
		log.Error("refine failed", zap.String("model", s.generator.Model()), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrGeneration, err)
	}

	// 3. 解析
	parsed := ParseRefinement(gen.Text, caption)
	if !parsed.DescriptionFound {
		log.Warn("refined text has no description, falling back to caption")
	}
	if !parsed.HashtagsFound {
		log.Warn("refined text has no hashtags")
	}

	refineLog.InputTokens = gen.InputTokens
	refineLog.OutputTokens = gen.OutputTokens
	refineLog.Output = truncate(gen.Text, 2048)
	refineLog.ParseStatus = parsed.Status()
	if tags, err := json.Marshal(parsed.Hashtags); err == nil {
		refineLog.Hashtags = datatypes.JSON(tags)
	}
	s.record(ctx, refineLog)

	return &GenerationResult{
		Caption:     caption,
		Description: parsed.Description,
		Hashtags:    parsed.Hashtags,
	}, nil
}

// record 写调用日志，失败只告警不影响请求
func (s *DescriptionService) record(ctx context.Context, entry *model.AICallLog) {
	if s.callLogRepo == nil {
		return
	}
	if err := s.callLogRepo.Create(context.WithoutCancel(ctx), entry); err != nil {
		s.logger.Warn("write ai call log failed",
			zap.String("request_id", entry.RequestID),
			zap.String("call_type", entry.CallType),
			zap.Error(err))
	}
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}
