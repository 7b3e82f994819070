package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"caption_dev_v1/internal/config"
	"caption_dev_v1/internal/model"
	"caption_dev_v1/internal/repository"
	"caption_dev_v1/pkg/utils"
)

// ==================== 测试替身 ====================

type fakeFetcher struct {
	data  []byte
	err   error
	calls int
}

func (f *fakeFetcher) Fetch(ctx context.Context, imageURL string) ([]byte, error) {
	f.calls++
	return f.data, f.err
}

type fakeCaptioner struct {
	caption string
	err     error
	calls   int
	gotKey  string
}

func (f *fakeCaptioner) Provider() string { return "fake-vision" }
func (f *fakeCaptioner) Model() string    { return "fake-caption-model" }

func (f *fakeCaptioner) Caption(ctx context.Context, apiKey string, image []byte) (string, error) {
	f.calls++
	f.gotKey = apiKey
	return f.caption, f.err
}

type fakeGenerator struct {
	text      string
	err       error
	calls     int
	gotKey    string
	gotPrompt RefinementPrompt
}

func (f *fakeGenerator) Provider() string { return "fake-text" }
func (f *fakeGenerator) Model() string    { return "fake-text-model" }

func (f *fakeGenerator) Generate(ctx context.Context, apiKey string, prompt RefinementPrompt) (*Generation, error) {
	f.calls++
	f.gotKey = apiKey
	f.gotPrompt = prompt
	if f.err != nil {
		return nil, f.err
	}
	return &Generation{Text: f.text, InputTokens: 50, OutputTokens: 20}, nil
}

type failingCallLogRepo struct {
	repository.AICallLogRepository
}

func (failingCallLogRepo) Create(ctx context.Context, log *model.AICallLog) error {
	return errors.New("db down")
}

var validCreds = config.StaticCredentials{Caption: "hf", Text: "sk"}

func newTestDescriptionService(creds config.CredentialSource, f *fakeFetcher, c *fakeCaptioner, g *fakeGenerator, repo repository.AICallLogRepository) *DescriptionService {
	return NewDescriptionService(creds, f, c, g, repo, nil)
}

// ==================== 测试 ====================

func TestDescriptionService_GenerateFromURL_Success(t *testing.T) {
	f := &fakeFetcher{data: testPNG}
	c := &fakeCaptioner{caption: "a lake at dusk"}
	g := &fakeGenerator{text: "Description: A calm lake.\n\nHashtags: #nature, #calm lake"}
	svc := newTestDescriptionService(validCreds, f, c, g, nil)

	result, err := svc.GenerateFromURL(context.Background(), "https://example.com/a.jpg")
	require.NoError(t, err)

	assert.Equal(t, "A calm lake.", result.Description)
	assert.Equal(t, []string{"nature", "calm", "lake"}, result.Hashtags)
	assert.Equal(t, "a lake at dusk", result.Caption)
	assert.Equal(t, "hf", c.gotKey)
	assert.Equal(t, "sk", g.gotKey)
	assert.Equal(t, "a lake at dusk", g.gotPrompt.Caption)
	assert.Equal(t, RefineSystemPrompt, g.gotPrompt.System)
}

func TestDescriptionService_GenerateFromURL_Errors(t *testing.T) {
	tests := []struct {
		name        string
		url         string
		creds       config.StaticCredentials
		fetchErr    error
		captionErr  error
		generateErr error
		wantErr     error
		wantFetches int
		wantCaption int
	}{
		{
			name:    "缺少 URL",
			url:     "  ",
			creds:   validCreds,
			wantErr: ErrNoImageURL,
		},
		{
			name:    "缺少 URL 优先于缺少密钥",
			url:     "",
			creds:   config.StaticCredentials{},
			wantErr: ErrNoImageURL,
		},
		{
			name:    "缺少文本密钥",
			url:     "https://example.com/a.jpg",
			creds:   config.StaticCredentials{Caption: "hf"},
			wantErr: ErrAPIKeysNotSet,
		},
		{
			name:    "缺少视觉密钥",
			url:     "https://example.com/a.jpg",
			creds:   config.StaticCredentials{Text: "sk"},
			wantErr: ErrAPIKeysNotSet,
		},
		{
			name:        "图片下载失败",
			url:         "https://example.com/404.jpg",
			creds:       validCreds,
			fetchErr:    errors.New("download failed with status: 404"),
			wantErr:     ErrImageFetch,
			wantFetches: 1,
		},
		{
			name:        "caption 失败",
			url:         "https://example.com/a.jpg",
			creds:       validCreds,
			captionErr:  errors.New("503"),
			wantErr:     ErrGeneration,
			wantFetches: 1,
			wantCaption: 1,
		},
		{
			name:        "润色失败",
			url:         "https://example.com/a.jpg",
			creds:       validCreds,
			generateErr: errors.New("401"),
			wantErr:     ErrGeneration,
			wantFetches: 1,
			wantCaption: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeFetcher{data: testPNG, err: tt.fetchErr}
			c := &fakeCaptioner{caption: "x", err: tt.captionErr}
			g := &fakeGenerator{text: "Description: y", err: tt.generateErr}
			svc := newTestDescriptionService(tt.creds, f, c, g, nil)

			result, err := svc.GenerateFromURL(context.Background(), tt.url)

			assert.Nil(t, result)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.wantFetches, f.calls)
			assert.Equal(t, tt.wantCaption, c.calls)
		})
	}
}

func TestDescriptionService_ParseFallbacks(t *testing.T) {
	tests := []struct {
		name         string
		text         string
		wantDesc     string
		wantHashtags []string
	}{
		{"空文本", "", "a dog", []string{}},
		{"只有描述", "Description: Happy dog.", "Happy dog.", []string{}},
		{"只有标签", "Hashtags: #dog", "a dog", []string{"dog"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestDescriptionService(validCreds,
				&fakeFetcher{data: testPNG},
				&fakeCaptioner{caption: "a dog"},
				&fakeGenerator{text: tt.text}, nil)

			result, err := svc.GenerateFromURL(context.Background(), "https://example.com/dog.jpg")
			require.NoError(t, err)
			assert.Equal(t, tt.wantDesc, result.Description)
			assert.NotNil(t, result.Hashtags)
			assert.Equal(t, tt.wantHashtags, result.Hashtags)
		})
	}
}

func TestDescriptionService_GenerateFromImage(t *testing.T) {
	f := &fakeFetcher{}
	c := &fakeCaptioner{caption: "a cat"}
	g := &fakeGenerator{text: "Description: A sleepy cat.\nHashtags: #cat"}
	svc := newTestDescriptionService(validCreds, f, c, g, nil)

	_, err := svc.GenerateFromImage(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoImage)

	result, err := svc.GenerateFromImage(context.Background(), testPNG)
	require.NoError(t, err)
	assert.Equal(t, "A sleepy cat.", result.Description)
	assert.Equal(t, []string{"cat"}, result.Hashtags)
	assert.Zero(t, f.calls)
}

func TestDescriptionService_CredentialsReadPerRequest(t *testing.T) {
	creds := &switchableCredentials{}
	svc := NewDescriptionService(creds, &fakeFetcher{data: testPNG}, &fakeCaptioner{caption: "x"}, &fakeGenerator{text: "Description: y"}, nil, nil)

	_, err := svc.GenerateFromURL(context.Background(), "https://example.com/a.jpg")
	assert.ErrorIs(t, err, ErrAPIKeysNotSet)

	creds.value = config.Credentials{Caption: "hf", Text: "sk"}
	_, err = svc.GenerateFromURL(context.Background(), "https://example.com/a.jpg")
	assert.NoError(t, err)
}

type switchableCredentials struct {
	value config.Credentials
}

func (s *switchableCredentials) Credentials() config.Credentials { return s.value }

func TestDescriptionService_RecordsCallLogs(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.AICallLog{}))
	repo := repository.NewAICallLogRepository(db)

	svc := newTestDescriptionService(validCreds,
		&fakeFetcher{data: testPNG},
		&fakeCaptioner{caption: "a lake"},
		&fakeGenerator{text: "Description: A calm lake."},
		repo)

	ctx := utils.WithRequestID(context.Background(), "req-audit")
	_, err = svc.GenerateFromURL(ctx, "https://example.com/a.jpg")
	require.NoError(t, err)

	logs, err := repo.ListByRequest(context.Background(), "req-audit")
	require.NoError(t, err)
	require.Len(t, logs, 2)

	assert.Equal(t, model.AICallTypeCaption, logs[0].CallType)
	assert.Equal(t, len(testPNG), logs[0].ImageBytes)
	assert.Equal(t, "a lake", logs[0].Output)

	assert.Equal(t, model.AICallTypeRefine, logs[1].CallType)
	assert.Equal(t, "fake-text-model", logs[1].ModelName)
	assert.Equal(t, 50, logs[1].InputTokens)
	assert.Equal(t, model.ParseStatusNoHashtags, logs[1].ParseStatus)
	assert.JSONEq(t, `[]`, string(logs[1].Hashtags))

	usage, err := NewUsageService(repo).GetUsage(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), usage.Summary.TotalCalls)
	assert.Equal(t, int64(1), usage.Summary.ParseFallbacks)
}

func TestDescriptionService_CallLogFailureDoesNotFailRequest(t *testing.T) {
	svc := newTestDescriptionService(validCreds,
		&fakeFetcher{data: testPNG},
		&fakeCaptioner{caption: "a lake"},
		&fakeGenerator{text: "Description: A calm lake.\nHashtags: #lake"},
		failingCallLogRepo{})

	result, err := svc.GenerateFromURL(context.Background(), "https://example.com/a.jpg")
	require.NoError(t, err)
	assert.Equal(t, []string{"lake"}, result.Hashtags)
}

func TestUsageService_ClampsDays(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.AICallLog{}))

	svc := NewUsageService(repository.NewAICallLogRepository(db))
	svc.now = func() time.Time { return testNow }

	report, err := svc.GetUsage(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Days)
	assert.NotNil(t, report.Daily)

	report, err = svc.GetUsage(context.Background(), 365)
	require.NoError(t, err)
	assert.Equal(t, maxUsageDays, report.Days)
}
