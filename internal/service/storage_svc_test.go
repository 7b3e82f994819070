package service

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"caption_dev_v1/internal/config"
)

var testNow = time.Date(2024, 5, 6, 12, 0, 0, 0, time.UTC)

// 1x1 PNG
var testPNG = []byte{
	0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A,
	0x00, 0x00, 0x00, 0x0D, 0x49, 0x48, 0x44, 0x52,
	0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x02, 0x00, 0x00, 0x00, 0x90, 0x77, 0x53,
	0xDE, 0x00, 0x00, 0x00, 0x0C, 0x49, 0x44, 0x41,
	0x54, 0x08, 0xD7, 0x63, 0xF8, 0xFF, 0xFF, 0x3F,
	0x00, 0x05, 0xFE, 0x02, 0xFE, 0xDC, 0xCC, 0x59,
	0xE7, 0x00, 0x00, 0x00, 0x00, 0x49, 0x45, 0x4E,
	0x44, 0xAE, 0x42, 0x60, 0x82,
}

func TestNewStorageProvider_Disabled(t *testing.T) {
	provider, err := NewStorageProvider(config.StorageConfig{})
	if err != nil {
		t.Fatalf("NewStorageProvider() error = %v", err)
	}
	if provider != nil {
		t.Error("未配置 provider 时应返回 nil")
	}
}

func TestNewStorageProvider_InvalidProvider(t *testing.T) {
	_, err := NewStorageProvider(config.StorageConfig{Provider: "invalid"})
	if err == nil {
		t.Error("期望返回错误，但未返回")
	}
}

func TestNewStorageProvider_S3RequiresBucket(t *testing.T) {
	_, err := NewStorageProvider(config.StorageConfig{Provider: "s3", Region: "us-east-1"})
	if err == nil {
		t.Error("缺少 bucket 时应返回错误")
	}
}

func TestLocalStorage_UploadAndDelete(t *testing.T) {
	tempDir := t.TempDir()

	provider, err := NewStorageProvider(config.StorageConfig{
		Provider: "local",
		BasePath: tempDir,
		Endpoint: "http://localhost:8080/uploads/",
	})
	if err != nil {
		t.Fatalf("初始化失败: %v", err)
	}

	ctx := context.Background()
	url, err := provider.Upload(ctx, testPNG, "photo.PNG", "image/png")
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	if !strings.HasPrefix(url, "http://localhost:8080/uploads/") {
		t.Errorf("URL 前缀不正确: %s", url)
	}
	if !strings.HasSuffix(url, ".png") {
		t.Errorf("扩展名应保留并转小写: %s", url)
	}

	key := strings.TrimPrefix(url, "http://localhost:8080/uploads/")
	data, err := os.ReadFile(filepath.Join(tempDir, filepath.FromSlash(key)))
	if err != nil {
		t.Fatalf("文件未写入: %v", err)
	}
	if len(data) != len(testPNG) {
		t.Errorf("文件大小 = %d, want %d", len(data), len(testPNG))
	}

	if err := provider.Delete(ctx, url); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(tempDir, filepath.FromSlash(key))); !os.IsNotExist(err) {
		t.Error("文件应已删除")
	}
}

func TestLocalStorage_DeleteRejectsForeignURL(t *testing.T) {
	storage, err := NewLocalStorage(config.StorageConfig{BasePath: t.TempDir()})
	if err != nil {
		t.Fatalf("初始化失败: %v", err)
	}

	if err := storage.Delete(context.Background(), "https://example.com/a.jpg"); err == nil {
		t.Error("非本地 URL 应返回错误")
	}
	if err := storage.Delete(context.Background(), "http://localhost:8080/uploads/../secret"); err == nil {
		t.Error("路径穿越应返回错误")
	}
}

func TestS3Storage_PublicURL(t *testing.T) {
	tests := []struct {
		name    string
		storage S3Storage
		want    string
	}{
		{
			name:    "AWS 默认域名",
			storage: S3Storage{bucket: "b", region: "us-east-1"},
			want:    "https://b.s3.us-east-1.amazonaws.com/k.jpg",
		},
		{
			name:    "CDN 域名",
			storage: S3Storage{bucket: "b", cdnDomain: "cdn.example.com"},
			want:    "https://cdn.example.com/k.jpg",
		},
		{
			name:    "兼容端点",
			storage: S3Storage{bucket: "b", endpoint: "http://minio:9000"},
			want:    "http://minio:9000/b/k.jpg",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.storage.publicURL("k.jpg")
			if got != tt.want {
				t.Errorf("publicURL() = %s, want %s", got, tt.want)
			}
			if key := tt.storage.extractKey(got); key != "k.jpg" {
				t.Errorf("extractKey() = %s, want k.jpg", key)
			}
		})
	}
}

func TestGenerateObjectKey(t *testing.T) {
	key := generateObjectKey("captions", "", testNow)
	if !strings.HasPrefix(key, "captions/2024/05/06/") {
		t.Errorf("key 前缀不正确: %s", key)
	}
	if !strings.HasSuffix(key, ".jpg") {
		t.Errorf("缺省扩展名应为 .jpg: %s", key)
	}
}
