package service

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shop_catalog_v1/pkg/config"
)

func TestNewStorageProvider_Local(t *testing.T) {
	provider, err := NewStorageProvider(config.StorageConfig{
		Provider: "local",
		BasePath: t.TempDir(),
	})
	require.NoError(t, err)
	assert.IsType(t, &LocalStorage{}, provider)
}

func TestNewStorageProvider_Invalid(t *testing.T) {
	_, err := NewStorageProvider(config.StorageConfig{Provider: "cos"})
	assert.Error(t, err)
}

func TestLocalStorage_UploadAndDelete(t *testing.T) {
	dir := t.TempDir()
	provider, err := NewLocalStorage(config.StorageConfig{
		BasePath: dir,
		Endpoint: "http://localhost:8080/uploads/",
	})
	require.NoError(t, err)

	ctx := context.Background()
	url, err := provider.Upload(ctx, []byte("png-bytes"), "Photo.PNG", "image/png")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "http://localhost:8080/uploads/"))
	assert.True(t, strings.HasSuffix(url, ".png"))

	key := strings.TrimPrefix(url, "http://localhost:8080/uploads/")
	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(key)))
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))

	require.NoError(t, provider.Delete(ctx, url))
	_, err = os.Stat(filepath.Join(dir, filepath.FromSlash(key)))
	assert.True(t, os.IsNotExist(err))

	// 重复删除不报错
	assert.NoError(t, provider.Delete(ctx, url))
	assert.Error(t, provider.Delete(ctx, "http://elsewhere/x.png"))
}

func TestObjectKey(t *testing.T) {
	now := time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC)

	key := objectKey("products", "a.webp", now)
	assert.True(t, strings.HasPrefix(key, "products/2025/03/09/"))
	assert.True(t, strings.HasSuffix(key, ".webp"))

	assert.True(t, strings.HasSuffix(objectKey("", "noext", now), ".jpg"))
}

func TestS3Storage_URLs(t *testing.T) {
	s, err := NewS3Storage(config.StorageConfig{
		Provider:  "s3",
		Bucket:    "catalog",
		Region:    "ap-southeast-2",
		AccessKey: "AKIAXXXXXXXX",
		SecretKey: "secret",
	})
	require.NoError(t, err)

	url := s.publicURL("2025/01/01/a.jpg")
	assert.Equal(t, "https://catalog.s3.ap-southeast-2.amazonaws.com/2025/01/01/a.jpg", url)
	assert.Equal(t, "2025/01/01/a.jpg", s.extractKey(url))
	assert.Empty(t, s.extractKey("https://other.example.com/a.jpg"))

	s.cdnDomain = "cdn.example.com"
	assert.Equal(t, "https://cdn.example.com/k.jpg", s.publicURL("k.jpg"))

	s.cdnDomain = ""
	s.endpoint = "http://minio:9000"
	assert.Equal(t, "http://minio:9000/catalog/k.jpg", s.publicURL("k.jpg"))
}

func TestS3Storage_RequiresBucket(t *testing.T) {
	_, err := NewS3Storage(config.StorageConfig{Provider: "s3"})
	assert.Error(t, err)
}

func TestS3Storage_Upload(t *testing.T) {
	bucket := os.Getenv("AWS_BUCKET")
	if bucket == "" {
		t.Skip("跳过: 需要设置 AWS_BUCKET 环境变量")
	}

	s, err := NewS3Storage(config.StorageConfig{
		Provider:  "s3",
		Bucket:    bucket,
		Region:    os.Getenv("AWS_REGION"),
		AccessKey: os.Getenv("AWS_ACCESS_KEY_ID"),
		SecretKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		BasePath:  "test",
	})
	require.NoError(t, err)

	ctx := context.Background()
	url, err := s.Upload(ctx, []byte("S3 Upload Test - "+time.Now().Format(time.RFC3339)), "test_upload.txt", "text/plain")
	require.NoError(t, err)
	assert.NotEmpty(t, url)

	// 清理
	if err := s.Delete(ctx, url); err != nil {
		t.Logf("清理失败: %v", err)
	}
}
