package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/url"
	"path/filepath"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"SceneStudio-server/config"
)

// Storage 封装 MinIO，生成素材全部进对象存储，对外只暴露预签名 URL
type Storage struct {
	client *minio.Client
	bucket string
}

func NewStorage(cfg *config.Config) (*Storage, error) {
	mc := cfg.MinIO
	client, err := minio.New(mc.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(mc.AccessKey, mc.SecretKey, ""),
		Secure: mc.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("MinIO 初始化失败: %w", err)
	}
	return &Storage{client: client, bucket: mc.Bucket}, nil
}

// UploadBytes 上传二进制并返回 72 小时有效的预签名 URL
func (s *Storage) UploadBytes(ctx context.Context, data []byte, objectName string) (string, error) {
	return s.Upload(ctx, bytes.NewReader(data), objectName, int64(len(data)))
}

// Upload 通用上传，size 未知时传 -1
func (s *Storage) Upload(ctx context.Context, reader io.Reader, objectName string, size int64) (string, error) {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return "", fmt.Errorf("检查 Bucket 失败: %w", err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return "", fmt.Errorf("创建 Bucket 失败: %w", err)
		}
		log.Printf("Bucket '%s' 已创建", s.bucket)
	}

	_, err = s.client.PutObject(ctx, s.bucket, objectName, reader, size, minio.PutObjectOptions{
		ContentType: contentTypeByExt(objectName),
	})
	if err != nil {
		return "", fmt.Errorf("上传到 MinIO 失败: %w", err)
	}

	presignedURL, err := s.client.PresignedGetObject(ctx, s.bucket, objectName, 72*time.Hour, make(url.Values))
	if err != nil {
		return "", fmt.Errorf("生成签名 URL 失败: %w", err)
	}
	log.Printf("文件已上传: %s", objectName)
	return presignedURL.String(), nil
}

// 根据文件扩展名确定 ContentType
func contentTypeByExt(objectName string) string {
	switch filepath.Ext(objectName) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".mp4":
		return "video/mp4"
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	case ".zip":
		return "application/zip"
	}
	return "application/octet-stream"
}
