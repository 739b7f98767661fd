package service

import (
	"bytes"
	"context"
	"io"
	"questforge_backend/internal/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// StorageService 生成内容的对象存储归档。模块正文以JSON对象存入MinIO，
// 数据库只留元数据索引。未配置endpoint时归档整体关闭。
type StorageService struct {
	client *minio.Client
	bucket string
}

func NewStorageService(cfg *config.Config) (*StorageService, error) {
	if cfg.Storage.MinioEndpoint == "" {
		return &StorageService{}, nil
	}

	client, err := minio.New(cfg.Storage.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.Storage.MinioAccessID, cfg.Storage.MinioSecret, ""),
		Secure: cfg.Storage.MinioUseSSL,
	})
	if err != nil {
		return nil, err
	}

	return &StorageService{
		client: client,
		bucket: cfg.Storage.MinioBucket,
	}, nil
}

func (s *StorageService) Enabled() bool {
	return s.client != nil
}

func (s *StorageService) PutJSON(ctx context.Context, key string, payload []byte) error {
	_, err := s.client.PutObject(ctx, s.bucket, key,
		bytes.NewReader(payload), int64(len(payload)),
		minio.PutObjectOptions{ContentType: "application/json"})
	return err
}

func (s *StorageService) GetJSON(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()
	return io.ReadAll(obj)
}
