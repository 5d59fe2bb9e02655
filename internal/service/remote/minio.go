package remote

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioClient — альтернативный провайдер удаленного хранилища
type MinioClient struct {
	client *minio.Client
	bucket string
}

// NewMinioClient создает клиента MinIO и при необходимости бакет
func NewMinioClient(ctx context.Context, conf *Config) (*MinioClient, error) {
	if conf == nil {
		return nil, fmt.Errorf("configuration is required")
	}

	client, err := minio.New(conf.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(conf.AccessKeyID, conf.SecretAccessKey, ""),
		Secure: conf.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, conf.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check if bucket exists: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, conf.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return &MinioClient{client: client, bucket: conf.Bucket}, nil
}

func (c *MinioClient) Upload(ctx context.Context, key string, r io.Reader, size int64, onProgress ProgressFunc) error {
	if key == "" || r == nil {
		return fmt.Errorf("key and reader are required")
	}

	_, err := c.client.PutObject(ctx, c.bucket, key, newProgressReader(r, size, onProgress), size, minio.PutObjectOptions{})
	if err != nil {
		return fmt.Errorf("failed to upload object to minio: %w", err)
	}

	return nil
}

func (c *MinioClient) Download(ctx context.Context, key string, w io.Writer, onProgress ProgressFunc) error {
	obj, err := c.client.GetObject(ctx, c.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return fmt.Errorf("failed to get object from minio: %w", err)
	}
	defer obj.Close()

	stat, err := obj.Stat()
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return fmt.Errorf("%w: %s", ErrObjectNotFound, key)
		}
		return fmt.Errorf("failed to stat object: %w", err)
	}

	if _, err := io.Copy(newProgressWriter(w, stat.Size, onProgress), obj); err != nil {
		return fmt.Errorf("failed to read object body: %w", err)
	}

	if onProgress != nil {
		onProgress(1)
	}

	return nil
}

func (c *MinioClient) Delete(ctx context.Context, key string) error {
	if err := c.client.RemoveObject(ctx, c.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete object from minio: %w", err)
	}
	return nil
}

func (c *MinioClient) Stat(ctx context.Context, key string) (*ObjectInfo, error) {
	stat, err := c.client.StatObject(ctx, c.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
		}
		return nil, fmt.Errorf("failed to stat object: %w", err)
	}

	return &ObjectInfo{Key: key, Size: stat.Size, LastModified: stat.LastModified}, nil
}

func (c *MinioClient) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var objects []ObjectInfo

	for obj := range c.client.ListObjects(ctx, c.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", obj.Err)
		}
		objects = append(objects, ObjectInfo{
			Key:          obj.Key,
			Size:         obj.Size,
			LastModified: obj.LastModified,
		})
	}

	return objects, nil
}
