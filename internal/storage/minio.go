package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"folioforge/internal/config"
)

// Client 存放用户头像与后台导出产物。内部连接用于读写，公开连接只用于签发下载链接。
type Client struct {
	internalClient *minio.Client
	publicClient   *minio.Client
	bucketName     string
}

// ObjectMeta 描述 Bucket 中对象的关键信息。
type ObjectMeta struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// NewClient 根据配置初始化 MinIO 客户端，并确保目标 Bucket 存在。
func NewClient(cfg config.MinIOConfig) (*Client, error) {
	lookup, err := bucketLookup(cfg.BucketLookup)
	if err != nil {
		return nil, err
	}

	internalClient, err := dial(cfg, cfg.Endpoint, cfg.UseSSL, lookup)
	if err != nil {
		return nil, fmt.Errorf("init internal minio client: %w", err)
	}

	public, err := url.Parse(cfg.PublicEndpoint)
	if err != nil {
		return nil, fmt.Errorf("parse minio public endpoint: %w", err)
	}
	if public.Host == "" {
		return nil, errors.New("invalid minio public endpoint, host missing")
	}
	publicClient, err := dial(cfg, public.Host, public.Scheme == "https", lookup)
	if err != nil {
		return nil, fmt.Errorf("init public minio client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := ensureBucket(ctx, internalClient, cfg); err != nil {
		return nil, err
	}

	return &Client{
		internalClient: internalClient,
		publicClient:   publicClient,
		bucketName:     cfg.Bucket,
	}, nil
}

func bucketLookup(raw string) (minio.BucketLookupType, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "auto":
		return minio.BucketLookupAuto, nil
	case "dns":
		return minio.BucketLookupDNS, nil
	case "path":
		return minio.BucketLookupPath, nil
	default:
		return minio.BucketLookupAuto, fmt.Errorf("invalid minio bucket lookup %q", raw)
	}
}

func dial(cfg config.MinIOConfig, host string, secure bool, lookup minio.BucketLookupType) (*minio.Client, error) {
	return minio.New(host, &minio.Options{
		Creds:        credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure:       secure,
		Region:       cfg.Region,
		BucketLookup: lookup,
	})
}

func ensureBucket(ctx context.Context, client *minio.Client, cfg config.MinIOConfig) error {
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return fmt.Errorf("check bucket %q: %w", cfg.Bucket, err)
	}
	if exists {
		return nil
	}
	if !cfg.AutoCreateBucket {
		return fmt.Errorf("bucket %q does not exist (auto create disabled)", cfg.Bucket)
	}
	if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
		return fmt.Errorf("make bucket %q: %w", cfg.Bucket, err)
	}
	return nil
}

// UploadFile 写入头像或导出产物。
func (c *Client) UploadFile(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) (*minio.UploadInfo, error) {
	info, err := c.internalClient.PutObject(ctx, c.bucketName, objectName, reader, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return nil, fmt.Errorf("put object %q: %w", objectName, err)
	}
	return &info, nil
}

// ReadObject 读取对象内容。对象不存在时返回 ErrObjectNotFound，超过 maxBytes 时返回 ErrObjectTooLarge。
func (c *Client) ReadObject(ctx context.Context, objectKey string, maxBytes int64) ([]byte, string, error) {
	obj, err := c.internalClient.GetObject(ctx, c.bucketName, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, "", wrapMissing(objectKey, "get", err)
	}
	defer obj.Close()

	// GetObject 是惰性的，对象缺失要到 Stat 才暴露
	info, err := obj.Stat()
	if err != nil {
		return nil, "", wrapMissing(objectKey, "stat", err)
	}
	if maxBytes > 0 && info.Size > maxBytes {
		return nil, "", ErrObjectTooLarge
	}
	data, err := io.ReadAll(io.LimitReader(obj, info.Size+1))
	if err != nil {
		return nil, "", fmt.Errorf("read object %q: %w", objectKey, err)
	}
	return data, info.ContentType, nil
}

func wrapMissing(objectKey, op string, err error) error {
	if IsNoSuchKey(err) {
		return fmt.Errorf("%w: %s", ErrObjectNotFound, objectKey)
	}
	return fmt.Errorf("%s object %q: %w", op, objectKey, err)
}

// GeneratePresignedURL 生成头像的限时访问链接。
func (c *Client) GeneratePresignedURL(ctx context.Context, objectKey string, duration time.Duration) (string, error) {
	return c.GeneratePresignedURLWithParams(ctx, objectKey, duration, nil)
}

// GeneratePresignedURLWithParams 生成带响应头覆盖（文件名、MIME）的限时下载链接。
func (c *Client) GeneratePresignedURLWithParams(ctx context.Context, objectKey string, duration time.Duration, params map[string]string) (string, error) {
	var v url.Values
	if len(params) > 0 {
		v = url.Values{}
		for k, val := range params {
			v.Set(k, val)
		}
	}
	presigned, err := c.publicClient.PresignedGetObject(ctx, c.bucketName, objectKey, duration, v)
	if err != nil {
		return "", fmt.Errorf("presign %q: %w", objectKey, err)
	}
	return presigned.String(), nil
}

// ListObjects 列出前缀下的全部对象。导出键按时间有序，调用方负责排序截断。
func (c *Client) ListObjects(ctx context.Context, prefix string) ([]ObjectMeta, error) {
	var result []ObjectMeta
	for object := range c.internalClient.ListObjects(ctx, c.bucketName, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if object.Err != nil {
			return nil, fmt.Errorf("list objects under %q: %w", prefix, object.Err)
		}
		result = append(result, ObjectMeta{
			Key:          object.Key,
			Size:         object.Size,
			LastModified: object.LastModified,
		})
	}
	return result, nil
}

// DeleteObject 删除单个对象，对象不存在视为成功。
func (c *Client) DeleteObject(ctx context.Context, objectKey string) error {
	objectKey = strings.TrimSpace(objectKey)
	if objectKey == "" {
		return nil
	}
	err := c.internalClient.RemoveObject(ctx, c.bucketName, objectKey, minio.RemoveObjectOptions{})
	if err != nil && !IsNoSuchKey(err) {
		return fmt.Errorf("remove object %q: %w", objectKey, err)
	}
	return nil
}

// DeletePrefix 批量删除前缀下的对象，用于文档删除时清理历史导出。
func (c *Client) DeletePrefix(ctx context.Context, prefix string) error {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return nil
	}

	listCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	listErr := make(chan error, 1)
	objects := make(chan minio.ObjectInfo)
	go func() {
		defer close(objects)
		for object := range c.internalClient.ListObjects(listCtx, c.bucketName, minio.ListObjectsOptions{
			Prefix:    prefix,
			Recursive: true,
		}) {
			if object.Err != nil {
				listErr <- fmt.Errorf("list objects under %q: %w", prefix, object.Err)
				return
			}
			select {
			case objects <- object:
			case <-listCtx.Done():
				listErr <- listCtx.Err()
				return
			}
		}
		listErr <- nil
	}()

	var errs []error
	for rerr := range c.internalClient.RemoveObjects(ctx, c.bucketName, objects, minio.RemoveObjectsOptions{}) {
		if !IsNoSuchKey(rerr.Err) {
			errs = append(errs, fmt.Errorf("remove object %q: %w", rerr.ObjectName, rerr.Err))
		}
	}
	// RemoveObjects 可能因 ctx 取消提前结束，先停掉列举再取结果
	cancel()
	errs = append(errs, <-listErr)
	return errors.Join(errs...)
}
