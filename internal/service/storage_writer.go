package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	minio "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/sshcollectorpro/switchreport/internal/config"
	"github.com/sshcollectorpro/switchreport/pkg/logger"
)

// 归档后端
const (
	BackendLocal = "local"
	BackendMinio = "minio"
	BackendNone  = "none"
)

// ErrArchiveFallback MinIO 写入失败但已落到本地
var ErrArchiveFallback = errors.New("archive fell back to local storage")

// StorageWriter 报告归档写入器
type StorageWriter interface {
	Write(ctx context.Context, meta ArchiveMeta, name string, data []byte, contentType string) (StoredObject, error)
}

// StoredObject 归档对象信息
type StoredObject struct {
	URI         string `json:"uri"`
	Size        int64  `json:"size"`
	Checksum    string `json:"checksum"`
	ContentType string `json:"content_type"`
}

// ArchiveMeta 归档路径元数据：prefix/<serial>/<YYYYMMDD_HHMMSS>/<run id>/<name>
type ArchiveMeta struct {
	SerialNumber string
	RunID        string
	StartedAt    time.Time
}

func (m ArchiveMeta) segments(prefix string) []string {
	parts := make([]string, 0, 4)
	if p := strings.Trim(strings.TrimSpace(prefix), "/"); p != "" {
		parts = append(parts, p)
	}
	started := m.StartedAt
	if started.IsZero() {
		started = time.Now()
	}
	parts = append(parts, slug(m.SerialNumber), started.Format("20060102_150405"))
	if id := strings.TrimSpace(m.RunID); id != "" {
		parts = append(parts, id)
	}
	return parts
}

// NewStorageWriter 根据 archive.backend 创建写入器；none 时返回 nil
func NewStorageWriter(cfg *config.Config) StorageWriter {
	backend := strings.ToLower(strings.TrimSpace(cfg.Archive.Backend))
	if backend == BackendNone {
		return nil
	}
	dw := &DelegatingStorageWriter{backend: backend, local: &LocalStorageWriter{cfg: cfg.Archive}}
	if backend == BackendMinio {
		dw.minio = initMinioWriter(cfg)
	}
	return dw
}

// DelegatingStorageWriter 按后端路由写入，MinIO 失败时回退本地
type DelegatingStorageWriter struct {
	backend string
	local   *LocalStorageWriter
	minio   *MinioStorageWriter
}

func (w *DelegatingStorageWriter) Write(ctx context.Context, meta ArchiveMeta, name string, data []byte, contentType string) (StoredObject, error) {
	if w.backend != BackendMinio {
		return w.local.Write(ctx, meta, name, data, contentType)
	}
	var cause error
	if w.minio == nil {
		cause = errors.New("minio client not initialized")
	} else {
		obj, err := w.minio.Write(ctx, meta, name, data, contentType)
		if err == nil {
			return obj, nil
		}
		cause = err
	}
	logger.WithField("error", cause).Warn("MinIO archive failed; falling back to local")
	obj, lerr := w.local.Write(ctx, meta, name, data, contentType)
	if lerr != nil {
		return StoredObject{}, fmt.Errorf("minio: %v; local fallback failed: %w", cause, lerr)
	}
	// 返回本地对象，同时携带预警错误
	return obj, fmt.Errorf("%w: %v", ErrArchiveFallback, cause)
}

// LocalStorageWriter 本地文件写入
type LocalStorageWriter struct {
	cfg config.ArchiveConfig
}

// NewLocalStorageWriter 创建本地写入器
func NewLocalStorageWriter(cfg config.ArchiveConfig) *LocalStorageWriter {
	return &LocalStorageWriter{cfg: cfg}
}

func (w *LocalStorageWriter) Write(ctx context.Context, meta ArchiveMeta, name string, data []byte, contentType string) (StoredObject, error) {
	if err := ctx.Err(); err != nil {
		return StoredObject{}, err
	}
	baseDir := strings.TrimSpace(w.cfg.BaseDir)
	if baseDir == "" {
		baseDir = "./data/archive"
	}
	dirPath := filepath.Join(append([]string{baseDir}, meta.segments(w.cfg.Prefix)...)...)
	if w.cfg.MkdirIfMissing {
		if err := os.MkdirAll(dirPath, 0o755); err != nil {
			return StoredObject{}, fmt.Errorf("failed to create dir: %w", err)
		}
	}

	fullPath := filepath.Join(dirPath, slug(name))
	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		return StoredObject{}, fmt.Errorf("failed to write file: %w", err)
	}
	return StoredObject{
		URI:         "file://" + fullPath,
		Size:        int64(len(data)),
		Checksum:    checksum(data),
		ContentType: contentTypeOr(contentType),
	}, nil
}

// MinioStorageWriter MinIO 对象存储写入
type MinioStorageWriter struct {
	bucket        string
	prefix        string
	client        *minio.Client
	endpoint      string
	bucketEnsured bool
}

// initMinioWriter 初始化 MinIO 写入器，配置不完整时返回 nil
func initMinioWriter(cfg *config.Config) *MinioStorageWriter {
	mc := cfg.Storage.Minio
	host := strings.TrimSpace(mc.Host)
	if host == "" || mc.Port <= 0 {
		logger.Warn("MinIO configuration incomplete; host/port missing")
		return nil
	}
	endpoint := fmt.Sprintf("%s:%d", host, mc.Port)

	transport := &http.Transport{
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConnsPerHost:   16,
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(mc.AccessKey, mc.SecretKey, ""),
		Secure:    mc.Secure,
		Transport: transport,
	})
	if err != nil {
		logger.WithField("error", err).Error("MinIO client initialization failed")
		return nil
	}
	bucket := strings.TrimSpace(mc.Bucket)
	if bucket == "" {
		bucket = "switch-reports"
	}
	return &MinioStorageWriter{bucket: bucket, prefix: cfg.Archive.Prefix, client: client, endpoint: endpoint}
}

// Write 将报告写入 MinIO，失败时有限重试
func (w *MinioStorageWriter) Write(ctx context.Context, meta ArchiveMeta, name string, data []byte, contentType string) (StoredObject, error) {
	if w == nil || w.client == nil {
		return StoredObject{}, fmt.Errorf("minio client not initialized")
	}
	objectName := path.Join(append(meta.segments(w.prefix), slug(name))...)
	ct := contentTypeOr(contentType)

	if !w.bucketEnsured {
		if err := w.ensureBucket(ctx, 2); err != nil {
			return StoredObject{}, fmt.Errorf("minio ensure bucket failed: %w", err)
		}
		w.bucketEnsured = true
	}

	var lastErr error
	for _, wait := range []time.Duration{time.Second, 2 * time.Second, 4 * time.Second} {
		attemptCtx, cancel := attemptContext(ctx, 10*time.Second)
		_, err := w.client.PutObject(attemptCtx, w.bucket, objectName, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{ContentType: ct})
		cancel()
		if err == nil {
			lastErr = nil
			break
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return StoredObject{}, ctx.Err()
		case <-time.After(wait):
		}
	}
	if lastErr != nil {
		return StoredObject{}, fmt.Errorf("minio put object failed after retries: %w", lastErr)
	}

	return StoredObject{
		URI:         "minio://" + path.Join(w.bucket, objectName),
		Size:        int64(len(data)),
		Checksum:    checksum(data),
		ContentType: ct,
	}, nil
}

// ensureBucket 校验并创建 bucket
func (w *MinioStorageWriter) ensureBucket(parent context.Context, retries int) error {
	var lastErr error
	for i := 0; i <= retries; i++ {
		ctx, cancel := attemptContext(parent, 10*time.Second)
		exists, err := w.client.BucketExists(ctx, w.bucket)
		if err == nil && !exists {
			err = w.client.MakeBucket(ctx, w.bucket, minio.MakeBucketOptions{})
		}
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err
		time.Sleep(time.Duration(i+1) * 500 * time.Millisecond)
	}
	return lastErr
}

// attemptContext 构造限时上下文，不超过父上下文的剩余时间
func attemptContext(parent context.Context, prefer time.Duration) (context.Context, context.CancelFunc) {
	if deadline, ok := parent.Deadline(); ok {
		if remain := time.Until(deadline); remain < prefer {
			return context.WithCancel(parent)
		}
	}
	return context.WithTimeout(parent, prefer)
}

func checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:])
}

func contentTypeOr(ct string) string {
	if ct != "" {
		return ct
	}
	return "text/plain; charset=utf-8"
}

var slugRe = regexp.MustCompile(`[^a-z0-9._-]+`)

func slug(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer(" ", "_", "/", "_", "\\", "_").Replace(s)
	s = slugRe.ReplaceAllString(s, "")
	if s == "" || s == "." || s == ".." {
		s = "unknown"
	}
	return s
}
