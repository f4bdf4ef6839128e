package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageWriter(t *testing.T) {
	cfg := testConfig(t)
	w := NewStorageWriter(cfg)
	require.NotNil(t, w)

	meta := ArchiveMeta{
		SerialNumber: "SN123",
		RunID:        "run-1",
		StartedAt:    time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC),
	}
	obj, err := w.Write(context.Background(), meta, "report.json", []byte(`{"ret_code":"success"}`), "application/json")
	require.NoError(t, err)

	wantPath := filepath.Join(cfg.Archive.BaseDir, "reports", "sn123", "20240301_103000", "run-1", "report.json")
	assert.Equal(t, "file://"+wantPath, obj.URI)
	assert.Equal(t, int64(22), obj.Size)
	assert.True(t, strings.HasPrefix(obj.Checksum, "sha256:"))
	assert.Equal(t, "application/json", obj.ContentType)

	data, err := os.ReadFile(wantPath)
	require.NoError(t, err)
	assert.Equal(t, `{"ret_code":"success"}`, string(data))
}

func TestLocalStorageWriterCancelled(t *testing.T) {
	w := NewLocalStorageWriter(testConfig(t).Archive)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := w.Write(ctx, ArchiveMeta{SerialNumber: "SN1"}, "report.txt", []byte("x"), "")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMinioFallsBackToLocal(t *testing.T) {
	cfg := testConfig(t)
	cfg.Archive.Backend = BackendMinio // host 未配置，客户端不会初始化

	w := NewStorageWriter(cfg)
	obj, err := w.Write(context.Background(), ArchiveMeta{SerialNumber: "SN1", RunID: "r"}, "report.txt", []byte("text"), "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrArchiveFallback))
	assert.True(t, strings.HasPrefix(obj.URI, "file://"))
	assert.Equal(t, "text/plain; charset=utf-8", obj.ContentType)
}

func TestNoneBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.Archive.Backend = BackendNone
	assert.Nil(t, NewStorageWriter(cfg))
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "fdo1234_x", slug("FDO1234/X"))
	assert.Equal(t, "unknown", slug(".."))
	assert.Equal(t, "unknown", slug("  "))
	assert.Equal(t, "show_version", slug("show version"))
}
