package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "server:\n  port: 19000\n"))
	require.NoError(t, err)

	assert.Equal(t, 19000, cfg.Server.Port)
	assert.Equal(t, "N", cfg.Report.PlatformPrefix)
	assert.Equal(t, "switch_inventory", cfg.Report.Template)
	assert.Equal(t, 60*time.Second, cfg.SSH.Timeout)
	assert.Equal(t, 7*time.Second, cfg.SSH.ConnectTimeout, "dial+auth 合并为握手超时")
	assert.Equal(t, "local", cfg.Archive.Backend)
}

func TestLoadNestedSSHTimeout(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
ssh:
  timeout:
    timeout_all: 45s
    dial_timeout: 3
    auth_timeout: 4
`))
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, cfg.SSH.Timeout)
	assert.Equal(t, 7*time.Second, cfg.SSH.ConnectTimeout)
}

func TestLoadExpandsEnvSecrets(t *testing.T) {
	t.Setenv("TEST_MINIO_SECRET", "s3cr3t")
	cfg, err := Load(writeConfig(t, `
storage:
  minio:
    secret_key: "${TEST_MINIO_SECRET}"
`))
	require.NoError(t, err)
	assert.Equal(t, "s3cr3t", cfg.Storage.Minio.SecretKey)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestReportHelpers(t *testing.T) {
	var nilCfg *Config
	assert.Equal(t, 120*time.Second, nilCfg.ReportTimeout())
	assert.Equal(t, "N", nilCfg.AcceptedPlatformPrefix())

	cfg := &Config{Report: ReportConfig{TimeoutSec: 30, PlatformPrefix: "N9K"}}
	assert.Equal(t, 30*time.Second, cfg.ReportTimeout())
	assert.Equal(t, "N9K", cfg.AcceptedPlatformPrefix())
}

func TestStoreReplace(t *testing.T) {
	first := &Config{Report: ReportConfig{Template: "switch_inventory", TimeoutSec: 30}}
	store := NewStore(first)
	held := store.Current()

	second := &Config{Report: ReportConfig{Template: "switch_inventory", TimeoutSec: 90}}
	assert.Same(t, first, store.Replace(second))
	assert.Same(t, second, store.Current())
	assert.Equal(t, 30*time.Second, held.ReportTimeout(), "earlier snapshot is unchanged")
	assert.Equal(t, 90*time.Second, store.Current().ReportTimeout())
}

func TestStoreConcurrentReadsDuringReplace(t *testing.T) {
	store := NewStore(&Config{Report: ReportConfig{PlatformPrefix: "N"}})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				assert.NotEmpty(t, store.Current().AcceptedPlatformPrefix())
			}
		}()
	}
	for i := 0; i < 50; i++ {
		store.Replace(&Config{Report: ReportConfig{PlatformPrefix: "N", TimeoutSec: i}})
	}
	wg.Wait()
}

func TestStaticConfigIsItsOwnSnapshot(t *testing.T) {
	cfg := &Config{}
	var p Provider = cfg
	assert.Same(t, cfg, p.Current())
}
