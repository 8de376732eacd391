package configs_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/cloudvault/pkg/configs"
)

func TestInitConfigDefaults(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, configs.InitConfig(dir))

	cfg := configs.GetConfig()
	assert.Equal(t, configs.SQLite, cfg.DB.Type)
	assert.Equal(t, configs.BlobTypeLocal, cfg.Blob.Type)
	assert.Equal(t, configs.KVTypeMemory, cfg.KV.Type)
	assert.Equal(t, configs.MQTypeMemory, cfg.MQ.Type)
	assert.Equal(t, configs.DefaultMaxFileSize, cfg.Upload.MaxFileSize)
	assert.Equal(t, configs.DefaultQuotaBytes, cfg.Quota.DefaultBytes)
	assert.Equal(t, "accessToken", cfg.Auth.CookieName)
	assert.Equal(t, 3600, cfg.Upload.SignedURLExpiry)
	assert.Equal(t, "localhost:9000", cfg.Blob.Minio.Endpoint)

	require.NoError(t, configs.Validate())
}

func TestInitConfigFromYAML(t *testing.T) {
	dir := t.TempDir()
	content := []byte(`
server:
  port: 9999
  reload_config: false
blob:
  type: b2
  bucket: my-bucket
  b2:
    key_id: kid
quota:
  default_bytes: 1000
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), content, 0o600))

	require.NoError(t, configs.InitConfig(dir))

	cfg := configs.GetConfig()
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, configs.BlobTypeB2, cfg.Blob.Type)
	assert.Equal(t, "my-bucket", cfg.Blob.Bucket)
	assert.Equal(t, "kid", cfg.Blob.B2.KeyID)
	assert.Equal(t, configs.DefaultB2APIURL, cfg.Blob.B2.APIURL)
	assert.EqualValues(t, 1000, cfg.Quota.DefaultBytes)
}

func TestInitConfigEnvOverride(t *testing.T) {
	t.Setenv("CLOUDVAULT_DB_TYPE", "postgresql")
	t.Setenv("CLOUDVAULT_UPLOAD_DOWNLOAD_SECRET", "s3cret")

	require.NoError(t, configs.InitConfig(t.TempDir()))

	cfg := configs.GetConfig()
	assert.Equal(t, configs.PostgreSQL, cfg.DB.Type)
	assert.Equal(t, "s3cret", cfg.Upload.DownloadSecret)
}

func TestValidateRejectsUnknownBackend(t *testing.T) {
	require.NoError(t, configs.InitConfig(t.TempDir()))

	cfg := configs.GetConfig()
	cfg.Blob.Type = "ftp"

	assert.Error(t, configs.Validate())
}

func TestInitConfigServiceDefaults(t *testing.T) {
	require.NoError(t, configs.InitConfig(t.TempDir()))

	cfg := configs.GetConfig()
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
	assert.Equal(t, 15*time.Second, cfg.Server.ShutdownGrace)
	assert.Equal(t, configs.ExporterOTLPHTTP, cfg.Tracing.ExporterType)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.Equal(t, configs.LogFormatConsole, cfg.Log.Format)
	assert.Equal(t, 5*time.Second, cfg.DB.BusyTimeout)
	assert.Contains(t, cfg.RateLimit.ExcludePaths, "/api/v1/health")
	assert.Equal(t, "cloudvault:", cfg.KV.Redis.KeyPrefix)
}
