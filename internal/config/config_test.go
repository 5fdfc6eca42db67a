package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testUploadConfig = `
profiles:
  default:
    concurrency: 4
  avatar:
    accept: "image/*"
    multiple: false
    single_image_mode: true
    progress_interval: 250ms
    token_ttl_seconds: 60
    max_files: 1
    preview:
      enabled: true
      convert_to: webp
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "upload-config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("API_KEY", "secret")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example,")

	cfg := Load()

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "secret", cfg.APIKey)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, "uploadflow.db", cfg.DBPath)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
}

func TestLoadUploadConfig(t *testing.T) {
	uc, err := LoadUploadConfig(writeConfig(t, testUploadConfig))
	require.NoError(t, err)

	avatar := uc.GetProfile("avatar")
	assert.Equal(t, "image/*", avatar.Accept)
	assert.False(t, avatar.IsMultiple())
	assert.True(t, avatar.SingleImageMode)
	assert.Equal(t, 250*time.Millisecond, avatar.ProgressInterval)
	assert.Equal(t, time.Minute, avatar.TokenTTL())
	assert.Equal(t, 1, avatar.MaxFiles)
	assert.True(t, avatar.Preview.Enabled)
	assert.Equal(t, "webp", avatar.Preview.ConvertTo)
	// unset fields come from the defaults
	assert.Equal(t, 256, avatar.Preview.Width)
	assert.Equal(t, DefaultProfile().PathTemplate, avatar.PathTemplate)

	fallback := uc.GetProfile("unknown")
	assert.Equal(t, 4, fallback.Concurrency)
	assert.True(t, fallback.IsMultiple())
	assert.Equal(t, int64(900), fallback.TokenTTLSeconds)
}

func TestGetProfile_BuiltinDefault(t *testing.T) {
	uc := &UploadConfig{}

	p := uc.GetProfile("anything")
	assert.Equal(t, DefaultProfile(), p)
	assert.True(t, p.IsMultiple())
}

func TestLoadUploadConfig_Errors(t *testing.T) {
	_, err := LoadUploadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = LoadUploadConfig(writeConfig(t, "profiles: [unclosed"))
	assert.Error(t, err)
}

func TestLoadUploadConfig_MissingDefaultFile(t *testing.T) {
	t.Chdir(t.TempDir())

	uc, err := LoadUploadConfig("")
	require.NoError(t, err)
	assert.Empty(t, uc.Profiles)
}

func TestUploadConfigPath(t *testing.T) {
	t.Setenv("UPLOAD_CONFIG_PATH", "")
	assert.Equal(t, "upload-config.yaml", UploadConfigPath())

	t.Setenv("UPLOAD_CONFIG_PATH", "/etc/uploadflow.yaml")
	assert.Equal(t, "/etc/uploadflow.yaml", UploadConfigPath())
}
