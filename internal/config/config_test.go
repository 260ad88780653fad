package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chriszimbizi/study-buddy/internal/core"
)

func TestLoadFailsWithoutAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	err := Load()
	require.Error(t, err)
	assert.Equal(t, core.ErrorKindConfiguration, core.KindOf(err))
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")

	require.NoError(t, Load())

	assert.Equal(t, "8080", AppConfig.HTTPPort)
	assert.Equal(t, "gpt-4o-mini", AppConfig.AssistantModel)
	assert.Equal(t, []string{"pdf", "docx", "txt"}, AppConfig.AllowedFileTypes)
	assert.Equal(t, 2*time.Second, AppConfig.RunPollInterval)
	assert.Equal(t, 2*time.Minute, AppConfig.RunTimeout)
	assert.False(t, AppConfig.UseInMemoryStore)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("ALLOWED_FILE_TYPES", "PDF, md ,txt")
	t.Setenv("RUN_POLL_INTERVAL", "250ms")
	t.Setenv("RUN_TIMEOUT", "45s")
	t.Setenv("MAX_UPLOAD_BYTES", "1024")
	t.Setenv("USE_IN_MEMORY_STORE", "true")

	require.NoError(t, Load())

	assert.Equal(t, "9090", AppConfig.HTTPPort)
	assert.Equal(t, []string{"pdf", "md", "txt"}, AppConfig.AllowedFileTypes)
	assert.Equal(t, 250*time.Millisecond, AppConfig.RunPollInterval)
	assert.Equal(t, 45*time.Second, AppConfig.RunTimeout)
	assert.Equal(t, int64(1024), AppConfig.MaxUploadBytes)
	assert.True(t, AppConfig.UseInMemoryStore)
}

func TestLoadIgnoresInvalidTunables(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("RUN_POLL_INTERVAL", "not-a-duration")
	t.Setenv("RUN_TIMEOUT", "-5s")
	t.Setenv("MAX_UPLOAD_BYTES", "many")

	require.NoError(t, Load())

	assert.Equal(t, 2*time.Second, AppConfig.RunPollInterval)
	assert.Equal(t, 2*time.Minute, AppConfig.RunTimeout)
	assert.Equal(t, int64(20*1024*1024), AppConfig.MaxUploadBytes)
}
