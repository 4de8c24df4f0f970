package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSystemKeys(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected map[string]string
	}{
		{
			name:     "single pair",
			input:    "demo:demo_secret_key_000",
			expected: map[string]string{"demo": "demo_secret_key_000"},
		},
		{
			name:  "multiple pairs with spaces",
			input: "demo:key1, ops:key2",
			expected: map[string]string{
				"demo": "key1",
				"ops":  "key2",
			},
		},
		{
			name:     "malformed entries skipped",
			input:    "demo:key1,broken,:nokey,noname:",
			expected: map[string]string{"demo": "key1"},
		},
		{
			name:     "empty input",
			input:    "",
			expected: map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseSystemKeys(tt.input))
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("FEISHU_APP_ID", "cli_test")
	t.Setenv("FEISHU_APP_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "development", cfg.Service.Environment)
	assert.Equal(t, "https://open.feishu.cn", cfg.Feishu.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.Feishu.Timeout)
	assert.Equal(t, 3, cfg.Feishu.MaxRetries)
	assert.Equal(t, "Asia/Shanghai", cfg.Feishu.Timezone)
	assert.Equal(t, map[string]string{"demo": "demo_secret_key_000"}, cfg.SystemKeys)
	assert.Contains(t, cfg.CORS.AllowedOrigins, "https://ai520510xyf-del.github.io")
}

func TestLoadRequiresFeishuCredentials(t *testing.T) {
	t.Setenv("FEISHU_APP_ID", "")
	t.Setenv("FEISHU_APP_SECRET", "")

	_, err := Load()
	require.Error(t, err)
}
