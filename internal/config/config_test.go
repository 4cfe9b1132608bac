package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, "memory", cfg.DataBackend)
	assert.Equal(t, "memory", cfg.MediaBackend)
	assert.Equal(t, 15*time.Minute, cfg.MediaURLTTL)
	assert.Equal(t, int64(50<<20), cfg.MaxFileSize)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.Empty(t, cfg.TrustedProxies)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("JWT_EXPIRY", "2h")
	t.Setenv("MEDIA_BACKEND", "S3")
	t.Setenv("MEDIA_BUCKET", "muvico-media")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 192.168.1.10")

	cfg, err := load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.HTTPPort)
	assert.Equal(t, 2*time.Hour, cfg.JWTExpiry)
	assert.Equal(t, "s3", cfg.MediaBackend)
	assert.Equal(t, "muvico-media", cfg.MediaBucket)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, []string{"10.0.0.0/8", "192.168.1.10"}, cfg.TrustedProxies)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "missing secret", env: map[string]string{}},
		{name: "postgres without url", env: map[string]string{"JWT_SECRET": "s", "DATA_BACKEND": "postgres"}},
		{name: "unknown data backend", env: map[string]string{"JWT_SECRET": "s", "DATA_BACKEND": "mongo"}},
		{name: "bucket required", env: map[string]string{"JWT_SECRET": "s", "MEDIA_BACKEND": "gcs"}},
		{name: "unknown media backend", env: map[string]string{"JWT_SECRET": "s", "MEDIA_BACKEND": "drive"}},
		{name: "non-positive limits", env: map[string]string{"JWT_SECRET": "s", "MAX_FILE_SIZE": "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("JWT_SECRET", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := load(viper.New())
			assert.Error(t, err)
		})
	}
}
