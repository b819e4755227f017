package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/boleto-drafts/pkg/storage"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, int64(10<<20), cfg.Server.MaxUploadBytes)
	assert.Empty(t, cfg.Server.CORSOrigins)
	assert.Equal(t, storage.StorageTypeLocal, cfg.Storage.Type)
	assert.Equal(t, 30*24*time.Hour, cfg.Drafts.Retention())
	assert.Equal(t, "0 3 * * *", cfg.Drafts.PurgeSchedule)
	assert.Equal(t, slog.LevelInfo, cfg.Log.SlogLevel())
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com,")
	t.Setenv("MAX_UPLOAD_MB", "2")
	t.Setenv("DRAFT_RETENTION_DAYS", "0")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("POSTGRES_HOST", "db")
	t.Setenv("POSTGRES_DB", "ledger")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.Server.CORSOrigins)
	assert.Equal(t, int64(2<<20), cfg.Server.MaxUploadBytes)
	assert.Zero(t, cfg.Drafts.Retention())
	assert.Equal(t, slog.LevelDebug, cfg.Log.SlogLevel())
	assert.Contains(t, cfg.Database.DSN(), "host=db")
	assert.Contains(t, cfg.Database.DSN(), "dbname=ledger")
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"s3 without bucket", map[string]string{"STORAGE_TYPE": "s3"}},
		{"unknown storage", map[string]string{"STORAGE_TYPE": "ftp"}},
		{"negative retention", map[string]string{"DRAFT_RETENTION_DAYS": "-1"}},
		{"zero upload limit", map[string]string{"MAX_UPLOAD_MB": "0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
