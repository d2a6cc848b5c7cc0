package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configEnvVars = []string{
	"EXPENSE_SERVER_PORT", "EXPENSE_SERVER_READ_TIMEOUT",
	"EXPENSE_SECURITY_ALLOWED_ORIGINS", "EXPENSE_SECURITY_ENABLE_CORS",
	"EXPENSE_LOGGING_LEVEL", "EXPENSE_LOGGING_OUTPUT",
	"EXPENSE_ANALYSIS_HORIZON", "EXPENSE_ANALYSIS_FILL_GAPS", "EXPENSE_ANALYSIS_CONFIDENCE_LEVEL",
	"EXPENSE_ANALYSIS_WORKERS", "EXPENSE_UPLOAD_MAX_BYTES",
	"EXPENSE_SHEETS_ENABLED", "EXPENSE_SHEETS_SPREADSHEET_ID",
}

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, name := range configEnvVars {
		t.Setenv(name, "")
		os.Unsetenv(name)
	}
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// TestLoad tests the Load function with various scenarios
func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		env         map[string]string
		file        string
		wantErr     string
		validateCfg func(*testing.T, *Config)
	}{
		{
			name: "defaults",
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
				assert.Equal(t, []string{"http://localhost:8080"}, cfg.Security.AllowedOrigins)
				assert.True(t, cfg.Security.RateLimit.Enabled)
				assert.Equal(t, 6, cfg.Analysis.Horizon)
				assert.False(t, cfg.Analysis.FillGaps)
				assert.Equal(t, 0.8, cfg.Analysis.ConfidenceLevel)
				assert.Equal(t, 30*time.Minute, cfg.Cache.DatasetTTL)
				assert.Equal(t, int64(10<<20), cfg.Upload.MaxBytes)
				assert.Equal(t, "json", cfg.Logging.Format)
				assert.Equal(t, "both", cfg.Logging.Output)
			},
		},
		{
			name: "environment overrides",
			env: map[string]string{
				"EXPENSE_SERVER_PORT":               "9090",
				"EXPENSE_ANALYSIS_HORIZON":          "12",
				"EXPENSE_ANALYSIS_FILL_GAPS":        "true",
				"EXPENSE_ANALYSIS_CONFIDENCE_LEVEL": "0.95",
				"EXPENSE_SECURITY_ALLOWED_ORIGINS":  "http://a.test,http://b.test",
				"EXPENSE_LOGGING_LEVEL":             "DEBUG",
			},
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 9090, cfg.Server.Port)
				assert.Equal(t, 12, cfg.Analysis.Horizon)
				assert.True(t, cfg.Analysis.FillGaps)
				assert.Equal(t, 0.95, cfg.Analysis.ConfidenceLevel)
				assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Security.AllowedOrigins)
				assert.Equal(t, "debug", cfg.Logging.Level)
			},
		},
		{
			name: "file values under environment",
			env:  map[string]string{"EXPENSE_SERVER_PORT": "7070"},
			file: "server:\n  port: 6060\n  read_timeout: 20s\nanalysis:\n  horizon: 9\ncache:\n  dataset_ttl: 5m\n",
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 7070, cfg.Server.Port, "env wins over file")
				assert.Equal(t, 20*time.Second, cfg.Server.ReadTimeout)
				assert.Equal(t, 9, cfg.Analysis.Horizon)
				assert.Equal(t, 5*time.Minute, cfg.Cache.DatasetTTL)
				assert.Equal(t, 0.8, cfg.Analysis.ConfidenceLevel, "unset keys keep defaults")
			},
		},
		{
			name:    "horizon out of range",
			env:     map[string]string{"EXPENSE_ANALYSIS_HORIZON": "30"},
			wantErr: "horizon",
		},
		{
			name:    "confidence out of range",
			env:     map[string]string{"EXPENSE_ANALYSIS_CONFIDENCE_LEVEL": "1.5"},
			wantErr: "confidence_level",
		},
		{
			name:    "invalid port",
			env:     map[string]string{"EXPENSE_SERVER_PORT": "70000"},
			wantErr: "invalid server port",
		},
		{
			name:    "sheets without spreadsheet",
			env:     map[string]string{"EXPENSE_SHEETS_ENABLED": "true"},
			wantErr: "spreadsheet id",
		},
		{
			name:    "malformed env value",
			env:     map[string]string{"EXPENSE_ANALYSIS_WORKERS": "many"},
			wantErr: "failed to load config from env",
		},
		{
			name:    "malformed file",
			file:    "server: [unterminated",
			wantErr: "failed to load config from file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearConfigEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			path := ""
			if tt.file != "" {
				path = writeConfigFile(t, tt.file)
			}

			cfg, err := Load(path)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.validateCfg(t, cfg)
		})
	}
}

// TestDefault tests the default configuration is valid on its own
func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.validate())
	assert.NoError(t, cfg.Analysis.EngineConfig().Validate())
	assert.Equal(t, SupportedUploadExtensions, cfg.Upload.AllowedExtensions)
}

// TestValidateNormalizesLogging tests logging fields are coerced
func TestValidateNormalizesLogging(t *testing.T) {
	cfg := Default()
	cfg.Logging.Format = "text"
	cfg.Logging.Output = "syslog"
	cfg.Logging.FilePath = ""
	cfg.Analysis.Workers = 0

	require.NoError(t, cfg.validate())
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "both", cfg.Logging.Output)
	assert.Equal(t, "logs/app.log", cfg.Logging.FilePath)
	assert.Equal(t, 1, cfg.Analysis.Workers)
}
