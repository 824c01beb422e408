package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dfryer1193/retrolaminate/internal/config"
)

func envFrom(m map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
listen: ":9000"
log:
  level: debug
storage:
  driver: sqlite
  blob_dir: /var/lib/retrolaminate/blobs
gemini:
  api_key: from-file
  timeout: 90s
editor:
  history_capacity: 50
`), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Listen)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, config.StorageSQLite, cfg.Storage.Driver)
	assert.Equal(t, "/var/lib/retrolaminate/blobs", cfg.Storage.BlobDir)
	assert.Equal(t, "./retrolaminate.db", cfg.Storage.DBPath)
	assert.Equal(t, 90*time.Second, cfg.Gemini.Timeout)
	assert.Equal(t, "gemini-2.5-flash-image", cfg.Gemini.Model)
	assert.Equal(t, 50, cfg.Editor.HistoryCapacity)
	assert.Equal(t, int64(20<<20), cfg.MaxUploadBytes())
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("listen: [unterminated"), 0o600))

	_, err := config.Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	_, err = config.Load(bad)
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	tests := map[string]struct {
		env    map[string]string
		check  func(t *testing.T, cfg *config.Config)
		expErr bool
	}{
		"GEMINI_API_KEY should win over API_KEY.": {
			env: map[string]string{"API_KEY": "generic", "GEMINI_API_KEY": "specific"},
			check: func(t *testing.T, cfg *config.Config) {
				assert.Equal(t, "specific", cfg.Gemini.APIKey)
			},
		},
		"API_KEY alone should be used.": {
			env: map[string]string{"API_KEY": "generic"},
			check: func(t *testing.T, cfg *config.Config) {
				assert.Equal(t, "generic", cfg.Gemini.APIKey)
			},
		},
		"Prefixed variables should override fields.": {
			env: map[string]string{
				"SQLITE_DB_PATH":                 "/data/r.db",
				"RETROLAMINATE_STORAGE_DRIVER":   "sqlite",
				"RETROLAMINATE_GEMINI_TIMEOUT":   "2m",
				"RETROLAMINATE_HISTORY_CAPACITY": "10",
				"RETROLAMINATE_KEEP_ASSETS":      "true",
				"RETROLAMINATE_LOG_FORMAT":       "json",
			},
			check: func(t *testing.T, cfg *config.Config) {
				assert.Equal(t, "/data/r.db", cfg.Storage.DBPath)
				assert.Equal(t, config.StorageSQLite, cfg.Storage.Driver)
				assert.Equal(t, 2*time.Minute, cfg.Gemini.Timeout)
				assert.Equal(t, 10, cfg.Editor.HistoryCapacity)
				assert.True(t, cfg.Storage.KeepAssets)
				assert.Equal(t, "json", cfg.Log.Format)
			},
		},
		"An invalid duration should fail.": {
			env:    map[string]string{"RETROLAMINATE_GEMINI_TIMEOUT": "soon"},
			expErr: true,
		},
		"An invalid capacity should fail.": {
			env:    map[string]string{"RETROLAMINATE_HISTORY_CAPACITY": "many"},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := config.Default()
			err := cfg.ApplyEnv(envFrom(test.env))

			if test.expErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			test.check(t, cfg)
		})
	}
}

func TestValidate(t *testing.T) {
	valid := func() *config.Config {
		cfg := config.Default()
		cfg.Gemini.APIKey = "key"
		return cfg
	}

	tests := map[string]struct {
		mutate func(cfg *config.Config)
		expErr bool
	}{
		"The defaults with a key should be valid.": {
			mutate: func(*config.Config) {},
		},
		"A missing API key should be invalid.": {
			mutate: func(cfg *config.Config) { cfg.Gemini.APIKey = "" },
			expErr: true,
		},
		"An unknown storage driver should be invalid.": {
			mutate: func(cfg *config.Config) { cfg.Storage.Driver = "s3" },
			expErr: true,
		},
		"SQLite without a blob dir should be invalid.": {
			mutate: func(cfg *config.Config) {
				cfg.Storage.Driver = config.StorageSQLite
				cfg.Storage.BlobDir = ""
			},
			expErr: true,
		},
		"A history capacity of one should be invalid.": {
			mutate: func(cfg *config.Config) { cfg.Editor.HistoryCapacity = 1 },
			expErr: true,
		},
		"A negative timeout should be invalid.": {
			mutate: func(cfg *config.Config) { cfg.Gemini.Timeout = -time.Second },
			expErr: true,
		},
		"An unknown log format should be invalid.": {
			mutate: func(cfg *config.Config) { cfg.Log.Format = "xml" },
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := valid()
			test.mutate(cfg)

			err := cfg.Validate()
			if test.expErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
