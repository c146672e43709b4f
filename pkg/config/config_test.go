package config

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"choicegraph/pkg/saver"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, BackendFile, cfg.Saves.Backend)
	assert.True(t, cfg.AutoSave)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, []string{"http://localhost:3003"}, cfg.HTTP.AllowedOrigins)
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("CHOICEGRAPH_SAVES_BACKEND", "SQLite")
	t.Setenv("CHOICEGRAPH_RUNTIME_AUTOSAVE", "false")
	t.Setenv("CHOICEGRAPH_HTTP_ALLOWED_ORIGINS", "http://a.test, http://b.test")
	t.Setenv("CHOICEGRAPH_DATABASE_URL", "postgres://localhost/story")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, BackendSQLite, cfg.Saves.Backend)
	assert.False(t, cfg.AutoSave)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.HTTP.AllowedOrigins)
	assert.Equal(t, "postgres://localhost/story", cfg.DatabaseURL)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "choicegraph.yaml")
	yaml := "log:\n  level: debug\n  format: text\nsaves:\n  backend: badger\n  badger_path: /tmp/story\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, BackendBadger, cfg.Saves.Backend)
	assert.Equal(t, "/tmp/story", cfg.Saves.BadgerPath)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"ok", Config{Saves: Saves{Backend: BackendFile}, Log: Log{Format: "json"}}, false},
		{"text logs", Config{Saves: Saves{Backend: BackendBadger}, Log: Log{Format: "TEXT"}}, false},
		{"unknown backend", Config{Saves: Saves{Backend: "redis"}, Log: Log{Format: "json"}}, true},
		{"unknown format", Config{Saves: Saves{Backend: BackendFile}, Log: Log{Format: "xml"}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger("warn", "text", &buf)
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown", "slot", 2)
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "msg=shown slot=2")

	buf.Reset()
	logger, err = NewLogger("debug", "", &buf)
	require.NoError(t, err)
	logger.Debug("json")
	assert.Contains(t, buf.String(), `"msg":"json"`)

	_, err = NewLogger("loud", "json", &buf)
	assert.Error(t, err)
	_, err = NewLogger("info", "xml", &buf)
	assert.Error(t, err)
}

func TestOpenSaver(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	backends := []Saves{
		{Backend: BackendFile, Dir: dir},
		{Backend: BackendSQLite, SQLitePath: filepath.Join(dir, "saves.db")},
		{Backend: BackendBadger},
	}
	for _, s := range backends {
		t.Run(s.Backend, func(t *testing.T) {
			sv, closeFn, err := s.OpenSaver(ctx, "story", nil)
			require.NoError(t, err)
			defer func() { assert.NoError(t, closeFn()) }()

			require.NoError(t, sv.Save(ctx, 1, saver.SaveData{CurrentNode: "n3", History: []string{"n1"}}))
			data, ok, err := sv.Load(ctx, 1)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, "n3", data.CurrentNode)
		})
	}

	t.Run("file backend namespaces by story", func(t *testing.T) {
		_, err := os.Stat(filepath.Join(dir, "story", "save_slot_1.json"))
		assert.NoError(t, err)
	})

	t.Run("unknown backend", func(t *testing.T) {
		_, _, err := Saves{Backend: "tape"}.OpenSaver(ctx, "", nil)
		assert.Error(t, err)
	})
}
