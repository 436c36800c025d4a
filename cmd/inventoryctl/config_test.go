package main

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/inventory-admin/internal/client"
	"github.com/iliyamo/inventory-admin/internal/session"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server: https://inventory.example.com
storage:
  kind: redis
  redis:
    addr: cache:6379
    scope: alice
`), 0o600))

	cfg, err := loadConfig(path, true)
	require.NoError(t, err)
	assert.Equal(t, "https://inventory.example.com", cfg.Server)
	assert.Equal(t, "redis", cfg.Storage.Kind)
	assert.Equal(t, "cache:6379", cfg.Storage.Redis.Addr)
	assert.Equal(t, "alice", cfg.Storage.Redis.Scope)
	assert.NotEmpty(t, cfg.Storage.Path, "unset fields keep their defaults")
}

func TestLoadConfigMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope.yaml")

	cfg, err := loadConfig(path, false)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", cfg.Server)

	_, err = loadConfig(path, true)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unterminated"), 0o600))

	_, err := loadConfig(path, true)
	assert.Error(t, err)
}

func TestOpenStorage(t *testing.T) {
	var s storageConfig
	s.Kind, s.Path = "file", filepath.Join(t.TempDir(), "session.json")
	st, closeFn, err := openStorage(s)
	require.NoError(t, err)
	defer closeFn()
	assert.IsType(t, &session.FileStorage{}, st)

	s.Kind = "floppy"
	_, _, err = openStorage(s)
	assert.Error(t, err)
}

func TestStatusWithoutSession(t *testing.T) {
	var out bytes.Buffer
	sessionPath := filepath.Join(t.TempDir(), "session.json")
	err := run([]string{"--config", "", "--session-file", sessionPath, "status"}, nil, &out)
	require.NoError(t, err)
	assert.Equal(t, "not logged in\n", out.String())
}

func TestUnknownCommand(t *testing.T) {
	sessionPath := filepath.Join(t.TempDir(), "session.json")
	err := run([]string{"--config", "", "--session-file", sessionPath, "frobnicate"}, nil, &bytes.Buffer{})
	assert.ErrorContains(t, err, "unknown command")
}

type readOnlyStorage struct{}

func (readOnlyStorage) GetItem(context.Context, string) (string, bool, error) { return "", false, nil }
func (readOnlyStorage) SetItem(context.Context, string, string) error { return errors.New("read-only") }
func (readOnlyStorage) RemoveItem(context.Context, string) error { return nil }

func TestResourceLogsTabWriteFailure(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	c, err := client.New("http://127.0.0.1:1", readOnlyStorage{}, client.WithLogger(logger))
	require.NoError(t, err)

	cmd := &command{c: c, out: &bytes.Buffer{}, logger: logger}
	err = cmd.resource(context.Background(), "list", []string{"hardware"})
	assert.ErrorIs(t, err, client.ErrReauthRequired)
	assert.Contains(t, logs.String(), "remember current tab failed")
	assert.Contains(t, logs.String(), "tab=hardware")
}
