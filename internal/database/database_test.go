package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gsnap/extension/internal/config"
)

type window struct {
	X, Y, Width, Height int
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m := NewManager(config.DBConfig{
		Type:       "sqlite",
		SqlitePath: filepath.Join(t.TempDir(), "settings.db"),
	}, zerolog.Nop())
	require.NoError(t, m.Connect())
	require.NoError(t, m.Setup())
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestManager_GetMissingKey(t *testing.T) {
	m := newTestManager(t)

	var w window
	found, err := m.Get(context.Background(), "windowGeometry", &w)

	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, window{}, w)
}

func TestManager_SetThenGet(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "windowGeometry", window{X: 10, Y: 20, Width: 300, Height: 400}))

	var w window
	found, err := m.Get(ctx, "windowGeometry", &w)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, window{X: 10, Y: 20, Width: 300, Height: 400}, w)
}

func TestManager_SetOverwrites(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "scale", 3))
	require.NoError(t, m.Set(ctx, "scale", 7))

	var v int
	_, err := m.Get(ctx, "scale", &v)
	require.NoError(t, err)
	assert.Equal(t, 7, v)

	var count int64
	require.NoError(t, m.DB.Model(&Setting{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestManager_SurvivesReconnect(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.db")
	cfg := config.DBConfig{Type: "sqlite", SqlitePath: path}

	first := NewManager(cfg, zerolog.Nop())
	require.NoError(t, first.Connect())
	require.NoError(t, first.Setup())
	require.NoError(t, first.Set(context.Background(), "windowGeometry", window{Width: 640}))
	require.NoError(t, first.Close())

	second := NewManager(cfg, zerolog.Nop())
	require.NoError(t, second.Connect())
	require.NoError(t, second.Setup())
	t.Cleanup(func() { _ = second.Close() })

	var w window
	found, err := second.Get(context.Background(), "windowGeometry", &w)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 640, w.Width)
}

func TestManager_NotConnected(t *testing.T) {
	m := NewManager(config.DBConfig{Type: "sqlite"}, zerolog.Nop())

	_, err := m.Get(context.Background(), "k", new(int))
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.ErrorIs(t, m.Set(context.Background(), "k", 1), ErrNotConnected)
	assert.ErrorIs(t, m.Setup(), ErrNotConnected)
	assert.NoError(t, m.Close())
}

func TestManager_UnknownType(t *testing.T) {
	m := NewManager(config.DBConfig{Type: "mysql"}, zerolog.Nop())

	assert.EqualError(t, m.Connect(), "unknown database type: mysql")
}

func TestManager_PostgresFallsBackToSqlite(t *testing.T) {
	m := NewManager(config.DBConfig{
		Type:       "postgres",
		Host:       "127.0.0.1",
		Port:       "1",
		Username:   "gsnap",
		Password:   "gsnap",
		Database:   "gsnap",
		SqlitePath: filepath.Join(t.TempDir(), "fallback.db"),
	}, zerolog.Nop())
	t.Cleanup(func() { _ = m.Close() })

	require.NoError(t, m.Connect())
	require.NoError(t, m.Setup())

	assert.True(t, m.UsingSqlite)
	assert.Equal(t, "sqlite", m.DB.Dialector.Name())
}
