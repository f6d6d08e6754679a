package rag

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aanchal1903/BusinessOps-Chatbot/config"
	"github.com/aanchal1903/BusinessOps-Chatbot/memory"
	"github.com/aanchal1903/BusinessOps-Chatbot/rag/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Database.DSN = filepath.Join(dir, "db", "talent.db")
	cfg.Chain.Tokenizer = "simple"
	cfg.Matcher.PersistDir = ""
	cfg.ChatStore.PersistPath = filepath.Join(dir, "chats", "chat_store.json")
	return cfg
}

func TestNewRuntime(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	reg := prometheus.NewRegistry()

	rt, err := NewRuntime(ctx, cfg, quietLogger(), reg)
	require.NoError(t, err)

	require.NoError(t, rt.Seed(ctx))
	n, err := rt.IndexProfiles(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 10, n)
	assert.Equal(t, 10, rt.Store.Count())
	assert.Equal(t, float64(10), testutil.ToFloat64(rt.Metrics.MatcherProfilesSize))

	require.NoError(t, rt.EnsureIndexed(ctx))
	assert.Equal(t, 10, rt.Store.Count())

	resp := rt.System.ProcessQuery(ctx, Query{})
	assert.ErrorIs(t, resp.Err, ErrEmptyQuestion)

	require.NoError(t, rt.Chats.AppendTurns(ctx, "u1", "c1", memory.NewUserTurn("hello")))
	require.NoError(t, rt.Close())

	_, err = os.Stat(cfg.ChatStore.PersistPath)
	assert.NoError(t, err)
	_, err = os.Stat(cfg.Database.DSN)
	assert.NoError(t, err)
}

func TestNewRuntime_MemoryVectorStore(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.Matcher.Store = "memory"
	cfg.Matcher.PersistDir = filepath.Join(t.TempDir(), "chromem")

	rt, err := NewRuntime(ctx, cfg, quietLogger(), nil)
	require.NoError(t, err)
	defer rt.Close()

	assert.IsType(t, &store.SimpleVectorStore{}, rt.Store)
	require.NoError(t, rt.Seed(ctx))
	require.NoError(t, rt.EnsureIndexed(ctx))
	assert.Equal(t, 10, rt.Store.Count())

	_, err = os.Stat(cfg.Matcher.PersistDir)
	assert.True(t, os.IsNotExist(err))
}

func TestNewRuntime_InvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database.Driver = "mysql"

	_, err := NewRuntime(context.Background(), cfg, quietLogger(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.driver")
}

func TestRuntime_IndexProfilesFromCSV(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	csvPath := filepath.Join(t.TempDir(), "profiles.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(
		"id,profile_name,job_title,key_skill\n"+
			"1,Aditya Sharma,Go Developer,\"Go, Kafka\"\n"+
			"2,Kavya Menon,React Developer,\"React, TypeScript\"\n"), 0644))
	cfg.Matcher.ProfilesCSV = csvPath

	rt, err := NewRuntime(ctx, cfg, quietLogger(), nil)
	require.NoError(t, err)
	defer rt.Close()

	require.NoError(t, rt.EnsureIndexed(ctx))
	assert.Equal(t, 2, rt.Store.Count())
}
