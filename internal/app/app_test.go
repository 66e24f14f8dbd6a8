package app_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/kiranshivaraju/vidlens/internal/app"
	"github.com/kiranshivaraju/vidlens/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func testConfig(t *testing.T, redisURL string) *config.Config {
	t.Helper()
	root := t.TempDir()
	return &config.Config{
		Server: config.ServerConfig{AllowedPlatforms: []string{"instagram"}},
		Database: config.DatabaseConfig{
			URL: "sqlite://" + filepath.Join(root, "data", "vidlens.db"),
		},
		Redis: config.RedisConfig{URL: redisURL, ProbeCacheTTL: time.Minute},
		Storage: config.StorageConfig{
			UploadDir:   filepath.Join(root, "videos"),
			ResultsDir:  filepath.Join(root, "results"),
			TempDir:     filepath.Join(root, "temp"),
			MaxFileSize: 1 << 20,
		},
		AI: config.AIConfig{
			Provider:     "gemini",
			PollInterval: time.Second,
			Gemini:       config.GeminiConfig{APIKey: "test-key"},
		},
	}
}

func TestBuild_FailsOnUnreachableRedis(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	a, err := app.Build(ctx, testConfig(t, "redis://127.0.0.1:1"), app.Options{})
	require.Error(t, err)
	assert.Nil(t, a)
	assert.Contains(t, err.Error(), "ping redis")
}

func TestBuild_FailsOnBadRedisURL(t *testing.T) {
	_, err := app.Build(context.Background(), testConfig(t, "not-a-url"), app.Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create redis cache")
}

func TestBuild(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, container.Terminate(ctx)) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	a, err := app.Build(ctx, testConfig(t, "redis://"+host+":"+port.Port()), app.Options{Resume: true})
	require.NoError(t, err)
	defer a.Close()

	require.NoError(t, a.Store.Ping(ctx))
	stats, err := a.Jobs.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalJobs)

	require.NoError(t, a.Shutdown(ctx))
}
