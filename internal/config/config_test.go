package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	for _, key := range []string{
		"SERVER_PORT", "REGISTRY_PATH", "PATCH_NAMESPACE", "PRESENTER", "REPORTER_WORKERS",
		"REPORTER_QUEUE_SIZE", "MAX_CAUSE_DEPTH", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
		"LOG_LEVEL", "JOURNAL_CAPACITY", "IGNORED_OWNERS",
	} {
		t.Setenv(key, "")
	}

	assert.Equal(t, ":8080", ServerAddr())
	assert.Equal(t, "config/conflict_mediator_registry.json", RegistryPath())
	assert.Equal(t, "mixin", PatchNamespace())
	assert.Equal(t, "queue", Presenter())
	assert.Equal(t, 2, ReporterWorkers())
	assert.Equal(t, 64, ReporterQueueSize())
	assert.Equal(t, 32, MaxCauseDepth())
	assert.Equal(t, 50.0, RateLimitRPS())
	assert.Equal(t, 20, RateLimitBurst())
	assert.Equal(t, "info", LogLevel())
	assert.Equal(t, 256, JournalCapacity())
	assert.Empty(t, IgnoredOwners())
}

func TestOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("PRESENTER", "NONE")
	t.Setenv("REPORTER_WORKERS", "-3")
	t.Setenv("IGNORED_OWNERS", " forge, minecraft ,,")
	t.Setenv("RATE_LIMIT_RPS", "2.5")

	assert.Equal(t, 9090, ServerPort())
	assert.Equal(t, "none", Presenter())
	assert.Equal(t, 2, ReporterWorkers())
	assert.Equal(t, []string{"forge", "minecraft"}, IgnoredOwners())
	assert.Equal(t, 2.5, RateLimitRPS())
}

func TestLoadReadsEnvAndSecret(t *testing.T) {
	dir := t.TempDir()
	env := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(env, []byte("PATCH_NAMESPACE=asm\n"), 0o644))
	require.NoError(t, os.WriteFile(env+".secret", []byte("OPERATOR_TOKEN=s3cret\n"), 0o644))

	t.Setenv("MEDIATOR_ENV", env)
	// godotenv never overrides variables that are already set, so register
	// the keys with t.Setenv for cleanup and then clear them.
	t.Setenv("PATCH_NAMESPACE", "")
	t.Setenv("OPERATOR_TOKEN", "")
	os.Unsetenv("PATCH_NAMESPACE")
	os.Unsetenv("OPERATOR_TOKEN")

	require.NoError(t, Load())
	assert.Equal(t, "asm", PatchNamespace())
	assert.Equal(t, "s3cret", OperatorToken())
}
