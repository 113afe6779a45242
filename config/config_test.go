package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, 10, cfg.MaxContextTurns)
	assert.Equal(t, 32, cfg.MaxConcurrentInvocations)
	assert.Equal(t, 5*time.Second, cfg.LockWaitTimeout.Std())
	assert.Equal(t, 2*time.Minute, cfg.InvocationTimeout.Std())
	assert.False(t, cfg.GuardrailFailOpen, "guardrail must fail closed unless the operator opts out")
	assert.NoError(t, cfg.Validate())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("MAX_CONTEXT_TURNS", "3")
	t.Setenv("GUARDRAIL_FAIL_OPEN", "true")
	t.Setenv("LOCK_WAIT_TIMEOUT_MS", "250")

	cfg := Load()
	assert.Equal(t, 3, cfg.MaxContextTurns)
	assert.True(t, cfg.GuardrailFailOpen)
	assert.Equal(t, 250*time.Millisecond, cfg.LockWaitTimeout.Std())
}

func TestLoadFile_OverlaysEnv(t *testing.T) {
	t.Setenv("MAX_CONTEXT_TURNS", "3")

	path := filepath.Join(t.TempDir(), "agentrun.yaml")
	data := "max_context_turns: 7\nlog_level: debug\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.MaxContextTurns, "file values win over environment")
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 8080, cfg.HTTPPort, "unset file keys keep defaults")
}

func TestLoadFile_DurationForms(t *testing.T) {
	// durations accept both Go notation and bare milliseconds
	path := filepath.Join(t.TempDir(), "agentrun.yaml")
	data := "lock_wait_timeout: 2s\ninvocation_timeout: 30000\nretry_backoff_base: 150ms\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, cfg.LockWaitTimeout.Std())
	assert.Equal(t, 30*time.Second, cfg.InvocationTimeout.Std())
	assert.Equal(t, 150*time.Millisecond, cfg.RetryBackoffBase.Std())
}

func TestLoadFile_InvalidDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agentrun.yaml")
	require.NoError(t, os.WriteFile(path, []byte("lock_wait_timeout: soon\n"), 0o600))

	_, err := LoadFile(path)
	assert.Error(t, err)
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate_Rejects(t *testing.T) {
	cfg := Load()
	cfg.MaxConcurrentInvocations = 0
	assert.Error(t, cfg.Validate())

	cfg = Load()
	cfg.InvocationTimeout = 0
	assert.Error(t, cfg.Validate())

	cfg = Load()
	cfg.MaxRetries = -1
	assert.Error(t, cfg.Validate())
}
