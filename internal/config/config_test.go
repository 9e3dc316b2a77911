package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/agentebl/multibanco-agent-go/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("MOCK_MODE", "")
	t.Setenv("DECOLECTA_TOKEN", "")
	t.Setenv("LOOKUP_TIMEOUT", "")
	t.Setenv("STORE_BACKEND", "")

	cfg := config.Load()

	assert.False(t, cfg.MockMode)
	assert.Empty(t, cfg.LookupToken)
	assert.Equal(t, 12*time.Second, cfg.LookupTimeout)
	assert.Equal(t, "memory", cfg.StoreBackend)
	assert.Equal(t, "PEN", cfg.BaseCurrency)
}

func TestLoad_MockModeAcceptsOne(t *testing.T) {
	t.Setenv("MOCK_MODE", "1")
	t.Setenv("DECOLECTA_TOKEN", "  secret-token \n")

	cfg := config.Load()

	assert.True(t, cfg.MockMode)
	assert.Equal(t, "secret-token", cfg.LookupToken)
}

func TestOperatorSeed(t *testing.T) {
	cfg := &config.Config{Operators: "ManuelBL:Manuel Bermejo, VictorBL , :nobody,,"}

	seed := cfg.OperatorSeed()

	assert.Equal(t, map[string]string{
		"ManuelBL": "Manuel Bermejo",
		"VictorBL": "VictorBL",
	}, seed)
}

func TestLoadDotEnv_DoesNotOverrideEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("AGENT_TEST_A=from-file\nAGENT_TEST_B=\"quoted\"\n"), 0o600))

	t.Setenv("AGENT_TEST_A", "from-env")
	t.Setenv("AGENT_TEST_B", "")
	os.Unsetenv("AGENT_TEST_B")

	require.NoError(t, config.LoadDotEnv(path))
	t.Cleanup(func() { os.Unsetenv("AGENT_TEST_B") })

	assert.Equal(t, "from-env", os.Getenv("AGENT_TEST_A"))
	assert.Equal(t, "quoted", os.Getenv("AGENT_TEST_B"))
}
