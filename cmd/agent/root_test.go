package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/agentebl/multibanco-agent-go/internal/config"
	"github.com/agentebl/multibanco-agent-go/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--env-file", filepath.Join(t.TempDir(), "none.env")}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCommand_Subcommands(t *testing.T) {
	cmd := newRootCmd()

	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"serve", "fee", "resolve", "ruc"})
	assert.NotNil(t, cmd.PersistentFlags().Lookup("env-file"))
}

func TestFeeCommand(t *testing.T) {
	out, err := run(t, "fee", "250.5")
	require.NoError(t, err)
	assert.Equal(t, "amount 250.50  fee 3.00  total 253.50\n", out)

	_, err = run(t, "fee", "--", "-1")
	assert.Error(t, err)
	_, err = run(t, "fee", "abc")
	assert.Error(t, err)

	_, err = run(t, "fee", "1e1000000")
	var verr *domain.ErrValidation
	assert.ErrorAs(t, err, &verr)
}

func TestResolveCommand_MockMode(t *testing.T) {
	t.Setenv("MOCK_MODE", "1")
	t.Setenv("MOCK_BOOK_PATH", "")

	out, err := run(t, "resolve", "72951012")
	require.NoError(t, err)

	var id domain.Identity
	require.NoError(t, json.Unmarshal([]byte(out), &id))
	assert.Equal(t, "BERMEJO LOPEZ MANUEL ALEXANDER", id.FullName)

	_, err = run(t, "resolve", "99999999")
	var nf *domain.ErrNotFound
	assert.ErrorAs(t, err, &nf)
}

func TestRUCCommand_MockMode(t *testing.T) {
	t.Setenv("MOCK_MODE", "1")

	out, err := run(t, "ruc", "20123456789")
	require.NoError(t, err)
	assert.Contains(t, out, "EMPRESA DEMO S.A.C.")
}

func TestResolveCommand_LiveWithoutToken(t *testing.T) {
	t.Setenv("MOCK_MODE", "0")
	t.Setenv("DECOLECTA_TOKEN", "")

	_, err := run(t, "resolve", "72951012")

	var cfgErr *domain.ErrConfiguration
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "proveedor de identidad no configurado", cfgErr.Message, "no provider is built without a token")
}

func TestBuildStore(t *testing.T) {
	ctx := context.Background()

	s, probe, closeFn, err := buildStore(ctx, &config.Config{StoreBackend: "memory", ReceiptPrefix: "BL"}, zap.NewNop())
	require.NoError(t, err)
	defer closeFn()
	assert.Equal(t, "memory", probe.Name)
	seq, err := s.NextSequence(ctx)
	require.NoError(t, err)
	assert.Equal(t, "BL-000001", seq)

	_, _, _, err = buildStore(ctx, &config.Config{StoreBackend: "postgres"}, zap.NewNop())
	var cfgErr *domain.ErrConfiguration
	assert.ErrorAs(t, err, &cfgErr)

	_, _, _, err = buildStore(ctx, &config.Config{StoreBackend: "mongo"}, zap.NewNop())
	assert.Error(t, err)
}
