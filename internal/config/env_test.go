package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/0xmhha/txverify/internal/errs"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		EnvRPCURL, EnvWSURL, EnvPrivateKey, EnvMnemonic, EnvScenarios, EnvChainID,
		EnvGasLimit, EnvGasPrice, EnvTransferAmount, EnvReceiptTimeout, EnvPollInterval,
		EnvFinalityTimeout, EnvFinalizedTxHash, EnvFinalityRPCPrefix, EnvArtifactPath, EnvTokenArtifactPath,
		EnvXC20Token, EnvRateLimit,
	} {
		t.Setenv(key, "")
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := FromEnv("")
	require.NoError(t, err)
	require.Equal(t, defaultRPCURL, cfg.URL)
	require.Empty(t, cfg.PrivateKey)
	require.True(t, cfg.ExpectFinalityLag)
	require.Equal(t, uint64(DefaultInitialValue), cfg.InitialValue)
	require.Equal(t, int64(DefaultXCMExecuteUnits), cfg.XCMExecuteUnits)
	require.Equal(t, uint8(DefaultXC20Decimals), cfg.XC20Decimals)
}

func TestFromEnv_Variables(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvRPCURL, "http://node:9944")
	t.Setenv(EnvPrivateKey, "5fb92d6e98884f76de468fa3f6278f8807c48bebc13595d45af5bdc4da702133")
	t.Setenv(EnvScenarios, "transfer,deploy")
	t.Setenv(EnvChainID, "1281")
	t.Setenv(EnvGasLimit, "21000")
	t.Setenv(EnvReceiptTimeout, "15s")
	t.Setenv(EnvRateLimit, "2.5")

	cfg, err := FromEnv("")
	require.NoError(t, err)
	require.Equal(t, "http://node:9944", cfg.URL)
	require.Equal(t, testKey, cfg.PrivateKey)
	require.Equal(t, []string{"transfer", "deploy"}, cfg.Scenarios)
	require.Equal(t, uint64(1281), cfg.ChainID)
	require.Equal(t, uint64(21000), cfg.GasLimit)
	require.Equal(t, 15*time.Second, cfg.ReceiptTimeout)
	require.InDelta(t, 2.5, cfg.RateLimit, 1e-9)
	require.NoError(t, cfg.Validate())
}

func TestFromEnv_DotEnvFile(t *testing.T) {
	clearEnv(t)
	// godotenv never overrides variables that are already present
	os.Unsetenv(EnvRPCURL)
	os.Unsetenv(EnvFinalizedTxHash)
	t.Cleanup(func() {
		os.Unsetenv(EnvRPCURL)
		os.Unsetenv(EnvFinalizedTxHash)
	})

	path := filepath.Join(t.TempDir(), ".env")
	content := "RPC_URL=https://rpc.api.moonbase.moonbeam.network\n" +
		"FINALIZED_TX_HASH=0x3ea780d2e53fc265e9d251b5f41794c3d5ec4a32e854ca6562b111ec7002057e\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := FromEnv(path)
	require.NoError(t, err)
	require.Equal(t, "https://rpc.api.moonbase.moonbeam.network", cfg.URL)
	require.Equal(t, "0x3ea780d2e53fc265e9d251b5f41794c3d5ec4a32e854ca6562b111ec7002057e", cfg.FinalizedTxHash)
}

func TestFromEnv_MissingFileIgnored(t *testing.T) {
	clearEnv(t)

	_, err := FromEnv(filepath.Join(t.TempDir(), "absent.env"))
	require.NoError(t, err)
}

func TestFromEnv_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"chain id", EnvChainID, "moonbase"},
		{"gas limit", EnvGasLimit, "-1"},
		{"receipt timeout", EnvReceiptTimeout, "ten seconds"},
		{"poll interval", EnvPollInterval, "1"},
		{"rate limit", EnvRateLimit, "fast"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := FromEnv("")
			require.Error(t, err)
			require.True(t, errors.Is(err, errs.ErrConfiguration), "got %v", err)
			require.Contains(t, err.Error(), tt.key)
		})
	}
}
