package testing

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/0xmhha/txverify/internal/config"
)

// TestConfig creates a valid configuration for a local development node
func TestConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.URL = "http://127.0.0.1:9944"
	cfg.PrivateKey = AlithPrivateKey
	cfg.ChainID = TestChainID.Uint64()
	cfg.GasMultiplier = 1
	cfg.ReceiptTimeout = 30 * time.Second
	cfg.PollInterval = time.Second
	return cfg
}

// TestConfigWithScenarios creates a test configuration running the given scenarios
func TestConfigWithScenarios(t *testing.T, scenarios ...config.Scenario) *config.Config {
	t.Helper()
	cfg := TestConfig(t)
	for _, s := range scenarios {
		cfg.Scenarios = append(cfg.Scenarios, string(s))
	}
	return cfg
}

// NodeConfig creates a validated configuration pointing at node
func NodeConfig(t *testing.T, node *Node, scenarios ...config.Scenario) *config.Config {
	t.Helper()
	cfg := TestConfigWithScenarios(t, scenarios...)
	cfg.URL = node.URL()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("invalid node config: %v", err)
	}
	return cfg
}

// InvalidConfigs returns configurations that Validate must reject
func InvalidConfigs(t *testing.T) map[string]*config.Config {
	t.Helper()
	return map[string]*config.Config{
		"missing_url": {
			PrivateKey: AlithPrivateKey,
		},
		"invalid_url": {
			URL:        "invalid-url",
			PrivateKey: AlithPrivateKey,
		},
		"missing_credentials": {
			URL: "http://127.0.0.1:9944",
		},
		"invalid_private_key": {
			URL:        "http://127.0.0.1:9944",
			PrivateKey: "invalid-key",
		},
		"invalid_scenario": {
			URL:        "http://127.0.0.1:9944",
			PrivateKey: AlithPrivateKey,
			Scenarios:  []string{"MINT"},
		},
		"negative_amount": {
			URL:            "http://127.0.0.1:9944",
			PrivateKey:     AlithPrivateKey,
			TransferAmount: "-1",
		},
		"bad_finalized_tx": {
			URL:             "http://127.0.0.1:9944",
			PrivateKey:      AlithPrivateKey,
			FinalizedTxHash: "0x1234",
		},
		"bad_xcm_calldata": {
			URL:                "http://127.0.0.1:9944",
			PrivateKey:         AlithPrivateKey,
			XCMExecuteCalldata: "0xabc",
		},
		"poll_exceeds_timeout": {
			URL:            "http://127.0.0.1:9944",
			PrivateKey:     AlithPrivateKey,
			PollInterval:   time.Minute,
			ReceiptTimeout: time.Second,
		},
	}
}

// WriteMyTokenArtifact writes a hardhat-style MyToken artifact into a
// temporary directory and returns its path
func WriteMyTokenArtifact(t *testing.T) string {
	t.Helper()
	data, err := json.Marshal(map[string]any{
		"contractName": "MyToken",
		"abi":          json.RawMessage(MyTokenABI),
		"bytecode":     MyTokenBytecode,
	})
	if err != nil {
		t.Fatalf("failed to encode artifact: %v", err)
	}
	path := filepath.Join(t.TempDir(), "MyToken.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("failed to write artifact: %v", err)
	}
	return path
}
