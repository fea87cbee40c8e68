package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/0xmhha/txverify/internal/errs"
)

// Environment variable names read by FromEnv
const (
	EnvRPCURL            = "RPC_URL"
	EnvWSURL             = "WS_URL"
	EnvPrivateKey        = "PRIVATE_KEY"
	EnvMnemonic          = "MNEMONIC"
	EnvScenarios         = "SCENARIOS"
	EnvChainID           = "CHAIN_ID"
	EnvGasLimit          = "GAS_LIMIT"
	EnvGasPrice          = "GAS_PRICE"
	EnvTransferAmount    = "TRANSFER_AMOUNT"
	EnvReceiptTimeout    = "RECEIPT_TIMEOUT"
	EnvPollInterval      = "POLL_INTERVAL"
	EnvFinalityTimeout   = "FINALITY_TIMEOUT"
	EnvFinalizedTxHash   = "FINALIZED_TX_HASH"
	EnvFinalityRPCPrefix = "FINALITY_RPC_PREFIX"
	EnvArtifactPath      = "ARTIFACT_PATH"
	EnvTokenArtifactPath = "TOKEN_ARTIFACT_PATH"
	EnvXC20Token         = "XC20_TOKEN"
	EnvRateLimit         = "RATE_LIMIT"
	defaultRPCURL        = "http://127.0.0.1:9944"
	envOp                = "config.FromEnv"
)

// FromEnv builds a Config from the process environment. When envFile is not
// empty it is loaded first; a missing file is not an error. Variables already
// set in the environment take precedence over the file.
func FromEnv(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, errs.Configuration(envOp, "failed to load %s: %v", envFile, err)
		}
	}

	cfg := DefaultConfig()
	cfg.URL = getenv(EnvRPCURL, defaultRPCURL)
	cfg.WSURL = os.Getenv(EnvWSURL)
	cfg.PrivateKey = normalizeKey(os.Getenv(EnvPrivateKey))
	cfg.Mnemonic = os.Getenv(EnvMnemonic)
	cfg.GasPrice = os.Getenv(EnvGasPrice)
	cfg.TransferAmount = os.Getenv(EnvTransferAmount)
	cfg.FinalizedTxHash = os.Getenv(EnvFinalizedTxHash)
	cfg.FinalityRPCPrefix = os.Getenv(EnvFinalityRPCPrefix)
	cfg.ArtifactPath = os.Getenv(EnvArtifactPath)
	cfg.TokenArtifactPath = os.Getenv(EnvTokenArtifactPath)
	cfg.XC20Token = os.Getenv(EnvXC20Token)
	cfg.ExpectFinalityLag = true

	if v := os.Getenv(EnvScenarios); v != "" {
		cfg.Scenarios = strings.Split(v, ",")
	}

	var err error
	if cfg.ChainID, err = uintEnv(EnvChainID); err != nil {
		return nil, err
	}
	if cfg.GasLimit, err = uintEnv(EnvGasLimit); err != nil {
		return nil, err
	}
	if cfg.ReceiptTimeout, err = durationEnv(EnvReceiptTimeout); err != nil {
		return nil, err
	}
	if cfg.PollInterval, err = durationEnv(EnvPollInterval); err != nil {
		return nil, err
	}
	if cfg.FinalityTimeout, err = durationEnv(EnvFinalityTimeout); err != nil {
		return nil, err
	}
	if v := os.Getenv(EnvRateLimit); v != "" {
		rate, parseErr := strconv.ParseFloat(v, 64)
		if parseErr != nil {
			return nil, errs.Configuration(envOp, "invalid %s value %q: %v", EnvRateLimit, v, parseErr)
		}
		cfg.RateLimit = rate
	}

	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func uintEnv(key string) (uint64, error) {
	v := os.Getenv(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, errs.Configuration(envOp, "invalid %s value %q: %v", key, v, err)
	}
	return n, nil
}

func durationEnv(key string) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, errs.Configuration(envOp, "invalid %s value %q: %v", key, v, err)
	}
	return d, nil
}

// normalizeKey adds the 0x prefix expected by Validate
func normalizeKey(key string) string {
	if key == "" || strings.HasPrefix(key, "0x") {
		return key
	}
	return "0x" + key
}
