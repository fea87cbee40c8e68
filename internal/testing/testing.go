// Package testing provides test utilities, a simulated chain and an
// in-process JSON-RPC node for txverify tests.
package testing

import (
	"crypto/ecdsa"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// AlithPrivateKey is the prefunded development account of a local node
// (DO NOT use in production)
const AlithPrivateKey = "0x5fb92d6e98884f76de468fa3f6278f8807c48bebc13595d45af5bdc4da702133"

// AlithAddress is the address of AlithPrivateKey
const AlithAddress = "0xf24FF3a9CF04c71Dbc94D0b566f7A27B94566cac"

// TestMnemonic is a well-known test mnemonic (DO NOT use in production)
const TestMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

// TestChainID is the chain ID of a local development node
var TestChainID = big.NewInt(1281)

// GenerateTestKey generates a random private key for testing
func GenerateTestKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("failed to generate test key: %v", err)
	}
	return key
}

// MustParseKey parses a hex private key or fails the test
func MustParseKey(t *testing.T, hexKey string) *ecdsa.PrivateKey {
	t.Helper()
	if len(hexKey) >= 2 && hexKey[:2] == "0x" {
		hexKey = hexKey[2:]
	}
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		t.Fatalf("failed to parse private key: %v", err)
	}
	return key
}

// AddressFromKey returns the address for a private key
func AddressFromKey(key *ecdsa.PrivateKey) common.Address {
	return crypto.PubkeyToAddress(key.PublicKey)
}

// RandomAddress generates a random address for testing
func RandomAddress(t *testing.T) common.Address {
	t.Helper()
	return AddressFromKey(GenerateTestKey(t))
}

// Units converts whole native tokens to wei
func Units(n int64) *big.Int {
	wei := big.NewInt(n)
	return wei.Mul(wei, big.NewInt(1e18))
}

// Gwei converts gwei to wei
func Gwei(n int64) *big.Int {
	wei := big.NewInt(n)
	return wei.Mul(wei, big.NewInt(1e9))
}
