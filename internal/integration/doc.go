// Package integration runs the verification scenarios against a live node.
//
// The tests are skipped when no node answers at RPC_URL, so they are safe to
// include in CI. Read-only checks need only a reachable node; scenarios that
// send transactions also need a funded PRIVATE_KEY.
//
// # Running Integration Tests
//
// Connectivity and finality RPC checks:
//
//	RPC_URL=http://127.0.0.1:9944 go test ./internal/integration/...
//
// Full lifecycle scenarios (requires funded account):
//
//	RPC_URL=http://127.0.0.1:9944 \
//	PRIVATE_KEY=0x... \
//	go test ./internal/integration/...
//
// Skip integration tests in CI:
//
//	go test -short ./...
//
// # Environment Variables
//
// All variables read by the txverify command apply here, most notably:
//
//   - RPC_URL: RPC endpoint URL (default: http://127.0.0.1:9944)
//   - PRIVATE_KEY: Private key with funds for testing (hex format, with or without 0x prefix)
//   - FINALIZED_TX_HASH: Transaction known to be finalized
//   - XC20_TOKEN: Token address for the XC-20 metadata check
//
// # Local Development
//
// A Moonbeam development node seals a block per transaction and finalizes
// with a lag, which matches the defaults:
//
//	moonbeam --dev --sealing 6000
//
//	RPC_URL=http://127.0.0.1:9944 \
//	PRIVATE_KEY=0x5fb92d6e98884f76de468fa3f6278f8807c48bebc13595d45af5bdc4da702133 \
//	go test ./internal/integration/...
package integration
