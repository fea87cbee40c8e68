package txbuilder

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/0xmhha/txverify/internal/errs"
)

const (
	testPrivateKey = "5fb92d6e98884f76de468fa3f6278f8807c48bebc13595d45af5bdc4da702133"
	otherKeyHex    = "fedcba9876543210fedcba9876543210fedcba9876543210fedcba9876543210"
	testRecipient  = "0x1234567890123456789012345678901234567890"
)

var testChainID = big.NewInt(1281)

// mockNode implements NodeReader for testing
type mockNode struct {
	nonce      uint64
	nonceCalls int
	gasPrice   *big.Int
	gasTipCap  *big.Int
	estimate   uint64
	estimates  int
	lastMsg    ethereum.CallMsg
	err        error
}

func (m *mockNode) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.nonceCalls++
	return m.nonce, nil
}

func (m *mockNode) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.gasPrice == nil {
		return big.NewInt(1000000000), nil // 1 Gwei
	}
	return m.gasPrice, nil
}

func (m *mockNode) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.gasTipCap == nil {
		return big.NewInt(100000000), nil // 0.1 Gwei
	}
	return m.gasTipCap, nil
}

func (m *mockNode) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.estimates++
	m.lastMsg = msg
	if m.estimate == 0 {
		return 21000, nil
	}
	return m.estimate, nil
}

func newTestKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := crypto.HexToECDSA(testPrivateKey)
	if err != nil {
		t.Fatalf("HexToECDSA() failed: %v", err)
	}
	return key
}

func senderOf(key *ecdsa.PrivateKey) common.Address {
	return crypto.PubkeyToAddress(key.PublicKey)
}

func TestBuilder_TransferFetchesNonceEachBuild(t *testing.T) {
	key := newTestKey(t)
	node := &mockNode{nonce: 7}
	b := NewBuilder(&BuilderConfig{ChainID: testChainID, GasLimit: 21000}, node)

	first, err := b.Transfer(context.Background(), senderOf(key), common.HexToAddress(testRecipient), big.NewInt(1))
	if err != nil {
		t.Fatalf("Transfer() failed: %v", err)
	}
	if first.Nonce != 7 {
		t.Errorf("Nonce = %d, want 7", first.Nonce)
	}

	node.nonce = 8
	second, err := b.Transfer(context.Background(), senderOf(key), common.HexToAddress(testRecipient), big.NewInt(1))
	if err != nil {
		t.Fatalf("Transfer() failed: %v", err)
	}
	if second.Nonce != 8 {
		t.Errorf("Nonce = %d, want 8", second.Nonce)
	}
	if node.nonceCalls != 2 {
		t.Errorf("PendingNonceAt called %d times, want 2", node.nonceCalls)
	}
	if node.estimates != 0 {
		t.Errorf("EstimateGas called %d times with a fixed gas limit", node.estimates)
	}
}

func TestBuilder_GasSettings(t *testing.T) {
	tests := []struct {
		name       string
		config     *BuilderConfig
		node       *mockNode
		wantGas    uint64
		wantType   TxType
		wantPrice  *big.Int
		wantTipCap *big.Int
		wantFeeCap *big.Int
	}{
		{
			name:      "estimated gas with multiplier and suggested price",
			config:    &BuilderConfig{ChainID: testChainID, GasMultiplier: 1.2},
			node:      &mockNode{},
			wantGas:   25200,
			wantType:  TxTypeLegacy,
			wantPrice: big.NewInt(1000000000),
		},
		{
			name:      "multiplier below one is ignored",
			config:    &BuilderConfig{ChainID: testChainID, GasMultiplier: 0.5},
			node:      &mockNode{estimate: 50000},
			wantGas:   50000,
			wantType:  TxTypeLegacy,
			wantPrice: big.NewInt(1000000000),
		},
		{
			name:      "fixed gas price",
			config:    &BuilderConfig{ChainID: testChainID, GasLimit: 30000, GasPrice: big.NewInt(5)},
			node:      &mockNode{},
			wantGas:   30000,
			wantType:  TxTypeLegacy,
			wantPrice: big.NewInt(5),
		},
		{
			name:       "dynamic fee from node",
			config:     &BuilderConfig{ChainID: testChainID, GasLimit: 21000, DynamicFee: true},
			node:       &mockNode{},
			wantGas:    21000,
			wantType:   TxTypeDynamicFee,
			wantTipCap: big.NewInt(100000000),
			wantFeeCap: big.NewInt(2000000000),
		},
		{
			name: "tip cap capped at fee cap",
			config: &BuilderConfig{
				ChainID:    testChainID,
				GasLimit:   21000,
				DynamicFee: true,
				GasTipCap:  big.NewInt(3000000000),
			},
			node:       &mockNode{},
			wantGas:    21000,
			wantType:   TxTypeDynamicFee,
			wantTipCap: big.NewInt(2000000000),
			wantFeeCap: big.NewInt(2000000000),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := newTestKey(t)
			b := NewBuilder(tt.config, tt.node)

			op, err := b.Transfer(context.Background(), senderOf(key), common.HexToAddress(testRecipient), big.NewInt(1))
			if err != nil {
				t.Fatalf("Transfer() failed: %v", err)
			}
			if op.Gas != tt.wantGas {
				t.Errorf("Gas = %d, want %d", op.Gas, tt.wantGas)
			}
			if op.Type() != tt.wantType {
				t.Errorf("Type() = %d, want %d", op.Type(), tt.wantType)
			}
			if tt.wantPrice != nil && op.GasPrice.Cmp(tt.wantPrice) != 0 {
				t.Errorf("GasPrice = %s, want %s", op.GasPrice, tt.wantPrice)
			}
			if tt.wantTipCap != nil && op.GasTipCap.Cmp(tt.wantTipCap) != 0 {
				t.Errorf("GasTipCap = %s, want %s", op.GasTipCap, tt.wantTipCap)
			}
			if tt.wantFeeCap != nil && op.GasFeeCap.Cmp(tt.wantFeeCap) != 0 {
				t.Errorf("GasFeeCap = %s, want %s", op.GasFeeCap, tt.wantFeeCap)
			}
		})
	}
}

func TestBuilder_ConfigurationErrors(t *testing.T) {
	key := newTestKey(t)
	from := senderOf(key)

	tests := []struct {
		name   string
		build  func() (*Operation, error)
		errMsg string
	}{
		{
			name: "transfer without target",
			build: func() (*Operation, error) {
				b := NewBuilder(&BuilderConfig{ChainID: testChainID, GasLimit: 21000}, &mockNode{})
				return b.Transfer(context.Background(), from, common.Address{}, big.NewInt(1))
			},
			errMsg: "target address is required",
		},
		{
			name: "call without target",
			build: func() (*Operation, error) {
				b := NewBuilder(&BuilderConfig{ChainID: testChainID, GasLimit: 21000}, &mockNode{})
				return b.ContractCall(context.Background(), from, common.Address{}, []byte{0x01}, nil)
			},
			errMsg: "target address is required",
		},
		{
			name: "deploy without bytecode",
			build: func() (*Operation, error) {
				b := NewBuilder(&BuilderConfig{ChainID: testChainID, GasLimit: 21000}, &mockNode{})
				return b.Deploy(context.Background(), from, nil)
			},
			errMsg: "bytecode is required",
		},
		{
			name: "missing gas limit without node",
			build: func() (*Operation, error) {
				b := NewBuilder(&BuilderConfig{ChainID: testChainID, GasPrice: big.NewInt(1)}, nil)
				to := common.HexToAddress(testRecipient)
				return b.BuildAt(context.Background(), &Operation{Kind: KindTransfer, From: from, To: &to}, 0)
			},
			errMsg: "gas limit is required",
		},
		{
			name: "missing gas price without node",
			build: func() (*Operation, error) {
				b := NewBuilder(&BuilderConfig{ChainID: testChainID, GasLimit: 21000}, nil)
				to := common.HexToAddress(testRecipient)
				return b.BuildAt(context.Background(), &Operation{Kind: KindTransfer, From: from, To: &to}, 0)
			},
			errMsg: "gas price is required",
		},
		{
			name: "missing tip cap without node",
			build: func() (*Operation, error) {
				b := NewBuilder(&BuilderConfig{
					ChainID:    testChainID,
					GasLimit:   21000,
					DynamicFee: true,
					GasFeeCap:  big.NewInt(10),
				}, nil)
				to := common.HexToAddress(testRecipient)
				return b.BuildAt(context.Background(), &Operation{Kind: KindTransfer, From: from, To: &to}, 0)
			},
			errMsg: "gas tip cap is required",
		},
		{
			name: "missing chain id",
			build: func() (*Operation, error) {
				b := NewBuilder(&BuilderConfig{GasLimit: 21000, GasPrice: big.NewInt(1)}, &mockNode{})
				return b.Transfer(context.Background(), from, common.HexToAddress(testRecipient), big.NewInt(1))
			},
			errMsg: "chain id is required",
		},
		{
			name: "nonce without node",
			build: func() (*Operation, error) {
				b := NewBuilder(&BuilderConfig{ChainID: testChainID, GasLimit: 21000, GasPrice: big.NewInt(1)}, nil)
				return b.Transfer(context.Background(), from, common.HexToAddress(testRecipient), big.NewInt(1))
			},
			errMsg: "node is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.build()
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !errors.Is(err, errs.ErrConfiguration) {
				t.Errorf("error = %v, want ErrConfiguration", err)
			}
			if !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("error = %v, want error containing %q", err, tt.errMsg)
			}
		})
	}
}

func TestBuilder_NodeErrorPropagates(t *testing.T) {
	key := newTestKey(t)
	nodeErr := errs.Transport("eth_getTransactionCount", errors.New("connection refused"))
	b := NewBuilder(&BuilderConfig{ChainID: testChainID, GasLimit: 21000}, &mockNode{err: nodeErr})

	_, err := b.Transfer(context.Background(), senderOf(key), common.HexToAddress(testRecipient), big.NewInt(1))
	if !errors.Is(err, errs.ErrTransport) {
		t.Fatalf("error = %v, want ErrTransport", err)
	}
}

func TestBuilder_DeployAndCall(t *testing.T) {
	key := newTestKey(t)
	node := &mockNode{nonce: 3, estimate: 100000}
	b := NewBuilder(&BuilderConfig{ChainID: testChainID, GasMultiplier: 1.0}, node)

	input := []byte{0x60, 0x80, 0x60, 0x40}
	deploy, err := b.Deploy(context.Background(), senderOf(key), input)
	if err != nil {
		t.Fatalf("Deploy() failed: %v", err)
	}
	if deploy.To != nil {
		t.Error("deployment has a target address")
	}
	if deploy.Kind != KindDeploy || deploy.Gas != 100000 {
		t.Errorf("deploy = %s gas %d", deploy.Kind, deploy.Gas)
	}
	if node.lastMsg.To != nil || len(node.lastMsg.Data) != len(input) {
		t.Error("estimate did not receive the deployment payload")
	}

	target := common.HexToAddress(testRecipient)
	call, err := b.ContractCall(context.Background(), senderOf(key), target, []byte{0xd0, 0x9d, 0xe0, 0x8a}, nil)
	if err != nil {
		t.Fatalf("ContractCall() failed: %v", err)
	}
	if call.To == nil || *call.To != target {
		t.Errorf("call target = %v, want %s", call.To, target.Hex())
	}
	if call.Value == nil || call.Value.Sign() != 0 {
		t.Errorf("call value = %v, want 0", call.Value)
	}
}

func TestOperation_MaxFee(t *testing.T) {
	legacy := &Operation{Gas: 21000, GasPrice: big.NewInt(10)}
	if legacy.MaxFee().Cmp(big.NewInt(210000)) != 0 {
		t.Errorf("legacy MaxFee() = %s, want 210000", legacy.MaxFee())
	}

	dynamic := &Operation{Gas: 21000, GasTipCap: big.NewInt(1), GasFeeCap: big.NewInt(20)}
	if dynamic.MaxFee().Cmp(big.NewInt(420000)) != 0 {
		t.Errorf("dynamic MaxFee() = %s, want 420000", dynamic.MaxFee())
	}
}

func TestKind_String(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{KindTransfer, "TRANSFER"},
		{KindContractCall, "CONTRACT_CALL"},
		{KindDeploy, "DEPLOY"},
		{Kind(99), "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("Kind(%d).String() = %q, want %q", int(tt.kind), got, tt.want)
		}
	}
}
