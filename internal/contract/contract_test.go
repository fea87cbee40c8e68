package contract

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/0xmhha/txverify/internal/errs"
)

func selector(sig string) []byte {
	return crypto.Keccak256([]byte(sig))[:4]
}

func TestIncrementer_Artifact(t *testing.T) {
	a, err := Incrementer()
	require.NoError(t, err)

	require.Len(t, a.ABI.Methods, 3)
	require.Len(t, a.ABI.Constructor.Inputs, 1)

	runtime := common.FromHex(IncrementerRuntime)
	require.Len(t, runtime, 0x1fd)
	init := common.FromHex(incrementerInit)
	require.Len(t, init, 0x1c)
	require.True(t, bytes.Equal(a.Bytecode[len(init):], runtime), "creation code must end with the runtime code")
}

func TestIncrementer_Selectors(t *testing.T) {
	a, err := Incrementer()
	require.NoError(t, err)

	tests := []struct {
		method string
		args   []interface{}
		want   string
	}{
		{"number", nil, "8381f58a"},
		{"increment", []interface{}{big.NewInt(2)}, "7cf5dab0"},
		{"reset", nil, "d826f88f"},
	}
	for _, tt := range tests {
		data, err := a.Pack(tt.method, tt.args...)
		require.NoError(t, err)
		require.Equal(t, tt.want, common.Bytes2Hex(data[:4]), tt.method)
		// the runtime dispatcher compares against the same selectors
		require.Contains(t, IncrementerRuntime, "63"+tt.want)
	}

	_, err = a.Pack("decrement")
	require.Error(t, err)
}

func TestArtifact_DeployInput(t *testing.T) {
	a, err := Incrementer()
	require.NoError(t, err)

	input, err := a.DeployInput(big.NewInt(5))
	require.NoError(t, err)
	require.Len(t, input, len(a.Bytecode)+32)
	require.Equal(t, byte(5), input[len(input)-1])
	require.True(t, bytes.HasPrefix(input, a.Bytecode))

	plain, err := a.DeployInput()
	require.NoError(t, err)
	require.Equal(t, a.Bytecode, plain)

	_, err = a.DeployInput("five")
	require.Error(t, err)
}

func TestParseArtifact(t *testing.T) {
	abiJSON := `[{"inputs":[],"name":"number","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"}]`

	tests := []struct {
		name    string
		data    string
		wantErr bool
	}{
		{
			name: "solc standard json",
			data: `{"abi":` + abiJSON + `,"evm":{"bytecode":{"object":"6080"}}}`,
		},
		{
			name: "hardhat",
			data: `{"contractName":"Incrementer","abi":` + abiJSON + `,"bytecode":"0x6080"}`,
		},
		{
			name: "combined json",
			data: `{"abi":` + mustQuote(abiJSON) + `,"bin":"6080"}`,
		},
		{
			name: "foundry bytecode object",
			data: `{"abi":` + abiJSON + `,"bytecode":{"object":"0x6080"}}`,
		},
		{
			name:    "missing bytecode",
			data:    `{"abi":` + abiJSON + `}`,
			wantErr: true,
		},
		{
			name:    "missing abi",
			data:    `{"bin":"6080"}`,
			wantErr: true,
		},
		{
			name:    "bad hex",
			data:    `{"abi":` + abiJSON + `,"bin":"zz"}`,
			wantErr: true,
		},
		{
			name:    "not json",
			data:    `abi`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := ParseArtifact([]byte(tt.data))
			if tt.wantErr {
				require.Error(t, err)
				require.True(t, errors.Is(err, errs.ErrConfiguration), "got %v", err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, []byte{0x60, 0x80}, a.Bytecode)
			require.Contains(t, a.ABI.Methods, "number")
			require.Equal(t, "0x6080", a.BytecodeHex())
		})
	}
}

func mustQuote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

func TestLoadArtifact(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Incrementer.json")
	content := `{"contractName":"Incrementer","abi":` + IncrementerABI + `,"bytecode":"` + IncrementerBytecode + `"}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	a, err := IncrementerFrom(path)
	require.NoError(t, err)
	require.Equal(t, "Incrementer", a.Name)

	embedded, err := IncrementerFrom("")
	require.NoError(t, err)
	require.Equal(t, embedded.Bytecode, a.Bytecode)

	_, err = LoadArtifact(filepath.Join(t.TempDir(), "missing.json"))
	require.True(t, errors.Is(err, errs.ErrConfiguration), "got %v", err)
}

func TestPackXCMExecute(t *testing.T) {
	message := common.FromHex("0x02080004000001040300130000e8890423c78a0d010004000103003cd0a705a2dc65e5b1e1205896baa2be8a07c6e0")

	data, err := PackXCMExecute(message, 1000000000)
	require.NoError(t, err)
	require.Equal(t, selector("xcmExecute(bytes,uint64)"), data[:4])

	parsed, err := xcmUtils()
	require.NoError(t, err)
	values, err := parsed.Methods["xcmExecute"].Inputs.Unpack(data[4:])
	require.NoError(t, err)
	require.Equal(t, message, values[0])
	require.Equal(t, uint64(1000000000), values[1])
}

func TestPackXCMSend(t *testing.T) {
	message := common.FromHex("0x020c000400010000070010a5d4e81300010000070010a5d4e8")

	data, err := PackXCMSend(Multilocation{Parents: 1}, message)
	require.NoError(t, err)
	require.Equal(t, selector("xcmSend((uint8,bytes[]),bytes)"), data[:4])

	parsed, err := xcmUtils()
	require.NoError(t, err)
	values, err := parsed.Methods["xcmSend"].Inputs.Unpack(data[4:])
	require.NoError(t, err)
	require.Equal(t, message, values[1])

	relay, err := PackXCMSend(RelayChain, message)
	require.NoError(t, err)
	require.Equal(t, data, relay)
}

// metadataCaller answers ERC-20 metadata calls by selector
type metadataCaller struct {
	meta  TokenMetadata
	err   error
	calls atomic.Int32
}

func (m *metadataCaller) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	m.calls.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	a, err := erc20Metadata()
	if err != nil {
		return nil, err
	}
	var method abi.Method
	for _, candidate := range a.ABI.Methods {
		if bytes.Equal(candidate.ID, msg.Data[:4]) {
			method = candidate
		}
	}
	switch method.Name {
	case "name":
		return method.Outputs.Pack(m.meta.Name)
	case "symbol":
		return method.Outputs.Pack(m.meta.Symbol)
	case "decimals":
		return method.Outputs.Pack(m.meta.Decimals)
	}
	return nil, errors.New("execution reverted")
}

func TestReadMetadata(t *testing.T) {
	token := common.HexToAddress("0x9Aac6FB41773af877a2Be73c99897F3DdFACf576")
	caller := &metadataCaller{meta: TokenMetadata{Name: "Jupiter", Symbol: "JUP", Decimals: 18}}

	meta, err := ReadMetadata(context.Background(), caller, token)
	require.NoError(t, err)
	require.Equal(t, "Jupiter", meta.Name)
	require.Equal(t, "JUP", meta.Symbol)
	require.Equal(t, uint8(18), meta.Decimals)
	require.Equal(t, int32(3), caller.calls.Load())

	failing := &metadataCaller{err: errs.Transport("eth_call", errors.New("connection refused"))}
	_, err = ReadMetadata(context.Background(), failing, token)
	require.True(t, errors.Is(err, errs.ErrTransport), "got %v", err)
}

type uintCaller struct{ value *big.Int }

func (u uintCaller) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return common.LeftPadBytes(u.value.Bytes(), 32), nil
}

type balanceCaller struct {
	balances map[common.Address]*big.Int
}

func (b balanceCaller) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if !bytes.Equal(msg.Data[:4], selector("balanceOf(address)")) {
		return nil, errors.New("execution reverted")
	}
	owner := common.BytesToAddress(msg.Data[4:36])
	bal, ok := b.balances[owner]
	if !ok {
		bal = new(big.Int)
	}
	return common.LeftPadBytes(bal.Bytes(), 32), nil
}

func TestBalanceOf(t *testing.T) {
	token := common.HexToAddress("0x0000000000000000000000000000000000000abc")
	holder := common.HexToAddress("0xf24FF3a9CF04c71Dbc94D0b566f7A27B94566cac")
	caller := balanceCaller{balances: map[common.Address]*big.Int{holder: big.NewInt(10)}}

	bal, err := BalanceOf(context.Background(), caller, token, holder)
	require.NoError(t, err)
	require.Equal(t, int64(10), bal.Int64())

	bal, err = BalanceOf(context.Background(), caller, token, common.HexToAddress("0x02"))
	require.NoError(t, err)
	require.Zero(t, bal.Sign())
}

func TestArtifact_CallUint256(t *testing.T) {
	a, err := Incrementer()
	require.NoError(t, err)

	n, err := a.CallUint256(context.Background(), uintCaller{big.NewInt(7)}, common.HexToAddress("0x01"), "number")
	require.NoError(t, err)
	require.Equal(t, int64(7), n.Int64())
}
