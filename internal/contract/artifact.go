package contract

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/0xmhha/txverify/internal/errs"
)

// Artifact is a compiled contract: its ABI and creation bytecode
type Artifact struct {
	Name     string
	ABI      abi.ABI
	Bytecode []byte
}

// Caller executes read-only calls
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// artifactJSON covers solc standard JSON, hardhat and `solc --combined-json` layouts
type artifactJSON struct {
	ContractName string          `json:"contractName"`
	ABI          json.RawMessage `json:"abi"`
	Bytecode     json.RawMessage `json:"bytecode"`
	Bin          string          `json:"bin"`
	EVM          struct {
		Bytecode struct {
			Object string `json:"object"`
		} `json:"bytecode"`
	} `json:"evm"`
}

// NewArtifact parses an ABI JSON string and hex bytecode
func NewArtifact(name, abiJSON, bytecode string) (*Artifact, error) {
	parsed, err := abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		return nil, errs.Configuration("contract.NewArtifact", "failed to parse ABI of %s: %v", name, err)
	}
	code, err := decodeHex(bytecode)
	if err != nil {
		return nil, errs.Configuration("contract.NewArtifact", "failed to decode bytecode of %s: %v", name, err)
	}
	return &Artifact{Name: name, ABI: parsed, Bytecode: code}, nil
}

// LoadArtifact reads a compiled contract from a JSON file
func LoadArtifact(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Configuration("contract.LoadArtifact", "failed to read artifact: %v", err)
	}
	return ParseArtifact(data)
}

// ParseArtifact decodes a compiled contract. The ABI may be embedded as an
// array or as a JSON string; bytecode is read from bytecode, bin or
// evm.bytecode.object.
func ParseArtifact(data []byte) (*Artifact, error) {
	const op = "contract.ParseArtifact"

	var raw artifactJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errs.Configuration(op, "invalid artifact JSON: %v", err)
	}
	if len(raw.ABI) == 0 {
		return nil, errs.Configuration(op, "artifact has no abi")
	}

	abiJSON := string(raw.ABI)
	var nested string
	if err := json.Unmarshal(raw.ABI, &nested); err == nil {
		abiJSON = nested
	}

	bytecode := raw.EVM.Bytecode.Object
	if bytecode == "" {
		bytecode = raw.Bin
	}
	if bytecode == "" && len(raw.Bytecode) > 0 {
		var s string
		if err := json.Unmarshal(raw.Bytecode, &s); err == nil {
			bytecode = s
		} else {
			var obj struct {
				Object string `json:"object"`
			}
			if err := json.Unmarshal(raw.Bytecode, &obj); err == nil {
				bytecode = obj.Object
			}
		}
	}
	if bytecode == "" {
		return nil, errs.Configuration(op, "artifact has no bytecode")
	}

	return NewArtifact(raw.ContractName, abiJSON, bytecode)
}

// DeployInput returns the creation bytecode followed by the packed
// constructor arguments
func (a *Artifact) DeployInput(args ...interface{}) ([]byte, error) {
	input := make([]byte, len(a.Bytecode))
	copy(input, a.Bytecode)

	if len(args) == 0 {
		return input, nil
	}
	packed, err := a.ABI.Pack("", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack constructor args: %w", err)
	}
	return append(input, packed...), nil
}

// Pack encodes a method call
func (a *Artifact) Pack(method string, args ...interface{}) ([]byte, error) {
	if _, ok := a.ABI.Methods[method]; !ok {
		return nil, fmt.Errorf("method %s not found in %s ABI", method, a.Name)
	}
	data, err := a.ABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", method, err)
	}
	return data, nil
}

// Unpack decodes the return values of a method
func (a *Artifact) Unpack(method string, output []byte) ([]interface{}, error) {
	values, err := a.ABI.Unpack(method, output)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s: %w", method, err)
	}
	return values, nil
}

// Call performs a read-only call of method on the contract at addr
func (a *Artifact) Call(ctx context.Context, caller Caller, addr common.Address, method string, args ...interface{}) ([]interface{}, error) {
	data, err := a.Pack(method, args...)
	if err != nil {
		return nil, err
	}
	output, err := caller.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("%s call failed: %w", method, err)
	}
	return a.Unpack(method, output)
}

// CallUint256 performs a read-only call that returns a single uint256
func (a *Artifact) CallUint256(ctx context.Context, caller Caller, addr common.Address, method string, args ...interface{}) (*big.Int, error) {
	values, err := a.Call(ctx, caller, addr, method, args...)
	if err != nil {
		return nil, err
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("%s returned %d values, want 1", method, len(values))
	}
	n, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%s returned %T, want uint256", method, values[0])
	}
	return n, nil
}

// BytecodeHex returns the creation bytecode as 0x-prefixed hex
func (a *Artifact) BytecodeHex() string {
	return "0x" + common.Bytes2Hex(a.Bytecode)
}

func decodeHex(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if s == "" {
		return nil, fmt.Errorf("empty bytecode")
	}
	return hex.DecodeString(s)
}
