package testing

import (
	"bytes"
	"errors"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/0xmhha/txverify/internal/contract"
)

// ErrReverted is returned by simulated calls that do not match a method
var ErrReverted = errors.New("execution reverted")

// Contract is a contract simulated by MockClient
type Contract interface {
	// Call answers a read-only eth_call
	Call(data []byte) ([]byte, error)
	// Transact applies a transaction. It reports success and any extra wei
	// taken from the sender.
	Transact(from common.Address, data []byte, value *big.Int) (bool, *big.Int)
}

// Deployer turns creation input into runtime code and a simulated contract
type Deployer func(input []byte) ([]byte, Contract, bool)

// Incrementer simulates the Incrementer contract
type Incrementer struct {
	mu     sync.Mutex
	number *big.Int
}

// NewIncrementer creates an Incrementer holding n
func NewIncrementer(n *big.Int) *Incrementer {
	return &Incrementer{number: new(big.Int).Set(n)}
}

// Number returns the stored value
func (c *Incrementer) Number() *big.Int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return new(big.Int).Set(c.number)
}

// Call implements Contract
func (c *Incrementer) Call(data []byte) ([]byte, error) {
	method, err := incrementerMethod(data)
	if err != nil {
		return nil, err
	}
	if method.Name != "number" {
		return nil, nil
	}
	return method.Outputs.Pack(c.Number())
}

// Transact implements Contract
func (c *Incrementer) Transact(_ common.Address, data []byte, value *big.Int) (bool, *big.Int) {
	method, err := incrementerMethod(data)
	if err != nil || (value != nil && value.Sign() != 0) {
		return false, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	switch method.Name {
	case "increment":
		args, err := method.Inputs.Unpack(data[4:])
		if err != nil || len(args) != 1 {
			return false, nil
		}
		c.number.Add(c.number, args[0].(*big.Int))
	case "reset":
		c.number.SetUint64(0)
	case "number":
	default:
		return false, nil
	}
	return true, nil
}

func incrementerMethod(data []byte) (*abi.Method, error) {
	if len(data) < 4 {
		return nil, ErrReverted
	}
	a, err := contract.Incrementer()
	if err != nil {
		return nil, err
	}
	method, err := a.ABI.MethodById(data[:4])
	if err != nil {
		return nil, ErrReverted
	}
	return method, nil
}

// DeployIncrementer recognises Incrementer creation input and starts the
// contract with its constructor argument
func DeployIncrementer(input []byte) ([]byte, Contract, bool) {
	a, err := contract.Incrementer()
	if err != nil || !bytes.HasPrefix(input, a.Bytecode) {
		return nil, nil, false
	}
	args, err := a.ABI.Constructor.Inputs.Unpack(input[len(a.Bytecode):])
	if err != nil || len(args) != 1 {
		return nil, nil, false
	}
	return common.FromHex(contract.IncrementerRuntime), NewIncrementer(args[0].(*big.Int)), true
}

// XCMUtils simulates the XCM Utilities precompile. Executed messages cost
// ExecuteCost wei; sent messages only count.
type XCMUtils struct {
	ExecuteCost *big.Int

	mu       sync.Mutex
	abi      abi.ABI
	executed [][]byte
	sent     [][]byte
}

// NewXCMUtils creates the precompile simulator
func NewXCMUtils(executeCost *big.Int) *XCMUtils {
	parsed, err := abi.JSON(strings.NewReader(contract.XCMUtilsABI))
	if err != nil {
		panic(err)
	}
	return &XCMUtils{ExecuteCost: executeCost, abi: parsed}
}

// Executed returns the messages passed to xcmExecute
func (x *XCMUtils) Executed() [][]byte {
	x.mu.Lock()
	defer x.mu.Unlock()
	return append([][]byte(nil), x.executed...)
}

// Sent returns the messages passed to xcmSend
func (x *XCMUtils) Sent() [][]byte {
	x.mu.Lock()
	defer x.mu.Unlock()
	return append([][]byte(nil), x.sent...)
}

// Call implements Contract
func (x *XCMUtils) Call(data []byte) ([]byte, error) {
	return nil, ErrReverted
}

// Transact implements Contract
func (x *XCMUtils) Transact(_ common.Address, data []byte, _ *big.Int) (bool, *big.Int) {
	if len(data) < 4 {
		return false, nil
	}
	method, err := x.abi.MethodById(data[:4])
	if err != nil {
		return false, nil
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return false, nil
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	switch method.Name {
	case "xcmExecute":
		x.executed = append(x.executed, args[0].([]byte))
		return true, x.ExecuteCost
	case "xcmSend":
		x.sent = append(x.sent, args[1].([]byte))
		return true, nil
	}
	return false, nil
}

// Token simulates the ERC-20 metadata getters of an XC-20
type Token struct {
	Meta contract.TokenMetadata
	abi  abi.ABI
}

// NewToken creates a token simulator
func NewToken(meta contract.TokenMetadata) *Token {
	parsed, err := abi.JSON(strings.NewReader(contract.ERC20MetadataABI))
	if err != nil {
		panic(err)
	}
	return &Token{Meta: meta, abi: parsed}
}

// Call implements Contract
func (t *Token) Call(data []byte) ([]byte, error) {
	if len(data) < 4 {
		return nil, ErrReverted
	}
	method, err := t.abi.MethodById(data[:4])
	if err != nil {
		return nil, ErrReverted
	}
	switch method.Name {
	case "name":
		return method.Outputs.Pack(t.Meta.Name)
	case "symbol":
		return method.Outputs.Pack(t.Meta.Symbol)
	case "decimals":
		return method.Outputs.Pack(t.Meta.Decimals)
	}
	return nil, ErrReverted
}

// Transact implements Contract
func (t *Token) Transact(common.Address, []byte, *big.Int) (bool, *big.Int) {
	return false, nil
}

// MyTokenABI is an ERC-20 whose supply is minted to the caller of initialize
const MyTokenABI = `[
	{"inputs":[{"internalType":"uint256","name":"initialSupply","type":"uint256"}],"name":"initialize","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[{"internalType":"address","name":"account","type":"address"}],"name":"balanceOf","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"inputs":[{"internalType":"address","name":"to","type":"address"},{"internalType":"uint256","name":"amount","type":"uint256"}],"name":"transfer","outputs":[{"internalType":"bool","name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[],"name":"totalSupply","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"}
]`

// MyTokenBytecode is the creation code recognised by DeployMyToken. Its last
// four bytes are the simulated runtime code.
const MyTokenBytecode = "0x6080604052348015600f57600080fd5b5060aa80601d6000396000f3fe6080604052"

// MyToken simulates an initializable ERC-20
type MyToken struct {
	mu          sync.Mutex
	abi         abi.ABI
	initialized bool
	supply      *big.Int
	balances    map[common.Address]*big.Int
}

// NewMyToken creates an uninitialized token
func NewMyToken() *MyToken {
	parsed, err := abi.JSON(strings.NewReader(MyTokenABI))
	if err != nil {
		panic(err)
	}
	return &MyToken{abi: parsed, supply: new(big.Int), balances: make(map[common.Address]*big.Int)}
}

// BalanceOf returns the balance of account
func (t *MyToken) BalanceOf(account common.Address) *big.Int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.balanceLocked(account)
}

func (t *MyToken) balanceLocked(account common.Address) *big.Int {
	if bal, ok := t.balances[account]; ok {
		return new(big.Int).Set(bal)
	}
	return new(big.Int)
}

// Call implements Contract
func (t *MyToken) Call(data []byte) ([]byte, error) {
	method, args, err := t.decode(data)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	switch method.Name {
	case "balanceOf":
		return method.Outputs.Pack(t.balanceLocked(args[0].(common.Address)))
	case "totalSupply":
		return method.Outputs.Pack(new(big.Int).Set(t.supply))
	}
	return nil, ErrReverted
}

// Transact implements Contract. initialize succeeds once; transfer fails
// when the sender holds less than the amount.
func (t *MyToken) Transact(from common.Address, data []byte, value *big.Int) (bool, *big.Int) {
	if value != nil && value.Sign() != 0 {
		return false, nil
	}
	method, args, err := t.decode(data)
	if err != nil {
		return false, nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	switch method.Name {
	case "initialize":
		if t.initialized {
			return false, nil
		}
		t.initialized = true
		amount := args[0].(*big.Int)
		t.supply.Set(amount)
		t.balances[from] = new(big.Int).Set(amount)
	case "transfer":
		to, amount := args[0].(common.Address), args[1].(*big.Int)
		bal := t.balanceLocked(from)
		if bal.Cmp(amount) < 0 {
			return false, nil
		}
		t.balances[from] = bal.Sub(bal, amount)
		t.balances[to] = new(big.Int).Add(t.balanceLocked(to), amount)
	default:
		return false, nil
	}
	return true, nil
}

func (t *MyToken) decode(data []byte) (*abi.Method, []interface{}, error) {
	if len(data) < 4 {
		return nil, nil, ErrReverted
	}
	method, err := t.abi.MethodById(data[:4])
	if err != nil {
		return nil, nil, ErrReverted
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, nil, ErrReverted
	}
	return method, args, nil
}

// DeployMyToken recognises MyTokenBytecode and starts an uninitialized token
func DeployMyToken(input []byte) ([]byte, Contract, bool) {
	code := common.FromHex(MyTokenBytecode)
	if !bytes.Equal(input, code) {
		return nil, nil, false
	}
	return code[len(code)-4:], NewMyToken(), true
}

// Deployers tries each deployer in turn
func Deployers(deployers ...Deployer) Deployer {
	return func(input []byte) ([]byte, Contract, bool) {
		for _, d := range deployers {
			if runtime, c, ok := d(input); ok {
				return runtime, c, ok
			}
		}
		return nil, nil, false
	}
}
