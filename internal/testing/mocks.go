package testing

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/0xmhha/txverify/internal/errs"
)

// Node rejections returned by SendRawTransaction
var (
	ErrNonceTooLow        = errors.New("nonce too low")
	ErrNonceTooHigh       = errors.New("nonce too high")
	ErrInsufficientFunds  = errors.New("insufficient funds for gas * price + value")
	ErrAlreadyKnown       = errors.New("already known")
	ErrInvalidChainID     = errors.New("invalid chain id")
	ErrInvalidTransaction = errors.New("invalid transaction")
)

// Gas charged by the simulated chain
const (
	TransferGas = 21000
	CallGas     = 60000
	DeployGas   = 300000
)

// MockClient simulates a node in memory with the method set of the RPC
// client. Transactions are mined lazily: a submitted transaction stays
// pending for InclusionPolls receipt queries and is then included in a new
// block. The finalized head trails the latest block by FinalityLag.
type MockClient struct {
	mu sync.Mutex

	// Configurable return values
	ChainIDValue   *big.Int
	GasPriceValue  *big.Int
	GasTipCapValue *big.Int

	// Chain behaviour
	InclusionPolls int
	FinalityLag    uint64
	Deployer       Deployer

	// AutoMine appends an empty block on every BlockNumber call, so polling
	// callers observe a chain that keeps producing blocks
	AutoMine bool

	// Error responses
	BlockNumberError error
	BalanceError     error
	NonceError       error
	GasPriceError    error
	EstimateGasError error
	SendError        error
	ReceiptError     error
	FinalityError    error

	head      uint64
	finalized uint64
	headers   map[uint64]*types.Header
	blocks    map[common.Hash]uint64
	balances  map[common.Address]*big.Int
	nonces    map[common.Address]uint64
	code      map[common.Address][]byte
	contracts map[common.Address]Contract
	pending   map[common.Hash]*pendingTx
	receipts  map[common.Hash]*types.Receipt

	// Sent transactions tracking
	SentRawTxs [][]byte

	// Call counters
	CallCounts map[string]int
}

type pendingTx struct {
	tx    *types.Transaction
	from  common.Address
	polls int
}

// NewMockClient creates a chain at block 10 with block 8 finalized
func NewMockClient() *MockClient {
	m := &MockClient{
		ChainIDValue:   new(big.Int).Set(TestChainID),
		GasPriceValue:  Gwei(1),
		GasTipCapValue: Gwei(1),
		InclusionPolls: 1,
		FinalityLag:    2,
		Deployer:       Deployers(DeployIncrementer, DeployMyToken),
		head:           10,
		finalized:      8,
		headers:        make(map[uint64]*types.Header),
		blocks:         make(map[common.Hash]uint64),
		balances:       make(map[common.Address]*big.Int),
		nonces:         make(map[common.Address]uint64),
		code:           make(map[common.Address][]byte),
		contracts:      make(map[common.Address]Contract),
		pending:        make(map[common.Hash]*pendingTx),
		receipts:       make(map[common.Hash]*types.Receipt),
		CallCounts:     make(map[string]int),
	}
	for n := uint64(0); n <= m.head; n++ {
		m.headerLocked(n)
	}
	return m
}

func (m *MockClient) incrementCallCount(method string) {
	m.CallCounts[method]++
}

// GetCallCount returns the number of times a method was called
func (m *MockClient) GetCallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CallCounts[method]
}

// Fund sets the balance of an account
func (m *MockClient) Fund(account common.Address, wei *big.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[account] = new(big.Int).Set(wei)
}

// Balance returns the current balance of an account
func (m *MockClient) Balance(account common.Address) *big.Int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balanceLocked(account)
}

// SetContract installs a simulated contract with its runtime code
func (m *MockClient) SetContract(addr common.Address, c Contract, code []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contracts[addr] = c
	m.code[addr] = code
}

// Contract returns the simulated contract at addr, if any
func (m *MockClient) Contract(addr common.Address) Contract {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.contracts[addr]
}

// Head returns the latest block number
func (m *MockClient) Head() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.head
}

// Finalized returns the finalized block number
func (m *MockClient) Finalized() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.finalized
}

// Mine appends n empty blocks
func (m *MockClient) Mine(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := 0; i < n; i++ {
		m.head++
		m.headerLocked(m.head)
		m.advanceFinalityLocked()
	}
}

// Finalize moves the finalized head to the latest block
func (m *MockClient) Finalize() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finalized = m.head
}

// SetFinalized forces the finalized head, including backwards
func (m *MockClient) SetFinalized(n uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finalized = n
}

// MineAll includes every pending transaction immediately and returns the
// receipts in submission order
func (m *MockClient) MineAll() []*types.Receipt {
	m.mu.Lock()
	defer m.mu.Unlock()

	var receipts []*types.Receipt
	for _, raw := range m.SentRawTxs {
		tx := new(types.Transaction)
		if err := tx.UnmarshalBinary(raw); err != nil {
			continue
		}
		if p, ok := m.pending[tx.Hash()]; ok {
			receipts = append(receipts, m.mineLocked(p))
		}
	}
	return receipts
}

// ChainID returns the configured chain ID
func (m *MockClient) ChainID(ctx context.Context) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.incrementCallCount("ChainID")
	return new(big.Int).Set(m.ChainIDValue), nil
}

// BlockNumber returns the latest block number
func (m *MockClient) BlockNumber(ctx context.Context) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.incrementCallCount("BlockNumber")
	if m.BlockNumberError != nil {
		return 0, m.BlockNumberError
	}
	head := m.head
	if m.AutoMine {
		m.head++
		m.headerLocked(m.head)
		m.advanceFinalityLocked()
	}
	return head, nil
}

// HeaderByNumber returns the header of a block. nil and the latest tag select
// the head, rpc.FinalizedBlockNumber the finalized head.
func (m *MockClient) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.incrementCallCount("HeaderByNumber")
	if m.BlockNumberError != nil {
		return nil, m.BlockNumberError
	}

	n := m.head
	if number != nil {
		switch {
		case number.Sign() >= 0:
			n = number.Uint64()
		case number.Int64() == int64(rpc.FinalizedBlockNumber), number.Int64() == int64(rpc.SafeBlockNumber):
			n = m.finalized
		case number.Int64() == int64(rpc.LatestBlockNumber), number.Int64() == int64(rpc.PendingBlockNumber):
		default:
			return nil, errs.Transport("eth_getBlockByNumber", fmt.Errorf("unsupported block tag %d", number.Int64()))
		}
	}
	if n > m.head {
		return nil, ethereum.NotFound
	}
	return types.CopyHeader(m.headerLocked(n)), nil
}

// FinalizedHeader returns the header tagged "finalized"
func (m *MockClient) FinalizedHeader(ctx context.Context) (*types.Header, error) {
	return m.HeaderByNumber(ctx, big.NewInt(int64(rpc.FinalizedBlockNumber)))
}

// BalanceAt returns the balance of an account
func (m *MockClient) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.incrementCallCount("BalanceAt")
	if m.BalanceError != nil {
		return nil, m.BalanceError
	}
	return m.balanceLocked(account), nil
}

// BalancesAt returns several balances at once
func (m *MockClient) BalancesAt(ctx context.Context, accounts []common.Address) ([]*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.incrementCallCount("BalancesAt")
	if m.BalanceError != nil {
		return nil, m.BalanceError
	}
	balances := make([]*big.Int, len(accounts))
	for i, account := range accounts {
		balances[i] = m.balanceLocked(account)
	}
	return balances, nil
}

// PendingNonceAt returns the number of transactions accepted from account
func (m *MockClient) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.incrementCallCount("PendingNonceAt")
	if m.NonceError != nil {
		return 0, m.NonceError
	}
	return m.nonces[account], nil
}

// SuggestGasPrice returns the configured gas price
func (m *MockClient) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.incrementCallCount("SuggestGasPrice")
	if m.GasPriceError != nil {
		return nil, m.GasPriceError
	}
	return new(big.Int).Set(m.GasPriceValue), nil
}

// SuggestGasTipCap returns the configured gas tip cap
func (m *MockClient) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.incrementCallCount("SuggestGasTipCap")
	if m.GasPriceError != nil {
		return nil, m.GasPriceError
	}
	return new(big.Int).Set(m.GasTipCapValue), nil
}

// EstimateGas returns the gas the simulated chain charges for msg
func (m *MockClient) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.incrementCallCount("EstimateGas")
	if m.EstimateGasError != nil {
		return 0, m.EstimateGasError
	}
	return m.gasLocked(msg.To), nil
}

// SendRawTransaction accepts a signed payload into the pending pool. Node
// rejections are returned as submission failures.
func (m *MockClient) SendRawTransaction(ctx context.Context, rawTx []byte) (common.Hash, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.incrementCallCount("SendRawTransaction")
	m.SentRawTxs = append(m.SentRawTxs, rawTx)
	if m.SendError != nil {
		return common.Hash{}, m.SendError
	}

	hash, err := m.acceptLocked(rawTx)
	if err != nil {
		return common.Hash{}, errs.Submission("eth_sendRawTransaction", err)
	}
	return hash, nil
}

func (m *MockClient) acceptLocked(rawTx []byte) (common.Hash, error) {
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(rawTx); err != nil {
		return common.Hash{}, fmt.Errorf("%w: %v", ErrInvalidTransaction, err)
	}
	if tx.ChainId().Cmp(m.ChainIDValue) != 0 {
		return common.Hash{}, ErrInvalidChainID
	}
	from, err := types.Sender(types.LatestSignerForChainID(m.ChainIDValue), tx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: %v", ErrInvalidTransaction, err)
	}

	hash := tx.Hash()
	if _, ok := m.pending[hash]; ok {
		return common.Hash{}, ErrAlreadyKnown
	}
	if _, ok := m.receipts[hash]; ok {
		return common.Hash{}, ErrAlreadyKnown
	}

	switch next := m.nonces[from]; {
	case tx.Nonce() < next:
		return common.Hash{}, ErrNonceTooLow
	case tx.Nonce() > next:
		return common.Hash{}, ErrNonceTooHigh
	}

	if m.balanceLocked(from).Cmp(tx.Cost()) < 0 {
		return common.Hash{}, ErrInsufficientFunds
	}

	m.nonces[from]++
	m.pending[hash] = &pendingTx{tx: tx, from: from, polls: m.InclusionPolls}
	return hash, nil
}

// TransactionReceipt returns the receipt of an included transaction. Pending
// transactions return ethereum.NotFound until their polls are used up.
func (m *MockClient) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.incrementCallCount("TransactionReceipt")
	if m.ReceiptError != nil {
		return nil, m.ReceiptError
	}

	if receipt, ok := m.receipts[txHash]; ok {
		return receipt, nil
	}
	p, ok := m.pending[txHash]
	if !ok {
		return nil, ethereum.NotFound
	}
	if p.polls > 0 {
		p.polls--
		return nil, ethereum.NotFound
	}
	return m.mineLocked(p), nil
}

// CodeAt returns the runtime code at an address
func (m *MockClient) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.incrementCallCount("CodeAt")
	return m.code[account], nil
}

// CallContract answers a read-only call from the simulated contract
func (m *MockClient) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	m.mu.Lock()
	m.incrementCallCount("CallContract")
	var c Contract
	if msg.To != nil {
		c = m.contracts[*msg.To]
	}
	m.mu.Unlock()

	if c == nil {
		return nil, nil
	}
	out, err := c.Call(msg.Data)
	if err != nil {
		return nil, errs.Transport("eth_call", err)
	}
	return out, nil
}

// IsBlockFinalized reports whether a known block is at or below the finalized head
func (m *MockClient) IsBlockFinalized(ctx context.Context, blockHash common.Hash) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.incrementCallCount("IsBlockFinalized")
	if m.FinalityError != nil {
		return false, m.FinalityError
	}
	n, ok := m.blocks[blockHash]
	return ok && n <= m.finalized, nil
}

// IsTxFinalized reports whether an included transaction is at or below the finalized head
func (m *MockClient) IsTxFinalized(ctx context.Context, txHash common.Hash) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.incrementCallCount("IsTxFinalized")
	if m.FinalityError != nil {
		return false, m.FinalityError
	}
	receipt, ok := m.receipts[txHash]
	return ok && receipt.BlockNumber.Uint64() <= m.finalized, nil
}

func (m *MockClient) balanceLocked(account common.Address) *big.Int {
	if b, ok := m.balances[account]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

func (m *MockClient) addBalanceLocked(account common.Address, delta *big.Int) {
	m.balances[account] = new(big.Int).Add(m.balanceLocked(account), delta)
}

func (m *MockClient) gasLocked(to *common.Address) uint64 {
	switch {
	case to == nil:
		return DeployGas
	case m.contracts[*to] != nil:
		return CallGas
	default:
		return TransferGas
	}
}

func (m *MockClient) headerLocked(n uint64) *types.Header {
	if h, ok := m.headers[n]; ok {
		return h
	}
	h := &types.Header{
		ParentHash:  common.BigToHash(new(big.Int).SetUint64(n)),
		UncleHash:   types.EmptyUncleHash,
		Root:        types.EmptyRootHash,
		TxHash:      types.EmptyTxsHash,
		ReceiptHash: types.EmptyReceiptsHash,
		Difficulty:  new(big.Int),
		Number:      new(big.Int).SetUint64(n),
		GasLimit:    15_000_000,
		Time:        1_700_000_000 + n*6,
		Extra:       []byte{},
	}
	m.headers[n] = h
	m.blocks[h.Hash()] = n
	return h
}

func (m *MockClient) advanceFinalityLocked() {
	if m.head >= m.FinalityLag && m.head-m.FinalityLag > m.finalized {
		m.finalized = m.head - m.FinalityLag
	}
}

// mineLocked includes p in a new block and applies its effects
func (m *MockClient) mineLocked(p *pendingTx) *types.Receipt {
	tx := p.tx
	m.head++
	header := m.headerLocked(m.head)

	gasUsed := m.gasLocked(tx.To())
	if tx.Gas() < gasUsed {
		gasUsed = tx.Gas()
	}
	price := tx.GasPrice()
	m.addBalanceLocked(p.from, new(big.Int).Neg(new(big.Int).Mul(price, new(big.Int).SetUint64(gasUsed))))

	receipt := &types.Receipt{
		Type:              tx.Type(),
		Status:            types.ReceiptStatusSuccessful,
		CumulativeGasUsed: gasUsed,
		Logs:              []*types.Log{},
		TxHash:            tx.Hash(),
		GasUsed:           gasUsed,
		EffectiveGasPrice: price,
		BlockHash:         header.Hash(),
		BlockNumber:       new(big.Int).SetUint64(m.head),
	}

	switch to := tx.To(); {
	case to == nil:
		runtime, c, ok := m.Deployer(tx.Data())
		if !ok {
			receipt.Status = types.ReceiptStatusFailed
			break
		}
		addr := crypto.CreateAddress(p.from, tx.Nonce())
		m.code[addr] = runtime
		m.contracts[addr] = c
		receipt.ContractAddress = addr
		m.transferLocked(p.from, addr, tx.Value())
	case m.contracts[*to] != nil:
		ok, debit := m.contracts[*to].Transact(p.from, tx.Data(), tx.Value())
		if !ok {
			receipt.Status = types.ReceiptStatusFailed
			break
		}
		if debit != nil {
			m.addBalanceLocked(p.from, new(big.Int).Neg(debit))
		}
		m.transferLocked(p.from, *to, tx.Value())
	default:
		m.transferLocked(p.from, *to, tx.Value())
	}

	delete(m.pending, tx.Hash())
	m.receipts[tx.Hash()] = receipt
	m.advanceFinalityLocked()
	return receipt
}

func (m *MockClient) transferLocked(from, to common.Address, value *big.Int) {
	if value == nil || value.Sign() == 0 {
		return
	}
	m.addBalanceLocked(from, new(big.Int).Neg(value))
	m.addBalanceLocked(to, value)
}

// CreateSuccessReceipt creates a successful receipt for testing
func CreateSuccessReceipt(txHash common.Hash, blockNumber uint64, gasUsed uint64) *types.Receipt {
	return &types.Receipt{
		Status:      types.ReceiptStatusSuccessful,
		TxHash:      txHash,
		BlockNumber: new(big.Int).SetUint64(blockNumber),
		GasUsed:     gasUsed,
		Logs:        []*types.Log{},
	}
}

// CreateFailedReceipt creates a failed receipt for testing
func CreateFailedReceipt(txHash common.Hash, blockNumber uint64, gasUsed uint64) *types.Receipt {
	return &types.Receipt{
		Status:      types.ReceiptStatusFailed,
		TxHash:      txHash,
		BlockNumber: new(big.Int).SetUint64(blockNumber),
		GasUsed:     gasUsed,
		Logs:        []*types.Log{},
	}
}
