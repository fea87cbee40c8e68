package client

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"golang.org/x/time/rate"

	"github.com/0xmhha/txverify/internal/errs"
)

// DefaultFinalityPrefix is the RPC namespace of the custom finality methods
const DefaultFinalityPrefix = "moon"

// Client wraps the Ethereum client with the node-specific finality methods.
// Every error it returns is classified through package errs; receipt lookups
// for unmined transactions return ethereum.NotFound unchanged.
type Client struct {
	eth *ethclient.Client
	rpc *rpc.Client

	finalityPrefix string
	limiter        *rate.Limiter
}

// Option configures a Client
type Option func(*Client)

// WithFinalityPrefix sets the namespace of <prefix>_isBlockFinalized and
// <prefix>_isTxFinalized
func WithFinalityPrefix(prefix string) Option {
	return func(c *Client) {
		if prefix != "" {
			c.finalityPrefix = prefix
		}
	}
}

// WithRateLimit caps outgoing requests per second (0 = unlimited)
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps > 0 {
			burst := int(rps)
			if burst < 1 {
				burst = 1
			}
			c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		}
	}
}

// New creates a new client instance
func New(url string, opts ...Option) (*Client, error) {
	rpcClient, err := rpc.Dial(url)
	if err != nil {
		return nil, errs.Transport("dial", fmt.Errorf("failed to connect to RPC: %w", err))
	}

	return newClient(rpcClient, opts...), nil
}

// NewWithRPC wraps an existing RPC connection
func NewWithRPC(rpcClient *rpc.Client, opts ...Option) *Client {
	return newClient(rpcClient, opts...)
}

func newClient(rpcClient *rpc.Client, opts ...Option) *Client {
	c := &Client{
		eth:            ethclient.NewClient(rpcClient),
		rpc:            rpcClient,
		finalityPrefix: DefaultFinalityPrefix,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Close closes the client connection
func (c *Client) Close() {
	c.rpc.Close()
}

func (c *Client) wait(ctx context.Context, method string) error {
	if c.limiter == nil {
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return errs.Transport(method, fmt.Errorf("rate limiter: %w", err))
	}
	return nil
}

// ChainID returns the chain ID
func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	if err := c.wait(ctx, "eth_chainId"); err != nil {
		return nil, err
	}
	id, err := c.eth.ChainID(ctx)
	if err != nil {
		return nil, errs.Transport("eth_chainId", err)
	}
	return id, nil
}

// BlockNumber returns the latest block number
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	if err := c.wait(ctx, "eth_blockNumber"); err != nil {
		return 0, err
	}
	n, err := c.eth.BlockNumber(ctx)
	if err != nil {
		return 0, errs.Transport("eth_blockNumber", err)
	}
	return n, nil
}

// HeaderByNumber returns the header of a block by number. A nil number is the
// latest block; rpc.FinalizedBlockNumber selects the finalized head.
// Blocks the node does not serve yet return ethereum.NotFound.
func (c *Client) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	if err := c.wait(ctx, "eth_getBlockByNumber"); err != nil {
		return nil, err
	}
	header, err := c.eth.HeaderByNumber(ctx, number)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return nil, err
		}
		return nil, errs.Transport("eth_getBlockByNumber", err)
	}
	return header, nil
}

// FinalizedHeader returns the header tagged "finalized"
func (c *Client) FinalizedHeader(ctx context.Context) (*types.Header, error) {
	return c.HeaderByNumber(ctx, big.NewInt(int64(rpc.FinalizedBlockNumber)))
}

// BalanceAt returns the balance of an account at a given block
func (c *Client) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	if err := c.wait(ctx, "eth_getBalance"); err != nil {
		return nil, err
	}
	balance, err := c.eth.BalanceAt(ctx, account, blockNumber)
	if err != nil {
		return nil, errs.Transport("eth_getBalance", err)
	}
	return balance, nil
}

// BalancesAt fetches several balances in a single batch request
func (c *Client) BalancesAt(ctx context.Context, accounts []common.Address) ([]*big.Int, error) {
	if err := c.wait(ctx, "eth_getBalance"); err != nil {
		return nil, err
	}

	batch := make([]rpc.BatchElem, len(accounts))
	results := make([]hexutil.Big, len(accounts))
	for i, account := range accounts {
		batch[i] = rpc.BatchElem{
			Method: "eth_getBalance",
			Args:   []interface{}{account, "latest"},
			Result: &results[i],
		}
	}

	if err := c.rpc.BatchCallContext(ctx, batch); err != nil {
		return nil, errs.Transport("eth_getBalance", fmt.Errorf("batch call failed: %w", err))
	}

	balances := make([]*big.Int, len(accounts))
	for i, elem := range batch {
		if elem.Error != nil {
			return nil, errs.Transport("eth_getBalance", fmt.Errorf("balance of %s: %w", accounts[i].Hex(), elem.Error))
		}
		balances[i] = results[i].ToInt()
	}
	return balances, nil
}

// PendingNonceAt returns the pending transaction count for an account
func (c *Client) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	if err := c.wait(ctx, "eth_getTransactionCount"); err != nil {
		return 0, err
	}
	nonce, err := c.eth.PendingNonceAt(ctx, account)
	if err != nil {
		return 0, errs.Transport("eth_getTransactionCount", err)
	}
	return nonce, nil
}

// SuggestGasPrice returns the suggested gas price
func (c *Client) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	if err := c.wait(ctx, "eth_gasPrice"); err != nil {
		return nil, err
	}
	price, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return nil, errs.Transport("eth_gasPrice", err)
	}
	return price, nil
}

// SuggestGasTipCap returns the suggested gas tip cap (EIP-1559)
func (c *Client) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	if err := c.wait(ctx, "eth_maxPriorityFeePerGas"); err != nil {
		return nil, err
	}
	tip, err := c.eth.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, errs.Transport("eth_maxPriorityFeePerGas", err)
	}
	return tip, nil
}

// EstimateGas estimates the gas needed for a transaction
func (c *Client) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	if err := c.wait(ctx, "eth_estimateGas"); err != nil {
		return 0, err
	}
	gas, err := c.eth.EstimateGas(ctx, msg)
	if err != nil {
		return 0, errs.Transport("eth_estimateGas", err)
	}
	return gas, nil
}

// SendRawTransaction submits a signed payload. A JSON-RPC error answered by
// the node is a submission failure; anything else is a transport failure.
func (c *Client) SendRawTransaction(ctx context.Context, rawTx []byte) (common.Hash, error) {
	if err := c.wait(ctx, "eth_sendRawTransaction"); err != nil {
		return common.Hash{}, err
	}
	var hash common.Hash
	err := c.rpc.CallContext(ctx, &hash, "eth_sendRawTransaction", hexutil.Bytes(rawTx))
	if err != nil {
		if IsNodeRejection(err) {
			return common.Hash{}, errs.Submission("eth_sendRawTransaction", err)
		}
		return common.Hash{}, errs.Transport("eth_sendRawTransaction", err)
	}
	return hash, nil
}

// TransactionReceipt returns the receipt of a transaction by hash
func (c *Client) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	if err := c.wait(ctx, "eth_getTransactionReceipt"); err != nil {
		return nil, err
	}
	receipt, err := c.eth.TransactionReceipt(ctx, txHash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return nil, err
		}
		return nil, errs.Transport("eth_getTransactionReceipt", err)
	}
	return receipt, nil
}

// CodeAt returns the runtime code deployed at an address
func (c *Client) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	if err := c.wait(ctx, "eth_getCode"); err != nil {
		return nil, err
	}
	code, err := c.eth.CodeAt(ctx, account, blockNumber)
	if err != nil {
		return nil, errs.Transport("eth_getCode", err)
	}
	return code, nil
}

// CallContract executes a read-only call against the latest state
func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if err := c.wait(ctx, "eth_call"); err != nil {
		return nil, err
	}
	out, err := c.eth.CallContract(ctx, msg, blockNumber)
	if err != nil {
		return nil, errs.Transport("eth_call", err)
	}
	return out, nil
}

// IsBlockFinalized asks the node whether the block with the given hash is finalized
func (c *Client) IsBlockFinalized(ctx context.Context, blockHash common.Hash) (bool, error) {
	return c.finalityCall(ctx, c.finalityPrefix+"_isBlockFinalized", blockHash)
}

// IsTxFinalized asks the node whether the transaction with the given hash is finalized
func (c *Client) IsTxFinalized(ctx context.Context, txHash common.Hash) (bool, error) {
	return c.finalityCall(ctx, c.finalityPrefix+"_isTxFinalized", txHash)
}

func (c *Client) finalityCall(ctx context.Context, method string, hash common.Hash) (bool, error) {
	if err := c.wait(ctx, method); err != nil {
		return false, err
	}
	var finalized bool
	if err := c.rpc.CallContext(ctx, &finalized, method, hash); err != nil {
		return false, errs.Transport(method, err)
	}
	return finalized, nil
}

// IsNodeRejection reports whether err is a JSON-RPC error returned by the
// node rather than a failure to reach it
func IsNodeRejection(err error) bool {
	var rpcErr rpc.Error
	return errors.As(err, &rpcErr)
}
