package testing

import (
	"context"
	"errors"
	"math/big"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/0xmhha/txverify/internal/errs"
)

// Node serves a MockClient over JSON-RPC with the eth namespace and the
// custom finality namespace
type Node struct {
	Chain *MockClient

	t      *testing.T
	server *rpc.Server
	http   *httptest.Server
}

// NewNode starts an in-process node for chain. prefix is the finality RPC
// namespace; empty means "moon".
func NewNode(t *testing.T, chain *MockClient, prefix string) *Node {
	t.Helper()
	if prefix == "" {
		prefix = "moon"
	}

	server := rpc.NewServer()
	if err := server.RegisterName("eth", &ethService{chain: chain}); err != nil {
		t.Fatalf("failed to register eth service: %v", err)
	}
	if err := server.RegisterName(prefix, &finalityService{chain: chain}); err != nil {
		t.Fatalf("failed to register %s service: %v", prefix, err)
	}
	t.Cleanup(server.Stop)

	return &Node{Chain: chain, t: t, server: server}
}

// Dial returns an in-process RPC connection
func (n *Node) Dial() *rpc.Client {
	c := rpc.DialInProc(n.server)
	n.t.Cleanup(c.Close)
	return c
}

// URL starts an HTTP endpoint on first use and returns its address
func (n *Node) URL() string {
	if n.http == nil {
		n.http = httptest.NewServer(n.server)
		n.t.Cleanup(n.http.Close)
	}
	return n.http.URL
}

// callArgs is the subset of a transaction call object the node reads
type callArgs struct {
	From  *common.Address `json:"from"`
	To    *common.Address `json:"to"`
	Data  hexutil.Bytes   `json:"data"`
	Input hexutil.Bytes   `json:"input"`
	Value *hexutil.Big    `json:"value"`
}

func (a callArgs) msg() ethereum.CallMsg {
	msg := ethereum.CallMsg{To: a.To, Data: a.Input}
	if a.From != nil {
		msg.From = *a.From
	}
	if len(msg.Data) == 0 {
		msg.Data = a.Data
	}
	if a.Value != nil {
		msg.Value = a.Value.ToInt()
	}
	return msg
}

// rpcError strips the client-side classification so the node answers with
// the plain message, the way a real node does
func rpcError(err error) error {
	var e *errs.Error
	if errors.As(err, &e) {
		return e.Err
	}
	return err
}

type ethService struct {
	chain *MockClient
}

func (s *ethService) ChainId(ctx context.Context) (*hexutil.Big, error) {
	id, err := s.chain.ChainID(ctx)
	return (*hexutil.Big)(id), rpcError(err)
}

func (s *ethService) BlockNumber(ctx context.Context) (hexutil.Uint64, error) {
	n, err := s.chain.BlockNumber(ctx)
	return hexutil.Uint64(n), rpcError(err)
}

func (s *ethService) GetBalance(ctx context.Context, account common.Address, _ string) (*hexutil.Big, error) {
	balance, err := s.chain.BalanceAt(ctx, account, nil)
	if err != nil {
		return nil, rpcError(err)
	}
	return (*hexutil.Big)(balance), nil
}

func (s *ethService) GetTransactionCount(ctx context.Context, account common.Address, _ string) (hexutil.Uint64, error) {
	nonce, err := s.chain.PendingNonceAt(ctx, account)
	return hexutil.Uint64(nonce), rpcError(err)
}

func (s *ethService) GasPrice(ctx context.Context) (*hexutil.Big, error) {
	price, err := s.chain.SuggestGasPrice(ctx)
	if err != nil {
		return nil, rpcError(err)
	}
	return (*hexutil.Big)(price), nil
}

func (s *ethService) MaxPriorityFeePerGas(ctx context.Context) (*hexutil.Big, error) {
	tip, err := s.chain.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, rpcError(err)
	}
	return (*hexutil.Big)(tip), nil
}

func (s *ethService) EstimateGas(ctx context.Context, args callArgs, _ *string) (hexutil.Uint64, error) {
	gas, err := s.chain.EstimateGas(ctx, args.msg())
	return hexutil.Uint64(gas), rpcError(err)
}

func (s *ethService) SendRawTransaction(ctx context.Context, input hexutil.Bytes) (common.Hash, error) {
	hash, err := s.chain.SendRawTransaction(ctx, input)
	return hash, rpcError(err)
}

func (s *ethService) GetTransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	receipt, err := s.chain.TransactionReceipt(ctx, hash)
	if errors.Is(err, ethereum.NotFound) {
		return nil, nil
	}
	return receipt, rpcError(err)
}

func (s *ethService) GetBlockByNumber(ctx context.Context, number rpc.BlockNumber, _ bool) (*types.Header, error) {
	header, err := s.chain.HeaderByNumber(ctx, big.NewInt(number.Int64()))
	if errors.Is(err, ethereum.NotFound) {
		return nil, nil
	}
	return header, rpcError(err)
}

func (s *ethService) GetCode(ctx context.Context, account common.Address, _ string) (hexutil.Bytes, error) {
	code, err := s.chain.CodeAt(ctx, account, nil)
	return code, rpcError(err)
}

func (s *ethService) Call(ctx context.Context, args callArgs, _ string) (hexutil.Bytes, error) {
	out, err := s.chain.CallContract(ctx, args.msg(), nil)
	return out, rpcError(err)
}

type finalityService struct {
	chain *MockClient
}

func (s *finalityService) IsBlockFinalized(ctx context.Context, blockHash common.Hash) (bool, error) {
	ok, err := s.chain.IsBlockFinalized(ctx, blockHash)
	return ok, rpcError(err)
}

func (s *finalityService) IsTxFinalized(ctx context.Context, txHash common.Hash) (bool, error) {
	ok, err := s.chain.IsTxFinalized(ctx, txHash)
	return ok, rpcError(err)
}
