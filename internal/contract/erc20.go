package contract

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"
)

// ERC20MetadataABI covers the optional ERC-20 metadata getters
const ERC20MetadataABI = `[
	{"inputs":[],"name":"name","outputs":[{"internalType":"string","name":"","type":"string"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"symbol","outputs":[{"internalType":"string","name":"","type":"string"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"decimals","outputs":[{"internalType":"uint8","name":"","type":"uint8"}],"stateMutability":"view","type":"function"}
]`

// ERC20BalanceABI covers balanceOf, the only getter every ERC-20 must answer
const ERC20BalanceABI = `[
	{"inputs":[{"internalType":"address","name":"account","type":"address"}],"name":"balanceOf","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"}
]`

// TokenMetadata is the name, symbol and decimals of a token
type TokenMetadata struct {
	Name     string
	Symbol   string
	Decimals uint8
}

var (
	erc20Once sync.Once
	erc20     *Artifact
	erc20Err  error

	balanceOnce sync.Once
	balance     *Artifact
	balanceErr  error
)

func erc20Balance() (*Artifact, error) {
	balanceOnce.Do(func() {
		parsed, err := abi.JSON(strings.NewReader(ERC20BalanceABI))
		if err != nil {
			balanceErr = fmt.Errorf("failed to parse ERC20 ABI: %w", err)
			return
		}
		balance = &Artifact{Name: "ERC20", ABI: parsed}
	})
	return balance, balanceErr
}

// BalanceOf returns the token balance of account
func BalanceOf(ctx context.Context, caller Caller, token, account common.Address) (*big.Int, error) {
	a, err := erc20Balance()
	if err != nil {
		return nil, err
	}
	bal, err := a.CallUint256(ctx, caller, token, "balanceOf", account)
	if err != nil {
		return nil, fmt.Errorf("failed to read balance of %s: %w", account.Hex(), err)
	}
	return bal, nil
}

func erc20Metadata() (*Artifact, error) {
	erc20Once.Do(func() {
		parsed, err := abi.JSON(strings.NewReader(ERC20MetadataABI))
		if err != nil {
			erc20Err = fmt.Errorf("failed to parse ERC20 ABI: %w", err)
			return
		}
		erc20 = &Artifact{Name: "ERC20", ABI: parsed}
	})
	return erc20, erc20Err
}

// ReadMetadata queries name, symbol and decimals of token concurrently
func ReadMetadata(ctx context.Context, caller Caller, token common.Address) (*TokenMetadata, error) {
	a, err := erc20Metadata()
	if err != nil {
		return nil, err
	}

	var meta TokenMetadata
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		values, err := a.Call(ctx, caller, token, "name")
		if err != nil {
			return err
		}
		return assign(&meta.Name, values, "name")
	})
	g.Go(func() error {
		values, err := a.Call(ctx, caller, token, "symbol")
		if err != nil {
			return err
		}
		return assign(&meta.Symbol, values, "symbol")
	})
	g.Go(func() error {
		values, err := a.Call(ctx, caller, token, "decimals")
		if err != nil {
			return err
		}
		return assign(&meta.Decimals, values, "decimals")
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to read metadata of %s: %w", token.Hex(), err)
	}
	return &meta, nil
}

func assign[T any](dst *T, values []interface{}, method string) error {
	if len(values) != 1 {
		return fmt.Errorf("%s returned %d values, want 1", method, len(values))
	}
	v, ok := values[0].(T)
	if !ok {
		return fmt.Errorf("%s returned %T", method, values[0])
	}
	*dst = v
	return nil
}
