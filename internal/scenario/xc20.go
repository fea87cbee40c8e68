package scenario

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/0xmhha/txverify/internal/contract"
	"github.com/0xmhha/txverify/internal/verify"
)

// XC20Metadata reads name, symbol and decimals of the configured XC-20 and
// compares them with the expected values. It sends nothing.
func XC20Metadata(ctx context.Context, env *Env, res *Result) error {
	cfg := env.Config
	token := common.HexToAddress(cfg.XC20Token)

	meta, err := contract.ReadMetadata(ctx, env.Client, token)
	if err != nil {
		return err
	}

	if cfg.XC20Name == "" {
		res.Skip("name()", "no expected name configured")
	} else if err := res.Check("name()", verify.Equal("name() of "+token.Hex(), cfg.XC20Name, meta.Name)); err != nil {
		return err
	}
	if err := res.Check("symbol()", verify.Equal("symbol() of "+token.Hex(), cfg.XC20Symbol, meta.Symbol)); err != nil {
		return err
	}
	return res.Check("decimals()", verify.Equal("decimals() of "+token.Hex(), cfg.XC20Decimals, meta.Decimals))
}
