package scenario

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/0xmhha/txverify/internal/config"
	"github.com/0xmhha/txverify/internal/contract"
	"github.com/0xmhha/txverify/internal/verify"
)

// Token deploys a compiled ERC-20, mints its supply to the sender with
// initialize and moves part of it to a fresh recipient
func Token(ctx context.Context, env *Env, res *Result) error {
	if err := env.RequireSigner(config.ScenarioToken); err != nil {
		return err
	}
	cfg := env.Config
	if cfg.TokenArtifactPath == "" {
		res.Skip("token deployed", "no token artifact configured")
		return nil
	}
	artifact, err := contract.LoadArtifact(cfg.TokenArtifactPath)
	if err != nil {
		return err
	}

	sender := env.Sender().Address
	mint := new(big.Int).SetUint64(cfg.TokenMint)
	amount := new(big.Int).SetUint64(cfg.TokenTransfer)

	input, err := artifact.DeployInput()
	if err != nil {
		return err
	}
	rec, err := env.Verifier.Deploy(ctx, input)
	res.Record(rec)
	if err != nil {
		return err
	}
	if err := res.Check("deployment succeeded", verify.Succeeded(rec.Receipt)); err != nil {
		return err
	}
	if err := res.Check("contract address assigned", verify.ContractCreated(rec.Receipt)); err != nil {
		return err
	}
	token := rec.Receipt.ContractAddress
	env.Logger.WithField("contract", token.Hex()).Info("token deployed")

	if err := transact(ctx, env, res, artifact, token, "initialize", mint); err != nil {
		return err
	}
	if err := checkTokenBalance(ctx, env, res, token, sender, "sender holds the minted supply", mint); err != nil {
		return err
	}

	recipient, err := env.Wallet.NewRecipient()
	if err != nil {
		return err
	}
	if err := checkTokenBalance(ctx, env, res, token, recipient.Address, "recipient starts without tokens", new(big.Int)); err != nil {
		return err
	}

	if err := transact(ctx, env, res, artifact, token, "transfer", recipient.Address, amount); err != nil {
		return err
	}
	if err := checkTokenBalance(ctx, env, res, token, recipient.Address, "recipient received tokens", amount); err != nil {
		return err
	}
	return checkTokenBalance(ctx, env, res, token, sender, "sender keeps the remainder", new(big.Int).Sub(mint, amount))
}

func checkTokenBalance(ctx context.Context, env *Env, res *Result, token, account common.Address, check string, want *big.Int) error {
	got, err := contract.BalanceOf(ctx, env.Client, token, account)
	if err != nil {
		return err
	}
	return res.Check(check, verify.BigEqual("balanceOf("+account.Hex()+")", want, got))
}
