package scenario

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/0xmhha/txverify/internal/config"
	"github.com/0xmhha/txverify/internal/contract"
	"github.com/0xmhha/txverify/internal/verify"
)

// XCMExecute calls xcmExecute on the XCM Utilities precompile with the
// configured message and checks the sender's rounded balance drops by the
// withdrawn units
func XCMExecute(ctx context.Context, env *Env, res *Result) error {
	if err := env.RequireSigner(config.ScenarioXCMExecute); err != nil {
		return err
	}
	cfg := env.Config
	sender := env.Sender().Address
	precompile := common.HexToAddress(cfg.XCMPrecompile)

	data, err := contract.PackXCMExecute(common.FromHex(cfg.XCMExecuteCalldata), cfg.XCMMaxWeight)
	if err != nil {
		return err
	}

	before, err := env.Client.BalanceAt(ctx, sender, nil)
	if err != nil {
		return fmt.Errorf("failed to get balance: %w", err)
	}

	rec, err := env.Verifier.Call(ctx, precompile, data, nil)
	res.Record(rec)
	if err != nil {
		return err
	}
	if err := res.Check("xcmExecute succeeded", verify.Succeeded(rec.Receipt)); err != nil {
		return err
	}

	after, err := env.Client.BalanceAt(ctx, sender, nil)
	if err != nil {
		return fmt.Errorf("failed to get balance: %w", err)
	}
	return res.Check(fmt.Sprintf("sender balance drops by %d units", cfg.XCMExecuteUnits),
		verify.RoundedBalanceDelta(sender, before, after, -cfg.XCMExecuteUnits))
}

// XCMSend calls xcmSend on the XCM Utilities precompile towards the relay
// chain with the configured message
func XCMSend(ctx context.Context, env *Env, res *Result) error {
	if err := env.RequireSigner(config.ScenarioXCMSend); err != nil {
		return err
	}
	cfg := env.Config

	data, err := contract.PackXCMSend(contract.RelayChain, common.FromHex(cfg.XCMSendCalldata))
	if err != nil {
		return err
	}

	rec, err := env.Verifier.Call(ctx, common.HexToAddress(cfg.XCMPrecompile), data, nil)
	res.Record(rec)
	if err != nil {
		return err
	}
	return res.Check("xcmSend succeeded", verify.Succeeded(rec.Receipt))
}
