package scenario

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/0xmhha/txverify/internal/config"
	"github.com/0xmhha/txverify/internal/verify"
)

// Transfer sends the configured amount from the funded sender to a fresh
// recipient and checks both balances
func Transfer(ctx context.Context, env *Env, res *Result) error {
	if err := env.RequireSigner(config.ScenarioTransfer); err != nil {
		return err
	}
	sender := env.Sender().Address
	amount := env.Config.TransferWei()

	recipient, err := env.Wallet.NewRecipient()
	if err != nil {
		return err
	}

	before, err := env.Client.BalancesAt(ctx, []common.Address{sender, recipient.Address})
	if err != nil {
		return fmt.Errorf("failed to read balances: %w", err)
	}
	if err := res.Check("sender is funded", verify.PositiveBalance(sender, before[0])); err != nil {
		return err
	}
	if err := res.Check("recipient starts empty", verify.ZeroBalance(recipient.Address, before[1])); err != nil {
		return err
	}

	rec, err := env.Verifier.Transfer(ctx, recipient.Address, amount)
	res.Record(rec)
	if err != nil {
		return err
	}
	if err := res.Check("transfer succeeded", verify.Succeeded(rec.Receipt)); err != nil {
		return err
	}
	if rec.Receipt.EffectiveGasPrice == nil {
		res.Skip("fee within signed cap", "receipt has no effective gas price")
	} else if err := res.Check("fee within signed cap",
		verify.FeeWithinCap(rec.Receipt, rec.Operation.MaxFee())); err != nil {
		return err
	}

	after, err := env.Client.BalancesAt(ctx, []common.Address{sender, recipient.Address})
	if err != nil {
		return fmt.Errorf("failed to read balances: %w", err)
	}
	if err := res.Check("recipient received amount",
		verify.BalanceDelta(recipient.Address, before[1], after[1], amount)); err != nil {
		return err
	}

	// fees vanish once balances are rounded to whole tokens
	units, rem := new(big.Int).QuoRem(amount, verify.Unit(), new(big.Int))
	if rem.Sign() != 0 || !units.IsInt64() {
		res.Skip("sender debited amount", "amount is not a whole number of tokens")
		return nil
	}
	return res.Check("sender debited amount",
		verify.RoundedBalanceDelta(sender, before[0], after[0], -units.Int64()))
}
