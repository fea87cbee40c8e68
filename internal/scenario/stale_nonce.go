package scenario

import (
	"context"
	"errors"
	"math/big"

	"github.com/0xmhha/txverify/internal/config"
	"github.com/0xmhha/txverify/internal/errs"
	"github.com/0xmhha/txverify/internal/lifecycle"
	"github.com/0xmhha/txverify/internal/txbuilder"
	"github.com/0xmhha/txverify/internal/verify"
)

// StaleNonce includes one transfer and then signs a second transfer with the
// nonce the first one consumed. The node must refuse it at submission or
// include it with status 0.
func StaleNonce(ctx context.Context, env *Env, res *Result) error {
	if err := env.RequireSigner(config.ScenarioStaleNonce); err != nil {
		return err
	}
	sender := env.Sender().Address

	recipient, err := env.Wallet.NewRecipient()
	if err != nil {
		return err
	}
	first, err := env.Verifier.Transfer(ctx, recipient.Address, big.NewInt(1))
	res.Record(first)
	if err != nil {
		return err
	}
	if err := res.Check("first transfer succeeded", verify.Succeeded(first.Receipt)); err != nil {
		return err
	}

	to := recipient.Address
	op, err := env.Verifier.Builder().BuildAt(ctx, &txbuilder.Operation{
		Kind:  txbuilder.KindTransfer,
		From:  sender,
		To:    &to,
		Value: big.NewInt(2),
	}, first.Operation.Nonce)
	if err != nil {
		return err
	}

	replay, err := env.Verifier.Execute(ctx, op)
	res.Record(replay)
	if err != nil && !errors.Is(err, errs.ErrSubmissionFailed) {
		return err
	}
	return res.Check("stale nonce is rejected", rejected(replay))
}

func rejected(rec *lifecycle.Record) error {
	if rec.Rejected() {
		return nil
	}
	return errs.Assertion("transaction with stale nonce "+rec.Hash.Hex(),
		"SUBMISSION_FAILED or status 0", rec.State().String())
}
