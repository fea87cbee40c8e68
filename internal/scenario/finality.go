package scenario

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/0xmhha/txverify/internal/config"
	"github.com/0xmhha/txverify/internal/finality"
	"github.com/0xmhha/txverify/internal/verify"
)

// Finality checks a fresh transaction and, when configured, a known old one
// with the block-number strategy and both finality RPCs
func Finality(ctx context.Context, env *Env, res *Result) error {
	if err := env.RequireSigner(config.ScenarioFinality); err != nil {
		return err
	}
	cfg := env.Config
	checker := env.Checker

	if _, err := checker.FinalizedHead(ctx); res.Check("finalized head within latest", err) != nil {
		return err
	}

	recipient, err := env.Wallet.NewRecipient()
	if err != nil {
		return err
	}
	rec, err := env.Verifier.Transfer(ctx, recipient.Address, new(big.Int))
	res.Record(rec)
	if err != nil {
		return err
	}
	if err := res.Check("transaction succeeded", verify.Succeeded(rec.Receipt)); err != nil {
		return err
	}
	if _, err := env.Verifier.Awaiter().WaitForBlock(ctx, rec.Receipt.BlockNumber.Uint64()); err != nil {
		return err
	}

	status, err := checker.Check(ctx, rec.Receipt)
	if err != nil {
		return err
	}
	rec.Finality = status
	if err := checkFresh(res, status, cfg.ExpectFinalityLag); err != nil {
		return err
	}

	if cfg.FinalizedTxHash == "" {
		res.Skip("known transaction is finalized", "no finalized transaction configured")
	} else {
		known, err := checker.CheckTx(ctx, common.HexToHash(cfg.FinalizedTxHash))
		if err != nil {
			return res.Check("known transaction is finalized", err)
		}
		err = verify.FinalityAgreement(known.TxHash, known.ByBlockNumber, known.ByBlockRPC, known.ByTxRPC, true)
		if err := res.Check("known transaction is finalized", err); err != nil {
			return err
		}
	}

	if cfg.WaitForFinality {
		err := env.Verifier.AwaitFinality(ctx, rec, checker, cfg.FinalityTimeout, cfg.FinalityPollInterval)
		if err := res.Check("fresh transaction finalizes", err); err != nil {
			return err
		}
	} else {
		res.Skip("fresh transaction finalizes", "waiting for finality is disabled")
	}

	finalized, err := checker.FinalizedHead(ctx)
	if err := res.Check("finalized head never decreases", err); err != nil {
		return err
	}
	latest, err := env.Client.BlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("failed to get block number: %w", err)
	}
	env.Metrics.SetHeads(latest, finalized)

	snap := checker.Tracker().Snapshot()
	env.Logger.WithFields(logrus.Fields{
		"finalized": snap.Head,
		"samples":   snap.Samples,
		"advances":  snap.Advances,
	}).Info("finalized head tracked")
	return nil
}

// checkFresh judges a just-included transaction. Strategies that ran while
// the finalized head crossed the inclusion block prove nothing.
func checkFresh(res *Result, s *finality.Status, expectLag bool) error {
	const name = "fresh transaction finality"
	if !s.Stable {
		res.Skip(name, fmt.Sprintf("finalized head crossed block %d during the check", s.BlockNumber))
		return nil
	}
	if expectLag {
		return res.Check("fresh transaction is not finalized",
			verify.FinalityAgreement(s.TxHash, s.ByBlockNumber, s.ByBlockRPC, s.ByTxRPC, false))
	}
	if !s.Agree() {
		return res.Check(name, finality.Disagreement(s))
	}
	return res.Check(name, nil)
}
