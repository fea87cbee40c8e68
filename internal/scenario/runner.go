package scenario

import (
	"context"
	"fmt"
	"io"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/0xmhha/txverify/internal/config"
	"github.com/0xmhha/txverify/internal/errs"
	"github.com/0xmhha/txverify/internal/util/progress"
	"github.com/0xmhha/txverify/internal/verify"
)

// Func runs one scenario, recording its checks and operations in res. The
// returned error ends the scenario.
type Func func(ctx context.Context, env *Env, res *Result) error

var registry = map[config.Scenario]Func{
	config.ScenarioTransfer:     Transfer,
	config.ScenarioDeploy:       Deploy,
	config.ScenarioToken:        Token,
	config.ScenarioFinality:     Finality,
	config.ScenarioXCMExecute:   XCMExecute,
	config.ScenarioXCMSend:      XCMSend,
	config.ScenarioXC20Metadata: XC20Metadata,
	config.ScenarioStaleNonce:   StaleNonce,
}

// Lookup returns the implementation of scenario s
func Lookup(s config.Scenario) (Func, bool) {
	fn, ok := registry[s]
	return fn, ok
}

// PreflightInfo is the chain state read before any scenario runs
type PreflightInfo struct {
	ChainID   *big.Int
	Head      uint64
	Finalized uint64

	// Sender and Balance are zero for read-only runs
	Sender  common.Address
	Balance *big.Int
	// KeySource is "mnemonic" or "private key", empty for read-only runs
	KeySource string
}

// Preflight reads chain ID, heads and the sender balance concurrently and
// checks them before anything is signed
func Preflight(ctx context.Context, env *Env) (*PreflightInfo, error) {
	info := &PreflightInfo{}
	sender := env.Sender()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		id, err := env.Client.ChainID(gctx)
		if err != nil {
			return fmt.Errorf("failed to get chain ID: %w", err)
		}
		info.ChainID = id
		return nil
	})
	g.Go(func() error {
		head, err := env.Client.BlockNumber(gctx)
		if err != nil {
			return fmt.Errorf("failed to get block number: %w", err)
		}
		info.Head = head
		return nil
	})
	g.Go(func() error {
		finalized, err := env.Checker.FinalizedHead(gctx)
		if err != nil {
			return err
		}
		info.Finalized = finalized
		return nil
	})
	if sender != nil {
		info.Sender = sender.Address
		info.KeySource = "private key"
		if env.Wallet.IsMnemonic() {
			info.KeySource = "mnemonic"
		}
		g.Go(func() error {
			balance, err := env.Client.BalanceAt(gctx, sender.Address, nil)
			if err != nil {
				return fmt.Errorf("failed to get sender balance: %w", err)
			}
			info.Balance = balance
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return info, err
	}

	if info.ChainID.Cmp(env.ChainID) != 0 {
		return info, errs.Configuration("scenario.Preflight", "node chain ID %s, expected %s", info.ChainID, env.ChainID)
	}
	if sender != nil {
		if err := verify.PositiveBalance(sender.Address, info.Balance); err != nil {
			return info, err
		}
	}
	env.Metrics.SetHeads(info.Head, info.Finalized)

	env.Logger.WithFields(logrus.Fields{
		"chain_id":  info.ChainID,
		"head":      info.Head,
		"finalized": info.Finalized,
		"balance":   info.Balance,
		"key":       info.KeySource,
	}).Info("preflight passed")
	return info, nil
}

// Runner executes scenarios one after another. A failing scenario does not
// stop its siblings.
type Runner struct {
	env   *Env
	out   io.Writer
	funcs map[config.Scenario]Func
}

// RunnerOption configures a Runner
type RunnerOption func(*Runner)

// WithProgress draws a progress bar on w
func WithProgress(w io.Writer) RunnerOption {
	return func(r *Runner) { r.out = w }
}

// WithScenario replaces the implementation of scenario s
func WithScenario(s config.Scenario, fn Func) RunnerOption {
	return func(r *Runner) { r.funcs[s] = fn }
}

// NewRunner creates a runner over env
func NewRunner(env *Env, opts ...RunnerOption) *Runner {
	r := &Runner{
		env:   env,
		funcs: make(map[config.Scenario]Func, len(registry)),
	}
	for s, fn := range registry {
		r.funcs[s] = fn
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes the preflight and then every scenario in order. The error is
// non-nil only when the preflight fails or ctx is cancelled; scenario
// failures are reported in the summary.
func (r *Runner) Run(ctx context.Context, scenarios []config.Scenario) (*Summary, error) {
	summary := NewSummary()
	defer summary.Finalize()

	info, err := Preflight(ctx, r.env)
	summary.Preflight = info
	if err != nil {
		return summary, fmt.Errorf("preflight failed: %w", err)
	}

	bar := progress.New(r.out, len(scenarios), "scenarios")
	defer bar.Finish()

	for _, s := range scenarios {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		bar.Start(string(s))
		summary.AddResult(r.RunOne(ctx, s))
		bar.Done()
	}
	return summary, nil
}

// RunOne executes a single scenario and records its outcome
func (r *Runner) RunOne(ctx context.Context, s config.Scenario) *Result {
	res := NewResult(s)
	log := r.env.Logger.WithField("scenario", string(s))
	log.Debug("scenario started")

	fn, ok := r.funcs[s]
	if !ok {
		res.finish(errs.Configuration("scenario.Run", "unknown scenario %q", s))
	} else {
		res.finish(fn(ctx, r.env, res))
	}

	r.env.Metrics.RecordScenario(string(s), res.Passed(), res.Duration)
	if res.Passed() {
		log.WithField("duration", res.Duration).Info("scenario passed")
	} else {
		log.WithError(res.Err).WithField("kind", res.Kind()).Error("scenario failed")
	}
	return res
}
