package scenario

import (
	"context"
	"fmt"
	"io"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/0xmhha/txverify/internal/awaiter"
	"github.com/0xmhha/txverify/internal/client"
	"github.com/0xmhha/txverify/internal/config"
	"github.com/0xmhha/txverify/internal/contract"
	"github.com/0xmhha/txverify/internal/errs"
	"github.com/0xmhha/txverify/internal/finality"
	"github.com/0xmhha/txverify/internal/lifecycle"
	"github.com/0xmhha/txverify/internal/metrics"
	"github.com/0xmhha/txverify/internal/txbuilder"
	"github.com/0xmhha/txverify/internal/wallet"
)

// Client is the node surface used by the scenarios
type Client interface {
	lifecycle.Client
	finality.Client
	contract.Caller

	ChainID(ctx context.Context) (*big.Int, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	BalancesAt(ctx context.Context, accounts []common.Address) ([]*big.Int, error)
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
}

// Env is everything a scenario needs: the node, the sender and the
// lifecycle machinery bound to them
type Env struct {
	Config  *config.Config
	Client  Client
	ChainID *big.Int

	// Wallet and Verifier are nil when no signer is configured
	Wallet   *wallet.Wallet
	Verifier *lifecycle.Verifier
	Checker  *finality.Checker

	Logger  logrus.FieldLogger
	Clock   awaiter.Clock
	Metrics *metrics.Metrics

	closer func()
}

// Option configures an Env
type Option func(*Env)

// WithLogger sets the structured logger
func WithLogger(logger logrus.FieldLogger) Option {
	return func(e *Env) { e.Logger = logger }
}

// WithClock replaces the wall clock used by every poll
func WithClock(clock awaiter.Clock) Option {
	return func(e *Env) { e.Clock = clock }
}

// WithMetrics records operations and scenarios in m
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Env) { e.Metrics = m }
}

// Setup dials the node named by cfg and prepares an Env. cfg must be validated.
func Setup(ctx context.Context, cfg *config.Config, opts ...Option) (*Env, error) {
	cli, err := client.New(cfg.URL,
		client.WithFinalityPrefix(cfg.FinalityRPCPrefix),
		client.WithRateLimit(cfg.RateLimit),
	)
	if err != nil {
		return nil, err
	}

	w, err := openWallet(cfg)
	if err != nil {
		cli.Close()
		return nil, err
	}

	env, err := NewEnv(ctx, cfg, cli, w, opts...)
	if err != nil {
		cli.Close()
		return nil, err
	}
	env.closer = cli.Close
	return env, nil
}

// NewEnv prepares an Env around an existing client. w may be nil for
// read-only runs.
func NewEnv(ctx context.Context, cfg *config.Config, cli Client, w *wallet.Wallet, opts ...Option) (*Env, error) {
	if cfg == nil || cli == nil {
		return nil, errs.Configuration("scenario.NewEnv", "config and client are required")
	}

	env := &Env{
		Config: cfg,
		Client: cli,
		Wallet: w,
		Clock:  awaiter.RealClock(),
	}
	for _, opt := range opts {
		opt(env)
	}
	if env.Logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		env.Logger = l
	}

	chainID, err := resolveChainID(ctx, cfg, cli)
	if err != nil {
		return nil, err
	}
	env.ChainID = chainID
	env.Checker = finality.NewChecker(cli, env.Logger)

	if w == nil {
		return env, nil
	}

	builderCfg := &txbuilder.BuilderConfig{
		ChainID:       chainID,
		GasLimit:      cfg.GasLimit,
		GasMultiplier: cfg.GasMultiplier,
		GasPrice:      cfg.GasPriceWei(),
		DynamicFee:    cfg.DynamicFee,
	}
	awaitCfg := &awaiter.Config{
		PollInterval: cfg.PollInterval,
		Timeout:      cfg.ReceiptTimeout,
	}
	verifierOpts := []lifecycle.Option{
		lifecycle.WithLogger(env.Logger),
		lifecycle.WithClock(env.Clock),
	}
	if env.Metrics != nil {
		verifierOpts = append(verifierOpts, lifecycle.WithRecorder(env.Metrics))
	}

	env.Verifier, err = lifecycle.New(cli, w.Sender(), builderCfg, awaitCfg, verifierOpts...)
	if err != nil {
		return nil, err
	}
	return env, nil
}

// Sender returns the signing account
func (e *Env) Sender() *wallet.Account {
	if e.Wallet == nil {
		return nil
	}
	return e.Wallet.Sender()
}

// RequireSigner fails when the run has no sender key
func (e *Env) RequireSigner(s config.Scenario) error {
	if e.Verifier == nil {
		return errs.Configuration("scenario."+string(s), "a private key or mnemonic is required")
	}
	return nil
}

// Close drops generated recipients and closes the node connection
func (e *Env) Close() {
	if e.Wallet != nil {
		e.Wallet.Discard()
	}
	if e.closer != nil {
		e.closer()
	}
}

func openWallet(cfg *config.Config) (*wallet.Wallet, error) {
	switch {
	case cfg.PrivateKey != "":
		return wallet.NewFromPrivateKey(cfg.PrivateKey)
	case cfg.Mnemonic != "":
		return wallet.NewFromMnemonic(cfg.Mnemonic, cfg.AccountIndex)
	default:
		return nil, nil
	}
}

// resolveChainID uses the configured chain ID, checked against the node,
// or the node's when none is configured
func resolveChainID(ctx context.Context, cfg *config.Config, cli Client) (*big.Int, error) {
	nodeID, err := cli.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain ID: %w", err)
	}
	if cfg.ChainID == 0 {
		cfg.ChainID = nodeID.Uint64()
		return nodeID, nil
	}
	if nodeID.Uint64() != cfg.ChainID {
		return nil, errs.Configuration("scenario.Setup", "chain-id %d does not match node chain ID %s", cfg.ChainID, nodeID)
	}
	return new(big.Int).SetUint64(cfg.ChainID), nil
}
