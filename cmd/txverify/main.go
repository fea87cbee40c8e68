package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/0xmhha/txverify/internal/config"
	"github.com/0xmhha/txverify/internal/metrics"
	"github.com/0xmhha/txverify/internal/report"
	"github.com/0xmhha/txverify/internal/scenario"
)

const envFileVar = "TXVERIFY_ENV_FILE"

var (
	version = "dev"
	cfg     = &config.Config{}
	format  string
)

func main() {
	envFile := os.Getenv(envFileVar)
	if envFile == "" {
		envFile = ".env"
	}
	loaded, err := config.FromEnv(envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	cfg = loaded

	rootCmd := &cobra.Command{
		Use:           "txverify",
		Short:         "Transaction lifecycle verifier for Ethereum-compatible nodes",
		Long:          `txverify signs, submits and awaits transactions against a node and checks receipts, balances, contract state and finality.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Environment values are the flag defaults, so flags override them
	registerFlags(rootCmd.PersistentFlags())

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the configured scenarios (default set, or --scenarios)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context())
		},
	}
	runCmd.Flags().StringSliceVar(&cfg.Scenarios, "scenarios", cfg.Scenarios,
		"Scenarios to run: ALL, TRANSFER, DEPLOY, TOKEN, FINALITY, XCM_EXECUTE, XCM_SEND, XC20_METADATA, STALE_NONCE")

	rootCmd.AddCommand(
		runCmd,
		scenarioCmd("transfer", "Send a transfer to a fresh account and check balances", config.ScenarioTransfer, config.ScenarioStaleNonce),
		scenarioCmd("deploy", "Deploy the Incrementer contract and drive its methods", config.ScenarioDeploy),
		scenarioCmd("token", "Deploy an ERC-20, mint with initialize and transfer tokens", config.ScenarioToken),
		scenarioCmd("finality", "Check transaction finality with block numbers and finality RPCs", config.ScenarioFinality),
		scenarioCmd("xcm", "Call xcmExecute and xcmSend on the XCM Utilities precompile", config.ScenarioXCMExecute, config.ScenarioXCMSend),
		scenarioCmd("xc20", "Read XC-20 token metadata", config.ScenarioXC20Metadata),
		preflightCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func registerFlags(flags *pflag.FlagSet) {
	// Connection and sender
	flags.StringVar(&cfg.URL, "url", cfg.URL, "RPC endpoint URL (HTTP or WebSocket)")
	flags.StringVar(&cfg.WSURL, "ws-url", cfg.WSURL, "WebSocket endpoint URL")
	flags.StringVar(&cfg.PrivateKey, "private-key", cfg.PrivateKey, "Sender private key (hex)")
	flags.StringVar(&cfg.Mnemonic, "mnemonic", cfg.Mnemonic, "BIP39 mnemonic (alternative to private-key)")
	flags.Uint32Var(&cfg.AccountIndex, "account-index", cfg.AccountIndex, "Account index derived from the mnemonic")

	// Chain configuration
	flags.Uint64Var(&cfg.ChainID, "chain-id", cfg.ChainID, "Chain ID (auto-detect if not specified)")
	flags.Uint64Var(&cfg.GasLimit, "gas-limit", cfg.GasLimit, "Gas limit per transaction (0 = estimate)")
	flags.StringVar(&cfg.GasPrice, "gas-price", cfg.GasPrice, "Gas price in wei (auto if not specified)")
	flags.BoolVar(&cfg.DynamicFee, "dynamic-fee", cfg.DynamicFee, "Sign EIP-1559 transactions")
	flags.Float64Var(&cfg.GasMultiplier, "gas-multiplier", cfg.GasMultiplier, "Multiplier applied to gas estimates (default 1.2)")
	flags.StringVar(&cfg.TransferAmount, "amount", cfg.TransferAmount, "Transfer amount in wei (default 1 token)")

	// Waiting
	flags.DurationVar(&cfg.ReceiptTimeout, "timeout", cfg.ReceiptTimeout, "Receipt timeout (default 60s)")
	flags.DurationVar(&cfg.PollInterval, "poll-interval", cfg.PollInterval, "Receipt poll interval (default 1s)")
	flags.DurationVar(&cfg.FinalityTimeout, "finality-timeout", cfg.FinalityTimeout, "Finality timeout (default 90s)")
	flags.DurationVar(&cfg.FinalityPollInterval, "finality-poll-interval", cfg.FinalityPollInterval, "Finality poll interval (default 2s)")

	// Finality
	flags.StringVar(&cfg.FinalityRPCPrefix, "finality-rpc-prefix", cfg.FinalityRPCPrefix, "Namespace of isBlockFinalized/isTxFinalized (default moon)")
	flags.StringVar(&cfg.FinalizedTxHash, "finalized-tx", cfg.FinalizedTxHash, "Hash of a transaction known to be finalized")
	flags.BoolVar(&cfg.ExpectFinalityLag, "expect-finality-lag", cfg.ExpectFinalityLag, "Require a fresh transaction to be not yet finalized")
	flags.BoolVar(&cfg.WaitForFinality, "wait-finality", cfg.WaitForFinality, "Wait until the fresh transaction is finalized")

	// Deploy
	flags.StringVar(&cfg.ArtifactPath, "artifact", cfg.ArtifactPath, "Compiled Incrementer artifact (embedded if not specified)")
	flags.Uint64Var(&cfg.InitialValue, "initial-value", cfg.InitialValue, "Incrementer constructor argument")
	flags.Uint64Var(&cfg.IncrementBy, "increment-by", cfg.IncrementBy, "Incrementer increment argument")

	// Token
	flags.StringVar(&cfg.TokenArtifactPath, "token-artifact", cfg.TokenArtifactPath, "Compiled ERC-20 artifact with initialize(uint256)")
	flags.Uint64Var(&cfg.TokenMint, "token-mint", cfg.TokenMint, "Supply minted by initialize")
	flags.Uint64Var(&cfg.TokenTransfer, "token-transfer", cfg.TokenTransfer, "Tokens transferred to the fresh recipient")

	// XCM and XC-20
	flags.StringVar(&cfg.XCMPrecompile, "xcm-precompile", cfg.XCMPrecompile, "XCM Utilities precompile address")
	flags.StringVar(&cfg.XCMExecuteCalldata, "xcm-execute-message", cfg.XCMExecuteCalldata, "SCALE encoded message for xcmExecute")
	flags.Int64Var(&cfg.XCMExecuteUnits, "xcm-execute-units", cfg.XCMExecuteUnits, "Whole tokens xcmExecute withdraws")
	flags.StringVar(&cfg.XCMSendCalldata, "xcm-send-message", cfg.XCMSendCalldata, "SCALE encoded message for xcmSend")
	flags.Uint64Var(&cfg.XCMMaxWeight, "xcm-max-weight", cfg.XCMMaxWeight, "maxWeight passed to xcmExecute")
	flags.StringVar(&cfg.XC20Token, "xc20-token", cfg.XC20Token, "XC-20 token address")
	flags.StringVar(&cfg.XC20Name, "xc20-name", cfg.XC20Name, "Expected XC-20 name")
	flags.StringVar(&cfg.XC20Symbol, "xc20-symbol", cfg.XC20Symbol, "Expected XC-20 symbol")
	flags.Uint8Var(&cfg.XC20Decimals, "xc20-decimals", cfg.XC20Decimals, "Expected XC-20 decimals")

	// Output
	flags.StringVar(&cfg.Output, "output", cfg.Output, "Directory for the exported report")
	flags.StringVar(&format, "format", string(report.FormatJSON), "Report format: json or csv")
	flags.BoolVarP(&cfg.Verbose, "verbose", "v", cfg.Verbose, "Enable debug logging")

	// Advanced
	flags.Float64Var(&cfg.RateLimit, "rate-limit", cfg.RateLimit, "Max RPC requests per second (0 = unlimited)")

	// Prometheus metrics
	flags.BoolVar(&cfg.MetricsEnabled, "metrics", cfg.MetricsEnabled, "Enable Prometheus metrics endpoint")
	flags.IntVar(&cfg.MetricsPort, "metrics-port", cfg.MetricsPort, "Port for Prometheus metrics endpoint (default 9090)")
}

// scenarioCmd runs a fixed set of scenarios
func scenarioCmd(use, short string, scenarios ...config.Scenario) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.Scenarios = cfg.Scenarios[:0]
			for _, s := range scenarios {
				cfg.Scenarios = append(cfg.Scenarios, string(s))
			}
			return run(cmd.Context())
		},
	}
}

func preflightCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "preflight",
		Short: "Check connectivity, chain ID, heads and the sender balance",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			logger := newLogger(cfg.Verbose)

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			env, err := scenario.Setup(ctx, cfg, scenario.WithLogger(logger))
			if err != nil {
				return fmt.Errorf("failed to connect: %w", err)
			}
			defer env.Close()

			info, err := scenario.Preflight(ctx, env)
			if info != nil {
				fmt.Printf("\n📋 Node:\n")
				fmt.Printf("  URL:            %s\n", cfg.URL)
				fmt.Printf("  Chain ID:       %s\n", info.ChainID)
				fmt.Printf("  Head:           %d\n", info.Head)
				fmt.Printf("  Finalized:      %d\n", info.Finalized)
				if info.Balance != nil {
					fmt.Printf("  Sender:         %s (%s)\n", info.Sender.Hex(), info.KeySource)
					fmt.Printf("  Balance:        %s wei\n", info.Balance)
				}
			}
			return err
		},
	}
}

func run(parent context.Context) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	logger := newLogger(cfg.Verbose)

	ctx, cancel := signalContext(parent)
	defer cancel()

	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		m = metrics.NewMetrics("txverify", nil)
		if err := m.Start(ctx, cfg.MetricsPort); err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
		logger.WithField("port", cfg.MetricsPort).Info("metrics endpoint started")
		defer func() {
			stopCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
			defer stop()
			if err := m.Stop(stopCtx); err != nil {
				logger.WithError(err).Warn("failed to stop metrics server")
			}
		}()
	}

	env, err := scenario.Setup(ctx, cfg, scenario.WithLogger(logger), scenario.WithMetrics(m))
	if err != nil {
		return fmt.Errorf("failed to set up: %w", err)
	}
	defer env.Close()

	summary, runErr := scenario.NewRunner(env, scenario.WithProgress(os.Stderr)).Run(ctx, cfg.GetScenarios())

	r := report.New(cfg.URL, summary)
	report.PrintTable(os.Stdout, r)

	if cfg.Output != "" {
		filename, err := report.NewExporter(cfg.Output).Export(r, report.ExportFormat(format))
		if err != nil {
			return fmt.Errorf("failed to export report: %w", err)
		}
		fmt.Printf("\n📁 Report exported to %s\n", filename)
	}

	if runErr != nil {
		return runErr
	}
	if !r.Success() {
		return fmt.Errorf("%d of %d scenarios failed", r.Failed, r.Passed+r.Failed)
	}
	return nil
}

func newLogger(verbose bool) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logger.SetLevel(logrus.InfoLevel)
	if verbose {
		logger.SetLevel(logrus.DebugLevel)
	}
	return logger
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			fmt.Fprintln(os.Stderr, "\nReceived interrupt signal, shutting down...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}
