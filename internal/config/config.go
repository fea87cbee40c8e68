package config

import (
	"math/big"
	"regexp"
	"strings"
	"time"

	"github.com/0xmhha/txverify/internal/errs"
)

// Scenario names a documentation scenario
type Scenario string

const (
	ScenarioAll          Scenario = "ALL"
	ScenarioTransfer     Scenario = "TRANSFER"
	ScenarioDeploy       Scenario = "DEPLOY"
	ScenarioToken        Scenario = "TOKEN"
	ScenarioFinality     Scenario = "FINALITY"
	ScenarioXCMExecute   Scenario = "XCM_EXECUTE"
	ScenarioXCMSend      Scenario = "XCM_SEND"
	ScenarioXC20Metadata Scenario = "XC20_METADATA"
	ScenarioStaleNonce   Scenario = "STALE_NONCE"
)

// AllScenarios lists every scenario in execution order
var AllScenarios = []Scenario{
	ScenarioTransfer,
	ScenarioDeploy,
	ScenarioToken,
	ScenarioFinality,
	ScenarioXCMExecute,
	ScenarioXCMSend,
	ScenarioXC20Metadata,
	ScenarioStaleNonce,
}

// DefaultScenarios runs against a local development node. XC20_METADATA reads
// a token that only exists on a public network and TOKEN needs a compiled
// token artifact, so both must be requested.
var DefaultScenarios = []Scenario{
	ScenarioTransfer,
	ScenarioDeploy,
	ScenarioFinality,
	ScenarioXCMExecute,
	ScenarioXCMSend,
	ScenarioStaleNonce,
}

const (
	DefaultTransferAmount    = "1000000000000000000" // 1 unit (18 decimals)
	DefaultFinalityRPCPrefix = "moon"
	DefaultXCMPrecompile     = "0x000000000000000000000000000000000000080C"
	DefaultXCMMaxWeight      = 1000000000
	DefaultMetricsPort       = 9090

	// Incrementer constructor and increment arguments
	DefaultInitialValue = 5
	DefaultIncrementBy  = 2

	// Token scenario mint and transfer amounts, in the token's base units
	DefaultTokenMint     = 10
	DefaultTokenTransfer = 7

	// SCALE encoded XCM messages for a development node: execute withdraws
	// and deposits 10 units back to the sender, send targets the relay chain.
	DefaultXCMExecuteCalldata = "0x02080004000001040300130000e8890423c78a0d010004000103003cd0a705a2dc65e5b1e1205896baa2be8a07c6e0"
	DefaultXCMExecuteUnits    = 10
	DefaultXCMSendCalldata    = "0x020c000400010000070010a5d4e81300010000070010a5d4e8000d010004010101000c36e9ba26fa63c60ec728fe75fe57b86a450d94e7fee7f9f9eddd0d3f400d67"

	// Jupiter on Moonbase Alpha
	DefaultXC20Token    = "0x9Aac6FB41773af877a2Be73c99897F3DdFACf576"
	DefaultXC20Name     = "Jupiter"
	DefaultXC20Symbol   = "JUP"
	DefaultXC20Decimals = 18
)

// Config holds all configuration for a verification run
type Config struct {
	// RPC connection
	URL   string
	WSURL string

	// Sender account
	PrivateKey   string
	Mnemonic     string
	AccountIndex uint32

	// Scenarios to run (empty = DefaultScenarios, ALL = every scenario)
	Scenarios []string

	// Chain configuration
	ChainID       uint64
	GasLimit      uint64 // 0 = estimate per operation
	GasPrice      string // wei; empty = node suggestion
	DynamicFee    bool
	GasMultiplier float64

	// Transfer scenario
	TransferAmount string

	// Waiting
	ReceiptTimeout       time.Duration
	PollInterval         time.Duration
	FinalityTimeout      time.Duration
	FinalityPollInterval time.Duration

	// Finality scenario
	FinalityRPCPrefix string
	FinalizedTxHash   string
	ExpectFinalityLag bool
	WaitForFinality   bool

	// Deploy scenario
	ArtifactPath string
	InitialValue uint64
	IncrementBy  uint64

	// Token scenario
	TokenArtifactPath string
	TokenMint         uint64
	TokenTransfer     uint64

	// XCM scenarios
	XCMPrecompile      string
	XCMExecuteCalldata string
	XCMExecuteUnits    int64
	XCMSendCalldata    string
	XCMMaxWeight       uint64

	// XC-20 metadata scenario
	XC20Token    string
	XC20Name     string
	XC20Symbol   string
	XC20Decimals uint8

	// Output
	Output  string
	Verbose bool

	// Advanced
	RateLimit float64

	// Prometheus metrics
	MetricsEnabled bool
	MetricsPort    int
}

var (
	httpRegex    = regexp.MustCompile(`^https?://`)
	wsRegex      = regexp.MustCompile(`^wss?://`)
	hexKeyRegex  = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)
	addressRegex = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
	hashRegex    = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)
	hexDataRegex = regexp.MustCompile(`^0x([0-9a-fA-F]{2})*$`)
	prefixRegex  = regexp.MustCompile(`^[a-z][a-z0-9]*$`)
)

const op = "config.Validate"

// DefaultConfig returns a configuration carrying the scenario defaults whose
// zero value is meaningful. Validate keeps whatever these fields hold, so an
// explicit 0 constructor argument, XCM withdrawal or token decimals survives.
func DefaultConfig() *Config {
	return &Config{
		InitialValue:    DefaultInitialValue,
		IncrementBy:     DefaultIncrementBy,
		XCMExecuteUnits: DefaultXCMExecuteUnits,
		XC20Decimals:    DefaultXC20Decimals,
		TokenMint:       DefaultTokenMint,
		TokenTransfer:   DefaultTokenTransfer,
	}
}

// Validate validates the configuration and fills in defaults
func (c *Config) Validate() error {
	// Validate URL
	if c.URL == "" {
		return errs.Configuration(op, "url is required")
	}
	if !httpRegex.MatchString(c.URL) && !wsRegex.MatchString(c.URL) {
		return errs.Configuration(op, "url must be a valid HTTP or WebSocket URL")
	}
	if c.WSURL != "" && !wsRegex.MatchString(c.WSURL) {
		return errs.Configuration(op, "ws-url must be a valid WebSocket URL")
	}

	// Validate scenarios
	scenarios, err := c.parseScenarios()
	if err != nil {
		return err
	}

	// Validate account credentials (XC-20 metadata is read-only)
	if needsSigner(scenarios) {
		if c.PrivateKey == "" && c.Mnemonic == "" {
			return errs.Configuration(op, "either private-key or mnemonic is required")
		}
		if c.PrivateKey != "" && !hexKeyRegex.MatchString(c.PrivateKey) {
			return errs.Configuration(op, "private-key must be a valid 64-character hex string with 0x prefix")
		}
	}

	if c.GasPrice != "" {
		if _, ok := new(big.Int).SetString(c.GasPrice, 10); !ok {
			return errs.Configuration(op, "gas-price must be a decimal wei amount")
		}
	}
	if c.GasMultiplier < 0 {
		return errs.Configuration(op, "gas-multiplier must not be negative")
	}
	if c.GasMultiplier == 0 {
		c.GasMultiplier = 1.2
	}

	if c.TransferAmount == "" {
		c.TransferAmount = DefaultTransferAmount
	}
	if amount, ok := new(big.Int).SetString(c.TransferAmount, 10); !ok || amount.Sign() <= 0 {
		return errs.Configuration(op, "amount must be a positive decimal wei amount")
	}

	// Set default timeouts
	if c.ReceiptTimeout == 0 {
		c.ReceiptTimeout = 60 * time.Second
	}
	if c.PollInterval == 0 {
		c.PollInterval = time.Second
	}
	if c.FinalityTimeout == 0 {
		c.FinalityTimeout = 90 * time.Second
	}
	if c.FinalityPollInterval == 0 {
		c.FinalityPollInterval = 2 * time.Second
	}
	if c.PollInterval > c.ReceiptTimeout {
		return errs.Configuration(op, "poll-interval must not exceed receipt-timeout")
	}

	// Validate finality scenario requirements
	if c.FinalityRPCPrefix == "" {
		c.FinalityRPCPrefix = DefaultFinalityRPCPrefix
	}
	if !prefixRegex.MatchString(c.FinalityRPCPrefix) {
		return errs.Configuration(op, "finality-rpc-prefix must be a lowercase RPC namespace")
	}
	if c.FinalizedTxHash != "" && !hashRegex.MatchString(c.FinalizedTxHash) {
		return errs.Configuration(op, "finalized-tx must be a 32-byte hex hash with 0x prefix")
	}

	// Validate token scenario requirements
	if c.TokenTransfer > c.TokenMint {
		return errs.Configuration(op, "token-transfer must not exceed token-mint")
	}

	// Validate XCM scenario requirements
	if c.XCMPrecompile == "" {
		c.XCMPrecompile = DefaultXCMPrecompile
	}
	if !addressRegex.MatchString(c.XCMPrecompile) {
		return errs.Configuration(op, "xcm-precompile must be a valid 40-character hex address with 0x prefix")
	}
	if c.XCMMaxWeight == 0 {
		c.XCMMaxWeight = DefaultXCMMaxWeight
	}
	if c.XCMExecuteCalldata == "" {
		c.XCMExecuteCalldata = DefaultXCMExecuteCalldata
	}
	if c.XCMSendCalldata == "" {
		c.XCMSendCalldata = DefaultXCMSendCalldata
	}
	if !hexDataRegex.MatchString(c.XCMExecuteCalldata) {
		return errs.Configuration(op, "xcm-execute-calldata must be 0x-prefixed hex")
	}
	if !hexDataRegex.MatchString(c.XCMSendCalldata) {
		return errs.Configuration(op, "xcm-send-calldata must be 0x-prefixed hex")
	}

	// Validate XC-20 scenario requirements
	if c.XC20Token == "" {
		c.XC20Token = DefaultXC20Token
		if c.XC20Name == "" && c.XC20Symbol == "" {
			c.XC20Name = DefaultXC20Name
			c.XC20Symbol = DefaultXC20Symbol
		}
	}
	if !addressRegex.MatchString(c.XC20Token) {
		return errs.Configuration(op, "xc20-token must be a valid 40-character hex address with 0x prefix")
	}
	if has(scenarios, ScenarioXC20Metadata) && c.XC20Symbol == "" {
		return errs.Configuration(op, "xc20-symbol is required for XC20_METADATA with a custom token")
	}

	if c.RateLimit < 0 {
		return errs.Configuration(op, "rate-limit must not be negative")
	}

	// Set default metrics port
	if c.MetricsEnabled && c.MetricsPort == 0 {
		c.MetricsPort = DefaultMetricsPort
	}

	return nil
}

// GetScenarios returns the parsed scenario list, expanding ALL and the default set
func (c *Config) GetScenarios() []Scenario {
	scenarios, err := c.parseScenarios()
	if err != nil {
		return nil
	}
	return scenarios
}

func (c *Config) parseScenarios() ([]Scenario, error) {
	if len(c.Scenarios) == 0 {
		return DefaultScenarios, nil
	}

	result := make([]Scenario, 0, len(c.Scenarios))
	for _, name := range c.Scenarios {
		s := Scenario(strings.ToUpper(strings.TrimSpace(name)))
		if s == ScenarioAll {
			return AllScenarios, nil
		}
		if !known(s) {
			return nil, errs.Configuration(op, "invalid scenario %q: must be one of %s", name, scenarioList())
		}
		if !has(result, s) {
			result = append(result, s)
		}
	}
	return result, nil
}

// TransferWei returns the transfer amount in wei
func (c *Config) TransferWei() *big.Int {
	amount, ok := new(big.Int).SetString(c.TransferAmount, 10)
	if !ok {
		return nil
	}
	return amount
}

// GasPriceWei returns the fixed gas price, or nil when the node should suggest one
func (c *Config) GasPriceWei() *big.Int {
	if c.GasPrice == "" {
		return nil
	}
	price, ok := new(big.Int).SetString(c.GasPrice, 10)
	if !ok {
		return nil
	}
	return price
}

// IsWebSocket returns true if the URL is a WebSocket URL
func (c *Config) IsWebSocket() bool {
	return wsRegex.MatchString(c.URL)
}

func needsSigner(scenarios []Scenario) bool {
	for _, s := range scenarios {
		if s != ScenarioXC20Metadata {
			return true
		}
	}
	return false
}

func known(s Scenario) bool {
	return has(AllScenarios, s)
}

func has(list []Scenario, s Scenario) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func scenarioList() string {
	names := make([]string, 0, len(AllScenarios)+1)
	names = append(names, string(ScenarioAll))
	for _, s := range AllScenarios {
		names = append(names, string(s))
	}
	return strings.Join(names, ", ")
}
