package txbuilder

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"github.com/0xmhha/txverify/internal/errs"
)

// NodeReader is the part of the node client the builder needs
type NodeReader interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
}

// Builder produces unsigned operations. The sender nonce is read from the
// node on every build and never cached.
type Builder struct {
	config *BuilderConfig
	node   NodeReader
}

// NewBuilder creates a new operation builder. node may be nil when every gas
// setting is fixed; operations then need an explicit nonce via BuildAt.
func NewBuilder(config *BuilderConfig, node NodeReader) *Builder {
	if config == nil {
		config = &BuilderConfig{}
	}
	return &Builder{config: config, node: node}
}

// Transfer builds a value transfer
func (b *Builder) Transfer(ctx context.Context, from, to common.Address, amount *big.Int) (*Operation, error) {
	return b.build(ctx, &Operation{Kind: KindTransfer, From: from, To: &to, Value: amount})
}

// ContractCall builds a state-changing contract invocation
func (b *Builder) ContractCall(ctx context.Context, from, to common.Address, data []byte, value *big.Int) (*Operation, error) {
	return b.build(ctx, &Operation{Kind: KindContractCall, From: from, To: &to, Value: value, Data: data})
}

// Deploy builds a contract creation from bytecode followed by packed
// constructor arguments
func (b *Builder) Deploy(ctx context.Context, from common.Address, input []byte) (*Operation, error) {
	return b.build(ctx, &Operation{Kind: KindDeploy, From: from, Data: input})
}

// BuildAt fills gas settings for op without querying the nonce. Used when the
// caller must control the nonce, e.g. to replay a consumed one.
func (b *Builder) BuildAt(ctx context.Context, op *Operation, nonce uint64) (*Operation, error) {
	op.Nonce = nonce
	if err := b.fill(ctx, op); err != nil {
		return nil, err
	}
	return op, nil
}

func (b *Builder) build(ctx context.Context, op *Operation) (*Operation, error) {
	if err := checkTarget(op); err != nil {
		return nil, err
	}
	if b.node == nil {
		return nil, errs.Configuration("txbuilder.Build", "a node is required to read the sender nonce")
	}

	nonce, err := b.node.PendingNonceAt(ctx, op.From)
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce for %s: %w", op.From.Hex(), err)
	}
	op.Nonce = nonce

	if err := b.fill(ctx, op); err != nil {
		return nil, err
	}
	return op, nil
}

func (b *Builder) fill(ctx context.Context, op *Operation) error {
	if err := checkTarget(op); err != nil {
		return err
	}
	if op.Value == nil {
		op.Value = new(big.Int)
	}
	op.ChainID = b.config.ChainID

	gas, err := b.gasLimit(ctx, op)
	if err != nil {
		return err
	}
	op.Gas = gas

	if b.config.DynamicFee {
		op.GasTipCap, op.GasFeeCap, err = b.GetGasSettings(ctx)
	} else {
		op.GasPrice, err = b.legacyGasPrice(ctx)
	}
	if err != nil {
		return err
	}

	return Validate(op)
}

func (b *Builder) gasLimit(ctx context.Context, op *Operation) (uint64, error) {
	if b.config.GasLimit > 0 {
		return b.config.GasLimit, nil
	}
	if b.node == nil {
		return 0, nil
	}

	estimate, err := b.node.EstimateGas(ctx, ethereum.CallMsg{
		From:  op.From,
		To:    op.To,
		Value: op.Value,
		Data:  op.Data,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to estimate gas for %s: %w", op.Kind, err)
	}

	multiplier := b.config.GasMultiplier
	if multiplier < 1 {
		multiplier = 1
	}
	return uint64(float64(estimate) * multiplier), nil
}

func (b *Builder) legacyGasPrice(ctx context.Context) (*big.Int, error) {
	if b.config.GasPrice != nil {
		return b.config.GasPrice, nil
	}
	if b.node == nil {
		return nil, nil
	}
	price, err := b.node.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to suggest gas price: %w", err)
	}
	return price, nil
}

// GetGasSettings returns EIP-1559 fee settings, fetching from the node if not configured
func (b *Builder) GetGasSettings(ctx context.Context) (*big.Int, *big.Int, error) {
	gasTipCap := b.config.GasTipCap
	gasFeeCap := b.config.GasFeeCap

	if gasTipCap == nil && b.node != nil {
		tip, err := b.node.SuggestGasTipCap(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to suggest gas tip cap: %w", err)
		}
		gasTipCap = tip
	}

	if gasFeeCap == nil && b.node != nil {
		price, err := b.node.SuggestGasPrice(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to suggest gas price: %w", err)
		}
		// gasFeeCap = baseFee + gasTipCap (approximate with 2x suggested price)
		gasFeeCap = new(big.Int).Mul(price, big.NewInt(2))
	}

	// Ensure gasTipCap is not greater than gasFeeCap
	if gasTipCap != nil && gasFeeCap != nil && gasTipCap.Cmp(gasFeeCap) > 0 {
		gasTipCap = gasFeeCap
	}

	return gasTipCap, gasFeeCap, nil
}

// Validate checks that an operation carries everything needed to sign it
func Validate(op *Operation) error {
	const vop = "txbuilder.Validate"

	if op == nil {
		return errs.Configuration(vop, "operation is nil")
	}
	if err := checkTarget(op); err != nil {
		return err
	}
	if op.Gas == 0 {
		return errs.Configuration(vop, "gas limit is required for %s", op.Kind)
	}
	if op.Type() == TxTypeDynamicFee {
		if op.GasTipCap == nil {
			return errs.Configuration(vop, "gas tip cap is required for %s", op.Kind)
		}
	} else if op.GasPrice == nil {
		return errs.Configuration(vop, "gas price is required for %s", op.Kind)
	}
	if op.ChainID == nil || op.ChainID.Sign() <= 0 {
		return errs.Configuration(vop, "chain id is required for %s", op.Kind)
	}
	return nil
}

func checkTarget(op *Operation) error {
	const vop = "txbuilder.Validate"

	switch op.Kind {
	case KindTransfer, KindContractCall:
		if op.To == nil || *op.To == (common.Address{}) {
			return errs.Configuration(vop, "target address is required for %s", op.Kind)
		}
	case KindDeploy:
		if op.To != nil {
			return errs.Configuration(vop, "deployment must not have a target address")
		}
		if len(op.Data) == 0 {
			return errs.Configuration(vop, "bytecode is required for %s", op.Kind)
		}
	default:
		return errs.Configuration(vop, "unknown operation kind %d", int(op.Kind))
	}
	return nil
}
