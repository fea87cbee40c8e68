package txbuilder

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Kind is the operation variant
type Kind int

const (
	KindTransfer Kind = iota
	KindContractCall
	KindDeploy
)

// String returns the kind name
func (k Kind) String() string {
	switch k {
	case KindTransfer:
		return "TRANSFER"
	case KindContractCall:
		return "CONTRACT_CALL"
	case KindDeploy:
		return "DEPLOY"
	default:
		return "UNKNOWN"
	}
}

// TxType represents the transaction envelope
type TxType byte

const (
	TxTypeLegacy     TxType = 0x00
	TxTypeDynamicFee TxType = 0x02
)

// Operation is an unsigned transaction built for one sender nonce
type Operation struct {
	Kind    Kind
	From    common.Address
	To      *common.Address // nil for deployments
	Value   *big.Int
	Data    []byte
	Nonce   uint64
	Gas     uint64
	ChainID *big.Int

	GasPrice  *big.Int // legacy
	GasTipCap *big.Int // EIP-1559
	GasFeeCap *big.Int // EIP-1559
}

// Type returns the envelope the operation will be signed as
func (o *Operation) Type() TxType {
	if o.GasFeeCap != nil {
		return TxTypeDynamicFee
	}
	return TxTypeLegacy
}

// Transaction returns the unsigned go-ethereum transaction
func (o *Operation) Transaction() *types.Transaction {
	value := o.Value
	if value == nil {
		value = new(big.Int)
	}

	if o.Type() == TxTypeDynamicFee {
		return types.NewTx(&types.DynamicFeeTx{
			ChainID:   o.ChainID,
			Nonce:     o.Nonce,
			GasTipCap: o.GasTipCap,
			GasFeeCap: o.GasFeeCap,
			Gas:       o.Gas,
			To:        o.To,
			Value:     value,
			Data:      o.Data,
		})
	}

	return types.NewTx(&types.LegacyTx{
		Nonce:    o.Nonce,
		GasPrice: o.GasPrice,
		Gas:      o.Gas,
		To:       o.To,
		Value:    value,
		Data:     o.Data,
	})
}

// MaxFee returns the most the operation can spend on gas
func (o *Operation) MaxFee() *big.Int {
	price := o.GasPrice
	if o.Type() == TxTypeDynamicFee {
		price = o.GasFeeCap
	}
	if price == nil {
		return new(big.Int)
	}
	return new(big.Int).Mul(price, new(big.Int).SetUint64(o.Gas))
}

// SignedOperation is an operation bound to exactly one signature and nonce
type SignedOperation struct {
	Operation *Operation
	Tx        *types.Transaction
	Raw       []byte
	Hash      common.Hash
	From      common.Address
	Nonce     uint64
}

// BuilderConfig holds gas settings for operation building
type BuilderConfig struct {
	ChainID       *big.Int
	GasLimit      uint64   // 0 = estimate
	GasMultiplier float64  // applied to estimates
	GasPrice      *big.Int // legacy; nil = suggest
	GasTipCap     *big.Int // EIP-1559; nil = suggest
	GasFeeCap     *big.Int // EIP-1559; nil = suggest
	DynamicFee    bool
}
