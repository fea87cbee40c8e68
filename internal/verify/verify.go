// Package verify holds the assertions applied to on-chain outcomes. No helper
// retries; each failure is an errs.ErrAssertion naming the check.
package verify

import (
	"bytes"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/0xmhha/txverify/internal/errs"
)

// Decimals of the native token
const Decimals = 18

var unit = new(big.Int).Exp(big.NewInt(10), big.NewInt(Decimals), nil)

// Unit returns 10^18, one whole native token in wei
func Unit() *big.Int {
	return new(big.Int).Set(unit)
}

// ZeroBalance checks that a fresh account holds nothing
func ZeroBalance(account common.Address, balance *big.Int) error {
	if balance == nil || balance.Sign() != 0 {
		return errs.Assertion("zero balance of "+account.Hex(), 0, balance)
	}
	return nil
}

// PositiveBalance checks that an account is funded
func PositiveBalance(account common.Address, balance *big.Int) error {
	if balance == nil || balance.Sign() <= 0 {
		return errs.Assertion("funded balance of "+account.Hex(), "> 0", balance)
	}
	return nil
}

// BalanceDelta checks after == before + delta exactly. A negative delta
// checks a decrease.
func BalanceDelta(account common.Address, before, after, delta *big.Int) error {
	want := new(big.Int).Add(before, delta)
	if after.Cmp(want) != 0 {
		return errs.Assertion("balance of "+account.Hex(), want, after)
	}
	return nil
}

// RoundedBalanceDelta checks round(after) == round(before) + units, with
// balances rounded to whole native tokens. It absorbs gas fees on the
// sender side.
func RoundedBalanceDelta(account common.Address, before, after *big.Int, units int64) error {
	want := new(big.Int).Add(RoundUnits(before), big.NewInt(units))
	got := RoundUnits(after)
	if got.Cmp(want) != 0 {
		return errs.Assertion("rounded balance of "+account.Hex(), want, got)
	}
	return nil
}

// RoundUnits converts wei to whole tokens, rounding half away from zero
func RoundUnits(wei *big.Int) *big.Int {
	half := new(big.Int).Rsh(unit, 1)
	abs := new(big.Int).Abs(wei)
	q, r := new(big.Int).QuoRem(abs, unit, new(big.Int))
	if r.Cmp(half) >= 0 {
		q.Add(q, big.NewInt(1))
	}
	if wei.Sign() < 0 {
		q.Neg(q)
	}
	return q
}

// ReceiptStatus checks the execution status of an included transaction
func ReceiptStatus(receipt *types.Receipt, want uint64) error {
	if receipt == nil {
		return errs.Assertion("receipt status", want, "no receipt")
	}
	if receipt.Status != want {
		return errs.Assertion("receipt status of "+receipt.TxHash.Hex(), want, receipt.Status)
	}
	return nil
}

// Succeeded checks receipt status 1
func Succeeded(receipt *types.Receipt) error {
	return ReceiptStatus(receipt, types.ReceiptStatusSuccessful)
}

// ContractCreated checks that a deployment receipt names a contract address
func ContractCreated(receipt *types.Receipt) error {
	if receipt == nil || receipt.ContractAddress == (common.Address{}) {
		return errs.Assertion("contract address in receipt", "non-zero address", "none")
	}
	return nil
}

// CodeMatches checks that the code deployed at an address is contained in the
// compiled bytecode. Both sides are compared as lower-case hex without 0x, so
// creation bytecode and a constructor-argument suffix are tolerated.
func CodeMatches(deployed []byte, compiled string) error {
	if len(deployed) == 0 {
		return errs.Assertion("deployed code", "non-empty code", "0x")
	}
	want := normalizeHex(compiled)
	got := normalizeHex(common.Bytes2Hex(deployed))
	if !strings.Contains(want, got) {
		return errs.Assertion("deployed code within compiled bytecode", abbreviate(want), abbreviate(got))
	}
	return nil
}

// BytesEqual checks two byte strings for equality
func BytesEqual(check string, expected, actual []byte) error {
	if !bytes.Equal(expected, actual) {
		return errs.Assertion(check, "0x"+common.Bytes2Hex(expected), "0x"+common.Bytes2Hex(actual))
	}
	return nil
}

// FeeWithinCap checks that the fee a receipt charged, gas used times the
// effective gas price, stays within the most the signed transaction allowed
func FeeWithinCap(receipt *types.Receipt, maxFee *big.Int) error {
	if receipt == nil || receipt.EffectiveGasPrice == nil {
		return errs.Assertion("fee charged", "effective gas price", nil)
	}
	fee := new(big.Int).Mul(receipt.EffectiveGasPrice, new(big.Int).SetUint64(receipt.GasUsed))
	if maxFee == nil || fee.Cmp(maxFee) > 0 {
		return errs.Assertion("fee within cap", fmt.Sprintf("<= %s", maxFee), fee)
	}
	return nil
}

// BigEqual checks two integers for equality
func BigEqual(check string, expected, actual *big.Int) error {
	if expected == nil || actual == nil || expected.Cmp(actual) != 0 {
		return errs.Assertion(check, expected, actual)
	}
	return nil
}

// Equal checks comparable values for equality
func Equal[T comparable](check string, expected, actual T) error {
	if expected != actual {
		return errs.Assertion(check, expected, actual)
	}
	return nil
}

// FinalityAgreement checks that the block-number strategy and both finality
// RPCs give the same answer, and that the answer is want
func FinalityAgreement(txHash common.Hash, byNumber, byBlockRPC, byTxRPC, want bool) error {
	if byNumber != byBlockRPC || byBlockRPC != byTxRPC {
		return errs.Assertion(
			"finality strategies agree for "+txHash.Hex(),
			fmt.Sprintf("block-number=%v", byNumber),
			fmt.Sprintf("isBlockFinalized=%v isTxFinalized=%v", byBlockRPC, byTxRPC),
		)
	}
	if byNumber != want {
		return errs.Assertion("finalized "+txHash.Hex(), want, byNumber)
	}
	return nil
}

func normalizeHex(s string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X"))
}

func abbreviate(s string) string {
	if len(s) <= 24 {
		return "0x" + s
	}
	return fmt.Sprintf("0x%s...%s (%d bytes)", s[:12], s[len(s)-12:], len(s)/2)
}
