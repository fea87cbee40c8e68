package txbuilder

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/0xmhha/txverify/internal/errs"
)

// Sign signs an operation with the sender key. It performs no I/O and is
// deterministic for a given operation, chain ID and key.
func Sign(op *Operation, key *ecdsa.PrivateKey) (*SignedOperation, error) {
	const sop = "txbuilder.Sign"

	if op == nil {
		return nil, errs.Signing(sop, errors.New("operation is nil"))
	}
	if key == nil {
		return nil, errs.Signing(sop, errors.New("private key is nil"))
	}
	if op.ChainID == nil || op.ChainID.Sign() <= 0 {
		return nil, errs.Signing(sop, errors.New("operation has no chain id"))
	}

	from := crypto.PubkeyToAddress(key.PublicKey)
	if op.From != (common.Address{}) && op.From != from {
		return nil, errs.Signing(sop, fmt.Errorf("key for %s cannot sign for %s", from.Hex(), op.From.Hex()))
	}

	signedTx, err := SignTransaction(op.Transaction(), op.ChainID, key)
	if err != nil {
		return nil, errs.Signing(sop, fmt.Errorf("failed to sign transaction: %w", err))
	}

	rawTx, err := signedTx.MarshalBinary()
	if err != nil {
		return nil, errs.Signing(sop, fmt.Errorf("failed to marshal transaction: %w", err))
	}

	return &SignedOperation{
		Operation: op,
		Tx:        signedTx,
		Raw:       rawTx,
		Hash:      signedTx.Hash(),
		From:      from,
		Nonce:     op.Nonce,
	}, nil
}

// SignTransaction signs a transaction with the given private key
func SignTransaction(tx *types.Transaction, chainID *big.Int, key *ecdsa.PrivateKey) (*types.Transaction, error) {
	signer := types.NewLondonSigner(chainID)
	return types.SignTx(tx, signer, key)
}
