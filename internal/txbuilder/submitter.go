package txbuilder

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/0xmhha/txverify/internal/errs"
)

// RawSender submits a raw signed payload to the node
type RawSender interface {
	SendRawTransaction(ctx context.Context, rawTx []byte) (common.Hash, error)
}

// Submitter sends signed operations. Each Submit is exactly one RPC call.
type Submitter struct {
	sender RawSender
}

// NewSubmitter creates a new submitter
func NewSubmitter(sender RawSender) *Submitter {
	return &Submitter{sender: sender}
}

// Submit sends the signed payload and returns the transaction hash. Node
// rejections surface as errs.ErrSubmissionFailed, connection problems as
// errs.ErrTransport.
func (s *Submitter) Submit(ctx context.Context, signed *SignedOperation) (common.Hash, error) {
	const sop = "txbuilder.Submit"

	if signed == nil || len(signed.Raw) == 0 {
		return common.Hash{}, errs.Signing(sop, errors.New("nothing to submit"))
	}

	hash, err := s.sender.SendRawTransaction(ctx, signed.Raw)
	if err != nil {
		if errs.KindOf(err) == errs.KindUnknown {
			err = errs.Transport(sop, err)
		}
		return common.Hash{}, err
	}

	if hash != (common.Hash{}) && hash != signed.Hash {
		return common.Hash{}, errs.Transport(sop, fmt.Errorf("node returned hash %s for %s", hash.Hex(), signed.Hash.Hex()))
	}
	return signed.Hash, nil
}
