package finality

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"

	"github.com/0xmhha/txverify/internal/awaiter"
	"github.com/0xmhha/txverify/internal/errs"
)

// Client interface for finality queries
type Client interface {
	BlockNumber(ctx context.Context) (uint64, error)
	FinalizedHeader(ctx context.Context) (*types.Header, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	IsBlockFinalized(ctx context.Context, blockHash common.Hash) (bool, error)
	IsTxFinalized(ctx context.Context, txHash common.Hash) (bool, error)
}

// Status is the finality of one included transaction as seen by both
// strategies
type Status struct {
	TxHash      common.Hash
	BlockHash   common.Hash
	BlockNumber uint64

	// FinalizedHead is the "finalized" block number read after the RPC checks
	FinalizedHead uint64

	// ByBlockNumber is true when BlockNumber <= FinalizedHead
	ByBlockNumber bool
	// ByBlockRPC is the answer of <prefix>_isBlockFinalized
	ByBlockRPC bool
	// ByTxRPC is the answer of <prefix>_isTxFinalized
	ByTxRPC bool

	// Stable is false when the finalized head crossed BlockNumber while the
	// check ran, so the strategies may legitimately disagree
	Stable bool
}

// Agree reports whether every strategy gave the same answer
func (s *Status) Agree() bool {
	return s.ByBlockNumber == s.ByBlockRPC && s.ByBlockRPC == s.ByTxRPC
}

// Finalized reports whether every strategy considers the transaction final
func (s *Status) Finalized() bool {
	return s.ByBlockNumber && s.ByBlockRPC && s.ByTxRPC
}

// Tracker records the finalized head and rejects regressions
type Tracker struct {
	mu       sync.Mutex
	head     uint64
	observed bool
	samples  int
	advances int
}

// Snapshot is a point-in-time view of a Tracker
type Snapshot struct {
	Head     uint64
	Samples  int
	Advances int
}

// Observe records a finalized head sample. A value lower than any earlier
// sample is an assertion failure.
func (t *Tracker) Observe(head uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.observed && head < t.head {
		return errs.Assertion("finalized head non-decreasing", fmt.Sprintf(">= %d", t.head), head)
	}
	if t.observed && head > t.head {
		t.advances++
	}
	t.head = head
	t.observed = true
	t.samples++
	return nil
}

// Snapshot returns the tracker state
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Snapshot{Head: t.head, Samples: t.samples, Advances: t.advances}
}

// Checker evaluates finality with both the block-number strategy and the
// node's finality RPCs
type Checker struct {
	client  Client
	tracker *Tracker
	logger  logrus.FieldLogger
}

// NewChecker creates a new Checker. logger may be nil.
func NewChecker(client Client, logger logrus.FieldLogger) *Checker {
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}
	return &Checker{
		client:  client,
		tracker: &Tracker{},
		logger:  logger,
	}
}

// Tracker returns the head tracker shared by all checks
func (c *Checker) Tracker() *Tracker {
	return c.tracker
}

// FinalizedHead reads the finalized block number, checks it does not exceed
// the latest block and records it in the tracker
func (c *Checker) FinalizedHead(ctx context.Context) (uint64, error) {
	header, err := c.client.FinalizedHeader(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get finalized header: %w", err)
	}
	finalized := header.Number.Uint64()

	latest, err := c.client.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get block number: %w", err)
	}
	if finalized > latest {
		return 0, errs.Assertion("finalized head <= latest head", fmt.Sprintf("<= %d", latest), finalized)
	}

	if err := c.tracker.Observe(finalized); err != nil {
		return 0, err
	}
	return finalized, nil
}

// Check evaluates the finality of an included transaction
func (c *Checker) Check(ctx context.Context, receipt *types.Receipt) (*Status, error) {
	if receipt == nil || receipt.BlockNumber == nil {
		return nil, errs.Assertion("receipt included", "receipt with block", "none")
	}
	included := receipt.BlockNumber.Uint64()

	before, err := c.FinalizedHead(ctx)
	if err != nil {
		return nil, err
	}

	byBlock, err := c.client.IsBlockFinalized(ctx, receipt.BlockHash)
	if err != nil {
		return nil, fmt.Errorf("failed to check block finality: %w", err)
	}
	byTx, err := c.client.IsTxFinalized(ctx, receipt.TxHash)
	if err != nil {
		return nil, fmt.Errorf("failed to check transaction finality: %w", err)
	}

	after, err := c.FinalizedHead(ctx)
	if err != nil {
		return nil, err
	}

	status := &Status{
		TxHash:        receipt.TxHash,
		BlockHash:     receipt.BlockHash,
		BlockNumber:   included,
		FinalizedHead: after,
		ByBlockNumber: included <= after,
		ByBlockRPC:    byBlock,
		ByTxRPC:       byTx,
		Stable:        (included <= before) == (included <= after),
	}

	c.logger.WithFields(logrus.Fields{
		"tx":        receipt.TxHash.Hex(),
		"block":     included,
		"finalized": after,
		"by_number": status.ByBlockNumber,
		"by_block":  byBlock,
		"by_tx":     byTx,
	}).Debug("finality checked")

	return status, nil
}

// CheckTx looks up the receipt of txHash and evaluates its finality
func (c *Checker) CheckTx(ctx context.Context, txHash common.Hash) (*Status, error) {
	receipt, err := c.client.TransactionReceipt(ctx, txHash)
	if errors.Is(err, ethereum.NotFound) || (err == nil && receipt == nil) {
		return nil, errs.Assertion("transaction known to node", txHash.Hex(), "not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get receipt: %w", err)
	}
	return c.Check(ctx, receipt)
}

// Await polls until every strategy reports the transaction finalized or the
// timeout elapses on clock. A stable disagreement between strategies ends
// the wait with an assertion failure.
func (c *Checker) Await(
	ctx context.Context,
	receipt *types.Receipt,
	clock awaiter.Clock,
	timeout, interval time.Duration,
) (*Status, error) {
	if receipt == nil || receipt.BlockNumber == nil {
		return nil, errs.Assertion("receipt included", "receipt with block", "none")
	}
	var status *Status

	_, _, err := awaiter.Poll(ctx, clock, "await finality "+receipt.TxHash.Hex(), timeout, interval,
		func(ctx context.Context) (bool, error) {
			s, err := c.Check(ctx, receipt)
			if err != nil {
				return false, err
			}
			status = s
			if s.Stable && !s.Agree() {
				return false, Disagreement(s)
			}
			return s.Stable && s.Finalized(), nil
		})
	if err != nil {
		return status, err
	}
	return status, nil
}

// Disagreement builds the assertion failure for strategies that disagree
func Disagreement(s *Status) error {
	return errs.Assertion(
		"finality strategies agree",
		fmt.Sprintf("block-number=%v", s.ByBlockNumber),
		fmt.Sprintf("isBlockFinalized=%v isTxFinalized=%v (block %d, finalized head %d)",
			s.ByBlockRPC, s.ByTxRPC, s.BlockNumber, s.FinalizedHead),
	)
}
