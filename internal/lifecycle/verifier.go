package lifecycle

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"

	"github.com/0xmhha/txverify/internal/awaiter"
	"github.com/0xmhha/txverify/internal/errs"
	"github.com/0xmhha/txverify/internal/finality"
	"github.com/0xmhha/txverify/internal/txbuilder"
	"github.com/0xmhha/txverify/internal/wallet"
)

// Client is the node surface needed to run one operation end to end
type Client interface {
	txbuilder.NodeReader
	txbuilder.RawSender
	awaiter.Client
}

// Recorder receives operation outcomes. *metrics.Metrics implements it.
type Recorder interface {
	RecordOperation(kind, state string)
	RecordInclusion(kind string, latency time.Duration, gasUsed uint64)
	RecordPendingPolls(n int)
}

// Record is the trace of one operation through the lifecycle
type Record struct {
	Operation *txbuilder.Operation
	Signed    *txbuilder.SignedOperation
	Hash      common.Hash
	Receipt   *types.Receipt
	Finality  *finality.Status

	// PendingPolls counts receipt queries answered with "not found"
	PendingPolls int
	SubmittedAt  time.Time
	IncludedAt   time.Time

	Err error

	machine *Machine
}

// State returns the current lifecycle state
func (r *Record) State() State {
	return r.machine.State()
}

// History returns every transition taken
func (r *Record) History() []Transition {
	return r.machine.History()
}

// Latency returns the time from submission to inclusion
func (r *Record) Latency() time.Duration {
	if r.IncludedAt.IsZero() {
		return 0
	}
	return r.IncludedAt.Sub(r.SubmittedAt)
}

// Rejected reports whether the operation failed the way a deliberately
// malformed operation must: refused by the node at submission or included
// with status 0. A submission lost to a network error is not a rejection.
func (r *Record) Rejected() bool {
	if r.State() == StateSubmissionFailed {
		return errors.Is(r.Err, errs.ErrSubmissionFailed)
	}
	return r.Receipt != nil && r.Receipt.Status == types.ReceiptStatusFailed
}

// Verifier runs operations of one sender through
// build, sign, submit and await, one at a time
type Verifier struct {
	builder   *txbuilder.Builder
	submitter *txbuilder.Submitter
	awaiter   *awaiter.Awaiter
	sender    *wallet.Account

	clock    awaiter.Clock
	logger   logrus.FieldLogger
	recorder Recorder
}

// Option configures a Verifier
type Option func(*Verifier)

// WithLogger sets the structured logger
func WithLogger(logger logrus.FieldLogger) Option {
	return func(v *Verifier) { v.logger = logger }
}

// WithClock replaces the wall clock used for polling and timestamps
func WithClock(clock awaiter.Clock) Option {
	return func(v *Verifier) { v.clock = clock }
}

// WithRecorder reports outcomes to a metrics recorder
func WithRecorder(recorder Recorder) Option {
	return func(v *Verifier) { v.recorder = recorder }
}

// New creates a Verifier for sender. The sender must hold its private key.
func New(client Client, sender *wallet.Account, builderCfg *txbuilder.BuilderConfig, awaitCfg *awaiter.Config, opts ...Option) (*Verifier, error) {
	if client == nil {
		return nil, errs.Configuration("lifecycle.New", "a node client is required")
	}
	if !sender.HasKey() {
		return nil, errs.Configuration("lifecycle.New", "sender account with a private key is required")
	}

	v := &Verifier{
		builder:   txbuilder.NewBuilder(builderCfg, client),
		submitter: txbuilder.NewSubmitter(client),
		sender:    sender,
		clock:     awaiter.RealClock(),
		logger:    logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(v)
	}
	v.awaiter = awaiter.New(client, awaitCfg, awaiter.WithClock(v.clock), awaiter.WithLogger(v.logger))
	return v, nil
}

// Sender returns the signing account
func (v *Verifier) Sender() *wallet.Account {
	return v.sender
}

// Builder returns the operation builder, for callers that need BuildAt
func (v *Verifier) Builder() *txbuilder.Builder {
	return v.builder
}

// Awaiter returns the receipt awaiter
func (v *Verifier) Awaiter() *awaiter.Awaiter {
	return v.awaiter
}

// Clock returns the clock driving polls
func (v *Verifier) Clock() awaiter.Clock {
	return v.clock
}

// Transfer sends amount to a recipient and waits for the receipt
func (v *Verifier) Transfer(ctx context.Context, to common.Address, amount *big.Int) (*Record, error) {
	op, err := v.builder.Transfer(ctx, v.sender.Address, to, amount)
	if err != nil {
		return nil, err
	}
	return v.Execute(ctx, op)
}

// Call invokes a contract method and waits for the receipt
func (v *Verifier) Call(ctx context.Context, to common.Address, data []byte, value *big.Int) (*Record, error) {
	op, err := v.builder.ContractCall(ctx, v.sender.Address, to, data, value)
	if err != nil {
		return nil, err
	}
	return v.Execute(ctx, op)
}

// Deploy creates a contract from input and waits for the receipt
func (v *Verifier) Deploy(ctx context.Context, input []byte) (*Record, error) {
	op, err := v.builder.Deploy(ctx, v.sender.Address, input)
	if err != nil {
		return nil, err
	}
	return v.Execute(ctx, op)
}

// Execute signs, submits and awaits a built operation. The returned Record
// is non-nil whenever op is; its state tells where the lifecycle stopped.
func (v *Verifier) Execute(ctx context.Context, op *txbuilder.Operation) (*Record, error) {
	if op == nil {
		return nil, errs.Configuration("lifecycle.Execute", "operation is required")
	}

	rec := &Record{Operation: op, machine: NewMachine()}
	kind := op.Kind.String()
	log := v.logger.WithFields(logrus.Fields{
		"kind":  kind,
		"nonce": op.Nonce,
	})
	defer func() {
		if v.recorder != nil {
			v.recorder.RecordOperation(kind, rec.State().String())
		}
	}()

	signed, err := txbuilder.Sign(op, v.sender.Key)
	if err != nil {
		log.WithError(err).Error("signing failed")
		return rec, v.fail(rec, StateSigningFailed, err)
	}
	rec.Signed = signed
	rec.Hash = signed.Hash
	rec.machine.To(StateSigned, v.clock.Now())
	log = log.WithField("tx", signed.Hash.Hex())

	if _, err := v.submitter.Submit(ctx, signed); err != nil {
		log.WithError(err).Warn("submission failed")
		return rec, v.fail(rec, StateSubmissionFailed, err)
	}
	rec.SubmittedAt = v.clock.Now()
	rec.machine.To(StateSubmitted, rec.SubmittedAt)
	log.Debug("submitted")

	result, err := v.awaiter.Await(ctx, signed.Hash)
	if err != nil {
		if errors.Is(err, errs.ErrTimeout) {
			log.WithError(err).Error("receipt timed out")
			return rec, v.fail(rec, StateTimedOutPending, err)
		}
		log.WithError(err).Error("receipt lookup failed")
		rec.Err = err
		return rec, err
	}

	rec.PendingPolls = result.Attempts - 1
	if rec.PendingPolls > 0 {
		rec.machine.To(StatePending, rec.SubmittedAt)
	}
	rec.Receipt = result.Receipt
	rec.IncludedAt = rec.SubmittedAt.Add(result.Waited)
	rec.machine.To(StateIncluded, rec.IncludedAt)

	if v.recorder != nil {
		v.recorder.RecordPendingPolls(rec.PendingPolls)
		v.recorder.RecordInclusion(kind, rec.Latency(), result.Receipt.GasUsed)
	}

	log.WithFields(logrus.Fields{
		"block":  result.Receipt.BlockNumber,
		"status": result.Receipt.Status,
		"gas":    result.Receipt.GasUsed,
	}).Info("included")

	return rec, nil
}

// AwaitFinality polls checker until the included operation is finalized by
// every strategy or timeout elapses
func (v *Verifier) AwaitFinality(ctx context.Context, rec *Record, checker *finality.Checker, timeout, interval time.Duration) error {
	if rec == nil || rec.State() != StateIncluded {
		return errs.Configuration("lifecycle.AwaitFinality", "operation must be included before awaiting finality")
	}

	status, err := checker.Await(ctx, rec.Receipt, v.clock, timeout, interval)
	rec.Finality = status
	if err != nil {
		rec.Err = err
		return err
	}
	rec.machine.To(StateFinalized, v.clock.Now())

	v.logger.WithFields(logrus.Fields{
		"tx":        rec.Hash.Hex(),
		"block":     status.BlockNumber,
		"finalized": status.FinalizedHead,
	}).Info("finalized")
	return nil
}

func (v *Verifier) fail(rec *Record, state State, err error) error {
	rec.machine.To(state, v.clock.Now())
	rec.Err = err
	return err
}
