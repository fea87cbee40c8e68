package awaiter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"

	"github.com/0xmhha/txverify/internal/errs"
)

// Client interface for awaiter operations
type Client interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
}

// Config holds awaiter configuration
type Config struct {
	// PollInterval is the interval between receipt queries
	PollInterval time.Duration

	// Timeout bounds the total wait for one receipt or block
	Timeout time.Duration
}

// DefaultConfig returns default awaiter configuration
func DefaultConfig() *Config {
	return &Config{
		PollInterval: time.Second,
		Timeout:      60 * time.Second,
	}
}

// Result describes a completed wait
type Result struct {
	Receipt  *types.Receipt
	Attempts int
	Waited   time.Duration
}

// Awaiter polls the node until a receipt or block is available
type Awaiter struct {
	client Client
	config *Config
	clock  Clock
	logger logrus.FieldLogger
}

// Option configures an Awaiter
type Option func(*Awaiter)

// WithClock replaces the wall clock
func WithClock(clock Clock) Option {
	return func(a *Awaiter) { a.clock = clock }
}

// WithLogger sets the logger for poll attempts
func WithLogger(logger logrus.FieldLogger) Option {
	return func(a *Awaiter) { a.logger = logger }
}

// New creates a new Awaiter instance
func New(client Client, config *Config, opts ...Option) *Awaiter {
	if config == nil {
		config = DefaultConfig()
	}
	a := &Awaiter{
		client: client,
		config: config,
		clock:  RealClock(),
		logger: discardLogger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Clock returns the clock driving the awaiter
func (a *Awaiter) Clock() Clock {
	return a.clock
}

// Await blocks until the receipt of txHash is available. A missing receipt
// is polled again; any other error ends the wait immediately.
func (a *Awaiter) Await(ctx context.Context, txHash common.Hash) (*Result, error) {
	var receipt *types.Receipt
	log := a.logger.WithField("tx", txHash.Hex())

	attempts, waited, err := Poll(ctx, a.clock, "await receipt "+txHash.Hex(), a.config.Timeout, a.config.PollInterval,
		func(ctx context.Context) (bool, error) {
			r, err := a.client.TransactionReceipt(ctx, txHash)
			if IsNotFound(err) || (err == nil && r == nil) {
				log.Debug("receipt not found yet")
				return false, nil
			}
			if err != nil {
				return false, err
			}
			receipt = r
			return true, nil
		})
	if err != nil {
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"block":    receipt.BlockNumber,
		"status":   receipt.Status,
		"attempts": attempts,
	}).Debug("receipt available")

	return &Result{Receipt: receipt, Attempts: attempts, Waited: waited}, nil
}

// WaitForBlock blocks until the node serves the block with the given number
func (a *Awaiter) WaitForBlock(ctx context.Context, number uint64) (*types.Header, error) {
	var header *types.Header
	target := new(big.Int).SetUint64(number)

	_, _, err := Poll(ctx, a.clock, fmt.Sprintf("await block %d", number), a.config.Timeout, a.config.PollInterval,
		func(ctx context.Context) (bool, error) {
			h, err := a.client.HeaderByNumber(ctx, target)
			if IsNotFound(err) || (err == nil && h == nil) {
				return false, nil
			}
			if err != nil {
				return false, err
			}
			header = h
			return true, nil
		})
	if err != nil {
		return nil, err
	}
	return header, nil
}

// Poll calls fn until it reports done, returns an error, or timeout elapses
// on clock. The final sleep is shortened so the last attempt lands on the
// deadline. It returns the number of attempts and the time waited.
func Poll(
	ctx context.Context,
	clock Clock,
	op string,
	timeout, interval time.Duration,
	fn func(ctx context.Context) (bool, error),
) (int, time.Duration, error) {
	if interval <= 0 {
		interval = DefaultConfig().PollInterval
	}
	start := clock.Now()
	deadline := start.Add(timeout)

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return attempt - 1, clock.Now().Sub(start), err
		}

		done, err := fn(ctx)
		if err != nil {
			return attempt, clock.Now().Sub(start), err
		}
		if done {
			return attempt, clock.Now().Sub(start), nil
		}

		now := clock.Now()
		if !now.Before(deadline) {
			return attempt, now.Sub(start), errs.Timeout(op, "no result after %s (%d attempts)", timeout, attempt)
		}

		wait := interval
		if remaining := deadline.Sub(now); remaining < wait {
			wait = remaining
		}
		if err := clock.Sleep(ctx, wait); err != nil {
			return attempt, clock.Now().Sub(start), err
		}
	}
}

// IsNotFound reports whether err means the node does not know the object yet
func IsNotFound(err error) bool {
	return errors.Is(err, ethereum.NotFound)
}

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
