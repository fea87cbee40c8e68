package awaiter

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/0xmhha/txverify/internal/errs"
)

var (
	testHash  = common.HexToHash("0x3ea780d2e53fc265e9d251b5f41794c3d5ec4a32e854ca6562b111ec7002057e")
	testStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
)

// mockAwaiterClient answers "not found" until pendingPolls reaches zero
type mockAwaiterClient struct {
	pendingPolls int
	receipt      *types.Receipt
	receiptErr   error
	receiptCalls int

	head        uint64
	headerErr   error
	headerCalls int
	// headAdvance is added to head after each header query
	headAdvance uint64
}

func (m *mockAwaiterClient) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	m.receiptCalls++
	if m.receiptErr != nil {
		return nil, m.receiptErr
	}
	if m.pendingPolls > 0 {
		m.pendingPolls--
		return nil, ethereum.NotFound
	}
	if m.receipt == nil {
		return nil, ethereum.NotFound
	}
	return m.receipt, nil
}

func (m *mockAwaiterClient) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	m.headerCalls++
	if m.headerErr != nil {
		return nil, m.headerErr
	}
	defer func() { m.head += m.headAdvance }()
	if number.Uint64() > m.head {
		return nil, ethereum.NotFound
	}
	return &types.Header{Number: new(big.Int).Set(number)}, nil
}

func successReceipt() *types.Receipt {
	return &types.Receipt{
		Status:      types.ReceiptStatusSuccessful,
		TxHash:      testHash,
		BlockNumber: big.NewInt(42),
	}
}

func newTestAwaiter(client Client, interval, timeout time.Duration) (*Awaiter, *FakeClock) {
	clock := NewFakeClock(testStart)
	a := New(client, &Config{PollInterval: interval, Timeout: timeout}, WithClock(clock))
	return a, clock
}

func TestAwait_ReceiptImmediatelyAvailable(t *testing.T) {
	client := &mockAwaiterClient{receipt: successReceipt()}
	a, clock := newTestAwaiter(client, time.Second, 10*time.Second)

	result, err := a.Await(context.Background(), testHash)
	if err != nil {
		t.Fatalf("Await() failed: %v", err)
	}
	if result.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", result.Attempts)
	}
	if result.Receipt.BlockNumber.Uint64() != 42 {
		t.Errorf("BlockNumber = %d, want 42", result.Receipt.BlockNumber.Uint64())
	}
	if len(clock.Sleeps()) != 0 {
		t.Errorf("slept %d times, want 0", len(clock.Sleeps()))
	}
}

func TestAwait_ToleratesNotFound(t *testing.T) {
	client := &mockAwaiterClient{pendingPolls: 3, receipt: successReceipt()}
	a, clock := newTestAwaiter(client, time.Second, 10*time.Second)

	result, err := a.Await(context.Background(), testHash)
	if err != nil {
		t.Fatalf("Await() failed: %v", err)
	}
	if result.Attempts != 4 {
		t.Errorf("Attempts = %d, want 4", result.Attempts)
	}
	if result.Waited != 3*time.Second {
		t.Errorf("Waited = %s, want 3s", result.Waited)
	}
	if client.receiptCalls != 4 {
		t.Errorf("TransactionReceipt called %d times, want 4", client.receiptCalls)
	}
	if got := clock.Now().Sub(testStart); got != 3*time.Second {
		t.Errorf("clock advanced %s, want 3s", got)
	}
}

func TestAwait_Timeout(t *testing.T) {
	client := &mockAwaiterClient{}
	a, clock := newTestAwaiter(client, 2*time.Second, 5*time.Second)

	_, err := a.Await(context.Background(), testHash)
	if !errors.Is(err, errs.ErrTimeout) {
		t.Fatalf("Await() error = %v, want ErrTimeout", err)
	}

	// polls at 0s, 2s, 4s and a final one at the 5s deadline
	if client.receiptCalls != 4 {
		t.Errorf("TransactionReceipt called %d times, want 4", client.receiptCalls)
	}
	if got := clock.Now().Sub(testStart); got != 5*time.Second {
		t.Errorf("clock advanced %s, want 5s", got)
	}
	sleeps := clock.Sleeps()
	if last := sleeps[len(sleeps)-1]; last != time.Second {
		t.Errorf("final sleep = %s, want 1s", last)
	}
}

func TestAwait_FatalErrorNotRetried(t *testing.T) {
	client := &mockAwaiterClient{receiptErr: errs.Transport("eth_getTransactionReceipt", errors.New("connection refused"))}
	a, clock := newTestAwaiter(client, time.Second, 10*time.Second)

	_, err := a.Await(context.Background(), testHash)
	if !errors.Is(err, errs.ErrTransport) {
		t.Fatalf("Await() error = %v, want ErrTransport", err)
	}
	if client.receiptCalls != 1 {
		t.Errorf("TransactionReceipt called %d times, want 1", client.receiptCalls)
	}
	if len(clock.Sleeps()) != 0 {
		t.Errorf("slept %d times after a fatal error", len(clock.Sleeps()))
	}
}

func TestAwait_ContextCancelled(t *testing.T) {
	client := &mockAwaiterClient{}
	a, _ := newTestAwaiter(client, time.Second, 10*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.Await(ctx, testHash)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Await() error = %v, want context.Canceled", err)
	}
	if client.receiptCalls != 0 {
		t.Errorf("TransactionReceipt called %d times on a cancelled context", client.receiptCalls)
	}
}

func TestAwait_FailedReceiptIsReturned(t *testing.T) {
	receipt := successReceipt()
	receipt.Status = types.ReceiptStatusFailed
	client := &mockAwaiterClient{receipt: receipt}
	a, _ := newTestAwaiter(client, time.Second, 10*time.Second)

	result, err := a.Await(context.Background(), testHash)
	if err != nil {
		t.Fatalf("Await() failed: %v", err)
	}
	if result.Receipt.Status != types.ReceiptStatusFailed {
		t.Errorf("Status = %d, want 0", result.Receipt.Status)
	}
}

func TestWaitForBlock(t *testing.T) {
	client := &mockAwaiterClient{head: 10, headAdvance: 1}
	a, _ := newTestAwaiter(client, time.Second, 10*time.Second)

	header, err := a.WaitForBlock(context.Background(), 13)
	if err != nil {
		t.Fatalf("WaitForBlock() failed: %v", err)
	}
	if header.Number.Uint64() != 13 {
		t.Errorf("Number = %d, want 13", header.Number.Uint64())
	}
	if client.headerCalls != 4 {
		t.Errorf("HeaderByNumber called %d times, want 4", client.headerCalls)
	}
}

func TestWaitForBlock_Timeout(t *testing.T) {
	client := &mockAwaiterClient{head: 10}
	a, _ := newTestAwaiter(client, time.Second, 3*time.Second)

	_, err := a.WaitForBlock(context.Background(), 20)
	if !errors.Is(err, errs.ErrTimeout) {
		t.Fatalf("WaitForBlock() error = %v, want ErrTimeout", err)
	}
}

func TestPoll_ZeroIntervalUsesDefault(t *testing.T) {
	clock := NewFakeClock(testStart)
	calls := 0

	attempts, _, err := Poll(context.Background(), clock, "test", 3*time.Second, 0, func(ctx context.Context) (bool, error) {
		calls++
		return calls == 3, nil
	})
	if err != nil {
		t.Fatalf("Poll() failed: %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
	for _, d := range clock.Sleeps() {
		if d != DefaultConfig().PollInterval {
			t.Errorf("sleep = %s, want %s", d, DefaultConfig().PollInterval)
		}
	}
}

func TestRealClock_SleepHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := RealClock().Sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("Sleep() error = %v, want context.Canceled", err)
	}
}
