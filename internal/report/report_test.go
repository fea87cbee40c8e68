package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xmhha/txverify/internal/awaiter"
	"github.com/0xmhha/txverify/internal/config"
	"github.com/0xmhha/txverify/internal/errs"
	"github.com/0xmhha/txverify/internal/scenario"
	testutil "github.com/0xmhha/txverify/internal/testing"
	"github.com/0xmhha/txverify/internal/wallet"
)

// runSummary runs TRANSFER and a failing DEPLOY against the simulated chain
func runSummary(t *testing.T) *scenario.Summary {
	t.Helper()

	cfg := testutil.TestConfig(t)
	require.NoError(t, cfg.Validate())
	chain := testutil.NewMockClient()
	chain.Fund(common.HexToAddress(testutil.AlithAddress), testutil.Units(100))
	w, err := wallet.NewFromPrivateKey(testutil.AlithPrivateKey)
	require.NoError(t, err)

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	env, err := scenario.NewEnv(context.Background(), cfg, chain, w,
		scenario.WithClock(awaiter.NewFakeClock(time.Unix(1_700_000_000, 0))),
		scenario.WithLogger(logger),
	)
	require.NoError(t, err)

	broken := func(ctx context.Context, env *scenario.Env, res *scenario.Result) error {
		return res.Check("bytecode available", errs.Assertion("bytecode available", "artifact", "none"))
	}
	summary, err := scenario.NewRunner(env, scenario.WithScenario(config.ScenarioDeploy, broken)).
		Run(context.Background(), []config.Scenario{config.ScenarioTransfer, config.ScenarioDeploy})
	require.NoError(t, err)
	return summary
}

func TestNew(t *testing.T) {
	r := New("http://127.0.0.1:9944", runSummary(t))

	assert.Equal(t, "1281", r.ChainID)
	assert.Equal(t, 1, r.Passed)
	assert.Equal(t, 1, r.Failed)
	assert.False(t, r.Success())
	require.NotNil(t, r.Preflight)
	assert.Equal(t, common.HexToAddress(testutil.AlithAddress).Hex(), r.Preflight.Sender)

	require.Len(t, r.Scenarios, 2)
	transfer, deploy := r.Scenarios[0], r.Scenarios[1]

	assert.True(t, transfer.Passed)
	assert.Empty(t, transfer.Error)
	require.Len(t, transfer.Operations, 1)
	op := transfer.Operations[0]
	assert.Equal(t, "TRANSFER", op.Kind)
	assert.Equal(t, "INCLUDED", op.State)
	assert.Equal(t, []string{"SIGNED", "SUBMITTED", "PENDING", "INCLUDED"}, op.History)
	assert.Equal(t, 1, op.PendingPolls)
	assert.Equal(t, "1s", op.Latency)
	require.NotNil(t, op.Status)
	assert.Equal(t, uint64(1), *op.Status)
	assert.Equal(t, uint64(testutil.TransferGas), op.GasUsed)
	assert.Empty(t, op.Contract)

	assert.False(t, deploy.Passed)
	assert.Equal(t, "ASSERTION", deploy.Kind)
	assert.Contains(t, deploy.Error, "bytecode available")
	require.Len(t, deploy.Checks, 1)
	assert.Equal(t, "FAIL", deploy.Checks[0].Status)
}

func TestPrintTable(t *testing.T) {
	r := New("http://127.0.0.1:9944", runSummary(t))

	var buf bytes.Buffer
	PrintTable(&buf, r)
	out := buf.String()

	assert.Contains(t, out, "TRANSFER")
	assert.Contains(t, out, "DEPLOY")
	assert.Contains(t, out, "FAIL")
	assert.Contains(t, out, "INCLUDED")
	assert.Contains(t, out, "1 of 2 scenarios failed")
}

func TestWriteJSON(t *testing.T) {
	r := New("http://127.0.0.1:9944", runSummary(t))
	filename := filepath.Join(t.TempDir(), "report.json")

	require.NoError(t, WriteJSON(r, filename))

	data, err := os.ReadFile(filename)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "1281", decoded["chain_id"])
	assert.Len(t, decoded["scenarios"], 2)
}

func TestExporter(t *testing.T) {
	r := New("http://127.0.0.1:9944", runSummary(t))
	dir := filepath.Join(t.TempDir(), "reports")

	e := NewExporter(dir)
	e.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }

	filename, err := e.Export(r, FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "report_20240102_030405.json"), filename)
	assert.FileExists(t, filename)

	filename, err = e.Export(r, FormatCSV)
	require.NoError(t, err)
	f, err := os.Open(filename)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	// header plus the single transfer
	require.Len(t, rows, 2)
	assert.Equal(t, "TRANSFER", rows[1][0])
	assert.Equal(t, "INCLUDED", rows[1][5])

	_, err = e.Export(r, "xml")
	require.Error(t, err)
}
