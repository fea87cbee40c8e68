package report

import (
	"time"

	"github.com/0xmhha/txverify/internal/lifecycle"
	"github.com/0xmhha/txverify/internal/scenario"
)

// Report is the serializable outcome of a verification run
type Report struct {
	Endpoint  string           `json:"endpoint"`
	ChainID   string           `json:"chain_id"`
	StartTime time.Time        `json:"start_time"`
	EndTime   time.Time        `json:"end_time"`
	Duration  string           `json:"duration"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Preflight *Preflight       `json:"preflight,omitempty"`
	Scenarios []ScenarioReport `json:"scenarios"`
}

// Preflight is the chain state read before the run
type Preflight struct {
	Head      uint64 `json:"head"`
	Finalized uint64 `json:"finalized"`
	Sender    string `json:"sender,omitempty"`
	Balance   string `json:"balance,omitempty"`
}

// ScenarioReport is the outcome of one scenario
type ScenarioReport struct {
	Name       string            `json:"name"`
	Passed     bool              `json:"passed"`
	Kind       string            `json:"error_kind,omitempty"`
	Error      string            `json:"error,omitempty"`
	Duration   string            `json:"duration"`
	Checks     []CheckReport     `json:"checks"`
	Operations []OperationReport `json:"operations"`
}

// CheckReport is one named assertion
type CheckReport struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// OperationReport is the lifecycle trace of one transaction
type OperationReport struct {
	Kind         string   `json:"kind"`
	Hash         string   `json:"hash,omitempty"`
	Nonce        uint64   `json:"nonce"`
	State        string   `json:"state"`
	History      []string `json:"history"`
	PendingPolls int      `json:"pending_polls"`
	Latency      string   `json:"latency,omitempty"`
	Block        uint64   `json:"block,omitempty"`
	Status       *uint64  `json:"status,omitempty"`
	GasUsed      uint64   `json:"gas_used,omitempty"`
	Contract     string   `json:"contract,omitempty"`
	Finalized    *bool    `json:"finalized,omitempty"`
	Error        string   `json:"error,omitempty"`
}

// New builds a report from a run summary
func New(endpoint string, summary *scenario.Summary) *Report {
	r := &Report{
		Endpoint:  endpoint,
		StartTime: summary.StartTime,
		EndTime:   summary.EndTime,
		Duration:  summary.Duration.String(),
		Passed:    summary.PassedCount(),
		Failed:    summary.FailedCount(),
		Scenarios: make([]ScenarioReport, 0, len(summary.Results)),
	}

	if p := summary.Preflight; p != nil {
		if p.ChainID != nil {
			r.ChainID = p.ChainID.String()
		}
		r.Preflight = &Preflight{Head: p.Head, Finalized: p.Finalized}
		if p.Balance != nil {
			r.Preflight.Sender = p.Sender.Hex()
			r.Preflight.Balance = p.Balance.String()
		}
	}

	for _, res := range summary.Results {
		r.Scenarios = append(r.Scenarios, newScenarioReport(res))
	}
	return r
}

// Success returns true if no scenario failed
func (r *Report) Success() bool {
	return r.Failed == 0
}

func newScenarioReport(res *scenario.Result) ScenarioReport {
	sr := ScenarioReport{
		Name:       string(res.Scenario),
		Passed:     res.Passed(),
		Duration:   res.Duration.String(),
		Checks:     make([]CheckReport, 0, len(res.Checks)),
		Operations: make([]OperationReport, 0, len(res.Records)),
	}
	if res.Err != nil {
		sr.Kind = res.Kind().String()
		sr.Error = res.Err.Error()
	}
	for _, c := range res.Checks {
		sr.Checks = append(sr.Checks, CheckReport{Name: c.Name, Status: c.Status.String(), Detail: c.Detail})
	}
	for _, rec := range res.Records {
		sr.Operations = append(sr.Operations, newOperationReport(rec))
	}
	return sr
}

func newOperationReport(rec *lifecycle.Record) OperationReport {
	op := OperationReport{
		Kind:         rec.Operation.Kind.String(),
		Nonce:        rec.Operation.Nonce,
		State:        rec.State().String(),
		PendingPolls: rec.PendingPolls,
	}
	for _, tr := range rec.History() {
		op.History = append(op.History, tr.To.String())
	}
	if rec.Signed != nil {
		op.Hash = rec.Hash.Hex()
	}
	if latency := rec.Latency(); latency > 0 {
		op.Latency = latency.String()
	}
	if receipt := rec.Receipt; receipt != nil {
		status := receipt.Status
		op.Status = &status
		op.GasUsed = receipt.GasUsed
		if receipt.BlockNumber != nil {
			op.Block = receipt.BlockNumber.Uint64()
		}
		if rec.Operation.To == nil {
			op.Contract = receipt.ContractAddress.Hex()
		}
	}
	if rec.Finality != nil {
		finalized := rec.Finality.Finalized()
		op.Finalized = &finalized
	}
	if rec.Err != nil {
		op.Error = rec.Err.Error()
	}
	return op
}
