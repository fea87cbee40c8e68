package scenario

import (
	"errors"
	"time"

	"github.com/0xmhha/txverify/internal/config"
	"github.com/0xmhha/txverify/internal/errs"
	"github.com/0xmhha/txverify/internal/lifecycle"
)

// CheckStatus is the outcome of one named assertion
type CheckStatus int

const (
	CheckPassed CheckStatus = iota
	CheckFailed
	CheckSkipped
)

func (s CheckStatus) String() string {
	switch s {
	case CheckPassed:
		return "PASS"
	case CheckFailed:
		return "FAIL"
	case CheckSkipped:
		return "SKIP"
	default:
		return "UNKNOWN"
	}
}

// Check is one named assertion made by a scenario
type Check struct {
	Name   string
	Status CheckStatus
	Detail string
}

// Result is the outcome of one scenario
type Result struct {
	Scenario config.Scenario

	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration

	Checks  []Check
	Records []*lifecycle.Record

	// Err is the error that ended the scenario, nil when it passed
	Err error
}

// NewResult creates a result for scenario s
func NewResult(s config.Scenario) *Result {
	return &Result{
		Scenario:  s,
		StartTime: time.Now(),
		Checks:    make([]Check, 0),
		Records:   make([]*lifecycle.Record, 0),
	}
}

// Passed reports whether the scenario ran to the end without error
func (r *Result) Passed() bool {
	return r.Err == nil
}

// Kind returns the error kind that ended the scenario
func (r *Result) Kind() errs.Kind {
	return errs.KindOf(r.Err)
}

// Check records the outcome of an assertion and returns err unchanged
func (r *Result) Check(name string, err error) error {
	c := Check{Name: name, Status: CheckPassed}
	if err != nil {
		c.Status = CheckFailed
		c.Detail = err.Error()
	}
	r.Checks = append(r.Checks, c)
	return err
}

// Skip records an assertion that did not apply
func (r *Result) Skip(name, reason string) {
	r.Checks = append(r.Checks, Check{Name: name, Status: CheckSkipped, Detail: reason})
}

// Record keeps the lifecycle trace of an operation
func (r *Result) Record(rec *lifecycle.Record) {
	if rec != nil {
		r.Records = append(r.Records, rec)
	}
}

// Failed returns the checks that failed
func (r *Result) Failed() []Check {
	var failed []Check
	for _, c := range r.Checks {
		if c.Status == CheckFailed {
			failed = append(failed, c)
		}
	}
	return failed
}

func (r *Result) finish(err error) {
	r.EndTime = time.Now()
	r.Duration = r.EndTime.Sub(r.StartTime)
	r.Err = err
}

// Summary aggregates the results of a run
type Summary struct {
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration

	Preflight *PreflightInfo
	Results   []*Result
}

// NewSummary creates an empty summary
func NewSummary() *Summary {
	return &Summary{
		StartTime: time.Now(),
		Results:   make([]*Result, 0),
	}
}

// AddResult appends a scenario result
func (s *Summary) AddResult(r *Result) {
	s.Results = append(s.Results, r)
}

// Finalize sets the end time and duration
func (s *Summary) Finalize() {
	s.EndTime = time.Now()
	s.Duration = s.EndTime.Sub(s.StartTime)
}

// Success returns true if every scenario passed
func (s *Summary) Success() bool {
	return s.FailedCount() == 0
}

// PassedCount returns the number of passing scenarios
func (s *Summary) PassedCount() int {
	n := 0
	for _, r := range s.Results {
		if r.Passed() {
			n++
		}
	}
	return n
}

// FailedCount returns the number of failing scenarios
func (s *Summary) FailedCount() int {
	return len(s.Results) - s.PassedCount()
}

// Err joins the errors of every failed scenario
func (s *Summary) Err() error {
	var failed []error
	for _, r := range s.Results {
		if r.Err != nil {
			failed = append(failed, r.Err)
		}
	}
	return errors.Join(failed...)
}
