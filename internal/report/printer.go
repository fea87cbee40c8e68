package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
)

// PrintTable writes the scenario results and their operations as tables
func PrintTable(w io.Writer, r *Report) {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Endpoint: %s  Chain ID: %s\n", r.Endpoint, r.ChainID)
	if p := r.Preflight; p != nil {
		fmt.Fprintf(w, "Head: %d  Finalized: %d\n", p.Head, p.Finalized)
	}
	fmt.Fprintln(w)

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Scenario", "Result", "Checks", "Operations", "Duration", "Error"})
	table.SetBorder(true)
	table.SetAutoWrapText(false)

	for _, s := range r.Scenarios {
		result := "PASS"
		if !s.Passed {
			result = "FAIL"
		}
		table.Append([]string{
			s.Name,
			result,
			checkCounts(s.Checks),
			fmt.Sprintf("%d", len(s.Operations)),
			s.Duration,
			abbreviate(s.Error, 72),
		})
	}

	table.SetFooter([]string{
		"TOTAL",
		fmt.Sprintf("%d/%d", r.Passed, r.Passed+r.Failed),
		"",
		"",
		r.Duration,
		"",
	})
	table.Render()

	if n := countOperations(r); n > 0 {
		fmt.Fprintln(w)
		printOperations(w, r)
	}

	fmt.Fprintln(w)
	if r.Success() {
		fmt.Fprintf(w, "✅ All %d scenarios passed\n", r.Passed)
	} else {
		fmt.Fprintf(w, "❌ %d of %d scenarios failed\n", r.Failed, r.Passed+r.Failed)
	}
}

func printOperations(w io.Writer, r *Report) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Scenario", "Kind", "Tx", "Nonce", "State", "Polls", "Latency", "Block", "Gas"})
	table.SetBorder(true)
	table.SetAutoWrapText(false)

	for _, s := range r.Scenarios {
		for _, op := range s.Operations {
			block, gas := "-", "-"
			if op.Block > 0 {
				block = fmt.Sprintf("%d", op.Block)
				gas = fmt.Sprintf("%d", op.GasUsed)
			}
			latency := op.Latency
			if latency == "" {
				latency = "-"
			}
			table.Append([]string{
				s.Name,
				op.Kind,
				shortHash(op.Hash),
				fmt.Sprintf("%d", op.Nonce),
				op.State,
				fmt.Sprintf("%d", op.PendingPolls),
				latency,
				block,
				gas,
			})
		}
	}
	table.Render()
}

func checkCounts(checks []CheckReport) string {
	var passed, failed, skipped int
	for _, c := range checks {
		switch c.Status {
		case "PASS":
			passed++
		case "FAIL":
			failed++
		default:
			skipped++
		}
	}
	s := fmt.Sprintf("%d passed", passed)
	if failed > 0 {
		s += fmt.Sprintf(", %d failed", failed)
	}
	if skipped > 0 {
		s += fmt.Sprintf(", %d skipped", skipped)
	}
	return s
}

func countOperations(r *Report) int {
	n := 0
	for _, s := range r.Scenarios {
		n += len(s.Operations)
	}
	return n
}

func shortHash(h string) string {
	if len(h) <= 14 {
		if h == "" {
			return "-"
		}
		return h
	}
	return h[:8] + "…" + h[len(h)-4:]
}

func abbreviate(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
