package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ExportFormat represents the export format
type ExportFormat string

const (
	FormatJSON ExportFormat = "json"
	FormatCSV  ExportFormat = "csv"
)

// Exporter writes reports into a directory
type Exporter struct {
	outputDir string
	now       func() time.Time
}

// NewExporter creates a new Exporter
func NewExporter(outputDir string) *Exporter {
	return &Exporter{
		outputDir: outputDir,
		now:       time.Now,
	}
}

// Export writes the report in the given format and returns the file name
func (e *Exporter) Export(report *Report, format ExportFormat) (string, error) {
	if err := os.MkdirAll(e.outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	timestamp := e.now().Format("20060102_150405")

	switch format {
	case FormatJSON:
		filename := filepath.Join(e.outputDir, fmt.Sprintf("report_%s.json", timestamp))
		return filename, WriteJSON(report, filename)
	case FormatCSV:
		filename := filepath.Join(e.outputDir, fmt.Sprintf("operations_%s.csv", timestamp))
		return filename, WriteCSV(report, filename)
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
}

// WriteJSON writes the report as indented JSON
func WriteJSON(report *Report, filename string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// WriteCSV writes one row per operation
func WriteCSV(report *Report, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	header := []string{"Scenario", "Passed", "Kind", "Hash", "Nonce", "State", "PendingPolls", "Latency", "Block", "Status", "GasUsed", "Error"}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, s := range report.Scenarios {
		for _, op := range s.Operations {
			status := ""
			if op.Status != nil {
				status = fmt.Sprintf("%d", *op.Status)
			}
			record := []string{
				s.Name,
				fmt.Sprintf("%t", s.Passed),
				op.Kind,
				op.Hash,
				fmt.Sprintf("%d", op.Nonce),
				op.State,
				fmt.Sprintf("%d", op.PendingPolls),
				op.Latency,
				fmt.Sprintf("%d", op.Block),
				status,
				fmt.Sprintf("%d", op.GasUsed),
				op.Error,
			}
			if err := writer.Write(record); err != nil {
				return fmt.Errorf("failed to write record: %w", err)
			}
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush csv: %w", err)
	}
	return nil
}
