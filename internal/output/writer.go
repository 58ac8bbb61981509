package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rumor-ml/commons.systems/bankstmt/internal/domain"
	"github.com/rumor-ml/commons.systems/bankstmt/internal/statement"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ReportName returns the report file name for company: "empresa_<company>.txt"
// with the company lowercased.
func ReportName(company string) string {
	return "empresa_" + cases.Lower(language.Und).String(company) + ".txt"
}

// LedgerName returns the JSON ledger file name for company.
func LedgerName(company string) string {
	return "empresa_" + cases.Lower(language.Und).String(company) + ".json"
}

// WriteReport writes the header line and the sorted movements of st to w,
// one per line.
func WriteReport(w io.Writer, st *statement.Statement) error {
	lines, err := Render(st)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(w, strings.Join(lines, "\n")+"\n"); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// WriteReportToFile writes the report of st into dir and returns its path.
// The directory is created when missing.
func WriteReportToFile(dir string, st *statement.Statement) (string, error) {
	if st == nil {
		return "", fmt.Errorf("statement cannot be nil")
	}
	path := filepath.Join(dir, ReportName(st.Company()))
	err := writeAtomic(path, func(w io.Writer) error {
		return WriteReport(w, st)
	})
	if err != nil {
		return "", err
	}
	return path, nil
}

// LedgerEntry is one keyed movement in the JSON ledger.
type LedgerEntry struct {
	Key      string          `json:"key"`
	Movement domain.Movement `json:"movement"`
}

// Ledger is the JSON export of a statement.
type Ledger struct {
	Company   string        `json:"company"`
	RunID     string        `json:"runId,omitempty"`
	Count     int           `json:"count"`
	Movements []LedgerEntry `json:"movements"`
}

// BuildLedger collects the sorted entries of st.
func BuildLedger(st *statement.Statement, runID string) (*Ledger, error) {
	rendered, err := Sorted(st)
	if err != nil {
		return nil, err
	}
	ledger := &Ledger{
		Company:   st.Company(),
		RunID:     runID,
		Count:     st.Len(),
		Movements: make([]LedgerEntry, len(rendered)),
	}
	for i, r := range rendered {
		ledger.Movements[i] = LedgerEntry{Key: r.Key, Movement: r.Movement}
	}
	return ledger, nil
}

// WriteLedger serializes the ledger of st to JSON with 2-space indentation.
func WriteLedger(w io.Writer, st *statement.Statement, runID string) error {
	ledger, err := BuildLedger(st, runID)
	if err != nil {
		return err
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(ledger); err != nil {
		return fmt.Errorf("failed to encode ledger as JSON: %w", err)
	}
	return nil
}

// WriteLedgerToFile writes the JSON ledger of st into dir and returns its path.
func WriteLedgerToFile(dir string, st *statement.Statement, runID string) (string, error) {
	if st == nil {
		return "", fmt.Errorf("statement cannot be nil")
	}
	path := filepath.Join(dir, LedgerName(st.Company()))
	err := writeAtomic(path, func(w io.Writer) error {
		return WriteLedger(w, st, runID)
	})
	if err != nil {
		return "", err
	}
	return path, nil
}

// LoadLedger reads a ledger previously written by WriteLedger.
func LoadLedger(path string) (*Ledger, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var ledger Ledger
	if err := json.Unmarshal(data, &ledger); err != nil {
		return nil, fmt.Errorf("failed to decode ledger JSON: %w", err)
	}
	return &ledger, nil
}

// writeAtomic renders into a temp file next to path, then renames it over path.
func writeAtomic(path string, render func(io.Writer) error) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tempFile := path + ".tmp"
	f, err := os.Create(tempFile)
	if err != nil {
		return fmt.Errorf("failed to create temp file %s: %w", tempFile, err)
	}
	defer func() {
		if err != nil {
			os.Remove(tempFile)
		}
	}()

	if err := render(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close temp file %s: %w", tempFile, err)
	}

	if err := os.Rename(tempFile, path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
