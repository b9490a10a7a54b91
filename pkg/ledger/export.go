package ledger

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
)

var exportHeader = []string{"anomaly_id", "stage", "rule", "source", "row_index", "description"}

// WriteCSV streams the ledger as the six-column export file, one line
// per anomaly in identifier order.
func (l *Ledger) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return fmt.Errorf("failed to write export header: %w", err)
	}
	for _, a := range l.anomalies {
		record := []string{
			strconv.Itoa(a.ID),
			a.StageName,
			a.Rule,
			string(a.Source),
			strconv.Itoa(a.RowIndex),
			a.Description,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write anomaly %d: %w", a.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportFile writes the CSV export to disk.
func (l *Ledger) ExportFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	if err := l.WriteCSV(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
