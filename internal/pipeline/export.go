package pipeline

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pharmacheck/inventory/backend-go/internal/domain"
)

var ledgerHeader = []string{"name", "code", "on_hand", "received", "dispensed", "final_quantity", "is_new"}

// WriteLedgerCSV writes the ledger as UTF-8 CSV with a byte order mark so that
// spreadsheet tools detect the encoding. Identical ledgers produce identical bytes.
func WriteLedgerCSV(w io.Writer, ledger *domain.StockLedger) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString("\ufeff"); err != nil {
		return err
	}

	writer := csv.NewWriter(bw)
	if err := writer.Write(ledgerHeader); err != nil {
		return err
	}
	for _, e := range ledger.Entries {
		record := []string{
			e.Name,
			e.Code,
			formatQuantity(e.OnHand),
			formatQuantity(e.Received),
			formatQuantity(e.Dispensed),
			formatQuantity(e.FinalQuantity),
			strconv.FormatBool(e.IsNew),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return err
	}
	return bw.Flush()
}

// ExportLedger writes the ledger to <dir>/<category>/<timestamp>.csv and returns the path.
func ExportLedger(dir string, ledger *domain.StockLedger, at time.Time) (string, error) {
	outDir := filepath.Join(dir, string(ledger.Category))
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	path := filepath.Join(outDir, fmt.Sprintf("%s.csv", at.Format("20060102_150405")))
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", tmp, err)
	}
	if err := WriteLedgerCSV(f, ledger); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("failed to write ledger CSV: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return "", err
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("failed to move ledger CSV into place: %w", err)
	}
	return path, nil
}

func formatQuantity(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
