package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/dgallion1/poledger/internal/ledger"
)

// WriteCSV writes records with the consolidated headers. Truncated figures
// are written as the sentinel text.
func WriteCSV(w io.Writer, records []ledger.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Headers); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for i, r := range records {
		row := []string{
			r.SourceFile, strconv.Itoa(r.Page), r.PONumber, r.POType, r.VendorID, r.VendorName,
			r.BuyerCode, r.PODate, r.LineItem, r.Description, r.AccountCode,
			r.POLineAmount.StringFixed(2), r.StillToInvoice.String(), r.InvoicedPercent.String(),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row %d: %w", i+1, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
