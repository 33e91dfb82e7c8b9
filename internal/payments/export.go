package payments

import (
	"encoding/csv"
	"errors"
	"io"
	"time"

	"github.com/casedesk/lawfirm-backend/pkg/models"
)

// ErrNothingToExport is returned for an empty filtered set: the export is
// refused rather than producing an empty file.
var ErrNothingToExport = errors.New("no payment records for the selected period")

var csvHeader = []string{
	"Case ID", "Client Name", "Consultation Fee", "Due Fee",
	"Total Amount", "Payment Mode", "Payment Date", "Transaction Details",
}

// WriteCSV serializes ledger entries in the fixed column order. Fields
// containing commas or quotes come out properly escaped (encoding/csv
// quotes them), so values round-trip through any CSV reader.
func WriteCSV(w io.Writer, rows []models.Payment, loc *time.Location) error {
	if len(rows) == 0 {
		return ErrNothingToExport
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, p := range rows {
		txn := p.TransactionID
		if txn == "" {
			txn = "N/A"
		}
		rec := []string{
			p.CaseID,
			p.ClientName,
			p.ConsultationFee.StringFixed(2),
			p.DueFee.StringFixed(2),
			p.Amount.StringFixed(2),
			string(p.PaymentMode),
			p.PaymentDate.In(loc).Format("02 Jan 2006, 03:04 PM"),
			txn,
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
