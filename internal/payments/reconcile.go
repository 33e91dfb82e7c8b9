package payments

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/casedesk/lawfirm-backend/pkg/models"
)

/* ============================ Input helpers ============================= */

// ParseFee coerces free-text fee input to a decimal amount. Non-numeric
// input becomes 0; negative values are returned as-is so the caller can
// reject them before any write.
func ParseFee(s string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// BuildDescriptor computes the mode-dependent transaction descriptor. The
// reconciler persists whatever string it is given; the formatting rules
// live here, with the caller.
//
//	Online -> the transaction reference as typed
//	Cheque -> "<bank> - <chequeNumber>"
//	Cash   -> ""
func BuildDescriptor(mode models.PaymentMode, txnRef, bankName, chequeNumber string) string {
	switch mode {
	case models.PayModeOnline:
		return strings.TrimSpace(txnRef)
	case models.PayModeCheque:
		return strings.TrimSpace(bankName) + " - " + strings.TrimSpace(chequeNumber)
	default:
		return ""
	}
}

// FallbackCaseID returns the ledger case-id snapshot for an appointment
// that has no allocated case id yet: BK-<last 6 chars of id, uppercased>.
func FallbackCaseID(appointmentID uuid.UUID, caseID *string) string {
	if caseID != nil && *caseID != "" {
		return *caseID
	}
	s := appointmentID.String()
	return "BK-" + strings.ToUpper(s[len(s)-6:])
}

/* ============================= Reconciler =============================== */

// Reconciler records payment events: it maintains the appointment's fee
// snapshot (overwrite, not accumulate) and appends an immutable ledger
// entry. Both writes happen in one transaction, so the appointment can
// never show updated fees without a matching ledger row.
type Reconciler struct{ db *gorm.DB }

func NewReconciler(db *gorm.DB) *Reconciler { return &Reconciler{db: db} }

// RecordInput is a validated payment entry. Fees are non-negative; the
// descriptor is already built by the caller (see BuildDescriptor).
type RecordInput struct {
	AppointmentID   uuid.UUID
	ConsultationFee decimal.Decimal
	DueFee          decimal.Decimal
	Mode            models.PaymentMode
	Descriptor      string
}

// Record applies one payment event. Returns the refreshed appointment and
// the new ledger entry. Storage errors are returned untouched so callers
// can surface them verbatim; no retry is attempted here.
func (r *Reconciler) Record(ctx context.Context, in RecordInput) (*models.Appointment, *models.Payment, error) {
	var (
		appt models.Appointment
		pay  models.Payment
	)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&appt, "id = ?", in.AppointmentID).Error; err != nil {
			return err
		}

		now := time.Now()

		// (1) Overwrite the appointment's fee snapshot with the latest
		// cumulative figures. The ledger keeps the history.
		if err := tx.Model(&models.Appointment{}).Where("id = ?", appt.ID).
			Updates(map[string]any{
				"consultation_fee": in.ConsultationFee,
				"case_fee":         in.DueFee,
				"payment_mode":     in.Mode,
				"transaction_id":   in.Descriptor,
				"payment_date":     now,
			}).Error; err != nil {
			return err
		}

		// (2) Append the ledger entry. Amount is the sum of the two fee
		// fields as of this entry, a point-in-time snapshot, not a delta.
		pay = models.Payment{
			AppointmentID:   appt.ID,
			CaseID:          FallbackCaseID(appt.ID, appt.CaseID),
			ClientName:      appt.ClientName,
			ConsultationFee: in.ConsultationFee,
			DueFee:          in.DueFee,
			Amount:          in.ConsultationFee.Add(in.DueFee),
			PaymentMode:     in.Mode,
			TransactionID:   in.Descriptor,
			PaymentDate:     now,
		}
		if err := tx.Create(&pay).Error; err != nil {
			return err
		}

		appt.ConsultationFee = in.ConsultationFee
		appt.CaseFee = in.DueFee
		appt.PaymentMode = in.Mode
		appt.TransactionID = in.Descriptor
		appt.PaymentDate = &now
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return &appt, &pay, nil
}
