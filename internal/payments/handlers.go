package payments

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/casedesk/lawfirm-backend/internal/auth"
	"github.com/casedesk/lawfirm-backend/pkg/models"
	"github.com/casedesk/lawfirm-backend/pkg/utils"
	"github.com/casedesk/lawfirm-backend/pkg/validation"
)

type Handler struct {
	db  *gorm.DB
	rec *Reconciler
	loc *time.Location
}

func NewHandler(db *gorm.DB) *Handler {
	// Ledger windows and export timestamps use the firm's timezone.
	loc := time.Local
	if tz := os.Getenv("REPORT_TZ"); tz != "" {
		if l, err := time.LoadLocation(tz); err == nil {
			loc = l
		}
	}
	return &Handler{db: db, rec: NewReconciler(db), loc: loc}
}

/* ============================ Record payment ============================ */

// Fees arrive as text (the admin types them into a form); they are coerced
// with ParseFee, so non-numeric input counts as 0. Negative input is a
// validation failure rejected before any write.
type RecordPaymentRequest struct {
	ConsultationFee string `json:"consultation_fee"`
	DueFee          string `json:"due_fee"`
	PaymentMode     string `json:"payment_mode" validate:"required,oneof=Cash Online Cheque"`
	TransactionRef  string `json:"transaction_ref" validate:"omitempty,max=120"`
	BankName        string `json:"bank_name" validate:"omitempty,max=80"`
	ChequeNumber    string `json:"cheque_number" validate:"omitempty,max=40"`
}

// @Summary      Record a fee payment
// @Description  Admin records consultation/due fees against a case; the appointment snapshot is overwritten and a ledger entry is appended atomically
// @Tags         payments
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string                true  "appointment id (uuid)"
// @Param        payload  body  RecordPaymentRequest  true  "Payment payload"
// @Success      201  {object}  models.Payment
// @Failure      400  {object}  models.ValidationErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /admin/appointments/{id}/payments [post]
func (h *Handler) Record(c *fiber.Ctx) error {
	actorID, _ := uuid.Parse(auth.MustUserID(c))

	apptID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid appointment id")
	}

	var in RecordPaymentRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	consult := ParseFee(in.ConsultationFee)
	due := ParseFee(in.DueFee)
	verrs := map[string][]string{}
	if consult.IsNegative() {
		verrs["consultation_fee"] = append(verrs["consultation_fee"], "Must be greater than or equal to 0")
	}
	if due.IsNegative() {
		verrs["due_fee"] = append(verrs["due_fee"], "Must be greater than or equal to 0")
	}
	mode := models.PaymentMode(in.PaymentMode)
	if mode == models.PayModeCheque && (strings.TrimSpace(in.BankName) == "" || strings.TrimSpace(in.ChequeNumber) == "") {
		verrs["bank_name"] = append(verrs["bank_name"], "Bank and cheque number are required for cheque payments")
	}
	if mode == models.PayModeOnline && strings.TrimSpace(in.TransactionRef) == "" {
		verrs["transaction_ref"] = append(verrs["transaction_ref"], "Transaction reference is required for online payments")
	}
	if len(verrs) > 0 {
		return validation.Respond(c, verrs)
	}

	appt, pay, err := h.rec.Record(c.Context(), RecordInput{
		AppointmentID:   apptID,
		ConsultationFee: consult,
		DueFee:          due,
		Mode:            mode,
		Descriptor:      BuildDescriptor(mode, in.TransactionRef, in.BankName, in.ChequeNumber),
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.ErrNotFound
		}
		// Storage errors are surfaced verbatim; the admin retries manually.
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}

	utils.LogAppointmentHistory(c.Context(), h.db, appt.ID, actorID,
		"payment_recorded", appt.Status, appt.Status,
		"amount "+pay.Amount.StringFixed(2)+" via "+string(pay.PaymentMode))

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"payment":     pay,
		"appointment": appt,
	})
}

/* ============================ Ledger views ============================== */

// parseFilter reads ?filter= and ?date= with the defaults the UI expects.
func parseFilter(c *fiber.Ctx) (FilterMode, string, error) {
	mode := FilterMode(strings.ToLower(c.Query("filter", string(FilterAll))))
	if !ValidFilter(mode) {
		return "", "", fiber.NewError(fiber.StatusBadRequest, "invalid filter (use all|today|weekly|monthly|custom)")
	}
	date := c.Query("date")
	if mode == FilterCustom {
		if _, err := time.Parse("2006-01-02", date); err != nil {
			return "", "", fiber.NewError(fiber.StatusBadRequest, "custom filter needs date=YYYY-MM-DD")
		}
	}
	return mode, date, nil
}

func (h *Handler) loadLedger(c *fiber.Ctx) ([]models.Payment, error) {
	mode, date, err := parseFilter(c)
	if err != nil {
		return nil, err
	}

	var rows []models.Payment
	if err := h.db.Order("payment_date DESC").Find(&rows).Error; err != nil {
		return nil, fiber.ErrInternalServerError
	}
	return Filter(rows, mode, date, time.Now(), h.loc), nil
}

// @Summary      Payment ledger
// @Description  Admin views the filtered payment ledger with a running total
// @Tags         payments
// @Security     BearerAuth
// @Produce      json
// @Param        filter  query string false "all|today|weekly|monthly|custom"
// @Param        date    query string false "YYYY-MM-DD (custom filter)"
// @Success      200  {object}  map[string]any
// @Failure      400  {object}  models.ErrorResponse
// @Router       /admin/payments [get]
func (h *Handler) List(c *fiber.Ctx) error {
	rows, err := h.loadLedger(c)
	if err != nil {
		return err
	}

	total := decimal.Zero
	for _, p := range rows {
		total = total.Add(p.Amount)
	}

	if rows == nil {
		rows = []models.Payment{}
	}
	return c.JSON(fiber.Map{
		"count": len(rows),
		"total": total,
		"items": rows,
	})
}

// @Summary      Export payment ledger as CSV
// @Description  Refused (404) when the filtered set is empty; no file is produced
// @Tags         payments
// @Security     BearerAuth
// @Produce      text/csv
// @Param        filter  query string false "all|today|weekly|monthly|custom"
// @Param        date    query string false "YYYY-MM-DD (custom filter)"
// @Success      200  {string}  string "CSV payload"
// @Failure      400  {object}  models.ErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /admin/payments/export [get]
func (h *Handler) Export(c *fiber.Ctx) error {
	rows, err := h.loadLedger(c)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, rows, h.loc); err != nil {
		if errors.Is(err, ErrNothingToExport) {
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		}
		return fiber.ErrInternalServerError
	}

	filename := "payments_" + time.Now().In(h.loc).Format("20060102") + ".csv"
	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	return c.Send(buf.Bytes())
}
