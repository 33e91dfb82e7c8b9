package appointments

import (
	"errors"
	"math"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/casedesk/lawfirm-backend/internal/auth"
	"github.com/casedesk/lawfirm-backend/pkg/models"
	"github.com/casedesk/lawfirm-backend/pkg/sanitize"
	"github.com/casedesk/lawfirm-backend/pkg/utils"
	"github.com/casedesk/lawfirm-backend/pkg/validation"
)

// lawyerProfile loads the calling lawyer; district scoping hangs off it.
func (h *Handler) lawyerProfile(c *fiber.Ctx) (*models.User, error) {
	var u models.User
	if err := h.db.First(&u, "id = ? AND role = ?", auth.MustUserID(c), models.RoleLawyer).Error; err != nil {
		return nil, fiber.ErrForbidden
	}
	return &u, nil
}

/* ========================== Assigned caseload =========================== */

type LawyerCaseItem struct {
	ID              uuid.UUID  `json:"id"`
	CaseID          *string    `json:"case_id"`
	ClientName      string     `json:"client_name"`
	CaseCategory    string     `json:"case_category"`
	CaseStage       string     `json:"case_stage,omitempty"`
	NextHearingDate *time.Time `json:"next_hearing_date,omitempty"`
	CourtName       string     `json:"court_name,omitempty"`
	AppointmentDate string     `json:"appointment_date"`
	TimeSlot        string     `json:"time_slot"`
}

// @Summary      My caseload
// @Description  Lawyer lists approved cases assigned to them in their own district
// @Tags         lawyer
// @Security     BearerAuth
// @Produce      json
// @Param        page      query int false "page"
// @Param        pageSize  query int false "pageSize"
// @Success      200  {object}  map[string]any
// @Failure      403  {object}  models.ErrorResponse
// @Router       /lawyer/cases [get]
func (h *Handler) ListAssigned(c *fiber.Ctx) error {
	lawyer, err := h.lawyerProfile(c)
	if err != nil {
		return err
	}
	page, size := parsePage(c)

	// District scoping: a case outside the lawyer's district is invisible
	// even if assignment data says otherwise.
	dbq := h.db.Model(&models.Appointment{}).
		Where("status = ? AND lawyer_id = ? AND district = ?",
			models.AppointmentApproved, lawyer.ID, lawyer.District)

	var total int64
	if err := dbq.Count(&total).Error; err != nil {
		return fiber.ErrInternalServerError
	}

	var list []models.Appointment
	if err := dbq.Order("next_hearing_date ASC NULLS LAST, created_at DESC").
		Offset((page - 1) * size).
		Limit(size).
		Find(&list).Error; err != nil {
		return fiber.ErrInternalServerError
	}

	items := make([]LawyerCaseItem, 0, len(list))
	for _, a := range list {
		items = append(items, LawyerCaseItem{
			ID:              a.ID,
			CaseID:          a.CaseID,
			ClientName:      a.ClientName,
			CaseCategory:    a.CaseCategory,
			CaseStage:       string(a.CaseStage),
			NextHearingDate: a.NextHearingDate,
			CourtName:       a.CourtName,
			AppointmentDate: a.AppointmentDate.Format("2006-01-02"),
			TimeSlot:        a.TimeSlot,
		})
	}

	return c.JSON(fiber.Map{
		"page": page, "pageSize": size, "total": total,
		"pages": int(math.Ceil(float64(total) / float64(size))),
		"items": items,
	})
}

/* =========================== District docket ============================ */

type DocketItem struct {
	ID           uuid.UUID `json:"id"`
	CaseID       *string   `json:"case_id"`
	CaseCategory string    `json:"case_category"`
	CaseStage    string    `json:"case_stage,omitempty"`
	Preview      string    `json:"preview"`
	CreatedAt    time.Time `json:"created_at"`
}

// @Summary      District docket (anonymized)
// @Description  Lawyer browses approved cases in their district handled by colleagues; descriptions are PII-redacted, client identity is withheld
// @Tags         lawyer
// @Security     BearerAuth
// @Produce      json
// @Param        page      query int false "page"
// @Param        pageSize  query int false "pageSize"
// @Success      200  {object}  map[string]any
// @Failure      403  {object}  models.ErrorResponse
// @Router       /lawyer/docket [get]
func (h *Handler) DistrictDocket(c *fiber.Ctx) error {
	lawyer, err := h.lawyerProfile(c)
	if err != nil {
		return err
	}
	page, size := parsePage(c)

	dbq := h.db.Model(&models.Appointment{}).
		Where("status = ? AND district = ? AND lawyer_id <> ?",
			models.AppointmentApproved, lawyer.District, lawyer.ID)

	var total int64
	if err := dbq.Count(&total).Error; err != nil {
		return fiber.ErrInternalServerError
	}

	var list []models.Appointment
	if err := dbq.Order("created_at DESC").
		Offset((page - 1) * size).
		Limit(size).
		Find(&list).Error; err != nil {
		return fiber.ErrInternalServerError
	}

	items := make([]DocketItem, 0, len(list))
	for _, a := range list {
		items = append(items, DocketItem{
			ID:           a.ID,
			CaseID:       a.CaseID,
			CaseCategory: a.CaseCategory,
			CaseStage:    string(a.CaseStage),
			Preview:      sanitize.Summary(sanitize.RedactPII(a.Description), 240),
			CreatedAt:    a.CreatedAt,
		})
	}

	return c.JSON(fiber.Map{
		"page": page, "pageSize": size, "total": total,
		"pages": int(math.Ceil(float64(total) / float64(size))),
		"items": items,
	})
}

/* =========================== Hearing updates ============================ */

type UpdateHearingRequest struct {
	NextHearingDate string `json:"next_hearing_date" validate:"omitempty"` // YYYY-MM-DD
	CourtName       string `json:"court_name" validate:"omitempty,max=120"`
	HearingNotes    string `json:"hearing_notes" validate:"omitempty,max=2000"`
}

// @Summary      Update hearing details
// @Description  Assigned lawyer records the next hearing date, court and notes for their own case
// @Tags         lawyer
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string                true "appointment id (uuid)"
// @Param        payload  body  UpdateHearingRequest  true "Hearing fields"
// @Success      200  {object}  models.Appointment
// @Failure      403  {object}  models.ErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /lawyer/cases/{id}/hearing [patch]
func (h *Handler) UpdateHearing(c *fiber.Ctx) error {
	lawyer, err := h.lawyerProfile(c)
	if err != nil {
		return err
	}

	var in UpdateHearingRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	var hearingDate *time.Time
	if in.NextHearingDate != "" {
		t, err := time.Parse("2006-01-02", in.NextHearingDate)
		if err != nil {
			return validation.Respond(c, map[string][]string{
				"next_hearing_date": {"Use the YYYY-MM-DD format"},
			})
		}
		hearingDate = &t
	}

	var appt models.Appointment
	err = h.db.
		Where("id = ? AND lawyer_id = ? AND district = ? AND status = ?",
			c.Params("id"), lawyer.ID, lawyer.District, models.AppointmentApproved).
		First(&appt).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.ErrNotFound
		}
		return fiber.ErrInternalServerError
	}

	updates := map[string]any{
		"court_name":    in.CourtName,
		"hearing_notes": in.HearingNotes,
	}
	if hearingDate != nil {
		updates["next_hearing_date"] = hearingDate
	}
	if err := h.db.Model(&models.Appointment{}).Where("id = ?", appt.ID).
		Updates(updates).Error; err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}

	appt.NextHearingDate = hearingDate
	appt.CourtName = in.CourtName
	appt.HearingNotes = in.HearingNotes

	utils.LogAppointmentHistory(c.Context(), h.db, appt.ID, lawyer.ID,
		"hearing_updated", appt.Status, appt.Status, in.CourtName)

	return c.JSON(appt)
}
