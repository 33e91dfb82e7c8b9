package appointments

import (
	"errors"
	"math"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/casedesk/lawfirm-backend/internal/auth"
	"github.com/casedesk/lawfirm-backend/internal/caseid"
	"github.com/casedesk/lawfirm-backend/internal/notify"
	"github.com/casedesk/lawfirm-backend/pkg/logger"
	"github.com/casedesk/lawfirm-backend/pkg/models"
	"github.com/casedesk/lawfirm-backend/pkg/sanitize"
	"github.com/casedesk/lawfirm-backend/pkg/utils"
	"github.com/casedesk/lawfirm-backend/pkg/validation"
)

/* ============================ Admin listing ============================= */

type AdminListItem struct {
	ID              uuid.UUID  `json:"id"`
	ClientName      string     `json:"client_name"`
	District        string     `json:"district"`
	CaseCategory    string     `json:"case_category"`
	Status          string     `json:"status"`
	CaseID          *string    `json:"case_id"`
	CaseStage       string     `json:"case_stage,omitempty"`
	LawyerID        *uuid.UUID `json:"lawyer_id"`
	Preview         string     `json:"preview"`
	AppointmentDate string     `json:"appointment_date"`
	TimeSlot        string     `json:"time_slot"`
}

// @Summary      List case requests (admin)
// @Description  Admin triage queue with status/category/district filters
// @Tags         admin
// @Security     BearerAuth
// @Produce      json
// @Param        page      query int    false "page"
// @Param        pageSize  query int    false "pageSize"
// @Param        status    query string false "pending|approved|rejected"
// @Param        category  query string false "case category"
// @Param        district  query string false "district"
// @Success      200  {object}  map[string]any
// @Router       /admin/appointments [get]
func (h *Handler) ListAll(c *fiber.Ctx) error {
	page, size := parsePage(c)

	dbq := h.db.Model(&models.Appointment{})
	if s := strings.TrimSpace(c.Query("status")); s != "" {
		switch models.AppointmentStatus(s) {
		case models.AppointmentPending, models.AppointmentApproved, models.AppointmentRejected:
			dbq = dbq.Where("status = ?", s)
		default:
			return fiber.NewError(fiber.StatusBadRequest, "invalid status filter")
		}
	}
	if cat := strings.TrimSpace(c.Query("category")); cat != "" {
		dbq = dbq.Where("case_category = ?", cat)
	}
	if d := strings.TrimSpace(c.Query("district")); d != "" {
		dbq = dbq.Where("district = ?", d)
	}

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

	items := make([]AdminListItem, 0, len(list))
	for _, a := range list {
		items = append(items, AdminListItem{
			ID:              a.ID,
			ClientName:      a.ClientName,
			District:        a.District,
			CaseCategory:    a.CaseCategory,
			Status:          string(a.Status),
			CaseID:          a.CaseID,
			CaseStage:       string(a.CaseStage),
			LawyerID:        a.LawyerID,
			Preview:         sanitize.Summary(a.Description, 240),
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

// @Summary      Case request detail (admin)
// @Tags         admin
// @Security     BearerAuth
// @Produce      json
// @Param        id   path string true "appointment id (uuid)"
// @Success      200  {object}  models.Appointment
// @Failure      404  {object}  models.ErrorResponse
// @Router       /admin/appointments/{id} [get]
func (h *Handler) GetDetailAdmin(c *fiber.Ctx) error {
	var appt models.Appointment
	err := h.db.
		Preload("Documents", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		First(&appt, "id = ?", c.Params("id")).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.ErrNotFound
		}
		return fiber.ErrInternalServerError
	}
	if appt.Documents == nil {
		appt.Documents = []models.AppointmentDocument{}
	}
	return c.JSON(appt)
}

/* ============================== Approve ================================= */

type ApproveRequest struct {
	LawyerID string `json:"lawyer_id" validate:"required,uuid4"`
}

// isUniqueViolation matches the Postgres unique-constraint error on
// appointments.case_id regardless of whether GORM translated it.
func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(err.Error(), "duplicate key value")
}

// @Summary      Approve a case request
// @Description  Allocates a category-scoped case id, assigns the lawyer and flips status to approved in one transaction; the client is notified by email after the write commits
// @Tags         admin
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string          true "appointment id (uuid)"
// @Param        payload  body  ApproveRequest  true "Lawyer assignment"
// @Success      200  {object}  models.Appointment
// @Failure      400  {object}  models.ValidationErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Failure      409  {object}  models.ErrorResponse "not pending"
// @Router       /admin/appointments/{id}/approve [post]
func (h *Handler) Approve(c *fiber.Ctx) error {
	actorID, _ := uuid.Parse(auth.MustUserID(c))

	apptID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid appointment id")
	}

	// A lawyer must be selected before anything is written.
	var in ApproveRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}
	lawyerID, _ := uuid.Parse(in.LawyerID)

	var lawyer models.User
	if err := h.db.First(&lawyer, "id = ? AND role = ?", lawyerID, models.RoleLawyer).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusBadRequest, "lawyer not found")
		}
		return fiber.ErrInternalServerError
	}

	var appt models.Appointment

	// The allocator reads a snapshot and writes afterwards, so two admins
	// approving in the same category can compute the same id. The unique
	// index on case_id makes the loser fail; one retry recomputes against
	// the fresh snapshot.
	approve := func() error {
		return h.db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				First(&appt, "id = ?", apptID).Error; err != nil {
				return err
			}
			if appt.Status != models.AppointmentPending {
				return fiber.NewError(fiber.StatusConflict, "request is not pending")
			}

			var existing []string
			if err := tx.Model(&models.Appointment{}).
				Where("case_id IS NOT NULL").
				Pluck("case_id", &existing).Error; err != nil {
				return err
			}

			id := caseid.Next(appt.CaseCategory, existing)
			if err := tx.Model(&models.Appointment{}).Where("id = ?", appt.ID).
				Updates(map[string]any{
					"status":    models.AppointmentApproved,
					"case_id":   id,
					"lawyer_id": lawyerID,
				}).Error; err != nil {
				return err
			}

			appt.Status = models.AppointmentApproved
			appt.CaseID = &id
			appt.LawyerID = &lawyerID
			return nil
		})
	}

	err = approve()
	if err != nil && isUniqueViolation(err) {
		err = approve()
	}
	if err != nil {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return fe
		}
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.ErrNotFound
		}
		// The status transition did not complete; surface the failure and
		// skip every dependent side effect (no notification, no audit row).
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}

	utils.LogAppointmentHistory(c.Context(), h.db, appt.ID, actorID,
		"approved", models.AppointmentPending, models.AppointmentApproved,
		"case id "+*appt.CaseID+", lawyer "+lawyer.Name)

	// Strictly after the approval write: fire-and-forget, failures only logged.
	if err := h.mailer.SendApprovalNotice(notify.ApprovalNotice{
		To:               appt.ClientEmail,
		ClientName:       appt.ClientName,
		AppointmentDate:  appt.AppointmentDate.Format("02 Jan 2006"),
		TimeSlot:         appt.TimeSlot,
		ConsultationType: string(appt.ConsultationType),
		LawyerName:       lawyer.Name,
		CaseID:           *appt.CaseID,
	}); err != nil {
		logger.L().Error().Err(err).
			Str("appointment_id", appt.ID.String()).
			Msg("approval notice failed")
	}

	return c.JSON(appt)
}

/* =============================== Reject ================================= */

type RejectRequest struct {
	Reason string `json:"reason" validate:"omitempty,max=500"`
}

// @Summary      Reject a case request
// @Tags         admin
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string         true  "appointment id (uuid)"
// @Param        payload  body  RejectRequest  false "Optional reason"
// @Success      200  {object}  models.Appointment
// @Failure      404  {object}  models.ErrorResponse
// @Failure      409  {object}  models.ErrorResponse "not pending"
// @Router       /admin/appointments/{id}/reject [post]
func (h *Handler) Reject(c *fiber.Ctx) error {
	actorID, _ := uuid.Parse(auth.MustUserID(c))

	apptID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid appointment id")
	}

	var in RejectRequest
	_ = c.BodyParser(&in) // body is optional
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	var appt models.Appointment
	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&appt, "id = ?", apptID).Error; err != nil {
			return err
		}
		if appt.Status != models.AppointmentPending {
			return fiber.NewError(fiber.StatusConflict, "request is not pending")
		}
		if err := tx.Model(&models.Appointment{}).Where("id = ?", appt.ID).
			Update("status", models.AppointmentRejected).Error; err != nil {
			return err
		}
		appt.Status = models.AppointmentRejected
		return nil
	})
	if err != nil {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return fe
		}
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.ErrNotFound
		}
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}

	utils.LogAppointmentHistory(c.Context(), h.db, appt.ID, actorID,
		"rejected", models.AppointmentPending, models.AppointmentRejected, in.Reason)

	return c.JSON(appt)
}

/* ============================ Case stage ================================ */

type UpdateStageRequest struct {
	CaseStage string `json:"case_stage" validate:"required,oneof='Stage 1' 'Stage 2' 'Stage 3' 'Final Verdict'"`
}

// @Summary      Update litigation stage
// @Description  Admin moves an approved case through the fixed stage progression
// @Tags         admin
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string              true "appointment id (uuid)"
// @Param        payload  body  UpdateStageRequest  true "New stage"
// @Success      200  {object}  models.Appointment
// @Failure      400  {object}  models.ValidationErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Failure      409  {object}  models.ErrorResponse "not approved"
// @Router       /admin/appointments/{id}/stage [patch]
func (h *Handler) UpdateStage(c *fiber.Ctx) error {
	actorID, _ := uuid.Parse(auth.MustUserID(c))

	var in UpdateStageRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	var appt models.Appointment
	if err := h.db.First(&appt, "id = ?", c.Params("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.ErrNotFound
		}
		return fiber.ErrInternalServerError
	}
	if appt.Status != models.AppointmentApproved {
		return fiber.NewError(fiber.StatusConflict, "litigation stages apply to approved cases only")
	}

	old := appt.CaseStage
	if err := h.db.Model(&models.Appointment{}).Where("id = ?", appt.ID).
		Update("case_stage", in.CaseStage).Error; err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	appt.CaseStage = models.CaseStage(in.CaseStage)

	utils.LogAppointmentHistory(c.Context(), h.db, appt.ID, actorID,
		"stage_changed", appt.Status, appt.Status,
		string(old)+" -> "+in.CaseStage)

	return c.JSON(appt)
}
