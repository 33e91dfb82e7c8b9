package appointments

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/casedesk/lawfirm-backend/internal/auth"
	"github.com/casedesk/lawfirm-backend/internal/notify"
	"github.com/casedesk/lawfirm-backend/internal/storage"
	"github.com/casedesk/lawfirm-backend/pkg/models"
	"github.com/casedesk/lawfirm-backend/pkg/validation"
)

// ===== DTOs =====

type CreateAppointmentRequest struct {
	ClientName       string `json:"client_name" validate:"required,min=2,max=80"`
	ClientEmail      string `json:"client_email" validate:"required,email,max=120"`
	ClientPhone      string `json:"client_phone" validate:"omitempty,max=20"`
	District         string `json:"district" validate:"required,district"`
	CaseCategory     string `json:"case_category" validate:"required,max=40"`
	Description      string `json:"description" validate:"max=2000"`
	AppointmentDate  string `json:"appointment_date" validate:"required"` // YYYY-MM-DD
	TimeSlot         string `json:"time_slot" validate:"required,timeslot"`
	ConsultationType string `json:"consultation_type" validate:"required,oneof=In-Person Video Phone"`
}

type AppointmentListItem struct {
	ID              uuid.UUID `json:"id"`
	CaseCategory    string    `json:"case_category"`
	District        string    `json:"district"`
	Status          string    `json:"status"`
	CaseID          *string   `json:"case_id"`
	CaseStage       string    `json:"case_stage,omitempty"`
	AppointmentDate time.Time `json:"appointment_date"`
	TimeSlot        string    `json:"time_slot"`
	CreatedAt       time.Time `json:"created_at"`
	Documents       int64     `json:"documents"`
}

type Handler struct {
	db     *gorm.DB
	sb     *storage.Supabase
	mailer *notify.Mailer
}

func NewHandler(db *gorm.DB, sb *storage.Supabase, mailer *notify.Mailer) *Handler {
	return &Handler{db: db, sb: sb, mailer: mailer}
}

func parsePage(c *fiber.Ctx) (page, size int) {
	page, _ = strconv.Atoi(c.Query("page", "1"))
	size, _ = strconv.Atoi(c.Query("pageSize", "10"))
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 50 {
		size = 10
	}
	return
}

// Create Appointment godoc
// @Summary      Submit case request
// @Description  Client submits a new appointment/case intake request
// @Tags         appointments
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body  CreateAppointmentRequest  true  "Intake payload"
// @Success      201  {object}  map[string]string  "id"
// @Failure      400  {object}  models.ValidationErrorResponse
// @Failure      401  {object}  models.ErrorResponse
// @Router       /appointments [post]
func (h *Handler) Create(c *fiber.Ctx) error {
	var in CreateAppointmentRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	day, err := time.Parse("2006-01-02", in.AppointmentDate)
	if err != nil {
		return validation.Respond(c, map[string][]string{
			"appointment_date": {"Use the YYYY-MM-DD format"},
		})
	}

	clientUUID, _ := uuid.Parse(auth.MustUserID(c))
	appt := models.Appointment{
		ClientID:         clientUUID,
		ClientName:       strings.TrimSpace(in.ClientName),
		ClientEmail:      strings.ToLower(strings.TrimSpace(in.ClientEmail)),
		ClientPhone:      strings.TrimSpace(in.ClientPhone),
		District:         strings.TrimSpace(in.District),
		CaseCategory:     strings.TrimSpace(in.CaseCategory),
		Description:      strings.TrimSpace(in.Description),
		AppointmentDate:  day,
		TimeSlot:         strings.TrimSpace(in.TimeSlot),
		ConsultationType: models.ConsultationType(in.ConsultationType),
		Status:           models.AppointmentPending,
	}
	if err := h.db.Create(&appt).Error; err != nil {
		return fiber.ErrInternalServerError
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": appt.ID})
}

// List My Appointments godoc
// @Summary      List my case requests
// @Description  Client lists their own requests (paginated, newest first)
// @Tags         appointments
// @Security     BearerAuth
// @Produce      json
// @Param        page      query int false "page"
// @Param        pageSize  query int false "pageSize"
// @Success      200  {object}  map[string]any
// @Failure      401  {object}  models.ErrorResponse
// @Router       /appointments/mine [get]
func (h *Handler) ListMine(c *fiber.Ctx) error {
	clientID := auth.MustUserID(c)
	page, size := parsePage(c)

	var total int64
	if err := h.db.Model(&models.Appointment{}).
		Where("client_id = ?", clientID).
		Count(&total).Error; err != nil {
		return fiber.ErrInternalServerError
	}

	rows := make([]AppointmentListItem, 0, size)
	if err := h.db.
		Table("appointments").
		Select(`appointments.id, appointments.case_category, appointments.district,
	        appointments.status, appointments.case_id, appointments.case_stage,
	        appointments.appointment_date, appointments.time_slot, appointments.created_at,
	        COUNT(appointment_documents.id) AS documents`).
		Joins("LEFT JOIN appointment_documents ON appointment_documents.appointment_id = appointments.id").
		Where("appointments.client_id = ?", clientID).
		Group("appointments.id").
		Order("appointments.created_at DESC").
		Offset((page - 1) * size).Limit(size).
		Scan(&rows).Error; err != nil {
		return fiber.ErrInternalServerError
	}

	return c.JSON(fiber.Map{
		"page": page, "pageSize": size, "total": total,
		"pages": int(math.Ceil(float64(total) / float64(size))),
		"items": rows,
	})
}

// Get appointment detail for owner
// @Summary      Case request detail (owner)
// @Description  Client gets their request detail with documents
// @Tags         appointments
// @Security     BearerAuth
// @Produce      json
// @Param        id   path string true "appointment id (uuid)"
// @Success      200  {object}  models.Appointment
// @Failure      401  {object}  models.ErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /appointments/{id} [get]
func (h *Handler) GetDetailOwner(c *fiber.Ctx) error {
	clientID := auth.MustUserID(c)
	id := c.Params("id")

	var appt models.Appointment
	err := h.db.
		Where("id = ? AND client_id = ?", id, clientID).
		Preload("Documents", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		First(&appt).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return fiber.ErrNotFound
		}
		return fiber.ErrInternalServerError
	}

	if appt.Documents == nil {
		appt.Documents = []models.AppointmentDocument{}
	}
	return c.JSON(appt)
}
