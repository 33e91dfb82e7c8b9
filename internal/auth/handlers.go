package auth

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/casedesk/lawfirm-backend/pkg/logger"
	"github.com/casedesk/lawfirm-backend/pkg/models"
	"github.com/casedesk/lawfirm-backend/pkg/validation"
)

/* ================================ DTOs ================================= */

// Request body for /signup (clients only; lawyers are created by an admin)
type SignupRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=80"`
	Email    string `json:"email" validate:"required,email,max=120"`
	Phone    string `json:"phone" validate:"omitempty,max=20"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

// Request body for /login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email,max=120"`
	Password string `json:"password" validate:"required"`
}

// Request body for POST /admin/lawyers
type CreateLawyerRequest struct {
	Name           string `json:"name" validate:"required,min=2,max=80"`
	Email          string `json:"email" validate:"required,email,max=120"`
	Password       string `json:"password" validate:"required,min=6,max=72"`
	District       string `json:"district" validate:"required,district"`
	BarNumber      string `json:"bar_number" validate:"required,barnum"`
	Specialization string `json:"specialization" validate:"omitempty,max=80"`
}

// Standard auth response
type AuthResponse struct {
	Token string `json:"token"`
	Role  string `json:"role"`
}

// Profile response for /me
type UserProfileResponse struct {
	ID             uuid.UUID   `json:"id"`
	Email          string      `json:"email"`
	Role           models.Role `json:"role"`
	Name           string      `json:"name"`
	Phone          string      `json:"phone"`
	District       string      `json:"district,omitempty"`
	BarNumber      string      `json:"bar_number,omitempty"`
	Specialization string      `json:"specialization,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
}

/* ============================== Handler ================================= */

type Handler struct{ db *gorm.DB }

func NewHandler(db *gorm.DB) *Handler { return &Handler{db: db} }

/* =============================== Signup ================================= */

// @Summary      Sign up
// @Description  Register a new client account
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body  SignupRequest  true  "Signup payload"
// @Success      201      {object}  AuthResponse
// @Failure      400      {object}  models.ValidationErrorResponse
// @Failure      409      {object}  models.ErrorResponse  "email already exists"
// @Router       /signup [post]
func (h *Handler) Signup(c *fiber.Ctx) error {
	var in SignupRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.ErrBadRequest
	}

	// Normalize email
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))

	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	hash, _ := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)

	u := models.User{
		Email:        in.Email,
		PasswordHash: string(hash),
		Role:         models.RoleClient,
		Name:         in.Name,
		Phone:        in.Phone,
	}
	if err := h.db.Create(&u).Error; err != nil {
		return fiber.NewError(fiber.StatusConflict, "email already exists")
	}

	token, _ := IssueToken(u.ID.String(), string(u.Role))
	return c.Status(fiber.StatusCreated).JSON(AuthResponse{Token: token, Role: string(u.Role)})
}

/* ================================ Login ================================= */

// @Summary      Login
// @Description  Authenticate and receive a JWT
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body  LoginRequest  true  "Login payload"
// @Success      200      {object}  AuthResponse
// @Failure      400      {object}  models.ValidationErrorResponse
// @Failure      401      {object}  models.ErrorResponse
// @Router       /login [post]
func (h *Handler) Login(c *fiber.Ctx) error {
	var in LoginRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.ErrBadRequest
	}

	in.Email = strings.ToLower(strings.TrimSpace(in.Email))

	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	var u models.User
	if err := h.db.Where("email = ?", in.Email).First(&u).Error; err != nil {
		return fiber.ErrUnauthorized
	}

	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(in.Password)) != nil {
		return fiber.ErrUnauthorized
	}

	token, _ := IssueToken(u.ID.String(), string(u.Role))
	return c.JSON(AuthResponse{Token: token, Role: string(u.Role)})
}

/* ================================= Me =================================== */

// @Summary      Get current user profile
// @Description  Return full profile of the authenticated user
// @Tags         auth
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  UserProfileResponse
// @Failure      401  {object}  models.ErrorResponse
// @Router       /me [get]
func (h *Handler) Me(c *fiber.Ctx) error {
	userID := c.Locals("userID")
	if userID == nil {
		return fiber.ErrUnauthorized
	}

	var u models.User
	if err := h.db.First(&u, "id = ?", userID).Error; err != nil {
		return fiber.ErrUnauthorized
	}

	resp := UserProfileResponse{
		ID:             u.ID,
		Email:          u.Email,
		Role:           u.Role,
		Name:           u.Name,
		Phone:          u.Phone,
		District:       u.District,
		BarNumber:      u.BarNumber,
		Specialization: u.Specialization,
		CreatedAt:      u.CreatedAt,
	}
	return c.JSON(resp)
}

/* ======================== Lawyer account admin ========================== */

// @Summary      Create lawyer account
// @Description  Admin creates a lawyer account bound to a district
// @Tags         admin
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body  CreateLawyerRequest  true  "Lawyer payload"
// @Success      201      {object}  UserProfileResponse
// @Failure      400      {object}  models.ValidationErrorResponse
// @Failure      409      {object}  models.ErrorResponse
// @Router       /admin/lawyers [post]
func (h *Handler) CreateLawyer(c *fiber.Ctx) error {
	var in CreateLawyerRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.ErrBadRequest
	}

	in.Email = strings.ToLower(strings.TrimSpace(in.Email))

	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	hash, _ := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)

	u := models.User{
		Email:          in.Email,
		PasswordHash:   string(hash),
		Role:           models.RoleLawyer,
		Name:           in.Name,
		District:       strings.TrimSpace(in.District),
		BarNumber:      strings.TrimSpace(in.BarNumber),
		Specialization: strings.TrimSpace(in.Specialization),
	}
	if err := h.db.Create(&u).Error; err != nil {
		return fiber.NewError(fiber.StatusConflict, "email already exists")
	}

	return c.Status(fiber.StatusCreated).JSON(UserProfileResponse{
		ID: u.ID, Email: u.Email, Role: u.Role, Name: u.Name,
		District: u.District, BarNumber: u.BarNumber,
		Specialization: u.Specialization, CreatedAt: u.CreatedAt,
	})
}

// @Summary      List lawyers
// @Description  Admin lists lawyer accounts, optionally filtered by district
// @Tags         admin
// @Security     BearerAuth
// @Produce      json
// @Param        district  query string false "district"
// @Success      200  {array}  UserProfileResponse
// @Router       /admin/lawyers [get]
func (h *Handler) ListLawyers(c *fiber.Ctx) error {
	q := h.db.Model(&models.User{}).Where("role = ?", models.RoleLawyer)
	if d := strings.TrimSpace(c.Query("district")); d != "" {
		q = q.Where("district = ?", d)
	}

	var lawyers []models.User
	if err := q.Order("name ASC").Find(&lawyers).Error; err != nil {
		return fiber.ErrInternalServerError
	}

	out := make([]UserProfileResponse, 0, len(lawyers))
	for _, u := range lawyers {
		out = append(out, UserProfileResponse{
			ID: u.ID, Email: u.Email, Role: u.Role, Name: u.Name,
			District: u.District, BarNumber: u.BarNumber,
			Specialization: u.Specialization, CreatedAt: u.CreatedAt,
		})
	}
	return c.JSON(out)
}

/* =========================== Admin bootstrap ============================ */

// BootstrapAdmin ensures one admin account exists, created from
// ADMIN_EMAIL / ADMIN_PASSWORD. No-op when the account is already there
// or the env vars are unset.
func BootstrapAdmin(db *gorm.DB) error {
	email := strings.ToLower(strings.TrimSpace(os.Getenv("ADMIN_EMAIL")))
	password := os.Getenv("ADMIN_PASSWORD")
	if email == "" || password == "" {
		return nil
	}

	var existing models.User
	err := db.Where("email = ?", email).First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u := models.User{
		Email:        email,
		PasswordHash: string(hash),
		Role:         models.RoleAdmin,
		Name:         "Administrator",
	}
	if err := db.Create(&u).Error; err != nil {
		return err
	}
	logger.L().Info().Str("email", email).Msg("admin account bootstrapped")
	return nil
}
