// @title           Law Firm Case Desk API
// @version         1.0
// @description     Case intake and administration for a law firm: clients submit case requests, admins triage, approve and record fee payments, district-scoped lawyers track hearings.
// @BasePath        /api
// @schemes         http
// @securityDefinitions.apikey BearerAuth
// @in              header
// @name            Authorization
// @description     Format: Bearer <token>
package main

import (
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/joho/godotenv"

	"github.com/casedesk/lawfirm-backend/internal/appointments"
	"github.com/casedesk/lawfirm-backend/internal/auth"
	"github.com/casedesk/lawfirm-backend/internal/notify"
	"github.com/casedesk/lawfirm-backend/internal/payments"
	"github.com/casedesk/lawfirm-backend/internal/storage"
	"github.com/casedesk/lawfirm-backend/pkg/database"
	"github.com/casedesk/lawfirm-backend/pkg/logger"
	"github.com/casedesk/lawfirm-backend/pkg/models"
)

func main() {
	_ = godotenv.Load()

	db := database.Init()
	if err := db.AutoMigrate(
		&models.User{}, &models.Appointment{}, &models.AppointmentDocument{},
		&models.AppointmentHistory{}, &models.Payment{},
	); err != nil {
		logger.L().Fatal().Err(err).Msg("migration failed")
	}

	if err := auth.BootstrapAdmin(db); err != nil {
		logger.L().Fatal().Err(err).Msg("admin bootstrap failed")
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: auth.ErrorHandler,
	})

	app.Get("/health", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"status": "ok"}) })

	api := app.Group("/api")

	// Auth
	authH := auth.NewHandler(db)
	api.Post("/signup", authH.Signup)
	api.Post("/login", authH.Login)
	api.Get("/me", auth.RequireAuth(), authH.Me)

	// External collaborators
	sb := storage.NewSupabase()  // SUPABASE_URL / SUPABASE_SERVICE_KEY / SUPABASE_BUCKET
	mailer := notify.NewMailer() // MAIL_API_URL / MAIL_API_KEY / MAIL_FROM

	// Appointments
	apptH := appointments.NewHandler(db, sb, mailer)
	// Client intake
	api.Post("/appointments", auth.RequireAuth(), auth.RequireRole(models.RoleClient), apptH.Create)
	api.Get("/appointments/mine", auth.RequireAuth(), auth.RequireRole(models.RoleClient), apptH.ListMine)
	api.Get("/appointments/:id", auth.RequireAuth(), auth.RequireRole(models.RoleClient), apptH.GetDetailOwner)
	api.Post("/appointments/:id/documents", auth.RequireAuth(), auth.RequireRole(models.RoleClient), apptH.UploadDocuments)
	api.Get("/documents/:docID/signed-url", auth.RequireAuth(), apptH.SignedDownloadURL)

	// Admin triage
	admin := api.Group("/admin", auth.RequireAuth(), auth.RequireRole(models.RoleAdmin))
	admin.Get("/appointments", apptH.ListAll)
	admin.Get("/appointments/:id", apptH.GetDetailAdmin)
	admin.Post("/appointments/:id/approve", apptH.Approve)
	admin.Post("/appointments/:id/reject", apptH.Reject)
	admin.Patch("/appointments/:id/stage", apptH.UpdateStage)
	admin.Post("/lawyers", authH.CreateLawyer)
	admin.Get("/lawyers", authH.ListLawyers)

	// Payments (admin)
	payH := payments.NewHandler(db)
	admin.Post("/appointments/:id/payments", payH.Record)
	admin.Get("/payments", payH.List)
	admin.Get("/payments/export", payH.Export)

	// Lawyer (district-scoped)
	lawyer := api.Group("/lawyer", auth.RequireAuth(), auth.RequireRole(models.RoleLawyer))
	lawyer.Get("/cases", apptH.ListAssigned)
	lawyer.Get("/docket", apptH.DistrictDocket)
	lawyer.Patch("/cases/:id/hearing", apptH.UpdateHearing)

	port := os.Getenv("PORT")
	if port == "" {
		port = "3000"
	}
	logger.L().Info().Str("port", port).Msg("server running")
	if err := app.Listen(":" + port); err != nil {
		logger.L().Fatal().Err(err).Msg("server stopped")
	}
}
