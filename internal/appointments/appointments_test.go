package appointments

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/casedesk/lawfirm-backend/internal/notify"
	"github.com/casedesk/lawfirm-backend/pkg/models"
)

/* ============================================================================
   Helpers
   ============================================================================ */

// openTestDB loads TEST_DATABASE_URL, opens a real Postgres connection,
// runs migrations, and registers a cleanup that truncates test tables after run.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	_ = godotenv.Load()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL is empty")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.User{}, &models.Appointment{}, &models.AppointmentDocument{},
		&models.AppointmentHistory{}, &models.Payment{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	t.Cleanup(func() {
		sql := `
TRUNCATE TABLE
	payments,
	appointment_histories,
	appointment_documents,
	appointments,
	users
RESTART IDENTITY CASCADE`
		if err := db.Exec(sql).Error; err != nil {
			t.Logf("truncate failed (ignored): %v", err)
		}
	})

	return db
}

// injectAuth puts auth locals into the Fiber context so MustUserID /
// MustRole work without a real JWT.
func injectAuth(userID uuid.UUID, role string) fiber.Handler {
	id := userID.String()
	return func(c *fiber.Ctx) error {
		c.Locals("userID", id)
		c.Locals("role", role)
		return c.Next()
	}
}

// newTestApp registers routes in a safe order for tests: static paths
// before parameterized ones so /mine is not shadowed by /:id.
func newTestApp(h *Handler, userID uuid.UUID, role string) *fiber.App {
	app := fiber.New()
	app.Use(injectAuth(userID, role))

	app.Get("/api/appointments/mine", h.ListMine)
	app.Post("/api/appointments", h.Create)
	app.Get("/api/appointments/:id", h.GetDetailOwner)

	app.Get("/api/admin/appointments", h.ListAll)
	app.Post("/api/admin/appointments/:id/approve", h.Approve)
	app.Post("/api/admin/appointments/:id/reject", h.Reject)
	app.Patch("/api/admin/appointments/:id/stage", h.UpdateStage)

	app.Get("/api/lawyer/cases", h.ListAssigned)
	app.Get("/api/lawyer/docket", h.DistrictDocket)
	app.Patch("/api/lawyer/cases/:id/hearing", h.UpdateHearing)

	return app
}

func newHandler(db *gorm.DB) *Handler {
	return NewHandler(db, nil, notify.NewMailer()) // mailer is a no-op without MAIL_API_URL
}

func seedUser(t *testing.T, db *gorm.DB, role models.Role, district string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	if err := db.Create(&models.User{
		ID:       id,
		Email:    string(role) + "_" + id.String()[:8] + "@x.com",
		Role:     role,
		Name:     string(role) + " " + id.String()[:4],
		District: district,
	}).Error; err != nil {
		t.Fatal(err)
	}
	return id
}

func seedRequest(t *testing.T, db *gorm.DB, category, district string, status models.AppointmentStatus) models.Appointment {
	t.Helper()
	appt := models.Appointment{
		ID:               uuid.New(),
		ClientID:         uuid.New(),
		ClientName:       "Client " + uuid.NewString()[:4],
		ClientEmail:      "c_" + uuid.NewString()[:8] + "@x.com",
		District:         district,
		CaseCategory:     category,
		Description:      "intake description",
		AppointmentDate:  time.Now(),
		TimeSlot:         "10:00 AM - 11:00 AM",
		ConsultationType: models.ConsultInPerson,
		Status:           status,
	}
	if err := db.Create(&appt).Error; err != nil {
		t.Fatal(err)
	}
	return appt
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body any) (int, map[string]any) {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	out := map[string]any{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

/* ============================================================================
   Approval + case-id allocation
   ============================================================================ */

func Test_Approve_AllocatesSequentialCaseIDs(t *testing.T) {
	db := openTestDB(t)
	adminID := seedUser(t, db, models.RoleAdmin, "")
	lawyerID := seedUser(t, db, models.RoleLawyer, "North District")

	h := newHandler(db)
	app := newTestApp(h, adminID, string(models.RoleAdmin))

	a1 := seedRequest(t, db, "Civil", "North District", models.AppointmentPending)
	a2 := seedRequest(t, db, "Civil", "North District", models.AppointmentPending)

	code, out := doJSON(t, app, "POST", "/api/admin/appointments/"+a1.ID.String()+"/approve",
		fiber.Map{"lawyer_id": lawyerID.String()})
	if code != 200 {
		t.Fatalf("first approve: status %d (%v)", code, out)
	}
	if out["case_id"] != "CIV-001" {
		t.Fatalf("first case id = %v, want CIV-001", out["case_id"])
	}
	if out["status"] != "approved" {
		t.Fatalf("status = %v, want approved", out["status"])
	}

	code, out = doJSON(t, app, "POST", "/api/admin/appointments/"+a2.ID.String()+"/approve",
		fiber.Map{"lawyer_id": lawyerID.String()})
	if code != 200 {
		t.Fatalf("second approve: status %d (%v)", code, out)
	}
	if out["case_id"] != "CIV-002" {
		t.Fatalf("second case id = %v, want CIV-002", out["case_id"])
	}
}

func Test_Approve_UnmappedCategoryGetsOTH(t *testing.T) {
	db := openTestDB(t)
	adminID := seedUser(t, db, models.RoleAdmin, "")
	lawyerID := seedUser(t, db, models.RoleLawyer, "North District")

	h := newHandler(db)
	app := newTestApp(h, adminID, string(models.RoleAdmin))

	a := seedRequest(t, db, "Tax", "North District", models.AppointmentPending)
	code, out := doJSON(t, app, "POST", "/api/admin/appointments/"+a.ID.String()+"/approve",
		fiber.Map{"lawyer_id": lawyerID.String()})
	if code != 200 {
		t.Fatalf("status %d (%v)", code, out)
	}
	if out["case_id"] != "OTH-001" {
		t.Fatalf("case id = %v, want OTH-001", out["case_id"])
	}
}

// A lawyer must be selected before anything is written.
func Test_Approve_WithoutLawyerIsRejectedBeforeWrite(t *testing.T) {
	db := openTestDB(t)
	adminID := seedUser(t, db, models.RoleAdmin, "")

	h := newHandler(db)
	app := newTestApp(h, adminID, string(models.RoleAdmin))

	a := seedRequest(t, db, "Civil", "North District", models.AppointmentPending)
	code, _ := doJSON(t, app, "POST", "/api/admin/appointments/"+a.ID.String()+"/approve",
		fiber.Map{})
	if code != 400 {
		t.Fatalf("status %d, want 400", code)
	}

	var check models.Appointment
	if err := db.First(&check, "id = ?", a.ID).Error; err != nil {
		t.Fatal(err)
	}
	if check.Status != models.AppointmentPending || check.CaseID != nil {
		t.Fatalf("request must be untouched, got status=%s case_id=%v", check.Status, check.CaseID)
	}
}

func Test_Approve_NonPendingConflicts(t *testing.T) {
	db := openTestDB(t)
	adminID := seedUser(t, db, models.RoleAdmin, "")
	lawyerID := seedUser(t, db, models.RoleLawyer, "North District")

	h := newHandler(db)
	app := newTestApp(h, adminID, string(models.RoleAdmin))

	a := seedRequest(t, db, "Civil", "North District", models.AppointmentRejected)
	code, _ := doJSON(t, app, "POST", "/api/admin/appointments/"+a.ID.String()+"/approve",
		fiber.Map{"lawyer_id": lawyerID.String()})
	if code != 409 {
		t.Fatalf("status %d, want 409", code)
	}
}

func Test_Reject_FlipsStatusOnly(t *testing.T) {
	db := openTestDB(t)
	adminID := seedUser(t, db, models.RoleAdmin, "")

	h := newHandler(db)
	app := newTestApp(h, adminID, string(models.RoleAdmin))

	a := seedRequest(t, db, "Family", "North District", models.AppointmentPending)
	code, out := doJSON(t, app, "POST", "/api/admin/appointments/"+a.ID.String()+"/reject",
		fiber.Map{"reason": "outside practice areas"})
	if code != 200 {
		t.Fatalf("status %d (%v)", code, out)
	}
	if out["status"] != "rejected" {
		t.Fatalf("status = %v, want rejected", out["status"])
	}
	if out["case_id"] != nil {
		t.Fatalf("rejected request must not get a case id, got %v", out["case_id"])
	}
}

func Test_UpdateStage_RequiresApprovedCase(t *testing.T) {
	db := openTestDB(t)
	adminID := seedUser(t, db, models.RoleAdmin, "")

	h := newHandler(db)
	app := newTestApp(h, adminID, string(models.RoleAdmin))

	pending := seedRequest(t, db, "Civil", "North District", models.AppointmentPending)
	code, _ := doJSON(t, app, "PATCH", "/api/admin/appointments/"+pending.ID.String()+"/stage",
		fiber.Map{"case_stage": "Stage 1"})
	if code != 409 {
		t.Fatalf("pending: status %d, want 409", code)
	}

	approved := seedRequest(t, db, "Civil", "North District", models.AppointmentApproved)
	code, out := doJSON(t, app, "PATCH", "/api/admin/appointments/"+approved.ID.String()+"/stage",
		fiber.Map{"case_stage": "Stage 2"})
	if code != 200 {
		t.Fatalf("approved: status %d (%v)", code, out)
	}
	if out["case_stage"] != "Stage 2" {
		t.Fatalf("case_stage = %v", out["case_stage"])
	}

	code, _ = doJSON(t, app, "PATCH", "/api/admin/appointments/"+approved.ID.String()+"/stage",
		fiber.Map{"case_stage": "Stage 9"})
	if code != 400 {
		t.Fatalf("unknown stage: status %d, want 400", code)
	}
}

/* ============================================================================
   District scoping
   ============================================================================ */

func Test_Lawyer_SeesOnlyOwnDistrictAssignments(t *testing.T) {
	db := openTestDB(t)
	lawyerID := seedUser(t, db, models.RoleLawyer, "North District")

	mine := seedRequest(t, db, "Civil", "North District", models.AppointmentApproved)
	db.Model(&models.Appointment{}).Where("id = ?", mine.ID).Update("lawyer_id", lawyerID)

	// Assigned to me but in another district: invisible.
	other := seedRequest(t, db, "Civil", "South District", models.AppointmentApproved)
	db.Model(&models.Appointment{}).Where("id = ?", other.ID).Update("lawyer_id", lawyerID)

	h := newHandler(db)
	app := newTestApp(h, lawyerID, string(models.RoleLawyer))

	code, out := doJSON(t, app, "GET", "/api/lawyer/cases", nil)
	if code != 200 {
		t.Fatalf("status %d (%v)", code, out)
	}
	items := out["items"].([]any)
	if len(items) != 1 {
		t.Fatalf("want 1 case, got %d", len(items))
	}
	got := items[0].(map[string]any)
	if got["id"] != mine.ID.String() {
		t.Fatalf("wrong case listed: %v", got["id"])
	}
}

func Test_Lawyer_CannotEditColleaguesCase(t *testing.T) {
	db := openTestDB(t)
	lawyerID := seedUser(t, db, models.RoleLawyer, "North District")
	colleagueID := seedUser(t, db, models.RoleLawyer, "North District")

	a := seedRequest(t, db, "Civil", "North District", models.AppointmentApproved)
	db.Model(&models.Appointment{}).Where("id = ?", a.ID).Update("lawyer_id", colleagueID)

	h := newHandler(db)
	app := newTestApp(h, lawyerID, string(models.RoleLawyer))

	code, _ := doJSON(t, app, "PATCH", "/api/lawyer/cases/"+a.ID.String()+"/hearing",
		fiber.Map{"next_hearing_date": "2026-10-01", "court_name": "District Court II"})
	if code != 404 {
		t.Fatalf("status %d, want 404", code)
	}
}

func Test_Lawyer_UpdatesHearingOnOwnCase(t *testing.T) {
	db := openTestDB(t)
	lawyerID := seedUser(t, db, models.RoleLawyer, "North District")

	a := seedRequest(t, db, "Criminal", "North District", models.AppointmentApproved)
	db.Model(&models.Appointment{}).Where("id = ?", a.ID).Update("lawyer_id", lawyerID)

	h := newHandler(db)
	app := newTestApp(h, lawyerID, string(models.RoleLawyer))

	code, out := doJSON(t, app, "PATCH", "/api/lawyer/cases/"+a.ID.String()+"/hearing",
		fiber.Map{
			"next_hearing_date": "2026-10-01",
			"court_name":        "District Court II",
			"hearing_notes":     "witness statements due",
		})
	if code != 200 {
		t.Fatalf("status %d (%v)", code, out)
	}
	if out["court_name"] != "District Court II" {
		t.Fatalf("court_name = %v", out["court_name"])
	}
}

/* ============================================================================
   District docket redaction
   ============================================================================ */

func Test_Docket_RedactsPIIAndHidesClient(t *testing.T) {
	db := openTestDB(t)
	lawyerID := seedUser(t, db, models.RoleLawyer, "North District")
	colleagueID := seedUser(t, db, models.RoleLawyer, "North District")

	a := seedRequest(t, db, "Civil", "North District", models.AppointmentApproved)
	db.Model(&models.Appointment{}).Where("id = ?", a.ID).Updates(map[string]any{
		"lawyer_id":   colleagueID,
		"description": "reach me at test@example.com or 08123456789",
	})

	h := newHandler(db)
	app := newTestApp(h, lawyerID, string(models.RoleLawyer))

	code, out := doJSON(t, app, "GET", "/api/lawyer/docket", nil)
	if code != 200 {
		t.Fatalf("status %d (%v)", code, out)
	}
	items := out["items"].([]any)
	if len(items) != 1 {
		t.Fatalf("want 1 docket entry, got %d", len(items))
	}
	entry := items[0].(map[string]any)
	preview := entry["preview"].(string)
	if preview == "" {
		t.Fatal("preview missing")
	}
	for _, leak := range []string{"@", "0812"} {
		if bytes.Contains([]byte(preview), []byte(leak)) {
			t.Fatalf("preview not redacted: %q", preview)
		}
	}
	if _, ok := entry["client_name"]; ok {
		t.Fatal("docket must not expose client identity")
	}
}
