package payments

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/casedesk/lawfirm-backend/pkg/models"
)

/* ============================================================================
   Pure helpers — fee coercion, descriptor, fallback case id
   ============================================================================ */

func TestParseFee_CoercesText(t *testing.T) {
	cases := map[string]string{
		"1000":     "1000",
		" 1500.5 ": "1500.5",
		"abc":      "0",
		"":         "0",
		"12,00":    "0",
		"-5":       "-5", // negatives pass through; the handler rejects them
	}
	for in, want := range cases {
		if got := ParseFee(in); got.String() != want {
			t.Errorf("ParseFee(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestBuildDescriptor_ModeDependent(t *testing.T) {
	if got := BuildDescriptor(models.PayModeOnline, " TXN-991 ", "HDFC", "42"); got != "TXN-991" {
		t.Errorf("online: got %q", got)
	}
	if got := BuildDescriptor(models.PayModeCheque, "ignored", "HDFC Bank", "003412"); got != "HDFC Bank - 003412" {
		t.Errorf("cheque: got %q", got)
	}
	if got := BuildDescriptor(models.PayModeCash, "ignored", "ignored", "ignored"); got != "" {
		t.Errorf("cash: got %q", got)
	}
}

func TestFallbackCaseID(t *testing.T) {
	id := uuid.MustParse("7f9c24e5-2b31-4bff-82fc-0a1b2c3d4e5f")
	if got := FallbackCaseID(id, nil); got != "BK-3D4E5F" {
		t.Errorf("nil case id: got %q, want BK-3D4E5F", got)
	}
	empty := ""
	if got := FallbackCaseID(id, &empty); got != "BK-3D4E5F" {
		t.Errorf("empty case id: got %q, want BK-3D4E5F", got)
	}
	cid := "CIV-014"
	if got := FallbackCaseID(id, &cid); got != "CIV-014" {
		t.Errorf("allocated case id: got %q", got)
	}
}

/* ============================================================================
   Filter windows
   ============================================================================ */

func entryAt(ts time.Time) models.Payment {
	return models.Payment{
		ID:          uuid.New(),
		CaseID:      "CIV-001",
		ClientName:  "Asha",
		Amount:      decimal.NewFromInt(100),
		PaymentMode: models.PayModeCash,
		PaymentDate: ts,
	}
}

func TestFilter_Today(t *testing.T) {
	loc := time.UTC
	now := time.Date(2026, 9, 1, 15, 0, 0, 0, loc)

	today := entryAt(time.Date(2026, 9, 1, 9, 30, 0, 0, loc))
	old := entryAt(now.Add(-10 * 24 * time.Hour))

	got := Filter([]models.Payment{today, old}, FilterToday, "", now, loc)
	if len(got) != 1 || got[0].ID != today.ID {
		t.Fatalf("want exactly today's entry, got %d rows", len(got))
	}
}

func TestFilter_WeeklyAndMonthlyAreRolling(t *testing.T) {
	loc := time.UTC
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, loc)

	in6d := entryAt(now.Add(-6 * 24 * time.Hour))
	in8d := entryAt(now.Add(-8 * 24 * time.Hour))
	in29d := entryAt(now.Add(-29 * 24 * time.Hour))
	in31d := entryAt(now.Add(-31 * 24 * time.Hour))
	rows := []models.Payment{in6d, in8d, in29d, in31d}

	weekly := Filter(rows, FilterWeekly, "", now, loc)
	if len(weekly) != 1 || weekly[0].ID != in6d.ID {
		t.Fatalf("weekly: want only the 6-day-old entry, got %d rows", len(weekly))
	}

	monthly := Filter(rows, FilterMonthly, "", now, loc)
	if len(monthly) != 3 {
		t.Fatalf("monthly: want 3 rows (30-day rolling window), got %d", len(monthly))
	}
	for _, p := range monthly {
		if p.ID == in31d.ID {
			t.Fatal("monthly: 31-day-old entry must be excluded")
		}
	}
}

func TestFilter_CustomDate(t *testing.T) {
	loc := time.UTC
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, loc)

	target := entryAt(time.Date(2026, 8, 15, 23, 59, 0, 0, loc))
	other := entryAt(time.Date(2026, 8, 16, 0, 1, 0, 0, loc))

	got := Filter([]models.Payment{target, other}, FilterCustom, "2026-08-15", now, loc)
	if len(got) != 1 || got[0].ID != target.ID {
		t.Fatalf("custom: want the 15 Aug entry only, got %d rows", len(got))
	}
}

func TestFilter_AllPassesThrough(t *testing.T) {
	rows := []models.Payment{entryAt(time.Now()), entryAt(time.Now().Add(-400 * 24 * time.Hour))}
	if got := Filter(rows, FilterAll, "", time.Now(), time.UTC); len(got) != 2 {
		t.Fatalf("all: want 2 rows, got %d", len(got))
	}
}

/* ============================================================================
   CSV export
   ============================================================================ */

func TestWriteCSV_RefusesEmptySet(t *testing.T) {
	var buf bytes.Buffer
	err := WriteCSV(&buf, nil, time.UTC)
	if err != ErrNothingToExport {
		t.Fatalf("want ErrNothingToExport, got %v", err)
	}
	if buf.Len() != 0 {
		t.Fatal("no bytes may be produced for an empty export")
	}
}

// The original exporter concatenated raw strings, so a client name like
// `Acme, "Legal" Partners` corrupted the row. encoding/csv quotes such
// fields; this pins the fix.
func TestWriteCSV_EscapesCommasAndQuotes(t *testing.T) {
	p := entryAt(time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC))
	p.ClientName = `Acme, "Legal" Partners`
	p.ConsultationFee = decimal.NewFromInt(1000)
	p.DueFee = decimal.NewFromInt(500)
	p.Amount = decimal.NewFromInt(1500)
	p.TransactionID = "ref,with,commas"

	var buf bytes.Buffer
	if err := WriteCSV(&buf, []models.Payment{p}, time.UTC); err != nil {
		t.Fatal(err)
	}

	recs, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("exported CSV does not parse: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("want header + 1 row, got %d records", len(recs))
	}
	row := recs[1]
	if row[1] != `Acme, "Legal" Partners` {
		t.Errorf("client name did not round-trip: %q", row[1])
	}
	if row[7] != "ref,with,commas" {
		t.Errorf("transaction details did not round-trip: %q", row[7])
	}
	if row[4] != "1500.00" {
		t.Errorf("total amount: got %q, want 1500.00", row[4])
	}
}

func TestWriteCSV_EmptyTransactionBecomesNA(t *testing.T) {
	p := entryAt(time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC))
	p.TransactionID = "" // cash payment

	var buf bytes.Buffer
	if err := WriteCSV(&buf, []models.Payment{p}, time.UTC); err != nil {
		t.Fatal(err)
	}
	recs, _ := csv.NewReader(&buf).ReadAll()
	if recs[1][7] != "N/A" {
		t.Errorf("want N/A fallback, got %q", recs[1][7])
	}
}

/* ============================================================================
   Reconciler — real Postgres via TEST_DATABASE_URL
   ============================================================================ */

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

func seedAppointment(t *testing.T, db *gorm.DB, caseID *string) models.Appointment {
	t.Helper()
	appt := models.Appointment{
		ID:               uuid.New(),
		ClientID:         uuid.New(),
		ClientName:       "Asha Pillai",
		ClientEmail:      "asha@example.com",
		District:         "North District",
		CaseCategory:     "Civil",
		AppointmentDate:  time.Now(),
		TimeSlot:         "10:00 AM - 11:00 AM",
		ConsultationType: models.ConsultInPerson,
		Status:           models.AppointmentApproved,
		CaseID:           caseID,
	}
	if err := db.Create(&appt).Error; err != nil {
		t.Fatal(err)
	}
	return appt
}

// Overwrite and append must hold independently: the appointment's fee
// snapshot shows the latest figures, while the ledger keeps every entry.
func Test_Reconcile_OverwritesSnapshot_AppendsLedger(t *testing.T) {
	db := openTestDB(t)
	cid := "CIV-001"
	appt := seedAppointment(t, db, &cid)

	rec := NewReconciler(db)

	// First payment: 1000 + 500
	_, p1, err := rec.Record(context.Background(), RecordInput{
		AppointmentID:   appt.ID,
		ConsultationFee: decimal.NewFromInt(1000),
		DueFee:          decimal.NewFromInt(500),
		Mode:            models.PayModeCash,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !p1.Amount.Equal(decimal.NewFromInt(1500)) {
		t.Fatalf("first entry amount = %s, want 1500", p1.Amount)
	}

	// Second payment: 1000 + 1000. Snapshot is overwritten, not summed.
	got, p2, err := rec.Record(context.Background(), RecordInput{
		AppointmentID:   appt.ID,
		ConsultationFee: decimal.NewFromInt(1000),
		DueFee:          decimal.NewFromInt(1000),
		Mode:            models.PayModeOnline,
		Descriptor:      "TXN-77",
	})
	if err != nil {
		t.Fatal(err)
	}
	if !p2.Amount.Equal(decimal.NewFromInt(2000)) {
		t.Fatalf("second entry amount = %s, want 2000", p2.Amount)
	}
	if !got.ConsultationFee.Equal(decimal.NewFromInt(1000)) || !got.CaseFee.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("snapshot = {%s, %s}, want {1000, 1000} (overwrite, not sum)", got.ConsultationFee, got.CaseFee)
	}
	if got.PaymentDate == nil {
		t.Fatal("payment date must be set server-side")
	}

	var count int64
	if err := db.Model(&models.Payment{}).Where("appointment_id = ?", appt.ID).Count(&count).Error; err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Fatalf("ledger rows = %d, want 2 (append-only)", count)
	}

	// Denormalized snapshots on the ledger row.
	if p2.CaseID != "CIV-001" || p2.ClientName != "Asha Pillai" {
		t.Fatalf("ledger snapshot fields wrong: %q / %q", p2.CaseID, p2.ClientName)
	}
}

func Test_Reconcile_FallbackCaseID_WhenUnallocated(t *testing.T) {
	db := openTestDB(t)
	appt := seedAppointment(t, db, nil)

	rec := NewReconciler(db)
	_, p, err := rec.Record(context.Background(), RecordInput{
		AppointmentID:   appt.ID,
		ConsultationFee: decimal.NewFromInt(200),
		DueFee:          decimal.Zero,
		Mode:            models.PayModeCash,
	})
	if err != nil {
		t.Fatal(err)
	}
	want := FallbackCaseID(appt.ID, nil)
	if p.CaseID != want {
		t.Fatalf("ledger case id = %q, want fallback %q", p.CaseID, want)
	}
	if !strings.HasPrefix(p.CaseID, "BK-") || len(p.CaseID) != 9 {
		t.Fatalf("fallback shape wrong: %q", p.CaseID)
	}
}

func Test_Reconcile_UnknownAppointment(t *testing.T) {
	db := openTestDB(t)
	rec := NewReconciler(db)
	_, _, err := rec.Record(context.Background(), RecordInput{
		AppointmentID: uuid.New(),
		Mode:          models.PayModeCash,
	})
	if err == nil {
		t.Fatal("want error for unknown appointment")
	}
}
