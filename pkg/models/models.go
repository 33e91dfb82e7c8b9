package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

/* =============================== Enums ================================== */

// Role defines the type of user in the system.
type Role string

const (
	RoleClient Role = "client"
	RoleAdmin  Role = "admin"
	RoleLawyer Role = "lawyer"
)

// AppointmentStatus defines lifecycle states for a case request.
// Approved and rejected are terminal; there is no way back to pending.
type AppointmentStatus string

const (
	AppointmentPending  AppointmentStatus = "pending"
	AppointmentApproved AppointmentStatus = "approved"
	AppointmentRejected AppointmentStatus = "rejected"
)

// PaymentMode is how a fee payment was made.
type PaymentMode string

const (
	PayModeCash   PaymentMode = "Cash"
	PayModeOnline PaymentMode = "Online"
	PayModeCheque PaymentMode = "Cheque"
)

// CaseStage is the litigation progression once a case is engaged.
type CaseStage string

const (
	StageOne     CaseStage = "Stage 1"
	StageTwo     CaseStage = "Stage 2"
	StageThree   CaseStage = "Stage 3"
	StageVerdict CaseStage = "Final Verdict"
)

// ConsultationType is how the first consultation happens.
type ConsultationType string

const (
	ConsultInPerson ConsultationType = "In-Person"
	ConsultVideo    ConsultationType = "Video"
	ConsultPhone    ConsultationType = "Phone"
)

/* =============================== Entities =============================== */

// User represents a client, an administrator, or a lawyer.
// Clients self-register; lawyer accounts are created by an admin and carry
// the district they practice in.
type User struct {
	ID           uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Email        string    `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"not null" json:"-"`
	Role         Role      `gorm:"type:varchar(20);not null" json:"role"`
	Name         string    `json:"name"`
	Phone        string    `json:"phone"`
	// Lawyer-only fields
	District       string    `gorm:"index" json:"district,omitempty"`
	BarNumber      string    `json:"bar_number,omitempty"`
	Specialization string    `json:"specialization,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Appointment is a client-submitted case intake request tracked through
// pending -> approved/rejected and, once approved, litigation stages.
// Records are never deleted.
type Appointment struct {
	ID       uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ClientID uuid.UUID `gorm:"type:uuid;not null;index" json:"client_id"`

	// Contact details captured at intake time (denormalized on purpose:
	// the intake snapshot must survive later profile edits).
	ClientName  string `gorm:"not null" json:"client_name"`
	ClientEmail string `gorm:"not null" json:"client_email"`
	ClientPhone string `json:"client_phone"`

	District         string           `gorm:"not null;index" json:"district"`
	CaseCategory     string           `gorm:"not null" json:"case_category"`
	Description      string           `gorm:"type:text" json:"description"`
	AppointmentDate  time.Time        `gorm:"not null" json:"appointment_date"`
	TimeSlot         string           `gorm:"not null" json:"time_slot"`
	ConsultationType ConsultationType `gorm:"type:varchar(20)" json:"consultation_type"`

	Status AppointmentStatus `gorm:"type:varchar(20);default:'pending';index" json:"status"`

	// CaseID is nil until approval, then immutable. The unique index is
	// what backs the allocator's uniqueness guarantee under concurrent
	// approvals: the duplicate computation loses on insert and retries.
	CaseID   *string    `gorm:"uniqueIndex" json:"case_id"`
	LawyerID *uuid.UUID `gorm:"type:uuid;index" json:"lawyer_id"`

	// Fee snapshot: overwritten with the latest cumulative figures on each
	// payment entry, never accumulated. The payments ledger is the audit
	// trail of individual entries.
	ConsultationFee decimal.Decimal `gorm:"type:numeric(12,2);default:0" json:"consultation_fee"`
	CaseFee         decimal.Decimal `gorm:"type:numeric(12,2);default:0" json:"case_fee"`
	PaymentMode     PaymentMode     `gorm:"type:varchar(20)" json:"payment_mode,omitempty"`
	TransactionID   string          `json:"transaction_id,omitempty"`
	PaymentDate     *time.Time      `json:"payment_date,omitempty"`

	CaseStage CaseStage `gorm:"type:varchar(20)" json:"case_stage,omitempty"`

	// Hearing details, editable by the assigned lawyer only.
	NextHearingDate *time.Time `json:"next_hearing_date,omitempty"`
	CourtName       string     `json:"court_name,omitempty"`
	HearingNotes    string     `gorm:"type:text" json:"hearing_notes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Documents []AppointmentDocument `json:"documents,omitempty"`
}

// Payment is one append-only ledger entry. Each row is a point-in-time
// snapshot of the appointment's two fee fields (amount = consultation +
// due), not a delta. Rows are never updated or deleted.
type Payment struct {
	ID            uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	AppointmentID uuid.UUID `gorm:"type:uuid;not null;index" json:"appointment_id"`

	// Denormalized snapshots taken at entry time.
	CaseID     string `gorm:"not null" json:"case_id"`
	ClientName string `gorm:"not null" json:"client_name"`

	ConsultationFee decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"consultation_fee"`
	DueFee          decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"due_fee"`
	Amount          decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`

	PaymentMode   PaymentMode `gorm:"type:varchar(20);not null" json:"payment_mode"`
	TransactionID string      `json:"transaction_id"`
	// Assigned server-side at insertion, never client-supplied.
	PaymentDate time.Time `gorm:"not null;index" json:"payment_date"`
	CreatedAt   time.Time `json:"created_at"`
}

// AppointmentDocument is a file uploaded against a case request. The blob
// itself lives in object storage; only the key is recorded here.
type AppointmentDocument struct {
	ID            uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	AppointmentID uuid.UUID `gorm:"type:uuid;not null;index" json:"appointment_id"`
	Key           string    `gorm:"not null" json:"key"`
	Mime          string    `gorm:"not null" json:"mime"`
	Size          int       `gorm:"not null" json:"size"`
	OriginalName  string    `json:"original_name"`
	CreatedAt     time.Time `json:"created_at"`

	// Relation back to the appointment
	Appointment Appointment `gorm:"foreignKey:AppointmentID;references:ID" json:"-"`
}

// AppointmentHistory is an audit log entry for important changes.
type AppointmentHistory struct {
	ID            uuid.UUID         `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	AppointmentID uuid.UUID         `gorm:"type:uuid;not null;index"`
	ActorID       uuid.UUID         `gorm:"type:uuid;not null;index"`  // who performed the action (client/admin/lawyer)
	Action        string            `gorm:"type:varchar(50);not null"` // e.g. approved, rejected, stage_changed, payment_recorded, hearing_updated
	OldStatus     AppointmentStatus `gorm:"type:varchar(20)"`
	NewStatus     AppointmentStatus `gorm:"type:varchar(20)"`
	Reason        string            `gorm:"type:text"` // optional explanation/comment
	CreatedAt     time.Time         `gorm:"autoCreateTime"`
}
