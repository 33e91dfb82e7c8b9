package utils

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/casedesk/lawfirm-backend/pkg/models"
)

// LogAppointmentHistory inserts an audit record into appointment_histories.
// Used to track status transitions, stage changes, hearing updates and
// payment entries. Errors are ignored on purpose (best-effort logging).
func LogAppointmentHistory(
	ctx context.Context,
	db *gorm.DB,
	appointmentID, actorID uuid.UUID,
	action string,
	oldS, newS models.AppointmentStatus,
	reason string,
) {
	_ = db.WithContext(ctx).Create(&models.AppointmentHistory{
		AppointmentID: appointmentID,
		ActorID:       actorID,
		Action:        action,
		OldStatus:     oldS,
		NewStatus:     newS,
		Reason:        reason,
		CreatedAt:     time.Now(),
	}).Error
}
