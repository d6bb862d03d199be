package utils

import (
	"context"
	"time"

	"github.com/fairpay-app/fairpay-backend/pkg/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LogProcedureHistory inserts an audit record into procedure_histories.
// Used to track important status changes and actions on a procedure.
// Errors are ignored on purpose (best-effort logging).
func LogProcedureHistory(
	ctx context.Context,
	db *gorm.DB,
	procedureID, actorID uuid.UUID,
	action string,
	oldS, newS models.ProcedureStatus,
	reason string,
) {
	_ = db.WithContext(ctx).Create(&models.ProcedureHistory{
		ProcedureID: procedureID,
		ActorID:     actorID,
		Action:      action,
		OldStatus:   oldS,
		NewStatus:   newS,
		Reason:      reason,
		CreatedAt:   time.Now(),
	}).Error
}
