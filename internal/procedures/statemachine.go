package procedures

import (
	"github.com/fairpay-app/fairpay-backend/pkg/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// transitions lists every legal status move. A procedure only ever advances
// along these edges; there is no way back.
var transitions = map[models.ProcedureStatus][]models.ProcedureStatus{
	models.ProcedureDraft:              {models.ProcedureNew},
	models.ProcedureNew:                {models.ProcedureInjonctionDemandee, models.ProcedureSent},
	models.ProcedureInjonctionDemandee: {models.ProcedureInjonctionPayer},
	models.ProcedureInjonctionPayer:    {models.ProcedureSent},
	// SENT is terminal
}

// CanAdvance reports whether from→to is a legal transition.
func CanAdvance(from, to models.ProcedureStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Advance moves a procedure from one status to the next with a single
// conditional update: UPDATE ... SET status = to WHERE id = ? AND status = from.
// The affected-row count decides the outcome, so two concurrent confirmations
// cannot both win; the loser sees advanced=false and treats the transition as
// already processed. extra columns (payment link, lrar timestamp) ride along
// in the same statement.
func Advance(db *gorm.DB, procedureID uuid.UUID, from, to models.ProcedureStatus, extra map[string]any) (bool, error) {
	if !CanAdvance(from, to) {
		return false, nil
	}
	updates := map[string]any{"status": to}
	for k, v := range extra {
		updates[k] = v
	}
	res := db.Model(&models.Procedure{}).
		Where("id = ? AND status = ?", procedureID, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
