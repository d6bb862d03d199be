package procedures

import (
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/fairpay-app/fairpay-backend/pkg/models"
)

func Test_CanAdvance_Table(t *testing.T) {
	cases := []struct {
		from, to models.ProcedureStatus
		want     bool
	}{
		{models.ProcedureDraft, models.ProcedureNew, true},
		{models.ProcedureNew, models.ProcedureInjonctionDemandee, true},
		{models.ProcedureNew, models.ProcedureSent, true},
		{models.ProcedureInjonctionDemandee, models.ProcedureInjonctionPayer, true},
		{models.ProcedureInjonctionPayer, models.ProcedureSent, true},

		// No skipping, no going back, SENT is terminal.
		{models.ProcedureDraft, models.ProcedureSent, false},
		{models.ProcedureDraft, models.ProcedureInjonctionDemandee, false},
		{models.ProcedureNew, models.ProcedureDraft, false},
		{models.ProcedureInjonctionDemandee, models.ProcedureSent, false},
		{models.ProcedureSent, models.ProcedureNew, false},
		{models.ProcedureSent, models.ProcedureDraft, false},
	}
	for _, tc := range cases {
		if got := CanAdvance(tc.from, tc.to); got != tc.want {
			t.Errorf("CanAdvance(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func Test_Advance_IsAtomicAndIdempotent(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Procedure{}, &models.Debtor{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	proc := models.Procedure{
		UserID:         uuid.New(),
		Reference:      "REF-1",
		Status:         models.ProcedureDraft,
		PrincipalCents: 10000,
		Debtor:         models.Debtor{Name: "ACME"},
	}
	if err := db.Create(&proc).Error; err != nil {
		t.Fatal(err)
	}

	payID := uuid.New()
	ok, err := Advance(db, proc.ID, models.ProcedureDraft, models.ProcedureNew,
		map[string]any{"payment_id": payID})
	if err != nil || !ok {
		t.Fatalf("first advance: ok=%v err=%v", ok, err)
	}

	// A retry of the same transition finds zero matching rows.
	ok, err = Advance(db, proc.ID, models.ProcedureDraft, models.ProcedureNew, nil)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("second advance should report no rows affected")
	}

	var got models.Procedure
	if err := db.First(&got, "id = ?", proc.ID).Error; err != nil {
		t.Fatal(err)
	}
	if got.Status != models.ProcedureNew {
		t.Fatalf("status = %s, want NEW", got.Status)
	}
	if got.PaymentID == nil || *got.PaymentID != payID {
		t.Fatalf("payment_id not written with the transition: %v", got.PaymentID)
	}
}

func Test_Advance_RejectsIllegalTransition(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Procedure{}, &models.Debtor{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	proc := models.Procedure{
		UserID: uuid.New(), Reference: "REF-2",
		Status: models.ProcedureDraft, PrincipalCents: 100,
		Debtor: models.Debtor{Name: "ACME"},
	}
	if err := db.Create(&proc).Error; err != nil {
		t.Fatal(err)
	}

	// DRAFT→SENT is not an edge; nothing must change.
	ok, err := Advance(db, proc.ID, models.ProcedureDraft, models.ProcedureSent, nil)
	if err != nil || ok {
		t.Fatalf("illegal transition: ok=%v err=%v", ok, err)
	}

	var got models.Procedure
	_ = db.First(&got, "id = ?", proc.ID).Error
	if got.Status != models.ProcedureDraft {
		t.Fatalf("status should stay DRAFT, got %s", got.Status)
	}
}
