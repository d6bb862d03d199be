package procedures

import (
	"errors"
	"log"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fairpay-app/fairpay-backend/internal/auth"
	"github.com/fairpay-app/fairpay-backend/internal/mailer"
	"github.com/fairpay-app/fairpay-backend/pkg/models"
	"github.com/fairpay-app/fairpay-backend/pkg/sanitize"
	"github.com/fairpay-app/fairpay-backend/pkg/utils"
	"github.com/fairpay-app/fairpay-backend/pkg/validation"
)

// ===== DTOs =====

type CreateProcedureRequest struct {
	Reference      string `json:"reference" validate:"required,max=60"`
	PrincipalCents int64  `json:"principal_cents" validate:"required,gt=0"`
	PenaltyCents   int64  `json:"penalty_cents" validate:"gte=0"`

	DebtorName    string `json:"debtor_name" validate:"required,max=120"`
	DebtorSiren   string `json:"debtor_siren" validate:"omitempty,siren"`
	DebtorEmail   string `json:"debtor_email" validate:"omitempty,email,max=120"`
	DebtorAddress string `json:"debtor_address" validate:"omitempty,max=400"`
}

type ProcedureListItem struct {
	ID             uuid.UUID              `json:"id"`
	Reference      string                 `json:"reference"`
	Status         models.ProcedureStatus `json:"status"`
	PrincipalCents int64                  `json:"principal_cents"`
	CreatedAt      time.Time              `json:"created_at"`
	Documents      int64                  `json:"documents"`
}

type PageProcedures struct {
	Page     int                 `json:"page"`
	PageSize int                 `json:"pageSize"`
	Total    int64               `json:"total"`
	Pages    int                 `json:"pages"`
	Items    []ProcedureListItem `json:"items"`
}

// ObjectCleaner removes stored objects when their rows go away.
// storage.Supabase satisfies it.
type ObjectCleaner interface {
	BulkDelete(keys []string) error
}

type Handler struct {
	db      *gorm.DB
	mail    mailer.Sender
	cleaner ObjectCleaner
}

func NewHandler(db *gorm.DB, mail mailer.Sender, cleaner ObjectCleaner) *Handler {
	return &Handler{db: db, mail: mail, cleaner: cleaner}
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

// Create Procedure godoc
// @Summary      Create procedure
// @Description  User opens a new collection procedure (status DRAFT) with its debtor
// @Tags         procedures
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body  CreateProcedureRequest  true  "Procedure payload"
// @Success      201  {object}  map[string]string  "id"
// @Failure      400  {object}  models.ValidationErrorResponse
// @Failure      401  {object}  models.ErrorResponse
// @Router       /procedures [post]
func (h *Handler) Create(c *fiber.Ctx) error {
	var in CreateProcedureRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	userUUID, _ := uuid.Parse(auth.MustUserID(c))
	proc := models.Procedure{
		UserID:         userUUID,
		Reference:      strings.TrimSpace(in.Reference),
		Status:         models.ProcedureDraft,
		PrincipalCents: in.PrincipalCents,
		PenaltyCents:   in.PenaltyCents,
		Debtor: models.Debtor{
			Name:    strings.TrimSpace(in.DebtorName),
			Siren:   strings.ReplaceAll(strings.TrimSpace(in.DebtorSiren), " ", ""),
			Email:   strings.ToLower(strings.TrimSpace(in.DebtorEmail)),
			Address: strings.TrimSpace(in.DebtorAddress),
		},
	}
	if err := h.db.Create(&proc).Error; err != nil {
		return fiber.ErrInternalServerError
	}

	utils.LogProcedureHistory(c.Context(), h.db, proc.ID, userUUID, "created",
		"", models.ProcedureDraft, "")

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": proc.ID})
}

// List My Procedures godoc
// @Summary      List my procedures
// @Description  User lists their own procedures (paginated, with document counts)
// @Tags         procedures
// @Security     BearerAuth
// @Produce      json
// @Param        page      query int false "page"
// @Param        pageSize  query int false "pageSize"
// @Success      200  {object}  PageProcedures
// @Failure      401  {object}  models.ErrorResponse
// @Router       /procedures/mine [get]
func (h *Handler) ListMine(c *fiber.Ctx) error {
	userID := auth.MustUserID(c)
	page, size := parsePage(c)

	var total int64
	if err := h.db.Model(&models.Procedure{}).
		Where("user_id = ?", userID).
		Count(&total).Error; err != nil {
		return fiber.ErrInternalServerError
	}

	rows := make([]ProcedureListItem, 0, size)
	if err := h.db.
		Table("procedures").
		Select(`procedures.id, procedures.reference, procedures.status,
          procedures.principal_cents, procedures.created_at,
          COUNT(documents.id) AS documents`).
		Joins("LEFT JOIN documents ON documents.procedure_id = procedures.id").
		Where("procedures.user_id = ?", userID).
		Group("procedures.id").
		Order("procedures.created_at DESC").
		Offset((page - 1) * size).Limit(size).
		Scan(&rows).Error; err != nil {
		return fiber.ErrInternalServerError
	}

	if rows == nil {
		rows = []ProcedureListItem{}
	}

	return c.JSON(PageProcedures{
		Page:     page,
		PageSize: size,
		Total:    total,
		Pages:    int(math.Ceil(float64(total) / float64(size))),
		Items:    rows,
	})
}

// loadForViewer returns the procedure if the caller owns it or is its
// assigned lawyer/paralegal; otherwise 404/403 errors.
func (h *Handler) loadForViewer(c *fiber.Ctx, id string) (*models.Procedure, error) {
	userID := auth.MustUserID(c)

	var proc models.Procedure
	err := h.db.
		Preload("Debtor").
		Preload("Documents", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		First(&proc, "id = ?", id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fiber.ErrNotFound
		}
		return nil, fiber.ErrInternalServerError
	}

	if proc.UserID.String() == userID {
		return &proc, nil
	}
	if proc.LawyerID != nil && proc.LawyerID.String() == userID {
		return &proc, nil
	}
	// Paralegals of the assigned lawyer's office are not modeled; anyone else
	// with a lawyer-side role gets read access only to unassigned listings.
	return nil, fiber.ErrForbidden
}

// Get procedure detail
// @Summary      Procedure detail
// @Description  Owner or assigned lawyer gets procedure detail (with debtor & documents)
// @Tags         procedures
// @Security     BearerAuth
// @Produce      json
// @Param        id   path string true "procedure id (uuid)"
// @Success      200  {object}  models.Procedure
// @Failure      403  {object}  models.ErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /procedures/{id} [get]
func (h *Handler) GetDetail(c *fiber.Ctx) error {
	proc, err := h.loadForViewer(c, c.Params("id"))
	if err != nil {
		return err
	}
	if proc.Documents == nil {
		proc.Documents = []models.Document{}
	}
	return c.JSON(proc)
}

// DeleteDraft godoc
// @Summary      Delete a draft procedure
// @Description  Owner discards an unpaid DRAFT; its documents and debtor go with it, stored objects are cleaned best-effort
// @Tags         procedures
// @Security     BearerAuth
// @Produce      json
// @Param        id   path string true "procedure id (uuid)"
// @Success      200  {object}  map[string]any
// @Failure      403  {object}  models.ErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Failure      409  {object}  models.ErrorResponse  "only DRAFT procedures can be deleted"
// @Router       /procedures/{id} [delete]
func (h *Handler) DeleteDraft(c *fiber.Ctx) error {
	userID := auth.MustUserID(c)
	procID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid procedure id")
	}

	var proc models.Procedure
	if err := h.db.First(&proc, "id = ?", procID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fiber.ErrNotFound
		}
		return fiber.ErrInternalServerError
	}
	if proc.UserID.String() != userID {
		return fiber.ErrForbidden
	}
	if proc.Status != models.ProcedureDraft {
		return fiber.NewError(fiber.StatusConflict, "only DRAFT procedures can be deleted")
	}

	// Collected before the rows go; the objects are removed after commit.
	var keys []string
	if err := h.db.Model(&models.Document{}).
		Where("procedure_id = ?", procID).Pluck("key", &keys).Error; err != nil {
		return fiber.ErrInternalServerError
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		// Conditional delete: a concurrent payment may have moved the
		// procedure past DRAFT since the check above.
		res := tx.Where("id = ? AND status = ?", procID, models.ProcedureDraft).
			Delete(&models.Procedure{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fiber.NewError(fiber.StatusConflict, "only DRAFT procedures can be deleted")
		}
		if err := tx.Where("procedure_id = ?", procID).Delete(&models.Document{}).Error; err != nil {
			return err
		}
		if err := tx.Where("procedure_id = ?", procID).Delete(&models.Debtor{}).Error; err != nil {
			return err
		}
		return tx.Where("procedure_id = ?", procID).Delete(&models.ProcedureHistory{}).Error
	})
	if err != nil {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return fe
		}
		return fiber.ErrInternalServerError
	}

	// Best-effort: a leaked object beats a resurrected row.
	if h.cleaner != nil && len(keys) > 0 {
		if err := h.cleaner.BulkDelete(keys); err != nil {
			log.Printf("bulk delete of %d objects for %s failed (ignored): %v", len(keys), procID, err)
		}
	}

	return c.JSON(fiber.Map{"ok": true})
}

// ====== Lawyer-side listings ======

type PendingItem struct {
	ID             uuid.UUID `json:"id"`
	Reference      string    `json:"reference"`
	PrincipalCents int64     `json:"principal_cents"`
	CreatedAt      time.Time `json:"created_at"`
	DebtorName     string    `json:"debtor_name"`
	Preview        string    `json:"preview"`
}

// Pending godoc
// @Summary      Pending procedures (anonymized)
// @Description  Lawyer/paralegal browses unassigned NEW procedures; debtor contact is redacted
// @Tags         procedures
// @Security     BearerAuth
// @Produce      json
// @Param        page      query int false "page"
// @Param        pageSize  query int false "pageSize"
// @Success      200  {object}  map[string]any
// @Failure      401  {object}  models.ErrorResponse
// @Router       /procedures/pending [get]
func (h *Handler) Pending(c *fiber.Ctx) error {
	page, size := parsePage(c)

	dbq := h.db.Model(&models.Procedure{}).
		Where("status = ? AND lawyer_id IS NULL", models.ProcedureNew)

	var total int64
	if err := dbq.Count(&total).Error; err != nil {
		return fiber.ErrInternalServerError
	}

	var list []models.Procedure
	if err := dbq.Preload("Debtor").
		Order("created_at ASC"). // oldest first: they have waited longest
		Offset((page - 1) * size).
		Limit(size).
		Find(&list).Error; err != nil {
		return fiber.ErrInternalServerError
	}

	items := make([]PendingItem, 0, len(list))
	for _, p := range list {
		contact := strings.TrimSpace(p.Debtor.Email + " " + p.Debtor.Address)
		items = append(items, PendingItem{
			ID:             p.ID,
			Reference:      p.Reference,
			PrincipalCents: p.PrincipalCents,
			CreatedAt:      p.CreatedAt,
			DebtorName:     p.Debtor.Name,
			Preview:        sanitize.Summary(sanitize.RedactPII(contact), 240),
		})
	}

	return c.JSON(fiber.Map{
		"page": page, "pageSize": size, "total": total,
		"pages": int(math.Ceil(float64(total) / float64(size))),
		"items": items,
	})
}

// Assign godoc
// @Summary      Claim a procedure
// @Description  Lawyer claims an unassigned NEW procedure; first claim wins
// @Tags         procedures
// @Security     BearerAuth
// @Produce      json
// @Param        id   path string true "procedure id (uuid)"
// @Success      200  {object}  map[string]any
// @Failure      404  {object}  models.ErrorResponse
// @Failure      409  {object}  models.ErrorResponse  "already claimed"
// @Router       /procedures/{id}/assign [post]
func (h *Handler) Assign(c *fiber.Ctx) error {
	lawyerUUID, _ := uuid.Parse(auth.MustUserID(c))
	procID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid procedure id")
	}

	// First claim wins: conditional update, no read-then-write.
	res := h.db.Model(&models.Procedure{}).
		Where("id = ? AND status = ? AND lawyer_id IS NULL", procID, models.ProcedureNew).
		Update("lawyer_id", lawyerUUID)
	if res.Error != nil {
		return fiber.ErrInternalServerError
	}
	if res.RowsAffected == 0 {
		var proc models.Procedure
		if err := h.db.First(&proc, "id = ?", procID).Error; err != nil {
			return fiber.ErrNotFound
		}
		return fiber.NewError(fiber.StatusConflict, "procedure already claimed or not claimable")
	}

	utils.LogProcedureHistory(c.Context(), h.db, procID, lawyerUUID, "assigned",
		models.ProcedureNew, models.ProcedureNew, "")

	return c.JSON(fiber.Map{"ok": true})
}

// RequestInjonction godoc
// @Summary      Request a payment injunction
// @Description  Assigned lawyer moves a NEW procedure into the statutory injunction chain
// @Tags         procedures
// @Security     BearerAuth
// @Produce      json
// @Param        id   path string true "procedure id (uuid)"
// @Success      200  {object}  map[string]any
// @Failure      403  {object}  models.ErrorResponse
// @Failure      409  {object}  models.ErrorResponse
// @Router       /procedures/{id}/request-injonction [post]
func (h *Handler) RequestInjonction(c *fiber.Ctx) error {
	lawyerID := auth.MustUserID(c)
	procID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid procedure id")
	}

	var proc models.Procedure
	if err := h.db.First(&proc, "id = ?", procID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fiber.ErrNotFound
		}
		return fiber.ErrInternalServerError
	}
	if proc.LawyerID == nil || proc.LawyerID.String() != lawyerID {
		return fiber.ErrForbidden
	}

	advanced, err := Advance(h.db, procID, models.ProcedureNew, models.ProcedureInjonctionDemandee, nil)
	if err != nil {
		return fiber.ErrInternalServerError
	}
	if !advanced {
		return fiber.NewError(fiber.StatusConflict, "procedure is not in a state allowing an injunction request")
	}

	actorUUID, _ := uuid.Parse(lawyerID)
	utils.LogProcedureHistory(c.Context(), h.db, procID, actorUUID, "injonction_requested",
		models.ProcedureNew, models.ProcedureInjonctionDemandee, "")

	return c.JSON(fiber.Map{"ok": true, "status": models.ProcedureInjonctionDemandee})
}

/* ============================== Send LRAR =============================== */

// HasMergedDocument reports whether the merged formal-notice letter exists.
// Primary signal is the explicit merged_notice type; the filename match is a
// legacy fallback for rows imported before the type existed.
func HasMergedDocument(db *gorm.DB, procedureID uuid.UUID) bool {
	var cnt int64
	db.Model(&models.Document{}).
		Where("procedure_id = ?", procedureID).
		Where("type = ? OR LOWER(file_name) LIKE ? OR LOWER(file_name) LIKE ?",
			models.DocumentMergedNotice, "%fusionn%", "%merged%").
		Count(&cnt)
	return cnt > 0
}

// SendLrar godoc
// @Summary      Send the formal notice (LRAR)
// @Description  Lawyer dispatches the registered letter; requires the merged letter and no prior send
// @Tags         procedures
// @Security     BearerAuth
// @Produce      json
// @Param        id   path string true "procedure id (uuid)"
// @Success      200  {object}  map[string]any
// @Failure      400  {object}  models.ErrorResponse  "merged letter missing"
// @Failure      403  {object}  models.ErrorResponse
// @Failure      409  {object}  models.ErrorResponse  "already sent"
// @Router       /procedures/{id}/send-lrar [post]
func (h *Handler) SendLrar(c *fiber.Ctx) error {
	lawyerID := auth.MustUserID(c)
	procID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid procedure id")
	}

	var proc models.Procedure
	if err := h.db.Preload("Debtor").First(&proc, "id = ?", procID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fiber.ErrNotFound
		}
		return fiber.ErrInternalServerError
	}
	if proc.LawyerID == nil || proc.LawyerID.String() != lawyerID {
		return fiber.ErrForbidden
	}
	if proc.LrarSentAt != nil {
		return fiber.NewError(fiber.StatusConflict, "formal notice already sent")
	}
	if !HasMergedDocument(h.db, procID) {
		return fiber.NewError(fiber.StatusBadRequest, "merged notice letter is missing")
	}

	now := time.Now()
	advanced, err := Advance(h.db, procID, proc.Status, models.ProcedureSent,
		map[string]any{"lrar_sent_at": now})
	if err != nil {
		return fiber.ErrInternalServerError
	}
	if !advanced {
		return fiber.NewError(fiber.StatusConflict, "procedure cannot be sent from its current status")
	}

	actorUUID, _ := uuid.Parse(lawyerID)
	utils.LogProcedureHistory(c.Context(), h.db, procID, actorUUID, "lrar_sent",
		proc.Status, models.ProcedureSent, "")

	// Two best-effort notifications: the creditor and the debtor.
	var owner models.User
	if err := h.db.First(&owner, "id = ?", proc.UserID).Error; err == nil {
		subject, html := mailer.LrarSentOwnerBody(proc.Reference, "")
		mailer.SendAsync(h.mail, owner.Email, subject, html)

		if proc.Debtor.Email != "" {
			creditor := strings.TrimSpace(owner.Company)
			if creditor == "" {
				creditor = strings.TrimSpace(owner.FirstName + " " + owner.LastName)
			}
			subject, html = mailer.LrarSentDebtorBody(proc.Reference, creditor)
			mailer.SendAsync(h.mail, proc.Debtor.Email, subject, html)
		}
	}

	return c.JSON(fiber.Map{"ok": true, "status": models.ProcedureSent, "lrar_sent_at": now})
}
