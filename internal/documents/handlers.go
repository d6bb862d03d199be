package documents

import (
	"errors"
	"io"
	"log"
	"mime"
	"path/filepath"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fairpay-app/fairpay-backend/internal/auth"
	"github.com/fairpay-app/fairpay-backend/pkg/models"
)

const maxFileSize = 10 * 1024 * 1024 // 10MB

// allowedMime is the upload allow-list. Anything else is rejected before a
// single byte reaches storage.
var allowedMime = map[string]bool{
	"application/pdf": true,
	"image/png":       true,
	"image/jpeg":      true,
}

// signedURLTTL is how long a download link stays valid, in seconds.
const signedURLTTL = 600

// ObjectStore is the storage seam; storage.Supabase satisfies it.
type ObjectStore interface {
	MakeObjectKey(userID, docType, filename string) string
	Upload(key string, r io.Reader, contentType string, size int64) error
	Delete(key string) error
	PublicURL(key string) string
	SignedURL(key string, expiresInSeconds int) (string, error)
}

type Handler struct {
	db    *gorm.DB
	store ObjectStore
}

func NewHandler(db *gorm.DB, store ObjectStore) *Handler {
	return &Handler{db: db, store: store}
}

// canTouchProcedure reports whether the caller owns the procedure or is its
// assigned lawyer.
func canTouchProcedure(proc *models.Procedure, userID string) bool {
	if proc.UserID.String() == userID {
		return true
	}
	return proc.LawyerID != nil && proc.LawyerID.String() == userID
}

// Upload godoc
// @Summary      Upload a document
// @Description  Multipart upload (PDF/PNG/JPEG, max 10MB) attached to a procedure
// @Tags         documents
// @Security     BearerAuth
// @Accept       multipart/form-data
// @Produce      json
// @Param        file         formData  file    true  "PDF/PNG/JPEG"
// @Param        type         formData  string  true  "document type"
// @Param        procedureId  formData  string  true  "procedure id (uuid)"
// @Success      200  {object}  map[string]any  "fileName, filePath, fileSize, mimeType, type"
// @Failure      400  {object}  models.ErrorResponse
// @Failure      403  {object}  models.ErrorResponse
// @Failure      500  {object}  models.ErrorResponse
// @Router       /files/upload [post]
func (h *Handler) Upload(c *fiber.Ctx) error {
	userID := auth.MustUserID(c)

	fh, err := c.FormFile("file")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "file is required")
	}

	docType := models.DocumentType(c.FormValue("type"))
	switch docType {
	case models.DocumentContract, models.DocumentUnpaidProof, models.DocumentReminder,
		models.DocumentMergedNotice, models.DocumentOther:
		// ok
	case models.DocumentInvoice:
		// Invoices are produced by the billing flow, never uploaded by hand.
		return fiber.NewError(fiber.StatusBadRequest, "invoice documents cannot be uploaded")
	default:
		return fiber.NewError(fiber.StatusBadRequest, "unknown document type")
	}

	procID := c.FormValue("procedureId")
	var proc models.Procedure
	if err := h.db.First(&proc, "id = ?", procID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.ErrNotFound
		}
		return fiber.ErrInternalServerError
	}
	if !canTouchProcedure(&proc, userID) {
		return fiber.ErrForbidden
	}

	// Validation order: cheap shape checks before any storage call.
	if fh.Size <= 0 {
		return fiber.NewError(fiber.StatusBadRequest, "empty file")
	}
	if fh.Size > maxFileSize {
		return fiber.NewError(fiber.StatusBadRequest, "max 10MB per file")
	}
	ct := fh.Header.Get("Content-Type")
	if ct == "" {
		ct = mime.TypeByExtension(filepath.Ext(fh.Filename))
	}
	if !allowedMime[ct] {
		return fiber.NewError(fiber.StatusBadRequest, "only PDF, PNG or JPEG are allowed")
	}

	f, err := fh.Open()
	if err != nil {
		return fiber.ErrInternalServerError
	}
	defer f.Close()

	key := h.store.MakeObjectKey(userID, string(docType), fh.Filename)
	if err := h.store.Upload(key, f, ct, fh.Size); err != nil {
		log.Printf("document upload to storage failed: %v", err)
		return fiber.NewError(fiber.StatusInternalServerError, "upload failed")
	}

	userUUID, _ := uuid.Parse(userID)
	rec := models.Document{
		ProcedureID: proc.ID,
		UserID:      userUUID,
		Type:        docType,
		FileName:    fh.Filename,
		FilePath:    h.store.PublicURL(key),
		Key:         key,
		FileSize:    fh.Size,
		MimeType:    ct,
	}
	if err := h.db.Create(&rec).Error; err != nil {
		// Compensating step: the object is orphaned otherwise.
		if derr := h.store.Delete(key); derr != nil {
			log.Printf("orphan cleanup for %s failed (ignored): %v", key, derr)
		}
		return fiber.ErrInternalServerError
	}

	return c.JSON(fiber.Map{
		"fileName": rec.FileName,
		"filePath": rec.FilePath,
		"fileSize": rec.FileSize,
		"mimeType": rec.MimeType,
		"type":     rec.Type,
	})
}

// ListByProcedure godoc
// @Summary      List procedure documents
// @Tags         documents
// @Security     BearerAuth
// @Produce      json
// @Param        id  path  string  true  "procedure id (uuid)"
// @Success      200  {array}   models.Document
// @Failure      403  {object}  models.ErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /procedures/{id}/documents [get]
func (h *Handler) ListByProcedure(c *fiber.Ctx) error {
	userID := auth.MustUserID(c)

	var proc models.Procedure
	if err := h.db.First(&proc, "id = ?", c.Params("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.ErrNotFound
		}
		return fiber.ErrInternalServerError
	}
	if !canTouchProcedure(&proc, userID) {
		return fiber.ErrForbidden
	}

	docs := []models.Document{}
	if err := h.db.Where("procedure_id = ?", proc.ID).
		Order("created_at ASC").Find(&docs).Error; err != nil {
		return fiber.ErrInternalServerError
	}
	return c.JSON(docs)
}

// GetSignedURL godoc
// @Summary      Get a temporary download link
// @Description  Returns a time-limited signed URL for a document in the private bucket
// @Tags         documents
// @Security     BearerAuth
// @Produce      json
// @Param        documentId  path  string  true  "document id (uuid)"
// @Success      200  {object}  map[string]any  "url, expiresIn"
// @Failure      403  {object}  models.ErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /documents/{documentId}/signed-url [get]
func (h *Handler) GetSignedURL(c *fiber.Ctx) error {
	userID := auth.MustUserID(c)

	var doc models.Document
	if err := h.db.Preload("Procedure").First(&doc, "id = ?", c.Params("documentId")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.ErrNotFound
		}
		return fiber.ErrInternalServerError
	}
	if !canTouchProcedure(&doc.Procedure, userID) {
		return fiber.ErrForbidden
	}

	url, err := h.store.SignedURL(doc.Key, signedURLTTL)
	if err != nil {
		log.Printf("signed url for %s failed: %v", doc.Key, err)
		return fiber.NewError(fiber.StatusInternalServerError, "could not sign url")
	}

	return c.JSON(fiber.Map{
		"url":       url,
		"expiresIn": signedURLTTL,
	})
}

// Delete godoc
// @Summary      Delete a document
// @Description  Refused for invoice documents. Storage delete is best-effort; the row always goes.
// @Tags         documents
// @Security     BearerAuth
// @Produce      json
// @Param        documentId  path  string  true  "document id (uuid)"
// @Success      200  {object}  map[string]any
// @Failure      403  {object}  models.ErrorResponse  "invoice documents are protected"
// @Failure      404  {object}  models.ErrorResponse
// @Router       /documents/{documentId} [delete]
func (h *Handler) Delete(c *fiber.Ctx) error {
	userID := auth.MustUserID(c)

	var doc models.Document
	if err := h.db.Preload("Procedure").First(&doc, "id = ?", c.Params("documentId")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.ErrNotFound
		}
		return fiber.ErrInternalServerError
	}
	if !canTouchProcedure(&doc.Procedure, userID) {
		return fiber.ErrForbidden
	}

	// Policy check before anything is touched.
	if doc.Type == models.DocumentInvoice {
		return fiber.NewError(fiber.StatusForbidden, "invoice documents cannot be deleted")
	}

	// Best-effort storage delete; leaking an object beats leaking a row.
	if err := h.store.Delete(doc.Key); err != nil {
		log.Printf("storage delete for %s failed (ignored): %v", doc.Key, err)
	}
	if err := h.db.Delete(&models.Document{}, "id = ?", doc.ID).Error; err != nil {
		return fiber.ErrInternalServerError
	}

	return c.JSON(fiber.Map{"ok": true})
}
