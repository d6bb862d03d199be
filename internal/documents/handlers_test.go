package documents

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/fairpay-app/fairpay-backend/pkg/models"
)

/* ============================================================================
   Helpers
   ============================================================================ */

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.User{}, &models.Procedure{}, &models.Debtor{}, &models.Document{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// memStore is an in-memory ObjectStore that records every call.
type memStore struct {
	objects   map[string][]byte
	uploadErr error
	deleteErr error
	deleted   []string
}

func newMemStore() *memStore {
	return &memStore{objects: map[string][]byte{}}
}

func (m *memStore) MakeObjectKey(userID, docType, filename string) string {
	return "user/" + userID + "/" + docType + "/" + filename
}

func (m *memStore) Upload(key string, r io.Reader, contentType string, size int64) error {
	if m.uploadErr != nil {
		return m.uploadErr
	}
	b, _ := io.ReadAll(r)
	m.objects[key] = b
	return nil
}

func (m *memStore) Delete(key string) error {
	m.deleted = append(m.deleted, key)
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.objects, key)
	return nil
}

func (m *memStore) PublicURL(key string) string {
	return "https://cdn.test/" + key
}

func (m *memStore) SignedURL(key string, expiresInSeconds int) (string, error) {
	return "https://cdn.test/signed/" + key, nil
}

func injectAuth(userID uuid.UUID) fiber.Handler {
	id := userID.String()
	return func(c *fiber.Ctx) error {
		c.Locals("userID", id)
		return c.Next()
	}
}

func newTestApp(h *Handler, userID uuid.UUID) *fiber.App {
	app := fiber.New(fiber.Config{BodyLimit: 12 * 1024 * 1024})
	app.Use(injectAuth(userID))
	app.Post("/api/files/upload", h.Upload)
	app.Get("/api/procedures/:id/documents", h.ListByProcedure)
	app.Delete("/api/documents/:documentId", h.Delete)
	app.Get("/api/documents/:documentId/signed-url", h.GetSignedURL)
	return app
}

type seedResult struct {
	OwnerID uuid.UUID
	ProcID  uuid.UUID
}

func seedProcedure(t *testing.T, db *gorm.DB) seedResult {
	t.Helper()
	ownerID := uuid.New()
	if err := db.Create(&models.User{
		ID: ownerID, Email: "o_" + ownerID.String()[:8] + "@x.com", Role: models.RoleUser,
	}).Error; err != nil {
		t.Fatal(err)
	}
	proc := models.Procedure{
		UserID: ownerID, Reference: "REF", Status: models.ProcedureNew,
		PrincipalCents: 1000, Debtor: models.Debtor{Name: "ACME"},
	}
	if err := db.Create(&proc).Error; err != nil {
		t.Fatal(err)
	}
	return seedResult{OwnerID: ownerID, ProcID: proc.ID}
}

// multipartBody builds a multipart upload with an explicit part content type.
func multipartBody(t *testing.T, filename, contentType string, payload []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	hdr := textproto.MIMEHeader{}
	hdr.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	hdr.Set("Content-Type", contentType)
	part, err := w.CreatePart(hdr)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write(payload); err != nil {
		t.Fatal(err)
	}
	for k, v := range fields {
		_ = w.WriteField(k, v)
	}
	_ = w.Close()
	return buf, w.FormDataContentType()
}

/* ============================================================================
   Tests — upload validation
   ============================================================================ */

func Test_Upload_RejectsDisallowedMime(t *testing.T) {
	db := openTestDB(t)
	s := seedProcedure(t, db)
	store := newMemStore()
	app := newTestApp(NewHandler(db, store), s.OwnerID)

	body, ct := multipartBody(t, "notes.txt", "text/plain", []byte("hello"),
		map[string]string{"type": "contract", "procedureId": s.ProcID.String()})
	req := httptest.NewRequest("POST", "/api/files/upload", body)
	req.Header.Set("Content-Type", ct)
	resp, _ := app.Test(req)
	if resp.StatusCode != 400 {
		t.Fatalf("want 400, got %d", resp.StatusCode)
	}
	if len(store.objects) != 0 {
		t.Fatal("nothing may reach storage on a rejected upload")
	}
}

func Test_Upload_RejectsOversizedFile(t *testing.T) {
	db := openTestDB(t)
	s := seedProcedure(t, db)
	store := newMemStore()
	app := newTestApp(NewHandler(db, store), s.OwnerID)

	big := bytes.Repeat([]byte{0xFF}, maxFileSize+1)
	body, ct := multipartBody(t, "scan.pdf", "application/pdf", big,
		map[string]string{"type": "contract", "procedureId": s.ProcID.String()})
	req := httptest.NewRequest("POST", "/api/files/upload", body)
	req.Header.Set("Content-Type", ct)
	resp, _ := app.Test(req)
	if resp.StatusCode != 400 {
		t.Fatalf("want 400, got %d", resp.StatusCode)
	}
	if len(store.objects) != 0 {
		t.Fatal("oversized file must never reach storage")
	}
}

func Test_Upload_RejectsInvoiceType(t *testing.T) {
	db := openTestDB(t)
	s := seedProcedure(t, db)
	store := newMemStore()
	app := newTestApp(NewHandler(db, store), s.OwnerID)

	body, ct := multipartBody(t, "facture.pdf", "application/pdf", []byte("%PDF-1.4"),
		map[string]string{"type": "invoice", "procedureId": s.ProcID.String()})
	req := httptest.NewRequest("POST", "/api/files/upload", body)
	req.Header.Set("Content-Type", ct)
	resp, _ := app.Test(req)
	if resp.StatusCode != 400 {
		t.Fatalf("want 400, got %d", resp.StatusCode)
	}
}

func Test_Upload_ForbiddenForStrangers(t *testing.T) {
	db := openTestDB(t)
	s := seedProcedure(t, db)
	stranger := uuid.New()
	_ = db.Create(&models.User{ID: stranger, Email: "s@x.com", Role: models.RoleUser}).Error
	app := newTestApp(NewHandler(db, newMemStore()), stranger)

	body, ct := multipartBody(t, "doc.pdf", "application/pdf", []byte("%PDF-1.4"),
		map[string]string{"type": "contract", "procedureId": s.ProcID.String()})
	req := httptest.NewRequest("POST", "/api/files/upload", body)
	req.Header.Set("Content-Type", ct)
	resp, _ := app.Test(req)
	if resp.StatusCode != 403 {
		t.Fatalf("want 403, got %d", resp.StatusCode)
	}
}

func Test_Upload_StoresObjectAndRow(t *testing.T) {
	db := openTestDB(t)
	s := seedProcedure(t, db)
	store := newMemStore()
	app := newTestApp(NewHandler(db, store), s.OwnerID)

	payload := []byte{0x89, 'P', 'N', 'G'}
	body, ct := multipartBody(t, "preuve.png", "image/png", payload,
		map[string]string{"type": "unpaid_proof", "procedureId": s.ProcID.String()})
	req := httptest.NewRequest("POST", "/api/files/upload", body)
	req.Header.Set("Content-Type", ct)
	resp, _ := app.Test(req)
	if resp.StatusCode != 200 {
		t.Fatalf("want 200, got %d", resp.StatusCode)
	}

	var out struct {
		FilePath string `json:"filePath"`
		MimeType string `json:"mimeType"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	if out.MimeType != "image/png" || out.FilePath == "" {
		t.Fatalf("unexpected response: %#v", out)
	}

	if len(store.objects) != 1 {
		t.Fatalf("want 1 stored object, got %d", len(store.objects))
	}
	var doc models.Document
	if err := db.First(&doc, "procedure_id = ?", s.ProcID).Error; err != nil {
		t.Fatalf("row missing: %v", err)
	}
	if doc.Type != models.DocumentUnpaidProof || doc.FileSize != int64(len(payload)) {
		t.Fatalf("row mismatch: %#v", doc)
	}
	if _, ok := store.objects[doc.Key]; !ok {
		t.Fatalf("row key %q not found in storage", doc.Key)
	}
}

func Test_Upload_StorageFailureLeavesNoRow(t *testing.T) {
	db := openTestDB(t)
	s := seedProcedure(t, db)
	store := newMemStore()
	store.uploadErr = errors.New("bucket down")
	app := newTestApp(NewHandler(db, store), s.OwnerID)

	body, ct := multipartBody(t, "doc.pdf", "application/pdf", []byte("%PDF-1.4"),
		map[string]string{"type": "contract", "procedureId": s.ProcID.String()})
	req := httptest.NewRequest("POST", "/api/files/upload", body)
	req.Header.Set("Content-Type", ct)
	resp, _ := app.Test(req)
	if resp.StatusCode != 500 {
		t.Fatalf("want 500, got %d", resp.StatusCode)
	}

	var cnt int64
	_ = db.Model(&models.Document{}).Count(&cnt).Error
	if cnt != 0 {
		t.Fatal("no row may exist when the object was never stored")
	}
}

/* ============================================================================
   Tests — deletion policy
   ============================================================================ */

func Test_Delete_InvoiceIsProtected(t *testing.T) {
	db := openTestDB(t)
	s := seedProcedure(t, db)
	store := newMemStore()
	doc := models.Document{
		ProcedureID: s.ProcID, UserID: s.OwnerID, Type: models.DocumentInvoice,
		FileName: "facture-001.pdf", FilePath: "https://cdn.test/x", Key: "x",
		FileSize: 10, MimeType: "application/pdf",
	}
	_ = db.Create(&doc).Error
	app := newTestApp(NewHandler(db, store), s.OwnerID)

	resp, _ := app.Test(httptest.NewRequest("DELETE", "/api/documents/"+doc.ID.String(), nil))
	if resp.StatusCode != 403 {
		t.Fatalf("want 403, got %d", resp.StatusCode)
	}

	var cnt int64
	_ = db.Model(&models.Document{}).Where("id = ?", doc.ID).Count(&cnt).Error
	if cnt != 1 {
		t.Fatal("invoice row must survive")
	}
	if len(store.deleted) != 0 {
		t.Fatal("storage must not be touched for a protected document")
	}
}

func Test_Delete_RowGoesEvenIfStorageFails(t *testing.T) {
	db := openTestDB(t)
	s := seedProcedure(t, db)
	store := newMemStore()
	store.deleteErr = errors.New("object store unavailable")
	doc := models.Document{
		ProcedureID: s.ProcID, UserID: s.OwnerID, Type: models.DocumentContract,
		FileName: "contrat.pdf", FilePath: "https://cdn.test/y", Key: "y",
		FileSize: 10, MimeType: "application/pdf",
	}
	_ = db.Create(&doc).Error
	app := newTestApp(NewHandler(db, store), s.OwnerID)

	resp, _ := app.Test(httptest.NewRequest("DELETE", "/api/documents/"+doc.ID.String(), nil))
	if resp.StatusCode != 200 {
		t.Fatalf("want 200, got %d", resp.StatusCode)
	}

	var cnt int64
	_ = db.Model(&models.Document{}).Where("id = ?", doc.ID).Count(&cnt).Error
	if cnt != 0 {
		t.Fatal("row should be gone despite the storage failure")
	}
}

func Test_GetSignedURL_OwnerGetsTimeLimitedLink(t *testing.T) {
	db := openTestDB(t)
	s := seedProcedure(t, db)
	doc := models.Document{
		ProcedureID: s.ProcID, UserID: s.OwnerID, Type: models.DocumentContract,
		FileName: "contrat.pdf", FilePath: "https://cdn.test/z", Key: "z",
		FileSize: 10, MimeType: "application/pdf",
	}
	_ = db.Create(&doc).Error
	app := newTestApp(NewHandler(db, newMemStore()), s.OwnerID)

	resp, _ := app.Test(httptest.NewRequest("GET", "/api/documents/"+doc.ID.String()+"/signed-url", nil))
	if resp.StatusCode != 200 {
		t.Fatalf("want 200, got %d", resp.StatusCode)
	}
	var out struct {
		URL       string `json:"url"`
		ExpiresIn int    `json:"expiresIn"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	if out.URL != "https://cdn.test/signed/z" || out.ExpiresIn != signedURLTTL {
		t.Fatalf("unexpected response: %#v", out)
	}
}

func Test_GetSignedURL_ForbiddenForStrangers(t *testing.T) {
	db := openTestDB(t)
	s := seedProcedure(t, db)
	doc := models.Document{
		ProcedureID: s.ProcID, UserID: s.OwnerID, Type: models.DocumentContract,
		FileName: "contrat.pdf", FilePath: "https://cdn.test/w", Key: "w",
		FileSize: 10, MimeType: "application/pdf",
	}
	_ = db.Create(&doc).Error
	stranger := uuid.New()
	_ = db.Create(&models.User{ID: stranger, Email: "s2@x.com", Role: models.RoleUser}).Error
	app := newTestApp(NewHandler(db, newMemStore()), stranger)

	resp, _ := app.Test(httptest.NewRequest("GET", "/api/documents/"+doc.ID.String()+"/signed-url", nil))
	if resp.StatusCode != 403 {
		t.Fatalf("want 403, got %d", resp.StatusCode)
	}
}

func Test_ListByProcedure_OrderedOldestFirst(t *testing.T) {
	db := openTestDB(t)
	s := seedProcedure(t, db)
	for _, name := range []string{"a.pdf", "b.pdf"} {
		_ = db.Create(&models.Document{
			ProcedureID: s.ProcID, UserID: s.OwnerID, Type: models.DocumentOther,
			FileName: name, FilePath: "https://cdn.test/" + name, Key: name,
			FileSize: 1, MimeType: "application/pdf",
		}).Error
	}
	app := newTestApp(NewHandler(db, newMemStore()), s.OwnerID)

	resp, _ := app.Test(httptest.NewRequest("GET", "/api/procedures/"+s.ProcID.String()+"/documents", nil))
	if resp.StatusCode != 200 {
		t.Fatalf("got %d", resp.StatusCode)
	}
	var docs []models.Document
	_ = json.NewDecoder(resp.Body).Decode(&docs)
	if len(docs) != 2 {
		t.Fatalf("want 2 documents, got %d", len(docs))
	}
}
