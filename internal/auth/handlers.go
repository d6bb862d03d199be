package auth

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/fairpay-app/fairpay-backend/internal/mailer"
	"github.com/fairpay-app/fairpay-backend/pkg/models"
	"github.com/fairpay-app/fairpay-backend/pkg/validation"
)

const codeTTL = 10 * time.Minute

/* ================================ DTOs ================================= */

// Request body for /auth/send-code
type SendCodeRequest struct {
	Email string `json:"email" validate:"required,email,max=120"`
}

// Request body for /auth/verify-code
type VerifyCodeRequest struct {
	Email string `json:"email" validate:"required,email,max=120"`
	Code  string `json:"code" validate:"required,len=6,numeric"`
}

// Request body for PATCH /auth/me
type UpdateProfileRequest struct {
	FirstName string `json:"first_name" validate:"omitempty,max=80"`
	LastName  string `json:"last_name" validate:"omitempty,max=80"`
	Company   string `json:"company" validate:"omitempty,max=120"`
}

// Standard auth response
type AuthResponse struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

/* ============================== Handler ================================= */

type Handler struct {
	db   *gorm.DB
	mail mailer.Sender
}

func NewHandler(db *gorm.DB, mail mailer.Sender) *Handler {
	return &Handler{db: db, mail: mail}
}

// generateCode returns a random 6-digit code, left-padded with zeros.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

/* ============================== Send Code =============================== */

// @Summary      Request a login code
// @Description  Email a 6-digit verification code; creates the user on first request
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body  SendCodeRequest  true  "Email payload"
// @Success      200      {object}  map[string]string  "message"
// @Failure      400      {object}  models.ValidationErrorResponse
// @Router       /auth/send-code [post]
func (h *Handler) SendCode(c *fiber.Ctx) error {
	var in SendCodeRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.ErrBadRequest
	}

	// Normalize email
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))

	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	// Find or create the user: accounts exist from the first code request on.
	var u models.User
	err := h.db.Where("email = ?", in.Email).First(&u).Error
	if err == gorm.ErrRecordNotFound {
		u = models.User{Email: in.Email, Role: models.RoleUser}
		if err := h.db.Create(&u).Error; err != nil {
			return fiber.ErrInternalServerError
		}
	} else if err != nil {
		return fiber.ErrInternalServerError
	}

	code, err := generateCode()
	if err != nil {
		return fiber.ErrInternalServerError
	}
	// Only the hash is stored; the code itself goes out by email.
	hash, _ := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	expires := time.Now().Add(codeTTL)
	if err := h.db.Model(&models.User{}).Where("id = ?", u.ID).
		Updates(map[string]any{
			"verification_code": string(hash),
			"code_expires_at":   expires,
		}).Error; err != nil {
		return fiber.ErrInternalServerError
	}

	subject, html := mailer.VerificationCodeBody(code)
	mailer.SendAsync(h.mail, u.Email, subject, html)

	return c.JSON(fiber.Map{"message": "Verification code sent"})
}

/* ============================= Verify Code ============================== */

// @Summary      Verify a login code
// @Description  Exchange email + 6-digit code for a JWT
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body  VerifyCodeRequest  true  "Verification payload"
// @Success      200      {object}  AuthResponse
// @Failure      400      {object}  models.ValidationErrorResponse
// @Failure      401      {object}  models.ErrorResponse  "wrong or expired code"
// @Failure      404      {object}  models.ErrorResponse  "unknown user"
// @Router       /auth/verify-code [post]
func (h *Handler) VerifyCode(c *fiber.Ctx) error {
	var in VerifyCodeRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.ErrBadRequest
	}

	in.Email = strings.ToLower(strings.TrimSpace(in.Email))

	// Shape checks happen before any database lookup.
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	var u models.User
	if err := h.db.Where("email = ?", in.Email).First(&u).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fiber.ErrNotFound
		}
		return fiber.ErrInternalServerError
	}

	if u.VerificationCode == "" || u.CodeExpiresAt == nil || time.Now().After(*u.CodeExpiresAt) {
		return fiber.NewError(fiber.StatusUnauthorized, "code expired")
	}
	if bcrypt.CompareHashAndPassword([]byte(u.VerificationCode), []byte(in.Code)) != nil {
		return fiber.NewError(fiber.StatusUnauthorized, "invalid code")
	}

	// One-shot code: clear it on success.
	_ = h.db.Model(&models.User{}).Where("id = ?", u.ID).
		Updates(map[string]any{"verification_code": "", "code_expires_at": nil}).Error

	token, err := IssueToken(u.ID.String(), u.Email)
	if err != nil {
		return fiber.ErrInternalServerError
	}
	return c.JSON(AuthResponse{Token: token, User: u})
}

/* ================================= Me =================================== */

// @Summary      Get current user profile
// @Tags         auth
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  models.User
// @Failure      401  {object}  models.ErrorResponse
// @Router       /auth/me [get]
func (h *Handler) Me(c *fiber.Ctx) error {
	var u models.User
	if err := h.db.First(&u, "id = ?", MustUserID(c)).Error; err != nil {
		return fiber.ErrUnauthorized
	}
	return c.JSON(u)
}

// @Summary      Update current user profile
// @Tags         auth
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body  UpdateProfileRequest  true  "Profile fields"
// @Success      200  {object}  models.User
// @Failure      400  {object}  models.ValidationErrorResponse
// @Router       /auth/me [patch]
func (h *Handler) UpdateMe(c *fiber.Ctx) error {
	var in UpdateProfileRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.ErrBadRequest
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	var u models.User
	if err := h.db.First(&u, "id = ?", MustUserID(c)).Error; err != nil {
		return fiber.ErrUnauthorized
	}

	updates := map[string]any{}
	if in.FirstName != "" {
		updates["first_name"] = strings.TrimSpace(in.FirstName)
	}
	if in.LastName != "" {
		updates["last_name"] = strings.TrimSpace(in.LastName)
	}
	if in.Company != "" {
		updates["company"] = strings.TrimSpace(in.Company)
	}
	if len(updates) > 0 {
		if err := h.db.Model(&u).Updates(updates).Error; err != nil {
			return fiber.ErrInternalServerError
		}
	}
	return c.JSON(u)
}
