package payments

import (
	"encoding/json"
	"errors"
	"os"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/stripe/stripe-go/v82"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/fairpay-app/fairpay-backend/internal/auth"
	"github.com/fairpay-app/fairpay-backend/internal/mailer"
	"github.com/fairpay-app/fairpay-backend/internal/procedures"
	"github.com/fairpay-app/fairpay-backend/pkg/models"
	"github.com/fairpay-app/fairpay-backend/pkg/utils"
	"github.com/fairpay-app/fairpay-backend/pkg/validation"
)

/* ================================ DTOs ================================= */

type CreateCheckoutRequest struct {
	ProcedureID string `json:"procedureId" validate:"required,uuid4"`
}

type VerifyPaymentRequest struct {
	SessionID   string `json:"sessionId" validate:"required"`
	ProcedureID string `json:"procedureId" validate:"required,uuid4"`
}

type CreateInjonctionIntentRequest struct {
	ProcedureID string `json:"procedureId" validate:"required,uuid4"`
}

type ConfirmInjonctionRequest struct {
	PaymentIntentID string `json:"paymentIntentId" validate:"required"`
	ProcedureID     string `json:"procedureId" validate:"required,uuid4"`
}

/* ============================== Handler ================================= */

type Handler struct {
	db   *gorm.DB
	gw   Gateway
	mail mailer.Sender
}

func NewHandler(db *gorm.DB, gw Gateway, mail mailer.Sender) *Handler {
	return &Handler{db: db, gw: gw, mail: mail}
}

// loadOwnedProcedure fetches a procedure and enforces ownership by the caller.
func (h *Handler) loadOwnedProcedure(c *fiber.Ctx, procedureID string) (*models.Procedure, *models.User, error) {
	userID := auth.MustUserID(c)

	var proc models.Procedure
	if err := h.db.First(&proc, "id = ?", procedureID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, fiber.ErrNotFound
		}
		return nil, nil, fiber.ErrInternalServerError
	}
	if proc.UserID.String() != userID {
		return nil, nil, fiber.ErrForbidden
	}

	var u models.User
	if err := h.db.First(&u, "id = ?", userID).Error; err != nil {
		return nil, nil, fiber.ErrUnauthorized
	}
	return &proc, &u, nil
}

// metaJSON serializes Stripe metadata for the payment mirror row.
func metaJSON(m map[string]string) datatypes.JSON {
	if len(m) == 0 {
		return nil
	}
	b, _ := json.Marshal(m)
	return datatypes.JSON(b)
}

// ensureCustomer returns the user's Stripe customer id, creating and linking
// one on first use.
func (h *Handler) ensureCustomer(u *models.User) (string, error) {
	if u.StripeCustomerID != nil && *u.StripeCustomerID != "" {
		return *u.StripeCustomerID, nil
	}
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	custID, err := h.gw.EnsureCustomer(u.Email, name)
	if err != nil {
		return "", err
	}
	if err := h.db.Model(&models.User{}).Where("id = ?", u.ID).
		Update("stripe_customer_id", custID).Error; err != nil {
		return "", err
	}
	u.StripeCustomerID = &custID
	return custID, nil
}

/* ========================== Checkout (new case) ========================= */

// CreateCheckoutSession godoc
// @Summary      Create a checkout session
// @Description  Hosted Stripe Checkout for the procedure fee; mirrors a PENDING payment
// @Tags         stripe
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body  CreateCheckoutRequest  true  "Procedure"
// @Success      201  {object}  map[string]any  "sessionId, url"
// @Failure      400  {object}  models.ValidationErrorResponse
// @Failure      409  {object}  models.ErrorResponse  "procedure is not payable"
// @Router       /stripe/create-checkout-session [post]
func (h *Handler) CreateCheckoutSession(c *fiber.Ctx) error {
	var in CreateCheckoutRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	proc, user, err := h.loadOwnedProcedure(c, in.ProcedureID)
	if err != nil {
		return err
	}
	if proc.Status != models.ProcedureDraft {
		return fiber.NewError(fiber.StatusConflict, "procedure fee already handled")
	}

	custID, err := h.ensureCustomer(user)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "stripe customer: "+err.Error())
	}

	base := os.Getenv("APP_BASE_URL")
	params := &stripe.CheckoutSessionParams{
		Mode:     stripe.String(string(stripe.CheckoutSessionModePayment)),
		Customer: stripe.String(custID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(os.Getenv("STRIPE_PRICE_PROCEDURE")), Quantity: stripe.Int64(1)},
		},
		SuccessURL:        stripe.String(base + "/paiement/succes?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:         stripe.String(base + "/paiement/annule"),
		ClientReferenceID: stripe.String(proc.ID.String()),
	}
	params.AddMetadata("procedure_id", proc.ID.String())

	sess, err := h.gw.CreateCheckoutSession(params)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "stripe checkout: "+err.Error())
	}

	// PENDING mirror; verified server-side later, never from client input.
	sessID := sess.ID
	pay := models.Payment{
		UserID:          user.ID,
		AmountCents:     sess.AmountTotal,
		Currency:        string(sess.Currency),
		Status:          models.PaymentPending,
		StripeSessionID: &sessID,
		Metadata:        metaJSON(map[string]string{"procedure_id": proc.ID.String()}),
	}
	if err := h.db.Create(&pay).Error; err != nil {
		// Unique session index means this session is already mirrored.
		var existing models.Payment
		if e := h.db.First(&existing, "stripe_session_id = ?", sess.ID).Error; e != nil {
			return fiber.ErrInternalServerError
		}
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"sessionId": sess.ID, "url": sess.URL})
}

// VerifyPayment godoc
// @Summary      Verify a checkout payment
// @Description  Re-fetches the session from Stripe; advances DRAFT→NEW exactly once
// @Tags         stripe
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body  VerifyPaymentRequest  true  "Session + procedure"
// @Success      200  {object}  map[string]any  "paid, paymentStatus, procedureStatus"
// @Failure      400  {object}  models.ErrorResponse  "not paid / wrong flow"
// @Router       /stripe/verify-payment [post]
func (h *Handler) VerifyPayment(c *fiber.Ctx) error {
	var in VerifyPaymentRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	proc, user, err := h.loadOwnedProcedure(c, in.ProcedureID)
	if err != nil {
		return err
	}

	// Authoritative state lives at Stripe; the client only supplies the id.
	sess, err := h.gw.GetCheckoutSession(in.SessionID)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "stripe session: "+err.Error())
	}
	// The session was minted for exactly one procedure; a paid session must
	// not confirm a sibling.
	if sess.ClientReferenceID != proc.ID.String() {
		return fiber.NewError(fiber.StatusBadRequest, "session does not belong to this procedure")
	}
	if sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		return fiber.NewError(fiber.StatusBadRequest,
			"payment not completed (status: "+string(sess.PaymentStatus)+")")
	}

	// Mirror the session: create lazily if the checkout endpoint was skipped.
	var pay models.Payment
	if err := h.db.First(&pay, "stripe_session_id = ?", sess.ID).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.ErrInternalServerError
		}
		sessID := sess.ID
		pay = models.Payment{
			UserID:          user.ID,
			AmountCents:     sess.AmountTotal,
			Currency:        string(sess.Currency),
			Status:          models.PaymentPending,
			StripeSessionID: &sessID,
			Metadata:        metaJSON(sess.Metadata),
		}
		if err := h.db.Create(&pay).Error; err != nil {
			return fiber.ErrInternalServerError
		}
	}

	updates := map[string]any{"status": models.PaymentSucceeded}
	if sess.PaymentIntent != nil {
		updates["stripe_intent_id"] = sess.PaymentIntent.ID
		if sess.PaymentIntent.LatestCharge != nil {
			updates["stripe_charge_id"] = sess.PaymentIntent.LatestCharge.ID
		}
	}
	if err := h.db.Model(&models.Payment{}).Where("id = ?", pay.ID).
		Updates(updates).Error; err != nil {
		return fiber.ErrInternalServerError
	}

	// Advance DRAFT→NEW atomically; a retry or a lost race is a no-op.
	advanced, err := procedures.Advance(h.db, proc.ID,
		models.ProcedureDraft, models.ProcedureNew,
		map[string]any{"payment_id": pay.ID})
	if err != nil {
		return fiber.ErrInternalServerError
	}
	if advanced {
		_ = h.db.Model(&models.Payment{}).Where("id = ?", pay.ID).
			Update("procedure_id", proc.ID).Error

		utils.LogProcedureHistory(c.Context(), h.db, proc.ID, user.ID, "payment_confirmed",
			models.ProcedureDraft, models.ProcedureNew, "checkout "+sess.ID)

		subject, html := mailer.PaymentConfirmedBody(proc.Reference)
		mailer.SendAsync(h.mail, user.Email, subject, html)
	}

	var current models.Procedure
	if err := h.db.First(&current, "id = ?", proc.ID).Error; err != nil {
		return fiber.ErrInternalServerError
	}
	return c.JSON(fiber.Map{
		"paid":            true,
		"paymentStatus":   models.PaymentSucceeded,
		"procedureStatus": current.Status,
	})
}

/* ====================== Injunction (statutory flow) ===================== */

// CreateInjonctionIntent godoc
// @Summary      Create the injunction payment intent
// @Description  PaymentIntent for the statutory injunction fee (procedure must be in the requested state)
// @Tags         stripe
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body  CreateInjonctionIntentRequest  true  "Procedure"
// @Success      201  {object}  map[string]any  "paymentIntentId, clientSecret"
// @Failure      409  {object}  models.ErrorResponse
// @Router       /stripe/create-injonction-intent [post]
func (h *Handler) CreateInjonctionIntent(c *fiber.Ctx) error {
	var in CreateInjonctionIntentRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	proc, user, err := h.loadOwnedProcedure(c, in.ProcedureID)
	if err != nil {
		return err
	}
	if proc.Status != models.ProcedureInjonctionDemandee {
		return fiber.NewError(fiber.StatusConflict, "no injunction fee is due for this procedure")
	}

	custID, err := h.ensureCustomer(user)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "stripe customer: "+err.Error())
	}

	pr, err := h.gw.GetPrice(os.Getenv("STRIPE_PRICE_INJONCTION"))
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "stripe price: "+err.Error())
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(pr.UnitAmount),
		Currency: stripe.String(string(pr.Currency)),
		Customer: stripe.String(custID),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.AddMetadata("procedure_id", proc.ID.String())
	params.AddMetadata("kind", "injonction")

	pi, err := h.gw.CreatePaymentIntent(params)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "stripe intent: "+err.Error())
	}

	intentID := pi.ID
	pay := models.Payment{
		UserID:         user.ID,
		AmountCents:    pi.Amount,
		Currency:       string(pi.Currency),
		Status:         models.PaymentPending,
		StripeIntentID: &intentID,
		Metadata:       metaJSON(pi.Metadata),
	}
	if err := h.db.Create(&pay).Error; err != nil {
		var existing models.Payment
		if e := h.db.First(&existing, "stripe_intent_id = ?", pi.ID).Error; e != nil {
			return fiber.ErrInternalServerError
		}
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"paymentIntentId": pi.ID,
		"clientSecret":    pi.ClientSecret,
	})
}

// ConfirmInjonctionPayment godoc
// @Summary      Confirm the injunction payment
// @Description  Re-fetches the intent from Stripe; advances the injunction chain and issues at most one invoice
// @Tags         stripe
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body  ConfirmInjonctionRequest  true  "Intent + procedure"
// @Success      200  {object}  map[string]any  "success"
// @Failure      400  {object}  models.ErrorResponse  "not succeeded"
// @Router       /stripe/confirm-injonction-payment [post]
func (h *Handler) ConfirmInjonctionPayment(c *fiber.Ctx) error {
	var in ConfirmInjonctionRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	proc, user, err := h.loadOwnedProcedure(c, in.ProcedureID)
	if err != nil {
		return err
	}

	pi, err := h.gw.GetPaymentIntent(in.PaymentIntentID)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "stripe intent: "+err.Error())
	}
	// The intent carries the procedure it was minted for; a paid intent must
	// confirm that procedure and no other.
	if pi.Metadata["procedure_id"] != proc.ID.String() {
		return fiber.NewError(fiber.StatusBadRequest, "payment does not belong to this procedure")
	}
	if pi.Status != stripe.PaymentIntentStatusSucceeded {
		return fiber.NewError(fiber.StatusBadRequest,
			"payment not succeeded (status: "+string(pi.Status)+")")
	}

	// Mirror the intent, creating it lazily if needed.
	var pay models.Payment
	if err := h.db.First(&pay, "stripe_intent_id = ?", pi.ID).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.ErrInternalServerError
		}
		intentID := pi.ID
		pay = models.Payment{
			UserID:         user.ID,
			AmountCents:    pi.Amount,
			Currency:       string(pi.Currency),
			Status:         models.PaymentPending,
			StripeIntentID: &intentID,
			Metadata:       metaJSON(pi.Metadata),
		}
		if err := h.db.Create(&pay).Error; err != nil {
			return fiber.ErrInternalServerError
		}
	}

	updates := map[string]any{
		"status":   models.PaymentSucceeded,
		"metadata": metaJSON(pi.Metadata),
	}
	if pi.LatestCharge != nil {
		updates["stripe_charge_id"] = pi.LatestCharge.ID
	}
	if err := h.db.Model(&models.Payment{}).Where("id = ?", pay.ID).
		Updates(updates).Error; err != nil {
		return fiber.ErrInternalServerError
	}

	advanced, err := procedures.Advance(h.db, proc.ID,
		models.ProcedureInjonctionDemandee, models.ProcedureInjonctionPayer, nil)
	if err != nil {
		return fiber.ErrInternalServerError
	}
	if advanced {
		utils.LogProcedureHistory(c.Context(), h.db, proc.ID, user.ID, "injonction_paid",
			models.ProcedureInjonctionDemandee, models.ProcedureInjonctionPayer, "intent "+pi.ID)

		subject, html := mailer.InjonctionPaidBody(proc.Reference)
		mailer.SendAsync(h.mail, user.Email, subject, html)
	}

	// Invoice is best-effort: a Stripe hiccup here must not fail the
	// confirmation the user already paid for.
	if user.StripeCustomerID != nil && *user.StripeCustomerID != "" {
		h.ensureInvoiceForPayment(*user.StripeCustomerID, &pay,
			"Requête en injonction de payer — dossier "+proc.Reference)
	}

	return c.JSON(fiber.Map{"success": true})
}
