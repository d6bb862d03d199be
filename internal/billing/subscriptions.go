package billing

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stripe/stripe-go/v82"
	"gorm.io/gorm"

	"github.com/fairpay-app/fairpay-backend/internal/auth"
	"github.com/fairpay-app/fairpay-backend/pkg/models"
	"github.com/fairpay-app/fairpay-backend/pkg/validation"
)

// Gateway is the slice of the Stripe surface billing needs. The live
// payments.StripeGateway satisfies it.
type Gateway interface {
	EnsureCustomer(email, name string) (string, error)
	CreateSubscription(customerID, priceID string) (*stripe.Subscription, error)
	GetSubscription(id string) (*stripe.Subscription, error)
}

type Handler struct {
	db *gorm.DB
	gw Gateway
}

func NewHandler(db *gorm.DB, gw Gateway) *Handler {
	return &Handler{db: db, gw: gw}
}

/* ============================ Status mapping ============================ */

// MapSubscriptionStatus translates Stripe's status into the local enum.
// The mapping is total over the known set; anything unknown falls back to
// ACTIVE because the canonical state lives at Stripe and a sync must never
// brick the local record.
func MapSubscriptionStatus(s stripe.SubscriptionStatus) models.SubscriptionStatus {
	switch s {
	case stripe.SubscriptionStatusActive:
		return models.SubscriptionActive
	case stripe.SubscriptionStatusTrialing:
		return models.SubscriptionTrialing
	case stripe.SubscriptionStatusPastDue:
		return models.SubscriptionPastDue
	case stripe.SubscriptionStatusCanceled:
		return models.SubscriptionCanceled
	case stripe.SubscriptionStatusUnpaid:
		return models.SubscriptionUnpaid
	default:
		return models.SubscriptionActive
	}
}

// periodBounds pulls the current period from the subscription's first item.
func periodBounds(sub *stripe.Subscription) (start, end time.Time) {
	if sub.Items != nil && len(sub.Items.Data) > 0 {
		it := sub.Items.Data[0]
		start = time.Unix(it.CurrentPeriodStart, 0)
		end = time.Unix(it.CurrentPeriodEnd, 0)
	}
	return
}

// syncRow overwrites the local mirror's status/period/cancel-flag fields with
// Stripe's canonical values.
func (h *Handler) syncRow(sub *stripe.Subscription) error {
	start, end := periodBounds(sub)
	return h.db.Model(&models.Subscription{}).
		Where("stripe_subscription_id = ?", sub.ID).
		Updates(map[string]any{
			"status":               MapSubscriptionStatus(sub.Status),
			"current_period_start": start,
			"current_period_end":   end,
			"cancel_at_period_end": sub.CancelAtPeriodEnd,
		}).Error
}

/* ================================ DTOs ================================= */

type CreateSubscriptionRequest struct {
	PriceID string `json:"priceId" validate:"omitempty,max=120"`
}

type SyncSubscriptionRequest struct {
	SubscriptionID string `json:"subscriptionId" validate:"required,max=120"`
}

/* =============================== Handlers =============================== */

// CreateSubscription godoc
// @Summary      Create a lawyer-seat subscription
// @Tags         stripe
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body  CreateSubscriptionRequest  true  "Optional price override"
// @Success      201  {object}  models.Subscription
// @Failure      409  {object}  models.ErrorResponse  "already subscribed"
// @Router       /stripe/create-subscription [post]
func (h *Handler) CreateSubscription(c *fiber.Ctx) error {
	var in CreateSubscriptionRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	var u models.User
	if err := h.db.First(&u, "id = ?", auth.MustUserID(c)).Error; err != nil {
		return fiber.ErrUnauthorized
	}

	var existing models.Subscription
	err := h.db.Where("user_id = ? AND status IN ?", u.ID,
		[]models.SubscriptionStatus{models.SubscriptionActive, models.SubscriptionTrialing}).
		First(&existing).Error
	if err == nil {
		return fiber.NewError(fiber.StatusConflict, "an active subscription already exists")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fiber.ErrInternalServerError
	}

	custID := ""
	if u.StripeCustomerID != nil && *u.StripeCustomerID != "" {
		custID = *u.StripeCustomerID
	} else {
		name := strings.TrimSpace(u.FirstName + " " + u.LastName)
		custID, err = h.gw.EnsureCustomer(u.Email, name)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "stripe customer: "+err.Error())
		}
		if err := h.db.Model(&models.User{}).Where("id = ?", u.ID).
			Update("stripe_customer_id", custID).Error; err != nil {
			return fiber.ErrInternalServerError
		}
	}

	priceID := in.PriceID
	if priceID == "" {
		priceID = os.Getenv("STRIPE_PRICE_SUBSCRIPTION")
	}

	sub, err := h.gw.CreateSubscription(custID, priceID)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "stripe subscription: "+err.Error())
	}

	start, end := periodBounds(sub)
	row := models.Subscription{
		UserID:               u.ID,
		StripeSubscriptionID: sub.ID,
		StripeCustomerID:     custID,
		PriceID:              priceID,
		Status:               MapSubscriptionStatus(sub.Status),
		CurrentPeriodStart:   start,
		CurrentPeriodEnd:     end,
		CancelAtPeriodEnd:    sub.CancelAtPeriodEnd,
	}
	if err := h.db.Create(&row).Error; err != nil {
		return fiber.ErrInternalServerError
	}

	return c.Status(fiber.StatusCreated).JSON(row)
}

// SyncSubscription godoc
// @Summary      Synchronize a subscription mirror
// @Description  Overwrites the local row with Stripe's canonical status and period bounds
// @Tags         stripe
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body  SyncSubscriptionRequest  true  "Subscription id"
// @Success      200  {object}  models.Subscription
// @Failure      404  {object}  models.ErrorResponse
// @Router       /stripe/sync-subscription [post]
func (h *Handler) SyncSubscription(c *fiber.Ctx) error {
	var in SyncSubscriptionRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	var row models.Subscription
	if err := h.db.First(&row, "stripe_subscription_id = ?", in.SubscriptionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.ErrNotFound
		}
		return fiber.ErrInternalServerError
	}
	if row.UserID.String() != auth.MustUserID(c) {
		return fiber.ErrForbidden
	}

	sub, err := h.gw.GetSubscription(in.SubscriptionID)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "stripe subscription: "+err.Error())
	}
	if err := h.syncRow(sub); err != nil {
		return fiber.ErrInternalServerError
	}

	if err := h.db.First(&row, "stripe_subscription_id = ?", sub.ID).Error; err != nil {
		return fiber.ErrInternalServerError
	}
	return c.JSON(row)
}
