package billing

import (
	"encoding/json"
	"log"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/fairpay-app/fairpay-backend/pkg/models"
)

// Webhook handles Stripe's server-to-server events. The signature is checked
// first; an event we don't care about is acknowledged and dropped.
func (h *Handler) Webhook(c *fiber.Ctx) error {
	event, err := webhook.ConstructEvent(
		c.Body(),
		c.Get("Stripe-Signature"),
		os.Getenv("STRIPE_WEBHOOK_SECRET"),
	)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid webhook signature")
	}

	switch string(event.Type) {
	case "payment_intent.succeeded":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "malformed payment_intent payload")
		}
		updates := map[string]any{"status": models.PaymentSucceeded}
		if pi.LatestCharge != nil {
			updates["stripe_charge_id"] = pi.LatestCharge.ID
		}
		if err := h.db.Model(&models.Payment{}).
			Where("stripe_intent_id = ?", pi.ID).
			Updates(updates).Error; err != nil {
			return fiber.ErrInternalServerError
		}

	case "payment_intent.payment_failed":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "malformed payment_intent payload")
		}
		if err := h.db.Model(&models.Payment{}).
			Where("stripe_intent_id = ? AND status <> ?", pi.ID, models.PaymentSucceeded).
			Update("status", models.PaymentFailed).Error; err != nil {
			return fiber.ErrInternalServerError
		}

	case "customer.subscription.updated", "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "malformed subscription payload")
		}
		if err := h.syncRow(&sub); err != nil {
			return fiber.ErrInternalServerError
		}

	case "checkout.session.completed":
		// The confirmation endpoint re-fetches the session itself; nothing to
		// do here beyond the audit line.
		log.Printf("checkout session completed: %s", event.ID)

	default:
		log.Printf("ignoring stripe event %s (%s)", event.ID, event.Type)
	}

	return c.JSON(fiber.Map{"received": true})
}
