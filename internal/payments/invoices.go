package payments

import (
	"log"

	"github.com/fairpay-app/fairpay-backend/pkg/models"
)

// paymentIDMetaKey tags every invoice we create with the local payment id,
// which is what makes invoice creation idempotent under retries.
const paymentIDMetaKey = "payment_id"

// ensureInvoiceForPayment issues at most one Stripe invoice per payment.
// Before creating anything it scans the customer's existing invoices for one
// already tagged with this payment's id; a match suppresses the create. Any
// failure is logged and swallowed: invoicing never fails the payment flow.
func (h *Handler) ensureInvoiceForPayment(customerID string, pay *models.Payment, description string) {
	existing, err := h.gw.ListInvoices(customerID)
	if err != nil {
		log.Printf("invoice list for customer %s failed (ignored): %v", customerID, err)
		return
	}
	for _, inv := range existing {
		if inv.Metadata[paymentIDMetaKey] == pay.ID.String() {
			return // already invoiced
		}
	}

	_, err = h.gw.CreateInvoice(customerID, pay.AmountCents, pay.Currency, description,
		map[string]string{paymentIDMetaKey: pay.ID.String()})
	if err != nil {
		log.Printf("invoice create for payment %s failed (ignored): %v", pay.ID, err)
	}
}
