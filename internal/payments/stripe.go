package payments

import (
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/customer"
	"github.com/stripe/stripe-go/v82/invoice"
	"github.com/stripe/stripe-go/v82/invoiceitem"
	"github.com/stripe/stripe-go/v82/paymentintent"
	"github.com/stripe/stripe-go/v82/price"
	"github.com/stripe/stripe-go/v82/subscription"
)

// Gateway is the Stripe seam used by the payment and billing handlers.
// Handlers never trust client-asserted state: everything authoritative is
// re-fetched through this interface.
type Gateway interface {
	CreateCheckoutSession(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	GetCheckoutSession(id string) (*stripe.CheckoutSession, error)

	CreatePaymentIntent(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	GetPaymentIntent(id string) (*stripe.PaymentIntent, error)

	EnsureCustomer(email, name string) (string, error)
	GetPrice(id string) (*stripe.Price, error)

	ListInvoices(customerID string) ([]*stripe.Invoice, error)
	CreateInvoice(customerID string, amountCents int64, currency, description string, metadata map[string]string) (*stripe.Invoice, error)

	CreateSubscription(customerID, priceID string) (*stripe.Subscription, error)
	GetSubscription(id string) (*stripe.Subscription, error)
}

// StripeGateway is the live implementation over stripe-go. The package-level
// stripe.Key must be set before use (done in main).
type StripeGateway struct{}

func NewStripeGateway() *StripeGateway { return &StripeGateway{} }

func (g *StripeGateway) CreateCheckoutSession(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	return session.New(params)
}

func (g *StripeGateway) GetCheckoutSession(id string) (*stripe.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{}
	params.AddExpand("payment_intent")
	params.AddExpand("payment_intent.latest_charge")
	return session.Get(id, params)
}

func (g *StripeGateway) CreatePaymentIntent(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	return paymentintent.New(params)
}

func (g *StripeGateway) GetPaymentIntent(id string) (*stripe.PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{}
	params.AddExpand("latest_charge")
	return paymentintent.Get(id, params)
}

// EnsureCustomer creates a Stripe customer for the given identity and
// returns its id. Callers persist the id on the user row and pass it back on
// later calls, so this only runs once per user.
func (g *StripeGateway) EnsureCustomer(email, name string) (string, error) {
	cust, err := customer.New(&stripe.CustomerParams{
		Email: stripe.String(email),
		Name:  stripe.String(name),
	})
	if err != nil {
		return "", err
	}
	return cust.ID, nil
}

func (g *StripeGateway) GetPrice(id string) (*stripe.Price, error) {
	return price.Get(id, nil)
}

func (g *StripeGateway) ListInvoices(customerID string) ([]*stripe.Invoice, error) {
	params := &stripe.InvoiceListParams{Customer: stripe.String(customerID)}
	it := invoice.List(params)
	var out []*stripe.Invoice
	for it.Next() {
		out = append(out, it.Invoice())
	}
	return out, it.Err()
}

// CreateInvoice creates and finalizes a one-line invoice tagged with the
// given metadata.
func (g *StripeGateway) CreateInvoice(customerID string, amountCents int64, currency, description string, metadata map[string]string) (*stripe.Invoice, error) {
	invParams := &stripe.InvoiceParams{
		Customer:    stripe.String(customerID),
		AutoAdvance: stripe.Bool(true),
	}
	for k, v := range metadata {
		invParams.AddMetadata(k, v)
	}
	inv, err := invoice.New(invParams)
	if err != nil {
		return nil, err
	}

	_, err = invoiceitem.New(&stripe.InvoiceItemParams{
		Customer:    stripe.String(customerID),
		Invoice:     stripe.String(inv.ID),
		Amount:      stripe.Int64(amountCents),
		Currency:    stripe.String(currency),
		Description: stripe.String(description),
	})
	if err != nil {
		return nil, err
	}

	return invoice.FinalizeInvoice(inv.ID, nil)
}

func (g *StripeGateway) CreateSubscription(customerID, priceID string) (*stripe.Subscription, error) {
	params := &stripe.SubscriptionParams{
		Customer: stripe.String(customerID),
		Items: []*stripe.SubscriptionItemsParams{
			{Price: stripe.String(priceID)},
		},
		PaymentBehavior: stripe.String("default_incomplete"),
	}
	return subscription.New(params)
}

func (g *StripeGateway) GetSubscription(id string) (*stripe.Subscription, error) {
	return subscription.Get(id, nil)
}
