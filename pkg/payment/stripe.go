package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

type stripeGateway struct {
	api           *client.API
	webhookSecret string
}

// NewStripeGateway talks to the Stripe API with secretKey and verifies
// webhooks with webhookSecret.
func NewStripeGateway(secretKey, webhookSecret string) Gateway {
	return &stripeGateway{
		api:           client.New(secretKey, nil),
		webhookSecret: webhookSecret,
	}
}

func (g *stripeGateway) Mock() bool { return false }

func (g *stripeGateway) CreateCheckoutSession(ctx context.Context, p CheckoutParams) (*Session, error) {
	if len(p.Items) == 0 {
		return nil, fmt.Errorf("%w: no line items", ErrProvider)
	}

	currency := strings.ToLower(p.Currency)
	lineItems := make([]*stripe.CheckoutSessionLineItemParams, 0, len(p.Items))
	for _, it := range p.Items {
		product := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripe.String(it.Name),
		}
		if it.Description != "" {
			product.Description = stripe.String(it.Description)
		}
		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(currency),
				ProductData: product,
				UnitAmount:  stripe.Int64(it.UnitAmount),
			},
			Quantity: stripe.Int64(it.Quantity),
		})
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(p.SuccessURL),
		CancelURL:         stripe.String(p.CancelURL),
		ClientReferenceID: stripe.String(p.OrderID),
		LineItems:         lineItems,
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: map[string]string{"order_id": p.OrderID, "order_number": p.OrderNumber},
		},
	}
	if p.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(p.CustomerEmail)
	}
	params.AddMetadata("order_id", p.OrderID)
	params.AddMetadata("order_number", p.OrderNumber)
	params.Context = ctx
	// Lets a retried checkout reuse the session instead of creating a second one.
	params.SetIdempotencyKey("checkout-" + p.OrderID)

	s, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		var serr *stripe.Error
		if errors.As(err, &serr) {
			return nil, fmt.Errorf("%w: %s", ErrProvider, serr.Msg)
		}
		return nil, fmt.Errorf("%w: %v", ErrProvider, err)
	}
	return &Session{ID: s.ID, URL: s.URL}, nil
}

func (g *stripeGateway) ParseWebhook(payload []byte, signatureHeader string) (*Event, error) {
	if g.webhookSecret == "" {
		return nil, fmt.Errorf("%w: webhook secret not configured", ErrInvalidSignature)
	}
	ev, err := webhook.ConstructEventWithOptions(payload, signatureHeader, g.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return decodeEvent(ev)
}
