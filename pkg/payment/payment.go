// Package payment wraps the card payment provider. The server only needs two
// things from it: a hosted checkout page for an order, and verified webhook
// events telling it the order was paid or refunded.
package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v76"
)

var (
	// ErrProvider wraps every error the provider API returns.
	ErrProvider = errors.New("payment provider error")
	// ErrInvalidSignature means the webhook payload could not be authenticated.
	ErrInvalidSignature = errors.New("invalid webhook signature")
	// ErrMalformedEvent means the payload was authentic but not understood.
	ErrMalformedEvent = errors.New("malformed webhook event")
)

// Webhook event types the server reacts to.
const (
	EventCheckoutCompleted = "checkout.session.completed"
	EventChargeRefunded    = "charge.refunded"
)

// LineItem is one checkout line; UnitAmount is in minor units.
type LineItem struct {
	Name        string
	Description string
	UnitAmount  int64
	Quantity    int64
}

type CheckoutParams struct {
	OrderID       string
	OrderNumber   string
	CustomerEmail string
	Currency      string
	Items         []LineItem
	// SuccessURL may contain {CHECKOUT_SESSION_ID}; the provider fills it in.
	SuccessURL string
	CancelURL  string
}

type Session struct {
	ID  string
	URL string
}

// Event is the provider-neutral subset of a webhook event.
type Event struct {
	ID              string
	Type            string
	SessionID       string
	OrderID         string
	PaymentIntentID string
	Paid            bool
	// FullyRefunded is false for a partial refund of a charge.
	FullyRefunded bool
}

// Gateway creates checkout sessions and authenticates webhooks.
type Gateway interface {
	CreateCheckoutSession(ctx context.Context, p CheckoutParams) (*Session, error)
	ParseWebhook(payload []byte, signatureHeader string) (*Event, error)
	// Mock reports whether no real money can move through this gateway.
	Mock() bool
}

// decodeEvent extracts the fields the server uses from a Stripe event.
func decodeEvent(ev stripe.Event) (*Event, error) {
	out := &Event{ID: ev.ID, Type: string(ev.Type)}
	if ev.Data == nil {
		return out, nil
	}

	switch out.Type {
	case EventCheckoutCompleted:
		var cs stripe.CheckoutSession
		if err := json.Unmarshal(ev.Data.Raw, &cs); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
		out.SessionID = cs.ID
		out.OrderID = cs.ClientReferenceID
		if id := cs.Metadata["order_id"]; id != "" {
			out.OrderID = id
		}
		if cs.PaymentIntent != nil {
			out.PaymentIntentID = cs.PaymentIntent.ID
		}
		// Delayed payment methods complete the session before the money arrives.
		out.Paid = cs.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid ||
			cs.PaymentStatus == stripe.CheckoutSessionPaymentStatusNoPaymentRequired
		if out.SessionID == "" {
			return nil, fmt.Errorf("%w: session id missing", ErrMalformedEvent)
		}

	case EventChargeRefunded:
		var ch stripe.Charge
		if err := json.Unmarshal(ev.Data.Raw, &ch); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
		if ch.PaymentIntent != nil {
			out.PaymentIntentID = ch.PaymentIntent.ID
		}
		out.OrderID = ch.Metadata["order_id"]
		out.FullyRefunded = ch.Refunded || (ch.Amount > 0 && ch.AmountRefunded >= ch.Amount)
		if out.PaymentIntentID == "" && out.OrderID == "" {
			return nil, fmt.Errorf("%w: refund without payment intent", ErrMalformedEvent)
		}
	}
	return out, nil
}
