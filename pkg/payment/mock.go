package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

// MockSessionPrefix marks session ids created without a provider.
const MockSessionPrefix = "mock_cs_"

type mockGateway struct {
	webhookSecret string
}

// NewMockGateway is used when no Stripe key is configured. Checkout returns a
// URL on the storefront's own success page. Webhooks are verified with
// webhookSecret when one is set and accepted unsigned otherwise, so the paid
// flow can be driven by hand in development.
func NewMockGateway(webhookSecret string) Gateway {
	return &mockGateway{webhookSecret: webhookSecret}
}

func (g *mockGateway) Mock() bool { return true }

func (g *mockGateway) CreateCheckoutSession(_ context.Context, p CheckoutParams) (*Session, error) {
	if len(p.Items) == 0 {
		return nil, fmt.Errorf("%w: no line items", ErrProvider)
	}
	id := MockSessionPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
	target := strings.ReplaceAll(p.SuccessURL, "{CHECKOUT_SESSION_ID}", url.QueryEscape(id))

	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("%w: bad success url: %v", ErrProvider, err)
	}
	q := u.Query()
	q.Set("mock", "1")
	u.RawQuery = q.Encode()
	return &Session{ID: id, URL: u.String()}, nil
}

func (g *mockGateway) ParseWebhook(payload []byte, signatureHeader string) (*Event, error) {
	var ev stripe.Event
	if g.webhookSecret != "" {
		var err error
		ev, err = webhook.ConstructEventWithOptions(payload, signatureHeader, g.webhookSecret,
			webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
		}
	} else if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	return decodeEvent(ev)
}
