package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "whsec_test_secret"

func sign(payload []byte, secret string, at time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", at.Unix(), payload)
	return fmt.Sprintf("t=%d,v1=%s", at.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func checkoutCompleted(sessionID, orderID, paymentStatus string) []byte {
	return []byte(fmt.Sprintf(`{
		"id": "evt_1",
		"object": "event",
		"type": "checkout.session.completed",
		"data": {"object": {
			"id": %q,
			"object": "checkout.session",
			"client_reference_id": %q,
			"payment_intent": "pi_123",
			"payment_status": %q,
			"metadata": {"order_id": %q}
		}}
	}`, sessionID, orderID, paymentStatus, orderID))
}

func TestStripeWebhookVerifiesSignature(t *testing.T) {
	g := NewStripeGateway("sk_test_unused", testSecret)
	payload := checkoutCompleted("cs_1", "order-1", "paid")

	ev, err := g.ParseWebhook(payload, sign(payload, testSecret, time.Now()))
	require.NoError(t, err)
	assert.Equal(t, EventCheckoutCompleted, ev.Type)
	assert.Equal(t, "cs_1", ev.SessionID)
	assert.Equal(t, "order-1", ev.OrderID)
	assert.Equal(t, "pi_123", ev.PaymentIntentID)
	assert.True(t, ev.Paid)
}

func TestStripeWebhookRejectsBadSignatures(t *testing.T) {
	g := NewStripeGateway("sk_test_unused", testSecret)
	payload := checkoutCompleted("cs_1", "order-1", "paid")

	tests := map[string]string{
		"wrong secret": sign(payload, "whsec_other", time.Now()),
		"stale":        sign(payload, testSecret, time.Now().Add(-time.Hour)),
		"missing":      "",
		"garbage":      "t=abc,v1=zz",
	}
	for name, header := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := g.ParseWebhook(payload, header)
			assert.ErrorIs(t, err, ErrInvalidSignature)
		})
	}
}

func TestStripeWebhookRejectsTamperedBody(t *testing.T) {
	g := NewStripeGateway("sk_test_unused", testSecret)
	payload := checkoutCompleted("cs_1", "order-1", "paid")
	header := sign(payload, testSecret, time.Now())

	tampered := []byte(strings.Replace(string(payload), "order-1", "order-2", 2))
	_, err := g.ParseWebhook(tampered, header)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestStripeWebhookWithoutSecret(t *testing.T) {
	g := NewStripeGateway("sk_test_unused", "")
	payload := checkoutCompleted("cs_1", "order-1", "paid")
	_, err := g.ParseWebhook(payload, sign(payload, testSecret, time.Now()))
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestUnpaidSessionIsNotPaid(t *testing.T) {
	g := NewMockGateway("")
	ev, err := g.ParseWebhook(checkoutCompleted("cs_1", "order-1", "unpaid"), "")
	require.NoError(t, err)
	assert.False(t, ev.Paid)
}

func TestChargeRefundedEvent(t *testing.T) {
	g := NewMockGateway("")
	payload := []byte(`{"id":"evt_2","type":"charge.refunded","data":{"object":{
		"id":"ch_1","object":"charge","payment_intent":"pi_123","refunded":true,"metadata":{}}}}`)

	ev, err := g.ParseWebhook(payload, "")
	require.NoError(t, err)
	assert.Equal(t, EventChargeRefunded, ev.Type)
	assert.Equal(t, "pi_123", ev.PaymentIntentID)
	assert.True(t, ev.FullyRefunded)
}

func TestPartialRefundEvent(t *testing.T) {
	g := NewMockGateway("")
	tests := []struct {
		name   string
		charge string
		full   bool
	}{
		{"partial", `{"id":"ch_1","object":"charge","payment_intent":"pi_1","amount":5000,"amount_refunded":1000,"refunded":false}`, false},
		{"whole amount", `{"id":"ch_1","object":"charge","payment_intent":"pi_1","amount":5000,"amount_refunded":5000}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := []byte(`{"id":"evt_4","type":"charge.refunded","data":{"object":` + tt.charge + `}}`)
			ev, err := g.ParseWebhook(payload, "")
			require.NoError(t, err)
			assert.Equal(t, tt.full, ev.FullyRefunded)
		})
	}
}

func TestUnknownEventIsPassedThrough(t *testing.T) {
	g := NewMockGateway("")
	ev, err := g.ParseWebhook([]byte(`{"id":"evt_3","type":"customer.created","data":{"object":{"id":"cus_1"}}}`), "")
	require.NoError(t, err)
	assert.Equal(t, "customer.created", ev.Type)
	assert.Empty(t, ev.SessionID)
}

func TestMockGatewayVerifiesWhenSecretSet(t *testing.T) {
	g := NewMockGateway(testSecret)
	payload := checkoutCompleted("cs_1", "order-1", "paid")

	_, err := g.ParseWebhook(payload, "")
	assert.ErrorIs(t, err, ErrInvalidSignature)

	_, err = g.ParseWebhook(payload, sign(payload, testSecret, time.Now()))
	assert.NoError(t, err)
}

func TestMockCheckoutSession(t *testing.T) {
	g := NewMockGateway("")
	assert.True(t, g.Mock())

	s, err := g.CreateCheckoutSession(context.Background(), CheckoutParams{
		OrderID:    "order-1",
		Currency:   "gbp",
		Items:      []LineItem{{Name: "Audit", UnitAmount: 1000, Quantity: 1}},
		SuccessURL: "https://shop.example/checkout/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  "https://shop.example/cart",
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(s.ID, MockSessionPrefix))

	u, err := url.Parse(s.URL)
	require.NoError(t, err)
	assert.Equal(t, s.ID, u.Query().Get("session_id"))
	assert.Equal(t, "1", u.Query().Get("mock"))
}

func TestMockCheckoutRequiresItems(t *testing.T) {
	_, err := NewMockGateway("").CreateCheckoutSession(context.Background(), CheckoutParams{})
	assert.ErrorIs(t, err, ErrProvider)
}
