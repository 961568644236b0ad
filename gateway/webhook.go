package gateway

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

const (
	EventCheckoutCompleted = "checkout.session.completed"
	SignatureTolerance     = 5 * time.Minute
)

func WebhookSecret() string {
	return os.Getenv("STRIPE_WEBHOOK_SECRET")
}

// Sign builds a Stripe-Signature header for payload as of at.
func Sign(payload []byte, secret string, at time.Time) string {
	sig := webhook.ComputeSignature(at, payload, secret)
	return "t=" + strconv.FormatInt(at.Unix(), 10) + ",v1=" + hex.EncodeToString(sig)
}

// VerifySignature checks the Stripe-Signature header against payload. The
// errors are those of the webhook package, such as webhook.ErrNotSigned.
func VerifySignature(payload []byte, header, secret string) error {
	return webhook.ValidatePayloadWithTolerance(payload, header, secret, SignatureTolerance)
}

// ParseEvent decodes a verified payload. The API version is not pinned
// because the account may send events from a newer version.
func ParseEvent(payload []byte) (*stripe.Event, error) {
	var evt stripe.Event
	if err := json.Unmarshal(payload, &evt); err != nil {
		return nil, err
	}
	if evt.Type == "" {
		return nil, errors.New("webhook event has no type")
	}
	return &evt, nil
}

// CheckoutSessionOf returns the session a checkout event carries.
func CheckoutSessionOf(evt *stripe.Event) (*stripe.CheckoutSession, error) {
	if evt.Data == nil || len(evt.Data.Raw) == 0 {
		return nil, errors.New("webhook event has no data object")
	}
	var s stripe.CheckoutSession
	if err := json.Unmarshal(evt.Data.Raw, &s); err != nil {
		return nil, err
	}
	return &s, nil
}
