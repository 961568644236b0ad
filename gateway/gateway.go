// Package gateway talks to the card payment provider.
package gateway

import (
	"context"
	"os"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
)

type CheckoutRequest struct {
	Amount      decimal.Decimal
	Currency    string
	Description string
	Metadata    map[string]string
	SuccessURL  string
	CancelURL   string
}

type CheckoutSession struct {
	ID              string `json:"id"`
	URL             string `json:"url"`
	PaymentIntentId string `json:"payment_intent"`
}

type Gateway interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
}

var (
	current     Gateway
	currentOnce sync.Once
	currentMu   sync.RWMutex
)

// GetGateway returns the configured gateway, or nil when STRIPE_SECRET_KEY is unset.
func GetGateway() Gateway {
	currentOnce.Do(func() {
		if key := strings.TrimSpace(os.Getenv("STRIPE_SECRET_KEY")); key != "" {
			currentMu.Lock()
			if current == nil {
				current = NewStripeClient(key)
			}
			currentMu.Unlock()
		}
	})
	currentMu.RLock()
	defer currentMu.RUnlock()
	return current
}

func SetGateway(g Gateway) {
	currentOnce.Do(func() {})
	currentMu.Lock()
	current = g
	currentMu.Unlock()
}

func Currency() string {
	if v := strings.TrimSpace(os.Getenv("PAYMENT_CURRENCY")); v != "" {
		return strings.ToLower(v)
	}
	return "usd"
}

func SuccessURL() string {
	return os.Getenv("PAYMENT_SUCCESS_URL")
}

func CancelURL() string {
	return os.Getenv("PAYMENT_CANCEL_URL")
}

// MinorUnits converts an amount to the smallest currency unit.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
