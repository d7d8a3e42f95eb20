package payment

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Method is a supported payment method.
type Method string

const (
	MethodCOD      Method = "cod"
	MethodUPI      Method = "upi"
	MethodRazorpay Method = "razorpay"
)

// Status is the lifecycle state of a payment intent.
type Status string

const (
	StatusPending Status = "pending"
	StatusSettled Status = "settled"
	StatusFailed  Status = "failed"
)

// Intent is what the client needs to complete (or acknowledge) a payment.
type Intent struct {
	ID      string          `json:"id"`
	Method  Method          `json:"method"`
	Status  Status          `json:"status"`
	Amount  decimal.Decimal `json:"amount"`
	Gateway string          `json:"gateway,omitempty"`
	Ref     string          `json:"ref,omitempty"`
}

// Provider creates payment intents for orders.
type Provider interface {
	CreateIntent(ctx context.Context, orderID string, method Method, amount decimal.Decimal) (Intent, error)
}

// Simulated is an in-process provider. Cash on delivery settles immediately;
// UPI and razorpay return a pending intent with a fake gateway reference. No
// real gateway is ever called.
type Simulated struct{}

func (Simulated) CreateIntent(_ context.Context, orderID string, method Method, amount decimal.Decimal) (Intent, error) {
	switch method {
	case MethodCOD:
		return Intent{
			ID:     uuid.NewString(),
			Method: MethodCOD,
			Status: StatusSettled,
			Amount: amount,
		}, nil
	case MethodUPI, MethodRazorpay:
		return Intent{
			ID:      uuid.NewString(),
			Method:  method,
			Status:  StatusPending,
			Amount:  amount,
			Gateway: "razorpay_sim",
			Ref:     "sim_" + orderID,
		}, nil
	default:
		return Intent{}, fmt.Errorf("unsupported payment method %q", method)
	}
}

// ValidMethod reports whether m is a supported payment method.
func ValidMethod(m Method) bool {
	return m == MethodCOD || m == MethodUPI || m == MethodRazorpay
}
