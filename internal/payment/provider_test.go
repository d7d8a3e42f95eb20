package payment

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
)

func TestSimulatedCODSettlesImmediately(t *testing.T) {
	intent, err := Simulated{}.CreateIntent(context.Background(), "ord-1", MethodCOD, decimal.NewFromInt(530))
	if err != nil {
		t.Fatalf("CreateIntent: %v", err)
	}
	if intent.Status != StatusSettled {
		t.Fatalf("cod status = %s, want settled", intent.Status)
	}
	if !intent.Amount.Equal(decimal.NewFromInt(530)) {
		t.Fatalf("amount = %s", intent.Amount)
	}
}

func TestSimulatedUPIIsPending(t *testing.T) {
	intent, err := Simulated{}.CreateIntent(context.Background(), "ord-2", MethodUPI, decimal.NewFromInt(250))
	if err != nil {
		t.Fatalf("CreateIntent: %v", err)
	}
	if intent.Status != StatusPending {
		t.Fatalf("upi status = %s, want pending", intent.Status)
	}
	if intent.Gateway != "razorpay_sim" {
		t.Fatalf("gateway = %q", intent.Gateway)
	}
	if intent.Ref != "sim_ord-2" {
		t.Fatalf("ref = %q", intent.Ref)
	}
}

func TestSimulatedRazorpayIsPending(t *testing.T) {
	intent, err := Simulated{}.CreateIntent(context.Background(), "ord-4", MethodRazorpay, decimal.NewFromInt(530))
	if err != nil {
		t.Fatalf("CreateIntent: %v", err)
	}
	if intent.Status != StatusPending {
		t.Fatalf("razorpay status = %s, want pending", intent.Status)
	}
	if intent.Method != MethodRazorpay {
		t.Fatalf("method = %s", intent.Method)
	}
	if intent.Gateway != "razorpay_sim" || intent.Ref != "sim_ord-4" {
		t.Fatalf("gateway = %q ref = %q", intent.Gateway, intent.Ref)
	}
	if !ValidMethod(MethodRazorpay) {
		t.Fatal("razorpay should be a valid method")
	}
}

func TestSimulatedRejectsUnknownMethod(t *testing.T) {
	if _, err := (Simulated{}).CreateIntent(context.Background(), "ord-3", Method("card"), decimal.Zero); err == nil {
		t.Fatal("expected error for unsupported method")
	}
}
