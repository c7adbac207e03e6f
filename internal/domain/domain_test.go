package domain

import "testing"

func TestPaymentStatusRank_TerminalOutranksInFlight(t *testing.T) {
	if PaymentStatusPending.Rank() >= PaymentStatusProcessing.Rank() {
		t.Fatal("processing must outrank pending")
	}
	if PaymentStatusProcessing.Rank() >= PaymentStatusSucceeded.Rank() {
		t.Fatal("succeeded must outrank processing")
	}
	// Terminal statuses share a rank so a replayed terminal event cannot
	// overwrite another terminal outcome.
	if PaymentStatusSucceeded.Rank() != PaymentStatusFailed.Rank() {
		t.Fatal("terminal statuses must share a rank")
	}
	if PaymentStatus("bogus").Rank() != 0 {
		t.Fatal("unknown statuses rank below everything")
	}
}

func TestPaymentStatusTerminal(t *testing.T) {
	for _, s := range []PaymentStatus{PaymentStatusSucceeded, PaymentStatusFailed, PaymentStatusCanceled} {
		if !s.Terminal() {
			t.Errorf("%s must be terminal", s)
		}
	}
	for _, s := range []PaymentStatus{PaymentStatusPending, PaymentStatusProcessing} {
		if s.Terminal() {
			t.Errorf("%s must not be terminal", s)
		}
	}
}

func TestConnectedAccountState(t *testing.T) {
	account := &ConnectedAccount{}
	if account.State() != AccountStateCreated {
		t.Fatalf("expected created, got %s", account.State())
	}

	account.ChargesEnabled = true
	account.PayoutsEnabled = true
	if account.State() != AccountStateActive {
		t.Fatalf("expected active, got %s", account.State())
	}

	account.DisabledReason = "requirements.past_due"
	if account.State() != AccountStateRestricted {
		t.Fatalf("a disabled reason must win over capabilities, got %s", account.State())
	}
}
