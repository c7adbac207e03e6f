package app

import "testing"

func TestPlatformFee_PercentageBelowCap(t *testing.T) {
	if got := PlatformFee(100); got != 0.80 {
		t.Fatalf("expected fee of 0.80 for $100, got %v", got)
	}
	if got := PlatformFee(624); got != 4.99 {
		t.Fatalf("expected fee of 4.99 for $624, got %v", got)
	}
}

func TestPlatformFee_CapsAtFiveDollars(t *testing.T) {
	if got := PlatformFee(625); got != 5.00 {
		t.Fatalf("expected fee to hit the cap exactly at $625, got %v", got)
	}
	if got := PlatformFee(1800); got != 5.00 {
		t.Fatalf("expected capped fee of 5.00 for $1800 rent, got %v", got)
	}
}

func TestAllocateFee_LandlordAbsorbs(t *testing.T) {
	total, fee := AllocateFee(FeeModeLandlordAbsorbs, 1800)
	if total != 1800 {
		t.Fatalf("tenant should be charged exactly the rent amount, got %v", total)
	}
	if fee != 5.00 {
		t.Fatalf("expected fee of 5.00, got %v", fee)
	}
}

func TestAllocateFee_TenantPays(t *testing.T) {
	total, fee := AllocateFee(FeeModeTenantPays, 1800)
	if total != 1805 {
		t.Fatalf("expected fee added on top of the charge, got total %v", total)
	}
	if fee != 5.00 {
		t.Fatalf("expected fee of 5.00, got %v", fee)
	}
}

func TestAllocateFee_Split(t *testing.T) {
	total, fee := AllocateFee(FeeModeSplit, 1800)
	if total != 1802.50 {
		t.Fatalf("expected half the fee added to the charge, got total %v", total)
	}
	if fee != 5.00 {
		t.Fatalf("expected full fee retained by the platform, got %v", fee)
	}
}

func TestAllocateExplicitFee_ModeDecidesWhoBearsIt(t *testing.T) {
	total, fee := AllocateExplicitFee(FeeModeLandlordAbsorbs, 1800, 2.00)
	if total != 1800 || fee != 2.00 {
		t.Fatalf("landlord_absorbs: expected 1800/2.00, got %v/%v", total, fee)
	}
	total, fee = AllocateExplicitFee(FeeModeTenantPays, 1800, 2.00)
	if total != 1802 || fee != 2.00 {
		t.Fatalf("tenant_pays: expected 1802/2.00, got %v/%v", total, fee)
	}
	total, fee = AllocateExplicitFee(FeeModeSplit, 1800, 2.00)
	if total != 1801 || fee != 2.00 {
		t.Fatalf("split: expected 1801/2.00, got %v/%v", total, fee)
	}
}

func TestAllocateFee_UnknownModeDefaultsToLandlordAbsorbs(t *testing.T) {
	total, fee := AllocateFee(FeeMode("bogus"), 500)
	if total != 500 {
		t.Fatalf("expected total unchanged for unknown mode, got %v", total)
	}
	if fee != 4.00 {
		t.Fatalf("expected 0.8%% fee of 4.00, got %v", fee)
	}
}
