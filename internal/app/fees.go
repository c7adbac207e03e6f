/**
 * @description
 * Platform fee computation. The fee is 0.8% of the charge amount, capped at
 * $5.00, collected as the application fee on the destination charge. The
 * fee mode decides who bears it: added on top of the tenant's charge,
 * deducted from the landlord's transfer, or split evenly.
 */

package app

import "math"

const (
	feeRate = 0.008
	feeCap  = 5.00
)

// FeeMode decides how the platform fee is allocated between tenant and
// landlord.
type FeeMode string

const (
	// FeeModeLandlordAbsorbs deducts the fee from the landlord's transfer;
	// the tenant is charged exactly the rent amount.
	FeeModeLandlordAbsorbs FeeMode = "landlord_absorbs"
	// FeeModeTenantPays adds the fee on top of the tenant's charge; the
	// landlord receives the full rent amount.
	FeeModeTenantPays FeeMode = "tenant_pays"
	// FeeModeSplit adds half the fee to the tenant's charge and deducts the
	// other half from the landlord's transfer.
	FeeModeSplit FeeMode = "split"
)

// PlatformFee returns the fee for a given rent amount, rounded to the cent.
func PlatformFee(amount float64) float64 {
	fee := amount * feeRate
	if fee > feeCap {
		fee = feeCap
	}
	return roundCents(fee)
}

// AllocateFee returns the total the tenant is charged and the application
// fee retained by the platform, per the fee mode. The landlord always
// receives total minus fee.
func AllocateFee(mode FeeMode, amount float64) (total, fee float64) {
	return allocate(mode, amount, PlatformFee(amount))
}

// AllocateExplicitFee applies a caller-supplied fee instead of the computed
// one. The mode still decides who bears it.
func AllocateExplicitFee(mode FeeMode, amount, fee float64) (total float64, applied float64) {
	return allocate(mode, amount, roundCents(fee))
}

func allocate(mode FeeMode, amount, fee float64) (total float64, applied float64) {
	switch mode {
	case FeeModeTenantPays:
		return roundCents(amount + fee), fee
	case FeeModeSplit:
		half := roundCents(fee / 2)
		return roundCents(amount + half), fee
	default: // FeeModeLandlordAbsorbs
		return amount, fee
	}
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
