package stripepayment

import (
	"math"
	"time"
)

// Internal callers work in major units (dollars); Stripe wants minor units
// (cents). This file is the only place in the repository that converts
// between the two.

func toCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

func toDollars(cents int64) float64 {
	return float64(cents) / 100
}

func timeFromUnix(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}
