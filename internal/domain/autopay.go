/**
 * @description
 * AutoPay domain models: the per-lease recurring-charge configuration and
 * the per-period run record that carries retry state. Periods are keyed as
 * "YYYY-MM" so a crashed scheduler run can be re-triggered without double
 * charging the same month.
 */
package domain

import (
	"time"

	"github.com/google/uuid"
)

// AutoPayRunStatus is the per-period state of a recurring charge.
type AutoPayRunStatus string

const (
	AutoPayRunStatusPending  AutoPayRunStatus = "pending"
	AutoPayRunStatusRetrying AutoPayRunStatus = "retrying"
	AutoPayRunStatusPaid     AutoPayRunStatus = "paid"
	AutoPayRunStatusFailed   AutoPayRunStatus = "failed"
)

// AutoPaySchedule is a tenant's recurring rent charge configuration.
type AutoPaySchedule struct {
	ID              uuid.UUID `json:"id"`
	LeaseID         uuid.UUID `json:"lease_id"`
	CustomerID      uuid.UUID `json:"customer_id"`
	PaymentMethodID string    `json:"payment_method_id"`
	DestinationID   string    `json:"destination_account_id"`
	DayOfMonth      int       `json:"day_of_month"`
	RentAmount      float64   `json:"rent_amount"`
	MonthlyFees     float64   `json:"monthly_fees"`
	Enabled         bool      `json:"enabled"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// ChargeAmount is the total the scheduler submits for one period.
func (s *AutoPaySchedule) ChargeAmount() float64 {
	return s.RentAmount + s.MonthlyFees
}

// AutoPayRun tracks one schedule's charge attempts for one period.
type AutoPayRun struct {
	ID            uuid.UUID        `json:"id"`
	ScheduleID    uuid.UUID        `json:"schedule_id"`
	Period        string           `json:"period"`
	Status        AutoPayRunStatus `json:"status"`
	AttemptCount  int              `json:"attempt_count"`
	NextAttemptAt *time.Time       `json:"next_attempt_at,omitempty"`
	LastFailure   string           `json:"last_failure,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// Period formats t as an AutoPay period key.
func Period(t time.Time) string {
	return t.UTC().Format("2006-01")
}
