/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository`
 * interface. It contains all the SQL for the payment ledger: customers,
 * payment methods, connected accounts, payments, refunds, payouts, AutoPay
 * schedules and runs, and the webhook dedup table.
 *
 * @dependencies
 * - context, time, errors: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/happytenant/payment-service/internal/domain"
)

var (
	ErrCustomerNotFound      = errors.New("customer not found")
	ErrPaymentMethodNotFound = errors.New("payment method not found")
	ErrAccountNotFound       = errors.New("connected account not found")
	ErrAccountExists         = errors.New("connected account already exists for landlord")
	ErrPaymentNotFound       = errors.New("payment not found")
	ErrScheduleNotFound      = errors.New("autopay schedule not found")
	ErrRunNotFound           = errors.New("autopay run not found")
	ErrEventAlreadyProcessed = errors.New("webhook event already processed")
)

const uniqueViolation = "23505"

// querier is satisfied by both *pgxpool.Pool and pgx.Tx so the ledger
// queries can run standalone or inside a webhook transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// ---------------------------------------------------------------------------
// Customers
// ---------------------------------------------------------------------------

func (r *PostgresRepository) CreateCustomer(ctx context.Context, customer *domain.Customer) error {
	query := `
		INSERT INTO customers (id, provider_customer_id, email, name, phone, default_payment_method_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`
	return r.db.QueryRow(ctx, query,
		customer.ID,
		customer.ProviderCustomerID,
		customer.Email,
		customer.Name,
		customer.Phone,
		customer.DefaultPaymentMethodID,
	).Scan(&customer.CreatedAt, &customer.UpdatedAt)
}

const customerColumns = `id, provider_customer_id, email, name, phone, default_payment_method_id, archived_at, created_at, updated_at`

func scanCustomer(row pgx.Row) (*domain.Customer, error) {
	var c domain.Customer
	err := row.Scan(
		&c.ID,
		&c.ProviderCustomerID,
		&c.Email,
		&c.Name,
		&c.Phone,
		&c.DefaultPaymentMethodID,
		&c.ArchivedAt,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrCustomerNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *PostgresRepository) FindCustomerByID(ctx context.Context, customerID uuid.UUID) (*domain.Customer, error) {
	query := fmt.Sprintf(`SELECT %s FROM customers WHERE id = $1`, customerColumns)
	return scanCustomer(r.db.QueryRow(ctx, query, customerID))
}

func (r *PostgresRepository) FindCustomerByProviderID(ctx context.Context, providerCustomerID string) (*domain.Customer, error) {
	query := fmt.Sprintf(`SELECT %s FROM customers WHERE provider_customer_id = $1`, customerColumns)
	return scanCustomer(r.db.QueryRow(ctx, query, providerCustomerID))
}

func (r *PostgresRepository) UpdateCustomer(ctx context.Context, customer *domain.Customer) error {
	query := `
		UPDATE customers
		SET email = $2, name = $3, phone = $4, default_payment_method_id = $5, updated_at = NOW()
		WHERE id = $1
	`
	tag, err := r.db.Exec(ctx, query,
		customer.ID,
		customer.Email,
		customer.Name,
		customer.Phone,
		customer.DefaultPaymentMethodID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrCustomerNotFound
	}
	return nil
}

// ArchiveCustomer soft-deletes: the row stays so historical payments keep a
// valid reference.
func (r *PostgresRepository) ArchiveCustomer(ctx context.Context, customerID uuid.UUID) error {
	query := `UPDATE customers SET archived_at = NOW(), updated_at = NOW() WHERE id = $1 AND archived_at IS NULL`
	tag, err := r.db.Exec(ctx, query, customerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrCustomerNotFound
	}
	return nil
}

// ---------------------------------------------------------------------------
// Payment methods
// ---------------------------------------------------------------------------

func (r *PostgresRepository) UpsertPaymentMethod(ctx context.Context, method *domain.PaymentMethod) error {
	query := `
		INSERT INTO payment_methods
			(id, customer_id, provider_payment_method_id, type, last4, bank_name,
			 card_brand, card_exp_month, card_exp_year, verification_status, is_default)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (provider_payment_method_id) DO UPDATE SET
			type = EXCLUDED.type,
			last4 = EXCLUDED.last4,
			bank_name = EXCLUDED.bank_name,
			card_brand = EXCLUDED.card_brand,
			card_exp_month = EXCLUDED.card_exp_month,
			card_exp_year = EXCLUDED.card_exp_year,
			verification_status = EXCLUDED.verification_status,
			updated_at = NOW()
		RETURNING id, created_at, updated_at
	`
	return r.db.QueryRow(ctx, query,
		method.ID,
		method.CustomerID,
		method.ProviderPaymentMethodID,
		method.Type,
		method.Last4,
		method.BankName,
		method.CardBrand,
		method.CardExpMonth,
		method.CardExpYear,
		method.VerificationStatus,
		method.IsDefault,
	).Scan(&method.ID, &method.CreatedAt, &method.UpdatedAt)
}

const paymentMethodColumns = `id, customer_id, provider_payment_method_id, type, last4, bank_name,
	card_brand, card_exp_month, card_exp_year, verification_status, is_default, needs_replacement,
	created_at, updated_at`

func scanPaymentMethod(row pgx.Row) (*domain.PaymentMethod, error) {
	var m domain.PaymentMethod
	err := row.Scan(
		&m.ID,
		&m.CustomerID,
		&m.ProviderPaymentMethodID,
		&m.Type,
		&m.Last4,
		&m.BankName,
		&m.CardBrand,
		&m.CardExpMonth,
		&m.CardExpYear,
		&m.VerificationStatus,
		&m.IsDefault,
		&m.NeedsReplacement,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrPaymentMethodNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (r *PostgresRepository) FindPaymentMethodByProviderID(ctx context.Context, providerMethodID string) (*domain.PaymentMethod, error) {
	query := fmt.Sprintf(`SELECT %s FROM payment_methods WHERE provider_payment_method_id = $1`, paymentMethodColumns)
	return scanPaymentMethod(r.db.QueryRow(ctx, query, providerMethodID))
}

func (r *PostgresRepository) ListPaymentMethodsByCustomer(ctx context.Context, customerID uuid.UUID) ([]domain.PaymentMethod, error) {
	query := fmt.Sprintf(`SELECT %s FROM payment_methods WHERE customer_id = $1 ORDER BY created_at`, paymentMethodColumns)
	rows, err := r.db.Query(ctx, query, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var methods []domain.PaymentMethod
	for rows.Next() {
		m, err := scanPaymentMethod(rows)
		if err != nil {
			return nil, err
		}
		methods = append(methods, *m)
	}
	return methods, rows.Err()
}

// SetDefaultPaymentMethod flips the default flag in a single transaction so
// at most one method per customer ever carries it.
func (r *PostgresRepository) SetDefaultPaymentMethod(ctx context.Context, customerID uuid.UUID, providerMethodID string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`UPDATE payment_methods SET is_default = FALSE, updated_at = NOW() WHERE customer_id = $1 AND is_default`,
		customerID,
	); err != nil {
		return err
	}

	tag, err := tx.Exec(ctx,
		`UPDATE payment_methods SET is_default = TRUE, updated_at = NOW()
		 WHERE customer_id = $1 AND provider_payment_method_id = $2`,
		customerID, providerMethodID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPaymentMethodNotFound
	}

	if _, err := tx.Exec(ctx,
		`UPDATE customers SET default_payment_method_id = $2, updated_at = NOW() WHERE id = $1`,
		customerID, providerMethodID,
	); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// DeletePaymentMethodByProviderID removes the mirror row and, in the same
// transaction, clears the customer's denormalized default if it pointed at
// the deleted method, so a later charge can never fall back to it.
func (r *PostgresRepository) DeletePaymentMethodByProviderID(ctx context.Context, providerMethodID string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := deletePaymentMethod(ctx, tx, providerMethodID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func deletePaymentMethod(ctx context.Context, q querier, providerMethodID string) error {
	var customerID uuid.UUID
	err := q.QueryRow(ctx,
		`DELETE FROM payment_methods WHERE provider_payment_method_id = $1 RETURNING customer_id`,
		providerMethodID,
	).Scan(&customerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrPaymentMethodNotFound
	}
	if err != nil {
		return err
	}

	_, err = q.Exec(ctx,
		`UPDATE customers SET default_payment_method_id = '', updated_at = NOW()
		 WHERE id = $1 AND default_payment_method_id = $2`,
		customerID, providerMethodID,
	)
	return err
}

// FlagPaymentMethodForReplacement marks a method the processor rejected as
// unusable so the tenant is prompted before any further charge is tried.
func (r *PostgresRepository) FlagPaymentMethodForReplacement(ctx context.Context, providerMethodID string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE payment_methods SET needs_replacement = TRUE, updated_at = NOW() WHERE provider_payment_method_id = $1`,
		providerMethodID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPaymentMethodNotFound
	}
	return nil
}

// ---------------------------------------------------------------------------
// Connected accounts
// ---------------------------------------------------------------------------

func (r *PostgresRepository) CreateConnectedAccount(ctx context.Context, account *domain.ConnectedAccount) error {
	query := `
		INSERT INTO connected_accounts
			(id, landlord_id, provider_account_id, business_type, business_name, email,
			 trust_level, payout_delay_days)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		account.ID,
		account.LandlordID,
		account.ProviderAccountID,
		account.BusinessType,
		account.BusinessName,
		account.Email,
		account.TrustLevel,
		account.PayoutDelayDays,
	).Scan(&account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrAccountExists
		}
		return err
	}
	return nil
}

const accountColumns = `id, landlord_id, provider_account_id, business_type, business_name, email,
	charges_enabled, payouts_enabled, details_submitted, currently_due, eventually_due, past_due,
	disabled_reason, trust_level, payout_delay_days, created_at, updated_at`

func scanAccount(row pgx.Row) (*domain.ConnectedAccount, error) {
	var a domain.ConnectedAccount
	err := row.Scan(
		&a.ID,
		&a.LandlordID,
		&a.ProviderAccountID,
		&a.BusinessType,
		&a.BusinessName,
		&a.Email,
		&a.ChargesEnabled,
		&a.PayoutsEnabled,
		&a.DetailsSubmitted,
		&a.CurrentlyDue,
		&a.EventuallyDue,
		&a.PastDue,
		&a.DisabledReason,
		&a.TrustLevel,
		&a.PayoutDelayDays,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (r *PostgresRepository) FindConnectedAccountByID(ctx context.Context, accountID uuid.UUID) (*domain.ConnectedAccount, error) {
	query := fmt.Sprintf(`SELECT %s FROM connected_accounts WHERE id = $1`, accountColumns)
	return scanAccount(r.db.QueryRow(ctx, query, accountID))
}

func (r *PostgresRepository) FindConnectedAccountByLandlordID(ctx context.Context, landlordID uuid.UUID) (*domain.ConnectedAccount, error) {
	query := fmt.Sprintf(`SELECT %s FROM connected_accounts WHERE landlord_id = $1`, accountColumns)
	return scanAccount(r.db.QueryRow(ctx, query, landlordID))
}

func (r *PostgresRepository) FindConnectedAccountByProviderID(ctx context.Context, providerAccountID string) (*domain.ConnectedAccount, error) {
	query := fmt.Sprintf(`SELECT %s FROM connected_accounts WHERE provider_account_id = $1`, accountColumns)
	return scanAccount(r.db.QueryRow(ctx, query, providerAccountID))
}

func (r *PostgresRepository) UpdateConnectedAccountStatus(ctx context.Context, providerAccountID string, params UpdateAccountStatusParams) error {
	return updateAccountStatus(ctx, r.db, providerAccountID, params)
}

func updateAccountStatus(ctx context.Context, q querier, providerAccountID string, params UpdateAccountStatusParams) error {
	query := `
		UPDATE connected_accounts
		SET charges_enabled = $2, payouts_enabled = $3, details_submitted = $4,
		    currently_due = $5, eventually_due = $6, past_due = $7,
		    disabled_reason = $8, updated_at = NOW()
		WHERE provider_account_id = $1
	`
	tag, err := q.Exec(ctx, query,
		providerAccountID,
		params.ChargesEnabled,
		params.PayoutsEnabled,
		params.DetailsSubmitted,
		params.CurrentlyDue,
		params.EventuallyDue,
		params.PastDue,
		params.DisabledReason,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (r *PostgresRepository) UpdateTrustLevel(ctx context.Context, accountID uuid.UUID, level domain.TrustLevel, delayDays int64) error {
	query := `
		UPDATE connected_accounts
		SET trust_level = $2, payout_delay_days = $3, updated_at = NOW()
		WHERE id = $1
	`
	tag, err := r.db.Exec(ctx, query, accountID, level, delayDays)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// ---------------------------------------------------------------------------
// Payments, refunds, payouts
// ---------------------------------------------------------------------------

func (r *PostgresRepository) CreatePayment(ctx context.Context, payment *domain.Payment) error {
	query := `
		INSERT INTO payments
			(id, provider_payment_id, customer_id, payment_method_id, destination_account_id,
			 amount, currency, platform_fee, net_amount, status, failure_code, failure_message,
			 receipt_url, description, schedule_id, period)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING created_at, updated_at
	`
	return r.db.QueryRow(ctx, query,
		payment.ID,
		payment.ProviderPaymentID,
		payment.CustomerID,
		payment.PaymentMethodID,
		payment.DestinationID,
		payment.Amount,
		payment.Currency,
		payment.PlatformFee,
		payment.NetAmount,
		payment.Status,
		payment.FailureCode,
		payment.FailureMessage,
		payment.ReceiptURL,
		payment.Description,
		payment.ScheduleID,
		payment.Period,
	).Scan(&payment.CreatedAt, &payment.UpdatedAt)
}

const paymentColumns = `id, provider_payment_id, customer_id, payment_method_id, destination_account_id,
	amount, currency, platform_fee, net_amount, status, failure_code, failure_message,
	receipt_url, description, schedule_id, period, created_at, updated_at`

func scanPayment(row pgx.Row) (*domain.Payment, error) {
	var p domain.Payment
	err := row.Scan(
		&p.ID,
		&p.ProviderPaymentID,
		&p.CustomerID,
		&p.PaymentMethodID,
		&p.DestinationID,
		&p.Amount,
		&p.Currency,
		&p.PlatformFee,
		&p.NetAmount,
		&p.Status,
		&p.FailureCode,
		&p.FailureMessage,
		&p.ReceiptURL,
		&p.Description,
		&p.ScheduleID,
		&p.Period,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *PostgresRepository) FindPaymentByID(ctx context.Context, paymentID uuid.UUID) (*domain.Payment, error) {
	query := fmt.Sprintf(`SELECT %s FROM payments WHERE id = $1`, paymentColumns)
	return scanPayment(r.db.QueryRow(ctx, query, paymentID))
}

func (r *PostgresRepository) FindPaymentByProviderID(ctx context.Context, providerPaymentID string) (*domain.Payment, error) {
	query := fmt.Sprintf(`SELECT %s FROM payments WHERE provider_payment_id = $1`, paymentColumns)
	return scanPayment(r.db.QueryRow(ctx, query, providerPaymentID))
}

func (r *PostgresRepository) ListPaymentsByCustomer(ctx context.Context, customerID uuid.UUID, limit, offset int) ([]domain.Payment, error) {
	query := fmt.Sprintf(`SELECT %s FROM payments WHERE customer_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, paymentColumns)
	rows, err := r.db.Query(ctx, query, customerID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []domain.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, *p)
	}
	return payments, rows.Err()
}

// statusRank mirrors domain.PaymentStatus.Rank in SQL so out-of-order
// webhook deliveries converge: the WHERE clause only lets a higher-ranked
// status land.
const statusRank = `CASE %s WHEN 'pending' THEN 1 WHEN 'processing' THEN 2 ELSE 3 END`

func (r *PostgresRepository) ApplyPaymentStatus(ctx context.Context, providerPaymentID string, update PaymentStatusUpdate) error {
	return applyPaymentStatus(ctx, r.db, providerPaymentID, update)
}

func applyPaymentStatus(ctx context.Context, q querier, providerPaymentID string, update PaymentStatusUpdate) error {
	query := fmt.Sprintf(`
		UPDATE payments
		SET status = $2,
		    failure_code = COALESCE(NULLIF($3, ''), failure_code),
		    failure_message = COALESCE(NULLIF($4, ''), failure_message),
		    receipt_url = COALESCE(NULLIF($5, ''), receipt_url),
		    updated_at = NOW()
		WHERE provider_payment_id = $1
		  AND (`+statusRank+`) < (`+statusRank+`)
	`, "status", "$2::text")
	tag, err := q.Exec(ctx, query,
		providerPaymentID,
		update.Status,
		update.FailureCode,
		update.FailureMessage,
		update.ReceiptURL,
	)
	if err != nil {
		return err
	}
	// Zero rows is fine: either the payment is unknown (a charge we never
	// initiated) or the stored status already outranks this delivery.
	_ = tag
	return nil
}

func (r *PostgresRepository) CreateRefund(ctx context.Context, refund *domain.Refund) error {
	return createRefund(ctx, r.db, refund)
}

// createRefund resolves the internal payment id from the provider payment
// id so webhook handlers, which only see provider identifiers, can record
// refunds directly.
func createRefund(ctx context.Context, q querier, refund *domain.Refund) error {
	query := `
		INSERT INTO refunds (id, provider_refund_id, payment_id, provider_payment_id, amount, status, reason)
		SELECT $1, $2, p.id, $3, $4, $5, $6
		FROM payments p WHERE p.provider_payment_id = $3
		ON CONFLICT (provider_refund_id) DO UPDATE SET status = EXCLUDED.status
		RETURNING payment_id, created_at
	`
	err := q.QueryRow(ctx, query,
		refund.ID,
		refund.ProviderRefundID,
		refund.ProviderPaymentID,
		refund.Amount,
		refund.Status,
		refund.Reason,
	).Scan(&refund.PaymentID, &refund.CreatedAt)
	if err == pgx.ErrNoRows {
		return ErrPaymentNotFound
	}
	return err
}

func (r *PostgresRepository) UpsertPayout(ctx context.Context, payout *domain.Payout) error {
	return upsertPayout(ctx, r.db, payout)
}

func upsertPayout(ctx context.Context, q querier, payout *domain.Payout) error {
	query := `
		INSERT INTO payouts
			(id, provider_payout_id, connected_account_id, amount, currency, status,
			 arrival_date, failure_code, failure_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (provider_payout_id) DO UPDATE SET
			status = EXCLUDED.status,
			arrival_date = EXCLUDED.arrival_date,
			failure_code = EXCLUDED.failure_code,
			failure_message = EXCLUDED.failure_message,
			updated_at = NOW()
		RETURNING id, created_at, updated_at
	`
	return q.QueryRow(ctx, query,
		payout.ID,
		payout.ProviderPayoutID,
		payout.AccountID,
		payout.Amount,
		payout.Currency,
		payout.Status,
		payout.ArrivalDate,
		payout.FailureCode,
		payout.FailureMessage,
	).Scan(&payout.ID, &payout.CreatedAt, &payout.UpdatedAt)
}

// ---------------------------------------------------------------------------
// AutoPay
// ---------------------------------------------------------------------------

func (r *PostgresRepository) CreateAutoPaySchedule(ctx context.Context, schedule *domain.AutoPaySchedule) error {
	query := `
		INSERT INTO autopay_schedules
			(id, lease_id, customer_id, payment_method_id, destination_account_id,
			 day_of_month, rent_amount, monthly_fees, enabled)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`
	return r.db.QueryRow(ctx, query,
		schedule.ID,
		schedule.LeaseID,
		schedule.CustomerID,
		schedule.PaymentMethodID,
		schedule.DestinationID,
		schedule.DayOfMonth,
		schedule.RentAmount,
		schedule.MonthlyFees,
		schedule.Enabled,
	).Scan(&schedule.CreatedAt, &schedule.UpdatedAt)
}

const scheduleColumns = `id, lease_id, customer_id, payment_method_id, destination_account_id,
	day_of_month, rent_amount, monthly_fees, enabled, created_at, updated_at`

func scanSchedule(row pgx.Row) (*domain.AutoPaySchedule, error) {
	var s domain.AutoPaySchedule
	err := row.Scan(
		&s.ID,
		&s.LeaseID,
		&s.CustomerID,
		&s.PaymentMethodID,
		&s.DestinationID,
		&s.DayOfMonth,
		&s.RentAmount,
		&s.MonthlyFees,
		&s.Enabled,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrScheduleNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (r *PostgresRepository) FindAutoPayScheduleByID(ctx context.Context, scheduleID uuid.UUID) (*domain.AutoPaySchedule, error) {
	query := fmt.Sprintf(`SELECT %s FROM autopay_schedules WHERE id = $1`, scheduleColumns)
	return scanSchedule(r.db.QueryRow(ctx, query, scheduleID))
}

func (r *PostgresRepository) FindAutoPayScheduleByLeaseID(ctx context.Context, leaseID uuid.UUID) (*domain.AutoPaySchedule, error) {
	query := fmt.Sprintf(`SELECT %s FROM autopay_schedules WHERE lease_id = $1`, scheduleColumns)
	return scanSchedule(r.db.QueryRow(ctx, query, leaseID))
}

func (r *PostgresRepository) UpdateAutoPaySchedule(ctx context.Context, schedule *domain.AutoPaySchedule) error {
	query := `
		UPDATE autopay_schedules
		SET payment_method_id = $2, destination_account_id = $3, day_of_month = $4,
		    rent_amount = $5, monthly_fees = $6, enabled = $7, updated_at = NOW()
		WHERE id = $1
	`
	tag, err := r.db.Exec(ctx, query,
		schedule.ID,
		schedule.PaymentMethodID,
		schedule.DestinationID,
		schedule.DayOfMonth,
		schedule.RentAmount,
		schedule.MonthlyFees,
		schedule.Enabled,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrScheduleNotFound
	}
	return nil
}

func (r *PostgresRepository) SetAutoPayEnabled(ctx context.Context, scheduleID uuid.UUID, enabled bool) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE autopay_schedules SET enabled = $2, updated_at = NOW() WHERE id = $1`,
		scheduleID, enabled,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrScheduleNotFound
	}
	return nil
}

// FindDueSchedules returns enabled schedules whose charge day is due today
// and which have no run claimed for the period yet. Schedules set to a day
// past the end of the current month fire on the month's last day, which is
// why the comparison is >= when dueDay is the last day.
func (r *PostgresRepository) FindDueSchedules(ctx context.Context, dueDay int, lastDayOfMonth bool, period string) ([]domain.AutoPaySchedule, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM autopay_schedules s
		WHERE enabled
		  AND (day_of_month = $1 OR (day_of_month > $1 AND $2))
		  AND NOT EXISTS (
			SELECT 1 FROM autopay_runs r WHERE r.schedule_id = s.id AND r.period = $3
		  )
		ORDER BY created_at
	`, scheduleColumns)
	rows, err := r.db.Query(ctx, query, dueDay, lastDayOfMonth, period)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var schedules []domain.AutoPaySchedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, *s)
	}
	return schedules, rows.Err()
}

// ClaimAutoPayRun inserts the per-period run row. The unique constraint on
// (schedule_id, period) makes the claim the idempotency gate: the second
// caller for the same period gets claimed=false and must not charge.
func (r *PostgresRepository) ClaimAutoPayRun(ctx context.Context, scheduleID uuid.UUID, period string) (*domain.AutoPayRun, bool, error) {
	run := &domain.AutoPayRun{
		ID:         uuid.New(),
		ScheduleID: scheduleID,
		Period:     period,
		Status:     domain.AutoPayRunStatusPending,
	}
	query := `
		INSERT INTO autopay_runs (id, schedule_id, period, status)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (schedule_id, period) DO NOTHING
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query, run.ID, run.ScheduleID, run.Period, run.Status).
		Scan(&run.CreatedAt, &run.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, err
	}
	return run, true, nil
}

const runColumns = `id, schedule_id, period, status, attempt_count, next_attempt_at, last_failure, created_at, updated_at`

func scanRun(row pgx.Row) (*domain.AutoPayRun, error) {
	var run domain.AutoPayRun
	err := row.Scan(
		&run.ID,
		&run.ScheduleID,
		&run.Period,
		&run.Status,
		&run.AttemptCount,
		&run.NextAttemptAt,
		&run.LastFailure,
		&run.CreatedAt,
		&run.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrRunNotFound
		}
		return nil, err
	}
	return &run, nil
}

func (r *PostgresRepository) FindRetryDueRuns(ctx context.Context, now time.Time) ([]domain.AutoPayRun, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM autopay_runs
		WHERE status = 'retrying' AND next_attempt_at IS NOT NULL AND next_attempt_at <= $1
		ORDER BY next_attempt_at
	`, runColumns)
	rows, err := r.db.Query(ctx, query, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []domain.AutoPayRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

func (r *PostgresRepository) MarkAutoPayRunPaid(ctx context.Context, runID uuid.UUID) error {
	query := `
		UPDATE autopay_runs
		SET status = 'paid', next_attempt_at = NULL, updated_at = NOW()
		WHERE id = $1
	`
	tag, err := r.db.Exec(ctx, query, runID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRunNotFound
	}
	return nil
}

func (r *PostgresRepository) MarkAutoPayRunRetrying(ctx context.Context, runID uuid.UUID, attemptCount int, nextAttemptAt time.Time, failure string) error {
	query := `
		UPDATE autopay_runs
		SET status = 'retrying', attempt_count = $2, next_attempt_at = $3, last_failure = $4, updated_at = NOW()
		WHERE id = $1
	`
	tag, err := r.db.Exec(ctx, query, runID, attemptCount, nextAttemptAt, failure)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRunNotFound
	}
	return nil
}

func (r *PostgresRepository) MarkAutoPayRunFailed(ctx context.Context, runID uuid.UUID, attemptCount int, failure string) error {
	query := `
		UPDATE autopay_runs
		SET status = 'failed', attempt_count = $2, next_attempt_at = NULL, last_failure = $3, updated_at = NOW()
		WHERE id = $1
	`
	tag, err := r.db.Exec(ctx, query, runID, attemptCount, failure)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRunNotFound
	}
	return nil
}

// ---------------------------------------------------------------------------
// Webhook dedup
// ---------------------------------------------------------------------------

// ProcessEventOnce records the event id and runs apply inside one
// transaction. The unique index on provider_event_id is the idempotency
// mechanism: a redelivered event gets ErrEventAlreadyProcessed and no
// ledger change. If apply fails, the whole transaction rolls back so the
// processor's retry sees an unprocessed event.
func (r *PostgresRepository) ProcessEventOnce(ctx context.Context, eventID, eventType string, apply func(ctx context.Context, tx LedgerTx) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		INSERT INTO webhook_events (provider_event_id, type, received_at, status)
		VALUES ($1, $2, NOW(), 'processed')
		ON CONFLICT (provider_event_id) DO NOTHING
	`, eventID, eventType)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrEventAlreadyProcessed
	}

	if err := apply(ctx, &ledgerTx{tx: tx}); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// ledgerTx adapts a pgx transaction to the LedgerTx interface.
type ledgerTx struct {
	tx pgx.Tx
}

func (l *ledgerTx) ApplyPaymentStatus(ctx context.Context, providerPaymentID string, update PaymentStatusUpdate) error {
	return applyPaymentStatus(ctx, l.tx, providerPaymentID, update)
}

func (l *ledgerTx) RecordRefund(ctx context.Context, refund *domain.Refund) error {
	return createRefund(ctx, l.tx, refund)
}

func (l *ledgerTx) UpsertPayout(ctx context.Context, payout *domain.Payout) error {
	return upsertPayout(ctx, l.tx, payout)
}

func (l *ledgerTx) UpdateAccountStatus(ctx context.Context, providerAccountID string, params UpdateAccountStatusParams) error {
	return updateAccountStatus(ctx, l.tx, providerAccountID, params)
}

func (l *ledgerTx) MarkPaymentMethodDetached(ctx context.Context, providerMethodID string) error {
	err := deletePaymentMethod(ctx, l.tx, providerMethodID)
	if errors.Is(err, ErrPaymentMethodNotFound) {
		// A method this service never mirrored; nothing to clean up.
		return nil
	}
	return err
}

// MarkRunPaidByProviderPayment settles the AutoPay run backing a scheduled
// payment once the processor confirms it. Processing bank debits succeed
// days after the run was recorded, so the join goes through the payment
// row's schedule and period.
func (l *ledgerTx) MarkRunPaidByProviderPayment(ctx context.Context, providerPaymentID string) error {
	_, err := l.tx.Exec(ctx, `
		UPDATE autopay_runs r
		SET status = 'paid', next_attempt_at = NULL, updated_at = NOW()
		FROM payments p
		WHERE p.provider_payment_id = $1
		  AND p.schedule_id = r.schedule_id AND p.period = r.period
		  AND r.status <> 'paid'
	`, providerPaymentID)
	return err
}

// DisableSchedulesForMethod turns off every AutoPay schedule that charges
// through the given method and flags nothing else; the caller decides how
// to notify the tenant.
func (l *ledgerTx) DisableSchedulesForMethod(ctx context.Context, providerMethodID string) (int64, error) {
	tag, err := l.tx.Exec(ctx,
		`UPDATE autopay_schedules SET enabled = FALSE, updated_at = NOW() WHERE payment_method_id = $1 AND enabled`,
		providerMethodID,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
