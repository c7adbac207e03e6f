/**
 * @description
 * Customer and payment-method management. Customers are registered with the
 * processor first and mirrored locally; funding sources are collected
 * through provider-hosted setup sessions and attached here.
 *
 * @dependencies
 * - context, fmt, log: Standard Go libraries.
 * - github.com/google/uuid: For UUID generation.
 * - internal/domain, internal/store, internal/provider.
 */

package app

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/happytenant/payment-service/internal/domain"
	"github.com/happytenant/payment-service/internal/provider"
)

// RegisterCustomer creates the processor customer and mirrors it locally.
func (s *Service) RegisterCustomer(ctx context.Context, req domain.CreateCustomerRequest) (*domain.Customer, error) {
	result, err := s.provider.CreateCustomer(ctx, provider.CustomerParams{
		Email: req.Email,
		Name:  req.Name,
		Phone: req.Phone,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create provider customer: %w", err)
	}

	customer := &domain.Customer{
		ID:                 uuid.New(),
		ProviderCustomerID: result.ProviderCustomerID,
		Email:              req.Email,
		Name:               req.Name,
		Phone:              req.Phone,
	}
	if err := s.repo.CreateCustomer(ctx, customer); err != nil {
		log.Printf("RegisterCustomer: provider customer %s created but local mirror failed: %v", result.ProviderCustomerID, err)
		return nil, fmt.Errorf("failed to store customer: %w", err)
	}
	return customer, nil
}

// GetCustomer returns the local mirror of a customer.
func (s *Service) GetCustomer(ctx context.Context, customerID uuid.UUID) (*domain.Customer, error) {
	return s.repo.FindCustomerByID(ctx, customerID)
}

// UpdateCustomer pushes identity changes to the processor and the mirror.
func (s *Service) UpdateCustomer(ctx context.Context, customerID uuid.UUID, req domain.CreateCustomerRequest) (*domain.Customer, error) {
	customer, err := s.repo.FindCustomerByID(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if customer.ArchivedAt != nil {
		return nil, ErrCustomerArchived
	}

	if _, err := s.provider.UpdateCustomer(ctx, customer.ProviderCustomerID, provider.CustomerParams{
		Email: req.Email,
		Name:  req.Name,
		Phone: req.Phone,
	}); err != nil {
		return nil, fmt.Errorf("failed to update provider customer: %w", err)
	}

	customer.Email = req.Email
	customer.Name = req.Name
	customer.Phone = req.Phone
	if err := s.repo.UpdateCustomer(ctx, customer); err != nil {
		return nil, fmt.Errorf("failed to update customer: %w", err)
	}
	return customer, nil
}

// ArchiveCustomer soft-deletes the mirror. The processor customer is kept so
// refunds against historical payments keep working.
func (s *Service) ArchiveCustomer(ctx context.Context, customerID uuid.UUID) error {
	return s.repo.ArchiveCustomer(ctx, customerID)
}

// CreateSetupSession opens a card/wallet collection session for a customer.
func (s *Service) CreateSetupSession(ctx context.Context, customerID uuid.UUID) (*provider.SetupSessionResult, error) {
	customer, err := s.activeCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	return s.provider.CreateSetupSession(ctx, customer.ProviderCustomerID)
}

// CreateBankLinkSession opens a bank-account linking session for a customer.
func (s *Service) CreateBankLinkSession(ctx context.Context, customerID uuid.UUID) (*provider.SetupSessionResult, error) {
	customer, err := s.activeCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	return s.provider.CreateBankLinkSession(ctx, customer.ProviderCustomerID)
}

// AttachPaymentMethod attaches a collected method at the processor and
// mirrors it. The customer's first method becomes the default.
func (s *Service) AttachPaymentMethod(ctx context.Context, customerID uuid.UUID, providerMethodID string) (*domain.PaymentMethod, error) {
	customer, err := s.activeCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}

	result, err := s.provider.AttachPaymentMethod(ctx, customer.ProviderCustomerID, providerMethodID)
	if err != nil {
		return nil, fmt.Errorf("failed to attach payment method: %w", err)
	}

	method := &domain.PaymentMethod{
		ID:                      uuid.New(),
		CustomerID:              customer.ID,
		ProviderPaymentMethodID: result.ProviderPaymentMethodID,
		Type:                    result.Type,
		Last4:                   result.Last4,
		BankName:                result.BankName,
		CardBrand:               result.CardBrand,
		CardExpMonth:            result.CardExpMonth,
		CardExpYear:             result.CardExpYear,
		VerificationStatus:      result.VerificationStatus,
	}
	if err := s.repo.UpsertPaymentMethod(ctx, method); err != nil {
		return nil, fmt.Errorf("failed to store payment method: %w", err)
	}

	existing, err := s.repo.ListPaymentMethodsByCustomer(ctx, customer.ID)
	if err != nil {
		return nil, err
	}
	if len(existing) == 1 || customer.DefaultPaymentMethodID == "" {
		if err := s.SetDefaultPaymentMethod(ctx, customer.ID, method.ProviderPaymentMethodID); err != nil {
			log.Printf("AttachPaymentMethod: failed to set first method %s as default: %v", method.ProviderPaymentMethodID, err)
		} else {
			method.IsDefault = true
		}
	}
	return method, nil
}

// ListPaymentMethods returns the mirrored methods for a customer.
func (s *Service) ListPaymentMethods(ctx context.Context, customerID uuid.UUID) ([]domain.PaymentMethod, error) {
	return s.repo.ListPaymentMethodsByCustomer(ctx, customerID)
}

// DetachPaymentMethod removes a method at the processor and locally.
func (s *Service) DetachPaymentMethod(ctx context.Context, providerMethodID string) error {
	if err := s.provider.DetachPaymentMethod(ctx, providerMethodID); err != nil {
		return fmt.Errorf("failed to detach payment method: %w", err)
	}
	return s.repo.DeletePaymentMethodByProviderID(ctx, providerMethodID)
}

// SetDefaultPaymentMethod flips the default at the processor, then mirrors
// the flip locally in one transaction.
func (s *Service) SetDefaultPaymentMethod(ctx context.Context, customerID uuid.UUID, providerMethodID string) error {
	customer, err := s.activeCustomer(ctx, customerID)
	if err != nil {
		return err
	}
	if err := s.provider.SetDefaultPaymentMethod(ctx, customer.ProviderCustomerID, providerMethodID); err != nil {
		return fmt.Errorf("failed to set default at provider: %w", err)
	}
	return s.repo.SetDefaultPaymentMethod(ctx, customerID, providerMethodID)
}

func (s *Service) activeCustomer(ctx context.Context, customerID uuid.UUID) (*domain.Customer, error) {
	customer, err := s.repo.FindCustomerByID(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if customer.ArchivedAt != nil {
		return nil, ErrCustomerArchived
	}
	return customer, nil
}
