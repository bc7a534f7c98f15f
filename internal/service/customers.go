package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/mmeshcher/washbonus/internal/model"
	"github.com/mmeshcher/washbonus/internal/validation"
)

// GetCustomer возвращает клиента бизнеса по номеру телефона.
func (s *Service) GetCustomer(ctx context.Context, businessID uuid.UUID, phone string) (*model.Customer, error) {
	phone, err := validation.NormalizePhone(phone)
	if err != nil {
		return nil, err
	}
	return s.repo.GetCustomerByPhone(ctx, businessID, phone)
}

// CreateCustomer регистрирует клиента бизнеса.
func (s *Service) CreateCustomer(ctx context.Context, customer model.Customer) (model.Customer, error) {
	phone, err := validation.NormalizePhone(customer.Phone)
	if err != nil {
		return model.Customer{}, err
	}
	customer.Phone = phone

	if err := s.repo.CreateCustomer(ctx, &customer); err != nil {
		return model.Customer{}, err
	}
	return customer, nil
}

// SetCustomerMembership задаёт членство клиента. Пустой membershipID снимает членство.
func (s *Service) SetCustomerMembership(ctx context.Context, businessID uuid.UUID, phone, membershipID, plan string) (*model.Customer, error) {
	customer, err := s.GetCustomer(ctx, businessID, phone)
	if err != nil {
		return nil, err
	}

	if err := s.repo.SetCustomerMembership(ctx, customer.ID, membershipID, plan); err != nil {
		return nil, err
	}

	customer.MembershipID = membershipID
	customer.Plan = plan
	return customer, nil
}

// ListTransactions возвращает транзакции бизнеса; непустой phone ограничивает
// выборку одним клиентом.
func (s *Service) ListTransactions(ctx context.Context, businessID uuid.UUID, phone string) ([]model.Transaction, error) {
	if phone != "" {
		normalized, err := validation.NormalizePhone(phone)
		if err != nil {
			return nil, err
		}
		phone = normalized
	}
	return s.repo.ListTransactions(ctx, businessID, phone)
}

// ListPendingTransactions возвращает неодобренные транзакции бизнеса.
func (s *Service) ListPendingTransactions(ctx context.Context, businessID uuid.UUID) ([]model.Transaction, error) {
	return s.repo.ListPendingTransactions(ctx, businessID)
}
