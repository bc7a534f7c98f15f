package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/mmeshcher/washbonus/internal/model"
	"github.com/mmeshcher/washbonus/internal/validation"
)

// RequestRedemption проверяет право клиента на погашение персонального
// предложения и возвращает его. Сам флаг погашения здесь не меняется:
// предложение считается использованным только при одобрении пятой транзакции
// с признаком погашения.
func (s *Service) RequestRedemption(ctx context.Context, businessID uuid.UUID, phone string) (*model.RedeemableOffer, error) {
	phone, err := validation.NormalizePhone(phone)
	if err != nil {
		return nil, err
	}

	customer, err := s.repo.GetCustomerByPhone(ctx, businessID, phone)
	if err != nil {
		return nil, err
	}

	count, err := s.repo.CountApprovedTransactions(ctx, businessID, phone)
	if err != nil {
		return nil, err
	}
	if count < 4 {
		return nil, ErrInsufficientVisits
	}

	return s.repo.GetUnredeemedOffer(ctx, customer.ID, businessID, customer.Type())
}

// GetCustomerOffers возвращает персональные предложения клиента.
func (s *Service) GetCustomerOffers(ctx context.Context, businessID uuid.UUID, phone string, includeRedeemed bool) ([]model.RedeemableOffer, error) {
	phone, err := validation.NormalizePhone(phone)
	if err != nil {
		return nil, err
	}

	customer, err := s.repo.GetCustomerByPhone(ctx, businessID, phone)
	if err != nil {
		return nil, err
	}

	return s.repo.ListRedeemableOffers(ctx, customer.ID, includeRedeemed)
}
