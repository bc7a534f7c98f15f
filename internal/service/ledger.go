package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/mmeshcher/washbonus/internal/model"
	"github.com/mmeshcher/washbonus/internal/repository"
	"github.com/mmeshcher/washbonus/internal/validation"
)

// postEntry записывает начисление в журнал и синхронно обновляет кешированный
// баланс и устаревшее поле на клиенте. Три записи фиксируются одной
// транзакцией БД вызывающей стороны.
func (s *Service) postEntry(ctx context.Context, repo repository.Repository, entry *model.LedgerEntry) error {
	if err := repo.InsertLedgerEntry(ctx, entry); err != nil {
		return err
	}
	if _, err := repo.UpsertPointBalance(ctx, entry.CustomerID, entry.PointsDelta); err != nil {
		return err
	}
	return repo.AddCustomerPoints(ctx, entry.CustomerID, entry.PointsDelta)
}

// PostLedgerEntry записывает ручную корректировку баллов клиента.
// Дельта может быть отрицательной.
func (s *Service) PostLedgerEntry(ctx context.Context, entry model.LedgerEntry) (model.LedgerEntry, error) {
	err := s.repo.WithinTx(ctx, func(repo repository.Repository) error {
		return s.postEntry(ctx, repo, &entry)
	})
	if err != nil {
		return model.LedgerEntry{}, err
	}
	return entry, nil
}

// GetCustomerBalance возвращает баланс клиента по номеру телефона. Порядок
// источников: кешированный баланс, затем устаревшее поле клиента; для
// неизвестного клиента баланс равен нулю.
func (s *Service) GetCustomerBalance(ctx context.Context, businessID uuid.UUID, phone string) (int, error) {
	phone, err := validation.NormalizePhone(phone)
	if err != nil {
		return 0, err
	}

	customer, err := s.repo.GetCustomerByPhone(ctx, businessID, phone)
	if err != nil {
		if errors.Is(err, repository.ErrCustomerNotFound) {
			return 0, nil
		}
		return 0, err
	}

	total, found, err := s.repo.GetPointBalance(ctx, customer.ID)
	if err != nil {
		return 0, err
	}
	if found {
		return total, nil
	}

	return customer.Points, nil
}

// GetLedgerHistory возвращает журнал баллов клиента по номеру телефона.
func (s *Service) GetLedgerHistory(ctx context.Context, businessID uuid.UUID, phone string) ([]model.LedgerEntry, error) {
	phone, err := validation.NormalizePhone(phone)
	if err != nil {
		return nil, err
	}

	customer, err := s.repo.GetCustomerByPhone(ctx, businessID, phone)
	if err != nil {
		return nil, err
	}

	return s.repo.ListLedgerEntries(ctx, customer.ID)
}
