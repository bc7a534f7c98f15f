package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/washbonus/internal/repository"
)

// ReconcileBalances пересчитывает кешированные балансы клиентов бизнеса из
// журнала баллов и возвращает число исправленных расхождений.
func (s *Service) ReconcileBalances(ctx context.Context, businessID uuid.UUID) (int, error) {
	var fixed int
	err := s.repo.WithinTx(ctx, func(repo repository.Repository) error {
		n, err := repo.ReconcileBalances(ctx, businessID)
		fixed = n
		return err
	})
	return fixed, err
}

// StartBalanceReconciliation запускает фоновую сверку балансов всех бизнесов
// с указанным интервалом. Процесс останавливается при отмене контекста.
func (s *Service) StartBalanceReconciliation(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.reconcileAll(ctx)
			}
		}
	}()
}

func (s *Service) reconcileAll(ctx context.Context) {
	businesses, err := s.repo.ListBusinesses(ctx)
	if err != nil {
		s.logger.Warn("list businesses for reconciliation", zap.Error(err))
		return
	}

	for _, b := range businesses {
		fixed, err := s.ReconcileBalances(ctx, b.ID)
		if err != nil {
			s.logger.Warn("balance reconciliation failed",
				zap.String("business", b.Login), zap.Error(err))
			continue
		}
		if fixed > 0 {
			s.logger.Info("balances reconciled",
				zap.String("business", b.Login), zap.Int("fixed", fixed))
		}
	}
}
