package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/washbonus/internal/model"
	"github.com/mmeshcher/washbonus/internal/reward"
	"github.com/mmeshcher/washbonus/internal/validation"
)

// CreateRule сохраняет промо-правило, предварительно проверяя разбираемость
// значения вознаграждения.
func (s *Service) CreateRule(ctx context.Context, rule model.Rule) (model.Rule, error) {
	if _, err := model.ParseRewardValue(rule.RewardType, rule.RewardValue); err != nil {
		return model.Rule{}, fmt.Errorf("reward value: %w", err)
	}
	if rule.CustomerType == "" {
		rule.CustomerType = model.CustomerTypeAny
	}
	if rule.PerUnit == "" {
		rule.PerUnit = model.PerTransaction
	}

	if err := s.repo.CreateRule(ctx, &rule); err != nil {
		return model.Rule{}, err
	}
	return rule, nil
}

// ListRules возвращает все правила бизнеса.
func (s *Service) ListRules(ctx context.Context, businessID uuid.UUID) ([]model.Rule, error) {
	return s.repo.ListRules(ctx, businessID)
}

// GetRule возвращает правило по идентификатору.
func (s *Service) GetRule(ctx context.Context, id uuid.UUID) (*model.Rule, error) {
	return s.repo.GetRule(ctx, id)
}

// SetRuleActive включает или выключает правило.
func (s *Service) SetRuleActive(ctx context.Context, id uuid.UUID, active bool) error {
	return s.repo.SetRuleActive(ctx, id, active)
}

// DeleteRule удаляет правило.
func (s *Service) DeleteRule(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeleteRule(ctx, id)
}

// InitializeFixedRules создаёт стандартный набор правил бизнеса: скидка 20%
// для участников и бесплатная мойка для обычных клиентов — шаблоны
// персональных предложений. Повторный вызов уже существующие правила не дублирует.
func (s *Service) InitializeFixedRules(ctx context.Context, businessID uuid.UUID) ([]model.Rule, error) {
	fixed := []model.Rule{
		{
			BusinessID:   businessID,
			Name:         "Member 5th visit discount",
			Description:  "20% off on the fifth visit for membership holders",
			CustomerType: model.CustomerTypeMember,
			RewardType:   model.RewardDiscountPercent,
			RewardValue:  "20",
			PerUnit:      model.PerTransaction,
			IsActive:     true,
		},
		{
			BusinessID:   businessID,
			Name:         "5th wash free",
			Description:  "Free wash on the fifth visit",
			CustomerType: model.CustomerTypeNonMember,
			RewardType:   model.RewardFreeWash,
			RewardValue:  model.RewardValueFree,
			PerUnit:      model.PerVisit,
			IsActive:     true,
		},
	}

	existing, err := s.repo.ListRules(ctx, businessID)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]struct{}, len(existing))
	for _, r := range existing {
		byName[r.Name] = struct{}{}
	}

	var created []model.Rule
	for _, rule := range fixed {
		if _, ok := byName[rule.Name]; ok {
			continue
		}
		if err := s.repo.CreateRule(ctx, &rule); err != nil {
			return nil, err
		}
		created = append(created, rule)
	}

	return created, nil
}

// TestRules прогоняет активные правила бизнеса по гипотетической транзакции
// без записи в БД и возвращает рассчитанное вознаграждение.
func (s *Service) TestRules(ctx context.Context, businessID uuid.UUID, phone string, amount decimal.Decimal, description string) (reward.Result, error) {
	phone, err := validation.NormalizePhone(phone)
	if err != nil {
		return reward.Result{}, err
	}

	// Клиент может быть неизвестен: правила с фильтром по типу тогда не сработают.
	customer, err := s.repo.GetCustomerByPhone(ctx, businessID, phone)
	if err != nil {
		customer = nil
	}

	rules, err := s.repo.GetActiveRules(ctx, businessID)
	if err != nil {
		return reward.Result{}, err
	}

	txn := model.Transaction{
		BusinessID:  businessID,
		PhoneNumber: phone,
		Amount:      amount,
		Description: description,
	}
	return reward.Apply(txn, rules, customer, time.Now().UTC()), nil
}

// CustomerEligibility возвращает активные правила, применимые к клиенту
// сегодня. Правила с фильтром по типу мойки оцениваются по описанию будущей
// транзакции и в выборку не попадают.
func (s *Service) CustomerEligibility(ctx context.Context, businessID uuid.UUID, phone string) ([]model.Rule, error) {
	phone, err := validation.NormalizePhone(phone)
	if err != nil {
		return nil, err
	}

	customer, err := s.repo.GetCustomerByPhone(ctx, businessID, phone)
	if err != nil {
		return nil, err
	}

	rules, err := s.repo.GetActiveRules(ctx, businessID)
	if err != nil {
		return nil, err
	}

	today := time.Now().UTC()
	probe := model.Transaction{BusinessID: businessID, PhoneNumber: phone}

	var eligible []model.Rule
	for _, rule := range rules {
		if reward.Matches(rule, probe, customer, today) {
			eligible = append(eligible, rule)
		}
	}

	return eligible, nil
}
