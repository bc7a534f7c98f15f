package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/washbonus/internal/model"
	"github.com/mmeshcher/washbonus/internal/notify"
	"github.com/mmeshcher/washbonus/internal/repository"
	"github.com/mmeshcher/washbonus/internal/reward"
	"github.com/mmeshcher/washbonus/internal/validation"
)

// TransactionInput описывает транзакцию, поступившую на одобрение.
// Непустой MembershipID дозаполняет членство клиента при одобрении.
type TransactionInput struct {
	PhoneNumber    string
	CustomerCode   string
	LicensePlate   string
	MembershipID   string
	Date           time.Time
	Description    string
	Quantity       int
	Amount         decimal.Decimal
	DiscountAmount decimal.Decimal
}

// ApproveResult — итог одобрения одной транзакции. Поля предложений заполнены,
// только если на этой транзакции предложение было открыто или погашено.
// SideEffects собирает ошибки необязательных побочных шагов (предложения,
// уведомления): они не отменяют одобрение и не откатывают транзакцию БД.
type ApproveResult struct {
	Transaction   model.Transaction
	Reward        reward.Result
	OfferCreated  *model.RedeemableOffer
	OfferRedeemed *model.RedeemableOffer
	SideEffects   []error
}

// ApproveTransactions одобряет пакет транзакций одного бизнеса. Весь пакет
// обрабатывается в одной транзакции БД: порядковые номера, записи журнала и
// предложения фиксируются атомарно. Уведомления отправляются после коммита.
func (s *Service) ApproveTransactions(ctx context.Context, businessID uuid.UUID, inputs []TransactionInput) ([]ApproveResult, error) {
	for i := range inputs {
		phone, err := validation.NormalizePhone(inputs[i].PhoneNumber)
		if err != nil {
			return nil, fmt.Errorf("transaction %d: %w", i, err)
		}
		inputs[i].PhoneNumber = phone
	}

	rules, err := s.repo.GetActiveRules(ctx, businessID)
	if err != nil {
		return nil, fmt.Errorf("load active rules: %w", err)
	}

	now := time.Now().UTC()
	results := make([]ApproveResult, 0, len(inputs))

	err = s.repo.WithinTx(ctx, func(repo repository.Repository) error {
		for _, in := range inputs {
			res, err := s.approveOne(ctx, repo, businessID, rules, in, now)
			if err != nil {
				return err
			}
			results = append(results, res)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i := range results {
		s.sendOfferNotifications(ctx, &results[i])
	}

	return results, nil
}

func (s *Service) approveOne(ctx context.Context, repo repository.Repository, businessID uuid.UUID, rules []model.Rule, in TransactionInput, now time.Time) (ApproveResult, error) {
	customer, err := s.getOrCreateCustomer(ctx, repo, businessID, in.PhoneNumber, in.MembershipID)
	if err != nil {
		return ApproveResult{}, err
	}

	count, err := repo.CountApprovedTransactions(ctx, businessID, in.PhoneNumber)
	if err != nil {
		return ApproveResult{}, err
	}
	seq := count + 1

	date := in.Date
	if date.IsZero() {
		date = now
	}
	quantity := in.Quantity
	if quantity <= 0 {
		quantity = 1
	}

	txn := model.Transaction{
		BusinessID:     businessID,
		PhoneNumber:    in.PhoneNumber,
		CustomerCode:   in.CustomerCode,
		LicensePlate:   in.LicensePlate,
		Date:           date,
		Description:    in.Description,
		Quantity:       quantity,
		Amount:         in.Amount,
		DiscountAmount: in.DiscountAmount,
		Sequence:       seq,
		IsApproved:     true,
		ApprovedAt:     &now,
	}
	if err := repo.InsertTransaction(ctx, &txn); err != nil {
		return ApproveResult{}, err
	}

	return s.settleApproved(ctx, repo, rules, customer, txn, now)
}

// settleApproved выполняет шаги после фиксации одобрения: погашение и
// открытие предложений, расчёт вознаграждения, проводки журнала.
func (s *Service) settleApproved(ctx context.Context, repo repository.Repository, rules []model.Rule, customer *model.Customer, txn model.Transaction, now time.Time) (ApproveResult, error) {
	seq := txn.Sequence
	result := ApproveResult{Transaction: txn}

	// Погашение возможно только на транзакции с порядковым номером ровно
	// пять: пропущенный признак оставляет предложение открытым.
	if seq == 5 && redemptionSignal(customer, txn) {
		if err := s.redeemOffer(ctx, repo, customer, &txn, now, &result); err != nil {
			s.logger.Warn("offer redemption failed",
				zap.String("phone", txn.PhoneNumber), zap.Error(err))
			result.SideEffects = append(result.SideEffects, err)
		}
	}

	if seq == 4 {
		offer, err := s.ensureOffer(ctx, repo, txn.BusinessID, customer, txn.ID, now)
		if err != nil {
			s.logger.Warn("offer creation failed",
				zap.String("phone", txn.PhoneNumber), zap.Error(err))
			result.SideEffects = append(result.SideEffects, err)
		} else {
			result.OfferCreated = offer
		}
	}

	result.Reward = reward.Apply(txn, rules, customer, now)

	for _, applied := range result.Reward.AppliedRules {
		if applied.Points <= 0 {
			continue
		}
		ruleID := applied.RuleID
		entry := model.LedgerEntry{
			CustomerID:        customer.ID,
			TransactionID:     &txn.ID,
			RuleID:            &ruleID,
			PointsDelta:       applied.Points,
			RewardTypeApplied: model.RewardPoints,
		}
		if err := s.postEntry(ctx, repo, &entry); err != nil {
			return ApproveResult{}, err
		}
	}

	return result, nil
}

// SubmitTransactions сохраняет пакет транзакций без одобрения. Предложения и
// начисления появляются только после одобрения.
func (s *Service) SubmitTransactions(ctx context.Context, businessID uuid.UUID, inputs []TransactionInput) ([]model.Transaction, error) {
	now := time.Now().UTC()
	transactions := make([]model.Transaction, 0, len(inputs))

	for i, in := range inputs {
		phone, err := validation.NormalizePhone(in.PhoneNumber)
		if err != nil {
			return nil, fmt.Errorf("transaction %d: %w", i, err)
		}

		date := in.Date
		if date.IsZero() {
			date = now
		}
		quantity := in.Quantity
		if quantity <= 0 {
			quantity = 1
		}

		txn := model.Transaction{
			BusinessID:     businessID,
			PhoneNumber:    phone,
			CustomerCode:   in.CustomerCode,
			LicensePlate:   in.LicensePlate,
			Date:           date,
			Description:    in.Description,
			Quantity:       quantity,
			Amount:         in.Amount,
			DiscountAmount: in.DiscountAmount,
		}
		if err := s.repo.InsertTransaction(ctx, &txn); err != nil {
			return nil, err
		}
		transactions = append(transactions, txn)
	}

	return transactions, nil
}

// ApprovePending одобряет ранее сохранённые транзакции по идентификаторам.
// Шаги после одобрения те же, что и при одобрении пакета с нуля.
func (s *Service) ApprovePending(ctx context.Context, businessID uuid.UUID, ids []uuid.UUID) ([]ApproveResult, error) {
	rules, err := s.repo.GetActiveRules(ctx, businessID)
	if err != nil {
		return nil, fmt.Errorf("load active rules: %w", err)
	}

	now := time.Now().UTC()
	results := make([]ApproveResult, 0, len(ids))

	err = s.repo.WithinTx(ctx, func(repo repository.Repository) error {
		for _, id := range ids {
			txn, err := repo.GetTransaction(ctx, id)
			if err != nil {
				return err
			}
			if txn.BusinessID != businessID {
				return repository.ErrTransactionNotFound
			}
			if txn.IsApproved {
				return ErrAlreadyApproved
			}

			customer, err := s.getOrCreateCustomer(ctx, repo, businessID, txn.PhoneNumber, "")
			if err != nil {
				return err
			}

			count, err := repo.CountApprovedTransactions(ctx, businessID, txn.PhoneNumber)
			if err != nil {
				return err
			}
			seq := count + 1

			if err := repo.MarkTransactionApproved(ctx, txn.ID, seq, now); err != nil {
				return err
			}

			approved := *txn
			approved.Sequence = seq
			approved.IsApproved = true
			approved.ApprovedAt = &now

			res, err := s.settleApproved(ctx, repo, rules, customer, approved, now)
			if err != nil {
				return err
			}
			results = append(results, res)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i := range results {
		s.sendOfferNotifications(ctx, &results[i])
	}

	return results, nil
}

// getOrCreateCustomer находит или заводит клиента по номеру телефона.
// Непустой membershipID дозаполняет членство клиента, у которого оно ещё
// не задано.
func (s *Service) getOrCreateCustomer(ctx context.Context, repo repository.Repository, businessID uuid.UUID, phone, membershipID string) (*model.Customer, error) {
	customer, err := repo.GetCustomerByPhone(ctx, businessID, phone)
	if err == nil {
		if membershipID != "" && customer.MembershipID == "" {
			if err := repo.SetCustomerMembership(ctx, customer.ID, membershipID, customer.Plan); err != nil {
				return nil, err
			}
			customer.MembershipID = membershipID
		}
		return customer, nil
	}
	if !errors.Is(err, repository.ErrCustomerNotFound) {
		return nil, err
	}

	customer = &model.Customer{BusinessID: businessID, Phone: phone, MembershipID: membershipID}
	err = repo.CreateCustomer(ctx, customer)
	if err == nil {
		return customer, nil
	}
	// Параллельная вставка того же номера: перечитываем существующую запись.
	if errors.Is(err, repository.ErrCustomerExists) {
		return repo.GetCustomerByPhone(ctx, businessID, phone)
	}
	return nil, err
}

// redemptionSignal распознаёт намерение погасить предложение: для участника
// программы — ненулевая скидка в транзакции, для обычного клиента — нулевая
// сумма (бесплатная мойка).
func redemptionSignal(customer *model.Customer, txn model.Transaction) bool {
	if customer.IsMember() {
		return txn.DiscountAmount.IsPositive()
	}
	return txn.Amount.IsZero()
}

func (s *Service) redeemOffer(ctx context.Context, repo repository.Repository, customer *model.Customer, txn *model.Transaction, now time.Time, result *ApproveResult) error {
	offer, err := repo.GetUnredeemedOffer(ctx, customer.ID, customer.BusinessID, customer.Type())
	if err != nil {
		if errors.Is(err, repository.ErrOfferNotFound) {
			return nil
		}
		return err
	}

	if err := repo.MarkOfferRedeemed(ctx, offer.ID, txn.ID, now); err != nil {
		return err
	}

	offer.IsRedeemed = true
	offer.RedeemedAt = &now
	offer.RedeemedTransactionID = &txn.ID
	result.OfferRedeemed = offer
	return nil
}

// ensureOffer открывает предложение на четвёртой одобренной транзакции.
// Повторный вызов для клиента с непогашенным предложением ничего не создаёт.
func (s *Service) ensureOffer(ctx context.Context, repo repository.Repository, businessID uuid.UUID, customer *model.Customer, triggerTxnID uuid.UUID, now time.Time) (*model.RedeemableOffer, error) {
	customerType := customer.Type()

	if _, err := repo.GetUnredeemedOffer(ctx, customer.ID, businessID, customerType); err == nil {
		return nil, nil
	} else if !errors.Is(err, repository.ErrOfferNotFound) {
		return nil, err
	}

	rewardType := model.RewardFreeWash
	rewardValue := model.RewardValueFree
	if customerType == model.CustomerTypeMember {
		rewardType = model.RewardDiscountPercent
		rewardValue = "20"
	}

	// Каталожное правило привязывается к предложению только ссылкой;
	// вид и значение вознаграждения фиксированы типом клиента.
	var ruleID *uuid.UUID
	template, err := repo.FindOfferTemplateRule(ctx, businessID, customerType)
	if err != nil {
		return nil, err
	}
	if template != nil {
		ruleID = &template.ID
	}

	offer := &model.RedeemableOffer{
		CustomerID:           customer.ID,
		BusinessID:           businessID,
		RuleID:               ruleID,
		CustomerType:         customerType,
		RewardType:           rewardType,
		RewardValue:          rewardValue,
		TriggerTransactionID: &triggerTxnID,
	}
	err = repo.InsertRedeemableOffer(ctx, offer)
	if err == nil {
		return offer, nil
	}
	// Конкурирующее одобрение успело создать предложение первым.
	if errors.Is(err, repository.ErrOfferExists) {
		return nil, nil
	}
	return nil, err
}

func (s *Service) sendOfferNotifications(ctx context.Context, result *ApproveResult) {
	phone := result.Transaction.PhoneNumber

	if offer := result.OfferCreated; offer != nil {
		err := s.notifier.SendOfferCreated(ctx, notify.OfferEvent{
			OfferID:       offer.ID,
			CustomerPhone: phone,
			RewardType:    string(offer.RewardType),
			RewardValue:   offer.RewardValue,
		})
		if err != nil {
			s.logger.Warn("offer created notification failed",
				zap.String("phone", phone), zap.Error(err))
			result.SideEffects = append(result.SideEffects, err)
		}
	}

	if offer := result.OfferRedeemed; offer != nil {
		err := s.notifier.SendOfferRedeemed(ctx, notify.OfferEvent{
			OfferID:       offer.ID,
			CustomerPhone: phone,
			RewardType:    string(offer.RewardType),
			RewardValue:   offer.RewardValue,
		})
		if err != nil {
			s.logger.Warn("offer redeemed notification failed",
				zap.String("phone", phone), zap.Error(err))
			result.SideEffects = append(result.SideEffects, err)
		}
	}
}
