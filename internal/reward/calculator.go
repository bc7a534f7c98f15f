package reward

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/washbonus/internal/model"
)

// AppliedRule описывает вклад одного сработавшего правила.
type AppliedRule struct {
	RuleID     uuid.UUID
	RuleName   string
	RewardType model.RewardType
	Points     int
	Discount   decimal.Decimal
	Months     int
}

// Describe возвращает человекочитаемое описание вклада правила.
func (a AppliedRule) Describe() string {
	switch a.RewardType {
	case model.RewardPoints:
		return fmt.Sprintf("%s: %d points", a.RuleName, a.Points)
	case model.RewardDiscountPercent:
		return fmt.Sprintf("%s: discount %s", a.RuleName, a.Discount.StringFixed(2))
	case model.RewardFreeMonths:
		return fmt.Sprintf("%s: %d free months", a.RuleName, a.Months)
	}
	return a.RuleName
}

// Result — итог применения правил к одной транзакции.
type Result struct {
	PointsEarned   int
	DiscountAmount decimal.Decimal
	FreeMonths     int
	AppliedRuleIDs []uuid.UUID
	AppliedRules   []AppliedRule
}

// Apply применяет набор правил к транзакции и возвращает суммарное
// вознаграждение. Правила обрабатываются по убыванию приоритета; при равных
// приоритетах порядок детерминирован: раньше созданное правило идёт первым.
// Правила с неразбираемым значением вознаграждения пропускаются молча —
// ошибка одного правила никогда не срывает вычисление целиком.
func Apply(txn model.Transaction, rules []model.Rule, customer *model.Customer, today time.Time) Result {
	result := Result{DiscountAmount: decimal.Zero}

	sorted := make([]model.Rule, len(rules))
	copy(sorted, rules)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Priority != sorted[j].Priority {
			return sorted[i].Priority > sorted[j].Priority
		}
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
		}
		return sorted[i].ID.String() < sorted[j].ID.String()
	})

	for _, rule := range sorted {
		if !Matches(rule, txn, customer, today) {
			continue
		}

		value, err := model.ParseRewardValue(rule.RewardType, rule.RewardValue)
		if err != nil {
			continue
		}

		switch value.Kind {
		case model.RewardPoints:
			var raw decimal.Decimal
			switch rule.PerUnit {
			case model.PerTransaction, model.PerVisit:
				raw = value.Rate
			case model.PerDollar:
				raw = txn.Amount.Mul(value.Rate)
			default:
				continue
			}
			points := int(raw.Round(0).IntPart())
			if points <= 0 {
				continue
			}
			result.PointsEarned += points
			result.AppliedRuleIDs = append(result.AppliedRuleIDs, rule.ID)
			result.AppliedRules = append(result.AppliedRules, AppliedRule{
				RuleID:     rule.ID,
				RuleName:   rule.Name,
				RewardType: model.RewardPoints,
				Points:     points,
			})

		case model.RewardDiscountPercent:
			discount := txn.Amount.Mul(value.Rate).Div(decimal.NewFromInt(100)).Round(2)
			if !discount.IsPositive() {
				continue
			}
			result.DiscountAmount = result.DiscountAmount.Add(discount)
			result.AppliedRuleIDs = append(result.AppliedRuleIDs, rule.ID)
			result.AppliedRules = append(result.AppliedRules, AppliedRule{
				RuleID:     rule.ID,
				RuleName:   rule.Name,
				RewardType: model.RewardDiscountPercent,
				Discount:   discount,
			})

		case model.RewardFreeMonths:
			if value.Months <= 0 {
				continue
			}
			result.FreeMonths += value.Months
			result.AppliedRuleIDs = append(result.AppliedRuleIDs, rule.ID)
			result.AppliedRules = append(result.AppliedRules, AppliedRule{
				RuleID:     rule.ID,
				RuleName:   rule.Name,
				RewardType: model.RewardFreeMonths,
				Months:     value.Months,
			})

		case model.RewardFreeWash:
			// Бесплатная мойка не даёт вклада при начислении: она
			// реализуется только через персональные предложения.
		}
	}

	return result
}
