package model

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// RewardValue — типизированное значение вознаграждения, разобранное из
// строкового поля правила на границе загрузки. Избавляет движок от
// повторного разбора строк при каждом вычислении.
type RewardValue struct {
	Kind RewardType
	// Rate задаёт ставку для POINTS (баллы за транзакцию либо за доллар)
	// и процент для DISCOUNT_PERCENT.
	Rate decimal.Decimal
	// Months задаёт количество месяцев для FREE_MONTHS.
	Months int
}

// ParseRewardValue разбирает строковое значение вознаграждения согласно его
// виду. Для FREE_WASH числовое значение не требуется — принимается любой
// маркер, включая "FREE".
func ParseRewardValue(kind RewardType, raw string) (RewardValue, error) {
	switch kind {
	case RewardPoints, RewardDiscountPercent:
		rate, err := decimal.NewFromString(raw)
		if err != nil {
			return RewardValue{}, fmt.Errorf("parse reward value %q: %w", raw, err)
		}
		return RewardValue{Kind: kind, Rate: rate}, nil

	case RewardFreeMonths:
		v, err := decimal.NewFromString(raw)
		if err != nil {
			return RewardValue{}, fmt.Errorf("parse reward value %q: %w", raw, err)
		}
		return RewardValue{Kind: kind, Months: int(v.IntPart())}, nil

	case RewardFreeWash:
		return RewardValue{Kind: kind}, nil
	}

	return RewardValue{}, fmt.Errorf("unknown reward type: %s", kind)
}
