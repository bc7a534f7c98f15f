// Package reward реализует движок вознаграждений: сопоставление промо-правил
// с транзакциями и вычисление итогового вознаграждения. Пакет не обращается
// к хранилищу — все функции чистые относительно своих аргументов.
package reward

import (
	"strings"
	"time"

	"github.com/mmeshcher/washbonus/internal/model"
)

// Matches проверяет, применимо ли правило к транзакции и клиенту на дату today.
// Клиент может отсутствовать (nil); правило с фильтром MEMBER/NON_MEMBER в этом
// случае не применяется.
func Matches(rule model.Rule, txn model.Transaction, customer *model.Customer, today time.Time) bool {
	if !rule.IsActive {
		return false
	}

	day := dateOnly(today)
	if rule.StartDate != nil && day.Before(dateOnly(*rule.StartDate)) {
		return false
	}
	if rule.EndDate != nil && day.After(dateOnly(*rule.EndDate)) {
		return false
	}

	if rule.CustomerType != model.CustomerTypeAny {
		if customer == nil {
			return false
		}
		if rule.CustomerType == model.CustomerTypeMember && !customer.IsMember() {
			return false
		}
		if rule.CustomerType == model.CustomerTypeNonMember && customer.IsMember() {
			return false
		}
	}

	// ProductType хранится, но семантика сопоставления для него не определена.

	if rule.WashType != "" {
		if txn.Description == "" {
			return false
		}
		if !strings.Contains(strings.ToLower(txn.Description), strings.ToLower(rule.WashType)) {
			return false
		}
	}

	return true
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
