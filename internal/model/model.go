// Package model содержит доменные сущности сервиса лояльности washbonus.
package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Business представляет бизнес-арендатора (мойку), владеющего клиентами и правилами.
type Business struct {
	ID           uuid.UUID
	Login        string
	PasswordHash []byte
	Name         string
	CreatedAt    time.Time
}

// CustomerType описывает фильтр правила по типу клиента.
type CustomerType string

const (
	CustomerTypeMember    CustomerType = "MEMBER"
	CustomerTypeNonMember CustomerType = "NON_MEMBER"
	CustomerTypeAny       CustomerType = "ANY"
)

// Customer представляет клиента бизнеса. Естественный ключ — пара (business_id, phone).
type Customer struct {
	ID           uuid.UUID
	BusinessID   uuid.UUID
	Phone        string
	Name         string
	Email        string
	MembershipID string
	Plan         string
	// Points — устаревшее денормализованное поле баланса, поддерживается
	// зеркалированием для старых читателей. Источник истины — points_ledger.
	Points    int
	CreatedAt time.Time
}

// IsMember возвращает true, если у клиента задан непустой идентификатор членства.
func (c *Customer) IsMember() bool {
	return c != nil && c.MembershipID != ""
}

// Type возвращает тип клиента для сопоставления с фильтрами правил.
func (c *Customer) Type() CustomerType {
	if c.IsMember() {
		return CustomerTypeMember
	}
	return CustomerTypeNonMember
}

// Transaction описывает одно событие обслуживания (визит).
// Связь с клиентом — по значению номера телефона, а не по внешнему ключу.
type Transaction struct {
	ID             uuid.UUID
	BusinessID     uuid.UUID
	PhoneNumber    string
	CustomerCode   string
	LicensePlate   string
	Date           time.Time
	Description    string
	Quantity       int
	Amount         decimal.Decimal
	DiscountAmount decimal.Decimal
	// Sequence — порядковый номер одобренной транзакции клиента в рамках
	// бизнеса (с единицы). Присваивается один раз при одобрении и не
	// пересчитывается.
	Sequence   int
	IsApproved bool
	ApprovedAt *time.Time
	CreatedAt  time.Time
}

// RewardType описывает вид вознаграждения правила.
type RewardType string

const (
	RewardPoints          RewardType = "POINTS"
	RewardDiscountPercent RewardType = "DISCOUNT_PERCENT"
	RewardFreeMonths      RewardType = "FREE_MONTHS"
	RewardFreeWash        RewardType = "FREE_WASH"
)

// PerUnit описывает базу начисления вознаграждения.
type PerUnit string

const (
	PerTransaction PerUnit = "PER_TRANSACTION"
	PerDollar      PerUnit = "PER_DOLLAR"
	PerVisit       PerUnit = "PER_VISIT"
)

// RewardValueFree — строковое значение-маркер для бесплатной мойки.
const RewardValueFree = "FREE"

// Rule — промо-правило каталога. Запись одновременно служит определением
// правила для движка вознаграждений и шаблоном для персональных предложений.
type Rule struct {
	ID           uuid.UUID
	BusinessID   uuid.UUID
	Name         string
	Description  string
	CustomerType CustomerType
	// ProductType принимается и хранится, но в этой версии не участвует
	// в сопоставлении.
	ProductType string
	WashType    string
	RewardType  RewardType
	// RewardValue — строковое значение вознаграждения: число или маркер
	// "FREE". Разбирается в типизированное RewardValue перед вычислением.
	RewardValue string
	PerUnit     PerUnit
	Priority    int
	StartDate   *time.Time
	EndDate     *time.Time
	// MaxUsesPerCustomer объявлено, но учёт использований по клиенту не ведётся.
	MaxUsesPerCustomer *int
	IsActive           bool
	CreatedAt          time.Time
}

// LedgerEntry — неизменяемая запись журнала баллов. Записи никогда не
// обновляются и не удаляются; сумма дельт клиента равна его балансу.
type LedgerEntry struct {
	ID                uuid.UUID
	CustomerID        uuid.UUID
	TransactionID     *uuid.UUID
	RuleID            *uuid.UUID
	PointsDelta       int
	RewardTypeApplied RewardType
	CreatedAt         time.Time
}

// PointBalance — кешированный текущий баланс клиента, производный от журнала.
type PointBalance struct {
	CustomerID    uuid.UUID
	TotalPoints   int
	LastUpdatedAt time.Time
}

// RedeemableOffer — одноразовое персональное предложение, открываемое на
// четвёртой одобренной транзакции и погашаемое на пятой.
type RedeemableOffer struct {
	ID           uuid.UUID
	CustomerID   uuid.UUID
	BusinessID   uuid.UUID
	RuleID       *uuid.UUID
	CustomerType CustomerType
	RewardType   RewardType
	RewardValue  string
	IsRedeemed   bool
	RedeemedAt   *time.Time
	// RedeemedTransactionID — транзакция, погасившая предложение (пятая).
	RedeemedTransactionID *uuid.UUID
	// TriggerTransactionID — транзакция, открывшая предложение (четвёртая).
	TriggerTransactionID *uuid.UUID
	CreatedAt            time.Time
	// ExpiresAt хранится, но истечение в этой версии не проверяется.
	ExpiresAt *time.Time
}
