package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/washbonus/internal/model"
	"github.com/mmeshcher/washbonus/internal/repository"
)

func TestHashPasswordDeterministic(t *testing.T) {
	a := hashPassword("wash", "pass")
	b := hashPassword("wash", "pass")
	c := hashPassword("wash", "other")

	if string(a) != string(b) {
		t.Fatalf("hashPassword must be deterministic, got %x and %x", a, b)
	}
	if string(a) == string(c) {
		t.Fatalf("different passwords must produce different hashes")
	}
}

// memRepo — репозиторий в памяти для проверки оркестрации сервиса.
type memRepo struct {
	businesses   []model.Business
	customers    []*model.Customer
	transactions []model.Transaction
	rules        []model.Rule
	ledger       []model.LedgerEntry
	balances     map[uuid.UUID]int
	offers       []*model.RedeemableOffer
}

func newMemRepo() *memRepo {
	return &memRepo{balances: make(map[uuid.UUID]int)}
}

func (m *memRepo) WithinTx(ctx context.Context, fn func(repository.Repository) error) error {
	return fn(m)
}

func (m *memRepo) Close() error { return nil }

func (m *memRepo) CreateBusiness(ctx context.Context, login string, passwordHash []byte, name string) (uuid.UUID, error) {
	for _, b := range m.businesses {
		if b.Login == login {
			return uuid.Nil, repository.ErrBusinessExists
		}
	}
	b := model.Business{ID: uuid.New(), Login: login, PasswordHash: passwordHash, Name: name}
	m.businesses = append(m.businesses, b)
	return b.ID, nil
}

func (m *memRepo) GetBusinessByLogin(ctx context.Context, login string) (*model.Business, error) {
	for i := range m.businesses {
		if m.businesses[i].Login == login {
			return &m.businesses[i], nil
		}
	}
	return nil, repository.ErrBusinessNotFound
}

func (m *memRepo) ListBusinesses(ctx context.Context) ([]model.Business, error) {
	return m.businesses, nil
}

func (m *memRepo) CreateCustomer(ctx context.Context, c *model.Customer) error {
	for _, existing := range m.customers {
		if existing.BusinessID == c.BusinessID && existing.Phone == c.Phone {
			return repository.ErrCustomerExists
		}
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	m.customers = append(m.customers, c)
	return nil
}

func (m *memRepo) GetCustomerByPhone(ctx context.Context, businessID uuid.UUID, phone string) (*model.Customer, error) {
	for _, c := range m.customers {
		if c.BusinessID == businessID && c.Phone == phone {
			return c, nil
		}
	}
	return nil, repository.ErrCustomerNotFound
}

func (m *memRepo) GetCustomerByID(ctx context.Context, id uuid.UUID) (*model.Customer, error) {
	for _, c := range m.customers {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, repository.ErrCustomerNotFound
}

func (m *memRepo) SetCustomerMembership(ctx context.Context, customerID uuid.UUID, membershipID, plan string) error {
	c, err := m.GetCustomerByID(ctx, customerID)
	if err != nil {
		return err
	}
	c.MembershipID = membershipID
	c.Plan = plan
	return nil
}

func (m *memRepo) AddCustomerPoints(ctx context.Context, customerID uuid.UUID, delta int) error {
	c, err := m.GetCustomerByID(ctx, customerID)
	if err != nil {
		return err
	}
	c.Points += delta
	return nil
}

func (m *memRepo) InsertTransaction(ctx context.Context, t *model.Transaction) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	m.transactions = append(m.transactions, *t)
	return nil
}

func (m *memRepo) MarkTransactionApproved(ctx context.Context, id uuid.UUID, sequence int, at time.Time) error {
	for i := range m.transactions {
		if m.transactions[i].ID == id {
			if m.transactions[i].IsApproved {
				return repository.ErrTransactionNotFound
			}
			m.transactions[i].IsApproved = true
			m.transactions[i].Sequence = sequence
			m.transactions[i].ApprovedAt = &at
			return nil
		}
	}
	return repository.ErrTransactionNotFound
}

func (m *memRepo) GetTransaction(ctx context.Context, id uuid.UUID) (*model.Transaction, error) {
	for i := range m.transactions {
		if m.transactions[i].ID == id {
			return &m.transactions[i], nil
		}
	}
	return nil, repository.ErrTransactionNotFound
}

func (m *memRepo) ListTransactions(ctx context.Context, businessID uuid.UUID, phone string) ([]model.Transaction, error) {
	var res []model.Transaction
	for _, t := range m.transactions {
		if t.BusinessID == businessID && (phone == "" || t.PhoneNumber == phone) {
			res = append(res, t)
		}
	}
	return res, nil
}

func (m *memRepo) ListPendingTransactions(ctx context.Context, businessID uuid.UUID) ([]model.Transaction, error) {
	var res []model.Transaction
	for _, t := range m.transactions {
		if t.BusinessID == businessID && !t.IsApproved {
			res = append(res, t)
		}
	}
	return res, nil
}

func (m *memRepo) CountApprovedTransactions(ctx context.Context, businessID uuid.UUID, phone string) (int, error) {
	n := 0
	for _, t := range m.transactions {
		if t.BusinessID == businessID && t.PhoneNumber == phone && t.IsApproved {
			n++
		}
	}
	return n, nil
}

func (m *memRepo) CreateRule(ctx context.Context, rule *model.Rule) error {
	if rule.ID == uuid.Nil {
		rule.ID = uuid.New()
	}
	m.rules = append(m.rules, *rule)
	return nil
}

func (m *memRepo) GetRule(ctx context.Context, id uuid.UUID) (*model.Rule, error) {
	for i := range m.rules {
		if m.rules[i].ID == id {
			return &m.rules[i], nil
		}
	}
	return nil, repository.ErrRuleNotFound
}

func (m *memRepo) ListRules(ctx context.Context, businessID uuid.UUID) ([]model.Rule, error) {
	var res []model.Rule
	for _, r := range m.rules {
		if r.BusinessID == businessID {
			res = append(res, r)
		}
	}
	return res, nil
}

func (m *memRepo) GetActiveRules(ctx context.Context, businessID uuid.UUID) ([]model.Rule, error) {
	var res []model.Rule
	for _, r := range m.rules {
		if r.BusinessID == businessID && r.IsActive {
			res = append(res, r)
		}
	}
	return res, nil
}

func (m *memRepo) SetRuleActive(ctx context.Context, id uuid.UUID, active bool) error {
	for i := range m.rules {
		if m.rules[i].ID == id {
			m.rules[i].IsActive = active
			return nil
		}
	}
	return repository.ErrRuleNotFound
}

func (m *memRepo) DeleteRule(ctx context.Context, id uuid.UUID) error {
	for i := range m.rules {
		if m.rules[i].ID == id {
			m.rules = append(m.rules[:i], m.rules[i+1:]...)
			return nil
		}
	}
	return repository.ErrRuleNotFound
}

func (m *memRepo) FindOfferTemplateRule(ctx context.Context, businessID uuid.UUID, customerType model.CustomerType) (*model.Rule, error) {
	for i := range m.rules {
		r := &m.rules[i]
		if r.BusinessID == businessID && r.CustomerType == customerType && r.IsActive {
			return r, nil
		}
	}
	return nil, nil
}

func (m *memRepo) InsertLedgerEntry(ctx context.Context, e *model.LedgerEntry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	m.ledger = append(m.ledger, *e)
	return nil
}

func (m *memRepo) ListLedgerEntries(ctx context.Context, customerID uuid.UUID) ([]model.LedgerEntry, error) {
	var res []model.LedgerEntry
	for _, e := range m.ledger {
		if e.CustomerID == customerID {
			res = append(res, e)
		}
	}
	return res, nil
}

func (m *memRepo) UpsertPointBalance(ctx context.Context, customerID uuid.UUID, delta int) (int, error) {
	m.balances[customerID] += delta
	return m.balances[customerID], nil
}

func (m *memRepo) GetPointBalance(ctx context.Context, customerID uuid.UUID) (int, bool, error) {
	total, ok := m.balances[customerID]
	return total, ok, nil
}

func (m *memRepo) ReconcileBalances(ctx context.Context, businessID uuid.UUID) (int, error) {
	fixed := 0
	for _, c := range m.customers {
		if c.BusinessID != businessID {
			continue
		}
		sum := 0
		for _, e := range m.ledger {
			if e.CustomerID == c.ID {
				sum += e.PointsDelta
			}
		}
		if m.balances[c.ID] != sum {
			m.balances[c.ID] = sum
			fixed++
		}
		c.Points = sum
	}
	return fixed, nil
}

func (m *memRepo) InsertRedeemableOffer(ctx context.Context, o *model.RedeemableOffer) error {
	for _, existing := range m.offers {
		if existing.CustomerID == o.CustomerID && existing.BusinessID == o.BusinessID &&
			existing.CustomerType == o.CustomerType && !existing.IsRedeemed {
			return repository.ErrOfferExists
		}
	}
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	m.offers = append(m.offers, o)
	return nil
}

func (m *memRepo) GetRedeemableOffer(ctx context.Context, id uuid.UUID) (*model.RedeemableOffer, error) {
	for _, o := range m.offers {
		if o.ID == id {
			return o, nil
		}
	}
	return nil, repository.ErrOfferNotFound
}

func (m *memRepo) GetUnredeemedOffer(ctx context.Context, customerID, businessID uuid.UUID, customerType model.CustomerType) (*model.RedeemableOffer, error) {
	for _, o := range m.offers {
		if o.CustomerID == customerID && o.BusinessID == businessID &&
			o.CustomerType == customerType && !o.IsRedeemed {
			return o, nil
		}
	}
	return nil, repository.ErrOfferNotFound
}

func (m *memRepo) ListRedeemableOffers(ctx context.Context, customerID uuid.UUID, includeRedeemed bool) ([]model.RedeemableOffer, error) {
	var res []model.RedeemableOffer
	for _, o := range m.offers {
		if o.CustomerID == customerID && (includeRedeemed || !o.IsRedeemed) {
			res = append(res, *o)
		}
	}
	return res, nil
}

func (m *memRepo) MarkOfferRedeemed(ctx context.Context, offerID, transactionID uuid.UUID, at time.Time) error {
	for _, o := range m.offers {
		if o.ID == offerID {
			if o.IsRedeemed {
				return repository.ErrOfferAlreadyRedeemed
			}
			o.IsRedeemed = true
			o.RedeemedAt = &at
			o.RedeemedTransactionID = &transactionID
			return nil
		}
	}
	return repository.ErrOfferNotFound
}

const testPhone = "79990001122"

func approveVisits(t *testing.T, svc *Service, businessID uuid.UUID, amounts ...string) []ApproveResult {
	t.Helper()
	var results []ApproveResult
	for _, amount := range amounts {
		res, err := svc.ApproveTransactions(context.Background(), businessID, []TransactionInput{
			{PhoneNumber: testPhone, Amount: decimal.RequireFromString(amount), Description: "basic wash"},
		})
		if err != nil {
			t.Fatalf("ApproveTransactions(%s) error = %v", amount, err)
		}
		results = append(results, res...)
	}
	return results
}

func TestApproveTransactions_FifthWashFreeForNonMember(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, nil, nil)
	businessID := uuid.New()

	results := approveVisits(t, svc, businessID, "20", "20", "20", "20")

	for i, r := range results {
		if r.Transaction.Sequence != i+1 {
			t.Fatalf("visit %d: sequence = %d", i+1, r.Transaction.Sequence)
		}
		if len(r.SideEffects) != 0 {
			t.Fatalf("visit %d: unexpected side effect errors: %v", i+1, r.SideEffects)
		}
	}

	offer := results[3].OfferCreated
	if offer == nil {
		t.Fatalf("fourth approval must open an offer")
	}
	if offer.RewardType != model.RewardFreeWash || offer.RewardValue != model.RewardValueFree {
		t.Fatalf("non-member offer = %s/%s, want FREE_WASH/FREE", offer.RewardType, offer.RewardValue)
	}
	if offer.CustomerType != model.CustomerTypeNonMember {
		t.Fatalf("offer customer type = %s", offer.CustomerType)
	}
	for i := 0; i < 3; i++ {
		if results[i].OfferCreated != nil {
			t.Fatalf("visit %d must not open an offer", i+1)
		}
	}

	// Без правил начислений баланс остаётся нулевым.
	balance, err := svc.GetCustomerBalance(context.Background(), businessID, testPhone)
	if err != nil || balance != 0 {
		t.Fatalf("balance = %d, %v; want 0", balance, err)
	}

	// Непогашенное предложение видно в выборке по умолчанию.
	open, err := svc.GetCustomerOffers(context.Background(), businessID, testPhone, false)
	if err != nil || len(open) != 1 || open[0].ID != offer.ID {
		t.Fatalf("unredeemed offers = %d, %v; want the open offer", len(open), err)
	}

	// Пятый визит с нулевой суммой гасит предложение.
	fifth := approveVisits(t, svc, businessID, "0")[0]
	if fifth.OfferRedeemed == nil {
		t.Fatalf("fifth zero-amount approval must redeem the offer")
	}
	if fifth.OfferRedeemed.ID != offer.ID {
		t.Fatalf("redeemed a different offer")
	}
	if fifth.OfferRedeemed.RedeemedTransactionID == nil ||
		*fifth.OfferRedeemed.RedeemedTransactionID != fifth.Transaction.ID {
		t.Fatalf("redeemed offer must reference the fifth transaction")
	}

	stored, err := repo.GetRedeemableOffer(context.Background(), offer.ID)
	if err != nil || !stored.IsRedeemed {
		t.Fatalf("stored offer must be redeemed: %+v, %v", stored, err)
	}

	// Погашенное предложение пропадает из выборки по умолчанию и остаётся
	// видимым с include_redeemed.
	open, err = svc.GetCustomerOffers(context.Background(), businessID, testPhone, false)
	if err != nil || len(open) != 0 {
		t.Fatalf("offers after redemption = %d, %v; want 0", len(open), err)
	}
	all, err := svc.GetCustomerOffers(context.Background(), businessID, testPhone, true)
	if err != nil || len(all) != 1 || !all[0].IsRedeemed {
		t.Fatalf("include_redeemed must return the redeemed offer, got %d, %v", len(all), err)
	}
}

func TestApproveTransactions_RedeemOnlyOnFifth(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, nil, nil)
	businessID := uuid.New()

	approveVisits(t, svc, businessID, "20", "20", "20", "20")

	// Пятый визит без признака погашения оставляет предложение открытым.
	fifth := approveVisits(t, svc, businessID, "20")[0]
	if fifth.OfferRedeemed != nil {
		t.Fatalf("fifth visit without a signal must not redeem the offer")
	}

	// Нулевая сумма на шестом визите предложение уже не гасит.
	sixth := approveVisits(t, svc, businessID, "0")[0]
	if sixth.OfferRedeemed != nil {
		t.Fatalf("redemption is tied to sequence five, got it at six")
	}

	customer, err := repo.GetCustomerByPhone(context.Background(), businessID, testPhone)
	if err != nil {
		t.Fatalf("get customer: %v", err)
	}
	offers, _ := repo.ListRedeemableOffers(context.Background(), customer.ID, false)
	if len(offers) != 1 || offers[0].IsRedeemed {
		t.Fatalf("offer must stay pending, got %+v", offers)
	}
}

func TestApproveTransactions_OfferSnapshotFixed(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, nil, nil)
	businessID := uuid.New()

	rule := model.Rule{
		BusinessID:   businessID,
		Name:         "Free wash promo",
		CustomerType: model.CustomerTypeNonMember,
		RewardType:   model.RewardFreeWash,
		RewardValue:  "GRATIS",
		PerUnit:      model.PerVisit,
		IsActive:     true,
	}
	if err := repo.CreateRule(context.Background(), &rule); err != nil {
		t.Fatalf("create rule: %v", err)
	}

	results := approveVisits(t, svc, businessID, "20", "20", "20", "20")

	offer := results[3].OfferCreated
	if offer == nil {
		t.Fatalf("fourth approval must open an offer")
	}
	// Каталожное правило привязывается ссылкой, но значение вознаграждения
	// остаётся фиксированным для типа клиента.
	if offer.RewardValue != model.RewardValueFree {
		t.Fatalf("offer reward value = %q, want %q", offer.RewardValue, model.RewardValueFree)
	}
	if offer.RuleID == nil || *offer.RuleID != rule.ID {
		t.Fatalf("offer must link the catalog rule")
	}
}

func TestApproveTransactions_MembershipBackfill(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, nil, nil)
	businessID := uuid.New()

	// Клиент заведён без членства; оно приходит вместе с пакетом транзакций.
	existing := &model.Customer{BusinessID: businessID, Phone: testPhone}
	if err := repo.CreateCustomer(context.Background(), existing); err != nil {
		t.Fatalf("create customer: %v", err)
	}

	var last []ApproveResult
	for i := 0; i < 4; i++ {
		res, err := svc.ApproveTransactions(context.Background(), businessID, []TransactionInput{
			{PhoneNumber: testPhone, Amount: decimal.NewFromInt(20), MembershipID: "M-9"},
		})
		if err != nil {
			t.Fatalf("ApproveTransactions error = %v", err)
		}
		last = res
	}

	if existing.MembershipID != "M-9" {
		t.Fatalf("membership = %q, want M-9", existing.MembershipID)
	}

	offer := last[0].OfferCreated
	if offer == nil {
		t.Fatalf("fourth approval must open an offer")
	}
	if offer.RewardType != model.RewardDiscountPercent || offer.RewardValue != "20" {
		t.Fatalf("offer = %s/%s, want DISCOUNT_PERCENT/20 for a member", offer.RewardType, offer.RewardValue)
	}
}

func TestApproveTransactions_MemberDiscountOffer(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, nil, nil)
	businessID := uuid.New()

	member := &model.Customer{BusinessID: businessID, Phone: testPhone, MembershipID: "M-1"}
	if err := repo.CreateCustomer(context.Background(), member); err != nil {
		t.Fatalf("create member: %v", err)
	}

	results := approveVisits(t, svc, businessID, "20", "20", "20", "20")

	offer := results[3].OfferCreated
	if offer == nil {
		t.Fatalf("fourth approval must open an offer")
	}
	if offer.RewardType != model.RewardDiscountPercent || offer.RewardValue != "20" {
		t.Fatalf("member offer = %s/%s, want DISCOUNT_PERCENT/20", offer.RewardType, offer.RewardValue)
	}

	// Пятый визит участника со скидкой в чеке гасит предложение.
	res, err := svc.ApproveTransactions(context.Background(), businessID, []TransactionInput{
		{
			PhoneNumber:    testPhone,
			Amount:         decimal.RequireFromString("16"),
			DiscountAmount: decimal.RequireFromString("4"),
		},
	})
	if err != nil {
		t.Fatalf("ApproveTransactions error = %v", err)
	}
	if res[0].OfferRedeemed == nil {
		t.Fatalf("member discount signal must redeem the offer")
	}
}

func TestApproveTransactions_OfferIdempotent(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, nil, nil)
	businessID := uuid.New()

	approveVisits(t, svc, businessID, "20", "20", "20", "20")

	// Клиент с непогашенным предложением: повторное прохождение четвёртой
	// отметки (после сброса счётчика ниже) нового предложения не создаёт.
	customer, err := repo.GetCustomerByPhone(context.Background(), businessID, testPhone)
	if err != nil {
		t.Fatalf("get customer: %v", err)
	}
	offers, _ := repo.ListRedeemableOffers(context.Background(), customer.ID, true)
	if len(offers) != 1 {
		t.Fatalf("offers = %d, want 1", len(offers))
	}

	// Прямой повтор шага создания — идемпотентен.
	created, err := svc.ensureOffer(context.Background(), repo, businessID, customer, uuid.New(), time.Now())
	if err != nil {
		t.Fatalf("ensureOffer error = %v", err)
	}
	if created != nil {
		t.Fatalf("duplicate offer must not be created")
	}
	offers, _ = repo.ListRedeemableOffers(context.Background(), customer.ID, true)
	if len(offers) != 1 {
		t.Fatalf("offers after repeat = %d, want 1", len(offers))
	}
}

func TestApproveTransactions_PointsPostedToLedger(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, nil, nil)
	businessID := uuid.New()

	rule := model.Rule{
		BusinessID:   businessID,
		Name:         "10 points per visit",
		CustomerType: model.CustomerTypeAny,
		RewardType:   model.RewardPoints,
		RewardValue:  "10",
		PerUnit:      model.PerTransaction,
		IsActive:     true,
	}
	if err := repo.CreateRule(context.Background(), &rule); err != nil {
		t.Fatalf("create rule: %v", err)
	}

	res := approveVisits(t, svc, businessID, "50")[0]
	if res.Reward.PointsEarned != 10 {
		t.Fatalf("PointsEarned = %d, want 10", res.Reward.PointsEarned)
	}

	customer, err := repo.GetCustomerByPhone(context.Background(), businessID, testPhone)
	if err != nil {
		t.Fatalf("get customer: %v", err)
	}

	entries, _ := repo.ListLedgerEntries(context.Background(), customer.ID)
	if len(entries) != 1 {
		t.Fatalf("ledger entries = %d, want 1", len(entries))
	}
	if entries[0].PointsDelta != 10 || entries[0].RuleID == nil || *entries[0].RuleID != rule.ID {
		t.Fatalf("unexpected ledger entry: %+v", entries[0])
	}
	if entries[0].TransactionID == nil || *entries[0].TransactionID != res.Transaction.ID {
		t.Fatalf("ledger entry must reference the transaction")
	}

	// Баланс равен сумме дельт журнала, устаревшее поле зеркалируется.
	balance, err := svc.GetCustomerBalance(context.Background(), businessID, testPhone)
	if err != nil || balance != 10 {
		t.Fatalf("balance = %d, %v; want 10", balance, err)
	}
	if customer.Points != 10 {
		t.Fatalf("legacy points = %d, want 10", customer.Points)
	}
}

func TestRequestRedemption(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, nil, nil)
	businessID := uuid.New()

	approveVisits(t, svc, businessID, "20", "20")

	_, err := svc.RequestRedemption(context.Background(), businessID, testPhone)
	if !errors.Is(err, ErrInsufficientVisits) {
		t.Fatalf("expected ErrInsufficientVisits, got %v", err)
	}

	approveVisits(t, svc, businessID, "20", "20")

	offer, err := svc.RequestRedemption(context.Background(), businessID, testPhone)
	if err != nil {
		t.Fatalf("RequestRedemption error = %v", err)
	}
	if offer.IsRedeemed {
		t.Fatalf("redemption request must not flip the redeemed flag")
	}
}

func TestGetCustomerBalance_FallbackChain(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, nil, nil)
	businessID := uuid.New()

	// Неизвестный клиент — ноль, а не ошибка.
	balance, err := svc.GetCustomerBalance(context.Background(), businessID, testPhone)
	if err != nil || balance != 0 {
		t.Fatalf("unknown customer balance = %d, %v; want 0", balance, err)
	}

	// Без кешированной записи читается устаревшее поле клиента.
	customer := &model.Customer{BusinessID: businessID, Phone: testPhone, Points: 7}
	if err := repo.CreateCustomer(context.Background(), customer); err != nil {
		t.Fatalf("create customer: %v", err)
	}
	balance, err = svc.GetCustomerBalance(context.Background(), businessID, testPhone)
	if err != nil || balance != 7 {
		t.Fatalf("legacy balance = %d, %v; want 7", balance, err)
	}

	// Кешированная запись имеет приоритет над устаревшим полем.
	if _, err := repo.UpsertPointBalance(context.Background(), customer.ID, 12); err != nil {
		t.Fatalf("upsert balance: %v", err)
	}
	balance, err = svc.GetCustomerBalance(context.Background(), businessID, testPhone)
	if err != nil || balance != 12 {
		t.Fatalf("cached balance = %d, %v; want 12", balance, err)
	}
}

func TestApproveTransactions_InvalidPhone(t *testing.T) {
	svc := NewService(newMemRepo(), nil, nil)

	_, err := svc.ApproveTransactions(context.Background(), uuid.New(), []TransactionInput{
		{PhoneNumber: "not-a-phone", Amount: decimal.NewFromInt(10)},
	})
	if err == nil {
		t.Fatalf("expected error for invalid phone")
	}
}

func TestInitializeFixedRules_Idempotent(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, nil, nil)
	businessID := uuid.New()

	created, err := svc.InitializeFixedRules(context.Background(), businessID)
	if err != nil {
		t.Fatalf("InitializeFixedRules error = %v", err)
	}
	if len(created) != 2 {
		t.Fatalf("created = %d rules, want 2", len(created))
	}

	again, err := svc.InitializeFixedRules(context.Background(), businessID)
	if err != nil {
		t.Fatalf("second InitializeFixedRules error = %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("second call created %d rules, want 0", len(again))
	}
}

func TestSubmitAndApprovePending(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, nil, nil)
	businessID := uuid.New()

	submitted, err := svc.SubmitTransactions(context.Background(), businessID, []TransactionInput{
		{PhoneNumber: testPhone, Amount: decimal.NewFromInt(20)},
		{PhoneNumber: testPhone, Amount: decimal.NewFromInt(30)},
	})
	if err != nil {
		t.Fatalf("SubmitTransactions error = %v", err)
	}
	if len(submitted) != 2 {
		t.Fatalf("submitted = %d transactions, want 2", len(submitted))
	}

	pending, err := svc.ListPendingTransactions(context.Background(), businessID)
	if err != nil || len(pending) != 2 {
		t.Fatalf("pending = %d, %v; want 2", len(pending), err)
	}

	results, err := svc.ApprovePending(context.Background(), businessID,
		[]uuid.UUID{submitted[0].ID, submitted[1].ID})
	if err != nil {
		t.Fatalf("ApprovePending error = %v", err)
	}
	if results[0].Transaction.Sequence != 1 || results[1].Transaction.Sequence != 2 {
		t.Fatalf("sequences = %d, %d; want 1, 2",
			results[0].Transaction.Sequence, results[1].Transaction.Sequence)
	}

	pending, _ = svc.ListPendingTransactions(context.Background(), businessID)
	if len(pending) != 0 {
		t.Fatalf("pending after approval = %d, want 0", len(pending))
	}

	// Повторное одобрение отклоняется.
	_, err = svc.ApprovePending(context.Background(), businessID, []uuid.UUID{submitted[0].ID})
	if !errors.Is(err, ErrAlreadyApproved) {
		t.Fatalf("expected ErrAlreadyApproved, got %v", err)
	}
}

func TestReconcileBalances_RepairsDrift(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, nil, nil)
	businessID := uuid.New()

	customer := &model.Customer{BusinessID: businessID, Phone: testPhone}
	if err := repo.CreateCustomer(context.Background(), customer); err != nil {
		t.Fatalf("create customer: %v", err)
	}
	entry := model.LedgerEntry{CustomerID: customer.ID, PointsDelta: 30, RewardTypeApplied: model.RewardPoints}
	if err := repo.InsertLedgerEntry(context.Background(), &entry); err != nil {
		t.Fatalf("insert entry: %v", err)
	}
	// Кеш разошёлся с журналом.
	repo.balances[customer.ID] = 5

	fixed, err := svc.ReconcileBalances(context.Background(), businessID)
	if err != nil {
		t.Fatalf("ReconcileBalances error = %v", err)
	}
	if fixed != 1 {
		t.Fatalf("fixed = %d, want 1", fixed)
	}
	if repo.balances[customer.ID] != 30 || customer.Points != 30 {
		t.Fatalf("balance = %d, legacy = %d; want 30/30", repo.balances[customer.ID], customer.Points)
	}
}
