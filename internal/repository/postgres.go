// Package repository содержит реализацию доступа к данным в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/washbonus/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrBusinessExists возвращается при попытке создать бизнес с уже существующим логином.
var (
	ErrBusinessExists = errors.New("business already exists")
	// ErrBusinessNotFound возвращается, если бизнес не найден.
	ErrBusinessNotFound = errors.New("business not found")
	// ErrCustomerExists возвращается при конфликте по паре (бизнес, телефон).
	ErrCustomerExists = errors.New("customer already exists")
	// ErrCustomerNotFound возвращается, если клиент не найден.
	ErrCustomerNotFound = errors.New("customer not found")
	// ErrTransactionNotFound возвращается, если транзакция не найдена.
	ErrTransactionNotFound = errors.New("transaction not found")
	// ErrRuleNotFound возвращается, если правило не найдено.
	ErrRuleNotFound = errors.New("rule not found")
	// ErrOfferExists возвращается, если у клиента уже есть непогашенное предложение этого типа.
	ErrOfferExists = errors.New("unredeemed offer already exists")
	// ErrOfferNotFound возвращается, если предложение не найдено.
	ErrOfferNotFound = errors.New("offer not found")
	// ErrOfferAlreadyRedeemed возвращается при повторном погашении предложения.
	ErrOfferAlreadyRedeemed = errors.New("offer already redeemed")
)

// Repository описывает контракт хранилища сервиса лояльности.
// WithinTx выполняет fn в транзакции БД: все вызовы репозитория,
// переданного в fn, попадают в одну транзакцию.
type Repository interface {
	WithinTx(ctx context.Context, fn func(Repository) error) error
	Close() error

	CreateBusiness(ctx context.Context, login string, passwordHash []byte, name string) (uuid.UUID, error)
	GetBusinessByLogin(ctx context.Context, login string) (*model.Business, error)
	ListBusinesses(ctx context.Context) ([]model.Business, error)

	CreateCustomer(ctx context.Context, c *model.Customer) error
	GetCustomerByPhone(ctx context.Context, businessID uuid.UUID, phone string) (*model.Customer, error)
	GetCustomerByID(ctx context.Context, id uuid.UUID) (*model.Customer, error)
	SetCustomerMembership(ctx context.Context, customerID uuid.UUID, membershipID, plan string) error
	AddCustomerPoints(ctx context.Context, customerID uuid.UUID, delta int) error

	InsertTransaction(ctx context.Context, t *model.Transaction) error
	MarkTransactionApproved(ctx context.Context, id uuid.UUID, sequence int, at time.Time) error
	GetTransaction(ctx context.Context, id uuid.UUID) (*model.Transaction, error)
	ListTransactions(ctx context.Context, businessID uuid.UUID, phone string) ([]model.Transaction, error)
	ListPendingTransactions(ctx context.Context, businessID uuid.UUID) ([]model.Transaction, error)
	CountApprovedTransactions(ctx context.Context, businessID uuid.UUID, phone string) (int, error)

	CreateRule(ctx context.Context, rule *model.Rule) error
	GetRule(ctx context.Context, id uuid.UUID) (*model.Rule, error)
	ListRules(ctx context.Context, businessID uuid.UUID) ([]model.Rule, error)
	GetActiveRules(ctx context.Context, businessID uuid.UUID) ([]model.Rule, error)
	SetRuleActive(ctx context.Context, id uuid.UUID, active bool) error
	DeleteRule(ctx context.Context, id uuid.UUID) error
	FindOfferTemplateRule(ctx context.Context, businessID uuid.UUID, customerType model.CustomerType) (*model.Rule, error)

	InsertLedgerEntry(ctx context.Context, e *model.LedgerEntry) error
	ListLedgerEntries(ctx context.Context, customerID uuid.UUID) ([]model.LedgerEntry, error)
	UpsertPointBalance(ctx context.Context, customerID uuid.UUID, delta int) (int, error)
	GetPointBalance(ctx context.Context, customerID uuid.UUID) (int, bool, error)
	ReconcileBalances(ctx context.Context, businessID uuid.UUID) (int, error)

	InsertRedeemableOffer(ctx context.Context, o *model.RedeemableOffer) error
	GetRedeemableOffer(ctx context.Context, id uuid.UUID) (*model.RedeemableOffer, error)
	GetUnredeemedOffer(ctx context.Context, customerID, businessID uuid.UUID, customerType model.CustomerType) (*model.RedeemableOffer, error)
	ListRedeemableOffers(ctx context.Context, customerID uuid.UUID, includeRedeemed bool) ([]model.RedeemableOffer, error)
	MarkOfferRedeemed(ctx context.Context, offerID, transactionID uuid.UUID, at time.Time) error
}

// DBTX объединяет pgxpool.Pool и pgx.Tx: методы репозитория работают
// одинаково и над пулом, и внутри открытой транзакции.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
	db   DBTX
	inTx bool
}

var _ Repository = (*PostgresRepository)(nil)

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool, db: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// WithinTx выполняет fn в транзакции. Вложенный вызов продолжает уже
// открытую транзакцию, а не открывает новую.
func (r *PostgresRepository) WithinTx(ctx context.Context, fn func(Repository) error) error {
	if r.inTx {
		return fn(r)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&PostgresRepository{pool: r.pool, db: tx, inTx: true}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

// CreateBusiness создаёт новый бизнес-аккаунт.
func (r *PostgresRepository) CreateBusiness(ctx context.Context, login string, passwordHash []byte, name string) (uuid.UUID, error) {
	id := uuid.New()
	_, err := r.db.Exec(ctx,
		`INSERT INTO businesses (id, login, password_hash, name) VALUES ($1, $2, $3, $4)`,
		id, login, passwordHash, name,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return uuid.Nil, fmt.Errorf("%w: %s", ErrBusinessExists, login)
		}
		return uuid.Nil, fmt.Errorf("create business: %w", err)
	}
	return id, nil
}

// GetBusinessByLogin возвращает бизнес по логину.
func (r *PostgresRepository) GetBusinessByLogin(ctx context.Context, login string) (*model.Business, error) {
	row := r.db.QueryRow(ctx,
		`SELECT id, login, password_hash, name, created_at FROM businesses WHERE login = $1`,
		login,
	)

	var b model.Business
	err := row.Scan(&b.ID, &b.Login, &b.PasswordHash, &b.Name, &b.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBusinessNotFound
		}
		return nil, fmt.Errorf("get business: %w", err)
	}

	return &b, nil
}

// ListBusinesses возвращает все зарегистрированные бизнесы.
func (r *PostgresRepository) ListBusinesses(ctx context.Context) ([]model.Business, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, login, password_hash, name, created_at FROM businesses ORDER BY created_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("select businesses: %w", err)
	}
	defer rows.Close()

	var res []model.Business
	for rows.Next() {
		var b model.Business
		if err := rows.Scan(&b.ID, &b.Login, &b.PasswordHash, &b.Name, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan business: %w", err)
		}
		res = append(res, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// CreateCustomer создаёт клиента. Пара (бизнес, телефон) уникальна.
func (r *PostgresRepository) CreateCustomer(ctx context.Context, c *model.Customer) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	err := r.db.QueryRow(ctx,
		`INSERT INTO customers (id, business_id, phone, name, email, membership_id, plan, points)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING created_at`,
		c.ID, c.BusinessID, c.Phone, c.Name, c.Email, c.MembershipID, c.Plan, c.Points,
	).Scan(&c.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrCustomerExists, c.Phone)
		}
		return fmt.Errorf("create customer: %w", err)
	}
	return nil
}

const customerColumns = `id, business_id, phone, name, email, membership_id, plan, points, created_at`

func scanCustomer(row pgx.Row) (*model.Customer, error) {
	var c model.Customer
	err := row.Scan(&c.ID, &c.BusinessID, &c.Phone, &c.Name, &c.Email,
		&c.MembershipID, &c.Plan, &c.Points, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetCustomerByPhone возвращает клиента бизнеса по номеру телефона.
func (r *PostgresRepository) GetCustomerByPhone(ctx context.Context, businessID uuid.UUID, phone string) (*model.Customer, error) {
	c, err := scanCustomer(r.db.QueryRow(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE business_id = $1 AND phone = $2`,
		businessID, phone,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCustomerNotFound
		}
		return nil, fmt.Errorf("get customer by phone: %w", err)
	}
	return c, nil
}

// GetCustomerByID возвращает клиента по идентификатору.
func (r *PostgresRepository) GetCustomerByID(ctx context.Context, id uuid.UUID) (*model.Customer, error) {
	c, err := scanCustomer(r.db.QueryRow(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE id = $1`,
		id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCustomerNotFound
		}
		return nil, fmt.Errorf("get customer: %w", err)
	}
	return c, nil
}

// SetCustomerMembership задаёт членство клиента.
func (r *PostgresRepository) SetCustomerMembership(ctx context.Context, customerID uuid.UUID, membershipID, plan string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE customers SET membership_id = $2, plan = $3 WHERE id = $1`,
		customerID, membershipID, plan,
	)
	if err != nil {
		return fmt.Errorf("set membership: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCustomerNotFound
	}
	return nil
}

// AddCustomerPoints изменяет устаревшее денормализованное поле баланса клиента.
func (r *PostgresRepository) AddCustomerPoints(ctx context.Context, customerID uuid.UUID, delta int) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE customers SET points = points + $2 WHERE id = $1`,
		customerID, delta,
	)
	if err != nil {
		return fmt.Errorf("add customer points: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCustomerNotFound
	}
	return nil
}

// InsertTransaction сохраняет транзакцию.
func (r *PostgresRepository) InsertTransaction(ctx context.Context, t *model.Transaction) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	var seq *int
	if t.Sequence > 0 {
		seq = &t.Sequence
	}
	err := r.db.QueryRow(ctx,
		`INSERT INTO transactions
		   (id, business_id, phone_number, customer_code, license_plate, date,
		    description, quantity, amount, discount_amount, transaction_sequence,
		    is_approved, approved_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 RETURNING created_at`,
		t.ID, t.BusinessID, t.PhoneNumber, t.CustomerCode, t.LicensePlate, t.Date,
		t.Description, t.Quantity, t.Amount.String(), t.DiscountAmount.String(), seq,
		t.IsApproved, t.ApprovedAt,
	).Scan(&t.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// MarkTransactionApproved помечает неодобренную транзакцию одобренной и
// присваивает ей порядковый номер.
func (r *PostgresRepository) MarkTransactionApproved(ctx context.Context, id uuid.UUID, sequence int, at time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE transactions
		 SET is_approved = true, transaction_sequence = $2, approved_at = $3
		 WHERE id = $1 AND NOT is_approved`,
		id, sequence, at,
	)
	if err != nil {
		return fmt.Errorf("mark transaction approved: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

const transactionColumns = `id, business_id, phone_number, customer_code, license_plate, date,
	description, quantity, amount::text, discount_amount::text,
	COALESCE(transaction_sequence, 0), is_approved, approved_at, created_at`

func scanTransaction(row pgx.Row) (*model.Transaction, error) {
	var (
		t                model.Transaction
		amount, discount string
	)
	err := row.Scan(&t.ID, &t.BusinessID, &t.PhoneNumber, &t.CustomerCode, &t.LicensePlate,
		&t.Date, &t.Description, &t.Quantity, &amount, &discount,
		&t.Sequence, &t.IsApproved, &t.ApprovedAt, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	if t.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("parse amount: %w", err)
	}
	if t.DiscountAmount, err = decimal.NewFromString(discount); err != nil {
		return nil, fmt.Errorf("parse discount: %w", err)
	}
	return &t, nil
}

// GetTransaction возвращает транзакцию по идентификатору.
func (r *PostgresRepository) GetTransaction(ctx context.Context, id uuid.UUID) (*model.Transaction, error) {
	t, err := scanTransaction(r.db.QueryRow(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = $1`,
		id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

func (r *PostgresRepository) listTransactions(ctx context.Context, query string, args ...any) ([]model.Transaction, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select transactions: %w", err)
	}
	defer rows.Close()

	var res []model.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		res = append(res, *t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// ListTransactions возвращает транзакции бизнеса, сперва новые.
// Непустой phone ограничивает выборку одним клиентом.
func (r *PostgresRepository) ListTransactions(ctx context.Context, businessID uuid.UUID, phone string) ([]model.Transaction, error) {
	if phone != "" {
		return r.listTransactions(ctx,
			`SELECT `+transactionColumns+` FROM transactions
			 WHERE business_id = $1 AND phone_number = $2
			 ORDER BY date DESC`,
			businessID, phone,
		)
	}
	return r.listTransactions(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		 WHERE business_id = $1
		 ORDER BY date DESC`,
		businessID,
	)
}

// ListPendingTransactions возвращает неодобренные транзакции бизнеса, старые первыми.
func (r *PostgresRepository) ListPendingTransactions(ctx context.Context, businessID uuid.UUID) ([]model.Transaction, error) {
	return r.listTransactions(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		 WHERE business_id = $1 AND NOT is_approved
		 ORDER BY date`,
		businessID,
	)
}

// CountApprovedTransactions возвращает число одобренных транзакций клиента в рамках бизнеса.
func (r *PostgresRepository) CountApprovedTransactions(ctx context.Context, businessID uuid.UUID, phone string) (int, error) {
	var n int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM transactions
		 WHERE business_id = $1 AND phone_number = $2 AND is_approved`,
		businessID, phone,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count approved transactions: %w", err)
	}
	return n, nil
}

// CreateRule сохраняет промо-правило.
func (r *PostgresRepository) CreateRule(ctx context.Context, rule *model.Rule) error {
	if rule.ID == uuid.Nil {
		rule.ID = uuid.New()
	}
	err := r.db.QueryRow(ctx,
		`INSERT INTO rules
		   (id, business_id, name, description, customer_type, product_type, wash_type,
		    reward_type, reward_value, per_unit, priority, start_date, end_date,
		    max_uses_per_customer, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		 RETURNING created_at`,
		rule.ID, rule.BusinessID, rule.Name, rule.Description,
		string(rule.CustomerType), rule.ProductType, rule.WashType,
		string(rule.RewardType), rule.RewardValue, string(rule.PerUnit),
		rule.Priority, rule.StartDate, rule.EndDate,
		rule.MaxUsesPerCustomer, rule.IsActive,
	).Scan(&rule.CreatedAt)
	if err != nil {
		return fmt.Errorf("create rule: %w", err)
	}
	return nil
}

const ruleColumns = `id, business_id, name, description, customer_type, product_type, wash_type,
	reward_type, reward_value, per_unit, priority, start_date, end_date,
	max_uses_per_customer, is_active, created_at`

func scanRule(row pgx.Row) (*model.Rule, error) {
	var (
		rule                              model.Rule
		customerType, rewardType, perUnit string
	)
	err := row.Scan(&rule.ID, &rule.BusinessID, &rule.Name, &rule.Description,
		&customerType, &rule.ProductType, &rule.WashType,
		&rewardType, &rule.RewardValue, &perUnit,
		&rule.Priority, &rule.StartDate, &rule.EndDate,
		&rule.MaxUsesPerCustomer, &rule.IsActive, &rule.CreatedAt)
	if err != nil {
		return nil, err
	}
	rule.CustomerType = model.CustomerType(customerType)
	rule.RewardType = model.RewardType(rewardType)
	rule.PerUnit = model.PerUnit(perUnit)
	return &rule, nil
}

// GetRule возвращает правило по идентификатору.
func (r *PostgresRepository) GetRule(ctx context.Context, id uuid.UUID) (*model.Rule, error) {
	rule, err := scanRule(r.db.QueryRow(ctx,
		`SELECT `+ruleColumns+` FROM rules WHERE id = $1`,
		id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRuleNotFound
		}
		return nil, fmt.Errorf("get rule: %w", err)
	}
	return rule, nil
}

func (r *PostgresRepository) listRules(ctx context.Context, query string, args ...any) ([]model.Rule, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select rules: %w", err)
	}
	defer rows.Close()

	var res []model.Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		res = append(res, *rule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// ListRules возвращает все правила бизнеса.
func (r *PostgresRepository) ListRules(ctx context.Context, businessID uuid.UUID) ([]model.Rule, error) {
	return r.listRules(ctx,
		`SELECT `+ruleColumns+` FROM rules
		 WHERE business_id = $1
		 ORDER BY priority DESC, created_at`,
		businessID,
	)
}

// GetActiveRules возвращает активные правила бизнеса в порядке применения.
func (r *PostgresRepository) GetActiveRules(ctx context.Context, businessID uuid.UUID) ([]model.Rule, error) {
	return r.listRules(ctx,
		`SELECT `+ruleColumns+` FROM rules
		 WHERE business_id = $1 AND is_active
		 ORDER BY priority DESC, created_at`,
		businessID,
	)
}

// SetRuleActive включает или выключает правило.
func (r *PostgresRepository) SetRuleActive(ctx context.Context, id uuid.UUID, active bool) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE rules SET is_active = $2 WHERE id = $1`,
		id, active,
	)
	if err != nil {
		return fmt.Errorf("set rule active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRuleNotFound
	}
	return nil
}

// DeleteRule удаляет правило.
func (r *PostgresRepository) DeleteRule(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM rules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRuleNotFound
	}
	return nil
}

// FindOfferTemplateRule ищет активное правило каталога для данного типа
// клиента, чтобы привязать его к персональному предложению.
// Отсутствие шаблона — не ошибка: возвращается (nil, nil).
func (r *PostgresRepository) FindOfferTemplateRule(ctx context.Context, businessID uuid.UUID, customerType model.CustomerType) (*model.Rule, error) {
	rule, err := scanRule(r.db.QueryRow(ctx,
		`SELECT `+ruleColumns+` FROM rules
		 WHERE business_id = $1 AND customer_type = $2 AND is_active
		 ORDER BY priority DESC, created_at
		 LIMIT 1`,
		businessID, string(customerType),
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find offer template rule: %w", err)
	}
	return rule, nil
}
