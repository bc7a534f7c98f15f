// Package handler содержит HTTP-обработчики API сервиса лояльности.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/washbonus/internal/middleware"
	"github.com/mmeshcher/washbonus/internal/model"
	"github.com/mmeshcher/washbonus/internal/repository"
	"github.com/mmeshcher/washbonus/internal/reward"
	"github.com/mmeshcher/washbonus/internal/service"
	"github.com/mmeshcher/washbonus/internal/validation"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	RegisterBusiness(ctx context.Context, login, password, name string) (uuid.UUID, error)
	AuthenticateBusiness(ctx context.Context, login, password string) (uuid.UUID, error)

	ApproveTransactions(ctx context.Context, businessID uuid.UUID, inputs []service.TransactionInput) ([]service.ApproveResult, error)
	SubmitTransactions(ctx context.Context, businessID uuid.UUID, inputs []service.TransactionInput) ([]model.Transaction, error)
	ApprovePending(ctx context.Context, businessID uuid.UUID, ids []uuid.UUID) ([]service.ApproveResult, error)
	ListTransactions(ctx context.Context, businessID uuid.UUID, phone string) ([]model.Transaction, error)
	ListPendingTransactions(ctx context.Context, businessID uuid.UUID) ([]model.Transaction, error)

	CreateCustomer(ctx context.Context, customer model.Customer) (model.Customer, error)
	GetCustomer(ctx context.Context, businessID uuid.UUID, phone string) (*model.Customer, error)
	SetCustomerMembership(ctx context.Context, businessID uuid.UUID, phone, membershipID, plan string) (*model.Customer, error)
	GetCustomerBalance(ctx context.Context, businessID uuid.UUID, phone string) (int, error)
	GetLedgerHistory(ctx context.Context, businessID uuid.UUID, phone string) ([]model.LedgerEntry, error)
	GetCustomerOffers(ctx context.Context, businessID uuid.UUID, phone string, includeRedeemed bool) ([]model.RedeemableOffer, error)
	RequestRedemption(ctx context.Context, businessID uuid.UUID, phone string) (*model.RedeemableOffer, error)
	CustomerEligibility(ctx context.Context, businessID uuid.UUID, phone string) ([]model.Rule, error)

	CreateRule(ctx context.Context, rule model.Rule) (model.Rule, error)
	ListRules(ctx context.Context, businessID uuid.UUID) ([]model.Rule, error)
	GetRule(ctx context.Context, id uuid.UUID) (*model.Rule, error)
	SetRuleActive(ctx context.Context, id uuid.UUID, active bool) error
	DeleteRule(ctx context.Context, id uuid.UUID) error
	InitializeFixedRules(ctx context.Context, businessID uuid.UUID) ([]model.Rule, error)
	TestRules(ctx context.Context, businessID uuid.UUID, phone string, amount decimal.Decimal, description string) (reward.Result, error)

	ReconcileBalances(ctx context.Context, businessID uuid.UUID) (int, error)
}

// Handler реализует HTTP-обработчики API сервиса лояльности.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
	}
}

// respondError транслирует ошибки бизнес-логики в HTTP-статусы.
func (h *Handler) respondError(w http.ResponseWriter, err error, msg string) {
	switch {
	case errors.Is(err, validation.ErrInvalidPhone):
		http.Error(w, http.StatusText(http.StatusUnprocessableEntity), http.StatusUnprocessableEntity)
	case errors.Is(err, repository.ErrBusinessExists),
		errors.Is(err, repository.ErrCustomerExists),
		errors.Is(err, repository.ErrOfferExists),
		errors.Is(err, repository.ErrOfferAlreadyRedeemed),
		errors.Is(err, service.ErrInsufficientVisits),
		errors.Is(err, service.ErrAlreadyApproved):
		http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
	case errors.Is(err, repository.ErrBusinessNotFound),
		errors.Is(err, repository.ErrCustomerNotFound),
		errors.Is(err, repository.ErrTransactionNotFound),
		errors.Is(err, repository.ErrRuleNotFound),
		errors.Is(err, repository.ErrOfferNotFound):
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	case errors.Is(err, service.ErrInvalidCredentials):
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
	default:
		h.logger.Error(msg, zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response", zap.Error(err))
	}
}

func businessFromContext(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	businessID, ok := middleware.GetBusinessIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
	}
	return businessID, ok
}

type credentialsRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
}

// Register обрабатывает регистрацию нового бизнеса.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Login == "" || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	businessID, err := h.service.RegisterBusiness(r.Context(), req.Login, req.Password, req.Name)
	if err != nil {
		h.respondError(w, err, "register business error")
		return
	}

	h.authMiddleware.SetAuthCookie(w, businessID)
	w.WriteHeader(http.StatusOK)
}

// Login выполняет аутентификацию бизнеса и установку cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Login == "" || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	businessID, err := h.service.AuthenticateBusiness(r.Context(), req.Login, req.Password)
	if err != nil {
		if errors.Is(err, repository.ErrBusinessNotFound) {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		h.respondError(w, err, "login business error")
		return
	}

	h.authMiddleware.SetAuthCookie(w, businessID)
	w.WriteHeader(http.StatusOK)
}

type transactionRequest struct {
	PhoneNumber    string          `json:"phone_number"`
	CustomerCode   string          `json:"customer_code,omitempty"`
	LicensePlate   string          `json:"license_plate,omitempty"`
	MembershipID   string          `json:"membership_id,omitempty"`
	Date           *time.Time      `json:"date,omitempty"`
	Description    string          `json:"description,omitempty"`
	Quantity       int             `json:"quantity,omitempty"`
	Amount         decimal.Decimal `json:"amount"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
}

type approveRequest struct {
	Transactions []transactionRequest `json:"transactions"`
}

type offerResponse struct {
	ID          uuid.UUID `json:"id"`
	RewardType  string    `json:"reward_type"`
	RewardValue string    `json:"reward_value"`
	IsRedeemed  bool      `json:"is_redeemed"`
	CreatedAt   string    `json:"created_at"`
}

func toOfferResponse(o model.RedeemableOffer) offerResponse {
	return offerResponse{
		ID:          o.ID,
		RewardType:  string(o.RewardType),
		RewardValue: o.RewardValue,
		IsRedeemed:  o.IsRedeemed,
		CreatedAt:   o.CreatedAt.Format(time.RFC3339),
	}
}

type approveResponse struct {
	TransactionID  uuid.UUID      `json:"transaction_id"`
	Sequence       int            `json:"sequence"`
	PointsEarned   int            `json:"points_earned"`
	DiscountAmount string         `json:"discount_amount"`
	FreeMonths     int            `json:"free_months,omitempty"`
	AppliedRules   []string       `json:"applied_rules,omitempty"`
	OfferCreated   *offerResponse `json:"offer_created,omitempty"`
	OfferRedeemed  *offerResponse `json:"offer_redeemed,omitempty"`
	Warnings       []string       `json:"warnings,omitempty"`
}

// ApproveTransactions одобряет пакет транзакций текущего бизнеса.
func (h *Handler) ApproveTransactions(w http.ResponseWriter, r *http.Request) {
	businessID, ok := businessFromContext(w, r)
	if !ok {
		return
	}

	var req approveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if len(req.Transactions) == 0 {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	results, err := h.service.ApproveTransactions(r.Context(), businessID, toInputs(req.Transactions))
	if err != nil {
		h.respondError(w, err, "approve transactions error")
		return
	}

	h.writeJSON(w, http.StatusOK, toApproveResponses(results))
}

func toInputs(transactions []transactionRequest) []service.TransactionInput {
	inputs := make([]service.TransactionInput, 0, len(transactions))
	for _, t := range transactions {
		in := service.TransactionInput{
			PhoneNumber:    t.PhoneNumber,
			CustomerCode:   t.CustomerCode,
			LicensePlate:   t.LicensePlate,
			MembershipID:   t.MembershipID,
			Description:    t.Description,
			Quantity:       t.Quantity,
			Amount:         t.Amount,
			DiscountAmount: t.DiscountAmount,
		}
		if t.Date != nil {
			in.Date = *t.Date
		}
		inputs = append(inputs, in)
	}
	return inputs
}

func toApproveResponses(results []service.ApproveResult) []approveResponse {
	resp := make([]approveResponse, 0, len(results))
	for _, res := range results {
		item := approveResponse{
			TransactionID:  res.Transaction.ID,
			Sequence:       res.Transaction.Sequence,
			PointsEarned:   res.Reward.PointsEarned,
			DiscountAmount: res.Reward.DiscountAmount.StringFixed(2),
			FreeMonths:     res.Reward.FreeMonths,
		}
		for _, applied := range res.Reward.AppliedRules {
			item.AppliedRules = append(item.AppliedRules, applied.Describe())
		}
		if res.OfferCreated != nil {
			o := toOfferResponse(*res.OfferCreated)
			item.OfferCreated = &o
		}
		if res.OfferRedeemed != nil {
			o := toOfferResponse(*res.OfferRedeemed)
			item.OfferRedeemed = &o
		}
		for _, sideErr := range res.SideEffects {
			item.Warnings = append(item.Warnings, sideErr.Error())
		}
		resp = append(resp, item)
	}
	return resp
}

// SubmitTransactions сохраняет пакет транзакций без одобрения.
func (h *Handler) SubmitTransactions(w http.ResponseWriter, r *http.Request) {
	businessID, ok := businessFromContext(w, r)
	if !ok {
		return
	}

	var req approveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if len(req.Transactions) == 0 {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	transactions, err := h.service.SubmitTransactions(r.Context(), businessID, toInputs(req.Transactions))
	if err != nil {
		h.respondError(w, err, "submit transactions error")
		return
	}

	h.writeJSON(w, http.StatusAccepted, toTransactionResponses(transactions))
}

type approvePendingRequest struct {
	IDs []uuid.UUID `json:"ids"`
}

// ApprovePending одобряет ранее сохранённые транзакции по идентификаторам.
func (h *Handler) ApprovePending(w http.ResponseWriter, r *http.Request) {
	businessID, ok := businessFromContext(w, r)
	if !ok {
		return
	}

	var req approvePendingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if len(req.IDs) == 0 {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	results, err := h.service.ApprovePending(r.Context(), businessID, req.IDs)
	if err != nil {
		h.respondError(w, err, "approve pending error")
		return
	}

	h.writeJSON(w, http.StatusOK, toApproveResponses(results))
}

type transactionResponse struct {
	ID             uuid.UUID `json:"id"`
	PhoneNumber    string    `json:"phone_number"`
	Description    string    `json:"description,omitempty"`
	Amount         string    `json:"amount"`
	DiscountAmount string    `json:"discount_amount"`
	Sequence       int       `json:"sequence,omitempty"`
	IsApproved     bool      `json:"is_approved"`
	Date           string    `json:"date"`
}

func toTransactionResponses(transactions []model.Transaction) []transactionResponse {
	resp := make([]transactionResponse, 0, len(transactions))
	for _, t := range transactions {
		resp = append(resp, transactionResponse{
			ID:             t.ID,
			PhoneNumber:    t.PhoneNumber,
			Description:    t.Description,
			Amount:         t.Amount.StringFixed(2),
			DiscountAmount: t.DiscountAmount.StringFixed(2),
			Sequence:       t.Sequence,
			IsApproved:     t.IsApproved,
			Date:           t.Date.Format(time.RFC3339),
		})
	}
	return resp
}

// ListTransactions возвращает транзакции текущего бизнеса.
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	businessID, ok := businessFromContext(w, r)
	if !ok {
		return
	}

	transactions, err := h.service.ListTransactions(r.Context(), businessID, r.URL.Query().Get("phone"))
	if err != nil {
		h.respondError(w, err, "list transactions error")
		return
	}

	if len(transactions) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	h.writeJSON(w, http.StatusOK, toTransactionResponses(transactions))
}

// ListPendingTransactions возвращает неодобренные транзакции текущего бизнеса.
func (h *Handler) ListPendingTransactions(w http.ResponseWriter, r *http.Request) {
	businessID, ok := businessFromContext(w, r)
	if !ok {
		return
	}

	transactions, err := h.service.ListPendingTransactions(r.Context(), businessID)
	if err != nil {
		h.respondError(w, err, "list pending transactions error")
		return
	}

	if len(transactions) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	h.writeJSON(w, http.StatusOK, toTransactionResponses(transactions))
}
