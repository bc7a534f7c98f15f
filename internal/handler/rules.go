package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/washbonus/internal/model"
)

type ruleResponse struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	CustomerType string    `json:"customer_type"`
	WashType     string    `json:"wash_type,omitempty"`
	RewardType   string    `json:"reward_type"`
	RewardValue  string    `json:"reward_value"`
	PerUnit      string    `json:"per_unit"`
	Priority     int       `json:"priority"`
	IsActive     bool      `json:"is_active"`
}

func toRuleResponse(r model.Rule) ruleResponse {
	return ruleResponse{
		ID:           r.ID,
		Name:         r.Name,
		Description:  r.Description,
		CustomerType: string(r.CustomerType),
		WashType:     r.WashType,
		RewardType:   string(r.RewardType),
		RewardValue:  r.RewardValue,
		PerUnit:      string(r.PerUnit),
		Priority:     r.Priority,
		IsActive:     r.IsActive,
	}
}

type createRuleRequest struct {
	Name               string     `json:"name"`
	Description        string     `json:"description,omitempty"`
	CustomerType       string     `json:"customer_type,omitempty"`
	ProductType        string     `json:"product_type,omitempty"`
	WashType           string     `json:"wash_type,omitempty"`
	RewardType         string     `json:"reward_type"`
	RewardValue        string     `json:"reward_value"`
	PerUnit            string     `json:"per_unit,omitempty"`
	Priority           int        `json:"priority,omitempty"`
	StartDate          *time.Time `json:"start_date,omitempty"`
	EndDate            *time.Time `json:"end_date,omitempty"`
	MaxUsesPerCustomer *int       `json:"max_uses_per_customer,omitempty"`
	IsActive           *bool      `json:"is_active,omitempty"`
}

// CreateRule сохраняет промо-правило текущего бизнеса.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	businessID, ok := businessFromContext(w, r)
	if !ok {
		return
	}

	var req createRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if req.Name == "" || req.RewardType == "" || req.RewardValue == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	rule, err := h.service.CreateRule(r.Context(), model.Rule{
		BusinessID:         businessID,
		Name:               req.Name,
		Description:        req.Description,
		CustomerType:       model.CustomerType(req.CustomerType),
		ProductType:        req.ProductType,
		WashType:           req.WashType,
		RewardType:         model.RewardType(req.RewardType),
		RewardValue:        req.RewardValue,
		PerUnit:            model.PerUnit(req.PerUnit),
		Priority:           req.Priority,
		StartDate:          req.StartDate,
		EndDate:            req.EndDate,
		MaxUsesPerCustomer: req.MaxUsesPerCustomer,
		IsActive:           isActive,
	})
	if err != nil {
		h.respondError(w, err, "create rule error")
		return
	}

	h.writeJSON(w, http.StatusCreated, toRuleResponse(rule))
}

// ListRules возвращает все правила текущего бизнеса.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	businessID, ok := businessFromContext(w, r)
	if !ok {
		return
	}

	rules, err := h.service.ListRules(r.Context(), businessID)
	if err != nil {
		h.respondError(w, err, "list rules error")
		return
	}

	if len(rules) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]ruleResponse, 0, len(rules))
	for _, rule := range rules {
		resp = append(resp, toRuleResponse(rule))
	}

	h.writeJSON(w, http.StatusOK, resp)
}

func ruleIDFromRequest(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "ruleID"))
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

// GetRule возвращает правило по идентификатору.
func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	if _, ok := businessFromContext(w, r); !ok {
		return
	}

	id, ok := ruleIDFromRequest(w, r)
	if !ok {
		return
	}

	rule, err := h.service.GetRule(r.Context(), id)
	if err != nil {
		h.respondError(w, err, "get rule error")
		return
	}

	h.writeJSON(w, http.StatusOK, toRuleResponse(*rule))
}

type ruleActiveRequest struct {
	IsActive bool `json:"is_active"`
}

// SetRuleActive включает или выключает правило.
func (h *Handler) SetRuleActive(w http.ResponseWriter, r *http.Request) {
	if _, ok := businessFromContext(w, r); !ok {
		return
	}

	id, ok := ruleIDFromRequest(w, r)
	if !ok {
		return
	}

	var req ruleActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.SetRuleActive(r.Context(), id, req.IsActive); err != nil {
		h.respondError(w, err, "set rule active error")
		return
	}

	w.WriteHeader(http.StatusOK)
}

// DeleteRule удаляет правило.
func (h *Handler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	if _, ok := businessFromContext(w, r); !ok {
		return
	}

	id, ok := ruleIDFromRequest(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteRule(r.Context(), id); err != nil {
		h.respondError(w, err, "delete rule error")
		return
	}

	w.WriteHeader(http.StatusOK)
}

// InitializeRules создаёт стандартный набор правил текущего бизнеса.
func (h *Handler) InitializeRules(w http.ResponseWriter, r *http.Request) {
	businessID, ok := businessFromContext(w, r)
	if !ok {
		return
	}

	created, err := h.service.InitializeFixedRules(r.Context(), businessID)
	if err != nil {
		h.respondError(w, err, "initialize rules error")
		return
	}

	resp := make([]ruleResponse, 0, len(created))
	for _, rule := range created {
		resp = append(resp, toRuleResponse(rule))
	}

	h.writeJSON(w, http.StatusCreated, resp)
}

type testRulesRequest struct {
	PhoneNumber string          `json:"phone_number"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description,omitempty"`
}

type testRulesResponse struct {
	PointsEarned   int      `json:"points_earned"`
	DiscountAmount string   `json:"discount_amount"`
	FreeMonths     int      `json:"free_months,omitempty"`
	AppliedRules   []string `json:"applied_rules,omitempty"`
}

// TestRules прогоняет правила по гипотетической транзакции без записи в БД.
func (h *Handler) TestRules(w http.ResponseWriter, r *http.Request) {
	businessID, ok := businessFromContext(w, r)
	if !ok {
		return
	}

	var req testRulesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	result, err := h.service.TestRules(r.Context(), businessID, req.PhoneNumber, req.Amount, req.Description)
	if err != nil {
		h.respondError(w, err, "test rules error")
		return
	}

	resp := testRulesResponse{
		PointsEarned:   result.PointsEarned,
		DiscountAmount: result.DiscountAmount.StringFixed(2),
		FreeMonths:     result.FreeMonths,
	}
	for _, applied := range result.AppliedRules {
		resp.AppliedRules = append(resp.AppliedRules, applied.Describe())
	}

	h.writeJSON(w, http.StatusOK, resp)
}

type reconcileResponse struct {
	Fixed int `json:"fixed"`
}

// Reconcile пересчитывает кешированные балансы клиентов текущего бизнеса.
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	businessID, ok := businessFromContext(w, r)
	if !ok {
		return
	}

	fixed, err := h.service.ReconcileBalances(r.Context(), businessID)
	if err != nil {
		h.respondError(w, err, "reconcile balances error")
		return
	}

	h.writeJSON(w, http.StatusOK, reconcileResponse{Fixed: fixed})
}
