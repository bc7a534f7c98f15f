package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mmeshcher/washbonus/internal/model"
)

type customerResponse struct {
	ID           uuid.UUID `json:"id"`
	Phone        string    `json:"phone"`
	Name         string    `json:"name,omitempty"`
	Email        string    `json:"email,omitempty"`
	MembershipID string    `json:"membership_id,omitempty"`
	Plan         string    `json:"plan,omitempty"`
	IsMember     bool      `json:"is_member"`
	Points       int       `json:"points"`
}

func toCustomerResponse(c *model.Customer) customerResponse {
	return customerResponse{
		ID:           c.ID,
		Phone:        c.Phone,
		Name:         c.Name,
		Email:        c.Email,
		MembershipID: c.MembershipID,
		Plan:         c.Plan,
		IsMember:     c.IsMember(),
		Points:       c.Points,
	}
}

type createCustomerRequest struct {
	Phone        string `json:"phone"`
	Name         string `json:"name,omitempty"`
	Email        string `json:"email,omitempty"`
	MembershipID string `json:"membership_id,omitempty"`
	Plan         string `json:"plan,omitempty"`
}

// CreateCustomer регистрирует клиента текущего бизнеса.
func (h *Handler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	businessID, ok := businessFromContext(w, r)
	if !ok {
		return
	}

	var req createCustomerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if req.Phone == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	customer, err := h.service.CreateCustomer(r.Context(), model.Customer{
		BusinessID:   businessID,
		Phone:        req.Phone,
		Name:         req.Name,
		Email:        req.Email,
		MembershipID: req.MembershipID,
		Plan:         req.Plan,
	})
	if err != nil {
		h.respondError(w, err, "create customer error")
		return
	}

	h.writeJSON(w, http.StatusCreated, toCustomerResponse(&customer))
}

// GetCustomer возвращает клиента текущего бизнеса по номеру телефона.
func (h *Handler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	businessID, ok := businessFromContext(w, r)
	if !ok {
		return
	}

	customer, err := h.service.GetCustomer(r.Context(), businessID, chi.URLParam(r, "phone"))
	if err != nil {
		h.respondError(w, err, "get customer error")
		return
	}

	h.writeJSON(w, http.StatusOK, toCustomerResponse(customer))
}

type membershipRequest struct {
	MembershipID string `json:"membership_id"`
	Plan         string `json:"plan,omitempty"`
}

// SetMembership задаёт членство клиента.
func (h *Handler) SetMembership(w http.ResponseWriter, r *http.Request) {
	businessID, ok := businessFromContext(w, r)
	if !ok {
		return
	}

	var req membershipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	customer, err := h.service.SetCustomerMembership(r.Context(), businessID,
		chi.URLParam(r, "phone"), req.MembershipID, req.Plan)
	if err != nil {
		h.respondError(w, err, "set membership error")
		return
	}

	h.writeJSON(w, http.StatusOK, toCustomerResponse(customer))
}

type balanceResponse struct {
	Points int `json:"points"`
}

// GetBalance возвращает баланс баллов клиента.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	businessID, ok := businessFromContext(w, r)
	if !ok {
		return
	}

	points, err := h.service.GetCustomerBalance(r.Context(), businessID, chi.URLParam(r, "phone"))
	if err != nil {
		h.respondError(w, err, "get balance error")
		return
	}

	h.writeJSON(w, http.StatusOK, balanceResponse{Points: points})
}

type ledgerEntryResponse struct {
	ID          uuid.UUID  `json:"id"`
	PointsDelta int        `json:"points_delta"`
	RewardType  string     `json:"reward_type"`
	RuleID      *uuid.UUID `json:"rule_id,omitempty"`
	CreatedAt   string     `json:"created_at"`
}

// GetLedger возвращает журнал баллов клиента.
func (h *Handler) GetLedger(w http.ResponseWriter, r *http.Request) {
	businessID, ok := businessFromContext(w, r)
	if !ok {
		return
	}

	entries, err := h.service.GetLedgerHistory(r.Context(), businessID, chi.URLParam(r, "phone"))
	if err != nil {
		h.respondError(w, err, "get ledger error")
		return
	}

	if len(entries) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]ledgerEntryResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, ledgerEntryResponse{
			ID:          e.ID,
			PointsDelta: e.PointsDelta,
			RewardType:  string(e.RewardTypeApplied),
			RuleID:      e.RuleID,
			CreatedAt:   e.CreatedAt.Format(time.RFC3339),
		})
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// GetOffers возвращает персональные предложения клиента.
func (h *Handler) GetOffers(w http.ResponseWriter, r *http.Request) {
	businessID, ok := businessFromContext(w, r)
	if !ok {
		return
	}

	includeRedeemed := r.URL.Query().Get("include_redeemed") == "true"
	offers, err := h.service.GetCustomerOffers(r.Context(), businessID, chi.URLParam(r, "phone"), includeRedeemed)
	if err != nil {
		h.respondError(w, err, "get offers error")
		return
	}

	if len(offers) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]offerResponse, 0, len(offers))
	for _, o := range offers {
		resp = append(resp, toOfferResponse(o))
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// RequestRedemption проверяет право клиента на погашение персонального предложения.
func (h *Handler) RequestRedemption(w http.ResponseWriter, r *http.Request) {
	businessID, ok := businessFromContext(w, r)
	if !ok {
		return
	}

	offer, err := h.service.RequestRedemption(r.Context(), businessID, chi.URLParam(r, "phone"))
	if err != nil {
		h.respondError(w, err, "request redemption error")
		return
	}

	h.writeJSON(w, http.StatusOK, toOfferResponse(*offer))
}

// GetEligibility возвращает активные правила, применимые к клиенту сегодня.
func (h *Handler) GetEligibility(w http.ResponseWriter, r *http.Request) {
	businessID, ok := businessFromContext(w, r)
	if !ok {
		return
	}

	rules, err := h.service.CustomerEligibility(r.Context(), businessID, chi.URLParam(r, "phone"))
	if err != nil {
		h.respondError(w, err, "get eligibility error")
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
