package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	custommiddleware "github.com/mmeshcher/washbonus/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса лояльности.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api/business", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Post("/transactions", h.SubmitTransactions)
			r.Post("/transactions/approve", h.ApproveTransactions)
			r.Get("/transactions", h.ListTransactions)
			r.Get("/transactions/pending", h.ListPendingTransactions)
			r.Post("/transactions/pending/approve", h.ApprovePending)

			r.Post("/customers", h.CreateCustomer)
			r.Get("/customers/{phone}", h.GetCustomer)
			r.Put("/customers/{phone}/membership", h.SetMembership)
			r.Get("/customers/{phone}/balance", h.GetBalance)
			r.Get("/customers/{phone}/ledger", h.GetLedger)
			r.Get("/customers/{phone}/offers", h.GetOffers)
			r.Post("/customers/{phone}/redeem", h.RequestRedemption)
			r.Get("/customers/{phone}/eligibility", h.GetEligibility)

			r.Post("/rules", h.CreateRule)
			r.Get("/rules", h.ListRules)
			r.Post("/rules/initialize", h.InitializeRules)
			r.Post("/rules/test", h.TestRules)
			r.Get("/rules/{ruleID}", h.GetRule)
			r.Patch("/rules/{ruleID}/active", h.SetRuleActive)
			r.Delete("/rules/{ruleID}", h.DeleteRule)

			r.Post("/reconcile", h.Reconcile)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
