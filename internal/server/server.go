// Package server exposes the CloudPay backend REST API consumed by the
// merchant and customer terminals.
package server

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/protegacloudpay/cloudpay/internal/identity"
	"github.com/protegacloudpay/cloudpay/internal/inventory"
	"github.com/protegacloudpay/cloudpay/internal/ledger"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type Server struct {
	accounts  *AccountStore
	identity  *identity.Service
	ledger    *ledger.Service
	inventory inventory.Store
	timeout   time.Duration
}

func New(accounts *AccountStore, ids *identity.Service, led *ledger.Service, inv inventory.Store) *Server {
	return &Server{
		accounts:  accounts,
		identity:  ids,
		ledger:    led,
		inventory: inv,
		timeout:   30 * time.Second,
	}
}

// Handler builds the routed handler with the full middleware stack.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.Timeout(s.timeout))
	r.Use(middleware.Compress(5))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", s.handleAuthRegister)
		r.Post("/auth/login", s.handleAuthLogin)

		r.Group(func(r chi.Router) {
			r.Use(BearerAuthMiddleware(s.accounts))

			r.Get("/auth/me", s.handleAuthMe)

			r.Route("/customers", func(r chi.Router) {
				r.Post("/register", s.handleCustomerRegister)
				r.Post("/verify-fingerprint", s.handleVerifyFingerprint)
				r.Get("/profile", s.handleCustomerProfile)
				r.Get("/payment-methods", s.handleListPaymentMethods)
				r.Post("/payment-methods", s.handleAddPaymentMethod)
			})

			r.Post("/transactions/create", s.handleCreateTransaction)
			r.Get("/transactions", s.handleListTransactions)
			r.Get("/merchant/stats", s.handleMerchantStats)

			r.Route("/inventory", func(r chi.Router) {
				r.Get("/", s.handleListInventory)
				r.Post("/", s.handleCreateInventoryItem)
				r.Put("/{id}", s.handleUpdateInventoryItem)
				r.Delete("/{id}", s.handleDeleteInventoryItem)
				r.Get("/barcode/{barcode}", s.handleInventoryByBarcode)
			})
		})
	})

	return otelhttp.NewHandler(r, "cloudpay-api")
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details string `json:"details"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
