package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/protegacloudpay/cloudpay/internal/domain"
	"github.com/protegacloudpay/cloudpay/internal/identity"
	"github.com/protegacloudpay/cloudpay/internal/inventory"
	"github.com/protegacloudpay/cloudpay/internal/ledger"
)

type registerAccountRequest struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	CompanyName string `json:"company_name"`
	Phone       string `json:"phone"`
	Role        string `json:"role"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

func (s *Server) handleAuthRegister(w http.ResponseWriter, r *http.Request) {
	var req registerAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "bad_request", "email and password are required")
		return
	}

	_, token, err := s.accounts.Register(req.Name, req.Email, req.Password, req.CompanyName, req.Phone, req.Role)
	if errors.Is(err, ErrEmailTaken) {
		respondError(w, http.StatusConflict, "email_taken", "email already registered")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to register account")
		return
	}

	respondJSON(w, http.StatusCreated, tokenResponse{AccessToken: token, TokenType: "bearer"})
}

func (s *Server) handleAuthLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}

	_, token, err := s.accounts.Login(req.Email, req.Password)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "unauthorized", "invalid email or password")
		return
	}

	respondJSON(w, http.StatusOK, tokenResponse{AccessToken: token, TokenType: "bearer"})
}

func (s *Server) handleAuthMe(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, accountFromContext(r.Context()))
}

func (s *Server) handleCustomerRegister(w http.ResponseWriter, r *http.Request) {
	var reg domain.Registration
	if err := json.NewDecoder(r.Body).Decode(&reg); err != nil {
		respondError(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}
	if reg.Name == "" || reg.FingerprintHash == "" {
		respondError(w, http.StatusBadRequest, "bad_request", "name and fingerprint_hash are required")
		return
	}

	id, err := s.identity.RegisterCustomer(r.Context(), reg)
	if errors.Is(err, identity.ErrFingerprintExists) {
		respondError(w, http.StatusConflict, "fingerprint_exists", "fingerprint already registered")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to register customer")
		return
	}

	respondJSON(w, http.StatusCreated, map[string]string{"customer_id": id.CustomerID})
}

func (s *Server) handleVerifyFingerprint(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FingerprintHash string `json:"fingerprint_hash"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.FingerprintHash == "" {
		respondError(w, http.StatusBadRequest, "bad_request", "fingerprint_hash is required")
		return
	}

	id, err := s.identity.VerifyFingerprint(r.Context(), req.FingerprintHash)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to verify fingerprint")
		return
	}

	// The identity never leaves with the hash attached; the caller already
	// holds it.
	respondJSON(w, http.StatusOK, map[string]any{
		"verified":    id.Verified,
		"customer_id": id.CustomerID,
		"is_new":      id.IsNew,
	})
}

func (s *Server) handleCustomerProfile(w http.ResponseWriter, r *http.Request) {
	customerID := r.URL.Query().Get("customer_id")
	if customerID == "" {
		respondError(w, http.StatusBadRequest, "bad_request", "customer_id is required")
		return
	}

	c, err := s.identity.Customer(r.Context(), customerID)
	if errors.Is(err, identity.ErrCustomerNotFound) {
		respondError(w, http.StatusNotFound, "not_found", "customer not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to load customer")
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (s *Server) handleListPaymentMethods(w http.ResponseWriter, r *http.Request) {
	customerID := r.URL.Query().Get("customer_id")
	if customerID == "" {
		respondError(w, http.StatusBadRequest, "bad_request", "customer_id is required")
		return
	}

	methods, err := s.identity.PaymentMethods(r.Context(), customerID)
	if errors.Is(err, identity.ErrCustomerNotFound) {
		respondError(w, http.StatusNotFound, "not_found", "customer not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to load payment methods")
		return
	}
	if methods == nil {
		methods = []domain.PaymentMethod{}
	}
	respondJSON(w, http.StatusOK, methods)
}

func (s *Server) handleAddPaymentMethod(w http.ResponseWriter, r *http.Request) {
	customerID := r.URL.Query().Get("customer_id")
	if customerID == "" {
		respondError(w, http.StatusBadRequest, "bad_request", "customer_id is required")
		return
	}

	var m domain.PaymentMethod
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		respondError(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}

	added, err := s.identity.AddPaymentMethod(r.Context(), customerID, m)
	if errors.Is(err, identity.ErrCustomerNotFound) {
		respondError(w, http.StatusNotFound, "not_found", "customer not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to add payment method")
		return
	}
	respondJSON(w, http.StatusCreated, added)
}

type createTransactionRequest struct {
	Amount          float64            `json:"amount"`
	Items           []domain.DraftItem `json:"items"`
	FingerprintHash string             `json:"fingerprint_hash"`
	PaymentMethodID int64              `json:"payment_method_id"`
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	acct := accountFromContext(r.Context())

	var req createTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}
	if req.Amount <= 0 {
		respondError(w, http.StatusBadRequest, "bad_request", "amount must be positive")
		return
	}
	if req.FingerprintHash == "" {
		respondError(w, http.StatusBadRequest, "bad_request", "fingerprint_hash is required")
		return
	}

	// The fingerprint must resolve to a registered customer before money
	// moves.
	id, err := s.identity.VerifyFingerprint(r.Context(), req.FingerprintHash)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to verify fingerprint")
		return
	}
	if !id.Verified {
		// Recorded as a failed transaction so it shows up in the merchant's
		// fraud counters.
		if _, err := s.ledger.RecordFailure(r.Context(), ledger.FinalizeRequest{
			MerchantID:      acct.ID,
			FingerprintHash: req.FingerprintHash,
			Amount:          req.Amount,
			Items:           req.Items,
		}); err != nil {
			log.Printf("failed to record declined transaction: %v", err)
		}
		respondError(w, http.StatusPaymentRequired, "unverified_fingerprint", "fingerprint does not match a registered customer")
		return
	}

	txn, err := s.ledger.Finalize(r.Context(), ledger.FinalizeRequest{
		MerchantID:      acct.ID,
		CustomerID:      id.CustomerID,
		PaymentMethodID: req.PaymentMethodID,
		FingerprintHash: req.FingerprintHash,
		Amount:          req.Amount,
		Items:           req.Items,
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to record transaction")
		return
	}

	respondJSON(w, http.StatusCreated, txn)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	acct := accountFromContext(r.Context())
	skip := queryInt(r, "skip", 0)
	limit := queryInt(r, "limit", 100)

	txns, err := s.ledger.Transactions(r.Context(), acct.ID, skip, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to list transactions")
		return
	}
	if txns == nil {
		txns = []*domain.Transaction{}
	}
	respondJSON(w, http.StatusOK, txns)
}

func (s *Server) handleMerchantStats(w http.ResponseWriter, r *http.Request) {
	acct := accountFromContext(r.Context())

	stats, err := s.ledger.Stats(r.Context(), acct.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to compute stats")
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

func (s *Server) handleListInventory(w http.ResponseWriter, r *http.Request) {
	acct := accountFromContext(r.Context())

	items, err := s.inventory.List(r.Context(), acct.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to list inventory")
		return
	}
	if items == nil {
		items = []*domain.InventoryItem{}
	}
	respondJSON(w, http.StatusOK, items)
}

func (s *Server) handleCreateInventoryItem(w http.ResponseWriter, r *http.Request) {
	acct := accountFromContext(r.Context())

	var item domain.InventoryItem
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		respondError(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}
	if item.Name == "" || item.Price <= 0 {
		respondError(w, http.StatusBadRequest, "bad_request", "name and a positive price are required")
		return
	}

	if err := s.inventory.Create(r.Context(), acct.ID, &item); err != nil {
		if errors.Is(err, inventory.ErrDuplicateBarcode) {
			respondError(w, http.StatusConflict, "duplicate_barcode", "barcode already in use")
			return
		}
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to create inventory item")
		return
	}
	respondJSON(w, http.StatusCreated, item)
}

func (s *Server) handleUpdateInventoryItem(w http.ResponseWriter, r *http.Request) {
	acct := accountFromContext(r.Context())

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "bad_request", "invalid item id")
		return
	}

	var item domain.InventoryItem
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		respondError(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}
	item.ID = id

	if err := s.inventory.Update(r.Context(), acct.ID, &item); err != nil {
		switch {
		case errors.Is(err, inventory.ErrItemNotFound):
			respondError(w, http.StatusNotFound, "not_found", "inventory item not found")
		case errors.Is(err, inventory.ErrDuplicateBarcode):
			respondError(w, http.StatusConflict, "duplicate_barcode", "barcode already in use")
		default:
			respondError(w, http.StatusInternalServerError, "internal_error", "failed to update inventory item")
		}
		return
	}
	respondJSON(w, http.StatusOK, item)
}

func (s *Server) handleDeleteInventoryItem(w http.ResponseWriter, r *http.Request) {
	acct := accountFromContext(r.Context())

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "bad_request", "invalid item id")
		return
	}

	if err := s.inventory.Delete(r.Context(), acct.ID, id); err != nil {
		if errors.Is(err, inventory.ErrItemNotFound) {
			respondError(w, http.StatusNotFound, "not_found", "inventory item not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to delete inventory item")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleInventoryByBarcode(w http.ResponseWriter, r *http.Request) {
	acct := accountFromContext(r.Context())
	barcode := chi.URLParam(r, "barcode")

	item, err := s.inventory.GetByBarcode(r.Context(), acct.ID, barcode)
	if errors.Is(err, inventory.ErrItemNotFound) {
		respondError(w, http.StatusNotFound, "not_found", "no item with this barcode")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to look up barcode")
		return
	}
	respondJSON(w, http.StatusOK, item)
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}
