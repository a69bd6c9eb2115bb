package server

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

// Account is a merchant login. Terminals authenticate as the merchant that
// operates them.
type Account struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	CompanyName string    `json:"company_name,omitempty"`
	Phone       string    `json:"phone,omitempty"`
	Role        string    `json:"role"`
	CreatedAt   time.Time `json:"created_at"`
}

// AccountStore keeps merchant accounts and issued bearer tokens in memory.
// Password handling here is deliberately simple; the terminals only need a
// stable merchant identity to tag transactions with.
type AccountStore struct {
	mu       sync.RWMutex
	byEmail  map[string]*storedAccount
	byToken  map[string]string
	tokenTTL time.Duration
	issued   map[string]time.Time
}

type storedAccount struct {
	Account
	passwordHash string
}

func NewAccountStore() *AccountStore {
	return &AccountStore{
		byEmail:  make(map[string]*storedAccount),
		byToken:  make(map[string]string),
		tokenTTL: 24 * time.Hour,
		issued:   make(map[string]time.Time),
	}
}

func hashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

// Register creates an account and returns it with a fresh token.
func (s *AccountStore) Register(name, email, password, company, phone, role string) (*Account, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byEmail[email]; ok {
		return nil, "", ErrEmailTaken
	}
	if role == "" {
		role = "merchant"
	}

	acct := &storedAccount{
		Account: Account{
			ID:          uuid.NewString(),
			Name:        name,
			Email:       email,
			CompanyName: company,
			Phone:       phone,
			Role:        role,
			CreatedAt:   time.Now(),
		},
		passwordHash: hashPassword(password),
	}
	s.byEmail[email] = acct

	token := s.issueLocked(email)
	out := acct.Account
	return &out, token, nil
}

// Login checks credentials and returns a fresh token.
func (s *AccountStore) Login(email, password string) (*Account, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.byEmail[email]
	if !ok {
		return nil, "", ErrInvalidCredentials
	}
	given := hashPassword(password)
	if subtle.ConstantTimeCompare([]byte(given), []byte(acct.passwordHash)) != 1 {
		return nil, "", ErrInvalidCredentials
	}

	token := s.issueLocked(email)
	out := acct.Account
	return &out, token, nil
}

// Verify resolves a bearer token to the account it was issued to.
func (s *AccountStore) Verify(token string) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	email, ok := s.byToken[token]
	if !ok {
		return nil, ErrInvalidToken
	}
	if issuedAt, ok := s.issued[token]; !ok || time.Since(issuedAt) > s.tokenTTL {
		return nil, ErrInvalidToken
	}
	acct, ok := s.byEmail[email]
	if !ok {
		return nil, ErrInvalidToken
	}
	out := acct.Account
	return &out, nil
}

func (s *AccountStore) issueLocked(email string) string {
	token := uuid.NewString()
	s.byToken[token] = email
	s.issued[token] = time.Now()
	return token
}

type contextKey string

const accountContextKey contextKey = "account"

// BearerAuthMiddleware resolves the Authorization header to an account and
// stores it on the request context.
func BearerAuthMiddleware(store *AccountStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				respondError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
				return
			}

			acct, err := store.Verify(token)
			if err != nil {
				respondError(w, http.StatusUnauthorized, "unauthorized", "invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), accountContextKey, acct)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func accountFromContext(ctx context.Context) *Account {
	acct, _ := ctx.Value(accountContextKey).(*Account)
	return acct
}
