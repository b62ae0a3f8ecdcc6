package httpapi

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"apotekku/backend/internal/domain"
	"apotekku/backend/internal/store"
)

type userStoreStub struct {
	mu    sync.Mutex
	users map[string]domain.UserAccount
	err   error
}

func (s *userStoreStub) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.users == nil {
		s.users = make(map[string]domain.UserAccount)
	}
	s.users[user.Username] = user
	return nil
}

func (s *userStoreStub) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.UserAccount, 0, len(s.users))
	for _, user := range s.users {
		out = append(out, user)
	}
	return out, nil
}

func (s *userStoreStub) GetUser(_ context.Context, username string) (*domain.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	user, ok := s.users[username]
	if !ok {
		return nil, store.NotFound("user", username)
	}
	return &user, nil
}

func hashedAdminStore(t *testing.T) *userStoreStub {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("admin123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return &userStoreStub{
		users: map[string]domain.UserAccount{
			"admin": {
				Username:  "admin",
				Password:  string(hash),
				Role:      "admin",
				Active:    true,
				CreatedAt: time.Now().UTC(),
			},
		},
	}
}

func TestLoginRejectsPlainTextStoredPassword(t *testing.T) {
	users := &userStoreStub{users: map[string]domain.UserAccount{
		"admin": {Username: "admin", Password: "admin123", Role: "admin", Active: true},
	}}
	manager := NewAuthManager("test-secret", time.Hour, "739154", users)

	if _, err := manager.Login(context.Background(), domain.LoginRequest{Username: "admin", Password: "admin123"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected unhashed password to be refused, got %v", err)
	}
}

func TestLoginSurfacesStoreFailure(t *testing.T) {
	users := &userStoreStub{err: errors.New("connection refused")}
	manager := NewAuthManager("test-secret", time.Hour, "739154", users)

	_, err := manager.Login(context.Background(), domain.LoginRequest{Username: "admin", Password: "admin123"})
	if err == nil || errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected store failure to pass through, got %v", err)
	}
}

func TestLoginRejectsWrongPasswordAndInactiveAccount(t *testing.T) {
	users := hashedAdminStore(t)
	hash, err := bcrypt.GenerateFromPassword([]byte("cashier123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	users.users["lina"] = domain.UserAccount{Username: "lina", Password: string(hash), Role: "cashier", Active: false, CreatedAt: time.Now().UTC()}

	manager := NewAuthManager("test-secret", time.Hour, "123456", users)

	if _, err := manager.Login(context.Background(), domain.LoginRequest{Username: "admin", Password: "nope"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if _, err := manager.Login(context.Background(), domain.LoginRequest{Username: "lina", Password: "cashier123"}); !errors.Is(err, ErrInactiveAccount) {
		t.Fatalf("expected inactive account, got %v", err)
	}
}

func TestTokenRoundTripAndTampering(t *testing.T) {
	manager := NewAuthManager("test-secret", time.Hour, "123456", hashedAdminStore(t))

	resp, err := manager.Login(context.Background(), domain.LoginRequest{Username: "ADMIN ", Password: "admin123"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	actor, err := manager.ParseToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if actor.Username != "admin" || actor.Role != "admin" {
		t.Fatalf("unexpected actor %+v", actor)
	}

	other := NewAuthManager("another-secret", time.Hour, "123456", nil)
	if _, err := other.ParseToken(resp.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected token signed with another secret to be rejected, got %v", err)
	}

	expired := NewAuthManager("test-secret", time.Hour, "123456", nil)
	token, err := expired.sign("admin", "admin", time.Now().UTC().Add(-time.Minute))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := expired.ParseToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expired token to be rejected, got %v", err)
	}
}

func TestCreateCashierStoresPasswordHash(t *testing.T) {
	users := hashedAdminStore(t)
	manager := NewAuthManager("test-secret", time.Hour, "123456", users)
	ctx := context.Background()

	cashier, err := manager.CreateCashier(ctx, domain.CashierCreateRequest{Username: "Kasir01", Password: "pass1234"})
	if err != nil {
		t.Fatalf("create cashier failed: %v", err)
	}
	if cashier.Username != "kasir01" {
		t.Fatalf("expected lower-cased username, got %s", cashier.Username)
	}

	saved, ok := users.users["kasir01"]
	if !ok {
		t.Fatalf("expected cashier to be saved")
	}
	if !strings.HasPrefix(saved.Password, "$2") {
		t.Fatalf("expected bcrypt hash prefix, got %s", saved.Password)
	}

	if _, err := manager.Login(ctx, domain.LoginRequest{Username: "kasir01", Password: "pass1234"}); err != nil {
		t.Fatalf("login with new cashier failed: %v", err)
	}

	if _, err := manager.CreateCashier(ctx, domain.CashierCreateRequest{Username: "kasir01", Password: "pass1234"}); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected duplicate username to be rejected, got %v", err)
	}
	if _, err := manager.CreateCashier(ctx, domain.CashierCreateRequest{Username: "ab", Password: "pass1234"}); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected short username to be rejected, got %v", err)
	}

	cashiers, err := manager.ListCashiers(ctx)
	if err != nil {
		t.Fatalf("list cashiers: %v", err)
	}
	if len(cashiers) != 1 || cashiers[0].Username != "kasir01" {
		t.Fatalf("unexpected cashier list %+v", cashiers)
	}
}

func TestEmptyManagerPINDisablesOverrides(t *testing.T) {
	manager := NewAuthManager("test-secret", time.Hour, "", &userStoreStub{})
	if manager.ValidateManagerPIN("") || manager.ValidateManagerPIN("739154") {
		t.Fatalf("expected overrides to be disabled without a manager pin")
	}
}

func TestManagerPINIsHashedAndStillValidates(t *testing.T) {
	manager := NewAuthManager("test-secret", time.Hour, "654321", &userStoreStub{})

	if manager.pinHash == nil || string(manager.pinHash) == "654321" {
		t.Fatalf("expected manager pin to be stored as hash, got plain-text")
	}
	if !manager.ValidateManagerPIN("654321") {
		t.Fatalf("expected manager pin validation to succeed")
	}
	if manager.ValidateManagerPIN("111111") {
		t.Fatalf("expected wrong manager pin to fail")
	}
}
