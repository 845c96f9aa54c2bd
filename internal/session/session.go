// ABOUTME: Account sign-up/sign-in and the Boundary abstraction.
// ABOUTME: Passwords are bcrypt-hashed; sign-in yields an HS256 session token.

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/2389/agentchat/internal/store"
)

// ErrInvalidCredentials covers both unknown emails and wrong passwords, so
// sign-in failures don't reveal which accounts exist.
var ErrInvalidCredentials = errors.New("invalid email or password")

// DefaultTokenTTL is how long issued session tokens stay valid.
const DefaultTokenTTL = 24 * time.Hour

// Boundary yields the identity scoping all conversation operations.
// An empty owner ID means signed out: no conversations load and creation
// operations no-op.
type Boundary interface {
	CurrentOwnerID() string
}

// Static is a fixed identity, for tests and single-user deployments.
type Static string

// CurrentOwnerID returns the fixed owner ID.
func (s Static) CurrentOwnerID() string { return string(s) }

// Manager handles accounts and session tokens.
type Manager struct {
	accounts store.AccountStore
	verifier *TokenVerifier
	tokenTTL time.Duration
	logger   *slog.Logger
}

// NewManager creates a Manager. A zero tokenTTL takes DefaultTokenTTL.
func NewManager(accounts store.AccountStore, secret []byte, tokenTTL time.Duration, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if tokenTTL == 0 {
		tokenTTL = DefaultTokenTTL
	}
	return &Manager{
		accounts: accounts,
		verifier: NewTokenVerifier(secret),
		tokenTTL: tokenTTL,
		logger:   logger.With("component", "session"),
	}
}

// SignUp creates an account with a bcrypt-hashed password.
func (m *Manager) SignUp(ctx context.Context, email, password string) (*store.Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("invalid email address")
	}
	if len(password) < 8 {
		return nil, fmt.Errorf("password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	account := &store.Account{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    time.Now(),
	}
	if err := m.accounts.CreateAccount(ctx, account); err != nil {
		return nil, err
	}

	m.logger.Info("account created", "account_id", account.ID)
	return account, nil
}

// SignIn verifies the password and issues a session token.
func (m *Manager) SignIn(ctx context.Context, email, password string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	account, err := m.accounts.GetAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", fmt.Errorf("looking up account: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	token, err := m.verifier.Generate(account.ID, m.tokenTTL)
	if err != nil {
		return "", fmt.Errorf("issuing token: %w", err)
	}

	m.logger.Debug("session issued", "account_id", account.ID)
	return token, nil
}

// Verify resolves a session token to its owner ID.
func (m *Manager) Verify(token string) (string, error) {
	return m.verifier.Verify(token)
}

// IssueToken mints a token for a known owner ID, for CLI scripting.
func (m *Manager) IssueToken(ownerID string, ttl time.Duration) (string, error) {
	if ttl == 0 {
		ttl = m.tokenTTL
	}
	return m.verifier.Generate(ownerID, ttl)
}
