package auth

import (
	"context"
	"strings"
	"sync"

	"github.com/go-faster/errors"
	"golang.org/x/crypto/bcrypt"
)

// dummyHash is compared against when the email is unknown so that both
// failure paths cost one bcrypt comparison.
var dummyHash = sync.OnceValue(func() []byte {
	h, _ := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcrypt.DefaultCost)
	return h
})

// Service authenticates customers.
type Service struct {
	customers Repository
	tokens    *TokenIssuer
}

// NewService creates an auth Service.
func NewService(customers Repository, tokens *TokenIssuer) *Service {
	return &Service{customers: customers, tokens: tokens}
}

// Login checks email and password and issues a session.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	c, err := s.customers.FindByEmail(ctx, email)
	if errors.Is(err, ErrCustomerNotFound) {
		_ = bcrypt.CompareHashAndPassword(dummyHash(), []byte(password))
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, errors.Wrap(err, "find customer")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return s.tokens.Issue(c.ID)
}

// CustomerEmail resolves an account number to the contact email used to log
// in.
func (s *Service) CustomerEmail(ctx context.Context, customerNumber string) (string, error) {
	return s.customers.EmailByCustomerNumber(ctx, strings.TrimSpace(customerNumber))
}

// Authenticate verifies a bearer token and returns the customer id.
func (s *Service) Authenticate(token string) (string, error) {
	return s.tokens.Verify(token)
}

// HashPassword returns the bcrypt hash stored for new customers.
func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", errors.Wrap(err, "hash password")
	}
	return string(h), nil
}
