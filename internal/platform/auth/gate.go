package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidPassphrase is returned when the shared unit passphrase does not match.
var ErrInvalidPassphrase = errors.New("invalid passphrase")

// Issuer is the iss claim on gate tokens.
const Issuer = "cardioedad"

// Gate checks the shared unit passphrase and issues session tokens.
type Gate struct {
	hash       []byte
	signingKey []byte
	ttl        time.Duration
	now        func() time.Time
}

func NewGate(passphraseHash string, signingKey []byte, ttl time.Duration) *Gate {
	return &Gate{
		hash:       []byte(passphraseHash),
		signingKey: signingKey,
		ttl:        ttl,
		now:        time.Now,
	}
}

// Token is the login response body.
type Token struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Login verifies the passphrase and returns a signed token.
func (g *Gate) Login(passphrase string) (*Token, error) {
	if passphrase == "" || len(g.hash) == 0 {
		return nil, ErrInvalidPassphrase
	}
	if err := bcrypt.CompareHashAndPassword(g.hash, []byte(passphrase)); err != nil {
		return nil, ErrInvalidPassphrase
	}
	return g.Issue(uuid.NewString())
}

// Issue signs a clinician token for the given session subject.
func (g *Gate) Issue(subject string) (*Token, error) {
	now := g.now()
	exp := now.Add(g.ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Roles: []string{RoleClinician},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.signingKey)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &Token{AccessToken: signed, TokenType: "Bearer", ExpiresAt: exp}, nil
}

// HashPassphrase produces the value for ACCESS_PASSPHRASE_HASH.
func HashPassphrase(passphrase string) (string, error) {
	if passphrase == "" {
		return "", fmt.Errorf("passphrase is required")
	}
	h, err := bcrypt.GenerateFromPassword([]byte(passphrase), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash passphrase: %w", err)
	}
	return string(h), nil
}
