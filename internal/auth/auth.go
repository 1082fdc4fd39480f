// Package auth authenticates the single configured console administrator
// and issues the bearer tokens admin routes require.
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// DefaultTokenTTL is how long an issued token stays valid
const DefaultTokenTTL = 24 * time.Hour

const (
	defaultIssuer = "blng-access-portal"
	roleAdmin     = "admin"
)

var (
	ErrMissingCredentials = errors.New("username and password are required")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

// Config holds the administrator account and token settings
type Config struct {
	Username     string
	PasswordHash string
	JWTSecret    string
	TokenTTL     time.Duration
	Issuer       string
}

// Claims are carried by admin tokens
type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Token is an issued bearer token
type Token struct {
	AccessToken string    `json:"token"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// Option configures an Authenticator
type Option func(*Authenticator)

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(a *Authenticator) {
		a.now = now
	}
}

// Authenticator checks admin credentials and signs HS256 tokens
type Authenticator struct {
	cfg Config
	now func() time.Time
}

// NewAuthenticator validates cfg and returns an Authenticator
func NewAuthenticator(cfg Config, opts ...Option) (*Authenticator, error) {
	if cfg.Username == "" {
		return nil, fmt.Errorf("admin username is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}
	if _, err := bcrypt.Cost([]byte(cfg.PasswordHash)); err != nil {
		return nil, fmt.Errorf("admin password hash is not a bcrypt hash: %w", err)
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = DefaultTokenTTL
	}
	if cfg.Issuer == "" {
		cfg.Issuer = defaultIssuer
	}

	a := &Authenticator{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Login checks the credentials and issues a token
func (a *Authenticator) Login(username, password string) (*Token, error) {
	if username == "" || password == "" {
		return nil, ErrMissingCredentials
	}

	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.cfg.Username)) == 1
	// Compare the hash even for an unknown user.
	passErr := bcrypt.CompareHashAndPassword([]byte(a.cfg.PasswordHash), []byte(password))
	if !userOK || passErr != nil {
		return nil, ErrInvalidCredentials
	}

	return a.issue(username)
}

func (a *Authenticator) issue(username string) (*Token, error) {
	now := a.now()
	expires := now.Add(a.cfg.TokenTTL)

	claims := Claims{
		Username: username,
		Role:     roleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    a.cfg.Issuer,
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(a.cfg.JWTSecret))
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}
	return &Token{AccessToken: signed, ExpiresAt: expires}, nil
}

// Verify parses and validates a token
func (a *Authenticator) Verify(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrInvalidToken
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(token *jwt.Token) (interface{}, error) {
			return []byte(a.cfg.JWTSecret), nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(a.cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Role != roleAdmin {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// HashPassword returns a bcrypt hash suitable for the admin password_hash setting
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrMissingCredentials
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}
